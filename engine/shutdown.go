package engine

import (
	"context"
	"sync/atomic"
	"time"

	errs "github.com/favbox/dock/common/errors"
	"github.com/favbox/dock/common/hlog"
	"github.com/favbox/dock/network"
)

// Coordinator 协调退出：设置退出信号、停止监听、等待连接排空，宽限期过后强制关闭剩余连接。
type Coordinator struct {
	signal     *ShutdownSignal
	listener   network.Listener
	dispatcher *Dispatcher

	forced atomic.Bool
	done   chan struct{}
}

// NewCoordinator 创建退出协调器。listener 可为空。
func NewCoordinator(signal *ShutdownSignal, listener network.Listener, d *Dispatcher) *Coordinator {
	return &Coordinator{
		signal:     signal,
		listener:   listener,
		dispatcher: d,
		done:       make(chan struct{}),
	}
}

// Signal 返回退出信号。
func (co *Coordinator) Signal() *ShutdownSignal {
	return co.signal
}

// RequestShutdown 请求退出，仅首次调用生效。
//
// 立即停止接受新连接；处理中的连接可在 grace 内自然完成，之后以 ErrForcedShutdown 强制关闭。
func (co *Coordinator) RequestShutdown(grace time.Duration) {
	if !co.signal.Set() {
		return
	}
	hlog.SystemLogger().Infof("开始退出：宽限期=%v，处理中=%d，排队中=%d",
		grace, co.dispatcher.InFlight(), co.dispatcher.Queued())

	if co.listener != nil {
		if err := co.listener.Close(); err != nil {
			hlog.SystemLogger().Warnf("关闭监听器出错：%v", err)
		}
	}
	go co.watch(grace)
}

func (co *Coordinator) watch(grace time.Duration) {
	defer close(co.done)

	if grace > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()
		if co.dispatcher.Wait(ctx) == nil {
			hlog.SystemLogger().Info("所有连接已排空")
			return
		}
	} else if co.dispatcher.Wait(expiredCtx) == nil {
		return
	}

	co.forced.Store(true)
	hlog.SystemLogger().Warnf("宽限期 %v 已过，强制关闭 %d 个处理中和 %d 个排队中的连接",
		grace, co.dispatcher.InFlight(), co.dispatcher.Queued())
	co.dispatcher.ForceClose(errs.ErrForcedShutdown)
}

// AwaitDrain 阻塞至退出完成。
//
// 所有连接在宽限期内排空时返回 nil；宽限期已过、剩余连接被强制关闭时返回 ErrDrainTimeout；
// ctx 先结束时返回 ctx.Err()。
func (co *Coordinator) AwaitDrain(ctx context.Context) error {
	select {
	case <-co.done:
		if co.forced.Load() {
			return errs.ErrDrainTimeout
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var expiredCtx = func() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}()
