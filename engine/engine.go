// Package engine 实现并发连接引擎：接受循环、有界分发器与退出协调器。
package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/gopkg/lang/fastrand"
	"github.com/favbox/dock/app"
	"github.com/favbox/dock/common/config"
	errs "github.com/favbox/dock/common/errors"
	"github.com/favbox/dock/common/hlog"
	"github.com/favbox/dock/common/timer"
	"github.com/favbox/dock/internal/nocopy"
	"github.com/favbox/dock/network"
	"github.com/favbox/dock/network/standard"
)

const (
	_ uint32 = iota
	statusInitialized
	statusRunning
	statusShutdown
	statusClosed
)

const (
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)

var (
	errInitFailed       = errs.NewPrivate("引擎已经初始化")
	errAlreadyRunning   = errs.NewPrivate("引擎已在运行中")
	errStatusNotRunning = errs.NewPrivate("引擎未在运行中")
)

// CtxCallback 引擎关闭时，同时触发的钩子函数。
type CtxCallback func(ctx context.Context)

// CtxErrCallback 引擎启动时，依次触发的钩子函数。
type CtxErrCallback func(ctx context.Context) error

// Engine 组合监听器、分发器与退出协调器。
type Engine struct {
	noCopy nocopy.NoCopy

	options     *config.Options
	listener    network.Listener
	dispatcher  *Dispatcher
	signal      *ShutdownSignal
	coordinator *Coordinator

	nextID     atomic.Uint64
	status     atomic.Uint32
	acceptDone chan struct{}
	closeOnce  sync.Once

	// OnRun 是引擎启动时，依次触发的一组钩子函数。
	OnRun []CtxErrCallback

	// OnShutdown 是引擎关闭时，并行触发的一组钩子函数。
	OnShutdown []CtxCallback
}

// NewEngine 创建使用 handler 处理请求的引擎。
func NewEngine(opts *config.Options, handler app.HandlerFunc) *Engine {
	return &Engine{
		options:    opts,
		dispatcher: NewDispatcher(opts, handler),
		signal:     NewShutdownSignal(),
		acceptDone: make(chan struct{}),
	}
}

// Init 打开监听器。重复调用返回错误。
func (e *Engine) Init() error {
	if !e.status.CompareAndSwap(0, statusInitialized) {
		return errInitFailed
	}

	var (
		ln  network.Listener
		err error
	)
	if e.options.ListenerNewer != nil {
		ln, err = e.options.ListenerNewer(e.options)
	} else {
		ln, err = standard.Open(e.options.Network, e.options.Addr, standard.ListenOptions{
			Backlog:      e.options.Backlog,
			ReusePort:    e.options.ReusePort,
			ListenConfig: e.options.ListenConfig,
		})
	}
	if err != nil {
		e.status.Store(statusClosed)
		return err
	}
	e.listener = ln
	e.coordinator = NewCoordinator(e.signal, ln, e.dispatcher)
	return nil
}

// Run 初始化（若尚未初始化）并运行接受循环，直至监听器出现不可恢复的错误或引擎退出。
//
// 因退出而结束时返回 nil。
func (e *Engine) Run() (err error) {
	if e.status.Load() == 0 {
		if err = e.Init(); err != nil {
			return err
		}
	}
	if err = e.MarkAsRunning(); err != nil {
		return err
	}
	defer e.status.Store(statusClosed)

	ctx := context.Background()
	for i := range e.OnRun {
		if err = e.OnRun[i](ctx); err != nil {
			close(e.acceptDone)
			return err
		}
	}

	return e.serve()
}

// MarkAsRunning 将引擎状态设为“运行中”。
func (e *Engine) MarkAsRunning() error {
	if !e.status.CompareAndSwap(statusInitialized, statusRunning) {
		return errAlreadyRunning
	}
	return nil
}

// IsRunning 报告引擎是否运行中。
func (e *Engine) IsRunning() bool {
	return e.status.Load() == statusRunning
}

func (e *Engine) serve() error {
	defer close(e.acceptDone)
	hlog.SystemLogger().Infof("引擎开始服务：地址=%s，容量=%d，策略=%s，队列=%d",
		e.listener.Addr(), e.options.MaxConns, e.options.AdmissionPolicy, e.options.QueueDepth)

	var backoff time.Duration
	for {
		conn, err := e.listener.Accept()
		if err != nil {
			if e.signal.IsSet() {
				return nil
			}
			if errs.IsTransient(err) {
				backoff = nextBackoff(backoff)
				wait := jitter(backoff)
				hlog.SystemLogger().Warnf("接受连接出错：%v，%v 后重试", err, wait)
				if !e.sleep(wait) {
					return nil
				}
				continue
			}
			hlog.SystemLogger().Errorf("监听器不可用：%v", err)
			return err
		}
		backoff = 0

		if e.signal.IsSet() {
			_ = conn.Close()
			return nil
		}
		e.dispatch(conn)
	}
}

func (e *Engine) dispatch(conn network.Conn) {
	ctx := context.Background()
	if e.options.OnAccept != nil {
		if ctx = e.options.OnAccept(conn); ctx == nil {
			hlog.SystemLogger().Debugf("连接 %s 被 OnAccept 拒绝", conn.RemoteAddr())
			_ = conn.Close()
			return
		}
	}
	c := NewConnection(ctx, e.nextID.Add(1), conn)
	hlog.SystemLogger().CtxTracef(c.Context(), "接受连接：%s", conn.RemoteAddr())
	_ = e.dispatcher.Submit(ctx, c)
}

// 等待 d，退出信号先到时返回 false。
func (e *Engine) sleep(d time.Duration) bool {
	t := timer.AcquireTimer(d)
	defer timer.ReleaseTimer(t)
	select {
	case <-t.C:
		return true
	case <-e.signal.Done():
		return false
	}
}

// 指数退避：从 minAcceptBackoff 开始翻倍，不超过 maxAcceptBackoff。
func nextBackoff(prev time.Duration) time.Duration {
	if prev < minAcceptBackoff {
		return minAcceptBackoff
	}
	return min(prev*2, maxAcceptBackoff)
}

// 返回 [d/2, d] 内的随机时长，避免多个实例同时重试。
func jitter(d time.Duration) time.Duration {
	half := int64(d / 2)
	if half <= 0 {
		return d
	}
	return time.Duration(half + fastrand.Int63n(half+1))
}

// Shutdown 优雅退出引擎，步骤如下：
//
//  1. 并行触发 Engine.OnShutdown 钩子函数，直至完成或 ctx 结束；
//  2. 设置退出信号并关闭监听器，不再接受新连接；
//  3. 等待处理中和排队中的连接完成，超过 ExitWaitTimeout 后强制关闭剩余连接。
//
// 宽限期内未能排空时返回 ErrDrainTimeout。
func (e *Engine) Shutdown(ctx context.Context) (err error) {
	if e.status.Load() != statusRunning {
		return errStatusNotRunning
	}
	if !e.status.CompareAndSwap(statusRunning, statusShutdown) {
		return
	}

	ch := make(chan struct{}, 1)
	go e.executeOnShutdownHooks(ctx, ch)
	defer func() {
		select {
		case <-ctx.Done():
			hlog.SystemLogger().Infof("执行 OnShutdown 钩子超时：错误=%v", ctx.Err())
		case <-ch:
			hlog.SystemLogger().Info("执行 OnShutdown 钩子完成")
		}
	}()

	e.coordinator.RequestShutdown(e.options.ExitWaitTimeout)

	select {
	case <-e.acceptDone:
	case <-ctx.Done():
		return ctx.Err()
	}
	return e.coordinator.AwaitDrain(ctx)
}

func (e *Engine) executeOnShutdownHooks(ctx context.Context, ch chan struct{}) {
	wg := sync.WaitGroup{}
	for i := range e.OnShutdown {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			e.OnShutdown[index](ctx)
		}(i)
	}
	wg.Wait()
	ch <- struct{}{}
}

// Close 立即关闭引擎：停止监听并强制终止所有连接。
func (e *Engine) Close() (err error) {
	if e.coordinator == nil {
		return nil
	}
	e.closeOnce.Do(func() {
		e.coordinator.RequestShutdown(0)
		e.dispatcher.ForceClose(errs.ErrForcedShutdown)
		err = e.listener.Close()
	})
	return
}

// Addr 返回监听地址，未初始化时返回空字符串。
func (e *Engine) Addr() string {
	if e.listener == nil {
		return ""
	}
	return e.listener.Addr().String()
}

// Options 返回引擎配置。
func (e *Engine) Options() *config.Options {
	return e.options
}

// Dispatcher 返回引擎的分发器。
func (e *Engine) Dispatcher() *Dispatcher {
	return e.dispatcher
}

// Signal 返回引擎的退出信号。
func (e *Engine) Signal() *ShutdownSignal {
	return e.signal
}

// Stats 返回分发器的统计快照。
func (e *Engine) Stats() Stats {
	return e.dispatcher.Stats()
}
