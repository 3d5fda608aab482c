package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/gopkg/util/gopool"
	"github.com/eapache/queue"
	"github.com/favbox/dock/app"
	"github.com/favbox/dock/app/middlewares/timeout"
	"github.com/favbox/dock/common/config"
	errs "github.com/favbox/dock/common/errors"
	"github.com/favbox/dock/common/hlog"
	"github.com/favbox/dock/protocol"
	"github.com/favbox/dock/protocol/consts"
	"golang.org/x/sync/semaphore"
)

// Stats 是分发器的运行统计快照。
type Stats struct {
	Capacity  int    `json:"capacity"`
	Policy    string `json:"policy"`
	InFlight  int64  `json:"in_flight"`
	Queued    int    `json:"queued"`
	Admitted  int64  `json:"admitted"`
	Rejected  int64  `json:"rejected"`
	Completed int64  `json:"completed"`
	Failed    int64  `json:"failed"`
}

// Dispatcher 限制同时处理的连接数，并按准入策略处理超出容量的连接。
//
// 每个被接纳的连接依次经过：读取 → 处理器 → 写入（处理器出错时写入通用失败响应）→ 关闭。
// 单个连接的任何失败都只影响它自己。
type Dispatcher struct {
	handler         app.HandlerFunc
	policy          config.AdmissionPolicy
	capacity        int
	queueDepth      int
	maxRequestSize  int
	readTimeout     time.Duration
	writeTimeout    time.Duration
	framer          func([]byte) bool
	failureResponse []byte

	sem  *semaphore.Weighted
	pool gopool.Pool

	mu      sync.Mutex
	pending *queue.Queue
	closed  bool
	active  int // 处理中与排队中的连接总数
	drained chan struct{}

	inFlight  atomic.Int64
	admitted  atomic.Int64
	rejected  atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64

	force       context.Context
	forceCancel context.CancelCauseFunc

	// OnConnDone 是连接进入终态后依次调用的钩子，需在提交连接前设置。
	OnConnDone []func(c *Connection)
}

// NewDispatcher 按 opts 创建分发器。
func NewDispatcher(opts *config.Options, handler app.HandlerFunc) *Dispatcher {
	capacity := opts.MaxConns
	if capacity <= 0 {
		capacity = 1
	}
	queueDepth := opts.QueueDepth
	if queueDepth < 0 {
		queueDepth = 0
	}
	failureResponse := opts.FailureResponse
	if failureResponse == nil {
		failureResponse = protocol.ErrorResponse(consts.StatusInternalServerError)
	}
	if opts.HandleTimeout > 0 {
		handler = app.Chain(handler, timeout.Timeout(opts.HandleTimeout))
	}

	drained := make(chan struct{})
	close(drained)
	force, forceCancel := context.WithCancelCause(context.Background())

	d := &Dispatcher{
		handler:         handler,
		policy:          opts.AdmissionPolicy,
		capacity:        capacity,
		queueDepth:      queueDepth,
		maxRequestSize:  opts.MaxRequestSize,
		readTimeout:     opts.ReadTimeout,
		writeTimeout:    opts.WriteTimeout,
		framer:          opts.Framer,
		failureResponse: failureResponse,
		sem:             semaphore.NewWeighted(int64(capacity)),
		pool:            gopool.NewPool("dock.dispatcher", int32(capacity), gopool.NewConfig()),
		pending:         queue.New(),
		drained:         drained,
		force:           force,
		forceCancel:     forceCancel,
	}
	d.pool.SetPanicHandler(func(ctx context.Context, r any) {
		hlog.SystemLogger().CtxErrorf(ctx, "连接任务恐慌：%v\n%s", r, debug.Stack())
	})
	return d
}

// Submit 提交一个连接。
//
// 返回 nil 表示已接纳（开始处理或进入等待队列）；返回 ErrOverloaded 表示因容量已满被拒绝，
// 此时连接已失败并关闭。分发器强制关闭后，所有提交都返回 ErrForcedShutdown。
// PolicyBlock 下会阻塞至有空闲容量、ctx 结束或分发器被强制关闭。
func (d *Dispatcher) Submit(ctx context.Context, c *Connection) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return d.reject(c, errs.ErrForcedShutdown)
	}
	if d.sem.TryAcquire(1) {
		d.incActive()
		d.mu.Unlock()
		d.start(c)
		return nil
	}

	switch d.policy {
	case config.PolicyQueue:
		if d.pending.Length() < d.queueDepth {
			d.pending.Add(c)
			d.incActive()
			d.mu.Unlock()
			hlog.SystemLogger().CtxDebugf(c.Context(), "容量已满，连接进入等待队列")
			return nil
		}
	case config.PolicyBlock:
		d.incActive()
		d.mu.Unlock()
		return d.submitBlocking(ctx, c)
	}
	d.mu.Unlock()
	return d.reject(c, errs.ErrOverloaded)
}

func (d *Dispatcher) submitBlocking(ctx context.Context, c *Connection) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(d.force, cancel)
	defer stop()

	if err := d.sem.Acquire(ctx, 1); err != nil {
		d.mu.Lock()
		d.decActive(1)
		d.mu.Unlock()
		if d.force.Err() != nil {
			return d.reject(c, errs.ErrForcedShutdown)
		}
		return d.reject(c, errs.ErrOverloaded)
	}
	d.start(c)
	return nil
}

// InFlight 返回正在处理的连接数，不会超过容量。
func (d *Dispatcher) InFlight() int64 {
	return d.inFlight.Load()
}

// Queued 返回等待队列中的连接数。
func (d *Dispatcher) Queued() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending.Length()
}

// Capacity 返回最大并发连接数。
func (d *Dispatcher) Capacity() int {
	return d.capacity
}

func (d *Dispatcher) Stats() Stats {
	return Stats{
		Capacity:  d.capacity,
		Policy:    d.policy.String(),
		InFlight:  d.inFlight.Load(),
		Queued:    d.Queued(),
		Admitted:  d.admitted.Load(),
		Rejected:  d.rejected.Load(),
		Completed: d.completed.Load(),
		Failed:    d.failed.Load(),
	}
}

// ForceClose 强制终止所有处理中和排队中的连接，此后的提交均被拒绝。可重复调用。
func (d *Dispatcher) ForceClose(cause error) {
	if cause == nil {
		cause = errs.ErrForcedShutdown
	}
	d.forceCancel(cause)

	d.mu.Lock()
	d.closed = true
	var queued []*Connection
	for d.pending.Length() > 0 {
		queued = append(queued, d.pending.Remove().(*Connection))
	}
	d.mu.Unlock()

	for _, c := range queued {
		_ = c.fail(cause)
		d.failed.Add(1)
		d.done(c)
	}
	if len(queued) > 0 {
		d.mu.Lock()
		d.decActive(len(queued))
		d.mu.Unlock()
	}
}

// Wait 阻塞至没有处理中和排队中的连接，或 ctx 结束。
func (d *Dispatcher) Wait(ctx context.Context) error {
	d.mu.Lock()
	ch := d.drained
	d.mu.Unlock()
	select {
	case <-ch:
		return nil
	default:
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// 已持有容量许可，开始在任务池中处理连接。
func (d *Dispatcher) start(c *Connection) {
	d.track(c)
	d.pool.CtxGo(c.Context(), func() {
		for c != nil {
			d.serve(c)
			c = d.finish(c)
		}
	})
}

func (d *Dispatcher) track(c *Connection) {
	d.inFlight.Add(1)
	d.admitted.Add(1)
	c.SetFramer(d.framer)
	c.bindAbort(d.force)
}

// 结束一个连接。队列非空时移交许可并返回下一个连接，否则释放许可。
func (d *Dispatcher) finish(c *Connection) *Connection {
	if c.State() == StateFailed {
		d.failed.Add(1)
	} else {
		d.completed.Add(1)
	}
	d.done(c)
	d.inFlight.Add(-1)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.decActive(1)
	if !d.closed && d.pending.Length() > 0 {
		next := d.pending.Remove().(*Connection)
		d.track(next)
		return next
	}
	d.sem.Release(1)
	return nil
}

func (d *Dispatcher) serve(c *Connection) {
	ctx := c.Context()
	defer func() {
		if r := recover(); r != nil {
			hlog.SystemLogger().CtxErrorf(ctx, "连接处理恐慌：%v\n%s", r, debug.Stack())
			_ = c.fail(errs.Newf(errs.ErrorTypePrivate, r, "连接处理恐慌：%v", r))
		}
		_ = c.Close()
	}()

	req, err := c.ReadRequest(d.maxRequestSize, d.readTimeout)
	if err != nil {
		d.logFailure(c, "读取请求", err)
		return
	}
	hlog.SystemLogger().CtxTracef(ctx, "读取 %d 字节", len(req))

	if err = c.enter(StateHandling); err != nil {
		d.logFailure(c, "处理请求", err)
		return
	}
	resp, err := d.invoke(ctx, req)
	if err != nil {
		hlog.SystemLogger().CtxWarnf(ctx, "处理器出错，写回失败响应：%v", err)
		resp = d.failureResponse
	}

	if err = c.WriteResponse(resp, d.writeTimeout); err != nil {
		d.logFailure(c, "写入响应", err)
	}
}

// 调用处理器，将恐慌转为错误。
func (d *Dispatcher) invoke(ctx context.Context, req []byte) (resp []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			hlog.SystemLogger().CtxErrorf(ctx, "处理器恐慌：%v\n%s", r, debug.Stack())
			err = fmt.Errorf("处理器恐慌：%v", r)
		}
	}()
	return d.handler(ctx, req)
}

func (d *Dispatcher) reject(c *Connection, cause error) error {
	_ = c.fail(cause)
	if errors.Is(cause, errs.ErrOverloaded) {
		d.rejected.Add(1)
		hlog.SystemLogger().CtxWarnf(c.Context(), "连接被拒绝：%v，容量=%d，策略=%s", cause, d.capacity, d.policy)
	} else {
		d.failed.Add(1)
		hlog.SystemLogger().CtxInfof(c.Context(), "连接被拒绝：%v", cause)
	}
	d.done(c)
	return cause
}

func (d *Dispatcher) done(c *Connection) {
	for _, f := range d.OnConnDone {
		func() {
			defer func() {
				if r := recover(); r != nil {
					hlog.SystemLogger().CtxErrorf(c.Context(), "OnConnDone 钩子恐慌：%v", r)
				}
			}()
			f(c)
		}()
	}
}

func (d *Dispatcher) logFailure(c *Connection, stage string, err error) {
	switch {
	case errors.Is(err, errs.ErrPeerClosed):
		hlog.SystemLogger().CtxDebugf(c.Context(), "%s：%v", stage, err)
	default:
		hlog.SystemLogger().CtxWarnf(c.Context(), "%s失败：%v", stage, err)
	}
}

// 以下方法需持有 d.mu。

func (d *Dispatcher) incActive() {
	if d.active == 0 {
		d.drained = make(chan struct{})
	}
	d.active++
}

func (d *Dispatcher) decActive(n int) {
	d.active -= n
	if d.active == 0 {
		close(d.drained)
	}
}
