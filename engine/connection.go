package engine

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/gopkg/lang/mcache"
	errs "github.com/favbox/dock/common/errors"
	"github.com/favbox/dock/internal/connctx"
	"github.com/favbox/dock/network"
)

// State 是连接的生命周期状态。Closed 和 Failed 为终态，进入后不再改变。
type State int32

const (
	StateReading State = iota
	StateHandling
	StateWriting
	StateClosed
	StateFailed
)

var stateNames = [...]string{"reading", "handling", "writing", "closed", "failed"}

func (s State) String() string {
	if s >= StateReading && s <= StateFailed {
		return stateNames[s]
	}
	return "unknown"
}

func (s State) terminal() bool {
	return s == StateClosed || s == StateFailed
}

const (
	maxConsecutiveEmptyReads  = 100
	maxConsecutiveEmptyWrites = 100
)

// Connection 表示一条已接受的连接，由分发器独占直至进入终态。
type Connection struct {
	id     uint64
	conn   network.Conn
	ctx    context.Context
	cancel context.CancelCauseFunc
	framer func(buf []byte) bool

	state    atomic.Int32
	inbound  atomic.Int64
	deadline atomic.Int64

	mu      sync.Mutex
	err     error
	aborted atomic.Pointer[error]

	buf []byte

	closeOnce    sync.Once
	rawCloseOnce sync.Once
	stopAbort    func() bool
}

// NewConnection 包装已接受的 conn。ctx 为 nil 时使用 context.Background()。
func NewConnection(ctx context.Context, id uint64, conn network.Conn) *Connection {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancelCause(connctx.With(ctx, id))
	return &Connection{
		id:     id,
		conn:   conn,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (c *Connection) ID() uint64 { return c.id }

// Conn 返回底层连接。
func (c *Connection) Conn() network.Conn { return c.conn }

func (c *Connection) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// Context 返回携带连接编号的上下文，连接结束或被强制终止后取消。
func (c *Connection) Context() context.Context { return c.ctx }

func (c *Connection) State() State { return State(c.state.Load()) }

// Inbound 返回累计读取的字节数。
func (c *Connection) Inbound() int64 { return c.inbound.Load() }

// Deadline 返回当前读写操作的截止时间，零值表示没有截止时间。
func (c *Connection) Deadline() time.Time {
	if ns := c.deadline.Load(); ns != 0 {
		return time.Unix(0, ns)
	}
	return time.Time{}
}

// Err 返回连接失败的原因，未失败时为 nil。
func (c *Connection) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// SetFramer 设置判断请求是否完整的函数，为空时 ReadRequest 只读取一次。
func (c *Connection) SetFramer(f func(buf []byte) bool) {
	c.framer = f
}

// ReadRequest 读取一个请求，最多 maxBytes 字节。
//
// timeout 是整个读取过程的硬性上限，<= 0 表示不限时。
// 返回的字节属于连接的缓冲区，仅在连接关闭前有效。
// 失败时连接进入 StateFailed 并关闭，错误可识别为 ErrTimeout、ErrPeerClosed、
// ErrForcedShutdown 或 ErrorTypeIO 类型的 *errors.Error。
func (c *Connection) ReadRequest(maxBytes int, timeout time.Duration) ([]byte, error) {
	if err := c.enter(StateReading); err != nil {
		return nil, err
	}
	if maxBytes <= 0 {
		return nil, c.fail(errs.Newf(errs.ErrorTypeIO, maxBytes, "无效的请求大小上限：%d", maxBytes))
	}
	if cap(c.buf) < maxBytes {
		c.freeBuf()
		c.buf = mcache.Malloc(maxBytes)
	}
	buf := c.buf[:maxBytes]
	deadline := c.startDeadline(timeout)

	n, empty := 0, 0
	for n < maxBytes {
		if err := c.armRead(deadline); err != nil {
			return nil, c.fail(err)
		}
		m, err := c.conn.Read(buf[n:])
		if m > 0 {
			n += m
			c.inbound.Add(int64(m))
		}
		if err != nil {
			// 对端写完后半关闭，已读到的内容即为完整请求
			if n > 0 && errors.Is(err, io.EOF) && c.aborted.Load() == nil {
				break
			}
			return nil, c.fail(c.normalize(err))
		}
		if m == 0 {
			if empty++; empty >= maxConsecutiveEmptyReads {
				return nil, c.fail(errs.New(errs.ErrNothingRead, errs.ErrorTypeIO, nil))
			}
			continue
		}
		empty = 0
		if c.framer == nil || c.framer(buf[:n]) {
			break
		}
	}
	c.deadline.Store(0)
	return buf[:n], nil
}

// WriteResponse 写入 b 的全部字节，部分写入时继续重试直至完成、超时或出错。
//
// timeout 是整个写入过程的硬性上限，<= 0 表示不限时。
func (c *Connection) WriteResponse(b []byte, timeout time.Duration) error {
	if err := c.enter(StateWriting); err != nil {
		return err
	}
	deadline := c.startDeadline(timeout)

	written, empty := 0, 0
	for written < len(b) {
		if err := c.armWrite(deadline); err != nil {
			return c.fail(err)
		}
		n, err := c.conn.Write(b[written:])
		written += n
		if err != nil {
			return c.fail(c.normalize(err))
		}
		if n == 0 {
			if empty++; empty >= maxConsecutiveEmptyWrites {
				return c.fail(errs.New(io.ErrNoProgress, errs.ErrorTypeIO, nil))
			}
			continue
		}
		empty = 0
	}
	c.deadline.Store(0)
	return nil
}

// Close 关闭连接并释放缓冲区，只有首次调用生效。
func (c *Connection) Close() (err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		if !c.State().terminal() {
			c.state.Store(int32(StateClosed))
		}
		c.mu.Unlock()

		err = c.closeRaw()
		if c.stopAbort != nil {
			c.stopAbort()
		}
		c.cancel(errs.ErrConnectionClosed)
		c.freeBuf()
	})
	return
}

// 进入非终态 s。已被强制终止时转为失败，已处于终态时返回 ErrConnectionClosed。
func (c *Connection) enter(s State) error {
	if cause := c.aborted.Load(); cause != nil {
		return c.fail(*cause)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.State().terminal() {
		return errs.ErrConnectionClosed
	}
	c.state.Store(int32(s))
	return nil
}

// 将连接置为失败并关闭，返回 err 本身。已处于终态时只返回 err。
func (c *Connection) fail(err error) error {
	c.mu.Lock()
	if c.State().terminal() {
		c.mu.Unlock()
		return err
	}
	c.err = err
	c.state.Store(int32(StateFailed))
	c.mu.Unlock()

	_ = c.Close()
	return err
}

// 由其他协程调用：记录强制终止原因并关闭底层流，使阻塞中的读写立即返回。
// 状态的变更仍由持有连接的协程完成。
func (c *Connection) abort(cause error) {
	if cause == nil {
		cause = errs.ErrForcedShutdown
	}
	if c.aborted.CompareAndSwap(nil, &cause) {
		c.cancel(cause)
		_ = c.closeRaw()
	}
}

// 在 force 结束时强制终止连接。
func (c *Connection) bindAbort(force context.Context) {
	c.stopAbort = context.AfterFunc(force, func() {
		c.abort(context.Cause(force))
	})
}

func (c *Connection) closeRaw() (err error) {
	c.rawCloseOnce.Do(func() {
		err = c.conn.Close()
		if errors.Is(err, net.ErrClosed) {
			err = nil
		}
	})
	return
}

func (c *Connection) freeBuf() {
	if c.buf != nil {
		mcache.Free(c.buf)
		c.buf = nil
	}
}

func (c *Connection) startDeadline(timeout time.Duration) time.Time {
	if timeout <= 0 {
		c.deadline.Store(0)
		return time.Time{}
	}
	d := time.Now().Add(timeout)
	c.deadline.Store(d.UnixNano())
	return d
}

func (c *Connection) armRead(deadline time.Time) error {
	t, err := remaining(deadline)
	if err != nil {
		return err
	}
	if err = c.conn.SetReadTimeout(t); err != nil {
		return c.normalize(err)
	}
	return nil
}

func (c *Connection) armWrite(deadline time.Time) error {
	t, err := remaining(deadline)
	if err != nil {
		return err
	}
	if err = c.conn.SetWriteTimeout(t); err != nil {
		return c.normalize(err)
	}
	return nil
}

func remaining(deadline time.Time) (time.Duration, error) {
	if deadline.IsZero() {
		return 0, nil
	}
	t := time.Until(deadline)
	if t <= 0 {
		return 0, errs.ErrTimeout
	}
	return t, nil
}

// 将底层错误归类为超时、对端关闭、强制终止或 IO 错误。
func (c *Connection) normalize(err error) error {
	if cause := c.aborted.Load(); cause != nil {
		return *cause
	}
	if en, ok := c.conn.(network.ErrorNormalization); ok {
		err = en.ToDockError(err)
	}
	if errors.Is(err, errs.ErrTimeout) || errors.Is(err, errs.ErrPeerClosed) {
		return err
	}
	return errs.New(err, errs.ErrorTypeIO, nil)
}
