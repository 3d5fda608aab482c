package standard

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"syscall"

	errs "github.com/favbox/dock/common/errors"
	"github.com/favbox/dock/common/hlog"
	"github.com/favbox/dock/network"
)

var _ network.Listener = (*Listener)(nil)

// Listener 持有绑定的监听套接字，只由接受循环使用。
type Listener struct {
	ln      net.Listener
	network string
	addr    string
	backlog int
	closed  atomic.Bool
	once    sync.Once
}

// ListenOptions 描述如何打开监听器。
type ListenOptions struct {
	Backlog   int  // 传给 listen(2) 的队列长度，<= 0 使用系统上限
	ReusePort bool // 是否开启 SO_REUSEPORT

	// ListenConfig 若不为空，则优先由它创建监听器，忽略 Backlog 和 ReusePort。
	ListenConfig *net.ListenConfig
}

// Open 绑定并监听 addr。
//
// 返回的错误可用 errors.Is 识别为 ErrAddressInUse、ErrPermissionDenied 或 ErrInvalidAddress。
func Open(nw, addr string, opts ListenOptions) (*Listener, error) {
	_ = network.UnlinkUdsFile(nw, addr)

	var (
		ln  net.Listener
		err error
	)
	switch {
	case opts.ListenConfig != nil:
		ln, err = opts.ListenConfig.Listen(context.Background(), nw, addr)
	case isTCP(nw):
		ln, err = listenTCP(nw, addr, opts.Backlog, opts.ReusePort)
	default:
		ln, err = net.Listen(nw, addr)
	}
	if err != nil {
		return nil, classifyListenErr(err, addr)
	}

	hlog.SystemLogger().Infof("开始监听：网络=%s，地址=%s，队列长度=%d", nw, ln.Addr().String(), opts.Backlog)
	return &Listener{ln: ln, network: nw, addr: addr, backlog: opts.Backlog}, nil
}

// Accept 接受下一个连接。
//
// 可重试的错误带有 ErrorTypeTransient 类型，监听器损坏或已关闭带有 ErrorTypeFatal 类型。
func (l *Listener) Accept() (network.Conn, error) {
	if l.closed.Load() {
		return nil, errs.New(errs.ErrListenerClosed, errs.ErrorTypeFatal, l.addr)
	}
	c, err := l.ln.Accept()
	if err != nil {
		if l.closed.Load() || errors.Is(err, net.ErrClosed) {
			return nil, errs.New(errs.ErrListenerClosed, errs.ErrorTypeFatal, l.addr)
		}
		return nil, classifyAcceptErr(err)
	}
	return NewConn(c), nil
}

// Close 关闭监听器，可重复调用。
func (l *Listener) Close() (err error) {
	l.once.Do(func() {
		l.closed.Store(true)
		err = l.ln.Close()
		_ = network.UnlinkUdsFile(l.network, l.addr)
	})
	return
}

// Addr 返回实际监听的地址。
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

func isTCP(nw string) bool {
	switch nw {
	case "tcp", "tcp4", "tcp6":
		return true
	}
	return false
}

func classifyListenErr(err error, addr string) error {
	switch {
	case errors.Is(err, syscall.EADDRINUSE):
		return errs.Wrap(errs.ErrAddressInUse, err, errs.ErrorTypeFatal, addr)
	case errors.Is(err, syscall.EACCES), errors.Is(err, syscall.EPERM):
		return errs.Wrap(errs.ErrPermissionDenied, err, errs.ErrorTypeFatal, addr)
	default:
		return errs.Wrap(errs.ErrInvalidAddress, err, errs.ErrorTypeFatal, addr)
	}
}

// 参考 net/http 的接受循环，以下错误只影响单次接受。
var transientAcceptErrs = []error{
	syscall.ECONNABORTED,
	syscall.ECONNRESET,
	syscall.EMFILE,
	syscall.ENFILE,
	syscall.ENOBUFS,
	syscall.ENOMEM,
	syscall.EINTR,
	syscall.EAGAIN,
}

func classifyAcceptErr(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errs.New(err, errs.ErrorTypeTransient, nil)
	}
	for _, target := range transientAcceptErrs {
		if errors.Is(err, target) {
			return errs.New(err, errs.ErrorTypeTransient, nil)
		}
	}
	return errs.New(err, errs.ErrorTypeFatal, nil)
}
