package standard

import (
	"errors"
	"io"
	"net"
	"syscall"
	"time"

	errs "github.com/favbox/dock/common/errors"
	"github.com/favbox/dock/network"
)

var (
	_ network.Conn               = (*Conn)(nil)
	_ network.ErrorNormalization = (*Conn)(nil)
)

// Conn 实现基于 net 的网络连接。
//
// 超时时长在每次设置时换算为绝对截止时间。
type Conn struct {
	net.Conn
}

// NewConn 将标准库连接转为 network.Conn。
func NewConn(c net.Conn) *Conn {
	return &Conn{Conn: c}
}

func (c *Conn) SetReadTimeout(t time.Duration) error {
	return c.Conn.SetReadDeadline(deadline(t))
}

func (c *Conn) SetWriteTimeout(t time.Duration) error {
	return c.Conn.SetWriteDeadline(deadline(t))
}

// --- 实现 network.ErrorNormalization ---

func (c *Conn) ToDockError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ENOTCONN) ||
		errors.Is(err, io.ErrClosedPipe) {
		return errs.ErrPeerClosed
	}

	// 统一超时错误
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errs.ErrTimeout
	}

	if errors.Is(err, net.ErrClosed) {
		return errs.ErrConnectionClosed
	}
	return err
}

func deadline(t time.Duration) time.Time {
	if t <= 0 {
		return time.Time{}
	}
	return time.Now().Add(t)
}
