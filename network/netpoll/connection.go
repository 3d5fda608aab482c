package netpoll

import (
	"errors"
	"io"
	"syscall"

	"github.com/cloudwego/netpoll"
	errs "github.com/favbox/dock/common/errors"
	"github.com/favbox/dock/network"
)

var (
	_ network.Conn               = (*Conn)(nil)
	_ network.ErrorNormalization = (*Conn)(nil)
)

// Conn 实现基于 netpoll 的网络连接。
type Conn struct {
	netpoll.Connection
}

// --- 实现 network.ErrorNormalization ---

func (c *Conn) ToDockError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, netpoll.ErrEOF) || errors.Is(err, io.EOF) ||
		errors.Is(err, netpoll.ErrConnClosed) || errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET) {
		return errs.ErrPeerClosed
	}

	// 目前只统一读取超时
	if errors.Is(err, netpoll.ErrReadTimeout) {
		return errs.ErrTimeout
	}
	return err
}

// --- 实现 net.Conn ---

func (c *Conn) Read(p []byte) (int, error) {
	n, err := c.Connection.Read(p)
	return n, normalizeErr(err)
}

func normalizeErr(err error) error {
	if errors.Is(err, netpoll.ErrEOF) {
		return io.EOF
	}
	return err
}

// 将 netpoll 连接转为 dock 连接
func newConn(c netpoll.Connection) network.Conn {
	return &Conn{Connection: c}
}
