package network

import (
	"net"
	"time"
)

// Conn 表示引擎读写的一条字节流连接。
type Conn interface {
	net.Conn

	// SetReadTimeout 设置此后读取操作的超时时长，0 代表永不超时。
	SetReadTimeout(t time.Duration) error
	// SetWriteTimeout 设置此后写入操作的超时时长，0 代表永不超时。
	SetWriteTimeout(t time.Duration) error
}

// Listener 表示绑定的监听端点，持续产生新连接直至关闭。
type Listener interface {
	// Accept 阻塞至有新连接、监听器关闭或出错。
	Accept() (Conn, error)
	// Close 关闭监听器，可重复调用。未完成的 Accept 将返回错误。
	Close() error
	// Addr 返回监听地址。
	Addr() net.Addr
}

// ErrorNormalization 表示错误的规范化程序。
type ErrorNormalization interface {
	// ToDockError 将底层网络错误转为 dock 的哨兵错误。
	ToDockError(err error) error
}
