package network

import (
	"net"
	"time"
)

// Dialer 定义连接拨号器接口。
type Dialer interface {
	// DialConnection 拨打对端，获取 Conn 连接。
	DialConnection(network, address string, timeout time.Duration) (conn Conn, err error)

	// DialTimeout 拨打对端，获取 net.Conn 连接。
	DialTimeout(network, address string, timeout time.Duration) (conn net.Conn, err error)
}
