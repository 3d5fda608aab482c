package dialer

import (
	"net"
	"time"

	"github.com/favbox/dock/network"
	"github.com/favbox/dock/network/standard"
)

// defaultDialer 是全局拨号器，非 windows 平台由 default.go 替换为 netpoll 实现。
var defaultDialer = standard.NewDialer()

// SetDialer 设置全局默认拨号器。
func SetDialer(dialer network.Dialer) {
	defaultDialer = dialer
}

// DefaultDialer 返回全局拨号器。
func DefaultDialer() network.Dialer {
	return defaultDialer
}

// DialConnection 用全局拨号器拨打对端，获取网络连接。
func DialConnection(network, address string, timeout time.Duration) (network.Conn, error) {
	return defaultDialer.DialConnection(network, address, timeout)
}

// DialTimeout 用全局拨号器拨打对端，获取 net.Conn 连接。
func DialTimeout(network, address string, timeout time.Duration) (net.Conn, error) {
	return defaultDialer.DialTimeout(network, address, timeout)
}
