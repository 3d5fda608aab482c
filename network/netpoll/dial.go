package netpoll

import (
	"io"
	"net"
	"time"

	"github.com/cloudwego/netpoll"
	"github.com/favbox/dock/network"
)

func init() {
	// 禁用 netpoll 的日志
	netpoll.SetLoggerOutput(io.Discard)
}

type dialer struct {
	netpoll.Dialer
}

func (d dialer) DialConnection(nw, address string, timeout time.Duration) (network.Conn, error) {
	connection, err := d.Dialer.DialConnection(nw, address, timeout)
	if err != nil {
		return nil, err
	}
	return newConn(connection), nil
}

func (d dialer) DialTimeout(nw, address string, timeout time.Duration) (net.Conn, error) {
	return d.Dialer.DialTimeout(nw, address, timeout)
}

// NewDialer 创建 netpoll 拨号器。
func NewDialer() network.Dialer {
	return dialer{Dialer: netpoll.NewDialer()}
}
