package standard

import (
	"net"
	"time"

	"github.com/favbox/dock/network"
)

type dialer struct{}

func (d dialer) DialConnection(nw, address string, timeout time.Duration) (network.Conn, error) {
	c, err := net.DialTimeout(nw, address, timeout)
	if err != nil {
		return nil, err
	}
	return NewConn(c), nil
}

func (d dialer) DialTimeout(nw, address string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout(nw, address, timeout)
}

// NewDialer 创建标准库拨号器。
func NewDialer() network.Dialer {
	return dialer{}
}
