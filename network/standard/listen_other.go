//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package standard

import (
	"context"
	"net"

	"github.com/favbox/dock/common/hlog"
)

// 该平台无法设置 backlog，交由系统决定。
func listenTCP(nw, addr string, backlog int, reusePort bool) (net.Listener, error) {
	if backlog > 0 || reusePort {
		hlog.SystemLogger().Debugf("当前平台忽略 backlog=%d 和 reusePort=%v", backlog, reusePort)
	}
	var lc net.ListenConfig
	return lc.Listen(context.Background(), nw, addr)
}
