//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package standard

import (
	"net"
	"os"

	"github.com/favbox/dock/common/hlog"
	"golang.org/x/sys/unix"
)

// 直接通过系统调用创建 TCP 监听套接字，以便设置 backlog 和复用选项。
func listenTCP(nw, addr string, backlog int, reusePort bool) (net.Listener, error) {
	tcpAddr, err := net.ResolveTCPAddr(nw, addr)
	if err != nil {
		return nil, err
	}
	family, sa, err := sockaddr(nw, tcpAddr)
	if err != nil {
		return nil, err
	}

	fd, err := unix.Socket(family, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return nil, os.NewSyscallError("socket", err)
	}
	unix.CloseOnExec(fd)

	// 选项设置失败只记录，不中止监听
	if err = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		hlog.SystemLogger().Warnf("设置 SO_REUSEADDR 失败：%v", err)
	}
	if reusePort {
		if err = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
			hlog.SystemLogger().Warnf("设置 SO_REUSEPORT 失败：%v", err)
		}
	}
	if family == unix.AF_INET6 {
		_ = unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, 1)
	}

	if err = unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return nil, os.NewSyscallError("bind", err)
	}
	if backlog <= 0 {
		backlog = unix.SOMAXCONN
	}
	if err = unix.Listen(fd, backlog); err != nil {
		_ = unix.Close(fd)
		return nil, os.NewSyscallError("listen", err)
	}

	// FileListener 会复制描述符，原文件需关闭
	f := os.NewFile(uintptr(fd), "dock-listener")
	defer f.Close()
	return net.FileListener(f)
}

// 未指定 IP 的 "tcp" 地址按 IPv4 通配地址监听。
func sockaddr(nw string, addr *net.TCPAddr) (int, unix.Sockaddr, error) {
	ip4 := addr.IP.To4()
	if nw != "tcp6" && (addr.IP == nil || ip4 != nil) {
		sa := &unix.SockaddrInet4{Port: addr.Port}
		if ip4 != nil {
			copy(sa.Addr[:], ip4)
		}
		return unix.AF_INET, sa, nil
	}

	sa := &unix.SockaddrInet6{Port: addr.Port}
	if addr.IP != nil {
		copy(sa.Addr[:], addr.IP.To16())
	}
	if addr.Zone != "" {
		ifi, err := net.InterfaceByName(addr.Zone)
		if err != nil {
			return 0, nil, err
		}
		sa.ZoneId = uint32(ifi.Index)
	}
	return unix.AF_INET6, sa, nil
}
