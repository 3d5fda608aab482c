package server

import (
	"context"
	"net"
	"time"

	"github.com/favbox/dock/common/config"
	"github.com/favbox/dock/network"
)

// WithHostPorts 指定监听的地址和端口。默认值：":8080"。
func WithHostPorts(addr string) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.Addr = addr
	}}
}

// WithNetwork 设置网络协议，可选 tcp、tcp4、tcp6 和 unix。默认值：tcp。
func WithNetwork(nw string) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.Network = nw
	}}
}

// WithBacklog 设置监听队列长度。默认值：128。
func WithBacklog(n int) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.Backlog = n
	}}
}

// WithReusePort 设置是否开启端口重用 SO_REUSEPORT。默认值：否。
func WithReusePort(b bool) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.ReusePort = b
	}}
}

// WithListenConfig 设置监听器的配置，可用于设置套接字选项。此时监听队列长度由系统决定。
func WithListenConfig(l *net.ListenConfig) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.ListenConfig = l
	}}
}

// WithListenerNewer 设置自定义的监听器创建函数。
func WithListenerNewer(f func(opt *config.Options) (network.Listener, error)) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.ListenerNewer = f
	}}
}

// WithMaxConns 设置同时处理的最大连接数。默认值：64。
func WithMaxConns(n int) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.MaxConns = n
	}}
}

// WithAdmissionPolicy 设置并发已满时的准入策略。默认值：config.PolicyQueue。
func WithAdmissionPolicy(p config.AdmissionPolicy) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.AdmissionPolicy = p
	}}
}

// WithQueueDepth 设置 PolicyQueue 下的最大排队连接数。默认值：8。
func WithQueueDepth(n int) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.QueueDepth = n
	}}
}

// WithMaxRequestSize 设置单个请求的最大字节数。默认值：1KB。
func WithMaxRequestSize(n int) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.MaxRequestSize = n
	}}
}

// WithReadTimeout 设置读取请求的超时时间。默认值：5 秒。
//
// 超时后连接将关闭。
func WithReadTimeout(t time.Duration) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.ReadTimeout = t
	}}
}

// WithWriteTimeout 设置写入响应的超时时间。默认值：5 秒。
//
// 超时后连接将关闭。
func WithWriteTimeout(t time.Duration) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.WriteTimeout = t
	}}
}

// WithHandleTimeout 设置请求处理器的超时时间。默认值：0，即不限制。
func WithHandleTimeout(t time.Duration) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.HandleTimeout = t
	}}
}

// WithExitWaitTime 设置优雅退出的宽限期。默认值：5 秒。
//
// 宽限期内连接可自然完成，之后将被强制关闭。
func WithExitWaitTime(timeout time.Duration) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.ExitWaitTimeout = timeout
	}}
}

// WithFramer 设置判断请求是否完整的函数，例如 protocol.HeaderComplete。
func WithFramer(f func(buf []byte) bool) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.Framer = f
	}}
}

// WithFailureResponse 设置处理器出错时写回的通用失败响应。默认值：500 纯文本响应。
func WithFailureResponse(b []byte) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.FailureResponse = b
	}}
}

// WithOnAccept 设置接受连接后的回调，返回 nil 则拒绝该连接。
func WithOnAccept(f func(conn net.Conn) context.Context) config.Option {
	return config.Option{F: func(o *config.Options) {
		o.OnAccept = f
	}}
}
