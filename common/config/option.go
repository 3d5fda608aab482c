package config

import (
	"context"
	"net"
	"time"

	"github.com/favbox/dock/network"
)

const (
	defaultNetwork         = "tcp"
	defaultAddr            = ":8080"
	defaultBacklog         = 128
	defaultMaxConns        = 64
	defaultQueueDepth      = 8
	defaultMaxRequestSize  = 1024
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 5 * time.Second
	defaultWaitExitTimeout = 5 * time.Second
)

// Option 是用于配置 Options 唯一结构体。
type Option struct {
	F func(o *Options)
}

// Options 是配置项的结构体。
type Options struct {
	Network   string // 网络协议，可选 "tcp", "tcp4", "tcp6", "unix"，默认 "tcp"
	Addr      string // 监听地址，默认 ":8080"
	Backlog   int    // 监听队列长度，<= 0 时使用系统上限，默认 128
	ReusePort bool   // 是否开启 SO_REUSEPORT，默认否。SO_REUSEADDR 总是开启。

	// ListenConfig 若不为空，则由它创建监听器，此时 Backlog 由系统决定。
	ListenConfig *net.ListenConfig

	MaxConns        int             // 同时处理的最大连接数，默认 64
	AdmissionPolicy AdmissionPolicy // 并发已满时的准入策略，默认 PolicyQueue
	QueueDepth      int             // PolicyQueue 下的最大排队连接数，默认 8

	// MaxRequestSize 是单个请求的最大读取字节数，默认 1KB。
	MaxRequestSize int

	// ReadTimeout 是读取请求的硬性超时，默认 5 秒，0 代表永不超时。
	ReadTimeout time.Duration

	// WriteTimeout 是写入响应的硬性超时，默认 5 秒，0 代表永不超时。
	WriteTimeout time.Duration

	// HandleTimeout 是请求处理器的超时，默认 0 即不限制，由处理器自行保证不会无限阻塞。
	HandleTimeout time.Duration

	// ExitWaitTimeout 是优雅退出的宽限期，默认 5 秒。超时后仍未完成的连接将被强制关闭。
	ExitWaitTimeout time.Duration

	// Framer 判断已读取的字节是否构成完整请求。为空时只做一次有界读取。
	Framer func(buf []byte) bool

	// FailureResponse 是处理器出错时写回客户端的通用失败响应。
	FailureResponse []byte

	// OnAccept 在接受连接之后、提交给分发器之前调用，返回的上下文将传给处理器。
	// 适合做 IP 黑名单等检查；返回 nil 表示拒绝该连接。
	OnAccept func(conn net.Conn) context.Context

	// ListenerNewer 若不为空，则由它创建监听器，代替默认的 standard.Open。
	ListenerNewer func(opt *Options) (network.Listener, error)
}

// Apply 将指定的一组配置方法 opts 应用到配置项上。
func (o *Options) Apply(opts []Option) {
	for _, opt := range opts {
		opt.F(o)
	}
}

// NewOptions 创建基于给定配置函数的配置项。
func NewOptions(opts []Option) *Options {
	options := &Options{
		Network:         defaultNetwork,
		Addr:            defaultAddr,
		Backlog:         defaultBacklog,
		MaxConns:        defaultMaxConns,
		AdmissionPolicy: PolicyQueue,
		QueueDepth:      defaultQueueDepth,
		MaxRequestSize:  defaultMaxRequestSize,
		ReadTimeout:     defaultReadTimeout,
		WriteTimeout:    defaultWriteTimeout,
		ExitWaitTimeout: defaultWaitExitTimeout,
	}
	options.Apply(opts)
	return options
}
