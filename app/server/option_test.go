package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/favbox/dock/common/config"
	"github.com/favbox/dock/network"
	"github.com/favbox/dock/protocol"
	"github.com/stretchr/testify/assert"
)

func TestOptions(t *testing.T) {
	lc := &net.ListenConfig{}
	onAccept := func(conn net.Conn) context.Context { return context.Background() }
	newer := func(opt *config.Options) (network.Listener, error) { return nil, nil }
	opt := config.NewOptions([]config.Option{
		WithHostPorts("127.0.0.1:9000"),
		WithNetwork("tcp4"),
		WithBacklog(16),
		WithReusePort(true),
		WithListenConfig(lc),
		WithListenerNewer(newer),
		WithMaxConns(4),
		WithAdmissionPolicy(config.PolicyReject),
		WithQueueDepth(2),
		WithMaxRequestSize(4096),
		WithReadTimeout(time.Second),
		WithWriteTimeout(2 * time.Second),
		WithHandleTimeout(3 * time.Second),
		WithExitWaitTime(4 * time.Second),
		WithFramer(protocol.HeaderComplete),
		WithFailureResponse([]byte("oops")),
		WithOnAccept(onAccept),
	})

	assert.Equal(t, "127.0.0.1:9000", opt.Addr)
	assert.Equal(t, "tcp4", opt.Network)
	assert.Equal(t, 16, opt.Backlog)
	assert.True(t, opt.ReusePort)
	assert.Equal(t, lc, opt.ListenConfig)
	assert.NotNil(t, opt.ListenerNewer)
	assert.Equal(t, 4, opt.MaxConns)
	assert.Equal(t, config.PolicyReject, opt.AdmissionPolicy)
	assert.Equal(t, 2, opt.QueueDepth)
	assert.Equal(t, 4096, opt.MaxRequestSize)
	assert.Equal(t, time.Second, opt.ReadTimeout)
	assert.Equal(t, 2*time.Second, opt.WriteTimeout)
	assert.Equal(t, 3*time.Second, opt.HandleTimeout)
	assert.Equal(t, 4*time.Second, opt.ExitWaitTimeout)
	assert.True(t, opt.Framer([]byte("GET / HTTP/1.1\r\n\r\n")))
	assert.Equal(t, "oops", string(opt.FailureResponse))
	assert.NotNil(t, opt.OnAccept)
}

func TestDefaultOptions(t *testing.T) {
	opt := config.NewOptions([]config.Option{})
	assert.Equal(t, ":8080", opt.Addr)
	assert.Equal(t, "tcp", opt.Network)
	assert.Equal(t, 128, opt.Backlog)
	assert.False(t, opt.ReusePort)
	assert.Equal(t, 64, opt.MaxConns)
	assert.Equal(t, config.PolicyQueue, opt.AdmissionPolicy)
	assert.Equal(t, 8, opt.QueueDepth)
	assert.Equal(t, 1024, opt.MaxRequestSize)
	assert.Equal(t, 5*time.Second, opt.ReadTimeout)
	assert.Equal(t, 5*time.Second, opt.WriteTimeout)
	assert.Equal(t, time.Duration(0), opt.HandleTimeout)
	assert.Equal(t, 5*time.Second, opt.ExitWaitTimeout)
	assert.Nil(t, opt.Framer)
	assert.Nil(t, opt.FailureResponse)
	assert.Nil(t, opt.OnAccept)
	assert.Nil(t, opt.ListenerNewer)
}
