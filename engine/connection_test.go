package engine

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	errs "github.com/favbox/dock/common/errors"
	"github.com/favbox/dock/internal/connctx"
	"github.com/favbox/dock/network/standard"
	"github.com/favbox/dock/protocol"
	"github.com/stretchr/testify/assert"
)

func newPipeConnection(id uint64) (*Connection, net.Conn) {
	server, client := net.Pipe()
	return NewConnection(context.Background(), id, standard.NewConn(server)), client
}

func TestConnectionReadRequest(t *testing.T) {
	c, client := newPipeConnection(1)
	defer client.Close()

	go client.Write([]byte("ping"))
	req, err := c.ReadRequest(1024, time.Second)
	assert.Nil(t, err)
	assert.Equal(t, "ping", string(req))
	assert.Equal(t, int64(4), c.Inbound())
	assert.Equal(t, StateReading, c.State())
	assert.True(t, c.Deadline().IsZero())

	id, ok := connctx.ID(c.Context())
	assert.True(t, ok)
	assert.Equal(t, uint64(1), id)
	assert.Equal(t, uint64(1), c.ID())
	assert.Nil(t, c.Close())
}

func TestConnectionReadTimeout(t *testing.T) {
	c, client := newPipeConnection(2)
	defer client.Close()

	start := time.Now()
	_, err := c.ReadRequest(1024, 50*time.Millisecond)
	elapsed := time.Since(start)

	assert.True(t, errors.Is(err, errs.ErrTimeout))
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	assert.Less(t, elapsed, time.Second)
	assert.Equal(t, StateFailed, c.State())
	assert.True(t, errors.Is(c.Err(), errs.ErrTimeout))

	// 失败后流已关闭
	_, err = client.Read(make([]byte, 1))
	assert.Equal(t, io.EOF, err)
}

func TestConnectionPeerClosed(t *testing.T) {
	c, client := newPipeConnection(3)
	client.Close()

	_, err := c.ReadRequest(1024, time.Second)
	assert.True(t, errors.Is(err, errs.ErrPeerClosed))
	assert.Equal(t, StateFailed, c.State())
	assert.Equal(t, int64(0), c.Inbound())
}

func TestConnectionFramer(t *testing.T) {
	c, client := newPipeConnection(4)
	defer client.Close()
	c.SetFramer(protocol.HeaderComplete)

	go func() {
		client.Write([]byte("GET / HTTP/1.1\r\n"))
		client.Write([]byte("Host: a\r\n"))
		client.Write([]byte("\r\n"))
	}()
	req, err := c.ReadRequest(1024, time.Second)
	assert.Nil(t, err)
	assert.Equal(t, "GET / HTTP/1.1\r\nHost: a\r\n\r\n", string(req))
	assert.Equal(t, int64(len(req)), c.Inbound())
}

func TestConnectionMaxBytes(t *testing.T) {
	c, client := newPipeConnection(5)
	defer client.Close()
	c.SetFramer(func([]byte) bool { return false })

	go client.Write([]byte("0123456789"))
	req, err := c.ReadRequest(4, time.Second)
	assert.Nil(t, err)
	assert.Equal(t, "0123", string(req))
	assert.Nil(t, c.Close())

	_, err = c.ReadRequest(0, time.Second)
	assert.True(t, errors.Is(err, errs.ErrConnectionClosed))
}

func TestConnectionWriteResponse(t *testing.T) {
	c, client := newPipeConnection(6)

	done := make(chan []byte)
	go func() {
		b, _ := io.ReadAll(client)
		done <- b
	}()

	assert.Nil(t, c.WriteResponse([]byte("hello world"), time.Second))
	assert.Equal(t, StateWriting, c.State())
	assert.Nil(t, c.Close())
	assert.Equal(t, "hello world", string(<-done))
	assert.Equal(t, StateClosed, c.State())
	assert.Nil(t, c.Err())
}

func TestConnectionWriteTimeout(t *testing.T) {
	c, client := newPipeConnection(7)
	defer client.Close()

	err := c.WriteResponse([]byte("nobody reads"), 50*time.Millisecond)
	assert.True(t, errors.Is(err, errs.ErrTimeout))
	assert.Equal(t, StateFailed, c.State())
}

func TestConnectionCloseIdempotent(t *testing.T) {
	c, client := newPipeConnection(8)
	defer client.Close()

	assert.Nil(t, c.Close())
	assert.Nil(t, c.Close())
	assert.Equal(t, StateClosed, c.State())

	_, err := c.ReadRequest(16, time.Second)
	assert.True(t, errors.Is(err, errs.ErrConnectionClosed))
	assert.True(t, errors.Is(c.WriteResponse([]byte("x"), time.Second), errs.ErrConnectionClosed))
	assert.Equal(t, StateClosed, c.State())
	assert.NotNil(t, c.Context().Err())
}

func TestConnectionAbort(t *testing.T) {
	c, client := newPipeConnection(9)
	defer client.Close()

	force, cancel := context.WithCancelCause(context.Background())
	c.bindAbort(force)

	errCh := make(chan error, 1)
	go func() {
		_, err := c.ReadRequest(1024, 0)
		errCh <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel(errs.ErrForcedShutdown)

	select {
	case err := <-errCh:
		assert.True(t, errors.Is(err, errs.ErrForcedShutdown))
	case <-time.After(time.Second):
		t.Fatal("强制终止后读取仍未返回")
	}
	assert.Equal(t, StateFailed, c.State())
	assert.True(t, errors.Is(c.Err(), errs.ErrForcedShutdown))
	assert.True(t, errors.Is(context.Cause(c.Context()), errs.ErrForcedShutdown))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "reading", StateReading.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "unknown", State(42).String())
	assert.True(t, StateClosed.terminal())
	assert.False(t, StateHandling.terminal())
}

func TestShutdownSignal(t *testing.T) {
	s := NewShutdownSignal()
	assert.False(t, s.IsSet())
	assert.True(t, s.Set())
	assert.False(t, s.Set())
	assert.True(t, s.IsSet())
	select {
	case <-s.Done():
	default:
		t.Fatal("信号设置后 Done 未关闭")
	}
}
