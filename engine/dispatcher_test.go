package engine

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/favbox/dock/app"
	"github.com/favbox/dock/common/config"
	errs "github.com/favbox/dock/common/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions(capacity int, policy config.AdmissionPolicy, queueDepth int) *config.Options {
	opts := config.NewOptions(nil)
	opts.MaxConns = capacity
	opts.AdmissionPolicy = policy
	opts.QueueDepth = queueDepth
	opts.ReadTimeout = time.Second
	opts.WriteTimeout = time.Second
	return opts
}

// 阻塞至 release 关闭的处理器，同时记录最大并发数。
type gate struct {
	release  chan struct{}
	current  atomic.Int64
	maxSeen  atomic.Int64
	started  chan struct{}
	response []byte
}

func newGate() *gate {
	return &gate{
		release:  make(chan struct{}),
		started:  make(chan struct{}, 64),
		response: []byte("ok"),
	}
}

func (g *gate) handle(ctx context.Context, req []byte) ([]byte, error) {
	n := g.current.Add(1)
	defer g.current.Add(-1)
	for {
		m := g.maxSeen.Load()
		if n <= m || g.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	g.started <- struct{}{}
	select {
	case <-g.release:
		return g.response, nil
	case <-ctx.Done():
		return nil, context.Cause(ctx)
	}
}

// 客户端：发送请求并读取全部响应。
func roundTrip(client net.Conn, req string) <-chan string {
	out := make(chan string, 1)
	go func() {
		defer client.Close()
		_, _ = client.Write([]byte(req))
		b, _ := io.ReadAll(client)
		out <- string(b)
	}()
	return out
}

func waitDrained(t *testing.T, d *Dispatcher) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.Nil(t, d.Wait(ctx))
	assert.Equal(t, int64(0), d.InFlight())
	assert.Equal(t, 0, d.Queued())
}

func TestDispatcherServe(t *testing.T) {
	d := NewDispatcher(testOptions(4, config.PolicyQueue, 8), app.Echo())

	var results []<-chan string
	for i := 0; i < 4; i++ {
		c, client := newPipeConnection(uint64(i + 1))
		require.Nil(t, d.Submit(context.Background(), c))
		results = append(results, roundTrip(client, "ping"))
	}
	for _, r := range results {
		assert.Equal(t, "ping", <-r)
	}

	waitDrained(t, d)
	stats := d.Stats()
	assert.Equal(t, int64(4), stats.Admitted)
	assert.Equal(t, int64(4), stats.Completed)
	assert.Equal(t, int64(0), stats.Failed)
	assert.Equal(t, "queue", stats.Policy)
}

func TestDispatcherReject(t *testing.T) {
	const capacity, total = 2, 5
	g := newGate()
	d := NewDispatcher(testOptions(capacity, config.PolicyReject, 0), g.handle)

	var (
		admitted, overloaded int
		results              []<-chan string
	)
	for i := 0; i < total; i++ {
		c, client := newPipeConnection(uint64(i + 1))
		err := d.Submit(context.Background(), c)
		switch {
		case err == nil:
			admitted++
		case errors.Is(err, errs.ErrOverloaded):
			overloaded++
			assert.Equal(t, StateFailed, c.State())
			assert.True(t, errors.Is(c.Err(), errs.ErrOverloaded))
		default:
			t.Fatalf("意外的错误：%v", err)
		}
		results = append(results, roundTrip(client, "req"))
	}
	assert.Equal(t, capacity, admitted)
	assert.Equal(t, total-capacity, overloaded)

	for i := 0; i < capacity; i++ {
		<-g.started
	}
	assert.Equal(t, int64(capacity), d.InFlight())
	close(g.release)

	var ok int
	for _, r := range results {
		if <-r == "ok" {
			ok++
		}
	}
	assert.Equal(t, capacity, ok)
	assert.Equal(t, int64(capacity), g.maxSeen.Load())

	waitDrained(t, d)
	assert.Equal(t, int64(total-capacity), d.Stats().Rejected)
}

func TestDispatcherQueue(t *testing.T) {
	g := newGate()
	d := NewDispatcher(testOptions(1, config.PolicyQueue, 2), g.handle)

	var results []<-chan string
	for i := 0; i < 4; i++ {
		c, client := newPipeConnection(uint64(i + 1))
		err := d.Submit(context.Background(), c)
		if i < 3 {
			assert.Nil(t, err)
		} else {
			assert.True(t, errors.Is(err, errs.ErrOverloaded))
		}
		results = append(results, roundTrip(client, "req"))
	}
	<-g.started
	assert.Equal(t, 2, d.Queued())
	assert.Equal(t, int64(1), d.InFlight())

	close(g.release)
	var ok int
	for _, r := range results {
		if <-r == "ok" {
			ok++
		}
	}
	assert.Equal(t, 3, ok)
	assert.Equal(t, int64(1), g.maxSeen.Load())

	waitDrained(t, d)
	stats := d.Stats()
	assert.Equal(t, int64(3), stats.Admitted)
	assert.Equal(t, int64(3), stats.Completed)
	assert.Equal(t, int64(1), stats.Rejected)
}

func TestDispatcherBlock(t *testing.T) {
	g := newGate()
	d := NewDispatcher(testOptions(1, config.PolicyBlock, 0), g.handle)

	c1, client1 := newPipeConnection(1)
	require.Nil(t, d.Submit(context.Background(), c1))
	r1 := roundTrip(client1, "req")
	<-g.started

	c2, client2 := newPipeConnection(2)
	submitted := make(chan error, 1)
	go func() {
		submitted <- d.Submit(context.Background(), c2)
	}()
	select {
	case <-submitted:
		t.Fatal("容量已满时提交未阻塞")
	case <-time.After(50 * time.Millisecond):
	}

	// 调用方放弃等待
	c3, client3 := newPipeConnection(3)
	defer client3.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.True(t, errors.Is(d.Submit(ctx, c3), errs.ErrOverloaded))

	r2 := roundTrip(client2, "req")
	close(g.release)
	assert.Nil(t, <-submitted)
	assert.Equal(t, "ok", <-r1)
	assert.Equal(t, "ok", <-r2)
	assert.Equal(t, int64(1), g.maxSeen.Load())
	waitDrained(t, d)
}

func TestDispatcherHandlerFailure(t *testing.T) {
	var calls atomic.Int32
	handler := func(ctx context.Context, req []byte) ([]byte, error) {
		switch calls.Add(1) {
		case 1:
			return nil, errors.New("boom")
		case 2:
			panic("oops")
		}
		return []byte("fine"), nil
	}
	opts := testOptions(1, config.PolicyQueue, 4)
	d := NewDispatcher(opts, handler)

	for i, want := range []string{"HTTP/1.1 500 Internal Server Error", "HTTP/1.1 500 Internal Server Error", "fine"} {
		c, client := newPipeConnection(uint64(i + 1))
		require.Nil(t, d.Submit(context.Background(), c))
		got := <-roundTrip(client, "req")
		assert.True(t, strings.HasPrefix(got, want), got)
	}
	waitDrained(t, d)
	assert.Equal(t, int64(3), d.Stats().Completed)
}

func TestDispatcherCustomFailureResponse(t *testing.T) {
	opts := testOptions(1, config.PolicyQueue, 0)
	opts.FailureResponse = []byte("sorry")
	d := NewDispatcher(opts, func(ctx context.Context, req []byte) ([]byte, error) {
		return nil, errors.New("boom")
	})
	c, client := newPipeConnection(1)
	require.Nil(t, d.Submit(context.Background(), c))
	assert.Equal(t, "sorry", <-roundTrip(client, "req"))
	waitDrained(t, d)
}

func TestDispatcherHandleTimeout(t *testing.T) {
	opts := testOptions(1, config.PolicyQueue, 0)
	opts.HandleTimeout = 20 * time.Millisecond
	d := NewDispatcher(opts, func(ctx context.Context, req []byte) ([]byte, error) {
		<-ctx.Done()
		return []byte("late"), nil
	})
	c, client := newPipeConnection(1)
	require.Nil(t, d.Submit(context.Background(), c))
	got := <-roundTrip(client, "req")
	assert.True(t, strings.HasPrefix(got, "HTTP/1.1 500"), got)
	waitDrained(t, d)
}

func TestDispatcherForceClose(t *testing.T) {
	g := newGate()
	d := NewDispatcher(testOptions(1, config.PolicyQueue, 1), g.handle)

	var (
		mu    sync.Mutex
		ended []*Connection
	)
	d.OnConnDone = append(d.OnConnDone, func(c *Connection) {
		mu.Lock()
		ended = append(ended, c)
		mu.Unlock()
	})

	c1, client1 := newPipeConnection(1)
	require.Nil(t, d.Submit(context.Background(), c1))
	r1 := roundTrip(client1, "req")
	<-g.started

	c2, client2 := newPipeConnection(2)
	require.Nil(t, d.Submit(context.Background(), c2))
	r2 := roundTrip(client2, "req")

	d.ForceClose(errs.ErrForcedShutdown)
	assert.Equal(t, "", <-r1)
	assert.Equal(t, "", <-r2)
	waitDrained(t, d)

	mu.Lock()
	assert.Len(t, ended, 2)
	for _, c := range ended {
		assert.Equal(t, StateFailed, c.State())
		assert.True(t, errors.Is(c.Err(), errs.ErrForcedShutdown), c.Err())
	}
	mu.Unlock()

	c3, client3 := newPipeConnection(3)
	defer client3.Close()
	assert.True(t, errors.Is(d.Submit(context.Background(), c3), errs.ErrForcedShutdown))
	assert.Equal(t, int64(3), d.Stats().Failed)
}

func TestDispatcherPeerClosedIsolation(t *testing.T) {
	d := NewDispatcher(testOptions(4, config.PolicyQueue, 0), app.Echo())

	var failed atomic.Int32
	d.OnConnDone = append(d.OnConnDone, func(c *Connection) {
		if errors.Is(c.Err(), errs.ErrPeerClosed) {
			failed.Add(1)
		}
	})

	bad, badClient := newPipeConnection(1)
	badClient.Close()
	require.Nil(t, d.Submit(context.Background(), bad))

	good, goodClient := newPipeConnection(2)
	require.Nil(t, d.Submit(context.Background(), good))
	assert.Equal(t, "hello", <-roundTrip(goodClient, "hello"))

	waitDrained(t, d)
	assert.Equal(t, int32(1), failed.Load())
	assert.Equal(t, StateFailed, bad.State())
	assert.Equal(t, StateClosed, good.State())
}
