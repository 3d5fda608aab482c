// probe 向 dock 服务器并发发起请求，并汇总响应情况。
//
// 用法：
//
//	probe -addr 127.0.0.1:8080 -n 100
package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	errs "github.com/favbox/dock/common/errors"
	"github.com/favbox/dock/network"
	"github.com/favbox/dock/network/dialer"
	"golang.org/x/sync/errgroup"
)

// result 是单次请求的结果。
type result struct {
	latency time.Duration
	size    int
	status  string
	err     error
}

// summary 汇总所有请求的结果。
type summary struct {
	Total     int
	Responded int
	Empty     int
	Failed    int
	Statuses  map[string]int
	P50, P99  time.Duration
}

func main() {
	var (
		addr    = flag.String("addr", "127.0.0.1:8080", "服务器地址")
		n       = flag.Int("n", 10, "并发请求数")
		timeout = flag.Duration("timeout", 5*time.Second, "单次请求的超时")
		req     = flag.String("request", "GET / HTTP/1.1\r\nHost: dock\r\n\r\n", "请求内容")
	)
	flag.Parse()

	s := run(dialer.DefaultDialer(), *addr, *n, *timeout, []byte(*req))
	fmt.Print(s.String())
	if s.Failed > 0 {
		os.Exit(1)
	}
}

// run 并发发起 n 个请求。
func run(d network.Dialer, addr string, n int, timeout time.Duration, req []byte) summary {
	var (
		mu      sync.Mutex
		results = make([]result, 0, n)
		eg      errgroup.Group
	)
	for i := 0; i < n; i++ {
		eg.Go(func() error {
			r := probe(d, addr, timeout, req)
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()
	return summarize(results)
}

func probe(d network.Dialer, addr string, timeout time.Duration, req []byte) (r result) {
	start := time.Now()
	defer func() { r.latency = time.Since(start) }()

	conn, err := d.DialConnection("tcp", addr, timeout)
	if err != nil {
		r.err = err
		return
	}
	defer conn.Close()

	if err = conn.SetReadTimeout(timeout); err != nil {
		r.err = err
		return
	}
	if err = conn.SetWriteTimeout(timeout); err != nil {
		r.err = err
		return
	}
	if _, err = conn.Write(req); err != nil {
		r.err = normalize(conn, err)
		return
	}
	resp, err := io.ReadAll(conn)
	r.size = len(resp)
	if err != nil && len(resp) == 0 {
		r.err = normalize(conn, err)
		return
	}
	if line, _, ok := bytes.Cut(resp, []byte("\r\n")); ok {
		r.status = string(line)
	}
	return
}

func normalize(conn network.Conn, err error) error {
	if en, ok := conn.(network.ErrorNormalization); ok {
		return en.ToDockError(err)
	}
	return err
}

func summarize(results []result) summary {
	s := summary{Total: len(results), Statuses: make(map[string]int)}
	var latencies []time.Duration
	for _, r := range results {
		switch {
		case r.err != nil && !errors.Is(r.err, errs.ErrPeerClosed):
			s.Failed++
		case r.size == 0:
			// 服务器未写入任何内容即关闭，通常是过载被拒
			s.Empty++
		default:
			s.Responded++
			s.Statuses[r.status]++
			latencies = append(latencies, r.latency)
		}
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	if len(latencies) > 0 {
		s.P50 = latencies[len(latencies)/2]
		s.P99 = latencies[(len(latencies)*99)/100]
	}
	return s
}

func (s summary) String() string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "请求=%d 响应=%d 空响应=%d 失败=%d\n", s.Total, s.Responded, s.Empty, s.Failed)
	statuses := make([]string, 0, len(s.Statuses))
	for k := range s.Statuses {
		statuses = append(statuses, k)
	}
	sort.Strings(statuses)
	for _, k := range statuses {
		fmt.Fprintf(&b, "  %s: %d\n", k, s.Statuses[k])
	}
	if s.Responded > 0 {
		fmt.Fprintf(&b, "延迟 p50=%v p99=%v\n", s.P50, s.P99)
	}
	return b.String()
}
