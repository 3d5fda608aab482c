package engine

import (
	"sync"
	"sync/atomic"
)

// ShutdownSignal 是只能被设置一次的退出信号，由监听循环和所有连接共同观察。
type ShutdownSignal struct {
	once sync.Once
	set  atomic.Bool
	done chan struct{}
}

// NewShutdownSignal 创建未设置的退出信号。
func NewShutdownSignal() *ShutdownSignal {
	return &ShutdownSignal{done: make(chan struct{})}
}

// Set 设置信号，仅首次调用返回 true。
func (s *ShutdownSignal) Set() (first bool) {
	s.once.Do(func() {
		s.set.Store(true)
		close(s.done)
		first = true
	})
	return
}

// IsSet 报告信号是否已设置。
func (s *ShutdownSignal) IsSet() bool {
	return s.set.Load()
}

// Done 返回信号设置后关闭的通道。
func (s *ShutdownSignal) Done() <-chan struct{} {
	return s.done
}
