// Package timer 复用 *time.Timer，减少高频限时场景下的分配。
package timer

import (
	"context"
	"sync"
	"time"
)

var timerPool sync.Pool

// AcquireTimer 从池中取出一个 timeout 后触发的计时器。
func AcquireTimer(timeout time.Duration) *time.Timer {
	v := timerPool.Get()
	if v == nil {
		return time.NewTimer(timeout)
	}
	t := v.(*time.Timer)
	if t.Reset(timeout) {
		panic("BUG: 池中取出的计时器仍在运行")
	}
	return t
}

// ReleaseTimer 停止计时器并放回池中。放回后不得再访问 t。
func ReleaseTimer(t *time.Timer) {
	if !t.Stop() {
		// 已触发但无人接收，排空通道以便复用
		select {
		case <-t.C:
		default:
		}
	}
	timerPool.Put(t)
}

// Sleep 等待 d 或 ctx 结束，以先到者为准。ctx 先结束时返回 ctx.Err()。
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := AcquireTimer(d)
	defer ReleaseTimer(t)
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
