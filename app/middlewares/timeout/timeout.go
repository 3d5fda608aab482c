// Package timeout 为请求处理器设置处理时限。
package timeout

import (
	"context"
	"time"

	"github.com/bytedance/gopkg/util/gopool"
	"github.com/favbox/dock/app"
	errs "github.com/favbox/dock/common/errors"
	"github.com/favbox/dock/common/hlog"
	"github.com/favbox/dock/common/timer"
)

type result struct {
	resp []byte
	err  error
}

// Timeout 返回限制处理器执行时长的中间件，d <= 0 时原样返回处理器。
//
// 超时后处理器的上下文被取消、其结果被丢弃，并返回 ErrHandleTimeout。
// 处理器仍在后台运行至返回，因此请求字节会被拷贝一份交给它。
func Timeout(d time.Duration) app.Middleware {
	return func(next app.HandlerFunc) app.HandlerFunc {
		if d <= 0 {
			return next
		}
		return func(ctx context.Context, req []byte) ([]byte, error) {
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			owned := make([]byte, len(req))
			copy(owned, req)

			done := make(chan result, 1)
			gopool.CtxGo(ctx, func() {
				resp, err := next(ctx, owned)
				done <- result{resp: resp, err: err}
			})

			t := timer.AcquireTimer(d)
			defer timer.ReleaseTimer(t)
			select {
			case r := <-done:
				return r.resp, r.err
			case <-t.C:
				hlog.SystemLogger().CtxWarnf(ctx, "请求处理超过 %v，结果将被丢弃", d)
				return nil, errs.New(errs.ErrHandleTimeout, errs.ErrorTypePrivate, d)
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
}
