package recovery

import (
	"context"
	"fmt"

	"github.com/favbox/dock/common/hlog"
)

type options struct {
	recoveryHandler func(ctx context.Context, err any, stack []byte) ([]byte, error)
}

// Option 自定义恐慌恢复的选项。
type Option func(o *options)

// 记录恐慌与堆栈，并以错误结束本次处理，由引擎写回失败响应。
func defaultRecoveryHandler(ctx context.Context, err any, stack []byte) ([]byte, error) {
	hlog.SystemLogger().CtxErrorf(ctx, "[恐慌恢复] 恐慌=%v\n堆栈=%s", err, stack)
	return nil, fmt.Errorf("处理器恐慌：%v", err)
}

func newOptions(opts ...Option) *options {
	cfg := &options{recoveryHandler: defaultRecoveryHandler}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithRecoveryHandler 自定义恐慌恢复处理器，其返回值即本次处理的结果。
func WithRecoveryHandler(f func(ctx context.Context, err any, stack []byte) ([]byte, error)) Option {
	return func(o *options) {
		o.recoveryHandler = f
	}
}
