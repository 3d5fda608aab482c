// Package connctx 在上下文中携带连接编号。
package connctx

import "context"

type connIDKey struct{}

// With 返回携带连接编号 id 的子上下文。
func With(ctx context.Context, id uint64) context.Context {
	return context.WithValue(ctx, connIDKey{}, id)
}

// ID 返回上下文携带的连接编号。
func ID(ctx context.Context) (uint64, bool) {
	if ctx == nil {
		return 0, false
	}
	id, ok := ctx.Value(connIDKey{}).(uint64)
	return id, ok
}
