package app

import (
	"context"
	"reflect"

	"github.com/favbox/dock/internal/connctx"
)

// HandlerFunc 是请求处理器函数：由收到的请求字节产生响应字节。
//
// req 仅在调用期间有效，需要保留时请自行拷贝。
// 处理器不得无限阻塞；如需引擎代为限时，请使用 timeout 中间件。
type HandlerFunc func(ctx context.Context, req []byte) ([]byte, error)

// Middleware 包装一个处理器并返回新的处理器。
type Middleware func(next HandlerFunc) HandlerFunc

// Chain 依次用 mws 包装 h，mws[0] 位于最外层。
func Chain(h HandlerFunc, mws ...Middleware) HandlerFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// ConnID 返回处理器上下文携带的连接编号。
func ConnID(ctx context.Context) (uint64, bool) {
	return connctx.ID(ctx)
}

var handlerNames = make(map[uintptr]string)

// SetHandlerName 设置处理器的名称，用于日志输出。并发不安全，需在引擎启动前调用。
func SetHandlerName(handler HandlerFunc, name string) {
	handlerNames[getFuncAddr(handler)] = name
}

// GetHandlerName 获取处理器的名称。
func GetHandlerName(handler HandlerFunc) string {
	return handlerNames[getFuncAddr(handler)]
}

func getFuncAddr(v any) uintptr {
	return reflect.ValueOf(v).Pointer()
}
