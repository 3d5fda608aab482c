package app

import (
	"context"

	"github.com/favbox/dock/protocol"
	"github.com/favbox/dock/protocol/consts"
)

// HelloBody 是默认页面的 HTML 正文，共 76 字节。
const HelloBody = "<html><body><h1>Hello, World!</h1><p>A tiny Go HTTP server</p></body></html>"

// Static 返回一个忽略请求、总是写回 resp 的处理器。
func Static(resp []byte) HandlerFunc {
	return func(ctx context.Context, req []byte) ([]byte, error) {
		return resp, nil
	}
}

// Hello 返回写回默认 HTML 页面的处理器，响应带有匹配的 Content-Length。
func Hello() HandlerFunc {
	return Static(protocol.NewResponse(consts.StatusOK, consts.MIMETextHtml, []byte(HelloBody)))
}

// Echo 返回原样写回请求字节的处理器。
func Echo() HandlerFunc {
	return func(ctx context.Context, req []byte) ([]byte, error) {
		resp := make([]byte, len(req))
		copy(resp, req)
		return resp, nil
	}
}
