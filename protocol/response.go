// Package protocol 提供 HTTP/1.1 的最小字节帧工具：组装响应、判断请求头是否完整。
//
// 引擎本身不解析 HTTP，这些工具供请求处理器使用。
package protocol

import (
	"github.com/favbox/dock/internal/bytesconv"
	"github.com/favbox/dock/protocol/consts"
)

var (
	strCRLF          = []byte("\r\n")
	strContentType   = []byte("Content-Type: ")
	strContentLength = []byte("Content-Length: ")
	strConnection    = []byte("Connection: close\r\n")
)

// NewResponse 组装完整的 HTTP/1.1 响应字节：状态行、Content-Type、Content-Length 与正文。
func NewResponse(statusCode int, contentType string, body []byte) []byte {
	return AppendResponse(nil, statusCode, contentType, body, false)
}

// AppendResponse 向 dst 追加 HTTP/1.1 响应。closeConn 为真时附加 "Connection: close" 标头。
func AppendResponse(dst []byte, statusCode int, contentType string, body []byte, closeConn bool) []byte {
	dst = append(dst, consts.StatusLine(statusCode)...)
	if contentType != "" {
		dst = append(dst, strContentType...)
		dst = append(dst, contentType...)
		dst = append(dst, strCRLF...)
	}
	dst = append(dst, strContentLength...)
	dst = bytesconv.AppendUint(dst, len(body))
	dst = append(dst, strCRLF...)
	if closeConn {
		dst = append(dst, strConnection...)
	}
	dst = append(dst, strCRLF...)
	return append(dst, body...)
}

// ErrorResponse 返回给定状态码的纯文本响应，正文为状态消息。
func ErrorResponse(statusCode int) []byte {
	return AppendResponse(nil, statusCode, consts.MIMETextPlainUTF8, bytesconv.S2b(consts.StatusMessage(statusCode)), true)
}
