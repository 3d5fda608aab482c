package consts

import (
	"fmt"
	"sync/atomic"
)

const (
	statusMessageMin = 100
	statusMessageMax = 511
)

// HTTP 状态码，来自 net/http 的部分。
const (
	StatusOK        = 200 // RFC 7231, 6.3.1
	StatusNoContent = 204 // RFC 7231, 6.3.5

	StatusBadRequest            = 400 // RFC 7231, 6.5.1 客户端请求的语法错误，服务器无法理解
	StatusNotFound              = 404 // RFC 7231, 6.5.4 服务器找不到请求的资源
	StatusNotAcceptable         = 406 // RFC 7231, 6.5.6 服务端没发现符合用户代理给定标准的内容
	StatusRequestTimeout        = 408 // RFC 7231, 6.5.7 用于关闭客户端闲置连接时发送的消息
	StatusRequestEntityTooLarge = 413 // RFC 7231, 6.5.11 请求实体大于服务器定义的限制

	StatusInternalServerError = 500 // RFC 7231, 6.6.1 服务器内部错误，无法完成请求
	StatusServiceUnavailable  = 503 // RFC 7231, 6.6.4 因维护或超载而停机
	StatusGatewayTimeout      = 504 // RFC 7231, 6.6.5 无法及时获得响应
)

var (
	statusLines atomic.Value

	statusMessages = map[int]string{
		StatusOK:        "OK",
		StatusNoContent: "No Content",

		StatusBadRequest:            "Bad Request",
		StatusNotFound:              "Not Found",
		StatusNotAcceptable:         "Not Acceptable",
		StatusRequestTimeout:        "Request Timeout",
		StatusRequestEntityTooLarge: "Request Entity Too Large",

		StatusInternalServerError: "Internal Server Error",
		StatusServiceUnavailable:  "Service Unavailable",
		StatusGatewayTimeout:      "Gateway Timeout",
	}
)

// StatusMessage 返回指定 HTTP 状态码的状态消息。
func StatusMessage(statusCode int) string {
	if statusCode < statusMessageMin || statusCode > statusMessageMax {
		return "Unknown Status Code"
	}

	s := statusMessages[statusCode]
	if s == "" {
		s = "Unknown Status Code"
	}
	return s
}

func init() {
	statusLines.Store(make(map[int][]byte))
}

// StatusLine 返回指定状态码的 HTTP 状态行。
//
// 如 HTTP/1.1 200 OK\r\n
//
// 该方法在多协程中并发安全。
func StatusLine(statusCode int) []byte {
	m := statusLines.Load().(map[int][]byte)
	h := m[statusCode]
	if h != nil {
		return h
	}

	h = []byte(fmt.Sprintf("HTTP/1.1 %d %s\r\n", statusCode, StatusMessage(statusCode)))
	newM := make(map[int][]byte, len(m)+1)
	for k, v := range m {
		newM[k] = v
	}
	newM[statusCode] = h
	statusLines.Store(newM)
	return h
}
