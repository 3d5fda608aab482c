package protocol

import (
	"bytes"

	"github.com/favbox/dock/internal/bytesconv"
)

var (
	strHeaderEnd = []byte("\r\n\r\n")
	strColon     = []byte(":")
)

// HeaderComplete 报告 buf 是否已包含完整的请求头（以 CRLFCRLF 结尾）。
//
// 可作为引擎的 Framer 使用。
func HeaderComplete(buf []byte) bool {
	return bytes.Contains(buf, strHeaderEnd)
}

// RequestLine 返回请求行中的方法和目标，格式不符时 ok 为假。
func RequestLine(req []byte) (method, target []byte, ok bool) {
	end := bytes.Index(req, strCRLF)
	if end < 0 {
		return nil, nil, false
	}
	parts := bytes.Fields(req[:end])
	if len(parts) != 3 {
		return nil, nil, false
	}
	return parts[0], parts[1], true
}

// HeaderValue 返回请求头中名为 name（不区分大小写）的首个标头值。
func HeaderValue(req []byte, name string) ([]byte, bool) {
	if end := bytes.Index(req, strHeaderEnd); end >= 0 {
		req = req[:end+2]
	}
	// 跳过请求行
	i := bytes.Index(req, strCRLF)
	if i < 0 {
		return nil, false
	}
	req = req[i+2:]

	for len(req) > 0 {
		i = bytes.Index(req, strCRLF)
		if i < 0 {
			i = len(req)
		}
		line := req[:i]
		if i < len(req) {
			req = req[i+2:]
		} else {
			req = nil
		}

		k, v, found := bytes.Cut(line, strColon)
		if !found {
			continue
		}
		if bytesconv.EqualFoldASCII(bytes.TrimSpace(k), name) {
			return bytes.TrimSpace(v), true
		}
	}
	return nil, false
}
