package protocol

import (
	"testing"

	"github.com/favbox/dock/protocol/consts"
	"github.com/stretchr/testify/assert"
)

func TestNewResponse(t *testing.T) {
	body := []byte("<html><body><h1>Hello, World!</h1><p>A tiny Go HTTP server</p></body></html>")
	assert.Equal(t, 76, len(body))

	resp := NewResponse(consts.StatusOK, consts.MIMETextHtml, body)
	assert.Equal(t, "HTTP/1.1 200 OK\r\n"+
		"Content-Type: text/html\r\n"+
		"Content-Length: 76\r\n"+
		"\r\n"+string(body), string(resp))
}

func TestAppendResponse(t *testing.T) {
	resp := AppendResponse([]byte("prefix|"), consts.StatusNoContent, "", nil, true)
	assert.Equal(t, "prefix|HTTP/1.1 204 No Content\r\n"+
		"Content-Length: 0\r\n"+
		"Connection: close\r\n"+
		"\r\n", string(resp))
}

func TestErrorResponse(t *testing.T) {
	assert.Equal(t, "HTTP/1.1 500 Internal Server Error\r\n"+
		"Content-Type: text/plain; charset=utf-8\r\n"+
		"Content-Length: 21\r\n"+
		"Connection: close\r\n"+
		"\r\n"+
		"Internal Server Error", string(ErrorResponse(consts.StatusInternalServerError)))
}
