package netpoll

import (
	"errors"
	"io"
	"testing"
	"time"

	errs "github.com/favbox/dock/common/errors"
	"github.com/favbox/dock/network/standard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDial(t *testing.T) {
	const nw = "tcp"
	ln, err := standard.Open(nw, "127.0.0.1:0", standard.ListenOptions{})
	require.Nil(t, err)
	defer ln.Close()
	addr := ln.Addr().String()

	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer c.Close()
				buf := make([]byte, 64)
				n, err := c.Read(buf)
				if err == nil {
					_, _ = c.Write(buf[:n])
				}
			}()
		}
	}()

	dial := NewDialer()

	// 正确地址，拨的通
	nwConn, err := dial.DialConnection(nw, addr, time.Second)
	require.Nil(t, err)
	defer nwConn.Close()
	_, err = nwConn.Write([]byte("abcdef"))
	assert.Nil(t, err)
	assert.Nil(t, nwConn.SetReadTimeout(time.Second))
	got, err := io.ReadAll(nwConn)
	assert.Nil(t, err)
	assert.Equal(t, "abcdef", string(got))

	// 兼容 DialTimeout
	nConn, err := dial.DialTimeout(nw, addr, time.Second)
	require.Nil(t, err)
	defer nConn.Close()
	_, err = nConn.Write([]byte("abcdef"))
	assert.Nil(t, err)

	// 关闭后的监听地址，拨不通
	ln.Close()
	_, err = dial.DialConnection(nw, addr, 100*time.Millisecond)
	assert.NotNil(t, err)
}

func TestToDockError(t *testing.T) {
	c := &Conn{}
	assert.Nil(t, c.ToDockError(nil))
	assert.Equal(t, errs.ErrPeerClosed, c.ToDockError(io.EOF))
	other := errors.New("其他错误")
	assert.Equal(t, other, c.ToDockError(other))
}
