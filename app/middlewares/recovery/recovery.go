// Package recovery 提供从处理器恐慌中恢复的中间件。
package recovery

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/favbox/dock/app"
)

var (
	dunno     = []byte("???")
	slash     = []byte("/")
	dot       = []byte(".")
	centerDot = []byte("·")
)

// Recovery 返回一个可以从任何 panic 恢复的中间件。
//
// 默认打印恐慌内容和堆栈，并返回错误使引擎写回失败响应。
func Recovery(opts ...Option) app.Middleware {
	cfg := newOptions(opts...)

	return func(next app.HandlerFunc) app.HandlerFunc {
		return func(ctx context.Context, req []byte) (resp []byte, err error) {
			defer func() {
				if r := recover(); r != nil {
					resp, err = cfg.recoveryHandler(ctx, r, stack(3))
				}
			}()
			return next(ctx, req)
		}
	}
}

// 跳过 skip 个栈帧，返回带源码行的堆栈。
func stack(skip int) []byte {
	buf := new(bytes.Buffer)
	var lines [][]byte
	var lastFile string
	for i := skip; ; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		fmt.Fprintf(buf, "%s:%d (0x%x)\n", file, line, pc)
		if file != lastFile {
			data, err := os.ReadFile(file)
			if err != nil {
				continue
			}
			lines = bytes.Split(data, []byte{'\n'})
			lastFile = file
		}
		fmt.Fprintf(buf, "\t%s: %s\n", function(pc), source(lines, line))
	}
	return buf.Bytes()
}

// 返回第 n 行（从 1 计）去掉首尾空白的内容。
func source(lines [][]byte, n int) []byte {
	n--
	if n < 0 || n >= len(lines) {
		return dunno
	}
	return bytes.TrimSpace(lines[n])
}

// 返回 pc 所在函数去掉包路径后的名称，如 *T.method。
func function(pc uintptr) []byte {
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return dunno
	}
	name := []byte(fn.Name())
	if lastSlash := bytes.LastIndex(name, slash); lastSlash >= 0 {
		name = name[lastSlash+1:]
	}
	if period := bytes.Index(name, dot); period >= 0 {
		name = name[period+1:]
	}
	return bytes.ReplaceAll(name, centerDot, dot)
}
