// Package bytesconv 提供零分配的字节与字符串转换及数字编解码。
package bytesconv

import (
	"errors"
	"unsafe"
)

var (
	errEmptyInt               = errors.New("整数为空")
	errUnexpectedFirstChar    = errors.New("发现第一个字符异常，应为0-9")
	errUnexpectedTrailingChar = errors.New("发现尾随字符异常，应为0-9")
	errTooLongInt             = errors.New("int过长")
)

// B2s 将字节切片转为字符串，且不分配内存。
//
// 注意：转换后 b 不得再被修改。
func B2s(b []byte) string {
	return unsafe.String(unsafe.SliceData(b), len(b))
}

// S2b 将字符串转为字节切片，且不分配内存。
//
// 注意：返回的切片只读。
func S2b(s string) []byte {
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

// AppendUint 向 dst 追加正整数 n 并返回。
func AppendUint(dst []byte, n int) []byte {
	if n < 0 {
		panic("BUG：int 必须为正整数")
	}

	var b [20]byte
	buf := b[:]
	i := len(buf)
	var q int
	for n >= 10 {
		i--
		q = n / 10
		buf[i] = '0' + byte(n-q*10)
		n = q
	}
	i--
	buf[i] = '0' + byte(n)

	return append(dst, buf[i:]...)
}

// ParseUint 解析 b 中的非负整数，b 必须全为数字。
func ParseUint(b []byte) (int, error) {
	n := len(b)
	if n == 0 {
		return -1, errEmptyInt
	}
	v := 0
	for i := 0; i < n; i++ {
		k := b[i] - '0'
		if k > 9 {
			if i == 0 {
				return -1, errUnexpectedFirstChar
			}
			return -1, errUnexpectedTrailingChar
		}
		vNew := 10*v + int(k)
		// 测试溢出
		if vNew < v {
			return -1, errTooLongInt
		}
		v = vNew
	}
	return v, nil
}

// EqualFoldASCII 报告 b 与 s 在忽略 ASCII 大小写时是否相同。
func EqualFoldASCII(b []byte, s string) bool {
	if len(b) != len(s) {
		return false
	}
	for i := 0; i < len(b); i++ {
		if toLower(b[i]) != toLower(s[i]) {
			return false
		}
	}
	return true
}

func toLower(c byte) byte {
	if 'A' <= c && c <= 'Z' {
		return c + 'a' - 'A'
	}
	return c
}
