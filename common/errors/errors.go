package errors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTimeout          = errors.New("timeout")
	ErrPeerClosed       = errors.New("对端已关闭连接")
	ErrConnectionClosed = errors.New("连接已关闭")
	ErrOverloaded       = errors.New("服务过载，连接被拒绝")
	ErrForcedShutdown   = errors.New("服务关闭，连接被强制终止")
	ErrAddressInUse     = errors.New("监听地址已被占用")
	ErrPermissionDenied = errors.New("无权监听该地址")
	ErrInvalidAddress   = errors.New("无效的监听地址")
	ErrListenerClosed   = errors.New("监听器已关闭")
	ErrDrainTimeout     = errors.New("等待连接排空超时")
	ErrHandleTimeout    = errors.New("请求处理超时")
	ErrNothingRead      = errors.New("未读取任何内容")
)

type ErrorType uint64

// Error 表示一个带有错误类型和元信息的错误规范。
type Error struct {
	Err  error
	Type ErrorType
	Meta any
}

// 返回错误的消息字符串。
func (msg *Error) Error() string {
	return msg.Err.Error()
}

func (msg *Error) Unwrap() error {
	return msg.Err
}

func (msg *Error) IsType(flags ErrorType) bool {
	return (msg.Type & flags) > 0
}

func (msg *Error) SetType(flags ErrorType) *Error {
	msg.Type = flags
	return msg
}

func (msg *Error) SetMeta(data any) *Error {
	msg.Meta = data
	return msg
}

const (
	// ErrorTypeTransient 表示可重试的错误，如单次接受连接失败。
	ErrorTypeTransient ErrorType = 1 << iota
	// ErrorTypeFatal 表示不可恢复的错误，如监听套接字损坏。
	ErrorTypeFatal
	// ErrorTypeIO 表示单个连接上的读写错误。
	ErrorTypeIO
	// ErrorTypePrivate 表示一个私有的错误。
	ErrorTypePrivate
	// ErrorTypePublic 表示一个公开的错误。
	ErrorTypePublic
	// ErrorTypeAny 表示任何其他错误。
	ErrorTypeAny
)

var _ error = (*Error)(nil)

// New 新建一个指定错误和错误类型及元数据的自定义错误。
func New(err error, t ErrorType, meta any) *Error {
	return &Error{
		Err:  err,
		Type: t,
		Meta: meta,
	}
}

// Wrap 用哨兵错误 sentinel 包装底层原因 cause，两者均可被 errors.Is 识别。
func Wrap(sentinel, cause error, t ErrorType, meta any) *Error {
	if cause == nil || cause == sentinel {
		return New(sentinel, t, meta)
	}
	return New(&wrapped{sentinel: sentinel, cause: cause}, t, meta)
}

func NewPublic(err string) *Error {
	return New(errors.New(err), ErrorTypePublic, nil)
}

func NewPrivate(err string) *Error {
	return New(errors.New(err), ErrorTypePrivate, nil)
}

func Newf(t ErrorType, meta any, format string, v ...any) *Error {
	return New(fmt.Errorf(format, v...), t, meta)
}

func NewPublicf(format string, v ...any) *Error {
	return New(fmt.Errorf(format, v...), ErrorTypePublic, nil)
}

func NewPrivatef(format string, v ...any) *Error {
	return New(fmt.Errorf(format, v...), ErrorTypePrivate, nil)
}

// IsTransient 报告 err 是否为可重试的错误。
func IsTransient(err error) bool {
	return hasType(err, ErrorTypeTransient)
}

// IsFatal 报告 err 是否为不可恢复的错误。
func IsFatal(err error) bool {
	return hasType(err, ErrorTypeFatal)
}

func hasType(err error, t ErrorType) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.IsType(t)
	}
	return false
}

type wrapped struct {
	sentinel error
	cause    error
}

func (w *wrapped) Error() string {
	return w.sentinel.Error() + ": " + w.cause.Error()
}

func (w *wrapped) Unwrap() []error {
	return []error{w.sentinel, w.cause}
}

// ErrorChain 错误链。
type ErrorChain []*Error

func (c ErrorChain) String() string {
	if len(c) == 0 {
		return ""
	}
	var buf strings.Builder
	for i, msg := range c {
		fmt.Fprintf(&buf, "Error #%02d: %s\n", i+1, msg.Err)
		if msg.Meta != nil {
			fmt.Fprintf(&buf, "     Meta: %v\n", msg.Meta)
		}
	}
	return buf.String()
}

// Errors 返回错误的消息字符串切片。
func (c ErrorChain) Errors() []string {
	if len(c) == 0 {
		return nil
	}
	errorStrings := make([]string, len(c))
	for i, err := range c {
		errorStrings[i] = err.Error()
	}
	return errorStrings
}

// ByType 返回按指定类型过滤的错误数组。支持位或|操作。
func (c ErrorChain) ByType(t ErrorType) ErrorChain {
	if len(c) == 0 {
		return nil
	}
	if t == ErrorTypeAny {
		return c
	}
	var result ErrorChain
	for _, msg := range c {
		if msg.IsType(t) {
			result = append(result, msg)
		}
	}
	return result
}

// Last 返回错误链中最后一个错误。
func (c ErrorChain) Last() *Error {
	if length := len(c); length > 0 {
		return c[length-1]
	}
	return nil
}

// Join 将错误链合并为单个错误，空链返回 nil。
func (c ErrorChain) Join() error {
	switch len(c) {
	case 0:
		return nil
	case 1:
		return c[0]
	}
	errs := make([]error, len(c))
	for i, e := range c {
		errs[i] = e
	}
	return errors.Join(errs...)
}
