// Package hlog 提供 dock 的分级日志记录器。
package hlog

import (
	"io"
	"log"
	"os"
)

const systemLogPrefix = "dock: "

var (
	// 提供默认记录器供使用
	logger FullLogger = newDefaultLogger(os.Stderr)

	// 提供系统记录器供使用
	sysLogger FullLogger = &systemLogger{
		logger: newDefaultLogger(os.Stderr),
		prefix: systemLogPrefix,
	}
)

func newDefaultLogger(w io.Writer) *defaultLogger {
	return &defaultLogger{
		std:   log.New(w, "", log.LstdFlags|log.Lshortfile|log.Lmicroseconds),
		depth: 4,
	}
}

// SetOutput 设置默认记录器和系统记录器的写入器。默认为 os.Stderr。
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
	sysLogger.SetOutput(w)
}

// SetLevel 设置默认记录器和系统记录器的输出级别，低于该级别将不输出。默认级别为 LevelTrace。
func SetLevel(lv Level) {
	logger.SetLevel(lv)
	sysLogger.SetLevel(lv)
}

// DefaultLogger 返回默认记录器。
func DefaultLogger() FullLogger {
	return logger
}

// SystemLogger 返回引擎内部使用的系统记录器。不建议业务端使用。
func SystemLogger() FullLogger {
	return sysLogger
}

// SetSystemLogger 设置系统记录器。并发不安全，需在引擎启动前调用。
func SetSystemLogger(v FullLogger) {
	sysLogger = &systemLogger{
		logger: v,
		prefix: systemLogPrefix,
	}
}

// SetLogger 设置默认记录器和系统记录器。并发不安全，需在引擎启动前调用。
func SetLogger(v FullLogger) {
	logger = v
	SetSystemLogger(v)
}
