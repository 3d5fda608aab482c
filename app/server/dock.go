// Package server 提供 dock 服务器的入口：创建、运行与信号驱动的优雅退出。
package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/favbox/dock/app"
	"github.com/favbox/dock/app/middlewares/recovery"
	"github.com/favbox/dock/common/config"
	"github.com/favbox/dock/common/errors"
	"github.com/favbox/dock/common/hlog"
	"github.com/favbox/dock/engine"
)

// New 创建一个使用 handler 且无默认中间件的 dock 实例。
func New(handler app.HandlerFunc, opts ...config.Option) *Dock {
	options := config.NewOptions(opts)
	return &Dock{
		Engine: engine.NewEngine(options, handler),
	}
}

// Default 创建默认带有 recovery 中间件的 dock 实例。
func Default(handler app.HandlerFunc, opts ...config.Option) *Dock {
	return New(app.Chain(handler, recovery.Recovery()), opts...)
}

// Dock 组合了连接引擎 engine.Engine 和信号驱动的优雅退出。
type Dock struct {
	*engine.Engine
	// 用于接收信号实现优雅退出
	signalWaiter func(err chan error) error
}

// Spin 运行服务器直至捕获 os.Signal 或 Run 返回错误。
// 支持优雅退出。
func (d *Dock) Spin() {
	errCh := make(chan error, 1)
	go func() {
		errCh <- d.Run()
	}()

	signalWaiter := defaultSignalWaiter
	if d.signalWaiter != nil {
		signalWaiter = d.signalWaiter
	}

	if err := signalWaiter(errCh); err != nil {
		hlog.SystemLogger().Errorf("收到退出信号：错误=%v", err)
		if err = d.Engine.Close(); err != nil {
			hlog.SystemLogger().Errorf("退出错误：%v", err)
		}
		return
	}

	wait := d.Options().ExitWaitTimeout
	hlog.SystemLogger().Infof("开始优雅退出，最多等待 %v...", wait)

	// 多留一秒，让强制关闭的连接有机会完成收尾
	ctx, cancel := context.WithTimeout(context.Background(), wait+time.Second)
	defer cancel()

	if err := d.Shutdown(ctx); err != nil {
		hlog.SystemLogger().Errorf("退出错误：%v", err)
	}
}

// SetCustomSignalWaiter 设置自定义的信号等待者。
// f 返回错误时 dock 立即退出，否则优雅退出。
func (d *Dock) SetCustomSignalWaiter(f func(err chan error) error) {
	d.signalWaiter = f
}

// 信号等待者的默认实现。
// SIGTERM 立即退出。
// SIGHUP|SIGINT 触发优雅退出。
func defaultSignalWaiter(errCh chan error) error {
	signalToNotify := []os.Signal{
		syscall.SIGINT,
		syscall.SIGHUP,
		syscall.SIGTERM,
	}
	if signal.Ignored(syscall.SIGHUP) {
		signalToNotify = []os.Signal{
			syscall.SIGINT,
			syscall.SIGTERM,
		}
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, signalToNotify...)
	defer signal.Stop(signals)

	select {
	case sig := <-signals:
		switch sig {
		case syscall.SIGTERM:
			// 强制退出
			return errors.NewPublic(sig.String())
		case syscall.SIGHUP, syscall.SIGINT:
			hlog.SystemLogger().Infof("收到退出信号：%s", sig)
			// 优雅退出
			return nil
		}
	case err := <-errCh:
		// Run 已结束，立即退出
		if err == nil {
			err = errors.NewPrivate("引擎已停止")
		}
		return err
	}

	return nil
}
