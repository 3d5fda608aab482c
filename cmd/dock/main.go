// dock 是基于连接引擎的示例服务器：对每个连接读取一次请求，写回固定页面或文件内容后关闭。
//
// 用法：
//
//	dock -addr :8080 -max-conns 64 -policy queue
//	dock -c dock.json
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/favbox/dock/app"
	"github.com/favbox/dock/app/server"
	"github.com/favbox/dock/common/config"
	"github.com/favbox/dock/common/hlog"
	"github.com/favbox/dock/protocol"
)

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if cfg.LogLevel != "" {
		lv, _ := parseLevel(cfg.LogLevel)
		hlog.SetLevel(lv)
	}

	opts, err := cfg.options()
	if err != nil {
		hlog.Fatalf("配置无效：%v", err)
	}

	handler := app.Hello()
	if cfg.File != "" {
		fh, err := app.NewFileHandler(cfg.File, "", 0)
		if err != nil {
			hlog.Fatalf("加载文件 %s 失败：%v", cfg.File, err)
		}
		defer fh.Close()
		handler = fh.Handle
	}

	d := server.Default(handler, opts...)
	if cfg.StatsAddr != "" {
		startStats(d, cfg.StatsAddr)
	}
	d.Spin()
}

// parseFlags 解析命令行。指定 -c 时先加载配置文件，显式给出的标志覆盖文件中的值。
func parseFlags(args []string) (*fileConfig, error) {
	fs := flag.NewFlagSet("dock", flag.ContinueOnError)
	var (
		path  = fs.String("c", "", "JSON 配置文件路径")
		flags fileConfig
	)
	fs.StringVar(&flags.Network, "network", "", "网络协议：tcp、tcp4、tcp6 或 unix")
	fs.StringVar(&flags.Addr, "addr", "", "监听地址，默认 :8080")
	fs.IntVar(&flags.Backlog, "backlog", 0, "监听队列长度")
	fs.BoolVar(&flags.ReusePort, "reuse-port", false, "开启 SO_REUSEPORT")
	fs.IntVar(&flags.MaxConns, "max-conns", 0, "同时处理的最大连接数")
	fs.StringVar(&flags.Policy, "policy", "", "准入策略：queue、reject 或 block")
	fs.IntVar(&flags.QueueDepth, "queue-depth", 0, "queue 策略下的最大排队数")
	fs.IntVar(&flags.MaxRequestSize, "max-request-size", 0, "单个请求的最大字节数")
	fs.StringVar(&flags.ReadTimeout, "read-timeout", "", "读取请求的超时，如 5s")
	fs.StringVar(&flags.WriteTimeout, "write-timeout", "", "写入响应的超时，如 5s")
	fs.StringVar(&flags.HandleTimeout, "handle-timeout", "", "处理器超时，如 1s")
	fs.StringVar(&flags.ExitWait, "exit-wait", "", "优雅退出的宽限期，如 5s")
	fs.BoolVar(&flags.HTTPFramer, "http-framer", false, "读取至完整的 HTTP 请求头")
	fs.StringVar(&flags.File, "file", "", "返回该文件的内容，修改后自动重载")
	fs.StringVar(&flags.StatsAddr, "stats", "", "统计信息的监听地址，为空则不开启")
	fs.StringVar(&flags.LogLevel, "log-level", "", "日志级别：trace、debug、info、warn、error")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := &fileConfig{}
	if *path != "" {
		var err error
		if cfg, err = loadFile(*path); err != nil {
			return nil, err
		}
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "network":
			cfg.Network = flags.Network
		case "addr":
			cfg.Addr = flags.Addr
		case "backlog":
			cfg.Backlog = flags.Backlog
		case "reuse-port":
			cfg.ReusePort = flags.ReusePort
		case "max-conns":
			cfg.MaxConns = flags.MaxConns
		case "policy":
			cfg.Policy = flags.Policy
		case "queue-depth":
			cfg.QueueDepth = flags.QueueDepth
		case "max-request-size":
			cfg.MaxRequestSize = flags.MaxRequestSize
		case "read-timeout":
			cfg.ReadTimeout = flags.ReadTimeout
		case "write-timeout":
			cfg.WriteTimeout = flags.WriteTimeout
		case "handle-timeout":
			cfg.HandleTimeout = flags.HandleTimeout
		case "exit-wait":
			cfg.ExitWait = flags.ExitWait
		case "http-framer":
			cfg.HTTPFramer = flags.HTTPFramer
		case "file":
			cfg.File = flags.File
		case "stats":
			cfg.StatsAddr = flags.StatsAddr
		case "log-level":
			cfg.LogLevel = flags.LogLevel
		}
	})
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// startStats 在 addr 上启动统计服务，随主服务一同退出。
func startStats(d *server.Dock, addr string) {
	stats := server.New(app.Stats(func() any { return d.Stats() }),
		server.WithHostPorts(addr),
		server.WithMaxConns(4),
		server.WithAdmissionPolicy(config.PolicyReject),
		server.WithFramer(protocol.HeaderComplete),
		server.WithExitWaitTime(time.Second),
	)
	if err := stats.Init(); err != nil {
		hlog.Errorf("统计服务启动失败：%v", err)
		return
	}
	go func() {
		if err := stats.Run(); err != nil {
			hlog.Errorf("统计服务退出：%v", err)
		}
	}()
	d.OnShutdown = append(d.OnShutdown, func(ctx context.Context) {
		if err := stats.Shutdown(ctx); err != nil {
			hlog.Warnf("统计服务退出：%v", err)
		}
	})
	hlog.Infof("统计服务监听于 %s", stats.Addr())
}
