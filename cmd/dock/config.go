package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	exprValidator "github.com/bytedance/go-tagexpr/v2/validator"
	"github.com/favbox/dock/app/server"
	"github.com/favbox/dock/common/config"
	"github.com/favbox/dock/common/hlog"
	"github.com/favbox/dock/common/json"
	"github.com/favbox/dock/protocol"
)

// fileConfig 是配置文件的结构，未出现的字段沿用默认值。
type fileConfig struct {
	Network        string `json:"network" vd:"$=='' || $=='tcp' || $=='tcp4' || $=='tcp6' || $=='unix'; msg:'network 仅支持 tcp、tcp4、tcp6 和 unix'"`
	Addr           string `json:"addr"`
	Backlog        int    `json:"backlog" vd:"$>=0"`
	ReusePort      bool   `json:"reuse_port"`
	MaxConns       int    `json:"max_conns" vd:"$>=0"`
	Policy         string `json:"policy" vd:"$=='' || $=='queue' || $=='reject' || $=='block'; msg:'policy 仅支持 queue、reject 和 block'"`
	QueueDepth     int    `json:"queue_depth" vd:"$>=0"`
	MaxRequestSize int    `json:"max_request_size" vd:"$>=0"`
	ReadTimeout    string `json:"read_timeout"`
	WriteTimeout   string `json:"write_timeout"`
	HandleTimeout  string `json:"handle_timeout"`
	ExitWait       string `json:"exit_wait"`
	HTTPFramer     bool   `json:"http_framer"`
	File           string `json:"file"`
	StatsAddr      string `json:"stats_addr"`
	LogLevel       string `json:"log_level" vd:"$=='' || $=='trace' || $=='debug' || $=='info' || $=='warn' || $=='error' || $=='fatal'"`
}

var cfgValidator = exprValidator.New("vd")

// loadFile 读取并校验 JSON 配置文件。
func loadFile(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &fileConfig{}
	if err = json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件 %s 失败：%w", path, err)
	}
	if err = cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *fileConfig) validate() error {
	if err := cfgValidator.Validate(c); err != nil {
		return fmt.Errorf("配置无效：%w", err)
	}
	return nil
}

// options 将配置转换为服务器选项，零值字段不生成选项。
func (c *fileConfig) options() ([]config.Option, error) {
	var opts []config.Option
	if c.Network != "" {
		opts = append(opts, server.WithNetwork(c.Network))
	}
	if c.Addr != "" {
		opts = append(opts, server.WithHostPorts(c.Addr))
	}
	if c.Backlog > 0 {
		opts = append(opts, server.WithBacklog(c.Backlog))
	}
	if c.ReusePort {
		opts = append(opts, server.WithReusePort(true))
	}
	if c.MaxConns > 0 {
		opts = append(opts, server.WithMaxConns(c.MaxConns))
	}
	if c.Policy != "" {
		p, err := config.ParsePolicy(c.Policy)
		if err != nil {
			return nil, err
		}
		opts = append(opts, server.WithAdmissionPolicy(p))
	}
	if c.QueueDepth > 0 {
		opts = append(opts, server.WithQueueDepth(c.QueueDepth))
	}
	if c.MaxRequestSize > 0 {
		opts = append(opts, server.WithMaxRequestSize(c.MaxRequestSize))
	}
	if c.HTTPFramer {
		opts = append(opts, server.WithFramer(protocol.HeaderComplete))
	}

	durations := []struct {
		value string
		apply func(time.Duration) config.Option
	}{
		{c.ReadTimeout, server.WithReadTimeout},
		{c.WriteTimeout, server.WithWriteTimeout},
		{c.HandleTimeout, server.WithHandleTimeout},
		{c.ExitWait, server.WithExitWaitTime},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		v, err := time.ParseDuration(d.value)
		if err != nil {
			return nil, fmt.Errorf("无效的时长 %q：%w", d.value, err)
		}
		opts = append(opts, d.apply(v))
	}
	return opts, nil
}

var levels = map[string]hlog.Level{
	"trace": hlog.LevelTrace,
	"debug": hlog.LevelDebug,
	"info":  hlog.LevelInfo,
	"warn":  hlog.LevelWarn,
	"error": hlog.LevelError,
	"fatal": hlog.LevelFatal,
}

func parseLevel(s string) (hlog.Level, error) {
	if lv, ok := levels[strings.ToLower(s)]; ok {
		return lv, nil
	}
	return hlog.LevelInfo, fmt.Errorf("未知的日志级别：%q", s)
}
