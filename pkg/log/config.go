// Copyright 2019 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	defaultLogMaxSize = 300 // MB
)

// FileLogConfig 为文件日志配置，文件按大小滚动。
type FileLogConfig struct {
	RootPath string `mapstructure:"rootpath" json:"rootpath"`
	// Filename 留空表示不写文件。
	Filename string `mapstructure:"filename" json:"filename"`
	// MaxSize 为单个文件的最大大小，单位 MB。
	MaxSize int `mapstructure:"max-size" json:"max-size"`
	// MaxDays 为保留天数，0 表示不按时间删除。
	MaxDays    int `mapstructure:"max-days" json:"max-days"`
	MaxBackups int `mapstructure:"max-backups" json:"max-backups"`
}

// AsyncConfig 为异步写日志配置，未设置的字段由 initialize 填充。
type AsyncConfig struct {
	Enable bool `mapstructure:"enable" json:"enable"`
	// FlushInterval 为缓冲区的定时刷新间隔。
	FlushInterval time.Duration `mapstructure:"flush-interval" json:"flush-interval"`
	// DroppedTimeout 为队列已满时等待多久后丢弃日志。
	DroppedTimeout time.Duration `mapstructure:"dropped-timeout" json:"dropped-timeout"`
	// NonDroppableLevel 及以上级别的日志在队列已满时一直等待，不会被丢弃。
	NonDroppableLevel string        `mapstructure:"non-droppable-level" json:"non-droppable-level"`
	StopTimeout       time.Duration `mapstructure:"stop-timeout" json:"stop-timeout"`
	PendingLength     int           `mapstructure:"pending-length" json:"pending-length"`
	BufferSize        int           `mapstructure:"buffer-size" json:"buffer-size"`
	// MaxBytesPerLog 为单条日志的最大字节数，超出部分被截断。
	MaxBytesPerLog int `mapstructure:"max-bytes-per-log" json:"max-bytes-per-log"`
}

// Config 为日志配置，可以直接从 yaml/json 配置文件的 log 段解析。
type Config struct {
	Level string `mapstructure:"level" json:"level"`
	// Format 为 json 或 console。
	Format           string        `mapstructure:"format" json:"format"`
	DisableTimestamp bool          `mapstructure:"disable-timestamp" json:"disable-timestamp"`
	Stdout           bool          `mapstructure:"stdout" json:"stdout"`
	File             FileLogConfig `mapstructure:"file" json:"file"`
	// Development 模式下 DPanic 会 panic，Warn 及以上输出堆栈。
	Development       bool `mapstructure:"development" json:"development"`
	DisableCaller     bool `mapstructure:"disable-caller" json:"disable-caller"`
	DisableStacktrace bool `mapstructure:"disable-stacktrace" json:"disable-stacktrace"`
	// Sampling 按秒采样，语义同 zapcore.NewSamplerWithOptions。
	Sampling *zap.SamplingConfig `mapstructure:"sampling" json:"sampling"`
	Async    AsyncConfig         `mapstructure:"async" json:"async"`
}

// ZapProperties 记录 zap 日志相关的核心信息。
type ZapProperties struct {
	Core   zapcore.Core
	Syncer zapcore.WriteSyncer
	Level  zap.AtomicLevel
}

func newEncoder(cfg *Config) zapcore.Encoder {
	encCfg := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "name",
		CallerKey:      "caller",
		MessageKey:     "message",
		StacktraceKey:  "stack",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}
	if cfg.DisableTimestamp {
		encCfg.TimeKey = zapcore.OmitKey
	}
	if cfg.Format == "json" {
		encCfg.EncodeLevel = zapcore.LowercaseLevelEncoder
		return zapcore.NewJSONEncoder(encCfg)
	}
	return zapcore.NewConsoleEncoder(encCfg)
}

func (cfg *Config) buildOptions(errSink zapcore.WriteSyncer) []zap.Option {
	opts := []zap.Option{zap.ErrorOutput(errSink)}

	if cfg.Development {
		opts = append(opts, zap.Development())
	}

	if !cfg.DisableCaller {
		opts = append(opts, zap.AddCaller())
	}

	stackLevel := zap.ErrorLevel
	if cfg.Development {
		stackLevel = zap.WarnLevel
	}
	if !cfg.DisableStacktrace {
		opts = append(opts, zap.AddStacktrace(stackLevel))
	}

	if cfg.Sampling != nil {
		opts = append(opts, zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewSamplerWithOptions(core, time.Second, cfg.Sampling.Initial, cfg.Sampling.Thereafter, zapcore.SamplerHook(cfg.Sampling.Hook))
		}))
	}
	return opts
}

// initialize 为未设置的异步写参数填充默认值。
func (c *AsyncConfig) initialize() {
	if c.FlushInterval <= 0 {
		c.FlushInterval = 10 * time.Second
	}
	if c.DroppedTimeout <= 0 {
		c.DroppedTimeout = 100 * time.Millisecond
	}
	if _, err := zapcore.ParseLevel(c.NonDroppableLevel); c.NonDroppableLevel == "" || err != nil {
		c.NonDroppableLevel = zapcore.ErrorLevel.String()
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = time.Second
	}
	if c.PendingLength <= 0 {
		c.PendingLength = 1024
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 4 << 10
	}
	if c.MaxBytesPerLog <= 0 {
		c.MaxBytesPerLog = 1 << 20
	}
}
