// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/uber/jaeger-client-go/utils"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"gopkg.in/natefinch/lumberjack.v2"
)

// 限流日志的环境变量。
const (
	EnvRateEnable          = "TRANSIT_LOG_RATE_ENABLE"
	EnvRateCreditPerSecond = "TRANSIT_LOG_RATE_CREDIT_PER_SECOND"
	EnvRateMaxBalance      = "TRANSIT_LOG_RATE_MAX_BALANCE"
)

var _globalL, _globalP, _globalS, _globalR, _globalCleanup atomic.Value

var (
	_globalLevelLogger sync.Map
	_namedRateLimiters sync.Map
)

// RateLimiter 是限流日志使用的最小接口。
type RateLimiter interface {
	CheckCredit(delta float64) bool
}

type nopRateLimiter struct{}

func (nopRateLimiter) CheckCredit(float64) bool { return true }

// rateLimiterHolder 固定 atomic.Value 中保存的具体类型。
type rateLimiterHolder struct {
	RateLimiter
}

func init() {
	l, p := newStdLogger()
	replaceLeveledLoggers(l)
	ReplaceGlobals(l, p)
	configureRateLimiterFromEnv()
}

// InitLogger 按配置创建 Logger：可以同时输出到文件（lumberjack 滚动）与标准输出。
func InitLogger(cfg *Config, opts ...zap.Option) (*zap.Logger, *ZapProperties, error) {
	var outputs []zapcore.WriteSyncer
	if cfg.File.Filename != "" {
		lg, err := initFileLog(&cfg.File)
		if err != nil {
			return nil, nil, err
		}
		outputs = append(outputs, zapcore.AddSync(lg))
	}
	if cfg.Stdout || len(outputs) == 0 {
		stdout, _, err := zap.Open("stdout")
		if err != nil {
			return nil, nil, err
		}
		outputs = append(outputs, stdout)
	}

	// 以 debug 级别构建，再通过 AtomicLevel 调整，便于运行时修改级别。
	debugCfg := *cfg
	debugCfg.Level = "debug"
	debugL, props, err := InitLoggerWithWriteSyncer(&debugCfg, zap.CombineWriteSyncers(outputs...), opts...)
	if err != nil {
		return nil, nil, err
	}
	replaceLeveledLoggers(debugL)

	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	props.Level.SetLevel(level)
	return debugL.WithOptions(zap.AddCallerSkip(1)), props, nil
}

// InitTestLogger 创建输出到 testing.T 的 Logger。
func InitTestLogger(t zaptest.TestingT, cfg *Config, opts ...zap.Option) (*zap.Logger, *ZapProperties, error) {
	opts = append([]zap.Option{zap.ErrorOutput(testingSyncer{t: t, failOnOutput: true})}, opts...)
	return InitLoggerWithWriteSyncer(cfg, testingSyncer{t: t}, opts...)
}

// InitLoggerWithWriteSyncer 使用给定的 WriteSyncer 创建 Logger。
func InitLoggerWithWriteSyncer(cfg *Config, output zapcore.WriteSyncer, opts ...zap.Option) (*zap.Logger, *ZapProperties, error) {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, nil, errors.Wrapf(err, "invalid log level %q", cfg.Level)
	}

	var core zapcore.Core
	if cfg.Async.Enable {
		cfg.Async.initialize()
		async := NewAsyncCore(cfg, output, level)
		registerCleanup(async.Stop)
		core = async
	} else {
		core = zapcore.NewCore(newEncoder(cfg), output, level)
	}

	lg := zap.New(core, append(cfg.buildOptions(output), opts...)...)
	return lg, &ZapProperties{Core: core, Syncer: output, Level: level}, nil
}

func initFileLog(cfg *FileLogConfig) (*lumberjack.Logger, error) {
	logPath := filepath.Join(cfg.RootPath, cfg.Filename)
	if st, err := os.Stat(logPath); err == nil && st.IsDir() {
		return nil, errors.Newf("log file %s is a directory", logPath)
	}
	if cfg.MaxSize == 0 {
		cfg.MaxSize = defaultLogMaxSize
	}
	return &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxDays,
		LocalTime:  true,
	}, nil
}

func newStdLogger() (*zap.Logger, *ZapProperties) {
	cfg := &Config{Level: "info", Format: "console", Stdout: true}
	lg, props, _ := InitLogger(cfg, zap.OnFatal(zapcore.WriteThenPanic))
	return lg, props
}

func parseLevel(text string) (zapcore.Level, error) {
	if strings.EqualFold(text, "trace") {
		text = "debug"
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(text)); err != nil {
		return level, errors.Wrapf(err, "invalid log level %q", text)
	}
	return level, nil
}

// L 返回全局 Logger，可以通过 ReplaceGlobals 替换。
func L() *zap.Logger {
	return _globalL.Load().(*zap.Logger)
}

// S 返回全局 SugaredLogger。
func S() *zap.SugaredLogger {
	return _globalS.Load().(*zap.SugaredLogger)
}

// R 返回全局限流器，未开启限流时返回不丢弃任何日志的实现。
func R() RateLimiter {
	if h, ok := _globalR.Load().(rateLimiterHolder); ok && h.RateLimiter != nil {
		return h.RateLimiter
	}
	return nopRateLimiter{}
}

func ctxL() *zap.Logger {
	level := _globalP.Load().(*ZapProperties).Level.Level()
	if l, ok := _globalLevelLogger.Load(level); ok {
		return l.(*zap.Logger)
	}
	return L()
}

// Cleanup 停止后台写日志的协程并刷出缓冲。
func Cleanup() {
	if cleanup := _globalCleanup.Load(); cleanup != nil {
		cleanup.(func())()
	}
}

// ReplaceGlobals 替换全局 Logger 与 SugaredLogger，并发安全。
func ReplaceGlobals(logger *zap.Logger, props *ZapProperties) {
	_globalL.Store(logger)
	_globalS.Store(logger.Sugar())
	_globalP.Store(props)
}

func registerCleanup(cleanup func()) {
	if old := _globalCleanup.Swap(cleanup); old != nil {
		old.(func())()
	}
}

func replaceLeveledLoggers(debugLogger *zap.Logger) {
	for _, level := range []zapcore.Level{
		zapcore.DebugLevel, zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel,
		zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel,
	} {
		_globalLevelLogger.Store(level, debugLogger.WithOptions(zap.IncreaseLevel(level)))
	}
}

// Sync 刷出所有全局 Logger 的缓冲。
func Sync() error {
	if err := L().Sync(); err != nil {
		return err
	}
	var firstErr error
	_globalLevelLogger.Range(func(_, val any) bool {
		if err := val.(*zap.Logger).Sync(); err != nil {
			firstErr = err
			return false
		}
		return true
	})
	return firstErr
}

func Level() zap.AtomicLevel {
	return _globalP.Load().(*ZapProperties).Level
}

// configureRateLimiterFromEnv 根据 TRANSIT_LOG_RATE_* 环境变量配置全局限流器，默认关闭。
func configureRateLimiterFromEnv() {
	if !getenvBool(EnvRateEnable, false) {
		_globalR.Store(rateLimiterHolder{nopRateLimiter{}})
		return
	}
	credit := getenvFloat(EnvRateCreditPerSecond, 1.0)
	maxBalance := getenvFloat(EnvRateMaxBalance, 60.0)
	_globalR.Store(rateLimiterHolder{utils.NewRateLimiter(credit, maxBalance)})
}

func getenvBool(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return def
	}
	return f
}
