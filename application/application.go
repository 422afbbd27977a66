package application

import (
	"net/http"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/lk2023060901/transit-go/internal/network/serializer"
	"github.com/lk2023060901/transit-go/pkg/log"
	"github.com/lk2023060901/transit-go/pkg/metrics"
	"github.com/lk2023060901/transit-go/pkg/transit"
	"github.com/lk2023060901/transit-go/pkg/transport"
	zviper "github.com/lk2023060901/transit-go/pkg/util/viper"
)

const (
	// EnvConfigFilePath 指定配置文件路径，优先级低于 --config。
	EnvConfigFilePath = "TRANSIT_CONFIG_FILE_PATH"
	// EnvPrefix 为覆盖配置项的环境变量前缀，例如 TRANSIT_LOG_LEVEL 对应 log.level。
	EnvPrefix = "TRANSIT"

	defaultConfigPath = "./config.yaml"
)

// Config 为示例程序的完整配置。
type Config struct {
	Log       log.Config      `mapstructure:"log"`
	Transit   TransitConfig   `mapstructure:"transit"`
	Transport TransportConfig `mapstructure:"transport"`
	Batch     BatchConfig     `mapstructure:"batch"`
}

type TransitConfig struct {
	// Mode 为 json 或 json-verbose。
	Mode          string `mapstructure:"mode"`
	QuoteTopLevel bool   `mapstructure:"quote-top-level"`
	MaxDepth      int    `mapstructure:"max-depth"`
}

type TransportConfig struct {
	// Addr 为服务端监听地址。
	Addr            string        `mapstructure:"addr"`
	BaseURL         string        `mapstructure:"base-url"`
	ContentType     string        `mapstructure:"content-type"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxRetries      uint          `mapstructure:"max-retries"`
	Compression     bool          `mapstructure:"compression"`
	MinCompressSize int           `mapstructure:"min-compress-size"`
}

type BatchConfig struct {
	Concurrency int `mapstructure:"concurrency"`
	ChunkSize   int `mapstructure:"chunk-size"`
}

// CodecOptions 将配置转换为 transit.NewCodec 的参数。
func (c TransitConfig) CodecOptions() (transit.Mode, []transit.Option, error) {
	mode, err := transit.ParseMode(c.Mode)
	if err != nil {
		return mode, nil, err
	}
	opts := []transit.Option{transit.WithQuoteTopLevel(c.QuoteTopLevel)}
	if c.MaxDepth > 0 {
		opts = append(opts, transit.WithMaxDepth(c.MaxDepth))
	}
	return mode, opts, nil
}

// ClientOptions 将配置转换为 transport.NewClient 的参数。
func (c TransportConfig) ClientOptions() []transport.Option {
	opts := []transport.Option{
		transport.WithBaseURL(c.BaseURL),
		transport.WithContentType(c.ContentType),
		transport.WithTimeout(c.Timeout),
		transport.WithMaxRetries(c.MaxRetries),
	}
	if c.Compression {
		opts = append(opts, transport.WithCompression(c.MinCompressSize))
	}
	return opts
}

// Application 负责示例程序的公共初始化：命令行参数、配置文件、日志与指标。
type Application struct {
	name     string
	flags    *pflag.FlagSet
	viper    *zviper.Config
	conf     Config
	loggers  map[string]*log.MLogger
	registry *prometheus.Registry
}

// New 创建 Application，并注册公共的命令行参数。
func New(name string) *Application {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("config", "", "config file path (yaml or json)")
	fs.String("log.level", "info", "log level")
	fs.String("log.format", "console", "log format: console or json")
	fs.String("transit.mode", transit.ModeJSON.String(), "transit mode: json or json-verbose")
	fs.String("transport.addr", "127.0.0.1:8080", "listen address")
	fs.String("transport.content-type", serializer.ContentTypeTransitJSON, "request content type")
	return &Application{
		name:  name,
		flags: fs,
		viper: zviper.New(),
	}
}

// Flags 返回命令行参数集合，调用方可在 Run 之前追加自己的参数。
func (a *Application) Flags() *pflag.FlagSet {
	return a.flags
}

// Run 解析 args 并加载配置，初始化全局日志与指标。
//
// 配置文件路径的优先级：
//  1. 默认：./config.yaml，不存在时跳过
//  2. 环境变量：TRANSIT_CONFIG_FILE_PATH
//  3. 命令行：--config <path>
func (a *Application) Run(args []string) error {
	if err := a.flags.Parse(args); err != nil {
		return err
	}
	if err := a.loadConfig(); err != nil {
		return err
	}
	if err := a.initLogging(); err != nil {
		return err
	}
	a.initMetrics()

	log.Info("application started",
		zap.String("name", a.name),
		zap.String("mode", a.conf.Transit.Mode),
		zap.String("addr", a.conf.Transport.Addr))
	return nil
}

// Config 返回解析后的配置。
func (a *Application) Config() *Config {
	return &a.conf
}

// Viper 返回底层配置，用于读取自定义的键。
func (a *Application) Viper() *zviper.Config {
	return a.viper
}

// Logger 返回配置中 logging 下定义的具名 Logger，未定义时返回全局 Logger。
func (a *Application) Logger(name string) *log.MLogger {
	if lg, ok := a.loggers[name]; ok && lg != nil {
		return lg
	}
	return &log.MLogger{Logger: log.L()}
}

func (a *Application) Registry() *prometheus.Registry {
	return a.registry
}

// MetricsHandler 返回暴露指标的 http.Handler。
func (a *Application) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})
}

// Close 停止异步日志并刷出缓冲。
func (a *Application) Close() {
	log.Cleanup()
	_ = log.Sync()
}

func (a *Application) loadConfig() error {
	v := a.viper
	v.SetDefault("log.stdout", true)
	v.SetDefault("transport.timeout", 5*time.Second)
	v.SetDefault("transport.max-retries", 2)
	v.SetDefault("transport.min-compress-size", 1024)
	v.SetDefault("batch.concurrency", 4)
	v.SetDefault("batch.chunk-size", 64)
	v.BindEnv(EnvPrefix)
	if err := v.BindFlags(a.flags); err != nil {
		return err
	}

	path, explicit := defaultConfigPath, false
	if env := os.Getenv(EnvConfigFilePath); env != "" {
		path, explicit = env, true
	}
	if flagPath, _ := a.flags.GetString("config"); flagPath != "" {
		path, explicit = flagPath, true
	}
	if _, err := os.Stat(path); err == nil || explicit {
		if err := v.LoadFile(path); err != nil {
			return errors.Wrapf(err, "failed to load config file %q", path)
		}
	}

	if err := v.Unmarshal(&a.conf); err != nil {
		return errors.Wrap(err, "failed to decode config")
	}
	if a.conf.Transport.BaseURL == "" {
		a.conf.Transport.BaseURL = "http://" + a.conf.Transport.Addr
	}
	return nil
}

func (a *Application) initLogging() error {
	logger, props, err := log.InitLogger(&a.conf.Log)
	if err != nil {
		return errors.Wrap(err, "init global logger")
	}
	log.ReplaceGlobals(logger, props)

	// logging:
	//   codec:
	//     level: debug
	//     file:
	//       rootpath: ./logs
	//       filename: codec.log
	raw := make(map[string]log.Config)
	if err := a.viper.UnmarshalKey("logging", &raw); err != nil {
		return err
	}
	a.loggers = make(map[string]*log.MLogger, len(raw))
	for name, lc := range raw {
		cfg := lc
		if cfg.Level == "" {
			cfg.Level = a.conf.Log.Level
		}
		logger, _, err := log.InitLogger(&cfg)
		if err != nil {
			return errors.Wrapf(err, "init module logger %q", name)
		}
		a.loggers[name] = &log.MLogger{Logger: logger.With(log.FieldModule(name))}
	}
	return nil
}

func (a *Application) initMetrics() {
	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics.Register(a.registry)
}
