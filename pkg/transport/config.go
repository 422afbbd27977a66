package transport

import (
	"net/http"
	"strings"
	"time"

	"github.com/lk2023060901/transit-go/internal/network/serializer"
	"github.com/lk2023060901/transit-go/pkg/log"
)

const (
	defaultTimeout         = 5 * time.Second
	defaultMaxRetries      = 2
	defaultRetrySleep      = 100 * time.Millisecond
	defaultMinCompressSize = 1024
	defaultMaxBodyBytes    = 16 << 20
	defaultMaxDecodedSize  = 4 * defaultMaxBodyBytes
)

// Config 定义 HTTP 客户端的基础配置。
type Config struct {
	// BaseURL 为请求路径的前缀，例如 "http://127.0.0.1:8080/api"。
	BaseURL string
	// ContentType 为请求体的编码方式，默认 application/transit+json。
	ContentType string
	// Timeout 为单次尝试的超时时间，0 表示使用默认值，负数表示不设超时。
	Timeout time.Duration
	// MaxAttempts 为总尝试次数，包含首次请求。
	MaxAttempts uint
	// RetrySleep 为首次重试前的等待时间，之后按指数退避。
	RetrySleep time.Duration
	// Compression 开启后，请求体达到 MinCompressSize 时使用 zstd 压缩。
	Compression     bool
	MinCompressSize int
	// Headers 为每个请求附加的头部。
	Headers http.Header
	// MaxResponseBytes 限制响应体大小（压缩前），超出时请求失败。
	MaxResponseBytes int64

	HTTPClient  *http.Client
	Serializers *serializer.Registry
	Logger      *log.MLogger
}

// Option 用于修改 Config。
type Option func(*Config)

func WithBaseURL(url string) Option {
	return func(c *Config) {
		c.BaseURL = url
	}
}

func WithContentType(contentType string) Option {
	return func(c *Config) {
		c.ContentType = contentType
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.Timeout = d
	}
}

// WithMaxRetries 设置失败后的重试次数，总尝试次数为 n+1。
func WithMaxRetries(n uint) Option {
	return func(c *Config) {
		c.MaxAttempts = n + 1
	}
}

func WithRetrySleep(d time.Duration) Option {
	return func(c *Config) {
		c.RetrySleep = d
	}
}

func WithCompression(minSize int) Option {
	return func(c *Config) {
		c.Compression = true
		c.MinCompressSize = minSize
	}
}

func WithHeader(key, value string) Option {
	return func(c *Config) {
		if c.Headers == nil {
			c.Headers = make(http.Header)
		}
		c.Headers.Add(key, value)
	}
}

func WithMaxResponseBytes(n int64) Option {
	return func(c *Config) {
		c.MaxResponseBytes = n
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(c *Config) {
		c.HTTPClient = client
	}
}

func WithSerializers(r *serializer.Registry) Option {
	return func(c *Config) {
		c.Serializers = r
	}
}

func WithLogger(logger *log.MLogger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

func (c *Config) fillDefaults() {
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.ContentType == "" {
		c.ContentType = serializer.ContentTypeTransitJSON
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = defaultMaxRetries + 1
	}
	if c.RetrySleep <= 0 {
		c.RetrySleep = defaultRetrySleep
	}
	if c.MinCompressSize <= 0 {
		c.MinCompressSize = defaultMinCompressSize
	}
	if c.MaxResponseBytes <= 0 {
		c.MaxResponseBytes = defaultMaxBodyBytes
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{}
	}
	if c.Serializers == nil {
		c.Serializers = serializer.NewDefaultRegistry()
	}
	if c.Logger == nil {
		c.Logger = &log.MLogger{Logger: log.L()}
	}
}
