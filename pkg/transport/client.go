package transport

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/lk2023060901/transit-go/internal/network"
	"github.com/lk2023060901/transit-go/internal/network/compressor"
	"github.com/lk2023060901/transit-go/internal/network/serializer"
	"github.com/lk2023060901/transit-go/pkg/log"
	"github.com/lk2023060901/transit-go/pkg/metrics"
	"github.com/lk2023060901/transit-go/pkg/util/merr"
	"github.com/lk2023060901/transit-go/pkg/util/retry"
)

const tracerName = "github.com/lk2023060901/transit-go/pkg/transport"

// Client 通过 HTTP 发送编码后的值，并解码响应。
//
// 请求体按 Config.ContentType 编码；响应体按响应的 Content-Type 在 Serializers 中查找解码器。
// 网络错误、5xx 与 429 会按 MaxAttempts 重试，其它状态码直接返回错误。
type Client struct {
	cfg        Config
	logger     *log.MLogger
	serializer serializer.Serializer
	zstd       *compressor.ZstdCompressor
}

// NewClient 创建 Client，未设置的字段使用默认值。
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.fillDefaults()

	s, err := cfg.Serializers.Lookup(cfg.ContentType)
	if err != nil {
		return nil, err
	}
	zc, err := compressor.NewZstdCompressor(
		compressor.WithConcurrency(1),
		compressor.WithMaxDecodedSize(defaultMaxDecodedSize))
	if err != nil {
		return nil, err
	}
	return &Client{
		cfg:        cfg,
		logger:     cfg.Logger.With(log.FieldModule("transport"), log.FieldContentType(s.ContentType())),
		serializer: s,
		zstd:       zc,
	}, nil
}

func (c *Client) Config() Config { return c.cfg }

// Close 释放压缩器资源。
func (c *Client) Close() {
	c.zstd.Close()
}

// Get 发送不带请求体的 GET 请求。
func (c *Client) Get(ctx context.Context, path string) (any, error) {
	return c.do(ctx, http.MethodGet, path, nil, false)
}

// Post 编码 body 并以 POST 发送。
func (c *Client) Post(ctx context.Context, path string, body any) (any, error) {
	return c.do(ctx, http.MethodPost, path, body, true)
}

// Do 编码 body 并以 method 发送，返回解码后的响应值；响应体为空时返回 nil。
func (c *Client) Do(ctx context.Context, method, path string, body any) (any, error) {
	return c.do(ctx, method, path, body, true)
}

func (c *Client) do(ctx context.Context, method, path string, body any, hasBody bool) (any, error) {
	url := c.cfg.BaseURL + path
	ctx, span := otel.Tracer(tracerName).Start(ctx, "transport.client "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.url", url),
		))
	defer span.End()

	var (
		payload  []byte
		encoding string
		err      error
	)
	if hasBody {
		payload, encoding, err = c.encodeBody(body)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}

	var result any
	err = retry.Do(ctx, func() error {
		v, err := c.roundTrip(ctx, method, url, payload, hasBody, encoding)
		if err != nil {
			return err
		}
		result = v
		return nil
	},
		retry.Attempts(c.cfg.MaxAttempts),
		retry.Sleep(c.cfg.RetrySleep),
		retry.RetryErr(merr.IsRetryableErr),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn("transport request failed",
			zap.String("method", method),
			zap.String("url", url),
			zap.String("stage", string(network.StageOf(err))),
			zap.Error(err))
		return nil, err
	}
	return result, nil
}

func (c *Client) encodeBody(body any) ([]byte, string, error) {
	payload, err := c.serializer.Marshal(body)
	if err != nil {
		return nil, "", network.Wrap(network.StageEncode, err)
	}
	if !c.cfg.Compression || len(payload) < c.cfg.MinCompressSize {
		return payload, "", nil
	}
	compressed, err := c.zstd.Compress(nil, payload)
	if err != nil {
		return nil, "", network.Wrap(network.StageCompress, err)
	}
	return compressed, c.zstd.Encoding(), nil
}

// roundTrip 完成一次尝试。parent 被取消时返回不可恢复错误，单次超时则允许重试。
func (c *Client) roundTrip(parent context.Context, method, url string, payload []byte, hasBody bool, encoding string) (any, error) {
	ctx := parent
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, c.cfg.Timeout)
		defer cancel()
	}

	var body io.Reader
	if hasBody {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, network.Wrap(network.StageSend, merr.WrapErrParameterInvalidMsg("build request: %v", err))
	}
	for key, values := range c.cfg.Headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if hasBody {
		req.Header.Set("Content-Type", c.serializer.ContentType())
	}
	if encoding != "" {
		req.Header.Set("Content-Encoding", encoding)
	}
	req.Header.Set("Accept", c.serializer.ContentType())
	req.Header.Set("Accept-Encoding", c.zstd.Encoding())
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		metrics.TransportRequestsTotal.WithLabelValues(method, metrics.FailLabel).Inc()
		if parent.Err() != nil {
			return nil, retry.Unrecoverable(parent.Err())
		}
		return nil, network.Wrap(network.StageSend, merr.WrapErrServiceUnavailable("send request", err.Error()))
	}
	defer resp.Body.Close()
	metrics.TransportRequestsTotal.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxResponseBytes+1))
	if err != nil {
		if parent.Err() != nil {
			return nil, retry.Unrecoverable(parent.Err())
		}
		return nil, network.Wrap(network.StageRecv, merr.WrapErrServiceUnavailable("read response", err.Error()))
	}
	if int64(len(data)) > c.cfg.MaxResponseBytes {
		return nil, network.Wrap(network.StageRecv,
			merr.WrapErrParameterInvalidMsg("response body too large: exceeds %d bytes", c.cfg.MaxResponseBytes))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, network.Wrap(network.StageRecv, statusError(resp.StatusCode, data))
	}
	return c.decodeBody(resp.Header, data)
}

func (c *Client) decodeBody(header http.Header, data []byte) (any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	dc, err := compressor.Select(header.Get("Content-Encoding"), c.zstd)
	if err != nil {
		return nil, network.Wrap(network.StageDecode, err)
	}
	if data, err = dc.Decompress(nil, data); err != nil {
		return nil, network.Wrap(network.StageCompress, err)
	}

	s := c.serializer
	if ct := header.Get("Content-Type"); ct != "" {
		if s, err = c.cfg.Serializers.Lookup(ct); err != nil {
			return nil, network.Wrap(network.StageDecode, err)
		}
	}
	var v any
	if err := s.Unmarshal(data, &v); err != nil {
		return nil, network.Wrap(network.StageDecode, err)
	}
	return v, nil
}

// statusError 将非 2xx 状态码转换为错误，5xx 与 429 可重试。
func statusError(code int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	switch {
	case code == http.StatusTooManyRequests:
		return merr.WrapErrServiceRateLimit(0, msg)
	case code >= http.StatusInternalServerError:
		return merr.WrapErrServiceUnavailable(http.StatusText(code), msg)
	case code == http.StatusUnsupportedMediaType:
		return merr.WrapErrOperationNotSupported("content type", msg)
	default:
		return merr.WrapErrParameterInvalidMsg("http status %d: %s", code, msg)
	}
}
