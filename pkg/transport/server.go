package transport

import (
	"context"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
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
	"github.com/lk2023060901/transit-go/pkg/util/typeutil"
)

// HandlerFunc 处理一次解码后的请求，返回值会按协商的 Content-Type 编码为响应。
// 没有请求体时 req 为 nil。
type HandlerFunc func(ctx context.Context, req any) (any, error)

// Handler 将 HandlerFunc 适配为 http.Handler。
type Handler struct {
	fn              HandlerFunc
	serializers     *serializer.Registry
	defaultType     string
	zstd            *compressor.ZstdCompressor
	minCompressSize int
	maxBodyBytes    int64
	logger          *log.MLogger
}

var _ http.Handler = (*Handler)(nil)

type HandlerOption func(*Handler)

func WithHandlerSerializers(r *serializer.Registry) HandlerOption {
	return func(h *Handler) {
		h.serializers = r
	}
}

// WithDefaultContentType 设置请求未声明 Content-Type 且 Accept 不可用时使用的编码。
func WithDefaultContentType(contentType string) HandlerOption {
	return func(h *Handler) {
		h.defaultType = contentType
	}
}

func WithMaxBodyBytes(n int64) HandlerOption {
	return func(h *Handler) {
		h.maxBodyBytes = n
	}
}

// WithResponseCompression 设置响应体的压缩阈值，仅在客户端声明接受 zstd 时生效。
func WithResponseCompression(minSize int) HandlerOption {
	return func(h *Handler) {
		h.minCompressSize = minSize
	}
}

func WithHandlerLogger(logger *log.MLogger) HandlerOption {
	return func(h *Handler) {
		h.logger = logger
	}
}

// NewHandler 创建 Handler。
func NewHandler(fn HandlerFunc, opts ...HandlerOption) (*Handler, error) {
	if fn == nil {
		return nil, merr.WrapErrParameterMissing("handler func")
	}
	h := &Handler{
		fn:              fn,
		defaultType:     serializer.ContentTypeTransitJSON,
		minCompressSize: defaultMinCompressSize,
		maxBodyBytes:    defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.serializers == nil {
		h.serializers = serializer.NewDefaultRegistry()
	}
	if h.logger == nil {
		h.logger = &log.MLogger{Logger: log.L()}
	}
	if _, err := h.serializers.Lookup(h.defaultType); err != nil {
		return nil, err
	}
	zc, err := compressor.NewZstdCompressor(
		compressor.WithConcurrency(1),
		compressor.WithMaxDecodedSize(uint64(h.maxBodyBytes)))
	if err != nil {
		return nil, err
	}
	h.zstd = zc
	h.logger = h.logger.With(log.FieldModule("transport"))
	return h, nil
}

// Close 释放压缩器资源。
func (h *Handler) Close() {
	h.zstd.Close()
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := otel.Tracer(tracerName).Start(ctx, "transport.server "+r.Method,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.target", r.URL.Path),
		))
	defer span.End()

	status, err := h.serve(ctx, w, r)
	metrics.TransportRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(status)).Inc()
	span.SetAttributes(attribute.Int("http.status_code", status))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.String("stage", string(network.StageOf(err))),
			zap.Error(err),
		}
		if merr.IsCanceledOrTimeout(err) {
			h.logger.Debug("transport request abandoned", fields...)
			return
		}
		h.logger.RatedWarn(1, "transport handler failed", fields...)
	}
}

func (h *Handler) serve(ctx context.Context, w http.ResponseWriter, r *http.Request) (int, error) {
	req, reqSerializer, status, err := h.decodeRequest(w, r)
	if err != nil {
		if status == http.StatusUnsupportedMediaType {
			w.Header().Set("Accept", strings.Join(typeutil.Sorted(h.serializers.ContentTypes()), ", "))
		}
		http.Error(w, err.Error(), status)
		return status, err
	}

	resp, err := h.fn(ctx, req)
	if err != nil {
		status = http.StatusInternalServerError
		if merr.GetErrorType(err) == merr.InputError {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return status, err
	}

	s := h.negotiate(r.Header.Get("Accept"), reqSerializer)
	data, err := s.Marshal(resp)
	if err != nil {
		err = network.Wrap(network.StageEncode, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return http.StatusInternalServerError, err
	}
	if acceptsZstd(r.Header.Get("Accept-Encoding")) && len(data) >= h.minCompressSize {
		compressed, err := h.zstd.Compress(nil, data)
		if err != nil {
			err = network.Wrap(network.StageCompress, err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return http.StatusInternalServerError, err
		}
		data = compressed
		w.Header().Set("Content-Encoding", h.zstd.Encoding())
	}
	w.Header().Set("Content-Type", s.ContentType())
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		return http.StatusOK, network.Wrap(network.StageSend, err)
	}
	return http.StatusOK, nil
}

// decodeRequest 读取并解码请求体，失败时返回应答的状态码。
func (h *Handler) decodeRequest(w http.ResponseWriter, r *http.Request) (any, serializer.Serializer, int, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, nil, http.StatusRequestEntityTooLarge, network.Wrap(network.StageRecv, err)
		}
		return nil, nil, http.StatusBadRequest, network.Wrap(network.StageRecv, err)
	}

	dc, err := compressor.Select(r.Header.Get("Content-Encoding"), h.zstd)
	if err != nil {
		return nil, nil, http.StatusUnsupportedMediaType, network.Wrap(network.StageDecode, err)
	}
	if data, err = dc.Decompress(nil, data); err != nil {
		return nil, nil, http.StatusBadRequest, network.Wrap(network.StageCompress, err)
	}

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = h.defaultType
	}
	s, err := h.serializers.Lookup(contentType)
	if err != nil {
		return nil, nil, http.StatusUnsupportedMediaType, network.Wrap(network.StageDecode, err)
	}
	if len(data) == 0 {
		return nil, s, http.StatusOK, nil
	}
	var v any
	if err := s.Unmarshal(data, &v); err != nil {
		return nil, nil, http.StatusBadRequest, network.Wrap(network.StageDecode, err)
	}
	return v, s, http.StatusOK, nil
}

// negotiate 按 Accept 中出现的顺序选择第一个已注册的编码，否则沿用请求的编码。
func (h *Handler) negotiate(accept string, fallback serializer.Serializer) serializer.Serializer {
	for _, part := range strings.Split(accept, ",") {
		mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil || mediaType == "*/*" {
			continue
		}
		if s, err := h.serializers.Lookup(mediaType); err == nil {
			return s
		}
	}
	if fallback != nil {
		return fallback
	}
	s, _ := h.serializers.Lookup(h.defaultType)
	return s
}

func acceptsZstd(acceptEncoding string) bool {
	for _, part := range strings.Split(acceptEncoding, ",") {
		name, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		if strings.EqualFold(name, compressor.EncodingZstd) {
			return true
		}
	}
	return false
}
