package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/atomic"

	"github.com/lk2023060901/transit-go/internal/network/compressor"
	"github.com/lk2023060901/transit-go/internal/network/serializer"
	"github.com/lk2023060901/transit-go/pkg/transit"
	"github.com/lk2023060901/transit-go/pkg/util/merr"
)

type TransportSuite struct {
	suite.Suite
	calls   *atomic.Int32
	handler *Handler
}

func (s *TransportSuite) SetupTest() {
	s.calls = atomic.NewInt32(0)
}

func (s *TransportSuite) TearDownTest() {
	if s.handler != nil {
		s.handler.Close()
		s.handler = nil
	}
}

func (s *TransportSuite) newServer(fn HandlerFunc, opts ...HandlerOption) *httptest.Server {
	h, err := NewHandler(fn, opts...)
	s.Require().NoError(err)
	s.handler = h
	srv := httptest.NewServer(h)
	s.T().Cleanup(srv.Close)
	return srv
}

func (s *TransportSuite) newClient(srv *httptest.Server, opts ...Option) *Client {
	opts = append([]Option{WithBaseURL(srv.URL), WithRetrySleep(time.Millisecond)}, opts...)
	c, err := NewClient(Config{}, opts...)
	s.Require().NoError(err)
	s.T().Cleanup(c.Close)
	return c
}

func echo(_ context.Context, req any) (any, error) {
	return req, nil
}

func (s *TransportSuite) TestPostRoundTrip() {
	srv := s.newServer(echo)
	for _, ct := range []string{serializer.ContentTypeTransitJSON, serializer.ContentTypeTransitJSONVerbose} {
		c := s.newClient(srv, WithContentType(ct))
		m, err := transit.NewMap(transit.Keyword("ids"), transit.NewSet(1, 2, 3), transit.NewVector(1, 2), "composite")
		s.Require().NoError(err)

		got, err := c.Post(context.Background(), "/echo", m)
		s.Require().NoError(err, ct)
		s.True(transit.Equal(m, got), "%s: %v", ct, got)
	}
}

func (s *TransportSuite) TestPlainJSON() {
	srv := s.newServer(echo)
	c := s.newClient(srv, WithContentType(serializer.ContentTypeJSON))
	got, err := c.Post(context.Background(), "/echo", map[string]any{"a": 1})
	s.Require().NoError(err)
	s.Equal(map[string]any{"a": float64(1)}, got)
}

func (s *TransportSuite) TestGetWithoutBody() {
	srv := s.newServer(func(_ context.Context, req any) (any, error) {
		s.Nil(req)
		return transit.Keyword("pong"), nil
	})
	c := s.newClient(srv)
	got, err := c.Get(context.Background(), "/ping")
	s.Require().NoError(err)
	s.Equal(transit.Keyword("pong"), got)
}

func (s *TransportSuite) TestCompression() {
	h, err := NewHandler(echo, WithResponseCompression(16))
	s.Require().NoError(err)
	s.handler = h
	var requestEncoding, responseEncoding string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestEncoding = r.Header.Get("Content-Encoding")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		responseEncoding = rec.Header().Get("Content-Encoding")
		for k, v := range rec.Header() {
			w.Header()[k] = v
		}
		w.WriteHeader(rec.Code)
		_, _ = w.Write(rec.Body.Bytes())
	}))
	defer srv.Close()

	c := s.newClient(srv, WithCompression(16))
	payload := strings.Repeat("transit ", 512)
	got, err := c.Post(context.Background(), "/echo", payload)
	s.Require().NoError(err)
	s.Equal(payload, got)
	s.Equal(compressor.EncodingZstd, requestEncoding)
	s.Equal(compressor.EncodingZstd, responseEncoding)
}

func (s *TransportSuite) TestRetryOnServerError() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.calls.Inc() < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", serializer.ContentTypeTransitJSON)
		_, _ = w.Write([]byte(`"~:ok"`))
	}))
	defer srv.Close()

	c := s.newClient(srv, WithMaxRetries(2))
	got, err := c.Post(context.Background(), "/", 1)
	s.Require().NoError(err)
	s.Equal(transit.Keyword("ok"), got)
	s.EqualValues(3, s.calls.Load())
}

func (s *TransportSuite) TestRetryExhausted() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.calls.Inc()
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := s.newClient(srv, WithMaxRetries(1))
	_, err := c.Post(context.Background(), "/", 1)
	s.ErrorIs(err, merr.ErrServiceUnavailable)
	s.EqualValues(2, s.calls.Load())
}

func (s *TransportSuite) TestNoRetryOnInputError() {
	srv := s.newServer(func(context.Context, any) (any, error) {
		s.calls.Inc()
		return nil, merr.WrapErrMalformedWire("bad request")
	})
	c := s.newClient(srv, WithMaxRetries(3))
	_, err := c.Post(context.Background(), "/", 1)
	s.ErrorIs(err, merr.ErrParameterInvalid)
	s.Contains(err.Error(), "400")
	s.EqualValues(1, s.calls.Load())
}

func (s *TransportSuite) TestHandlerInternalError() {
	srv := s.newServer(func(context.Context, any) (any, error) {
		return nil, merr.WrapErrServiceInternal("boom")
	})
	resp, err := http.Post(srv.URL, serializer.ContentTypeTransitJSON, strings.NewReader(`1`))
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusInternalServerError, resp.StatusCode)
}

func (s *TransportSuite) TestUnsupportedContentType() {
	srv := s.newServer(echo)
	resp, err := http.Post(srv.URL, "text/plain", strings.NewReader("hello"))
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusUnsupportedMediaType, resp.StatusCode)
	s.Contains(resp.Header.Get("Accept"), serializer.ContentTypeCBOR)
	s.Contains(resp.Header.Get("Accept"), serializer.ContentTypeTransitJSON)

	req, err := http.NewRequest(http.MethodPost, srv.URL, strings.NewReader("1"))
	s.Require().NoError(err)
	req.Header.Set("Content-Encoding", "br")
	resp2, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp2.Body.Close()
	s.Equal(http.StatusUnsupportedMediaType, resp2.StatusCode)
}

func (s *TransportSuite) TestMalformedRequestBody() {
	srv := s.newServer(echo)
	for _, body := range []string{`"~qfoo"`, `[1,`} {
		resp, err := http.Post(srv.URL, serializer.ContentTypeTransitJSON, strings.NewReader(body))
		s.Require().NoError(err)
		resp.Body.Close()
		s.Equal(http.StatusBadRequest, resp.StatusCode, body)
	}
}

func (s *TransportSuite) TestBodyTooLarge() {
	srv := s.newServer(echo, WithMaxBodyBytes(8))
	resp, err := http.Post(srv.URL, serializer.ContentTypeTransitJSON, strings.NewReader(`"0123456789abcdef"`))
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func (s *TransportSuite) TestResponseTooLarge() {
	srv := s.newServer(func(context.Context, any) (any, error) {
		s.calls.Inc()
		return strings.Repeat("x", 64), nil
	})
	c := s.newClient(srv, WithMaxResponseBytes(32), WithMaxRetries(2))
	_, err := c.Post(context.Background(), "/", 1)
	s.ErrorIs(err, merr.ErrParameterInvalid)
	s.Contains(err.Error(), "response body too large")
	s.EqualValues(1, s.calls.Load())

	c = s.newClient(srv, WithMaxResponseBytes(66))
	got, err := c.Post(context.Background(), "/", 1)
	s.Require().NoError(err)
	s.Equal(strings.Repeat("x", 64), got)
}

func (s *TransportSuite) TestAcceptNegotiation() {
	srv := s.newServer(echo)
	req, err := http.NewRequest(http.MethodPost, srv.URL, strings.NewReader(`["~#set",[1]]`))
	s.Require().NoError(err)
	req.Header.Set("Content-Type", serializer.ContentTypeTransitJSON)
	req.Header.Set("Accept", "text/html, "+serializer.ContentTypeTransitJSONVerbose+";q=0.9")
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(serializer.ContentTypeTransitJSONVerbose, resp.Header.Get("Content-Type"))
}

func (s *TransportSuite) TestAttemptTimeout() {
	srv := s.newServer(func(ctx context.Context, req any) (any, error) {
		s.calls.Inc()
		select {
		case <-ctx.Done():
		case <-time.After(time.Second):
		}
		return req, nil
	})
	c := s.newClient(srv, WithTimeout(20*time.Millisecond), WithMaxRetries(1))
	_, err := c.Post(context.Background(), "/", 1)
	s.ErrorIs(err, merr.ErrServiceUnavailable)
	s.EqualValues(2, s.calls.Load())
}

func (s *TransportSuite) TestParentCanceled() {
	srv := s.newServer(echo)
	c := s.newClient(srv)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Post(ctx, "/", 1)
	s.ErrorIs(err, context.Canceled)
}

func (s *TransportSuite) TestConfigDefaults() {
	c, err := NewClient(Config{BaseURL: "http://localhost/"}, WithHeader("X-Trace", "1"))
	s.Require().NoError(err)
	defer c.Close()
	cfg := c.Config()
	s.Equal("http://localhost", cfg.BaseURL)
	s.Equal(serializer.ContentTypeTransitJSON, cfg.ContentType)
	s.Equal(defaultTimeout, cfg.Timeout)
	s.EqualValues(defaultMaxRetries+1, cfg.MaxAttempts)
	s.EqualValues(defaultMaxBodyBytes, cfg.MaxResponseBytes)
	s.Equal("1", cfg.Headers.Get("X-Trace"))

	_, err = NewClient(Config{}, WithContentType("text/plain"))
	s.ErrorIs(err, merr.ErrOperationNotSupported)
	_, err = NewHandler(nil)
	s.Error(err)
}

func TestTransport(t *testing.T) {
	suite.Run(t, new(TransportSuite))
}
