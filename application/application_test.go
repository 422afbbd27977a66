package application

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/lk2023060901/transit-go/internal/network/serializer"
	"github.com/lk2023060901/transit-go/pkg/transit"
	"github.com/lk2023060901/transit-go/pkg/transport"
	"github.com/lk2023060901/transit-go/pkg/util/merr"
)

type ApplicationSuite struct {
	suite.Suite
	dir string
}

func (s *ApplicationSuite) SetupTest() {
	s.dir = s.T().TempDir()
	s.T().Setenv(EnvConfigFilePath, "")
}

func (s *ApplicationSuite) writeConfig(name, content string) string {
	path := filepath.Join(s.dir, name)
	s.Require().NoError(os.WriteFile(path, []byte(content), 0o600))
	return path
}

const sampleConfig = `
log:
  level: warn
  format: json
transit:
  mode: json-verbose
  quote-top-level: true
  max-depth: 64
transport:
  addr: 127.0.0.1:9000
  timeout: 250ms
  max-retries: 4
  compression: true
batch:
  concurrency: 2
logging:
  codec:
    level: debug
    stdout: true
`

func (s *ApplicationSuite) TestRunWithConfigFlag() {
	app := New("test")
	defer app.Close()
	path := s.writeConfig("config.yaml", sampleConfig)
	s.Require().NoError(app.Run([]string{"--config", path}))

	cfg := app.Config()
	s.Equal("warn", cfg.Log.Level)
	s.Equal("json", cfg.Log.Format)
	s.Equal("json-verbose", cfg.Transit.Mode)
	s.Equal("127.0.0.1:9000", cfg.Transport.Addr)
	s.Equal("http://127.0.0.1:9000", cfg.Transport.BaseURL)
	s.Equal(250*time.Millisecond, cfg.Transport.Timeout)
	s.EqualValues(4, cfg.Transport.MaxRetries)
	s.Equal(1024, cfg.Transport.MinCompressSize)
	s.Equal(serializer.ContentTypeTransitJSON, cfg.Transport.ContentType)
	s.Equal(2, cfg.Batch.Concurrency)
	s.Equal(64, cfg.Batch.ChunkSize)

	s.NotNil(app.Logger("codec"))
	s.NotNil(app.Logger("unknown"))
	s.NotSame(app.Logger("codec"), app.Logger("unknown"))
}

func (s *ApplicationSuite) TestEnvAndFlagOverride() {
	path := s.writeConfig("config.json", `{"transport":{"addr":"127.0.0.1:9000"},"transit":{"mode":"json"}}`)
	s.T().Setenv(EnvConfigFilePath, path)
	s.T().Setenv("TRANSIT_TRANSIT_MODE", "json-verbose")

	app := New("test")
	defer app.Close()
	s.Require().NoError(app.Run([]string{"--transport.addr", "127.0.0.1:7000"}))
	s.Equal("127.0.0.1:7000", app.Config().Transport.Addr)
	s.Equal("json-verbose", app.Config().Transit.Mode)
}

func (s *ApplicationSuite) TestMissingExplicitConfig() {
	app := New("test")
	err := app.Run([]string{"--config", filepath.Join(s.dir, "missing.yaml")})
	s.Error(err)
	s.Contains(err.Error(), "missing.yaml")

	s.Error(New("test").Run([]string{"--unknown-flag"}))
}

func (s *ApplicationSuite) TestInvalidLogLevel() {
	path := s.writeConfig("bad.yaml", "log:\n  level: loud\n")
	s.Error(New("test").Run([]string{"--config", path}))
}

func (s *ApplicationSuite) TestCodecOptions() {
	mode, opts, err := TransitConfig{Mode: "json-verbose", QuoteTopLevel: true, MaxDepth: 8}.CodecOptions()
	s.Require().NoError(err)
	s.Equal(transit.ModeJSONVerbose, mode)
	c, err := transit.NewCodec(mode, opts...)
	s.Require().NoError(err)
	data, err := c.NewWriter().Write(transit.Keyword("k"))
	s.Require().NoError(err)
	s.Equal(`{"~#'":"~:k"}`, string(data))

	_, _, err = TransitConfig{Mode: "yaml"}.CodecOptions()
	s.ErrorIs(err, merr.ErrParameterInvalid)
}

func (s *ApplicationSuite) TestClientOptions() {
	opts := TransportConfig{
		BaseURL:         "http://localhost:1",
		ContentType:     serializer.ContentTypeCBOR,
		Timeout:         time.Second,
		MaxRetries:      3,
		Compression:     true,
		MinCompressSize: 10,
	}.ClientOptions()
	c, err := transport.NewClient(transport.Config{}, opts...)
	s.Require().NoError(err)
	defer c.Close()

	cfg := c.Config()
	s.Equal("http://localhost:1", cfg.BaseURL)
	s.Equal(serializer.ContentTypeCBOR, cfg.ContentType)
	s.EqualValues(4, cfg.MaxAttempts)
	s.True(cfg.Compression)
	s.Equal(10, cfg.MinCompressSize)
}

func (s *ApplicationSuite) TestMetricsHandler() {
	app := New("test")
	defer app.Close()
	s.Require().NoError(app.Run(nil))
	s.NotNil(app.Registry())

	rec := httptest.NewRecorder()
	app.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "go_goroutines")
}

func TestApplication(t *testing.T) {
	suite.Run(t, new(ApplicationSuite))
}
