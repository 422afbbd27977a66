package codec

import (
	"bytes"
	"io"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/suite"

	"github.com/lk2023060901/transit-go/internal/network"
	"github.com/lk2023060901/transit-go/internal/network/compressor"
	"github.com/lk2023060901/transit-go/internal/network/framer"
	"github.com/lk2023060901/transit-go/internal/network/serializer"
	"github.com/lk2023060901/transit-go/pkg/transit"
	"github.com/lk2023060901/transit-go/pkg/util/merr"
)

type CodecSuite struct {
	suite.Suite
	zstd *compressor.ZstdCompressor
}

func (s *CodecSuite) SetupSuite() {
	var err error
	s.zstd, err = compressor.NewZstdCompressor()
	s.Require().NoError(err)
}

func (s *CodecSuite) TearDownSuite() {
	s.zstd.Close()
}

func (s *CodecSuite) newCodec(compress bool) Codec {
	c, err := New(Options{
		Serializer:        serializer.MustTransit(serializer.ContentTypeTransitJSON),
		Compressor:        s.zstd,
		EnableCompression: compress,
		MinCompressSize:   32,
	})
	s.Require().NoError(err)
	return c
}

func (s *CodecSuite) TestStream() {
	for _, compress := range []bool{false, true} {
		c := s.newCodec(compress)
		m, err := transit.NewMap(transit.Keyword("name"), "alice", transit.Keyword("tags"), transit.NewSet("a", "b"))
		s.Require().NoError(err)
		values := []any{m, transit.Keyword("foo"), transit.NewVector(1, 2, 3)}

		var buf bytes.Buffer
		for _, v := range values {
			s.Require().NoError(c.Encode(&buf, v))
		}
		for _, want := range values {
			var got any
			s.Require().NoError(c.Decode(&buf, &got))
			s.True(transit.Equal(want, got), "%v != %v", want, got)
		}
		var rest any
		s.Equal(io.EOF, c.Decode(&buf, &rest))
	}
}

func (s *CodecSuite) TestSmallPayloadNotCompressed() {
	c := s.newCodec(true)
	var buf bytes.Buffer
	s.Require().NoError(c.Encode(&buf, transit.Keyword("foo")))

	frame, err := framer.NewLengthPrefixedFramer(0).ReadFrame(bytes.NewReader(buf.Bytes()))
	s.Require().NoError(err)
	s.False(frame.Compressed())
	s.Equal(`"~:foo"`, string(frame.Payload))
}

func (s *CodecSuite) TestCompressedWithoutCompression() {
	var buf bytes.Buffer
	s.Require().NoError(s.newCodec(true).Encode(&buf, transit.NewVector(make([]any, 100)...)))

	_, err := s.newCodec(false).DecodeRaw(&buf)
	s.Equal(network.StageCompress, network.StageOf(err))
}

func (s *CodecSuite) TestErrors() {
	_, err := New(Options{})
	s.Error(err)

	c := s.newCodec(false)
	s.True(errors.Is(c.Encode(io.Discard, struct{}{}), network.ErrEncodeFailed))
	s.ErrorIs(c.Encode(io.Discard, struct{}{}), merr.ErrUnsupportedType)
	s.Error(c.Encode(nil, 1))
	_, err = c.DecodeRaw(nil)
	s.Error(err)

	var buf bytes.Buffer
	s.Require().NoError(framer.NewLengthPrefixedFramer(0).WriteFrame(&buf, &framer.Frame{Payload: []byte(`["~#set"`)}))
	var got any
	err = c.Decode(&buf, &got)
	s.True(errors.Is(err, network.ErrDecodeFailed))
	s.ErrorIs(err, merr.ErrMalformedWire)

	err = c.Decode(bytes.NewReader([]byte{0, 0, 0, 5, 0, '1'}), &got)
	s.Equal(network.StageRecv, network.StageOf(err))
	s.ErrorIs(err, merr.ErrIoUnexpectEOF)
}

func TestCodec(t *testing.T) {
	suite.Run(t, new(CodecSuite))
}
