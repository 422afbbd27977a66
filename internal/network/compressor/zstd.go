package compressor

import (
	"runtime"

	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/zstd"
)

type zstdOptions struct {
	concurrency    int
	level          zstd.EncoderLevel
	maxDecodedSize uint64
}

// ZstdOption 调整 ZstdCompressor 的参数。
type ZstdOption func(*zstdOptions)

// WithConcurrency 设置 encoder/decoder 的并发度，<= 0 时使用 GOMAXPROCS。
func WithConcurrency(n int) ZstdOption {
	return func(o *zstdOptions) {
		o.concurrency = n
	}
}

// WithLevel 按名称设置压缩级别：fastest、default、better、best。
// 无法识别的名称保持默认级别。
func WithLevel(name string) ZstdOption {
	return func(o *zstdOptions) {
		if ok, level := zstd.EncoderLevelFromString(name); ok {
			o.level = level
		}
	}
}

// WithMaxDecodedSize 限制单次解压的输出大小，用于拒绝压缩炸弹。0 表示使用 zstd 的默认上限。
func WithMaxDecodedSize(n uint64) ZstdOption {
	return func(o *zstdOptions) {
		o.maxDecodedSize = n
	}
}

// ZstdCompressor 持有独立的 encoder/decoder，生命周期由调用方管理。
type ZstdCompressor struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

var _ Compressor = (*ZstdCompressor)(nil)

func NewZstdCompressor(opts ...ZstdOption) (*ZstdCompressor, error) {
	o := zstdOptions{level: zstd.SpeedDefault}
	for _, opt := range opts {
		opt(&o)
	}
	if o.concurrency <= 0 {
		o.concurrency = runtime.GOMAXPROCS(0)
	}

	enc, err := zstd.NewWriter(nil,
		zstd.WithZeroFrames(true),
		zstd.WithEncoderLevel(o.level),
		zstd.WithEncoderConcurrency(o.concurrency))
	if err != nil {
		return nil, errors.Wrap(err, "create zstd encoder")
	}

	dopts := []zstd.DOption{zstd.WithDecoderConcurrency(o.concurrency)}
	if o.maxDecodedSize > 0 {
		dopts = append(dopts, zstd.WithDecoderMaxMemory(o.maxDecodedSize))
	}
	dec, err := zstd.NewReader(nil, dopts...)
	if err != nil {
		_ = enc.Close()
		return nil, errors.Wrap(err, "create zstd decoder")
	}
	return &ZstdCompressor{enc: enc, dec: dec}, nil
}

func (c *ZstdCompressor) Compress(dst, src []byte) ([]byte, error) {
	if c == nil || c.enc == nil {
		return nil, zstd.ErrEncoderClosed
	}
	return c.enc.EncodeAll(src, dst[:0]), nil
}

func (c *ZstdCompressor) Decompress(dst, src []byte) ([]byte, error) {
	if c == nil || c.dec == nil {
		return nil, zstd.ErrDecoderClosed
	}
	return c.dec.DecodeAll(src, dst[:0])
}

func (c *ZstdCompressor) Encoding() string { return EncodingZstd }

// Close 可重复调用，关闭后 Compress/Decompress 返回 ErrEncoderClosed/ErrDecoderClosed。
func (c *ZstdCompressor) Close() {
	if c == nil {
		return
	}
	if c.enc != nil {
		_ = c.enc.Close()
		c.enc = nil
	}
	if c.dec != nil {
		c.dec.Close()
		c.dec = nil
	}
}
