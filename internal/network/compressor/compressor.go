// Package compressor 提供传输层 payload 的压缩实现，与 transit 格式本身无关。
package compressor

import (
	"strings"

	"github.com/lk2023060901/transit-go/pkg/util/merr"
)

const (
	EncodingIdentity = "identity"
	EncodingZstd     = "zstd"
)

// Compressor 对整段数据做一次性压缩/解压。dst 为可复用的缓冲区，可以为 nil。
type Compressor interface {
	Compress(dst, src []byte) (packet []byte, err error)
	// Decompress 的 src 必须是同一实现 Compress 的输出。
	Decompress(dst, src []byte) (plain []byte, err error)
	// Encoding 为 HTTP Content-Encoding 中的名称。
	Encoding() string
}

// NopCompressor 原样返回输入。
type NopCompressor struct{}

var _ Compressor = NopCompressor{}

func (NopCompressor) Compress(_, src []byte) ([]byte, error)   { return src, nil }
func (NopCompressor) Decompress(_, src []byte) ([]byte, error) { return src, nil }
func (NopCompressor) Encoding() string                         { return EncodingIdentity }

// Select 按 Content-Encoding 选择压缩器，空值与 identity 返回 NopCompressor。
func Select(encoding string, zc *ZstdCompressor) (Compressor, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", EncodingIdentity:
		return NopCompressor{}, nil
	case EncodingZstd:
		return zc, nil
	default:
		return nil, merr.WrapErrOperationNotSupported("content encoding " + encoding)
	}
}
