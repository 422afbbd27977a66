package codec

import (
	"io"

	"github.com/cockroachdb/errors"

	"github.com/lk2023060901/transit-go/internal/network"
	"github.com/lk2023060901/transit-go/internal/network/compressor"
	"github.com/lk2023060901/transit-go/internal/network/framer"
	"github.com/lk2023060901/transit-go/internal/network/serializer"
)

// Codec 抽象了“从值到帧，以及从帧回到值”的完整流式编解码流程。
//
// Pipeline（写出 Encode）：
//
//	msg --> serializer --> [compress?] --> Frame{Flags+Payload} --> framer.WriteFrame
//
// Pipeline（读入 Decode）：
//
//	framer.ReadFrame --> Frame{Flags+Payload} --> [decompress?] --> serializer --> msg
type Codec interface {
	// Encode 将 msg 编码为一帧并写入到底层流。
	Encode(w io.Writer, msg any) error

	// Decode 从底层流中读取一帧，并解码到 msg 中（通常为指针）。
	// 流在帧边界处结束时返回 io.EOF。
	Decode(r io.Reader, msg any) error

	// DecodeRaw 读取一帧并返回解压后的明文字节，不做反序列化。
	DecodeRaw(r io.Reader) ([]byte, error)
}

// Options 用于构造 Codec 的依赖注入参数。
type Options struct {
	Framer     framer.Framer         // 允许为 nil（内部会用默认的 LengthPrefixedFramer）
	Serializer serializer.Serializer // 必填
	Compressor compressor.Compressor // 允许为 nil（内部会用 NopCompressor）

	EnableCompression bool // 是否启用压缩（影响压缩行为与帧标志位）
	MinCompressSize   int  // 小于该长度的 payload 不压缩
}

type codec struct {
	framer     framer.Framer
	serializer serializer.Serializer
	compressor compressor.Compressor

	compress        bool
	minCompressSize int
}

var _ Codec = (*codec)(nil)

// New 创建一个基于给定依赖的 Codec。
func New(opts Options) (Codec, error) {
	if opts.Serializer == nil {
		return nil, errors.New("codec: serializer is nil")
	}

	c := &codec{
		framer:          opts.Framer,
		serializer:      opts.Serializer,
		compressor:      opts.Compressor,
		compress:        opts.EnableCompression,
		minCompressSize: opts.MinCompressSize,
	}
	if c.framer == nil {
		c.framer = framer.NewLengthPrefixedFramer(0)
	}
	if c.compressor == nil {
		c.compressor = compressor.NopCompressor{}
	}
	return c, nil
}

// Encode 实现 Codec.Encode。
func (c *codec) Encode(w io.Writer, msg any) error {
	if w == nil {
		return errors.New("codec: writer is nil")
	}

	body, err := c.serializer.Marshal(msg)
	if err != nil {
		return network.Wrap(network.StageEncode, err)
	}

	frame := &framer.Frame{Payload: body}
	if c.compress && len(body) >= c.minCompressSize && len(body) > 0 {
		packed, err := c.compressor.Compress(nil, body)
		if err != nil {
			return network.Wrap(network.StageCompress, err)
		}
		frame.Payload = packed
		frame.Flags |= framer.FlagCompressed
	}

	if err := c.framer.WriteFrame(w, frame); err != nil {
		return network.Wrap(network.StageSend, err)
	}
	return nil
}

// DecodeRaw 实现 Codec.DecodeRaw。
func (c *codec) DecodeRaw(r io.Reader) ([]byte, error) {
	if r == nil {
		return nil, errors.New("codec: reader is nil")
	}

	frame, err := c.framer.ReadFrame(r)
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, network.Wrap(network.StageRecv, err)
	}

	if !frame.Compressed() {
		return frame.Payload, nil
	}
	if !c.compress {
		return nil, network.Wrap(network.StageCompress, errors.New("compressed payload but compression disabled"))
	}
	plain, err := c.compressor.Decompress(nil, frame.Payload)
	if err != nil {
		return nil, network.Wrap(network.StageCompress, err)
	}
	return plain, nil
}

// Decode 实现 Codec.Decode。
func (c *codec) Decode(r io.Reader, msg any) error {
	data, err := c.DecodeRaw(r)
	if err != nil {
		return err
	}
	if err := c.serializer.Unmarshal(data, msg); err != nil {
		return network.Wrap(network.StageDecode, err)
	}
	return nil
}
