package framer

import (
	"encoding/binary"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/valyala/bytebufferpool"

	"github.com/lk2023060901/transit-go/pkg/util/merr"
)

// 帧标志位。
const (
	FlagCompressed uint8 = 1 << iota
)

// headerSize 为帧头长度：4 字节大端 payload 长度 + 1 字节标志位。
const headerSize = 5

// Frame 是一帧数据：标志位与 payload。
type Frame struct {
	Flags   uint8
	Payload []byte
}

// Compressed 判断 payload 是否经过压缩。
func (f *Frame) Compressed() bool {
	return f.Flags&FlagCompressed != 0
}

// Framer 抽象了在字节流上切分帧的能力。
type Framer interface {
	// WriteFrame 将 frame 打包为一帧并写入到 w 中。
	WriteFrame(w io.Writer, frame *Frame) error

	// ReadFrame 从 r 中读取一帧数据。
	ReadFrame(r io.Reader) (*Frame, error)
}

// LengthPrefixedFramer 使用长度前缀（4 字节大端）作为帧边界。
// 适用于基于流的连接（如 TCP、管道、文件）。
type LengthPrefixedFramer struct {
	// MaxFrameSize 为允许的最大 payload 长度，单位字节。
	// 为 0 时使用默认值 defaultMaxFrameSize。
	MaxFrameSize uint32
}

var _ Framer = (*LengthPrefixedFramer)(nil)

const defaultMaxFrameSize uint32 = 16 * 1024 * 1024 // 16MB

// ErrFrameTooLarge 表示帧长度超过 MaxFrameSize。
var ErrFrameTooLarge = errors.New("framer: frame too large")

// NewLengthPrefixedFramer 创建一个长度前缀帧编码器。
// maxFrameSize 为 0 时使用默认值。
func NewLengthPrefixedFramer(maxFrameSize uint32) *LengthPrefixedFramer {
	if maxFrameSize == 0 {
		maxFrameSize = defaultMaxFrameSize
	}
	return &LengthPrefixedFramer{
		MaxFrameSize: maxFrameSize,
	}
}

// WriteFrame 将帧头与 payload 拼接后一次写出，避免并发写时帧被拆开。
func (f *LengthPrefixedFramer) WriteFrame(w io.Writer, frame *Frame) error {
	if frame == nil {
		return errors.New("framer: frame is nil")
	}

	length := uint32(len(frame.Payload))
	if length > f.effectiveMaxSize() {
		return errors.Wrapf(ErrFrameTooLarge, "size %d exceeds max %d", length, f.effectiveMaxSize())
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	var header [headerSize]byte
	binary.BigEndian.PutUint32(header[:4], length)
	header[4] = frame.Flags
	_, _ = buf.Write(header[:])
	_, _ = buf.Write(frame.Payload)

	if _, err := w.Write(buf.B); err != nil {
		return errors.Wrap(err, "framer: write frame failed")
	}
	return nil
}

// ReadFrame 从流中读取一帧数据。流在帧边界处结束时返回 io.EOF。
func (f *LengthPrefixedFramer) ReadFrame(r io.Reader) (*Frame, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		switch err {
		case io.EOF:
			return nil, io.EOF
		case io.ErrUnexpectedEOF:
			return nil, merr.WrapErrIoUnexpectEOF("frame header", err)
		}
		return nil, errors.Wrap(err, "framer: read header failed")
	}

	length := binary.BigEndian.Uint32(header[:4])
	if length > f.effectiveMaxSize() {
		return nil, errors.Wrapf(ErrFrameTooLarge, "size %d exceeds max %d", length, f.effectiveMaxSize())
	}

	frame := &Frame{Flags: header[4]}
	if length == 0 {
		return frame, nil
	}
	frame.Payload = make([]byte, length)
	if _, err := io.ReadFull(r, frame.Payload); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, merr.WrapErrIoUnexpectEOF("frame body", err)
		}
		return nil, errors.Wrap(err, "framer: read body failed")
	}
	return frame, nil
}

func (f *LengthPrefixedFramer) effectiveMaxSize() uint32 {
	if f == nil || f.MaxFrameSize == 0 {
		return defaultMaxFrameSize
	}
	return f.MaxFrameSize
}
