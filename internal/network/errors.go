package network

import "github.com/cockroachdb/errors"

// Stage 表示传输链路中的处理阶段，用于在日志与指标中标记错误发生的位置。
type Stage string

const (
	StageEncode   Stage = "encode"   // 值 -> 字节
	StageCompress Stage = "compress" // 字节压缩或解压
	StageSend     Stage = "send"     // 写出帧或发送请求
	StageRecv     Stage = "recv"     // 读取帧或接收响应
	StageDecode   Stage = "decode"   // 字节 -> 值
)

// 统一的错误码常量，用于日志/监控的稳定字符串。
const (
	ErrCodeEncodeFailed   = "network:encode_failed"
	ErrCodeCompressFailed = "network:compress_failed"
	ErrCodeSendFailed     = "network:send_failed"
	ErrCodeRecvFailed     = "network:recv_failed"
	ErrCodeDecodeFailed   = "network:decode_failed"
)

var (
	// ErrEncodeFailed 表示将值序列化为字节时发生错误。
	ErrEncodeFailed = errors.New(ErrCodeEncodeFailed)

	// ErrCompressFailed 表示压缩或解压失败。
	ErrCompressFailed = errors.New(ErrCodeCompressFailed)

	// ErrSendFailed 表示在发送数据到对端时发生错误。
	ErrSendFailed = errors.New(ErrCodeSendFailed)

	// ErrRecvFailed 表示在读取对端数据时发生错误。
	ErrRecvFailed = errors.New(ErrCodeRecvFailed)

	// ErrDecodeFailed 表示将字节解码为值时发生错误。
	ErrDecodeFailed = errors.New(ErrCodeDecodeFailed)
)

var stageErrors = map[Stage]error{
	StageEncode:   ErrEncodeFailed,
	StageCompress: ErrCompressFailed,
	StageSend:     ErrSendFailed,
	StageRecv:     ErrRecvFailed,
	StageDecode:   ErrDecodeFailed,
}

// Wrap 给 err 加上阶段前缀，并标记为该阶段对应的错误，原始错误链保持可匹配。
func Wrap(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	wrapped := errors.Wrapf(err, "%s", stage)
	if mark, ok := stageErrors[stage]; ok {
		wrapped = errors.Mark(wrapped, mark)
	}
	return wrapped
}

// StageOf 返回 err 被标记的阶段，未标记时返回空字符串。
func StageOf(err error) Stage {
	for stage, mark := range stageErrors {
		if errors.Is(err, mark) {
			return stage
		}
	}
	return ""
}
