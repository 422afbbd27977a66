package serializer

import (
	"github.com/lk2023060901/transit-go/pkg/transit"
	"github.com/lk2023060901/transit-go/pkg/util/merr"
)

// TransitSerializer 使用 transit 编码，Unmarshal 的目标必须是 *any。
//
// 内部的 Codec 只读，可被并发使用；每次调用创建独立的 Writer/Reader。
type TransitSerializer struct {
	codec       *transit.Codec
	contentType string
}

var _ Serializer = (*TransitSerializer)(nil)

// NewTransit 按 Content-Type 选择紧凑或 verbose 模式创建 TransitSerializer。
func NewTransit(contentType string, opts ...transit.Option) (*TransitSerializer, error) {
	var mode transit.Mode
	switch normalize(contentType) {
	case ContentTypeTransitJSON:
		mode = transit.ModeJSON
	case ContentTypeTransitJSONVerbose:
		mode = transit.ModeJSONVerbose
	default:
		return nil, merr.WrapErrParameterInvalidMsg("not a transit content type: %s", contentType)
	}
	c, err := transit.NewCodec(mode, opts...)
	if err != nil {
		return nil, err
	}
	return &TransitSerializer{codec: c, contentType: normalize(contentType)}, nil
}

// MustTransit 与 NewTransit 相同，出错时 panic。
func MustTransit(contentType string, opts ...transit.Option) *TransitSerializer {
	s, err := NewTransit(contentType, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *TransitSerializer) Codec() *transit.Codec { return s.codec }

func (s *TransitSerializer) Marshal(v any) ([]byte, error) {
	return s.codec.NewWriter().Write(v)
}

func (s *TransitSerializer) Unmarshal(data []byte, v any) error {
	out, ok := v.(*any)
	if !ok || out == nil {
		return merr.WrapErrParameterInvalidMsg("transit serializer requires a non-nil *any, got %T", v)
	}
	val, err := s.codec.NewReader().Read(data)
	if err != nil {
		return err
	}
	*out = val
	return nil
}

func (s *TransitSerializer) ContentType() string { return s.contentType }
