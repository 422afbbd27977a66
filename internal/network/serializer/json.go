package serializer

import (
	"github.com/lk2023060901/transit-go/internal/json"
	"github.com/lk2023060901/transit-go/pkg/util/merr"
)

// JSONSerializer 编解码普通 JSON，不识别 transit 的 tag 与缓存。
type JSONSerializer struct {
	// Indent 非空时输出带缩进的 JSON，便于调试。
	Indent string
}

var _ Serializer = JSONSerializer{}

func (s JSONSerializer) Marshal(v any) ([]byte, error) {
	if s.Indent != "" {
		return json.MarshalIndent(v, "", s.Indent)
	}
	return json.Marshal(v)
}

// Unmarshal 对非法 JSON 返回 ErrMalformedWire。
func (JSONSerializer) Unmarshal(data []byte, v any) error {
	if !json.Valid(data) {
		return merr.WrapErrMalformedWire("invalid json payload")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return merr.WrapErrMalformedWire(err.Error())
	}
	return nil
}

func (JSONSerializer) ContentType() string { return ContentTypeJSON }
