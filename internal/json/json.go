// Package json 是对 bytedance/sonic 的薄封装，供不经过 transit 的普通 JSON 路径使用。
package json

import (
	"github.com/bytedance/sonic"
)

// api 与 encoding/json 行为兼容：转义 HTML、map 键排序、校验 UTF-8。
var api = sonic.ConfigStd

func Marshal(v any) ([]byte, error) {
	return api.Marshal(v)
}

func MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return api.MarshalIndent(v, prefix, indent)
}

func Unmarshal(data []byte, v any) error {
	return api.Unmarshal(data, v)
}

// Valid 判断 data 是否为合法的 JSON。
func Valid(data []byte) bool {
	return api.Valid(data)
}
