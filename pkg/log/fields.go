package log

import (
	"go.uber.org/zap"
)

const (
	FieldNameModule      = "module"
	FieldNameComponent   = "component"
	FieldNameMode        = "mode"
	FieldNameTag         = "tag"
	FieldNameContentType = "contentType"
)

// FieldModule 返回一个包含模块名的 zap 字段。
func FieldModule(module string) zap.Field {
	return zap.String(FieldNameModule, module)
}

// FieldComponent 返回一个包含组件名的 zap 字段。
func FieldComponent(component string) zap.Field {
	return zap.String(FieldNameComponent, component)
}

// FieldMode 返回编码模式字段，如 json、json-verbose。
func FieldMode(mode string) zap.Field {
	return zap.String(FieldNameMode, mode)
}

// FieldTag 返回 transit tag 字段。
func FieldTag(tag string) zap.Field {
	return zap.String(FieldNameTag, tag)
}

// FieldContentType 返回 HTTP Content-Type 字段。
func FieldContentType(contentType string) zap.Field {
	return zap.String(FieldNameContentType, contentType)
}
