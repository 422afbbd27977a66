package transit

import (
	"reflect"

	"github.com/lk2023060901/transit-go/pkg/util/merr"
)

// Mode 是线上模式，也是唯一公开的格式配置轴。
type Mode int

const (
	// ModeJSON 紧凑 JSON：map 写为 ["^ ", ...]，启用缓存。
	ModeJSON Mode = iota
	// ModeJSONVerbose 冗长 JSON：map 写为 object，不缓存，时间写为 ISO 文本。
	ModeJSONVerbose
)

func (m Mode) String() string {
	switch m {
	case ModeJSON:
		return "json"
	case ModeJSONVerbose:
		return "json-verbose"
	}
	return "unknown"
}

// ParseMode 解析 "json" / "json-verbose"。
func ParseMode(s string) (Mode, error) {
	switch s {
	case "json", "compact", "":
		return ModeJSON, nil
	case "json-verbose", "verbose":
		return ModeJSONVerbose, nil
	}
	return ModeJSON, merr.WrapErrParameterInvalid("json|json-verbose", s, "unknown wire mode")
}

// TagPolicy 决定 Reader 遇到未注册 tag 时的行为。
type TagPolicy int

const (
	// TagPolicyDefault 表示使用该类 tag 的默认策略。
	TagPolicyDefault TagPolicy = iota
	// TagPolicyFail 立即返回错误。
	TagPolicyFail
	// TagPolicyPassthrough 原样保留为 TaggedValue。
	TagPolicyPassthrough
)

const defaultMaxDepth = 10000

// ObjectBuilder 枚举调用方自定义的类 map 值的键值对；不认识 v 时返回 false。
type ObjectBuilder func(v any, yield func(key, val any)) bool

// UnpackFunc 把调用方自定义的类 map 值展开为 [k0, v0, k1, v1, ...]；不认识 v 时返回 false。
type UnpackFunc func(v any) ([]any, bool)

// Options 是 Writer / Reader 的构造参数。
type Options struct {
	// WriteHandlers 按运行时类型覆盖或扩展写 handler。
	WriteHandlers map[reflect.Type]WriteHandler
	// ReadHandlers 按 tag 覆盖或扩展读 handler。
	ReadHandlers map[string]ReadHandler
	// DefaultHandler 在无法解析 handler 时兜底，为 nil 时返回 ErrUnsupportedType。
	DefaultHandler WriteHandler

	MapBuilder   MapBuilder
	ArrayBuilder ArrayBuilder

	// PrefersStrings 为 true 时，rep 不是字符串的单字符 tag 优先写为字符串形式。
	PrefersStrings bool
	ObjectBuilder  ObjectBuilder
	Unpack         UnpackFunc

	GroundTagPolicy     TagPolicy
	StructuralTagPolicy TagPolicy

	// QuoteTopLevel 为 true 时，顶层标量写为 ["~#'", v]。
	QuoteTopLevel bool
	// MaxDepth 限制读写时的嵌套深度。
	MaxDepth int

	ifaceHandlers []ifaceHandler
}

type ifaceHandler struct {
	iface   reflect.Type
	handler WriteHandler
}

type Option func(*Options)

func defaultOptions() Options {
	return Options{
		MapBuilder:          DefaultMapBuilder{},
		ArrayBuilder:        DefaultArrayBuilder{},
		PrefersStrings:      true,
		GroundTagPolicy:     TagPolicyFail,
		StructuralTagPolicy: TagPolicyPassthrough,
		MaxDepth:            defaultMaxDepth,
	}
}

// WithWriteHandler 为 sample 的运行时类型注册写 handler。
func WithWriteHandler(sample any, h WriteHandler) Option {
	return WithWriteHandlerFor(reflect.TypeOf(sample), h)
}

// WithWriteHandlerFor 为给定类型注册写 handler。t 为接口类型时，所有实现该接口的类型都会命中。
func WithWriteHandlerFor(t reflect.Type, h WriteHandler) Option {
	return func(o *Options) {
		if t != nil && t.Kind() == reflect.Interface {
			o.ifaceHandlers = append(o.ifaceHandlers, ifaceHandler{iface: t, handler: h})
			return
		}
		if o.WriteHandlers == nil {
			o.WriteHandlers = make(map[reflect.Type]WriteHandler)
		}
		o.WriteHandlers[t] = h
	}
}

func WithReadHandler(tag string, h ReadHandler) Option {
	return func(o *Options) {
		if o.ReadHandlers == nil {
			o.ReadHandlers = make(map[string]ReadHandler)
		}
		o.ReadHandlers[tag] = h
	}
}

// WithHandlers 一次性合并写、读 handler 表，调用方的 map 不会被修改。
func WithHandlers(write map[reflect.Type]WriteHandler, read map[string]ReadHandler) Option {
	return func(o *Options) {
		for t, h := range write {
			WithWriteHandlerFor(t, h)(o)
		}
		for tag, h := range read {
			WithReadHandler(tag, h)(o)
		}
	}
}

func WithDefaultHandler(h WriteHandler) Option {
	return func(o *Options) { o.DefaultHandler = h }
}

func WithMapBuilder(b MapBuilder) Option {
	return func(o *Options) { o.MapBuilder = b }
}

func WithArrayBuilder(b ArrayBuilder) Option {
	return func(o *Options) { o.ArrayBuilder = b }
}

func WithPrefersStrings(prefers bool) Option {
	return func(o *Options) { o.PrefersStrings = prefers }
}

func WithObjectBuilder(b ObjectBuilder) Option {
	return func(o *Options) { o.ObjectBuilder = b }
}

func WithUnpack(fn UnpackFunc) Option {
	return func(o *Options) { o.Unpack = fn }
}

func WithGroundTagPolicy(p TagPolicy) Option {
	return func(o *Options) { o.GroundTagPolicy = p }
}

func WithStructuralTagPolicy(p TagPolicy) Option {
	return func(o *Options) { o.StructuralTagPolicy = p }
}

// WithStrict 为 true 时，未知的 ground tag 与结构化 tag 都会报错；为 false 时都透传。
func WithStrict(strict bool) Option {
	return func(o *Options) {
		if strict {
			o.GroundTagPolicy, o.StructuralTagPolicy = TagPolicyFail, TagPolicyFail
		} else {
			o.GroundTagPolicy, o.StructuralTagPolicy = TagPolicyPassthrough, TagPolicyPassthrough
		}
	}
}

func WithQuoteTopLevel(quote bool) Option {
	return func(o *Options) { o.QuoteTopLevel = quote }
}

func WithMaxDepth(depth int) Option {
	return func(o *Options) { o.MaxDepth = depth }
}

// validate 校验并补全默认值。
func (o *Options) validate() error {
	if o.MapBuilder == nil {
		o.MapBuilder = DefaultMapBuilder{}
	}
	if o.ArrayBuilder == nil {
		o.ArrayBuilder = DefaultArrayBuilder{}
	}
	if o.GroundTagPolicy == TagPolicyDefault {
		o.GroundTagPolicy = TagPolicyFail
	}
	if o.StructuralTagPolicy == TagPolicyDefault {
		o.StructuralTagPolicy = TagPolicyPassthrough
	}
	if o.MaxDepth <= 0 {
		return merr.WrapErrParameterInvalidMsg("max depth must be positive, got %d", o.MaxDepth)
	}
	for t, h := range o.WriteHandlers {
		if h == nil {
			return merr.WrapErrParameterMissing(typeString(t), "write handler is nil")
		}
	}
	for tag, h := range o.ReadHandlers {
		if tag == "" {
			return merr.WrapErrInvalidTag(tag, "read handler tag must not be empty")
		}
		if h == nil {
			return merr.WrapErrParameterMissing(tag, "read handler is nil")
		}
	}
	for _, ih := range o.ifaceHandlers {
		if ih.handler == nil {
			return merr.WrapErrParameterMissing(ih.iface.String(), "write handler is nil")
		}
	}
	return nil
}

func typeString(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}

func errInvalidMode(mode Mode) error {
	return merr.WrapErrParameterInvalidMsg("unknown wire mode %d", int(mode))
}
