package transit

import (
	"encoding/base64"
	"math"
	"math/big"
	"net/url"
	"reflect"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/lk2023060901/transit-go/pkg/util/merr"
)

// WriteHandler 描述如何把某种运行时类型的值写成线上形式。
//
//   - Tag：值的 tag；单字符为 ground 类型，多字符为结构化类型；
//   - Rep：值的表示，会被继续递归编码；
//   - StringRep：作为 map 键或偏好字符串时使用的字符串表示，没有则返回 false；
//   - VerboseHandler：冗长模式下替代自身的 handler，没有则返回 nil。
type WriteHandler interface {
	Tag(v any) string
	Rep(v any) any
	StringRep(v any) (string, bool)
	VerboseHandler() WriteHandler
}

type (
	TagFunc       func(v any) string
	RepFunc       func(v any) any
	StringRepFunc func(v any) (string, bool)
)

type funcHandler struct {
	tag     TagFunc
	rep     RepFunc
	strRep  StringRepFunc
	verbose WriteHandler
}

func (h *funcHandler) Tag(v any) string { return h.tag(v) }
func (h *funcHandler) Rep(v any) any    { return h.rep(v) }

func (h *funcHandler) StringRep(v any) (string, bool) {
	if h.strRep == nil {
		return "", false
	}
	return h.strRep(v)
}

func (h *funcHandler) VerboseHandler() WriteHandler { return h.verbose }

type HandlerOption func(*funcHandler)

func WithStringRep(fn StringRepFunc) HandlerOption {
	return func(h *funcHandler) { h.strRep = fn }
}

func WithVerboseHandler(verbose WriteHandler) HandlerOption {
	return func(h *funcHandler) { h.verbose = verbose }
}

// NewWriteHandler 由函数构造 WriteHandler，用户扩展类型无需实现接口。
func NewWriteHandler(tag TagFunc, rep RepFunc, opts ...HandlerOption) WriteHandler {
	h := &funcHandler{tag: tag, rep: rep}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NewWriteHandlerFuncs 按参数个数构造 WriteHandler：(tag, rep)、(tag, rep, stringRep)
// 或 (tag, rep, stringRep, verbose)。tag 可以是 string 常量或 func(any) string，
// verbose 可以是 WriteHandler 或 func() WriteHandler。其它个数返回 ErrInvalidArity。
func NewWriteHandlerFuncs(fns ...any) (WriteHandler, error) {
	if len(fns) < 2 || len(fns) > 4 {
		return nil, merr.WrapErrInvalidArity("NewWriteHandlerFuncs", len(fns), "expect 2 to 4 functions")
	}

	h := &funcHandler{}
	switch tag := fns[0].(type) {
	case string:
		h.tag = func(any) string { return tag }
	case TagFunc:
		h.tag = tag
	case func(any) string:
		h.tag = tag
	default:
		return nil, merr.WrapErrParameterInvalidMsg("tag must be a string or func(any) string, got %T", fns[0])
	}

	switch rep := fns[1].(type) {
	case RepFunc:
		h.rep = rep
	case func(any) any:
		h.rep = rep
	default:
		return nil, merr.WrapErrParameterInvalidMsg("rep must be func(any) any, got %T", fns[1])
	}

	if len(fns) > 2 && fns[2] != nil {
		switch strRep := fns[2].(type) {
		case StringRepFunc:
			h.strRep = strRep
		case func(any) (string, bool):
			h.strRep = strRep
		case func(any) string:
			h.strRep = func(v any) (string, bool) { return strRep(v), true }
		default:
			return nil, merr.WrapErrParameterInvalidMsg("stringRep must be func(any) string, got %T", fns[2])
		}
	}

	if len(fns) > 3 && fns[3] != nil {
		switch verbose := fns[3].(type) {
		case WriteHandler:
			h.verbose = verbose
		case func() WriteHandler:
			h.verbose = verbose()
		default:
			return nil, merr.WrapErrParameterInvalidMsg("verbose must be a WriteHandler, got %T", fns[3])
		}
	}
	return h, nil
}

// baseHandler 提供没有字符串表示、没有冗长模式替代的默认实现。
type baseHandler struct{}

func (baseHandler) StringRep(any) (string, bool) { return "", false }
func (baseHandler) VerboseHandler() WriteHandler { return nil }

type nilHandler struct{ baseHandler }

func (nilHandler) Tag(any) string               { return TagNull }
func (nilHandler) Rep(any) any                  { return nil }
func (nilHandler) StringRep(any) (string, bool) { return "", true }

type stringHandler struct{ baseHandler }

func (stringHandler) Tag(any) string { return TagString }
func (stringHandler) Rep(v any) any  { return reflect.ValueOf(v).String() }

func (stringHandler) StringRep(v any) (string, bool) {
	return reflect.ValueOf(v).String(), true
}

type boolHandler struct{ baseHandler }

func (boolHandler) Tag(any) string { return TagBool }
func (boolHandler) Rep(v any) any  { return reflect.ValueOf(v).Bool() }

func (boolHandler) StringRep(v any) (string, bool) {
	if reflect.ValueOf(v).Bool() {
		return "t", true
	}
	return "f", true
}

// intHandler 覆盖所有整数宽度。超出 int64 的 uint64 以十进制文本作为 rep。
type intHandler struct{ baseHandler }

func (intHandler) Tag(any) string { return TagInt }

func (intHandler) Rep(v any) any {
	n := bigOf(v)
	if n.IsInt64() {
		return n.Int64()
	}
	return n.String()
}

func (intHandler) StringRep(v any) (string, bool) {
	return bigOf(v).String(), true
}

// floatHandler 对 NaN 与 ±Inf 使用 "z" tag。
type floatHandler struct{ baseHandler }

func (floatHandler) Tag(v any) string {
	if _, ok := specialFloat(reflect.ValueOf(v).Float()); ok {
		return TagSpecial
	}
	return TagFloat
}

func (floatHandler) Rep(v any) any {
	f := reflect.ValueOf(v).Float()
	if s, ok := specialFloat(f); ok {
		return s
	}
	return f
}

func (floatHandler) StringRep(v any) (string, bool) {
	f := reflect.ValueOf(v).Float()
	if s, ok := specialFloat(f); ok {
		return s, true
	}
	return formatFloat(f), true
}

// formatFloat 输出的文本总是带小数点或指数，以便读回时仍是浮点数。
func formatFloat(f float64) string {
	abs := math.Abs(f)
	if abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			return s
		}
	}
	return s + ".0"
}

type binaryHandler struct{ baseHandler }

func (binaryHandler) Tag(any) string { return TagBinary }

func (binaryHandler) Rep(v any) any {
	return base64.StdEncoding.EncodeToString(reflect.ValueOf(v).Bytes())
}

func (h binaryHandler) StringRep(v any) (string, bool) {
	return h.Rep(v).(string), true
}

// textHandler 用于 rep 即字符串表示的 ground 类型。
type textHandler struct {
	tag  string
	text func(v any) string
}

func (h textHandler) Tag(any) string                 { return h.tag }
func (h textHandler) Rep(v any) any                  { return h.text(v) }
func (h textHandler) StringRep(v any) (string, bool) { return h.text(v), true }
func (textHandler) VerboseHandler() WriteHandler     { return nil }

var (
	keywordHandler = textHandler{tag: TagKeyword, text: func(v any) string { return string(v.(Keyword)) }}
	symbolHandler  = textHandler{tag: TagSymbol, text: func(v any) string { return string(v.(Symbol)) }}
	charHandler    = textHandler{tag: TagChar, text: func(v any) string { return string(rune(v.(Char))) }}
	uuidHandler    = textHandler{tag: TagUUID, text: func(v any) string { return v.(uuid.UUID).String() }}
	bigIntHandler  = textHandler{tag: TagBigInt, text: func(v any) string { return v.(*big.Int).String() }}
	bigDecHandler  = textHandler{tag: TagBigDec, text: func(v any) string { return v.(BigDecimal).text }}
	uriHandler     = textHandler{tag: TagURI, text: uriText}
)

// timeHandler 紧凑模式写毫秒时间戳 "~m<ms>"，冗长模式写 ISO 文本 "~t<iso>"。
// 两种模式都只保留毫秒精度，且不携带时区：读回的是截断到毫秒的 UTC 时间，
// 需要比较时先对原值做 Truncate(time.Millisecond) 并使用 time.Time.Equal。
type timeHandler struct{}

const verboseTimeLayout = "2006-01-02T15:04:05.000Z07:00"

func (timeHandler) Tag(any) string { return TagTimeMilli }
func (timeHandler) Rep(v any) any  { return v.(time.Time).UnixMilli() }

func (timeHandler) StringRep(v any) (string, bool) {
	return strconv.FormatInt(v.(time.Time).UnixMilli(), 10), true
}

func (timeHandler) VerboseHandler() WriteHandler {
	return textHandler{tag: TagTime, text: func(v any) string {
		return v.(time.Time).UTC().Format(verboseTimeLayout)
	}}
}

type vectorHandler struct{ baseHandler }

func (vectorHandler) Tag(any) string { return TagArray }
func (vectorHandler) Rep(v any) any  { return v }

type mapHandler struct{ baseHandler }

func (mapHandler) Tag(any) string { return TagMap }
func (mapHandler) Rep(v any) any  { return v }

// listHandler 与 setHandler 的 rep 是 tag 为 "array" 的 TaggedValue，
// 这样即使调用方覆盖了切片的 handler，rep 仍然按普通数组写出。
type listHandler struct{ baseHandler }

func (listHandler) Tag(any) string { return TagList }

func (listHandler) Rep(v any) any {
	return TaggedValue{tag: TagArray, rep: v.(*List).Slice()}
}

type setHandler struct{ baseHandler }

func (setHandler) Tag(any) string { return TagSet }

func (setHandler) Rep(v any) any {
	return TaggedValue{tag: TagArray, rep: v.(*Set).Slice()}
}

type taggedHandler struct{ baseHandler }

func (taggedHandler) Tag(v any) string { return taggedOf(v).tag }
func (taggedHandler) Rep(v any) any    { return taggedOf(v).rep }

func (taggedHandler) StringRep(v any) (string, bool) {
	s, ok := taggedOf(v).rep.(string)
	return s, ok
}

type quotedHandler struct{ baseHandler }

func (quotedHandler) Tag(any) string { return TagQuote }
func (quotedHandler) Rep(v any) any  { return v.(Quoted).value }

type linkHandler struct{ baseHandler }

func (linkHandler) Tag(any) string { return TagLink }
func (linkHandler) Rep(v any) any  { return v.(*Link).fields }

var (
	typeAnySlice = reflect.TypeOf([]any(nil))
	typeAnyMap   = reflect.TypeOf(map[string]any(nil))
)

// defaultWriteHandlers 返回内置类型的 handler 表。调用方的 handler 会覆盖同类型的条目。
func defaultWriteHandlers() map[reflect.Type]WriteHandler {
	ints := []any{int(0), int8(0), int16(0), int32(0), int64(0), uint(0), uint8(0), uint16(0), uint32(0), uint64(0), uintptr(0)}

	handlers := map[reflect.Type]WriteHandler{
		nil:                             nilHandler{},
		reflect.TypeOf(""):              stringHandler{},
		reflect.TypeOf(false):           boolHandler{},
		reflect.TypeOf(float32(0)):      floatHandler{},
		reflect.TypeOf(float64(0)):      floatHandler{},
		reflect.TypeOf([]byte(nil)):     binaryHandler{},
		reflect.TypeOf(Keyword("")):     keywordHandler,
		reflect.TypeOf(Symbol("")):      symbolHandler,
		reflect.TypeOf(Char(0)):         charHandler,
		reflect.TypeOf(uuid.UUID{}):     uuidHandler,
		reflect.TypeOf((*big.Int)(nil)): bigIntHandler,
		reflect.TypeOf(BigDecimal{}):    bigDecHandler,
		reflect.TypeOf(URI("")):         uriHandler,
		reflect.TypeOf((*url.URL)(nil)): uriHandler,
		reflect.TypeOf(time.Time{}):     timeHandler{},
		reflect.TypeOf((*Vector)(nil)):  vectorHandler{},
		typeAnySlice:                    vectorHandler{},
		reflect.TypeOf((*List)(nil)):    listHandler{},
		reflect.TypeOf((*Set)(nil)):     setHandler{},
		reflect.TypeOf((*Map)(nil)):     mapHandler{},
		typeAnyMap:                      mapHandler{},
		reflect.TypeOf(TaggedValue{}):   taggedHandler{},
		reflect.TypeOf(&TaggedValue{}):  taggedHandler{},
		reflect.TypeOf(Quoted{}):        quotedHandler{},
		reflect.TypeOf((*Link)(nil)):    linkHandler{},
	}
	for _, i := range ints {
		handlers[reflect.TypeOf(i)] = intHandler{}
	}
	return handlers
}

// kindHandler 为没有精确注册的具名类型按底层 Kind 兜底。
func kindHandler(t reflect.Type) (WriteHandler, bool) {
	switch t.Kind() {
	case reflect.Bool:
		return boolHandler{}, true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return intHandler{}, true
	case reflect.Float32, reflect.Float64:
		return floatHandler{}, true
	case reflect.String:
		return stringHandler{}, true
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return binaryHandler{}, true
		}
		return vectorHandler{}, true
	case reflect.Array:
		return vectorHandler{}, true
	case reflect.Map:
		return mapHandler{}, true
	}
	return nil, false
}
