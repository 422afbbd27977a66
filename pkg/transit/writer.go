package transit

import (
	"fmt"
	"io"
	"math/big"
	"reflect"
	"sort"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/lk2023060901/transit-go/pkg/metrics"
	"github.com/lk2023060901/transit-go/pkg/util/merr"
)

// wireJSON 是宿主 JSON 的流式读写配置：不转义 HTML，object 字段名按完整字符串解析。
var wireJSON = jsoniter.Config{EscapeHTML: false}.Froze()

// maxSafeInt 为 2^53-1，超出范围的整数以字符串写出，避免 JSON 消费方丢失精度。
const maxSafeInt = 1<<53 - 1

// Writer 把值编码为线上字节。
//
// Writer 持有自己的 handler 解析缓存，不能被多个 goroutine 同时使用；
// 需要并发时从同一个 Codec 为每个 goroutine 创建各自的 Writer。
type Writer struct {
	mode     Mode
	opts     *Options
	registry *Registry
	resolved map[reflect.Type]WriteHandler
}

// NewWriter 以独立的 Registry 创建 Writer。
func NewWriter(mode Mode, opts ...Option) (*Writer, error) {
	c, err := NewCodec(mode, opts...)
	if err != nil {
		return nil, err
	}
	return c.NewWriter(), nil
}

func (w *Writer) Mode() Mode { return w.mode }

// Write 编码 v 并返回新分配的字节切片。
func (w *Writer) Write(v any) (data []byte, err error) {
	start := time.Now()
	defer func() { metrics.ObserveCodec(w.mode.String(), metrics.EncodeLabel, len(data), start, err) }()

	stream := wireJSON.BorrowStream(nil)
	defer wireJSON.ReturnStream(stream)

	if err := w.encode(stream, v); err != nil {
		return nil, err
	}
	return append([]byte(nil), stream.Buffer()...), nil
}

func (w *Writer) WriteString(v any) (string, error) {
	data, err := w.Write(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Encode 编码 v 并写入 out。
func (w *Writer) Encode(out io.Writer, v any) error {
	stream := wireJSON.BorrowStream(out)
	defer wireJSON.ReturnStream(stream)

	if err := w.encode(stream, v); err != nil {
		return err
	}
	if err := stream.Flush(); err != nil {
		return merr.WrapErrIoFailed("transit", err)
	}
	return nil
}

func (w *Writer) encode(stream *jsoniter.Stream, v any) error {
	e := &encoder{w: w, stream: stream}
	if w.mode == ModeJSON {
		e.cache = newWriteCache()
	}
	if err := e.run(v); err != nil {
		return err
	}
	if stream.Error != nil {
		return merr.WrapErrIoFailed("transit", stream.Error)
	}
	return nil
}

// handler 解析 v 的写 handler，结果按类型缓存在 Writer 上。
func (w *Writer) handler(v any) (WriteHandler, error) {
	t := reflect.TypeOf(v)
	h, ok := w.resolved[t]
	if !ok {
		h, ok = w.registry.resolveType(t)
		if !ok {
			if w.opts.Unpack == nil && w.opts.ObjectBuilder == nil {
				return nil, merr.WrapErrUnsupportedType(v, "no write handler")
			}
			h = mapHandler{}
		}
		w.resolved[t] = h
	}
	if w.mode == ModeJSONVerbose {
		if vh := h.VerboseHandler(); vh != nil {
			return vh, nil
		}
	}
	return h, nil
}

type closer uint8

const (
	closeArray closer = iota
	closeObject
)

// frame 是显式工作栈上的一层容器，栈深度与嵌套深度成正比，与容器宽度无关。
type frame struct {
	items []any
	pos   int
	// keyed 表示偶数位置是 map 键。
	keyed bool
	// object 表示冗长模式的 JSON object，键值之间用 ':' 分隔。
	object bool
	// lead 表示第一个元素前已经写出过内容（标记或 tag），需要先写 ','。
	lead  bool
	close closer
}

type encoder struct {
	w      *Writer
	stream *jsoniter.Stream
	cache  *writeCache
	stack  []frame
}

func (e *encoder) run(v any) error {
	if err := e.marshalTop(v); err != nil {
		return err
	}
	for len(e.stack) > 0 {
		f := &e.stack[len(e.stack)-1]
		if f.pos == len(f.items) {
			if f.close == closeObject {
				e.stream.WriteObjectEnd()
			} else {
				e.stream.WriteArrayEnd()
			}
			e.stack = e.stack[:len(e.stack)-1]
			continue
		}

		if f.pos > 0 || f.lead {
			if f.object && f.pos%2 == 1 {
				e.stream.WriteRaw(":")
			} else {
				e.stream.WriteMore()
			}
		}
		item := f.items[f.pos]
		asKey := f.keyed && f.pos%2 == 0
		f.pos++
		if err := e.marshal(item, asKey); err != nil {
			return err
		}
	}
	return nil
}

// marshalTop 在 QuoteTopLevel 时把顶层 ground 值包成 ["~#'", v]。
func (e *encoder) marshalTop(v any) error {
	v = nilPointerAsNull(v)
	if !e.w.opts.QuoteTopLevel {
		return e.marshal(v, false)
	}
	h, err := e.w.handler(v)
	if err != nil {
		return err
	}
	if tag := h.Tag(v); isGroundTag(tag) && tag != TagQuote {
		return e.emitTagged(TagQuote, v)
	}
	return e.marshal(v, false)
}

func (e *encoder) push(f frame) error {
	if len(e.stack) >= e.w.opts.MaxDepth {
		return merr.WrapErrParameterInvalid(e.w.opts.MaxDepth, len(e.stack)+1, "nesting too deep, value may be cyclic")
	}
	e.stack = append(e.stack, f)
	return nil
}

func (e *encoder) emitString(s string, asKey bool) {
	if e.cache != nil {
		s = e.cache.cache(s, asKey)
	}
	e.stream.WriteString(s)
}

func (e *encoder) marshal(v any, asKey bool) error {
	v = nilPointerAsNull(v)
	h, err := e.w.handler(v)
	if err != nil {
		return err
	}
	if l, ok := v.(*Link); ok {
		if err := l.Validate(); err != nil {
			return err
		}
	}

	tag := h.Tag(v)
	switch tag {
	case TagNull:
		if asKey {
			e.emitString(sigilEscape+TagNull, asKey)
		} else {
			e.stream.WriteNil()
		}
		return nil

	case TagString:
		s, ok := textOf(h.Rep(v))
		if !ok {
			return merr.WrapErrUnsupportedType(v, "string handler must return a string rep")
		}
		e.emitString(escapeString(s), asKey)
		return nil

	case TagBool:
		b, ok := h.Rep(v).(bool)
		if !ok {
			return merr.WrapErrUnsupportedType(v, "bool handler must return a bool rep")
		}
		if asKey {
			s, _ := boolHandler{}.StringRep(b)
			e.emitString(sigilEscape+TagBool+s, asKey)
		} else {
			e.stream.WriteBool(b)
		}
		return nil

	case TagInt:
		n, text, ok := intRep(h.Rep(v))
		if !ok {
			return merr.WrapErrUnsupportedType(v, "int handler must return an integer rep")
		}
		if asKey || text != "" || n > maxSafeInt || n < -maxSafeInt {
			if text == "" {
				text = strconv.FormatInt(n, 10)
			}
			e.emitString(sigilEscape+TagInt+text, asKey)
		} else {
			e.stream.WriteInt64(n)
		}
		return nil

	case TagFloat:
		rep := h.Rep(v)
		var text string
		switch r := rep.(type) {
		case string:
			text = r
		default:
			rv := reflect.ValueOf(rep)
			if rv.Kind() != reflect.Float64 && rv.Kind() != reflect.Float32 {
				return merr.WrapErrUnsupportedType(v, "float handler must return a float rep")
			}
			text = formatFloat(rv.Float())
		}
		if asKey {
			e.emitString(sigilEscape+TagFloat+text, asKey)
		} else {
			e.stream.WriteRaw(text)
		}
		return nil

	case TagQuote:
		if asKey {
			return merr.WrapErrUnsupportedType(v, "quoted value cannot be a map key")
		}
		return e.emitTagged(TagQuote, h.Rep(v))

	case TagArray:
		if asKey {
			return merr.WrapErrUnsupportedType(v, "array cannot be a string map key")
		}
		items, err := e.seq(h.Rep(v))
		if err != nil {
			return err
		}
		e.stream.WriteArrayStart()
		return e.push(frame{items: items, close: closeArray})

	case TagMap:
		if asKey {
			return merr.WrapErrUnsupportedType(v, "map cannot be a string map key")
		}
		kvs, err := e.entries(h.Rep(v))
		if err != nil {
			return err
		}
		return e.emitMap(kvs)
	}

	return e.emitEncoded(h, tag, v, asKey)
}

// emitEncoded 处理其余 tag：单字符 tag 尽量写成字符串，否则写成带 tag 的结构。
func (e *encoder) emitEncoded(h WriteHandler, tag string, v any, asKey bool) error {
	if tag == "" {
		return merr.WrapErrInvalidTag(tag, fmt.Sprintf("handler for %T returned an empty tag", v))
	}
	if isGroundTag(tag) {
		rep := h.Rep(v)
		if s, ok := rep.(string); ok {
			e.emitString(sigilEscape+tag+s, asKey)
			return nil
		}
		if asKey || e.w.opts.PrefersStrings {
			if s, ok := h.StringRep(v); ok {
				e.emitString(sigilEscape+tag+s, asKey)
				return nil
			}
		}
		if asKey {
			return merr.WrapErrUnsupportedType(v, "cannot be encoded as a string map key")
		}
		return e.emitTagged(tag, rep)
	}
	if asKey {
		return merr.WrapErrUnsupportedType(v, "tagged value cannot be a string map key")
	}
	return e.emitTagged(tag, h.Rep(v))
}

// emitTagged 紧凑模式写 ["~#tag", rep]，冗长模式写 {"~#tag": rep}。
func (e *encoder) emitTagged(tag string, rep any) error {
	full := sigilEscape + sigilTag + tag
	if e.w.mode == ModeJSONVerbose {
		e.stream.WriteObjectStart()
		e.stream.WriteObjectField(full)
		return e.push(frame{items: []any{rep}, close: closeObject})
	}
	e.stream.WriteArrayStart()
	e.emitString(full, false)
	return e.push(frame{items: []any{rep}, lead: true, close: closeArray})
}

// emitMap 键全部可以写成字符串时写为 ["^ ", ...] 或 JSON object，否则写为 cmap。
func (e *encoder) emitMap(kvs []any) error {
	stringable := true
	for i := 0; i < len(kvs); i += 2 {
		ok, err := e.stringableKey(kvs[i])
		if err != nil {
			return err
		}
		if !ok {
			stringable = false
			break
		}
	}

	if !stringable {
		return e.emitTagged(TagCMap, TaggedValue{tag: TagArray, rep: kvs})
	}
	if e.w.mode == ModeJSONVerbose {
		e.stream.WriteObjectStart()
		return e.push(frame{items: kvs, keyed: true, object: true, close: closeObject})
	}
	e.stream.WriteArrayStart()
	e.stream.WriteString(mapAsArray)
	return e.push(frame{items: kvs, keyed: true, lead: true, close: closeArray})
}

func (e *encoder) stringableKey(k any) (bool, error) {
	h, err := e.w.handler(k)
	if err != nil {
		return false, err
	}
	tag := h.Tag(k)
	if !isGroundTag(tag) || tag == TagQuote {
		return false, nil
	}
	if _, ok := h.Rep(k).(string); ok {
		return true, nil
	}
	_, ok := h.StringRep(k)
	return ok, nil
}

// seq 把 "array" tag 的 rep 展开为元素列表。
func (e *encoder) seq(rep any) ([]any, error) {
	if items, ok := seqOf(rep); ok {
		return items, nil
	}
	return nil, merr.WrapErrUnsupportedType(rep, "array rep must be a sequence")
}

// entries 把 "map" tag 的 rep 展开为 [k0, v0, k1, v1, ...]。
func (e *encoder) entries(rep any) ([]any, error) {
	opts := e.w.opts
	if opts.Unpack != nil {
		if kvs, ok := opts.Unpack(rep); ok {
			if len(kvs)%2 != 0 {
				return nil, merr.WrapErrInvalidArity("Unpack", len(kvs), "expect key/value pairs")
			}
			return kvs, nil
		}
	}

	switch m := rep.(type) {
	case *Map:
		if m == nil {
			return nil, nil
		}
		return m.flatten(), nil
	case map[string]any:
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		kvs := make([]any, 0, 2*len(m))
		for _, k := range keys {
			kvs = append(kvs, k, m[k])
		}
		return kvs, nil
	}

	if rep != nil && reflect.TypeOf(rep).Kind() == reflect.Map {
		return sortedEntries(reflect.ValueOf(rep)), nil
	}

	if opts.ObjectBuilder != nil {
		var kvs []any
		if opts.ObjectBuilder(rep, func(k, v any) { kvs = append(kvs, k, v) }) {
			return kvs, nil
		}
	}
	return nil, merr.WrapErrUnsupportedType(rep, "map rep must be a map")
}

// sortedEntries 按键的文本排序，保证 Go map 的输出稳定。
func sortedEntries(rv reflect.Value) []any {
	type entry struct {
		order string
		k, v  any
	}
	entries := make([]entry, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		k := iter.Key().Interface()
		entries = append(entries, entry{order: fmt.Sprint(k), k: k, v: iter.Value().Interface()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].order < entries[j].order })

	kvs := make([]any, 0, 2*len(entries))
	for _, en := range entries {
		kvs = append(kvs, en.k, en.v)
	}
	return kvs
}

// nilPointerAsNull 把带类型的 nil 指针当作 null 写出。
func nilPointerAsNull(v any) any {
	if v == nil {
		return nil
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
		return nil
	}
	return v
}

func textOf(rep any) (string, bool) {
	if s, ok := rep.(string); ok {
		return s, true
	}
	if rep != nil && reflect.TypeOf(rep).Kind() == reflect.String {
		return reflect.ValueOf(rep).String(), true
	}
	return "", false
}

// intRep 返回 int64 形式；超出 int64 时返回十进制文本。
func intRep(rep any) (int64, string, bool) {
	switch r := rep.(type) {
	case int64:
		return r, "", true
	case string:
		if _, ok := new(big.Int).SetString(r, 10); !ok {
			return 0, "", false
		}
		return 0, r, true
	}
	if !IsInteger(rep) {
		return 0, "", false
	}
	n := bigOf(rep)
	if n.IsInt64() {
		return n.Int64(), "", true
	}
	return 0, n.String(), true
}
