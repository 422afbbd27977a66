package transit

import (
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/lk2023060901/transit-go/pkg/log"
	"github.com/lk2023060901/transit-go/pkg/metrics"
	"github.com/lk2023060901/transit-go/pkg/util/merr"
)

// Reader 把线上字节解码为值。
//
// Reader 不能被多个 goroutine 同时使用，每次 Read 使用独立的缓存。
// 未知 tag 透传时会输出限流的告警日志，日志器可通过 SetLogger 注入。
type Reader struct {
	log.Binder

	mode     Mode
	opts     *Options
	registry *Registry
}

// NewReader 以独立的 Registry 创建 Reader。
func NewReader(mode Mode, opts ...Option) (*Reader, error) {
	c, err := NewCodec(mode, opts...)
	if err != nil {
		return nil, err
	}
	return c.NewReader(), nil
}

func (r *Reader) Mode() Mode { return r.mode }

// Read 解码一个完整的文档，文档之后只允许出现空白。
func (r *Reader) Read(data []byte) (v any, err error) {
	start := time.Now()
	defer func() { metrics.ObserveCodec(r.mode.String(), metrics.DecodeLabel, len(data), start, err) }()

	iter := wireJSON.BorrowIterator(data)
	defer wireJSON.ReturnIterator(iter)
	return r.decode(iter)
}

func (r *Reader) ReadString(s string) (any, error) {
	return r.Read([]byte(s))
}

// Decode 从 in 读取并解码一个完整的文档。
func (r *Reader) Decode(in io.Reader) (any, error) {
	data, err := io.ReadAll(in)
	if err != nil {
		return nil, merr.WrapErrIoFailed("transit", err)
	}
	return r.Read(data)
}

func (r *Reader) decode(iter *jsoniter.Iterator) (any, error) {
	d := &decoder{r: r, iter: iter, cache: newReadCache()}
	v, err := d.value(0, false)
	if err != nil {
		return nil, err
	}
	// 读到结尾时 iter.Error 为 io.EOF；仍为 nil 说明文档之后还有内容。
	iter.WhatIsNext()
	if iter.Error == nil {
		return nil, merr.WrapErrMalformedWire("trailing data after document")
	}
	if iter.Error != io.EOF {
		return nil, d.syntaxError()
	}
	return v, nil
}

type arrayKind uint8

const (
	arrayPlain arrayKind = iota
	arrayMap
	arrayTagged
)

type decoder struct {
	r     *Reader
	iter  *jsoniter.Iterator
	cache *readCache
}

func (d *decoder) failed() bool {
	return d.iter.Error != nil && d.iter.Error != io.EOF
}

func (d *decoder) syntaxError() error {
	reason := "invalid json"
	if d.iter.Error != nil {
		reason = d.iter.Error.Error()
	}
	return merr.WrapErrMalformedWire(reason)
}

// value 解码一个值，并拒绝出现在非 tag 位置上的 "~#tag"。
func (d *decoder) value(depth int, asKey bool) (any, error) {
	v, err := d.any(depth, asKey)
	if err != nil {
		return nil, err
	}
	if t, ok := v.(tagMarker); ok {
		return nil, merr.WrapErrMalformedWire(fmt.Sprintf("tag %q outside of a tagged value", string(t)))
	}
	return v, nil
}

func (d *decoder) any(depth int, asKey bool) (any, error) {
	if depth > d.r.opts.MaxDepth {
		return nil, merr.WrapErrMalformedWire(fmt.Sprintf("nesting deeper than %d", d.r.opts.MaxDepth))
	}

	switch d.iter.WhatIsNext() {
	case jsoniter.StringValue:
		s := d.iter.ReadString()
		if d.failed() {
			return nil, d.syntaxError()
		}
		return d.decodeString(s, asKey)
	case jsoniter.NumberValue:
		n := d.iter.ReadNumber()
		if d.failed() {
			return nil, d.syntaxError()
		}
		return d.parseNumber(n)
	case jsoniter.NilValue:
		d.iter.ReadNil()
		if d.failed() {
			return nil, d.syntaxError()
		}
		return nil, nil
	case jsoniter.BoolValue:
		b := d.iter.ReadBool()
		if d.failed() {
			return nil, d.syntaxError()
		}
		return b, nil
	case jsoniter.ArrayValue:
		return d.decodeArray(depth+1, false)
	case jsoniter.ObjectValue:
		return d.decodeObject(depth + 1)
	}
	if d.iter.Error == io.EOF {
		return nil, merr.WrapErrMalformedWire("unexpected end of input")
	}
	return nil, d.syntaxError()
}

func (d *decoder) parseNumber(n json.Number) (any, error) {
	s := string(n)
	if strings.ContainsAny(s, ".eE") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, merr.WrapErrMalformedWire(fmt.Sprintf("invalid number %q", s))
		}
		return f, nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	if b, ok := new(big.Int).SetString(s, 10); ok {
		return b, nil
	}
	return nil, merr.WrapErrMalformedWire(fmt.Sprintf("invalid number %q", s))
}

// decodeString 解析缓存码、转义与 ground tag，并按写入端相同的规则登记缓存。
func (d *decoder) decodeString(s string, asKey bool) (any, error) {
	if isCacheCode(s) {
		v, ok := d.cache.get(s)
		if !ok {
			return nil, merr.WrapErrMalformedWire(fmt.Sprintf("unknown cache code %q", s))
		}
		return v, nil
	}

	v, err := d.parseString(s)
	if err != nil {
		return nil, err
	}
	if isCacheable(s, asKey) {
		d.cache.put(v)
	}
	return v, nil
}

func (d *decoder) parseString(s string) (any, error) {
	if len(s) < 2 || s[0] != escapeChar {
		return s, nil
	}
	switch s[1] {
	case escapeChar, subChar, reservedChar:
		return s[1:], nil
	case tagChar:
		if len(s) == 2 {
			return nil, merr.WrapErrMalformedWire("empty tag")
		}
		return tagMarker(s[2:]), nil
	}

	_, size := utf8.DecodeRuneInString(s[1:])
	tag, rep := s[1:1+size], s[1+size:]
	h, ok := d.r.registry.ResolveReadHandler(tag)
	if !ok {
		if d.r.opts.GroundTagPolicy == TagPolicyPassthrough {
			return TaggedValue{tag: tag, rep: rep}, nil
		}
		return nil, merr.WrapErrUnknownGroundTag(tag)
	}
	return h(rep)
}

// decodeArray 根据首元素区分三种数组：["^ ", ...] 为 map，["~#tag", rep] 为结构化 tag，
// 其余为普通数组。raw 为 true 时普通数组直接返回 []any，不经过 ArrayBuilder。
func (d *decoder) decodeArray(depth int, raw bool) (any, error) {
	var (
		idx   int
		kind  arrayKind
		acc   ArrayAccumulator
		items []any
		macc  MapAccumulator
		tag   string
		rep   any
		key   any
		err   error
	)

	add := func(v any) {
		if raw {
			items = append(items, v)
			return
		}
		if acc == nil {
			acc = d.r.opts.ArrayBuilder.Init(0)
		}
		acc.Add(v)
	}

	ok := d.iter.ReadArrayCB(func(it *jsoniter.Iterator) bool {
		idx++
		if idx == 1 {
			if it.WhatIsNext() == jsoniter.StringValue {
				s := it.ReadString()
				if d.failed() {
					err = d.syntaxError()
					return false
				}
				if s == mapAsArray {
					kind = arrayMap
					macc = d.r.opts.MapBuilder.Init(0)
					return true
				}
				var v any
				if v, err = d.decodeString(s, false); err != nil {
					return false
				}
				if t, isTag := v.(tagMarker); isTag {
					kind, tag = arrayTagged, string(t)
					return true
				}
				add(v)
				return true
			}
			var v any
			if v, err = d.value(depth, false); err != nil {
				return false
			}
			add(v)
			return true
		}

		switch kind {
		case arrayTagged:
			if idx > 2 {
				err = merr.WrapErrMalformedWire(fmt.Sprintf("tagged value %q must have exactly one representation", tag))
				return false
			}
			rep, err = d.tagRep(depth)
		case arrayMap:
			if idx%2 == 0 {
				key, err = d.value(depth, true)
			} else {
				var v any
				if v, err = d.value(depth, false); err == nil {
					macc.Add(key, v)
				}
			}
		default:
			var v any
			if v, err = d.value(depth, false); err == nil {
				add(v)
			}
		}
		return err == nil
	})
	if err != nil {
		return nil, err
	}
	if !ok || d.failed() {
		return nil, d.syntaxError()
	}

	switch kind {
	case arrayTagged:
		if idx != 2 {
			return nil, merr.WrapErrMalformedWire(fmt.Sprintf("tagged value %q must have exactly one representation", tag))
		}
		return d.applyTag(tag, rep)
	case arrayMap:
		if (idx-1)%2 != 0 {
			return nil, merr.WrapErrMalformedWire("map array has an odd number of entries")
		}
		return macc.Finalize(), nil
	}
	if raw {
		if items == nil {
			items = []any{}
		}
		return items, nil
	}
	if acc == nil {
		acc = d.r.opts.ArrayBuilder.Init(0)
	}
	return acc.Finalize(), nil
}

// decodeObject 解码冗长模式的 JSON object；只有一个 "~#tag" 键的 object 视为结构化 tag。
func (d *decoder) decodeObject(depth int) (any, error) {
	var (
		idx    int
		tagged bool
		tag    string
		rep    any
		macc   MapAccumulator
		err    error
	)

	ok := d.iter.ReadObjectCB(func(it *jsoniter.Iterator, field string) bool {
		if d.failed() {
			err = d.syntaxError()
			return false
		}
		idx++
		var k any
		if k, err = d.decodeString(field, true); err != nil {
			return false
		}
		t, isTag := k.(tagMarker)
		if idx == 1 && isTag {
			tagged, tag = true, string(t)
			rep, err = d.tagRep(depth)
			return err == nil
		}
		if tagged {
			err = merr.WrapErrMalformedWire(fmt.Sprintf("tagged object %q must have exactly one entry", tag))
			return false
		}
		if isTag {
			err = merr.WrapErrMalformedWire(fmt.Sprintf("tag %q used as a map key", string(t)))
			return false
		}
		if macc == nil {
			macc = d.r.opts.MapBuilder.Init(0)
		}
		var v any
		if v, err = d.value(depth, false); err != nil {
			return false
		}
		macc.Add(k, v)
		return true
	})
	if err != nil {
		return nil, err
	}
	if !ok || d.failed() {
		return nil, d.syntaxError()
	}

	if tagged {
		return d.applyTag(tag, rep)
	}
	if macc == nil {
		macc = d.r.opts.MapBuilder.Init(0)
	}
	return macc.Finalize(), nil
}

// tagRep 解码结构化 tag 的 rep：数组 rep 以 []any 交给 ReadHandler。
func (d *decoder) tagRep(depth int) (any, error) {
	if d.iter.WhatIsNext() == jsoniter.ArrayValue {
		if depth+1 > d.r.opts.MaxDepth {
			return nil, merr.WrapErrMalformedWire(fmt.Sprintf("nesting deeper than %d", d.r.opts.MaxDepth))
		}
		return d.decodeArray(depth+1, true)
	}
	return d.value(depth, false)
}

func (d *decoder) applyTag(tag string, rep any) (any, error) {
	h, ok := d.r.registry.ResolveReadHandler(tag)
	if !ok {
		if d.r.opts.StructuralTagPolicy == TagPolicyFail {
			return nil, merr.WrapErrUnknownStructuralTag(tag)
		}
		d.r.Logger().RatedWarn(10, "transit: passing through unknown tag", zap.String("tag", tag))
		return TaggedValue{tag: tag, rep: rep}, nil
	}
	v, err := h(rep)
	if err != nil {
		return nil, errors.Wrapf(err, "read tag %q", tag)
	}
	return v, nil
}
