package transit

import (
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/cockroachdb/errors"

	"github.com/lk2023060901/transit-go/pkg/util/merr"
)

// ReadHandler 把某个 tag 的 rep（已递归解码）还原为值。
type ReadHandler func(rep any) (any, error)

func malformedRep(tag string, rep any) error {
	return merr.WrapErrMalformedWire(fmt.Sprintf("unexpected representation %T for tag %q", rep, tag))
}

func stringRep(tag string, rep any) (string, error) {
	s, ok := rep.(string)
	if !ok {
		return "", malformedRep(tag, rep)
	}
	return s, nil
}

// textReader 包装只接受字符串 rep 的解析函数，解析失败统一视为线上数据错误。
func textReader(tag string, parse func(s string) (any, error)) ReadHandler {
	return func(rep any) (any, error) {
		s, err := stringRep(tag, rep)
		if err != nil {
			return nil, err
		}
		v, err := parse(s)
		if err != nil {
			return nil, errors.Wrap(merr.WrapErrMalformedWire(fmt.Sprintf("bad %q value %q", tag, s)), err.Error())
		}
		return v, nil
	}
}

func readNull(any) (any, error) { return nil, nil }

func readBool(rep any) (any, error) {
	switch r := rep.(type) {
	case bool:
		return r, nil
	case string:
		switch r {
		case "t":
			return true, nil
		case "f":
			return false, nil
		}
	}
	return nil, malformedRep(TagBool, rep)
}

func readInt(rep any) (any, error) {
	switch r := rep.(type) {
	case int64, *big.Int:
		return r, nil
	case string:
		v, err := Integer(r)
		if err != nil {
			return nil, malformedRep(TagInt, rep)
		}
		return v, nil
	}
	return nil, malformedRep(TagInt, rep)
}

func readFloat(rep any) (any, error) {
	switch r := rep.(type) {
	case float64:
		return r, nil
	case int64:
		return float64(r), nil
	case string:
		f, err := strconv.ParseFloat(r, 64)
		if err != nil {
			return nil, malformedRep(TagFloat, rep)
		}
		return f, nil
	}
	return nil, malformedRep(TagFloat, rep)
}

func readSpecial(rep any) (any, error) {
	switch rep {
	case "NaN":
		return math.NaN(), nil
	case "INF":
		return math.Inf(1), nil
	case "-INF":
		return math.Inf(-1), nil
	}
	return nil, malformedRep(TagSpecial, rep)
}

func readBigInt(rep any) (any, error) {
	switch r := rep.(type) {
	case int64:
		return big.NewInt(r), nil
	case *big.Int:
		return r, nil
	}
	return textReader(TagBigInt, func(s string) (any, error) { return NewBigInt(s) })(rep)
}

func readChar(rep any) (any, error) {
	s, err := stringRep(TagChar, rep)
	if err != nil {
		return nil, err
	}
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 || size != len(s) {
		return nil, malformedRep(TagChar, rep)
	}
	return Char(r), nil
}

func readTime(rep any) (any, error) {
	return textReader(TagTime, func(s string) (any, error) {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, err
		}
		return t.UTC(), nil
	})(rep)
}

func readTimeMilli(rep any) (any, error) {
	switch r := rep.(type) {
	case int64:
		return time.UnixMilli(r).UTC(), nil
	case string:
		ms, err := strconv.ParseInt(r, 10, 64)
		if err != nil {
			return nil, malformedRep(TagTimeMilli, rep)
		}
		return time.UnixMilli(ms).UTC(), nil
	}
	return nil, malformedRep(TagTimeMilli, rep)
}

// readUUID 同时接受标准文本与 [hi, lo] 两个 64 位整数的形式。
func readUUID(rep any) (any, error) {
	if items, ok := seqOf(rep); ok {
		if len(items) != 2 {
			return nil, malformedRep(TagUUID, rep)
		}
		hi, okHi := items[0].(int64)
		lo, okLo := items[1].(int64)
		if !okHi || !okLo {
			return nil, malformedRep(TagUUID, rep)
		}
		return uuidFromInts(hi, lo), nil
	}
	return textReader(TagUUID, func(s string) (any, error) { return NewUUID(s) })(rep)
}

func readQuote(rep any) (any, error) { return rep, nil }

func readSet(rep any) (any, error) {
	items, ok := seqOf(rep)
	if !ok {
		return nil, malformedRep(TagSet, rep)
	}
	return NewSet(items...), nil
}

func readList(rep any) (any, error) {
	items, ok := seqOf(rep)
	if !ok {
		return nil, malformedRep(TagList, rep)
	}
	return &List{items: items}, nil
}

func readLink(rep any) (any, error) {
	switch r := rep.(type) {
	case *Map:
		return LinkFromMap(r), nil
	case nil:
		return nil, malformedRep(TagLink, rep)
	}
	if reflect.TypeOf(rep).Kind() == reflect.Map {
		return LinkFromMap(mapOf(rep)), nil
	}
	return nil, malformedRep(TagLink, rep)
}

// seqOf 识别解码结果中的有序序列，包括调用方 ArrayBuilder 产出的切片类型。
func seqOf(rep any) ([]any, bool) {
	switch r := rep.(type) {
	case []any:
		return r, true
	case *Vector, *List:
		return seqItems(r), true
	case nil:
		return nil, false
	}
	switch reflect.TypeOf(rep).Kind() {
	case reflect.Slice, reflect.Array:
		return seqItems(rep), true
	}
	return nil, false
}

// defaultReadHandlers 返回内置 tag 的读 handler；依赖 builder 的 handler 以闭包形式绑定到 o。
func defaultReadHandlers(o *Options) map[string]ReadHandler {
	arrayFromRep := func(rep any) (any, error) {
		items, ok := seqOf(rep)
		if !ok {
			return nil, malformedRep(TagArray, rep)
		}
		return o.ArrayBuilder.FromArray(items), nil
	}
	mapFromKVs := func(tag string) ReadHandler {
		return func(rep any) (any, error) {
			items, ok := seqOf(rep)
			if !ok {
				if IsMap(rep) || (rep != nil && reflect.TypeOf(rep).Kind() == reflect.Map) {
					return rep, nil
				}
				return nil, malformedRep(tag, rep)
			}
			if len(items)%2 != 0 {
				return nil, merr.WrapErrMalformedWire(fmt.Sprintf("%q expects an even number of entries, got %d", tag, len(items)))
			}
			return o.MapBuilder.FromArray(items)
		}
	}

	return map[string]ReadHandler{
		TagNull:      readNull,
		TagString:    textReader(TagString, func(s string) (any, error) { return s, nil }),
		TagBool:      readBool,
		TagInt:       readInt,
		TagFloat:     readFloat,
		TagSpecial:   readSpecial,
		TagBinary:    textReader(TagBinary, func(s string) (any, error) { return NewBinary(s) }),
		TagBigInt:    readBigInt,
		TagBigDec:    textReader(TagBigDec, func(s string) (any, error) { return NewBigDecimal(s) }),
		TagChar:      readChar,
		TagTime:      readTime,
		TagTimeMilli: readTimeMilli,
		TagURI:       textReader(TagURI, func(s string) (any, error) { return NewURI(s) }),
		TagUUID:      readUUID,
		TagKeyword:   textReader(TagKeyword, func(s string) (any, error) { return Keyword(s), nil }),
		TagSymbol:    textReader(TagSymbol, func(s string) (any, error) { return Symbol(s), nil }),
		TagQuote:     readQuote,
		TagSet:       readSet,
		TagList:      readList,
		TagArray:     arrayFromRep,
		TagMap:       mapFromKVs(TagMap),
		TagCMap:      mapFromKVs(TagCMap),
		TagLink:      readLink,
	}
}
