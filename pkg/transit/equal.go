package transit

import (
	"bytes"
	"encoding/binary"
	"math"
	"math/big"
	"net/url"
	"reflect"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

type category uint8

const (
	catNil category = iota
	catBool
	catInt
	catFloat
	catString
	catKeyword
	catSymbol
	catChar
	catURI
	catBigDec
	catUUID
	catBinary
	catTime
	catSeq
	catMap
	catSet
	catTagged
	catQuoted
	catLink
	catOther
)

func categorize(v any) category {
	switch v.(type) {
	case nil:
		return catNil
	case bool:
		return catBool
	case *big.Int:
		return catInt
	case string:
		return catString
	case Keyword:
		return catKeyword
	case Symbol:
		return catSymbol
	case Char:
		return catChar
	case URI, *url.URL:
		return catURI
	case BigDecimal:
		return catBigDec
	case uuid.UUID:
		return catUUID
	case []byte:
		return catBinary
	case time.Time:
		return catTime
	case *Vector, *List, []any:
		return catSeq
	case *Map:
		return catMap
	case *Set:
		return catSet
	case TaggedValue, *TaggedValue:
		return catTagged
	case Quoted:
		return catQuoted
	case *Link:
		return catLink
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return catBool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return catInt
	case reflect.Float32, reflect.Float64:
		return catFloat
	case reflect.String:
		return catString
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return catBinary
		}
		return catSeq
	case reflect.Array:
		return catSeq
	case reflect.Map:
		return catMap
	}
	return catOther
}

// Equal 判断两个值在格式语义下是否相等。
//
// 有序序列（Vector、List、切片）之间按元素比较，映射（Map、Go map）之间按键值比较，
// 所有整数宽度以及 *big.Int 按数值比较，NaN 视为与自身相等。
func Equal(a, b any) bool {
	ca, cb := categorize(a), categorize(b)
	if ca != cb {
		return false
	}

	switch ca {
	case catNil:
		return true
	case catBool:
		return reflect.ValueOf(a).Bool() == reflect.ValueOf(b).Bool()
	case catInt:
		return bigOf(a).Cmp(bigOf(b)) == 0
	case catFloat:
		fa, fb := reflect.ValueOf(a).Float(), reflect.ValueOf(b).Float()
		if math.IsNaN(fa) && math.IsNaN(fb) {
			return true
		}
		return fa == fb
	case catString:
		return reflect.ValueOf(a).String() == reflect.ValueOf(b).String()
	case catKeyword, catSymbol, catChar, catBigDec, catUUID:
		return a == b
	case catURI:
		return uriText(a) == uriText(b)
	case catBinary:
		return bytes.Equal(reflect.ValueOf(a).Bytes(), reflect.ValueOf(b).Bytes())
	case catTime:
		return a.(time.Time).Equal(b.(time.Time))
	case catSeq:
		sa, sb := seqItems(a), seqItems(b)
		if len(sa) != len(sb) {
			return false
		}
		for i := range sa {
			if !Equal(sa[i], sb[i]) {
				return false
			}
		}
		return true
	case catMap:
		return mapEqual(mapOf(a), mapOf(b))
	case catSet:
		sa, sb := a.(*Set), b.(*Set)
		if sa.Len() != sb.Len() {
			return false
		}
		for _, item := range sa.Slice() {
			if !sb.Contains(item) {
				return false
			}
		}
		return true
	case catTagged:
		ta, tb := taggedOf(a), taggedOf(b)
		return ta.tag == tb.tag && Equal(ta.rep, tb.rep)
	case catQuoted:
		return Equal(a.(Quoted).value, b.(Quoted).value)
	case catLink:
		return mapEqual(a.(*Link).fields, b.(*Link).fields)
	}
	return reflect.DeepEqual(a, b)
}

func mapEqual(a, b *Map) bool {
	if a.Len() != b.Len() {
		return false
	}
	for k, va := range a.All() {
		vb, ok := b.Get(k)
		if !ok || !Equal(va, vb) {
			return false
		}
	}
	return true
}

// Hash 返回与 Equal 一致的哈希值：Equal(a, b) 蕴含 Hash(a) == Hash(b)。
func Hash(v any) uint64 {
	d := xxhash.New()
	var buf [8]byte
	writeUint := func(x uint64) {
		binary.LittleEndian.PutUint64(buf[:], x)
		_, _ = d.Write(buf[:])
	}

	c := categorize(v)
	_, _ = d.Write([]byte{byte(c)})

	switch c {
	case catNil:
	case catBool:
		if reflect.ValueOf(v).Bool() {
			writeUint(1)
		} else {
			writeUint(0)
		}
	case catInt:
		n := bigOf(v)
		if n.IsInt64() {
			writeUint(uint64(n.Int64()))
		} else {
			_, _ = d.Write([]byte{byte(n.Sign() + 1)})
			_, _ = d.Write(n.Bytes())
		}
	case catFloat:
		f := reflect.ValueOf(v).Float()
		switch {
		case math.IsNaN(f):
			writeUint(math.Float64bits(math.NaN()))
		case f == 0:
			writeUint(0)
		default:
			writeUint(math.Float64bits(f))
		}
	case catString:
		_, _ = d.WriteString(reflect.ValueOf(v).String())
	case catKeyword:
		_, _ = d.WriteString(string(v.(Keyword)))
	case catSymbol:
		_, _ = d.WriteString(string(v.(Symbol)))
	case catChar:
		writeUint(uint64(v.(Char)))
	case catURI:
		_, _ = d.WriteString(uriText(v))
	case catBigDec:
		_, _ = d.WriteString(v.(BigDecimal).text)
	case catUUID:
		id := v.(uuid.UUID)
		_, _ = d.Write(id[:])
	case catBinary:
		_, _ = d.Write(reflect.ValueOf(v).Bytes())
	case catTime:
		t := v.(time.Time)
		writeUint(uint64(t.Unix()))
		writeUint(uint64(t.Nanosecond()))
	case catSeq:
		for _, item := range seqItems(v) {
			writeUint(Hash(item))
		}
	case catMap:
		writeUint(mapHash(mapOf(v)))
	case catSet:
		var sum uint64
		for _, item := range v.(*Set).Slice() {
			sum += Hash(item)
		}
		writeUint(sum)
	case catTagged:
		tv := taggedOf(v)
		_, _ = d.WriteString(tv.tag)
		writeUint(Hash(tv.rep))
	case catQuoted:
		writeUint(Hash(v.(Quoted).value))
	case catLink:
		writeUint(mapHash(v.(*Link).fields))
	default:
		_, _ = d.WriteString(reflect.TypeOf(v).String())
	}
	return d.Sum64()
}

// mapHash 与遍历顺序无关。
func mapHash(m *Map) uint64 {
	var sum uint64
	for k, val := range m.All() {
		hk, hv := Hash(k), Hash(val)
		sum += hk*31 ^ hv
	}
	return sum
}

func bigOf(v any) *big.Int {
	if n, ok := v.(*big.Int); ok {
		return n
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return new(big.Int).SetUint64(rv.Uint())
	}
	return big.NewInt(rv.Int())
}

func uriText(v any) string {
	switch u := v.(type) {
	case URI:
		return string(u)
	case *url.URL:
		if u != nil {
			return u.String()
		}
	}
	return ""
}

func taggedOf(v any) TaggedValue {
	if tv, ok := v.(*TaggedValue); ok {
		return *tv
	}
	return v.(TaggedValue)
}

// seqItems 把任意有序序列展开为 []any。
func seqItems(v any) []any {
	switch s := v.(type) {
	case *Vector:
		if s == nil {
			return nil
		}
		return s.items
	case *List:
		if s == nil {
			return nil
		}
		return s.items
	case []any:
		return s
	}
	rv := reflect.ValueOf(v)
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

// mapOf 把 *Map 或 Go map 转为 *Map。Go map 的遍历顺序不确定，仅用于比较。
func mapOf(v any) *Map {
	if m, ok := v.(*Map); ok {
		if m == nil {
			return newMap(0)
		}
		return m
	}
	rv := reflect.ValueOf(v)
	m := newMap(rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		m.put(iter.Key().Interface(), iter.Value().Interface())
	}
	return m
}
