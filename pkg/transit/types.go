package transit

import (
	"encoding/base64"
	"math"
	"math/big"
	"net/url"
	"reflect"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/lk2023060901/transit-go/pkg/util/merr"
)

// Keyword 是以 ":" 为 tag 的符号化名字，线上形式为 "~:name"。
type Keyword string

// Symbol 是以 "$" 为 tag 的符号，线上形式为 "~$name"。
type Symbol string

// Char 是单个字符，线上形式为 "~c<char>"。
type Char rune

// URI 是以 "r" 为 tag 的资源标识符。
type URI string

func (u URI) String() string { return string(u) }

// BigDecimal 是任意精度十进制数，保留调用方给出的规范文本（包括小数位数）。
type BigDecimal struct {
	text string
}

func (d BigDecimal) String() string { return d.text }

// Rat 返回十进制数对应的有理数。
func (d BigDecimal) Rat() *big.Rat {
	r, _ := new(big.Rat).SetString(d.text)
	return r
}

// Quoted 用于强制以 ["~#'", v] 的形式写出一个值。读取时会被自动展开。
type Quoted struct {
	value any
}

func (q Quoted) Value() any { return q.value }

// TaggedValue 是 (tag, rep) 二元组，既用于用户扩展类型，也用于未知 tag 的透传。
//
// 构造后不可修改；相等性与哈希通过 Equal / Hash 基于 (tag, rep) 计算。
type TaggedValue struct {
	tag string
	rep any
}

func (tv TaggedValue) Tag() string { return tv.tag }
func (tv TaggedValue) Rep() any    { return tv.rep }

// NewTaggedValue 构造一个 TaggedValue，tag 不能为空。
func NewTaggedValue(tag string, rep any) (TaggedValue, error) {
	if tag == "" {
		return TaggedValue{}, merr.WrapErrInvalidTag(tag, "tag must not be empty")
	}
	return TaggedValue{tag: tag, rep: rep}, nil
}

func IsTaggedValue(v any) bool {
	switch v.(type) {
	case TaggedValue, *TaggedValue:
		return true
	}
	return false
}

func NewKeyword(name string) Keyword { return Keyword(name) }

func IsKeyword(v any) bool {
	_, ok := v.(Keyword)
	return ok
}

func NewSymbol(name string) Symbol { return Symbol(name) }

func IsSymbol(v any) bool {
	_, ok := v.(Symbol)
	return ok
}

func NewChar(r rune) Char { return Char(r) }

// Integer 解析十进制整数文本，int64 放得下时返回 int64，否则返回 *big.Int。
func Integer(s string) (any, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, merr.WrapErrParameterInvalidMsg("invalid integer %q", s)
	}
	if n.IsInt64() {
		return n.Int64(), nil
	}
	return n, nil
}

// IsInteger 判断是否为整数（任意宽度的 Go 整型或 *big.Int）。
func IsInteger(v any) bool {
	if _, ok := v.(*big.Int); ok {
		return true
	}
	if v == nil {
		return false
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	}
	return false
}

func NewBigInt(s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, merr.WrapErrParameterInvalidMsg("invalid big integer %q", s)
	}
	return n, nil
}

func IsBigInt(v any) bool {
	_, ok := v.(*big.Int)
	return ok
}

func NewBigDecimal(s string) (BigDecimal, error) {
	if _, ok := new(big.Rat).SetString(s); !ok {
		return BigDecimal{}, merr.WrapErrParameterInvalidMsg("invalid big decimal %q", s)
	}
	return BigDecimal{text: s}, nil
}

func IsBigDecimal(v any) bool {
	_, ok := v.(BigDecimal)
	return ok
}

func NewURI(s string) (URI, error) {
	if _, err := url.Parse(s); err != nil {
		return "", errors.Wrap(merr.WrapErrParameterInvalidMsg("invalid uri %q", s), err.Error())
	}
	return URI(s), nil
}

func IsURI(v any) bool {
	switch v.(type) {
	case URI, *url.URL:
		return true
	}
	return false
}

// NewUUID 解析 UUID 的标准文本形式。
func NewUUID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, errors.Wrap(merr.WrapErrParameterInvalidMsg("invalid uuid %q", s), err.Error())
	}
	return id, nil
}

// uuidFromInts 由高低两个 64 位整数还原 UUID。
func uuidFromInts(hi, lo int64) uuid.UUID {
	var id uuid.UUID
	for i := 0; i < 8; i++ {
		id[i] = byte(uint64(hi) >> (56 - 8*i))
		id[8+i] = byte(uint64(lo) >> (56 - 8*i))
	}
	return id
}

func IsUUID(v any) bool {
	_, ok := v.(uuid.UUID)
	return ok
}

// NewBinary 由 base64 文本构造二进制值。
func NewBinary(b64 string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, errors.Wrap(merr.WrapErrParameterInvalidMsg("invalid base64 binary"), err.Error())
	}
	return data, nil
}

func IsBinary(v any) bool {
	_, ok := v.([]byte)
	return ok
}

func NewQuoted(v any) Quoted { return Quoted{value: v} }

func IsQuoted(v any) bool {
	_, ok := v.(Quoted)
	return ok
}

// IsTime 判断是否为时间点。
func IsTime(v any) bool {
	_, ok := v.(time.Time)
	return ok
}

// specialFloat 返回 NaN / ±Inf 的线上文本，普通数字返回 false。
func specialFloat(f float64) (string, bool) {
	switch {
	case math.IsNaN(f):
		return "NaN", true
	case math.IsInf(f, 1):
		return "INF", true
	case math.IsInf(f, -1):
		return "-INF", true
	}
	return "", false
}
