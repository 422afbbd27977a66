package transit

import (
	"math"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/lk2023060901/transit-go/pkg/util/merr"
)

type ReaderSuite struct {
	suite.Suite
}

func (s *ReaderSuite) read(mode Mode, data string, opts ...Option) any {
	r, err := NewReader(mode, opts...)
	s.Require().NoError(err)
	v, err := r.ReadString(data)
	s.Require().NoError(err)
	return v
}

func (s *ReaderSuite) readErr(mode Mode, data string, opts ...Option) error {
	r, err := NewReader(mode, opts...)
	s.Require().NoError(err)
	_, err = r.ReadString(data)
	s.Require().Error(err)
	return err
}

func (s *ReaderSuite) TestScalars() {
	s.Nil(s.read(ModeJSON, `null`))
	s.Equal(true, s.read(ModeJSON, `true`))
	s.Equal(int64(42), s.read(ModeJSON, `42`))
	s.Equal(2.5, s.read(ModeJSON, `2.5`))
	s.Equal(1e21, s.read(ModeJSON, `1e21`))
	s.Equal("hello", s.read(ModeJSON, `"hello"`))
	s.Equal(Keyword("foo"), s.read(ModeJSON, `"~:foo"`))
	s.Equal(Symbol("bar"), s.read(ModeJSON, `"~$bar"`))
	s.Equal(Char('x'), s.read(ModeJSON, `"~cx"`))
	s.Equal("~a", s.read(ModeJSON, `"~~a"`))
	s.Equal("^b", s.read(ModeJSON, `"~^b"`))
	s.Equal("`c", s.read(ModeJSON, "\"~`c\""))
	s.Equal("plain", s.read(ModeJSON, `"~splain"`))
	s.Equal([]byte("hi"), s.read(ModeJSON, `"~baGk="`))
	s.Equal(URI("http://example.com"), s.read(ModeJSON, `"~rhttp://example.com"`))
	s.Equal(uuid.MustParse("5a2cbea3-e8c6-428b-b525-21239370dd55"),
		s.read(ModeJSON, `"~u5a2cbea3-e8c6-428b-b525-21239370dd55"`))
	s.Equal("1.50", s.read(ModeJSON, `"~f1.50"`).(BigDecimal).String())
	s.Nil(s.read(ModeJSON, `"~_"`))
	s.Equal(false, s.read(ModeJSON, `"~?f"`))
	s.Equal(int64(7), s.read(ModeJSON, `"~i7"`))
	s.Equal(0.5, s.read(ModeJSON, `"~d0.5"`))

	s.True(math.IsNaN(s.read(ModeJSON, `"~zNaN"`).(float64)))
	s.True(math.IsInf(s.read(ModeJSON, `"~zINF"`).(float64), 1))
	s.True(math.IsInf(s.read(ModeJSON, `"~z-INF"`).(float64), -1))
}

func (s *ReaderSuite) TestBigIntegers() {
	want, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	s.Equal(0, want.Cmp(s.read(ModeJSON, `"~n123456789012345678901234567890"`).(*big.Int)))
	s.Equal(0, want.Cmp(s.read(ModeJSON, `"~i123456789012345678901234567890"`).(*big.Int)))
	s.Equal(0, want.Cmp(s.read(ModeJSON, `123456789012345678901234567890`).(*big.Int)))
	s.Equal(int64(9007199254740992), s.read(ModeJSON, `"~i9007199254740992"`))
}

func (s *ReaderSuite) TestTime() {
	want := time.UnixMilli(1700000000123).UTC()
	s.Equal(want, s.read(ModeJSON, `"~m1700000000123"`))
	s.Equal(want, s.read(ModeJSON, `"~t2023-11-14T22:13:20.123Z"`))
	s.Equal(want, s.read(ModeJSON, `["~#m",1700000000123]`))
}

func (s *ReaderSuite) TestSet() {
	v := s.read(ModeJSON, `["~#set",[1,2,3]]`)
	s.Require().True(IsSet(v))
	s.True(Equal(NewSet(1, 2, 3), v))

	v = s.read(ModeJSONVerbose, `{"~#set":[1,2,3]}`)
	s.True(Equal(NewSet(1, 2, 3), v))
}

func (s *ReaderSuite) TestMap() {
	v := s.read(ModeJSON, `["^ ","~:a",1,"b","~~x"]`)
	m, ok := v.(*Map)
	s.Require().True(ok)
	s.Equal(2, m.Len())
	got, ok := m.Get(Keyword("a"))
	s.True(ok)
	s.Equal(int64(1), got)
	got, _ = m.Get("b")
	s.Equal("~x", got)

	v = s.read(ModeJSONVerbose, `{"~:a":1,"b":"~~x"}`)
	s.True(Equal(m, v))

	v = s.read(ModeJSON, `["^ ","~i1","a","~?t","b","~_","c"]`)
	want, err := NewMap(1, "a", true, "b", nil, "c")
	s.Require().NoError(err)
	s.True(Equal(want, v))

	s.Equal(0, s.read(ModeJSON, `["^ "]`).(*Map).Len())
	s.Equal(0, s.read(ModeJSONVerbose, `{}`).(*Map).Len())
}

func (s *ReaderSuite) TestCompositeKeys() {
	v := s.read(ModeJSON, `["~#cmap",[[1,2],"v"]]`)
	m, ok := v.(*Map)
	s.Require().True(ok)
	got, ok := m.Get(NewVector(1, 2))
	s.True(ok)
	s.Equal("v", got)

	s.ErrorIs(s.readErr(ModeJSON, `["~#cmap",[[1,2]]]`), merr.ErrMalformedWire)
}

func (s *ReaderSuite) TestCache() {
	v := s.read(ModeJSON, `[["^ ","name",1],["^ ","^0",2]]`)
	vec := v.(*Vector)
	s.Require().Equal(2, vec.Len())
	got, ok := vec.At(1).(*Map).Get("name")
	s.True(ok)
	s.Equal(int64(2), got)

	v = s.read(ModeJSON, `[["~#set",[1]],["^0",[2]]]`)
	s.True(Equal(NewVector(NewSet(1), NewSet(2)), v))

	s.ErrorIs(s.readErr(ModeJSON, `["^0"]`), merr.ErrMalformedWire)
}

func (s *ReaderSuite) TestLink() {
	v := s.read(ModeJSON, `["~#link",["^ ","href","~rhttp://example.com","rel","self","render","image"]]`)
	l, ok := v.(*Link)
	s.Require().True(ok)
	s.Equal(URI("http://example.com"), l.Href())
	s.Equal("self", l.Rel())
	s.Equal("image", l.Render())
	s.Empty(l.Name())
}

func (s *ReaderSuite) TestQuote() {
	s.Equal(int64(5), s.read(ModeJSON, `["~#'",5]`))
	s.Equal(Keyword("foo"), s.read(ModeJSONVerbose, `{"~#'":"~:foo"}`))
}

func (s *ReaderSuite) TestUnknownGroundTag() {
	s.ErrorIs(s.readErr(ModeJSON, `"~qfoo"`), merr.ErrUnknownGroundTag)
	s.ErrorIs(s.readErr(ModeJSON, `"~qfoo"`, WithStrict(true)), merr.ErrUnknownGroundTag)

	v := s.read(ModeJSON, `"~qfoo"`, WithGroundTagPolicy(TagPolicyPassthrough))
	tv, ok := v.(TaggedValue)
	s.Require().True(ok)
	s.Equal("q", tv.Tag())
	s.Equal("foo", tv.Rep())

	v = s.read(ModeJSON, `["~qfoo"]`, WithStrict(false))
	s.True(Equal(NewVector(TaggedValue{tag: "q", rep: "foo"}), v))
}

func (s *ReaderSuite) TestUnknownStructuralTag() {
	v := s.read(ModeJSON, `["~#point",[1,2]]`)
	tv, ok := v.(TaggedValue)
	s.Require().True(ok)
	s.Equal("point", tv.Tag())
	s.Equal([]any{int64(1), int64(2)}, tv.Rep())

	v = s.read(ModeJSONVerbose, `{"~#point":["^ ","x",1]}`)
	tv, ok = v.(TaggedValue)
	s.Require().True(ok)
	s.True(IsMap(tv.Rep()))

	s.ErrorIs(s.readErr(ModeJSON, `["~#point",[1,2]]`, WithStrict(true)), merr.ErrUnknownStructuralTag)
	s.ErrorIs(s.readErr(ModeJSON, `["~#point",[1,2]]`, WithStructuralTagPolicy(TagPolicyFail)), merr.ErrUnknownStructuralTag)
}

func (s *ReaderSuite) TestMalformed() {
	cases := map[string]string{
		"tag without rep":     `["~#set"]`,
		"tag with two reps":   `["~#set",[1],[2]]`,
		"odd map array":       `["^ ","a"]`,
		"stray tag":           `"~#set"`,
		"stray tag in array":  `[1,"~#set"]`,
		"tag as map key":      `{"a":1,"~#set":[1]}`,
		"tagged object extra": `{"~#set":[1],"a":2}`,
		"empty tag":           `"~#"`,
		"unknown cache code":  `"^A"`,
		"unterminated array":  `[1,2`,
		"unterminated object": `{"a":1`,
		"unterminated string": `"abc`,
		"trailing data":       `[1] x`,
		"second document":     `1 2`,
		"empty input":         ``,
		"invalid token":       `@`,
		"char too long":       `"~cxy"`,
		"bad uuid":            `"~unot-a-uuid"`,
		"bad binary":          `"~b!!"`,
		"bad int":             `"~iabc"`,
		"bad set rep":         `["~#set","x"]`,
	}
	for name, data := range cases {
		s.Run(name, func() {
			r, err := NewReader(ModeJSON)
			s.Require().NoError(err)
			_, err = r.ReadString(data)
			s.Error(err)
		})
	}

	s.ErrorIs(s.readErr(ModeJSON, `["~#set"]`), merr.ErrMalformedWire)
	s.ErrorIs(s.readErr(ModeJSON, `[1] x`), merr.ErrMalformedWire)
	s.ErrorIs(s.readErr(ModeJSON, `[1,2`), merr.ErrMalformedWire)
	s.ErrorIs(s.readErr(ModeJSON, ``), merr.ErrMalformedWire)
}

func (s *ReaderSuite) TestWhitespace() {
	s.True(Equal(NewVector(1, 2), s.read(ModeJSON, " [ 1 , 2 ] \n")))
}

func (s *ReaderSuite) TestMaxDepth() {
	s.ErrorIs(s.readErr(ModeJSON, `[[[[1]]]]`, WithMaxDepth(3)), merr.ErrMalformedWire)
	s.NotNil(s.read(ModeJSON, `[[[1]]]`, WithMaxDepth(3)))

	deep := strings.Repeat("[", 500) + strings.Repeat("]", 500)
	s.NotNil(s.read(ModeJSON, deep))
}

func (s *ReaderSuite) TestArrayBuilder() {
	v := s.read(ModeJSON, `[1,[2,3]]`, WithArrayBuilder(SliceArrayBuilder{}))
	s.Equal([]any{int64(1), []any{int64(2), int64(3)}}, v)

	// set 的 rep 不经过 ArrayBuilder。
	v = s.read(ModeJSON, `["~#set",[1]]`, WithArrayBuilder(SliceArrayBuilder{}))
	s.True(IsSet(v))

	// 显式的 "array" tag 走 FromArray。
	v = s.read(ModeJSON, `["~#array",[1,2]]`, WithArrayBuilder(SliceArrayBuilder{}))
	s.Equal([]any{int64(1), int64(2)}, v)
}

func (s *ReaderSuite) TestMapBuilder() {
	b := &countingMapBuilder{}
	v := s.read(ModeJSON, `[["^ ","a",1],["~#cmap",[[1],2]]]`, WithMapBuilder(b))
	s.Equal(1, b.inits)
	s.Equal(1, b.fromArrays)

	vec := v.(*Vector)
	s.Equal(map[any]any{"a": int64(1)}, vec.At(0))
	s.IsType(map[any]any{}, vec.At(1))
}

func (s *ReaderSuite) TestDecode() {
	r, err := NewReader(ModeJSON)
	s.Require().NoError(err)
	v, err := r.Decode(strings.NewReader(`["~#set",[1,2,3]]`))
	s.Require().NoError(err)
	s.True(Equal(NewSet(1, 2, 3), v))
}

func (s *ReaderSuite) TestUnmarshal() {
	v, err := Unmarshal(ModeJSON, []byte(`"~:foo"`))
	s.Require().NoError(err)
	s.Equal(Keyword("foo"), v)
}

// countingMapBuilder 产出 map[any]any，组合键按文本展开。
type countingMapBuilder struct {
	inits      int
	fromArrays int
}

type goMapAccumulator struct {
	m map[any]any
}

func (a *goMapAccumulator) Add(k, v any) { a.m[mapKey(k)] = v }
func (a *goMapAccumulator) Finalize() any {
	m := a.m
	a.m = nil
	return m
}

func (b *countingMapBuilder) Init(sizeHint int) MapAccumulator {
	b.inits++
	return &goMapAccumulator{m: make(map[any]any, sizeHint)}
}

func (b *countingMapBuilder) FromArray(kvs []any) (any, error) {
	b.fromArrays++
	m := make(map[any]any, len(kvs)/2)
	for i := 0; i < len(kvs); i += 2 {
		m[mapKey(kvs[i])] = kvs[i+1]
	}
	return m, nil
}

func mapKey(k any) any {
	if v, ok := k.(*Vector); ok {
		return len(v.Slice())
	}
	return k
}

func TestReader(t *testing.T) {
	suite.Run(t, new(ReaderSuite))
}
