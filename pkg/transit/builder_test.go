package transit

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/lk2023060901/transit-go/pkg/util/merr"
)

type BuilderSuite struct {
	suite.Suite
}

func (s *BuilderSuite) TestMapBuilder() {
	kvs := []any{"a", 1, Keyword("b"), 2, NewVector(1), 3, "a", 4}

	acc := DefaultMapBuilder{}.Init(len(kvs) / 2)
	for i := 0; i < len(kvs); i += 2 {
		acc.Add(kvs[i], kvs[i+1])
	}
	incremental := acc.Finalize()

	fromArray, err := DefaultMapBuilder{}.FromArray(kvs)
	s.Require().NoError(err)
	s.True(Equal(incremental, fromArray))

	m := incremental.(*Map)
	s.Equal(3, m.Len())
	v, _ := m.Get("a")
	s.Equal(4, v)
	s.Equal([]any{"a", Keyword("b"), NewVector(1)}, m.Keys())

	_, err = DefaultMapBuilder{}.FromArray([]any{"odd"})
	s.ErrorIs(err, merr.ErrInvalidArity)
}

func (s *BuilderSuite) TestArrayBuilder() {
	items := []any{1, "two", Keyword("three")}

	acc := DefaultArrayBuilder{}.Init(len(items))
	for _, item := range items {
		acc.Add(item)
	}
	vec := acc.Finalize()
	s.True(Equal(vec, DefaultArrayBuilder{}.FromArray(items)))
	s.IsType(&Vector{}, vec)

	sacc := SliceArrayBuilder{}.Init(0)
	for _, item := range items {
		sacc.Add(item)
	}
	s.Equal(items, sacc.Finalize())
	s.Equal(items, SliceArrayBuilder{}.FromArray(items))
}

func (s *BuilderSuite) TestFinalizeConsumes() {
	macc := DefaultMapBuilder{}.Init(0)
	macc.Add("k", 1)
	macc.Finalize()
	s.PanicsWithValue(merr.ErrBuilderFinalized, func() { macc.Add("k", 2) })
	s.PanicsWithValue(merr.ErrBuilderFinalized, func() { macc.Finalize() })

	aacc := DefaultArrayBuilder{}.Init(0)
	aacc.Finalize()
	s.PanicsWithValue(merr.ErrBuilderFinalized, func() { aacc.Add(1) })

	sacc := SliceArrayBuilder{}.Init(0)
	sacc.Finalize()
	s.PanicsWithValue(merr.ErrBuilderFinalized, func() { sacc.Finalize() })
}

// 修改 FromArray 的输入不影响已构建的值。
func (s *BuilderSuite) TestFromArrayCopies() {
	items := []any{1, 2}
	vec := DefaultArrayBuilder{}.FromArray(items).(*Vector)
	items[0] = 9
	s.Equal(1, vec.At(0))
}

func TestBuilder(t *testing.T) {
	suite.Run(t, new(BuilderSuite))
}
