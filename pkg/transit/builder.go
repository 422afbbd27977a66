package transit

import (
	"github.com/lk2023060901/transit-go/pkg/util/merr"
)

// MapBuilder 决定 Reader 如何把解码出的键值对组装成映射值。
//
// 使用方式为两阶段：Init 返回一个可变的累加器，反复 Add 之后调用一次 Finalize，
// Finalize 把累加的数据转移给结果值并使累加器失效。
// FromArray 用于所有键值对已经就绪的场景（例如 cmap），结果必须与逐个 Add 的结果相同。
type MapBuilder interface {
	Init(sizeHint int) MapAccumulator
	FromArray(kvs []any) (any, error)
}

// MapAccumulator 是 MapBuilder 的可变阶段。Finalize 之后再调用任何方法都会 panic。
type MapAccumulator interface {
	Add(key, val any)
	Finalize() any
}

// ArrayBuilder 决定 Reader 如何把解码出的元素组装成序列值，约定同 MapBuilder。
type ArrayBuilder interface {
	Init(sizeHint int) ArrayAccumulator
	FromArray(items []any) any
}

type ArrayAccumulator interface {
	Add(item any)
	Finalize() any
}

// DefaultMapBuilder 产出 *Map。
type DefaultMapBuilder struct{}

var _ MapBuilder = DefaultMapBuilder{}

func (DefaultMapBuilder) Init(sizeHint int) MapAccumulator {
	return &mapAccumulator{m: newMap(sizeHint)}
}

func (DefaultMapBuilder) FromArray(kvs []any) (any, error) {
	return NewMap(kvs...)
}

type mapAccumulator struct {
	m *Map
}

func (a *mapAccumulator) Add(key, val any) {
	if a.m == nil {
		panic(merr.ErrBuilderFinalized)
	}
	a.m.put(key, val)
}

func (a *mapAccumulator) Finalize() any {
	if a.m == nil {
		panic(merr.ErrBuilderFinalized)
	}
	m := a.m
	a.m = nil
	return m
}

// DefaultArrayBuilder 产出 *Vector。
type DefaultArrayBuilder struct{}

var _ ArrayBuilder = DefaultArrayBuilder{}

func (DefaultArrayBuilder) Init(sizeHint int) ArrayAccumulator {
	return &arrayAccumulator{v: &Vector{items: make([]any, 0, sizeHint)}}
}

func (DefaultArrayBuilder) FromArray(items []any) any {
	return NewVector(items...)
}

type arrayAccumulator struct {
	v *Vector
}

func (a *arrayAccumulator) Add(item any) {
	if a.v == nil {
		panic(merr.ErrBuilderFinalized)
	}
	a.v.items = append(a.v.items, item)
}

func (a *arrayAccumulator) Finalize() any {
	if a.v == nil {
		panic(merr.ErrBuilderFinalized)
	}
	v := a.v
	a.v = nil
	return v
}

// SliceArrayBuilder 产出普通的 []any，适合不关心不可变性的调用方。
type SliceArrayBuilder struct{}

var _ ArrayBuilder = SliceArrayBuilder{}

func (SliceArrayBuilder) Init(sizeHint int) ArrayAccumulator {
	return &sliceAccumulator{items: make([]any, 0, sizeHint), live: true}
}

func (SliceArrayBuilder) FromArray(items []any) any {
	return append([]any(nil), items...)
}

type sliceAccumulator struct {
	items []any
	live  bool
}

func (a *sliceAccumulator) Add(item any) {
	if !a.live {
		panic(merr.ErrBuilderFinalized)
	}
	a.items = append(a.items, item)
}

func (a *sliceAccumulator) Finalize() any {
	if !a.live {
		panic(merr.ErrBuilderFinalized)
	}
	items := a.items
	a.items, a.live = nil, false
	return items
}
