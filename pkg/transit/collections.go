package transit

import (
	"iter"

	"github.com/lk2023060901/transit-go/pkg/util/merr"
)

// Vector 是不可变的有序序列，线上形式为 JSON 数组。
type Vector struct {
	items []any
}

// NewVector 复制 items 构造 Vector。
func NewVector(items ...any) *Vector {
	return &Vector{items: append([]any(nil), items...)}
}

func (v *Vector) Len() int {
	if v == nil {
		return 0
	}
	return len(v.items)
}

func (v *Vector) At(i int) any { return v.items[i] }

// Slice 返回元素的副本。
func (v *Vector) Slice() []any {
	if v == nil {
		return nil
	}
	return append([]any(nil), v.items...)
}

func (v *Vector) All() iter.Seq2[int, any] {
	return func(yield func(int, any) bool) {
		for i, item := range v.items {
			if !yield(i, item) {
				return
			}
		}
	}
}

func IsVector(v any) bool {
	_, ok := v.(*Vector)
	return ok
}

// List 是不可变的有序序列，线上形式为 ["~#list", [...]]。
type List struct {
	items []any
}

func NewList(items ...any) *List {
	return &List{items: append([]any(nil), items...)}
}

func (l *List) Len() int {
	if l == nil {
		return 0
	}
	return len(l.items)
}

func (l *List) At(i int) any { return l.items[i] }

func (l *List) Slice() []any {
	if l == nil {
		return nil
	}
	return append([]any(nil), l.items...)
}

func (l *List) All() iter.Seq2[int, any] {
	return func(yield func(int, any) bool) {
		for i, item := range l.items {
			if !yield(i, item) {
				return
			}
		}
	}
}

func IsList(v any) bool {
	_, ok := v.(*List)
	return ok
}

// hashIndex 按 Hash 分桶，桶内用 Equal 精确比较，支持任意（包括复合）键。
type hashIndex map[uint64][]int

func (idx hashIndex) find(keys []any, k any, h uint64) int {
	for _, i := range idx[h] {
		if Equal(keys[i], k) {
			return i
		}
	}
	return -1
}

// Map 是不可变、保持插入顺序、键唯一的映射，键可以是任意值（包括复合值）。
type Map struct {
	keys  []any
	vals  []any
	index hashIndex
}

func newMap(sizeHint int) *Map {
	return &Map{
		keys:  make([]any, 0, sizeHint),
		vals:  make([]any, 0, sizeHint),
		index: make(hashIndex, sizeHint),
	}
}

// NewMap 由交替出现的 key、value 构造 Map，参数个数必须为偶数。
func NewMap(kvs ...any) (*Map, error) {
	if len(kvs)%2 != 0 {
		return nil, merr.WrapErrInvalidArity("NewMap", len(kvs), "expect key/value pairs")
	}
	m := newMap(len(kvs) / 2)
	for i := 0; i < len(kvs); i += 2 {
		m.put(kvs[i], kvs[i+1])
	}
	return m, nil
}

// put 写入一个键值对，重复键以后写入者为准并保留首次出现的位置。
func (m *Map) put(k, v any) {
	h := Hash(k)
	if i := m.index.find(m.keys, k, h); i >= 0 {
		m.vals[i] = v
		return
	}
	m.index[h] = append(m.index[h], len(m.keys))
	m.keys = append(m.keys, k)
	m.vals = append(m.vals, v)
}

func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

func (m *Map) Get(k any) (any, bool) {
	if m == nil {
		return nil, false
	}
	if i := m.index.find(m.keys, k, Hash(k)); i >= 0 {
		return m.vals[i], true
	}
	return nil, false
}

func (m *Map) Has(k any) bool {
	_, ok := m.Get(k)
	return ok
}

func (m *Map) Keys() []any {
	if m == nil {
		return nil
	}
	return append([]any(nil), m.keys...)
}

// All 按插入顺序遍历键值对。
func (m *Map) All() iter.Seq2[any, any] {
	return func(yield func(any, any) bool) {
		if m == nil {
			return
		}
		for i, k := range m.keys {
			if !yield(k, m.vals[i]) {
				return
			}
		}
	}
}

// flatten 返回 [k0, v0, k1, v1, ...]。
func (m *Map) flatten() []any {
	out := make([]any, 0, 2*m.Len())
	for i, k := range m.keys {
		out = append(out, k, m.vals[i])
	}
	return out
}

func IsMap(v any) bool {
	_, ok := v.(*Map)
	return ok
}

// Set 是不可变、保持插入顺序、元素唯一的集合。
type Set struct {
	items []any
	index hashIndex
}

func newSet(sizeHint int) *Set {
	return &Set{
		items: make([]any, 0, sizeHint),
		index: make(hashIndex, sizeHint),
	}
}

func NewSet(items ...any) *Set {
	s := newSet(len(items))
	for _, item := range items {
		s.add(item)
	}
	return s
}

func (s *Set) add(v any) {
	h := Hash(v)
	if s.index.find(s.items, v, h) >= 0 {
		return
	}
	s.index[h] = append(s.index[h], len(s.items))
	s.items = append(s.items, v)
}

func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

func (s *Set) Contains(v any) bool {
	if s == nil {
		return false
	}
	return s.index.find(s.items, v, Hash(v)) >= 0
}

func (s *Set) Slice() []any {
	if s == nil {
		return nil
	}
	return append([]any(nil), s.items...)
}

func (s *Set) All() iter.Seq[any] {
	return func(yield func(any) bool) {
		if s == nil {
			return
		}
		for _, item := range s.items {
			if !yield(item) {
				return
			}
		}
	}
}

func IsSet(v any) bool {
	_, ok := v.(*Set)
	return ok
}
