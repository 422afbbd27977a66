// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package typeutil

import (
	"cmp"
	"maps"
	"slices"

	"github.com/samber/lo"
)

// Set 是 map[T]struct{} 的泛型集合，零值不可写入，需要用 NewSet 或 make 创建。
type Set[T comparable] map[T]struct{}

func NewSet[T comparable](elements ...T) Set[T] {
	set := make(Set[T], len(elements))
	set.Insert(elements...)
	return set
}

func (set Set[T]) Insert(elements ...T) {
	for _, e := range elements {
		set[e] = struct{}{}
	}
}

func (set Set[T]) Remove(elements ...T) {
	for _, e := range elements {
		delete(set, e)
	}
}

// Contain 当 elements 全部在集合中时返回 true，没有参数时也返回 true。
func (set Set[T]) Contain(elements ...T) bool {
	return lo.EveryBy(elements, func(e T) bool {
		_, ok := set[e]
		return ok
	})
}

func (set Set[T]) Len() int {
	return len(set)
}

// Collect 以任意顺序返回全部元素。
func (set Set[T]) Collect() []T {
	return slices.Collect(maps.Keys(set))
}

func (set Set[T]) Clone() Set[T] {
	return maps.Clone(set)
}

func (set Set[T]) Union(other Set[T]) Set[T] {
	ret := set.Clone()
	if ret == nil {
		ret = make(Set[T], other.Len())
	}
	maps.Copy(ret, other)
	return ret
}

// Sorted 返回升序排列的元素。
func Sorted[T cmp.Ordered](set Set[T]) []T {
	return slices.Sorted(maps.Keys(set))
}
