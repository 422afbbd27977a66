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

package conc

import (
	"time"

	ants "github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/lk2023060901/transit-go/pkg/log"
)

// poolOption 收集传给 ants 的选项以及 Pool 自身的行为开关。
type poolOption struct {
	ants []ants.Option

	// concealPanic 为 true 时，任务 panic 只记录日志，不再向外抛出。
	concealPanic bool
	panicHandler func(any)
	// preHandler 在每个任务执行前调用。
	preHandler func()
}

// PoolOption 用于配置协程池。
type PoolOption func(opt *poolOption)

func defaultPoolOption() *poolOption {
	return &poolOption{}
}

// antsOptions 返回最终的 ants 选项。ants 默认会 recover panic，但不会把错误交给调用方，
// 所以 Submit 先把 panic 记录到 Future 再重新抛出，由这里的 handler 决定是否吞掉。
func (opt *poolOption) antsOptions() []ants.Option {
	handler := opt.panicHandler
	if handler == nil {
		handler = func(v any) {
			log.Error("conc pool task panicked", zap.Any("panic", v))
			if !opt.concealPanic {
				panic(v)
			}
		}
	}
	return append(opt.ants, ants.WithPanicHandler(handler))
}

// WithPreAlloc 预先分配全部 worker。
func WithPreAlloc(v bool) PoolOption {
	return func(opt *poolOption) {
		opt.ants = append(opt.ants, ants.WithPreAlloc(v))
	}
}

// WithNonBlocking 为 true 时，协程池满了 Submit 直接失败而不是等待。
func WithNonBlocking(v bool) PoolOption {
	return func(opt *poolOption) {
		opt.ants = append(opt.ants, ants.WithNonblocking(v))
	}
}

func WithDisablePurge(v bool) PoolOption {
	return func(opt *poolOption) {
		opt.ants = append(opt.ants, ants.WithDisablePurge(v))
	}
}

// WithExpiryDuration 设置空闲 worker 的回收间隔，d <= 0 时使用 ants 的默认值。
func WithExpiryDuration(d time.Duration) PoolOption {
	return func(opt *poolOption) {
		if d > 0 {
			opt.ants = append(opt.ants, ants.WithExpiryDuration(d))
		}
	}
}

func WithConcealPanic(v bool) PoolOption {
	return func(opt *poolOption) {
		opt.concealPanic = v
	}
}

// WithPanicHandler 替换默认的 panic 处理，设置后 WithConcealPanic 不再生效。
func WithPanicHandler(fn func(any)) PoolOption {
	return func(opt *poolOption) {
		opt.panicHandler = fn
	}
}

func WithPreHandler(fn func()) PoolOption {
	return func(opt *poolOption) {
		opt.preHandler = fn
	}
}
