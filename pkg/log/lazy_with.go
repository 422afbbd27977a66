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

package log

import (
	"sync"

	"go.uber.org/zap/zapcore"
)

// lazyCore 把 core.With(fields) 推迟到第一次输出。
// 很多派生 Logger（例如每次 Read 绑定的组件 Logger）从不输出 debug 日志，字段编码可以整个省掉。
type lazyCore struct {
	zapcore.Core
	with func() zapcore.Core
}

var _ zapcore.Core = (*lazyCore)(nil)

// NewLazyWith 返回在第一次使用时才执行 core.With(fields) 的 Core。
func NewLazyWith(core zapcore.Core, fields []zapcore.Field) zapcore.Core {
	return &lazyCore{
		Core: core,
		with: sync.OnceValue(func() zapcore.Core {
			return core.With(fields)
		}),
	}
}

func (c *lazyCore) With(fields []zapcore.Field) zapcore.Core {
	return c.with().With(fields)
}

func (c *lazyCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(ent.Level) {
		return ce
	}
	return c.with().Check(ent, ce)
}

func (c *lazyCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	return c.with().Write(ent, fields)
}

func (c *lazyCore) Sync() error {
	return c.with().Sync()
}
