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
	"context"
	"sync"
	"time"

	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"

	"github.com/lk2023060901/transit-go/pkg/metrics"
)

var _ zapcore.Core = (*asyncCore)(nil)

// NewAsyncCore 创建一个异步写日志的 Core，日志先进入 pending 队列，再由后台协程写入带缓冲的 WriteSyncer。
func NewAsyncCore(cfg *Config, ws zapcore.WriteSyncer, enab zapcore.LevelEnabler) *asyncCore {
	ctx, cancel := context.WithCancel(context.Background())
	nonDroppableLevel, _ := zapcore.ParseLevel(cfg.Async.NonDroppableLevel)
	core := &asyncCore{
		LevelEnabler: enab,
		shared: &asyncShared{
			ctx:    ctx,
			cancel: cancel,
			done:   make(chan struct{}),
			bws: &zapcore.BufferedWriteSyncer{
				WS:            ws,
				Size:          cfg.Async.BufferSize,
				FlushInterval: cfg.Async.FlushInterval,
			},
			pending:             make(chan *entryItem, cfg.Async.PendingLength),
			writeDroppedTimeout: cfg.Async.DroppedTimeout,
			nonDroppableLevel:   nonDroppableLevel,
			stopTimeout:         cfg.Async.StopTimeout,
			maxBytesPerLog:      cfg.Async.MaxBytesPerLog,
		},
		enc: newEncoder(cfg),
	}
	go core.shared.background()
	return core
}

// asyncCore 通过带缓冲的 WriteSyncer 异步写入日志，With 派生的副本共享同一个后台协程。
type asyncCore struct {
	zapcore.LevelEnabler

	shared *asyncShared
	enc    zapcore.Encoder
}

type asyncShared struct {
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once

	bws                 *zapcore.BufferedWriteSyncer
	pending             chan *entryItem
	writeDroppedTimeout time.Duration
	nonDroppableLevel   zapcore.Level
	stopTimeout         time.Duration
	maxBytesPerLog      int
}

// entryItem 表示待写入底层缓冲 WriteSyncer 的日志条目。
type entryItem struct {
	buf   *buffer.Buffer
	level zapcore.Level
}

func (s *asyncCore) With(fields []zapcore.Field) zapcore.Core {
	enc := s.enc.Clone()
	for _, field := range fields {
		field.AddTo(enc)
	}
	return &asyncCore{
		LevelEnabler: s.LevelEnabler,
		shared:       s.shared,
		enc:          enc,
	}
}

func (s *asyncCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if s.Enabled(ent.Level) {
		return ce.AddCore(ent, s)
	}
	return ce
}

// Write 将日志编码后放入 pending 队列。
// 队列已满时，低于 nonDroppableLevel 的日志在等待 writeDroppedTimeout 后被丢弃；停止后的写入直接丢弃。
func (s *asyncCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	buf, err := s.enc.EncodeEntry(ent, fields)
	if err != nil {
		return err
	}
	length := buf.Len()
	if length == 0 {
		buf.Free()
		return nil
	}

	sh := s.shared
	var dropped <-chan time.Time
	if ent.Level < sh.nonDroppableLevel {
		timer := time.NewTimer(sh.writeDroppedTimeout)
		defer timer.Stop()
		dropped = timer.C
	}
	select {
	case sh.pending <- &entryItem{buf: buf, level: ent.Level}:
		metrics.LoggingPendingWriteLength.Inc()
		metrics.LoggingPendingWriteBytes.Add(float64(length))
	case <-dropped:
		metrics.LoggingDroppedWrites.Inc()
		buf.Free()
	case <-sh.done:
		metrics.LoggingDroppedWrites.Inc()
		buf.Free()
	}
	return nil
}

func (s *asyncCore) Sync() error {
	return nil
}

// Stop 停止后台协程，并在 stopTimeout 内尽量写完 pending 队列。可以重复调用。
func (s *asyncCore) Stop() {
	s.shared.stopOnce.Do(s.shared.cancel)
	<-s.shared.done
}

func (s *asyncShared) background() {
	defer func() {
		s.flushPendingWithTimeout()
		close(s.done)
	}()

	for {
		select {
		case <-s.ctx.Done():
			return
		case ent := <-s.pending:
			s.consume(ent)
		}
	}
}

func (s *asyncShared) consume(ent *entryItem) {
	length := ent.buf.Len()
	metrics.LoggingPendingWriteLength.Dec()
	metrics.LoggingPendingWriteBytes.Sub(float64(length))
	if _, err := s.bws.Write(s.truncate(ent)); err != nil {
		metrics.LoggingIOFailure.Inc()
	}
	ent.buf.Free()
	if ent.level > zapcore.ErrorLevel {
		_ = s.bws.Sync()
	}
}

// truncate 截断超过 maxBytesPerLog 的日志，保留原有的行尾字符。
func (s *asyncShared) truncate(ent *entryItem) []byte {
	writes := ent.buf.Bytes()
	length := len(writes)
	if length <= s.maxBytesPerLog {
		return writes
	}
	metrics.LoggingTruncatedWrites.Inc()
	metrics.LoggingTruncatedWriteBytes.Add(float64(length - s.maxBytesPerLog))

	end := writes[length-1]
	writes = writes[:s.maxBytesPerLog]
	writes[len(writes)-1] = end
	return writes
}

func (s *asyncShared) flushPendingWithTimeout() {
	flushed := make(chan struct{})
	go func() {
		defer close(flushed)
		for {
			select {
			case ent := <-s.pending:
				s.consume(ent)
			default:
				if err := s.bws.Stop(); err != nil {
					metrics.LoggingIOFailure.Inc()
				}
				return
			}
		}
	}()

	timer := time.NewTimer(s.stopTimeout)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-flushed:
	}
}
