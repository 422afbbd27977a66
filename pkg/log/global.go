// Copyright 2019 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxLogKeyType struct{}

// CtxLogKey 是 ctx 中保存 *MLogger 的键。
var CtxLogKey = ctxLogKeyType{}

// 以下是全局 Logger 的快捷方法，带上下文的调用请使用 Ctx(ctx)。

func Debug(msg string, fields ...zap.Field) { L().Debug(msg, fields...) }

func Info(msg string, fields ...zap.Field) { L().Info(msg, fields...) }

func Warn(msg string, fields ...zap.Field) { L().Warn(msg, fields...) }

func Error(msg string, fields ...zap.Field) { L().Error(msg, fields...) }

// Fatal 输出日志后调用 os.Exit(1)。
func Fatal(msg string, fields ...zap.Field) { L().Fatal(msg, fields...) }

// RatedDebug 使用全局限流器输出 Debug 日志，返回是否输出。
func RatedDebug(cost float64, msg string, fields ...zap.Field) bool {
	return With().rated(zapcore.DebugLevel, cost, msg, fields)
}

func RatedInfo(cost float64, msg string, fields ...zap.Field) bool {
	return With().rated(zapcore.InfoLevel, cost, msg, fields)
}

func RatedWarn(cost float64, msg string, fields ...zap.Field) bool {
	return With().rated(zapcore.WarnLevel, cost, msg, fields)
}

// With 返回携带 fields 的全局 Logger 副本。
func With(fields ...zap.Field) *MLogger {
	return &MLogger{
		Logger: L().WithOptions(
			zap.WrapCore(func(core zapcore.Core) zapcore.Core {
				return NewLazyWith(core, fields)
			}),
			zap.AddCallerSkip(-1),
		),
	}
}

func SetLevel(l zapcore.Level) {
	Level().SetLevel(l)
}

func GetLevel() zapcore.Level {
	return Level().Level()
}

func fromContext(ctx context.Context) (*MLogger, bool) {
	if ctx == nil {
		return nil, false
	}
	l, ok := ctx.Value(CtxLogKey).(*MLogger)
	return l, ok && l != nil
}

// Ctx 返回 ctx 中保存的 Logger，没有时返回按全局级别过滤的 Logger。
func Ctx(ctx context.Context) *MLogger {
	if l, ok := fromContext(ctx); ok {
		return l
	}
	return &MLogger{Logger: ctxL()}
}

// WithFields 把 fields 附加到 ctx 中的 Logger 上，返回新的 ctx。
func WithFields(ctx context.Context, fields ...zap.Field) context.Context {
	base := ctxL()
	if l, ok := fromContext(ctx); ok {
		base = l.Logger
	}
	return context.WithValue(ctx, CtxLogKey, &MLogger{Logger: base.With(fields...)})
}

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return WithFields(ctx, zap.String("traceID", traceID))
}

func WithReqID(ctx context.Context, reqID int64) context.Context {
	return WithFields(ctx, zap.Int64("reqID", reqID))
}

func WithModule(ctx context.Context, module string) context.Context {
	return WithFields(ctx, FieldModule(module))
}

// WithLevel 用只输出 level 及以上级别的全局 Logger 替换 ctx 中的 Logger。
func WithLevel(ctx context.Context, level zapcore.Level) context.Context {
	zlogger := L()
	if l, ok := _globalLevelLogger.Load(level); ok {
		zlogger = l.(*zap.Logger)
	}
	return context.WithValue(ctx, CtxLogKey, &MLogger{Logger: zlogger})
}

// NewIntentContext 以 intent 为名开启一个 span，并返回携带 role、intent 与 traceID 字段的 ctx。
func NewIntentContext(name string, intent string) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(name).Start(context.Background(), intent)
	ctx = WithFields(ctx,
		zap.String("role", name),
		zap.String("intent", intent),
		zap.String("traceID", span.SpanContext().TraceID().String()))
	return ctx, span
}
