// Package batch 并发地编解码一批值。
//
// 所有任务共享同一个只读的 transit.Codec，每个任务创建自己的 Writer/Reader，
// 因此写缓存与读缓存不会在任务之间共享。
package batch

import (
	"context"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/lk2023060901/transit-go/pkg/transit"
	"github.com/lk2023060901/transit-go/pkg/util/conc"
	"github.com/lk2023060901/transit-go/pkg/util/merr"
)

// minChunkSize 为单个任务至少处理的元素个数。
const minChunkSize = 64

type options struct {
	concurrency int
	chunkSize   int
}

// Option 配置 Batch。
type Option func(*options)

// WithConcurrency 设置 worker 数量，<= 0 时使用 GOMAXPROCS。
func WithConcurrency(n int) Option {
	return func(o *options) {
		o.concurrency = n
	}
}

// WithChunkSize 设置单个任务处理的元素个数，<= 0 时按 worker 数量平均切分。
func WithChunkSize(n int) Option {
	return func(o *options) {
		o.chunkSize = n
	}
}

// Batch 使用 ants 协程池并发编解码，可被多个 goroutine 共享。
type Batch struct {
	codec *transit.Codec
	pool  *conc.Pool[struct{}]
	opts  options
}

func New(codec *transit.Codec, opts ...Option) (*Batch, error) {
	if codec == nil {
		return nil, merr.WrapErrParameterMissing("codec")
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	pool := conc.NewPool[struct{}](o.concurrency)
	o.concurrency = pool.Cap()
	return &Batch{codec: codec, pool: pool, opts: o}, nil
}

func (b *Batch) Codec() *transit.Codec { return b.codec }

// Close 释放协程池，之后提交的任务直接返回错误。
func (b *Batch) Close() {
	b.pool.Release()
}

// EncodeAll 编码 values，结果与输入一一对应。任意一个失败时取消其余任务，返回的错误带有元素下标。
func (b *Batch) EncodeAll(ctx context.Context, values []any) ([][]byte, error) {
	out := make([][]byte, len(values))
	err := b.run(ctx, len(values), func(ctx context.Context, lo, hi int) error {
		w := b.codec.NewWriter()
		for i := lo; i < hi; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := w.Write(values[i])
			if err != nil {
				return errors.Wrapf(err, "encode item %d", i)
			}
			out[i] = data
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DecodeAll 解码 payloads，结果与输入一一对应。
func (b *Batch) DecodeAll(ctx context.Context, payloads [][]byte) ([]any, error) {
	out := make([]any, len(payloads))
	err := b.run(ctx, len(payloads), func(ctx context.Context, lo, hi int) error {
		r := b.codec.NewReader()
		for i := lo; i < hi; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			v, err := r.Read(payloads[i])
			if err != nil {
				return errors.Wrapf(err, "decode item %d", i)
			}
			out[i] = v
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// run 把 [0, n) 切分为若干区间提交到协程池，errgroup 负责等待与在首个错误时取消。
func (b *Batch) run(ctx context.Context, n int, task func(ctx context.Context, lo, hi int) error) error {
	if n == 0 {
		return ctx.Err()
	}
	g, gctx := errgroup.WithContext(ctx)
	size := b.chunkSize(n)
	for lo := 0; lo < n; lo += size {
		lo, hi := lo, min(lo+size, n)
		future := b.pool.Submit(func() (struct{}, error) {
			return struct{}{}, task(gctx, lo, hi)
		})
		g.Go(future.Err)
	}
	return g.Wait()
}

func (b *Batch) chunkSize(n int) int {
	if b.opts.chunkSize > 0 {
		return b.opts.chunkSize
	}
	size := (n + b.opts.concurrency - 1) / b.opts.concurrency
	return max(size, minChunkSize)
}
