package transit

import (
	"reflect"
	"sync"
)

// Codec 持有一份只读的 Registry 与配置，可被多个 goroutine 共享，
// 每个 goroutine 通过 NewWriter / NewReader 获取自己的实例。
type Codec struct {
	mode     Mode
	opts     Options
	registry *Registry
}

func NewCodec(mode Mode, opts ...Option) (*Codec, error) {
	if mode != ModeJSON && mode != ModeJSONVerbose {
		return nil, errInvalidMode(mode)
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.validate(); err != nil {
		return nil, err
	}
	c := &Codec{mode: mode, opts: o}
	c.registry = newRegistry(&c.opts)
	return c, nil
}

func (c *Codec) Mode() Mode { return c.mode }

func (c *Codec) Registry() *Registry { return c.registry }

func (c *Codec) NewWriter() *Writer {
	return &Writer{
		mode:     c.mode,
		opts:     &c.opts,
		registry: c.registry,
		resolved: make(map[reflect.Type]WriteHandler),
	}
}

func (c *Codec) NewReader() *Reader {
	return &Reader{
		mode:     c.mode,
		opts:     &c.opts,
		registry: c.registry,
	}
}

var (
	defaultOnce   sync.Once
	defaultCodecs map[Mode]*Codec
)

func defaultCodec(mode Mode) (*Codec, error) {
	defaultOnce.Do(func() {
		defaultCodecs = make(map[Mode]*Codec, 2)
		for _, m := range []Mode{ModeJSON, ModeJSONVerbose} {
			c, _ := NewCodec(m)
			defaultCodecs[m] = c
		}
	})
	c, ok := defaultCodecs[mode]
	if !ok {
		return nil, errInvalidMode(mode)
	}
	return c, nil
}

// Marshal 使用内置 handler 编码 v。
func Marshal(mode Mode, v any) ([]byte, error) {
	c, err := defaultCodec(mode)
	if err != nil {
		return nil, err
	}
	return c.NewWriter().Write(v)
}

// Unmarshal 使用内置 handler 解码 data。
func Unmarshal(mode Mode, data []byte) (any, error) {
	c, err := defaultCodec(mode)
	if err != nil {
		return nil, err
	}
	return c.NewReader().Read(data)
}
