package transit

import (
	"reflect"
	"sort"

	"github.com/samber/lo"
)

// Registry 保存写 handler（按运行时类型）与读 handler（按 tag）。
//
// 构造后只读，可以被任意多个 Writer / Reader 并发共享；
// 每个 Writer 自己维护类型到 handler 的解析缓存。
type Registry struct {
	write    map[reflect.Type]WriteHandler
	ifaces   []ifaceHandler
	fallback WriteHandler
	read     map[string]ReadHandler
}

// NewRegistry 把调用方的 handler 浅合并到内置 handler 之上，同一键以调用方为准。
func NewRegistry(opts ...Option) (*Registry, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.validate(); err != nil {
		return nil, err
	}
	return newRegistry(&o), nil
}

func newRegistry(o *Options) *Registry {
	ifaces := append([]ifaceHandler(nil), o.ifaceHandlers...)
	sort.SliceStable(ifaces, func(i, j int) bool {
		return ifaces[i].iface.String() < ifaces[j].iface.String()
	})
	return &Registry{
		write:    lo.Assign(defaultWriteHandlers(), o.WriteHandlers),
		ifaces:   ifaces,
		fallback: o.DefaultHandler,
		read:     lo.Assign(defaultReadHandlers(o), o.ReadHandlers),
	}
}

// ResolveWriteHandler 按以下顺序解析 v 的写 handler：
// 精确类型、接口类型、底层 Kind、DefaultHandler。
func (r *Registry) ResolveWriteHandler(v any) (WriteHandler, bool) {
	return r.resolveType(reflect.TypeOf(v))
}

func (r *Registry) resolveType(t reflect.Type) (WriteHandler, bool) {
	if h, ok := r.write[t]; ok {
		return h, true
	}
	if t == nil {
		return nil, false
	}
	for _, ih := range r.ifaces {
		if t.Implements(ih.iface) {
			return ih.handler, true
		}
	}
	if h, ok := kindHandler(t); ok {
		return h, true
	}
	if r.fallback != nil {
		return r.fallback, true
	}
	return nil, false
}

func (r *Registry) ResolveReadHandler(tag string) (ReadHandler, bool) {
	h, ok := r.read[tag]
	return h, ok
}
