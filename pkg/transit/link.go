package transit

import (
	"net/url"

	"github.com/lk2023060901/transit-go/pkg/util/merr"
)

// link 字段名。
const (
	linkHref   = "href"
	linkRel    = "rel"
	linkName   = "name"
	linkRender = "render"
	linkPrompt = "prompt"
)

// Link 是超媒体链接，线上形式为 ["~#link", {"href": ..., "rel": ..., ...}]。
//
// 构造时不做校验，Writer 写出前会调用 Validate。
type Link struct {
	fields *Map
}

type LinkOption func(*Map)

func WithLinkName(name string) LinkOption {
	return func(m *Map) { m.put(linkName, name) }
}

// WithLinkRender 设置渲染方式，合法取值为 "image" 或 "link"。
func WithLinkRender(render string) LinkOption {
	return func(m *Map) { m.put(linkRender, render) }
}

func WithLinkPrompt(prompt string) LinkOption {
	return func(m *Map) { m.put(linkPrompt, prompt) }
}

func NewLink(href URI, rel string, opts ...LinkOption) *Link {
	m := newMap(5)
	m.put(linkHref, href)
	m.put(linkRel, rel)
	for _, opt := range opts {
		opt(m)
	}
	return &Link{fields: m}
}

// LinkFromMap 由字段映射构造 Link，缺失的字段不会报错。
func LinkFromMap(fields *Map) *Link {
	if fields == nil {
		fields = newMap(0)
	}
	return &Link{fields: fields}
}

func (l *Link) Fields() *Map {
	if l == nil {
		return nil
	}
	return l.fields
}

func (l *Link) Href() URI {
	switch href := l.field(linkHref).(type) {
	case URI, *url.URL:
		return URI(uriText(href))
	case string:
		return URI(href)
	}
	return ""
}

func (l *Link) Rel() string    { return l.stringField(linkRel) }
func (l *Link) Name() string   { return l.stringField(linkName) }
func (l *Link) Render() string { return l.stringField(linkRender) }
func (l *Link) Prompt() string { return l.stringField(linkPrompt) }

func (l *Link) field(name string) any {
	if l == nil {
		return nil
	}
	v, _ := l.fields.Get(name)
	return v
}

func (l *Link) stringField(name string) string {
	s, _ := l.field(name).(string)
	return s
}

// Validate 检查必填字段 href、rel 以及 render 的取值。
func (l *Link) Validate() error {
	if l == nil {
		return merr.WrapErrInvalidLink("link is nil")
	}
	switch l.field(linkHref).(type) {
	case URI, *url.URL, string:
	default:
		return merr.WrapErrInvalidLink("href must be a uri")
	}
	if l.Href() == "" {
		return merr.WrapErrInvalidLink("href is empty")
	}
	if l.Rel() == "" {
		return merr.WrapErrInvalidLink("rel must be a non-empty string")
	}
	if render, ok := l.fields.Get(linkRender); ok {
		if render != "image" && render != "link" {
			return merr.WrapErrInvalidLink("render must be image or link")
		}
	}
	return nil
}

func IsLink(v any) bool {
	_, ok := v.(*Link)
	return ok
}
