package serializer

import (
	"mime"
	"strings"
	"sync"

	"github.com/lk2023060901/transit-go/pkg/util/merr"
	"github.com/lk2023060901/transit-go/pkg/util/typeutil"
)

// 传输层使用的 Content-Type。
const (
	ContentTypeTransitJSON        = "application/transit+json"
	ContentTypeTransitJSONVerbose = "application/transit+json-verbose"
	ContentTypeJSON               = "application/json"
	ContentTypeCBOR               = "application/cbor"
	ContentTypeMsgpack            = "application/msgpack"
)

// Serializer 抽象了传输层“对象 <-> 字节流”的序列化能力。
//
// 设计目标：
//   - transit 两种模式之外，也支持普通 JSON、CBOR、msgpack，便于对比与降级。
//   - 调用方通过接口注入具体实现，便于后续扩展其它序列化方案。
type Serializer interface {
	// Marshal 将任意对象编码为字节序列。
	Marshal(v any) ([]byte, error)

	// Unmarshal 将字节序列解码到目标对象。
	//
	// v 通常为指针类型，用于接收解码结果。
	Unmarshal(data []byte, v any) error

	// ContentType 返回该实现对应的 Content-Type。
	ContentType() string
}

// Registry 按 Content-Type 索引 Serializer，并发安全。
type Registry struct {
	mu          sync.RWMutex
	serializers map[string]Serializer
}

func NewRegistry(serializers ...Serializer) *Registry {
	r := &Registry{serializers: make(map[string]Serializer, len(serializers))}
	for _, s := range serializers {
		r.Register(s)
	}
	return r
}

// NewDefaultRegistry 返回注册了全部内置实现的 Registry。
func NewDefaultRegistry() *Registry {
	return NewRegistry(
		MustTransit(ContentTypeTransitJSON),
		MustTransit(ContentTypeTransitJSONVerbose),
		JSONSerializer{},
		CBORSerializer{},
		MsgpackSerializer{},
	)
}

// Register 注册 s，同一 Content-Type 后注册的覆盖先注册的。
func (r *Registry) Register(s Serializer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.serializers[s.ContentType()] = s
}

// Lookup 按 Content-Type 查找 Serializer，忽略大小写与参数（如 charset）。
func (r *Registry) Lookup(contentType string) (Serializer, error) {
	mediaType := normalize(contentType)
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.serializers[mediaType]
	if !ok {
		return nil, merr.WrapErrOperationNotSupported("serializer", "content type "+contentType)
	}
	return s, nil
}

// ContentTypes 返回所有已注册的 Content-Type。
func (r *Registry) ContentTypes() typeutil.Set[string] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := typeutil.NewSet[string]()
	for ct := range r.serializers {
		set.Insert(ct)
	}
	return set
}

func normalize(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mediaType
}
