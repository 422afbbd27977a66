package serializer

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	var err error
	// 确定性编码：map 键排序、最短整数编码，同样的数据总是得到同样的字节。
	cborEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("serializer: CBOR encoder initialization failed: " + err.Error())
	}
	cborDec, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("serializer: CBOR decoder initialization failed: " + err.Error())
	}
}

// CBORSerializer 基于 fxamacker/cbor 的确定性 CBOR 编解码。
type CBORSerializer struct{}

var _ Serializer = (*CBORSerializer)(nil)

func (CBORSerializer) Marshal(v any) ([]byte, error) {
	return cborEnc.Marshal(v)
}

func (CBORSerializer) Unmarshal(data []byte, v any) error {
	return cborDec.Unmarshal(data, v)
}

func (CBORSerializer) ContentType() string { return ContentTypeCBOR }
