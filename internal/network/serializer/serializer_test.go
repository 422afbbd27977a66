package serializer

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/lk2023060901/transit-go/pkg/transit"
	"github.com/lk2023060901/transit-go/pkg/util/merr"
)

type item struct {
	ID   int    `json:"id" cbor:"id" msgpack:"id"`
	Name string `json:"name" cbor:"name" msgpack:"name"`
}

type SerializerSuite struct {
	suite.Suite
}

func (s *SerializerSuite) TestStructSerializers() {
	for _, ser := range []Serializer{JSONSerializer{}, CBORSerializer{}, MsgpackSerializer{}} {
		orig := item{ID: 7, Name: "pack"}
		data, err := ser.Marshal(orig)
		s.Require().NoError(err, ser.ContentType())

		var got item
		s.Require().NoError(ser.Unmarshal(data, &got), ser.ContentType())
		s.Equal(orig, got, ser.ContentType())
	}
}

func (s *SerializerSuite) TestJSON() {
	data, err := JSONSerializer{Indent: "  "}.Marshal(map[string]int{"a": 1})
	s.Require().NoError(err)
	s.Equal("{\n  \"a\": 1\n}", string(data))

	var out any
	s.ErrorIs(JSONSerializer{}.Unmarshal([]byte(`{"a":`), &out), merr.ErrMalformedWire)
	var n int
	s.ErrorIs(JSONSerializer{}.Unmarshal([]byte(`"x"`), &n), merr.ErrMalformedWire)
}

func (s *SerializerSuite) TestCBORDeterministic() {
	a, err := CBORSerializer{}.Marshal(map[string]int{"b": 2, "a": 1, "c": 3})
	s.Require().NoError(err)
	b, err := CBORSerializer{}.Marshal(map[string]int{"c": 3, "a": 1, "b": 2})
	s.Require().NoError(err)
	s.Equal(a, b)

	var out any
	s.Require().NoError(CBORSerializer{}.Unmarshal(a, &out))
	s.IsType(map[string]any{}, out)
}

func (s *SerializerSuite) TestTransit() {
	compact := MustTransit(ContentTypeTransitJSON)
	data, err := compact.Marshal(transit.NewSet(1, 2, 3))
	s.Require().NoError(err)
	s.Equal(`["~#set",[1,2,3]]`, string(data))

	var out any
	s.Require().NoError(compact.Unmarshal(data, &out))
	s.True(transit.Equal(transit.NewSet(1, 2, 3), out))

	verbose := MustTransit(ContentTypeTransitJSONVerbose + "; charset=utf-8")
	s.Equal(ContentTypeTransitJSONVerbose, verbose.ContentType())
	s.Equal(transit.ModeJSONVerbose, verbose.Codec().Mode())
	data, err = verbose.Marshal(transit.Keyword("foo"))
	s.Require().NoError(err)
	s.Equal(`"~:foo"`, string(data))

	var wrong map[string]any
	s.ErrorIs(compact.Unmarshal(data, &wrong), merr.ErrParameterInvalid)
	s.ErrorIs(compact.Unmarshal([]byte(`["~#set"`), &out), merr.ErrMalformedWire)

	_, err = NewTransit(ContentTypeJSON)
	s.ErrorIs(err, merr.ErrParameterInvalid)
	s.Panics(func() { MustTransit("text/plain") })
}

func (s *SerializerSuite) TestRegistry() {
	r := NewDefaultRegistry()
	s.Equal(5, r.ContentTypes().Len())
	s.True(r.ContentTypes().Contain(ContentTypeCBOR, ContentTypeMsgpack, ContentTypeTransitJSON))

	ser, err := r.Lookup("Application/JSON; charset=utf-8")
	s.Require().NoError(err)
	s.Equal(ContentTypeJSON, ser.ContentType())

	_, err = r.Lookup("text/xml")
	s.ErrorIs(err, merr.ErrOperationNotSupported)

	custom, err := NewTransit(ContentTypeTransitJSON, transit.WithQuoteTopLevel(true))
	s.Require().NoError(err)
	r.Register(custom)
	ser, err = r.Lookup(ContentTypeTransitJSON)
	s.Require().NoError(err)
	data, err := ser.Marshal(1)
	s.Require().NoError(err)
	s.Equal(`["~#'",1]`, string(data))
}

func TestSerializer(t *testing.T) {
	suite.Run(t, new(SerializerSuite))
}
