package typeutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSet(t *testing.T) {
	a := NewSet("json", "cbor", "json")
	b := NewSet("cbor", "msgpack")

	assert.Equal(t, 2, a.Len())
	assert.True(t, a.Contain("json", "cbor"))
	assert.False(t, a.Contain("json", "msgpack"))
	assert.True(t, a.Contain())

	u := a.Union(b)
	assert.Equal(t, []string{"cbor", "json", "msgpack"}, Sorted(u))
	assert.Equal(t, 2, a.Len())
	assert.ElementsMatch(t, []string{"json", "cbor"}, a.Collect())

	var empty Set[string]
	assert.Equal(t, 2, empty.Union(b).Len())

	c := a.Clone()
	c.Remove("json", "missing")
	assert.True(t, a.Contain("json"))
	assert.Equal(t, []string{"cbor"}, Sorted(c))
}
