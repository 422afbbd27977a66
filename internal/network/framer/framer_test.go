package framer

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/transit-go/pkg/util/merr"
)

func TestFrameRoundTrip(t *testing.T) {
	f := NewLengthPrefixedFramer(0)
	var buf bytes.Buffer
	require.NoError(t, f.WriteFrame(&buf, &Frame{Payload: []byte(`["~#set",[1]]`)}))
	require.NoError(t, f.WriteFrame(&buf, &Frame{Flags: FlagCompressed, Payload: []byte{1, 2, 3}}))
	require.NoError(t, f.WriteFrame(&buf, &Frame{}))
	assert.Equal(t, []byte{0, 0, 0, 13, 0}, buf.Bytes()[:headerSize])

	first, err := f.ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, `["~#set",[1]]`, string(first.Payload))
	assert.False(t, first.Compressed())

	second, err := f.ReadFrame(&buf)
	require.NoError(t, err)
	assert.True(t, second.Compressed())
	assert.Equal(t, []byte{1, 2, 3}, second.Payload)

	empty, err := f.ReadFrame(&buf)
	require.NoError(t, err)
	assert.Empty(t, empty.Payload)

	_, err = f.ReadFrame(&buf)
	assert.Equal(t, io.EOF, err)
}

func TestFrameErrors(t *testing.T) {
	f := NewLengthPrefixedFramer(4)
	assert.Error(t, f.WriteFrame(io.Discard, nil))
	assert.ErrorIs(t, f.WriteFrame(io.Discard, &Frame{Payload: []byte("12345")}), ErrFrameTooLarge)

	_, err := f.ReadFrame(bytes.NewReader([]byte{0, 0, 0, 9, 0}))
	assert.ErrorIs(t, err, ErrFrameTooLarge)

	_, err = f.ReadFrame(bytes.NewReader([]byte{0, 0}))
	assert.ErrorIs(t, err, merr.ErrIoUnexpectEOF)
	assert.True(t, merr.IsRetryableErr(err))

	_, err = f.ReadFrame(bytes.NewReader([]byte{0, 0, 0, 3, 0, 'a'}))
	assert.ErrorIs(t, err, merr.ErrIoUnexpectEOF)
	assert.True(t, merr.IsRetryableErr(err))
}
