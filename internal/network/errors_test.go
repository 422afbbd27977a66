package network

import (
	"io"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"

	"github.com/lk2023060901/transit-go/pkg/util/merr"
)

func TestWrap(t *testing.T) {
	assert.NoError(t, Wrap(StageEncode, nil))

	err := Wrap(StageDecode, merr.WrapErrMalformedWire("truncated"))
	// 阶段标记由 cockroachdb/errors.Mark 添加，标准库 errors.Is 看不到。
	assert.True(t, errors.Is(err, ErrDecodeFailed))
	assert.ErrorIs(t, err, merr.ErrMalformedWire)
	assert.False(t, errors.Is(err, ErrEncodeFailed))
	assert.Equal(t, StageDecode, StageOf(err))
	assert.Contains(t, err.Error(), "decode")

	err = Wrap(StageRecv, io.ErrUnexpectedEOF)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, StageRecv, StageOf(err))
	assert.Equal(t, Stage(""), StageOf(io.EOF))
}
