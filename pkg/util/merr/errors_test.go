// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package merr

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/suite"
)

type ErrSuite struct {
	suite.Suite
}

func (s *ErrSuite) TestCode() {
	err := WrapErrUnknownGroundTag("x")
	wrapped := errors.Wrap(err, "failed to read value")
	s.ErrorIs(wrapped, ErrUnknownGroundTag)
	s.Equal(Code(ErrUnknownGroundTag), Code(wrapped))
	s.Equal(TimeoutCode, Code(context.DeadlineExceeded))
	s.Equal(CanceledCode, Code(context.Canceled))
	s.Equal(errUnexpected.errCode, Code(errUnexpected))
	s.Equal(errUnexpected.errCode, Code(errors.New("plain")))

	sameCodeErr := newTransitError("new error", ErrMalformedWire.errCode, false)
	s.True(sameCodeErr.Is(ErrMalformedWire))
	s.False(sameCodeErr.Is(ErrInvalidArity))
}

func (s *ErrSuite) TestWrap() {
	// 编解码相关错误。
	s.ErrorIs(WrapErrUnsupportedType(struct{}{}), ErrUnsupportedType)
	s.ErrorIs(WrapErrUnknownGroundTag("q"), ErrUnknownGroundTag)
	s.ErrorIs(WrapErrUnknownStructuralTag("point"), ErrUnknownStructuralTag)
	s.ErrorIs(WrapErrMalformedWire("unexpected end"), ErrMalformedWire)
	s.ErrorIs(WrapErrInvalidArity("NewMap", 3), ErrInvalidArity)
	s.ErrorIs(WrapErrInvalidLink("missing rel"), ErrInvalidLink)
	s.ErrorIs(WrapErrInvalidTag(""), ErrInvalidTag)

	// Service 相关错误。
	s.ErrorIs(WrapErrServiceUnavailable("down", "retry later"), ErrServiceUnavailable)
	s.ErrorIs(WrapErrServiceInternal("boom"), ErrServiceInternal)
	s.ErrorIs(WrapErrTooManyRequests(10), ErrServiceTooManyRequests)
	s.ErrorIs(WrapErrServiceRateLimit(1.5), ErrServiceRateLimit)

	// 其他。
	s.ErrorIs(WrapErrIoFailed("body", errors.New("reset")), ErrIoFailed)
	s.Nil(WrapErrIoFailed("body", nil))
	s.ErrorIs(WrapErrParameterInvalid(1, 2), ErrParameterInvalid)
	s.ErrorIs(WrapErrParameterInvalidMsg("bad %s", "mode"), ErrParameterInvalid)
	s.ErrorIs(WrapErrParameterMissing("url"), ErrParameterMissing)
	s.ErrorIs(WrapErrOperationNotSupported("stream"), ErrOperationNotSupported)
}

func (s *ErrSuite) TestFields() {
	err := WrapErrUnsupportedType(make(chan int))
	s.Contains(err.Error(), "[type=chan int]")

	err = WrapErrUnsupportedType(nil)
	s.Contains(err.Error(), "[type=<nil>]")

	err = WrapErrMalformedWire("odd map entries", "decode")
	s.Contains(err.Error(), "malformed wire data: odd map entries")
	s.Contains(err.Error(), "decode")
}

func (s *ErrSuite) TestRetryable() {
	s.True(IsRetryableErr(WrapErrServiceUnavailable("down")))
	s.True(IsRetryableErr(errors.Wrap(ErrServiceRateLimit, "ctx")))
	s.False(IsRetryableErr(ErrMalformedWire))
	s.False(IsRetryableErr(errors.New("plain")))
}

func (s *ErrSuite) TestErrorType() {
	s.Equal(InputError, GetErrorType(WrapErrMalformedWire("x")))
	s.Equal(SystemError, GetErrorType(ErrServiceInternal))
	s.Equal("input_error", InputError.String())
}

func (s *ErrSuite) TestCombine() {
	var (
		errFirst  = errors.New("first")
		errSecond = errors.New("second")
		errThird  = errors.New("third")
	)

	err := Combine(errFirst, errSecond)
	s.True(errors.Is(err, errFirst))
	s.True(errors.Is(err, errSecond))
	s.False(errors.Is(err, errThird))

	s.Equal("first: second", err.Error())
	s.Nil(Combine(nil, nil))
	s.ErrorIs(Combine(nil, errFirst), errFirst)
}

func TestErrors(t *testing.T) {
	suite.Run(t, new(ErrSuite))
}
