package retry

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/suite"

	"github.com/lk2023060901/transit-go/pkg/util/merr"
)

type RetrySuite struct {
	suite.Suite
}

func (s *RetrySuite) TestSucceedAfterFailures() {
	n := 0
	err := Do(context.Background(), func() error {
		n++
		if n < 3 {
			return errors.New("transient")
		}
		return nil
	}, Sleep(time.Millisecond))
	s.NoError(err)
	s.Equal(3, n)
}

func (s *RetrySuite) TestAttempts() {
	n := 0
	err := Do(context.Background(), func() error {
		n++
		return errors.Newf("failure %d", n)
	}, Attempts(4), Sleep(time.Millisecond), Jitter(0.5))
	s.EqualError(err, "failure 4")
	s.Equal(4, n)
}

func (s *RetrySuite) TestUnrecoverable() {
	n := 0
	cause := merr.WrapErrMalformedWire("bad")
	err := Do(context.Background(), func() error {
		n++
		return Unrecoverable(cause)
	}, Sleep(time.Millisecond))
	s.Equal(1, n)
	s.ErrorIs(err, merr.ErrMalformedWire)
	s.False(IsRecoverable(err))
	s.True(IsRecoverable(cause))
}

func (s *RetrySuite) TestRetryErr() {
	n := 0
	err := Do(context.Background(), func() error {
		n++
		return merr.WrapErrServiceInternal("boom")
	}, Sleep(time.Millisecond), RetryErr(merr.IsRetryableErr))
	s.Equal(1, n)
	s.ErrorIs(err, merr.ErrServiceInternal)

	n = 0
	err = Do(context.Background(), func() error {
		n++
		return merr.WrapErrServiceUnavailable("later")
	}, Attempts(3), Sleep(time.Millisecond), RetryErr(merr.IsRetryableErr))
	s.Equal(3, n)
	s.ErrorIs(err, merr.ErrServiceUnavailable)
}

func (s *RetrySuite) TestContext() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.ErrorIs(Do(ctx, func() error { return nil }), context.Canceled)

	ctx, cancel = context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := Do(ctx, func() error { return errors.New("slow") }, Attempts(0), Sleep(time.Second))
	s.EqualError(err, "slow")
	s.Less(time.Since(start), time.Second)
}

func (s *RetrySuite) TestOptions() {
	c := newDefaultConfig()
	Sleep(5 * time.Second)(c)
	s.Equal(10*time.Second, c.maxSleepTime)
	MaxSleepTime(time.Second)(c)
	s.Equal(10*time.Second, c.maxSleepTime)
	Jitter(2)(c)
	s.Zero(c.jitter)

	b := c.backOff()
	s.Equal(5*time.Second, b.NextBackOff())
	s.Equal(10*time.Second, b.NextBackOff())
	s.Equal(10*time.Second, b.NextBackOff())
}

func TestRetry(t *testing.T) {
	suite.Run(t, new(RetrySuite))
}
