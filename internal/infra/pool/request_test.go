package pool

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"poold/internal/domain"
)

func TestNewRequest_Validation(t *testing.T) {
	_, err := NewRequest[int](time.Second, nil)
	require.ErrorContains(t, err, "required")

	callback := func(error, int) {}
	_, err = NewRequest[int](0, callback)
	require.ErrorContains(t, err, "must be")

	_, err = NewRequest[int](-5*time.Second, callback)
	require.ErrorContains(t, err, "must be")

	req, err := NewRequest[int](NoTimeout, callback)
	require.NoError(t, err)
	require.False(t, req.Fulfilled())
}

func TestRequest_ResolveInvokesCallbackOnce(t *testing.T) {
	results := make(chan int, 2)
	req, err := NewRequest[int](NoTimeout, func(err error, value int) {
		require.NoError(t, err)
		results <- value
	})
	require.NoError(t, err)

	redundant := make(chan error, 1)
	req.SetOnError(func(err error) { redundant <- err })

	require.True(t, req.Resolve(42))
	require.False(t, req.Resolve(43))

	select {
	case value := <-results:
		require.Equal(t, 42, value)
	case <-time.After(time.Second):
		t.Fatal("callback never fired")
	}

	select {
	case err := <-redundant:
		require.ErrorIs(t, err, domain.ErrRedundantFulfill)
	case <-time.After(time.Second):
		t.Fatal("redundant fulfillment not surfaced")
	}

	select {
	case <-results:
		t.Fatal("callback fired twice")
	case <-time.After(50 * time.Millisecond):
	}
	require.Equal(t, domain.RequestOutcomeResolved, req.Outcome())
}

func TestRequest_TimeoutRejects(t *testing.T) {
	errs := make(chan error, 1)
	req, err := NewRequest[int](20*time.Millisecond, func(err error, _ int) {
		errs <- err
	})
	require.NoError(t, err)

	select {
	case err := <-errs:
		require.ErrorIs(t, err, domain.ErrTimedOut)
	case <-time.After(time.Second):
		t.Fatal("request never timed out")
	}
	require.Equal(t, domain.RequestOutcomeTimedOut, req.Outcome())

	// A resource arriving after the deadline must not reach the callback.
	require.False(t, req.Resolve(1))
}

func TestRequest_AbortMessage(t *testing.T) {
	errs := make(chan error, 1)
	req, err := NewRequest[int](NoTimeout, func(err error, _ int) { errs <- err })
	require.NoError(t, err)

	req.Abort("")
	select {
	case err := <-errs:
		require.EqualError(t, err, "aborted: No reason given")
	case <-time.After(time.Second):
		t.Fatal("abort never delivered")
	}
	require.Equal(t, domain.RequestOutcomeAborted, req.Outcome())
}

func TestRequest_AbortCustomReason(t *testing.T) {
	errs := make(chan error, 1)
	req, err := NewRequest[int](NoTimeout, func(err error, _ int) { errs <- err })
	require.NoError(t, err)

	req.Abort("caller went away")
	select {
	case err := <-errs:
		require.EqualError(t, err, "aborted: caller went away")
	case <-time.After(time.Second):
		t.Fatal("abort never delivered")
	}
}

func TestRequest_SetTimeoutPastDeadline(t *testing.T) {
	errs := make(chan error, 1)
	req, err := NewRequest[int](NoTimeout, func(err error, _ int) { errs <- err })
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	req.SetTimeout(time.Millisecond)

	select {
	case err := <-errs:
		require.ErrorIs(t, err, domain.ErrTimedOut)
	case <-time.After(time.Second):
		t.Fatal("past deadline never fired")
	}
}

func TestRequest_ClearTimeoutStopsDeadline(t *testing.T) {
	var fired atomic.Bool
	req, err := NewRequest[int](30*time.Millisecond, func(error, int) {
		fired.Store(true)
	})
	require.NoError(t, err)

	req.ClearTimeout()
	time.Sleep(80 * time.Millisecond)
	require.False(t, fired.Load())
	require.False(t, req.Fulfilled())
}

func TestRequest_SetTimeoutNoTimeoutCancels(t *testing.T) {
	var fired atomic.Bool
	req, err := NewRequest[int](30*time.Millisecond, func(error, int) {
		fired.Store(true)
	})
	require.NoError(t, err)

	req.SetTimeout(NoTimeout)
	time.Sleep(80 * time.Millisecond)
	require.False(t, fired.Load())
}

func TestRequest_RejectAfterResolveKeepsFirstOutcome(t *testing.T) {
	results := make(chan error, 1)
	req, err := NewRequest[int](NoTimeout, func(err error, _ int) { results <- err })
	require.NoError(t, err)

	require.True(t, req.Resolve(7))
	require.False(t, req.Reject(errors.New("too late")))

	select {
	case err := <-results:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("callback never fired")
	}
	require.Equal(t, domain.RequestOutcomeResolved, req.Outcome())
}
