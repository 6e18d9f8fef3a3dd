package helpers

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestRetryStopsOnFirstHit(t *testing.T) {
	calls := 0
	found, err := Retry(func() (bool, error) {
		calls++
		return true, nil
	}, 3, nil)

	assert.Nil(t, err)
	assert.True(t, found)
	assert.Equal(t, 1, calls)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	found, err := Retry(func() (bool, error) {
		calls++
		return false, nil
	}, 3, nil)

	assert.Nil(t, err)
	assert.False(t, found)
	assert.Equal(t, 3, calls)
}

func TestRetryHitsOnLaterAttempt(t *testing.T) {
	calls := 0
	found, err := Retry(func() (bool, error) {
		calls++
		return calls == 2, nil
	}, 3, nil)

	assert.Nil(t, err)
	assert.True(t, found)
	assert.Equal(t, 2, calls)
}

func TestRetryStopsOnError(t *testing.T) {
	boom := errors.New("storage down")
	calls := 0
	found, err := Retry(func() (bool, error) {
		calls++
		return false, boom
	}, 3, nil)

	assert.Equal(t, boom, err)
	assert.False(t, found)
	assert.Equal(t, 1, calls)
}

func TestRetrySleepsOnlyBetweenAttempts(t *testing.T) {
	delays := []time.Duration{time.Millisecond, time.Millisecond}

	start := time.Now()
	found, err := Retry(func() (bool, error) {
		return false, nil
	}, 3, delays)
	elapsed := time.Since(start)

	assert.Nil(t, err)
	assert.False(t, found)
	// Two sleeps between three attempts, no trailing sleep.
	assert.GreaterOrEqual(t, elapsed, 2*time.Millisecond)
	assert.Less(t, elapsed, 500*time.Millisecond)
}

func TestRetryZeroAttempts(t *testing.T) {
	calls := 0
	found, err := Retry(func() (bool, error) {
		calls++
		return true, nil
	}, 0, nil)

	assert.Nil(t, err)
	assert.False(t, found)
	assert.Equal(t, 0, calls)
}
