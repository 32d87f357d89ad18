package ratelimit

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
)

func TestStore_AllowAndCleanup(t *testing.T) {
	s := NewStore(0, 1, time.Minute)
	assert.True(t, s.Allow("a"))
	assert.False(t, s.Allow("a"))
	assert.True(t, s.Allow("b"), "不同 key 互不影响")
	assert.Equal(t, 2, s.Len())

	s.cleanup(time.Now().Add(2 * time.Minute))
	assert.Equal(t, 0, s.Len())
}

func TestStore_SetLimit(t *testing.T) {
	s := NewStore(0, 1, time.Minute)
	assert.True(t, s.Allow("a"))
	assert.False(t, s.Allow("a"))
	s.SetLimit(1000, 10)
	time.Sleep(5 * time.Millisecond)
	assert.True(t, s.Allow("a"))
}

func TestManager_TripsOnConsecutiveFailures(t *testing.T) {
	m := NewManager("test", Rule{TripConsecutiveFailures: 3, Timeout: time.Minute}, nil)
	boom := errors.New("nats down")
	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, m.Do("nats", func() error { return boom }), boom)
	}
	err := m.Do("nats", func() error { return nil })
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)

	// 其他目标不受影响
	assert.NoError(t, m.Do("other", func() error { return nil }))
}

func TestManager_PermanentErrorsDoNotTrip(t *testing.T) {
	m := NewManager("test", Rule{TripConsecutiveFailures: 2, Timeout: time.Minute}, nil)
	bad := fmt.Errorf("encode: %w", ErrPermanent)
	for i := 0; i < 5; i++ {
		assert.ErrorIs(t, m.Do("nats", func() error { return bad }), ErrPermanent)
	}
	assert.Equal(t, gobreaker.StateClosed, m.Get("nats").State())
}
