package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := New("admin-api", WithFailureThreshold(3))

	open, change := b.RecordFailure()
	assert.False(t, open)
	assert.False(t, change.Opened)
	b.RecordFailure()
	open, change = b.RecordFailure()

	assert.True(t, open)
	assert.True(t, change.Opened)
	assert.False(t, b.AllowRetry())
	assert.Equal(t, StateOpen, b.State())
}

func TestBreaker_SuccessResetsFailureRun(t *testing.T) {
	b := New("admin-api", WithFailureThreshold(2))

	b.RecordFailure()
	b.RecordSuccess()
	open, _ := b.RecordFailure()

	assert.False(t, open)
	assert.True(t, b.AllowRetry())
}

func TestBreaker_ClosesAfterSuccesses(t *testing.T) {
	b := New("admin-api", WithFailureThreshold(1), WithSuccessThreshold(2))
	b.RecordFailure()

	closed, change := b.RecordSuccess()
	assert.False(t, closed)
	assert.False(t, change.Closed)

	closed, change = b.RecordSuccess()
	assert.True(t, closed)
	assert.True(t, change.Closed)
	assert.True(t, b.AllowRetry())
}

func TestBreaker_CooldownCloses(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	b := New("admin-api",
		WithFailureThreshold(1),
		WithCooldown(10*time.Second),
		WithClock(clock.Now),
	)
	b.RecordFailure()
	assert.False(t, b.AllowRetry())

	clock.Advance(9 * time.Second)
	assert.False(t, b.AllowRetry())

	clock.Advance(time.Second)
	assert.True(t, b.AllowRetry())
	assert.Equal(t, "closed", b.State().String())
}

func TestBreaker_Reset(t *testing.T) {
	b := New("admin-api", WithFailureThreshold(1))
	b.RecordFailure()
	b.Reset()
	assert.Equal(t, StateClosed, b.State())
}
