package interval

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_AddTwiceKeepsOneTimer(t *testing.T) {
	r := NewRegistry()
	defer r.Clear()

	var first, second atomic.Int32
	require.True(t, r.Add("timer", func() { first.Add(1) }, 5*time.Millisecond))
	assert.False(t, r.Add("timer", func() { second.Add(1) }, 5*time.Millisecond))
	assert.Equal(t, 1, r.Len())

	require.Eventually(t, func() bool { return first.Load() >= 3 }, time.Second, time.Millisecond)
	assert.Zero(t, second.Load())
}

func TestRegistry_DelStopsAndIsIdempotent(t *testing.T) {
	r := NewRegistry()

	var calls atomic.Int32
	r.Add("timer", func() { calls.Add(1) }, 2*time.Millisecond)
	require.Eventually(t, func() bool { return calls.Load() > 0 }, time.Second, time.Millisecond)

	assert.True(t, r.Del("timer"))
	assert.False(t, r.Del("timer"))
	assert.False(t, r.Has("timer"))

	// one tick may already be in flight when Del returns
	time.Sleep(5 * time.Millisecond)
	settled := calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, settled, calls.Load())
}

func TestRegistry_ReAddAfterDel(t *testing.T) {
	r := NewRegistry()
	defer r.Clear()

	r.Add("timer", func() {}, time.Hour)
	r.Del("timer")

	var calls atomic.Int32
	require.True(t, r.Add("timer", func() { calls.Add(1) }, 2*time.Millisecond))
	require.Eventually(t, func() bool { return calls.Load() > 0 }, time.Second, time.Millisecond)
}

func TestRegistry_DelFromOwnCallback(t *testing.T) {
	r := NewRegistry()

	done := make(chan struct{})
	r.Add("once", func() {
		if r.Del("once") {
			close(done)
		}
	}, 2*time.Millisecond)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("callback never removed itself")
	}
	assert.Zero(t, r.Len())
}

func TestRegistry_RejectsBadPeriod(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.Add("timer", func() {}, 0))
	assert.False(t, r.Has("timer"))
}
