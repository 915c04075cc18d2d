package clock_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/flowdeck/pkg/clock"
	"github.com/aretw0/flowdeck/pkg/ports"
	"github.com/stretchr/testify/assert"
)

func TestManual_FiresInOrder(t *testing.T) {
	m := clock.NewManual(time.Unix(0, 0))
	var got []string

	m.AfterFunc(2*time.Second, func() { got = append(got, "b") })
	m.AfterFunc(time.Second, func() { got = append(got, "a") })
	m.AfterFunc(5*time.Second, func() { got = append(got, "c") })

	m.Advance(2 * time.Second)
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, 1, m.Pending())

	m.Advance(3 * time.Second)
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Equal(t, 0, m.Pending())
	assert.Equal(t, time.Unix(5, 0), m.Now())
}

func TestManual_RescheduleInsideWindow(t *testing.T) {
	m := clock.NewManual(time.Unix(0, 0))
	var ticks int

	var tick func()
	tick = func() {
		ticks++
		m.AfterFunc(time.Second, tick)
	}
	m.AfterFunc(time.Second, tick)

	m.Advance(3 * time.Second)
	assert.Equal(t, 3, ticks)
	assert.Equal(t, 1, m.Pending())
}

func TestManual_Stop(t *testing.T) {
	m := clock.NewManual(time.Unix(0, 0))
	fired := false
	timer := m.AfterFunc(time.Second, func() { fired = true })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())

	m.Advance(time.Minute)
	assert.False(t, fired)
}

func TestReal_AfterFunc(t *testing.T) {
	var s ports.Scheduler = clock.Real{}
	var fired atomic.Bool
	done := make(chan struct{})

	s.AfterFunc(time.Millisecond, func() {
		fired.Store(true)
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
	assert.True(t, fired.Load())
}
