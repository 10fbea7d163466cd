package debounce

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNew_DefaultWait(t *testing.T) {
	assert.Equal(t, DefaultWait, New(0).Wait())
	assert.Equal(t, 300*time.Millisecond, DefaultWait)
}

func TestSchedule_RunsAfterWindow(t *testing.T) {
	d := New(20 * time.Millisecond)
	defer d.Stop()

	done := make(chan struct{})
	assert.True(t, d.Schedule("k", func() { close(done) }))
	assert.True(t, d.Pending("k"))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduled call did not run")
	}
	assert.Eventually(t, func() bool { return !d.Pending("k") }, time.Second, 5*time.Millisecond)
}

func TestSchedule_ReplacesPendingCall(t *testing.T) {
	d := New(30 * time.Millisecond)
	defer d.Stop()

	var last atomic.Int32
	var calls atomic.Int32
	for i := int32(1); i <= 5; i++ {
		v := i
		d.Schedule("search", func() {
			calls.Add(1)
			last.Store(v)
		})
		time.Sleep(5 * time.Millisecond)
	}

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int32(5), last.Load())
}

func TestSchedule_KeysAreIndependent(t *testing.T) {
	d := New(10 * time.Millisecond)
	defer d.Stop()

	var calls atomic.Int32
	d.Schedule("a", func() { calls.Add(1) })
	d.Schedule("b", func() { calls.Add(1) })

	assert.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestCancel(t *testing.T) {
	d := New(20 * time.Millisecond)
	defer d.Stop()

	var calls atomic.Int32
	d.Schedule("k", func() { calls.Add(1) })
	assert.True(t, d.Cancel("k"))
	assert.False(t, d.Cancel("k"))

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
}

func TestFlush(t *testing.T) {
	d := New(time.Hour)
	defer d.Stop()

	var calls atomic.Int32
	d.Schedule("k", func() { calls.Add(1) })
	assert.True(t, d.Flush("k"))
	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, d.Flush("k"))
}

func TestDrainAndStop(t *testing.T) {
	d := New(time.Hour)

	var calls atomic.Int32
	d.Schedule("a", func() { calls.Add(1) })
	d.Schedule("b", func() { calls.Add(1) })
	assert.Equal(t, 2, d.Len())

	d.Drain()
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 0, d.Len())
	assert.False(t, d.Schedule("c", func() { calls.Add(1) }))

	s := New(time.Hour)
	s.Schedule("a", func() { calls.Add(1) })
	s.Stop()
	assert.Equal(t, int32(2), calls.Load())
}
