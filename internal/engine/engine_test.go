package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSchedulerRunsPostedTasksBeforeFrames(t *testing.T) {
	s := NewScheduler(4)
	var order []string

	s.RequestFrame(func(float64) { order = append(order, "frame") })
	done := make(chan struct{})
	go func() {
		s.Post(func() { order = append(order, "task") })
		close(done)
	}()
	<-done

	assert.True(t, s.RunPending(16))
	assert.Equal(t, []string{"task", "frame"}, order)
}

func TestSchedulerDefersFramesRequestedDuringAFrame(t *testing.T) {
	s := NewScheduler(1)
	var stamps []float64

	var loop func(ts float64)
	loop = func(ts float64) {
		stamps = append(stamps, ts)
		s.RequestFrame(loop)
	}
	s.RequestFrame(loop)

	s.RunPending(10)
	s.RunPending(26)
	s.RunPending(42)

	assert.Equal(t, []float64{10, 26, 42}, stamps)
}

func TestSchedulerIdleWithoutFrames(t *testing.T) {
	s := NewScheduler(1)
	ran := false
	s.Post(func() { ran = true })

	assert.False(t, s.RunPending(0), "no frame was requested")
	assert.True(t, ran, "tasks still run")
}

func TestScrollStateClampsToPage(t *testing.T) {
	s := scrollState{pageHeight: 100, step: 40}

	assert.Equal(t, 40.0, s.wheel(-1))
	assert.Equal(t, 80.0, s.wheel(-1))
	assert.Equal(t, 100.0, s.wheel(-1))
	assert.Equal(t, 60.0, s.wheel(1))
	assert.Equal(t, 0.0, s.wheel(5))
}

func TestDragStateReportsDeltas(t *testing.T) {
	var d dragState

	_, _, ok := d.move(10, 10, true)
	assert.False(t, ok, "first event only records the cursor")

	dx, dy, ok := d.move(15, 7, true)
	assert.True(t, ok)
	assert.Equal(t, 5.0, dx)
	assert.Equal(t, -3.0, dy)

	_, _, ok = d.move(20, 20, false)
	assert.False(t, ok)

	_, _, ok = d.move(30, 30, true)
	assert.False(t, ok, "a new drag starts fresh")
}
