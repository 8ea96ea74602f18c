package engine

// FrameFunc receives the frame timestamp in milliseconds.
type FrameFunc func(ts float64)

// Scheduler queues one-shot frame callbacks and tasks posted from other
// goroutines. Frame callbacks and RunPending must only be used from the main
// thread; Post is safe from anywhere.
type Scheduler struct {
	tasks  chan func()
	frames []FrameFunc
	spare  []FrameFunc
}

func NewScheduler(capacity int) *Scheduler {
	if capacity < 1 {
		capacity = 1
	}
	return &Scheduler{tasks: make(chan func(), capacity)}
}

// RequestFrame runs cb once on the next frame. A callback that requests
// another frame while running is queued for the frame after.
func (s *Scheduler) RequestFrame(cb func(ts float64)) {
	s.frames = append(s.frames, cb)
}

// Post queues fn to run on the main thread before the next frame. It blocks
// when the queue is full.
func (s *Scheduler) Post(fn func()) {
	s.tasks <- fn
}

// RunPending drains posted tasks, then runs the frame callbacks queued before
// this call. It reports whether any frame callback ran.
func (s *Scheduler) RunPending(ts float64) bool {
	for drained := false; !drained; {
		select {
		case fn := <-s.tasks:
			fn()
		default:
			drained = true
		}
	}

	if len(s.frames) == 0 {
		return false
	}
	frames := s.frames
	s.frames = s.spare[:0]
	for _, cb := range frames {
		cb(ts)
	}
	clear(frames)
	s.spare = frames
	return true
}
