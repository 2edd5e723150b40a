package audio

import (
	"sync"
)

// FrameQueue is a bounded FIFO between the capture callback and the
// segmenter. When the consumer falls behind and the queue fills, the
// oldest frame is dropped to make room, so the queue always holds the
// most recent audio.
type FrameQueue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	frames   []Frame
	capacity int
	closed   bool
	dropped  uint64
}

// NewFrameQueue creates a queue holding at most capacity frames.
func NewFrameQueue(capacity int) *FrameQueue {
	if capacity < 1 {
		capacity = 1
	}
	q := &FrameQueue{
		frames:   make([]Frame, 0, capacity),
		capacity: capacity,
	}
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// Push enqueues a frame, evicting the oldest one if the queue is full.
// It never blocks, so it is safe to call from an audio callback.
func (q *FrameQueue) Push(f Frame) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	if len(q.frames) >= q.capacity {
		q.frames = q.frames[1:]
		q.dropped++
	}
	q.frames = append(q.frames, f)
	q.notEmpty.Signal()
}

// Pop blocks until a frame is available or the queue is closed. The
// second return is false once the queue is closed and drained.
func (q *FrameQueue) Pop() (Frame, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.frames) == 0 && !q.closed {
		q.notEmpty.Wait()
	}
	if len(q.frames) == 0 {
		return Frame{}, false
	}
	f := q.frames[0]
	q.frames = q.frames[1:]
	return f, true
}

// Len returns the number of queued frames.
func (q *FrameQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}

// Dropped returns how many frames have been evicted due to overflow.
func (q *FrameQueue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Close wakes all blocked consumers. Frames already queued can still be
// drained with Pop.
func (q *FrameQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.notEmpty.Broadcast()
}
