package audio

import (
	"testing"
	"time"
)

func frameWithFirst(v float32) Frame {
	return Frame{Samples: []float32{v}}
}

func TestFrameQueuePushPop(t *testing.T) {
	q := NewFrameQueue(4)
	q.Push(frameWithFirst(1))
	q.Push(frameWithFirst(2))

	f, ok := q.Pop()
	if !ok || f.Samples[0] != 1 {
		t.Errorf("Pop() = %v, %v; want first frame", f, ok)
	}
	f, ok = q.Pop()
	if !ok || f.Samples[0] != 2 {
		t.Errorf("Pop() = %v, %v; want second frame", f, ok)
	}
}

func TestFrameQueueDropsOldestOnOverflow(t *testing.T) {
	q := NewFrameQueue(2)
	q.Push(frameWithFirst(1))
	q.Push(frameWithFirst(2))
	q.Push(frameWithFirst(3))

	if q.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", q.Dropped())
	}
	f, _ := q.Pop()
	if f.Samples[0] != 2 {
		t.Errorf("oldest surviving frame = %v, want 2", f.Samples[0])
	}
	f, _ = q.Pop()
	if f.Samples[0] != 3 {
		t.Errorf("newest frame = %v, want 3", f.Samples[0])
	}
}

func TestFrameQueueCloseUnblocksPop(t *testing.T) {
	q := NewFrameQueue(2)
	done := make(chan bool, 1)
	go func() {
		_, ok := q.Pop()
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case ok := <-done:
		if ok {
			t.Error("Pop() after close on empty queue should return false")
		}
	case <-time.After(time.Second):
		t.Fatal("Pop() did not unblock after Close()")
	}
}

func TestFrameQueueDrainAfterClose(t *testing.T) {
	q := NewFrameQueue(4)
	q.Push(frameWithFirst(1))
	q.Close()

	if f, ok := q.Pop(); !ok || f.Samples[0] != 1 {
		t.Error("queued frames should drain after Close()")
	}
	if _, ok := q.Pop(); ok {
		t.Error("drained closed queue should report no frames")
	}

	// Pushes after close are ignored.
	q.Push(frameWithFirst(2))
	if q.Len() != 0 {
		t.Error("Push() after Close() should be a no-op")
	}
}
