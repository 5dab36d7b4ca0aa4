package transport

import (
	"sync"
	"testing"
)

func TestLineQueue_PutRacingCloseNeverPanics(t *testing.T) {
	// A subscription callback can be mid-delivery when shutdown closes
	// the queue; puts arriving before, during, and after close must all
	// either enqueue or drop, never panic.
	q := newLineQueue(4)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for i := 0; i < 200; i++ {
				q.put([]byte("x"))
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-start
		q.close()
	}()

	close(start)
	wg.Wait()

	if q.put([]byte("late")) {
		t.Error("put after close must report a drop")
	}
	// Drain: the channel must be closed with at most the buffered lines.
	n := 0
	for range q.ch {
		n++
	}
	if n > 4 {
		t.Errorf("drained %d lines from a 4-slot buffer", n)
	}
}

func TestLineQueue_DropsWhenFull(t *testing.T) {
	q := newLineQueue(2)

	if !q.put([]byte("a")) || !q.put([]byte("b")) {
		t.Fatal("puts within capacity must succeed")
	}
	if q.put([]byte("c")) {
		t.Error("put into a full buffer must drop, not block")
	}

	<-q.ch
	if !q.put([]byte("d")) {
		t.Error("put must succeed again after the consumer drains a slot")
	}
}

func TestLineQueue_CloseIsIdempotent(t *testing.T) {
	q := newLineQueue(1)
	q.close()
	q.close()
	if _, ok := <-q.ch; ok {
		t.Error("channel must be closed and empty")
	}
}
