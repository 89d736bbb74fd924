package polling

import (
	"context"
	"time"

	"github.com/karagenc/sioengine/internal/sync"

	"github.com/karagenc/sioengine/engine.io/parser"
)

// pollQueue holds the packets waiting for the next poll request.
type pollQueue struct {
	mu      sync.Mutex
	packets []*parser.Packet
	// Closed and replaced every time packets are pushed.
	wake chan struct{}
}

func newPollQueue() *pollQueue {
	return &pollQueue{wake: make(chan struct{})}
}

func (q *pollQueue) push(packets ...*parser.Packet) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.packets = append(q.packets, packets...)
	close(q.wake)
	q.wake = make(chan struct{})
}

// take empties the queue without waiting.
func (q *pollQueue) take() []*parser.Packet {
	q.mu.Lock()
	defer q.mu.Unlock()
	packets := q.packets
	q.packets = nil
	return packets
}

// wait empties the queue. If the queue is empty, it waits for packets
// until timeout elapses or ctx is done, in which case it returns nil.
func (q *pollQueue) wait(ctx context.Context, timeout time.Duration) []*parser.Packet {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		q.mu.Lock()
		if len(q.packets) > 0 {
			packets := q.packets
			q.packets = nil
			q.mu.Unlock()
			return packets
		}
		wake := q.wake
		q.mu.Unlock()

		select {
		case <-wake:
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}
