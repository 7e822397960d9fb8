package core

import (
	"context"
	"sync"
)

// outbox is a bounded per-connection queue drained by a single writer, so a
// slow peer only delays its own frames.
type outbox struct {
	mu     sync.RWMutex
	closed bool
	frames chan string
	done   chan struct{}
}

func newOutbox(size int) *outbox {
	return &outbox{
		frames: make(chan string, size),
		done:   make(chan struct{}),
	}
}

func (o *outbox) push(frame string) error {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.closed {
		return ErrClosed
	}
	select {
	case o.frames <- frame:
		return nil
	default:
		return ErrQueueFull
	}
}

// run writes queued frames until close. After the first write error the rest are discarded.
func (o *outbox) run(write func(context.Context, string) error) {
	defer close(o.done)

	var failed bool
	for frame := range o.frames {
		if failed {
			continue
		}
		if err := write(context.Background(), frame); err != nil {
			failed = true
		}
	}
}

func (o *outbox) close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return
	}
	o.closed = true
	close(o.frames)
}
