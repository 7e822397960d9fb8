package core

import (
	"context"
	"sync"
	"time"
)

// Transport is a framed, bidirectional byte stream to one peer.
// ReadFrame honors the context deadline; WriteFrame may be called from several goroutines.
type Transport interface {
	ReadFrame(ctx context.Context) (string, error)
	WriteFrame(ctx context.Context, frame string) error
	RemoteAddr() string
	Close() error
}

// Connection is one accepted peer. Its transport is owned by the session
// serving it; the registry only ever sends through it.
type Connection struct {
	ID   string
	Addr string

	transport    Transport
	writeTimeout time.Duration
	sendMu       sync.Mutex
	outbox       *outbox
	onQueueError func(error)

	closeOnce sync.Once
	closeErr  error
}

func newConnection(id string, t Transport, writeTimeout time.Duration, queue int, onQueueError func(error)) *Connection {
	c := &Connection{
		ID:           id,
		Addr:         t.RemoteAddr(),
		transport:    t,
		writeTimeout: writeTimeout,
		onQueueError: onQueueError,
	}
	if queue > 0 {
		c.outbox = newOutbox(queue)
		go c.outbox.run(c.queuedWrite)
	}
	return c
}

// Send delivers one frame. With an outbound queue it only enqueues.
func (c *Connection) Send(ctx context.Context, frame string) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	return c.sendLocked(ctx, frame)
}

// exclusive runs fn while every other Send to c waits, so frames sent
// through fn's argument reach the peer first.
func (c *Connection) exclusive(fn func(send func(context.Context, string) error) error) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	return fn(c.sendLocked)
}

func (c *Connection) sendLocked(ctx context.Context, frame string) error {
	if c.outbox != nil {
		return c.outbox.push(frame)
	}
	return c.write(ctx, frame)
}

// write is called under sendMu, or from the outbox writer which is the only writer in queue mode.
func (c *Connection) write(ctx context.Context, frame string) error {
	if c.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.writeTimeout)
		defer cancel()
	}
	return c.transport.WriteFrame(ctx, frame)
}

func (c *Connection) queuedWrite(ctx context.Context, frame string) error {
	err := c.write(ctx, frame)
	if err != nil && c.onQueueError != nil {
		c.onQueueError(err)
	}
	return err
}

// interrupt closes the transport without waiting for queued frames, which
// makes the owning session's pending read fail.
func (c *Connection) interrupt() {
	_ = c.transport.Close()
}

// close releases the transport exactly once.
func (c *Connection) close() error {
	c.closeOnce.Do(func() {
		if c.outbox != nil {
			c.outbox.close()
		}
		c.closeErr = c.transport.Close()
		if c.outbox != nil {
			<-c.outbox.done
		}
	})
	return c.closeErr
}
