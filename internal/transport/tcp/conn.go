// Package tcp carries chat frames over plain TCP sockets.
package tcp

import (
	"context"
	"net"
	"time"

	"github.com/vovakirdan/iconchat-server/internal/proto"
)

// Conn adapts a net.Conn to core.Transport using the configured framing.
type Conn struct {
	conn    net.Conn
	framing string
	dec     proto.Decoder
}

// NewConn wraps c. maxFrame caps a single frame in bytes.
func NewConn(c net.Conn, framing string, maxFrame int) *Conn {
	return &Conn{
		conn:    c,
		framing: framing,
		dec:     proto.NewDecoder(framing, c, maxFrame),
	}
}

// Dial connects to a chat server.
func Dial(ctx context.Context, addr, framing string, maxFrame int) (*Conn, error) {
	var d net.Dialer
	c, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewConn(c, framing, maxFrame), nil
}

// ReadFrame blocks for the next frame. Only the context deadline is honored;
// cancellation without a deadline is observed when the socket is closed.
func (c *Conn) ReadFrame(ctx context.Context) (string, error) {
	if err := c.conn.SetReadDeadline(deadline(ctx)); err != nil {
		return "", err
	}
	return c.dec.Next()
}

// WriteFrame writes one encoded frame.
func (c *Conn) WriteFrame(ctx context.Context, frame string) error {
	if err := c.conn.SetWriteDeadline(deadline(ctx)); err != nil {
		return err
	}
	_, err := c.conn.Write(proto.Encode(c.framing, frame))
	return err
}

// RemoteAddr returns the peer address in host:port form.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// Close closes the socket.
func (c *Conn) Close() error {
	return c.conn.Close()
}

func deadline(ctx context.Context) time.Time {
	if d, ok := ctx.Deadline(); ok {
		return d
	}
	return time.Time{}
}
