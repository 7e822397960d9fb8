package core

import (
	"context"
	"errors"
	"io"
	"net"
	"os"

	"github.com/vovakirdan/iconchat-server/internal/proto"
)

var (
	// ErrNotRegistered is returned for operations on an id the registry does not hold.
	ErrNotRegistered = errors.New("connection not registered")
	// ErrAlreadyRegistered is returned when an id is registered twice.
	ErrAlreadyRegistered = errors.New("connection already registered")
	// ErrClosed is returned when sending to a closed connection or serving on a stopped hub.
	ErrClosed = errors.New("connection closed")
	// ErrQueueFull is returned when a connection's outbound queue has no room.
	ErrQueueFull = errors.New("outbound queue full")
)

// isTimeout reports whether err is a deadline expiry rather than a broken transport.
func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// isClosedErr reports whether err is an ordinary end of stream.
func isClosedErr(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, ErrClosed) ||
		errors.Is(err, context.Canceled)
}

// isProtocolErr reports whether err concerns one bad frame and the stream is still usable.
func isProtocolErr(err error) bool {
	return errors.Is(err, proto.ErrFrameTooLarge) || errors.Is(err, proto.ErrMalformedFrame)
}
