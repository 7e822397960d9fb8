package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/iconchat-server/internal/core"
)

// Handler serves one transport until the peer goes away.
type Handler interface {
	Serve(ctx context.Context, t core.Transport) error
}

// Listener accepts TCP connections and hands each to Handler in its own goroutine.
type Listener struct {
	addr     string
	framing  string
	maxFrame int
	handler  Handler
	log      *zerolog.Logger

	mu sync.Mutex
	ln net.Listener
}

// NewListener builds a listener for addr; call Listen then Serve.
func NewListener(addr, framing string, maxFrame int, handler Handler, logger *zerolog.Logger) *Listener {
	return &Listener{
		addr:     addr,
		framing:  framing,
		maxFrame: maxFrame,
		handler:  handler,
		log:      logger,
	}
}

// Listen binds the socket.
func (l *Listener) Listen() error {
	ln, err := net.Listen("tcp", l.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", l.addr, err)
	}
	l.mu.Lock()
	l.ln = ln
	l.mu.Unlock()
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

// Serve accepts until ctx is done or Close is called, which return nil.
// Any other accept failure is returned.
func (l *Listener) Serve(ctx context.Context) error {
	l.mu.Lock()
	ln := l.ln
	l.mu.Unlock()
	if ln == nil {
		return errors.New("listener not bound")
	}

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	l.log.Info().Str("addr", ln.Addr().String()).Msg("accepting chat connections")

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				backoff = nextBackoff(backoff)
				l.log.Warn().Err(err).Dur("retry_in", backoff).Msg("accept")
				time.Sleep(backoff)
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}
		backoff = 0

		l.log.Debug().Str("remote", conn.RemoteAddr().String()).Msg("connection accepted")
		go func() {
			if err := l.handler.Serve(ctx, NewConn(conn, l.framing, l.maxFrame)); err != nil && !errors.Is(err, core.ErrClosed) {
				l.log.Debug().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("session ended with error")
			}
		}()
	}
}

// Close stops accepting.
func (l *Listener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ln == nil {
		return nil
	}
	return l.ln.Close()
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	if d *= 2; d > time.Second {
		return time.Second
	}
	return d
}
