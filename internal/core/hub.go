package core

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/iconchat-server/internal/utils"
)

// Options tunes session behavior.
type Options struct {
	// DefaultIcon is used until a connection sets its own.
	DefaultIcon string
	// HandshakeTimeout bounds the wait for the optional icon frame; zero skips it.
	HandshakeTimeout time.Duration
	// WriteTimeout bounds each send to one recipient; zero means unbounded.
	WriteTimeout time.Duration
	// OutboundQueue gives every connection a bounded queue of this size; zero sends inline.
	OutboundQueue int
	// Observer receives counters; nil disables them.
	Observer Observer
	// NewID generates connection ids.
	NewID func() string
}

// Hub owns the registry and serves one session per transport.
type Hub struct {
	opts        Options
	registry    *Registry
	broadcaster *Broadcaster
	observer    Observer
	log         *zerolog.Logger

	mu      sync.Mutex
	closing bool
	live    map[string]*Connection
	wg      sync.WaitGroup
}

// NewHub creates a hub with an empty registry.
func NewHub(opts Options, logger *zerolog.Logger) *Hub {
	if opts.DefaultIcon == "" {
		opts.DefaultIcon = "😎"
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.NewID == nil {
		opts.NewID = utils.NewID
	}
	registry := NewRegistry()
	return &Hub{
		opts:        opts,
		registry:    registry,
		broadcaster: NewBroadcaster(registry, opts.Observer, logger),
		observer:    opts.Observer,
		log:         logger,
		live:        make(map[string]*Connection),
	}
}

// Registry exposes the hub's registry for read-only consumers such as the admin API.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Serve runs the session state machine on t and blocks until the peer goes
// away. The transport is closed on every return path.
func (h *Hub) Serve(ctx context.Context, t Transport) error {
	conn, err := h.track(t)
	if err != nil {
		_ = t.Close()
		return err
	}
	defer h.untrack(conn)

	s := newSession(h, conn)
	return s.run(ctx)
}

// Shutdown closes every live transport and waits for their sessions to finish.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closing = true
	conns := make([]*Connection, 0, len(h.live))
	for _, c := range h.live {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	// a websocket close waits for the peer's handshake, so one stuck peer
	// must not hold up the rest
	var closing sync.WaitGroup
	for _, c := range conns {
		closing.Add(1)
		go func(c *Connection) {
			defer closing.Done()
			c.interrupt()
		}(c)
	}
	h.log.Info().Int("connections", len(conns)).Msg("closing client connections")

	done := make(chan struct{})
	go func() {
		closing.Wait()
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) track(t Transport) (*Connection, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closing {
		return nil, ErrClosed
	}
	id := h.opts.NewID()
	for _, taken := h.live[id]; taken; _, taken = h.live[id] {
		id = h.opts.NewID()
	}
	conn := newConnection(id, t, h.opts.WriteTimeout, h.opts.OutboundQueue, func(err error) {
		h.log.Warn().Err(err).Str("conn_id", id).Msg("queued send failed")
	})
	h.live[id] = conn
	h.wg.Add(1)
	h.observer.ConnectionOpened()
	return conn, nil
}

func (h *Hub) untrack(conn *Connection) {
	h.mu.Lock()
	delete(h.live, conn.ID)
	h.mu.Unlock()

	h.observer.ConnectionClosed()
	h.wg.Done()
}
