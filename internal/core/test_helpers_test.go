package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vovakirdan/iconchat-server/internal/log"
	"github.com/vovakirdan/iconchat-server/internal/proto"
)

// fakeTransport is an in-memory Transport; tests play the client side through in/out.
type fakeTransport struct {
	addr string
	in   chan string
	out  chan string

	closed    chan struct{}
	closeOnce sync.Once
	hangOnce  sync.Once
	broken    atomic.Bool
}

func newFakeTransport(addr string) *fakeTransport {
	return &fakeTransport{
		addr:   addr,
		in:     make(chan string, 16),
		out:    make(chan string, 256),
		closed: make(chan struct{}),
	}
}

func (f *fakeTransport) ReadFrame(ctx context.Context) (string, error) {
	select {
	case frame, ok := <-f.in:
		if !ok {
			return "", io.EOF
		}
		return frame, nil
	case <-f.closed:
		return "", net.ErrClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (f *fakeTransport) WriteFrame(ctx context.Context, frame string) error {
	if f.broken.Load() {
		return errBrokenPipe
	}
	select {
	case <-f.closed:
		return net.ErrClosed
	default:
	}
	select {
	case f.out <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeTransport) RemoteAddr() string { return f.addr }

func (f *fakeTransport) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeTransport) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

// hangUp simulates the peer closing its side.
func (f *fakeTransport) hangUp() {
	f.hangOnce.Do(func() { close(f.in) })
}

type testPeer struct {
	id string
	t  *fakeTransport
}

func (p *testPeer) send(frame string) { p.t.in <- frame }

func newTestHub(t *testing.T, opts Options) (*Hub, context.Context) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	var seq atomic.Int64
	if opts.NewID == nil {
		opts.NewID = func() string { return fmt.Sprintf("c%d", seq.Add(1)) }
	}
	if opts.HandshakeTimeout == 0 {
		opts.HandshakeTimeout = 50 * time.Millisecond
	}
	hub := NewHub(opts, log.Nop())
	t.Cleanup(func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), time.Second)
		defer done()
		_ = hub.Shutdown(shutdownCtx)
	})
	return hub, ctx
}

// connect runs a session whose client sends the given handshake frames, and
// waits until it is registered.
func connect(t *testing.T, hub *Hub, ctx context.Context, addr string, handshake ...string) *testPeer {
	t.Helper()

	ft := newFakeTransport(addr)
	for _, frame := range handshake {
		ft.in <- frame
	}

	before := map[string]bool{}
	for _, m := range hub.Registry().Snapshot() {
		before[m.ID] = true
	}

	go func() { _ = hub.Serve(ctx, ft) }()

	var id string
	waitFor(t, func() bool {
		for _, m := range hub.Registry().Snapshot() {
			if !before[m.ID] && m.Addr == addr {
				id = m.ID
				return true
			}
		}
		return false
	})
	return &testPeer{id: id, t: ft}
}

func connectAs(t *testing.T, hub *Hub, ctx context.Context, name, icon string) *testPeer {
	t.Helper()
	frames := []string{proto.UsernameFrame(name)}
	if icon != "" {
		frames = append(frames, proto.IconFrame(icon))
	}
	return connect(t, hub, ctx, "addr-"+name, frames...)
}

// mustFrame skips frames until want arrives.
func mustFrame(t *testing.T, p *testPeer, want string) {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case got := <-p.t.out:
			if got == want {
				return
			}
		case <-deadline:
			t.Fatalf("peer %s never received %q", p.id, want)
		}
	}
}

func nextFrame(t *testing.T, p *testPeer) string {
	t.Helper()

	select {
	case got := <-p.t.out:
		return got
	case <-time.After(2 * time.Second):
		t.Fatalf("peer %s received nothing", p.id)
		return ""
	}
}

func expectNoFrame(t *testing.T, p *testPeer, unwanted string, wait time.Duration) {
	t.Helper()

	deadline := time.After(wait)
	for {
		select {
		case got := <-p.t.out:
			if got == unwanted {
				t.Fatalf("peer %s unexpectedly received %q", p.id, unwanted)
			}
		case <-deadline:
			return
		}
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

var errBrokenPipe = errors.New("broken pipe")

// scriptedTransport replays steps (frames or read errors) before falling
// through to the fake transport.
type scriptedTransport struct {
	*fakeTransport

	mu    sync.Mutex
	steps []any
}

func (s *scriptedTransport) ReadFrame(ctx context.Context) (string, error) {
	s.mu.Lock()
	if len(s.steps) > 0 {
		step := s.steps[0]
		s.steps = s.steps[1:]
		s.mu.Unlock()
		if err, ok := step.(error); ok {
			return "", err
		}
		return step.(string), nil
	}
	s.mu.Unlock()
	return s.fakeTransport.ReadFrame(ctx)
}

// slowCloseTransport takes delay to close, like a websocket waiting for the peer's close frame.
type slowCloseTransport struct {
	*fakeTransport

	delay time.Duration
	once  sync.Once
}

func (s *slowCloseTransport) Close() error {
	s.once.Do(func() {
		time.Sleep(s.delay)
		_ = s.fakeTransport.Close()
	})
	return nil
}

// serve runs t on hub and waits until a member with addr is registered.
func serve(t *testing.T, hub *Hub, ctx context.Context, tr Transport, addr string) Member {
	t.Helper()

	go func() { _ = hub.Serve(ctx, tr) }()

	var member Member
	waitFor(t, func() bool {
		for _, m := range hub.Registry().Snapshot() {
			if m.Addr == addr {
				member = m
				return true
			}
		}
		return false
	})
	return member
}
