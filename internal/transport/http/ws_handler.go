package http

import (
	"context"
	"errors"
	"io"
	"net"
	stdhttp "net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/iconchat-server/internal/core"
	"github.com/vovakirdan/iconchat-server/internal/proto"
)

// WSHandler upgrades HTTP connections and serves them on the hub.
// Each WebSocket message is one frame.
type WSHandler struct {
	hub      *core.Hub
	maxFrame int
	log      *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, maxFrame int, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{hub: hub, maxFrame: maxFrame, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	if h.maxFrame > 0 {
		conn.SetReadLimit(int64(h.maxFrame))
	}

	t := newWSTransport(conn, r.RemoteAddr)
	if err := h.hub.Serve(r.Context(), t); err != nil && !errors.Is(err, core.ErrClosed) {
		h.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("ws session ended with error")
	}
}

// wsTransport adapts a WebSocket to core.Transport. A pump goroutine owns
// reading, so a ReadFrame that times out leaves the socket usable.
type wsTransport struct {
	conn   *websocket.Conn
	remote string
	frames chan string
	cancel context.CancelFunc

	mu      sync.Mutex
	readErr error

	closeOnce sync.Once
	closeErr  error
}

func newWSTransport(conn *websocket.Conn, remote string) *wsTransport {
	ctx, cancel := context.WithCancel(context.Background())
	t := &wsTransport{
		conn:   conn,
		remote: remote,
		frames: make(chan string),
		cancel: cancel,
	}
	go t.pump(ctx)
	return t
}

func (t *wsTransport) pump(ctx context.Context) {
	defer close(t.frames)

	for {
		_, data, err := t.conn.Read(ctx)
		if err != nil {
			t.setErr(err)
			return
		}
		select {
		case t.frames <- proto.DecodeText(data):
		case <-ctx.Done():
			t.setErr(ctx.Err())
			return
		}
	}
}

func (t *wsTransport) setErr(err error) {
	switch {
	case errors.Is(err, context.Canceled):
		err = net.ErrClosed
	case websocket.CloseStatus(err) == websocket.StatusNormalClosure,
		websocket.CloseStatus(err) == websocket.StatusGoingAway:
		err = io.EOF
	}
	t.mu.Lock()
	t.readErr = err
	t.mu.Unlock()
}

func (t *wsTransport) ReadFrame(ctx context.Context) (string, error) {
	select {
	case frame, ok := <-t.frames:
		if !ok {
			t.mu.Lock()
			defer t.mu.Unlock()
			return "", t.readErr
		}
		return frame, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (t *wsTransport) WriteFrame(ctx context.Context, frame string) error {
	return t.conn.Write(ctx, websocket.MessageText, []byte(frame))
}

func (t *wsTransport) RemoteAddr() string {
	return t.remote
}

func (t *wsTransport) Close() error {
	t.closeOnce.Do(func() {
		t.closeErr = t.conn.Close(websocket.StatusNormalClosure, "closing")
		t.cancel()
	})
	return t.closeErr
}
