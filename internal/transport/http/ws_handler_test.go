package http

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vovakirdan/iconchat-server/internal/config"
	"github.com/vovakirdan/iconchat-server/internal/core"
	"github.com/vovakirdan/iconchat-server/internal/log"
	"github.com/vovakirdan/iconchat-server/internal/metrics"
	"github.com/vovakirdan/iconchat-server/internal/proto"
	"github.com/vovakirdan/iconchat-server/internal/transport/tcp"
)

func startTestServer(t *testing.T) (*httptest.Server, *core.Hub) {
	t.Helper()

	reg := prometheus.NewRegistry()
	hub := core.NewHub(core.Options{
		HandshakeTimeout: 200 * time.Millisecond,
		Observer:         metrics.New(reg),
	}, log.Nop())

	cfg := config.Default()
	cfg.AdminAddr = ":0"
	server := NewServer(hub, reg, cfg, log.Nop())

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = hub.Shutdown(ctx)
		ts.Close()
	})

	return ts, hub
}

func dialWS(t *testing.T, ctx context.Context, ts *httptest.Server, frames ...string) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "done") })

	for _, f := range frames {
		if err := conn.Write(ctx, websocket.MessageText, []byte(f)); err != nil {
			t.Fatalf("write %q: %v", f, err)
		}
	}
	return conn
}

func readWSUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, want string) {
	t.Helper()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("waiting for %q: %v", want, err)
		}
		if string(data) == want {
			return
		}
	}
}

func waitForMembers(t *testing.T, hub *core.Hub, n int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.Registry().Len() == n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("registry size = %d, want %d", hub.Registry().Len(), n)
}

func TestHealthEndpoint(t *testing.T) {
	ts, _ := startTestServer(t)

	resp, err := ts.Client().Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestWebSocketHandshakeAndRelay(t *testing.T) {
	ts, hub := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice := dialWS(t, ctx, ts, "__USERNAME__:alice", "__ICON__:🐱")
	waitForMembers(t, hub, 1)
	bob := dialWS(t, ctx, ts, "__USERNAME__:bob", "__ICON__:🐶")

	readWSUntil(t, ctx, bob, "__ICON__:alice:🐱")
	readWSUntil(t, ctx, alice, "🐶 bobさんが参加しました。")

	if err := alice.Write(ctx, websocket.MessageText, []byte("hi there")); err != nil {
		t.Fatalf("write: %v", err)
	}
	readWSUntil(t, ctx, bob, "🐱 alice: hi there")

	_ = bob.Close(websocket.StatusNormalClosure, "bye")
	readWSUntil(t, ctx, alice, "🐶 bobさんが退出しました。")
	waitForMembers(t, hub, 1)
}

func TestClientsEndpointListsRegistry(t *testing.T) {
	ts, hub := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	dialWS(t, ctx, ts, "__USERNAME__:alice", "__ICON__:🐱")
	waitForMembers(t, hub, 1)

	resp, err := ts.Client().Get(ts.URL + "/clients")
	if err != nil {
		t.Fatalf("clients request failed: %v", err)
	}
	defer resp.Body.Close()

	var views []ClientView
	if err := json.NewDecoder(resp.Body).Decode(&views); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(views) != 1 || views[0].Name != "alice" || views[0].Icon != "🐱" || views[0].ID == "" {
		t.Fatalf("unexpected clients: %+v", views)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts, hub := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	dialWS(t, ctx, ts, "__USERNAME__:alice")
	waitForMembers(t, hub, 1)

	resp, err := ts.Client().Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(string(body), "iconchat_connections 1") {
		t.Fatalf("connections gauge missing from metrics output:\n%s", body)
	}
}

func TestWebSocketAndTCPPeersShareRegistry(t *testing.T) {
	ts, hub := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ws := dialWS(t, ctx, ts, "__USERNAME__:web", "__ICON__:🌐")
	waitForMembers(t, hub, 1)

	serverSide, clientSide := net.Pipe()
	go func() { _ = hub.Serve(ctx, tcp.NewConn(serverSide, proto.FramingLine, 4096)) }()
	sock := tcp.NewConn(clientSide, proto.FramingLine, 4096)
	t.Cleanup(func() { _ = sock.Close() })

	// net.Pipe is unbuffered, so drain server frames while writing
	go func() {
		for {
			if _, err := sock.ReadFrame(ctx); err != nil {
				return
			}
		}
	}()
	for _, frame := range []string{proto.UsernameFrame("term"), proto.IconFrame("💻"), "hello web"} {
		if err := sock.WriteFrame(ctx, frame); err != nil {
			t.Fatalf("tcp write %q: %v", frame, err)
		}
	}

	readWSUntil(t, ctx, ws, "💻 termさんが参加しました。")
	readWSUntil(t, ctx, ws, "💻 term: hello web")
}
