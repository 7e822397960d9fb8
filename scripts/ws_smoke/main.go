package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/coder/websocket"

	"github.com/vovakirdan/iconchat-server/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

// run joins the gateway twice and checks that a line sent by one arrives at the other.
func run() error {
	addr := flag.String("addr", "ws://localhost:8081/ws", "WebSocket gateway address")
	user := flag.String("user", "tester", "username announced by the sender")
	icon := flag.String("icon", "🧪", "icon announced by the sender")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	watcher, err := dial(ctx, *addr, *user+"-watcher", "")
	if err != nil {
		return err
	}
	defer watcher.Close(websocket.StatusNormalClosure, "bye")

	sender, err := dial(ctx, *addr, *user, *icon)
	if err != nil {
		return err
	}
	defer sender.Close(websocket.StatusNormalClosure, "bye")

	// the first frame the sender sees, catch-up or the watcher's join, means both are registered
	if err := waitFor(ctx, sender, func(proto.Outbound) bool { return true }); err != nil {
		return fmt.Errorf("wait for peer: %w", err)
	}
	if err := sender.Write(ctx, websocket.MessageText, []byte(*text)); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	want := proto.RelayLine(*icon, *user, *text)
	if err := waitFor(ctx, watcher, func(out proto.Outbound) bool { return out.Text == want }); err != nil {
		return fmt.Errorf("relay: %w", err)
	}
	fmt.Printf("relay ok: %q\n", want)
	return nil
}

func dial(ctx context.Context, addr, name, icon string) (*websocket.Conn, error) {
	conn, _, err := websocket.Dial(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	frames := []string{proto.UsernameFrame(name)}
	if icon != "" {
		frames = append(frames, proto.IconFrame(icon))
	}
	for _, f := range frames {
		if err := conn.Write(ctx, websocket.MessageText, []byte(f)); err != nil {
			conn.Close(websocket.StatusInternalError, "handshake failed")
			return nil, fmt.Errorf("handshake: %w", err)
		}
	}
	return conn, nil
}

func waitFor(ctx context.Context, conn *websocket.Conn, match func(proto.Outbound) bool) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		out, err := proto.ParseOutbound(string(data))
		if err != nil {
			fmt.Printf("skipping malformed frame %q\n", data)
			continue
		}
		fmt.Printf("received: %q\n", data)
		if match(out) {
			return nil
		}
	}
}
