// Package client is a terminal chat client for the relay protocol: it sends
// the handshake, turns slash commands into control frames, keeps the peer
// icon map, and prints everything else it receives.
package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/iconchat-server/internal/core"
	"github.com/vovakirdan/iconchat-server/internal/proto"
)

// Options configures a Client.
type Options struct {
	Name string
	Icon string
	// HandshakeGap separates the username and icon frames; raw framing needs it
	// so the two writes are not read as one frame.
	HandshakeGap time.Duration
	Out          io.Writer
	Now          func() time.Time
}

// Client is one chat session over a transport.
type Client struct {
	t    core.Transport
	opts Options
	log  *zerolog.Logger

	mu    sync.Mutex
	name  string
	icons map[string]string
	out   io.Writer
}

// New wraps an established transport.
func New(t core.Transport, opts Options, logger *zerolog.Logger) *Client {
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Client{
		t:     t,
		opts:  opts,
		log:   logger,
		name:  opts.Name,
		icons: make(map[string]string),
		out:   opts.Out,
	}
}

// Handshake announces the username and, if set, the icon.
func (c *Client) Handshake(ctx context.Context) error {
	if err := c.t.WriteFrame(ctx, proto.UsernameFrame(c.opts.Name)); err != nil {
		return fmt.Errorf("send username: %w", err)
	}
	if c.opts.Icon == "" {
		return nil
	}
	if c.opts.HandshakeGap > 0 {
		select {
		case <-time.After(c.opts.HandshakeGap):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := c.t.WriteFrame(ctx, proto.IconFrame(c.opts.Icon)); err != nil {
		return fmt.Errorf("send icon: %w", err)
	}
	return nil
}

// Submit handles one line of user input. It reports quit=true after relaying
// the quit sentinel, at which point the caller should close the client.
func (c *Client) Submit(ctx context.Context, line string) (quit bool, err error) {
	text := strings.TrimSpace(line)
	if text == "" {
		return false, nil
	}

	switch {
	case strings.HasPrefix(text, "/rename "):
		return false, c.rename(ctx, strings.TrimSpace(strings.TrimPrefix(text, "/rename ")))
	case strings.HasPrefix(text, "/icon "):
		icon := strings.TrimSpace(strings.TrimPrefix(text, "/icon "))
		if icon == "" {
			return false, nil
		}
		return false, c.t.WriteFrame(ctx, proto.IconFrame(icon))
	}

	if err := c.t.WriteFrame(ctx, text); err != nil {
		return false, fmt.Errorf("send: %w", err)
	}
	c.mu.Lock()
	name := c.name
	c.mu.Unlock()
	c.print(name + ": " + text)

	return text == proto.QuitSentinel, nil
}

func (c *Client) rename(ctx context.Context, name string) error {
	c.mu.Lock()
	old := c.name
	c.mu.Unlock()
	if name == "" || name == old {
		return nil
	}
	if err := c.t.WriteFrame(ctx, proto.RenameFrame(name)); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	c.mu.Lock()
	c.name = name
	c.mu.Unlock()
	c.print(fmt.Sprintf("[rename] %s → %s", old, name))
	return nil
}

// Receive prints incoming frames until the transport fails.
// A closed connection returns nil.
func (c *Client) Receive(ctx context.Context) error {
	for {
		frame, err := c.t.ReadFrame(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) || errors.Is(err, context.Canceled) {
				c.print("[disconnected] connection to server closed")
				return nil
			}
			c.print(fmt.Sprintf("[receive error] %v", err))
			return err
		}
		c.handle(frame)
	}
}

func (c *Client) handle(frame string) {
	out, err := proto.ParseOutbound(frame)
	if err != nil {
		c.log.Debug().Err(err).Str("frame", frame).Msg("skipping frame")
		return
	}
	if out.Kind == proto.OutboundIcon {
		c.mu.Lock()
		c.icons[out.Name] = out.Icon
		c.mu.Unlock()
		return
	}
	c.print(out.Text)
}

// Icons returns a copy of the known peer icons by display name.
func (c *Client) Icons() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()

	icons := make(map[string]string, len(c.icons))
	for k, v := range c.icons {
		icons[k] = v
	}
	return icons
}

// Close closes the transport.
func (c *Client) Close() error {
	return c.t.Close()
}

func (c *Client) print(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "%s %s\n", c.opts.Now().Format("15:04"), line)
}

// Run performs the handshake and pumps lines from in until EOF, the quit
// sentinel, or a dead connection.
func (c *Client) Run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer c.Close()

	if err := c.Handshake(ctx); err != nil {
		return err
	}

	recvErr := make(chan error, 1)
	go func() {
		defer cancel()
		recvErr <- c.Receive(ctx)
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			_ = c.Close()
			return <-recvErr
		case line, ok := <-lines:
			if !ok {
				_ = c.Close()
				return <-recvErr
			}
			quit, err := c.Submit(ctx, line)
			if err != nil {
				c.print("[send error] " + err.Error())
				continue
			}
			if quit {
				_ = c.Close()
				return <-recvErr
			}
		}
	}
}
