package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/iconchat-server/internal/client"
	"github.com/vovakirdan/iconchat-server/internal/log"
	"github.com/vovakirdan/iconchat-server/internal/proto"
	"github.com/vovakirdan/iconchat-server/internal/transport/tcp"
)

func clientCmd(o *overrides) *cobra.Command {
	var (
		addr    string
		name    string
		icon    string
		framing string
	)

	cmd := &cobra.Command{
		Use:   "client",
		Short: "Connect to a chat server from the terminal",
		Long: `Connect to a chat server and chat over stdin/stdout.

Commands:
  /rename <name>   change your display name
  /icon <glyph>    change your icon
  q                send "q" and disconnect`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := log.NewWithWriter(os.Stderr, o.logLevel)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			conn, err := tcp.Dial(dialCtx, addr, framing, 4096)
			if err != nil {
				return fmt.Errorf("dial: %w", err)
			}

			opts := client.Options{Name: name, Icon: icon, Out: cmd.OutOrStdout()}
			if framing == proto.FramingRaw {
				opts.HandshakeGap = 100 * time.Millisecond
			}
			c := client.New(conn, opts, logger)

			fmt.Fprintf(cmd.OutOrStdout(), "[connected] %s as %s\n", addr, name)
			return c.Run(ctx, cmd.InOrStdin())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "localhost:50000", "server address")
	cmd.Flags().StringVar(&name, "name", "user1", "display name")
	cmd.Flags().StringVar(&icon, "icon", "", "icon glyph (server default when empty)")
	cmd.Flags().StringVar(&framing, "framing", proto.FramingLine, "frame boundaries: line or raw")
	return cmd
}
