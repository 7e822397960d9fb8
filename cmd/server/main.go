package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/iconchat-server/internal/config"
	"github.com/vovakirdan/iconchat-server/internal/log"
)

var version = "dev"

// overrides collects CLI flags; non-zero values win over file and env.
type overrides struct {
	configPath       string
	logLevel         string
	addr             string
	adminAddr        string
	framing          string
	handshakeTimeout time.Duration
	outboundQueue    int
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var o overrides

	cmd := &cobra.Command{
		Use:           "iconchat-server",
		Short:         "TCP chat relay with display names and icons",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), o)
		},
	}

	cmd.PersistentFlags().StringVar(&o.configPath, "config", "", "config file path (default ./config.yaml)")
	cmd.PersistentFlags().StringVar(&o.logLevel, "log-level", "", "log level: debug, info, warn, error")
	addServeFlags(cmd, &o)

	cmd.AddCommand(serveCmd(&o), clientCmd(&o), versionCmd())
	return cmd
}

func addServeFlags(cmd *cobra.Command, o *overrides) {
	cmd.Flags().StringVar(&o.addr, "addr", "", "chat listen address")
	cmd.Flags().StringVar(&o.adminAddr, "admin-addr", "", "admin HTTP and WebSocket address (disabled when empty)")
	cmd.Flags().StringVar(&o.framing, "framing", "", "frame boundaries: line or raw")
	cmd.Flags().DurationVar(&o.handshakeTimeout, "handshake-timeout", 0, "wait for the optional icon frame")
	cmd.Flags().IntVar(&o.outboundQueue, "outbound-queue", 0, "per-connection outbound queue size (0 sends inline)")
}

func serveCmd(o *overrides) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *o)
		},
	}
	addServeFlags(cmd, o)
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func loadConfig(o overrides) (config.Config, error) {
	bootLogger := log.New(o.logLevel)

	cfg, path, err := config.Load(bootLogger, o.configPath)
	if err != nil {
		return cfg, err
	}
	cfg.UpdateFrom(config.Config{
		Addr:             o.addr,
		AdminAddr:        o.adminAddr,
		Framing:          o.framing,
		HandshakeTimeout: o.handshakeTimeout,
		OutboundQueue:    o.outboundQueue,
		LogLevel:         o.logLevel,
	})
	bootLogger.Debug().Str("path", path).Msg("config loaded")
	return cfg, nil
}
