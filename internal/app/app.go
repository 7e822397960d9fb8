package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	stdhttp "net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/iconchat-server/internal/config"
	"github.com/vovakirdan/iconchat-server/internal/core"
	"github.com/vovakirdan/iconchat-server/internal/metrics"
	transporthttp "github.com/vovakirdan/iconchat-server/internal/transport/http"
	"github.com/vovakirdan/iconchat-server/internal/transport/tcp"
	"github.com/vovakirdan/iconchat-server/internal/utils"
)

// App wires together core and transport layers.
type App struct {
	listener        *tcp.Listener
	admin           *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg config.Config, logger *zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	hub := core.NewHub(core.Options{
		DefaultIcon:      cfg.DefaultIcon,
		HandshakeTimeout: cfg.HandshakeTimeout,
		WriteTimeout:     cfg.WriteTimeout,
		OutboundQueue:    cfg.OutboundQueue,
		Observer:         metrics.New(reg),
		NewID:            utils.NewID,
	}, logger)

	a := &App{
		listener:        tcp.NewListener(cfg.Addr, cfg.Framing, cfg.BufferSize, hub, logger),
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		log:             logger,
	}
	if cfg.AdminAddr != "" {
		a.admin = transporthttp.NewServer(hub, reg, cfg, logger)
	}
	return a, nil
}

// Addr returns the bound chat address once Run has started listening.
func (a *App) Addr() net.Addr {
	return a.listener.Addr()
}

// Run binds the chat listener (and admin server when configured) and blocks
// until context cancellation or a fatal listener error.
func (a *App) Run(ctx context.Context) error {
	if err := a.listener.Listen(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	serverErr := make(chan error, 2)
	go func() {
		serverErr <- a.listener.Serve(ctx)
	}()

	if a.admin != nil {
		go func() {
			a.log.Info().Str("addr", a.admin.Addr).Msg("starting admin http server")
			if err := a.admin.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
				serverErr <- fmt.Errorf("admin server: %w", err)
				return
			}
			serverErr <- nil
		}()
	}

	var runErr error
	select {
	case runErr = <-serverErr:
		if runErr == nil {
			// listener closed without cancellation; treat as shutdown
			a.log.Info().Msg("chat listener stopped")
		}
	case <-ctx.Done():
	}
	cancel()

	return errors.Join(runErr, a.shutdown())
}

func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	a.log.Info().Msg("shutting down")
	_ = a.listener.Close()

	var errs []error
	if a.admin != nil {
		if err := a.admin.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("admin shutdown: %w", err))
		}
	}
	if err := a.hub.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("hub shutdown: %w", err))
	}
	return errors.Join(errs...)
}
