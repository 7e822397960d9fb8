package core

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// Broadcaster fans frames out over a registry snapshot. It never mutates the
// registry: a recipient whose send fails is cleaned up by its own session.
type Broadcaster struct {
	registry *Registry
	observer Observer
	log      *zerolog.Logger
}

// NewBroadcaster builds a broadcaster over registry.
func NewBroadcaster(registry *Registry, observer Observer, logger *zerolog.Logger) *Broadcaster {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Broadcaster{registry: registry, observer: observer, log: logger}
}

// Broadcast sends frame to every member except exclude (empty excludes nobody)
// and returns how many sends succeeded.
func (b *Broadcaster) Broadcast(ctx context.Context, kind FrameKind, frame, exclude string) int {
	delivered := 0
	for _, m := range b.registry.Snapshot() {
		if exclude != "" && m.ID == exclude {
			continue
		}
		if b.SendTo(ctx, m, kind, frame) == nil {
			delivered++
		}
	}
	return delivered
}

// SendTo delivers one frame to one member, recording the outcome.
func (b *Broadcaster) SendTo(ctx context.Context, m Member, kind FrameKind, frame string) error {
	err := m.Send(ctx, frame)
	b.report(m.ID, kind, err)
	return err
}

func (b *Broadcaster) report(id string, kind FrameKind, err error) {
	switch {
	case err == nil:
		b.observer.FrameSent(kind)
	case errors.Is(err, ErrQueueFull):
		b.observer.FrameDropped()
		b.log.Warn().Str("conn_id", id).Str("kind", string(kind)).Msg("outbound queue full, frame dropped")
	default:
		b.observer.SendFailed(kind)
		b.log.Warn().Err(err).Str("conn_id", id).Str("kind", string(kind)).Msg("send failed")
	}
}
