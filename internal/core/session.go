package core

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/iconchat-server/internal/proto"
)

// session drives one connection through Handshaking → Active → Closed.
type session struct {
	hub  *Hub
	conn *Connection
	log  zerolog.Logger

	// frames read during the handshake that belong to the active loop
	deferred []string
}

func newSession(h *Hub, conn *Connection) *session {
	return &session{
		hub:  h,
		conn: conn,
		log:  h.log.With().Str("conn_id", conn.ID).Str("remote", conn.Addr).Logger(),
	}
}

func (s *session) run(ctx context.Context) error {
	defer func() {
		if err := s.conn.close(); err != nil && !isClosedErr(err) {
			s.log.Debug().Err(err).Msg("close transport")
		}
	}()

	name, icon, err := s.handshake(ctx)
	if err != nil {
		if isClosedErr(err) {
			s.log.Debug().Msg("peer left before handshake")
			return nil
		}
		s.log.Warn().Err(err).Msg("handshake failed")
		return err
	}

	peers, err := s.register(ctx, name, icon)
	if err != nil {
		return err
	}
	defer s.leave(ctx)

	s.log.Info().Str("name", name).Str("icon", icon).Int("peers", len(peers)).Msg("client joined")
	s.hub.broadcaster.Broadcast(ctx, FrameJoin, proto.JoinNotice(icon, name), s.conn.ID)

	return s.loop(ctx)
}

// register makes the connection visible and sends it one icon announcement
// per existing peer before any broadcast can reach it.
func (s *session) register(ctx context.Context, name, icon string) ([]Member, error) {
	var peers []Member
	err := s.conn.exclusive(func(send func(context.Context, string) error) error {
		var err error
		peers, err = s.hub.registry.Register(s.conn, name, icon)
		if err != nil {
			return err
		}
		for _, p := range peers {
			err := send(ctx, proto.IconAnnouncement(p.Name, p.Icon))
			s.hub.broadcaster.report(s.conn.ID, FrameIcon, err)
		}
		return nil
	})
	return peers, err
}

// handshake reads the username frame and then waits briefly for an icon frame.
// Frames that turn out to be something else are kept for the active loop.
func (s *session) handshake(ctx context.Context) (name, icon string, err error) {
	name = s.conn.Addr
	icon = s.hub.opts.DefaultIcon

	first, err := s.conn.transport.ReadFrame(ctx)
	switch {
	case err == nil:
		if in := proto.ParseInbound(first); in.Kind == proto.InboundSetUsername {
			name = in.Value
		} else {
			s.keep(in, first)
		}
	case isProtocolErr(err):
		s.log.Debug().Err(err).Msg("unreadable first frame, using remote address as name")
	default:
		return "", "", err
	}

	if s.hub.opts.HandshakeTimeout <= 0 {
		return name, icon, nil
	}

	hctx, cancel := context.WithTimeout(ctx, s.hub.opts.HandshakeTimeout)
	defer cancel()

	second, err := s.conn.transport.ReadFrame(hctx)
	switch {
	case err == nil:
		if in := proto.ParseInbound(second); in.Kind == proto.InboundSetIcon {
			icon = in.Value
		} else {
			s.keep(in, second)
		}
	case isTimeout(err):
		s.log.Debug().Msg("no icon during handshake, using default")
	case isProtocolErr(err):
		s.log.Debug().Err(err).Msg("unreadable icon frame, using default")
	default:
		return "", "", err
	}
	return name, icon, nil
}

func (s *session) keep(in proto.Inbound, frame string) {
	if in.Kind == proto.InboundUnknown {
		s.log.Debug().Str("frame", frame).Msg("ignoring malformed frame")
		return
	}
	s.deferred = append(s.deferred, frame)
}

func (s *session) loop(ctx context.Context) error {
	for _, frame := range s.deferred {
		s.dispatch(ctx, frame)
	}
	s.deferred = nil

	for {
		frame, err := s.conn.transport.ReadFrame(ctx)
		if err != nil {
			if isClosedErr(err) {
				return nil
			}
			if isProtocolErr(err) {
				s.log.Debug().Err(err).Msg("skipping frame")
				continue
			}
			s.log.Warn().Err(err).Msg("read failed")
			return err
		}
		s.dispatch(ctx, frame)
	}
}

func (s *session) dispatch(ctx context.Context, frame string) {
	in := proto.ParseInbound(frame)
	s.hub.observer.FrameReceived(in.Kind.String())

	switch in.Kind {
	case proto.InboundRename:
		if err := s.hub.registry.SetName(s.conn.ID, in.Value); err != nil {
			s.log.Warn().Err(err).Msg("rename")
			return
		}
		s.log.Info().Str("name", in.Value).Msg("client renamed")
	case proto.InboundSetIcon:
		m, err := s.hub.registry.SetIcon(s.conn.ID, in.Value)
		if err != nil {
			s.log.Warn().Err(err).Msg("set icon")
			return
		}
		s.hub.broadcaster.Broadcast(ctx, FrameIcon, proto.IconAnnouncement(m.Name, m.Icon), "")
	case proto.InboundChat:
		if strings.TrimSpace(in.Value) == "" {
			return
		}
		m, ok := s.hub.registry.Lookup(s.conn.ID)
		if !ok {
			return
		}
		s.hub.broadcaster.Broadcast(ctx, FrameRelay, proto.RelayLine(m.Icon, m.Name, in.Value), s.conn.ID)
	case proto.InboundSetUsername:
		s.log.Debug().Msg("ignoring username frame outside handshake")
	default:
		s.log.Debug().Str("frame", frame).Msg("ignoring malformed frame")
	}
}

// leave removes the connection and tells everyone else, once.
func (s *session) leave(ctx context.Context) {
	m, ok := s.hub.registry.Remove(s.conn.ID)
	if !ok {
		return
	}
	s.hub.broadcaster.Broadcast(ctx, FrameLeave, proto.LeaveNotice(m.Icon, m.Name), s.conn.ID)
	s.log.Info().Str("name", m.Name).Msg("client left")
}
