// Package proto holds the textual command grammar shared by the chat server
// and its clients, and the codecs that cut a byte stream into frames.
package proto

import (
	"errors"
	"strings"
)

// Command prefixes carried on otherwise opaque UTF-8 frames.
const (
	PrefixUsername = "__USERNAME__:"
	PrefixIcon     = "__ICON__:"
	PrefixRename   = "__RENAME__:"

	// QuitSentinel is relayed like any chat text; clients close after sending it.
	QuitSentinel = "q"

	joinSuffix  = "さんが参加しました。"
	leaveSuffix = "さんが退出しました。"
)

var (
	// ErrMalformedFrame is returned for control frames that do not follow the grammar.
	ErrMalformedFrame = errors.New("malformed frame")
	// ErrFrameTooLarge is returned by decoders when a frame exceeds the configured size.
	ErrFrameTooLarge = errors.New("frame too large")
)

// InboundKind classifies a client→server frame.
type InboundKind int

const (
	// InboundChat is free text to relay.
	InboundChat InboundKind = iota
	// InboundSetUsername sets the initial display name during the handshake.
	InboundSetUsername
	// InboundSetIcon sets or changes the sender's icon.
	InboundSetIcon
	// InboundRename relabels the connection for future relays.
	InboundRename
	// InboundUnknown is a control prefix with an unusable payload.
	InboundUnknown
)

func (k InboundKind) String() string {
	switch k {
	case InboundChat:
		return "chat"
	case InboundSetUsername:
		return "username"
	case InboundSetIcon:
		return "icon"
	case InboundRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Inbound is a parsed client frame. Value is the name, icon, or chat text.
type Inbound struct {
	Kind  InboundKind
	Value string
}

// ParseInbound classifies a frame sent by a client.
// Control payloads are trimmed; an empty payload yields InboundUnknown.
func ParseInbound(frame string) Inbound {
	for _, c := range []struct {
		prefix string
		kind   InboundKind
	}{
		{PrefixUsername, InboundSetUsername},
		{PrefixIcon, InboundSetIcon},
		{PrefixRename, InboundRename},
	} {
		if rest, ok := strings.CutPrefix(frame, c.prefix); ok {
			value := strings.TrimSpace(rest)
			if value == "" {
				return Inbound{Kind: InboundUnknown, Value: frame}
			}
			return Inbound{Kind: c.kind, Value: value}
		}
	}
	return Inbound{Kind: InboundChat, Value: frame}
}

// UsernameFrame builds the handshake frame announcing name.
func UsernameFrame(name string) string { return PrefixUsername + name }

// IconFrame builds the client frame setting the sender's icon.
func IconFrame(icon string) string { return PrefixIcon + icon }

// RenameFrame builds the client frame renaming the sender.
func RenameFrame(name string) string { return PrefixRename + name }

// RelayLine formats a relayed chat line.
func RelayLine(icon, name, text string) string {
	return icon + " " + name + ": " + text
}

// JoinNotice formats the notice sent to peers when name joins.
func JoinNotice(icon, name string) string {
	return icon + " " + name + joinSuffix
}

// LeaveNotice formats the notice sent to peers when name leaves.
func LeaveNotice(icon, name string) string {
	return icon + " " + name + leaveSuffix
}

// IconAnnouncement formats the server frame telling clients that name uses icon.
func IconAnnouncement(name, icon string) string {
	return PrefixIcon + name + ":" + icon
}

// OutboundKind classifies a server→client frame.
type OutboundKind int

const (
	// OutboundText is anything meant for display: relays and notices.
	OutboundText OutboundKind = iota
	// OutboundIcon announces a peer's icon.
	OutboundIcon
)

// Outbound is a parsed server frame as seen by a client.
type Outbound struct {
	Kind OutboundKind
	Name string
	Icon string
	Text string
}

// ParseOutbound classifies a frame received from the server.
// The name of an icon announcement ends at the first separator.
func ParseOutbound(frame string) (Outbound, error) {
	rest, ok := strings.CutPrefix(frame, PrefixIcon)
	if !ok {
		return Outbound{Kind: OutboundText, Text: frame}, nil
	}
	name, icon, found := strings.Cut(rest, ":")
	if !found || name == "" || icon == "" {
		return Outbound{}, ErrMalformedFrame
	}
	return Outbound{Kind: OutboundIcon, Name: name, Icon: icon}, nil
}
