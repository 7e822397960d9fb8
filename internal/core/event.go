package core

// FrameKind labels a server→client frame for logs and metrics.
type FrameKind string

const (
	// FrameRelay is a chat line relayed from another connection.
	FrameRelay FrameKind = "relay"
	// FrameJoin announces a connection that finished its handshake.
	FrameJoin FrameKind = "join"
	// FrameLeave announces a connection that went away.
	FrameLeave FrameKind = "leave"
	// FrameIcon announces a connection's icon, on change or as late-joiner catch-up.
	FrameIcon FrameKind = "icon"
)

// Observer receives counters from the hub. Implementations must be safe for concurrent use.
type Observer interface {
	ConnectionOpened()
	ConnectionClosed()
	FrameReceived(kind string)
	FrameSent(kind FrameKind)
	SendFailed(kind FrameKind)
	FrameDropped()
}

type nopObserver struct{}

func (nopObserver) ConnectionOpened() {}
func (nopObserver) ConnectionClosed() {}
func (nopObserver) FrameReceived(string) {}
func (nopObserver) FrameSent(FrameKind) {}
func (nopObserver) SendFailed(FrameKind) {}
func (nopObserver) FrameDropped() {}
