// Package metrics exposes hub counters as Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vovakirdan/iconchat-server/internal/core"
)

const namespace = "iconchat"

// Collector implements core.Observer on top of Prometheus metrics.
type Collector struct {
	connections prometheus.Gauge
	received    *prometheus.CounterVec
	sent        *prometheus.CounterVec
	failures    *prometheus.CounterVec
	dropped     prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Number of open client connections.",
		}),
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Frames received from clients, by command kind.",
		}, []string{"kind"}),
		sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "Frames delivered to clients, by frame kind.",
		}, []string{"kind"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_failures_total",
			Help:      "Sends to a single recipient that failed, by frame kind.",
		}, []string{"kind"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_frames_total",
			Help:      "Frames dropped because a recipient's outbound queue was full.",
		}),
	}

	if reg != nil {
		reg.MustRegister(c.connections, c.received, c.sent, c.failures, c.dropped)
	}
	return c
}

var _ core.Observer = (*Collector)(nil)

func (c *Collector) ConnectionOpened() { c.connections.Inc() }

func (c *Collector) ConnectionClosed() { c.connections.Dec() }

func (c *Collector) FrameReceived(kind string) { c.received.WithLabelValues(kind).Inc() }

func (c *Collector) FrameSent(kind core.FrameKind) { c.sent.WithLabelValues(string(kind)).Inc() }

func (c *Collector) SendFailed(kind core.FrameKind) { c.failures.WithLabelValues(string(kind)).Inc() }

func (c *Collector) FrameDropped() { c.dropped.Inc() }
