// Package metrics exposes prometheus counters for the client's frame
// traffic. A nil *Collector is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wschat"

// Drop reasons.
const (
	ReasonDecode   = "decode"
	ReasonInvalid  = "invalid_header"
	ReasonClosed   = "closed"
	ReasonHandler  = "handler_panic"
	ReasonOverflow = "send_queue_full"
)

// Collector holds the client's metrics.
type Collector struct {
	framesSent     *prometheus.CounterVec
	framesReceived *prometheus.CounterVec
	framesDropped  *prometheus.CounterVec
	encodeErrors   prometheus.Counter
	bytesSent      prometheus.Counter
	bytesReceived  prometheus.Counter
	connected      prometheus.Gauge
	gatherer       prometheus.Gatherer
}

// New registers the client metrics with reg. Passing a fresh
// prometheus.NewRegistry() keeps tests isolated.
func New(reg *prometheus.Registry) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		framesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "Frames handed to the transport, by message type.",
		}, []string{"msg_type"}),
		framesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Inbound frames dispatched, by message type.",
		}, []string{"msg_type"}),
		framesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Frames dropped, by reason.",
		}, []string{"reason"}),
		encodeErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "encode_errors_total",
			Help:      "Outbound frames rejected while encoding.",
		}),
		bytesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_sent_total",
			Help:      "Bytes handed to the transport.",
		}),
		bytesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_received_total",
			Help:      "Bytes received from the transport.",
		}),
		connected: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected",
			Help:      "1 while the session is open.",
		}),
		gatherer: reg,
	}
}

func (c *Collector) FrameSent(msgType string, n int) {
	if c == nil {
		return
	}
	c.framesSent.WithLabelValues(msgType).Inc()
	c.bytesSent.Add(float64(n))
}

func (c *Collector) FrameReceived(msgType string, n int) {
	if c == nil {
		return
	}
	c.framesReceived.WithLabelValues(msgType).Inc()
	c.bytesReceived.Add(float64(n))
}

func (c *Collector) FrameDropped(reason string) {
	if c == nil {
		return
	}
	c.framesDropped.WithLabelValues(reason).Inc()
}

func (c *Collector) EncodeError() {
	if c == nil {
		return
	}
	c.encodeErrors.Inc()
}

func (c *Collector) SetConnected(up bool) {
	if c == nil {
		return
	}
	if up {
		c.connected.Set(1)
	} else {
		c.connected.Set(0)
	}
}

// Handler serves the registry in the prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
