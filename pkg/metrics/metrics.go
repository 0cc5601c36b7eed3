// Package metrics exposes Prometheus instrumentation for both link
// drivers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PacketCount counts packets by link ("stream"/"ble"), direction,
	// and outcome.
	PacketCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "memori_transport_packets_total",
		Help: "Total packets processed by a link driver",
	}, []string{"link", "direction", "status"})

	// ErrorCount counts link-local errors (decode failures, oversize
	// frames, write failures) by link and error type.
	ErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "memori_transport_errors_total",
		Help: "Total link-local errors encountered by a link driver",
	}, []string{"link", "type"})

	// InflightRequests tracks the number of requests currently awaiting
	// a response, by link.
	InflightRequests = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "memori_transport_inflight_requests",
		Help: "Number of requests currently awaiting a response",
	}, []string{"link"})

	// ConnectionState reports 1 when a link is connected, 0 otherwise.
	ConnectionState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "memori_transport_connection_state",
		Help: "1 if the named link is currently connected, 0 otherwise",
	}, []string{"link"})
)

// Direction constants.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Status constants.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// IncPacket increments the packet counter.
func IncPacket(link, direction, status string) {
	PacketCount.WithLabelValues(link, direction, status).Inc()
}

// IncError increments the error counter.
func IncError(link, errType string) {
	ErrorCount.WithLabelValues(link, errType).Inc()
}

// SetInflight sets the current inflight-request gauge for a link.
func SetInflight(link string, n int) {
	InflightRequests.WithLabelValues(link).Set(float64(n))
}

// SetConnected sets the connection-state gauge for a link.
func SetConnected(link string, connected bool) {
	v := 0.0
	if connected {
		v = 1.0
	}
	ConnectionState.WithLabelValues(link).Set(v)
}
