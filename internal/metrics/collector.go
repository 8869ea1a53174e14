// Package steeringmetrics exposes Prometheus instrumentation for the
// steering engine: active client entries per state, TLVs sent and received
// per type, frame parse-drop reasons, blacklist actuator calls, and FSM
// state transitions.
package steeringmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// -------------------------------------------------------------------------
// Prometheus Metric Constants
// -------------------------------------------------------------------------

const (
	namespace = "netsteer"
	subsystem = "steering"
)

// Label names for steering metrics.
const (
	labelBSSID     = "bssid"
	labelState     = "state"
	labelTLVType   = "tlv_type"
	labelReason    = "reason"
	labelFromState = "from_state"
	labelToState   = "to_state"
)

// -------------------------------------------------------------------------
// Collector — Prometheus Steering Metrics
// -------------------------------------------------------------------------

// Collector holds all steering Prometheus metrics.
//
//   - ClientEntries tracks the number of client registry entries currently
//     in each FSM state, per local BSSID.
//   - TLVsSent/TLVsReceived count SCORE, CLOSE_CLIENT, and CLOSED_CLIENT
//     TLVs flooded or ingested.
//   - FramesDropped counts frames rejected by the codec, labeled by
//     rejection reason (frame_too_short, bad_magic, unsupported_version,
//     tlv_truncated, other).
//   - StateTransitions counts FSM transitions labeled by (from_state,
//     to_state) for alerting on steering flaps.
//   - BlacklistOps counts actuator blacklist add/remove calls, issued only
//     in Force mode.
type Collector struct {
	// ClientEntries tracks the number of client entries currently in each
	// FSM state for a given local BSSID.
	ClientEntries *prometheus.GaugeVec

	// TLVsSent counts TLVs transmitted in periodic or event-driven floods.
	TLVsSent *prometheus.CounterVec

	// TLVsReceived counts TLVs successfully decoded from peer frames.
	TLVsReceived *prometheus.CounterVec

	// FramesDropped counts frames rejected by the wire codec, per reason.
	FramesDropped *prometheus.CounterVec

	// StateTransitions counts FSM state transitions labeled by old/new state.
	StateTransitions *prometheus.CounterVec

	// BlacklistOps counts blacklist_add/blacklist_remove actuator calls.
	BlacklistOps *prometheus.CounterVec
}

// NewCollector creates a Collector with all steering metrics registered
// against the provided prometheus.Registerer. If reg is nil,
// prometheus.DefaultRegisterer is used.
//
// All metrics carry the "netsteer_steering_" prefix (namespace_subsystem)
// to avoid collisions with other exporters sharing the same process.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.ClientEntries,
		c.TLVsSent,
		c.TLVsReceived,
		c.FramesDropped,
		c.StateTransitions,
		c.BlacklistOps,
	)

	return c
}

// newMetrics creates all Prometheus metric vectors without registering them.
func newMetrics() *Collector {
	entryLabels := []string{labelBSSID, labelState}
	tlvLabels := []string{labelBSSID, labelTLVType}
	dropLabels := []string{labelBSSID, labelReason}
	transitionLabels := []string{labelBSSID, labelFromState, labelToState}
	blacklistLabels := []string{labelBSSID, "op"}

	return &Collector{
		ClientEntries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "client_entries",
			Help:      "Number of client registry entries currently in each state.",
		}, entryLabels),

		TLVsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tlvs_sent_total",
			Help:      "Total TLVs transmitted, by type.",
		}, tlvLabels),

		TLVsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tlvs_received_total",
			Help:      "Total TLVs decoded from peer frames, by type.",
		}, tlvLabels),

		FramesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "frames_dropped_total",
			Help:      "Total frames rejected by the wire codec, by reason.",
		}, dropLabels),

		StateTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "state_transitions_total",
			Help:      "Total client FSM state transitions.",
		}, transitionLabels),

		BlacklistOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "blacklist_ops_total",
			Help:      "Total blacklist actuator calls (add or remove), Force mode only.",
		}, blacklistLabels),
	}
}

// -------------------------------------------------------------------------
// Client Entry Gauge
// -------------------------------------------------------------------------

// SetClientEntries sets the current count of client entries in the given
// state for a local BSSID. Called for every state at the end of each GC
// sweep.
func (c *Collector) SetClientEntries(bssid, state string, count float64) {
	c.ClientEntries.WithLabelValues(bssid, state).Set(count)
}

// -------------------------------------------------------------------------
// TLV Counters
// -------------------------------------------------------------------------

// IncTLVsSent increments the sent-TLV counter for the given local BSSID and
// TLV type ("score", "close_client", or "closed_client").
func (c *Collector) IncTLVsSent(bssid, tlvType string) {
	c.TLVsSent.WithLabelValues(bssid, tlvType).Inc()
}

// IncTLVsReceived increments the received-TLV counter for the given local
// BSSID and TLV type.
func (c *Collector) IncTLVsReceived(bssid, tlvType string) {
	c.TLVsReceived.WithLabelValues(bssid, tlvType).Inc()
}

// -------------------------------------------------------------------------
// Frame Drops
// -------------------------------------------------------------------------

// IncFramesDropped increments the dropped-frame counter for the given local
// BSSID and rejection reason (e.g. "bad_magic", "unsupported_version",
// "frame_too_short", "tlv_truncated").
func (c *Collector) IncFramesDropped(bssid, reason string) {
	c.FramesDropped.WithLabelValues(bssid, reason).Inc()
}

// -------------------------------------------------------------------------
// State Transitions
// -------------------------------------------------------------------------

// RecordStateTransition increments the state transition counter with the
// old and new state labels. Used for alerting on steering flaps (e.g.
// repeated Rejecting->Rejected->Associating cycles for one client).
func (c *Collector) RecordStateTransition(bssid, from, to string) {
	c.StateTransitions.WithLabelValues(bssid, from, to).Inc()
}

// -------------------------------------------------------------------------
// Blacklist Actuator
// -------------------------------------------------------------------------

// IncBlacklistOps increments the blacklist operation counter for the given
// local BSSID and op ("add" or "remove"). Only invoked in Force mode.
func (c *Collector) IncBlacklistOps(bssid, op string) {
	c.BlacklistOps.WithLabelValues(bssid, op).Inc()
}
