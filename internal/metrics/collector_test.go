package steeringmetrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	steeringmetrics "github.com/cococorp/netsteer/internal/metrics"
)

func TestNewCollector(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := steeringmetrics.NewCollector(reg)

	if c.ClientEntries == nil {
		t.Error("ClientEntries is nil")
	}
	if c.TLVsSent == nil {
		t.Error("TLVsSent is nil")
	}
	if c.TLVsReceived == nil {
		t.Error("TLVsReceived is nil")
	}
	if c.FramesDropped == nil {
		t.Error("FramesDropped is nil")
	}
	if c.StateTransitions == nil {
		t.Error("StateTransitions is nil")
	}
	if c.BlacklistOps == nil {
		t.Error("BlacklistOps is nil")
	}

	// Verify all metrics are registered by gathering them.
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}

	// No data yet, so families may be empty -- but registration must not panic.
	_ = families
}

func TestClientEntriesGauge(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := steeringmetrics.NewCollector(reg)

	c.SetClientEntries("aa:bb:cc:dd:ee:01", "associated", 3)

	val := gaugeValue(t, c.ClientEntries, "aa:bb:cc:dd:ee:01", "associated")
	if val != 3 {
		t.Errorf("ClientEntries = %v, want 3", val)
	}

	c.SetClientEntries("aa:bb:cc:dd:ee:01", "associated", 2)

	val = gaugeValue(t, c.ClientEntries, "aa:bb:cc:dd:ee:01", "associated")
	if val != 2 {
		t.Errorf("ClientEntries after re-set = %v, want 2", val)
	}
}

func TestTLVCounters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := steeringmetrics.NewCollector(reg)

	bssid := "aa:bb:cc:dd:ee:01"

	c.IncTLVsSent(bssid, "score")
	c.IncTLVsSent(bssid, "score")
	c.IncTLVsSent(bssid, "close_client")

	val := counterValue(t, c.TLVsSent, bssid, "score")
	if val != 2 {
		t.Errorf("TLVsSent(score) = %v, want 2", val)
	}
	val = counterValue(t, c.TLVsSent, bssid, "close_client")
	if val != 1 {
		t.Errorf("TLVsSent(close_client) = %v, want 1", val)
	}

	c.IncTLVsReceived(bssid, "closed_client")
	val = counterValue(t, c.TLVsReceived, bssid, "closed_client")
	if val != 1 {
		t.Errorf("TLVsReceived(closed_client) = %v, want 1", val)
	}
}

func TestFramesDropped(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := steeringmetrics.NewCollector(reg)

	bssid := "aa:bb:cc:dd:ee:01"

	c.IncFramesDropped(bssid, "bad_magic")
	c.IncFramesDropped(bssid, "bad_magic")
	c.IncFramesDropped(bssid, "tlv_truncated")

	val := counterValue(t, c.FramesDropped, bssid, "bad_magic")
	if val != 2 {
		t.Errorf("FramesDropped(bad_magic) = %v, want 2", val)
	}
	val = counterValue(t, c.FramesDropped, bssid, "tlv_truncated")
	if val != 1 {
		t.Errorf("FramesDropped(tlv_truncated) = %v, want 1", val)
	}
}

func TestStateTransition(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := steeringmetrics.NewCollector(reg)

	bssid := "aa:bb:cc:dd:ee:01"

	c.RecordStateTransition(bssid, "Associated", "Rejecting")

	val := counterValue(t, c.StateTransitions, bssid, "Associated", "Rejecting")
	if val != 1 {
		t.Errorf("StateTransitions(Associated->Rejecting) = %v, want 1", val)
	}

	c.RecordStateTransition(bssid, "Rejecting", "Rejected")
	val = counterValue(t, c.StateTransitions, bssid, "Rejecting", "Rejected")
	if val != 1 {
		t.Errorf("StateTransitions(Rejecting->Rejected) = %v, want 1", val)
	}

	c.RecordStateTransition(bssid, "Associated", "Rejecting")
	val = counterValue(t, c.StateTransitions, bssid, "Associated", "Rejecting")
	if val != 2 {
		t.Errorf("StateTransitions(Associated->Rejecting) = %v, want 2", val)
	}
}

func TestBlacklistOps(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := steeringmetrics.NewCollector(reg)

	bssid := "aa:bb:cc:dd:ee:01"

	c.IncBlacklistOps(bssid, "add")
	c.IncBlacklistOps(bssid, "add")
	c.IncBlacklistOps(bssid, "remove")

	val := counterValue(t, c.BlacklistOps, bssid, "add")
	if val != 2 {
		t.Errorf("BlacklistOps(add) = %v, want 2", val)
	}
	val = counterValue(t, c.BlacklistOps, bssid, "remove")
	if val != 1 {
		t.Errorf("BlacklistOps(remove) = %v, want 1", val)
	}
}

// -------------------------------------------------------------------------
// Helpers
// -------------------------------------------------------------------------

// gaugeValue reads the current value of a GaugeVec with the given labels.
func gaugeValue(t *testing.T, vec *prometheus.GaugeVec, labels ...string) float64 {
	t.Helper()

	gauge, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues(%v): %v", labels, err)
	}

	m := &dto.Metric{}
	if err := gauge.Write(m); err != nil {
		t.Fatalf("Write metric: %v", err)
	}

	return m.GetGauge().GetValue()
}

// counterValue reads the current value of a CounterVec with the given labels.
func counterValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()

	counter, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues(%v): %v", labels, err)
	}

	m := &dto.Metric{}
	if err := counter.Write(m); err != nil {
		t.Fatalf("Write metric: %v", err)
	}

	return m.GetCounter().GetValue()
}
