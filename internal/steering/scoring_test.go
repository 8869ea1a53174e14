package steering_test

import (
	"testing"

	"github.com/cococorp/netsteer/internal/steering"
)

func TestComputeScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rssi int32
		want uint16
	}{
		{"typical negative rssi", -40, 40},
		{"zero rssi", 0, 0},
		{"positive rssi treated as magnitude", 30, 30},
		{"clamped at 16 bits", -100000, steering.LostScore},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := steering.ComputeScore(tt.rssi); got != tt.want {
				t.Fatalf("ComputeScore(%d) = %d, want %d", tt.rssi, got, tt.want)
			}
		})
	}
}

func TestCompareScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		local      uint16
		peer       uint16
		wantEvent  steering.Event
	}{
		{"peer lost sentinel", 40, steering.LostScore, steering.EventPeerLostClient},
		{"local strictly better", 30, 40, steering.EventPeerIsWorse},
		{"local strictly worse", 50, 40, steering.EventPeerNotWorse},
		{"equal scores not worse", 40, 40, steering.EventPeerNotWorse},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := steering.CompareScore(tt.local, tt.peer); got != tt.wantEvent {
				t.Fatalf("CompareScore(%d, %d) = %s, want %s", tt.local, tt.peer, got, tt.wantEvent)
			}
		})
	}
}
