// Package actuator provides concrete implementations of
// steering.Actuator, the narrow interface through which a SteeringContext
// reaches the hostapd-side blacklist, disassociate, and BSS Transition
// Management collaborators named in the protocol's external interfaces.
package actuator

import (
	"log/slog"

	"github.com/cococorp/netsteer/internal/steering"
)

// Logging implements steering.Actuator by recording every call through a
// structured logger instead of touching a real driver. netsteerd uses it
// as the actuator of every steering context; tests that need to observe
// call counts directly use fakes_test.go's fakeActuator instead.
//
// Logging never fails: every method returns nil, matching the teacher's
// noopMetrics pattern of a harmless default collaborator for configurations
// that have not wired in the real thing.
type Logging struct {
	logger             *slog.Logger
	supportsBSSTM      bool
	supportsBSSTMByMAC map[steering.MAC]bool
}

// NewLogging creates a Logging actuator. supportsBSSTM is the default
// answer to SupportsBSSTransition for clients with no per-MAC override.
func NewLogging(logger *slog.Logger, supportsBSSTM bool) *Logging {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logging{
		logger:             logger.With(slog.String("component", "actuator")),
		supportsBSSTM:      supportsBSSTM,
		supportsBSSTMByMAC: make(map[steering.MAC]bool),
	}
}

// SetSupportsBSSTransition overrides the BSS-Transition capability
// reported for a single client.
func (l *Logging) SetSupportsBSSTransition(mac steering.MAC, supports bool) {
	l.supportsBSSTMByMAC[mac] = supports
}

// BlacklistAdd implements steering.Actuator.
func (l *Logging) BlacklistAdd(mac steering.MAC) error {
	l.logger.Info("blacklist_add", slog.String("mac", mac.String()))
	return nil
}

// BlacklistRemove implements steering.Actuator.
func (l *Logging) BlacklistRemove(mac steering.MAC) error {
	l.logger.Info("blacklist_remove", slog.String("mac", mac.String()))
	return nil
}

// Disassociate implements steering.Actuator.
func (l *Logging) Disassociate(mac steering.MAC) error {
	l.logger.Info("disassociate", slog.String("mac", mac.String()))
	return nil
}

// BSSTransitionRequest implements steering.Actuator.
func (l *Logging) BSSTransitionRequest(mac, targetBSSID steering.MAC, channel uint8, timeout uint16) error {
	l.logger.Info("bss_transition_request",
		slog.String("mac", mac.String()),
		slog.String("target_bssid", targetBSSID.String()),
		slog.Int("channel", int(channel)),
		slog.Int("timeout", int(timeout)),
	)
	return nil
}

// SupportsBSSTransition implements steering.Actuator.
func (l *Logging) SupportsBSSTransition(mac steering.MAC) bool {
	if supports, ok := l.supportsBSSTMByMAC[mac]; ok {
		return supports
	}
	return l.supportsBSSTM
}
