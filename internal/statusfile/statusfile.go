// Package statusfile defines the JSON status snapshot contract shared
// between netsteerd and netsteerctl. It replaces the teacher's ConnectRPC
// service definition: instead of a long-lived RPC connection, the daemon
// periodically renders its state to a file and the CLI reads it back.
package statusfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Snapshot is the top-level document written to the status file.
type Snapshot struct {
	GeneratedAt time.Time         `json:"generated_at"`
	Contexts    []ContextSnapshot `json:"contexts"`
}

// ContextSnapshot is one configured SteeringContext's point-in-time state.
type ContextSnapshot struct {
	Key          string           `json:"key"`
	BridgeIfname string           `json:"bridge_ifname"`
	LocalBSSID   string           `json:"local_bssid"`
	Mode         string           `json:"mode"`
	Inert        bool             `json:"inert"`
	Clients      []ClientSnapshot `json:"clients"`
}

// ClientSnapshot is one tracked client entry, rendered for the CLI.
type ClientSnapshot struct {
	MAC             string `json:"mac"`
	State           string `json:"state"`
	LocalScore      uint16 `json:"local_score"`
	RemoteBSSID     string `json:"remote_bssid"`
	CloseBSSID      string `json:"close_bssid"`
	RemoteChannel   uint8  `json:"remote_channel"`
	AssociationTime int64  `json:"association_time"`
	Associated      bool   `json:"associated"`
}

// Write renders snap as indented JSON and atomically replaces path: it
// writes to a temp file in the same directory, then renames, so a reader
// never observes a partially written file.
func Write(path string, snap Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("statusfile: marshal snapshot: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".status-*.tmp")
	if err != nil {
		return fmt.Errorf("statusfile: create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("statusfile: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("statusfile: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("statusfile: rename into place: %w", err)
	}
	return nil
}

// Read loads a Snapshot previously written by Write.
func Read(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("statusfile: read %s: %w", path, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("statusfile: unmarshal %s: %w", path, err)
	}
	return snap, nil
}
