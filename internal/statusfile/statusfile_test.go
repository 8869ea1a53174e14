package statusfile_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/cococorp/netsteer/internal/statusfile"
)

func TestWriteReadRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "status.json")
	want := statusfile.Snapshot{
		GeneratedAt: time.Unix(1700000000, 0).UTC(),
		Contexts: []statusfile.ContextSnapshot{
			{
				Key:          "aa:bb:cc:dd:ee:01|br-lan",
				BridgeIfname: "br-lan",
				LocalBSSID:   "aa:bb:cc:dd:ee:01",
				Mode:         "force",
				Clients: []statusfile.ClientSnapshot{
					{MAC: "11:22:33:44:55:66", State: "associated", LocalScore: 42, Associated: true},
				},
			},
		},
	}

	if err := statusfile.Write(path, want); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := statusfile.Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	if !got.GeneratedAt.Equal(want.GeneratedAt) {
		t.Errorf("GeneratedAt = %v, want %v", got.GeneratedAt, want.GeneratedAt)
	}
	if len(got.Contexts) != 1 || got.Contexts[0].Key != want.Contexts[0].Key {
		t.Fatalf("Contexts = %+v, want %+v", got.Contexts, want.Contexts)
	}
	if len(got.Contexts[0].Clients) != 1 || got.Contexts[0].Clients[0].MAC != "11:22:33:44:55:66" {
		t.Fatalf("Clients = %+v", got.Contexts[0].Clients)
	}
}

func TestWriteOverwritesExisting(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "status.json")

	if err := statusfile.Write(path, statusfile.Snapshot{Contexts: []statusfile.ContextSnapshot{{Key: "first"}}}); err != nil {
		t.Fatalf("first Write: %v", err)
	}
	if err := statusfile.Write(path, statusfile.Snapshot{Contexts: []statusfile.ContextSnapshot{{Key: "second"}}}); err != nil {
		t.Fatalf("second Write: %v", err)
	}

	got, err := statusfile.Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got.Contexts) != 1 || got.Contexts[0].Key != "second" {
		t.Fatalf("Contexts = %+v, want single entry %q", got.Contexts, "second")
	}
}

func TestReadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := statusfile.Read(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("Read on missing file returned nil error")
	}
}
