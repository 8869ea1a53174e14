package config_test

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/cococorp/netsteer/internal/config"
	"github.com/cococorp/netsteer/internal/steering"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()

	if cfg.Metrics.Addr != ":9100" {
		t.Errorf("Metrics.Addr = %q, want %q", cfg.Metrics.Addr, ":9100")
	}

	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics.Path = %q, want %q", cfg.Metrics.Path, "/metrics")
	}

	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}

	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, "json")
	}

	if cfg.Status.Path != "/var/run/netsteerd/status.json" {
		t.Errorf("Status.Path = %q, want %q", cfg.Status.Path, "/var/run/netsteerd/status.json")
	}

	if cfg.Status.Interval != "2s" {
		t.Errorf("Status.Interval = %q, want %q", cfg.Status.Interval, "2s")
	}

	// Defaults must pass validation.
	if err := config.Validate(cfg); err != nil {
		t.Errorf("DefaultConfig() failed validation: %v", err)
	}
}

func TestLoadFromYAML(t *testing.T) {
	t.Parallel()

	yamlContent := `
metrics:
  addr: ":9200"
  path: "/custom-metrics"
log:
  level: "debug"
  format: "text"
status:
  path: "/tmp/netsteerd-status.json"
  interval: "5s"
contexts:
  - bridge_ifname: "br-lan0"
    local_bssid: "aa:bb:cc:dd:ee:01"
    own_addr: "aa:bb:cc:dd:ee:01"
    channel: 36
    mode: "force"
    peers:
      - "aa:bb:cc:dd:ee:01"
      - "aa:bb:cc:dd:ee:02"
`

	dir := t.TempDir()
	path := filepath.Join(dir, "netsteerd.yaml")
	if err := os.WriteFile(path, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Metrics.Addr != ":9200" {
		t.Errorf("Metrics.Addr = %q, want %q", cfg.Metrics.Addr, ":9200")
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "debug")
	}
	if cfg.Status.Interval != "5s" {
		t.Errorf("Status.Interval = %q, want %q", cfg.Status.Interval, "5s")
	}
	if len(cfg.Contexts) != 1 {
		t.Fatalf("len(Contexts) = %d, want 1", len(cfg.Contexts))
	}
	if cfg.Contexts[0].Mode != "force" {
		t.Errorf("Contexts[0].Mode = %q, want %q", cfg.Contexts[0].Mode, "force")
	}
	if len(cfg.Contexts[0].Peers) != 2 {
		t.Errorf("len(Contexts[0].Peers) = %d, want 2", len(cfg.Contexts[0].Peers))
	}
}

func TestLoadFromYAMLWithEnvOverride(t *testing.T) {
	yamlContent := `
metrics:
  addr: ":9200"
`
	dir := t.TempDir()
	path := filepath.Join(dir, "netsteerd.yaml")
	if err := os.WriteFile(path, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	t.Setenv("NETSTEER_METRICS_ADDR", ":9999")
	t.Setenv("NETSTEER_LOG_LEVEL", "warn")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Metrics.Addr != ":9999" {
		t.Errorf("Metrics.Addr = %q, want env override %q", cfg.Metrics.Addr, ":9999")
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want env override %q", cfg.Log.Level, "warn")
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := config.Load("/nonexistent/path/netsteerd.yaml"); err == nil {
		t.Fatal("Load() with missing file returned nil error")
	}
}

func TestValidateRejectsEmptyMetricsAddr(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Metrics.Addr = ""

	if err := config.Validate(cfg); !errors.Is(err, config.ErrEmptyMetricsAddr) {
		t.Fatalf("Validate() error = %v, want ErrEmptyMetricsAddr", err)
	}
}

func TestValidateContexts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		ctx     config.ContextConfig
		wantErr error
	}{
		{
			name: "valid",
			ctx: config.ContextConfig{
				BridgeIfname: "br-lan0",
				LocalBSSID:   "aa:bb:cc:dd:ee:01",
				OwnAddr:      "aa:bb:cc:dd:ee:01",
				Mode:         "suggest",
				Peers:        []string{"aa:bb:cc:dd:ee:01", "aa:bb:cc:dd:ee:02"},
			},
			wantErr: nil,
		},
		{
			name: "bad local_bssid",
			ctx: config.ContextConfig{
				LocalBSSID: "not-a-mac",
				Mode:       "off",
			},
			wantErr: config.ErrInvalidMAC,
		},
		{
			name: "bad mode",
			ctx: config.ContextConfig{
				LocalBSSID: "aa:bb:cc:dd:ee:01",
				Mode:       "bogus",
			},
			wantErr: config.ErrInvalidContextMode,
		},
		{
			name: "bad peer",
			ctx: config.ContextConfig{
				LocalBSSID: "aa:bb:cc:dd:ee:01",
				Mode:       "off",
				Peers:      []string{"zz:zz:zz:zz:zz:zz"},
			},
			wantErr: config.ErrInvalidMAC,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.DefaultConfig()
			cfg.Contexts = []config.ContextConfig{tt.ctx}

			err := config.Validate(cfg)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateRejectsDuplicateContextKey(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	dup := config.ContextConfig{
		BridgeIfname: "br-lan0",
		LocalBSSID:   "aa:bb:cc:dd:ee:01",
		Mode:         "off",
	}
	cfg.Contexts = []config.ContextConfig{dup, dup}

	if err := config.Validate(cfg); !errors.Is(err, config.ErrDuplicateContextKey) {
		t.Fatalf("Validate() error = %v, want ErrDuplicateContextKey", err)
	}
}

func TestContextConfigKey(t *testing.T) {
	t.Parallel()

	cc := config.ContextConfig{LocalBSSID: "aa:bb:cc:dd:ee:01", BridgeIfname: "br-lan0"}
	want := "aa:bb:cc:dd:ee:01|br-lan0"
	if got := cc.Key(); got != want {
		t.Fatalf("Key() = %q, want %q", got, want)
	}
}

func TestParseMAC(t *testing.T) {
	t.Parallel()

	got, err := config.ParseMAC("aa:bb:cc:dd:ee:ff")
	if err != nil {
		t.Fatalf("ParseMAC() error = %v", err)
	}
	want := steering.MAC{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}
	if got != want {
		t.Fatalf("ParseMAC() = %v, want %v", got, want)
	}

	if _, err := config.ParseMAC("aa:bb:cc"); !errors.Is(err, config.ErrInvalidMAC) {
		t.Fatalf("ParseMAC() short string error = %v, want ErrInvalidMAC", err)
	}

	if _, err := config.ParseMAC("zz:bb:cc:dd:ee:ff"); !errors.Is(err, config.ErrInvalidMAC) {
		t.Fatalf("ParseMAC() bad octet error = %v, want ErrInvalidMAC", err)
	}
}

func TestContextConfigToSteeringConfig(t *testing.T) {
	t.Parallel()

	cc := config.ContextConfig{
		BridgeIfname: "br-lan0",
		LocalBSSID:   "aa:bb:cc:dd:ee:01",
		OwnAddr:      "aa:bb:cc:dd:ee:01",
		Channel:      36,
		Mode:         "force",
		Peers:        []string{"aa:bb:cc:dd:ee:01", "aa:bb:cc:dd:ee:02"},
	}

	sc, err := cc.ToSteeringConfig()
	if err != nil {
		t.Fatalf("ToSteeringConfig() error = %v", err)
	}

	if sc.Mode != steering.ModeForce {
		t.Errorf("Mode = %v, want ModeForce", sc.Mode)
	}
	if sc.Channel != 36 {
		t.Errorf("Channel = %d, want 36", sc.Channel)
	}
	if len(sc.Peers) != 2 {
		t.Errorf("len(Peers) = %d, want 2", len(sc.Peers))
	}
	wantBSSID := steering.MAC{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0x01}
	if sc.LocalBSSID != wantBSSID {
		t.Errorf("LocalBSSID = %v, want %v", sc.LocalBSSID, wantBSSID)
	}
}

func TestContextConfigToSteeringConfigRejectsBadMode(t *testing.T) {
	t.Parallel()

	cc := config.ContextConfig{
		LocalBSSID: "aa:bb:cc:dd:ee:01",
		OwnAddr:    "aa:bb:cc:dd:ee:01",
		Mode:       "bogus",
	}

	if _, err := cc.ToSteeringConfig(); err == nil {
		t.Fatal("ToSteeringConfig() with bad mode returned nil error")
	}
}

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"nonsense", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := config.ParseLogLevel(tt.in); got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
