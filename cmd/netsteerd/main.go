// netsteerd -- multi-AP client steering daemon.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime/trace"
	"sync"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/cococorp/netsteer/internal/actuator"
	"github.com/cococorp/netsteer/internal/config"
	steeringmetrics "github.com/cococorp/netsteer/internal/metrics"
	"github.com/cococorp/netsteer/internal/statusfile"
	"github.com/cococorp/netsteer/internal/steering"
	"github.com/cococorp/netsteer/internal/transport"
	appversion "github.com/cococorp/netsteer/internal/version"
)

// shutdownTimeout is the maximum time to wait for HTTP servers to drain
// active connections during graceful shutdown.
const shutdownTimeout = 10 * time.Second

// flightRecorderMinAge is the minimum window age for the flight recorder.
const flightRecorderMinAge = 500 * time.Millisecond

// flightRecorderMaxBytes is the upper bound on flight recorder window size.
const flightRecorderMaxBytes = 2 * 1024 * 1024 // 2 MiB

func main() {
	os.Exit(run())
}

func run() int {
	// 1. Parse flags.
	configPath := flag.String("config", "", "path to configuration file (YAML)")
	flag.Parse()

	// 2. Load config.
	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("failed to load configuration",
			slog.String("error", err.Error()),
		)
		return 1
	}

	// 3. Set up logger with dynamic level support for SIGHUP reload.
	logLevel := new(slog.LevelVar)
	logLevel.Set(config.ParseLogLevel(cfg.Log.Level))
	logger := newLoggerWithLevel(cfg.Log, logLevel)

	logger.Info("netsteerd starting",
		slog.String("version", appversion.Version),
		slog.String("metrics_addr", cfg.Metrics.Addr),
		slog.Int("contexts", len(cfg.Contexts)),
	)

	// 4. Start flight recorder for post-mortem debugging of steering
	// protocol failures.
	fr := startFlightRecorder(logger)

	// 5. Create Prometheus metrics collector.
	reg := prometheus.NewRegistry()
	collector := steeringmetrics.NewCollector(reg)

	// 6. Run servers.
	if err := runServers(cfg, collector, reg, logger, *configPath, logLevel, fr); err != nil {
		logger.Error("netsteerd exited with error",
			slog.String("error", err.Error()),
		)
		return 1
	}

	logger.Info("netsteerd stopped")
	return 0
}

// runServers sets up and runs the steering contexts, the status snapshot
// writer, and the metrics HTTP server using an errgroup with
// signal-aware context for graceful shutdown.
func runServers(
	cfg *config.Config,
	collector *steeringmetrics.Collector,
	reg *prometheus.Registry,
	logger *slog.Logger,
	configPath string,
	logLevel *slog.LevelVar,
	fr *trace.FlightRecorder,
) error {
	metricsSrv := newMetricsServer(cfg.Metrics, reg)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	mgr := newContextManager(logger, collector)
	if err := mgr.reconcile(gCtx, cfg.Contexts); err != nil {
		return fmt.Errorf("start steering contexts: %w", err)
	}
	defer mgr.stopAll()

	startHTTPServers(gCtx, g, cfg, metricsSrv, logger)
	startDaemonGoroutines(gCtx, g, configPath, logLevel, mgr, logger)
	startStatusWriter(gCtx, g, cfg.Status, mgr, logger)

	notifyReady(logger)

	g.Go(func() error {
		<-gCtx.Done()
		return gracefulShutdown(gCtx, mgr, logger, fr, metricsSrv)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("run servers: %w", err)
	}
	return nil
}

// startHTTPServers registers the metrics HTTP server goroutine.
func startHTTPServers(
	ctx context.Context,
	g *errgroup.Group,
	cfg *config.Config,
	metricsSrv *http.Server,
	logger *slog.Logger,
) {
	lc := net.ListenConfig{}

	g.Go(func() error {
		logger.Info("metrics server listening",
			slog.String("addr", cfg.Metrics.Addr),
			slog.String("path", cfg.Metrics.Path),
		)
		return listenAndServe(ctx, &lc, metricsSrv, cfg.Metrics.Addr)
	})
}

// startDaemonGoroutines registers the watchdog and SIGHUP reload goroutines.
func startDaemonGoroutines(
	ctx context.Context,
	g *errgroup.Group,
	configPath string,
	logLevel *slog.LevelVar,
	mgr *contextManager,
	logger *slog.Logger,
) {
	g.Go(func() error {
		return runWatchdog(ctx, logger)
	})

	sigHUP := make(chan os.Signal, 1)
	signal.Notify(sigHUP, syscall.SIGHUP)
	g.Go(func() error {
		defer signal.Stop(sigHUP)
		handleSIGHUP(ctx, sigHUP, configPath, logLevel, mgr, logger)
		return nil
	})
}

// startStatusWriter registers the periodic status snapshot writer
// goroutine (expansion: replaces the teacher's ConnectRPC control plane).
func startStatusWriter(ctx context.Context, g *errgroup.Group, cfg config.StatusConfig, mgr *contextManager, logger *slog.Logger) {
	interval, err := time.ParseDuration(cfg.Interval)
	if err != nil || interval <= 0 {
		logger.Warn("invalid status.interval, defaulting to 2s",
			slog.String("configured", cfg.Interval),
		)
		interval = 2 * time.Second
	}

	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				snap := mgr.snapshot()
				if err := statusfile.Write(cfg.Path, snap); err != nil {
					logger.Warn("failed to write status snapshot",
						slog.String("path", cfg.Path),
						slog.Any("err", err),
					)
				}
			}
		}
	})
}

// -------------------------------------------------------------------------
// Systemd Integration — sd_notify + watchdog
// -------------------------------------------------------------------------

// notifyReady sends READY=1 to systemd, indicating the daemon has
// completed initialization and is ready to serve.
func notifyReady(logger *slog.Logger) {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		logger.Warn("failed to notify systemd readiness",
			slog.String("error", err.Error()),
		)
		return
	}
	if sent {
		logger.Info("notified systemd: READY")
	}
}

// notifyStopping sends STOPPING=1 to systemd, indicating the daemon
// is beginning graceful shutdown.
func notifyStopping(logger *slog.Logger) {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyStopping)
	if err != nil {
		logger.Warn("failed to notify systemd stopping",
			slog.String("error", err.Error()),
		)
		return
	}
	if sent {
		logger.Info("notified systemd: STOPPING")
	}
}

// runWatchdog sends periodic watchdog keepalives to systemd.
// The interval is WatchdogSec/2 as recommended by the systemd documentation.
// If watchdog is not configured, the goroutine exits immediately.
func runWatchdog(ctx context.Context, logger *slog.Logger) error {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		logger.Warn("failed to check systemd watchdog",
			slog.String("error", err.Error()),
		)
		return nil
	}
	if interval == 0 {
		logger.Debug("systemd watchdog not configured, skipping keepalive")
		return nil
	}

	tickInterval := interval / 2
	logger.Info("systemd watchdog enabled",
		slog.Duration("watchdog_sec", interval),
		slog.Duration("keepalive_interval", tickInterval),
	)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, wdErr := daemon.SdNotify(false, daemon.SdNotifyWatchdog); wdErr != nil {
				logger.Warn("failed to send watchdog keepalive",
					slog.String("error", wdErr.Error()),
				)
			}
		}
	}
}

// -------------------------------------------------------------------------
// SIGHUP Reload — log level + context reconciliation
// -------------------------------------------------------------------------

// handleSIGHUP listens for SIGHUP signals and reloads configuration.
// Blocks until the context is cancelled (graceful shutdown).
func handleSIGHUP(
	ctx context.Context,
	sigHUP <-chan os.Signal,
	configPath string,
	logLevel *slog.LevelVar,
	mgr *contextManager,
	logger *slog.Logger,
) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sigHUP:
			logger.Info("received SIGHUP, reloading configuration")
			reloadConfig(ctx, configPath, logLevel, mgr, logger)
		}
	}
}

// reloadConfig loads a fresh configuration from the given path, updates
// the dynamic log level, and reconciles declarative steering contexts.
// Errors during reload are logged but do not stop the daemon -- the
// previous configuration remains in effect.
func reloadConfig(
	ctx context.Context,
	configPath string,
	logLevel *slog.LevelVar,
	mgr *contextManager,
	logger *slog.Logger,
) {
	newCfg, err := loadConfig(configPath)
	if err != nil {
		logger.Error("failed to reload configuration, keeping current settings",
			slog.String("error", err.Error()),
		)
		return
	}

	oldLevel := logLevel.Level()
	newLevel := config.ParseLogLevel(newCfg.Log.Level)
	logLevel.Set(newLevel)

	logger.Info("configuration reloaded",
		slog.String("old_log_level", oldLevel.String()),
		slog.String("new_log_level", newLevel.String()),
	)

	if err := mgr.reconcile(ctx, newCfg.Contexts); err != nil {
		logger.Error("context reconciliation had errors",
			slog.Any("err", err),
		)
	}
}

// -------------------------------------------------------------------------
// Graceful Shutdown
// -------------------------------------------------------------------------

// gracefulShutdown performs an orderly shutdown: signals systemd, tears
// down every running steering context, stops the flight recorder, then
// shuts down HTTP servers.
func gracefulShutdown(
	ctx context.Context,
	mgr *contextManager,
	logger *slog.Logger,
	fr *trace.FlightRecorder,
	servers ...*http.Server,
) error {
	logger.Info("initiating graceful shutdown")
	notifyStopping(logger)

	mgr.stopAll()

	if fr != nil {
		fr.Stop()
		logger.Debug("flight recorder stopped")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	var shutdownErr error
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			shutdownErr = errors.Join(shutdownErr, fmt.Errorf("shutdown server: %w", err))
		}
	}
	return shutdownErr
}

// -------------------------------------------------------------------------
// Flight Recorder — Go 1.26 runtime/trace
// -------------------------------------------------------------------------

// startFlightRecorder initializes and starts the Go 1.26 FlightRecorder
// for post-mortem debugging of steering protocol failures. The recorder
// maintains a rolling window of execution trace data that can be dumped
// on demand.
func startFlightRecorder(logger *slog.Logger) *trace.FlightRecorder {
	fr := trace.NewFlightRecorder(trace.FlightRecorderConfig{
		MinAge:   flightRecorderMinAge,
		MaxBytes: flightRecorderMaxBytes,
	})

	if err := fr.Start(); err != nil {
		logger.Warn("failed to start flight recorder",
			slog.String("error", err.Error()),
		)
		return nil
	}

	logger.Info("flight recorder started",
		slog.Duration("min_age", flightRecorderMinAge),
		slog.Uint64("max_bytes", flightRecorderMaxBytes),
	)

	return fr
}

// -------------------------------------------------------------------------
// Server Setup
// -------------------------------------------------------------------------

// listenAndServe creates a TCP listener using the ListenConfig (for noctx
// compliance) and serves HTTP requests until the server is shut down.
func listenAndServe(ctx context.Context, lc *net.ListenConfig, srv *http.Server, addr string) error {
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve on %s: %w", addr, err)
	}
	return nil
}

// newMetricsServer creates an HTTP server for the Prometheus metrics endpoint.
func newMetricsServer(cfg config.MetricsConfig, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// loadConfig loads configuration from a file path or returns defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load config from %s: %w", path, err)
		}
		return cfg, nil
	}
	return config.DefaultConfig(), nil
}

// newLoggerWithLevel creates a structured logger using a shared LevelVar
// for dynamic log level changes via SIGHUP reload.
func newLoggerWithLevel(cfg config.LogConfig, level *slog.LevelVar) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

// -------------------------------------------------------------------------
// Steering context lifecycle
// -------------------------------------------------------------------------

// dispatcher serializes every call into one SteeringContext onto a single
// goroutine, satisfying the single-threaded-cooperative requirement
// documented in internal/steering: timer fires and received frames are
// both posted here rather than run on their own goroutines.
type dispatcher struct {
	jobs chan func()
}

func newDispatcher() *dispatcher {
	return &dispatcher{jobs: make(chan func(), 256)}
}

// post enqueues fn for execution on the dispatch goroutine. A full queue
// drops the job rather than blocking the caller, the same choice
// SteeringContext itself makes for its stateChanges channel.
func (d *dispatcher) post(fn func()) {
	select {
	case d.jobs <- fn:
	default:
	}
}

func (d *dispatcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-d.jobs:
			fn()
		}
	}
}

// runningContext owns one configured steering context's transport,
// dispatch goroutine, and receive loop.
type runningContext struct {
	cfg    config.ContextConfig
	core   *steering.SteeringContext
	tr     *transport.RawSocketTransport
	disp   *dispatcher
	cancel context.CancelFunc
	done   chan struct{}
}

// stop cancels the context's goroutines (recvLoop closes the transport to
// unblock its pending Recv) and waits for the receive/dispatch goroutines
// to exit before deinitializing the core, so Deinit never runs alongside a
// dispatched job.
func (rc *runningContext) stop(logger *slog.Logger) {
	rc.cancel()
	<-rc.done
	if err := rc.core.Deinit(); err != nil {
		logger.Warn("deinit context failed",
			slog.String("key", rc.cfg.Key()),
			slog.Any("err", err),
		)
	}
}

// contextManager owns the set of currently running steering contexts and
// reconciles it against the declarative configuration on startup and on
// SIGHUP reload, mirroring the teacher's reconcileSessions.
type contextManager struct {
	mu        sync.Mutex
	running   map[string]*runningContext
	logger    *slog.Logger
	collector *steeringmetrics.Collector
}

func newContextManager(logger *slog.Logger, collector *steeringmetrics.Collector) *contextManager {
	return &contextManager{
		running:   make(map[string]*runningContext),
		logger:    logger,
		collector: collector,
	}
}

// reconcile creates contexts present in desired but not yet running, and
// tears down running contexts absent from desired. Contexts whose key is
// unchanged are left untouched -- mode/channel/peer edits take effect on
// the next full restart, matching the teacher's session reconciliation
// which only adds and removes, never mutates in place.
func (m *contextManager) reconcile(ctx context.Context, desired []config.ContextConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	wantKeys := make(map[string]struct{}, len(desired))
	var errs error

	for _, cc := range desired {
		key := cc.Key()
		wantKeys[key] = struct{}{}
		if _, exists := m.running[key]; exists {
			continue
		}

		rc, err := m.start(ctx, cc)
		if err != nil {
			errs = errors.Join(errs, fmt.Errorf("start context %s: %w", key, err))
			continue
		}
		m.running[key] = rc
		m.logger.Info("steering context started",
			slog.String("key", key),
			slog.String("bridge_ifname", cc.BridgeIfname),
			slog.String("mode", cc.Mode),
		)
	}

	for key, rc := range m.running {
		if _, wanted := wantKeys[key]; wanted {
			continue
		}
		rc.stop(m.logger)
		delete(m.running, key)
		m.logger.Info("steering context stopped", slog.String("key", key))
	}

	return errs
}

// start opens the transport (if the context is active) and launches the
// dispatch and receive goroutines for one configured context.
func (m *contextManager) start(parentCtx context.Context, cc config.ContextConfig) (*runningContext, error) {
	steeringCfg, err := cc.ToSteeringConfig()
	if err != nil {
		return nil, err
	}

	inert := steeringCfg.Mode == steering.ModeOff || len(steeringCfg.Peers) == 0

	var tr *transport.RawSocketTransport
	if !inert {
		tr, err = transport.NewRawSocketTransport(cc.BridgeIfname, steeringCfg.OwnAddr)
		if err != nil {
			return nil, fmt.Errorf("open transport: %w", err)
		}
	}

	disp := newDispatcher()
	sched := steering.NewRealScheduler(disp.post)
	act := actuator.NewLogging(m.logger, false)

	var transportIface steering.Transport
	if tr != nil {
		transportIface = tr
	}

	core, err := steering.NewSteeringContext(steeringCfg, sched, transportIface, act, m.logger, steering.WithMetrics(m.collector))
	if err != nil {
		if tr != nil {
			_ = tr.Close()
		}
		return nil, fmt.Errorf("init steering context: %w", err)
	}

	bssid := steeringCfg.LocalBSSID.String()
	core.OnStateChange(func(sc steering.StateChange) {
		m.collector.RecordStateTransition(bssid, sc.OldState.String(), sc.NewState.String())
	})

	ctx, cancel := context.WithCancel(parentCtx)
	rc := &runningContext{cfg: cc, core: core, tr: tr, disp: disp, cancel: cancel, done: make(chan struct{})}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		disp.run(ctx)
	}()

	if tr != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			recvLoop(ctx, tr, core, disp, m.logger)
		}()
	}

	go func() {
		wg.Wait()
		close(rc.done)
	}()

	return rc, nil
}

// recvLoop reads frames off tr until ctx is cancelled, posting each one
// onto the context's dispatch goroutine. Closing tr on cancellation is
// what unblocks the pending Recv call.
func recvLoop(ctx context.Context, tr *transport.RawSocketTransport, core *steering.SteeringContext, disp *dispatcher, logger *slog.Logger) {
	go func() {
		<-ctx.Done()
		_ = tr.Close()
	}()

	buf := make([]byte, 2048)
	for {
		src, payload, err := tr.Recv(buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("transport receive failed", slog.Any("err", err))
			return
		}

		frame := make([]byte, len(payload))
		copy(frame, payload)
		disp.post(func() { core.HandleFrame(src, frame) })
	}
}

// stopAll tears down every running context. Safe to call more than once.
func (m *contextManager) stopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, rc := range m.running {
		rc.stop(m.logger)
		delete(m.running, key)
	}
}

// snapshot renders every running context's current client registry as a
// statusfile.Snapshot for the periodic status writer.
func (m *contextManager) snapshot() statusfile.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := statusfile.Snapshot{GeneratedAt: time.Now().UTC()}
	for key, rc := range m.running {
		cs := statusfile.ContextSnapshot{
			Key:          key,
			BridgeIfname: rc.cfg.BridgeIfname,
			LocalBSSID:   rc.cfg.LocalBSSID,
			Mode:         rc.cfg.Mode,
			Inert:        rc.tr == nil,
		}
		for _, entry := range rc.core.Snapshot() {
			cs.Clients = append(cs.Clients, statusfile.ClientSnapshot{
				MAC:             entry.MAC.String(),
				State:           entry.State.String(),
				LocalScore:      entry.LocalScore,
				RemoteBSSID:     entry.RemoteBSSID.String(),
				CloseBSSID:      entry.CloseBSSID.String(),
				RemoteChannel:   entry.RemoteChannel,
				AssociationTime: entry.AssociationTime,
				Associated:      entry.Associated,
			})
		}
		snap.Contexts = append(snap.Contexts, cs)
	}
	return snap
}
