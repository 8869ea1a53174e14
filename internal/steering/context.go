package steering

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// This file implements SteeringContext (design §2, §3, §6): the per-AP
// owner that binds the registry, FSM, codec, transport and timer fabric
// together, plus the control-plane operations (init/deinit/on_associate/
// on_disassociate/on_probe) and the protocol-plane operations (periodic
// flood §4.6, probe handling §4.7, frame ingestion + owner arbitration
// §4.4) that drive it.

// Mode is the steering enforcement mode (design §3, §6).
type Mode uint8

const (
	// ModeOff disables steering entirely; the context stays inert.
	ModeOff Mode = iota

	// ModeSuggest issues BSS-Transition Requests instead of blacklisting
	// and forcibly disassociating.
	ModeSuggest

	// ModeForce blacklists and forcibly disassociates losing clients.
	ModeForce
)

var modeNames = [...]string{ModeOff: "off", ModeSuggest: "suggest", ModeForce: "force"}

// String returns the configuration-file spelling of the mode.
func (m Mode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return "unknown"
}

// ParseMode parses the CLI/configuration spelling of a mode (design §6:
// "net_steering_mode ∈ {off, suggest, force}").
func ParseMode(s string) (Mode, error) {
	switch s {
	case "off", "":
		return ModeOff, nil
	case "suggest":
		return ModeSuggest, nil
	case "force":
		return ModeForce, nil
	default:
		return ModeOff, fmt.Errorf("parse mode %q: %w", s, ErrInvalidMode)
	}
}

// Transport is the Peer Transport adapter collaborator (design §1, §2,
// §6): unicast delivery to a single peer MAC, and lifecycle teardown. The
// production implementation lives in internal/transport; tests substitute
// an in-memory fake.
type Transport interface {
	// Send best-effort unicasts frame to dst (design §6: l2_send).
	Send(dst MAC, frame []byte) error

	// Close releases the underlying socket (design §5: "one per context,
	// opened at init, closed at deinit").
	Close() error
}

// MetricsRecorder is the Prometheus instrumentation collaborator: client
// entry gauges, TLV send/receive counters, frame drop counters, and
// blacklist actuator counters. The production implementation lives in
// internal/metrics; a no-op satisfies the interface when no collector is
// configured, mirroring the teacher's MetricsReporter/noopMetrics split
// (internal/bfd: WithMetrics/WithManagerMetrics default to a no-op
// reporter so instrumentation is always safe to call).
type MetricsRecorder interface {
	// SetClientEntries reports the current count of client entries in
	// state for the local BSSID.
	SetClientEntries(bssid, state string, count float64)

	// IncTLVsSent counts one TLV of tlvType flooded to peers.
	IncTLVsSent(bssid, tlvType string)

	// IncTLVsReceived counts one TLV of tlvType decoded from a peer frame.
	IncTLVsReceived(bssid, tlvType string)

	// IncFramesDropped counts one frame rejected by the wire codec, by
	// reason.
	IncFramesDropped(bssid, reason string)

	// IncBlacklistOps counts one blacklist_add/blacklist_remove actuator
	// call, by op ("add" or "remove").
	IncBlacklistOps(bssid, op string)
}

// noopMetrics discards every call. It is the default MetricsRecorder for
// a SteeringContext constructed without WithMetrics, exactly as the
// teacher's noopMetrics stands in for an unconfigured MetricsReporter.
type noopMetrics struct{}

func (noopMetrics) SetClientEntries(string, string, float64) {}
func (noopMetrics) IncTLVsSent(string, string)               {}
func (noopMetrics) IncTLVsReceived(string, string)           {}
func (noopMetrics) IncFramesDropped(string, string)          {}
func (noopMetrics) IncBlacklistOps(string, string)           {}

// ContextOption configures optional SteeringContext dependencies,
// following the teacher's functional-option pattern (internal/bfd's
// SessionOption/ManagerOption/EchoSessionOption).
type ContextOption func(*SteeringContext)

// WithMetrics attaches a MetricsRecorder to the context. If mr is nil the
// default no-op recorder is left in place.
func WithMetrics(mr MetricsRecorder) ContextOption {
	return func(c *SteeringContext) {
		if mr != nil {
			c.metrics = mr
		}
	}
}

// Actuator is the blacklist/disassociate/BSS-TM collaborator (design §1,
// §6). The production implementation lives in internal/actuator.
type Actuator interface {
	BlacklistAdd(mac MAC) error
	BlacklistRemove(mac MAC) error
	Disassociate(mac MAC) error
	BSSTransitionRequest(mac MAC, targetBSSID MAC, channel uint8, timeout uint16) error

	// SupportsBSSTransition reports whether mac has advertised
	// BSS-Transition-Management capability (design §4.5 A7, §6).
	SupportsBSSTransition(mac MAC) bool
}

// Config is ctx_config from design §6: init(ctx_config) -> Result.
type Config struct {
	// BridgeIfname names the bridge/interface the transport binds to.
	// Carried for parity with design §6; the transport itself is
	// constructed and injected by the caller.
	BridgeIfname string

	LocalBSSID MAC
	OwnAddr    MAC
	Channel    uint8
	Mode       Mode
	Peers      []MAC

	// GCInterval is the period of the entry garbage-collection sweep
	// (expansion, design §9 open question resolved). Zero selects
	// DefaultGCInterval.
	GCInterval time.Duration

	// GCIdleWindow is how long an Idle, scoreless entry may sit with no
	// activity before the sweep reaps it. Zero selects
	// DefaultGCIdleWindow.
	GCIdleWindow time.Duration
}

// Defaults for the entry GC sweep (expansion).
const (
	DefaultGCInterval   = 1 * time.Minute
	DefaultGCIdleWindow = 5 * time.Minute
)

// StateChange describes one observed ClientEntry state transition,
// delivered to StateCallback subscribers and to SteeringContext.StateChanges.
type StateChange struct {
	MAC       MAC
	OldState  State
	NewState  State
	Timestamp int64
}

var (
	// ErrInvalidMode is returned by ParseMode for an unrecognized spelling.
	ErrInvalidMode = fmt.Errorf("invalid steering mode")

	// ErrNoTransport is returned by NewSteeringContext when mode != Off
	// and peers is non-empty but no Transport was supplied (design §6:
	// "if L2 open fails, returns an error" -- the caller is expected to
	// have already attempted to open the L2 socket before constructing
	// the context).
	ErrNoTransport = fmt.Errorf("steering: transport required when mode is active with peers configured")
)

// SteeringContext is one per-AP steering core instance (design §2, §3).
// All of its exported methods are the control- and protocol-plane entry
// points named in design §6; none of them take a lock. Per design §5 the
// core is single-threaded cooperative: the caller (an external event
// loop, out of scope here) MUST serialize calls into a single
// SteeringContext so that no method call is reentered while another is
// in progress.
type SteeringContext struct {
	handle uuid.UUID

	cfg    Config
	inert  bool
	logger *slog.Logger

	clients   *ClientRegistry
	scheduler Scheduler
	transport Transport
	actuator  Actuator
	metrics   MetricsRecorder

	frameSN uint16
	nowFunc func() int64

	gcTimer TimerHandle

	stateChanges chan StateChange
	callbacks    []StateCallback
}

var (
	registryMu sync.RWMutex
	registry   = map[uuid.UUID]*SteeringContext{}
)

// ContextByHandle looks up a registered SteeringContext by its init-time
// handle (design §9: "each context is registered by handle at init and
// callbacks dispatch via explicit handle -- no ambient singleton
// required").
func ContextByHandle(handle uuid.UUID) (*SteeringContext, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	c, ok := registry[handle]
	return c, ok
}

// NewSteeringContext implements design §6 init(ctx_config) -> Result.
//
// If cfg.Mode == ModeOff or cfg.Peers is empty, the returned context is
// inert: every control-plane method becomes a no-op and transport/
// actuator may be nil. Otherwise transport must be non-nil -- the caller
// is expected to have already opened the L2 socket (design §6: "if L2
// open fails, returns an error").
func NewSteeringContext(cfg Config, scheduler Scheduler, transport Transport, actuator Actuator, logger *slog.Logger, opts ...ContextOption) (*SteeringContext, error) {
	inert := cfg.Mode == ModeOff || len(cfg.Peers) == 0

	if !inert && transport == nil {
		return nil, ErrNoTransport
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.GCInterval <= 0 {
		cfg.GCInterval = DefaultGCInterval
	}
	if cfg.GCIdleWindow <= 0 {
		cfg.GCIdleWindow = DefaultGCIdleWindow
	}

	c := &SteeringContext{
		handle:       uuid.New(),
		cfg:          cfg,
		inert:        inert,
		logger:       logger.With(slog.String("bssid", cfg.LocalBSSID.String())),
		clients:      NewClientRegistry(),
		scheduler:    scheduler,
		transport:    transport,
		actuator:     actuator,
		metrics:      noopMetrics{},
		nowFunc:      func() int64 { return time.Now().UnixNano() },
		stateChanges: make(chan StateChange, 64),
	}

	for _, opt := range opts {
		opt(c)
	}

	registryMu.Lock()
	registry[c.handle] = c
	registryMu.Unlock()

	if !inert && scheduler != nil {
		c.armGCSweep()
	}

	return c, nil
}

// Handle returns the context's registration handle (design §9).
func (c *SteeringContext) Handle() uuid.UUID { return c.handle }

// Deinit implements design §6 deinit(): closes the socket, cancels all
// timers, frees all entries.
func (c *SteeringContext) Deinit() error {
	registryMu.Lock()
	delete(registry, c.handle)
	registryMu.Unlock()

	if c.gcTimer != nil {
		c.gcTimer.Cancel()
		c.gcTimer = nil
	}

	c.clients.Range(func(e *ClientEntry) {
		e.timers.cancelAll()
	})
	c.clients = NewClientRegistry()

	var err error
	if c.transport != nil {
		err = c.transport.Close()
	}
	close(c.stateChanges)
	return err
}

// OnStateChange registers a callback invoked synchronously whenever a
// client entry's state changes (see callback.go).
func (c *SteeringContext) OnStateChange(cb StateCallback) {
	c.callbacks = append(c.callbacks, cb)
}

// StateChanges returns the channel of state-change notifications, for
// consumers that prefer to range over it rather than register a
// StateCallback (see callback.go doc comment).
func (c *SteeringContext) StateChanges() <-chan StateChange {
	return c.stateChanges
}

func (c *SteeringContext) now() int64 { return c.nowFunc() }

// SetClock overrides the context's time source. Intended for tests that
// need deterministic control over adjusted_time arbitration (design
// §4.4) and assoc_msecs computation (design §4.6); production callers
// should leave the default wall-clock source in place.
func (c *SteeringContext) SetClock(fn func() int64) {
	c.nowFunc = fn
}

// -------------------------------------------------------------------------
// Control plane — design §6
// -------------------------------------------------------------------------

// OnAssociate implements design §6 on_associate(sta_handle, rssi).
func (c *SteeringContext) OnAssociate(mac MAC, staHandle any, rssi int32) {
	if c.inert {
		return
	}

	e := c.clients.Find(mac)
	if e == nil {
		e = c.clients.Create(mac)
	}

	now := c.now()
	e.AssociationTime = now
	e.LocalScore = ComputeScore(rssi)
	e.RemoteBSSID = MAC{}
	e.RemoteTime = 0
	e.CloseBSSID = MAC{}
	e.RemoteChannel = 0
	e.StaHandle = staHandle
	e.LastActivity = now
	e.timers.cancelProbeLoss()

	c.dispatch(e, EventAssociated)
	c.emitScoreNow(e)
}

// OnDisassociate implements design §6 on_disassociate(sta_handle).
func (c *SteeringContext) OnDisassociate(mac MAC) {
	if c.inert {
		return
	}

	e := c.clients.Find(mac)
	if e == nil {
		return
	}

	c.dispatch(e, EventDisassociated)

	e.StaHandle = nil
	e.RemoteBSSID = MAC{}
	e.RemoteTime = 0
	e.LastActivity = c.now()
	e.timers.armProbeLoss(c.scheduler, func() { c.onProbeLossExpire(mac) })
}

// OnProbe implements design §4.7 / §6 on_probe(sta_mac, target_bssid, rssi).
func (c *SteeringContext) OnProbe(clientMAC, targetBSSID MAC, rssi int32) {
	if c.inert {
		return
	}

	e := c.clients.Find(clientMAC)
	if e == nil {
		if targetBSSID != c.cfg.LocalBSSID {
			return
		}
		e = c.clients.Create(clientMAC)
	}

	now := c.now()
	e.LastActivity = now

	newScore := ComputeScore(rssi)
	changed := newScore != e.LocalScore
	e.LocalScore = newScore

	if changed && e.HasSTA() {
		c.emitScoreNow(e)
	}

	if !e.HasSTA() {
		e.timers.armProbeLoss(c.scheduler, func() { c.onProbeLossExpire(clientMAC) })
	}
}

func (c *SteeringContext) onProbeLossExpire(mac MAC) {
	e := c.clients.Find(mac)
	if e == nil {
		return
	}
	e.LocalScore = LostScore
}

// -------------------------------------------------------------------------
// Frame ingestion + owner arbitration — design §4.2, §4.4
// -------------------------------------------------------------------------

// HandleFrame is invoked by the Transport adapter's receive path with a
// raw received buffer. Parse errors are logged at debug level and the
// frame is dropped silently, per design §7.
func (c *SteeringContext) HandleFrame(src MAC, buf []byte) {
	if c.inert {
		return
	}

	frame, err := ParseFrame(buf)
	if err != nil {
		c.logger.Debug("dropping malformed frame", slog.String("peer", src.String()), slog.Any("err", err))
		c.metrics.IncFramesDropped(c.cfg.LocalBSSID.String(), dropReason(err))
		return
	}

	for _, t := range frame.TLVs {
		switch t.Type {
		case TLVScore:
			c.handleScoreTLV(t.Score)
		case TLVCloseClient:
			c.handleCloseClientTLV(t.CloseClient)
		case TLVClosedClient:
			c.handleClosedClientTLV(t.ClosedClient)
		}
	}
}

// dropReason classifies a ParseFrame error into the label set
// internal/metrics' FramesDropped counter documents.
func dropReason(err error) string {
	switch {
	case errors.Is(err, ErrFrameTooShort):
		return "frame_too_short"
	case errors.Is(err, ErrBadMagic):
		return "bad_magic"
	case errors.Is(err, ErrUnsupportedVersion):
		return "unsupported_version"
	case errors.Is(err, ErrTLVTruncated):
		return "tlv_truncated"
	default:
		return "other"
	}
}

// tlvTypeName maps a wire TLV type byte to the label internal/metrics'
// TLVsSent/TLVsReceived counters document ("score", "close_client",
// "closed_client").
func tlvTypeName(t uint8) string {
	switch t {
	case TLVScore:
		return "score"
	case TLVCloseClient:
		return "close_client"
	case TLVClosedClient:
		return "closed_client"
	default:
		return "unknown"
	}
}

func (c *SteeringContext) handleScoreTLV(s *ScoreTLV) {
	c.metrics.IncTLVsReceived(c.cfg.LocalBSSID.String(), tlvTypeName(TLVScore))

	mac := MAC(s.ClientMAC)
	e := c.clients.Find(mac)
	if e == nil {
		e = c.clients.Create(mac)
	}
	e.LastActivity = c.now()

	result := Arbitrate(e, MAC(s.SenderBSSID), s.Score, s.AssocMsecs, c.now(), e.HasSTA())
	for _, ev := range result.Events {
		c.dispatch(e, ev)
	}
}

func (c *SteeringContext) handleCloseClientTLV(cc *CloseClientTLV) {
	c.metrics.IncTLVsReceived(c.cfg.LocalBSSID.String(), tlvTypeName(TLVCloseClient))

	target := MAC(cc.TargetBSSID)
	if target != c.cfg.LocalBSSID {
		// Not for us (design §7).
		return
	}

	mac := MAC(cc.ClientMAC)
	e := c.clients.Find(mac)
	if e == nil {
		e = c.clients.Create(mac)
	}
	e.CloseBSSID = MAC(cc.SenderBSSID)
	e.RemoteChannel = cc.SenderChannel
	e.LastActivity = c.now()

	c.dispatch(e, EventCloseClient)
}

func (c *SteeringContext) handleClosedClientTLV(ac *ClosedClientTLV) {
	c.metrics.IncTLVsReceived(c.cfg.LocalBSSID.String(), tlvTypeName(TLVClosedClient))

	mac := MAC(ac.ClientMAC)
	e := c.clients.Find(mac)
	if e == nil {
		// Nothing to confirm; ignore (design §7).
		return
	}
	e.LastActivity = c.now()
	c.dispatch(e, EventClosedClient)
}

// -------------------------------------------------------------------------
// Periodic flood — design §4.6
// -------------------------------------------------------------------------

func (c *SteeringContext) startFloodTimer(e *ClientEntry) {
	mac := e.MAC
	var tick func()
	tick = func() {
		entry := c.clients.Find(mac)
		if entry == nil {
			return
		}
		c.emitScoreNow(entry)
		entry.timers.armFlood(c.scheduler, tick)
	}
	e.timers.armFlood(c.scheduler, tick)
}

// emitScoreNow builds and floods one TLV_SCORE for e, unless its
// local_score is the lost sentinel (design §4.6: "If local_score ==
// 0xFFFF, suppress emission for this tick (but keep the timer)").
func (c *SteeringContext) emitScoreNow(e *ClientEntry) {
	if e.LocalScore == LostScore {
		return
	}
	assocMsecs := computeAssocMsecs(c.now(), e.AssociationTime)
	w := NewFrameWriter()
	w.AppendScore(e.MAC, c.cfg.LocalBSSID, e.LocalScore, assocMsecs)
	c.floodToPeers(w, "score")
}

// computeAssocMsecs returns now-assocTime in milliseconds, saturating at
// the 32-bit maximum rather than wrapping (design §9 open question,
// resolved: "saturating clamp is recommended").
func computeAssocMsecs(now, assocTime int64) uint32 {
	if assocTime == 0 || now < assocTime {
		return 0
	}
	ms := (now - assocTime) / int64(time.Millisecond)
	if ms > int64(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(ms)
}

func (c *SteeringContext) floodToPeers(w *FrameWriter, tlvType string) {
	c.frameSN++
	buf, err := w.Build(c.frameSN)
	if err != nil {
		c.logger.Warn("failed to build frame", slog.Any("err", err))
		return
	}
	c.metrics.IncTLVsSent(c.cfg.LocalBSSID.String(), tlvType)
	for _, peer := range c.cfg.Peers {
		if peer == c.cfg.OwnAddr {
			// I7: never send to ourselves.
			continue
		}
		if err := c.transport.Send(peer, buf); err != nil {
			c.logger.Warn("send failed", slog.String("peer", peer.String()), slog.Any("err", err))
		}
	}
}

// -------------------------------------------------------------------------
// FSM dispatch + entry actions — design §4.5, §9
// -------------------------------------------------------------------------

// dispatch applies ev to e's FSM state, running any actions while e.State
// still holds the OLD value (design §9 ordering invariant), then commits
// the new state and notifies subscribers if it changed.
func (c *SteeringContext) dispatch(e *ClientEntry, ev Event) {
	res := ApplyEvent(e.State, ev)
	old := e.State

	c.executeActions(e, res.Actions)

	e.State = res.NewState
	if res.Changed {
		c.notifyStateChange(e, old, res.NewState)
	}
}

func (c *SteeringContext) notifyStateChange(e *ClientEntry, old, newState State) {
	sc := StateChange{MAC: e.MAC, OldState: old, NewState: newState, Timestamp: c.now()}

	c.logger.Debug("state transition",
		slog.String("client", e.MAC.String()),
		slog.String("from", old.String()),
		slog.String("to", newState.String()))

	for _, cb := range c.callbacks {
		cb(sc)
	}

	select {
	case c.stateChanges <- sc:
	default:
		// Channel full: the teacher's BFD manager drops rather than
		// blocks the dispatch path; same choice here.
	}
}

func (c *SteeringContext) executeActions(e *ClientEntry, actions []Action) {
	for _, a := range actions {
		switch a {
		case ActionStartFlood:
			c.startFloodTimer(e)

		case ActionSendClose:
			c.sendCloseClient(e)

		case ActionBlacklistArmTimeout:
			c.blacklistAdd(e.MAC)
			c.armStateTimeoutFor(e)

		case ActionCloseBlacklistArmTimeout:
			c.sendCloseClient(e)
			c.blacklistAdd(e.MAC)
			c.armStateTimeoutFor(e)

		case ActionAckBlacklistArmTimeout:
			c.sendClosedClient(e)
			c.blacklistAdd(e.MAC)
			c.armStateTimeoutFor(e)

		case ActionStopFloodLoseScore:
			e.timers.cancelFlood()
			e.LocalScore = LostScore

		case ActionDisassociatePeer:
			c.blacklistAdd(e.MAC)
			c.issueDisassociation(e)
			c.armStateTimeoutFor(e)
			e.timers.cancelFlood()

		case ActionAckCloseArmTimeout:
			c.sendClosedClient(e)
			c.armStateTimeoutFor(e)

		case ActionUnblacklistSendClose:
			c.blacklistRemove(e.MAC)
			c.sendCloseClient(e)
			e.timers.cancelStateTimeout()

		case ActionUnblacklistCancelTimeout:
			c.blacklistRemove(e.MAC)
			e.timers.cancelStateTimeout()

		case ActionSendCloseRetry:
			c.sendCloseClient(e)
		}
	}
}

func (c *SteeringContext) armStateTimeoutFor(e *ClientEntry) {
	mac := e.MAC
	e.timers.armStateTimeout(c.scheduler, func() { c.onStateTimeout(mac) })
}

func (c *SteeringContext) onStateTimeout(mac MAC) {
	e := c.clients.Find(mac)
	if e == nil {
		return
	}
	c.dispatch(e, EventTimeout)
}

// sendCloseClient emits a TLV_CLOSE_CLIENT targeting e's current believed
// owner (design §4.5 A2/A4/A9/A11).
func (c *SteeringContext) sendCloseClient(e *ClientEntry) {
	w := NewFrameWriter()
	w.AppendCloseClient(e.MAC, c.cfg.LocalBSSID, e.RemoteBSSID, c.cfg.Channel)
	c.floodToPeers(w, "close_client")
}

// sendClosedClient unicasts a TLV_CLOSED_CLIENT, carrying our own BSSID as
// the acknowledging BSSID, to e's close_bssid -- the peer that asked us to
// close the client (design §4.5 A5/A8). Nothing is sent while close_bssid
// is unset or equals own_addr (I7).
func (c *SteeringContext) sendClosedClient(e *ClientEntry) {
	if e.CloseBSSID == (MAC{}) || e.CloseBSSID == c.cfg.OwnAddr {
		return
	}
	w := NewFrameWriter()
	w.AppendClosedClient(e.MAC, c.cfg.LocalBSSID)
	c.frameSN++
	buf, err := w.Build(c.frameSN)
	if err != nil {
		c.logger.Warn("failed to build frame", slog.Any("err", err))
		return
	}
	c.metrics.IncTLVsSent(c.cfg.LocalBSSID.String(), "closed_client")
	if err := c.transport.Send(e.CloseBSSID, buf); err != nil {
		c.logger.Warn("send failed", slog.String("peer", e.CloseBSSID.String()), slog.Any("err", err))
	}
}

func (c *SteeringContext) blacklistAdd(mac MAC) {
	if c.cfg.Mode != ModeForce || c.actuator == nil {
		return
	}
	c.metrics.IncBlacklistOps(c.cfg.LocalBSSID.String(), "add")
	if err := c.actuator.BlacklistAdd(mac); err != nil {
		c.logger.Warn("blacklist_add failed", slog.String("client", mac.String()), slog.Any("err", err))
	}
}

func (c *SteeringContext) blacklistRemove(mac MAC) {
	if c.cfg.Mode != ModeForce || c.actuator == nil {
		return
	}
	c.metrics.IncBlacklistOps(c.cfg.LocalBSSID.String(), "remove")
	if err := c.actuator.BlacklistRemove(mac); err != nil {
		c.logger.Warn("blacklist_remove failed", slog.String("client", mac.String()), slog.Any("err", err))
	}
}

// issueDisassociation implements design §4.5 A7's dispatch rule: a
// BSS-Transition Request in Suggest mode or when the client advertises
// BSS-TM capability, a raw disassociate otherwise.
func (c *SteeringContext) issueDisassociation(e *ClientEntry) {
	if c.actuator == nil {
		return
	}

	useBSSTM := c.cfg.Mode == ModeSuggest || c.actuator.SupportsBSSTransition(e.MAC)
	if useBSSTM {
		if err := c.actuator.BSSTransitionRequest(e.MAC, e.CloseBSSID, e.RemoteChannel, 0); err != nil {
			c.logger.Warn("bss_transition_request failed", slog.String("client", e.MAC.String()), slog.Any("err", err))
		}
		return
	}

	if err := c.actuator.Disassociate(e.MAC); err != nil {
		c.logger.Warn("disassociate failed", slog.String("client", e.MAC.String()), slog.Any("err", err))
	}
}

// -------------------------------------------------------------------------
// Entry garbage collection (expansion, design §9 open question)
// -------------------------------------------------------------------------

func (c *SteeringContext) armGCSweep() {
	if c.gcTimer != nil {
		c.gcTimer.Cancel()
	}
	c.gcTimer = c.scheduler.ScheduleAfter(c.cfg.GCInterval, c.gcSweep)
}

// gcSweep removes Idle entries with a lost local_score that have had no
// activity for cfg.GCIdleWindow, then reschedules itself.
func (c *SteeringContext) gcSweep() {
	now := c.now()
	cutoff := now - c.cfg.GCIdleWindow.Nanoseconds()

	var stale []MAC
	c.clients.Range(func(e *ClientEntry) {
		if e.State == StateIdle && e.LocalScore == LostScore && !e.HasSTA() && e.LastActivity < cutoff {
			stale = append(stale, e.MAC)
		}
	})

	for _, mac := range stale {
		if e := c.clients.Find(mac); e != nil {
			c.clients.Delete(e)
		}
	}

	if len(stale) > 0 {
		c.logger.Debug("gc sweep reaped entries", slog.Int("count", len(stale)))
	}

	c.recordClientEntryGauges()
	c.armGCSweep()
}

// recordClientEntryGauges refreshes the client-entries gauge for every FSM
// state, including states now at zero so a prior nonzero reading doesn't
// linger stale in Prometheus.
func (c *SteeringContext) recordClientEntryGauges() {
	var counts [stateCount]int
	c.clients.Range(func(e *ClientEntry) { counts[e.State]++ })

	bssid := c.cfg.LocalBSSID.String()
	for s, n := range counts {
		c.metrics.SetClientEntries(bssid, State(s).String(), float64(n))
	}
}

// -------------------------------------------------------------------------
// Status snapshot (expansion)
// -------------------------------------------------------------------------

// ClientSnapshot is a read-only view of one ClientEntry, safe to hand to
// the metrics exporter or the CLI (expansion: mirrors the teacher's
// SessionSnapshot).
type ClientSnapshot struct {
	MAC             MAC
	State           State
	LocalScore      uint16
	RemoteBSSID     MAC
	CloseBSSID      MAC
	RemoteChannel   uint8
	AssociationTime int64
	Associated      bool
}

// Snapshot returns a point-in-time view of every tracked client entry.
func (c *SteeringContext) Snapshot() []ClientSnapshot {
	out := make([]ClientSnapshot, 0, c.clients.Len())
	c.clients.Range(func(e *ClientEntry) {
		out = append(out, ClientSnapshot{
			MAC:             e.MAC,
			State:           e.State,
			LocalScore:      e.LocalScore,
			RemoteBSSID:     e.RemoteBSSID,
			CloseBSSID:      e.CloseBSSID,
			RemoteChannel:   e.RemoteChannel,
			AssociationTime: e.AssociationTime,
			Associated:      e.HasSTA(),
		})
	})
	return out
}
