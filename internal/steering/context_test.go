package steering_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/cococorp/netsteer/internal/steering"
)

func snapshotFor(ctx *steering.SteeringContext, mac steering.MAC) (steering.ClientSnapshot, bool) {
	for _, s := range ctx.Snapshot() {
		if s.MAC == mac {
			return s, true
		}
	}
	return steering.ClientSnapshot{}, false
}

func newTestContext(t *testing.T, cfg steering.Config, sched *fakeScheduler, transport *fakeTransport, act *fakeActuator, clock *int64) *steering.SteeringContext {
	t.Helper()
	ctx, err := steering.NewSteeringContext(cfg, sched, transport, act, nil)
	if err != nil {
		t.Fatalf("NewSteeringContext: %v", err)
	}
	ctx.SetClock(func() int64 { return atomic.LoadInt64(clock) })
	t.Cleanup(func() { _ = ctx.Deinit() })
	return ctx
}

// TestOnAssociateStartsFloodAndEmitsInitialScore covers design §6
// on_associate and §4.6's "emits initial SCORE" requirement, plus I7.
func TestOnAssociateStartsFloodAndEmitsInitialScore(t *testing.T) {
	t.Parallel()

	macA := steering.MAC{0xA}
	macB := steering.MAC{0xB}
	clientK := steering.MAC{0xC}
	clock := time.Now().UnixNano()

	sched := newFakeScheduler()
	transport := newFakeTransport()
	act := newFakeActuator()

	ctx := newTestContext(t, steering.Config{
		LocalBSSID: macA,
		OwnAddr:    macA,
		Channel:    1,
		Mode:       steering.ModeForce,
		Peers:      []steering.MAC{macA, macB}, // own addr included to exercise I7
	}, sched, transport, act, &clock)

	ctx.OnAssociate(clientK, "sta-1", -40)

	snap, ok := snapshotFor(ctx, clientK)
	if !ok {
		t.Fatalf("no snapshot entry for client")
	}
	if snap.State != steering.StateAssociated {
		t.Fatalf("state = %s, want Associated", snap.State)
	}
	if snap.LocalScore != 40 {
		t.Fatalf("LocalScore = %d, want 40", snap.LocalScore)
	}

	if len(transport.sent) == 0 {
		t.Fatalf("expected an initial SCORE emission on association")
	}
	for _, sf := range transport.sent {
		if sf.dst == macA {
			t.Fatalf("I7 violated: frame sent to own_addr %v", sf.dst)
		}
	}
}

func TestProbeLossExpirySetsLostScore(t *testing.T) {
	t.Parallel()

	macA := steering.MAC{0xA}
	clientK := steering.MAC{0xC}
	clock := time.Now().UnixNano()

	sched := newFakeScheduler()
	transport := newFakeTransport()
	act := newFakeActuator()

	ctx := newTestContext(t, steering.Config{
		LocalBSSID: macA,
		OwnAddr:    macA,
		Channel:    1,
		Mode:       steering.ModeForce,
		Peers:      []steering.MAC{macA, {0xB}},
	}, sched, transport, act, &clock)

	ctx.OnProbe(clientK, macA, -50)

	snap, ok := snapshotFor(ctx, clientK)
	if !ok || snap.LocalScore != 50 {
		t.Fatalf("snapshot after probe = %+v, ok=%v, want LocalScore=50", snap, ok)
	}

	atomic.AddInt64(&clock, int64(steering.ProbeLossPeriod))
	sched.Advance(steering.ProbeLossPeriod)

	snap, ok = snapshotFor(ctx, clientK)
	if !ok || snap.LocalScore != steering.LostScore {
		t.Fatalf("snapshot after probe-loss expiry = %+v, ok=%v, want LocalScore=LostScore", snap, ok)
	}
}

// TestRoamHandoffScenario reproduces design §8 scenario 1 end-to-end
// across two cooperating contexts.
func TestRoamHandoffScenario(t *testing.T) {
	t.Parallel()

	macA := steering.MAC{0xA}
	macB := steering.MAC{0xB}
	clientK := steering.MAC{0xC}
	clock := time.Now().UnixNano()

	schedA, schedB := newFakeScheduler(), newFakeScheduler()
	transportA, transportB := newFakeTransport(), newFakeTransport()
	actA, actB := newFakeActuator(), newFakeActuator()

	peers := []steering.MAC{macA, macB}

	ctxA := newTestContext(t, steering.Config{LocalBSSID: macA, OwnAddr: macA, Channel: 1, Mode: steering.ModeForce, Peers: peers}, schedA, transportA, actA, &clock)
	ctxB := newTestContext(t, steering.Config{LocalBSSID: macB, OwnAddr: macB, Channel: 6, Mode: steering.ModeForce, Peers: peers}, schedB, transportB, actB, &clock)

	advance := func(d time.Duration) {
		atomic.AddInt64(&clock, int64(d))
		schedA.Advance(d)
		schedB.Advance(d)
	}

	// K associates to A at RSSI -40 (score 40).
	ctxA.OnAssociate(clientK, "sta-a", -40)

	// B has recently seen K's probe at RSSI -30 (score 30).
	ctxB.OnProbe(clientK, macB, -30)

	// After 1s, A floods SCORE to its peers; deliver A's frame(s) to B.
	advance(1 * time.Second)
	transportA.deliver(t, ctxB, macA)

	snapB, ok := snapshotFor(ctxB, clientK)
	if !ok {
		t.Fatalf("B has no entry for client after receiving SCORE")
	}
	if snapB.State != steering.StateConfirming {
		t.Fatalf("B state = %s, want Confirming", snapB.State)
	}

	// B's CLOSE_CLIENT(target=A) reaches A.
	transportB.deliver(t, ctxA, macB)

	snapA, ok := snapshotFor(ctxA, clientK)
	if !ok {
		t.Fatalf("A has no entry for client")
	}
	if snapA.State != steering.StateRejecting {
		t.Fatalf("A state = %s, want Rejecting", snapA.State)
	}
	if !actA.isBlacklisted(clientK) {
		t.Fatalf("A did not blacklist the client in Force mode")
	}
	if len(actA.disassociated) != 1 {
		t.Fatalf("A did not disassociate the client")
	}

	// K disassociates from A; A acks with CLOSED_CLIENT and enters Rejected.
	ctxA.OnDisassociate(clientK)
	snapA, _ = snapshotFor(ctxA, clientK)
	if snapA.State != steering.StateRejected {
		t.Fatalf("A state after disassociate = %s, want Rejected", snapA.State)
	}

	transportA.deliver(t, ctxB, macA)
	snapB, _ = snapshotFor(ctxB, clientK)
	if snapB.State != steering.StateAssociating {
		t.Fatalf("B state after CLOSED_CLIENT = %s, want Associating", snapB.State)
	}

	// K associates to B.
	ctxB.OnAssociate(clientK, "sta-b", -30)
	snapB, _ = snapshotFor(ctxB, clientK)
	if snapB.State != steering.StateAssociated {
		t.Fatalf("B final state = %s, want Associated", snapB.State)
	}
}

// TestNoWorsePeerTimesOutToAssociating reproduces design §8 scenario 2.
func TestNoWorsePeerTimesOutToAssociating(t *testing.T) {
	t.Parallel()

	macA := steering.MAC{0xA}
	macB := steering.MAC{0xB}
	clientK := steering.MAC{0xC}
	clock := time.Now().UnixNano()

	sched := newFakeScheduler()
	transport := newFakeTransport()
	act := newFakeActuator()

	ctx := newTestContext(t, steering.Config{LocalBSSID: macA, OwnAddr: macA, Channel: 1, Mode: steering.ModeForce, Peers: []steering.MAC{macA, macB}}, sched, transport, act, &clock)

	// A's own (unassociated) score is 40, from a probe.
	ctx.OnProbe(clientK, macA, -40)

	w := steering.NewFrameWriter()
	w.AppendScore(clientK, macB, 30, 0)
	buf, err := w.Build(1)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	ctx.HandleFrame(macB, buf)

	snap, ok := snapshotFor(ctx, clientK)
	if !ok || snap.State != steering.StateRejected {
		t.Fatalf("state after PeerNotWorse = %+v (ok=%v), want Rejected", snap, ok)
	}
	if !act.isBlacklisted(clientK) {
		t.Fatalf("expected blacklist_add on entering Rejected in Force mode")
	}

	atomic.AddInt64(&clock, int64(steering.StateTimeoutPeriod))
	sched.Advance(steering.StateTimeoutPeriod)

	snap, ok = snapshotFor(ctx, clientK)
	if !ok || snap.State != steering.StateAssociating {
		t.Fatalf("state after timeout = %+v (ok=%v), want Associating", snap, ok)
	}
	if act.isBlacklisted(clientK) {
		t.Fatalf("expected blacklist_remove on state-timeout")
	}
}

// TestSuggestModeUsesBSSTransitionNotBlacklist reproduces design §8
// scenario 5.
func TestSuggestModeUsesBSSTransitionNotBlacklist(t *testing.T) {
	t.Parallel()

	macA := steering.MAC{0xA}
	macB := steering.MAC{0xB}
	clientK := steering.MAC{0xC}
	clock := time.Now().UnixNano()

	sched := newFakeScheduler()
	transport := newFakeTransport()
	act := newFakeActuator()
	act.supportsBSSTM[clientK] = true

	ctx := newTestContext(t, steering.Config{LocalBSSID: macA, OwnAddr: macA, Channel: 1, Mode: steering.ModeSuggest, Peers: []steering.MAC{macA, macB}}, sched, transport, act, &clock)

	ctx.OnAssociate(clientK, "sta-1", -40)

	w := steering.NewFrameWriter()
	w.AppendCloseClient(clientK, macB, macA, 6)
	buf, err := w.Build(1)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	ctx.HandleFrame(macB, buf)

	snap, ok := snapshotFor(ctx, clientK)
	if !ok || snap.State != steering.StateRejecting {
		t.Fatalf("state = %+v (ok=%v), want Rejecting", snap, ok)
	}
	if act.isBlacklisted(clientK) {
		t.Fatalf("blacklist_add must not be called outside Force mode")
	}
	if len(act.disassociated) != 0 {
		t.Fatalf("expected no raw disassociate in Suggest mode, got %v", act.disassociated)
	}
	if len(act.bssTransitions) != 1 || act.bssTransitions[0] != clientK {
		t.Fatalf("expected a BSS-Transition Request for the client, got %v", act.bssTransitions)
	}
}

func TestInertContextIgnoresEverything(t *testing.T) {
	t.Parallel()

	macA := steering.MAC{0xA}
	clientK := steering.MAC{0xC}
	clock := time.Now().UnixNano()

	ctx := newTestContext(t, steering.Config{LocalBSSID: macA, OwnAddr: macA, Mode: steering.ModeOff}, nil, nil, nil, &clock)

	ctx.OnAssociate(clientK, "sta-1", -40)
	if _, ok := snapshotFor(ctx, clientK); ok {
		t.Fatalf("inert context created an entry")
	}
}
