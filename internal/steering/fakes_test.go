package steering_test

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/cococorp/netsteer/internal/steering"
	"go.uber.org/goleak"
)

// TestMain verifies no session/timer goroutine leaks across a test run,
// mirroring the metrics package's TestMain in the wider codebase.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeScheduler is a manually-advanced, deterministic steering.Scheduler.
// No goroutines are spawned; Advance runs due callbacks synchronously on
// the calling goroutine, matching design §5's single-threaded-cooperative
// model exactly.
type fakeScheduler struct {
	mu      sync.Mutex
	now     time.Duration
	pending []*fakeTimer
}

type fakeTimer struct {
	deadline  time.Duration
	fn        func()
	cancelled bool
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{}
}

func (s *fakeScheduler) ScheduleAfter(d time.Duration, fn func()) steering.TimerHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{deadline: s.now + d, fn: fn}
	s.pending = append(s.pending, t)
	return t
}

func (t *fakeTimer) Cancel() {
	t.cancelled = true
}

// Advance moves the fake clock forward by d and synchronously runs every
// timer whose deadline has now passed, in deadline order.
func (s *fakeScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	s.now += d

	due := make([]*fakeTimer, 0, len(s.pending))
	remaining := s.pending[:0:0]
	for _, t := range s.pending {
		if t.cancelled {
			continue
		}
		if t.deadline <= s.now {
			due = append(due, t)
		} else {
			remaining = append(remaining, t)
		}
	}
	s.pending = remaining
	s.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].deadline < due[j].deadline })
	for _, t := range due {
		t.fn()
	}
}

// fakeTransport records every frame sent, keyed by destination.
type fakeTransport struct {
	mu   sync.Mutex
	sent []sentFrame
}

type sentFrame struct {
	dst  steering.MAC
	data []byte
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{}
}

func (f *fakeTransport) Send(dst steering.MAC, frame []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := append([]byte(nil), frame...)
	f.sent = append(f.sent, sentFrame{dst: dst, data: cp})
	return nil
}

func (f *fakeTransport) Close() error { return nil }

func (f *fakeTransport) deliver(t *testing.T, ctx *steering.SteeringContext, src steering.MAC) {
	t.Helper()
	f.mu.Lock()
	frames := append([]sentFrame(nil), f.sent...)
	f.sent = nil
	f.mu.Unlock()
	for _, sf := range frames {
		ctx.HandleFrame(src, sf.data)
	}
}

// fakeActuator records blacklist/disassociate/BSS-TM calls.
type fakeActuator struct {
	mu              sync.Mutex
	blacklisted     map[steering.MAC]bool
	disassociated   []steering.MAC
	bssTransitions  []steering.MAC
	supportsBSSTM   map[steering.MAC]bool
}

func newFakeActuator() *fakeActuator {
	return &fakeActuator{
		blacklisted:   map[steering.MAC]bool{},
		supportsBSSTM: map[steering.MAC]bool{},
	}
}

func (a *fakeActuator) BlacklistAdd(mac steering.MAC) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.blacklisted[mac] = true
	return nil
}

func (a *fakeActuator) BlacklistRemove(mac steering.MAC) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.blacklisted, mac)
	return nil
}

func (a *fakeActuator) Disassociate(mac steering.MAC) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.disassociated = append(a.disassociated, mac)
	return nil
}

func (a *fakeActuator) BSSTransitionRequest(mac, _ steering.MAC, _ uint8, _ uint16) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.bssTransitions = append(a.bssTransitions, mac)
	return nil
}

func (a *fakeActuator) SupportsBSSTransition(mac steering.MAC) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.supportsBSSTM[mac]
}

func (a *fakeActuator) isBlacklisted(mac steering.MAC) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.blacklisted[mac]
}
