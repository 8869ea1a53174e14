package steering

import "time"

// This file implements the timer fabric (design §2 component 6, §3, §5,
// §8 I1-I3): three timer kinds per client -- score-flood, state-timeout,
// probe-loss -- plus the arm/cancel discipline that keeps the §3
// invariants true after every transition.
//
// The core never calls time.AfterFunc directly: per design §1 the
// cooperative event loop providing schedule_after(delay, callback) /
// cancel(callback) is an external collaborator, named only by the
// interface it exposes. Scheduler is that interface.

// Timer periods fixed by design §4.5/§4.6/§4.7.
const (
	// FloodPeriod is the score-flood timer period, armed iff
	// state == Associated (design §3, §4.5 A1, §4.6).
	FloodPeriod = 1 * time.Second

	// StateTimeoutPeriod is the state-timeout timer period, armed iff
	// state in {Rejecting, Rejected} (design §3, §4.5 A3/A4/A5/A8).
	StateTimeoutPeriod = 10 * time.Second

	// ProbeLossPeriod is the probe-loss timer period, armed iff no STA
	// handle is present (design §3, §4.7).
	ProbeLossPeriod = 34 * time.Second
)

// TimerHandle is a single scheduled, cancellable callback. Cancellation is
// idempotent (design §5): calling Cancel more than once, or after the
// callback has already fired, is a no-op.
type TimerHandle interface {
	Cancel()
}

// Scheduler is the cooperative event loop's scheduling surface (design
// §1, §5, §9): ScheduleAfter arranges for fn to run once, after delay,
// serialized with every other callback dispatched through the same
// scheduler -- the core relies on this serialization to stay lock-free.
type Scheduler interface {
	ScheduleAfter(delay time.Duration, fn func()) TimerHandle
}

// entryTimers holds the (at most one armed at a time per §8 I1, subject
// to the §3 invariants) set of timer handles for a single ClientEntry.
// Zero value is "nothing armed".
type entryTimers struct {
	flood        TimerHandle
	stateTimeout TimerHandle
	probeLoss    TimerHandle
}

// cancelAll cancels every armed timer. Called by ClientRegistry.Delete
// before an entry is released (design §5, §9): timer callbacks hold raw
// references into registry storage by MAC, so cancellation must happen
// before the entry identity becomes invalid.
func (t *entryTimers) cancelAll() {
	t.cancelFlood()
	t.cancelStateTimeout()
	t.cancelProbeLoss()
}

func (t *entryTimers) cancelFlood() {
	if t.flood != nil {
		t.flood.Cancel()
		t.flood = nil
	}
}

func (t *entryTimers) cancelStateTimeout() {
	if t.stateTimeout != nil {
		t.stateTimeout.Cancel()
		t.stateTimeout = nil
	}
}

func (t *entryTimers) cancelProbeLoss() {
	if t.probeLoss != nil {
		t.probeLoss.Cancel()
		t.probeLoss = nil
	}
}

// armFlood (re)arms the score-flood timer, cancelling any outstanding one
// first (design §5: "any operation that may re-fire a timer must first
// cancel the outstanding one to avoid duplicates").
func (t *entryTimers) armFlood(sched Scheduler, fn func()) {
	t.cancelFlood()
	t.flood = sched.ScheduleAfter(FloodPeriod, fn)
}

// armStateTimeout (re)arms the state-timeout timer.
func (t *entryTimers) armStateTimeout(sched Scheduler, fn func()) {
	t.cancelStateTimeout()
	t.stateTimeout = sched.ScheduleAfter(StateTimeoutPeriod, fn)
}

// armProbeLoss (re)arms the probe-loss timer.
func (t *entryTimers) armProbeLoss(sched Scheduler, fn func()) {
	t.cancelProbeLoss()
	t.probeLoss = sched.ScheduleAfter(ProbeLossPeriod, fn)
}

// realTimerHandle adapts *time.Timer to TimerHandle.
type realTimerHandle struct {
	timer *time.Timer
}

func (h *realTimerHandle) Cancel() {
	h.timer.Stop()
}

// realScheduler is the production Scheduler: it schedules callbacks with
// time.AfterFunc but runs them through post so they are serialized onto
// the owning SteeringContext's single dispatch goroutine, preserving the
// single-threaded-cooperative model of design §5 even though the
// underlying timer fires on its own goroutine.
type realScheduler struct {
	post func(func())
}

// NewRealScheduler returns a Scheduler backed by the Go runtime's timers,
// marshalling every fired callback through post. post is expected to
// enqueue fn for execution on the context's dispatch goroutine (see
// dispatcher.run in cmd/netsteerd) rather than run it inline.
func NewRealScheduler(post func(func())) Scheduler {
	return &realScheduler{post: post}
}

func (s *realScheduler) ScheduleAfter(delay time.Duration, fn func()) TimerHandle {
	t := time.AfterFunc(delay, func() {
		s.post(fn)
	})
	return &realTimerHandle{timer: t}
}
