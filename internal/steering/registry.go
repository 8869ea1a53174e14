package steering

import "fmt"

// LostScore already defines the "no data" sentinel (packet.go). ClientEntry
// and the registry below implement the data model of design §3 and the
// registry operations of §4.1.

// MAC is a 6-byte hardware address, used as the client registry key and
// throughout the protocol codec.
type MAC [6]byte

// String renders the MAC in the conventional colon-separated hex form.
func (m MAC) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", m[0], m[1], m[2], m[3], m[4], m[5])
}

// ClientEntry is the per-client-MAC record described by design §3. It is
// exclusively owned by the ClientRegistry; timer callbacks reference an
// entry by its MAC (a stable identifier), not by pointer, so that a
// deleted entry can never be observed by a stale callback (design §9).
type ClientEntry struct {
	// MAC is the client's hardware address; the registry key.
	MAC MAC

	// State is the entry's current steering FSM state. Initial Idle.
	State State

	// LocalScore is this AP's 16-bit score for the client, smaller=better.
	// LostScore (0xFFFF) means "no/lost score".
	LocalScore uint16

	// RemoteBSSID is the BSSID currently believed to own this client, or
	// the zero MAC if none.
	RemoteBSSID MAC

	// RemoteTime is the monotonic timestamp (nanoseconds since an
	// arbitrary epoch) adjusted by the association age reported by
	// RemoteBSSID; used to arbitrate newer information (design §4.4).
	RemoteTime int64

	// CloseBSSID is the BSSID that last asked us to close this client --
	// the target of the next CLOSED_CLIENT we must send.
	CloseBSSID MAC

	// RemoteChannel is CloseBSSID's channel, used for BSS-Transition
	// hints.
	RemoteChannel uint8

	// AssociationTime is the monotonic timestamp of local association,
	// meaningful only while StaHandle is present.
	AssociationTime int64

	// StaHandle is an opaque handle to the driver's STA record, present
	// iff the client is locally associated.
	StaHandle any

	// LastActivity is the monotonic timestamp of the most recent probe,
	// association, or received SCORE/CLOSE/CLOSED touching this entry.
	// Used only by the entry garbage-collection sweep (expansion).
	LastActivity int64

	// timers holds this entry's three timer handles (score-flood,
	// state-timeout, probe-loss). Owned by the registry/context timer
	// fabric (timers.go); nil until armed.
	timers entryTimers
}

// HasSTA reports whether the entry has a locally associated STA handle.
func (e *ClientEntry) HasSTA() bool {
	return e.StaHandle != nil
}

// ClientRegistry is the mapping client_mac -> ClientEntry owned by a
// SteeringContext (design §4.1). Linear MAC-equality lookup is specified
// by design; a map gives the same semantics with better complexity
// without changing observable behavior.
type ClientRegistry struct {
	entries map[MAC]*ClientEntry
}

// NewClientRegistry returns an empty registry.
func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{entries: make(map[MAC]*ClientEntry)}
}

// Find returns the entry for mac, or nil if none exists (design §4.1:
// find(mac) -> Entry?).
func (r *ClientRegistry) Find(mac MAC) *ClientEntry {
	return r.entries[mac]
}

// Create returns a zero-initialized entry for mac with State=Idle,
// LocalScore=LostScore, added to the registry (design §4.1: create(mac) ->
// Entry). If an entry already exists for mac it is returned unchanged --
// callers are expected to Find first when they need to distinguish
// creation from lookup.
func (r *ClientRegistry) Create(mac MAC) *ClientEntry {
	if e, ok := r.entries[mac]; ok {
		return e
	}
	e := &ClientEntry{
		MAC:        mac,
		State:      StateIdle,
		LocalScore: LostScore,
	}
	r.entries[mac] = e
	return e
}

// Delete cancels all three timers for entry, unlinks it from the
// registry, and releases it (design §4.1: delete(entry)). Per design §5,
// timers MUST be cancelled before the entry is released since timer
// callbacks hold raw references into registry storage by MAC.
func (r *ClientRegistry) Delete(entry *ClientEntry) {
	if entry == nil {
		return
	}
	entry.timers.cancelAll()
	delete(r.entries, entry.MAC)
}

// Len returns the number of entries currently tracked.
func (r *ClientRegistry) Len() int {
	return len(r.entries)
}

// Range calls fn for every entry currently in the registry. fn must not
// mutate the registry (delete entries) while ranging; collect a list of
// candidates and delete afterward instead.
func (r *ClientRegistry) Range(fn func(*ClientEntry)) {
	for _, e := range r.entries {
		fn(e)
	}
}
