package steering

// This file implements owner arbitration (design §4.4): deciding, on
// receipt of a SCORE TLV, which event the FSM should be handed and
// whether the entry's remote-ownership bookkeeping should advance.

// ArbitrationResult is the outcome of Arbitrate: the event to dispatch
// (Arbitrate always returns exactly one), and whether
// entry.RemoteBSSID/RemoteTime were updated.
type ArbitrationResult struct {
	// Events is the ordered list of FSM events the caller must dispatch.
	// Per design §4.4 step 2, a roam-away while locally Associated yields
	// [EventDisassociated] only -- the disassociation is dispatched
	// *before* any score comparison, and the score comparison is skipped
	// entirely for this SCORE (the entry is no longer locally associated
	// once the disassociation lands, so there is nothing to compare yet;
	// the next SCORE will compare normally).
	Events []Event

	// OwnerChanged is true if RemoteBSSID/RemoteTime were updated.
	OwnerChanged bool
}

// Arbitrate implements design §4.4 for a SCORE TLV received from bssid
// reporting score for the client owning entry, with assocMsecs the
// peer-reported association age and now the local monotonic clock
// (nanoseconds since an arbitrary epoch, consistent with entry.RemoteTime
// and entry.AssociationTime).
//
// locallyAssociated must reflect entry.HasSTA() at call time; the caller
// passes it explicitly so this function stays a pure computation over its
// arguments.
func Arbitrate(entry *ClientEntry, bssid MAC, score uint16, assocMsecs uint32, now int64, locallyAssociated bool) ArbitrationResult {
	adjustedTime := now - int64(assocMsecs)*int64(1e6)

	if bssid != entry.RemoteBSSID {
		if adjustedTime > entry.RemoteTime {
			// Newer association: bssid is now the authoritative owner
			// (design §4.4 step 2).
			entry.RemoteBSSID = bssid
			entry.RemoteTime = adjustedTime

			if locallyAssociated {
				// The client roamed away while we believed we owned it --
				// dispatch Disassociated before any score comparison.
				return ArbitrationResult{Events: []Event{EventDisassociated}, OwnerChanged: true}
			}
			return ArbitrationResult{Events: []Event{CompareScore(entry.LocalScore, score)}, OwnerChanged: true}
		}
		// Older information than what we already have: dispatch the score
		// comparison without advancing remote_time/remote_bssid.
		return ArbitrationResult{Events: []Event{CompareScore(entry.LocalScore, score)}}
	}

	// bssid == entry.RemoteBSSID: the receiver already owns the freshest
	// info for this peer; dispatch the comparison directly without
	// touching RemoteTime (design §4.4 step 3).
	return ArbitrationResult{Events: []Event{CompareScore(entry.LocalScore, score)}}
}
