package steering

// This file implements the per-(AP,client) steering finite state machine
// (design §4.5). The FSM is a pure function over a transition table -- no
// side effects, no ClientEntry dependency. This mirrors the teacher's BFD
// FSM design: trivially testable and auditable against the transition
// table that is its single source of truth.
//
// State diagram (six states; see the transition table below for the full
// event matrix):
//
//	Idle --PeerIsWorse--> Confirming --ClosedClient--> Associating --Associated--> Associated
//	Idle --Associated----------------------------------------------------------> Associated
//	Associated --CloseClient--> Rejecting --Disassociated--> Rejected --Timeout--> Associating
//	Rejecting/Rejected --PeerIsWorse/PeerLostClient--> Confirming

// State is a client entry's position in the steering FSM (design §3).
type State uint8

const (
	// StateIdle is the initial state: no admission decision has been made.
	StateIdle State = iota

	// StateConfirming indicates this AP has asked a peer (the believed
	// remote owner) to close the client and is waiting for that peer to
	// either acknowledge (ClosedClient) or time out.
	StateConfirming

	// StateAssociating indicates this AP expects the client to associate
	// locally next (the believed remote owner has released it).
	StateAssociating

	// StateAssociated indicates the client is locally associated and this
	// AP currently owns it.
	StateAssociated

	// StateRejecting indicates this AP has decided to give up the client
	// (a peer has a strictly better score) and is disassociating it.
	StateRejecting

	// StateRejected indicates the client has been blacklisted locally and
	// this AP is waiting out the state-timeout before retrying admission.
	StateRejected

	// stateCount is the number of defined states, used to size per-state
	// arrays (e.g. the client-entries metrics gauge).
	stateCount
)

// stateNames maps state values to human-readable strings.
var stateNames = [...]string{
	StateIdle:        "Idle",
	StateConfirming:  "Confirming",
	StateAssociating: "Associating",
	StateAssociated:  "Associated",
	StateRejecting:   "Rejecting",
	StateRejected:    "Rejected",
}

// String returns the human-readable name of the state.
func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "Unknown"
}

// Event represents a steering FSM event (design §4.5).
type Event uint8

const (
	// EventAssociated fires when the driver reports a local association
	// (design §6: on_associate).
	EventAssociated Event = iota

	// EventDisassociated fires when the driver reports a local
	// disassociation (design §6: on_disassociate), or when owner
	// arbitration (§4.4) determines the client roamed to a newer peer
	// while we believed we owned it.
	EventDisassociated

	// EventPeerIsWorse fires when a received SCORE's score is strictly
	// worse (numerically larger) than our local_score (design §4.3).
	EventPeerIsWorse

	// EventPeerNotWorse fires when a received SCORE's score is not worse
	// than our local_score (design §4.3).
	EventPeerNotWorse

	// EventPeerLostClient fires when a received SCORE carries the
	// sentinel 0xFFFF (peer lost the client) (design §4.3, §9).
	EventPeerLostClient

	// EventCloseClient fires on a received TLV_CLOSE_CLIENT addressed to
	// our BSSID (design §4.2, §6).
	EventCloseClient

	// EventClosedClient fires on any received TLV_CLOSED_CLIENT for a
	// client already in the registry; the acknowledging BSSID is not
	// checked (design §4.2, §6).
	EventClosedClient

	// EventTimeout fires when the state-timeout timer expires
	// (design §3: armed iff state in {Rejecting, Rejected}).
	EventTimeout
)

// eventNames maps event values to human-readable strings.
var eventNames = [...]string{
	EventAssociated:     "Associated",
	EventDisassociated:  "Disassociated",
	EventPeerIsWorse:    "PeerIsWorse",
	EventPeerNotWorse:   "PeerNotWorse",
	EventPeerLostClient: "PeerLostClient",
	EventCloseClient:    "CloseClient",
	EventClosedClient:   "ClosedClient",
	EventTimeout:        "Timeout",
}

// String returns the human-readable name of the event.
func (e Event) String() string {
	if int(e) < len(eventNames) {
		return eventNames[e]
	}
	return "Unknown"
}

// Action represents a side effect to execute after an FSM transition.
// Actions are returned as part of FSMResult and executed by the caller
// (SteeringContext.dispatch). The FSM itself is a pure function.
type Action uint8

const (
	// ActionStartFlood starts the periodic score-flood timer, 1s period
	// (design §4.5 A1, §4.6).
	ActionStartFlood Action = iota + 1

	// ActionSendClose emits one TLV_CLOSE_CLIENT to all peers, target =
	// current remote_bssid (design §4.5 A2).
	ActionSendClose

	// ActionBlacklistArmTimeout blacklists the client (Force mode only)
	// and arms the 10s state-timeout timer (design §4.5 A3).
	ActionBlacklistArmTimeout

	// ActionCloseBlacklistArmTimeout emits TLV_CLOSE_CLIENT, then
	// blacklists and arms the state-timeout (design §4.5 A4).
	ActionCloseBlacklistArmTimeout

	// ActionAckBlacklistArmTimeout emits TLV_CLOSED_CLIENT acknowledging
	// close_bssid, blacklists, and arms the state-timeout (design §4.5
	// A5).
	ActionAckBlacklistArmTimeout

	// ActionStopFloodLoseScore stops the score-flood timer and sets
	// local_score to the sentinel 0xFFFF (design §4.5 A6).
	ActionStopFloodLoseScore

	// ActionDisassociatePeer blacklists and disassociates the client
	// (BSS-Transition Request or raw disassociate depending on mode/
	// capability), arms the state-timeout, stops the flood timer
	// (design §4.5 A7).
	ActionDisassociatePeer

	// ActionAckCloseArmTimeout emits TLV_CLOSED_CLIENT to close_bssid and
	// (re)arms the state-timeout, entering Rejected (design §4.5 A8).
	ActionAckCloseArmTimeout

	// ActionUnblacklistSendClose unblacklists, emits TLV_CLOSE_CLIENT,
	// cancels the state-timeout (design §4.5 A9).
	ActionUnblacklistSendClose

	// ActionUnblacklistCancelTimeout unblacklists and cancels the
	// state-timeout (design §4.5 A10).
	ActionUnblacklistCancelTimeout

	// ActionSendCloseRetry re-emits TLV_CLOSE_CLIENT (design §4.5 A11).
	ActionSendCloseRetry
)

// actionNames maps action values to human-readable strings.
var actionNames = [...]string{
	ActionStartFlood:               "StartFlood",
	ActionSendClose:                "SendClose",
	ActionBlacklistArmTimeout:      "BlacklistArmTimeout",
	ActionCloseBlacklistArmTimeout: "CloseBlacklistArmTimeout",
	ActionAckBlacklistArmTimeout:   "AckBlacklistArmTimeout",
	ActionStopFloodLoseScore:       "StopFloodLoseScore",
	ActionDisassociatePeer:         "DisassociatePeer",
	ActionAckCloseArmTimeout:       "AckCloseArmTimeout",
	ActionUnblacklistSendClose:     "UnblacklistSendClose",
	ActionUnblacklistCancelTimeout: "UnblacklistCancelTimeout",
	ActionSendCloseRetry:           "SendCloseRetry",
}

// String returns the human-readable name of the action.
func (a Action) String() string {
	if int(a) < len(actionNames) && actionNames[a] != "" {
		return actionNames[a]
	}
	return "Unknown"
}

// stateEvent is the FSM transition table key: current state + incoming
// event.
type stateEvent struct {
	state State
	event Event
}

// transition describes the target state and side effects for a single FSM
// transition.
type transition struct {
	newState State
	actions  []Action
}

// FSMResult holds the outcome of applying an event to the FSM. The caller
// inspects Changed to decide whether state-change processing (logging,
// metrics, notifications) is needed.
type FSMResult struct {
	// OldState is the state before the event was applied.
	OldState State

	// NewState is the state after the event was applied. Equal to
	// OldState when the event is ignored or a self-loop.
	NewState State

	// Actions lists the side effects the caller must execute, in order.
	// Empty when the event is ignored or the transition carries none.
	Actions []Action

	// Changed is true when NewState differs from OldState. Self-loops
	// (e.g. Associated + PeerIsWorse -> Associated) have Changed=true
	// only when the literal state value differs; same-state re-entries
	// with actions (A2 on self-loops) are still dispatched.
	Changed bool
}

// fsmTable is the complete steering FSM transition table (design §4.5).
// Every (state, event) pair listed here is a valid transition. Unlisted
// pairs are silently ignored: no state change, no actions.
//
//nolint:gochecknoglobals // FSM transition table is intentionally package-level.
var fsmTable = map[stateEvent]transition{
	// ===================================================================
	// Idle
	// ===================================================================
	{StateIdle, EventAssociated}:     {StateAssociated, []Action{ActionStartFlood}},
	{StateIdle, EventPeerIsWorse}:    {StateConfirming, []Action{ActionSendClose}},
	{StateIdle, EventPeerNotWorse}:   {StateRejected, []Action{ActionBlacklistArmTimeout}},
	{StateIdle, EventPeerLostClient}: {StateAssociating, nil},
	{StateIdle, EventCloseClient}:    {StateRejected, []Action{ActionCloseBlacklistArmTimeout}},

	// ===================================================================
	// Confirming
	// ===================================================================
	{StateConfirming, EventAssociated}:   {StateAssociated, []Action{ActionStartFlood}},
	{StateConfirming, EventPeerIsWorse}:  {StateConfirming, []Action{ActionSendClose}},
	{StateConfirming, EventClosedClient}: {StateAssociating, nil},
	{StateConfirming, EventTimeout}:      {StateIdle, nil},

	// ===================================================================
	// Associating
	// ===================================================================
	{StateAssociating, EventAssociated}:    {StateAssociated, []Action{ActionStartFlood}},
	{StateAssociating, EventDisassociated}: {StateIdle, nil},
	{StateAssociating, EventPeerIsWorse}:   {StateAssociating, []Action{ActionSendClose}},
	{StateAssociating, EventCloseClient}:   {StateRejected, []Action{ActionAckBlacklistArmTimeout}},

	// ===================================================================
	// Associated
	// ===================================================================
	{StateAssociated, EventDisassociated}: {StateIdle, []Action{ActionStopFloodLoseScore}},
	{StateAssociated, EventPeerIsWorse}:   {StateAssociated, []Action{ActionSendClose}},
	{StateAssociated, EventCloseClient}:   {StateRejecting, []Action{ActionDisassociatePeer}},

	// ===================================================================
	// Rejecting
	// ===================================================================
	{StateRejecting, EventDisassociated}:  {StateRejected, []Action{ActionAckCloseArmTimeout}},
	{StateRejecting, EventPeerIsWorse}:    {StateConfirming, []Action{ActionUnblacklistSendClose}},
	{StateRejecting, EventPeerLostClient}: {StateConfirming, []Action{ActionUnblacklistCancelTimeout}},
	{StateRejecting, EventCloseClient}:    {StateRejecting, nil},
	{StateRejecting, EventTimeout}:        {StateAssociating, []Action{ActionUnblacklistCancelTimeout}},

	// ===================================================================
	// Rejected
	// ===================================================================
	{StateRejected, EventPeerIsWorse}:    {StateConfirming, []Action{ActionUnblacklistSendClose}},
	{StateRejected, EventPeerLostClient}: {StateConfirming, []Action{ActionUnblacklistSendClose}},
	{StateRejected, EventCloseClient}:    {StateRejected, []Action{ActionSendCloseRetry}},
	{StateRejected, EventTimeout}:        {StateAssociating, []Action{ActionUnblacklistCancelTimeout}},
}

// ApplyEvent applies an FSM event to the given state and returns the
// result.
//
// This is a pure function with no side effects. The caller is responsible
// for executing the returned actions (arming/cancelling timers, sending
// TLVs, calling the blacklist/disassociate/BSS-TM actuators). If the
// (state, event) pair has no entry in the transition table, the event is
// silently ignored and FSMResult.Changed is false with an empty action
// list.
//
// Ordering note (design §9): the action list is attributed to the OLD
// state -- the caller must run the actions before officially committing
// NewState, so externally observable effects during the action are
// attributed to the state the entry was in when the event arrived.
func ApplyEvent(currentState State, event Event) FSMResult {
	key := stateEvent{state: currentState, event: event}

	tr, ok := fsmTable[key]
	if !ok {
		return FSMResult{
			OldState: currentState,
			NewState: currentState,
			Actions:  nil,
			Changed:  false,
		}
	}

	return FSMResult{
		OldState: currentState,
		NewState: tr.newState,
		Actions:  tr.actions,
		Changed:  currentState != tr.newState,
	}
}
