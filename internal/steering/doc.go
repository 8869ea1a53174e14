// Package steering implements the per-(AP,client) network steering core:
// the six-state admission/blacklist FSM, the neighbor exchange wire
// protocol (frame header, fingerprinted TLVs), score-based owner
// arbitration, and the timer fabric and client registry that bind them.
package steering
