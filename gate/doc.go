// Package gate implements the Circuit: an append-only arena of gates forming
// a sea-of-nodes graph.
//
// Every gate has four input zones in fixed order:
//
//	[ state ... | depend ... | value ... | root ]
//
// Zone sizes come from the gate's Meta and never change except through
// DecreaseIn. Each gate also keeps the list of its uses (gate, input index),
// maintained by the edge mutation methods on Circuit, which are the only
// way to change an edge once a gate exists.
//
// Gates are addressed by Ref. Allocation past the circuit's capacity
// returns Null; callers must check and abort the compilation unit.
// DeleteGate tombstones a gate as Nop and never reclaims its slot.
package gate
