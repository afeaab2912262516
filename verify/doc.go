// Package verify checks the structural soundness of a finished circuit.
//
// The verifier never repairs anything. Run executes the checks in a fixed
// order and stops at the first failing one; each violated relationship is
// logged at error level as a short proof naming the gates involved:
//
//	CFG is not sound
//	  (id=17) is pred of (id=21)
//	  (id=21) is reachable from entry
//	  (id=17) is unreachable from entry
//
// A false result means the circuit must not be handed to later stages.
package verify
