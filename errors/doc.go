// Package errors provides structured error types for the circuit compiler.
//
// Errors are categorized by Phase (which pass failed) and Kind (error category).
// The Error type carries the method being compiled, the gate ids involved and
// an optional cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseSSA, errors.KindInvariant).
//		Method("fib").
//		Gates(12, 17).
//		Detail("phi has %d inputs, block has %d preds", 3, 2).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Invariant(errors.PhaseCircuit, "statePredIndex %d != %d", got, want)
//	err := errors.ArenaExhausted(capacity)
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
