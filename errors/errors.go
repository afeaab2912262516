package errors

import (
	"fmt"
	"strconv"
	"strings"
)

// Phase indicates which pass produced the error
type Phase string

const (
	PhaseDecode    Phase = "decode"    // method validation
	PhaseAssemble  Phase = "assemble"  // text assembler
	PhaseRegion    Phase = "region"    // basic block partitioning
	PhaseDominator Phase = "dominator" // dominator tree and frontiers
	PhaseSSA       Phase = "ssa"       // phi insertion and def resolution
	PhaseCircuit   Phase = "circuit"   // gate emission
	PhaseSchedule  Phase = "schedule"  // block placement
	PhaseVerify    Phase = "verify"    // circuit verifier
	PhaseConfig    Phase = "config"    // configuration loading
	PhaseCache     Phase = "cache"     // compile cache
)

// Kind categorizes the error
type Kind string

const (
	KindInvariant      Kind = "invariant"
	KindArenaExhausted Kind = "arena_exhausted"
	KindMissingCatch   Kind = "missing_catch"
	KindInvalidInput   Kind = "invalid_input"
	KindUnsupported    Kind = "unsupported"
	KindNotFound       Kind = "not_found"
	KindUnsound        Kind = "unsound"
	KindCycle          Kind = "cycle"
	KindIrreducible    Kind = "irreducible"
	KindBounds         Kind = "bounds"
	KindSyntax         Kind = "syntax"
	KindIO             Kind = "io"
)

// Error is the structured error type used throughout the compiler
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Method string
	Detail string
	Gates  []uint32
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Method != "" {
		b.WriteString(" in ")
		b.WriteString(e.Method)
	}

	if len(e.Gates) > 0 {
		b.WriteString(" at gates ")
		for i, id := range e.Gates {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.FormatUint(uint64(id), 10))
		}
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Method sets the method being compiled
func (b *Builder) Method(name string) *Builder {
	b.err.Method = name
	return b
}

// Gates sets the gate ids involved
func (b *Builder) Gates(ids ...uint32) *Builder {
	b.err.Gates = ids
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Invariant creates an internal invariant violation error
func Invariant(phase Phase, format string, args ...any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvariant,
		Detail: fmt.Sprintf(format, args...),
	}
}

// ArenaExhausted creates an arena capacity error
func ArenaExhausted(capacity int) *Error {
	return &Error{
		Phase:  PhaseCircuit,
		Kind:   KindArenaExhausted,
		Detail: fmt.Sprintf("gate arena capacity %d exceeded", capacity),
		Value:  capacity,
	}
}

// MissingCatch creates an error for a catch handler pc with no block
func MissingCatch(pc uint32) *Error {
	return &Error{
		Phase:  PhaseRegion,
		Kind:   KindMissingCatch,
		Detail: fmt.Sprintf("no block starts at catch handler pc %d", pc),
		Value:  pc,
	}
}

// InvalidInput creates an error for malformed input
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// Unsound creates a verifier failure error for a method
func Unsound(method string) *Error {
	return &Error{
		Phase:  PhaseVerify,
		Kind:   KindUnsound,
		Method: method,
		Detail: "circuit failed verification",
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// InMethod attributes err to a method. An *Error without a method is
// copied with the name filled in; anything else is returned unchanged.
func InMethod(err error, method string) error {
	e, ok := err.(*Error)
	if !ok || e.Method != "" {
		return err
	}
	cp := *e
	cp.Method = method
	return &cp
}
