package builder

import "github.com/wippyai/circuit/gate"

// Common arguments precede the declared parameters in the arg list.
const (
	ArgLexEnv = iota
	ArgFunc
	ArgNewTarget
	ArgThis
	NumCommonArgs
)

type argGates struct {
	common [NumCommonArgs]gate.Ref
	params []gate.Ref
}

// newArgs creates the arg gates of a method with numParams parameters.
func (b *builder) newArgs(numParams int) {
	for i := range b.args.common {
		b.args.common[i] = b.mustGate(b.circuit.NewArg(i, gate.I64, gate.AnyType))
	}
	b.args.params = make([]gate.Ref, numParams)
	for i := range b.args.params {
		b.args.params[i] = b.mustGate(b.circuit.NewArg(NumCommonArgs+i, gate.I64, gate.AnyType))
	}
}

// CommonArg returns the gate of one of the common arguments.
func (r *Result) CommonArg(index int) gate.Ref {
	return r.args.common[index]
}

// Param returns the gate of declared parameter i.
func (r *Result) Param(i int) gate.Ref {
	return r.args.params[i]
}
