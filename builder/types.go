package builder

import (
	"github.com/wippyai/circuit/bytecode"
	"github.com/wippyai/circuit/gate"
)

// TypeRecorder supplies type evidence per bytecode index.
type TypeRecorder interface {
	// TypeAt returns the type of the value produced at bcIndex.
	TypeAt(bcIndex int) gate.GateType
	// UpdateType refines hint as it flows backward through a copy at bcIndex.
	UpdateType(bcIndex int, hint gate.GateType) gate.GateType
}

// OpcodeTypes derives types from opcodes, overridden per bytecode index
// by Recorded (for example from a type profile).
type OpcodeTypes struct {
	Method   *bytecode.Method
	Recorded map[int]gate.GateType
}

func (t OpcodeTypes) TypeAt(bcIndex int) gate.GateType {
	if gt, ok := t.Recorded[bcIndex]; ok {
		return gt
	}
	switch t.Method.Instructions[bcIndex].Op {
	case bytecode.OpAdd2, bytecode.OpSub2, bytecode.OpMul2, bytecode.OpDiv2, bytecode.OpMod2,
		bytecode.OpInc, bytecode.OpDec, bytecode.OpNeg:
		return gate.NumberType
	case bytecode.OpLess, bytecode.OpGreater, bytecode.OpEq, bytecode.OpStrictEq,
		bytecode.OpNot, bytecode.OpIsTrue, bytecode.OpIsFalse:
		return gate.BooleanType
	case bytecode.OpTypeof, bytecode.OpLdaStr:
		return gate.StringType
	}
	return gate.AnyType
}

// UpdateType narrows hint to the type recorded at a copy, if any.
func (t OpcodeTypes) UpdateType(bcIndex int, hint gate.GateType) gate.GateType {
	if gt, ok := t.Recorded[bcIndex]; ok && gt.IsConcrete() {
		return gt
	}
	return hint
}

func (b *builder) typeAt(bcIndex int) gate.GateType {
	if b.types == nil {
		return gate.AnyType
	}
	return b.types.TypeAt(bcIndex)
}

func (b *builder) updateType(bcIndex int, hint gate.GateType) gate.GateType {
	if b.types == nil {
		return hint
	}
	return b.types.UpdateType(bcIndex, hint)
}

// annotate refines an untyped def with a concrete hint carried through copies.
func (b *builder) annotate(ref gate.Ref, hint gate.GateType) {
	if b.circuit.GateType(ref) == gate.AnyType && hint.IsConcrete() {
		b.circuit.SetGateType(ref, hint)
	}
}
