package gate

import (
	"fmt"

	"github.com/wippyai/circuit/bytecode"
)

// OpCode is the operation of a gate.
type OpCode uint8

const (
	OpNop OpCode = iota
	OpCircuitRoot
	OpStateEntry
	OpDependEntry
	OpArgList
	OpReturnList
	OpArg
	OpConstant
	OpConstData
	OpMerge
	OpLoopBegin
	OpLoopBack
	OpIfBranch
	OpIfTrue
	OpIfFalse
	OpIfSuccess
	OpIfException
	OpReturn
	OpDependSelector
	OpValueSelector
	OpDependRelay
	OpJSBytecode
	OpGetException
	OpSaveRegister
	OpRestoreRegister
	OpUpdateHotness
)

var opNames = [...]string{
	OpNop:             "NOP",
	OpCircuitRoot:     "CIRCUIT_ROOT",
	OpStateEntry:      "STATE_ENTRY",
	OpDependEntry:     "DEPEND_ENTRY",
	OpArgList:         "ARG_LIST",
	OpReturnList:      "RETURN_LIST",
	OpArg:             "ARG",
	OpConstant:        "CONSTANT",
	OpConstData:       "CONST_DATA",
	OpMerge:           "MERGE",
	OpLoopBegin:       "LOOP_BEGIN",
	OpLoopBack:        "LOOP_BACK",
	OpIfBranch:        "IF_BRANCH",
	OpIfTrue:          "IF_TRUE",
	OpIfFalse:         "IF_FALSE",
	OpIfSuccess:       "IF_SUCCESS",
	OpIfException:     "IF_EXCEPTION",
	OpReturn:          "RETURN",
	OpDependSelector:  "DEPEND_SELECTOR",
	OpValueSelector:   "VALUE_SELECTOR",
	OpDependRelay:     "DEPEND_RELAY",
	OpJSBytecode:      "JS_BYTECODE",
	OpGetException:    "GET_EXCEPTION",
	OpSaveRegister:    "SAVE_REGISTER",
	OpRestoreRegister: "RESTORE_REGISTER",
	OpUpdateHotness:   "UPDATE_HOTNESS",
}

func (op OpCode) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return fmt.Sprintf("OP(%d)", uint8(op))
}

// IsState reports whether gates of op are control-flow (state) gates.
func (op OpCode) IsState() bool {
	switch op {
	case OpStateEntry, OpMerge, OpLoopBegin, OpLoopBack, OpIfBranch, OpIfTrue, OpIfFalse,
		OpIfSuccess, OpIfException, OpReturn, OpJSBytecode, OpUpdateHotness:
		return true
	}
	return false
}

// IsFixed reports whether gates of op are pinned to their state input.
func (op OpCode) IsFixed() bool {
	return op == OpDependSelector || op == OpValueSelector || op == OpDependRelay
}

// IsSelector reports whether op merges inputs at a control join.
func (op OpCode) IsSelector() bool {
	return op == OpDependSelector || op == OpValueSelector
}

// IsRoot reports whether op is one of the circuit's global roots.
func (op OpCode) IsRoot() bool {
	switch op {
	case OpCircuitRoot, OpStateEntry, OpDependEntry, OpArgList, OpReturnList:
		return true
	}
	return false
}

// IsProlog reports whether gates of op are placed in the entry block.
func (op OpCode) IsProlog() bool {
	return op == OpArg
}

// IsSchedulable reports whether gates of op float and are placed by the scheduler.
func (op OpCode) IsSchedulable() bool {
	return op != OpNop && !op.IsState() && !op.IsFixed() && !op.IsRoot() && !op.IsProlog()
}

// IsMerge reports whether op joins several control predecessors.
func (op OpCode) IsMerge() bool {
	return op == OpMerge || op == OpLoopBegin
}

// MachineType is the low-level representation of a gate's value.
type MachineType uint8

const (
	NoValue MachineType = iota
	AnyValue
	I1
	I16
	I32
	I64
	F64
)

var machineTypeNames = [...]string{"NOVALUE", "ANYVALUE", "I1", "I16", "I32", "I64", "F64"}

func (mt MachineType) String() string {
	if int(mt) < len(machineTypeNames) {
		return machineTypeNames[mt]
	}
	return fmt.Sprintf("MT(%d)", uint8(mt))
}

// GateType is the semantic type of a gate's value.
type GateType uint8

const (
	EmptyType GateType = iota
	AnyType
	NJSValue
	TaggedValue
	NumberType
	IntType
	DoubleType
	BooleanType
	StringType
	UndefinedType
)

var gateTypeNames = [...]string{"EMPTY", "ANY", "NJS_VALUE", "TAGGED", "NUMBER", "INT", "DOUBLE", "BOOLEAN", "STRING", "UNDEFINED"}

func (gt GateType) String() string {
	if int(gt) < len(gateTypeNames) {
		return gateTypeNames[gt]
	}
	return fmt.Sprintf("GT(%d)", uint8(gt))
}

// IsConcrete reports whether gt carries more information than Any.
func (gt GateType) IsConcrete() bool {
	return gt >= NumberType
}

// Meta is the opcode metadata of a gate. Zone sizes determine how its
// inputs are partitioned.
type Meta struct {
	Value    int64           `cbor:"6,keyasint,omitempty"`
	BcIndex  int32           `cbor:"7,keyasint,omitempty"`
	States   uint16          `cbor:"2,keyasint,omitempty"`
	Depends  uint16          `cbor:"3,keyasint,omitempty"`
	Values   uint16          `cbor:"4,keyasint,omitempty"`
	Op       OpCode          `cbor:"1,keyasint"`
	Root     bool            `cbor:"5,keyasint,omitempty"`
	Bytecode bytecode.Opcode `cbor:"8,keyasint,omitempty"`
}

// NumIns is the total number of inputs.
func (m *Meta) NumIns() int {
	n := int(m.States) + int(m.Depends) + int(m.Values)
	if m.Root {
		n++
	}
	return n
}

func rootMeta(op OpCode) Meta {
	return Meta{Op: op, Root: true}
}

// Arg describes the index-th argument.
func Arg(index int) Meta {
	return Meta{Op: OpArg, Root: true, Value: int64(index)}
}

// Constant describes a constant with the given bit pattern.
func Constant(bits int64) Meta {
	return Meta{Op: OpConstant, Value: bits}
}

// Merge joins n control predecessors.
func Merge(n int) Meta {
	return Meta{Op: OpMerge, States: uint16(n)}
}

// LoopBegin joins the forward entry (input 0) and the loop back edge (input 1).
func LoopBegin() Meta {
	return Meta{Op: OpLoopBegin, States: 2}
}

// LoopBack marks the state reaching a loop header through its back edges.
func LoopBack() Meta {
	return Meta{Op: OpLoopBack, States: 1}
}

// IfBranch splits control on a condition value.
func IfBranch() Meta {
	return Meta{Op: OpIfBranch, States: 1, Values: 1}
}

// Projection is one of IfTrue, IfFalse, IfSuccess, IfException.
func Projection(op OpCode) Meta {
	return Meta{Op: op, States: 1}
}

// Return returns a value and ends the method.
func Return() Meta {
	return Meta{Op: OpReturn, States: 1, Depends: 1, Values: 1, Root: true}
}

// DependSelector merges n depend chains at a merge.
func DependSelector(n int) Meta {
	return Meta{Op: OpDependSelector, States: 1, Depends: uint16(n)}
}

// ValueSelector is a phi over n values at a merge.
func ValueSelector(n int) Meta {
	return Meta{Op: OpValueSelector, States: 1, Values: uint16(n)}
}

// DependRelay continues a depend chain into a branch projection.
func DependRelay() Meta {
	return Meta{Op: OpDependRelay, States: 1, Depends: 1}
}

// JSBytecode describes the gate of one bytecode instruction.
func JSBytecode(values int, op bytecode.Opcode, bcIndex int) Meta {
	return Meta{Op: OpJSBytecode, States: 1, Depends: 1, Values: uint16(values), Bytecode: op, BcIndex: int32(bcIndex)}
}

// GetException reads the pending exception at a catch entry.
func GetException() Meta {
	return Meta{Op: OpGetException, Depends: 1}
}

// SaveRegister captures n registers at a generator suspend.
func SaveRegister(n int) Meta {
	return Meta{Op: OpSaveRegister, Depends: 1, Values: uint16(n)}
}

// RestoreRegister reads register reg back at a generator resume.
func RestoreRegister(reg int) Meta {
	return Meta{Op: OpRestoreRegister, Depends: 1, Value: int64(reg)}
}

// UpdateHotness bumps the profiling counter by the offset value input.
func UpdateHotness() Meta {
	return Meta{Op: OpUpdateHotness, States: 1, Depends: 1, Values: 1}
}
