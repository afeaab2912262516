package bytecode

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Instruction is one decoded bytecode instruction.
// Args holds one value per entry of Op.Fields(); floats are stored as
// their IEEE-754 bit pattern.
type Instruction struct {
	Args []int64
	Op   Opcode
}

// Operand is a value input of an instruction. It is one of ConstDataID,
// ICSlotID, Immediate or VirtualRegister.
type Operand interface {
	isOperand()
	String() string
}

// ConstDataID references a string in the method's constant pool.
type ConstDataID uint32

// ICSlotID is an inline cache slot index.
type ICSlotID uint16

// Immediate is an integer literal operand.
type Immediate int64

// VirtualRegister is a register operand.
type VirtualRegister uint16

func (ConstDataID) isOperand()     {}
func (ICSlotID) isOperand()        {}
func (Immediate) isOperand()       {}
func (VirtualRegister) isOperand() {}

func (c ConstDataID) String() string     { return "str:" + strconv.FormatUint(uint64(c), 10) }
func (c ICSlotID) String() string        { return "@" + strconv.FormatUint(uint64(c), 10) }
func (c Immediate) String() string       { return strconv.FormatInt(int64(c), 10) }
func (c VirtualRegister) String() string { return "v" + strconv.FormatUint(uint64(c), 10) }

// Info is what the circuit builder needs to know about one instruction.
type Info struct {
	Inputs  []Operand
	VRegOut []uint16
	Kind    Kind
	AccIn   bool
	AccOut  bool
	ThisIn  bool
	EnvIn   bool
	EnvOut  bool
}

// IsDef reports whether the instruction produces a value.
func (i *Info) IsDef() bool {
	return i.AccOut || len(i.VRegOut) > 0
}

// ValueCount is the number of value inputs of the gate built for the
// instruction: declared inputs, then the accumulator, then this.
func (i *Info) ValueCount() int {
	n := len(i.Inputs)
	if i.AccIn {
		n++
	}
	if i.ThisIn {
		n++
	}
	return n
}

// Writes reports whether the instruction writes reg.
func (i *Info) Writes(reg uint16) bool {
	for _, r := range i.VRegOut {
		if r == reg {
			return true
		}
	}
	return false
}

// Reg returns argument n as a register.
func (ins *Instruction) Reg(n int) uint16 {
	return uint16(ins.Args[n])
}

// Float returns argument n as a float.
func (ins *Instruction) Float(n int) float64 {
	return math.Float64frombits(uint64(ins.Args[n]))
}

// JumpOffset returns the relative pc offset of a jump instruction.
func (ins *Instruction) JumpOffset() int32 {
	return int32(ins.Args[len(ins.Args)-1])
}

func (ins *Instruction) String() string {
	var b strings.Builder
	b.WriteString(ins.Op.String())
	for n, f := range ins.Op.Fields() {
		if n == 0 {
			b.WriteByte(' ')
		} else {
			b.WriteString(", ")
		}
		if n >= len(ins.Args) {
			b.WriteString("?")
			continue
		}
		switch f {
		case FieldReg:
			fmt.Fprintf(&b, "v%d", ins.Args[n])
		case FieldFloat:
			b.WriteString(strconv.FormatFloat(ins.Float(n), 'g', -1, 64))
		case FieldString:
			fmt.Fprintf(&b, "str:%d", ins.Args[n])
		case FieldIC:
			fmt.Fprintf(&b, "@%d", ins.Args[n])
		case FieldOffset:
			fmt.Fprintf(&b, "%+d", ins.Args[n])
		default:
			b.WriteString(strconv.FormatInt(ins.Args[n], 10))
		}
	}
	return b.String()
}
