package bytecode

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/fxamacker/cbor/v2"

	"github.com/wippyai/circuit/errors"
)

// TryBlock is one exception table entry. StartPC is inclusive, EndPC
// exclusive; Catches lists handler pcs in priority order.
type TryBlock struct {
	Catches []uint32 `cbor:"3,keyasint"`
	StartPC uint32   `cbor:"1,keyasint"`
	EndPC   uint32   `cbor:"2,keyasint"`
}

// Method is a decoded method body.
type Method struct {
	Name         string        `cbor:"1,keyasint"`
	Instructions []Instruction `cbor:"2,keyasint"`
	Tries        []TryBlock    `cbor:"3,keyasint"`
	Strings      []string      `cbor:"4,keyasint"`
	NumVRegs     uint16        `cbor:"5,keyasint"`
	NumArgs      uint16        `cbor:"6,keyasint"`
}

// EnvReg is the register number of the lexical environment.
func (m *Method) EnvReg() uint16 {
	return m.NumVRegs + m.NumArgs
}

// NumRegs is the number of registers tracked by SSA construction,
// including the lexical environment.
func (m *Method) NumRegs() int {
	return int(m.NumVRegs) + int(m.NumArgs) + 1
}

// IsArg reports whether reg is a declared parameter and returns its index.
func (m *Method) IsArg(reg uint16) (int, bool) {
	if reg >= m.NumVRegs && reg < m.NumVRegs+m.NumArgs {
		return int(reg - m.NumVRegs), true
	}
	return 0, false
}

// Info describes instruction i for the circuit builder.
func (m *Method) Info(i int) Info {
	ins := &m.Instructions[i]
	op := &opTable[ins.Op]
	info := Info{
		Kind:   op.kind,
		AccIn:  op.accIn,
		AccOut: op.accOut,
		ThisIn: op.thisIn,
		EnvIn:  op.envIn,
		EnvOut: op.envOut,
	}

	switch ins.Op {
	case OpMov:
		info.VRegOut = []uint16{ins.Reg(0)}
		info.Inputs = []Operand{VirtualRegister(ins.Reg(1))}
	case OpSta:
		info.VRegOut = []uint16{ins.Reg(0)}
	case OpLda:
		info.Inputs = []Operand{VirtualRegister(ins.Reg(0))}
	case OpLdai, OpFldai, OpJmp, OpJeqz, OpJnez:
		// constants and jump offsets are not value inputs
	default:
		for n, f := range op.fields {
			switch f {
			case FieldReg:
				info.Inputs = append(info.Inputs, VirtualRegister(ins.Reg(n)))
			case FieldImm:
				info.Inputs = append(info.Inputs, Immediate(ins.Args[n]))
			case FieldString:
				info.Inputs = append(info.Inputs, ConstDataID(ins.Args[n]))
			case FieldIC:
				info.Inputs = append(info.Inputs, ICSlotID(ins.Args[n]))
			}
		}
	}

	if op.envIn {
		info.Inputs = append(info.Inputs, VirtualRegister(m.EnvReg()))
	}
	if op.envOut {
		info.VRegOut = append(info.VRegOut, m.EnvReg())
	}
	return info
}

// Layout maps bytecode indexes to pcs and back.
type Layout struct {
	pcs []uint32
	end uint32
}

// Layout computes the pc of every instruction.
func (m *Method) Layout() Layout {
	l := Layout{pcs: make([]uint32, len(m.Instructions))}
	pc := uint32(0)
	for i := range m.Instructions {
		l.pcs[i] = pc
		pc += m.Instructions[i].Op.Size()
	}
	l.end = pc
	return l
}

// PC returns the pc of instruction i.
func (l Layout) PC(i int) uint32 {
	return l.pcs[i]
}

// End returns the pc one past the last instruction.
func (l Layout) End() uint32 {
	return l.end
}

// Index returns the bytecode index of the instruction starting at pc.
func (l Layout) Index(pc uint32) (int, bool) {
	i := sort.Search(len(l.pcs), func(i int) bool { return l.pcs[i] >= pc })
	if i < len(l.pcs) && l.pcs[i] == pc {
		return i, true
	}
	return 0, false
}

// JumpTarget returns the bytecode index targeted by jump instruction i.
func (m *Method) JumpTarget(l Layout, i int) (int, error) {
	ins := &m.Instructions[i]
	target := int64(l.PC(i)) + int64(ins.JumpOffset())
	if target < 0 || target >= int64(l.End()) {
		return 0, errors.New(errors.PhaseDecode, errors.KindInvalidInput).
			Method(m.Name).
			Detail("jump at index %d targets pc %d outside method", i, target).
			Build()
	}
	idx, ok := l.Index(uint32(target))
	if !ok {
		return 0, errors.New(errors.PhaseDecode, errors.KindInvalidInput).
			Method(m.Name).
			Detail("jump at index %d targets pc %d inside an instruction", i, target).
			Build()
	}
	return idx, nil
}

// Validate checks that the method is well formed enough to build.
func (m *Method) Validate() error {
	fail := func(format string, args ...any) error {
		return errors.New(errors.PhaseDecode, errors.KindInvalidInput).
			Method(m.Name).
			Detail(format, args...).
			Build()
	}

	if len(m.Instructions) == 0 {
		return fail("method has no instructions")
	}

	l := m.Layout()
	numRegs := uint16(m.NumVRegs + m.NumArgs)
	for i := range m.Instructions {
		ins := &m.Instructions[i]
		if !ins.Op.Valid() {
			return fail("index %d: unknown opcode %d", i, ins.Op)
		}
		fields := ins.Op.Fields()
		if len(ins.Args) != len(fields) {
			return fail("index %d: %s takes %d operands, got %d", i, ins.Op, len(fields), len(ins.Args))
		}
		for n, f := range fields {
			switch f {
			case FieldReg:
				if ins.Args[n] < 0 || ins.Args[n] >= int64(numRegs) {
					return fail("index %d: register v%d out of range (%d registers)", i, ins.Args[n], numRegs)
				}
			case FieldString:
				if ins.Args[n] < 0 || ins.Args[n] >= int64(len(m.Strings)) {
					return fail("index %d: string id %d out of range", i, ins.Args[n])
				}
			}
		}
		if ins.Op.Kind().IsJump() {
			if _, err := m.JumpTarget(l, i); err != nil {
				return err
			}
		}
	}

	last := m.Instructions[len(m.Instructions)-1].Op.Kind()
	if !last.IsTerminator() {
		return fail("last instruction %s falls through the method end", m.Instructions[len(m.Instructions)-1].Op)
	}

	handlers := make(map[int]bool)
	for n, try := range m.Tries {
		if try.StartPC > try.EndPC {
			return fail("try %d: start pc %d after end pc %d", n, try.StartPC, try.EndPC)
		}
		if _, ok := l.Index(try.StartPC); !ok && try.StartPC != l.End() {
			return fail("try %d: start pc %d is not an instruction boundary", n, try.StartPC)
		}
		if _, ok := l.Index(try.EndPC); !ok && try.EndPC != l.End() {
			return fail("try %d: end pc %d is not an instruction boundary", n, try.EndPC)
		}
		if len(try.Catches) == 0 && try.StartPC != try.EndPC {
			return fail("try %d has no catch handler", n)
		}
		for _, pc := range try.Catches {
			idx, ok := l.Index(pc)
			if !ok {
				return fail("try %d: catch pc %d is not an instruction boundary", n, pc)
			}
			if try.StartPC != try.EndPC {
				handlers[idx] = true
			}
		}
	}

	// A handler head is entered only through catch edges.
	for i := range m.Instructions {
		op := m.Instructions[i].Op
		if handlers[i+1] && !op.Kind().IsTerminator() {
			return fail("index %d: handler reached by fallthrough from %s", i+1, op)
		}
		if !op.Kind().IsJump() {
			continue
		}
		if target, _ := m.JumpTarget(l, i); handlers[target] {
			return fail("index %d: %s jumps into handler at index %d", i, op, target)
		}
	}
	return nil
}

var digestMode cbor.EncMode

func init() {
	var err error
	digestMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bytecode: cbor enc mode: %v", err))
	}
}

// Digest returns a stable content hash of the method.
func (m *Method) Digest() (string, error) {
	data, err := digestMode.Marshal(m)
	if err != nil {
		return "", errors.Wrap(errors.PhaseDecode, errors.KindInvalidInput, err, "encode method")
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
