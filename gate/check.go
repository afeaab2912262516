package gate

import (
	"github.com/wippyai/circuit/bytecode"
	"github.com/wippyai/circuit/errors"
)

func (c *Circuit) fail(ref Ref, other Ref, format string, args ...any) error {
	ids := []uint32{uint32(ref)}
	if other != Null {
		ids = append(ids, uint32(other))
	}
	return errors.New(errors.PhaseVerify, errors.KindInvariant).
		Gates(ids...).
		Detail(format, args...).
		Build()
}

// Verify checks the per-opcode input contract of ref.
func (c *Circuit) Verify(ref Ref) error {
	if ref < 0 || int(ref) >= len(c.gates) {
		return c.fail(ref, Null, "gate %d out of arena bounds", ref)
	}
	n := &c.gates[ref]
	m := &n.meta
	if m.Op == OpNop {
		return nil
	}
	if len(n.ins) != m.NumIns() {
		return c.fail(ref, Null, "%s expects %d inputs, got %d", m.Op, m.NumIns(), len(n.ins))
	}
	for i, in := range n.ins {
		if in == Null {
			return c.fail(ref, Null, "input %d of %s is null", i, m.Op)
		}
		if !c.IsLive(in) {
			return c.fail(ref, in, "input %d of %s refers to dead gate %d", i, m.Op, in)
		}
	}

	if err := c.checkStateInputs(ref); err != nil {
		return err
	}
	if err := c.checkDependInputs(ref); err != nil {
		return err
	}
	if err := c.checkValueInputs(ref); err != nil {
		return err
	}
	if err := c.checkRootInput(ref); err != nil {
		return err
	}
	if m.Op.IsFixed() {
		return c.checkFixed(ref)
	}
	return nil
}

func (c *Circuit) checkStateInputs(ref Ref) error {
	m := &c.gates[ref].meta
	for i := 0; i < int(m.States); i++ {
		in := c.StateIn(ref, i)
		op := c.Op(in)
		if !op.IsState() {
			return c.fail(ref, in, "state input %d of %s is %s, not a state gate", i, m.Op, op)
		}
		switch m.Op {
		case OpIfTrue, OpIfFalse:
			if op != OpIfBranch && !c.isCondJump(in) {
				return c.fail(ref, in, "%s input must be a branch, got %s", m.Op, op)
			}
		case OpIfSuccess, OpIfException:
			if op != OpJSBytecode {
				return c.fail(ref, in, "%s input must be a bytecode gate, got %s", m.Op, op)
			}
		case OpLoopBegin:
			if i == 1 && op != OpLoopBack {
				return c.fail(ref, in, "LOOP_BEGIN input 1 must be LOOP_BACK, got %s", op)
			}
		}
	}
	return nil
}

func (c *Circuit) isCondJump(ref Ref) bool {
	m := c.Meta(ref)
	return m.Op == OpJSBytecode && m.Bytecode.Kind() == bytecode.KindCondJump
}

func (c *Circuit) checkDependInputs(ref Ref) error {
	m := &c.gates[ref].meta
	for i := 0; i < int(m.Depends); i++ {
		in := c.DependIn(ref, i)
		if c.Meta(in).Depends == 0 && c.Op(in) != OpDependEntry {
			return c.fail(ref, in, "depend input %d of %s is %s, which is not on a depend chain", i, m.Op, c.Op(in))
		}
	}
	return nil
}

func (c *Circuit) checkValueInputs(ref Ref) error {
	m := &c.gates[ref].meta
	for i := 0; i < int(m.Values); i++ {
		in := c.ValueIn(ref, i)
		if c.MachineType(in) == NoValue {
			return c.fail(ref, in, "value input %d of %s is %s, which produces no value", i, m.Op, c.Op(in))
		}
	}
	return nil
}

func (c *Circuit) checkRootInput(ref Ref) error {
	m := &c.gates[ref].meta
	if !m.Root {
		return nil
	}
	in := c.RootIn(ref)
	want := OpCircuitRoot
	switch m.Op {
	case OpArg:
		want = OpArgList
	case OpReturn:
		want = OpReturnList
	}
	if c.Op(in) != want {
		return c.fail(ref, in, "root input of %s must be %s, got %s", m.Op, want, c.Op(in))
	}
	return nil
}

func (c *Circuit) checkFixed(ref Ref) error {
	m := &c.gates[ref].meta
	state := c.StateIn(ref, 0)
	sop := c.Op(state)
	switch m.Op {
	case OpDependRelay:
		switch sop {
		case OpIfTrue, OpIfFalse, OpIfSuccess, OpIfException:
			return nil
		}
		return c.fail(ref, state, "DEPEND_RELAY must hang off a branch projection, got %s", sop)
	default:
		if !sop.IsMerge() {
			return c.fail(ref, state, "%s must hang off a merge, got %s", m.Op, sop)
		}
		preds := int(c.Meta(state).States)
		got := int(m.Depends) + int(m.Values)
		if got != preds {
			return c.fail(ref, state, "%s has %d inputs but its merge has %d predecessors", m.Op, got, preds)
		}
	}
	return nil
}
