package builder

import (
	"github.com/wippyai/circuit/bytecode"
	"github.com/wippyai/circuit/errors"
	"github.com/wippyai/circuit/gate"
)

type restoreKey struct {
	resume int
	reg    int
}

// resolvePending fills the register and accumulator slots of every gate
// emitted during assembly. Operands are read just before their
// instruction executes.
func (b *builder) resolvePending() {
	c := b.circuit
	for _, p := range b.pending {
		info := &b.infos[p.index]
		for k, op := range info.Inputs {
			reg, ok := op.(bytecode.VirtualRegister)
			if !ok {
				continue
			}
			v := b.resolveDef(p.block, p.index-1, int(reg), gate.AnyType)
			c.NewIn(p.gate, c.ValueIndex(p.gate, k), v)
		}
		if info.AccIn {
			v := b.resolveDef(p.block, p.index-1, b.accSlot, gate.AnyType)
			c.NewIn(p.gate, c.ValueIndex(p.gate, len(info.Inputs)), v)
		}
	}
}

// resolveDef returns the gate defining slot (a register, or the
// accumulator) as seen just after instruction bcIndex of region id.
//
// The walk is backward within the region; copies redirect it to their
// source. Falling off the region head yields the handler's exception, a
// phi, an entry binding, or the value at the end of the immediate
// dominator. Every step moves to an earlier index or up the dominator
// tree, so the recursion ends at the entry region at the latest.
func (b *builder) resolveDef(id, bcIndex, slot int, hint gate.GateType) gate.Ref {
	bb := &b.regions[id]
	for i := bcIndex; i >= bb.Start; i-- {
		info := &b.infos[i]
		acc := slot == b.accSlot
		if info.Kind == bytecode.KindResume && !acc {
			return b.restoreRegister(id, i, slot)
		}
		if acc && !info.AccOut || !acc && !info.Writes(uint16(slot)) {
			continue
		}
		if info.Kind == bytecode.KindMov {
			hint = b.updateType(i, hint)
			ins := &b.method.Instructions[i]
			switch ins.Op {
			case bytecode.OpMov:
				slot = int(ins.Reg(1))
			case bytecode.OpSta:
				slot = b.accSlot
			case bytecode.OpLda:
				slot = int(ins.Reg(0))
			}
			continue
		}
		ref := b.gateOf[i]
		if ref == gate.Null {
			panic(errors.Invariant(errors.PhaseSSA, "instruction %d (%s) defines v%d but has no gate",
				i, b.method.Instructions[i].Op, slot))
		}
		b.annotate(ref, hint)
		return ref
	}

	acc := slot == b.accSlot
	switch {
	case acc && len(bb.Trys) > 0:
		return bb.head.exception
	case acc && bb.PhiAcc, !acc && bb.Phis.Has(uint32(slot)):
		return b.phi(id, slot)
	case id == 0:
		return b.entryValue(slot)
	}
	return b.resolveDef(bb.Idom, b.regions[bb.Idom].End, slot, hint)
}

// entryValue binds a slot that is not written before the method entry.
func (b *builder) entryValue(slot int) gate.Ref {
	m := b.method
	switch {
	case slot == b.accSlot:
		return b.constant(gate.I64, gate.TaggedUndefined, gate.UndefinedType)
	case slot == int(m.EnvReg()):
		return b.args.common[ArgLexEnv]
	}
	if n, ok := m.IsArg(uint16(slot)); ok {
		return b.args.params[n]
	}
	return b.constant(gate.I64, gate.TaggedHole, gate.TaggedValue)
}

func (b *builder) resolvePred(p expandedPred, slot int) gate.Ref {
	if p.block < 0 {
		return b.entryValue(slot)
	}
	idx := p.index
	if p.isException {
		idx--
	}
	return b.resolveDef(p.block, idx, slot, gate.AnyType)
}

func (b *builder) fillSelector(sel gate.Ref, preds []expandedPred, slot int) {
	c := b.circuit
	for k, p := range preds {
		c.NewIn(sel, c.ValueIndex(sel, k), b.resolvePred(p, slot))
	}
}

// phi materializes the phi of slot at the head of region id. It is
// cached before its inputs are resolved so that loops reach it again.
func (b *builder) phi(id, slot int) gate.Ref {
	bb := &b.regions[id]
	h := &bb.head
	if ref, ok := h.phis[slot]; ok {
		return ref
	}
	b.numPhis++

	if bb.NumOfLoopBacks == 0 {
		n := len(h.forwardPreds)
		ref := b.newGate(id, gate.ValueSelector(n), gate.I64, withState(h.merge, nulls(n)), gate.AnyType)
		h.phis[slot] = ref
		b.fillSelector(ref, h.forwardPreds, slot)
		return ref
	}

	ref := b.newGate(id, gate.ValueSelector(2), gate.I64, withState(h.loopBegin, nulls(2)), gate.AnyType)
	h.phis[slot] = ref
	fwd := b.newGate(id, gate.ValueSelector(len(h.forwardPreds)), gate.I64,
		withState(h.merge, nulls(len(h.forwardPreds))), gate.AnyType)
	back := b.newGate(id, gate.ValueSelector(len(h.backPreds)), gate.I64,
		withState(h.backMerge, nulls(len(h.backPreds))), gate.AnyType)
	b.circuit.NewIn(ref, 1, fwd)
	b.circuit.NewIn(ref, 2, back)
	b.fillSelector(fwd, h.forwardPreds, slot)
	b.fillSelector(back, h.backPreds, slot)
	return ref
}

// restoreRegister reads reg back at the resume at index resume. The value
// saved by the matching suspend is spliced into its SaveRegister slot.
func (b *builder) restoreRegister(id, resume, reg int) gate.Ref {
	key := restoreKey{resume: resume, reg: reg}
	if ref, ok := b.restores[key]; ok {
		return ref
	}
	c := b.circuit
	resumeGate := b.gateOf[resume]
	ref := b.newGate(id, gate.RestoreRegister(reg), gate.I64, []gate.Ref{c.DependIn(resumeGate, 0)}, gate.AnyType)
	b.restores[key] = ref
	c.ModifyIn(resumeGate, c.DependIndex(resumeGate, 0), ref)

	suspend := -1
	for i := resume - 1; i >= b.regions[id].Start; i-- {
		if b.infos[i].Kind == bytecode.KindSuspend {
			suspend = i
			break
		}
	}
	if suspend < 0 {
		panic(errors.New(errors.PhaseSSA, errors.KindInvariant).
			Method(b.method.Name).
			Detail("resume at index %d has no suspend before it in region %d", resume, id).
			Build())
	}
	save := b.saves[suspend]
	v := b.resolveDef(id, suspend-1, reg, gate.AnyType)
	c.ModifyIn(save, c.ValueIndex(save, reg), v)
	return ref
}
