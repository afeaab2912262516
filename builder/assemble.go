package builder

import (
	"math"

	"github.com/wippyai/circuit/bytecode"
	"github.com/wippyai/circuit/errors"
	"github.com/wippyai/circuit/gate"
)

type pending struct {
	gate  gate.Ref
	block int
	index int
}

func (b *builder) mustGate(ref gate.Ref) gate.Ref {
	if ref == gate.Null {
		panic(errors.New(errors.PhaseCircuit, errors.KindArenaExhausted).
			Method(b.method.Name).
			Value(b.circuit.Capacity()).
			Detail("arena capacity %d exceeded", b.circuit.Capacity()).
			Build())
	}
	return ref
}

func (b *builder) newGate(block int, meta gate.Meta, mt gate.MachineType, ins []gate.Ref, gt gate.GateType) gate.Ref {
	ref := b.mustGate(b.circuit.NewGate(meta, mt, ins, gt))
	b.blockOfGate[ref] = block
	return ref
}

func (b *builder) constant(mt gate.MachineType, bits int64, gt gate.GateType) gate.Ref {
	return b.mustGate(b.circuit.GetConstant(mt, bits, gt))
}

func nulls(n int) []gate.Ref {
	ins := make([]gate.Ref, n)
	for i := range ins {
		ins[i] = gate.Null
	}
	return ins
}

func withState(state gate.Ref, rest []gate.Ref) []gate.Ref {
	return append([]gate.Ref{state}, rest...)
}

// buildHeads creates the control merge of every live region.
func (b *builder) buildHeads() {
	c := b.circuit
	for id := range b.regions {
		bb := &b.regions[id]
		if bb.Dead {
			continue
		}
		h := &bb.head
		h.phis = make(map[int]gate.Ref)
		h.merge, h.dependSel, h.loopBegin = gate.Null, gate.Null, gate.Null
		h.backMerge, h.backDepend, h.exception = gate.Null, gate.Null, gate.Null

		switch {
		case bb.NumOfStatePreds == 0:
			h.state, h.depend = c.StateEntry(), c.DependEntry()
		case bb.NumOfLoopBacks > 0:
			fwd := bb.NumOfStatePreds - bb.NumOfLoopBacks
			back := bb.NumOfLoopBacks
			h.merge = b.newGate(id, gate.Merge(fwd), gate.NoValue, nulls(fwd), gate.EmptyType)
			h.dependSel = b.newGate(id, gate.DependSelector(fwd), gate.NoValue, withState(h.merge, nulls(fwd)), gate.EmptyType)
			h.backMerge = b.newGate(id, gate.Merge(back), gate.NoValue, nulls(back), gate.EmptyType)
			h.backDepend = b.newGate(id, gate.DependSelector(back), gate.NoValue, withState(h.backMerge, nulls(back)), gate.EmptyType)
			loopBack := b.newGate(id, gate.LoopBack(), gate.NoValue, []gate.Ref{h.backMerge}, gate.EmptyType)
			h.loopBegin = b.newGate(id, gate.LoopBegin(), gate.NoValue, []gate.Ref{h.merge, loopBack}, gate.EmptyType)
			h.state = h.loopBegin
			h.depend = b.newGate(id, gate.DependSelector(2), gate.NoValue,
				[]gate.Ref{h.loopBegin, h.dependSel, h.backDepend}, gate.EmptyType)
		default:
			n := bb.NumOfStatePreds
			h.merge = b.newGate(id, gate.Merge(n), gate.NoValue, nulls(n), gate.EmptyType)
			h.dependSel = b.newGate(id, gate.DependSelector(n), gate.NoValue, withState(h.merge, nulls(n)), gate.EmptyType)
			h.state, h.depend = h.merge, h.dependSel
		}

		if len(bb.Trys) > 0 {
			h.exception = b.newGate(id, gate.GetException(), gate.I64, []gate.Ref{h.depend}, gate.AnyType)
			h.depend = h.exception
		}
	}

	if entry := &b.regions[0]; entry.NumOfStatePreds > 0 {
		b.setBlockPred(0, c.StateEntry(), c.DependEntry(), expandedPred{block: -1})
	}
}

// setBlockPred wires one incoming edge into the next free slot of the
// target region's forward or loop-back merge.
func (b *builder) setBlockPred(to int, state, depend gate.Ref, from expandedPred) {
	bb := &b.regions[to]
	h := &bb.head
	c := b.circuit
	if bb.isLoopBack(from.block) {
		if h.loopBackIndex >= bb.NumOfLoopBacks {
			panic(errors.Invariant(errors.PhaseCircuit, "region %d: more than %d loop-back preds", to, bb.NumOfLoopBacks))
		}
		c.NewIn(h.backMerge, h.loopBackIndex, state)
		c.NewIn(h.backDepend, c.DependIndex(h.backDepend, h.loopBackIndex), depend)
		h.loopBackIndex++
		h.backPreds = append(h.backPreds, from)
	} else {
		fwd := bb.NumOfStatePreds - bb.NumOfLoopBacks
		if h.forwardIndex >= fwd {
			panic(errors.Invariant(errors.PhaseCircuit, "region %d: more than %d forward preds", to, fwd))
		}
		c.NewIn(h.merge, h.forwardIndex, state)
		c.NewIn(h.dependSel, c.DependIndex(h.dependSel, h.forwardIndex), depend)
		h.forwardIndex++
		h.forwardPreds = append(h.forwardPreds, from)
	}
	h.statePredIndex++
}

func (b *builder) hotness(block int, state, depend gate.Ref, offset int64) gate.Ref {
	off := b.constant(gate.I32, offset, gate.NJSValue)
	return b.newGate(block, gate.UpdateHotness(), gate.NoValue, []gate.Ref{state, depend, off}, gate.EmptyType)
}

// bytecodeGate emits the gate of general instruction i. Constant operands
// are materialized now; register and accumulator slots stay Null until
// resolvePending.
func (b *builder) bytecodeGate(block, i int, state, depend gate.Ref) gate.Ref {
	info := &b.infos[i]
	n := info.ValueCount()
	ins := append([]gate.Ref{state, depend}, nulls(n)...)
	deferred := info.AccIn
	for k, op := range info.Inputs {
		switch v := op.(type) {
		case bytecode.Immediate:
			ins[2+k] = b.constant(gate.I64, int64(v), gate.NJSValue)
		case bytecode.ICSlotID:
			ins[2+k] = b.constant(gate.I16, int64(v), gate.NJSValue)
		case bytecode.ConstDataID:
			ins[2+k] = b.mustGate(b.circuit.GetConstString(b.method.Strings[v]))
		case bytecode.VirtualRegister:
			deferred = true
		}
	}
	if info.ThisIn {
		ins[len(ins)-1] = b.args.common[ArgThis]
	}

	mt, gt := gate.NoValue, gate.EmptyType
	if info.IsDef() {
		mt, gt = gate.I64, b.typeAt(i)
	}
	op := b.method.Instructions[i].Op
	ref := b.newGate(block, gate.JSBytecode(n, op, i), mt, ins, gt)
	b.gateOf[i] = ref
	if deferred {
		b.pending = append(b.pending, pending{gate: ref, block: block, index: i})
	}
	return ref
}

// splitException branches control after a throwing gate. The exception
// continuation becomes a predecessor of the first handler.
func (b *builder) splitException(block, i int, g gate.Ref) (gate.Ref, gate.Ref) {
	ifSuccess := b.newGate(block, gate.Projection(gate.OpIfSuccess), gate.NoValue, []gate.Ref{g}, gate.EmptyType)
	ifException := b.newGate(block, gate.Projection(gate.OpIfException), gate.NoValue, []gate.Ref{g}, gate.EmptyType)
	successRelay := b.newGate(block, gate.DependRelay(), gate.NoValue, []gate.Ref{ifSuccess, g}, gate.EmptyType)
	exceptionRelay := b.newGate(block, gate.DependRelay(), gate.NoValue, []gate.Ref{ifException, g}, gate.EmptyType)
	b.setBlockPred(b.regions[block].Catchs[0], ifException, exceptionRelay,
		expandedPred{block: block, index: i, isException: true})
	return ifSuccess, successRelay
}

func (b *builder) setConstant(i int) gate.Ref {
	ins := &b.method.Instructions[i]
	switch ins.Op {
	case bytecode.OpLdai:
		return b.constant(gate.I64, gate.TaggedInt(int32(ins.Args[0])), gate.IntType)
	case bytecode.OpFldai:
		return b.constant(gate.I64, gate.TaggedDouble(ins.Float(0)), gate.DoubleType)
	case bytecode.OpLdUndefined:
		return b.constant(gate.I64, gate.TaggedUndefined, gate.UndefinedType)
	case bytecode.OpLdNull:
		return b.constant(gate.I64, gate.TaggedNull, gate.TaggedValue)
	case bytecode.OpLdTrue:
		return b.constant(gate.I64, gate.TaggedTrue, gate.BooleanType)
	case bytecode.OpLdFalse:
		return b.constant(gate.I64, gate.TaggedFalse, gate.BooleanType)
	case bytecode.OpLdNaN:
		return b.constant(gate.I64, gate.TaggedDouble(math.NaN()), gate.DoubleType)
	case bytecode.OpLdInfinity:
		return b.constant(gate.I64, gate.TaggedDouble(math.Inf(1)), gate.DoubleType)
	case bytecode.OpLdHole:
		return b.constant(gate.I64, gate.TaggedHole, gate.TaggedValue)
	case bytecode.OpLdThis:
		return b.args.common[ArgThis]
	case bytecode.OpLdFunction:
		return b.args.common[ArgFunc]
	case bytecode.OpLdNewTarget:
		return b.args.common[ArgNewTarget]
	}
	panic(errors.Unsupported(errors.PhaseCircuit, "constant load "+ins.Op.String()))
}

// buildSubCircuit emits the gates of one region in bytecode order and
// hands the final state and depend to its successors.
func (b *builder) buildSubCircuit(id int) {
	bb := &b.regions[id]
	c := b.circuit
	state, depend := bb.head.state, bb.head.depend

	for i := bb.Start; i <= bb.End; i++ {
		info := &b.infos[i]
		ins := &b.method.Instructions[i]
		pc := int64(b.layout.PC(i))

		switch info.Kind {
		case bytecode.KindGeneral, bytecode.KindSuspend, bytecode.KindResume, bytecode.KindThrow:
			if info.Kind == bytecode.KindSuspend {
				hot := b.hotness(id, state, depend, -pc)
				state, depend = hot, hot
				saveIns := []gate.Ref{depend}
				hole := b.constant(gate.I64, gate.TaggedHole, gate.TaggedValue)
				for range b.method.NumRegs() {
					saveIns = append(saveIns, hole)
				}
				save := b.newGate(id, gate.SaveRegister(b.method.NumRegs()), gate.NoValue, saveIns, gate.EmptyType)
				b.saves[i] = save
				depend = save
			}
			g := b.bytecodeGate(id, i, state, depend)
			state, depend = g, g
			if len(bb.Catchs) > 0 {
				state, depend = b.splitException(id, i, g)
			}
			if info.Kind == bytecode.KindThrow {
				exc := b.constant(gate.I64, gate.TaggedException, gate.TaggedValue)
				ret := b.newGate(id, gate.Return(), gate.NoValue, []gate.Ref{state, depend, exc, c.ReturnList()}, gate.EmptyType)
				b.returns = append(b.returns, ret)
				return
			}

		case bytecode.KindJump:
			if off := ins.JumpOffset(); off < 0 {
				hot := b.hotness(id, state, depend, int64(off))
				state, depend = hot, hot
			}

		case bytecode.KindCondJump:
			g := b.bytecodeGate(id, i, state, depend)
			ifTrue := b.newGate(id, gate.Projection(gate.OpIfTrue), gate.NoValue, []gate.Ref{g}, gate.EmptyType)
			ifFalse := b.newGate(id, gate.Projection(gate.OpIfFalse), gate.NoValue, []gate.Ref{g}, gate.EmptyType)
			trueRelay := b.newGate(id, gate.DependRelay(), gate.NoValue, []gate.Ref{ifTrue, g}, gate.EmptyType)
			falseRelay := b.newGate(id, gate.DependRelay(), gate.NoValue, []gate.Ref{ifFalse, g}, gate.EmptyType)
			takenState, takenDepend := ifTrue, trueRelay
			if off := ins.JumpOffset(); off < 0 {
				hot := b.hotness(id, ifTrue, trueRelay, int64(off))
				takenState, takenDepend = hot, hot
			}
			target := b.blockOfIndex[mustJumpTarget(b.method, b.layout, i)]
			next := b.blockOfIndex[i+1]
			from := expandedPred{block: id, index: i}
			b.setBlockPred(next, ifFalse, falseRelay, from)
			b.setBlockPred(target, takenState, takenDepend, from)
			return

		case bytecode.KindReturn:
			hot := b.hotness(id, state, depend, -pc)
			value := gate.Null
			if ins.Op == bytecode.OpReturnUndefined {
				value = b.constant(gate.I64, gate.TaggedUndefined, gate.UndefinedType)
			}
			ret := b.newGate(id, gate.Return(), gate.NoValue, []gate.Ref{hot, hot, value, c.ReturnList()}, gate.EmptyType)
			b.gateOf[i] = ret
			b.returns = append(b.returns, ret)
			if value == gate.Null {
				b.pending = append(b.pending, pending{gate: ret, block: id, index: i})
			}
			return

		case bytecode.KindSetConstant:
			b.gateOf[i] = b.setConstant(i)

		case bytecode.KindMov, bytecode.KindDiscarded:
		}
	}

	if len(bb.Succs) == 0 {
		panic(errors.New(errors.PhaseCircuit, errors.KindInvariant).
			Method(b.method.Name).
			Detail("region %d: %s at index %d has no successor", id, b.method.Instructions[bb.End].Op, bb.End).
			Build())
	}
	b.setBlockPred(bb.Succs[0], state, depend, expandedPred{block: id, index: bb.End})
}

// checkCounters asserts that every merge slot was filled exactly once.
func (b *builder) checkCounters() {
	for id := range b.regions {
		bb := &b.regions[id]
		if bb.Dead {
			continue
		}
		h := &bb.head
		fwd := bb.NumOfStatePreds - bb.NumOfLoopBacks
		if h.statePredIndex != bb.NumOfStatePreds || h.forwardIndex != fwd || h.loopBackIndex != bb.NumOfLoopBacks {
			panic(errors.New(errors.PhaseCircuit, errors.KindInvariant).
				Method(b.method.Name).
				Detail("region %d: filled %d/%d preds (%d/%d forward, %d/%d loop-back)",
					id, h.statePredIndex, bb.NumOfStatePreds, h.forwardIndex, fwd, h.loopBackIndex, bb.NumOfLoopBacks).
				Build())
		}
	}
}
