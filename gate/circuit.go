package gate

import (
	"github.com/wippyai/circuit/errors"
)

// Ref identifies a gate in a Circuit.
type Ref int32

// Null is the absent gate.
const Null Ref = -1

// Use is one input slot of Gate that refers to some other gate.
type Use struct {
	Gate  Ref
	Index int32
}

// Mark is a traversal state, valid only for the current circuit time.
type Mark uint8

const (
	Unvisited Mark = iota
	Visited
	Finished
)

type node struct {
	meta  Meta
	ins   []Ref
	uses  []Use
	stamp uint32
	mark  Mark
	mt    MachineType
	gt    GateType
}

type constKey struct {
	bits int64
	mt   MachineType
	gt   GateType
}

// DefaultCapacity is the arena size used when none is configured.
const DefaultCapacity = 1 << 20

// Circuit owns every gate of one method's graph.
type Circuit struct {
	constants   map[constKey]Ref
	constData   map[string]Ref
	strings     []string
	gates       []node
	capacity    int
	time        uint32
	root        Ref
	stateEntry  Ref
	dependEntry Ref
	argList     Ref
	returnList  Ref
}

// New creates a circuit with its root gates. capacity <= 0 selects
// DefaultCapacity.
func New(capacity int) *Circuit {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	c := &Circuit{
		capacity:  capacity,
		constants: make(map[constKey]Ref),
		constData: make(map[string]Ref),
		time:      1,
	}
	c.root = c.mustRoot(Meta{Op: OpCircuitRoot}, nil)
	c.stateEntry = c.mustRoot(rootMeta(OpStateEntry), []Ref{c.root})
	c.dependEntry = c.mustRoot(rootMeta(OpDependEntry), []Ref{c.root})
	c.argList = c.mustRoot(rootMeta(OpArgList), []Ref{c.root})
	c.returnList = c.mustRoot(rootMeta(OpReturnList), []Ref{c.root})
	return c
}

func (c *Circuit) mustRoot(meta Meta, ins []Ref) Ref {
	ref := c.NewGate(meta, NoValue, ins, EmptyType)
	if ref == Null {
		panic(errors.ArenaExhausted(c.capacity))
	}
	return ref
}

// Root returns the circuit root.
func (c *Circuit) Root() Ref { return c.root }

// StateEntry returns the root of the control flow.
func (c *Circuit) StateEntry() Ref { return c.stateEntry }

// DependEntry returns the root of the depend chain.
func (c *Circuit) DependEntry() Ref { return c.dependEntry }

// ArgList returns the root every Arg hangs off.
func (c *Circuit) ArgList() Ref { return c.argList }

// ReturnList returns the root every Return hangs off.
func (c *Circuit) ReturnList() Ref { return c.returnList }

// Capacity returns the arena capacity.
func (c *Circuit) Capacity() int { return c.capacity }

// Len returns the number of allocated gates, including tombstones.
func (c *Circuit) Len() int { return len(c.gates) }

// NewGate allocates a gate. ins must match meta's zone sizes; Null entries
// are placeholders to be filled with NewIn. Returns Null when the arena is
// full.
func (c *Circuit) NewGate(meta Meta, mt MachineType, ins []Ref, gt GateType) Ref {
	if len(c.gates) >= c.capacity {
		return Null
	}
	if len(ins) != meta.NumIns() {
		panic(errors.New(errors.PhaseCircuit, errors.KindInvariant).
			Detail("%s expects %d inputs, got %d", meta.Op, meta.NumIns(), len(ins)).
			Build())
	}
	ref := Ref(len(c.gates))
	n := node{meta: meta, mt: mt, gt: gt, ins: make([]Ref, len(ins))}
	copy(n.ins, ins)
	c.gates = append(c.gates, n)
	for i, in := range ins {
		if in != Null {
			c.checkRef(in)
			c.addUse(in, ref, i)
		}
	}
	return ref
}

// NewArg allocates the index-th argument gate.
func (c *Circuit) NewArg(index int, mt MachineType, gt GateType) Ref {
	return c.NewGate(Arg(index), mt, []Ref{c.argList}, gt)
}

// GetConstant returns the cached constant gate for (mt, bits, gt),
// allocating it on first use. Returns Null when the arena is full.
func (c *Circuit) GetConstant(mt MachineType, bits int64, gt GateType) Ref {
	key := constKey{bits: bits, mt: mt, gt: gt}
	if ref, ok := c.constants[key]; ok {
		return ref
	}
	ref := c.NewGate(Constant(bits), mt, nil, gt)
	if ref != Null {
		c.constants[key] = ref
	}
	return ref
}

// GetConstString returns the cached constant-data gate for s.
func (c *Circuit) GetConstString(s string) Ref {
	if ref, ok := c.constData[s]; ok {
		return ref
	}
	ref := c.NewGate(Meta{Op: OpConstData, Value: int64(len(c.strings))}, I64, nil, StringType)
	if ref != Null {
		c.strings = append(c.strings, s)
		c.constData[s] = ref
	}
	return ref
}

// ConstString returns the payload of a constant-data gate.
func (c *Circuit) ConstString(ref Ref) string {
	return c.strings[c.node(ref).meta.Value]
}

func (c *Circuit) checkRef(ref Ref) {
	if ref < 0 || int(ref) >= len(c.gates) {
		panic(errors.New(errors.PhaseCircuit, errors.KindInvariant).
			Detail("gate %d out of arena bounds (%d gates)", ref, len(c.gates)).
			Build())
	}
}

func (c *Circuit) node(ref Ref) *node {
	c.checkRef(ref)
	return &c.gates[ref]
}

// Meta returns the metadata of ref. The result must not be modified.
func (c *Circuit) Meta(ref Ref) *Meta {
	return &c.node(ref).meta
}

// Op returns the opcode of ref.
func (c *Circuit) Op(ref Ref) OpCode {
	return c.node(ref).meta.Op
}

// IsLive reports whether ref is allocated and not deleted.
func (c *Circuit) IsLive(ref Ref) bool {
	return ref >= 0 && int(ref) < len(c.gates) && c.gates[ref].meta.Op != OpNop
}

// MachineType returns the machine type of ref.
func (c *Circuit) MachineType(ref Ref) MachineType {
	return c.node(ref).mt
}

// GateType returns the semantic type of ref.
func (c *Circuit) GateType(ref Ref) GateType {
	return c.node(ref).gt
}

// SetMachineType changes the machine type of ref.
func (c *Circuit) SetMachineType(ref Ref, mt MachineType) {
	c.node(ref).mt = mt
}

// SetGateType changes the semantic type of ref.
func (c *Circuit) SetGateType(ref Ref, gt GateType) {
	c.node(ref).gt = gt
}

// NumIns returns the number of inputs of ref.
func (c *Circuit) NumIns(ref Ref) int {
	return len(c.node(ref).ins)
}

// In returns input idx of ref.
func (c *Circuit) In(ref Ref, idx int) Ref {
	return c.node(ref).ins[idx]
}

// Ins returns the inputs of ref. The slice must not be modified.
func (c *Circuit) Ins(ref Ref) []Ref {
	return c.node(ref).ins
}

// Uses returns a copy of the uses of ref.
func (c *Circuit) Uses(ref Ref) []Use {
	uses := c.node(ref).uses
	out := make([]Use, len(uses))
	copy(out, uses)
	return out
}

// NumUses returns the number of uses of ref.
func (c *Circuit) NumUses(ref Ref) int {
	return len(c.node(ref).uses)
}

// StateIn returns the i-th state input.
func (c *Circuit) StateIn(ref Ref, i int) Ref {
	return c.In(ref, i)
}

// DependIn returns the i-th depend input.
func (c *Circuit) DependIn(ref Ref, i int) Ref {
	return c.In(ref, c.DependIndex(ref, i))
}

// ValueIn returns the i-th value input.
func (c *Circuit) ValueIn(ref Ref, i int) Ref {
	return c.In(ref, c.ValueIndex(ref, i))
}

// RootIn returns the root input, or Null when the gate has none.
func (c *Circuit) RootIn(ref Ref) Ref {
	n := c.node(ref)
	if !n.meta.Root {
		return Null
	}
	return n.ins[len(n.ins)-1]
}

// DependIndex converts a depend zone position to an input index.
func (c *Circuit) DependIndex(ref Ref, i int) int {
	return int(c.node(ref).meta.States) + i
}

// ValueIndex converts a value zone position to an input index.
func (c *Circuit) ValueIndex(ref Ref, i int) int {
	m := &c.node(ref).meta
	return int(m.States) + int(m.Depends) + i
}

// IsStateIndex reports whether input idx of ref is in the state zone.
func (c *Circuit) IsStateIndex(ref Ref, idx int) bool {
	return idx < int(c.node(ref).meta.States)
}

// IsDependIndex reports whether input idx of ref is in the depend zone.
func (c *Circuit) IsDependIndex(ref Ref, idx int) bool {
	m := &c.node(ref).meta
	return idx >= int(m.States) && idx < int(m.States)+int(m.Depends)
}

// IsValueIndex reports whether input idx of ref is in the value zone.
func (c *Circuit) IsValueIndex(ref Ref, idx int) bool {
	m := &c.node(ref).meta
	lo := int(m.States) + int(m.Depends)
	return idx >= lo && idx < lo+int(m.Values)
}

// IsState reports whether ref is a control gate.
func (c *Circuit) IsState(ref Ref) bool {
	return c.Op(ref).IsState()
}

// AdvanceTime invalidates every mark.
func (c *Circuit) AdvanceTime() {
	c.time++
}

// SetMark marks ref for the current time.
func (c *Circuit) SetMark(ref Ref, m Mark) {
	n := c.node(ref)
	n.stamp = c.time
	n.mark = m
}

// GetMark returns the mark of ref, Unvisited if it was set at an earlier time.
func (c *Circuit) GetMark(ref Ref) Mark {
	n := c.node(ref)
	if n.stamp != c.time {
		return Unvisited
	}
	return n.mark
}

// Gates returns every live gate in allocation order.
func (c *Circuit) Gates() []Ref {
	out := make([]Ref, 0, len(c.gates))
	for i := range c.gates {
		if c.gates[i].meta.Op != OpNop {
			out = append(out, Ref(i))
		}
	}
	return out
}
