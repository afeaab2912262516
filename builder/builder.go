package builder

import (
	"go.uber.org/zap"

	"github.com/wippyai/circuit/bytecode"
	"github.com/wippyai/circuit/errors"
	"github.com/wippyai/circuit/gate"
	"github.com/wippyai/circuit/internal/dom"
)

// Options configures one build.
type Options struct {
	// Logger receives debug dumps and the build failure, if any. Nil
	// disables logging.
	Logger *zap.Logger
	// Types supplies optional type evidence.
	Types TypeRecorder
	// Capacity bounds the gate arena; <= 0 selects gate.DefaultCapacity.
	Capacity int
}

// Result is a built circuit together with the regions it came from.
type Result struct {
	Circuit     *gate.Circuit
	Method      *bytecode.Method
	Regions     []Region
	ReturnGates []gate.Ref
	NumPhis     int

	gateOf       []gate.Ref
	blockOfGate  map[gate.Ref]int
	blockOfIndex []int
	args         argGates
	domTree      *dom.Tree
	accSlot      int
}

type builder struct {
	method       *bytecode.Method
	layout       bytecode.Layout
	infos        []bytecode.Info
	regions      []Region
	blockOfIndex []int
	domTree      *dom.Tree

	circuit     *gate.Circuit
	capacity    int
	types       TypeRecorder
	args        argGates
	gateOf      []gate.Ref
	blockOfGate map[gate.Ref]int
	saves       map[int]gate.Ref
	restores    map[restoreKey]gate.Ref
	pending     []pending
	returns     []gate.Ref
	numPhis     int
	accSlot     int
}

// catchFatal runs f and turns a panic carrying *errors.Error into an
// error. Any other panic is re-raised.
func catchFatal(f func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e, ok := r.(*errors.Error)
			if !ok {
				panic(r)
			}
			err = e
		}
	}()
	f()
	return nil
}

func newBuilder(m *bytecode.Method, opts Options) *builder {
	b := &builder{
		method:      m,
		layout:      m.Layout(),
		types:       opts.Types,
		capacity:    opts.Capacity,
		gateOf:      make([]gate.Ref, len(m.Instructions)),
		blockOfGate: make(map[gate.Ref]int),
		saves:       make(map[int]gate.Ref),
		restores:    make(map[restoreKey]gate.Ref),
		accSlot:     m.NumRegs(),
	}
	for i := range b.gateOf {
		b.gateOf[i] = gate.Null
	}
	return b
}

// Build constructs the circuit of m.
func Build(m *bytecode.Method, opts Options) (*Result, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}

	b := newBuilder(m, opts)

	if err := catchFatal(b.run); err != nil {
		err = errors.InMethod(err, m.Name)
		log.Error("build failed", zap.String("method", m.Name), zap.Error(err))
		return nil, err
	}

	r := &Result{
		Circuit:      b.circuit,
		Method:       m,
		Regions:      b.regions,
		ReturnGates:  b.returns,
		NumPhis:      b.numPhis,
		gateOf:       b.gateOf,
		blockOfGate:  b.blockOfGate,
		blockOfIndex: b.blockOfIndex,
		args:         b.args,
		domTree:      b.domTree,
		accSlot:      b.accSlot,
	}
	if log.Core().Enabled(zap.DebugLevel) {
		r.PrintRegions(log)
	}
	log.Debug("circuit built",
		zap.String("method", m.Name),
		zap.Int("regions", len(b.regions)),
		zap.Int("gates", b.circuit.Len()),
		zap.Int("phis", b.numPhis))
	return r, nil
}

func (b *builder) run() {
	m := b.method
	b.infos = make([]bytecode.Info, len(m.Instructions))
	for i := range b.infos {
		b.infos[i] = m.Info(i)
	}

	b.regions, b.blockOfIndex = buildRegions(m, b.layout)
	b.trimCatches()
	MarkDead(b.regions)
	b.findLoopBacks()
	b.countPreds()
	b.computeDominators()
	b.insertPhis()

	b.circuit = gate.New(b.capacity)
	b.newArgs(int(m.NumArgs))
	b.buildHeads()
	for id := range b.regions {
		if !b.regions[id].Dead {
			b.buildSubCircuit(id)
		}
	}
	b.resolvePending()
	b.checkCounters()
}

// GateOf returns the gate built for bytecode index i, or gate.Null for
// instructions that build none.
func (r *Result) GateOf(i int) gate.Ref {
	return r.gateOf[i]
}

// BlockOf returns the region a gate was emitted for. Constants and
// arguments belong to no region.
func (r *Result) BlockOf(g gate.Ref) (int, bool) {
	id, ok := r.blockOfGate[g]
	return id, ok
}

// RegionOf returns the region containing bytecode index i.
func (r *Result) RegionOf(i int) int {
	return r.blockOfIndex[i]
}

// Head returns the control gate a region starts with.
func (r *Result) Head(id int) gate.Ref {
	return r.Regions[id].head.state
}

// Phi returns the materialized phi of register reg at region id.
func (r *Result) Phi(id, reg int) (gate.Ref, bool) {
	ref, ok := r.Regions[id].head.phis[reg]
	return ref, ok
}

// AccPhi returns the materialized accumulator phi at region id.
func (r *Result) AccPhi(id int) (gate.Ref, bool) {
	return r.Phi(id, r.accSlot)
}

// PredBlocks returns the source regions of the forward and loop-back
// merge inputs of region id, in slot order. -1 stands for the method entry.
func (r *Result) PredBlocks(id int) (forward, back []int) {
	h := &r.Regions[id].head
	for _, p := range h.forwardPreds {
		forward = append(forward, p.block)
	}
	for _, p := range h.backPreds {
		back = append(back, p.block)
	}
	return forward, back
}

// Dominates reports whether region a dominates region b.
func (r *Result) Dominates(a, b int) bool {
	return r.domTree.Dominates(a, b)
}
