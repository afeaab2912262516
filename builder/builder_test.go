package builder

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/circuit/asm"
	"github.com/wippyai/circuit/bytecode"
	cerrors "github.com/wippyai/circuit/errors"
	"github.com/wippyai/circuit/gate"
)

const twoBlocks = `
.method two vregs=0 args=0
    LDAI 5
    JMP L
L:
    RETURN
.end`

const choose = `
.method choose vregs=1 args=1
    LDA a0
    JEQZ other
    LDAI 1
    STA v0
    JMP join
other:
    LDAI 2
    STA v0
join:
    LDA v0
    RETURN
.end`

const counter = `
.method counter vregs=1 args=1
    LDAI 0
    STA v0
head:
    LDA a0
    JEQZ done
    LDA v0
    INC
    STA v0
    JMP head
done:
    LDA v0
    RETURN
.end`

// Try range covers pc [10, 20); the handler starts at pc 25 and the
// region inside the try starting at pc 12 is a jump target.
const guarded = `
.method guarded vregs=1 args=0
    LDAI 1
    JEQZ mid
t0:
    LDA v0
mid:
    TRYLDGLOBALBYNAME "f"
    CALLARG0
    STA v0
t1:
    JMP done
handler:
    STA v0
done:
    LDA v0
    RETURN
.try t0, t1, handler
.end`

const generator = `
.method gen vregs=2 args=0
    LDAI 7
    STA v1
    LDA v1
    SUSPENDGENERATOR v0
    RESUMEGENERATOR
    LDA v1
    RETURN
.end`

func mustBuild(t *testing.T, src string) *Result {
	t.Helper()
	m, err := asm.AssembleOne(src)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	r, err := Build(m, Options{})
	if err != nil {
		t.Fatalf("Build(%s) failed: %v", m.Name, err)
	}
	for _, g := range r.Circuit.Gates() {
		if err := r.Circuit.Verify(g); err != nil {
			t.Fatalf("gate %s: %v", r.Circuit.String(g), err)
		}
	}
	return r
}

func regionStarting(t *testing.T, regions []Region, start int) int {
	t.Helper()
	for id := range regions {
		if regions[id].Start == start {
			return id
		}
	}
	t.Fatalf("no region starts at index %d", start)
	return -1
}

func TestBuild_TwoBlocks(t *testing.T) {
	r := mustBuild(t, twoBlocks)
	if len(r.Regions) != 2 {
		t.Fatalf("got %d regions, want 2", len(r.Regions))
	}
	b0, b1 := &r.Regions[0], &r.Regions[1]
	if !slices.Equal(b0.Succs, []int{1}) {
		t.Errorf("region 0 succs = %v, want [1]", b0.Succs)
	}
	if len(b1.Succs) != 0 {
		t.Errorf("region 1 succs = %v, want none", b1.Succs)
	}
	if b1.Idom != 0 {
		t.Errorf("idom(1) = %d, want 0", b1.Idom)
	}
	if len(r.ReturnGates) != 1 {
		t.Fatalf("got %d returns", len(r.ReturnGates))
	}
	ret := r.ReturnGates[0]
	want := r.Circuit.GetConstant(gate.I64, gate.TaggedInt(5), gate.IntType)
	if got := r.Circuit.ValueIn(ret, 0); got != want {
		t.Errorf("return value = %s, want constant 5", r.Circuit.String(got))
	}
}

func TestBuild_IfElsePhi(t *testing.T) {
	r := mustBuild(t, choose)
	c := r.Circuit
	join := regionStarting(t, r.Regions, 7)

	phi, ok := r.Phi(join, 0)
	if !ok {
		t.Fatal("no phi for v0 at the join")
	}
	if c.Op(phi) != gate.OpValueSelector || c.Meta(phi).Values != 2 {
		t.Fatalf("phi = %s", c.String(phi))
	}
	if c.StateIn(phi, 0) != r.Head(join) {
		t.Errorf("phi hangs off %s, want the join merge", c.String(c.StateIn(phi, 0)))
	}

	forward, back := r.PredBlocks(join)
	if len(back) != 0 || len(forward) != 2 {
		t.Fatalf("preds = %v / %v", forward, back)
	}
	values := map[int]int32{
		regionStarting(t, r.Regions, 2): 1,
		regionStarting(t, r.Regions, 5): 2,
	}
	for k, pred := range forward {
		want := c.GetConstant(gate.I64, gate.TaggedInt(values[pred]), gate.IntType)
		if got := c.ValueIn(phi, k); got != want {
			t.Errorf("phi input %d from region %d = %s, want %d", k, pred, c.String(got), values[pred])
		}
	}

	count := 0
	for _, g := range c.Gates() {
		if c.Op(g) == gate.OpValueSelector {
			count++
		}
	}
	if count != 1 || r.NumPhis != 1 {
		t.Errorf("got %d selectors and %d phis, want exactly one", count, r.NumPhis)
	}
	if got := c.ValueIn(r.ReturnGates[0], 0); got != phi {
		t.Errorf("return value = %s, want the phi", c.String(got))
	}
}

func TestBuild_LoopHeader(t *testing.T) {
	r := mustBuild(t, counter)
	c := r.Circuit
	header := regionStarting(t, r.Regions, 2)
	bb := &r.Regions[header]

	if bb.NumOfLoopBacks != 1 || bb.NumOfStatePreds != 2 {
		t.Fatalf("header has %d preds and %d loop-backs", bb.NumOfStatePreds, bb.NumOfLoopBacks)
	}
	head := r.Head(header)
	if c.Op(head) != gate.OpLoopBegin || c.Meta(head).States != 2 {
		t.Fatalf("header gate = %s", c.String(head))
	}
	if c.Op(c.StateIn(head, 0)) != gate.OpMerge || c.Op(c.StateIn(head, 1)) != gate.OpLoopBack {
		t.Errorf("loop begin inputs = %s", c.String(head))
	}

	phi, ok := r.Phi(header, 0)
	if !ok {
		t.Fatal("no phi for v0 at the loop header")
	}
	if c.Meta(phi).Values != 2 || c.StateIn(phi, 0) != head {
		t.Fatalf("phi = %s", c.String(phi))
	}
	fwd, back := c.ValueIn(phi, 0), c.ValueIn(phi, 1)
	if c.Op(fwd) != gate.OpValueSelector || c.Op(back) != gate.OpValueSelector {
		t.Fatalf("phi inputs are %s and %s", c.String(fwd), c.String(back))
	}
	zero := c.GetConstant(gate.I64, gate.TaggedInt(0), gate.IntType)
	if c.ValueIn(fwd, 0) != zero {
		t.Errorf("forward value = %s, want constant 0", c.String(c.ValueIn(fwd, 0)))
	}
	inc := r.GateOf(5)
	if c.ValueIn(back, 0) != inc {
		t.Errorf("loop-back value = %s, want INC", c.String(c.ValueIn(back, 0)))
	}
	if c.ValueIn(inc, 1) != phi {
		t.Errorf("INC reads %s, want the header phi", c.String(c.ValueIn(inc, 1)))
	}

	hot := 0
	for _, g := range c.Gates() {
		if c.Op(g) == gate.OpUpdateHotness {
			hot++
		}
	}
	if hot != 2 {
		t.Errorf("got %d hotness gates, want back edge and return", hot)
	}
}

func TestBuildRegions_TryCatchEdges(t *testing.T) {
	m := asm.MustAssemble(guarded)
	l := m.Layout()
	if l.PC(3) != 12 || l.PC(6) != 20 || l.PC(7) != 25 {
		t.Fatalf("unexpected layout: pcs %d %d %d", l.PC(3), l.PC(6), l.PC(7))
	}
	if m.Tries[0].StartPC != 10 || m.Tries[0].EndPC != 20 {
		t.Fatalf("try = %+v", m.Tries[0])
	}

	regions, blockOf, err := BuildRegions(m)
	if err != nil {
		t.Fatalf("BuildRegions failed: %v", err)
	}
	inside := regionStarting(t, regions, 3)
	handler := regionStarting(t, regions, 7)
	if !slices.Contains(regions[inside].Catchs, handler) {
		t.Errorf("region at pc 12 catchs = %v, want handler %d", regions[inside].Catchs, handler)
	}
	if !slices.Contains(regions[handler].Trys, blockOf[3]) {
		t.Errorf("handler trys = %v, want %d", regions[handler].Trys, blockOf[3])
	}
	if slices.Contains(regions[handler-1].Succs, handler) {
		t.Error("handler must not be reached by fallthrough")
	}
}

func TestBuild_CatchHandler(t *testing.T) {
	r := mustBuild(t, guarded)
	c := r.Circuit
	handler := regionStarting(t, r.Regions, 7)
	inside := regionStarting(t, r.Regions, 3)
	bb := &r.Regions[handler]

	// LDA cannot throw, so the region at pc 10 loses its catch edge.
	if !slices.Equal(bb.Trys, []int{inside}) {
		t.Errorf("handler trys = %v, want [%d]", bb.Trys, inside)
	}
	if bb.NumOfStatePreds != 2 {
		t.Errorf("handler has %d preds, want one per throwing instruction", bb.NumOfStatePreds)
	}
	if bb.Idom != inside {
		t.Errorf("idom(handler) = %d, want %d", bb.Idom, inside)
	}

	join := regionStarting(t, r.Regions, 8)
	phi, ok := r.Phi(join, 0)
	if !ok {
		t.Fatal("no phi for v0 after the try")
	}
	forward, _ := r.PredBlocks(join)
	for k, pred := range forward {
		got := c.ValueIn(phi, k)
		switch pred {
		case handler:
			if c.Op(got) != gate.OpGetException {
				t.Errorf("value from handler = %s, want GET_EXCEPTION", c.String(got))
			}
		default:
			if got != r.GateOf(4) {
				t.Errorf("value from region %d = %s, want the call", pred, c.String(got))
			}
		}
	}
}

func TestBuild_Generator(t *testing.T) {
	r := mustBuild(t, generator)
	c := r.Circuit

	restore := c.ValueIn(r.ReturnGates[0], 0)
	if c.Op(restore) != gate.OpRestoreRegister || c.Meta(restore).Value != 1 {
		t.Fatalf("return value = %s, want RESTORE_REGISTER v1", c.String(restore))
	}
	resume, suspend := r.GateOf(4), r.GateOf(3)
	if c.DependIn(resume, 0) != restore {
		t.Errorf("resume depends on %s, want the restore", c.String(c.DependIn(resume, 0)))
	}
	if c.DependIn(restore, 0) != suspend {
		t.Errorf("restore depends on %s, want the suspend", c.String(c.DependIn(restore, 0)))
	}

	save := c.DependIn(suspend, 0)
	if c.Op(save) != gate.OpSaveRegister || int(c.Meta(save).Values) != r.Method.NumRegs() {
		t.Fatalf("suspend depends on %s", c.String(save))
	}
	if c.Op(c.DependIn(save, 0)) != gate.OpUpdateHotness {
		t.Errorf("save register follows %s, want UPDATE_HOTNESS", c.String(c.DependIn(save, 0)))
	}
	seven := c.GetConstant(gate.I64, gate.TaggedInt(7), gate.IntType)
	hole := c.GetConstant(gate.I64, gate.TaggedHole, gate.TaggedValue)
	if c.ValueIn(save, 1) != seven {
		t.Errorf("saved v1 = %s, want 7", c.String(c.ValueIn(save, 1)))
	}
	if c.ValueIn(save, 0) != hole {
		t.Errorf("saved v0 = %s, want hole", c.String(c.ValueIn(save, 0)))
	}
}

func TestBuild_ResumeWithoutSuspend(t *testing.T) {
	m := asm.MustAssemble(`
.method broken vregs=1 args=0
    LDAI 1
    RESUMEGENERATOR
    LDA v0
    RETURN
.end`)
	_, err := Build(m, Options{})
	if !errors.Is(err, &cerrors.Error{Phase: cerrors.PhaseSSA, Kind: cerrors.KindInvariant}) {
		t.Fatalf("err = %v, want ssa invariant", err)
	}
}

func TestBuild_ArenaExhausted(t *testing.T) {
	m := asm.MustAssemble(counter)
	_, err := Build(m, Options{Capacity: 12})
	if !errors.Is(err, &cerrors.Error{Phase: cerrors.PhaseCircuit, Kind: cerrors.KindArenaExhausted}) {
		t.Fatalf("err = %v, want arena exhaustion", err)
	}
	var e *cerrors.Error
	if errors.As(err, &e) && e.Method != "counter" {
		t.Errorf("error method = %q", e.Method)
	}
}

func TestBuild_InvalidMethod(t *testing.T) {
	m := &bytecode.Method{Name: "empty"}
	if _, err := Build(m, Options{}); err == nil {
		t.Fatal("expected an error for an empty method")
	}
}

func TestBuild_TypeHints(t *testing.T) {
	m := asm.MustAssemble(`
.method typed vregs=1 args=2
    LDA a0
    ADD2 a1
    STA v0
    LDA v0
    RETURN
.end`)
	r, err := Build(m, Options{Types: OpcodeTypes{Method: m, Recorded: map[int]gate.GateType{3: gate.IntType}}})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	add := r.GateOf(1)
	// A hint carried back through copies only refines untyped defs.
	if gt := r.Circuit.GateType(add); gt != gate.NumberType {
		t.Errorf("ADD2 type = %s, want NUMBER", gt)
	}

	r, err = Build(m, Options{Types: OpcodeTypes{Method: m, Recorded: map[int]gate.GateType{1: gate.AnyType, 3: gate.IntType}}})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if gt := r.Circuit.GateType(r.GateOf(1)); gt != gate.IntType {
		t.Errorf("ADD2 type = %s, want INT from the copy hint", gt)
	}
}

func TestMarkDead_Idempotent(t *testing.T) {
	m := asm.MustAssemble(`
.method dead vregs=0 args=0
    LDAI 1
    RETURN
loop:
    LDAI 2
    JMP loop
.end`)
	regions, _, err := BuildRegions(m)
	if err != nil {
		t.Fatalf("BuildRegions failed: %v", err)
	}
	if n := MarkDead(regions); n != 1 {
		t.Fatalf("first MarkDead marked %d regions, want 1", n)
	}
	first := make([]bool, len(regions))
	for i := range regions {
		first[i] = regions[i].Dead
	}
	if n := MarkDead(regions); n != 0 {
		t.Fatalf("second MarkDead marked %d regions", n)
	}
	for i := range regions {
		if regions[i].Dead != first[i] {
			t.Errorf("region %d changed dead state", i)
		}
	}
	if !regions[1].Dead || regions[0].Dead {
		t.Errorf("dead flags = %v", first)
	}
}

// checkSSA verifies that every resolved value is defined in a region
// dominating its use, and every selector input comes from its pred.
func checkSSA(t *testing.T, r *Result) {
	t.Helper()
	c := r.Circuit
	position := make(map[gate.Ref]int)
	for i := range r.Method.Instructions {
		if g := r.GateOf(i); g != gate.Null {
			position[g] = i
		}
	}
	for _, g := range c.Gates() {
		op := c.Op(g)
		if op != gate.OpJSBytecode && op != gate.OpReturn {
			continue
		}
		use, ok := r.BlockOf(g)
		if !ok {
			t.Fatalf("%s has no region", c.String(g))
		}
		for k := 0; k < int(c.Meta(g).Values); k++ {
			v := c.ValueIn(g, k)
			def, ok := r.BlockOf(v)
			if !ok {
				continue
			}
			if !r.Dominates(def, use) {
				t.Errorf("%s used by %s: region %d does not dominate %d", c.String(v), c.String(g), def, use)
			}
			if def == use && c.Op(v) == gate.OpJSBytecode && position[v] >= position[g] {
				t.Errorf("%s used by %s before its definition", c.String(v), c.String(g))
			}
		}
	}

	for id := range r.Regions {
		bb := &r.Regions[id]
		if bb.Dead {
			continue
		}
		forward, back := r.PredBlocks(id)
		for _, g := range c.Gates() {
			if c.Op(g) != gate.OpValueSelector {
				continue
			}
			var preds []int
			switch c.StateIn(g, 0) {
			case bb.head.merge:
				preds = forward
			case bb.head.backMerge:
				preds = back
			default:
				continue
			}
			if int(c.Meta(g).Values) != len(preds) {
				t.Fatalf("%s has %d inputs for %d preds", c.String(g), c.Meta(g).Values, len(preds))
			}
			for k, p := range preds {
				v := c.ValueIn(g, k)
				def, ok := r.BlockOf(v)
				if !ok || p < 0 {
					continue
				}
				if !r.Dominates(def, p) {
					t.Errorf("selector %s input %d from region %d is defined in non-dominating region %d",
						c.String(g), k, p, def)
				}
			}
		}
	}
}

func TestBuild_SSAWellFormed(t *testing.T) {
	for _, src := range []string{twoBlocks, choose, counter, guarded, generator} {
		r := mustBuild(t, src)
		t.Run(r.Method.Name, func(t *testing.T) {
			checkSSA(t, r)
		})
	}
}

func TestBuild_LogsRegions(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	m := asm.MustAssemble(counter)
	if _, err := Build(m, Options{Logger: zap.New(core)}); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if n := logs.FilterMessage("region").Len(); n != 4 {
		t.Errorf("got %d region entries, want 4", n)
	}
	built := logs.FilterMessage("circuit built").All()
	if len(built) != 1 || built[0].ContextMap()["method"] != "counter" {
		t.Errorf("circuit built entries = %v", built)
	}
}

func TestBuild_HandlerEnteredByNormalFlow(t *testing.T) {
	tests := []struct {
		name                string
		src                 string
		start, end, handler int
	}{
		{
			name: "cond jump fallthrough",
			src: `
.method fall vregs=1 args=0
    TRYLDGLOBALBYNAME "f"
    CALLARG0
    JEQZ done
    STA v0
done:
    LDA v0
    RETURN
.end`,
			start: 0, end: 3, handler: 3,
		},
		{
			name: "plain fallthrough",
			src: `
.method fall vregs=1 args=1
    LDA a0
    CALLARG0
    STA v0
    LDA v0
    RETURN
.end`,
			start: 0, end: 2, handler: 2,
		},
		{
			name: "jump",
			src: `
.method jump vregs=1 args=0
    TRYLDGLOBALBYNAME "f"
    CALLARG0
    JEQZ handler
    RETURN
handler:
    STA v0
    LDA v0
    RETURN
.end`,
			start: 0, end: 3, handler: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := asm.MustAssemble(tt.src)
			l := m.Layout()
			m.Tries = []bytecode.TryBlock{{
				StartPC: l.PC(tt.start),
				EndPC:   l.PC(tt.end),
				Catches: []uint32{l.PC(tt.handler)},
			}}
			_, err := Build(m, Options{})
			if !errors.Is(err, &cerrors.Error{Phase: cerrors.PhaseDecode, Kind: cerrors.KindInvalidInput}) {
				t.Fatalf("err = %v, want decode/invalid_input", err)
			}
		})
	}
}

// Handlers listed in reverse order still rank by start index, so only
// the one that starts first keeps its catch edge.
const twoHandlers = `
.method multi vregs=1 args=0
begin:
    TRYLDGLOBALBYNAME "f"
    CALLARG0
end:
    RETURN
first:
    STA v0
    LDA v0
    RETURN
second:
    LDAI 2
    RETURN
.try begin, end, second, first
.end`

func TestBuildRegions_SeveralHandlers(t *testing.T) {
	regions, _, err := BuildRegions(asm.MustAssemble(twoHandlers))
	if err != nil {
		t.Fatalf("BuildRegions failed: %v", err)
	}
	body := regionStarting(t, regions, 0)
	first := regionStarting(t, regions, 3)
	second := regionStarting(t, regions, 6)
	if !slices.Equal(regions[body].Catchs, []int{first, second}) {
		t.Errorf("catchs = %v, want [%d %d]", regions[body].Catchs, first, second)
	}
	for _, h := range []int{first, second} {
		if !slices.Equal(regions[h].Trys, []int{body}) {
			t.Errorf("region %d trys = %v, want [%d]", h, regions[h].Trys, body)
		}
		if len(regions[h].Preds) != 0 {
			t.Errorf("handler %d has normal preds %v", h, regions[h].Preds)
		}
	}
}

func TestBuild_SeveralHandlers(t *testing.T) {
	r := mustBuild(t, twoHandlers)
	body := regionStarting(t, r.Regions, 0)
	first := regionStarting(t, r.Regions, 3)
	second := regionStarting(t, r.Regions, 6)

	if !slices.Equal(r.Regions[body].Catchs, []int{first}) {
		t.Errorf("catchs = %v, want only [%d]", r.Regions[body].Catchs, first)
	}
	if !slices.Equal(r.Regions[first].Trys, []int{body}) {
		t.Errorf("first handler trys = %v", r.Regions[first].Trys)
	}
	if !r.Regions[second].Dead || len(r.Regions[second].Trys) != 0 {
		t.Errorf("second handler dead=%v trys=%v, want dead with no trys",
			r.Regions[second].Dead, r.Regions[second].Trys)
	}
	if len(r.ReturnGates) != 2 {
		t.Errorf("got %d returns, want 2", len(r.ReturnGates))
	}
}

// A region that falls into a handler head has no normal successor. The
// assembler must refuse it even when validation was bypassed.
func TestBuildSubCircuit_LostSuccessor(t *testing.T) {
	m := asm.MustAssemble(`
.method lost vregs=1 args=1
    LDA a0
    CALLARG0
    STA v0
    LDA v0
    RETURN
.end`)
	l := m.Layout()
	m.Tries = []bytecode.TryBlock{{StartPC: 0, EndPC: l.PC(2), Catches: []uint32{l.PC(2)}}}

	err := catchFatal(newBuilder(m, Options{}).run)
	if !errors.Is(err, &cerrors.Error{Phase: cerrors.PhaseCircuit, Kind: cerrors.KindInvariant}) {
		t.Fatalf("err = %v, want circuit invariant", err)
	}
	if !strings.Contains(err.Error(), "no successor") {
		t.Errorf("err = %v, want a missing successor", err)
	}
}
