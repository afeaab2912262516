package verify

import (
	"slices"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/circuit/asm"
	"github.com/wippyai/circuit/builder"
	"github.com/wippyai/circuit/gate"
)

func observed() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

func failedCheck(t *testing.T, logs *observer.ObservedLogs) string {
	t.Helper()
	entries := logs.FilterMessage("verifier failed").All()
	if len(entries) != 1 {
		t.Fatalf("got %d failure entries", len(entries))
	}
	check, _ := entries[0].ContextMap()["check"].(string)
	return check
}

func TestRun_BuiltCircuits(t *testing.T) {
	sources := []string{`
.method loop vregs=1 args=1
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
.end`, `
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
.end`, `
.method gen vregs=2 args=0
    LDAI 7
    STA v1
    LDA v1
    SUSPENDGENERATOR v0
    RESUMEGENERATOR
    LDA v1
    RETURN
.end`}

	for _, src := range sources {
		m := asm.MustAssemble(src)
		t.Run(m.Name, func(t *testing.T) {
			r, err := builder.Build(m, builder.Options{})
			if err != nil {
				t.Fatalf("Build failed: %v", err)
			}
			log, logs := observed()
			if !Run(r.Circuit, m.Name, log) {
				for _, e := range logs.All() {
					t.Logf("%s %v", e.Message, e.ContextMap())
				}
				t.Fatal("verifier rejected a built circuit")
			}
			if logs.FilterMessage("verifier passed").Len() != 1 {
				t.Error("missing pass entry")
			}
		})
	}
}

func TestRun_Failures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(c *gate.Circuit)
		skip  []Check
		check Check
		proof string
	}{
		{
			name: "dead input",
			setup: func(c *gate.Circuit) {
				k := c.GetConstant(gate.I64, 1, gate.IntType)
				ret := c.NewGate(gate.Return(), gate.NoValue,
					[]gate.Ref{c.StateEntry(), c.DependEntry(), k, c.ReturnList()}, gate.EmptyType)
				dead := c.NewGate(gate.Constant(2), gate.I64, nil, gate.IntType)
				c.DeleteGate(dead)
				c.ModifyIn(ret, c.ValueIndex(ret, 0), dead)
			},
			check: CheckIntegrity,
			proof: "refers to deleted gate",
		},
		{
			name: "unreachable pred",
			setup: func(c *gate.Circuit) {
				orphan := c.NewGate(gate.Merge(1), gate.NoValue, []gate.Ref{gate.Null}, gate.EmptyType)
				c.NewIn(orphan, 0, orphan)
				c.NewGate(gate.Merge(2), gate.NoValue, []gate.Ref{c.StateEntry(), orphan}, gate.EmptyType)
			},
			check: CheckCFGSoundness,
			proof: "is unreachable from entry",
		},
		{
			name: "cycle without loop back",
			setup: func(c *gate.Circuit) {
				m1 := c.NewGate(gate.Merge(2), gate.NoValue, []gate.Ref{c.StateEntry(), gate.Null}, gate.EmptyType)
				m2 := c.NewGate(gate.Merge(1), gate.NoValue, []gate.Ref{m1}, gate.EmptyType)
				c.NewIn(m1, 1, m2)
			},
			check: CheckCFGAcyclic,
			proof: "without loop back edges",
		},
		{
			name: "irreducible",
			setup: func(c *gate.Circuit) {
				m0 := c.NewGate(gate.Merge(1), gate.NoValue, []gate.Ref{c.StateEntry()}, gate.EmptyType)
				side := c.NewGate(gate.Merge(1), gate.NoValue, []gate.Ref{c.StateEntry()}, gate.EmptyType)
				back := c.NewGate(gate.LoopBack(), gate.NoValue, []gate.Ref{side}, gate.EmptyType)
				c.NewGate(gate.LoopBegin(), gate.NoValue, []gate.Ref{m0, back}, gate.EmptyType)
			},
			check: CheckReducible,
			proof: "does not dominate",
		},
		{
			name: "floating cycle",
			setup: func(c *gate.Circuit) {
				r1 := c.NewGate(gate.RestoreRegister(0), gate.I64, []gate.Ref{gate.Null}, gate.AnyType)
				r2 := c.NewGate(gate.RestoreRegister(1), gate.I64, []gate.Ref{r1}, gate.AnyType)
				c.NewIn(r1, 0, r2)
				c.NewGate(gate.Return(), gate.NoValue,
					[]gate.Ref{c.StateEntry(), c.DependEntry(), r1, c.ReturnList()}, gate.EmptyType)
			},
			check: CheckFlowCycles,
			proof: "without passing selectors",
		},
		{
			name: "use above input",
			setup: func(c *gate.Circuit) {
				m := c.NewGate(gate.Merge(1), gate.NoValue, []gate.Ref{c.StateEntry()}, gate.EmptyType)
				below := c.NewGate(gate.Merge(1), gate.NoValue, []gate.Ref{m}, gate.EmptyType)
				r := c.NewGate(gate.RestoreRegister(0), gate.I64, []gate.Ref{below}, gate.AnyType)
				c.NewGate(gate.Return(), gate.NoValue,
					[]gate.Ref{m, c.DependEntry(), r, c.ReturnList()}, gate.EmptyType)
			},
			skip:  []Check{CheckFloatingGates},
			check: CheckBounds,
			proof: "upper bound is BB_",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := gate.New(0)
			tt.setup(c)
			log, logs := observed()
			if RunWith(c, tt.name, log, Options{Skip: tt.skip}) {
				t.Fatal("verifier accepted a broken circuit")
			}
			if got := failedCheck(t, logs); got != string(tt.check) {
				t.Errorf("failed check = %q, want %q", got, tt.check)
			}

			found := false
			for _, e := range logs.FilterLevelExact(zapcore.ErrorLevel).All() {
				lines, _ := e.ContextMap()["proof"].([]interface{})
				for _, l := range lines {
					if s, ok := l.(string); ok && strings.Contains(s, tt.proof) {
						found = true
					}
				}
				if e.ContextMap()["method"] != tt.name {
					t.Errorf("entry %q lacks the method name", e.Message)
				}
			}
			if !found {
				t.Errorf("no proof line contains %q", tt.proof)
			}
		})
	}
}

func TestRun_SkipAll(t *testing.T) {
	c := gate.New(0)
	m1 := c.NewGate(gate.Merge(2), gate.NoValue, []gate.Ref{c.StateEntry(), gate.Null}, gate.EmptyType)
	m2 := c.NewGate(gate.Merge(1), gate.NoValue, []gate.Ref{m1}, gate.EmptyType)
	c.NewIn(m1, 1, m2)

	skip := slices.Clone(Checks)
	if !RunWith(c, "cyclic", nil, Options{Skip: skip}) {
		t.Fatal("skipped checks still ran")
	}
}

// The loop a/b is entered at both heads, so neither dominates the other.
func TestRun_IrreducibleLoop(t *testing.T) {
	m := asm.MustAssemble(`
.method twoentry vregs=0 args=1
    LDA a0
    JEQZ b
a:
    LDA a0
    JEQZ done
b:
    LDA a0
    JEQZ a
done:
    RETURNUNDEFINED
.end`)
	r, err := builder.Build(m, builder.Options{})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	log, logs := observed()
	if Run(r.Circuit, m.Name, log) {
		t.Fatal("verifier accepted an irreducible loop")
	}
	if got := failedCheck(t, logs); got != string(CheckReducible) {
		t.Errorf("failed check = %q, want %q", got, CheckReducible)
	}
}
