package compiler

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/circuit/asm"
	"github.com/wippyai/circuit/bytecode"
	cerrors "github.com/wippyai/circuit/errors"
	"github.com/wippyai/circuit/gate"
	"github.com/wippyai/circuit/verify"
)

const sameAcc = `
.method same vregs=0 args=1
    LDA a0
    JEQZ other
    LDA a0
    JMP join
other:
    LDA a0
join:
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

const broken = `
.method broken vregs=1 args=0
    LDAI 1
    RESUMEGENERATOR
    LDA v0
    RETURN
.end`

func assemble(t *testing.T, src string) []*bytecode.Method {
	t.Helper()
	methods, err := asm.Assemble(src)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	return methods
}

func TestCompile_FoldsTrivialPhi(t *testing.T) {
	m := assemble(t, sameAcc)[0]
	cfg := DefaultConfig()
	cfg.FoldSelectors = true

	out, err := Compile(m, cfg)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if out.Folded < 1 {
		t.Fatalf("Folded = %d, want at least 1", out.Folded)
	}
	c := out.Circuit
	ret := out.Build.ReturnGates[0]
	if v := c.ValueIn(ret, 0); c.Op(v) != gate.OpArg {
		t.Errorf("return value is %s, want the argument", c.String(v))
	}
	for _, ref := range c.Gates() {
		if !c.Op(ref).IsSelector() {
			continue
		}
		if _, ok := trivialInput(c, ref); ok {
			t.Errorf("trivial selector left: %s", c.String(ref))
		}
	}
	if out.Schedule == nil || len(out.Blocks) == 0 {
		t.Fatal("no schedule")
	}
}

func TestCompile_StagesDisabled(t *testing.T) {
	m := assemble(t, counter)[0]
	cfg := DefaultConfig()
	cfg.Verify = false
	cfg.Schedule = false

	out, err := Compile(m, cfg)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if out.Schedule != nil || out.Blocks != nil {
		t.Error("scheduled although disabled")
	}
	if out.Folded != 0 {
		t.Errorf("Folded = %d with folding disabled", out.Folded)
	}
	if !verify.Run(out.Circuit, m.Name, nil) {
		t.Error("circuit fails verification")
	}
}

func TestCompile_ArenaExhausted(t *testing.T) {
	m := assemble(t, counter)[0]
	cfg := DefaultConfig()
	cfg.ArenaCapacity = 12

	_, err := Compile(m, cfg)
	if !errors.Is(err, &cerrors.Error{Phase: cerrors.PhaseCircuit, Kind: cerrors.KindArenaExhausted}) {
		t.Fatalf("err = %v, want arena exhausted", err)
	}
}

func TestCompileAll_OrderAndErrors(t *testing.T) {
	methods := assemble(t, counter+sameAcc+broken+counter)
	core, logs := observer.New(zapcore.ErrorLevel)
	cfg := DefaultConfig()
	cfg.Workers = 2
	cfg.Logger = zap.New(core)

	out, err := CompileAll(context.Background(), methods, cfg)
	if err != nil {
		t.Fatalf("CompileAll: %v", err)
	}
	if len(out) != len(methods) {
		t.Fatalf("got %d results for %d methods", len(out), len(methods))
	}
	for i, res := range out {
		if res.Method != methods[i] {
			t.Errorf("result %d is for %s, want %s", i, res.Method.Name, methods[i].Name)
		}
	}
	if out[2].Err == nil {
		t.Fatal("broken method compiled")
	}
	for _, i := range []int{0, 1, 3} {
		if out[i].Err != nil {
			t.Errorf("%s: %v", methods[i].Name, out[i].Err)
		}
	}

	failed := logs.FilterMessage("compile failed").All()
	if len(failed) != 1 {
		t.Fatalf("got %d compile failures logged, want 1", len(failed))
	}
	if got := failed[0].ContextMap()["method"]; got != "broken" {
		t.Errorf("failure logged for %v", got)
	}
}

func TestCompileAll_Cancelled(t *testing.T) {
	methods := assemble(t, counter)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := CompileAll(ctx, methods, DefaultConfig())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestCompile_Cache(t *testing.T) {
	m := assemble(t, counter)[0]
	cfg := DefaultConfig()
	cfg.CachePath = filepath.Join(t.TempDir(), "circuits.db")

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	first, err := c.Compile(m)
	if err != nil {
		t.Fatalf("first Compile: %v", err)
	}
	if first.Cached {
		t.Fatal("first compile came from an empty cache")
	}

	second, err := c.Compile(m)
	if err != nil {
		t.Fatalf("second Compile: %v", err)
	}
	if !second.Cached {
		t.Fatal("second compile missed the cache")
	}
	if second.Circuit.Len() != first.Circuit.Len() {
		t.Errorf("cached circuit has %d gates, want %d", second.Circuit.Len(), first.Circuit.Len())
	}
	if len(second.Blocks) != len(first.Blocks) {
		t.Fatalf("cached %d blocks, want %d", len(second.Blocks), len(first.Blocks))
	}
	for i := range first.Blocks {
		if !slices.Equal(first.Blocks[i], second.Blocks[i]) {
			t.Errorf("block %d = %v, want %v", i, second.Blocks[i], first.Blocks[i])
		}
	}
	if !verify.Run(second.Circuit, m.Name, nil) {
		t.Error("restored circuit fails verification")
	}

	// Folding changes the circuit, so it is cached under its own key.
	cfg.FoldSelectors = true
	folding, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer folding.Close()
	third, err := folding.Compile(m)
	if err != nil {
		t.Fatalf("folding Compile: %v", err)
	}
	if third.Cached {
		t.Error("folding compile reused the unfolded entry")
	}
}

func TestCompile_MethodFilter(t *testing.T) {
	methods := assemble(t, counter+sameAcc)
	core, logs := observer.New(zapcore.DebugLevel)
	cfg := DefaultConfig()
	cfg.Logger = zap.New(core)
	cfg.LogMethods = "same"

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, m := range methods {
		if _, err := c.Compile(m); err != nil {
			t.Fatalf("Compile %s: %v", m.Name, err)
		}
	}
	if logs.Len() == 0 {
		t.Fatal("nothing logged for the admitted method")
	}
	for _, e := range logs.All() {
		if e.ContextMap()["method"] == "counter" {
			t.Fatalf("filtered method logged %q", e.Message)
		}
	}
}

func TestMethodFilter(t *testing.T) {
	tests := []struct {
		list   string
		method string
		want   bool
	}{
		{"", "a", true},
		{"all", "a", true},
		{"none", "a", false},
		{"a, b", "b", true},
		{"a,b", "c", false},
	}
	for _, tt := range tests {
		if got := parseMethodFilter(tt.list).admits(tt.method); got != tt.want {
			t.Errorf("filter %q admits %q = %v, want %v", tt.list, tt.method, got, tt.want)
		}
	}
}
