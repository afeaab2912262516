package asm

import (
	"errors"
	"strings"
	"testing"

	"github.com/wippyai/circuit/bytecode"
	cerrors "github.com/wippyai/circuit/errors"
)

func TestAssemble(t *testing.T) {
	m, err := AssembleOne(`
.method two vregs=0 args=0
    LDAI 5
    JMP L
L:
    RETURN
.end`)
	if err != nil {
		t.Fatalf("AssembleOne failed: %v", err)
	}
	if m.Name != "two" || len(m.Instructions) != 3 {
		t.Fatalf("method = %s with %d instructions", m.Name, len(m.Instructions))
	}
	if off := m.Instructions[1].JumpOffset(); off != 5 {
		t.Errorf("JMP offset = %d, want 5", off)
	}
	l := m.Layout()
	target, err := m.JumpTarget(l, 1)
	if err != nil || target != 2 {
		t.Errorf("JumpTarget = %d, %v", target, err)
	}
}

func TestAssemble_OperandsAndPool(t *testing.T) {
	m, err := AssembleOne(`
.method ops vregs=2 args=1
    LDA_STR "name"
    STA v0
    TRYLDGLOBALBYNAME "print"
    CALLARG1 v0
    LDOBJBYNAME @7, "name"
    CALLARGS2 a0, v1
    FLDAI 2.5
    RETURN
.end`)
	if err != nil {
		t.Fatalf("AssembleOne failed: %v", err)
	}
	if len(m.Strings) != 2 || m.Strings[0] != "name" || m.Strings[1] != "print" {
		t.Errorf("Strings = %v", m.Strings)
	}

	tests := []struct {
		index int
		args  []int64
	}{
		{0, []int64{0}},
		{2, []int64{0, 1}},
		{3, []int64{1, 0}},
		{4, []int64{7, 0}},
		{5, []int64{2, 2, 1}},
	}
	for _, tt := range tests {
		got := m.Instructions[tt.index].Args
		if len(got) != len(tt.args) {
			t.Errorf("index %d args = %v, want %v", tt.index, got, tt.args)
			continue
		}
		for i := range got {
			if got[i] != tt.args[i] {
				t.Errorf("index %d args = %v, want %v", tt.index, got, tt.args)
				break
			}
		}
	}
	if f := m.Instructions[6].Float(0); f != 2.5 {
		t.Errorf("FLDAI = %v, want 2.5", f)
	}
}

func TestAssemble_Try(t *testing.T) {
	m, err := AssembleOne(`
.method guarded vregs=1 args=0
begin:
    TRYLDGLOBALBYNAME "f"
    CALLARG0
end:
    RETURN
handler:
    STA v0
    RETURNUNDEFINED
.try begin, end, handler
.end`)
	if err != nil {
		t.Fatalf("AssembleOne failed: %v", err)
	}
	if len(m.Tries) != 1 {
		t.Fatalf("Tries = %v", m.Tries)
	}
	l := m.Layout()
	try := m.Tries[0]
	if try.StartPC != 0 || try.EndPC != l.PC(2) || len(try.Catches) != 1 || try.Catches[0] != l.PC(3) {
		t.Errorf("try = %+v", try)
	}
}

func TestAssemble_MultipleMethods(t *testing.T) {
	methods, err := Assemble(`
.method a
    RETURNUNDEFINED
.end
.method b args=2
    LDA a1
    RETURN
.end`)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if len(methods) != 2 {
		t.Fatalf("got %d methods", len(methods))
	}
	if reg := methods[1].Instructions[0].Reg(0); reg != 1 {
		t.Errorf("a1 with no locals = v%d, want v1", reg)
	}
}

func TestAssembleErrors(t *testing.T) {
	tests := []struct {
		name, src, wantErr string
	}{
		{"missing_method", "RETURN", "expected '.method'"},
		{"unterminated", ".method f\n RETURN\n", "missing '.end'"},
		{"unknown_instr", ".method f\n BOGUS\n.end", "unknown instruction"},
		{"unknown_label", ".method f\n JMP nowhere\n.end", "unknown label"},
		{"bad_register", ".method f vregs=1\n STA x1\n RETURN\n.end", "expected register"},
		{"arg_range", ".method f args=1\n LDA a3\n RETURN\n.end", "out of range"},
		{"trailing", ".method f\n RETURN v1\n.end", "unexpected"},
		{"falls_through", ".method f\n LDAI 1\n.end", "falls through"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Assemble(tt.src)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q missing %q", err, tt.wantErr)
			}
			var e *cerrors.Error
			if !errors.As(err, &e) {
				t.Errorf("error %T is not structured", err)
			}
		})
	}
}

func TestMustAssemblePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustAssemble should panic on bad input")
		}
	}()
	MustAssemble(".method f\n BOGUS\n.end")
}

func TestAssemble_RoundTripsThroughValidate(t *testing.T) {
	m := MustAssemble(`
.method loop vregs=1 args=0
    LDAI 3
    STA v0
head:
    LDA v0
    JEQZ out
    DEC
    STA v0
    JMP head
out:
    RETURNUNDEFINED
.end`)
	if err := m.Validate(); err != nil {
		t.Fatalf("Validate = %v", err)
	}
	jmp := m.Instructions[6]
	if jmp.Op != bytecode.OpJmp || jmp.JumpOffset() >= 0 {
		t.Errorf("back edge offset = %d, want negative", jmp.JumpOffset())
	}
}
