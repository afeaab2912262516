package token

import "testing"

func TestTokenize(t *testing.T) {
	src := `.method f vregs=1 args=0
loop:   ; head
    LDA_STR "a b", @2
    FLDAI -1.5e3
    JMP loop
.end
`
	want := []struct {
		typ Type
		val string
	}{
		{Ident, ".method"}, {Ident, "f"}, {Ident, "vregs=1"}, {Ident, "args=0"}, {Newline, "\n"},
		{Ident, "loop:"}, {Newline, "\n"},
		{Ident, "LDA_STR"}, {String, "a b"}, {Comma, ","}, {Ident, "@2"}, {Newline, "\n"},
		{Ident, "FLDAI"}, {Number, "-1.5e3"}, {Newline, "\n"},
		{Ident, "JMP"}, {Ident, "loop"}, {Newline, "\n"},
		{Ident, ".end"}, {Newline, "\n"},
	}

	got := Tokenize(src)
	if len(got) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(got), len(want), got)
	}
	for i, w := range want {
		if got[i].Type != w.typ || got[i].Value != w.val {
			t.Errorf("token %d = %v %q, want %v %q", i, got[i].Type, got[i].Value, w.typ, w.val)
		}
	}
	if got[len(got)-1].Line != 6 {
		t.Errorf("last token line = %d, want 6", got[len(got)-1].Line)
	}
}

func TestTokenize_BlankLinesCollapse(t *testing.T) {
	got := Tokenize("\n\n  RETURN\n\n\n")
	if len(got) != 2 || got[0].Value != "RETURN" || got[0].Line != 3 || got[1].Type != Newline {
		t.Errorf("Tokenize = %v", got)
	}
}
