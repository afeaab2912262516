package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fxamacker/cbor/v2"

	"github.com/wippyai/circuit/compiler"
	"github.com/wippyai/circuit/gate"
)

const source = `
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
.end
.method id vregs=0 args=1
    LDA a0
    RETURN
.end`

func TestRun_Dump(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "m.gasm")
	if err := os.WriteFile(src, []byte(source), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "out.cbor")

	if err := run([]string{src}, compiler.DefaultConfig(), "regions,gates,schedule", out); err != nil {
		t.Fatalf("run: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	var records []dumpRecord
	if err := cbor.Unmarshal(data, &records); err != nil {
		t.Fatalf("decode dump: %v", err)
	}
	if len(records) != 2 || records[0].Name != "loop" || records[1].Name != "id" {
		t.Fatalf("unexpected records %+v", records)
	}
	for _, r := range records {
		if _, err := gate.Restore(r.Snapshot); err != nil {
			t.Errorf("%s: %v", r.Name, err)
		}
		if len(r.Blocks) == 0 {
			t.Errorf("%s: no blocks", r.Name)
		}
	}
}

func TestRun_Errors(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "m.gasm")
	if err := os.WriteFile(src, []byte(source), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := run([]string{src}, compiler.DefaultConfig(), "everything", ""); err == nil {
		t.Error("unknown print section accepted")
	}
	if err := run([]string{filepath.Join(dir, "missing.gasm")}, compiler.DefaultConfig(), "", ""); err == nil {
		t.Error("missing file accepted")
	}
}
