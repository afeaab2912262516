package compiler

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	cerrors "github.com/wippyai/circuit/errors"
	"github.com/wippyai/circuit/gate"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gatec.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
arena_capacity = 4096
fold_selectors = true
schedule = false
log_level = "debug"
log_methods = "main,loop"
workers = 3
verify_skip = ["bounds", "reducible"]
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ArenaCapacity != 4096 || !cfg.FoldSelectors || cfg.Schedule || cfg.Workers != 3 {
		t.Errorf("unexpected config %+v", cfg)
	}
	if !cfg.Verify {
		t.Error("verify default lost")
	}
	if cfg.LogLevel != "debug" || cfg.LogMethods != "main,loop" {
		t.Errorf("log settings = %q %q", cfg.LogLevel, cfg.LogMethods)
	}
	if !slices.Equal(cfg.VerifySkip, []string{"bounds", "reducible"}) {
		t.Errorf("verify_skip = %v", cfg.VerifySkip)
	}
	if opts := cfg.verifyOptions(); len(opts.Skip) != 2 {
		t.Errorf("verify options skip %v", opts.Skip)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ArenaCapacity != gate.DefaultCapacity || !cfg.Verify || !cfg.Schedule {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown key", "arena = 1\n"},
		{"syntax", "verify = \n"},
		{"negative capacity", "arena_capacity = -1\n"},
		{"negative workers", "workers = -2\n"},
		{"bad level", "log_level = \"loud\"\n"},
		{"bad check", "verify_skip = [\"everything\"]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			var e *cerrors.Error
			if !errors.As(err, &e) {
				t.Fatalf("err = %v, want *errors.Error", err)
			}
			if e.Phase != cerrors.PhaseConfig {
				t.Errorf("phase = %s, want config", e.Phase)
			}
		})
	}
}

func TestLoadConfig_Missing(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatal("LoadConfig of a missing file succeeded")
	}
}

func TestNewLogger(t *testing.T) {
	if _, err := NewLogger("warn"); err != nil {
		t.Fatalf("NewLogger(warn): %v", err)
	}
	if _, err := NewLogger("chatty"); err == nil {
		t.Fatal("NewLogger accepted an unknown level")
	}
}
