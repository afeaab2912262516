package compiler

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/circuit/errors"
	"github.com/wippyai/circuit/gate"
	"github.com/wippyai/circuit/verify"
)

// Config controls one compiler.
type Config struct {
	// Logger receives pass logs. Nil selects the package logger.
	Logger *zap.Logger `toml:"-"`

	LogLevel      string   `toml:"log_level"`
	LogMethods    string   `toml:"log_methods"`
	CachePath     string   `toml:"cache_path"`
	VerifySkip    []string `toml:"verify_skip"`
	ArenaCapacity int      `toml:"arena_capacity"`
	Workers       int      `toml:"workers"`
	Verify        bool     `toml:"verify"`
	FoldSelectors bool     `toml:"fold_selectors"`
	Schedule      bool     `toml:"schedule"`
	TypeHints     bool     `toml:"type_hints"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		LogLevel:      "info",
		LogMethods:    "all",
		ArenaCapacity: gate.DefaultCapacity,
		Verify:        true,
		Schedule:      true,
	}
}

// LoadConfig reads a TOML file on top of DefaultConfig. Unknown keys are
// rejected.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err,
			fmt.Sprintf("parse error in %s", path))
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return Config{}, errors.InvalidInput(errors.PhaseConfig,
			fmt.Sprintf("unknown keys in %s: %s", path, strings.Join(keys, ", ")))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges and names.
func (c *Config) Validate() error {
	if c.ArenaCapacity < 0 {
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Value(c.ArenaCapacity).
			Detail("arena_capacity must not be negative").
			Build()
	}
	if c.Workers < 0 {
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Value(c.Workers).
			Detail("workers must not be negative").
			Build()
	}
	if c.LogLevel != "" {
		if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
			return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "log_level")
		}
	}
	for _, name := range c.VerifySkip {
		if !slices.Contains(verify.Checks, verify.Check(name)) {
			return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
				Value(name).
				Detail("verify_skip: unknown check %q", name).
				Build()
		}
	}
	return nil
}

func (c *Config) verifyOptions() verify.Options {
	var opts verify.Options
	for _, name := range c.VerifySkip {
		opts.Skip = append(opts.Skip, verify.Check(name))
	}
	return opts
}
