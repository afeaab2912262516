package compiler

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/circuit/errors"
)

var (
	logger   *zap.Logger
	loggerMu sync.RWMutex
)

// Logger returns the compiler package's logger instance.
// It uses a no-op logger by default.
func Logger() *zap.Logger {
	loggerMu.RLock()
	l := logger
	loggerMu.RUnlock()
	if l == nil {
		return zap.NewNop()
	}
	return l
}

// SetLogger configures the logger used when a Config carries none.
func SetLogger(l *zap.Logger) {
	loggerMu.Lock()
	logger = l
	loggerMu.Unlock()
}

// NewLogger builds a console logger at the named level.
func NewLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "log level")
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true
	l, err := cfg.Build()
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindIO, err, "build logger")
	}
	return l, nil
}

// methodFilter decides which methods get a live logger. The zero value
// admits every method.
type methodFilter struct {
	names map[string]bool
	none  bool
}

func parseMethodFilter(list string) methodFilter {
	list = strings.TrimSpace(list)
	switch list {
	case "", "all":
		return methodFilter{}
	case "none":
		return methodFilter{none: true}
	}
	f := methodFilter{names: make(map[string]bool)}
	for _, name := range strings.Split(list, ",") {
		if name = strings.TrimSpace(name); name != "" {
			f.names[name] = true
		}
	}
	return f
}

func (f methodFilter) admits(method string) bool {
	if f.none {
		return false
	}
	return f.names == nil || f.names[method]
}
