package circuit

import (
	"context"

	"github.com/wippyai/circuit/asm"
	"github.com/wippyai/circuit/bytecode"
	"github.com/wippyai/circuit/compiler"
)

// Compile compiles one method.
func Compile(m *bytecode.Method, cfg compiler.Config) (*compiler.Compiled, error) {
	return compiler.Compile(m, cfg)
}

// CompileSource assembles src and compiles every method in it. Methods
// that fail carry their error in Compiled.Err.
func CompileSource(ctx context.Context, src string, cfg compiler.Config) ([]*compiler.Compiled, error) {
	methods, err := asm.Assemble(src)
	if err != nil {
		return nil, err
	}
	return compiler.CompileAll(ctx, methods, cfg)
}
