package asm

import (
	stderrors "errors"
	"os"

	"github.com/wippyai/circuit/asm/internal/parser"
	"github.com/wippyai/circuit/asm/internal/token"
	"github.com/wippyai/circuit/bytecode"
	"github.com/wippyai/circuit/errors"
)

// Assemble parses every method in source.
func Assemble(source string) ([]*bytecode.Method, error) {
	tokens := token.Tokenize(source)
	p := parser.New(tokens)
	methods, err := p.Parse()
	if err != nil {
		var e *errors.Error
		if stderrors.As(err, &e) {
			return nil, err
		}
		return nil, errors.Wrap(errors.PhaseAssemble, errors.KindSyntax, err, "assemble")
	}
	return methods, nil
}

// AssembleOne parses source that must contain exactly one method.
func AssembleOne(source string) (*bytecode.Method, error) {
	methods, err := Assemble(source)
	if err != nil {
		return nil, err
	}
	if len(methods) != 1 {
		return nil, errors.New(errors.PhaseAssemble, errors.KindInvalidInput).
			Detail("expected one method, got %d", len(methods)).
			Build()
	}
	return methods[0], nil
}

// AssembleFile reads and assembles a source file.
func AssembleFile(path string) ([]*bytecode.Method, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseAssemble, errors.KindIO, err, path)
	}
	return Assemble(string(data))
}

// MustAssemble is like AssembleOne but panics on error. Intended for tests
// and examples.
func MustAssemble(source string) *bytecode.Method {
	m, err := AssembleOne(source)
	if err != nil {
		panic(err)
	}
	return m
}
