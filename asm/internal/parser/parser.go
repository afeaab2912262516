package parser

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/wippyai/circuit/asm/internal/token"
	"github.com/wippyai/circuit/bytecode"
)

type fixup struct {
	label string
	index int
	line  int
}

type tryDecl struct {
	start, end string
	catches    []string
	line       int
}

type Parser struct {
	method  *bytecode.Method
	labels  map[string]int
	strings map[string]int
	tokens  []token.Token
	fixups  []fixup
	tries   []tryDecl
	pos     int
	nextIC  int64
}

func New(tokens []token.Token) *Parser {
	return &Parser{tokens: tokens}
}

// Parse reads every method in the token stream.
func (p *Parser) Parse() ([]*bytecode.Method, error) {
	var methods []*bytecode.Method
	for {
		p.skipNewlines()
		t := p.peek()
		if t == nil {
			return methods, nil
		}
		if t.Value != ".method" {
			return nil, fmt.Errorf("line %d: expected '.method', got %q", t.Line, t.Value)
		}
		m, err := p.parseMethod()
		if err != nil {
			return nil, err
		}
		methods = append(methods, m)
	}
}

func (p *Parser) peek() *token.Token {
	if p.pos >= len(p.tokens) {
		return nil
	}
	return &p.tokens[p.pos]
}

func (p *Parser) next() *token.Token {
	if p.pos >= len(p.tokens) {
		return nil
	}
	t := &p.tokens[p.pos]
	p.pos++
	return t
}

func (p *Parser) expect(typ token.Type) (*token.Token, error) {
	t := p.next()
	if t == nil {
		return nil, fmt.Errorf("unexpected end of input")
	}
	if t.Type != typ {
		return nil, fmt.Errorf("line %d: expected %v, got %q", t.Line, typ, t.Value)
	}
	return t, nil
}

func (p *Parser) skipNewlines() {
	for t := p.peek(); t != nil && t.Type == token.Newline; t = p.peek() {
		p.pos++
	}
}

func (p *Parser) endOfLine() error {
	t := p.next()
	if t == nil || t.Type == token.Newline {
		return nil
	}
	return fmt.Errorf("line %d: unexpected %q at end of line", t.Line, t.Value)
}

func (p *Parser) parseMethod() (*bytecode.Method, error) {
	head := p.next()
	name, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}

	p.method = &bytecode.Method{Name: name.Value}
	p.labels = make(map[string]int)
	p.strings = make(map[string]int)
	p.fixups = nil
	p.tries = nil
	p.nextIC = 0

	for t := p.peek(); t != nil && t.Type == token.Ident; t = p.peek() {
		p.next()
		key, val, ok := strings.Cut(t.Value, "=")
		if !ok {
			return nil, fmt.Errorf("line %d: expected key=value, got %q", t.Line, t.Value)
		}
		n, err := strconv.ParseUint(val, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid %s value %q", t.Line, key, val)
		}
		switch key {
		case "vregs":
			p.method.NumVRegs = uint16(n)
		case "args":
			p.method.NumArgs = uint16(n)
		default:
			return nil, fmt.Errorf("line %d: unknown method attribute %q", t.Line, key)
		}
	}
	if err := p.endOfLine(); err != nil {
		return nil, err
	}

	for {
		p.skipNewlines()
		t := p.peek()
		if t == nil {
			return nil, fmt.Errorf("line %d: method %s missing '.end'", head.Line, p.method.Name)
		}
		switch {
		case t.Value == ".end":
			p.next()
			if err := p.endOfLine(); err != nil {
				return nil, err
			}
			return p.finish()
		case t.Value == ".try":
			if err := p.parseTry(); err != nil {
				return nil, err
			}
		case t.Type == token.Ident && strings.HasSuffix(t.Value, ":"):
			p.next()
			label := strings.TrimSuffix(t.Value, ":")
			if _, dup := p.labels[label]; dup {
				return nil, fmt.Errorf("line %d: duplicate label %q", t.Line, label)
			}
			p.labels[label] = len(p.method.Instructions)
		default:
			if err := p.parseInstruction(); err != nil {
				return nil, err
			}
		}
	}
}

func (p *Parser) parseTry() error {
	t := p.next()
	decl := tryDecl{line: t.Line}
	var names []string
	for {
		name, err := p.expect(token.Ident)
		if err != nil {
			return err
		}
		names = append(names, name.Value)
		if c := p.peek(); c == nil || c.Type != token.Comma {
			break
		}
		p.next()
	}
	if len(names) < 3 {
		return fmt.Errorf("line %d: .try needs start, end and at least one catch label", t.Line)
	}
	decl.start, decl.end, decl.catches = names[0], names[1], names[2:]
	p.tries = append(p.tries, decl)
	return p.endOfLine()
}

func (p *Parser) parseInstruction() error {
	t, err := p.expect(token.Ident)
	if err != nil {
		return err
	}
	op, ok := bytecode.Lookup(strings.ToUpper(t.Value))
	if !ok {
		return fmt.Errorf("line %d: unknown instruction %q", t.Line, t.Value)
	}

	ins := bytecode.Instruction{Op: op}
	for n, f := range op.Fields() {
		if f == bytecode.FieldIC {
			if c := p.peek(); c == nil || !strings.HasPrefix(c.Value, "@") {
				ins.Args = append(ins.Args, p.nextIC)
				p.nextIC++
				continue
			}
		}
		if n > 0 && len(ins.Args) > 0 {
			if c := p.peek(); c != nil && c.Type == token.Comma {
				p.next()
			}
		}
		arg, err := p.parseField(f, len(p.method.Instructions))
		if err != nil {
			return err
		}
		ins.Args = append(ins.Args, arg)
	}

	p.method.Instructions = append(p.method.Instructions, ins)
	return p.endOfLine()
}

func (p *Parser) parseField(f bytecode.Field, index int) (int64, error) {
	t := p.next()
	if t == nil {
		return 0, fmt.Errorf("unexpected end of input")
	}
	if t.Type == token.Newline {
		return 0, fmt.Errorf("line %d: missing operand", t.Line)
	}

	switch f {
	case bytecode.FieldReg:
		return p.parseReg(t)
	case bytecode.FieldImm:
		if t.Type != token.Number {
			return 0, fmt.Errorf("line %d: expected %v, got %q", t.Line, token.Number, t.Value)
		}
		v, err := strconv.ParseInt(t.Value, 0, 32)
		if err != nil {
			return 0, fmt.Errorf("line %d: invalid immediate %q", t.Line, t.Value)
		}
		return v, nil
	case bytecode.FieldFloat:
		if t.Type != token.Number {
			return 0, fmt.Errorf("line %d: expected %v, got %q", t.Line, token.Number, t.Value)
		}
		v, err := strconv.ParseFloat(t.Value, 64)
		if err != nil {
			return 0, fmt.Errorf("line %d: invalid float %q", t.Line, t.Value)
		}
		return int64(math.Float64bits(v)), nil
	case bytecode.FieldString:
		if t.Type != token.String {
			return 0, fmt.Errorf("line %d: expected %v, got %q", t.Line, token.String, t.Value)
		}
		return int64(p.intern(t.Value)), nil
	case bytecode.FieldIC:
		v, err := strconv.ParseUint(strings.TrimPrefix(t.Value, "@"), 10, 8)
		if err != nil {
			return 0, fmt.Errorf("line %d: invalid inline cache slot %q", t.Line, t.Value)
		}
		return int64(v), nil
	case bytecode.FieldOffset:
		if t.Type == token.Number {
			v, err := strconv.ParseInt(t.Value, 0, 32)
			if err != nil {
				return 0, fmt.Errorf("line %d: invalid jump offset %q", t.Line, t.Value)
			}
			return v, nil
		}
		p.fixups = append(p.fixups, fixup{label: t.Value, index: index, line: t.Line})
		return 0, nil
	}
	return 0, fmt.Errorf("line %d: unsupported operand kind %d", t.Line, f)
}

// parseReg accepts vN for registers and aN for the N-th parameter.
func (p *Parser) parseReg(t *token.Token) (int64, error) {
	if t.Type != token.Ident || len(t.Value) < 2 {
		return 0, fmt.Errorf("line %d: expected register, got %q", t.Line, t.Value)
	}
	n, err := strconv.ParseUint(t.Value[1:], 10, 16)
	if err != nil {
		return 0, fmt.Errorf("line %d: expected register, got %q", t.Line, t.Value)
	}
	switch t.Value[0] {
	case 'v':
		return int64(n), nil
	case 'a':
		if n >= uint64(p.method.NumArgs) {
			return 0, fmt.Errorf("line %d: parameter %s out of range (%d args)", t.Line, t.Value, p.method.NumArgs)
		}
		return int64(p.method.NumVRegs) + int64(n), nil
	}
	return 0, fmt.Errorf("line %d: expected register, got %q", t.Line, t.Value)
}

func (p *Parser) intern(s string) int {
	s = unescape(s)
	if id, ok := p.strings[s]; ok {
		return id
	}
	id := len(p.method.Strings)
	p.method.Strings = append(p.method.Strings, s)
	p.strings[s] = id
	return id
}

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	if u, err := strconv.Unquote(`"` + s + `"`); err == nil {
		return u
	}
	return s
}

func (p *Parser) labelPC(l bytecode.Layout, name string, line int) (uint32, error) {
	idx, ok := p.labels[name]
	if !ok {
		return 0, fmt.Errorf("line %d: unknown label %q", line, name)
	}
	if idx == len(p.method.Instructions) {
		return l.End(), nil
	}
	return l.PC(idx), nil
}

func (p *Parser) finish() (*bytecode.Method, error) {
	m := p.method
	l := m.Layout()

	for _, f := range p.fixups {
		target, err := p.labelPC(l, f.label, f.line)
		if err != nil {
			return nil, err
		}
		ins := &m.Instructions[f.index]
		ins.Args[len(ins.Args)-1] = int64(target) - int64(l.PC(f.index))
	}

	for _, d := range p.tries {
		start, err := p.labelPC(l, d.start, d.line)
		if err != nil {
			return nil, err
		}
		end, err := p.labelPC(l, d.end, d.line)
		if err != nil {
			return nil, err
		}
		try := bytecode.TryBlock{StartPC: start, EndPC: end}
		for _, c := range d.catches {
			pc, err := p.labelPC(l, c, d.line)
			if err != nil {
				return nil, err
			}
			try.Catches = append(try.Catches, pc)
		}
		m.Tries = append(m.Tries, try)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}
