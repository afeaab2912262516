package token

import (
	"unicode"
)

type Type int

const (
	Newline Type = iota
	Ident
	String
	Number
	Comma
)

func (t Type) String() string {
	switch t {
	case Newline:
		return "end of line"
	case Ident:
		return "identifier"
	case String:
		return "string"
	case Number:
		return "number"
	case Comma:
		return "','"
	}
	return "unknown"
}

type Token struct {
	Value string
	Type  Type
	Line  int
}

func isIdentRune(c rune) bool {
	return unicode.IsLetter(c) || unicode.IsDigit(c) || c == '_' || c == '.' || c == '$' || c == '@' || c == ':' || c == '='
}

// Tokenize splits assembler source into tokens. Line breaks are kept as
// Newline tokens since instructions are line oriented.
func Tokenize(input string) []Token {
	var tokens []Token
	line := 1
	runes := []rune(input)

	emitNewline := func() {
		if len(tokens) > 0 && tokens[len(tokens)-1].Type != Newline {
			tokens = append(tokens, Token{"\n", Newline, line})
		}
	}

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if r == '\n' {
			emitNewline()
			line++
			continue
		}
		if unicode.IsSpace(r) {
			continue
		}

		// Line comment
		if r == ';' || r == '#' {
			for i+1 < len(runes) && runes[i+1] != '\n' {
				i++
			}
			continue
		}

		if r == ',' {
			tokens = append(tokens, Token{",", Comma, line})
			continue
		}

		// String literal
		if r == '"' {
			start := i + 1
			i++
			for i < len(runes) && runes[i] != '"' && runes[i] != '\n' {
				if runes[i] == '\\' {
					i++
				}
				i++
			}
			tokens = append(tokens, Token{string(runes[start:min(i, len(runes))]), String, line})
			continue
		}

		// Number, including negative and float forms
		if r == '-' || r == '+' || unicode.IsDigit(r) {
			start := i
			i++
			for i < len(runes) {
				c := runes[i]
				if unicode.IsDigit(c) || c == '.' || c == 'e' || c == 'E' || c == 'x' || c == 'X' || c == '_' ||
					(c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F') ||
					((c == '-' || c == '+') && (runes[i-1] == 'e' || runes[i-1] == 'E')) {
					i++
				} else {
					break
				}
			}
			tokens = append(tokens, Token{string(runes[start:i]), Number, line})
			i--
			continue
		}

		// Identifier: mnemonics, registers, labels, directives, key=value
		if isIdentRune(r) {
			start := i
			for i < len(runes) && isIdentRune(runes[i]) {
				i++
			}
			tokens = append(tokens, Token{string(runes[start:i]), Ident, line})
			i--
			continue
		}
	}
	emitNewline()

	return tokens
}
