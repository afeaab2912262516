// Package asm assembles methods from a line-oriented text form.
//
// One method per .method/.end pair:
//
//	.method sum vregs=2 args=1
//	    LDAI 0
//	    STA v0
//	loop:
//	    LDA a0
//	    JEQZ done
//	    LDA v0
//	    ADD2 a0
//	    STA v0
//	    LDA a0
//	    DEC
//	    STA a0
//	    JMP loop
//	done:
//	    LDA v0
//	    RETURN
//	.end
//
// Operands are registers (vN, or aN for the N-th parameter), integers,
// floats, quoted strings (interned into the constant pool), inline cache
// slots (@N, assigned automatically when omitted) and labels for jumps.
// A ".try start, end, handler[, handler...]" line records an exception
// table entry over labels; end is exclusive.
package asm
