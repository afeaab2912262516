// Package bytecode describes the accumulator-based bytecode that the
// circuit builder consumes.
//
// A Method is a flat list of Instructions plus an exception table of
// TryBlocks. Instructions are addressed two ways: by bytecode index (their
// position in the list) and by pc (their byte offset, derived from the
// per-opcode Size). Jump offsets and try ranges are expressed in pcs.
//
// The builder never looks at raw operands directly. It asks the Method for
// the Info of an instruction: its Kind, the ordered value Operands it reads,
// the registers it writes and its accumulator and this-object flags.
//
// Register layout of a method with V locals and A parameters:
//
//	[0, V)        local virtual registers
//	[V, V+A)      declared parameters
//	V+A           lexical environment (EnvReg)
package bytecode
