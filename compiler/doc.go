// Package compiler drives the pipeline that turns bytecode methods into
// scheduled gate circuits.
//
// A method goes through four stages:
//
//	builder.Build    regions, dominators, SSA and circuit assembly
//	FoldSelectors    removal of selectors with a single distinct input
//	verify.RunWith   independent soundness checks
//	schedule.Run     placement of every gate into a basic block
//
// Each stage can be switched off through Config. When a cache path is
// configured, finished circuits are stored by method digest and restored on
// the next compilation of unchanged bytecode.
//
// Methods are independent: CompileAll compiles them on a bounded pool of
// goroutines and a failure in one method never affects another.
package compiler
