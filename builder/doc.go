// Package builder turns one bytecode method into a gate circuit.
//
// Construction runs in fixed steps over a private set of regions (basic
// blocks):
//
//	regions      partition by jump targets, terminators and try ranges
//	cfg          catch trimming, dead blocks, loop-back edges, pred counts
//	dominators   immediate dominators and frontiers over live regions
//	phis         iterated-frontier phi placement per register
//	assemble     block heads, one gate per instruction, pred wiring
//	resolve      ResolveDef fills every register and accumulator input
//
// Fatal invariant violations inside a build are raised as panics carrying
// *errors.Error and turned into an ordinary error by Build, so a broken
// method aborts only its own compilation.
package builder
