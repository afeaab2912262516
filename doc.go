// Package circuit compiles stack bytecode methods into sea-of-nodes gate
// circuits and lays them out in basic blocks.
//
// A method is partitioned into regions, its dominator tree and dominance
// frontiers are computed, phis are placed and every register read is bound
// to its dominating definition. The result is a gate circuit in which
// control, side-effect order and data flow are explicit edges. An
// independent verifier checks the circuit and a scheduler places every
// floating gate into a block of a dominator-ordered control flow graph.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	circuit/             Root package with the Compile and CompileSource helpers
//	├── bytecode/        Opcode table, instruction classification and methods
//	├── asm/             Text assembler for methods (.gasm files)
//	├── gate/            Gate arena, opcode metadata, edge mutation, snapshots
//	├── internal/dom/    Lengauer-Tarjan dominators, frontiers, LCA queries
//	├── builder/         Regions, SSA construction and circuit assembly
//	├── schedule/        Block placement over the finished circuit
//	├── verify/          Soundness checks with logged proofs
//	├── compiler/        Configuration and the parallel compile pipeline
//	├── cache/           SQLite cache of compiled circuits
//	├── bitset/          Fixed-size bit vectors
//	└── errors/          Structured error types for debugging
//
// # Quick Start
//
// Compile assembler source:
//
//	results, err := circuit.CompileSource(ctx, src, compiler.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, res := range results {
//	    if res.Err != nil {
//	        log.Printf("%s: %v", res.Method.Name, res.Err)
//	        continue
//	    }
//	    fmt.Println(res.Method.Name, len(res.Blocks), "blocks")
//	}
//
// # Errors
//
// Every error returned by the compiler is an *errors.Error carrying the
// phase and kind of the failure. Match them with the standard errors.Is:
//
//	errors.Is(err, &cerrors.Error{Phase: cerrors.PhaseCircuit, Kind: cerrors.KindArenaExhausted})
//
// # Thread Safety
//
// A gate.Circuit is not safe for concurrent use; each one belongs to the
// goroutine compiling its method. compiler.Compiler and cache.Store are
// safe for concurrent use.
package circuit
