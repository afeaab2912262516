// Package schedule linearizes a circuit into basic blocks.
//
// Every state gate reachable from the state entry is one block. Blocks
// are ordered by a preorder walk of their dominator tree. Fixed gates
// (selectors and relays) stay with the control gate they hang off,
// argument gates go to the entry block, and every other gate floats to
// the deepest block that dominates all of its uses:
//
//	res, err := schedule.Run(c, log)
//	for _, block := range res.Blocks {
//	    // block[0] is the control gate
//	}
//
// A selector input counts as a use at the end of the matching merge
// predecessor, so a loop-carried value is placed inside the loop body.
package schedule
