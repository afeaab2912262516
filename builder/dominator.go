package builder

import (
	"github.com/wippyai/circuit/errors"
	"github.com/wippyai/circuit/internal/dom"
)

// computeDominators fills Idom, Dominated and Frontier of every live
// region. Catch edges take part, so a handler is dominated by the common
// dominator of its try regions.
func (b *builder) computeDominators() {
	g := newGraph(b.regions)
	tree := dom.Compute(g, 0)
	for id := range b.regions {
		bb := &b.regions[id]
		if bb.Dead {
			continue
		}
		if !tree.Reachable(id) {
			panic(errors.Invariant(errors.PhaseDominator, "live region %d has no DFS number", id))
		}
		bb.Idom = tree.Idom[id]
		bb.Dominated = tree.Children[id]
	}
	frontiers := tree.Frontiers(g)
	for id := range b.regions {
		if !b.regions[id].Dead {
			b.regions[id].Frontier = frontiers[id]
		}
	}
	b.domTree = tree
}
