package builder

import (
	"slices"

	"github.com/wippyai/circuit/bytecode"
	"github.com/wippyai/circuit/internal/dom"
)

// hasGeneral reports whether some instruction of bb builds a gate that may throw.
func (b *builder) hasGeneral(bb *Region) bool {
	for i := bb.Start; i <= bb.End; i++ {
		if b.infos[i].Kind.IsGeneral() {
			return true
		}
	}
	return false
}

// trimCatches keeps only the exception edges that can be taken: a region
// that cannot throw has none, and a region that can throw only reaches
// its first handler.
func (b *builder) trimCatches() {
	for id := range b.regions {
		bb := &b.regions[id]
		if len(bb.Catchs) == 0 {
			continue
		}
		keep := 1
		if !b.hasGeneral(bb) {
			keep = 0
		}
		for _, c := range bb.Catchs[keep:] {
			b.regions[c].Trys = removeValue(b.regions[c].Trys, id)
		}
		bb.Catchs = bb.Catchs[:keep]
	}
}

// MarkDead flags every region unreachable from region 0 over successor
// and catch edges, and removes dead regions from the adjacency of live
// ones. It returns the number of newly dead regions; a second call on the
// same regions returns 0.
func MarkDead(regions []Region) int {
	reached := make([]bool, len(regions))
	reached[0] = true
	work := []int{0}
	for len(work) > 0 {
		id := work[len(work)-1]
		work = work[:len(work)-1]
		bb := &regions[id]
		for _, next := range [][]int{bb.Succs, bb.Catchs} {
			for _, s := range next {
				if !reached[s] && !regions[s].Dead {
					reached[s] = true
					work = append(work, s)
				}
			}
		}
	}

	marked := 0
	for id := range regions {
		if !reached[id] && !regions[id].Dead {
			regions[id].Dead = true
			marked++
		}
	}
	for id := range regions {
		bb := &regions[id]
		if bb.Dead {
			bb.Preds, bb.Succs, bb.Trys, bb.Catchs = nil, nil, nil, nil
			continue
		}
		isDead := func(x int) bool { return regions[x].Dead }
		bb.Preds = slices.DeleteFunc(bb.Preds, isDead)
		bb.Trys = slices.DeleteFunc(bb.Trys, isDead)
	}
	return marked
}

// graph is the region CFG seen by dominator computation: successor
// edges plus catch edges.
type graph struct {
	regions []Region
	preds   [][]int
}

func newGraph(regions []Region) *graph {
	g := &graph{regions: regions, preds: make([][]int, len(regions))}
	for id := range regions {
		if regions[id].Dead {
			continue
		}
		for _, s := range g.Succs(id) {
			g.preds[s] = addUnique(g.preds[s], id)
		}
	}
	return g
}

var _ dom.Graph = (*graph)(nil)

func (g *graph) Len() int { return len(g.regions) }

func (g *graph) Preds(n int) []int { return g.preds[n] }

func (g *graph) Succs(n int) []int {
	bb := &g.regions[n]
	if len(bb.Catchs) == 0 {
		return bb.Succs
	}
	out := slices.Clone(bb.Succs)
	for _, c := range bb.Catchs {
		out = addUnique(out, c)
	}
	return out
}

// findLoopBacks marks every edge that reaches a region still on the DFS
// stack. Successors are visited in reverse order, catch targets last.
func (b *builder) findLoopBacks() {
	const (
		unvisited = iota
		onStack
		done
	)
	state := make([]int, len(b.regions))
	type frame struct {
		id   int
		next []int
	}
	edges := func(id int) []int {
		bb := &b.regions[id]
		out := make([]int, 0, len(bb.Succs)+len(bb.Catchs))
		for k := len(bb.Catchs) - 1; k >= 0; k-- {
			out = append(out, bb.Catchs[k])
		}
		for k := len(bb.Succs) - 1; k >= 0; k-- {
			out = append(out, bb.Succs[k])
		}
		return out
	}

	state[0] = onStack
	stack := []frame{{id: 0, next: edges(0)}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if len(top.next) == 0 {
			state[top.id] = done
			stack = stack[:len(stack)-1]
			continue
		}
		s := top.next[len(top.next)-1]
		top.next = top.next[:len(top.next)-1]
		switch state[s] {
		case onStack:
			b.regions[s].LoopBacks = addUnique(b.regions[s].LoopBacks, top.id)
		case unvisited:
			state[s] = onStack
			stack = append(stack, frame{id: s, next: edges(s)})
		}
	}
	for id := range b.regions {
		slices.Sort(b.regions[id].LoopBacks)
	}
}

func (bb *Region) isLoopBack(from int) bool {
	return from >= 0 && slices.Contains(bb.LoopBacks, from)
}

// countPreds computes the number of state predecessors and loop-back
// edges of every live region, and whether the accumulator needs a phi.
func (b *builder) countPreds() {
	addEdge := func(from, to int) {
		bb := &b.regions[to]
		bb.NumOfStatePreds++
		if bb.isLoopBack(from) {
			bb.NumOfLoopBacks++
		}
	}
	for id := range b.regions {
		bb := &b.regions[id]
		if bb.Dead {
			continue
		}
		for _, s := range bb.Succs {
			addEdge(id, s)
		}
		last := b.infos[bb.End]
		if last.Kind == bytecode.KindCondJump && len(bb.Succs) == 1 {
			addEdge(id, bb.Succs[0])
		}
		if len(bb.Catchs) > 0 {
			for i := bb.Start; i <= bb.End; i++ {
				if b.infos[i].Kind.IsGeneral() {
					addEdge(id, bb.Catchs[0])
				}
			}
		}
	}

	entry := &b.regions[0]
	if entry.NumOfStatePreds > 0 {
		entry.NumOfStatePreds++
	}
	for id := range b.regions {
		bb := &b.regions[id]
		bb.PhiAcc = bb.NumOfStatePreds > 1 || len(bb.Trys) > 0
	}
}
