package schedule

import (
	"github.com/wippyai/circuit/gate"
	"github.com/wippyai/circuit/internal/dom"
)

// CFG is the control skeleton of a circuit: one block per state gate
// reachable from the state entry, numbered in breadth-first order.
type CFG struct {
	// Controls holds the state gate of each block; block 0 is the entry.
	Controls []gate.Ref
	// Index maps a state gate to its block.
	Index map[gate.Ref]int
	// Tree is the dominator tree over blocks.
	Tree *dom.Tree

	graph *dom.Adjacency
	anc   *dom.Ancestry
}

func isStateUse(c *gate.Circuit, u gate.Use) bool {
	return c.Op(u.Gate).IsState() && int(u.Index) < int(c.Meta(u.Gate).States)
}

// NewCFG collects the control gates of c and computes their dominator
// tree. The dominator computation starts from scratch on every call.
func NewCFG(c *gate.Circuit) *CFG {
	g := &CFG{Index: make(map[gate.Ref]int)}
	entry := c.StateEntry()
	g.Controls = append(g.Controls, entry)
	g.Index[entry] = 0
	for head := 0; head < len(g.Controls); head++ {
		for _, u := range c.Uses(g.Controls[head]) {
			if !isStateUse(c, u) {
				continue
			}
			if _, ok := g.Index[u.Gate]; ok {
				continue
			}
			g.Index[u.Gate] = len(g.Controls)
			g.Controls = append(g.Controls, u.Gate)
		}
	}

	g.graph = dom.NewAdjacency(len(g.Controls))
	for to, ctrl := range g.Controls {
		for i := 0; i < int(c.Meta(ctrl).States); i++ {
			if from, ok := g.Index[c.StateIn(ctrl, i)]; ok {
				g.graph.AddEdge(from, to)
			}
		}
	}
	g.Tree = dom.Compute(g.graph, 0)
	g.anc = dom.NewAncestry(g.Tree)
	return g
}

// Len returns the number of blocks.
func (g *CFG) Len() int { return len(g.Controls) }

// Preds returns the blocks feeding block b.
func (g *CFG) Preds(b int) []int { return g.graph.Preds(b) }

// Succs returns the blocks fed by block b.
func (g *CFG) Succs(b int) []int { return g.graph.Succs(b) }

// Idom returns the immediate dominator of b, -1 for the entry.
func (g *CFG) Idom(b int) int { return g.Tree.Idom[b] }

// Dominates reports whether a dominates b. Every block dominates itself.
func (g *CFG) Dominates(a, b int) bool { return g.anc.IsAncestor(a, b) }

// LCA returns the deepest block dominating both a and b.
func (g *CFG) LCA(a, b int) int { return g.anc.LCA(a, b) }

// Home returns the block a pinned gate belongs to: its own block for a
// state gate, the block of its control input for a fixed gate, and the
// entry for arguments and roots. Floating gates have no home.
func (g *CFG) Home(c *gate.Circuit, ref gate.Ref) (int, bool) {
	op := c.Op(ref)
	switch {
	case op.IsState():
		b, ok := g.Index[ref]
		return b, ok
	case op.IsFixed():
		b, ok := g.Index[c.StateIn(ref, 0)]
		return b, ok
	case op.IsProlog(), op.IsRoot():
		return 0, true
	}
	return -1, false
}

// useBlock returns the block in which u reads its input. A selector
// reads input k at the end of the k-th predecessor of its merge.
func (g *CFG) useBlock(c *gate.Circuit, u gate.Use, bound map[gate.Ref]int) (int, bool) {
	user := u.Gate
	op := c.Op(user)
	if op.IsSelector() && u.Index > 0 {
		merge := c.StateIn(user, 0)
		k := int(u.Index) - 1
		if k < int(c.Meta(merge).States) {
			b, ok := g.Index[c.StateIn(merge, k)]
			return b, ok
		}
	}
	if op.IsSchedulable() {
		b, ok := bound[user]
		return b, ok && b >= 0
	}
	return g.Home(c, user)
}

// preorder lists the blocks in dominator-tree preorder.
func (g *CFG) preorder() []int {
	out := make([]int, 0, g.Len())
	stack := []int{0}
	for len(stack) > 0 {
		b := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, b)
		children := g.Tree.Children[b]
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
	return out
}
