package dom

import "sort"

// Tree is the dominator tree of the nodes reachable from an entry.
type Tree struct {
	// Idom is the immediate dominator of every node; -1 for the entry and
	// for unreachable nodes.
	Idom []int
	// Order lists reachable nodes in DFS preorder. Every node appears
	// after its immediate dominator.
	Order []int
	// Index maps a node to its position in Order, -1 if unreachable.
	Index []int
	// Children lists the immediately dominated nodes, in Order order.
	Children [][]int
	Entry    int
}

// Reachable reports whether n was reached from the entry.
func (t *Tree) Reachable(n int) bool {
	return t.Index[n] >= 0
}

// Dominates reports whether a dominates b. Every node dominates itself.
func (t *Tree) Dominates(a, b int) bool {
	if !t.Reachable(a) || !t.Reachable(b) {
		return false
	}
	for n := b; n >= 0; n = t.Idom[n] {
		if n == a {
			return true
		}
	}
	return false
}

type dfsFrame struct {
	node int
	next int
}

// Compute builds the dominator tree of g rooted at entry. Edges from
// unreachable nodes are ignored.
func Compute(g Graph, entry int) *Tree {
	n := g.Len()
	t := &Tree{
		Idom:     make([]int, n),
		Index:    make([]int, n),
		Children: make([][]int, n),
		Entry:    entry,
	}
	for i := range t.Idom {
		t.Idom[i] = -1
		t.Index[i] = -1
	}

	// Depth-first numbering; dfsParent is indexed by DFS number.
	t.Index[entry] = 0
	t.Order = append(t.Order, entry)
	dfsParent := []int{-1}
	stack := []dfsFrame{{node: entry}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		succs := g.Succs(top.node)
		if top.next == len(succs) {
			stack = stack[:len(stack)-1]
			continue
		}
		s := succs[top.next]
		top.next++
		if t.Index[s] >= 0 {
			continue
		}
		t.Index[s] = len(t.Order)
		t.Order = append(t.Order, s)
		dfsParent = append(dfsParent, t.Index[top.node])
		stack = append(stack, dfsFrame{node: s})
	}

	size := len(t.Order)
	semi := make([]int, size)
	for i := range semi {
		semi[i] = i
	}
	semi[0] = size
	idom := make([]int, size)
	buckets := make([][]int, size)
	uf := newUnionFind(semi)

	for idx := size - 1; idx > 0; idx-- {
		for _, p := range g.Preds(t.Order[idx]) {
			pi := t.Index[p]
			if pi < 0 {
				continue
			}
			if pi < idx {
				semi[idx] = min(semi[idx], pi)
			} else {
				semi[idx] = min(semi[idx], semi[uf.eval(pi)])
			}
		}
		for _, s := range buckets[idx] {
			m := uf.eval(s)
			if semi[m] == idx {
				idom[s] = idx
			} else {
				idom[s] = m
			}
		}
		buckets[idx] = nil
		uf.activate(idx)
		uf.link(dfsParent[idx], idx)
		buckets[semi[idx]] = append(buckets[semi[idx]], idx)
	}
	for idx := 1; idx < size; idx++ {
		if idom[idx] != semi[idx] {
			idom[idx] = idom[idom[idx]]
		}
	}

	for idx := 1; idx < size; idx++ {
		node := t.Order[idx]
		parent := t.Order[idom[idx]]
		t.Idom[node] = parent
		t.Children[parent] = append(t.Children[parent], node)
	}
	return t
}

// Frontiers computes the dominance frontier of every reachable node.
// Each frontier is sorted and free of duplicates.
func (t *Tree) Frontiers(g Graph) [][]int {
	df := make([][]int, len(t.Idom))
	seen := make(map[[2]int]bool)
	for _, b := range t.Order {
		var preds []int
		for _, p := range g.Preds(b) {
			if t.Reachable(p) {
				preds = append(preds, p)
			}
		}
		if len(preds) < 2 {
			continue
		}
		for _, p := range preds {
			for runner := p; runner != t.Idom[b] && runner >= 0; runner = t.Idom[runner] {
				key := [2]int{runner, b}
				if !seen[key] {
					seen[key] = true
					df[runner] = append(df[runner], b)
				}
			}
		}
	}
	for i := range df {
		sort.Ints(df[i])
	}
	return df
}
