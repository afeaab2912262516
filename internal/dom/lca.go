package dom

import "math/bits"

// Ancestry answers ancestor and lowest-common-ancestor queries on a Tree
// using Euler entry/exit times and binary lifting.
type Ancestry struct {
	up      [][]int
	timeIn  []int
	timeOut []int
	depth   []int
}

// NewAncestry indexes t. Unreachable nodes are not part of any query.
func NewAncestry(t *Tree) *Ancestry {
	n := len(t.Idom)
	levels := bits.Len(uint(n)) + 1
	a := &Ancestry{
		up:      make([][]int, levels),
		timeIn:  make([]int, n),
		timeOut: make([]int, n),
		depth:   make([]int, n),
	}
	for k := range a.up {
		a.up[k] = make([]int, n)
	}
	for _, v := range t.Order {
		if v == t.Entry {
			a.up[0][v] = v
		} else {
			a.up[0][v] = t.Idom[v]
			a.depth[v] = a.depth[t.Idom[v]] + 1
		}
	}
	for k := 1; k < levels; k++ {
		for _, v := range t.Order {
			a.up[k][v] = a.up[k-1][a.up[k-1][v]]
		}
	}

	timer := 0
	stack := []dfsFrame{{node: t.Entry}}
	a.timeIn[t.Entry] = timer
	timer++
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		children := t.Children[top.node]
		if top.next == len(children) {
			a.timeOut[top.node] = timer
			timer++
			stack = stack[:len(stack)-1]
			continue
		}
		c := children[top.next]
		top.next++
		a.timeIn[c] = timer
		timer++
		stack = append(stack, dfsFrame{node: c})
	}
	return a
}

// IsAncestor reports whether x is y or an ancestor of y.
func (a *Ancestry) IsAncestor(x, y int) bool {
	return a.timeIn[x] <= a.timeIn[y] && a.timeOut[y] <= a.timeOut[x]
}

// Depth is the distance from the entry.
func (a *Ancestry) Depth(x int) int {
	return a.depth[x]
}

// LCA returns the deepest common dominator of x and y.
func (a *Ancestry) LCA(x, y int) int {
	if a.IsAncestor(x, y) {
		return x
	}
	if a.IsAncestor(y, x) {
		return y
	}
	for k := len(a.up) - 1; k >= 0; k-- {
		if next := a.up[k][x]; !a.IsAncestor(next, y) {
			x = next
		}
	}
	return a.up[0][x]
}
