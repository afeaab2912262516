package dom

// unionFind is the path-compressing forest used by the semi-dominator
// pass. Indices are DFS numbers. minIdx[v] is the node with the smallest
// semi-dominator on the compressed path from v up to, but excluding, the
// forest root; unprocessed nodes keep minIdx 0, whose semi-dominator is a
// sentinel larger than any real index.
type unionFind struct {
	parent []int
	minIdx []int
	semi   []int
}

func newUnionFind(semi []int) *unionFind {
	u := &unionFind{
		parent: make([]int, len(semi)),
		minIdx: make([]int, len(semi)),
		semi:   semi,
	}
	for i := range u.parent {
		u.parent[i] = i
	}
	return u
}

func (u *unionFind) find(v int) int {
	p := u.parent[v]
	if p == v {
		return v
	}
	root := u.find(p)
	if u.semi[u.minIdx[p]] < u.semi[u.minIdx[v]] {
		u.minIdx[v] = u.minIdx[p]
	}
	u.parent[v] = root
	return root
}

// eval returns the node of minimal semi-dominator between v's root and v.
func (u *unionFind) eval(v int) int {
	u.find(v)
	return u.minIdx[v]
}

// activate records that v's semi-dominator is final.
func (u *unionFind) activate(v int) {
	u.minIdx[v] = v
}

// link hangs the tree rooted at child under parent.
func (u *unionFind) link(parent, child int) {
	u.parent[u.find(child)] = u.find(parent)
}
