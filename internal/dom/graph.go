package dom

// Graph is a directed graph over nodes 0..Len()-1.
type Graph interface {
	Len() int
	Preds(n int) []int
	Succs(n int) []int
}

// Adjacency is a Graph stored as predecessor and successor lists.
type Adjacency struct {
	preds [][]int
	succs [][]int
}

// NewAdjacency creates an edgeless graph with n nodes.
func NewAdjacency(n int) *Adjacency {
	return &Adjacency{
		preds: make([][]int, n),
		succs: make([][]int, n),
	}
}

// AddEdge adds from -> to.
func (a *Adjacency) AddEdge(from, to int) {
	a.succs[from] = append(a.succs[from], to)
	a.preds[to] = append(a.preds[to], from)
}

func (a *Adjacency) Len() int          { return len(a.succs) }
func (a *Adjacency) Preds(n int) []int { return a.preds[n] }
func (a *Adjacency) Succs(n int) []int { return a.succs[n] }
