package schedule

import (
	"sort"

	"go.uber.org/zap"

	"github.com/wippyai/circuit/gate"
)

// Result is a circuit laid out in basic blocks.
type Result struct {
	CFG *CFG
	// Blocks lists the gates of every block in dominator-tree preorder.
	// Each block starts with its control gate.
	Blocks [][]gate.Ref
	// Order maps a position in Blocks to its CFG block.
	Order []int
	// BlockOf maps every placed gate to its CFG block.
	BlockOf map[gate.Ref]int
}

// Run schedules c. The circuit is not modified.
func Run(c *gate.Circuit, log *zap.Logger) (*Result, error) {
	if log == nil {
		log = zap.NewNop()
	}
	g := NewCFG(c)
	floating := Floating(c, g)
	bound, order, err := LowerBound(c, g, floating)
	if err != nil {
		return nil, err
	}

	res := &Result{
		CFG:     g,
		Order:   g.preorder(),
		BlockOf: make(map[gate.Ref]int),
	}
	lists := make([][]gate.Ref, g.Len())
	place := func(ref gate.Ref, b int) {
		lists[b] = append(lists[b], ref)
		res.BlockOf[ref] = b
	}

	for b, ctrl := range g.Controls {
		if !g.Tree.Reachable(b) {
			continue
		}
		place(ctrl, b)
		if b == 0 {
			for _, arg := range args(c) {
				place(arg, 0)
			}
		}
		for _, u := range c.Uses(ctrl) {
			if u.Index == 0 && c.Op(u.Gate).IsFixed() {
				place(u.Gate, b)
			}
		}
	}
	for i := len(order) - 1; i >= 0; i-- {
		ref := order[i]
		b := bound[ref]
		if b < 0 {
			b = 0
		}
		place(ref, b)
	}

	res.Blocks = make([][]gate.Ref, 0, len(res.Order))
	for _, b := range res.Order {
		res.Blocks = append(res.Blocks, lists[b])
	}
	log.Debug("scheduled",
		zap.Int("blocks", len(res.Blocks)),
		zap.Int("floating", len(floating)),
		zap.Int("gates", len(res.BlockOf)))
	return res, nil
}

// args returns the argument gates by descending index.
func args(c *gate.Circuit) []gate.Ref {
	var out []gate.Ref
	for _, u := range c.Uses(c.ArgList()) {
		if c.Op(u.Gate) == gate.OpArg {
			out = append(out, u.Gate)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return c.Meta(out[i]).Value > c.Meta(out[j]).Value
	})
	return out
}
