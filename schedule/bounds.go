package schedule

import (
	"github.com/wippyai/circuit/errors"
	"github.com/wippyai/circuit/gate"
)

// Floating returns the floating gates reachable through inputs from the
// pinned gates of g, in discovery order.
func Floating(c *gate.Circuit, g *CFG) []gate.Ref {
	seen := make(map[gate.Ref]bool)
	var out, stack []gate.Ref
	push := func(ref gate.Ref) {
		for _, in := range c.Ins(ref) {
			if in != gate.Null && c.Op(in).IsSchedulable() && !seen[in] {
				seen[in] = true
				out = append(out, in)
				stack = append(stack, in)
			}
		}
	}
	for _, ctrl := range g.Controls {
		push(ctrl)
		for _, u := range c.Uses(ctrl) {
			if u.Index == 0 && c.Op(u.Gate).IsFixed() {
				push(u.Gate)
			}
		}
	}
	for len(stack) > 0 {
		ref := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		push(ref)
	}
	return out
}

// LowerBound places every gate of floating at the deepest block that
// dominates all of its uses. A gate is finalized once its last floating
// use is, so order lists uses before the gates they read. Floating gates
// that read each other in a cycle are reported as KindCycle.
func LowerBound(c *gate.Circuit, g *CFG, floating []gate.Ref) (map[gate.Ref]int, []gate.Ref, error) {
	bound := make(map[gate.Ref]int, len(floating))
	pending := make(map[gate.Ref]int, len(floating))
	for _, ref := range floating {
		bound[ref] = -1
	}
	fold := func(ref gate.Ref, b int) {
		if cur := bound[ref]; cur < 0 {
			bound[ref] = b
		} else {
			bound[ref] = g.LCA(cur, b)
		}
	}

	for _, ref := range floating {
		for _, u := range c.Uses(ref) {
			if _, ok := bound[u.Gate]; ok {
				pending[ref]++
				continue
			}
			if c.Op(u.Gate).IsSchedulable() {
				continue
			}
			if b, ok := g.useBlock(c, u, bound); ok {
				fold(ref, b)
			}
		}
	}

	var queue []gate.Ref
	for _, ref := range floating {
		if pending[ref] == 0 {
			queue = append(queue, ref)
		}
	}
	order := make([]gate.Ref, 0, len(floating))
	for len(queue) > 0 {
		ref := queue[0]
		queue = queue[1:]
		order = append(order, ref)
		for _, in := range c.Ins(ref) {
			if _, ok := bound[in]; !ok {
				continue
			}
			if b := bound[ref]; b >= 0 {
				fold(in, b)
			}
			if pending[in]--; pending[in] == 0 {
				queue = append(queue, in)
			}
		}
	}

	if len(order) < len(floating) {
		var stuck []uint32
		for _, ref := range floating {
			if pending[ref] > 0 {
				stuck = append(stuck, uint32(ref))
			}
		}
		return nil, nil, errors.New(errors.PhaseSchedule, errors.KindCycle).
			Gates(stuck...).
			Detail("%d floating gates read each other without passing a selector", len(stuck)).
			Build()
	}
	return bound, order, nil
}

// UpperBound computes, for every gate of floating, the deepest block
// among the blocks of its inputs. The blocks of all inputs must lie on a
// single dominator chain; otherwise no placement can see every input and
// KindBounds is returned.
func UpperBound(c *gate.Circuit, g *CFG, floating []gate.Ref) (map[gate.Ref]int, error) {
	upper := make(map[gate.Ref]int, len(floating))
	active := make(map[gate.Ref]bool)

	var visit func(ref gate.Ref) (int, error)
	visit = func(ref gate.Ref) (int, error) {
		if b, ok := upper[ref]; ok {
			return b, nil
		}
		if active[ref] {
			return 0, errors.New(errors.PhaseSchedule, errors.KindCycle).
				Gates(uint32(ref)).
				Detail("gate %d reaches itself through floating inputs", ref).
				Build()
		}
		active[ref] = true
		defer delete(active, ref)

		cur := 0
		for _, in := range c.Ins(ref) {
			if in == gate.Null {
				continue
			}
			var b int
			if c.Op(in).IsSchedulable() {
				ib, err := visit(in)
				if err != nil {
					return 0, err
				}
				b = ib
			} else {
				hb, ok := g.Home(c, in)
				if !ok {
					return 0, errors.New(errors.PhaseSchedule, errors.KindBounds).
						Gates(uint32(ref), uint32(in)).
						Detail("input %d of gate %d is not reachable from the state entry", in, ref).
						Build()
				}
				b = hb
			}
			switch {
			case g.Dominates(cur, b):
				cur = b
			case !g.Dominates(b, cur):
				return 0, errors.New(errors.PhaseSchedule, errors.KindBounds).
					Gates(uint32(ref)).
					Detail("inputs of gate %d lie in blocks %d and %d, neither dominates the other", ref, cur, b).
					Build()
			}
		}
		upper[ref] = cur
		return cur, nil
	}

	for _, ref := range floating {
		if _, err := visit(ref); err != nil {
			return nil, err
		}
	}
	return upper, nil
}
