package verify

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/circuit/gate"
	"github.com/wippyai/circuit/schedule"
)

func id(ref gate.Ref) string {
	return fmt.Sprintf("(id=%d)", ref)
}

// integrity checks that every input of a live gate lies inside the arena,
// refers to a live gate and is mirrored by exactly one use record, and
// that every use record points back at an input.
func (v *checker) integrity() bool {
	c := v.c
	n := c.Len()
	for i := 0; i < n; i++ {
		ref := gate.Ref(i)
		if !c.IsLive(ref) {
			continue
		}
		for idx, in := range c.Ins(ref) {
			if in < 0 || int(in) >= n {
				v.proof("circuit data is corrupted (bad in list)", []gate.Ref{ref},
					fmt.Sprintf("input %d of %s is %d, outside the arena of %d gates", idx, id(ref), in, n))
				return false
			}
			if !c.IsLive(in) {
				v.proof("circuit data is corrupted (dead input)", []gate.Ref{ref, in},
					fmt.Sprintf("input %d of %s refers to deleted gate %s", idx, id(ref), id(in)))
				return false
			}
			found := 0
			for _, u := range c.Uses(in) {
				if u.Gate == ref && int(u.Index) == idx {
					found++
				}
			}
			if found != 1 {
				v.proof("circuit data is corrupted (bad out list)", []gate.Ref{ref, in},
					fmt.Sprintf("%s is input %d of %s", id(in), idx, id(ref)),
					fmt.Sprintf("%s records that use %d times", id(in), found))
				return false
			}
		}
		for _, u := range c.Uses(ref) {
			if !c.IsLive(u.Gate) || int(u.Index) >= c.NumIns(u.Gate) || c.In(u.Gate, int(u.Index)) != ref {
				v.proof("circuit data is corrupted (bad out list)", []gate.Ref{ref, u.Gate},
					fmt.Sprintf("%s records a use by input %d of %s", id(ref), u.Index, id(u.Gate)),
					"that input does not refer back")
				return false
			}
		}
	}
	return true
}

func (v *checker) verifyAll(msg string, gates []gate.Ref) bool {
	for _, ref := range gates {
		if err := v.c.Verify(ref); err != nil {
			v.log.Error(msg, zap.Uint32("gate", uint32(ref)), zap.String("gate_text", v.c.String(ref)), zap.Error(err))
			return false
		}
	}
	return true
}

func (v *checker) stateGates() bool {
	return v.verifyAll("state gate is malformed", v.cfg.Controls)
}

// cfgSoundness checks that every control predecessor of a reachable
// block is reachable itself.
func (v *checker) cfgSoundness() bool {
	c := v.c
	for _, ctrl := range v.cfg.Controls {
		for i := 0; i < int(c.Meta(ctrl).States); i++ {
			pred := c.StateIn(ctrl, i)
			if _, ok := v.cfg.Index[pred]; !ok {
				v.proof("CFG is not sound", []gate.Ref{pred, ctrl},
					id(pred)+" is pred of "+id(ctrl),
					id(ctrl)+" is reachable from entry",
					id(pred)+" is unreachable from entry")
				return false
			}
		}
	}
	return true
}

type useFrame struct {
	cur  gate.Ref
	uses []gate.Use
	next int
}

// cfgAcyclic checks that the control graph is a DAG once loop-back edges
// are removed.
func (v *checker) cfgAcyclic() bool {
	c := v.c
	c.AdvanceTime()
	root := c.StateEntry()
	c.SetMark(root, gate.Visited)
	stack := []useFrame{{cur: root, uses: c.Uses(root)}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next == len(top.uses) {
			c.SetMark(top.cur, gate.Finished)
			stack = stack[:len(stack)-1]
			continue
		}
		u := top.uses[top.next]
		top.next++
		cur := top.cur
		if !c.Op(u.Gate).IsState() || int(u.Index) >= int(c.Meta(u.Gate).States) {
			continue
		}
		switch c.GetMark(u.Gate) {
		case gate.Visited:
			v.proof("CFG without loop back edges is not a directed acyclic graph", []gate.Ref{u.Gate, cur},
				id(u.Gate)+" is succ of "+id(cur),
				id(cur)+" is reachable from "+id(u.Gate)+" without loop back edges")
			return false
		case gate.Finished:
			continue
		}
		if c.Op(u.Gate) == gate.OpLoopBack {
			continue
		}
		c.SetMark(u.Gate, gate.Visited)
		stack = append(stack, useFrame{cur: u.Gate, uses: c.Uses(u.Gate)})
	}
	return true
}

// reducible checks that every loop header dominates its loop-back.
func (v *checker) reducible() bool {
	c := v.c
	for b, ctrl := range v.cfg.Controls {
		if c.Op(ctrl) != gate.OpLoopBack {
			continue
		}
		for _, u := range c.Uses(ctrl) {
			if !c.Op(u.Gate).IsState() || int(u.Index) >= int(c.Meta(u.Gate).States) {
				continue
			}
			head := v.cfg.Index[u.Gate]
			if !v.cfg.Dominates(head, b) {
				v.proof("CFG is not reducible", []gate.Ref{u.Gate, ctrl},
					id(u.Gate)+" is loop back succ of "+id(ctrl),
					id(u.Gate)+" does not dominate "+id(ctrl))
				return false
			}
		}
	}
	return true
}

func (v *checker) fixedGates() bool {
	return v.verifyAll("fixed gate is malformed", v.fixed)
}

// fixedRelations checks that the loop-back input of a selector at a loop
// header is fixed in a block dominating the loop-back.
func (v *checker) fixedRelations() bool {
	c := v.c
	for _, f := range v.fixed {
		head := c.StateIn(f, 0)
		if c.Op(head) != gate.OpLoopBegin {
			continue
		}
		ins := c.Ins(f)
		if len(ins) < 3 || !c.Op(ins[2]).IsFixed() {
			continue
		}
		pred := ins[2]
		a, okA := v.cfg.Home(c, pred)
		b, okB := v.cfg.Index[c.StateIn(head, 1)]
		if !okA || !okB || !v.cfg.Dominates(a, b) {
			v.proof("fixed gates relationship is not consistent", []gate.Ref{pred, f},
				"fixed gate "+id(pred)+" is pred of fixed gate "+id(f),
				fmt.Sprintf("BB_%d does not dominate BB_%d", a, b))
			return false
		}
	}
	return true
}

type inFrame struct {
	cur  gate.Ref
	next int
}

// flowCycles checks that floating gates do not read each other in a
// cycle. Cycles through selectors are legal and not followed.
func (v *checker) flowCycles() bool {
	c := v.c
	var starts []gate.Ref
	seen := make(map[gate.Ref]bool)
	collect := func(ref gate.Ref) {
		for _, in := range c.Ins(ref) {
			if in != gate.Null && c.Op(in).IsSchedulable() && !seen[in] {
				seen[in] = true
				starts = append(starts, in)
			}
		}
	}
	for _, ctrl := range v.cfg.Controls {
		collect(ctrl)
	}
	for _, f := range v.fixed {
		collect(f)
	}

	c.AdvanceTime()
	for _, start := range starts {
		if c.GetMark(start) != gate.Unvisited {
			continue
		}
		c.SetMark(start, gate.Visited)
		stack := []inFrame{{cur: start}}
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			ins := c.Ins(top.cur)
			if top.next == len(ins) {
				c.SetMark(top.cur, gate.Finished)
				stack = stack[:len(stack)-1]
				continue
			}
			prev := ins[top.next]
			top.next++
			if prev == gate.Null || !c.Op(prev).IsSchedulable() {
				continue
			}
			switch c.GetMark(prev) {
			case gate.Finished:
				continue
			case gate.Visited:
				cur := top.cur
				path := []string{id(prev) + " is prev of " + id(cur),
					id(prev) + " is reachable from " + id(cur) + " without passing selectors"}
				gates := []gate.Ref{prev}
				for k := len(stack) - 1; k >= 0 && stack[k].cur != prev; k-- {
					gates = append(gates, stack[k].cur)
				}
				for _, g := range gates {
					path = append(path, "path: "+c.String(g))
				}
				v.proof("found a data or depend flow cycle without passing selectors", gates, path...)
				return false
			}
			c.SetMark(prev, gate.Visited)
			stack = append(stack, inFrame{cur: prev})
		}
	}
	return true
}

// floatingGates checks floating gates and the prolog gates they read.
func (v *checker) floatingGates() bool {
	if !v.verifyAll("floating gate is malformed", v.floating) {
		return false
	}
	var prolog []gate.Ref
	for _, ref := range v.floating {
		for _, in := range v.c.Ins(ref) {
			if in != gate.Null && v.c.Op(in).IsProlog() {
				prolog = append(prolog, in)
			}
		}
	}
	return v.verifyAll("prolog gate is malformed", prolog)
}

// bounds recomputes both scheduling bounds of every floating gate and
// checks that the upper bound dominates the lower one.
func (v *checker) bounds() bool {
	upper, err := schedule.UpperBound(v.c, v.cfg, v.floating)
	if err != nil {
		v.log.Error("no scheduling upper bound", zap.Error(err))
		return false
	}
	lower, _, err := schedule.LowerBound(v.c, v.cfg, v.floating)
	if err != nil {
		v.log.Error("no scheduling lower bound", zap.Error(err))
		return false
	}
	for _, ref := range v.floating {
		lb := lower[ref]
		if lb < 0 {
			continue
		}
		if !v.cfg.Dominates(upper[ref], lb) {
			v.proof(fmt.Sprintf("bounds of gate %s are not consistent", id(ref)), []gate.Ref{ref},
				fmt.Sprintf("upper bound is BB_%d", upper[ref]),
				fmt.Sprintf("lower bound is BB_%d", lb))
			return false
		}
	}
	return true
}
