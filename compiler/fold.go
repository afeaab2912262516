package compiler

import (
	"github.com/wippyai/circuit/gate"
)

// FoldSelectors replaces every selector whose inputs, ignoring the
// selector itself, are all the same gate by that gate. Folding a selector
// can make the selectors that use it trivial, so users are revisited. It
// returns the number of selectors removed.
func FoldSelectors(c *gate.Circuit) int {
	var work []gate.Ref
	queued := make(map[gate.Ref]bool)
	push := func(ref gate.Ref) {
		if !queued[ref] && c.IsLive(ref) && c.Op(ref).IsSelector() {
			queued[ref] = true
			work = append(work, ref)
		}
	}
	for _, ref := range c.Gates() {
		push(ref)
	}

	folded := 0
	for len(work) > 0 {
		sel := work[0]
		work = work[1:]
		queued[sel] = false
		if !c.IsLive(sel) || !c.Op(sel).IsSelector() {
			continue
		}
		repl, ok := trivialInput(c, sel)
		if !ok {
			continue
		}
		users := c.Uses(sel)
		c.ReplaceGate(sel, repl)
		folded++
		for _, u := range users {
			push(u.Gate)
		}
	}
	return folded
}

// trivialInput returns the single distinct non-self input of sel.
func trivialInput(c *gate.Circuit, sel gate.Ref) (gate.Ref, bool) {
	same := gate.Null
	for i := 1; i < c.NumIns(sel); i++ {
		in := c.In(sel, i)
		if in == sel {
			continue
		}
		if in == gate.Null {
			return gate.Null, false
		}
		if same == gate.Null {
			same = in
		} else if in != same {
			return gate.Null, false
		}
	}
	return same, same != gate.Null
}
