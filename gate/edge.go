package gate

import (
	"github.com/wippyai/circuit/errors"
)

func (c *Circuit) addUse(in, user Ref, idx int) {
	n := &c.gates[in]
	n.uses = append(n.uses, Use{Gate: user, Index: int32(idx)})
}

func (c *Circuit) removeUse(in, user Ref, idx int) {
	n := &c.gates[in]
	for i, u := range n.uses {
		if u.Gate == user && int(u.Index) == idx {
			n.uses = append(n.uses[:i], n.uses[i+1:]...)
			return
		}
	}
	panic(errors.New(errors.PhaseCircuit, errors.KindInvariant).
		Gates(uint32(in), uint32(user)).
		Detail("gate %d has no use record for input %d of gate %d", in, idx, user).
		Build())
}

func (c *Circuit) checkIndex(ref Ref, idx int) *node {
	n := c.node(ref)
	if idx < 0 || idx >= len(n.ins) {
		panic(errors.New(errors.PhaseCircuit, errors.KindInvariant).
			Gates(uint32(ref)).
			Detail("input %d out of range for %s with %d inputs", idx, n.meta.Op, len(n.ins)).
			Build())
	}
	return n
}

// NewIn fills the placeholder input idx of ref.
func (c *Circuit) NewIn(ref Ref, idx int, in Ref) {
	n := c.checkIndex(ref, idx)
	if n.ins[idx] != Null {
		panic(errors.New(errors.PhaseCircuit, errors.KindInvariant).
			Gates(uint32(ref)).
			Detail("input %d of gate %d is already set to %d", idx, ref, n.ins[idx]).
			Build())
	}
	c.checkRef(in)
	n.ins[idx] = in
	c.addUse(in, ref, idx)
}

// ModifyIn replaces input idx of ref with in.
func (c *Circuit) ModifyIn(ref Ref, idx int, in Ref) {
	n := c.checkIndex(ref, idx)
	if old := n.ins[idx]; old != Null {
		c.removeUse(old, ref, idx)
	}
	n.ins[idx] = in
	if in != Null {
		c.checkRef(in)
		c.addUse(in, ref, idx)
	}
}

// DeleteIn clears input idx of ref back to Null.
func (c *Circuit) DeleteIn(ref Ref, idx int) {
	c.ModifyIn(ref, idx, Null)
}

// DecreaseIn removes input idx of ref altogether, shrinking the zone it
// belongs to. The root input cannot be removed.
func (c *Circuit) DecreaseIn(ref Ref, idx int) {
	n := c.checkIndex(ref, idx)
	m := &n.meta
	switch {
	case idx < int(m.States):
		m.States--
	case idx < int(m.States)+int(m.Depends):
		m.Depends--
	case idx < int(m.States)+int(m.Depends)+int(m.Values):
		m.Values--
	default:
		panic(errors.New(errors.PhaseCircuit, errors.KindInvariant).
			Gates(uint32(ref)).
			Detail("cannot remove root input of %s", m.Op).
			Build())
	}

	if old := n.ins[idx]; old != Null {
		c.removeUse(old, ref, idx)
	}
	for i := idx + 1; i < len(n.ins); i++ {
		if in := n.ins[i]; in != Null {
			c.reindexUse(in, ref, i, i-1)
		}
	}
	n.ins = append(n.ins[:idx], n.ins[idx+1:]...)
}

func (c *Circuit) reindexUse(in, user Ref, from, to int) {
	uses := c.gates[in].uses
	for i := range uses {
		if uses[i].Gate == user && int(uses[i].Index) == from {
			uses[i].Index = int32(to)
			return
		}
	}
}

// ReplaceAllUses redirects every use of old to repl.
func (c *Circuit) ReplaceAllUses(old, repl Ref) {
	c.checkRef(repl)
	for _, u := range c.Uses(old) {
		c.ModifyIn(u.Gate, int(u.Index), repl)
	}
}

// DeleteGate tombstones ref. Its uses must have been redirected first.
func (c *Circuit) DeleteGate(ref Ref) {
	n := c.node(ref)
	if len(n.uses) > 0 {
		panic(errors.New(errors.PhaseCircuit, errors.KindInvariant).
			Gates(uint32(ref)).
			Detail("cannot delete %s with %d uses", n.meta.Op, len(n.uses)).
			Build())
	}
	for i, in := range n.ins {
		if in != Null {
			c.removeUse(in, ref, i)
		}
	}
	n.ins = nil
	n.meta = Meta{Op: OpNop}
	n.mt = NoValue
	n.gt = EmptyType
	for k, v := range c.constants {
		if v == ref {
			delete(c.constants, k)
		}
	}
	for k, v := range c.constData {
		if v == ref {
			delete(c.constData, k)
		}
	}
}

// ReplaceGate redirects every use of old to repl and deletes old.
func (c *Circuit) ReplaceGate(old, repl Ref) {
	c.ReplaceAllUses(old, repl)
	c.DeleteGate(old)
}
