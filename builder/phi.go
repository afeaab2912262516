package builder

import (
	"github.com/wippyai/circuit/bitset"
	"github.com/wippyai/circuit/bytecode"
)

// writtenRegs returns the registers written by instructions of bb. A
// resume writes all of them.
func (b *builder) writtenRegs(bb *Region) *bitset.BitSet {
	numRegs := b.method.NumRegs()
	regs := bitset.New(numRegs)
	for i := bb.Start; i <= bb.End; i++ {
		info := &b.infos[i]
		if info.Kind == bytecode.KindResume {
			for r := 0; r < numRegs; r++ {
				regs.Set(uint32(r))
			}
			return regs
		}
		for _, r := range info.VRegOut {
			regs.Set(uint32(r))
		}
	}
	return regs
}

// insertPhis places register phis with the iterated dominance frontier of
// every register's def sites. A region that can throw into a handler adds
// a def site at the handler for each register it writes that is live
// there.
func (b *builder) insertPhis() {
	numRegs := b.method.NumRegs()
	defSites := make([][]int, numRegs)
	isDef := make([]*bitset.BitSet, numRegs)
	for r := range isDef {
		isDef[r] = bitset.New(len(b.regions))
	}
	addDef := func(r uint32, id int) {
		if !isDef[r].Has(uint32(id)) {
			isDef[r].Set(uint32(id))
			defSites[r] = append(defSites[r], id)
		}
	}

	for id := range b.regions {
		bb := &b.regions[id]
		bb.Phis = bitset.New(numRegs)
		if bb.Dead {
			continue
		}
		b.writtenRegs(bb).Range(func(r uint32) bool {
			addDef(r, id)
			return true
		})
	}

	liveIn := newLivenessAnalyzer(b).LiveIn()
	for id := range b.regions {
		bb := &b.regions[id]
		if bb.Dead || len(bb.Catchs) == 0 {
			continue
		}
		handler := bb.Catchs[0]
		written := b.writtenRegs(bb)
		written.Intersect(liveIn[handler])
		written.Range(func(r uint32) bool {
			b.regions[handler].Phis.Set(r)
			addDef(r, handler)
			return true
		})
	}

	for r := 0; r < numRegs; r++ {
		work := append([]int(nil), defSites[r]...)
		for len(work) > 0 {
			id := work[len(work)-1]
			work = work[:len(work)-1]
			for _, f := range b.regions[id].Frontier {
				fb := &b.regions[f]
				if fb.Phis.Has(uint32(r)) {
					continue
				}
				fb.Phis.Set(uint32(r))
				if !isDef[r].Has(uint32(f)) {
					isDef[r].Set(uint32(f))
					work = append(work, f)
				}
			}
		}
	}
}
