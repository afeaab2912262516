// Register liveness over regions.
//
// A register is LIVE at a program point if some path from that point
// reads it before writing it. Liveness is a backward dataflow problem:
// live-out of a region is the union of the live-in sets of its successors
// and its catch target, and live-in is live-out pushed backward through
// the region's instructions. Regions are revisited until no set changes.
//
// Inside a try region every throwing instruction can jump to the handler,
// so the handler's live-in set is merged at each of those points.
package builder

import (
	"github.com/wippyai/circuit/bitset"
	"github.com/wippyai/circuit/bytecode"
)

// livenessAnalyzer computes live registers at region entries.
type livenessAnalyzer struct {
	b       *builder
	numRegs int
}

func newLivenessAnalyzer(b *builder) *livenessAnalyzer {
	return &livenessAnalyzer{b: b, numRegs: b.method.NumRegs()}
}

// applyTransfer moves live backward over instruction i.
func (la *livenessAnalyzer) applyTransfer(i int, live *bitset.BitSet) {
	info := &la.b.infos[i]
	switch info.Kind {
	case bytecode.KindResume:
		// a resume redefines the whole register file
		live.Reset()
		return
	case bytecode.KindSuspend:
		// a suspend saves the whole register file
		for r := 0; r < la.numRegs; r++ {
			live.Set(uint32(r))
		}
	}
	for _, r := range info.VRegOut {
		live.Clear(uint32(r))
	}
	for _, op := range info.Inputs {
		if r, ok := op.(bytecode.VirtualRegister); ok {
			live.Set(uint32(r))
		}
	}
}

// LiveIn returns the registers live at the head of every region. Dead
// regions get an empty set.
func (la *livenessAnalyzer) LiveIn() []*bitset.BitSet {
	regions := la.b.regions
	liveIn := make([]*bitset.BitSet, len(regions))
	for id := range regions {
		liveIn[id] = bitset.New(la.numRegs)
	}

	for changed := true; changed; {
		changed = false
		for id := len(regions) - 1; id >= 0; id-- {
			bb := &regions[id]
			if bb.Dead {
				continue
			}
			live := bitset.New(la.numRegs)
			for _, s := range bb.Succs {
				live.Union(liveIn[s])
			}
			var catchLive *bitset.BitSet
			if len(bb.Catchs) > 0 {
				catchLive = liveIn[bb.Catchs[0]]
				live.Union(catchLive)
			}
			for i := bb.End; i >= bb.Start; i-- {
				la.applyTransfer(i, live)
				if catchLive != nil && la.b.infos[i].Kind.IsGeneral() {
					live.Union(catchLive)
				}
			}
			if liveIn[id].Union(live) {
				changed = true
			}
		}
	}
	return liveIn
}
