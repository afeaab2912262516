package builder

import (
	"slices"
	"sort"

	"github.com/wippyai/circuit/bitset"
	"github.com/wippyai/circuit/bytecode"
	"github.com/wippyai/circuit/errors"
	"github.com/wippyai/circuit/gate"
)

// Region is a basic block: the instructions Start..End inclusive.
// All adjacency lists hold region ids.
type Region struct {
	Preds  []int
	Succs  []int
	Trys   []int // regions whose exceptions land here
	Catchs []int // handler regions, highest priority first
	// LoopBacks lists the source regions of loop-back edges into this one.
	LoopBacks []int
	Dominated []int
	Frontier  []int
	// Phis holds the registers that need a phi at the region head.
	Phis *bitset.BitSet

	ID    int
	Start int
	End   int
	Idom  int

	NumOfStatePreds int
	NumOfLoopBacks  int
	PhiAcc          bool
	Dead            bool

	head headState
}

// expandedPred records where the value of one merge input comes from.
// block -1 is the implicit predecessor of an entry region that is a loop
// header.
type expandedPred struct {
	block       int
	index       int
	isException bool
}

// headState is the assembly state of a region.
type headState struct {
	state  gate.Ref
	depend gate.Ref

	merge      gate.Ref // forward merge
	dependSel  gate.Ref
	loopBegin  gate.Ref
	backMerge  gate.Ref
	backDepend gate.Ref
	exception  gate.Ref

	forwardPreds []expandedPred
	backPreds    []expandedPred

	statePredIndex int
	forwardIndex   int
	loopBackIndex  int

	phis map[int]gate.Ref
}

// regionsInfo collects block heads and split edges during the scan.
type regionsInfo struct {
	// heads maps a block head index to its no-fallthrough flag.
	heads map[int]bool
	// splits are explicit (source index, target index) edges.
	splits [][2]int
}

func (r *regionsInfo) insertHead(idx int, noFallthrough bool) {
	r.heads[idx] = r.heads[idx] || noFallthrough
}

func (r *regionsInfo) insertJump(target, from int) {
	r.insertHead(target, false)
	r.splits = append(r.splits, [2]int{from, target})
}

type tryRange struct {
	start   int
	end     int // exclusive
	catches []int
	pcs     []uint32
}

func addUnique(list []int, v int) []int {
	if slices.Contains(list, v) {
		return list
	}
	return append(list, v)
}

func removeValue(list []int, v int) []int {
	return slices.DeleteFunc(list, func(x int) bool { return x == v })
}

// BuildRegions partitions m into regions linked by control-flow and
// catch edges. The result has no dominator information yet.
func BuildRegions(m *bytecode.Method) ([]Region, []int, error) {
	var (
		regions []Region
		blockOf []int
	)
	err := catchFatal(func() {
		regions, blockOf = buildRegions(m, m.Layout())
	})
	if err != nil {
		return nil, nil, err
	}
	return regions, blockOf, nil
}

func buildRegions(m *bytecode.Method, l bytecode.Layout) ([]Region, []int) {
	n := len(m.Instructions)
	info := &regionsInfo{heads: map[int]bool{0: false}}

	for i := range m.Instructions {
		kind := m.Instructions[i].Op.Kind()
		switch kind {
		case bytecode.KindJump:
			target := mustJumpTarget(m, l, i)
			info.insertJump(target, i)
			if i+1 < n {
				info.insertHead(i+1, true)
			}
		case bytecode.KindCondJump:
			target := mustJumpTarget(m, l, i)
			if target != i+1 {
				info.insertJump(target, i)
			}
			if i+1 < n {
				info.insertHead(i+1, false)
			}
		case bytecode.KindReturn, bytecode.KindThrow:
			if i+1 < n {
				info.insertHead(i+1, true)
			}
		}
	}

	var tries []tryRange
	for _, t := range m.Tries {
		if t.StartPC == t.EndPC {
			continue
		}
		tr := tryRange{start: mustIndex(m, l, t.StartPC), end: n}
		info.insertHead(tr.start, false)
		if t.EndPC != l.End() {
			tr.end = mustIndex(m, l, t.EndPC)
			info.insertHead(tr.end, false)
		}
		for _, pc := range t.Catches {
			idx, ok := l.Index(pc)
			if !ok {
				panic(errors.MissingCatch(pc))
			}
			info.insertHead(idx, true)
			tr.catches = append(tr.catches, idx)
			tr.pcs = append(tr.pcs, pc)
		}
		tries = append(tries, tr)
	}

	starts := make([]int, 0, len(info.heads))
	for idx := range info.heads {
		if idx < n {
			starts = append(starts, idx)
		}
	}
	sort.Ints(starts)

	regions := make([]Region, len(starts))
	blockOf := make([]int, n)
	for id, start := range starts {
		end := n - 1
		if id+1 < len(starts) {
			end = starts[id+1] - 1
		}
		regions[id] = Region{ID: id, Start: start, End: end, Idom: -1}
		for i := start; i <= end; i++ {
			blockOf[i] = id
		}
	}

	link := func(from, to int) {
		regions[from].Succs = addUnique(regions[from].Succs, to)
		regions[to].Preds = addUnique(regions[to].Preds, from)
	}
	for id := 1; id < len(regions); id++ {
		if !info.heads[regions[id].Start] {
			link(id-1, id)
		}
	}
	for _, s := range info.splits {
		link(blockOf[s[0]], blockOf[s[1]])
	}

	buildCatchBlocks(regions, blockOf, tries)
	return regions, blockOf
}

// buildCatchBlocks adds a catch edge from every region inside a try range
// to each of its handlers and orders the handlers by start index.
func buildCatchBlocks(regions []Region, blockOf []int, tries []tryRange) {
	for _, tr := range tries {
		for id := range regions {
			bb := &regions[id]
			if bb.Start < tr.start || bb.Start >= tr.end {
				continue
			}
			for k, idx := range tr.catches {
				c := blockOf[idx]
				if regions[c].Start != idx {
					panic(errors.MissingCatch(tr.pcs[k]))
				}
				bb.Catchs = addUnique(bb.Catchs, c)
				regions[c].Trys = addUnique(regions[c].Trys, id)
			}
		}
	}
	for id := range regions {
		catchs := regions[id].Catchs
		sort.SliceStable(catchs, func(a, b int) bool {
			return regions[catchs[a]].Start < regions[catchs[b]].Start
		})
	}
}

func mustJumpTarget(m *bytecode.Method, l bytecode.Layout, i int) int {
	target, err := m.JumpTarget(l, i)
	if err != nil {
		panic(err)
	}
	return target
}

func mustIndex(m *bytecode.Method, l bytecode.Layout, pc uint32) int {
	idx, ok := l.Index(pc)
	if !ok {
		panic(errors.New(errors.PhaseRegion, errors.KindInvalidInput).
			Method(m.Name).
			Detail("try boundary pc %d is not an instruction boundary", pc).
			Build())
	}
	return idx
}
