package gate

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/wippyai/circuit/errors"
)

var (
	snapshotEncMode cbor.EncMode
	snapshotDecMode cbor.DecMode
)

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("gate: cbor enc mode: %v", err))
	}
	snapshotEncMode = em
	dm, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("gate: cbor dec mode: %v", err))
	}
	snapshotDecMode = dm
}

type gateRecord struct {
	Ins  []Ref       `cbor:"2,keyasint,omitempty"`
	Meta Meta        `cbor:"1,keyasint"`
	MT   MachineType `cbor:"3,keyasint,omitempty"`
	GT   GateType    `cbor:"4,keyasint,omitempty"`
}

type snapshotRecord struct {
	Gates    []gateRecord `cbor:"1,keyasint"`
	Strings  []string     `cbor:"2,keyasint,omitempty"`
	Capacity int          `cbor:"3,keyasint"`
}

// Snapshot encodes the circuit as canonical CBOR. Equal circuits produce
// equal bytes.
func (c *Circuit) Snapshot() ([]byte, error) {
	rec := snapshotRecord{
		Gates:    make([]gateRecord, len(c.gates)),
		Strings:  c.strings,
		Capacity: c.capacity,
	}
	for i := range c.gates {
		n := &c.gates[i]
		rec.Gates[i] = gateRecord{Meta: n.meta, Ins: n.ins, MT: n.mt, GT: n.gt}
	}
	data, err := snapshotEncMode.Marshal(rec)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseCircuit, errors.KindInvalidInput, err, "encode circuit snapshot")
	}
	return data, nil
}

// Restore decodes a circuit produced by Snapshot.
func Restore(data []byte) (*Circuit, error) {
	var rec snapshotRecord
	if err := snapshotDecMode.Unmarshal(data, &rec); err != nil {
		return nil, errors.Wrap(errors.PhaseCircuit, errors.KindInvalidInput, err, "decode circuit snapshot")
	}
	if len(rec.Gates) < 5 || len(rec.Gates) > rec.Capacity {
		return nil, errors.InvalidInput(errors.PhaseCircuit,
			fmt.Sprintf("snapshot has %d gates for capacity %d", len(rec.Gates), rec.Capacity))
	}

	c := &Circuit{
		capacity:    rec.Capacity,
		constants:   make(map[constKey]Ref),
		constData:   make(map[string]Ref),
		strings:     rec.Strings,
		gates:       make([]node, len(rec.Gates)),
		time:        1,
		root:        0,
		stateEntry:  1,
		dependEntry: 2,
		argList:     3,
		returnList:  4,
	}
	roots := [...]OpCode{OpCircuitRoot, OpStateEntry, OpDependEntry, OpArgList, OpReturnList}
	for i, op := range roots {
		if rec.Gates[i].Meta.Op != op {
			return nil, errors.InvalidInput(errors.PhaseCircuit,
				fmt.Sprintf("snapshot gate %d is %s, want %s", i, rec.Gates[i].Meta.Op, op))
		}
	}

	for i, g := range rec.Gates {
		if g.Meta.Op != OpNop && len(g.Ins) != g.Meta.NumIns() {
			return nil, errors.InvalidInput(errors.PhaseCircuit,
				fmt.Sprintf("snapshot gate %d has %d inputs, meta wants %d", i, len(g.Ins), g.Meta.NumIns()))
		}
		ins := make([]Ref, len(g.Ins))
		copy(ins, g.Ins)
		c.gates[i] = node{meta: g.Meta, ins: ins, mt: g.MT, gt: g.GT}
	}
	for i := range c.gates {
		for idx, in := range c.gates[i].ins {
			if in == Null {
				continue
			}
			if in < 0 || int(in) >= len(c.gates) {
				return nil, errors.InvalidInput(errors.PhaseCircuit,
					fmt.Sprintf("snapshot gate %d input %d out of range", i, idx))
			}
			c.addUse(in, Ref(i), idx)
		}
		switch m := c.gates[i].meta; m.Op {
		case OpConstant:
			c.constants[constKey{bits: m.Value, mt: c.gates[i].mt, gt: c.gates[i].gt}] = Ref(i)
		case OpConstData:
			if m.Value < 0 || int(m.Value) >= len(c.strings) {
				return nil, errors.InvalidInput(errors.PhaseCircuit,
					fmt.Sprintf("snapshot gate %d references missing string %d", i, m.Value))
			}
			c.constData[c.strings[m.Value]] = Ref(i)
		}
	}
	return c, nil
}
