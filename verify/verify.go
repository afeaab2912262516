package verify

import (
	"slices"

	"go.uber.org/zap"

	"github.com/wippyai/circuit/gate"
	"github.com/wippyai/circuit/schedule"
)

// Check names one verifier check.
type Check string

const (
	CheckIntegrity      Check = "integrity"
	CheckStateGates     Check = "state_gates"
	CheckCFGSoundness   Check = "cfg_soundness"
	CheckCFGAcyclic     Check = "cfg_acyclic"
	CheckReducible      Check = "reducible"
	CheckFixedGates     Check = "fixed_gates"
	CheckFixedRelations Check = "fixed_relations"
	CheckFlowCycles     Check = "flow_cycles"
	CheckFloatingGates  Check = "floating_gates"
	CheckBounds         Check = "bounds"
)

// Checks lists every check in execution order.
var Checks = []Check{
	CheckIntegrity,
	CheckStateGates,
	CheckCFGSoundness,
	CheckCFGAcyclic,
	CheckReducible,
	CheckFixedGates,
	CheckFixedRelations,
	CheckFlowCycles,
	CheckFloatingGates,
	CheckBounds,
}

// Options selects the checks to run.
type Options struct {
	Skip []Check
}

type checker struct {
	c        *gate.Circuit
	log      *zap.Logger
	cfg      *schedule.CFG
	fixed    []gate.Ref
	floating []gate.Ref
}

// Run runs every check on c and reports whether all of them passed.
func Run(c *gate.Circuit, name string, log *zap.Logger) bool {
	return RunWith(c, name, log, Options{})
}

// RunWith runs the checks not skipped by opts.
func RunWith(c *gate.Circuit, name string, log *zap.Logger, opts Options) bool {
	if log == nil {
		log = zap.NewNop()
	}
	v := &checker{c: c, log: log.With(zap.String("method", name))}

	steps := []struct {
		check Check
		run   func() bool
	}{
		{CheckIntegrity, v.integrity},
		{"", v.prepare},
		{CheckStateGates, v.stateGates},
		{CheckCFGSoundness, v.cfgSoundness},
		{CheckCFGAcyclic, v.cfgAcyclic},
		{CheckReducible, v.reducible},
		{CheckFixedGates, v.fixedGates},
		{CheckFixedRelations, v.fixedRelations},
		{CheckFlowCycles, v.flowCycles},
		{CheckFloatingGates, v.floatingGates},
		{CheckBounds, v.bounds},
	}
	for _, s := range steps {
		if s.check != "" && slices.Contains(opts.Skip, s.check) {
			continue
		}
		if !s.run() {
			v.log.Error("verifier failed", zap.String("check", string(s.check)))
			return false
		}
	}
	v.log.Debug("verifier passed")
	return true
}

// prepare computes the control skeleton shared by the later checks.
func (v *checker) prepare() bool {
	v.cfg = schedule.NewCFG(v.c)
	for _, ctrl := range v.cfg.Controls {
		for _, u := range v.c.Uses(ctrl) {
			if u.Index == 0 && v.c.Op(u.Gate).IsFixed() {
				v.fixed = append(v.fixed, u.Gate)
			}
		}
	}
	v.floating = schedule.Floating(v.c, v.cfg)
	return true
}

func (v *checker) proof(msg string, gates []gate.Ref, lines ...string) {
	ids := make([]uint32, len(gates))
	for i, g := range gates {
		ids[i] = uint32(g)
	}
	v.log.Error(msg, zap.Uint32s("gates", ids), zap.Strings("proof", lines))
}
