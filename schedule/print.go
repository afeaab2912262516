package schedule

import (
	"go.uber.org/zap"

	"github.com/wippyai/circuit/gate"
)

// Print logs every block at debug level, one entry per block.
func (r *Result) Print(c *gate.Circuit, log *zap.Logger) {
	if log == nil || !log.Core().Enabled(zap.DebugLevel) {
		return
	}
	for i, gates := range r.Blocks {
		b := r.Order[i]
		lines := make([]string, len(gates))
		for k, ref := range gates {
			lines[k] = c.String(ref)
		}
		log.Debug("block",
			zap.Int("block", b),
			zap.Int("idom", r.CFG.Idom(b)),
			zap.Ints("preds", r.CFG.Preds(b)),
			zap.Strings("gates", lines))
	}
}
