package builder

import (
	"go.uber.org/zap"
)

func toInts(xs []uint32) []int {
	out := make([]int, len(xs))
	for i, x := range xs {
		out[i] = int(x)
	}
	return out
}

// PrintRegions logs every region at debug level.
func (r *Result) PrintRegions(log *zap.Logger) {
	for id := range r.Regions {
		bb := &r.Regions[id]
		if bb.Dead {
			log.Debug("region", zap.Int("id", id), zap.Bool("dead", true))
			continue
		}
		fields := []zap.Field{
			zap.Int("id", id),
			zap.Int("start", bb.Start),
			zap.Int("end", bb.End),
			zap.Ints("preds", bb.Preds),
			zap.Ints("succs", bb.Succs),
			zap.Int("idom", bb.Idom),
			zap.Ints("dominated", bb.Dominated),
			zap.Ints("frontier", bb.Frontier),
			zap.Int("state_preds", bb.NumOfStatePreds),
		}
		if len(bb.Trys) > 0 {
			fields = append(fields, zap.Ints("trys", bb.Trys))
		}
		if len(bb.Catchs) > 0 {
			fields = append(fields, zap.Ints("catchs", bb.Catchs))
		}
		if bb.NumOfLoopBacks > 0 {
			fields = append(fields, zap.Ints("loop_backs", bb.LoopBacks), zap.Int("num_loop_backs", bb.NumOfLoopBacks))
		}
		if bb.Phis != nil && !bb.Phis.Empty() {
			fields = append(fields, zap.Ints("phis", toInts(bb.Phis.ToSlice())))
		}
		if bb.PhiAcc {
			fields = append(fields, zap.Bool("phi_acc", true))
		}
		log.Debug("region", fields...)
	}
}
