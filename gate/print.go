package gate

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

func writeRefs(b *strings.Builder, tag string, refs []Ref) {
	if len(refs) == 0 {
		return
	}
	if b.Len() > 0 && b.String()[b.Len()-1] != '[' {
		b.WriteByte(' ')
	}
	b.WriteString(tag)
	b.WriteByte(':')
	for i, r := range refs {
		if i > 0 {
			b.WriteByte(',')
		}
		if r == Null {
			b.WriteString("null")
		} else {
			b.WriteString(strconv.Itoa(int(r)))
		}
	}
}

// OpString renders the opcode of ref with its metadata payload.
func (c *Circuit) OpString(ref Ref) string {
	m := c.Meta(ref)
	switch m.Op {
	case OpJSBytecode:
		return fmt.Sprintf("%s %s@%d", m.Op, m.Bytecode, m.BcIndex)
	case OpConstant:
		return fmt.Sprintf("%s %#x", m.Op, m.Value)
	case OpConstData:
		return fmt.Sprintf("%s %q", m.Op, c.ConstString(ref))
	case OpArg, OpRestoreRegister:
		return fmt.Sprintf("%s %d", m.Op, m.Value)
	}
	return m.Op.String()
}

// String renders one gate.
func (c *Circuit) String(ref Ref) string {
	var ins strings.Builder
	ins.WriteByte('[')
	all := c.Ins(ref)
	m := c.Meta(ref)
	s, d, v := int(m.States), int(m.Depends), int(m.Values)
	writeRefs(&ins, "s", all[:s])
	writeRefs(&ins, "d", all[s:s+d])
	writeRefs(&ins, "v", all[s+d:s+d+v])
	writeRefs(&ins, "r", all[s+d+v:])
	ins.WriteByte(']')

	return fmt.Sprintf("(id=%d, op=%s, mt=%s, gt=%s, in=%s)",
		ref, c.OpString(ref), c.MachineType(ref), c.GateType(ref), ins.String())
}

// Print logs every live gate at debug level.
func (c *Circuit) Print(log *zap.Logger) {
	if log == nil || !log.Core().Enabled(zap.DebugLevel) {
		return
	}
	for _, ref := range c.Gates() {
		log.Debug(c.String(ref), zap.Int("uses", c.NumUses(ref)))
	}
}
