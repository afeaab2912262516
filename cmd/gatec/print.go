package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/wippyai/circuit/compiler"
	"github.com/wippyai/circuit/gate"
)

var (
	nameStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#98FB98"))

	blockStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))
)

// printer writes plain text unless the output is a terminal, where lines
// are styled and cut to the terminal width.
type printer struct {
	w      io.Writer
	width  int
	styled bool
}

func newPrinter(f *os.File) *printer {
	p := &printer{w: f}
	fd := int(f.Fd())
	if term.IsTerminal(fd) {
		p.styled = true
		if w, _, err := term.GetSize(fd); err == nil && w > 0 {
			p.width = w
		}
	}
	return p
}

func (p *printer) style(s lipgloss.Style, text string) string {
	if !p.styled {
		return text
	}
	return s.Render(text)
}

func (p *printer) line(text string) {
	if p.width > 0 && lipgloss.Width(text) > p.width {
		text = lipgloss.NewStyle().MaxWidth(p.width).Render(text)
	}
	fmt.Fprintln(p.w, text)
}

func (p *printer) summary(res *compiler.Compiled) {
	name := p.style(nameStyle, res.Method.Name)
	if res.Err != nil {
		fmt.Fprintf(p.w, "%s %s\n", name, p.style(failStyle, "FAILED: "+res.Err.Error()))
		return
	}
	info := fmt.Sprintf("gates=%d blocks=%d", len(res.Circuit.Gates()), len(res.Blocks))
	if res.Folded > 0 {
		info += fmt.Sprintf(" folded=%d", res.Folded)
	}
	if res.Cached {
		info += " cached"
	}
	fmt.Fprintf(p.w, "%s %s\n", name, p.style(dimStyle, info))
}

func ints(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = fmt.Sprint(x)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func (p *printer) regions(res *compiler.Compiled) {
	if res.Build == nil {
		p.line(p.style(dimStyle, "  regions unavailable for cached circuits"))
		return
	}
	for id := range res.Build.Regions {
		bb := &res.Build.Regions[id]
		head := p.style(blockStyle, fmt.Sprintf("  region %d", id))
		if bb.Dead {
			p.line(head + p.style(dimStyle, " dead"))
			continue
		}
		text := fmt.Sprintf("%s [%d, %d] preds=%s succs=%s idom=%d frontier=%s",
			head, bb.Start, bb.End, ints(bb.Preds), ints(bb.Succs), bb.Idom, ints(bb.Frontier))
		if len(bb.Catchs) > 0 {
			text += " catchs=" + ints(bb.Catchs)
		}
		if bb.NumOfLoopBacks > 0 {
			text += fmt.Sprintf(" loop_backs=%d", bb.NumOfLoopBacks)
		}
		p.line(text)
	}
}

func (p *printer) gates(c *gate.Circuit) {
	for _, ref := range c.Gates() {
		p.line("  " + c.String(ref))
	}
}

func (p *printer) schedule(res *compiler.Compiled) {
	if res.Blocks == nil {
		p.line(p.style(dimStyle, "  not scheduled"))
		return
	}
	for i, gates := range res.Blocks {
		head := fmt.Sprintf("  BB_%d", i)
		if res.Schedule != nil {
			b := res.Schedule.Order[i]
			head = fmt.Sprintf("  BB_%d idom=%d preds=%s", b, res.Schedule.CFG.Idom(b), ints(res.Schedule.CFG.Preds(b)))
		}
		p.line(p.style(blockStyle, head))
		for _, ref := range gates {
			p.line("    " + res.Circuit.String(ref))
		}
	}
}
