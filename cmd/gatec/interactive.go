package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/circuit/compiler"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type modelState int

const (
	stateSelectMethod modelState = iota
	stateShowBlocks
)

type browserModel struct {
	err      error
	cfg      compiler.Config
	files    []string
	results  []*compiler.Compiled
	visible  []int
	lines    []string
	filter   textinput.Model
	selected int
	offset   int
	height   int
	state    modelState
}

func newBrowserModel(files []string, cfg compiler.Config) *browserModel {
	ti := textinput.New()
	ti.Placeholder = "method name"
	ti.Prompt = "filter: "
	ti.Width = 40
	ti.Focus()
	return &browserModel{
		cfg:    cfg,
		files:  files,
		filter: ti,
		height: 24,
		state:  stateSelectMethod,
	}
}

type compiledMsg struct {
	err     error
	results []*compiler.Compiled
}

func (m *browserModel) Init() tea.Cmd {
	return tea.Batch(m.compile, textinput.Blink)
}

func (m *browserModel) compile() tea.Msg {
	results, err := compileFiles(m.files, m.cfg)
	return compiledMsg{results: results, err: err}
}

func (m *browserModel) applyFilter() {
	q := strings.TrimSpace(m.filter.Value())
	m.visible = m.visible[:0]
	for i, res := range m.results {
		if q == "" || strings.Contains(res.Method.Name, q) {
			m.visible = append(m.visible, i)
		}
	}
	if m.selected >= len(m.visible) {
		m.selected = max(len(m.visible)-1, 0)
	}
}

func (m *browserModel) open() {
	res := m.results[m.visible[m.selected]]
	m.lines = m.lines[:0]
	if res.Err != nil {
		m.lines = append(m.lines, failStyle.Render(res.Err.Error()))
	}
	for i, gates := range res.Blocks {
		m.lines = append(m.lines, blockStyle.Render(fmt.Sprintf("BB_%d", i)))
		for _, ref := range gates {
			m.lines = append(m.lines, "  "+res.Circuit.String(ref))
		}
	}
	if res.Err == nil && res.Blocks == nil {
		for _, ref := range res.Circuit.Gates() {
			m.lines = append(m.lines, res.Circuit.String(ref))
		}
	}
	m.offset = 0
	m.state = stateShowBlocks
}

func (m *browserModel) pageSize() int {
	return max(m.height-6, 1)
}

func (m *browserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = msg.Height
		return m, nil

	case compiledMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.results = msg.results
		m.applyFilter()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "up":
			if m.state == stateSelectMethod && m.selected > 0 {
				m.selected--
			} else if m.state == stateShowBlocks && m.offset > 0 {
				m.offset--
			}
			return m, nil

		case "down":
			if m.state == stateSelectMethod && m.selected < len(m.visible)-1 {
				m.selected++
			} else if m.state == stateShowBlocks && m.offset < len(m.lines)-1 {
				m.offset++
			}
			return m, nil

		case "pgdown":
			if m.state == stateShowBlocks {
				m.offset = min(m.offset+m.pageSize(), max(len(m.lines)-1, 0))
			}
			return m, nil

		case "pgup":
			if m.state == stateShowBlocks {
				m.offset = max(m.offset-m.pageSize(), 0)
			}
			return m, nil

		case "enter":
			if m.state == stateSelectMethod && len(m.visible) > 0 {
				m.open()
			}
			return m, nil

		case "esc":
			if m.state == stateShowBlocks {
				m.state = stateSelectMethod
				return m, nil
			}
			return m, tea.Quit
		}
	}

	if m.state == stateSelectMethod {
		var cmd tea.Cmd
		m.filter, cmd = m.filter.Update(msg)
		m.applyFilter()
		return m, cmd
	}
	return m, nil
}

func (m *browserModel) View() string {
	if m.err != nil {
		return failStyle.Render(fmt.Sprintf("Error: %v\n\nPress esc to quit.", m.err))
	}
	if m.results == nil {
		return "Compiling..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Gate Circuits"))
	b.WriteString(" ")
	b.WriteString(strings.Join(m.files, " "))
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectMethod:
		b.WriteString(m.filter.View())
		b.WriteString("\n\n")
		for i, idx := range m.visible {
			res := m.results[idx]
			text := m.describe(res)
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + text))
			} else {
				b.WriteString("  " + text)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • type to filter • enter open • esc quit"))

	case stateShowBlocks:
		res := m.results[m.visible[m.selected]]
		b.WriteString(nameStyle.Render(res.Method.Name))
		b.WriteString("\n\n")
		end := min(m.offset+m.pageSize(), len(m.lines))
		for _, line := range m.lines[m.offset:end] {
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render(fmt.Sprintf("%d/%d • ↑/↓ scroll • pgup/pgdown page • esc back", end, len(m.lines))))
	}

	return b.String()
}

func (m *browserModel) describe(res *compiler.Compiled) string {
	if res.Err != nil {
		return res.Method.Name + " " + failStyle.Render("failed")
	}
	s := fmt.Sprintf("%s  %d gates, %d blocks", res.Method.Name, len(res.Circuit.Gates()), len(res.Blocks))
	if res.Cached {
		s += " (cached)"
	}
	return s
}

func runInteractive(files []string, cfg compiler.Config) error {
	p := tea.NewProgram(newBrowserModel(files, cfg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
