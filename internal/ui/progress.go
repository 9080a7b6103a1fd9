package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"pkgtrace/internal/bench"
)

type progressModel struct {
	title   string
	events  <-chan bench.Event
	spinner spinner.Model
	prog    progress.Model
	items   []stageItem
	index   map[bench.Stage]int
	width   int
	done    bool
	failed  bool
}

type stageItem struct {
	stage  bench.Stage
	status bench.Status
	done   int
	total  int
}

type eventMsg bench.Event
type doneMsg struct{}

// NewProgressModel returns a Bubble Tea model that renders bench progress.
// The model quits when events is closed.
func NewProgressModel(title string, events <-chan bench.Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 76 // Default width

	items := make([]stageItem, 0, len(bench.Stages))
	index := make(map[bench.Stage]int, len(bench.Stages))
	for i, st := range bench.Stages {
		items = append(items, stageItem{stage: st, status: bench.StatusQueued})
		index[st] = i
	}
	return &progressModel{
		title:   title,
		events:  events,
		spinner: sp,
		prog:    prog,
		items:   items,
		index:   index,
		width:   80,
	}
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForEvent())
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		cmd := m.applyEvent(bench.Event(msg))
		return m, tea.Batch(cmd, m.listenForEvent())
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.prog.Width = msg.Width - 4
		}
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m, nil
	case progress.FrameMsg:
		progressModel, cmd := m.prog.Update(msg)
		m.prog = progressModel.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	header := truncate(m.title, m.width-4)
	switch {
	case m.failed:
		header = fmt.Sprintf("failed: %s", header)
	case m.done:
		header = fmt.Sprintf("done: %s", header)
	default:
		header = fmt.Sprintf("%s %s", m.spinner.View(), header)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	for _, item := range m.items {
		label := statusLabel(item.status)
		statusStyled := styleStatus(label).Render(fmt.Sprintf("%9s", label))
		counts := ""
		if item.total > 0 {
			counts = fmt.Sprintf("%d/%d", item.done, item.total)
		}
		fmt.Fprintf(&b, "  %s %-10s %s\n", statusStyled, item.stage, counts)
	}

	b.WriteString("\n")
	if m.done && !m.failed {
		b.WriteString(m.prog.ViewAs(1.0))
	} else {
		b.WriteString(m.prog.View())
	}
	b.WriteString("\n")

	return b.String()
}

func (m *progressModel) listenForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *progressModel) applyEvent(ev bench.Event) tea.Cmd {
	idx, ok := m.index[ev.Stage]
	if !ok {
		return nil
	}
	item := &m.items[idx]
	item.status = ev.Status
	item.done = ev.Done
	if ev.Total > 0 {
		item.total = ev.Total
	}
	if ev.Status == bench.StatusError {
		m.failed = true
	}
	return m.prog.SetPercent(m.percent())
}

// percent weighs each stage by its iteration count.
func (m *progressModel) percent() float64 {
	var done, total int
	for _, item := range m.items {
		total += item.total
		if item.status == bench.StatusDone {
			done += item.total
		} else {
			done += item.done
		}
	}
	if total == 0 {
		return 0
	}
	return float64(done) / float64(total)
}

func statusLabel(status bench.Status) string {
	switch status {
	case bench.StatusQueued:
		return "queued"
	case bench.StatusWorking:
		return "measuring"
	case bench.StatusDone:
		return "done"
	case bench.StatusError:
		return "error"
	default:
		return ""
	}
}

func styleStatus(status string) lipgloss.Style {
	switch status {
	case "done":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	case "error":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	case "measuring":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	}
}

func truncate(value string, width int) string {
	if width <= 0 {
		return value
	}
	if runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width, "...")
}

// Truncate shortens value to width terminal cells, marking the cut with "...".
func Truncate(value string, width int) string { return truncate(value, width) }
