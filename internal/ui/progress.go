package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"wasmloader/internal/buildpipeline"
)

type progressModel struct {
	title      string
	events     <-chan buildpipeline.Event
	spinner    spinner.Model
	prog       progress.Model
	items      []moduleItem
	index      map[string]int
	stageLabel string
	width      int
	done       bool
}

// moduleItem is one row of the progress view.
type moduleItem struct {
	name    string
	status  string
	stage   buildpipeline.Stage
	elapsed time.Duration
	failure string
	final   bool
}

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	detailStyle  = lipgloss.NewStyle().Faint(true)
	statusStyles = map[string]lipgloss.Style{
		"done":   lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		"error":  lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
		"queued": lipgloss.NewStyle().Foreground(lipgloss.Color("7")),
	}
	workingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
)

type eventMsg buildpipeline.Event
type doneMsg struct{}

// NewProgressModel returns a Bubble Tea model that renders one line per
// module. Events are matched to modules by Event.Module; the model quits when
// events is closed.
func NewProgressModel(title string, modules []string, events <-chan buildpipeline.Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 76 // Default width

	items := make([]moduleItem, 0, len(modules))
	index := make(map[string]int, len(modules))
	for i, name := range modules {
		items = append(items, moduleItem{name: name, status: "queued"})
		index[name] = i
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
		ev := buildpipeline.Event(msg)
		cmd := m.applyEvent(ev)
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
	case progress.FrameMsg:
		progressModel, cmd := m.prog.Update(msg)
		m.prog = progressModel.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) View() string {
	if len(m.items) == 0 {
		return ""
	}
	header := m.title
	if m.stageLabel != "" {
		header += " (" + m.stageLabel + ")"
	}
	if m.done {
		header = "done: " + header
	} else {
		header = m.spinner.View() + " " + header
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(header))
	b.WriteString("\n\n")

	// status column, two gaps and the elapsed column
	nameWidth := max(m.width-12-4-8, 20)
	for _, item := range m.items {
		status := styleStatus(item.status).Render(fmt.Sprintf("%12s", item.status))
		fmt.Fprintf(&b, "  %s %s", status, truncate(item.name, nameWidth))
		if item.elapsed > 0 {
			b.WriteString(detailStyle.Render(" " + item.elapsed.Round(time.Millisecond).String()))
		}
		if item.failure != "" {
			b.WriteString("\n" + strings.Repeat(" ", 15))
			b.WriteString(detailStyle.Render(truncate(item.failure, nameWidth)))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.done {
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

func (m *progressModel) applyEvent(ev buildpipeline.Event) tea.Cmd {
	idx, ok := m.index[ev.Module]
	if !ok {
		if label := statusLabel(ev.Stage, ev.Status); label != "" {
			m.stageLabel = label
		}
		return nil
	}
	item := &m.items[idx]
	if item.final {
		return nil
	}
	item.stage = ev.Stage
	item.elapsed += ev.Elapsed
	switch {
	case ev.Status == buildpipeline.StatusError:
		item.status, item.final = "error", true
		if ev.Err != nil {
			item.failure = fmt.Sprintf("%s: %v", ev.Stage, ev.Err)
		}
	case ev.Status == buildpipeline.StatusDone && ev.Stage == buildpipeline.StageEmit:
		item.status, item.final = "done", true
	default:
		if label := statusLabel(ev.Stage, ev.Status); label != "" {
			item.status = label
		}
	}
	return m.prog.SetPercent(m.percent())
}

func (m *progressModel) percent() float64 {
	if len(m.items) == 0 {
		return 0
	}
	total := 0.0
	for _, item := range m.items {
		if item.final {
			total += 1.0
		} else {
			total += progressFromStage(item.stage)
		}
	}
	return total / float64(len(m.items))
}

func progressFromStage(stage buildpipeline.Stage) float64 {
	switch stage {
	case buildpipeline.StageResolve:
		return 0.05
	case buildpipeline.StageCompile:
		return 0.2
	case buildpipeline.StageValidate:
		return 0.6
	case buildpipeline.StageReduce:
		return 0.7
	case buildpipeline.StageBindgen:
		return 0.8
	case buildpipeline.StageShim:
		return 0.9
	case buildpipeline.StageEmit:
		return 0.95
	default:
		return 0.0
	}
}

func statusLabel(stage buildpipeline.Stage, status buildpipeline.Status) string {
	switch status {
	case buildpipeline.StatusQueued:
		return "queued"
	case buildpipeline.StatusError:
		return "error"
	case buildpipeline.StatusWorking:
		return stageLabel(stage)
	default:
		return ""
	}
}

func stageLabel(stage buildpipeline.Stage) string {
	switch stage {
	case buildpipeline.StageResolve:
		return "resolving"
	case buildpipeline.StageCompile:
		return "compiling"
	case buildpipeline.StageValidate:
		return "validating"
	case buildpipeline.StageReduce:
		return "reducing"
	case buildpipeline.StageBindgen:
		return "binding"
	case buildpipeline.StageShim:
		return "shimming"
	case buildpipeline.StageEmit:
		return "emitting"
	default:
		return ""
	}
}

func styleStatus(status string) lipgloss.Style {
	if st, ok := statusStyles[status]; ok {
		return st
	}
	return workingStyle
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
	return runewidth.Truncate(value, width-3, "...")
}
