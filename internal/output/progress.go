package output

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ghrest.dev/ghrest/internal/pipeline"
)

// PipelineProgressUI displays the stages of a branch write
type PipelineProgressUI interface {
	// Observe is a pipeline.StageObserver
	Observe(op string, stage pipeline.Stage)
	// Complete finalizes the display
	Complete()
}

// writeStages are the stages a successful write passes through, in order
var writeStages = []pipeline.Stage{
	pipeline.StageResolvingRef,
	pipeline.StageUploadingBlobs,
	pipeline.StageAwaitingBlobs,
	pipeline.StageBuildingTree,
	pipeline.StageCreatingCommit,
	pipeline.StageAdvancingRef,
}

// NewPipelineProgressUI creates the appropriate progress UI based on TTY availability
func NewPipelineProgressUI(splog *Splog) PipelineProgressUI {
	if IsTTY() {
		return NewTTYPipelineProgress()
	}
	return NewSimplePipelineProgress(splog)
}

// SimplePipelineProgress prints stages line by line (non-TTY)
type SimplePipelineProgress struct {
	splog *Splog
}

// NewSimplePipelineProgress creates a new simple progress UI
func NewSimplePipelineProgress(splog *Splog) *SimplePipelineProgress {
	return &SimplePipelineProgress{splog: splog}
}

func (p *SimplePipelineProgress) Observe(op string, stage pipeline.Stage) {
	switch stage {
	case pipeline.StageDone:
		p.splog.Debug("  ✓ %s done", op)
	case pipeline.StageFailed:
		p.splog.Debug("  ✗ %s failed", op)
	default:
		p.splog.Debug("  ⋯ %s: %s", op, stage)
	}
}

func (p *SimplePipelineProgress) Complete() {}

// TTYPipelineProgress uses bubbletea for an animated stage list (TTY)
type TTYPipelineProgress struct {
	once    sync.Once
	program *tea.Program
	done    chan struct{}
}

// NewTTYPipelineProgress creates a new TTY progress UI
func NewTTYPipelineProgress() *TTYPipelineProgress {
	return &TTYPipelineProgress{done: make(chan struct{})}
}

func (p *TTYPipelineProgress) start(op string) {
	p.program = tea.NewProgram(newStageModel(op), tea.WithInput(nil), tea.WithOutput(os.Stderr))
	go func() {
		defer close(p.done)
		_, _ = p.program.Run()
	}()
}

func (p *TTYPipelineProgress) Observe(op string, stage pipeline.Stage) {
	p.once.Do(func() { p.start(op) })
	p.program.Send(stageMsg{stage: stage})
}

func (p *TTYPipelineProgress) Complete() {
	if p.program == nil {
		return
	}
	p.program.Send(stageCompleteMsg{})
	<-p.done
}

type stageMsg struct {
	stage pipeline.Stage
}

type stageCompleteMsg struct{}

type stageStyles struct {
	spinnerStyle lipgloss.Style
	doneStyle    lipgloss.Style
	errorStyle   lipgloss.Style
	opStyle      lipgloss.Style
	dimStyle     lipgloss.Style
}

// stageModel is the bubbletea model for TTY progress
type stageModel struct {
	op      string
	current pipeline.Stage
	failed  bool
	done    bool
	spinner spinner.Model
	styles  stageStyles
}

func newStageModel(op string) *stageModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return &stageModel{
		op:      op,
		spinner: s,
		styles: stageStyles{
			spinnerStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("205")),
			doneStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
			errorStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
			opStyle:      lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
			dimStyle:     lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		},
	}
}

func (m *stageModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *stageModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case stageMsg:
		switch msg.stage {
		case pipeline.StageFailed:
			m.failed = true
		case pipeline.StageDone:
			m.done = true
		default:
			m.current = msg.stage
		}
		return m, nil

	case stageCompleteMsg:
		return m, tea.Quit
	}

	return m, nil
}

func (m *stageModel) View() string {
	var b strings.Builder
	b.WriteString(m.styles.opStyle.Render(m.op))
	b.WriteString("\n")

	for _, stage := range writeStages {
		var icon, label string
		switch {
		case m.done || stage < m.current:
			icon = m.styles.doneStyle.Render("✓")
			label = stage.String()
		case stage == m.current && m.failed:
			icon = m.styles.errorStyle.Render("✗")
			label = m.styles.errorStyle.Render(stage.String())
		case stage == m.current:
			icon = m.spinner.View()
			label = m.styles.spinnerStyle.Render(stage.String() + "...")
		default:
			icon = m.styles.dimStyle.Render("○")
			label = m.styles.dimStyle.Render(stage.String())
		}
		fmt.Fprintf(&b, "  %s %s\n", icon, label)
	}
	return b.String()
}
