package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/airframesio/table-compare/cmd/comparison"
	"github.com/airframesio/table-compare/cmd/schemawalk"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/afero"
)

// maxMessages is the number of differing fields kept in the log section
const maxMessages = 8

type progressModel struct {
	progress  progress.Model
	spinner   spinner.Model
	done      int
	total     int
	current   string
	differing int
	messages  []string
	width     int
	startTime time.Time
	finished  bool
	cancel    context.CancelFunc
}

type taskDoneMsg struct {
	done   int
	total  int
	task   schemawalk.Task
	result *comparison.Result
}

type runDoneMsg struct{}

type runResult struct {
	report *comparison.Report
	err    error
}

var (
	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			Margin(0, 2)

	stageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575")).
			Margin(0, 2)

	progressInfoStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#888888")).
				Margin(0, 2)
)

func newProgressModel(cancel context.CancelFunc) progressModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = stageStyle

	return progressModel{
		progress:  progress.New(progress.WithDefaultGradient()),
		spinner:   s,
		startTime: time.Now(),
		cancel:    cancel,
	}
}

func (m progressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = max(10, msg.Width-10)
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case progress.FrameMsg:
		pm, cmd := m.progress.Update(msg)
		if p, ok := pm.(progress.Model); ok {
			m.progress = p
		}
		return m, cmd
	case taskDoneMsg:
		return m.handleTaskDone(msg)
	case runDoneMsg:
		m.finished = true
		return m, tea.Quit
	}
	return m, nil
}

func (m progressModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" || msg.String() == "q" {
		// The comparison stops before its next field and reports back
		if m.cancel != nil {
			m.cancel()
		}
		m.current = "cancelling..."
	}
	return m, nil
}

func (m progressModel) handleTaskDone(msg taskDoneMsg) (tea.Model, tea.Cmd) {
	m.done = msg.done
	m.total = msg.total
	m.current = msg.task.QualifiedName

	if msg.result != nil && msg.result.IsDifferent {
		m.differing++
		m.messages = append(m.messages, fmt.Sprintf("DIFF %s (%d vs %d entries)",
			msg.task.QualifiedName, msg.result.Entries1, msg.result.Entries2))
		if len(m.messages) > maxMessages {
			m.messages = m.messages[len(m.messages)-maxMessages:]
		}
	}

	if m.total == 0 {
		return m, nil
	}
	return m, m.progress.SetPercent(float64(m.done) / float64(m.total))
}

func (m progressModel) View() string {
	if m.finished {
		return ""
	}

	var sections []string
	sections = append(sections, "")
	sections = append(sections, titleStyle.Render("   Table Compare"))
	sections = append(sections, "")

	if m.total == 0 {
		sections = append(sections, stageStyle.Render(m.spinner.View()+" Reading schemas..."))
	} else {
		sections = append(sections, stageStyle.Render(fmt.Sprintf("%s %s", m.spinner.View(), m.current)))
		sections = append(sections, "   "+m.progress.View())
		sections = append(sections, progressInfoStyle.Render(fmt.Sprintf("%d/%d fields, %d differing, %s elapsed",
			m.done, m.total, m.differing, time.Since(m.startTime).Round(time.Second))))
	}

	if len(m.messages) > 0 {
		sections = append(sections, "")
		for _, msg := range m.messages {
			sections = append(sections, "     "+diffStyle.Render(msg))
		}
	}

	sections = append(sections, "")
	sections = append(sections, helpStyle.Render("Press Ctrl+C or 'q' to stop"))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// runWithProgress runs the comparison in one background goroutine while the
// progress view owns the terminal. Log output is held back until the view
// exits.
func runWithProgress(ctx context.Context, config *Config, fs afero.Fs) (*comparison.Report, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var logs bytes.Buffer
	run := newComparisonRun(config, fs, newLogger(&logs, config.Debug, config.LogFormat))

	p := tea.NewProgram(newProgressModel(cancel))
	run.onTask = func(done, total int, task schemawalk.Task, res *comparison.Result) {
		p.Send(taskDoneMsg{done: done, total: total, task: task, result: res})
	}

	finished := make(chan runResult, 1)
	go func() {
		report, err := run.Run(ctx)
		finished <- runResult{report: report, err: err}
		p.Send(runDoneMsg{})
	}()

	_, uiErr := p.Run()
	if uiErr != nil {
		cancel()
	}
	result := <-finished

	if s := strings.TrimRight(logs.String(), "\n"); s != "" {
		fmt.Fprintln(os.Stdout, s)
	}
	if uiErr != nil && result.err == nil {
		return result.report, fmt.Errorf("progress view failed: %w", uiErr)
	}
	return result.report, result.err
}
