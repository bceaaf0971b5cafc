package ui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"spamdetect/apperr"
	"spamdetect/classifier"
	"spamdetect/export"
	"spamdetect/ml"
	"spamdetect/progress"
)

// Detector is the part of *detector.Service the TUI drives.
type Detector interface {
	Detect(ctx context.Context, text string) (classifier.Label, error)
	Batch(ctx context.Context, inputPath string) (string, error)
	Performance(ctx context.Context) (ml.Metrics, error)
	Save(text string, label classifier.Label, destination string) error
	Reset() error
	State() progress.State
}

type promptKind int

const (
	promptNone promptKind = iota
	promptSave
	promptBatch
)

type (
	progressMsg   progress.Event
	detectDoneMsg struct {
		label classifier.Label
		err   error
	}
	batchDoneMsg struct {
		output string
		err    error
	}
	performanceMsg struct {
		report string
		err    error
	}
	saveDoneMsg struct {
		path string
		err  error
	}
)

// NewObserver forwards scheduler events into a running program; pass
// (*tea.Program).Send.
func NewObserver(send func(tea.Msg)) progress.Observer {
	return progress.ObserverFunc(func(e progress.Event) {
		send(progressMsg(e))
	})
}

type Model struct {
	ctx      context.Context
	detector Detector

	editor textarea.Model
	path   textinput.Model
	prompt promptKind

	state UiState
	// text the current result was computed for
	resultText string
}

func NewModel(ctx context.Context, d Detector, theme ThemeName, footer string) Model {
	editor := textarea.New()
	editor.Placeholder = "Paste or type an email..."
	editor.SetWidth(70)
	editor.SetHeight(8)
	editor.CharLimit = 0
	editor.Focus()

	path := textinput.New()
	path.Placeholder = "path/to/file.csv"

	return Model{
		ctx:      ctx,
		detector: d,
		editor:   editor,
		path:     path,
		state: UiState{
			Progress: d.State(),
			Theme:    theme,
			Footer:   footer,
		},
	}
}

func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

// State returns the current screen state with the live editor text.
func (m Model) State() UiState {
	s := m.state
	s.Input = m.editor.Value()
	return s
}

func (m Model) View() string {
	s := m.State()
	s.Editor = m.editor.View()
	if m.prompt != promptNone {
		s.PromptView = m.path.View()
	}
	return Render(s, ThemeFor(s.Theme))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.state.Width = msg.Width
		if msg.Width > 4 {
			m.editor.SetWidth(msg.Width - 4)
		}
		return m, nil

	case progressMsg:
		m.state.Progress = msg.State
		return m, nil

	case detectDoneMsg:
		if msg.err != nil {
			m.fail(msg.err)
			return m, nil
		}
		m.state.HasResult = true
		m.state.Result = msg.label
		m.resultText = strings.TrimSpace(m.editor.Value())
		m.state.Message = ""
		return m, nil

	case batchDoneMsg:
		if msg.err != nil {
			m.fail(msg.err)
			return m, nil
		}
		m.info("Predictions saved to: " + msg.output)
		return m, nil

	case performanceMsg:
		if msg.err != nil {
			m.fail(msg.err)
			return m, nil
		}
		m.state.Report = msg.report
		m.state.Message = ""
		return m, nil

	case saveDoneMsg:
		if msg.err != nil {
			m.fail(msg.err)
			return m, nil
		}
		m.info("Result saved to: " + msg.path)
		return m, nil

	case tea.KeyMsg:
		if m.prompt != promptNone {
			return m.updatePrompt(msg)
		}
		return m.updateKeys(msg)
	}

	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	return m, cmd
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit

	case tea.KeyCtrlD:
		m.state.Report = ""
		return m, m.detect(m.editor.Value())

	case tea.KeyCtrlL:
		m.clear()
		return m, nil

	case tea.KeyCtrlP:
		return m, m.performance()

	case tea.KeyCtrlS:
		if strings.TrimSpace(m.editor.Value()) == "" || !m.state.HasResult {
			m.warn("Please enter text and predict before saving!")
			return m, nil
		}
		return m.openPrompt(promptSave, "Save prediction to (empty cancels):")

	case tea.KeyCtrlB:
		return m.openPrompt(promptBatch, "CSV file to classify (empty cancels):")

	case tea.KeyCtrlT:
		m.state.Theme = Toggle(m.state.Theme)
		return m, nil

	case tea.KeyEsc:
		if m.state.Report != "" {
			m.state.Report = ""
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	return m, cmd
}

func (m Model) openPrompt(kind promptKind, text string) (tea.Model, tea.Cmd) {
	m.prompt = kind
	m.state.Prompt = text
	m.path.Reset()
	m.editor.Blur()
	m.path.Focus()
	return m, nil
}

func (m Model) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter, tea.KeyEsc:
		kind := m.prompt
		value := strings.TrimSpace(m.path.Value())
		if msg.Type == tea.KeyEsc {
			value = ""
		}
		m.prompt = promptNone
		m.state.Prompt = ""
		m.path.Blur()
		m.editor.Focus()

		switch kind {
		case promptSave:
			return m, m.save(m.resultText, m.state.Result, value)
		case promptBatch:
			if value == "" {
				return m, nil
			}
			return m, m.batch(value)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.path, cmd = m.path.Update(msg)
	return m, cmd
}

func (m Model) detect(text string) tea.Cmd {
	ctx, d := m.ctx, m.detector
	return func() tea.Msg {
		label, err := d.Detect(ctx, text)
		return detectDoneMsg{label: label, err: err}
	}
}

func (m Model) batch(path string) tea.Cmd {
	ctx, d := m.ctx, m.detector
	return func() tea.Msg {
		out, err := d.Batch(ctx, path)
		return batchDoneMsg{output: out, err: err}
	}
}

func (m Model) performance() tea.Cmd {
	ctx, d := m.ctx, m.detector
	return func() tea.Msg {
		metrics, err := d.Performance(ctx)
		if err != nil {
			return performanceMsg{err: err}
		}
		return performanceMsg{report: classifier.FormatPerformance(metrics)}
	}
}

func (m Model) save(text string, label classifier.Label, destination string) tea.Cmd {
	d := m.detector
	return func() tea.Msg {
		err := d.Save(text, label, destination)
		return saveDoneMsg{path: export.Destination(destination), err: err}
	}
}

func (m *Model) clear() {
	m.editor.Reset()
	m.state.HasResult = false
	m.state.Report = ""
	m.state.Message = ""
	m.resultText = ""
	if err := m.detector.Reset(); err != nil {
		m.fail(err)
		return
	}
	m.state.Progress = progress.Idle()
}

func (m *Model) fail(err error) {
	if apperr.IsUserCancel(err) {
		m.info(apperr.Message(err))
		return
	}
	m.state.Message = apperr.Message(err)
	m.state.IsError = true
}

func (m *Model) warn(text string) {
	m.state.Message = "⚠️ " + text
	m.state.IsError = true
}

func (m *Model) info(text string) {
	m.state.Message = text
	m.state.IsError = false
}
