package ui

import (
	"fmt"
	"strings"

	bar "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"spamdetect/classifier"
	"spamdetect/progress"
)

const (
	title       = "Email Spam Detector"
	inputPrompt = "Enter email text below:"
	readyStatus = "Ready..."
	barWidth    = 40
)

// UiState is everything the screen shows. Render is a pure function of it.
type UiState struct {
	Input string
	// Editor, when set, is the live editor view shown instead of Input.
	Editor string

	Progress  progress.State
	HasResult bool
	Result    classifier.Label

	Message string
	IsError bool

	// Prompt is non-empty while a path is being asked for.
	Prompt     string
	PromptView string

	// Report is the performance summary, shown until dismissed.
	Report string

	Theme  ThemeName
	Footer string
	Width  int
}

// KeyHelp lists the bindings shown at the bottom of the screen.
var KeyHelp = []string{
	"ctrl+d detect",
	"ctrl+l clear",
	"ctrl+p performance",
	"ctrl+s save",
	"ctrl+b batch",
	"ctrl+t theme",
	"ctrl+c quit",
}

// Render draws state with theme. It reads nothing but its arguments.
func Render(state UiState, theme Theme) string {
	base := lipgloss.NewStyle().Foreground(theme.Foreground)
	if state.Width > 0 {
		base = base.Width(state.Width)
	}
	heading := base.Bold(true).Foreground(theme.Button).Align(lipgloss.Center)
	label := base.Bold(true)
	muted := base.Foreground(theme.Muted)
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.Button).
		Padding(0, 1)

	sections := []string{
		heading.Render(title),
		label.Render(inputPrompt),
	}

	editor := state.Editor
	if editor == "" {
		editor = state.Input
	}
	sections = append(sections, box.Render(editor))

	if state.HasResult {
		sections = append(sections, resultLine(state.Result, theme))
	}

	sections = append(sections,
		label.Render(statusLine(state.Progress)),
		progressBar(state.Progress, theme),
	)

	if state.Report != "" {
		sections = append(sections, box.Render(state.Report))
	}
	if state.Prompt != "" {
		sections = append(sections, label.Render(state.Prompt), state.PromptView)
	}
	if state.Message != "" {
		color := theme.Foreground
		if state.IsError {
			color = theme.Warning
		}
		sections = append(sections, base.Foreground(color).Render(state.Message))
	}

	sections = append(sections, muted.Render(strings.Join(KeyHelp, " · ")))
	if state.Footer != "" {
		sections = append(sections, muted.Render(state.Footer))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func resultLine(label classifier.Label, theme Theme) string {
	style := lipgloss.NewStyle().Bold(true)
	if label == classifier.Spam {
		return style.Foreground(theme.Spam).Render("🚨 Prediction: " + label.Display())
	}
	return style.Foreground(theme.Ham).Render("✅ Prediction: " + label.Display())
}

func statusLine(s progress.State) string {
	switch {
	case s.Status == "" || (s.Status == progress.StatusReady && s.Maximum == 0):
		return readyStatus
	case s.Done:
		return "✅ " + s.Status
	case s.Maximum > 0 && s.Current < s.Maximum && s.Status == progress.StatusAnalyze:
		return fmt.Sprintf("%s %d%%", s.Status, s.Current*100/s.Maximum)
	}
	return s.Status
}

func progressBar(s progress.State, theme Theme) string {
	b := bar.New(bar.WithSolidFill(string(theme.Button)), bar.WithWidth(barWidth), bar.WithoutPercentage())
	return b.ViewAs(s.Fraction())
}
