// Package tui is the interactive driver of the onboarding wizard. It renders
// the engine's snapshot and turns key presses into engine calls issued from
// tea.Cmd functions, so network work never blocks the render loop.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	uv "github.com/charmbracelet/ultraviolet"
	"github.com/mark3labs/reposync/internal/logger"
	"github.com/mark3labs/reposync/internal/provisioning"
	"github.com/mark3labs/reposync/internal/tui/theme"
	"github.com/mark3labs/reposync/internal/wizard"
)

// ChangedMsg is delivered whenever the engine signals a state change.
type ChangedMsg struct{}

// ActionDoneMsg carries the result of an engine call issued by a key press.
type ActionDoneMsg struct {
	Action string
	Err    error
}

// Model is the bubbletea model for the wizard.
type Model struct {
	ctx      context.Context
	engine   *wizard.Engine
	form     *wizard.MemoryForm
	provider provisioning.RepositoryType

	snap       wizard.Snapshot
	fields     *fieldSet
	fieldsKey  string
	fieldsStep wizard.StepID
	spinner    spinner.Model
	dialog     *Dialog
	help       *helpCache

	notice      string // engine errors the status banner does not show
	busy        bool   // an engine call is in flight
	interrupted bool
	width       int
	height      int
}

// NewModel creates a model driving engine. form must be the engine's form.
func NewModel(ctx context.Context, engine *wizard.Engine, form *wizard.MemoryForm, provider provisioning.RepositoryType) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(theme.Current().Primary))

	m := &Model{
		ctx:      ctx,
		engine:   engine,
		form:     form,
		provider: provider,
		spinner:  s,
		dialog:   NewDialog(),
		help:     newHelpCache(provider == provisioning.TypeLocal),
		width:    80,
		height:   24,
	}
	m.refresh()
	return m
}

// Run starts a bubbletea program for m and blocks until it quits.
func Run(m *Model) error {
	if _, err := tea.NewProgram(m).Run(); err != nil {
		return fmt.Errorf("wizard UI failed: %w", err)
	}
	return nil
}

// Interrupted reports whether the user quit with ctrl+c before the wizard
// reached an outcome. The journaled session can be resumed.
func (m *Model) Interrupted() bool {
	return m.interrupted
}

// Init starts listening for engine changes.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.waitForChange(), m.fields.Focus(), m.spinner.Tick)
}

func (m *Model) waitForChange() tea.Cmd {
	ch := m.engine.Changes()
	ctx := m.ctx
	return func() tea.Msg {
		select {
		case <-ch:
			return ChangedMsg{}
		case <-ctx.Done():
			return nil
		}
	}
}

// run issues fn as a command and reports its result as ActionDoneMsg.
func (m *Model) run(action string, fn func(ctx context.Context) error) tea.Cmd {
	m.busy = true
	m.notice = ""
	ctx := m.ctx
	return func() tea.Msg {
		return ActionDoneMsg{Action: action, Err: fn(ctx)}
	}
}

// Update handles messages for the wizard.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.fieldsKey = ""
		m.refresh()
		return m, nil

	case ChangedMsg:
		m.refresh()
		if m.snap.Exited {
			return m, tea.Quit
		}
		return m, m.waitForChange()

	case ActionDoneMsg:
		m.busy = false
		m.notice = noticeFor(msg.Err)
		if msg.Err != nil {
			logger.Debug("%s: %v", msg.Action, msg.Err)
		}
		m.refresh()
		if m.snap.Exited {
			return m, tea.Quit
		}
		// Failed submissions and jobs are already shown by the status banner.
		if msg.Action != "cancel" && m.snap.Status.Status() == wizard.StatusError {
			m.notice = ""
		}
		return m, m.fields.Focus()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyPressMsg:
		return m, m.handleKey(msg)

	case tea.PasteMsg:
		if m.busy || m.snap.ShowCancelConfirmation {
			return m, nil
		}
		m.notice = ""
		return m, m.fields.Paste(msg.Content)
	}

	return m, m.fields.Forward(msg)
}

func (m *Model) handleKey(msg tea.KeyPressMsg) tea.Cmd {
	key := msg.String()
	if key == "ctrl+c" {
		m.interrupted = true
		return tea.Quit
	}

	if m.snap.ShowCancelConfirmation {
		switch key {
		case "y", "enter":
			return m.run("cancel", m.engine.ConfirmCancel)
		case "n", "esc":
			m.engine.DismissCancel()
			m.refresh()
		}
		return nil
	}

	if m.busy {
		return nil
	}

	switch key {
	case "esc", "ctrl+p":
		return m.run("previous", m.engine.Previous)
	case "ctrl+n":
		return m.run("next", m.engine.Next)
	case "ctrl+r":
		if m.canRetry() {
			return m.run("retry", m.engine.StartSynchronize)
		}
		return nil
	case "tab", "down":
		_, cmd := m.fields.Move(1)
		return cmd
	case "shift+tab", "up":
		_, cmd := m.fields.Move(-1)
		return cmd
	case "enter":
		if m.fields.Len() == 0 || m.fields.AtLast() {
			return m.run("next", m.engine.Next)
		}
		_, cmd := m.fields.Move(1)
		return cmd
	}

	_, cmd := m.fields.Update(msg)
	m.notice = ""
	m.syncFields()
	return cmd
}

// refresh re-reads the engine snapshot and rebuilds editors if the visible
// field set changed.
func (m *Model) refresh() {
	m.snap = m.engine.Snapshot()
	if m.snap.ShowCancelConfirmation {
		m.dialog.Show("Cancel onboarding?",
			fmt.Sprintf("Repository %q will be deleted.", m.snap.RepositoryName))
	} else {
		m.dialog.Hide()
	}
	m.syncFields()
}

// visibleFields is the editor list for the active step. On the first step it
// follows the auth mode being chosen rather than the one last submitted.
func (m *Model) visibleFields() []wizard.FieldPath {
	if m.snap.ActiveStep == wizard.StepAuthType {
		auth := m.form.Values().AuthMode
		return wizard.GetSteps(m.provider, auth)[0].VisibleFields
	}
	idx := wizard.IndexOf(m.snap.Steps, m.snap.ActiveStep)
	if idx < 0 {
		return nil
	}
	return m.snap.Steps[idx].VisibleFields
}

func (m *Model) syncFields() {
	fields := m.visibleFields()
	parts := make([]string, 0, len(fields)+1)
	parts = append(parts, string(m.snap.ActiveStep))
	for _, f := range fields {
		parts = append(parts, string(f))
	}
	key := strings.Join(parts, "|")
	if m.fields != nil && key == m.fieldsKey {
		return
	}

	var keep wizard.FieldPath
	if m.fields != nil && m.fieldsStep == m.snap.ActiveStep {
		keep = m.fields.Focused()
	}

	m.fields = newFieldSet(m.form, fields, m.contentWidth())
	m.fieldsKey = key
	m.fieldsStep = m.snap.ActiveStep
	for i, ed := range m.fields.editors {
		if ed.path == keep {
			m.fields.focus = i
		}
	}
	m.fields.Focus()
}

func (m *Model) contentWidth() int {
	w := m.width - 10
	if w < 50 {
		w = 50
	}
	if w > 96 {
		w = 96
	}
	return w
}

// noticeFor maps engine errors that leave no trace in the status banner.
func noticeFor(err error) string {
	switch {
	case err == nil,
		errors.Is(err, wizard.ErrNotReady),
		errors.Is(err, wizard.ErrSubmissionInProgress):
		return ""
	case errors.Is(err, wizard.ErrValidation):
		return "Fix the highlighted fields to continue."
	case errors.Is(err, wizard.ErrNoRepositoryName):
		return "The repository has not been created yet; go back and connect first."
	}
	return err.Error()
}

// View renders the wizard UI.
func (m *Model) View() tea.View {
	var view tea.View
	view.AltScreen = true

	canvas := uv.NewScreenBuffer(m.width, m.height)
	area := uv.Rectangle{
		Min: uv.Position{X: 0, Y: 0},
		Max: uv.Position{X: m.width, Y: m.height},
	}
	uv.NewStyledString(m.Render()).Draw(canvas, area)
	m.dialog.Draw(canvas, area)

	view.Content = lipgloss.NewLayer(canvas.Render())
	return view
}

// Render returns the wizard screen without the confirmation overlay.
func (m *Model) Render() string {
	s := theme.Current().S()
	width := m.contentWidth()

	idx := wizard.IndexOf(m.snap.Steps, m.snap.ActiveStep)
	step := m.snap.Steps[idx]

	sections := []string{
		s.Title.Render(fmt.Sprintf("Connect repository · Step %d of %d", idx+1, len(m.snap.Steps))),
		m.renderProgress(),
		"",
		s.StepHeading.Render(step.Title),
	}
	if help := m.help.get(step.ID, width); help != "" {
		sections = append(sections, help)
	}
	sections = append(sections, "")

	if step.ID == wizard.StepSynchronize {
		sections = append(sections, m.renderJob(width))
	} else if m.fields.Len() > 0 {
		sections = append(sections, m.fields.View())
	}

	if banner := m.renderBanner(); banner != "" {
		sections = append(sections, "", banner)
	}

	bar := NewButtonBar(WizardButtons(m.snap.Buttons))
	bar.SetWidth(width)
	sections = append(sections, "", bar.Render(), "", m.renderHints())

	modal := s.Modal.Width(width + 6).Render(strings.Join(sections, "\n"))
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal)
}

// renderProgress renders the step breadcrumb.
func (m *Model) renderProgress() string {
	s := theme.Current().S()
	completed := make(map[wizard.StepID]bool, len(m.snap.Completed))
	for _, id := range m.snap.Completed {
		completed[id] = true
	}

	parts := make([]string, 0, len(m.snap.Steps))
	for _, step := range m.snap.Steps {
		switch {
		case step.ID == m.snap.ActiveStep:
			parts = append(parts, s.LabelFocused.Render("● "+step.DisplayName))
		case completed[step.ID]:
			parts = append(parts, s.BannerSuccess.Render("✓ "+step.DisplayName))
		case step.ID == wizard.StepSynchronize && m.snap.CanSkipSynchronize:
			parts = append(parts, s.Muted.Render("– "+step.DisplayName))
		default:
			parts = append(parts, s.Muted.Render("○ "+step.DisplayName))
		}
	}
	return strings.Join(parts, s.Muted.Render("  "))
}

func (m *Model) renderJob(width int) string {
	s := theme.Current().S()
	job := m.snap.Job
	if job == nil {
		if m.snap.Status.Status() == wizard.StatusRunning {
			return m.spinner.View() + " " + s.Value.Render("Creating synchronization job...")
		}
		return s.Muted.Render("No job is running.")
	}

	lines := []string{
		s.Label.Render(fmt.Sprintf("%s job %s", job.Action, job.Name)),
		progressBar(job.Progress, width-12) + " " + s.Value.Render(fmt.Sprintf("%3.0f%%", job.Progress)),
	}
	state := string(job.State)
	if job.Message != "" {
		state += " · " + job.Message
	}
	if !job.State.Finished() {
		lines = append(lines, m.spinner.View()+" "+s.Value.Render(state))
	} else {
		lines = append(lines, s.Value.Render(state))
	}
	for _, e := range job.Errors {
		lines = append(lines, s.FieldError.Render("✗ "+e))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderBanner() string {
	s := theme.Current().S()

	if m.snap.Cancelling {
		return m.spinner.View() + " " + s.Value.Render("Deleting repository...")
	}

	info := m.snap.Status
	var out []string
	switch info.Status() {
	case wizard.StatusRunning:
		if m.snap.ActiveStep != wizard.StepSynchronize {
			out = append(out, m.spinner.View()+" "+s.Value.Render("Saving..."))
		}
	case wizard.StatusError:
		payload, _ := info.Error()
		var body []string
		if payload.Title != "" {
			body = append(body, lipgloss.NewStyle().Bold(true).Render(payload.Title))
		}
		body = append(body, payload.Message...)
		out = append(out, s.BannerError.Render(strings.Join(body, "\n")))
	case wizard.StatusWarning:
		notes := info.Notes()
		if len(notes) == 0 {
			notes = []string{"Finished with warnings."}
		}
		out = append(out, s.BannerWarning.Render(strings.Join(notes, "\n")))
	case wizard.StatusSuccess:
		if m.snap.ActiveStep == wizard.StepSynchronize {
			out = append(out, s.BannerSuccess.Render("✓ Synchronization finished"))
		}
	}

	if m.snap.CreatingBackgroundJob {
		out = append(out, m.spinner.View()+" "+s.Muted.Render("Starting background synchronization..."))
	}
	if m.notice != "" {
		out = append(out, s.BannerWarning.Render(m.notice))
	}
	return strings.Join(out, "\n")
}

// canRetry reports whether ctrl+r can (re)start the sync job: after a failure,
// or when synchronize is active with no job at all.
func (m *Model) canRetry() bool {
	if m.snap.ActiveStep != wizard.StepSynchronize {
		return false
	}
	switch m.snap.Status.Status() {
	case wizard.StatusError:
		return true
	case wizard.StatusIdle:
		return m.snap.Job == nil
	}
	return false
}

func (m *Model) renderHints() string {
	if m.snap.ShowCancelConfirmation {
		return renderHintBar("y", "delete and exit", "n", "keep going")
	}
	pairs := []string{"enter", "continue", "tab", "next field", "esc", strings.ToLower(m.snap.Buttons.PreviousLabel)}
	if m.canRetry() {
		pairs = append(pairs, "ctrl+r", "retry")
	}
	pairs = append(pairs, "ctrl+c", "quit")
	return renderHintBar(pairs...)
}
