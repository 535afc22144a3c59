package tui

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/x/ansi"
	"github.com/mark3labs/reposync/internal/provisioning"
	"github.com/mark3labs/reposync/internal/session"
	"github.com/mark3labs/reposync/internal/testfixtures"
	"github.com/mark3labs/reposync/internal/wizard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	keyEnter = tea.KeyPressMsg{Code: tea.KeyEnter}
	keyEsc   = tea.KeyPressMsg{Code: tea.KeyEscape}
	keyTab   = tea.KeyPressMsg{Code: tea.KeyTab}
	keyRight = tea.KeyPressMsg{Code: tea.KeyRight}
	keyNext  = tea.KeyPressMsg{Code: 'n', Mod: tea.ModCtrl}
	keyQuit  = tea.KeyPressMsg{Code: 'c', Mod: tea.ModCtrl}
)

func plain(s string) string {
	return ansi.Strip(s)
}

func runeKey(r rune) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: r, Text: string(r)}
}

type testModel struct {
	*Model
	api  *testfixtures.MockProvisioning
	form *wizard.MemoryForm
	nav  *testfixtures.RecordingNavigator
}

func newTestModel(t *testing.T, opts wizard.Options, data wizard.FormData) *testModel {
	t.Helper()
	if opts.Provider == "" {
		opts.Provider = provisioning.TypeGitHub
	}

	api := testfixtures.NewMockProvisioning()
	form := wizard.NewMemoryForm(data)
	nav := testfixtures.NewRecordingNavigator()
	engine, err := wizard.New(wizard.Deps{
		Repositories: api,
		Jobs:         api,
		Form:         form,
		Navigator:    nav,
	}, opts)
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	m := NewModel(context.Background(), engine, form, opts.Provider)
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return &testModel{Model: m, api: api, form: form, nav: nav}
}

func filledForm() wizard.FormData {
	data := wizard.DefaultFormData(provisioning.TypeGitHub)
	data.Repository.URL = "https://github.com/grafana/dashboards"
	data.Repository.Token = "ghp_secret"
	return data
}

// press sends a key and, when it triggered an engine call, runs the call and
// feeds the result back. It returns tea.QuitMsg when the wizard exited.
func (m *testModel) press(t *testing.T, key tea.KeyPressMsg) tea.Msg {
	t.Helper()
	_, cmd := m.Update(key)
	if cmd == nil || !m.busy {
		return nil
	}
	done, ok := cmd().(ActionDoneMsg)
	require.True(t, ok)
	_, next := m.Update(done)
	if m.snap.Exited {
		require.NotNil(t, next)
		return next()
	}
	return nil
}

func TestModel_RendersFirstStep(t *testing.T) {
	m := newTestModel(t, wizard.Options{}, filledForm())

	out := plain(m.Render())
	assert.Contains(t, out, "Step 1 of 5")
	assert.Contains(t, out, "Choose how to connect to your repository")
	assert.Contains(t, out, "Authentication")
	assert.Contains(t, out, "Connect →")

	assert.True(t, m.View().AltScreen)
}

func TestModel_AuthChoiceShowsConnectionField(t *testing.T) {
	m := newTestModel(t, wizard.Options{}, filledForm())
	assert.NotContains(t, plain(m.Render()), "App connection")

	m.press(t, keyRight)

	assert.Equal(t, wizard.AuthApp, m.form.Values().AuthMode)
	assert.Contains(t, plain(m.Render()), "App connection")
	assert.Equal(t, wizard.FieldAuthMode, m.fields.Focused(), "focus survives the rebuild")
}

func TestModel_EnterWalksFieldsThenSubmits(t *testing.T) {
	m := newTestModel(t, wizard.Options{}, filledForm())

	m.press(t, keyEnter)
	require.Equal(t, wizard.StepConnection, m.snap.ActiveStep)
	assert.Equal(t, wizard.FieldURL, m.fields.Focused())

	for m.fields.Focused() != wizard.FieldToken {
		m.press(t, keyEnter)
	}
	assert.Equal(t, 0, m.api.SaveCalls())

	m.press(t, keyEnter)
	assert.Equal(t, 1, m.api.SaveCalls())
	assert.Equal(t, wizard.StepBootstrap, m.snap.ActiveStep)
	assert.Equal(t, "repo-1", m.snap.RepositoryName)
	assert.Equal(t, []wizard.StepID{wizard.StepAuthType, wizard.StepConnection}, m.snap.Completed)
	assert.Contains(t, plain(m.Render()), "Step 3 of 5")
}

func TestModel_TypingWritesForm(t *testing.T) {
	data := filledForm()
	data.Repository.URL = ""
	m := newTestModel(t, wizard.Options{}, data)
	m.press(t, keyEnter)

	for _, r := range "https://gitlab.com/a/b" {
		m.press(t, runeKey(r))
	}
	assert.Equal(t, "https://gitlab.com/a/b", m.form.Values().Repository.URL)
}

func TestModel_ValidationFailureShowsInlineErrors(t *testing.T) {
	data := filledForm()
	data.Repository.URL = ""
	m := newTestModel(t, wizard.Options{}, data)
	m.press(t, keyEnter)

	m.press(t, keyNext)

	out := plain(m.Render())
	assert.Contains(t, out, "Repository URL is required")
	assert.Contains(t, out, "Fix the highlighted fields")
	assert.Equal(t, wizard.StepConnection, m.snap.ActiveStep)
	assert.Equal(t, 0, m.api.SaveCalls())
}

func TestModel_ServerFailureShowsBannerOnly(t *testing.T) {
	m := newTestModel(t, wizard.Options{}, filledForm())
	m.api.Set(func(api *testfixtures.MockProvisioning) {
		api.SaveError = errors.New("dial tcp: connection refused")
	})
	m.press(t, keyEnter)

	m.press(t, keyNext)

	assert.Equal(t, wizard.StatusError, m.snap.Status.Status())
	assert.Empty(t, m.notice)
	assert.Contains(t, plain(m.Render()), "Repository connection failed")
}

func TestModel_CancelConfirmation(t *testing.T) {
	m := newTestModel(t, wizard.Options{ForceCancel: true}, filledForm())
	m.press(t, keyEnter)
	m.press(t, keyNext)
	require.Equal(t, wizard.StepBootstrap, m.snap.ActiveStep)

	m.press(t, keyEsc)
	require.True(t, m.dialog.IsVisible())
	assert.Contains(t, plain(m.dialog.View()), `"repo-1"`)

	m.press(t, runeKey('n'))
	assert.False(t, m.dialog.IsVisible())
	assert.Empty(t, m.api.Deleted())

	m.press(t, keyEsc)
	msg := m.press(t, runeKey('y'))
	assert.IsType(t, tea.QuitMsg{}, msg)
	assert.Equal(t, []string{"repo-1"}, m.api.Deleted())
	require.Len(t, m.nav.Results(), 1)
	assert.Equal(t, wizard.OutcomeCancelled, m.nav.Results()[0].Outcome)
	assert.False(t, m.Interrupted())
}

func TestModel_CancelBeforeRepositoryExitsImmediately(t *testing.T) {
	m := newTestModel(t, wizard.Options{ForceCancel: true}, filledForm())

	msg := m.press(t, keyEsc)

	assert.IsType(t, tea.QuitMsg{}, msg)
	assert.False(t, m.dialog.IsVisible())
	assert.Empty(t, m.api.Deleted())
}

func TestModel_SynchronizeShowsJob(t *testing.T) {
	m := newTestModel(t, wizard.Options{}, filledForm())
	m.press(t, keyEnter)
	m.press(t, keyNext)
	m.press(t, keyNext)
	require.Equal(t, wizard.StepSynchronize, m.snap.ActiveStep)

	require.Eventually(t, func() bool {
		return m.engine.Snapshot().Status.Status() == wizard.StatusSuccess
	}, 2*time.Second, 5*time.Millisecond)
	m.Update(ChangedMsg{})

	out := plain(m.Render())
	assert.Contains(t, out, "pull job")
	assert.Contains(t, out, "Synchronization finished")
	assert.False(t, m.snap.Buttons.NextDisabled)
}

func TestModel_SynchronizeRetryAfterFailure(t *testing.T) {
	m := newTestModel(t, wizard.Options{}, filledForm())
	m.api.Set(func(api *testfixtures.MockProvisioning) {
		api.JobScript = []provisioning.JobState{provisioning.JobError}
		api.JobMessage = "clone failed"
	})
	m.press(t, keyEnter)
	m.press(t, keyNext)
	m.press(t, keyNext)

	require.Eventually(t, func() bool {
		return m.engine.Snapshot().Status.Status() == wizard.StatusError
	}, 2*time.Second, 5*time.Millisecond)
	m.engine.Wait()
	m.Update(ChangedMsg{})
	assert.Contains(t, plain(m.Render()), "ctrl+r")

	m.api.Set(func(api *testfixtures.MockProvisioning) { api.JobScript = nil })
	m.press(t, tea.KeyPressMsg{Code: 'r', Mod: tea.ModCtrl})

	require.Eventually(t, func() bool {
		return m.engine.Snapshot().Status.Status() == wizard.StatusSuccess
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, m.api.CreateJobCalls())
}

func TestModel_PreviousIntoSynchronizeRestartsJob(t *testing.T) {
	m := newTestModel(t, wizard.Options{}, filledForm())
	m.press(t, keyEnter)
	m.press(t, keyNext)
	m.press(t, keyNext)
	require.Eventually(t, func() bool {
		return m.engine.Snapshot().Status.Status() == wizard.StatusSuccess
	}, 2*time.Second, 5*time.Millisecond)
	m.engine.Wait()
	m.Update(ChangedMsg{})
	m.press(t, keyNext)
	require.Equal(t, wizard.StepFinish, m.snap.ActiveStep)

	m.press(t, keyEsc)

	require.Equal(t, wizard.StepSynchronize, m.snap.ActiveStep)
	require.Eventually(t, func() bool {
		return m.engine.Snapshot().Status.Status() == wizard.StatusSuccess
	}, 2*time.Second, 5*time.Millisecond)
	m.Update(ChangedMsg{})
	assert.False(t, m.snap.Buttons.NextDisabled)
	assert.Equal(t, 2, m.api.CreateJobCalls())
}

func TestModel_RetryStartsJobWhenNoneExists(t *testing.T) {
	m := newTestModel(t, wizard.Options{}, filledForm())
	require.NoError(t, m.engine.Restore(&session.State{ActiveStep: "synchronize", Repository: "r1"}))
	m.Update(ChangedMsg{})
	require.Nil(t, m.snap.Job)
	assert.Contains(t, plain(m.Render()), "ctrl+r")

	m.press(t, tea.KeyPressMsg{Code: 'r', Mod: tea.ModCtrl})

	require.Eventually(t, func() bool {
		return m.engine.Snapshot().Status.Status() == wizard.StatusSuccess
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, m.api.CreateJobCalls())
}

func TestModel_CtrlCInterrupts(t *testing.T) {
	m := newTestModel(t, wizard.Options{}, filledForm())

	_, cmd := m.Update(keyQuit)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.True(t, m.Interrupted())
	assert.Empty(t, m.nav.Results(), "quitting is not an outcome")
}

func TestModel_TabMovesFocus(t *testing.T) {
	m := newTestModel(t, wizard.Options{}, filledForm())
	m.press(t, keyEnter)

	m.press(t, keyTab)
	assert.Equal(t, wizard.FieldBranch, m.fields.Focused())
	m.press(t, tea.KeyPressMsg{Code: tea.KeyTab, Mod: tea.ModShift})
	assert.Equal(t, wizard.FieldURL, m.fields.Focused())
	m.press(t, tea.KeyPressMsg{Code: tea.KeyUp})
	assert.Equal(t, wizard.FieldURL, m.fields.Focused(), "read-only provider field is skipped")
}

func TestNoticeFor(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{wizard.ErrNotReady, ""},
		{wizard.ErrSubmissionInProgress, ""},
		{wizard.ErrValidation, "Fix the highlighted fields to continue."},
		{fmt.Errorf("wrap: %w", wizard.ErrNoRepositoryName), "The repository has not been created yet; go back and connect first."},
		{errors.New("delete repository r: boom"), "delete repository r: boom"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, noticeFor(tt.err))
	}
}
