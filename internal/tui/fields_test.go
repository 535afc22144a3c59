package tui

import (
	"testing"

	tea "charm.land/bubbletea/v2"
	"github.com/mark3labs/reposync/internal/provisioning"
	"github.com/mark3labs/reposync/internal/wizard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldSet_SkipsUnknownFieldsAndFocusesFirstEditable(t *testing.T) {
	form := wizard.NewMemoryForm(wizard.DefaultFormData(provisioning.TypeGitHub))
	fs := newFieldSet(form, []wizard.FieldPath{wizard.FieldType, "no.such.field", wizard.FieldURL}, 60)

	assert.Equal(t, 2, fs.Len())
	assert.Equal(t, wizard.FieldURL, fs.Focused())
	assert.True(t, fs.AtLast())
}

func TestFieldSet_Toggle(t *testing.T) {
	form := wizard.NewMemoryForm(wizard.DefaultFormData(provisioning.TypeGitHub))
	fs := newFieldSet(form, []wizard.FieldPath{wizard.FieldReadOnly, wizard.FieldMigrateHistory}, 60)
	fs.Focus()

	consumed, _ := fs.Update(tea.KeyPressMsg{Code: ' ', Text: " "})
	require.True(t, consumed)
	assert.True(t, form.Values().Repository.ReadOnly)
	assert.Contains(t, plain(fs.View()), "[x] enabled")

	ok, _ := fs.Move(1)
	require.True(t, ok)
	fs.Update(tea.KeyPressMsg{Code: tea.KeyLeft})
	assert.False(t, form.Values().Migrate.History)

	ok, _ = fs.Move(1)
	assert.False(t, ok, "focus does not leave the set")
	assert.Equal(t, wizard.FieldMigrateHistory, fs.Focused())
}

func TestFieldSet_ChoiceCycles(t *testing.T) {
	form := wizard.NewMemoryForm(wizard.DefaultFormData(provisioning.TypeGitHub))
	fs := newFieldSet(form, []wizard.FieldPath{wizard.FieldSyncTarget}, 60)

	fs.Update(tea.KeyPressMsg{Code: tea.KeyRight})
	assert.Equal(t, provisioning.TargetInstance, form.Values().Repository.SyncTarget)
	fs.Update(tea.KeyPressMsg{Code: tea.KeyRight})
	assert.Equal(t, provisioning.TargetFolder, form.Values().Repository.SyncTarget)
	fs.Update(tea.KeyPressMsg{Code: tea.KeyLeft})
	assert.Equal(t, provisioning.TargetInstance, form.Values().Repository.SyncTarget)

	consumed, _ := fs.Update(tea.KeyPressMsg{Code: 'x', Text: "x"})
	assert.False(t, consumed)
}

func TestFieldSet_SecretIsMasked(t *testing.T) {
	data := wizard.DefaultFormData(provisioning.TypeGitHub)
	data.Repository.Token = "ghp_secret"
	fs := newFieldSet(wizard.NewMemoryForm(data), []wizard.FieldPath{wizard.FieldToken}, 60)

	assert.NotContains(t, plain(fs.View()), "ghp_secret")
}

func TestFieldSet_TitlePlaceholderFollowsURL(t *testing.T) {
	form := wizard.NewMemoryForm(wizard.DefaultFormData(provisioning.TypeGitHub))
	fs := newFieldSet(form, []wizard.FieldPath{wizard.FieldURL, wizard.FieldTitle}, 60)
	fs.Focus()

	for _, r := range "https://github.com/acme/infra" {
		fs.Update(tea.KeyPressMsg{Code: r, Text: string(r)})
	}

	assert.Equal(t, "acme/infra", fs.editors[1].input.Placeholder)
}

func TestFieldSet_IntervalParsesNumbers(t *testing.T) {
	form := wizard.NewMemoryForm(wizard.DefaultFormData(provisioning.TypeGitHub))
	spec := fieldSpecs[wizard.FieldSyncInterval]

	form.Update(func(d *wizard.FormData) { spec.set(d, " 90 ") })
	assert.Equal(t, int64(90), form.Values().Repository.SyncIntervalSeconds)

	form.Update(func(d *wizard.FormData) { spec.set(d, "soon") })
	assert.Zero(t, form.Values().Repository.SyncIntervalSeconds)
	assert.False(t, form.Trigger([]wizard.FieldPath{wizard.FieldSyncInterval}))
}

func TestFieldSet_ShowsInlineErrors(t *testing.T) {
	form := wizard.NewMemoryForm(wizard.DefaultFormData(provisioning.TypeGitHub))
	form.SetError(wizard.FieldBranch, "no such branch")
	fs := newFieldSet(form, []wizard.FieldPath{wizard.FieldBranch}, 60)

	assert.Contains(t, plain(fs.View()), "no such branch")
}

func TestCycle(t *testing.T) {
	choices := []string{"a", "b", "c"}
	assert.Equal(t, "b", cycle(choices, "a", 1))
	assert.Equal(t, "a", cycle(choices, "c", 1))
	assert.Equal(t, "c", cycle(choices, "a", -1))
	assert.Equal(t, "b", cycle(choices, "unknown", 1))
	assert.Equal(t, "x", cycle(nil, "x", 1))
}
