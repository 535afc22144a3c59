package tui

import (
	"strconv"
	"strings"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/mark3labs/reposync/internal/provisioning"
	"github.com/mark3labs/reposync/internal/tui/theme"
	"github.com/mark3labs/reposync/internal/wizard"
)

type fieldKind int

const (
	kindText fieldKind = iota
	kindSecret
	kindToggle
	kindChoice
	kindReadOnly
)

// fieldSpec binds one form path to an editor.
type fieldSpec struct {
	label       string
	kind        fieldKind
	choices     []string
	placeholder func(wizard.FormData) string
	get         func(wizard.FormData) string
	set         func(*wizard.FormData, string)
}

func boolField(label string, get func(wizard.FormData) bool, set func(*wizard.FormData, bool)) fieldSpec {
	return fieldSpec{
		label: label,
		kind:  kindToggle,
		get:   func(d wizard.FormData) string { return strconv.FormatBool(get(d)) },
		set: func(d *wizard.FormData, v string) {
			b, _ := strconv.ParseBool(v)
			set(d, b)
		},
	}
}

var fieldSpecs = map[wizard.FieldPath]fieldSpec{
	wizard.FieldAuthMode: {
		label:   "Authentication",
		kind:    kindChoice,
		choices: []string{string(wizard.AuthPAT), string(wizard.AuthApp)},
		get:     func(d wizard.FormData) string { return string(d.AuthMode) },
		set:     func(d *wizard.FormData, v string) { d.AuthMode = wizard.AuthMode(v) },
	},
	wizard.FieldConnection: {
		label: "App connection",
		get:   func(d wizard.FormData) string { return d.Repository.Connection },
		set:   func(d *wizard.FormData, v string) { d.Repository.Connection = v },
	},
	wizard.FieldType: {
		label: "Provider",
		kind:  kindReadOnly,
		get:   func(d wizard.FormData) string { return string(d.Repository.Type) },
	},
	wizard.FieldURL: {
		label:       "Repository URL",
		placeholder: func(wizard.FormData) string { return "https://github.com/owner/repo" },
		get:         func(d wizard.FormData) string { return d.Repository.URL },
		set:         func(d *wizard.FormData, v string) { d.Repository.URL = v },
	},
	wizard.FieldBranch: {
		label: "Branch",
		get:   func(d wizard.FormData) string { return d.Repository.Branch },
		set:   func(d *wizard.FormData, v string) { d.Repository.Branch = v },
	},
	wizard.FieldRepoPath: {
		label: "Path",
		placeholder: func(d wizard.FormData) string {
			if d.Repository.Type == provisioning.TypeLocal {
				return "/var/lib/dashboards"
			}
			return "optional sub-directory"
		},
		get: func(d wizard.FormData) string { return d.Repository.Path },
		set: func(d *wizard.FormData, v string) { d.Repository.Path = v },
	},
	wizard.FieldToken: {
		label: "Access token",
		kind:  kindSecret,
		get:   func(d wizard.FormData) string { return d.Repository.Token },
		set:   func(d *wizard.FormData, v string) { d.Repository.Token = v },
	},
	wizard.FieldTitle: {
		label:       "Title",
		placeholder: func(d wizard.FormData) string { return wizard.DefaultTitle(d.Repository) },
		get:         func(d wizard.FormData) string { return d.Repository.Title },
		set:         func(d *wizard.FormData, v string) { d.Repository.Title = v },
	},
	wizard.FieldSyncTarget: {
		label:   "Sync target",
		kind:    kindChoice,
		choices: []string{string(provisioning.TargetFolder), string(provisioning.TargetInstance)},
		get:     func(d wizard.FormData) string { return string(d.Repository.SyncTarget) },
		set:     func(d *wizard.FormData, v string) { d.Repository.SyncTarget = provisioning.SyncTarget(v) },
	},
	wizard.FieldSyncInterval: {
		label: "Sync interval (seconds)",
		get:   func(d wizard.FormData) string { return strconv.FormatInt(d.Repository.SyncIntervalSeconds, 10) },
		set: func(d *wizard.FormData, v string) {
			n, _ := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			d.Repository.SyncIntervalSeconds = n
		},
	},
	wizard.FieldSyncEnabled: boolField("Periodic sync",
		func(d wizard.FormData) bool { return d.Repository.SyncEnabled },
		func(d *wizard.FormData, v bool) { d.Repository.SyncEnabled = v }),
	wizard.FieldReadOnly: boolField("Read only",
		func(d wizard.FormData) bool { return d.Repository.ReadOnly },
		func(d *wizard.FormData, v bool) { d.Repository.ReadOnly = v }),
	wizard.FieldPRWorkflow: boolField("Allow pull requests",
		func(d wizard.FormData) bool { return d.Repository.PRWorkflow },
		func(d *wizard.FormData, v bool) { d.Repository.PRWorkflow = v }),
	wizard.FieldGenerateDashboardPreviews: boolField("Dashboard previews",
		func(d wizard.FormData) bool { return d.Repository.GenerateDashboardPreviews },
		func(d *wizard.FormData, v bool) { d.Repository.GenerateDashboardPreviews = v }),
	wizard.FieldMigrateHistory: boolField("Migrate history",
		func(d wizard.FormData) bool { return d.Migrate.History },
		func(d *wizard.FormData, v bool) { d.Migrate.History = v }),
}

// fieldEditor edits one form path.
type fieldEditor struct {
	path  wizard.FieldPath
	spec  fieldSpec
	input textinput.Model
}

func (e *fieldEditor) editable() bool {
	return e.spec.kind != kindReadOnly
}

func (e *fieldEditor) textual() bool {
	return e.spec.kind == kindText || e.spec.kind == kindSecret
}

// fieldSet is the list of editors for the active step.
type fieldSet struct {
	form    *wizard.MemoryForm
	editors []*fieldEditor
	focus   int
	width   int
}

func newFieldSet(form *wizard.MemoryForm, fields []wizard.FieldPath, width int) *fieldSet {
	data := form.Values()
	fs := &fieldSet{form: form, width: width, focus: -1}

	for _, path := range fields {
		spec, ok := fieldSpecs[path]
		if !ok {
			continue
		}
		ed := &fieldEditor{path: path, spec: spec}
		if ed.textual() {
			ed.input = newTextInput(spec, data, width)
		}
		fs.editors = append(fs.editors, ed)
	}
	for i, ed := range fs.editors {
		if ed.editable() {
			fs.focus = i
			break
		}
	}
	return fs
}

func newTextInput(spec fieldSpec, data wizard.FormData, width int) textinput.Model {
	t := theme.Current()
	input := textinput.New()
	input.Prompt = ""
	if spec.placeholder != nil {
		input.Placeholder = spec.placeholder(data)
	}
	if spec.kind == kindSecret {
		input.EchoMode = textinput.EchoPassword
		input.EchoCharacter = '•'
	}
	input.SetStyles(textinput.Styles{
		Focused: textinput.StyleState{
			Text:        lipgloss.NewStyle().Foreground(lipgloss.Color(t.FgBase)),
			Placeholder: lipgloss.NewStyle().Foreground(lipgloss.Color(t.FgMuted)),
			Prompt:      lipgloss.NewStyle().Foreground(lipgloss.Color(t.Secondary)),
		},
		Blurred: textinput.StyleState{
			Text:        lipgloss.NewStyle().Foreground(lipgloss.Color(t.FgSubtle)),
			Placeholder: lipgloss.NewStyle().Foreground(lipgloss.Color(t.FgMuted)),
			Prompt:      lipgloss.NewStyle().Foreground(lipgloss.Color(t.FgMuted)),
		},
		Cursor: textinput.CursorStyle{
			Color: lipgloss.Color(t.Primary),
			Shape: tea.CursorBar,
			Blink: true,
		},
	})
	input.SetWidth(max(20, width-4))
	input.SetValue(spec.get(data))
	return input
}

// Len returns the number of editors.
func (f *fieldSet) Len() int {
	return len(f.editors)
}

// Focused returns the path of the focused editor, or "".
func (f *fieldSet) Focused() wizard.FieldPath {
	if f.focus < 0 || f.focus >= len(f.editors) {
		return ""
	}
	return f.editors[f.focus].path
}

// Focus focuses the current editor.
func (f *fieldSet) Focus() tea.Cmd {
	return f.setFocus(f.focus)
}

// Blur removes focus from every editor.
func (f *fieldSet) Blur() {
	for _, ed := range f.editors {
		if ed.textual() {
			ed.input.Blur()
		}
	}
}

// Move shifts focus by delta over editable fields. It reports false when
// focus would leave the set.
func (f *fieldSet) Move(delta int) (bool, tea.Cmd) {
	for i := f.focus + delta; i >= 0 && i < len(f.editors); i += delta {
		if f.editors[i].editable() {
			return true, f.setFocus(i)
		}
	}
	return false, nil
}

// AtLast reports whether focus is on the last editable field.
func (f *fieldSet) AtLast() bool {
	for i := f.focus + 1; i < len(f.editors); i++ {
		if f.editors[i].editable() {
			return false
		}
	}
	return true
}

func (f *fieldSet) setFocus(i int) tea.Cmd {
	f.Blur()
	if i < 0 || i >= len(f.editors) {
		return nil
	}
	f.focus = i
	if ed := f.editors[i]; ed.textual() {
		return ed.input.Focus()
	}
	return nil
}

// Update routes a key to the focused editor and writes the result to the
// form. It reports whether the key was consumed.
func (f *fieldSet) Update(msg tea.KeyPressMsg) (bool, tea.Cmd) {
	if f.focus < 0 || f.focus >= len(f.editors) {
		return false, nil
	}
	ed := f.editors[f.focus]

	switch ed.spec.kind {
	case kindToggle:
		switch msg.String() {
		case "space", " ", "left", "right", "h", "l":
			cur, _ := strconv.ParseBool(ed.spec.get(f.form.Values()))
			f.write(ed, strconv.FormatBool(!cur))
			return true, nil
		}
		return false, nil
	case kindChoice:
		switch msg.String() {
		case "right", "l", "space", " ":
			f.write(ed, cycle(ed.spec.choices, ed.spec.get(f.form.Values()), 1))
			return true, nil
		case "left", "h":
			f.write(ed, cycle(ed.spec.choices, ed.spec.get(f.form.Values()), -1))
			return true, nil
		}
		return false, nil
	case kindText, kindSecret:
		var cmd tea.Cmd
		before := ed.input.Value()
		ed.input, cmd = ed.input.Update(msg)
		if v := ed.input.Value(); v != before {
			f.write(ed, v)
		}
		return true, cmd
	}
	return false, nil
}

// Forward passes non-key messages (cursor blink) to the focused input.
func (f *fieldSet) Forward(msg tea.Msg) tea.Cmd {
	if f.focus < 0 || f.focus >= len(f.editors) || !f.editors[f.focus].textual() {
		return nil
	}
	var cmd tea.Cmd
	ed := f.editors[f.focus]
	ed.input, cmd = ed.input.Update(msg)
	return cmd
}

func (f *fieldSet) write(ed *fieldEditor, v string) {
	if ed.spec.set == nil {
		return
	}
	f.form.Update(func(d *wizard.FormData) { ed.spec.set(d, v) })
	f.refreshPlaceholders()
}

// refreshPlaceholders recomputes derived placeholders such as the default
// title, which follows the URL.
func (f *fieldSet) refreshPlaceholders() {
	data := f.form.Values()
	for _, ed := range f.editors {
		if ed.textual() && ed.spec.placeholder != nil {
			ed.input.Placeholder = ed.spec.placeholder(data)
		}
	}
}

func cycle(choices []string, cur string, delta int) string {
	if len(choices) == 0 {
		return cur
	}
	idx := 0
	for i, c := range choices {
		if c == cur {
			idx = i
			break
		}
	}
	idx = (idx + delta + len(choices)) % len(choices)
	return choices[idx]
}

// View renders every editor with its inline error.
func (f *fieldSet) View() string {
	s := theme.Current().S()
	data := f.form.Values()

	var lines []string
	for i, ed := range f.editors {
		label := s.Label
		marker := "  "
		if i == f.focus {
			label = s.LabelFocused
			marker = s.LabelFocused.Render("› ")
		}
		lines = append(lines, marker+label.Render(ed.spec.label))

		var value string
		switch ed.spec.kind {
		case kindText, kindSecret:
			value = ed.input.View()
		case kindToggle:
			if v, _ := strconv.ParseBool(ed.spec.get(data)); v {
				value = s.Value.Render("[x] enabled")
			} else {
				value = s.Muted.Render("[ ] disabled")
			}
		case kindChoice:
			cur := ed.spec.get(data)
			opts := make([]string, 0, len(ed.spec.choices))
			for _, c := range ed.spec.choices {
				if c == cur {
					opts = append(opts, s.LabelFocused.Render("("+c+")"))
				} else {
					opts = append(opts, s.Muted.Render(" "+c+" "))
				}
			}
			value = strings.Join(opts, " ")
		case kindReadOnly:
			value = s.Muted.Render(ed.spec.get(data))
		}
		lines = append(lines, "  "+value)

		if msg := f.form.Error(ed.path); msg != "" {
			lines = append(lines, "  "+s.FieldError.Render("✗ "+msg))
		}
	}
	return strings.Join(lines, "\n")
}
