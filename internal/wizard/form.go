package wizard

import (
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/mark3labs/reposync/internal/provisioning"
)

// FormData is a snapshot of everything the user has entered.
type FormData struct {
	AuthMode   AuthMode       `yaml:"auth_mode" json:"authMode"`
	Repository RepositoryForm `yaml:"repository" json:"repository"`
	Migrate    MigrateForm    `yaml:"migrate" json:"migrate"`
}

// RepositoryForm holds the repository sub-form.
type RepositoryForm struct {
	Type                      provisioning.RepositoryType `yaml:"type" json:"type"`
	URL                       string                      `yaml:"url" json:"url"`
	Branch                    string                      `yaml:"branch" json:"branch"`
	Path                      string                      `yaml:"path" json:"path"`
	Token                     string                      `yaml:"token" json:"-"`
	Connection                string                      `yaml:"connection" json:"connection"`
	Title                     string                      `yaml:"title" json:"title"`
	SyncEnabled               bool                        `yaml:"sync_enabled" json:"syncEnabled"`
	SyncTarget                provisioning.SyncTarget     `yaml:"sync_target" json:"syncTarget"`
	SyncIntervalSeconds       int64                       `yaml:"sync_interval_seconds" json:"syncIntervalSeconds"`
	ReadOnly                  bool                        `yaml:"read_only" json:"readOnly"`
	PRWorkflow                bool                        `yaml:"pr_workflow" json:"prWorkflow"`
	GenerateDashboardPreviews bool                        `yaml:"generate_dashboard_previews" json:"generateDashboardPreviews"`
}

// MigrateForm holds the migration options chosen on the bootstrap step.
type MigrateForm struct {
	History bool `yaml:"history" json:"history"`
}

// DefaultFormData is the form a fresh wizard starts with.
func DefaultFormData(provider provisioning.RepositoryType) FormData {
	return FormData{
		AuthMode: AuthPAT,
		Repository: RepositoryForm{
			Type:                provider,
			Branch:              "main",
			SyncEnabled:         true,
			SyncTarget:          provisioning.TargetFolder,
			SyncIntervalSeconds: 60,
		},
		Migrate: MigrateForm{History: true},
	}
}

// Form is the field layer the engine validates against and reports into.
type Form interface {
	Values() FormData
	// Trigger validates fields and reports whether they all pass. Failing
	// fields get their inline errors set by the form itself.
	Trigger(fields []FieldPath) bool
	SetError(field FieldPath, message string)
	ClearErrors()
}

// EffectiveTitle is the title that will be submitted.
func EffectiveTitle(r RepositoryForm) string {
	if t := strings.TrimSpace(r.Title); t != "" {
		return t
	}
	return DefaultTitle(r)
}

// DefaultTitle derives a title from the URL ("owner/repo") or from the base
// name of a local path.
func DefaultTitle(r RepositoryForm) string {
	if r.Type == provisioning.TypeLocal {
		p := strings.TrimRight(strings.TrimSpace(r.Path), "/")
		if p == "" {
			return ""
		}
		return filepath.Base(p)
	}

	raw := strings.TrimSpace(r.URL)
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "git@") {
		if i := strings.Index(raw, ":"); i >= 0 {
			raw = "ssh://host/" + raw[i+1:]
		}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 {
		return strings.TrimSuffix(parts[0], ".git")
	}
	owner, repo := parts[len(parts)-2], strings.TrimSuffix(parts[len(parts)-1], ".git")
	return owner + "/" + repo
}

// BuildRepository converts form data into the wire resource. The token is
// attached only in personal-token mode; app mode sends a connection reference.
func BuildRepository(data FormData) provisioning.Repository {
	r := data.Repository
	spec := provisioning.RepositorySpec{
		Title: EffectiveTitle(r),
		Type:  r.Type,
		Sync: provisioning.SyncOptions{
			Enabled:         r.SyncEnabled,
			Target:          r.SyncTarget,
			IntervalSeconds: r.SyncIntervalSeconds,
		},
		Workflows: []provisioning.Workflow{},
	}
	if spec.Sync.Target == "" {
		spec.Sync.Target = provisioning.TargetFolder
	}

	if !r.ReadOnly {
		spec.Workflows = append(spec.Workflows, provisioning.WorkflowWrite)
		if r.PRWorkflow && r.Type.IsGit() {
			spec.Workflows = append(spec.Workflows, provisioning.WorkflowBranch)
		}
	}

	repo := provisioning.Repository{Spec: spec}

	if r.Type == provisioning.TypeLocal {
		repo.Spec.Local = &provisioning.LocalRepositoryConfig{Path: strings.TrimSpace(r.Path)}
		return repo
	}

	git := &provisioning.GitRepositoryConfig{
		URL:                       strings.TrimSpace(r.URL),
		Branch:                    strings.TrimSpace(r.Branch),
		Path:                      strings.TrimSpace(r.Path),
		GenerateDashboardPreviews: r.GenerateDashboardPreviews,
	}
	switch r.Type {
	case provisioning.TypeGitHub:
		repo.Spec.GitHub = git
	case provisioning.TypeGitLab:
		repo.Spec.GitLab = git
	case provisioning.TypeBitbucket:
		repo.Spec.Bitbucket = git
	default:
		repo.Spec.Git = git
	}

	switch data.AuthMode {
	case AuthApp:
		if r.Connection != "" {
			repo.Spec.Connection = &provisioning.ConnectionRef{Name: r.Connection}
		}
	default:
		if r.Token != "" {
			repo.Secure = &provisioning.SecureValues{Token: &provisioning.InlineSecureValue{Create: r.Token}}
		}
	}
	return repo
}

var (
	urlPattern    = regexp.MustCompile(`^(https?://[^\s/]+/\S+|git@[^\s:]+:\S+)$`)
	branchPattern = regexp.MustCompile(`^[^\s~^:?*\[\\]+$`)
)

// rule checks one field and returns a message when it fails.
type rule func(d FormData) string

var rules = map[FieldPath]rule{
	FieldAuthMode: func(d FormData) string {
		if d.Repository.Type.IsGit() && !d.AuthMode.Valid() {
			return "Choose an authentication method"
		}
		return ""
	},
	FieldType: func(d FormData) string {
		if !d.Repository.Type.Valid() {
			return "Unknown repository type"
		}
		return ""
	},
	FieldURL: func(d FormData) string {
		if !d.Repository.Type.IsGit() {
			return ""
		}
		v := strings.TrimSpace(d.Repository.URL)
		if v == "" {
			return "Repository URL is required"
		}
		if !urlPattern.MatchString(v) {
			return "Enter a valid repository URL"
		}
		return ""
	},
	FieldBranch: func(d FormData) string {
		if !d.Repository.Type.IsGit() {
			return ""
		}
		v := strings.TrimSpace(d.Repository.Branch)
		if v == "" {
			return "Branch is required"
		}
		if !branchPattern.MatchString(v) {
			return "Invalid branch name"
		}
		return ""
	},
	FieldRepoPath: func(d FormData) string {
		v := strings.TrimSpace(d.Repository.Path)
		if d.Repository.Type == provisioning.TypeLocal {
			if v == "" {
				return "Path is required"
			}
			return ""
		}
		if strings.HasPrefix(v, "/") || strings.Contains(v, "..") {
			return "Path must be relative to the repository root"
		}
		return ""
	},
	FieldToken: func(d FormData) string {
		if d.Repository.Type.IsGit() && d.AuthMode == AuthPAT && strings.TrimSpace(d.Repository.Token) == "" {
			return "Access token is required"
		}
		return ""
	},
	FieldConnection: func(d FormData) string {
		if d.Repository.Type.IsGit() && d.AuthMode == AuthApp && strings.TrimSpace(d.Repository.Connection) == "" {
			return "Select an app connection"
		}
		return ""
	},
	FieldTitle: func(d FormData) string {
		if EffectiveTitle(d.Repository) == "" {
			return "Title is required"
		}
		return ""
	},
	FieldSyncTarget: func(d FormData) string {
		switch d.Repository.SyncTarget {
		case "", provisioning.TargetFolder, provisioning.TargetInstance:
			return ""
		}
		return fmt.Sprintf("Unknown sync target %q", d.Repository.SyncTarget)
	},
	FieldSyncInterval: func(d FormData) string {
		if d.Repository.SyncEnabled && d.Repository.SyncIntervalSeconds < 10 {
			return "Interval must be at least 10 seconds"
		}
		return ""
	},
}

// MemoryForm is the in-process Form used by the TUI and headless drivers.
type MemoryForm struct {
	mu     sync.RWMutex
	data   FormData
	errors map[FieldPath]string
}

// NewMemoryForm returns a form seeded with data.
func NewMemoryForm(data FormData) *MemoryForm {
	return &MemoryForm{data: data, errors: make(map[FieldPath]string)}
}

func (f *MemoryForm) Values() FormData {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.data
}

// Update mutates the form data under the lock.
func (f *MemoryForm) Update(fn func(*FormData)) {
	f.mu.Lock()
	fn(&f.data)
	f.mu.Unlock()
}

func (f *MemoryForm) Trigger(fields []FieldPath) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	ok := true
	for _, field := range fields {
		check, exists := rules[field]
		if !exists {
			continue
		}
		if msg := check(f.data); msg != "" {
			f.errors[field] = msg
			ok = false
		} else {
			delete(f.errors, field)
		}
	}
	return ok
}

func (f *MemoryForm) SetError(field FieldPath, message string) {
	f.mu.Lock()
	f.errors[field] = message
	f.mu.Unlock()
}

func (f *MemoryForm) ClearErrors() {
	f.mu.Lock()
	f.errors = make(map[FieldPath]string)
	f.mu.Unlock()
}

// Error returns the inline error for field, if any.
func (f *MemoryForm) Error(field FieldPath) string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.errors[field]
}

// Errors returns a copy of every inline error.
func (f *MemoryForm) Errors() map[FieldPath]string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[FieldPath]string, len(f.errors))
	for k, v := range f.errors {
		out[k] = v
	}
	return out
}
