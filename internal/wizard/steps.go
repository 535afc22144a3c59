// Package wizard is the repository onboarding engine: the step catalog, the
// status model, the submission pipeline, navigation with its skip rule, button
// derivation and sync job supervision. It knows nothing about rendering; the
// TUI and the headless runner both drive an Engine.
package wizard

import (
	"github.com/mark3labs/reposync/internal/provisioning"
)

// StepID identifies a wizard page.
type StepID string

const (
	StepAuthType    StepID = "authType"
	StepConnection  StepID = "connection"
	StepBootstrap   StepID = "bootstrap"
	StepSynchronize StepID = "synchronize"
	StepFinish      StepID = "finish"
)

// StepOrder is the fixed sequence shared by every provider.
var StepOrder = []StepID{StepAuthType, StepConnection, StepBootstrap, StepSynchronize, StepFinish}

// AuthMode is how the repository authenticates to its provider.
type AuthMode string

const (
	AuthPAT AuthMode = "pat" // personal access token sent as secure.token
	AuthApp AuthMode = "app" // reference to a pre-installed app connection
)

// Valid reports whether m is a known mode.
func (m AuthMode) Valid() bool {
	return m == AuthPAT || m == AuthApp
}

// FieldPath is a dotted path into FormData, matching normalized server paths.
type FieldPath string

const (
	FieldAuthMode                  FieldPath = "auth.mode"
	FieldConnection                FieldPath = "repository.connection"
	FieldType                      FieldPath = "repository.type"
	FieldURL                       FieldPath = "repository.url"
	FieldBranch                    FieldPath = "repository.branch"
	FieldRepoPath                  FieldPath = "repository.path"
	FieldToken                     FieldPath = "repository.token"
	FieldTitle                     FieldPath = "repository.title"
	FieldSyncTarget                FieldPath = "repository.sync.target"
	FieldSyncEnabled               FieldPath = "repository.sync.enabled"
	FieldSyncInterval              FieldPath = "repository.sync.intervalSeconds"
	FieldReadOnly                  FieldPath = "repository.readOnly"
	FieldPRWorkflow                FieldPath = "repository.prWorkflow"
	FieldGenerateDashboardPreviews FieldPath = "repository.generateDashboardPreviews"
	FieldMigrateHistory            FieldPath = "migrate.history"
)

// repositoryFields is the repository sub-form validated by connection-level
// submissions.
var repositoryFields = []FieldPath{FieldType, FieldURL, FieldBranch, FieldRepoPath, FieldToken, FieldConnection}

// StepDescriptor describes one page. VisibleFields lists the fields rendered on
// the page; server errors for other fields cannot be attached inline.
type StepDescriptor struct {
	ID            StepID
	DisplayName   string
	Title         string
	AutoSubmit    bool
	VisibleFields []FieldPath
}

// Shows reports whether field is rendered on this step.
func (d StepDescriptor) Shows(field FieldPath) bool {
	for _, f := range d.VisibleFields {
		if f == field {
			return true
		}
	}
	return false
}

// GetSteps builds the catalog for a provider. Order and count never vary;
// local storage only changes the wording of the first two steps and which
// connection fields are shown.
func GetSteps(provider provisioning.RepositoryType, auth AuthMode) []StepDescriptor {
	authStep := StepDescriptor{
		ID:            StepAuthType,
		DisplayName:   "Authentication",
		Title:         "Choose how to connect to your repository",
		VisibleFields: []FieldPath{FieldAuthMode},
	}
	connStep := StepDescriptor{
		ID:          StepConnection,
		DisplayName: "Connect",
		Title:       "Connect to the repository",
		AutoSubmit:  true,
	}

	if provider == provisioning.TypeLocal {
		authStep.DisplayName = "Storage"
		authStep.Title = "Choose local storage"
		connStep.DisplayName = "Directory"
		connStep.Title = "Configure the local directory"
		connStep.VisibleFields = []FieldPath{FieldType, FieldRepoPath}
	} else {
		connStep.VisibleFields = []FieldPath{FieldType, FieldURL, FieldBranch, FieldRepoPath}
		if auth == AuthApp {
			authStep.VisibleFields = append(authStep.VisibleFields, FieldConnection)
		} else {
			connStep.VisibleFields = append(connStep.VisibleFields, FieldToken)
		}
	}

	return []StepDescriptor{
		authStep,
		connStep,
		{
			ID:            StepBootstrap,
			DisplayName:   "Choose what to synchronize",
			Title:         "Choose what to synchronize",
			AutoSubmit:    true,
			VisibleFields: []FieldPath{FieldSyncTarget, FieldTitle, FieldMigrateHistory},
		},
		{
			ID:          StepSynchronize,
			DisplayName: "Synchronize",
			Title:       "Synchronize with the repository",
		},
		{
			ID:          StepFinish,
			DisplayName: "Choose additional settings",
			Title:       "Choose additional settings",
			AutoSubmit:  true,
			VisibleFields: []FieldPath{
				FieldTitle,
				FieldSyncEnabled,
				FieldSyncInterval,
				FieldReadOnly,
				FieldPRWorkflow,
				FieldGenerateDashboardPreviews,
			},
		},
	}
}

// IndexOf returns the position of id in steps, or -1.
func IndexOf(steps []StepDescriptor, id StepID) int {
	for i, s := range steps {
		if s.ID == id {
			return i
		}
	}
	return -1
}
