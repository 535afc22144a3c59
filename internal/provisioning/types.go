// Package provisioning holds the wire types of the repository provisioning
// API and an HTTP client for it.
package provisioning

// API group and version served by the provisioning apiserver.
const (
	Group      = "provisioning.grafana.app"
	Version    = "v0alpha1"
	APIVersion = Group + "/" + Version
)

// RepositoryType identifies the provider backing a repository.
type RepositoryType string

const (
	TypeGitHub    RepositoryType = "github"
	TypeGitLab    RepositoryType = "gitlab"
	TypeBitbucket RepositoryType = "bitbucket"
	TypeGit       RepositoryType = "git"
	TypeLocal     RepositoryType = "local"
)

// RepositoryTypes lists every provider in display order.
var RepositoryTypes = []RepositoryType{TypeGitHub, TypeGitLab, TypeBitbucket, TypeGit, TypeLocal}

// IsGit reports whether the provider is git-based (anything but local storage).
func (t RepositoryType) IsGit() bool {
	return t != TypeLocal
}

// Valid reports whether t is a known provider.
func (t RepositoryType) Valid() bool {
	for _, known := range RepositoryTypes {
		if t == known {
			return true
		}
	}
	return false
}

// SyncTarget says where synced resources are written.
type SyncTarget string

const (
	TargetInstance SyncTarget = "instance"
	TargetFolder   SyncTarget = "folder"
)

// Workflow is a write workflow supported by a repository.
type Workflow string

const (
	WorkflowWrite  Workflow = "write"
	WorkflowBranch Workflow = "branch"
)

// ObjectMeta is the subset of Kubernetes object metadata the wizard uses.
type ObjectMeta struct {
	Name            string            `json:"name,omitempty"`
	Namespace       string            `json:"namespace,omitempty"`
	UID             string            `json:"uid,omitempty"`
	ResourceVersion string            `json:"resourceVersion,omitempty"`
	Labels          map[string]string `json:"labels,omitempty"`
}

// Repository is the provisioning repository resource.
type Repository struct {
	APIVersion string            `json:"apiVersion,omitempty"`
	Kind       string            `json:"kind,omitempty"`
	Metadata   ObjectMeta        `json:"metadata"`
	Spec       RepositorySpec    `json:"spec"`
	Secure     *SecureValues     `json:"secure,omitempty"`
	Status     *RepositoryStatus `json:"status,omitempty"`
}

// RepositorySpec is the desired state of a repository.
type RepositorySpec struct {
	Title       string                 `json:"title"`
	Description string                 `json:"description,omitempty"`
	Type        RepositoryType         `json:"type"`
	Workflows   []Workflow             `json:"workflows"`
	Sync        SyncOptions            `json:"sync"`
	GitHub      *GitRepositoryConfig   `json:"github,omitempty"`
	GitLab      *GitRepositoryConfig   `json:"gitlab,omitempty"`
	Bitbucket   *GitRepositoryConfig   `json:"bitbucket,omitempty"`
	Git         *GitRepositoryConfig   `json:"git,omitempty"`
	Local       *LocalRepositoryConfig `json:"local,omitempty"`
	Connection  *ConnectionRef         `json:"connection,omitempty"`
}

// GitRepositoryConfig is shared by every git-based provider.
type GitRepositoryConfig struct {
	URL                       string `json:"url"`
	Branch                    string `json:"branch"`
	Path                      string `json:"path,omitempty"`
	GenerateDashboardPreviews bool   `json:"generateDashboardPreviews,omitempty"`
}

// LocalRepositoryConfig points at a directory on the server.
type LocalRepositoryConfig struct {
	Path string `json:"path"`
}

// ConnectionRef references an app connection used instead of a token.
type ConnectionRef struct {
	Name string `json:"name"`
}

// SyncOptions controls periodic pulls.
type SyncOptions struct {
	Enabled         bool       `json:"enabled"`
	Target          SyncTarget `json:"target"`
	IntervalSeconds int64      `json:"intervalSeconds,omitempty"`
}

// SecureValues carries write-only secrets.
type SecureValues struct {
	Token *InlineSecureValue `json:"token,omitempty"`
}

// InlineSecureValue creates a secret from an inline value.
type InlineSecureValue struct {
	Create string `json:"create,omitempty"`
}

// RepositoryStatus is the observed state reported by the server.
type RepositoryStatus struct {
	Health HealthStatus `json:"health"`
	Sync   SyncStatus   `json:"sync"`
}

// HealthStatus reports whether the remote is reachable.
type HealthStatus struct {
	Healthy bool     `json:"healthy"`
	Message []string `json:"message,omitempty"`
}

// SyncStatus reports the last sync job.
type SyncStatus struct {
	State   JobState `json:"state,omitempty"`
	Job     string   `json:"job,omitempty"`
	Message []string `json:"message,omitempty"`
}

// JobAction is the kind of work a job performs.
type JobAction string

const (
	ActionPull    JobAction = "pull"
	ActionMigrate JobAction = "migrate"
)

// Job is a long-running server-side operation against a repository.
type Job struct {
	APIVersion string     `json:"apiVersion,omitempty"`
	Kind       string     `json:"kind,omitempty"`
	Metadata   ObjectMeta `json:"metadata"`
	Spec       JobSpec    `json:"spec"`
	Status     JobStatus  `json:"status"`
}

// JobSpec describes the requested job.
type JobSpec struct {
	Action     JobAction          `json:"action"`
	Repository string             `json:"repository,omitempty"`
	Pull       *PullJobOptions    `json:"pull,omitempty"`
	Migrate    *MigrateJobOptions `json:"migrate,omitempty"`
}

// PullJobOptions configures a pull.
type PullJobOptions struct {
	Incremental bool `json:"incremental"`
}

// MigrateJobOptions configures a migration from instance storage.
type MigrateJobOptions struct {
	History bool   `json:"history"`
	Message string `json:"message,omitempty"`
}

// JobState is the lifecycle state of a job.
type JobState string

const (
	JobPending JobState = "pending"
	JobWorking JobState = "working"
	JobSuccess JobState = "success"
	JobWarning JobState = "warning"
	JobError   JobState = "error"
)

// Finished reports whether the state is terminal.
func (s JobState) Finished() bool {
	switch s {
	case JobSuccess, JobWarning, JobError:
		return true
	}
	return false
}

// JobStatus is the observed progress of a job.
type JobStatus struct {
	State    JobState `json:"state,omitempty"`
	Message  string   `json:"message,omitempty"`
	Errors   []string `json:"errors,omitempty"`
	Started  int64    `json:"started,omitempty"`
	Finished int64    `json:"finished,omitempty"`
	Progress float64  `json:"progress,omitempty"`
}

// Settings is the instance-wide provisioning configuration returned by the
// settings endpoint.
type Settings struct {
	LegacyStorage            bool             `json:"legacyStorage,omitempty"`
	AvailableRepositoryTypes []RepositoryType `json:"availableRepositoryTypes,omitempty"`
	Items                    []RepositoryView `json:"items"`
}

// HasInstanceTarget reports whether some repository other than name already
// syncs to the whole instance.
func (s Settings) HasInstanceTarget(name string) bool {
	for _, item := range s.Items {
		if item.Target == TargetInstance && item.Name != name {
			return true
		}
	}
	return false
}

// RepositoryView is the summary of an existing repository.
type RepositoryView struct {
	Name   string         `json:"name"`
	Title  string         `json:"title"`
	Type   RepositoryType `json:"type"`
	Target SyncTarget     `json:"target"`
}

// ResourceCount counts resources of one group/resource pair.
type ResourceCount struct {
	Group    string `json:"group"`
	Resource string `json:"resource"`
	Count    int    `json:"count"`
}

// ManagerStats counts resources owned by one manager.
type ManagerStats struct {
	ID    string          `json:"id,omitempty"`
	Kind  string          `json:"kind,omitempty"`
	Stats []ResourceCount `json:"stats"`
}

// ResourceStats summarises instance and managed resources.
type ResourceStats struct {
	Instance []ResourceCount `json:"instance,omitempty"`
	Managed  []ManagerStats  `json:"managed,omitempty"`
}

// UnmanagedCount is the number of instance resources no manager owns.
func (s ResourceStats) UnmanagedCount() int {
	total := 0
	for _, c := range s.Instance {
		total += c.Count
	}
	for _, m := range s.Managed {
		for _, c := range m.Stats {
			total -= c.Count
		}
	}
	if total < 0 {
		return 0
	}
	return total
}

// Status is the Kubernetes failure envelope.
type Status struct {
	Kind    string         `json:"kind,omitempty"`
	Status  string         `json:"status,omitempty"`
	Message string         `json:"message,omitempty"`
	Reason  string         `json:"reason,omitempty"`
	Code    int            `json:"code,omitempty"`
	Details *StatusDetails `json:"details,omitempty"`
}

// StatusDetails carries per-field causes.
type StatusDetails struct {
	Name   string        `json:"name,omitempty"`
	Kind   string        `json:"kind,omitempty"`
	Causes []StatusCause `json:"causes,omitempty"`
}

// StatusCause is one machine-readable cause.
type StatusCause struct {
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
	Field   string `json:"field,omitempty"`
}
