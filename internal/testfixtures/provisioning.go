// Package testfixtures provides thread-safe fakes for the wizard's
// collaborators:
//   - MockProvisioning: repository, job and settings API with scripted jobs
//   - RecordingForm: a Form that records triggers and inline errors
//   - RecordingTelemetry, RecordingNavigator, RecordingJournal
//
// Every mock counts its calls so tests can assert on them, e.g.
//
//	api := testfixtures.NewMockProvisioning()
//	api.JobScript = []provisioning.JobState{provisioning.JobWorking, provisioning.JobSuccess}
//	...
//	require.Equal(t, 1, api.CreateJobCalls())
package testfixtures

import (
	"context"
	"fmt"
	"sync"

	"github.com/mark3labs/reposync/internal/provisioning"
)

// MockProvisioning is an in-memory provisioning API.
type MockProvisioning struct {
	mu sync.Mutex

	// Errors returned by the corresponding calls (nil means success).
	SaveError      error
	DeleteError    error
	CreateJobError error
	WatchError     error
	SettingsError  error

	// OmitName makes CreateOrUpdate succeed without a metadata.name.
	OmitName bool
	// SaveGate, when set, blocks CreateOrUpdate until it is closed.
	SaveGate chan struct{}

	// JobScript is the sequence of states WatchJob emits. When empty the job
	// succeeds immediately. A script that does not end terminal leaves the
	// watch open until ctx is done.
	JobScript []provisioning.JobState
	// JobMessage is attached to every emitted observation.
	JobMessage string
	// JobGate, when set, is read once before each emitted observation.
	JobGate chan struct{}

	SettingsValue provisioning.Settings
	StatsValue    provisioning.ResourceStats

	repos     map[string]provisioning.Repository
	saved     []provisioning.Repository
	saveNames []string
	deleted   []string
	jobs      []provisioning.JobSpec
	watches   int
	nextID    int
}

// NewMockProvisioning returns an empty API.
func NewMockProvisioning() *MockProvisioning {
	return &MockProvisioning{repos: make(map[string]provisioning.Repository)}
}

func (m *MockProvisioning) CreateOrUpdate(ctx context.Context, name string, repo provisioning.Repository) (*provisioning.Repository, error) {
	m.mu.Lock()
	gate := m.SaveGate
	m.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.saved = append(m.saved, repo)
	m.saveNames = append(m.saveNames, name)
	if m.SaveError != nil {
		return nil, m.SaveError
	}
	if m.OmitName {
		return &provisioning.Repository{Spec: repo.Spec}, nil
	}

	if name == "" {
		m.nextID++
		name = fmt.Sprintf("repo-%d", m.nextID)
	}
	repo.Metadata.Name = name
	m.repos[name] = repo
	out := repo
	return &out, nil
}

func (m *MockProvisioning) Delete(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.deleted = append(m.deleted, name)
	if m.DeleteError != nil {
		return m.DeleteError
	}
	delete(m.repos, name)
	return nil
}

func (m *MockProvisioning) CreateJob(ctx context.Context, repository string, spec provisioning.JobSpec) (*provisioning.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	spec.Repository = repository
	m.jobs = append(m.jobs, spec)
	if m.CreateJobError != nil {
		return nil, m.CreateJobError
	}
	return &provisioning.Job{
		Metadata: provisioning.ObjectMeta{Name: fmt.Sprintf("job-%d", len(m.jobs))},
		Spec:     spec,
		Status:   provisioning.JobStatus{State: provisioning.JobPending},
	}, nil
}

func (m *MockProvisioning) WatchJob(ctx context.Context, repository, name string) (<-chan provisioning.Job, error) {
	m.mu.Lock()
	m.watches++
	if m.WatchError != nil {
		err := m.WatchError
		m.mu.Unlock()
		return nil, err
	}
	script := append([]provisioning.JobState(nil), m.JobScript...)
	if len(script) == 0 {
		script = []provisioning.JobState{provisioning.JobSuccess}
	}
	msg := m.JobMessage
	gate := m.JobGate
	m.mu.Unlock()

	ch := make(chan provisioning.Job)
	go func() {
		defer close(ch)
		for _, state := range script {
			if gate != nil {
				select {
				case <-gate:
				case <-ctx.Done():
					return
				}
			}
			job := provisioning.Job{
				Metadata: provisioning.ObjectMeta{Name: name},
				Spec:     provisioning.JobSpec{Repository: repository},
				Status:   provisioning.JobStatus{State: state, Message: msg},
			}
			select {
			case ch <- job:
			case <-ctx.Done():
				return
			}
			if state.Finished() {
				return
			}
		}
		<-ctx.Done()
	}()
	return ch, nil
}

func (m *MockProvisioning) Settings(ctx context.Context) (*provisioning.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SettingsError != nil {
		return nil, m.SettingsError
	}
	s := m.SettingsValue
	return &s, nil
}

func (m *MockProvisioning) Stats(ctx context.Context) (*provisioning.ResourceStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.StatsValue
	return &s, nil
}

// Set updates configuration fields under the lock.
func (m *MockProvisioning) Set(fn func(m *MockProvisioning)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m)
}

// SaveCalls returns the number of CreateOrUpdate calls.
func (m *MockProvisioning) SaveCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved)
}

// LastSaved returns the last submitted resource and the name it was saved under.
func (m *MockProvisioning) LastSaved() (provisioning.Repository, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.saved) == 0 {
		return provisioning.Repository{}, ""
	}
	return m.saved[len(m.saved)-1], m.saveNames[len(m.saveNames)-1]
}

// Deleted returns the names passed to Delete.
func (m *MockProvisioning) Deleted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deleted...)
}

// Jobs returns every requested job spec.
func (m *MockProvisioning) Jobs() []provisioning.JobSpec {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]provisioning.JobSpec(nil), m.jobs...)
}

// CreateJobCalls returns the number of CreateJob calls.
func (m *MockProvisioning) CreateJobCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}

// WatchCalls returns the number of WatchJob calls.
func (m *MockProvisioning) WatchCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.watches
}

// Exists reports whether a repository is stored under name.
func (m *MockProvisioning) Exists(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.repos[name]
	return ok
}
