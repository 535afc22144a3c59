package wizard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mark3labs/reposync/internal/logger"
	"github.com/mark3labs/reposync/internal/provisioning"
	"github.com/mark3labs/reposync/internal/session"
	"github.com/mark3labs/reposync/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// Deps are the collaborators an Engine drives. Repositories, Jobs, Form and
// Navigator are required.
type Deps struct {
	Repositories RepositoryAPI
	Jobs         JobAPI
	Settings     SettingsAPI // optional: enables migration/skip planning
	Form         Form
	Status       *StatusModel // optional: created when nil
	Telemetry    telemetry.Reporter
	Navigator    Navigator
	Journal      Journal
	Operation    *telemetry.Operation
}

// Options configure one wizard run.
type Options struct {
	Provider provisioning.RepositoryType
	Session  string

	// CanSkipSynchronize lets the sync job run unattended when no migration
	// is needed.
	CanSkipSynchronize bool
	RequiresMigration  bool
	LegacyStorage      bool

	// ForceCancel relabels Previous as Cancel on every step.
	ForceCancel bool

	// OnJobFinished receives every observed job once it reaches a terminal state.
	OnJobFinished func(provisioning.Job)
}

// JobProgress is the last observation of the job the synchronize step watches.
type JobProgress struct {
	Name     string
	Action   provisioning.JobAction
	State    provisioning.JobState
	Message  string
	Progress float64
	Errors   []string
}

// Snapshot is a consistent copy of the engine state for rendering.
type Snapshot struct {
	Steps                  []StepDescriptor
	ActiveStep             StepID
	Completed              []StepID
	RepositoryName         string
	AuthMode               AuthMode
	CanSkipSynchronize     bool
	RequiresMigration      bool
	Submitting             bool
	Cancelling             bool
	CreatingBackgroundJob  bool
	ShowCancelConfirmation bool
	Exited                 bool
	Status                 StepStatusInfo
	Job                    *JobProgress
	Buttons                ButtonState
}

// Engine owns the wizard state. It is safe for concurrent use; network calls
// run outside the lock.
type Engine struct {
	deps Deps
	opts Options

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	changes chan struct{}

	mu                     sync.Mutex
	steps                  []StepDescriptor
	authMode               AuthMode
	active                 StepID
	completed              []StepID
	repositoryName         string
	canSkipSync            bool
	requiresMigration      bool
	legacyStorage          bool
	settings               *provisioning.Settings
	stats                  *provisioning.ResourceStats
	submitting             bool
	navigating             bool
	cancelling             bool
	creatingBackgroundJob  bool
	showCancelConfirmation bool
	exited                 bool
	job                    *JobProgress
	stopWatch              context.CancelFunc
	epoch                  uint64 // bumped on every step change
}

// New builds an engine positioned on the first step.
func New(deps Deps, opts Options) (*Engine, error) {
	switch {
	case deps.Repositories == nil:
		return nil, errors.New("wizard: repository API is required")
	case deps.Jobs == nil:
		return nil, errors.New("wizard: job API is required")
	case deps.Form == nil:
		return nil, errors.New("wizard: form is required")
	case deps.Navigator == nil:
		return nil, errors.New("wizard: navigator is required")
	}
	if !opts.Provider.Valid() {
		return nil, fmt.Errorf("wizard: unknown provider %q", opts.Provider)
	}
	if deps.Status == nil {
		deps.Status = NewStatusModel()
	}
	if deps.Telemetry == nil {
		deps.Telemetry = telemetry.Nop{}
	}

	auth := deps.Form.Values().AuthMode
	if !auth.Valid() {
		auth = AuthPAT
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		deps:              deps,
		opts:              opts,
		ctx:               ctx,
		cancel:            cancel,
		changes:           make(chan struct{}, 1),
		steps:             GetSteps(opts.Provider, auth),
		authMode:          auth,
		active:            StepAuthType,
		canSkipSync:       opts.CanSkipSynchronize && !opts.RequiresMigration,
		requiresMigration: opts.RequiresMigration,
		legacyStorage:     opts.LegacyStorage,
	}
	deps.Status.OnChange(func(StepStatusInfo) { e.notify() })
	return e, nil
}

// Start journals the beginning of a fresh run.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	t := e.transitionLocked(session.ActionStart)
	e.mu.Unlock()
	e.record(ctx, t)
}

// Prepare loads instance settings and resource counts used to plan the
// bootstrap step. Failure leaves the engine usable with its options.
func (e *Engine) Prepare(ctx context.Context) error {
	if e.deps.Settings == nil {
		return nil
	}

	settings, err := e.deps.Settings.Settings(ctx)
	if err != nil {
		return fmt.Errorf("load provisioning settings: %w", err)
	}
	stats, err := e.deps.Settings.Stats(ctx)
	if err != nil {
		logger.Warn("Failed to load resource stats: %v", err)
		stats = nil
	}

	e.mu.Lock()
	e.settings = settings
	e.stats = stats
	e.legacyStorage = settings.LegacyStorage
	if settings.LegacyStorage {
		e.requiresMigration = true
		e.canSkipSync = false
	}
	e.mu.Unlock()
	e.notify()
	return nil
}

// Restore positions the engine from a replayed journal. Status restarts idle.
func (e *Engine) Restore(st *session.State) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if mode := AuthMode(st.AuthMode); mode.Valid() {
		e.authMode = mode
		e.steps = GetSteps(e.opts.Provider, mode)
	}
	active := StepID(st.ActiveStep)
	if active == "" {
		active = StepAuthType
	}
	if IndexOf(e.steps, active) < 0 {
		return fmt.Errorf("cannot resume at unknown step %q", st.ActiveStep)
	}

	e.active = active
	e.completed = e.completed[:0]
	for _, id := range st.Completed {
		if IndexOf(e.steps, StepID(id)) >= 0 {
			e.completed = appendUnique(e.completed, StepID(id))
		}
	}
	e.repositoryName = st.Repository
	e.canSkipSync = st.CanSkipSynchronize && active != StepSynchronize
	e.epoch++
	e.deps.Status.SetStatus(Idle())
	return nil
}

// Changes delivers a coalesced signal whenever state visible to a renderer
// may have changed.
func (e *Engine) Changes() <-chan struct{} {
	return e.changes
}

// Wait blocks until detached background work and job observers have ended.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Close stops observing jobs and cancels background work. Server-side jobs
// keep running.
func (e *Engine) Close() {
	e.cancel()
	e.wg.Wait()
}

// Snapshot returns a consistent copy of the state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := Snapshot{
		Steps:                  append([]StepDescriptor(nil), e.steps...),
		ActiveStep:             e.active,
		Completed:              append([]StepID(nil), e.completed...),
		RepositoryName:         e.repositoryName,
		AuthMode:               e.authMode,
		CanSkipSynchronize:     e.canSkipSync,
		RequiresMigration:      e.requiresMigration,
		Submitting:             e.submitting,
		Cancelling:             e.cancelling,
		CreatingBackgroundJob:  e.creatingBackgroundJob,
		ShowCancelConfirmation: e.showCancelConfirmation,
		Exited:                 e.exited,
		Status:                 e.deps.Status.Status(),
		Buttons:                DeriveButtons(e.buttonInputLocked()),
	}
	if e.job != nil {
		j := *e.job
		j.Errors = append([]string(nil), e.job.Errors...)
		snap.Job = &j
	}
	return snap
}

// Steps returns the current catalog.
func (e *Engine) Steps() []StepDescriptor {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]StepDescriptor(nil), e.steps...)
}

// ActiveStep returns the id of the active step.
func (e *Engine) ActiveStep() StepID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// Completed returns the completed steps in insertion order.
func (e *Engine) Completed() []StepID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]StepID(nil), e.completed...)
}

// RepositoryName returns the created resource name, or "".
func (e *Engine) RepositoryName() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.repositoryName
}

// CanSkipSynchronize reports whether Next from bootstrap skips synchronize.
func (e *Engine) CanSkipSynchronize() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.canSkipSync
}

// SetCanSkipSynchronize overrides the skip rule. It is ignored while the
// synchronize step is active so the active step never becomes a skipped one.
func (e *Engine) SetCanSkipSynchronize(skip bool) {
	e.mu.Lock()
	if e.active != StepSynchronize {
		e.canSkipSync = skip
	}
	e.mu.Unlock()
	e.notify()
}

// SetRequiresMigration overrides the migration decision.
func (e *Engine) SetRequiresMigration(v bool) {
	e.mu.Lock()
	e.requiresMigration = v
	e.mu.Unlock()
}

// Status returns the status model.
func (e *Engine) Status() *StatusModel {
	return e.deps.Status
}

// Form returns the form the engine validates against.
func (e *Engine) Form() Form {
	return e.deps.Form
}

// IsSubmitting reports whether a submission is in flight.
func (e *Engine) IsSubmitting() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.submitting
}

func (e *Engine) notify() {
	select {
	case e.changes <- struct{}{}:
	default:
	}
}

func (e *Engine) activeDescriptorLocked() StepDescriptor {
	return e.steps[IndexOf(e.steps, e.active)]
}

// changeStepLocked moves to id, stops observing the previous step's job and
// resets the status.
func (e *Engine) changeStepLocked(id StepID) {
	e.active = id
	e.epoch++
	if e.stopWatch != nil {
		e.stopWatch()
		e.stopWatch = nil
	}
	e.job = nil
	e.showCancelConfirmation = false
	e.deps.Status.SetStatus(Idle())
}

// setStatusIfCurrent applies info only if no step change happened since epoch.
func (e *Engine) setStatusIfCurrent(epoch uint64, info StepStatusInfo) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.epoch != epoch || e.exited {
		return false
	}
	e.deps.Status.SetStatus(info)
	return true
}

func (e *Engine) applyAuthMode(mode AuthMode) {
	if !mode.Valid() {
		return
	}
	e.mu.Lock()
	if mode != e.authMode {
		e.authMode = mode
		e.steps = GetSteps(e.opts.Provider, mode)
	}
	e.mu.Unlock()
}

func (e *Engine) transitionLocked(action string) session.Transition {
	completed := make([]string, 0, len(e.completed))
	for _, id := range e.completed {
		completed = append(completed, string(id))
	}
	return session.Transition{
		Action:             action,
		Step:               string(e.active),
		Completed:          completed,
		Repository:         e.repositoryName,
		CanSkipSynchronize: e.canSkipSync,
		Provider:           string(e.opts.Provider),
		AuthMode:           string(e.authMode),
	}
}

func (e *Engine) record(ctx context.Context, t session.Transition) {
	if e.deps.Journal == nil {
		return
	}
	if err := e.deps.Journal.Record(context.WithoutCancel(ctx), t); err != nil {
		logger.Warn("Failed to journal %s transition: %v", t.Action, err)
	}
}

func (e *Engine) report(ctx context.Context, name string, step StepID, attrs map[string]string) {
	e.mu.Lock()
	repo := e.repositoryName
	e.mu.Unlock()

	e.deps.Telemetry.Report(ctx, telemetry.Event{
		Name:       name,
		Session:    e.opts.Session,
		Step:       string(step),
		Provider:   string(e.opts.Provider),
		Repository: repo,
		Attrs:      attrs,
		Time:       time.Now(),
	})
	e.deps.Operation.Event(name, attribute.String("step", string(step)))
}

func appendUnique(ids []StepID, id StepID) []StepID {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

func removeSteps(ids []StepID, drop ...StepID) []StepID {
	out := ids[:0]
	for _, id := range ids {
		keep := true
		for _, d := range drop {
			if id == d {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, id)
		}
	}
	return out
}
