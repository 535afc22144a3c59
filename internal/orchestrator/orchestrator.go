package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/mark3labs/reposync/internal/config"
	"github.com/mark3labs/reposync/internal/headless"
	"github.com/mark3labs/reposync/internal/logger"
	"github.com/mark3labs/reposync/internal/nats"
	"github.com/mark3labs/reposync/internal/provisioning"
	"github.com/mark3labs/reposync/internal/session"
	"github.com/mark3labs/reposync/internal/telemetry"
	"github.com/mark3labs/reposync/internal/tui"
	"github.com/mark3labs/reposync/internal/wizard"
)

const operationName = "reposync.connect"

// API is the provisioning surface the wizard drives.
type API interface {
	wizard.RepositoryAPI
	wizard.JobAPI
	wizard.SettingsAPI
}

// Config holds configuration for the orchestrator.
type Config struct {
	App                *config.Config
	Provider           provisioning.RepositoryType // Repository type (ignored on resume)
	Session            string                      // Session ID (generated when empty)
	Resume             bool                        // Replay Session's journal before starting
	Headless           bool                        // Run from an answers file without TUI
	AnswersPath        string                      // Answers file (required when headless)
	ForceCancel        bool                        // Label Previous as Cancel on every step
	CanSkipSynchronize bool                        // Let the sync job run in the background
	Verbose            bool                        // Print requests and logs in headless mode

	API API       // Override the HTTP client (tests)
	Out io.Writer // Headless output (default os.Stdout)
}

// Orchestrator owns one wizard run: the event bus, the provisioning client,
// the engine and the driver in front of it.
type Orchestrator struct {
	cfg      Config
	provider provisioning.RepositoryType
	answers  *headless.Answers
	resumed  *session.State

	bus      *nats.Bus
	store    *session.Store
	events   *telemetry.NATS
	tracing  *telemetry.Tracing
	op       *telemetry.Operation
	form     *wizard.MemoryForm
	engine   *wizard.Engine
	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
	stopErr  error

	mu     sync.Mutex
	result *wizard.Result
}

// New creates an orchestrator. Nothing is started until Start.
func New(ctx context.Context, cfg Config) (*Orchestrator, error) {
	if cfg.App == nil {
		return nil, errors.New("configuration is required")
	}
	if cfg.Headless && cfg.AnswersPath == "" {
		return nil, errors.New("headless mode requires an answers file")
	}
	if cfg.Resume && cfg.Session == "" {
		return nil, errors.New("resume requires a session ID")
	}
	if cfg.Session != "" && !session.ValidID(cfg.Session) {
		return nil, fmt.Errorf("invalid session ID %q", cfg.Session)
	}
	if cfg.App.DataDir == "" {
		cfg.App.DataDir = ".reposync"
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}

	ctx, cancel := context.WithCancel(ctx)
	return &Orchestrator{cfg: cfg, ctx: ctx, cancel: cancel}, nil
}

// Session returns the ID of the run.
func (o *Orchestrator) Session() string {
	return o.cfg.Session
}

// Result is how the wizard exited, or nil while it has not.
func (o *Orchestrator) Result() *wizard.Result {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.result
}

// Start initializes all components and positions the engine.
func (o *Orchestrator) Start() error {
	if err := o.configureLogging(); err != nil {
		return err
	}

	logger.Debug("Opening event store in %s", o.cfg.App.DataDir)
	bus, err := nats.Open(o.ctx, o.cfg.App.DataDir)
	if err != nil {
		logger.Error("Failed to open event store: %v", err)
		return fmt.Errorf("failed to open event store: %w", err)
	}
	o.bus = bus
	o.store = session.NewStore(bus.JetStream, bus.Stream)

	if err := o.resolveSession(); err != nil {
		return err
	}
	if err := o.loadForm(); err != nil {
		return err
	}
	logger.Info("Starting wizard session '%s' for %s", o.cfg.Session, o.provider)

	reporters := telemetry.Multi{telemetry.Log{}}
	if o.cfg.App.Telemetry.NATS {
		o.events = telemetry.NewNATS(bus.JetStream, o.cfg.Session)
		reporters = append(reporters, o.events)
	}
	if o.cfg.App.Telemetry.Tracing {
		tracing, err := telemetry.NewTracing(o.ctx, "")
		if err != nil {
			logger.Warn("Tracing disabled: %v", err)
		} else {
			o.tracing = tracing
		}
	}

	api, err := o.api()
	if err != nil {
		return err
	}

	skip := o.cfg.CanSkipSynchronize
	if o.answers != nil && o.answers.SkipSynchronize != nil {
		skip = *o.answers.SkipSynchronize
	}
	if o.resumed != nil {
		skip = o.resumed.CanSkipSynchronize
	}

	deps := wizard.Deps{
		Repositories: api,
		Jobs:         api,
		Settings:     api,
		Form:         o.form,
		Telemetry:    reporters,
		Navigator:    wizard.NavigatorFunc(o.exit),
		Journal:      o.store.Journal(o.cfg.Session),
	}
	opts := wizard.Options{
		Provider:           o.provider,
		Session:            o.cfg.Session,
		CanSkipSynchronize: skip,
		ForceCancel:        o.cfg.ForceCancel,
		OnJobFinished: func(job provisioning.Job) {
			logger.Info("Job %s finished: %s", job.Metadata.Name, job.Status.State)
		},
	}

	if tracer := o.tracing.Tracer(); tracer != nil {
		op, err := telemetry.EmitPlan(o.ctx, tracer, operationName, planFor(wizard.GetSteps(o.provider, o.form.Values().AuthMode)))
		if err != nil {
			logger.Warn("Failed to emit telemetry plan: %v", err)
		} else {
			o.op = op
			deps.Operation = op
		}
	}

	engine, err := wizard.New(deps, opts)
	if err != nil {
		return fmt.Errorf("failed to create wizard: %w", err)
	}
	o.engine = engine

	if err := engine.Prepare(o.ctx); err != nil {
		logger.Warn("Continuing without provisioning settings: %v", err)
	}

	if o.resumed != nil {
		if err := engine.Restore(o.resumed); err != nil {
			return fmt.Errorf("failed to resume session '%s': %w", o.cfg.Session, err)
		}
		logger.Info("Resumed session '%s' at step %s", o.cfg.Session, engine.ActiveStep())
	} else {
		engine.Start(o.ctx)
	}
	return nil
}

// Run drives the engine with the TUI or the headless runner until it exits.
func (o *Orchestrator) Run() error {
	if o.engine == nil {
		return errors.New("orchestrator not started")
	}

	var err error
	if o.cfg.Headless {
		err = o.runHeadless()
	} else {
		err = o.runTUI()
	}
	o.op.End(err)
	return err
}

func (o *Orchestrator) runHeadless() error {
	r := &headless.Runner{
		Engine:          o.engine,
		Form:            o.form,
		Out:             headless.NewPrinter(o.cfg.Out),
		Verbose:         o.cfg.Verbose,
		CancelOnFailure: o.answers.CancelOnFailure,
		JobTimeout:      o.answers.JobTimeout,
	}
	return r.Run(o.ctx)
}

func (o *Orchestrator) runTUI() error {
	m := tui.NewModel(o.ctx, o.engine, o.form, o.provider)
	if err := tui.Run(m); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	if m.Interrupted() && o.Result() == nil {
		fmt.Fprintf(o.cfg.Out, "Session %s saved. Resume with: reposync connect --resume %s\n", o.cfg.Session, o.cfg.Session)
		return nil
	}
	if r := o.Result(); r != nil {
		switch r.Outcome {
		case wizard.OutcomeFinished:
			fmt.Fprintf(o.cfg.Out, "Repository %s connected.\n", r.Repository)
		case wizard.OutcomeCancelled:
			fmt.Fprintln(o.cfg.Out, "Setup cancelled.")
		}
	}
	return nil
}

// Stop shuts down the engine and the event store. It is idempotent.
func (o *Orchestrator) Stop() error {
	o.stopOnce.Do(func() {
		logger.Info("Stopping wizard session '%s'", o.cfg.Session)

		var errs []error
		if o.engine != nil {
			o.engine.Close()
			o.engine.Wait()
		}
		o.cancel()

		if o.events != nil {
			o.events.Flush(2 * time.Second)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := o.tracing.Shutdown(ctx); err != nil {
			logger.Error("Tracing shutdown failed: %v", err)
			errs = append(errs, fmt.Errorf("tracing shutdown: %w", err))
		}

		if err := o.bus.Close(); err != nil {
			logger.Error("NATS shutdown failed: %v", err)
			errs = append(errs, fmt.Errorf("NATS shutdown failed: %w", err))
		}
		o.bus = nil

		logger.Info("Orchestrator stopped")
		o.stopErr = errors.Join(errs...)
	})
	return o.stopErr
}

func (o *Orchestrator) configureLogging() error {
	app := o.cfg.App
	if err := logger.Configure(app.LogLevel, app.LogFormat, app.LogFile); err != nil {
		return fmt.Errorf("failed to configure logging: %w", err)
	}
	// The TUI owns the terminal: without a log file logs are discarded.
	if app.LogFile == "" {
		if o.cfg.Headless && o.cfg.Verbose {
			logger.Default.SetOutput(os.Stderr)
		} else {
			logger.Default.SetOutput(io.Discard)
		}
	}
	return nil
}

func (o *Orchestrator) resolveSession() error {
	if !o.cfg.Resume {
		if o.cfg.Session == "" {
			o.cfg.Session = session.NewID()
		}
		o.provider = o.cfg.Provider
		return nil
	}

	st, err := o.store.LoadState(o.ctx, o.cfg.Session)
	if err != nil {
		return fmt.Errorf("failed to load session '%s': %w", o.cfg.Session, err)
	}
	if st.Events == 0 {
		return fmt.Errorf("session '%s' not found", o.cfg.Session)
	}
	if st.Finished() {
		return fmt.Errorf("session '%s' already %s", o.cfg.Session, st.Outcome)
	}
	o.resumed = st
	o.provider = provisioning.RepositoryType(st.Provider)
	return nil
}

func (o *Orchestrator) loadForm() error {
	if o.cfg.AnswersPath != "" {
		a, err := headless.LoadAnswers(o.cfg.AnswersPath)
		if err != nil {
			return err
		}
		if o.provider == "" {
			o.provider = a.Provider
		}
		if a.Provider != o.provider {
			return fmt.Errorf("answers are for %s, session is for %s", a.Provider, o.provider)
		}
		o.answers = a
		o.form = wizard.NewMemoryForm(a.FormData)
		return nil
	}

	if o.provider == "" {
		o.provider = provisioning.TypeGitHub
	}
	if !o.provider.Valid() {
		return fmt.Errorf("unknown provider %q", o.provider)
	}
	data := wizard.DefaultFormData(o.provider)
	if o.resumed != nil {
		if mode := wizard.AuthMode(o.resumed.AuthMode); mode.Valid() {
			data.AuthMode = mode
		}
	}
	o.form = wizard.NewMemoryForm(data)
	return nil
}

func (o *Orchestrator) api() (API, error) {
	if o.cfg.API != nil {
		return o.cfg.API, nil
	}

	app := o.cfg.App
	if err := app.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	poll, _ := app.PollEvery()
	timeout, _ := app.Timeout()

	client, err := provisioning.NewClient(provisioning.ClientConfig{
		Server:       app.Server,
		Namespace:    app.Namespace,
		Token:        app.Token,
		Timeout:      timeout,
		PollInterval: poll,
		HTTPClient:   &http.Client{Transport: o.tracing.Transport(nil)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create provisioning client: %w", err)
	}
	return client, nil
}

func (o *Orchestrator) exit(r wizard.Result) {
	o.mu.Lock()
	o.result = &r
	o.mu.Unlock()
	logger.Info("Wizard %s (repository %q)", r.Outcome, r.Repository)
}

func planFor(steps []wizard.StepDescriptor) telemetry.Plan {
	plan := telemetry.Plan{Steps: make([]telemetry.PlannedStep, 0, len(steps))}
	for _, s := range steps {
		plan.Steps = append(plan.Steps, telemetry.PlannedStep{ID: string(s.ID), Title: s.Title})
	}
	return plan
}
