package headless

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/mark3labs/reposync/internal/provisioning"
	"github.com/mark3labs/reposync/internal/testfixtures"
	"github.com/mark3labs/reposync/internal/wizard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	api    *testfixtures.MockProvisioning
	nav    *testfixtures.RecordingNavigator
	out    *bytes.Buffer
	runner *Runner
}

func newFixture(t *testing.T, opts wizard.Options, data wizard.FormData, setup ...func(*testfixtures.MockProvisioning)) *fixture {
	t.Helper()
	opts.Provider = data.Repository.Type

	api := testfixtures.NewMockProvisioning()
	for _, fn := range setup {
		fn(api)
	}
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

	out := &bytes.Buffer{}
	return &fixture{
		api: api,
		nav: nav,
		out: out,
		runner: &Runner{
			Engine:     engine,
			Form:       form,
			Out:        NewPlainPrinter(out),
			JobTimeout: 2 * time.Second,
		},
	}
}

func githubForm() wizard.FormData {
	data := wizard.DefaultFormData(provisioning.TypeGitHub)
	data.Repository.URL = "https://github.com/grafana/dashboards"
	data.Repository.Token = "ghp_secret"
	return data
}

func TestRunner_CompletesWizard(t *testing.T) {
	f := newFixture(t, wizard.Options{}, githubForm())
	f.runner.Verbose = true

	require.NoError(t, f.runner.Run(context.Background()))

	out := f.out.String()
	assert.Contains(t, out, "Created repository repo-1")
	assert.Contains(t, out, "Synchronization finished")
	assert.Contains(t, out, `"url": "https://github.com/grafana/dashboards"`)
	assert.NotContains(t, out, "ghp_secret", "token is redacted")
	assert.NotContains(t, out, "\x1b[", "plain printer emits no escapes")

	require.Len(t, f.nav.Results(), 1)
	assert.Equal(t, wizard.OutcomeFinished, f.nav.Results()[0].Outcome)
	assert.Equal(t, 3, f.api.SaveCalls())
	assert.Equal(t, 1, f.api.CreateJobCalls())
}

func TestRunner_BackgroundSync(t *testing.T) {
	f := newFixture(t, wizard.Options{CanSkipSynchronize: true}, githubForm())

	require.NoError(t, f.runner.Run(context.Background()))

	assert.Contains(t, f.out.String(), "Synchronization continues in the background")
	assert.NotContains(t, f.out.String(), "Synchronizing")
	assert.Equal(t, wizard.OutcomeFinished, f.nav.Results()[0].Outcome)
	assert.Equal(t, 1, f.api.CreateJobCalls())
	assert.Zero(t, f.api.WatchCalls())
}

func TestRunner_ValidationFailure(t *testing.T) {
	data := githubForm()
	data.Repository.URL = ""
	f := newFixture(t, wizard.Options{}, data)

	err := f.runner.Run(context.Background())

	require.ErrorIs(t, err, wizard.ErrValidation)
	assert.Contains(t, f.out.String(), "repository.url: Repository URL is required")
	assert.Zero(t, f.api.SaveCalls())
	assert.Empty(t, f.nav.Results())
}

func TestRunner_ServerFieldErrorReportedInline(t *testing.T) {
	f := newFixture(t, wizard.Options{}, githubForm(), func(api *testfixtures.MockProvisioning) {
		api.SaveError = &provisioning.FetchError{
			StatusCode: 400,
			Title:      "Invalid repository",
			Fields:     []provisioning.FieldError{{Field: "spec.github.branch", Detail: "branch not found"}},
		}
	})

	err := f.runner.Run(context.Background())

	require.ErrorIs(t, err, wizard.ErrValidation)
	assert.Contains(t, err.Error(), "Invalid repository")
	assert.Contains(t, f.out.String(), "repository.branch: branch not found")
}

func TestRunner_ServerFailureReportsBanner(t *testing.T) {
	f := newFixture(t, wizard.Options{}, githubForm(), func(api *testfixtures.MockProvisioning) {
		api.SaveError = &provisioning.FetchError{
			StatusCode: 422,
			Title:      "Invalid repository",
			Fields:     []provisioning.FieldError{{Field: "spec.title", Detail: "title already used"}},
		}
	})

	err := f.runner.Run(context.Background())

	require.Error(t, err)
	assert.NotErrorIs(t, err, wizard.ErrValidation)
	assert.Contains(t, err.Error(), "Invalid repository")
	assert.Contains(t, err.Error(), "title already used")
}

func TestRunner_JobFailureCancels(t *testing.T) {
	f := newFixture(t, wizard.Options{}, githubForm(), func(api *testfixtures.MockProvisioning) {
		api.JobScript = []provisioning.JobState{provisioning.JobWorking, provisioning.JobError}
		api.JobMessage = "clone failed"
	})
	f.runner.CancelOnFailure = true

	err := f.runner.Run(context.Background())

	require.ErrorIs(t, err, ErrJobFailed)
	assert.Contains(t, err.Error(), "clone failed")
	assert.Contains(t, f.out.String(), "error: clone failed")
	assert.Equal(t, []string{"repo-1"}, f.api.Deleted())
	require.Len(t, f.nav.Results(), 1)
	assert.Equal(t, wizard.OutcomeCancelled, f.nav.Results()[0].Outcome)
}

func TestRunner_JobTimeout(t *testing.T) {
	f := newFixture(t, wizard.Options{}, githubForm(), func(api *testfixtures.MockProvisioning) {
		api.JobScript = []provisioning.JobState{provisioning.JobWorking}
	})
	f.runner.JobTimeout = 50 * time.Millisecond

	err := f.runner.Run(context.Background())

	require.ErrorContains(t, err, "did not finish within 50ms")
	assert.Empty(t, f.api.Deleted())
}

func TestHighlight(t *testing.T) {
	assert.Equal(t, "plain", Highlight("plain", "no-such-language"))

	out := Highlight(`{"a": 1}`, "json")
	assert.Contains(t, out, "\x1b[")
	assert.Contains(t, ansi.Strip(out), `"a"`)
}

func TestPrinter_Table(t *testing.T) {
	out := &bytes.Buffer{}
	NewPlainPrinter(out).Table([]string{"JOB", "STATE"}, [][]string{{"job-1", "success"}, {"job-2", "error"}})

	text := out.String()
	assert.NotContains(t, text, "\x1b[")
	assert.Contains(t, text, "JOB")
	assert.Contains(t, text, "job-2")
	assert.Contains(t, text, "╭", "rounded border")
}
