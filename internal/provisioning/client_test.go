package provisioning

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const basePath = "/apis/provisioning.grafana.app/v0alpha1/namespaces/default"

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(ClientConfig{
		Server:       srv.URL,
		Namespace:    "default",
		Token:        "secret",
		PollInterval: 5 * time.Millisecond,
	})
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(ClientConfig{Server: "not a url", Namespace: "default"})
	require.Error(t, err)

	_, err = NewClient(ClientConfig{Server: "http://localhost:3000"})
	require.Error(t, err)

	c, err := NewClient(ClientConfig{Server: "http://localhost:3000/", Namespace: "default"})
	require.NoError(t, err)
	require.Equal(t, 2*time.Second, c.pollInterval)
	require.Equal(t, "http://localhost:3000", c.base.String())
}

func TestCreateOrUpdate_CreatePostsGeneratedName(t *testing.T) {
	var got Repository
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, basePath+"/repositories", r.URL.Path)
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusCreated, got)
	}))

	out, err := c.CreateOrUpdate(context.Background(), "", Repository{
		Spec: RepositorySpec{Title: "Grafana Dashboards", Type: TypeGitHub},
	})
	require.NoError(t, err)

	require.Equal(t, APIVersion, got.APIVersion)
	require.Equal(t, "Repository", got.Kind)
	require.Equal(t, "default", got.Metadata.Namespace)
	require.True(t, strings.HasPrefix(got.Metadata.Name, "grafana-dashboards-"), got.Metadata.Name)
	require.Equal(t, got.Metadata.Name, out.Metadata.Name)
}

func TestCreateOrUpdate_UpdatePutsByName(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, basePath+"/repositories/r1", r.URL.Path)
		var repo Repository
		require.NoError(t, json.NewDecoder(r.Body).Decode(&repo))
		require.Equal(t, "r1", repo.Metadata.Name)
		writeJSON(w, http.StatusOK, repo)
	}))

	out, err := c.CreateOrUpdate(context.Background(), "r1", Repository{Spec: RepositorySpec{Title: "x"}})
	require.NoError(t, err)
	require.Equal(t, "r1", out.Metadata.Name)
}

func TestCreateOrUpdate_FieldErrors(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"kind":    "Status",
			"message": "Repository is invalid",
			"reason":  "Invalid",
			"details": map[string]any{
				"causes": []map[string]string{
					{"field": "spec.github.branch", "message": "branch not found", "reason": "FieldValueInvalid"},
				},
			},
		})
	}))

	_, err := c.CreateOrUpdate(context.Background(), "", Repository{Spec: RepositorySpec{Title: "x"}})
	require.Error(t, err)

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	require.Equal(t, http.StatusUnprocessableEntity, fe.StatusCode)
	require.Equal(t, "Invalid", fe.Title)
	require.Equal(t, "Repository is invalid", fe.Message)

	fields := ExtractFieldErrors(err)
	require.Len(t, fields, 1)
	require.Equal(t, "spec.github.branch", fields[0].Field)
	require.Equal(t, "branch not found", fields[0].Detail)
}

func TestDelete(t *testing.T) {
	var called bool
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, basePath+"/repositories/r1", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))

	require.NoError(t, c.Delete(context.Background(), "r1"))
	require.True(t, called)
}

func TestDelete_NotFound(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"kind": "Status", "reason": "NotFound", "message": "not here"})
	}))

	err := c.Delete(context.Background(), "r1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestTransportFailureIsGeneric(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c, err := NewClient(ClientConfig{Server: srv.URL, Namespace: "default"})
	require.NoError(t, err)

	err = c.Delete(context.Background(), "r1")
	var ge *GenericError
	require.True(t, errors.As(err, &ge))
	require.Equal(t, "delete repository", ge.Op)
	require.Nil(t, ExtractFieldErrors(err))
}

func TestCreateJob(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, basePath+"/repositories/r1/jobs", r.URL.Path)
		var spec JobSpec
		require.NoError(t, json.NewDecoder(r.Body).Decode(&spec))
		require.Equal(t, ActionMigrate, spec.Action)
		require.Equal(t, "r1", spec.Repository)
		require.True(t, spec.Migrate.History)
		writeJSON(w, http.StatusAccepted, Job{Metadata: ObjectMeta{Name: "job-1"}, Spec: spec})
	}))

	job, err := c.CreateJob(context.Background(), "r1", JobSpec{
		Action:  ActionMigrate,
		Migrate: &MigrateJobOptions{History: true},
	})
	require.NoError(t, err)
	require.Equal(t, "job-1", job.Metadata.Name)
}

func TestGetJob_FallsBackToHistory(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case basePath + "/jobs/job-1":
			writeJSON(w, http.StatusNotFound, map[string]any{"reason": "NotFound", "message": "gone"})
		case basePath + "/repositories/r1/jobs/job-1":
			writeJSON(w, http.StatusOK, Job{Metadata: ObjectMeta{Name: "job-1"}, Status: JobStatus{State: JobSuccess}})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	job, err := c.GetJob(context.Background(), "r1", "job-1")
	require.NoError(t, err)
	require.Equal(t, JobSuccess, job.Status.State)
}

func TestWatchJob_EmitsUntilFinished(t *testing.T) {
	var mu sync.Mutex
	states := []JobState{JobPending, JobPending, JobWorking, JobSuccess}
	calls := 0

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		idx := calls
		if idx >= len(states) {
			idx = len(states) - 1
		}
		calls++
		mu.Unlock()
		writeJSON(w, http.StatusOK, Job{Metadata: ObjectMeta{Name: "job-1"}, Status: JobStatus{State: states[idx]}})
	}))

	ch, err := c.WatchJob(context.Background(), "r1", "job-1")
	require.NoError(t, err)

	var seen []JobState
	for job := range ch {
		seen = append(seen, job.Status.State)
	}
	// Duplicate pending observation is collapsed.
	require.Equal(t, []JobState{JobPending, JobWorking, JobSuccess}, seen)
}

func TestWatchJob_EmitsChangedErrorText(t *testing.T) {
	var mu sync.Mutex
	statuses := []JobStatus{
		{State: JobWorking, Errors: []string{"dashboards/a.json: invalid"}},
		{State: JobWorking, Errors: []string{"dashboards/a.json: invalid"}},
		{State: JobWorking, Errors: []string{"dashboards/b.json: invalid"}},
		{State: JobWarning, Errors: []string{"dashboards/b.json: invalid"}},
	}
	calls := 0

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		idx := min(calls, len(statuses)-1)
		calls++
		mu.Unlock()
		writeJSON(w, http.StatusOK, Job{Metadata: ObjectMeta{Name: "job-1"}, Status: statuses[idx]})
	}))

	ch, err := c.WatchJob(context.Background(), "r1", "job-1")
	require.NoError(t, err)

	var seen [][]string
	for job := range ch {
		seen = append(seen, job.Status.Errors)
	}
	require.Equal(t, [][]string{
		{"dashboards/a.json: invalid"},
		{"dashboards/b.json: invalid"},
		{"dashboards/b.json: invalid"},
	}, seen)
}

func TestWatchJob_UnknownJobFailsFast(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"reason": "NotFound", "message": "no job"})
	}))

	_, err := c.WatchJob(context.Background(), "r1", "job-1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestWatchJob_LostTrackAfterRepeatedFailures(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			writeJSON(w, http.StatusOK, Job{Metadata: ObjectMeta{Name: "job-1"}, Status: JobStatus{State: JobWorking}})
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))

	ch, err := c.WatchJob(context.Background(), "r1", "job-1")
	require.NoError(t, err)

	var last Job
	for job := range ch {
		last = job
	}
	require.Equal(t, JobError, last.Status.State)
	require.Contains(t, last.Status.Message, "lost track of job")
}

func TestWatchJob_StopsOnCancel(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, Job{Metadata: ObjectMeta{Name: "job-1"}, Status: JobStatus{State: JobWorking}})
	}))

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := c.WatchJob(ctx, "r1", "job-1")
	require.NoError(t, err)

	first := <-ch
	require.Equal(t, JobWorking, first.Status.State)
	cancel()

	select {
	case _, ok := <-ch:
		for ok {
			_, ok = <-ch
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watch channel not closed after cancel")
	}
}

func TestSettingsAndStats(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case basePath + "/settings":
			writeJSON(w, http.StatusOK, Settings{
				LegacyStorage: true,
				Items:         []RepositoryView{{Name: "other", Target: TargetInstance}},
			})
		case basePath + "/stats":
			writeJSON(w, http.StatusOK, ResourceStats{
				Instance: []ResourceCount{{Group: "dashboard.grafana.app", Resource: "dashboards", Count: 7}},
				Managed:  []ManagerStats{{ID: "other", Stats: []ResourceCount{{Count: 3}}}},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	settings, err := c.Settings(context.Background())
	require.NoError(t, err)
	require.True(t, settings.LegacyStorage)
	require.True(t, settings.HasInstanceTarget("mine"))
	require.False(t, settings.HasInstanceTarget("other"))

	stats, err := c.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 4, stats.UnmanagedCount())
}

func TestListJobs(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, basePath+"/repositories/r1/jobs", r.URL.Path)
		writeJSON(w, http.StatusOK, JobList{Items: []Job{
			{Metadata: ObjectMeta{Name: "a"}, Status: JobStatus{State: JobSuccess}},
			{Metadata: ObjectMeta{Name: "b"}, Status: JobStatus{State: JobError}},
		}})
	}))

	jobs, err := c.ListJobs(context.Background(), "r1")
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	require.Equal(t, "b", jobs[1].Metadata.Name)
}
