package provisioning

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/mark3labs/reposync/internal/logger"
)

const (
	maxResponseBytes    = 4 << 20
	maxConsecutiveFails = 5
)

// ClientConfig configures a Client.
type ClientConfig struct {
	Server       string        // Base URL, e.g. http://localhost:3000
	Namespace    string        // Target namespace (stack or org)
	Token        string        // Bearer token for the API (optional)
	Timeout      time.Duration // Per-request timeout (default 30s)
	PollInterval time.Duration // Job status poll interval (default 2s)
	HTTPClient   *http.Client  // Override transport (tests)
}

// Client talks to the provisioning apiserver over HTTP.
type Client struct {
	base         *url.URL
	namespace    string
	token        string
	http         *http.Client
	pollInterval time.Duration
}

// NewClient validates cfg and returns a Client.
func NewClient(cfg ClientConfig) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.Server, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid server URL %q", cfg.Server)
	}
	if cfg.Namespace == "" {
		return nil, fmt.Errorf("namespace is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = 2 * time.Second
	}

	return &Client{
		base:         base,
		namespace:    cfg.Namespace,
		token:        cfg.Token,
		http:         httpClient,
		pollInterval: poll,
	}, nil
}

// JobList is the list envelope for jobs.
type JobList struct {
	Items []Job `json:"items"`
}

// Get fetches a repository by name.
func (c *Client) Get(ctx context.Context, name string) (*Repository, error) {
	var out Repository
	if err := c.do(ctx, "get repository", http.MethodGet, c.path("repositories", name), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateOrUpdate creates the repository when name is empty (generating a name
// from the title) and replaces the existing resource otherwise.
func (c *Client) CreateOrUpdate(ctx context.Context, name string, repo Repository) (*Repository, error) {
	repo.APIVersion = APIVersion
	repo.Kind = "Repository"
	repo.Metadata.Namespace = c.namespace

	var out Repository
	if name == "" {
		repo.Metadata.Name = GenerateName(repo.Spec.Title)
		logger.Debug("Creating repository %s (type=%s)", repo.Metadata.Name, repo.Spec.Type)
		if err := c.do(ctx, "create repository", http.MethodPost, c.path("repositories"), repo, &out); err != nil {
			return nil, err
		}
		return &out, nil
	}

	repo.Metadata.Name = name
	logger.Debug("Updating repository %s", name)
	if err := c.do(ctx, "update repository", http.MethodPut, c.path("repositories", name), repo, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes a repository.
func (c *Client) Delete(ctx context.Context, name string) error {
	logger.Debug("Deleting repository %s", name)
	return c.do(ctx, "delete repository", http.MethodDelete, c.path("repositories", name), nil, nil)
}

// CreateJob queues a job for a repository.
func (c *Client) CreateJob(ctx context.Context, repository string, spec JobSpec) (*Job, error) {
	spec.Repository = repository
	var out Job
	if err := c.do(ctx, "create job", http.MethodPost, c.path("repositories", repository, "jobs"), spec, &out); err != nil {
		return nil, err
	}
	logger.Debug("Created %s job %s for %s", spec.Action, out.Metadata.Name, repository)
	return &out, nil
}

// GetJob fetches a job. Active jobs live under /jobs; once finished they move
// to the repository's job history, which is tried on 404.
func (c *Client) GetJob(ctx context.Context, repository, name string) (*Job, error) {
	var out Job
	err := c.do(ctx, "get job", http.MethodGet, c.path("jobs", name), nil, &out)
	if errors.Is(err, ErrNotFound) {
		err = c.do(ctx, "get job", http.MethodGet, c.path("repositories", repository, "jobs", name), nil, &out)
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListJobs returns the recent jobs of a repository.
func (c *Client) ListJobs(ctx context.Context, repository string) ([]Job, error) {
	var out JobList
	if err := c.do(ctx, "list jobs", http.MethodGet, c.path("repositories", repository, "jobs"), nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// WatchJob polls a job until it finishes or ctx is done. The first fetch is
// synchronous so an unknown job fails fast. Each distinct observation is sent
// on the channel, which is closed after the terminal one.
func (c *Client) WatchJob(ctx context.Context, repository, name string) (<-chan Job, error) {
	first, err := c.GetJob(ctx, repository, name)
	if err != nil {
		return nil, err
	}

	ch := make(chan Job, 1)
	go func() {
		defer close(ch)

		last := *first
		if !send(ctx, ch, last) || last.Status.State.Finished() {
			return
		}

		ticker := time.NewTicker(c.pollInterval)
		defer ticker.Stop()

		fails := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			job, err := c.GetJob(ctx, repository, name)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				fails++
				logger.Warn("Polling job %s failed (%d/%d): %v", name, fails, maxConsecutiveFails, err)
				if fails >= maxConsecutiveFails {
					lost := last
					lost.Status.State = JobError
					lost.Status.Message = fmt.Sprintf("lost track of job: %v", err)
					send(ctx, ch, lost)
					return
				}
				continue
			}
			fails = 0

			if changed(last, *job) {
				last = *job
				if !send(ctx, ch, last) {
					return
				}
			}
			if job.Status.State.Finished() {
				return
			}
		}
	}()
	return ch, nil
}

// Settings returns the instance provisioning settings.
func (c *Client) Settings(ctx context.Context) (*Settings, error) {
	var out Settings
	if err := c.do(ctx, "get settings", http.MethodGet, c.path("settings"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Stats returns resource counts used to decide whether a migration is needed.
func (c *Client) Stats(ctx context.Context) (*ResourceStats, error) {
	var out ResourceStats
	if err := c.do(ctx, "get stats", http.MethodGet, c.path("stats"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func send(ctx context.Context, ch chan<- Job, job Job) bool {
	select {
	case ch <- job:
		return true
	case <-ctx.Done():
		return false
	}
}

func changed(prev, next Job) bool {
	return prev.Status.State != next.Status.State ||
		prev.Status.Message != next.Status.Message ||
		prev.Status.Progress != next.Status.Progress ||
		!slices.Equal(prev.Status.Errors, next.Status.Errors)
}

func (c *Client) path(parts ...string) string {
	escaped := make([]string, 0, len(parts)+4)
	escaped = append(escaped, "apis", Group, Version, "namespaces", url.PathEscape(c.namespace))
	for _, p := range parts {
		escaped = append(escaped, url.PathEscape(p))
	}
	return "/" + strings.Join(escaped, "/")
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return &GenericError{Op: op, Err: fmt.Errorf("marshal request: %w", err)}
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return &GenericError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &GenericError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &GenericError{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeFailure(op, resp.StatusCode, data)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &GenericError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
