// Package headless drives the onboarding wizard without a terminal UI. The
// answers file supplies every form value up front; the runner presses Next
// until the wizard exits and waits for the synchronization job in between.
package headless

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/reposync/internal/provisioning"
	"github.com/mark3labs/reposync/internal/wizard"
	"gopkg.in/yaml.v3"
)

// Answers is the decoded answers file. Form values are inlined at the top
// level next to the run options:
//
//	provider: github
//	auth_mode: pat
//	repository:
//	  url: https://github.com/grafana/dashboards
//	  token: ${GITHUB_TOKEN}
//	skip_synchronize: true
type Answers struct {
	Provider provisioning.RepositoryType `yaml:"provider"`

	wizard.FormData `yaml:",inline"`

	// SkipSynchronize overrides the configured background-sync behaviour
	// when set.
	SkipSynchronize *bool `yaml:"skip_synchronize"`
	// CancelOnFailure deletes a created repository when the run fails.
	CancelOnFailure bool `yaml:"cancel_on_failure"`
	// JobTimeout bounds the wait for the synchronization job.
	JobTimeout time.Duration `yaml:"job_timeout"`
}

// LoadAnswers reads and parses an answers file.
func LoadAnswers(path string) (*Answers, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read answers file: %w", err)
	}
	a, err := ParseAnswers(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return a, nil
}

// ParseAnswers decodes an answers document. Unset form values keep the
// defaults of the provider; ${VAR} references are expanded from the
// environment in the URL, token and connection.
func ParseAnswers(data []byte) (*Answers, error) {
	var head struct {
		Provider provisioning.RepositoryType `yaml:"provider"`
	}
	if err := yaml.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("failed to parse answers: %w", err)
	}
	if head.Provider == "" {
		return nil, errors.New("provider is required")
	}
	if !head.Provider.Valid() {
		return nil, fmt.Errorf("unknown provider %q", head.Provider)
	}

	a := &Answers{
		Provider:   head.Provider,
		FormData:   wizard.DefaultFormData(head.Provider),
		JobTimeout: 10 * time.Minute,
	}
	if err := yaml.Unmarshal(data, a); err != nil {
		return nil, fmt.Errorf("failed to parse answers: %w", err)
	}

	// The provider decides the repository type.
	a.Repository.Type = a.Provider
	if a.AuthMode == "" {
		a.AuthMode = wizard.AuthPAT
	}
	a.Repository.URL = os.ExpandEnv(a.Repository.URL)
	a.Repository.Token = os.ExpandEnv(a.Repository.Token)
	a.Repository.Connection = os.ExpandEnv(a.Repository.Connection)

	if a.JobTimeout <= 0 {
		return nil, errors.New("job_timeout must be positive")
	}
	return a, nil
}
