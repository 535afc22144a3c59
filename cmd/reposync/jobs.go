package main

import (
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/reposync/internal/headless"
	"github.com/mark3labs/reposync/internal/provisioning"
	"github.com/spf13/cobra"
)

var jobsFlags struct {
	job  string
	json bool
}

var jobsCmd = &cobra.Command{
	Use:   "jobs <repository>",
	Short: "Show the jobs of a repository",
	Long: `Fetch the current state of a repository's jobs once. With --job only that
job is shown, in full.`,
	Args: cobra.ExactArgs(1),
	RunE: runJobs,
}

func init() {
	jobsCmd.Flags().StringVarP(&jobsFlags.job, "job", "j", "", "Show a single job")
	jobsCmd.Flags().BoolVar(&jobsFlags.json, "json", false, "Print jobs as JSON")
}

func runJobs(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	timeout, _ := cfg.Timeout()

	client, err := provisioning.NewClient(provisioning.ClientConfig{
		Server:    cfg.Server,
		Namespace: cfg.Namespace,
		Token:     cfg.Token,
		Timeout:   timeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create provisioning client: %w", err)
	}

	out := headless.NewPrinter(os.Stdout)
	repository := args[0]

	if jobsFlags.job != "" {
		job, err := client.GetJob(cmd.Context(), repository, jobsFlags.job)
		if err != nil {
			return fmt.Errorf("failed to get job %s: %w", jobsFlags.job, err)
		}
		return out.JSON(job)
	}

	jobs, err := client.ListJobs(cmd.Context(), repository)
	if err != nil {
		return fmt.Errorf("failed to list jobs: %w", err)
	}
	if jobsFlags.json {
		return out.JSON(jobs)
	}
	if len(jobs) == 0 {
		out.Info("No jobs for %s.", repository)
		return nil
	}

	rows := make([][]string, 0, len(jobs))
	for _, j := range jobs {
		started := "-"
		if j.Status.Started > 0 {
			started = time.UnixMilli(j.Status.Started).Local().Format(time.DateTime)
		}
		rows = append(rows, []string{
			j.Metadata.Name,
			string(j.Spec.Action),
			string(j.Status.State),
			fmt.Sprintf("%.0f%%", j.Status.Progress),
			started,
			j.Status.Message,
		})
	}
	out.Table([]string{"JOB", "ACTION", "STATE", "PROGRESS", "STARTED", "MESSAGE"}, rows)
	return nil
}
