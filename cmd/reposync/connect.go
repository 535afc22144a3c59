package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/reposync/internal/orchestrator"
	"github.com/mark3labs/reposync/internal/provisioning"
	"github.com/spf13/cobra"
)

var connectFlags struct {
	provider       string
	session        string
	resume         string
	answers        string
	headless       bool
	backgroundSync bool
	forceCancel    bool
	verbose        bool
}

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Run the repository onboarding wizard",
	Long: `Run the repository onboarding wizard.

The wizard walks through choosing an authentication method, connecting the
repository, choosing what to synchronize, running the first synchronization
and the final settings. With --headless the answers come from a YAML file and
progress is printed line by line.

Every step is journaled; an interrupted run continues with --resume <session>.`,
	Example: `  reposync connect --provider github
  reposync connect --headless --answers answers.yml
  reposync connect --resume d1q8m3p0v4bc73a0f9ng`,
	RunE: runConnect,
}

func init() {
	connectCmd.Flags().StringVarP(&connectFlags.provider, "provider", "p", "", "Repository type (github, gitlab, bitbucket, git, local)")
	connectCmd.Flags().StringVar(&connectFlags.session, "session", "", "Session ID (default: generated)")
	connectCmd.Flags().StringVar(&connectFlags.resume, "resume", "", "Resume the given session")
	connectCmd.Flags().StringVarP(&connectFlags.answers, "answers", "a", "", "Answers file for headless mode")
	connectCmd.Flags().BoolVar(&connectFlags.headless, "headless", false, "Run without TUI from an answers file")
	connectCmd.Flags().BoolVar(&connectFlags.backgroundSync, "background-sync", false, "Let the first synchronization run in the background")
	connectCmd.Flags().BoolVar(&connectFlags.forceCancel, "force-cancel", false, "Offer Cancel instead of Previous on every step")
	connectCmd.Flags().BoolVarP(&connectFlags.verbose, "verbose", "v", false, "Print requests and logs in headless mode")
	connectCmd.MarkFlagsMutuallyExclusive("session", "resume")
}

func runConnect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	provider := provisioning.RepositoryType(connectFlags.provider)
	if provider != "" && !provider.Valid() {
		return fmt.Errorf("unknown provider %q", connectFlags.provider)
	}

	sessionID := connectFlags.session
	if connectFlags.resume != "" {
		sessionID = connectFlags.resume
	}

	orch, err := orchestrator.New(cmd.Context(), orchestrator.Config{
		App:                cfg,
		Provider:           provider,
		Session:            sessionID,
		Resume:             connectFlags.resume != "",
		Headless:           connectFlags.headless || cfg.Headless,
		AnswersPath:        connectFlags.answers,
		ForceCancel:        connectFlags.forceCancel,
		CanSkipSynchronize: connectFlags.backgroundSync,
		Verbose:            connectFlags.verbose,
	})
	if err != nil {
		return fmt.Errorf("failed to create orchestrator: %w", err)
	}

	// Ensure cleanup always runs using defer
	defer func() {
		if err := orch.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", err)
		}
	}()

	if err := orch.Start(); err != nil {
		return fmt.Errorf("failed to start wizard: %w", err)
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		<-sigChan
		fmt.Fprintf(os.Stderr, "\nShutting down; resume with: reposync connect --resume %s\n", orch.Session())
		if err := orch.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", err)
		}
		os.Exit(130)
	}()

	if err := orch.Run(); err != nil {
		return fmt.Errorf("wizard failed (session %s): %w", orch.Session(), err)
	}
	return nil
}
