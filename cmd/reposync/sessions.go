package main

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/mark3labs/reposync/internal/headless"
	"github.com/mark3labs/reposync/internal/logger"
	"github.com/mark3labs/reposync/internal/nats"
	"github.com/mark3labs/reposync/internal/session"
	"github.com/spf13/cobra"
)

var sessionsFlags struct {
	json bool
	all  bool
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List journaled wizard sessions",
	Long: `List wizard sessions recorded in the data directory with the step they
stopped at. Unfinished sessions can be continued with
'reposync connect --resume <session>'.`,
	Args: cobra.NoArgs,
	RunE: runSessions,
}

func init() {
	sessionsCmd.Flags().BoolVar(&sessionsFlags.json, "json", false, "Print sessions as JSON")
	sessionsCmd.Flags().BoolVarP(&sessionsFlags.all, "all", "a", false, "Include finished and cancelled sessions")
}

func runSessions(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.Configure(cfg.LogLevel, cfg.LogFormat, cfg.LogFile); err != nil {
		return err
	}

	bus, err := nats.Open(cmd.Context(), cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open event store: %w", err)
	}
	defer func() { _ = bus.Close() }()

	states, err := session.NewStore(bus.JetStream, bus.Stream).ListSessions(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	shown := states[:0]
	for _, st := range states {
		if sessionsFlags.all || !st.Finished() {
			shown = append(shown, st)
		}
	}
	sort.Slice(shown, func(i, j int) bool { return shown[i].UpdatedAt.After(shown[j].UpdatedAt) })

	out := headless.NewPrinter(os.Stdout)
	if sessionsFlags.json {
		return out.JSON(shown)
	}
	if len(shown) == 0 {
		out.Info("No sessions found.")
		return nil
	}

	rows := make([][]string, 0, len(shown))
	for _, st := range shown {
		state := st.Outcome
		if state == "" {
			state = "in progress"
		}
		repo := st.Repository
		if repo == "" {
			repo = "-"
		}
		rows = append(rows, []string{st.Session, st.Provider, st.ActiveStep, repo, state, st.UpdatedAt.Local().Format(time.DateTime)})
	}
	out.Table([]string{"SESSION", "PROVIDER", "STEP", "REPOSITORY", "STATE", "UPDATED"}, rows)
	return nil
}
