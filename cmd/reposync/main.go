package main

import (
	"context"
	"os"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/fang"
	"github.com/mark3labs/reposync/internal/config"
	"github.com/mark3labs/reposync/internal/logger"
	"github.com/mark3labs/reposync/internal/tui/theme"
	"github.com/spf13/cobra"
)

const logoText = "▛▀▖▛▀▘▛▀▖▞▀▖▞▀▖▌ ▌▛▖▌▞▀▖\n▙▄▘▙▄ ▙▄▘▌ ▌▚▄ ▝▞ ▌▝▌▌  \n▌▚ ▌  ▌  ▌ ▌▖ ▌ ▌ ▌ ▌▌ ▖\n▘ ▘▀▀▘▘  ▝▀ ▝▀  ▘ ▘ ▘▝▀ "

// Version set via ldflags during build
var version = "dev"

var rootFlags struct {
	server    string
	namespace string
	dataDir   string
	logLevel  string
}

func main() {
	// Ensure logger is closed on exit
	defer func() { _ = logger.Close() }()

	if err := fang.Execute(context.Background(), rootCmd, fang.WithVersion(version)); err != nil {
		logger.Error("Command execution failed: %v", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "reposync",
	Short: "Connect an instance to a repository and keep them in sync",
}

// renderLogo shades each logo line from the primary to the secondary color.
func renderLogo() string {
	t := theme.Current()
	lines := strings.Split(logoText, "\n")
	for i, line := range lines {
		color := theme.InterpolateColor(t.Primary, t.Secondary, float64(i)/float64(len(lines)-1))
		lines[i] = lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render(line)
	}
	return strings.Join(lines, "\n")
}

// loadConfig reads the layered configuration and applies the root flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if rootFlags.server != "" {
		cfg.Server = rootFlags.server
	}
	if rootFlags.namespace != "" {
		cfg.Namespace = rootFlags.namespace
	}
	if rootFlags.dataDir != "" {
		cfg.DataDir = rootFlags.dataDir
	}
	if rootFlags.logLevel != "" {
		cfg.LogLevel = rootFlags.logLevel
	}
	return cfg, nil
}

func init() {
	rootCmd.Long = renderLogo() + `

reposync connects an instance to a GitHub, GitLab, Bitbucket, git or local
repository through the provisioning API and runs the first synchronization.
The wizard runs as a full-screen TUI or headless from an answers file, and
every step is journaled in an embedded NATS JetStream so an interrupted run
can be resumed.`

	rootCmd.PersistentFlags().StringVar(&rootFlags.server, "server", "", "Provisioning API base URL")
	rootCmd.PersistentFlags().StringVar(&rootFlags.namespace, "namespace", "", "Target namespace")
	rootCmd.PersistentFlags().StringVar(&rootFlags.dataDir, "data-dir", "", "Data directory for the session journal")
	rootCmd.PersistentFlags().StringVar(&rootFlags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(jobsCmd)
}
