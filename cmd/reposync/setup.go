package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/x/editor"
	"github.com/mark3labs/reposync/internal/config"
	"github.com/mark3labs/reposync/internal/headless"
	"github.com/spf13/cobra"
)

var setupFlags struct {
	project bool
	force   bool
	yes     bool
	edit    bool
	token   string
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create reposync configuration file",
	Long: `Create a reposync configuration file with sensible defaults.

By default, creates a global config at ~/.config/reposync/reposync.yml.
Use --project to create a project-local config in the current directory.
The change is shown as a diff before it is written; --edit opens the
written file in $EDITOR.`,
	RunE: runSetup,
}

func init() {
	setupCmd.Flags().BoolVarP(&setupFlags.project, "project", "p", false, "Create config in current directory instead of global location")
	setupCmd.Flags().BoolVarP(&setupFlags.force, "force", "f", false, "Overwrite existing config file")
	setupCmd.Flags().BoolVarP(&setupFlags.yes, "yes", "y", false, "Write without asking for confirmation")
	setupCmd.Flags().BoolVarP(&setupFlags.edit, "edit", "e", false, "Open the config in $EDITOR after writing")
	setupCmd.Flags().StringVar(&setupFlags.token, "token", "", "API token to store in the config")
}

func runSetup(cmd *cobra.Command, args []string) error {
	targetPath := config.GlobalPath()
	if setupFlags.project {
		targetPath = config.ProjectPath()
	}

	if !setupFlags.force && fileExists(targetPath) {
		return fmt.Errorf("config file already exists at %s\n\nUse --force to overwrite", targetPath)
	}

	cfg := &config.Config{
		Server:         "http://localhost:3000",
		Namespace:      "default",
		Token:          setupFlags.token,
		PollInterval:   "2s",
		RequestTimeout: "30s",
		DataDir:        ".reposync",
		LogLevel:       "info",
		LogFormat:      "text",
		Telemetry:      config.TelemetryConfig{NATS: true},
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
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	diff, err := config.Diff(targetPath, cfg)
	if err != nil {
		return err
	}
	if diff == "" {
		fmt.Printf("Config at %s is up to date.\n", targetPath)
	} else {
		out := headless.NewPrinter(os.Stdout)
		fmt.Fprintln(out.Writer(), headless.Highlight(diff, "diff"))
		if !setupFlags.yes && !confirm(fmt.Sprintf("Write %s?", targetPath)) {
			fmt.Println("Config not written.")
			return nil
		}

		if setupFlags.project {
			err = config.WriteProject(cfg)
		} else {
			err = config.WriteGlobal(cfg)
		}
		if err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
		fmt.Printf("Config written to: %s\n", targetPath)
	}

	if setupFlags.edit {
		c, err := editor.Command("reposync", targetPath)
		if err != nil {
			return fmt.Errorf("failed to open editor: %w", err)
		}
		c.Stdin, c.Stdout, c.Stderr = os.Stdin, os.Stdout, os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("editor exited: %w", err)
		}
	}

	fmt.Println("\nRun 'reposync connect' to get started.")
	return nil
}

// confirm asks a yes/no question on stdin. Anything but y/yes is no.
func confirm(question string) bool {
	fmt.Printf("%s [y/N]: ", question)
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

// fileExists checks if a file exists (helper for setup command).
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
