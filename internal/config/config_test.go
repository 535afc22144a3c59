package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// isolate points XDG and the working directory at a fresh temp dir and clears
// the env vars Load reads.
func isolate(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	t.Chdir(tmpDir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "config"))
	for _, env := range envBindings {
		t.Setenv(env, "")
	}
	return tmpDir
}

func TestGlobalPath(t *testing.T) {
	tests := []struct {
		name        string
		xdgConfig   string
		wantContain string
	}{
		{
			name:        "with XDG_CONFIG_HOME set",
			xdgConfig:   "/custom/config",
			wantContain: "/custom/config/reposync/reposync.yml",
		},
		{
			name:        "without XDG_CONFIG_HOME",
			xdgConfig:   "",
			wantContain: ".config/reposync/reposync.yml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("XDG_CONFIG_HOME", tt.xdgConfig)

			got := GlobalPath()
			if tt.xdgConfig != "" {
				if got != tt.wantContain {
					t.Errorf("GlobalPath() = %v, want %v", got, tt.wantContain)
				}
				return
			}
			if !filepath.IsAbs(got) {
				t.Errorf("GlobalPath() should return absolute path, got %v", got)
			}
			if !strings.HasSuffix(got, tt.wantContain) {
				t.Errorf("GlobalPath() = %v, want suffix %v", got, tt.wantContain)
			}
		})
	}
}

func TestProjectPath(t *testing.T) {
	if got := ProjectPath(); got != "reposync.yml" {
		t.Errorf("ProjectPath() = %v, want reposync.yml", got)
	}
}

func TestExists(t *testing.T) {
	isolate(t)

	t.Run("no config exists", func(t *testing.T) {
		require.False(t, Exists())
	})

	t.Run("project config exists", func(t *testing.T) {
		require.NoError(t, os.WriteFile(ProjectPath(), []byte("server: http://x\n"), 0644))
		defer func() { _ = os.Remove(ProjectPath()) }()
		require.True(t, Exists())
	})

	t.Run("global config exists", func(t *testing.T) {
		require.NoError(t, WriteGlobal(&Config{Server: "http://global"}))
		defer func() { _ = os.Remove(GlobalPath()) }()
		require.True(t, Exists())
	})
}

func TestLoad_NoConfig(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "http://localhost:3000", cfg.Server)
	require.Equal(t, "default", cfg.Namespace)
	require.Equal(t, ".reposync", cfg.DataDir)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, "text", cfg.LogFormat)
	require.True(t, cfg.Telemetry.NATS)
	require.False(t, cfg.Telemetry.Tracing)

	poll, err := cfg.PollEvery()
	require.NoError(t, err)
	require.Equal(t, 2*time.Second, poll)
}

func TestLoad_Precedence(t *testing.T) {
	isolate(t)

	require.NoError(t, WriteGlobal(&Config{
		Server:       "http://global:3000",
		Namespace:    "global-ns",
		PollInterval: "5s",
		LogLevel:     "warn",
	}))
	require.NoError(t, os.WriteFile(ProjectPath(), []byte("namespace: project-ns\n"), 0644))
	t.Setenv("REPOSYNC_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "http://global:3000", cfg.Server, "global value survives")
	require.Equal(t, "project-ns", cfg.Namespace, "project overrides global")
	require.Equal(t, "debug", cfg.LogLevel, "env overrides files")
	poll, err := cfg.PollEvery()
	require.NoError(t, err)
	require.Equal(t, 5*time.Second, poll)
}

func TestLoad_NestedTelemetryEnv(t *testing.T) {
	isolate(t)
	t.Setenv("REPOSYNC_TELEMETRY_NATS", "false")
	t.Setenv("REPOSYNC_TELEMETRY_TRACING", "true")

	cfg, err := Load()
	require.NoError(t, err)
	require.False(t, cfg.Telemetry.NATS)
	require.True(t, cfg.Telemetry.Tracing)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := isolate(t)

	// t.Setenv restores the original value at cleanup; unset now so that
	// godotenv is allowed to populate it.
	t.Setenv("REPOSYNC_TOKEN", "placeholder")
	require.NoError(t, os.Unsetenv("REPOSYNC_TOKEN"))

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("REPOSYNC_TOKEN=from-dotenv\n"), 0600))

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "from-dotenv", cfg.Token)
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))
}

func TestWriteProject(t *testing.T) {
	isolate(t)

	cfg := &Config{
		Server:       "http://grafana:3000",
		Namespace:    "stacks-1",
		PollInterval: "1s",
		DataDir:      ".project",
		LogLevel:     "info",
		Telemetry:    TelemetryConfig{NATS: true},
	}
	require.NoError(t, WriteProject(cfg))

	data, err := os.ReadFile(ProjectPath())
	require.NoError(t, err)

	content := string(data)
	for _, field := range []string{
		"server: http://grafana:3000",
		"namespace: stacks-1",
		"poll_interval: 1s",
		"data_dir: .project",
		"nats: true",
	} {
		require.Contains(t, content, field)
	}
	require.NotContains(t, content, "token:", "empty token is omitted")

	info, err := os.Stat(ProjectPath())
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestDiff(t *testing.T) {
	isolate(t)

	cfg := &Config{Server: "http://grafana:3000", Namespace: "default"}
	diff, err := Diff(ProjectPath(), cfg)
	require.NoError(t, err)
	require.Contains(t, diff, "+server: http://grafana:3000")

	require.NoError(t, WriteProject(cfg))
	diff, err = Diff(ProjectPath(), cfg)
	require.NoError(t, err)
	require.Empty(t, diff, "unchanged config has no diff")

	cfg.Namespace = "stacks-2"
	diff, err = Diff(ProjectPath(), cfg)
	require.NoError(t, err)
	require.Contains(t, diff, "-namespace: default")
	require.Contains(t, diff, "+namespace: stacks-2")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:   "valid",
			config: Config{Server: "http://localhost:3000", Namespace: "default", PollInterval: "2s"},
		},
		{
			name:    "missing server",
			config:  Config{Namespace: "default"},
			wantErr: true,
		},
		{
			name:    "relative server",
			config:  Config{Server: "localhost:3000/api", Namespace: "default"},
			wantErr: true,
		},
		{
			name:    "missing namespace",
			config:  Config{Server: "http://localhost:3000"},
			wantErr: true,
		},
		{
			name:    "bad poll interval",
			config:  Config{Server: "http://localhost:3000", Namespace: "default", PollInterval: "soon"},
			wantErr: true,
		},
		{
			name:    "negative timeout",
			config:  Config{Server: "http://localhost:3000", Namespace: "default", RequestTimeout: "-1s"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Config.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
