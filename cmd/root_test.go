package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"assay/internal/cli"
	"assay/internal/config"
	"assay/internal/runner"
	"assay/pkg/logging"

	"github.com/spf13/cobra"
)

func TestSetVersion(t *testing.T) {
	testVersion := "1.2.3-test"
	originalVersion := rootCmd.Version
	defer func() { rootCmd.Version = originalVersion }()

	SetVersion(testVersion)

	if GetVersion() != testVersion {
		t.Errorf("Expected version to be %s, got %s", testVersion, GetVersion())
	}
}

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "assay" {
		t.Errorf("Expected Use to be 'assay', got %s", rootCmd.Use)
	}

	if rootCmd.Short == "" {
		t.Error("Expected Short description to be set")
	}

	if rootCmd.Long == "" {
		t.Error("Expected Long description to be set")
	}

	if !rootCmd.SilenceUsage {
		t.Error("Expected SilenceUsage to be true")
	}

	if rootCmd.PersistentFlags().Lookup("config-path") == nil {
		t.Error("Expected persistent --config-path flag")
	}
}

func TestVersionTemplate(t *testing.T) {
	testCmd := &cobra.Command{
		Use:     "test",
		Version: "1.0.0",
	}
	testCmd.SetVersionTemplate(`{{printf "assay version %s\n" .Version}}`)

	var buf bytes.Buffer
	testCmd.SetOut(&buf)
	testCmd.SetArgs([]string{"--version"})
	if err := testCmd.Execute(); err != nil {
		t.Fatalf("Error executing version command: %v", err)
	}

	expected := "assay version 1.0.0\n"
	if buf.String() != expected {
		t.Errorf("Expected version output %q, got %q", expected, buf.String())
	}
}

func TestSubcommands(t *testing.T) {
	expectedCommands := []string{"version", "run", "validate", "serve", "mcp", "mock-target", "results"}
	foundCommands := make(map[string]bool)

	for _, cmd := range rootCmd.Commands() {
		foundCommands[cmd.Name()] = true
	}

	for _, expected := range expectedCommands {
		if !foundCommands[expected] {
			t.Errorf("Expected subcommand %s to be registered", expected)
		}
	}
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"general", errors.New("boom"), ExitCodeError},
		{"run failed", &cli.RunFailedError{Suite: "s", Status: runner.StatusFailed}, ExitCodeRunFailed},
		{"wrapped run failed", fmt.Errorf("x: %w", &cli.RunFailedError{}), ExitCodeRunFailed},
		{"invalid suite", &cli.InvalidSuiteError{Paths: []string{"a.yaml"}}, ExitCodeInvalidSuite},
		{"wrapped invalid", fmt.Errorf("x: %w", &cli.InvalidSuiteError{}), ExitCodeInvalidSuite},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := getExitCode(tt.err); got != tt.want {
				t.Errorf("getExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	original := configPath
	defer func() { configPath = original }()

	configPath = t.TempDir()
	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.Storage.Path != filepath.Join(configPath, "data") {
		t.Errorf("Expected default storage path under config dir, got %s", cfg.Storage.Path)
	}

	if err := os.WriteFile(filepath.Join(configPath, "config.yaml"), []byte("server:\n  port: -1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadConfig(); err == nil {
		t.Error("Expected error for invalid config")
	}
}

func TestInitLogging(t *testing.T) {
	var buf bytes.Buffer

	if err := initLogging(config.LoggingConfig{Level: "loud"}, false, false, &buf); err == nil {
		t.Error("Expected error for unknown level")
	}

	if err := initLogging(config.LoggingConfig{Level: "warn"}, true, true, &buf); err != nil {
		t.Fatalf("initLogging failed: %v", err)
	}
	logging.Debug("Test", "debug enabled")
	if !strings.Contains(buf.String(), `"msg":"debug enabled"`) {
		t.Errorf("Expected JSON debug record, got %q", buf.String())
	}

	buf.Reset()
	if err := initLogging(config.LoggingConfig{Level: "info", Format: "text"}, false, true, &buf); err != nil {
		t.Fatalf("initLogging failed: %v", err)
	}
	logging.Info("Test", "plain")
	if !strings.Contains(buf.String(), "msg=plain") {
		t.Errorf("Expected text record, got %q", buf.String())
	}
}
