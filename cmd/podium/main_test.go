package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type commandResult struct {
	stdout string
	stderr string
	err    error
}

func runCommand(t *testing.T, databasePath string, args ...string) commandResult {
	t.Helper()
	rootCmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(append([]string{
		"--env-file", "",
		"--database-driver", "sqlite",
		"--database-dsn", databasePath,
		"--log-level", "error",
	}, args...))
	err := rootCmd.Execute()
	return commandResult{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func mustRun(t *testing.T, databasePath string, args ...string) string {
	t.Helper()
	result := runCommand(t, databasePath, args...)
	if result.err != nil {
		t.Fatalf("command %v failed: %v (stderr %q)", args, result.err, result.stderr)
	}
	return result.stdout
}

func TestCommandsRunVotingScenario(t *testing.T) {
	databasePath := filepath.Join(t.TempDir(), "podium.db")

	mustRun(t, databasePath, "migrate")
	mustRun(t, databasePath, "category", "add", "Music")
	mustRun(t, databasePath, "competitor", "add", "Music", "Band1")
	mustRun(t, databasePath, "competitor", "add", "Music", "Band2")
	mustRun(t, databasePath, "vote", "Music", "Band1")
	if output := mustRun(t, databasePath, "vote", "Music", "Band1"); output != "Band1: 2\n" {
		t.Fatalf("unexpected vote output %q", output)
	}
	mustRun(t, databasePath, "vote", "Music", "Band2")

	if output := mustRun(t, databasePath, "results", "Music"); output != "Band1\t2\nBand2\t1\n" {
		t.Fatalf("unexpected results %q", output)
	}
	if output := mustRun(t, databasePath, "winner", "Music"); output != "Band1 (2 votes)\n" {
		t.Fatalf("unexpected winner %q", output)
	}
	if output := mustRun(t, databasePath, "competitor", "list", "Music"); output != "Band1\nBand2\n" {
		t.Fatalf("unexpected competitors %q", output)
	}

	mustRun(t, databasePath, "category", "remove", "Music")
	if output := mustRun(t, databasePath, "category", "list"); output != "" {
		t.Fatalf("expected no categories, got %q", output)
	}
}

func TestCommandsReportRejectionsAsWarnings(t *testing.T) {
	databasePath := filepath.Join(t.TempDir(), "podium.db")
	mustRun(t, databasePath, "category", "add", "Music")

	duplicate := runCommand(t, databasePath, "category", "add", "Music")
	if duplicate.err != nil {
		t.Fatalf("expected duplicate to be a warning, got %v", duplicate.err)
	}
	if !strings.HasPrefix(duplicate.stderr, "warning: ") {
		t.Fatalf("expected warning on stderr, got %q", duplicate.stderr)
	}

	winner := runCommand(t, databasePath, "winner", "Music")
	if winner.err != nil || !strings.Contains(winner.stderr, "no competitors") {
		t.Fatalf("expected no competitors warning, got err %v stderr %q", winner.err, winner.stderr)
	}

	vote := runCommand(t, databasePath, "vote", "Music", "Ghost")
	if vote.err != nil || !strings.HasPrefix(vote.stderr, "warning: ") {
		t.Fatalf("expected not found warning, got err %v stderr %q", vote.err, vote.stderr)
	}
}

func TestCommandsFailOnInvalidInput(t *testing.T) {
	databasePath := filepath.Join(t.TempDir(), "podium.db")

	result := runCommand(t, databasePath, "category", "add", " ")
	if result.err == nil {
		t.Fatalf("expected invalid name to fail the command")
	}
}

func TestCommandsRequireDatabaseDSN(t *testing.T) {
	t.Setenv("PODIUM_DATABASE_DSN", "")
	t.Setenv("DATABASE_URL", "")

	rootCmd := newRootCommand()
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"--env-file", "", "category", "list"})
	err := rootCmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "database.dsn is required") {
		t.Fatalf("expected missing dsn error, got %v", err)
	}
}

func TestCommandsLoadDotEnvFile(t *testing.T) {
	tempDir := t.TempDir()
	databasePath := filepath.Join(tempDir, "podium.db")
	envPath := filepath.Join(tempDir, "podium.env")
	contents := "PODIUM_DATABASE_DSN=" + databasePath + "\nPODIUM_DATABASE_DRIVER=sqlite\nPODIUM_LOG_LEVEL=error\n"
	if err := os.WriteFile(envPath, []byte(contents), 0o600); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}
	t.Setenv("PODIUM_DATABASE_DSN", "")
	t.Setenv("PODIUM_DATABASE_DRIVER", "")
	t.Setenv("PODIUM_LOG_LEVEL", "")
	for _, key := range []string{"PODIUM_DATABASE_DSN", "PODIUM_DATABASE_DRIVER", "PODIUM_LOG_LEVEL"} {
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("failed to unset %s: %v", key, err)
		}
	}

	rootCmd := newRootCommand()
	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"--env-file", envPath, "category", "add", "Music"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("expected dotenv configuration to be used, got %v", err)
	}
	if stdout.String() != "created category Music\n" {
		t.Fatalf("unexpected output %q", stdout.String())
	}
}

func TestCommandsReadConfigFile(t *testing.T) {
	t.Setenv("PODIUM_DATABASE_DSN", "")
	t.Setenv("PODIUM_DATABASE_DRIVER", "")
	t.Setenv("DATABASE_URL", "")

	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "podium.yaml")
	contents := "database:\n  driver: sqlite\n  dsn: " + filepath.Join(tempDir, "podium.db") + "\nlog:\n  level: error\n"
	if err := os.WriteFile(configPath, []byte(contents), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	rootCmd := newRootCommand()
	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"--env-file", "", "--config", configPath, "migrate"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("expected config file to configure the store, got %v", err)
	}
	if stdout.String() != "schema up to date\n" {
		t.Fatalf("unexpected output %q", stdout.String())
	}
}
