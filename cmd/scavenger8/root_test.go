package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/donbonifacio/scavenger8/internal/config"
)

// TestNewRootCmd tests the root command creation.
func TestNewRootCmd(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "scavenger8" {
			t.Errorf("expected use 'scavenger8', got %q", cmd.Use)
		}
	})

	t.Run("has descriptions", func(t *testing.T) {
		t.Parallel()
		if cmd.Short == "" {
			t.Error("expected non-empty short description")
		}
		if cmd.Long == "" {
			t.Error("expected non-empty long description")
		}
	})

	t.Run("has version", func(t *testing.T) {
		t.Parallel()
		if cmd.Version == "" {
			t.Error("expected non-empty version")
		}
	})

	t.Run("has verbose flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.PersistentFlags().Lookup("verbose")
		if flag == nil {
			t.Fatal("expected verbose flag")
		}
		if flag.Shorthand != "v" {
			t.Errorf("expected shorthand 'v', got %q", flag.Shorthand)
		}
		if flag.DefValue != "false" {
			t.Errorf("expected default 'false', got %q", flag.DefValue)
		}
	})

	t.Run("flag defaults match config defaults", func(t *testing.T) {
		t.Parallel()
		tests := map[string]string{
			"file":          "",
			"fetch-workers": "80",
			"match-workers": "4",
			"url-queue":     "1000",
			"drain-timeout": "10m0s",
			"timeout":       "5s",
			"metrics":       config.DefaultMetricsFile,
		}
		for name, want := range tests {
			flag := cmd.Flags().Lookup(name)
			if flag == nil {
				t.Errorf("expected %s flag", name)
				continue
			}
			if flag.DefValue != want {
				t.Errorf("flag %s: expected default %q, got %q", name, want, flag.DefValue)
			}
		}
	})

	t.Run("has subcommands", func(t *testing.T) {
		t.Parallel()
		var uses []string
		for _, sub := range cmd.Commands() {
			uses = append(uses, sub.Use)
		}
		for _, want := range []string{"init", "runs [run-id]", "version"} {
			if !slices.Contains(uses, want) {
				t.Errorf("expected %q subcommand, got %v", want, uses)
			}
		}
	})

	t.Run("silences usage and errors", func(t *testing.T) {
		t.Parallel()
		if !cmd.SilenceUsage {
			t.Error("expected SilenceUsage to be true")
		}
		if !cmd.SilenceErrors {
			t.Error("expected SilenceErrors to be true")
		}
	})
}

// TestNormalizeArgs tests the rewriting of single-dash long flags.
func TestNormalizeArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{
			name: "single-dash file flag",
			args: []string{"-file", "urls.txt"},
			want: []string{"--file", "urls.txt"},
		},
		{
			name: "single-dash file flag with value",
			args: []string{"-file=urls.txt"},
			want: []string{"--file=urls.txt"},
		},
		{
			name: "single-dash help flag",
			args: []string{"-help"},
			want: []string{"--help"},
		},
		{
			name: "double-dash flags are untouched",
			args: []string{"--file", "urls.txt", "--verbose"},
			want: []string{"--file", "urls.txt", "--verbose"},
		},
		{
			name: "shorthand flags are untouched",
			args: []string{"-f", "urls.txt", "-v", "-w", "10"},
			want: []string{"-f", "urls.txt", "-v", "-w", "10"},
		},
		{
			name: "unknown single-dash words are untouched",
			args: []string{"-timeout", "5s"},
			want: []string{"-timeout", "5s"},
		},
		{
			name: "arguments after terminator are untouched",
			args: []string{"runs", "--", "-file"},
			want: []string{"runs", "--", "-file"},
		},
		{
			name: "no arguments",
			args: []string{},
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := normalizeArgs(tt.args)
			if !slices.Equal(got, tt.want) {
				t.Errorf("normalizeArgs(%v) = %v, want %v", tt.args, got, tt.want)
			}
		})
	}
}

// TestBuildConfig tests how defaults, the config file and flags combine.
func TestBuildConfig(t *testing.T) {
	t.Parallel()

	t.Run("flags override the config file", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), "scavenger8.yaml")
		content := "pipeline:\n  fetchWorkers: 120\n  matchWorkers: 6\nfetch:\n  userAgent: from-file\n"
		if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		cmd := NewRootCmd()
		if err := cmd.ParseFlags([]string{"--config", configPath, "--match-workers", "9", "--file", "urls.txt"}); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}

		cfg, err := buildConfig(cmd)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.FetchWorkers != 120 {
			t.Errorf("expected fetch workers from file (120), got %d", cfg.FetchWorkers)
		}
		if cfg.MatchWorkers != 9 {
			t.Errorf("expected match workers from flag (9), got %d", cfg.MatchWorkers)
		}
		if cfg.UserAgent != "from-file" {
			t.Errorf("expected user agent from file, got %q", cfg.UserAgent)
		}
		if cfg.SourceFile != "urls.txt" {
			t.Errorf("expected source file 'urls.txt', got %q", cfg.SourceFile)
		}
		if cfg.URLQueueCapacity != config.DefaultURLQueueCapacity {
			t.Errorf("expected default url queue capacity, got %d", cfg.URLQueueCapacity)
		}
	})

	t.Run("no-db disables persistence", func(t *testing.T) {
		t.Parallel()

		cmd := NewRootCmd()
		if err := cmd.ParseFlags([]string{"--no-db", "--json", "-o", "out.json", "-v"}); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}

		cfg, err := buildConfig(cmd)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.SaveToDB {
			t.Error("expected SaveToDB to be false")
		}
		if !cfg.JSONReport || cfg.ReportFile != "out.json" {
			t.Errorf("expected JSON report to out.json, got json=%v file=%q", cfg.JSONReport, cfg.ReportFile)
		}
		if !cfg.Verbose {
			t.Error("expected verbose to be set")
		}
	})

	t.Run("explicit missing config file is an error", func(t *testing.T) {
		t.Parallel()

		cmd := NewRootCmd()
		missing := filepath.Join(t.TempDir(), "missing.yaml")
		if err := cmd.ParseFlags([]string{"--config", missing}); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}

		_, err := buildConfig(cmd)
		if !errors.Is(err, config.ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})
}

// TestRootCmdWithoutFile tests the informational mode.
func TestRootCmdWithoutFile(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(stdout.String(), "no input file given") {
		t.Errorf("expected informational message, got %q", stdout.String())
	}
	if strings.Contains(stdout.String(), "SUMMARY") {
		t.Errorf("expected no run summary, got %q", stdout.String())
	}
}

// TestRootCmdHelp tests that help does not start a run.
func TestRootCmdHelp(t *testing.T) {
	t.Parallel()

	var stdout bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetArgs(normalizeArgs([]string{"-help"}))

	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := stdout.String()
	if !strings.Contains(output, "--file") {
		t.Errorf("expected usage to mention --file, got %q", output)
	}
	if strings.Contains(output, "no input file given") || strings.Contains(output, "SUMMARY") {
		t.Errorf("expected help only, got %q", output)
	}
}

// TestRootCmdInvalidConfig tests that validation errors stop the run early.
func TestRootCmdInvalidConfig(t *testing.T) {
	t.Parallel()

	var stdout bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--file", "urls.txt", "--fetch-workers", "200", "--no-db"})

	err := cmd.Execute()
	if !errors.Is(err, config.ErrInvalidWorkers) {
		t.Errorf("expected ErrInvalidWorkers, got %v", err)
	}
	if !strings.Contains(err.Error(), "configuration error") {
		t.Errorf("expected configuration error prefix, got %v", err)
	}
	if stdout.Len() != 0 {
		t.Errorf("expected no output, got %q", stdout.String())
	}
}
