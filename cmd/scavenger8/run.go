package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/donbonifacio/scavenger8/internal/config"
	"github.com/donbonifacio/scavenger8/internal/database"
	"github.com/donbonifacio/scavenger8/internal/fetch"
	"github.com/donbonifacio/scavenger8/internal/log"
	"github.com/donbonifacio/scavenger8/internal/metrics"
	"github.com/donbonifacio/scavenger8/internal/pipeline"
	"github.com/donbonifacio/scavenger8/internal/report"
	"github.com/donbonifacio/scavenger8/internal/sink"
	"github.com/donbonifacio/scavenger8/internal/source"
	"github.com/donbonifacio/scavenger8/internal/technology"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Stage and queue names, as they appear in logs, metrics and reports.
const (
	fetchStageName  = "BodyRequester"
	matchStageName  = "TechnologyProcessor"
	urlQueueName    = "URLs"
	pageQueueName   = "Pages"
	resultQueueName = "Technologies"
)

// runRootCmd executes the root command.
func runRootCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	if cfg.SourceFile == "" {
		printIdle(cmd.OutOrStdout())
		return nil
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewSecureLogger(cmd.ErrOrStderr(), cfg.Verbose)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Handle interrupt signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runCrawl(ctx, cfg, logger, cmd.OutOrStdout())
}

// printIdle explains how to start a run when no input file was given.
func printIdle(w io.Writer) {
	fmt.Fprintln(w, "scavenger8: no input file given, nothing to do.")
	fmt.Fprintln(w, "\nUse 'scavenger8 --file <path>' to crawl the URLs listed in a file,")
	fmt.Fprintln(w, "or 'scavenger8 --help' to see all options.")
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates the effective Config: defaults, then the
// configuration file, then every flag set on the command line.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()

	configPath, err := flags.GetString("config")
	if err != nil {
		return nil, err
	}

	cfg, path, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}
	cfg.Verbose = getVerboseFlag(cmd)
	if path != "" && cfg.Verbose {
		fmt.Fprintf(cmd.ErrOrStderr(), "Using configuration file: %s\n", path)
	}

	cfg.SourceFile, err = flags.GetString("file")
	if err != nil {
		return nil, err
	}

	var noDB bool
	err = errors.Join(
		override(flags, "fetch-workers", flags.GetInt, &cfg.FetchWorkers),
		override(flags, "match-workers", flags.GetInt, &cfg.MatchWorkers),
		override(flags, "url-queue", flags.GetInt, &cfg.URLQueueCapacity),
		override(flags, "page-queue", flags.GetInt, &cfg.PageQueueCapacity),
		override(flags, "result-queue", flags.GetInt, &cfg.ResultQueueCapacity),
		override(flags, "drain-timeout", flags.GetDuration, &cfg.DrainTimeout),
		override(flags, "timeout", flags.GetDuration, &cfg.FetchTimeout),
		override(flags, "user-agent", flags.GetString, &cfg.UserAgent),
		override(flags, "max-body-size", flags.GetInt64, &cfg.MaxBodySize),
		override(flags, "proxy", flags.GetString, &cfg.ProxyAddress),
		override(flags, "rate-limit", flags.GetFloat64, &cfg.RateLimit),
		override(flags, "metrics", flags.GetString, &cfg.MetricsFile),
		override(flags, "metrics-interval", flags.GetDuration, &cfg.MetricsInterval),
		override(flags, "db-dir", flags.GetString, &cfg.DBDir),
		override(flags, "output", flags.GetString, &cfg.ReportFile),
		override(flags, "json", flags.GetBool, &cfg.JSONReport),
		override(flags, "no-db", flags.GetBool, &noDB),
	)
	if err != nil {
		return nil, err
	}
	if noDB {
		cfg.SaveToDB = false
	}

	return cfg, nil
}

// override stores the value of the named flag in dst when the flag was set
// on the command line, leaving defaults and file values in place otherwise.
func override[T any](flags *pflag.FlagSet, name string, get func(string) (T, error), dst *T) error {
	if !flags.Changed(name) {
		return nil
	}
	v, err := get(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

// newPipeline builds the fetch and match stages and their three queues.
func newPipeline(cfg *config.Config, fetcher *fetch.Fetcher, techs *technology.Set, logger *slog.Logger) (*pipeline.Pipeline, error) {
	return pipeline.New(pipeline.Spec{
		InputCapacity: cfg.URLQueueCapacity,
		InputName:     urlQueueName,
		Stages: []pipeline.StageSpec{
			{
				Name:           fetchStageName,
				Workers:        cfg.FetchWorkers,
				OutputCapacity: cfg.PageQueueCapacity,
				OutputName:     pageQueueName,
				Task:           fetcher.Task(),
			},
			{
				Name:           matchStageName,
				Workers:        cfg.MatchWorkers,
				OutputCapacity: cfg.ResultQueueCapacity,
				OutputName:     resultQueueName,
				Task:           techs.Task(),
			},
		},
	},
		pipeline.WithLogger(logger),
		pipeline.WithDrainTimeout(cfg.DrainTimeout),
	)
}

// runCrawl wires every component, runs the pipeline to completion and
// writes the run summary. The summary is written even when the run fails.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) error {
	if cfg.ProxyAddress != "" {
		status := fetch.CheckProxy(ctx, cfg.ProxyAddress)
		if status != fetch.ProxyStatusOK {
			return fmt.Errorf("proxy check failed: %s (make sure a SOCKS5 proxy is running at %s): %w",
				status, cfg.ProxyAddress, status.Error())
		}
		logger.Info("SOCKS5 proxy verified", "address", cfg.ProxyAddress)
	}

	fetcher, err := fetch.New(
		fetch.WithLogger(logger),
		fetch.WithTimeout(cfg.FetchTimeout),
		fetch.WithUserAgent(cfg.UserAgent),
		fetch.WithMaxBodySize(cfg.MaxBodySize),
		fetch.WithProxy(cfg.ProxyAddress),
		fetch.WithRateLimit(cfg.RateLimit),
	)
	if err != nil {
		return fmt.Errorf("failed to create fetcher: %w", err)
	}

	extra, err := technology.FromConfig(cfg.Technologies)
	if err != nil {
		return fmt.Errorf("invalid technology signature: %w", err)
	}
	techs := technology.NewSet(append(technology.Defaults(), extra...)...)

	p, err := newPipeline(cfg, fetcher, techs, logger)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}

	sinkOpts := []sink.Option{sink.WithLogger(logger)}

	var (
		db    *database.ResultDB
		runID string
	)
	if cfg.SaveToDB {
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		run, err := db.StartRun(ctx, cfg.SourceFile)
		if err != nil {
			return fmt.Errorf("failed to start run: %w", err)
		}
		runID = run.ID
		sinkOpts = append(sinkOpts, sink.WithRecorder(db.Recorder(runID)))
		logger.Debug("database opened", "path", db.Path(), "run", runID)
	}

	loader := source.NewFileLoader(cfg.SourceFile, source.WithLogger(logger))
	snk := sink.New(sinkOpts...)

	logger.Info("starting run",
		"file", cfg.SourceFile,
		"fetchWorkers", cfg.FetchWorkers,
		"matchWorkers", cfg.MatchWorkers,
		"technologies", techs.Names(),
	)

	done := make(chan struct{})
	var monitorDone chan struct{}
	if cfg.MetricsFile != "" {
		monitor := metrics.NewMonitor(cfg.MetricsFile,
			metrics.Sources{Source: loader, Pipeline: p, Sink: snk, Done: done},
			metrics.WithLogger(logger),
			metrics.WithInterval(cfg.MetricsInterval),
		)
		monitorDone = make(chan struct{})
		go func() {
			defer close(monitorDone)
			monitor.Run(ctx)
		}()
	}

	started := time.Now()
	runErr := p.Run(ctx, loader, snk)
	elapsed := time.Since(started)

	close(done)
	if monitorDone != nil {
		<-monitorDone
	}

	if db != nil {
		// The run row is closed even when ctx was cancelled.
		if err := db.FinishRun(context.WithoutCancel(ctx), runID, loader.SubmittedCount(), snk.ProcessedCount()); err != nil {
			logger.Error("failed to finish run", "run", runID, "error", err)
		}
	}

	summary := buildSummary(runID, cfg.SourceFile, started, elapsed, loader, p, snk, runErr)
	if err := outputSummary(cfg, summary, out); err != nil {
		logger.Error("report failed", "error", err)
	}

	return runErr
}

// buildSummary collects the final counters of every component.
func buildSummary(runID, sourceName string, started time.Time, elapsed time.Duration,
	loader *source.Loader, p *pipeline.Pipeline, snk *sink.Sink, runErr error) *report.Summary {
	summary := &report.Summary{
		RunID:        runID,
		Source:       sourceName,
		Started:      started,
		Elapsed:      elapsed,
		Submitted:    loader.SubmittedCount(),
		Processed:    snk.ProcessedCount(),
		Technologies: snk.TechnologyCounts(),
	}

	for _, s := range p.Stages() {
		stats := s.Stats()
		summary.Stages = append(summary.Stages, report.StageSummary{
			Name:      s.Name(),
			Workers:   s.Workers(),
			State:     s.State().String(),
			Processed: stats.Processed,
			Dropped:   stats.Dropped,
		})
	}

	summary.Errors = errorMessages(runErr)
	return summary
}

// errorMessages flattens errors.Join trees into one message per error.
func errorMessages(err error) []string {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var msgs []string
		for _, e := range joined.Unwrap() {
			msgs = append(msgs, errorMessages(e)...)
		}
		return msgs
	}
	return []string{err.Error()}
}

// outputSummary prints the human-readable summary to out and, if
// configured, writes the Markdown or JSON summary to the report file.
func outputSummary(cfg *config.Config, summary *report.Summary, out io.Writer) error {
	if _, err := report.NewSimpleWriter(out).Write(summary); err != nil {
		return err
	}

	if cfg.ReportFile == "" {
		return nil
	}

	f, err := report.CreateFile(cfg.ReportFile)
	if err != nil {
		return err
	}
	defer f.Close()

	var w report.Writer = report.NewMarkdownWriter(f)
	if cfg.JSONReport {
		w = report.NewJSONWriter(f, report.WithPrettyPrint())
	}
	if _, err := w.Write(summary); err != nil {
		return fmt.Errorf("failed to write %s: %w", cfg.ReportFile, err)
	}

	fmt.Fprintf(out, "Report written to %s\n", cfg.ReportFile)
	return nil
}
