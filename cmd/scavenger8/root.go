package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/donbonifacio/scavenger8/internal/config"
	"github.com/spf13/cobra"
)

// legacyFlags are long flags that may be written with a single dash,
// as in "scavenger8 -file urls.txt".
var legacyFlags = map[string]bool{
	"file":    true,
	"help":    true,
	"config":  true,
	"verbose": true,
}

// NewRootCmd creates the root command for scavenger8.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scavenger8",
		Short: "Detect third-party technologies on a list of web sites",
		Long: `scavenger8 downloads every URL of an input file through a pipeline of
bounded worker pools and reports which technologies each page embeds
(Segment.io, Intercom.io, Google Tag Manager and any configured signature).

Each line of the input file is one host or URL. Blank lines and lines
starting with # are ignored. Lines without a scheme are fetched over http.

Without --file nothing is crawled.

Examples:
  # Crawl every site listed in urls.txt
  scavenger8 --file urls.txt

  # Use more fetch workers and write a Markdown summary
  scavenger8 --file urls.txt --fetch-workers 150 -o report.md

  # Fetch through a local SOCKS5 proxy, at most 20 requests per second
  scavenger8 --file urls.txt --proxy 127.0.0.1:9050 --rate-limit 20`,
		Version:       getVersion(),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runRootCmd,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	// Input and configuration
	cmd.Flags().StringP("file", "f", "",
		"File with one URL per line")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .scavenger8 in current or home directory)")

	// Pipeline sizing
	cmd.Flags().IntP("fetch-workers", "w", config.DefaultFetchWorkers,
		"Number of concurrent page downloads")
	cmd.Flags().Int("match-workers", config.DefaultMatchWorkers,
		"Number of concurrent technology matchers")
	cmd.Flags().Int("url-queue", config.DefaultURLQueueCapacity,
		"Capacity of the queue between the input file and the fetch stage")
	cmd.Flags().Int("page-queue", config.DefaultPageQueueCapacity,
		"Capacity of the queue between the fetch and match stages")
	cmd.Flags().Int("result-queue", config.DefaultResultQueueCapacity,
		"Capacity of the queue between the match stage and the sink")
	cmd.Flags().Duration("drain-timeout", config.DefaultDrainTimeout,
		"How long a stage waits for its workers once the input is exhausted")

	// Fetch behavior
	cmd.Flags().DurationP("timeout", "t", config.DefaultFetchTimeout,
		"Timeout for each request")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with every request")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum number of body bytes read per page")
	cmd.Flags().StringP("proxy", "p", "",
		"Fetch through the SOCKS5 proxy at this address (e.g., 127.0.0.1:9050)")
	cmd.Flags().Float64("rate-limit", 0,
		"Maximum requests per second across all fetch workers (0 = unlimited)")

	// Metrics
	cmd.Flags().StringP("metrics", "m", config.DefaultMetricsFile,
		"File overwritten with pipeline metrics while running (empty disables it)")
	cmd.Flags().Duration("metrics-interval", config.DefaultMetricsInterval,
		"Period of the metrics file updates")

	// Persistence
	cmd.Flags().Bool("no-db", false,
		"Do not store the run in the results database")
	cmd.Flags().String("db-dir", "",
		"Directory of the results database (default: XDG data directory)")

	// Report flags
	cmd.Flags().StringP("output", "o", "",
		"Write a Markdown run summary to the specified file path")
	cmd.Flags().BoolP("json", "j", false,
		"Write the --output summary as JSON instead of Markdown")

	// Add subcommands
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewRunsCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	cmd := NewRootCmd()
	cmd.SetArgs(normalizeArgs(os.Args[1:]))
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// normalizeArgs rewrites single-dash long flags such as "-file" or
// "-file=urls.txt" to their double-dash form. Everything after "--" is left
// untouched.
func normalizeArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for i, arg := range args {
		if arg == "--" {
			return append(out, args[i:]...)
		}
		if strings.HasPrefix(arg, "-") && !strings.HasPrefix(arg, "--") {
			name, _, _ := strings.Cut(arg[1:], "=")
			if legacyFlags[name] {
				arg = "-" + arg
			}
		}
		out = append(out, arg)
	}
	return out
}
