// Package cli implements the courtetl command line.
package cli

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"courtetl/internal/config"
	"courtetl/internal/logger"
)

// Version is set at build time with -ldflags "-X courtetl/internal/cli.Version=...".
var Version = "dev"

type options struct {
	cfgFile        string
	verbose        bool
	metricsBackend string
	pushgatewayURL string
	datadogAddr    string
}

// NewRootCommand builds the command tree. Output goes to the command's
// configured writers, so tests can capture it with SetOut/SetErr.
func NewRootCommand() *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:   "courtetl",
		Short: "Chunked CSV ETL over the CourtListener bulk exports",
		Long: `courtetl filters and joins the CourtListener bulk CSV exports (dockets,
opinion clusters, opinions, people, political affiliations) into a single
table of opinions with their court and author's party.

Each step of a pipeline file reads one source in fixed-size chunks, applies
its transform, and writes one compressed CSV. Settings come from, highest
priority first: flags, COURTETL_* environment variables, the config file.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&o.cfgFile, "config", "courtetl.yaml", "pipeline file (YAML or JSON)")
	pf.BoolVarP(&o.verbose, "verbose", "v", false, "debug logging")
	pf.StringVar(&o.metricsBackend, "metrics-backend", "", "metrics backend: none, pushgateway or datadog (overrides metrics.backend)")
	pf.StringVar(&o.pushgatewayURL, "pushgateway-url", "", "Pushgateway base URL (overrides metrics.pushgateway_url)")
	pf.StringVar(&o.datadogAddr, "datadog-addr", "", "DogStatsD address (overrides metrics.datadog_addr)")

	root.AddCommand(newRunCommand(o), newValidateCommand(o), newVersionCommand())
	return root
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

// load reads and applies flag overrides to the pipeline file.
func (o *options) load() (config.Pipeline, error) {
	p, err := config.Load(o.cfgFile)
	if err != nil {
		return p, err
	}
	if o.metricsBackend != "" {
		p.Metrics.Backend = o.metricsBackend
	}
	if o.pushgatewayURL != "" {
		p.Metrics.PushgatewayURL = o.pushgatewayURL
	}
	if o.datadogAddr != "" {
		p.Metrics.DatadogAddr = o.datadogAddr
	}
	return p, nil
}

func (o *options) logger(w io.Writer, p config.Pipeline) logger.Logger {
	level, err := logger.ParseLevel(p.LogLevel)
	if err != nil {
		level = logger.LevelInfo
	}
	if o.verbose {
		level = logger.LevelDebug
	}
	if w == nil {
		w = os.Stderr
	}
	return logger.New(w, level)
}
