package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"courtetl/internal/config"
	"courtetl/internal/logger"
	"courtetl/internal/metrics"
	"courtetl/internal/metrics/datadog"
	"courtetl/internal/metrics/prompush"
	"courtetl/internal/pipeline"

	// Every storage backend is linked in; the config picks one per step.
	_ "courtetl/internal/storage/all"
)

func newRunCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run [step...]",
		Short: "Run the pipeline, or only the named steps",
		Long: `Run executes the steps of the pipeline file in order. With arguments,
only the named steps run (still in file order). A failing step stops the
run; its output is not written.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := o.load()
			if err != nil {
				return err
			}
			if err := report(cmd.ErrOrStderr(), config.ValidatePipeline(p)); err != nil {
				return err
			}
			log := o.logger(cmd.ErrOrStderr(), p)

			flush := setupMetrics(log, p)
			defer flush()

			ctx := cmd.Context()
			r, err := pipeline.New(ctx, p, log)
			if err != nil {
				return err
			}
			start := time.Now()
			results, err := r.Run(ctx, args...)
			printResults(cmd, results)
			if err != nil {
				return err
			}
			log.Infof("completed %d steps in %s", len(results), time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
}

func printResults(cmd *cobra.Command, results []pipeline.Result) {
	if len(results) == 0 {
		return
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STEP\tCHUNKS\tREAD\tWRITTEN\tBYTES\tXXH3\tDURATION")
	for _, res := range results {
		s := res.Summary
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%016x\t%s\n",
			res.Step, s.Chunks, s.RowsRead, s.RowsWritten, s.Bytes, s.Digest, s.Duration.Round(time.Millisecond))
	}
	tw.Flush()
}

// setupMetrics installs the configured backend and returns the flush to run
// at exit. A backend that cannot start is logged and metrics stay off.
func setupMetrics(log logger.Logger, p config.Pipeline) func() {
	var (
		b   metrics.Backend
		err error
	)
	switch p.Metrics.Backend {
	case "pushgateway":
		url := p.Metrics.PushgatewayURL
		if url == "" {
			url = "http://localhost:9091"
		}
		b, err = prompush.NewBackend(p.Job, url)
	case "datadog":
		addr := p.Metrics.DatadogAddr
		if addr == "" {
			addr = "127.0.0.1:8125"
		}
		b, err = datadog.NewBackend(datadog.Config{Addr: addr, Namespace: "courtetl.", GlobalTags: []string{"job:" + p.Job}})
	default:
		log.Debugf("metrics: disabled (backend=%q)", p.Metrics.Backend)
		return func() {}
	}
	if err != nil {
		log.Warnf("metrics: %s backend unavailable: %v; metrics disabled", p.Metrics.Backend, err)
		return func() {}
	}
	log.Infof("metrics: backend=%s job=%s", p.Metrics.Backend, p.Job)
	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			log.Warnf("metrics: flush: %v", err)
		}
	}
}
