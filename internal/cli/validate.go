package cli

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"courtetl/internal/config"
)

func newValidateCommand(o *options) *cobra.Command {
	var printYAML bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a pipeline file without running it",
		Long: `Validate lints the pipeline file: step kinds, required sources and
outputs, references each step needs, compression names, storage settings.
Warnings are reported but do not fail the command.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := o.load()
			if err != nil {
				return err
			}
			if err := report(cmd.ErrOrStderr(), config.ValidatePipeline(p)); err != nil {
				return err
			}
			if printYAML {
				b, err := yaml.Marshal(p)
				if err != nil {
					return errors.Wrap(err, "marshal config")
				}
				_, err = cmd.OutOrStdout().Write(b)
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: ok (%d steps)\n", o.cfgFile, len(p.Steps))
			return nil
		},
	}
	cmd.Flags().BoolVar(&printYAML, "print", false, "print the resolved pipeline as YAML")
	return cmd
}

// report writes one line per issue and fails if any is an error.
func report(w io.Writer, issues []config.Issue) error {
	for _, iss := range issues {
		fmt.Fprintf(w, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		return errors.New("configuration is invalid")
	}
	return nil
}
