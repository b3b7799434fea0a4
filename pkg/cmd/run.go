package cmd

import (
	"github.com/spf13/cobra"

	"github.com/telekom/notion-outreach/pkg/app"
	"github.com/telekom/notion-outreach/pkg/output"
)

func NewRunCommand() *cobra.Command {
	var (
		dryRun       bool
		reportPath   string
		reportFormat string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Email every eligible contact once and mark it as sent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			cfg := *rt.cfg
			if dryRun {
				cfg.Run.DryRun = true
			}
			if reportPath != "" {
				cfg.Run.ReportPath = reportPath
			}
			if reportFormat != "" {
				cfg.Run.ReportFormat = reportFormat
			}

			sum, runErr := app.Run(cmd.Context(), &cfg, rt.Logger())
			if sum != nil {
				if err := writeResult(rt, sum, func() { output.WriteSummaryTable(rt.Writer(), sum) }); err != nil {
					return err
				}
			}
			return runErr
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Query and render without sending or updating records")
	cmd.Flags().StringVar(&reportPath, "report", "", "Write the run report to this file")
	cmd.Flags().StringVar(&reportFormat, "report-format", "", "Run report format: json, yaml")

	return cmd
}

// writeResult prints obj in the selected format; table uses the given writer.
func writeResult(rt *runtimeState, obj any, table func()) error {
	format := rt.OutputFormat()
	if format == output.FormatTable {
		table()
		return nil
	}
	return output.WriteObject(rt.Writer(), format, obj)
}
