package cmd

import (
	"github.com/spf13/cobra"

	"github.com/telekom/notion-outreach/pkg/app"
	"github.com/telekom/notion-outreach/pkg/dispatch"
	"github.com/telekom/notion-outreach/pkg/output"
)

func NewDiagnoseCommand() *cobra.Command {
	var rows int

	cmd := &cobra.Command{
		Use:   "diagnose",
		Short: "Show how the first rows of the database are read and which are eligible",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			d, err := app.Diagnose(cmd.Context(), rt.cfg, rows, rt.Logger())
			if err != nil {
				return err
			}
			return writeResult(rt, d, func() { output.WriteDiagnosisTable(rt.Writer(), d) })
		},
	}

	cmd.Flags().IntVar(&rows, "rows", dispatch.DefaultDiagnoseRows, "Number of rows to describe")

	return cmd
}
