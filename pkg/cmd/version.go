package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/telekom/notion-outreach/pkg/output"
	"github.com/telekom/notion-outreach/pkg/version"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show outreach version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.Get()

			// Get runtime if available (for custom writer), but don't fail if missing
			rt, _ := getRuntime(cmd)
			writer := cmd.OutOrStdout()
			format := output.FormatTable
			if rt != nil {
				writer = rt.Writer()
				format = rt.OutputFormat()
			}

			if format == output.FormatTable {
				_, _ = fmt.Fprintf(writer, "outreach %s (commit: %s, built: %s)\n", info.Version, info.GitCommit, info.BuildDate)
				return nil
			}
			return output.WriteObject(writer, format, info)
		},
	}
}
