package output

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/telekom/notion-outreach/pkg/dispatch"
)

// WriteSummaryTable prints the per-record outcomes followed by the totals.
func WriteSummaryTable(w io.Writer, s *dispatch.Summary) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "RECORD\tNAME\tEMAIL\tSTATUS\tERROR")
	for _, o := range s.Outcomes {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", o.RecordID, dash(o.Name), dash(o.Email), string(o.Status), dash(o.Error))
	}
	_ = tw.Flush()

	_, _ = fmt.Fprintf(w, "\nrun %s  started %s  took %s\n", s.RunID, formatTime(s.StartedAt), s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond))
	_, _ = fmt.Fprintf(w, "eligible: %d  sent: %d  failed: %d  skipped: %d  update failed: %d\n",
		s.Eligible, s.Sent, s.Failed, s.Skipped, s.UpdateFailed)
	if s.DryRun {
		_, _ = fmt.Fprintln(w, "dry run: no emails were sent and no records were updated")
	}
	if s.Truncated {
		_, _ = fmt.Fprintln(w, "warning: the query returned a full page, more eligible rows may exist")
	}
	if s.Error != "" {
		_, _ = fmt.Fprintf(w, "aborted: %s\n", s.Error)
	}
}

// WriteDiagnosisTable prints the sampled rows and the eligibility count.
func WriteDiagnosisTable(w io.Writer, d *dispatch.Diagnosis) {
	_, _ = fmt.Fprintf(w, "predicate: %s\n", d.Predicate)
	if len(d.Properties) > 0 {
		_, _ = fmt.Fprintln(w, "properties:")
		tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
		for _, name := range d.PropertyNames() {
			_, _ = fmt.Fprintf(tw, "  %s\t%s\n", name, d.Properties[name])
		}
		_ = tw.Flush()
	}
	_, _ = fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "RECORD\tNAME\tEMAIL\t%s TYPE\t%s VALUE\tELIGIBLE\n", d.StatusProperty, d.StatusProperty)
	for _, r := range d.Rows {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%t\n", r.RecordID, r.Name, dash(r.Email), r.StatusType, dash(r.StatusValue), r.Eligible)
	}
	_ = tw.Flush()

	more := ""
	if d.Truncated {
		more = "+"
	}
	_, _ = fmt.Fprintf(w, "\n%d of %d%s rows are eligible\n", d.Eligible, d.Total, more)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.RFC3339)
}
