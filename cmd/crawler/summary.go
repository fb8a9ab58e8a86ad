package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/alvmarrod/trust-weaver/internal/output"
	"github.com/alvmarrod/trust-weaver/internal/record"
	"github.com/alvmarrod/trust-weaver/internal/storage"
)

// printSummary writes the end-of-run table to the console
func printSummary(out io.Writer, runDir *output.RunDir, m storage.Metrics, reason string) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, color.CyanString("Run %s (%s)", runDir.Name, reason))

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Domains fetched\t%s\n", color.GreenString("%d", m.DomainsFetched))
	fmt.Fprintf(w, "Domains failed\t%s\n", color.RedString("%d", m.DomainsFailed))
	fmt.Fprintf(w, "Already visited\t%d\n", m.DomainsSkipped)
	fmt.Fprintf(w, "Edges\t%d\n", m.EdgesRecorded)
	fmt.Fprintf(w, "Redirects\t%d\n", m.RedirectsRecorded)
	fmt.Fprintf(w, "Errors\t%s\n", color.YellowString("%d", m.ErrorsRecorded))
	for _, attr := range record.All() {
		if n := m.AttributeCounts[string(attr)]; n > 0 {
			fmt.Fprintf(w, "  %s\t%d\n", attr, n)
		}
	}
	w.Flush()

	fmt.Fprintf(out, "Output: %s\n", runDir.Path)
}
