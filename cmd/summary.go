package main

import (
	"io"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/macro-cli/internal/macro/report"
)

// printSummary writes the per-table and per-reason counts of a run with
// grouped thousands.
func printSummary(w io.Writer, snap report.Snapshot) {
	p := message.NewPrinter(language.English)
	var rows int64
	for _, n := range snap.Produced {
		rows += n
	}
	_, _ = p.Fprintf(w, "%s: %d rows written, %d skipped\n", snap.Stage, rows, snap.Skipped)

	for _, table := range snap.TableKeys() {
		_, _ = p.Fprintf(w, "  %-26s %12d\n", table, snap.Produced[table])
	}
	for _, reason := range snap.ReasonKeys() {
		line := p.Sprintf("  %-26s %12d", string(reason), snap.Reasons[reason])
		if ex := snap.Examples[reason]; len(ex) > 0 {
			line += "  e.g. " + strings.Join(ex, ", ")
		}
		_, _ = io.WriteString(w, line+"\n")
	}
}
