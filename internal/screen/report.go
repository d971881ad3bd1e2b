package screen

import (
	"fmt"
	"strings"

	"github.com/sells-group/kpi-screener/internal/model"
)

// FormatReport renders a human-readable summary of a screening run.
// Audit sections appear only when the run collected them.
func FormatReport(result *model.ScreeningResult, leaves model.LeafSet, instruments []model.Instrument) string {
	names := make(map[int]string, len(instruments))
	for _, inst := range instruments {
		names[inst.ID] = inst.Name
	}

	var b strings.Builder

	title := result.Request
	if title == "" {
		title = result.RunID
	}
	fmt.Fprintf(&b, "# Screening Report: %s\n", title)
	fmt.Fprintf(&b, "Run ID: %s\n\n", result.RunID)

	b.WriteString("## Summary\n")
	fmt.Fprintf(&b, "- Stocks processed: %d\n", result.Processed)
	fmt.Fprintf(&b, "- Stocks passed: %d\n", len(result.Passed))
	fmt.Fprintf(&b, "- Conditions: %d\n", len(leaves))
	fmt.Fprintf(&b, "- Duration: %s\n", result.Duration.Round(1e6))
	if result.Cancelled {
		b.WriteString("- Run cancelled: partial results only\n")
	}
	b.WriteString("\n")

	b.WriteString("## Passed\n")
	if len(result.Passed) == 0 {
		b.WriteString("No stocks passed.\n")
	}
	for _, id := range result.Passed {
		name := names[id]
		if name == "" {
			name = "(unknown)"
		}
		fmt.Fprintf(&b, "- %d %s\n", id, name)
	}
	b.WriteString("\n")

	if len(result.Results) > 0 {
		b.WriteString("## Per-leaf audit\n")
		for _, sr := range result.Results {
			if !sr.Passed {
				continue
			}
			fmt.Fprintf(&b, "### %d %s\n", sr.StockID, names[sr.StockID])
			for _, a := range sr.Audit {
				fmt.Fprintf(&b, "- %s (%s): %v -> %v\n", a.Leaf, a.KPI, a.Window, a.Passed)
			}
		}
	}

	return b.String()
}
