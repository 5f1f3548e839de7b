package reporter

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"bank-extract-reconciler/internal/models"
)

// WriteRunSummary renders the final human-readable block of a run: one
// section per bank in sorted order, with the per-file outcomes, notes and
// dataset statistics. The CLI writes this to stdout and appends it to the
// run log.
func WriteRunSummary(w io.Writer, s *models.RunSummary) {
	fmt.Fprintf(w, "\n📦 Run Summary\n")
	fmt.Fprintf(w, "   - Processed %d banks\n\n", s.NumBanks())

	for _, bank := range s.BankIDs() {
		report := s.Bank(bank)

		fmt.Fprintf(w, "🏦 Bank %s:\n", bank)

		fmt.Fprintf(w, "   - Categories merged: %d\n", len(report.Merged))
		for _, category := range sortedCopy(report.Merged) {
			fmt.Fprintf(w, "      ✅ %s\n", category)
		}

		fmt.Fprintf(w, "   - Files without data: %d\n", len(report.Missing))
		for _, name := range sortedCopy(report.Missing) {
			fmt.Fprintf(w, "      ⚠️ %s\n", name)
		}

		fmt.Fprintf(w, "   - Files with errors: %d\n", len(report.Errors))
		for _, name := range sortedCopy(report.Errors) {
			fmt.Fprintf(w, "      ❌ %s\n", name)
		}

		fmt.Fprintf(w, "   - Final columns: %d\n", len(report.Columns))

		for _, note := range report.Notes {
			fmt.Fprintf(w, "   ℹ️ %s\n", note)
		}

		if report.Stats != nil {
			fmt.Fprintf(w, "\n📊 Dataset Summary\n")
			fmt.Fprintf(w, "   - Total rows: %d\n", report.Stats.TotalRows)
			fmt.Fprintf(w, "   - Total columns: %d\n", report.Stats.TotalColumns)
			fmt.Fprintf(w, "   - Static columns: %d → [%s]\n",
				len(report.Stats.StaticColumns), strings.Join(report.Stats.StaticColumns, ", "))
			fmt.Fprintf(w, "   - Category flag columns: %d\n", len(report.Stats.FlagColumns))
			fmt.Fprintf(w, "   - Rows with multiple categories: %d\n", report.Stats.MultiCategory)
		}

		fmt.Fprintln(w)
	}
}

// sortedCopy sorts without disturbing the report's own ordering, which
// preserves merge order for consumers.
func sortedCopy(values []string) []string {
	out := make([]string, len(values))
	copy(out, values)
	sort.Strings(out)
	return out
}
