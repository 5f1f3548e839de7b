package merge

import (
	"fmt"
	"reflect"
	"testing"

	"bank-extract-reconciler/internal/table"
	"bank-extract-reconciler/pkg/errors"
)

func mustTable(t *testing.T, columns []string, rows [][]string) *table.Table {
	t.Helper()

	tbl, err := table.New(columns)
	if err != nil {
		t.Fatalf("failed to create table: %v", err)
	}
	for _, row := range rows {
		if err := tbl.AppendRow(row); err != nil {
			t.Fatalf("failed to append row: %v", err)
		}
	}
	return tbl
}

func TestReconcileDuplicates(t *testing.T) {
	merger := newTestMerger(t, t.TempDir())

	tbl := mustTable(t,
		[]string{"Kundenummer", "Navn", "K1", "K2"},
		[][]string{
			{"00000000002", "", "N", "J"},
			{"00000000001", "Alpha AS", "J", "N"},
			{"00000000002", "Beta AS", "J", "N"},
			{"00000000003", "Gamma AS", "N", "J"},
		})

	out, err := merger.ReconcileDuplicates(tbl, "1234")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if out.NumRows() != 3 {
		t.Fatalf("rows = %d, want one per customer", out.NumRows())
	}
	if !reflect.DeepEqual(out.Columns(), []string{"Kundenummer", "Navn", "K1", "K2"}) {
		t.Errorf("columns = %v, column set must be unchanged", out.Columns())
	}

	wantKeys := []string{"00000000001", "00000000002", "00000000003"}
	if !reflect.DeepEqual(out.Column("Kundenummer"), wantKeys) {
		t.Errorf("keys = %v, want %v in sorted order", out.Column("Kundenummer"), wantKeys)
	}

	// Customer 2 holds K1 from one row and K2 from the other; flags OR.
	if got := out.Value(1, "K1"); got != "J" {
		t.Errorf("customer 2 K1 = %q, want J", got)
	}
	if got := out.Value(1, "K2"); got != "J" {
		t.Errorf("customer 2 K2 = %q, want J", got)
	}

	// The static column keeps the first non-empty value in key-sorted order,
	// never a synthesized one.
	if got := out.Value(1, "Navn"); got != "Beta AS" {
		t.Errorf("customer 2 Navn = %q, want Beta AS", got)
	}
}

func TestReconcileDuplicatesSingleRows(t *testing.T) {
	merger := newTestMerger(t, t.TempDir())

	tbl := mustTable(t,
		[]string{"Kundenummer", "Navn", "K1"},
		[][]string{
			{"00000000002", "Beta AS", "J"},
			{"00000000001", "Alpha AS", "J"},
		})

	out, err := merger.ReconcileDuplicates(tbl, "1234")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.NumRows() != 2 {
		t.Errorf("rows = %d, want 2", out.NumRows())
	}
	if got := out.Value(0, "Navn"); got != "Alpha AS" {
		t.Errorf("first row Navn = %q, want Alpha AS after key sort", got)
	}
}

func TestReconcileDuplicatesAllEmptyStatic(t *testing.T) {
	merger := newTestMerger(t, t.TempDir())

	tbl := mustTable(t,
		[]string{"Kundenummer", "Adresse", "K1"},
		[][]string{
			{"00000000001", "", "J"},
			{"00000000001", "", "N"},
		})

	out, err := merger.ReconcileDuplicates(tbl, "1234")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := out.Value(0, "Adresse"); got != "" {
		t.Errorf("Adresse = %q, want empty when no row carries a value", got)
	}
}

func TestReconcileDuplicatesMissingKeyColumn(t *testing.T) {
	merger := newTestMerger(t, t.TempDir())

	tbl := mustTable(t,
		[]string{"Konto", "K1"},
		[][]string{{"00000000001", "J"}})

	_, err := merger.ReconcileDuplicates(tbl, "1234")
	if err == nil {
		t.Fatal("expected merge error for missing key column")
	}
	reconErr, ok := errors.AsReconError(err)
	if !ok {
		t.Fatalf("expected ReconError, got %T: %v", err, err)
	}
	if reconErr.Code != errors.CodeMissingKeyColumn {
		t.Errorf("error code = %s, want %s", reconErr.Code, errors.CodeMissingKeyColumn)
	}
	if reconErr.IsFatal() {
		t.Error("a missing key column must stay a per-flow error")
	}
}

func TestReconcileDuplicatesSampledClassification(t *testing.T) {
	merger := newTestMerger(t, t.TempDir())

	// A column that looks like a flag for the whole sample window but turns
	// out not to be: the sampled classification accepts the misread. The
	// value beyond the window is lost to OR logic.
	rows := make([][]string, 0, 105)
	for i := 0; i < 105; i++ {
		rows = append(rows, []string{"00000000001", "J"})
	}
	rows[104][1] = "X"

	tbl := mustTable(t, []string{"Kundenummer", "Status"}, rows)

	out, err := merger.ReconcileDuplicates(tbl, "1234")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.NumRows() != 1 {
		t.Fatalf("rows = %d, want 1", out.NumRows())
	}
	if got := out.Value(0, "Status"); got != "J" {
		t.Errorf("Status = %q, want J from OR logic over the misread column", got)
	}
}

func TestClassifyColumns(t *testing.T) {
	merger := newTestMerger(t, t.TempDir())

	tests := []struct {
		name    string
		values  []string
		dynamic bool
	}{
		{"all present flags", []string{"J", "J"}, true},
		{"mixed flags", []string{"J", "N"}, true},
		{"flags with blanks", []string{"J", ""}, true},
		{"free text", []string{"J", "Oslo"}, false},
		{"numbers", []string{"1", "2"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := make([][]string, len(tt.values))
			for i, value := range tt.values {
				rows[i] = []string{fmt.Sprintf("%011d", i), value}
			}
			tbl := mustTable(t, []string{"Kundenummer", "Kolonne"}, rows)

			dynamic := merger.classifyColumns(tbl)
			if dynamic["Kolonne"] != tt.dynamic {
				t.Errorf("dynamic = %v, want %v", dynamic["Kolonne"], tt.dynamic)
			}
			if dynamic["Kundenummer"] {
				t.Error("the key column must never classify as a flag")
			}
		})
	}
}
