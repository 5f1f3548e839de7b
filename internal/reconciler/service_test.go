package reconciler

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/xuri/excelize/v2"

	"bank-extract-reconciler/pkg/errors"
)

const testStamp = "20260826"

func writeExtractFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("failed to write extract %s: %v", name, err)
	}
}

func writePACWorkbook(t *testing.T, dir string, rows [][]interface{}) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	headers := []string{"BANK_ID", "FORETAKSNR", "PERSONNR", "AVTALE_ID", "BRUKERTYPE"}
	for i, header := range headers {
		cellName, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			t.Fatalf("failed to build cell name: %v", err)
		}
		if err := f.SetCellValue(sheet, cellName, header); err != nil {
			t.Fatalf("failed to set header cell: %v", err)
		}
	}
	for r, row := range rows {
		for c, value := range row {
			cellName, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				t.Fatalf("failed to build cell name: %v", err)
			}
			if err := f.SetCellValue(sheet, cellName, value); err != nil {
				t.Fatalf("failed to set cell: %v", err)
			}
		}
	}

	path := filepath.Join(dir, "pac.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("failed to save workbook: %v", err)
	}
	return path
}

func newTestService(t *testing.T, config *Config) *Service {
	t.Helper()
	service, err := NewService(config)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return service
}

func readWorkbook(t *testing.T, path string) [][]string {
	t.Helper()
	book, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("cannot open artifact %s: %v", path, err)
	}
	defer book.Close()
	rows, err := book.GetRows(book.GetSheetName(0))
	if err != nil {
		t.Fatalf("cannot read artifact %s: %v", path, err)
	}
	return rows
}

func TestRunPMEndToEnd(t *testing.T) {
	baseDir := t.TempDir()
	outDir := t.TempDir()
	writeExtractFile(t, baseDir, "KUNDE.B1234.RETAIL.CSV",
		"Kundenummer;Navn;Kategori\n001;Alpha AS;RETAIL\n")
	writeExtractFile(t, baseDir, "KUNDE.B1234.SAVINGS.CSV",
		"Kundenummer;Navn;Kategori\n001;Alpha AS;SAVINGS\n002;Beta AS;SAVINGS\n")

	service := newTestService(t, &Config{
		BaseDir:    baseDir,
		LookupFile: writePACWorkbook(t, t.TempDir(), nil),
		OutputDir:  outDir,
		SkipBM:     true,
		Stamp:      testStamp,
	})

	summary, err := service.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if summary.NumBanks() != 1 {
		t.Fatalf("banks processed = %d, want 1", summary.NumBanks())
	}
	report := summary.Bank("1234")
	if !reflect.DeepEqual(report.Merged, []string{"RETAIL", "SAVINGS"}) {
		t.Errorf("merged = %v, want [RETAIL SAVINGS]", report.Merged)
	}
	if len(report.Missing) != 0 || len(report.Errors) != 0 {
		t.Errorf("missing = %v, errors = %v, want none", report.Missing, report.Errors)
	}
	if !reflect.DeepEqual(report.Columns, []string{"RETAIL", "SAVINGS", "Kundenummer", "Navn"}) {
		t.Errorf("columns = %v", report.Columns)
	}
	if report.Stats == nil {
		t.Fatal("stats not recorded")
	}
	if report.Stats.TotalRows != 2 || report.Stats.TotalColumns != 4 {
		t.Errorf("stats = %s, want 2 rows x 4 columns", report.Stats)
	}
	if report.Stats.MultiCategory != 1 {
		t.Errorf("multi-category rows = %d, want 1", report.Stats.MultiCategory)
	}
	if !report.HasNote("Saved PM workbook") {
		t.Errorf("notes = %v, want a saved-workbook note", report.Notes)
	}
	if report.HasNote("No BM") {
		t.Error("BM flow ran despite SkipBM")
	}

	rows := readWorkbook(t, filepath.Join(outDir, "1234_20260826.xlsx"))
	want := [][]string{
		{"Kundenummer", "Navn", "RETAIL", "SAVINGS", "Category_Count"},
		{"001", "Alpha AS", "J", "J", "2"},
		{"002", "Beta AS", "N", "J", "1"},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("artifact rows = %v, want %v", rows, want)
	}
}

func TestRunBMBankAbsentFromLookup(t *testing.T) {
	baseDir := t.TempDir()
	outDir := t.TempDir()
	writeExtractFile(t, baseDir, "KUNDE.B5678.FIRMA.CSV.BM",
		"Kundenummer;Navn;Kategori\n777;Gamma AS;FIRMA\n")
	pacFile := writePACWorkbook(t, t.TempDir(), [][]interface{}{
		{"1234", 42, "01018012345", "AVT-1", "ADMIN"},
	})

	service := newTestService(t, &Config{
		BaseDir:    baseDir,
		LookupFile: pacFile,
		OutputDir:  outDir,
		SkipPM:     true,
		Stamp:      testStamp,
	})

	summary, err := service.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	report := summary.Bank("5678")
	if !report.HasNote("No PAC data found for bank 5678") {
		t.Errorf("notes = %v, want a no-PAC-data note", report.Notes)
	}

	rows := readWorkbook(t, filepath.Join(outDir, "5678_BM_20260826.xlsx"))
	want := [][]string{
		{"Kundenummer", "Navn", "FIRMA", "Category_Count"},
		{"777", "Gamma AS", "J", "1"},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("artifact rows = %v, want %v", rows, want)
	}
}

func TestRunBMEnriched(t *testing.T) {
	baseDir := t.TempDir()
	outDir := t.TempDir()
	writeExtractFile(t, baseDir, "KUNDE.B4321.FIRMA.CSV.BM",
		"Kundenummer;Navn;Kategori\n00000000042;Gamma AS;FIRMA\n00000000099;Ingen AS;FIRMA\n")
	pacFile := writePACWorkbook(t, t.TempDir(), [][]interface{}{
		{"4321", 42, "01018012345", "AVT-2", "ADMIN"},
		{"4321", 42, "02029054321", "AVT-1", "USER"},
	})

	service := newTestService(t, &Config{
		BaseDir:    baseDir,
		LookupFile: pacFile,
		OutputDir:  outDir,
		SkipPM:     true,
		Stamp:      testStamp,
	})

	summary, err := service.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	rows := readWorkbook(t, filepath.Join(outDir, "4321_BM_20260826.xlsx"))
	want := [][]string{
		{"Kundenummer", "Navn", "FIRMA", "AVTALE_IDs", "Users_PERSONNR:BRUKERTYPE", "Category_Count"},
		{"00000000042", "Gamma AS", "J", "AVT-1|AVT-2", "01018012345:ADMIN|02029054321:USER", "1"},
		{"00000000099", "Ingen AS", "J", "", "", "1"},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("artifact rows = %v, want %v", rows, want)
	}

	report := summary.Bank("4321")
	wantStatic := []string{"Kundenummer", "Navn", "AVTALE_IDs", "Users_PERSONNR:BRUKERTYPE"}
	if !reflect.DeepEqual(report.Stats.StaticColumns, wantStatic) {
		t.Errorf("static columns = %v, want %v", report.Stats.StaticColumns, wantStatic)
	}
	if !reflect.DeepEqual(report.Stats.FlagColumns, []string{"FIRMA"}) {
		t.Errorf("flag columns = %v, want [FIRMA]", report.Stats.FlagColumns)
	}
}

func TestRunEmptyFileRecordedMissing(t *testing.T) {
	baseDir := t.TempDir()
	outDir := t.TempDir()
	writeExtractFile(t, baseDir, "KUNDE.B9999.AKTIV.CSV",
		"Kundenummer;Navn;Kategori\n003;Delta AS;AKTIV\n")
	writeExtractFile(t, baseDir, "KUNDE.B9999.TOM.CSV", "")

	service := newTestService(t, &Config{
		BaseDir:    baseDir,
		LookupFile: writePACWorkbook(t, t.TempDir(), nil),
		OutputDir:  outDir,
		SkipBM:     true,
		Stamp:      testStamp,
	})

	summary, err := service.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	report := summary.Bank("9999")
	if !reflect.DeepEqual(report.Missing, []string{"KUNDE.B9999.TOM.CSV"}) {
		t.Errorf("missing = %v, want the empty extract", report.Missing)
	}
	if !reflect.DeepEqual(report.Merged, []string{"AKTIV"}) {
		t.Errorf("merged = %v, want [AKTIV]", report.Merged)
	}

	rows := readWorkbook(t, filepath.Join(outDir, "9999_20260826.xlsx"))
	if len(rows) != 2 {
		t.Errorf("artifact rows = %d, want header plus one customer", len(rows))
	}
}

func TestRunShapeMismatchFatal(t *testing.T) {
	baseDir := t.TempDir()
	writeExtractFile(t, baseDir, "KUNDE.B1111.AKTIV.CSV",
		"Kundenummer;Navn;Kategori\n001;Alpha AS;AKTIV\n")
	writeExtractFile(t, baseDir, "KUNDE.B2222.SPARE.CSV",
		"Kundenummer;Navn;Kategori\n002;Beta AS;SPARE\n")

	service := newTestService(t, &Config{
		BaseDir:    baseDir,
		LookupFile: writePACWorkbook(t, t.TempDir(), nil),
		OutputDir:  t.TempDir(),
		Stamp:      testStamp,
	})

	summary, err := service.Run(context.Background())
	if err == nil {
		t.Fatal("expected consistency failure to abort the run")
	}
	if summary != nil {
		t.Error("no summary expected from an aborted run")
	}

	reconErr, ok := errors.AsReconError(err)
	if !ok {
		t.Fatalf("expected ReconError, got %T: %v", err, err)
	}
	if reconErr.Category != errors.CategoryConsistency {
		t.Errorf("category = %s, want %s", reconErr.Category, errors.CategoryConsistency)
	}
	if reconErr.GetExitCode() != 3 {
		t.Errorf("exit code = %d, want 3", reconErr.GetExitCode())
	}
}

func TestRunUnreadableBaseDir(t *testing.T) {
	service := newTestService(t, &Config{
		BaseDir:    filepath.Join(t.TempDir(), "no-such-dir"),
		LookupFile: "pac.xlsx",
		OutputDir:  t.TempDir(),
		Stamp:      testStamp,
	})

	_, err := service.Run(context.Background())
	if err == nil {
		t.Fatal("expected scan failure to abort the run")
	}
	reconErr, ok := errors.AsReconError(err)
	if !ok {
		t.Fatalf("expected ReconError, got %T: %v", err, err)
	}
	if reconErr.Category != errors.CategoryScan {
		t.Errorf("category = %s, want %s", reconErr.Category, errors.CategoryScan)
	}
	if reconErr.GetExitCode() != 2 {
		t.Errorf("exit code = %d, want 2", reconErr.GetExitCode())
	}
}

func TestRunOnlyBank(t *testing.T) {
	baseDir := t.TempDir()
	writeExtractFile(t, baseDir, "KUNDE.B1111.AKTIV.CSV",
		"Kundenummer;Navn;Kategori\n001;Alpha AS;AKTIV\n")
	writeExtractFile(t, baseDir, "KUNDE.B2222.AKTIV.CSV",
		"Kundenummer;Navn;Kategori\n002;Beta AS;AKTIV\n")
	pacFile := writePACWorkbook(t, t.TempDir(), nil)

	t.Run("restricts to the named bank", func(t *testing.T) {
		service := newTestService(t, &Config{
			BaseDir:    baseDir,
			LookupFile: pacFile,
			OutputDir:  t.TempDir(),
			OnlyBank:   "2222",
			SkipBM:     true,
			Stamp:      testStamp,
		})

		summary, err := service.Run(context.Background())
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if !reflect.DeepEqual(summary.BankIDs(), []string{"2222"}) {
			t.Errorf("banks = %v, want [2222]", summary.BankIDs())
		}
	})

	t.Run("unknown bank is fatal", func(t *testing.T) {
		service := newTestService(t, &Config{
			BaseDir:    baseDir,
			LookupFile: pacFile,
			OutputDir:  t.TempDir(),
			OnlyBank:   "7777",
			Stamp:      testStamp,
		})

		_, err := service.Run(context.Background())
		if err == nil {
			t.Fatal("expected error for a bank absent from the directory")
		}
		reconErr, ok := errors.AsReconError(err)
		if !ok {
			t.Fatalf("expected ReconError, got %T: %v", err, err)
		}
		if reconErr.Code != errors.CodeNoBanksFound {
			t.Errorf("error code = %s, want %s", reconErr.Code, errors.CodeNoBanksFound)
		}
	})
}

func TestRunLookupUnavailableBMFlowFails(t *testing.T) {
	baseDir := t.TempDir()
	outDir := t.TempDir()
	writeExtractFile(t, baseDir, "KUNDE.B4321.FIRMA.CSV.BM",
		"Kundenummer;Navn;Kategori\n777;Gamma AS;FIRMA\n")

	service := newTestService(t, &Config{
		BaseDir:    baseDir,
		LookupFile: filepath.Join(t.TempDir(), "missing.xlsx"),
		OutputDir:  outDir,
		SkipPM:     true,
		Stamp:      testStamp,
	})

	summary, err := service.Run(context.Background())
	if err != nil {
		t.Fatalf("a missing lookup must not abort the run, got %v", err)
	}

	report := summary.Bank("4321")
	if !report.HasNote("Error during BM flow for bank 4321") {
		t.Errorf("notes = %v, want a BM flow failure note", report.Notes)
	}

	artifact := filepath.Join(outDir, "4321_BM_20260826.xlsx")
	if _, statErr := os.Stat(artifact); !os.IsNotExist(statErr) {
		t.Errorf("artifact %s must not be written by a failed flow", artifact)
	}
}

func TestRunCancelled(t *testing.T) {
	baseDir := t.TempDir()
	writeExtractFile(t, baseDir, "KUNDE.B1234.AKTIV.CSV",
		"Kundenummer;Navn;Kategori\n001;Alpha AS;AKTIV\n")

	service := newTestService(t, &Config{
		BaseDir:    baseDir,
		LookupFile: "pac.xlsx",
		OutputDir:  t.TempDir(),
		Stamp:      testStamp,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := service.Run(ctx)
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	reconErr, ok := errors.AsReconError(err)
	if !ok {
		t.Fatalf("expected ReconError, got %T: %v", err, err)
	}
	if reconErr.Category != errors.CategoryInternal {
		t.Errorf("category = %s, want %s", reconErr.Category, errors.CategoryInternal)
	}
}

func TestNewService(t *testing.T) {
	t.Run("fills defaults", func(t *testing.T) {
		config := &Config{BaseDir: ".", LookupFile: "pac.xlsx"}
		if _, err := NewService(config); err != nil {
			t.Fatalf("NewService() error = %v", err)
		}
		if config.Stamp == "" {
			t.Error("stamp not defaulted")
		}
		if config.OutputDir != "excel_exports_"+config.Stamp {
			t.Errorf("output dir = %q, want derived default", config.OutputDir)
		}
		if config.KeyColumn != "Kundenummer" {
			t.Errorf("key column = %q, want Kundenummer", config.KeyColumn)
		}
	})

	tests := []struct {
		name   string
		config *Config
	}{
		{"nil config", nil},
		{"missing base dir", &Config{LookupFile: "pac.xlsx"}},
		{"missing lookup file", &Config{BaseDir: "."}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewService(tt.config)
			if err == nil {
				t.Fatal("expected configuration error")
			}
			reconErr, ok := errors.AsReconError(err)
			if !ok {
				t.Fatalf("expected ReconError, got %T: %v", err, err)
			}
			if reconErr.Category != errors.CategoryConfiguration {
				t.Errorf("category = %s, want %s", reconErr.Category, errors.CategoryConfiguration)
			}
			if !reconErr.IsFatal() {
				t.Error("configuration problems must abort the run")
			}
		})
	}
}
