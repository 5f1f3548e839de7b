package extracts

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeExtractFiles(t *testing.T, dir string, names []string) {
	t.Helper()
	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("Kundenummer;Navn;Kategori\n"), 0644); err != nil {
			t.Fatalf("failed to write fixture %s: %v", name, err)
		}
	}
}

func TestScanDir(t *testing.T) {
	dir := t.TempDir()
	writeExtractFiles(t, dir, []string{
		"KUNDE.B1234.RETAIL.CSV",
		"KUNDE.B1234.SAVINGS.CSV",
		"KUNDE.B5678.RETAIL.CSV",
		"README.txt",           // no bank code
		"KUNDE.B12345.LONG.CSV", // five digits, not a bank code
		"kunde.b1234.lower.CSV", // lower case marker, not a bank code
	})
	// directories must be skipped even when their names match the pattern
	if err := os.Mkdir(filepath.Join(dir, "SUB.B9999.DIR"), 0755); err != nil {
		t.Fatalf("failed to create fixture dir: %v", err)
	}

	idx, err := ScanDir(dir)
	if err != nil {
		t.Fatalf("ScanDir failed: %v", err)
	}

	wantBanks := []string{"1234", "5678"}
	if got := idx.Banks(); !reflect.DeepEqual(got, wantBanks) {
		t.Errorf("expected banks %v, got %v", wantBanks, got)
	}

	files := idx.Files("1234")
	if len(files) != 2 {
		t.Errorf("expected 2 files for bank 1234, got %d: %v", len(files), files)
	}
	if idx.Len() != 2 {
		t.Errorf("expected 2 banks in index, got %d", idx.Len())
	}
	if idx.Dir() != dir {
		t.Errorf("expected index dir %s, got %s", dir, idx.Dir())
	}
}

func TestScanDirUnreadable(t *testing.T) {
	_, err := ScanDir(filepath.Join(t.TempDir(), "does-not-exist"))
	if err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestScanDirEmptyIsNotAnError(t *testing.T) {
	idx, err := ScanDir(t.TempDir())
	if err != nil {
		t.Fatalf("ScanDir failed: %v", err)
	}
	if idx.Len() != 0 {
		t.Errorf("expected empty index, got %d banks", idx.Len())
	}
}

func TestSelect(t *testing.T) {
	idx := &Index{
		files: map[string][]string{
			"1234": {
				"KUNDE.B1234.A.CSV",
				"KUNDE.B1234.B.CSV",
				"KUNDE.B1234.OBS.CSV",
				"KUNDE.B1234.obs2.CSV",
				"KUNDE.B1234.C.CSV.BM",
			},
		},
	}

	tests := []struct {
		name       string
		bank       string
		suffix     string
		excludeOBS bool
		want       []string
	}{
		{
			name:       "retail files skip OBS and BM companions",
			bank:       "1234",
			suffix:     ".CSV",
			excludeOBS: true,
			want:       []string{"KUNDE.B1234.A.CSV", "KUNDE.B1234.B.CSV"},
		},
		{
			name:       "OBS files included when not excluded",
			bank:       "1234",
			suffix:     ".CSV",
			excludeOBS: false,
			want: []string{
				"KUNDE.B1234.A.CSV",
				"KUNDE.B1234.B.CSV",
				"KUNDE.B1234.OBS.CSV",
				"KUNDE.B1234.obs2.CSV",
			},
		},
		{
			name:       "business files selected by their own suffix",
			bank:       "1234",
			suffix:     ".CSV.BM",
			excludeOBS: true,
			want:       []string{"KUNDE.B1234.C.CSV.BM"},
		},
		{
			name:       "unknown bank yields nothing",
			bank:       "0000",
			suffix:     ".CSV",
			excludeOBS: true,
			want:       nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := idx.Select(tt.bank, tt.suffix, tt.excludeOBS)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestShapeKey(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "bank code masked",
			in:   "KUNDE.B1234.RETAIL.CSV",
			want: "KUNDE.B####.RETAIL.CSV",
		},
		{
			name: "every occurrence masked",
			in:   "X.B1111.Y.B2222.CSV",
			want: "X.B####.Y.B####.CSV",
		},
		{
			name: "no code leaves name unchanged",
			in:   "README.txt",
			want: "README.txt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShapeKey(tt.in); got != tt.want {
				t.Errorf("ShapeKey(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
