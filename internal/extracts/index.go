// Package extracts locates the per-bank mainframe extract files for a run
// and verifies that every bank received the same set of file types. Extract
// file names embed a 4-digit bank code after a literal ".B", for example
// "KUNDE.B1234.RETAIL.CSV".
package extracts

import (
	"os"
	"regexp"
	"sort"
	"strings"

	"bank-extract-reconciler/pkg/errors"
)

// bankCodePattern matches the embedded bank code in an extract file name.
var bankCodePattern = regexp.MustCompile(`\.B(\d{4})\.`)

// shapeMask replaces the bank digits when file-set shapes are compared.
const shapeMask = ".B####."

// Index maps bank identifiers to the extract files that belong to them.
// Built once per run by ScanDir and read-only afterwards.
type Index struct {
	dir   string
	files map[string][]string
}

// ScanDir lists the base directory and groups extract files by their
// embedded bank code. Files without a recognizable bank code are silently
// excluded. An empty index is not an error by itself; the consistency check
// rejects a run with no banks.
func ScanDir(dir string) (*Index, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.ScanError(errors.CodeDirectoryUnreadable, dir, err)
	}

	idx := &Index{
		dir:   dir,
		files: make(map[string][]string),
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		match := bankCodePattern.FindStringSubmatch(name)
		if match == nil {
			continue
		}
		bank := match[1]
		idx.files[bank] = append(idx.files[bank], name)
	}

	return idx, nil
}

// Dir returns the directory the index was built from.
func (idx *Index) Dir() string {
	return idx.dir
}

// Len returns the number of banks in the index.
func (idx *Index) Len() int {
	return len(idx.files)
}

// Banks returns all bank identifiers in sorted order.
func (idx *Index) Banks() []string {
	banks := make([]string, 0, len(idx.files))
	for bank := range idx.files {
		banks = append(banks, bank)
	}
	sort.Strings(banks)
	return banks
}

// Files returns a copy of the file names recorded for one bank.
func (idx *Index) Files(bank string) []string {
	names := make([]string, len(idx.files[bank]))
	copy(names, idx.files[bank])
	return names
}

// Select returns the bank's files ending in the given suffix, in index
// order. The suffix match is case sensitive, so ".CSV" does not pick up
// ".CSV.BM" companions. OBS control extracts are excluded when requested.
func (idx *Index) Select(bank, suffix string, excludeOBS bool) []string {
	var selected []string
	for _, name := range idx.files[bank] {
		if !strings.HasSuffix(name, suffix) {
			continue
		}
		if excludeOBS && strings.Contains(strings.ToUpper(name), "OBS") {
			continue
		}
		selected = append(selected, name)
	}
	return selected
}
