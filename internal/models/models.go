package models

import (
	"fmt"
	"sort"
	"strings"
)

// Flow identifies one of the two per-bank processing passes
type Flow string

const (
	// FlowPM is the retail extract pass
	FlowPM Flow = "PM"
	// FlowBM is the business extract pass, enriched from the lookup system
	FlowBM Flow = "BM"
)

// String returns the string representation of the Flow
func (f Flow) String() string {
	return string(f)
}

// IsValid checks if the flow is one of the known passes
func (f Flow) IsValid() bool {
	return f == FlowPM || f == FlowBM
}

// Suffix returns the extract file suffix the flow selects by
func (f Flow) Suffix() string {
	if f == FlowBM {
		return ".CSV.BM"
	}
	return ".CSV"
}

// ArtifactName returns the output workbook name for a bank and date stamp,
// for example "1234_20260826.xlsx" or "1234_BM_20260826.xlsx".
func (f Flow) ArtifactName(bank, stamp string) string {
	if f == FlowBM {
		return fmt.Sprintf("%s_BM_%s.xlsx", bank, stamp)
	}
	return fmt.Sprintf("%s_%s.xlsx", bank, stamp)
}

// DatasetStats holds the descriptive statistics computed over one bank's
// finished table
type DatasetStats struct {
	TotalRows     int      `json:"total_rows"`
	TotalColumns  int      `json:"total_columns"`
	FlagColumns   []string `json:"flag_columns"`
	StaticColumns []string `json:"static_columns"`
	MultiCategory int      `json:"multi_category"`
}

// String returns a compact representation of the statistics
func (s *DatasetStats) String() string {
	return fmt.Sprintf("DatasetStats{rows: %d, columns: %d, flags: %d, static: %d, multi-category: %d}",
		s.TotalRows, s.TotalColumns, len(s.FlagColumns), len(s.StaticColumns), s.MultiCategory)
}

// LookupRow is one record of the secondary-system export. All fields are
// text; the organization number is zero-padded to OrgNumberWidth.
type LookupRow struct {
	BankID       string `json:"bank_id"`
	OrgNumber    string `json:"org_number"`
	PersonNumber string `json:"person_number"`
	AgreementID  string `json:"agreement_id"`
	UserType     string `json:"user_type"`
}

// OrgNumberWidth is the fixed display width of organization numbers.
const OrgNumberWidth = 11

// NormalizeOrgNumber left-pads an organization number with zeros to the
// fixed width. Longer values pass through unchanged.
func NormalizeOrgNumber(orgNumber string) string {
	orgNumber = strings.TrimSpace(orgNumber)
	if len(orgNumber) >= OrgNumberWidth {
		return orgNumber
	}
	return strings.Repeat("0", OrgNumberWidth-len(orgNumber)) + orgNumber
}

// LookupTable is the read-only, in-memory form of the secondary-system
// export, indexed by bank for the enrichment join.
type LookupTable struct {
	rows   []LookupRow
	byBank map[string][]LookupRow
}

// NewLookupTable builds a lookup table from parsed rows, preserving the
// export's natural row order within each bank.
func NewLookupTable(rows []LookupRow) *LookupTable {
	table := &LookupTable{
		rows:   rows,
		byBank: make(map[string][]LookupRow),
	}
	for _, row := range rows {
		table.byBank[row.BankID] = append(table.byBank[row.BankID], row)
	}
	return table
}

// Len returns the total number of lookup rows.
func (lt *LookupTable) Len() int {
	return len(lt.rows)
}

// HasBank reports whether the lookup export carries rows for the bank.
func (lt *LookupTable) HasBank(bank string) bool {
	return len(lt.byBank[bank]) > 0
}

// BankRows returns the bank's lookup rows in export order.
func (lt *LookupTable) BankRows(bank string) []LookupRow {
	return lt.byBank[bank]
}

// BankReport accumulates one bank's outcomes across both flows. Merged,
// Missing and Errors grow across flows; Columns and Stats are overwritten by
// whichever flow summarized last.
type BankReport struct {
	Merged  []string      `json:"merged"`
	Missing []string      `json:"missing"`
	Errors  []string      `json:"errors"`
	Columns []string      `json:"columns"`
	Stats   *DatasetStats `json:"stats,omitempty"`
	Notes   []string      `json:"notes,omitempty"`
}

// AddMerged records a successfully merged category label
func (r *BankReport) AddMerged(category string) {
	r.Merged = append(r.Merged, category)
}

// AddMissing records a file that yielded no data
func (r *BankReport) AddMissing(file string) {
	r.Missing = append(r.Missing, file)
}

// AddError records a file that failed to parse or merge
func (r *BankReport) AddError(file string) {
	r.Errors = append(r.Errors, file)
}

// AddNote records an informational signal or a recoverable flow failure
func (r *BankReport) AddNote(note string) {
	r.Notes = append(r.Notes, note)
}

// HasNote reports whether any recorded note contains the given fragment
func (r *BankReport) HasNote(fragment string) bool {
	for _, note := range r.Notes {
		if strings.Contains(note, fragment) {
			return true
		}
	}
	return false
}

// RunSummary is the run-wide accumulator, keyed by bank. It is created once
// per run, appended to by every flow and drained at the end. There is a
// single writer; flows never run concurrently.
type RunSummary struct {
	banks map[string]*BankReport
}

// NewRunSummary creates an empty run summary
func NewRunSummary() *RunSummary {
	return &RunSummary{
		banks: make(map[string]*BankReport),
	}
}

// Bank returns the report for a bank, creating it on first use.
func (s *RunSummary) Bank(id string) *BankReport {
	if report, ok := s.banks[id]; ok {
		return report
	}
	report := &BankReport{}
	s.banks[id] = report
	return report
}

// BankIDs returns the identifiers of all reported banks in sorted order.
func (s *RunSummary) BankIDs() []string {
	ids := make([]string, 0, len(s.banks))
	for id := range s.banks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// NumBanks returns the number of banks with a report.
func (s *RunSummary) NumBanks() int {
	return len(s.banks)
}
