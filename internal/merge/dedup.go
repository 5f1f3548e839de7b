package merge

import (
	"bank-extract-reconciler/internal/table"
	"bank-extract-reconciler/pkg/errors"
	"bank-extract-reconciler/pkg/logger"
)

// ReconcileDuplicates collapses every group of rows sharing a key column
// value into a single row. Flag columns are OR-ed (present wins), other
// columns keep their first non-empty value. Rows are stably sorted by key
// first, so the output is key-ordered and "first" is well defined.
func (m *Merger) ReconcileDuplicates(tbl *table.Table, bankID string) (*table.Table, error) {
	if err := tbl.SortRowsByColumn(m.config.KeyColumn); err != nil {
		return nil, errors.MergeError(errors.CodeMissingKeyColumn, bankID, err).
			WithContext("key_column", m.config.KeyColumn)
	}

	dynamic := m.classifyColumns(tbl)
	columns := tbl.Columns()

	out, err := table.New(columns)
	if err != nil {
		return nil, errors.InternalError(errors.CodeUnexpectedError, "deduplicate", err)
	}

	start := 0
	for start < tbl.NumRows() {
		key := tbl.Value(start, m.config.KeyColumn)
		end := start + 1
		for end < tbl.NumRows() && tbl.Value(end, m.config.KeyColumn) == key {
			end++
		}

		row := m.collapseGroup(tbl, columns, dynamic, key, start, end)
		if err := out.AppendRow(row); err != nil {
			return nil, errors.InternalError(errors.CodeUnexpectedError, "deduplicate", err)
		}
		start = end
	}

	m.logger.WithFields(logger.Fields{
		"bank":      bankID,
		"rows":      tbl.NumRows(),
		"customers": out.NumRows(),
	}).Debug("Collapsed duplicate customers")

	return out, nil
}

// classifyColumns samples the leading rows of each column; a column whose
// sampled values never leave {present, absent, ""} collapses with OR logic.
// The sample keeps wide tables cheap but misclassifies a column whose first
// disqualifying value sits beyond the sample window.
func (m *Merger) classifyColumns(tbl *table.Table) map[string]bool {
	limit := tbl.NumRows()
	if limit > m.config.SampleSize {
		limit = m.config.SampleSize
	}

	dynamic := make(map[string]bool)
	for _, column := range tbl.Columns() {
		if column == m.config.KeyColumn {
			continue
		}

		flagLike := true
		for r := 0; r < limit && flagLike; r++ {
			switch tbl.Value(r, column) {
			case m.config.PresentFlag, m.config.AbsentFlag, "":
			default:
				flagLike = false
			}
		}
		if flagLike {
			dynamic[column] = true
		}
	}
	return dynamic
}

// collapseGroup folds rows [start,end) of the key-sorted table into one row.
func (m *Merger) collapseGroup(tbl *table.Table, columns []string, dynamic map[string]bool, key string, start, end int) []string {
	row := make([]string, len(columns))
	for i, column := range columns {
		switch {
		case column == m.config.KeyColumn:
			row[i] = key

		case dynamic[column]:
			row[i] = m.config.AbsentFlag
			for r := start; r < end; r++ {
				if tbl.Value(r, column) == m.config.PresentFlag {
					row[i] = m.config.PresentFlag
					break
				}
			}

		default:
			row[i] = tbl.Value(start, column)
			for r := start; r < end; r++ {
				if value := tbl.Value(r, column); value != "" {
					row[i] = value
					break
				}
			}
		}
	}
	return row
}
