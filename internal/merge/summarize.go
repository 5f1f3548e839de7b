package merge

import (
	"strconv"

	"bank-extract-reconciler/internal/models"
	"bank-extract-reconciler/internal/table"
	"bank-extract-reconciler/pkg/errors"
	"bank-extract-reconciler/pkg/logger"
)

// CategoryCountColumn is the computed column Summarize appends; it is part
// of the output artifact.
const CategoryCountColumn = "Category_Count"

// Summarize computes descriptive statistics over a finished table and
// appends the per-row category count. The flag/static partition comes from
// the declared flag set built during the merge, not from re-scanning values,
// so an all-empty enrichment column stays static. Counts are taken before
// the append; the category-count column itself is in neither list.
func (m *Merger) Summarize(tbl *table.Table, flagColumns []string) (*models.DatasetStats, error) {
	declared := make(map[string]bool, len(flagColumns))
	for _, column := range flagColumns {
		declared[column] = true
	}

	stats := &models.DatasetStats{
		TotalRows:    tbl.NumRows(),
		TotalColumns: tbl.NumCols(),
	}
	for _, column := range tbl.Columns() {
		if declared[column] {
			stats.FlagColumns = append(stats.FlagColumns, column)
		} else {
			stats.StaticColumns = append(stats.StaticColumns, column)
		}
	}

	counts := make([]int, tbl.NumRows())
	for r := range counts {
		for _, column := range stats.FlagColumns {
			if tbl.Value(r, column) == m.config.PresentFlag {
				counts[r]++
			}
		}
		if counts[r] > 1 {
			stats.MultiCategory++
		}
	}

	if err := tbl.AddColumn(CategoryCountColumn, "0"); err != nil {
		return nil, errors.InternalError(errors.CodeUnexpectedError, "summarize", err)
	}
	for r, count := range counts {
		tbl.SetValue(r, CategoryCountColumn, strconv.Itoa(count))
	}

	m.logger.WithFields(logger.Fields{
		"stats": stats.String(),
	}).Debug("Summarized dataset")

	return stats, nil
}
