// Package reporter renders run results: finished tables become xlsx
// artifacts, and the run-wide summary becomes the human-readable block the
// CLI prints and logs at the end.
package reporter

import (
	"bank-extract-reconciler/internal/table"
	"bank-extract-reconciler/pkg/errors"
	"bank-extract-reconciler/pkg/logger"

	"github.com/xuri/excelize/v2"
)

// minColumnWidth keeps short-named columns readable in the artifact.
const minColumnWidth = 12.0

// WorkbookWriter renders finished tables as single-sheet xlsx files.
type WorkbookWriter struct {
	logger logger.Logger
}

// NewWorkbookWriter creates a workbook writer.
func NewWorkbookWriter() *WorkbookWriter {
	return &WorkbookWriter{
		logger: logger.GetGlobalLogger().WithComponent("workbook_writer"),
	}
}

// WriteTable writes the table to path. The header row comes from the column
// names; every cell is written as text so identifiers keep their leading
// zeros. No row-index column is added.
func (w *WorkbookWriter) WriteTable(tbl *table.Table, path string) error {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil {
			w.logger.WithError(cerr).WithField("path", path).Warn("Failed to close workbook")
		}
	}()

	sheet := f.GetSheetName(0)
	columns := tbl.Columns()

	for i, name := range columns {
		cellName, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return errors.ReportError(errors.CodeWorkbookWrite, path, err)
		}
		if err := f.SetCellValue(sheet, cellName, name); err != nil {
			return errors.ReportError(errors.CodeWorkbookWrite, path, err)
		}
	}

	for r := 0; r < tbl.NumRows(); r++ {
		for c, value := range tbl.Row(r) {
			cellName, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return errors.ReportError(errors.CodeWorkbookWrite, path, err)
			}
			if err := f.SetCellStr(sheet, cellName, value); err != nil {
				return errors.ReportError(errors.CodeWorkbookWrite, path, err)
			}
		}
	}

	w.sizeColumns(f, sheet, columns)

	if err := f.SaveAs(path); err != nil {
		w.logger.WithError(err).WithField("path", path).Error("Failed to save workbook")
		return errors.ReportError(errors.CodeWorkbookWrite, path, err)
	}

	w.logger.WithFields(logger.Fields{
		"path":    path,
		"rows":    tbl.NumRows(),
		"columns": len(columns),
	}).Info("Saved workbook")

	return nil
}

// sizeColumns widens each column to fit its header.
func (w *WorkbookWriter) sizeColumns(f *excelize.File, sheet string, columns []string) {
	for i, name := range columns {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			continue
		}
		width := float64(len(name)) + 4
		if width < minColumnWidth {
			width = minColumnWidth
		}
		if err := f.SetColWidth(sheet, col, col, width); err != nil {
			w.logger.WithError(err).WithField("column", name).Debug("Failed to set column width")
		}
	}
}
