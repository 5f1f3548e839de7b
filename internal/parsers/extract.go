// Package parsers reads the two input shapes of a reconciliation run.
//
// Bank extract files are semicolon-delimited Latin-1 CSV files produced by
// the upstream extraction job. Every cell is kept as text; no type inference
// happens anywhere in the pipeline. The PAC agreement workbook is an xlsx
// export from the secondary system, read through excelize.
//
// Parser Types:
//   - ExtractParser: one bank extract file into an all-text table
//   - LookupParser: the PAC workbook into a bank-indexed lookup table
//
// Example usage:
//
//	parser, err := NewExtractParser(DefaultExtractParserConfig())
//	tbl, stats, err := parser.ParseFile("KUNDE.B1234.K1.CSV")
//
// Parse failures are classified, not repaired: a file with no data rows (or
// too few columns to carry a category label) is reported as no-data, anything
// else as a format error. The caller decides what either means for the run.
package parsers

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"bank-extract-reconciler/internal/table"
	"bank-extract-reconciler/pkg/errors"
	"bank-extract-reconciler/pkg/logger"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// ExtractParser reads bank extract files into all-text tables.
type ExtractParser struct {
	config *ExtractParserConfig
	logger logger.Logger
}

// NewExtractParser creates a new ExtractParser with the given configuration
func NewExtractParser(config *ExtractParserConfig) (*ExtractParser, error) {
	if config == nil {
		config = DefaultExtractParserConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(
			errors.CodeInvalidConfig,
			"extract_parser_config",
			config,
			err,
		).WithSuggestion("Check the extract parser configuration values")
	}

	log := logger.GetGlobalLogger().WithComponent("extract_parser")
	log.WithFields(logger.Fields{
		"delimiter":   string(config.Delimiter),
		"min_columns": config.MinColumns,
	}).Debug("Created extract parser")

	return &ExtractParser{
		config: config,
		logger: log,
	}, nil
}

// ParseStats holds statistics about a single parsed extract file
type ParseStats struct {
	DataRows int
	Columns  int
}

// String returns a human-readable summary of parsing statistics
func (ps *ParseStats) String() string {
	return fmt.Sprintf("%d data rows x %d columns", ps.DataRows, ps.Columns)
}

// ParseFile parses one extract file with a background context.
func (ep *ExtractParser) ParseFile(filePath string) (*table.Table, *ParseStats, error) {
	return ep.ParseFileWithContext(context.Background(), filePath)
}

// ParseFileWithContext reads filePath as semicolon-delimited Latin-1 text.
// The first row is the header; every following row must have the same field
// count. All cells stay strings.
func (ep *ExtractParser) ParseFileWithContext(ctx context.Context, filePath string) (*table.Table, *ParseStats, error) {
	ep.logger.WithField("file_path", filePath).Debug("Parsing extract file")

	file, err := os.Open(filePath)
	if err != nil {
		ep.logger.WithError(err).WithField("file_path", filePath).Error("Failed to open extract file")
		return nil, nil, errors.ParseError(errors.CodeFileUnreadable, filePath, err)
	}
	defer file.Close()

	reader := ep.newReader(file)

	headers, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			ep.logger.WithField("file_path", filePath).Debug("Extract file is empty")
			return nil, nil, errors.ParseError(errors.CodeNoData, filePath, nil)
		}
		ep.logger.WithError(err).WithField("file_path", filePath).Warn("Failed to read header row")
		return nil, nil, errors.ParseError(errors.CodeInvalidFormat, filePath, err)
	}

	if len(headers) < ep.config.MinColumns {
		ep.logger.WithFields(logger.Fields{
			"file_path":   filePath,
			"columns":     len(headers),
			"min_columns": ep.config.MinColumns,
		}).Debug("Extract file has too few columns to carry a category")
		return nil, nil, errors.ParseError(errors.CodeNoData, filePath, nil).
			WithContext("columns", len(headers))
	}

	tbl, err := table.New(cleanHeaders(headers))
	if err != nil {
		ep.logger.WithError(err).WithField("file_path", filePath).Warn("Rejecting header row")
		return nil, nil, errors.ParseError(errors.CodeInvalidFormat, filePath, err)
	}

	for {
		select {
		case <-ctx.Done():
			ep.logger.WithField("file_path", filePath).Warn("Extract parsing cancelled")
			return nil, nil, errors.InternalError(errors.CodeUnexpectedError, "extract_parsing", ctx.Err())
		default:
		}

		record, err := reader.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			ep.logger.WithError(err).WithField("file_path", filePath).Warn("Failed to read extract record")
			return nil, nil, errors.ParseError(errors.CodeInvalidFormat, filePath, err)
		}

		if err := tbl.AppendRow(record); err != nil {
			return nil, nil, errors.ParseError(errors.CodeInvalidFormat, filePath, err)
		}
	}

	if tbl.NumRows() == 0 {
		ep.logger.WithField("file_path", filePath).Debug("Extract file has a header but no data rows")
		return nil, nil, errors.ParseError(errors.CodeNoData, filePath, nil)
	}

	stats := &ParseStats{
		DataRows: tbl.NumRows(),
		Columns:  tbl.NumCols(),
	}

	ep.logger.WithFields(logger.Fields{
		"file_path": filePath,
		"stats":     stats.String(),
	}).Debug("Parsed extract file")

	return tbl, stats, nil
}

// newReader wraps the file in a Latin-1 decoder and configures the CSV
// reader. The header row fixes the expected field count; ragged data rows
// fail the whole file.
func (ep *ExtractParser) newReader(file *os.File) *csv.Reader {
	decoder := transform.NewReader(file, charmap.ISO8859_1.NewDecoder())

	reader := csv.NewReader(decoder)
	reader.Comma = ep.config.Delimiter
	reader.LazyQuotes = ep.config.LazyQuotes
	reader.FieldsPerRecord = 0
	return reader
}

// cleanHeaders removes whitespace around header names
func cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))
	for i, header := range headers {
		cleaned[i] = strings.TrimSpace(header)
	}
	return cleaned
}
