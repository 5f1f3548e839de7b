package parsers

import (
	"fmt"
	"strings"

	"bank-extract-reconciler/internal/models"
	"bank-extract-reconciler/pkg/errors"
	"bank-extract-reconciler/pkg/logger"

	"github.com/xuri/excelize/v2"
)

// LookupParser reads the PAC agreement workbook.
type LookupParser struct {
	config *LookupParserConfig
	logger logger.Logger
}

// NewLookupParser creates a new LookupParser with the given configuration
func NewLookupParser(config *LookupParserConfig) (*LookupParser, error) {
	if config == nil {
		config = DefaultLookupParserConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(
			errors.CodeInvalidConfig,
			"lookup_parser_config",
			config,
			err,
		).WithSuggestion("Check the lookup parser configuration values")
	}

	log := logger.GetGlobalLogger().WithComponent("lookup_parser")

	return &LookupParser{
		config: config,
		logger: log,
	}, nil
}

// ParseLookup reads the workbook at filePath into a bank-indexed lookup
// table. Organization numbers are normalized to their fixed display width so
// they match the extracts' customer key column.
func (lp *LookupParser) ParseLookup(filePath string) (*models.LookupTable, error) {
	lp.logger.WithField("file_path", filePath).Info("Loading lookup workbook")

	f, err := excelize.OpenFile(filePath)
	if err != nil {
		lp.logger.WithError(err).WithField("file_path", filePath).Error("Failed to open lookup workbook")
		return nil, errors.EnrichError(errors.CodeLookupUnavailable, filePath, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			lp.logger.WithError(cerr).WithField("file_path", filePath).Warn("Failed to close lookup workbook")
		}
	}()

	sheet := f.GetSheetName(lp.config.Sheet)
	if sheet == "" {
		return nil, errors.EnrichError(
			errors.CodeLookupFormat,
			filePath,
			fmt.Errorf("workbook has no sheet at index %d", lp.config.Sheet),
		)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		lp.logger.WithError(err).WithField("sheet", sheet).Error("Failed to read lookup sheet")
		return nil, errors.EnrichError(errors.CodeLookupUnavailable, filePath, err)
	}
	if len(rows) == 0 {
		return nil, errors.EnrichError(
			errors.CodeLookupFormat,
			filePath,
			fmt.Errorf("sheet %q is empty", sheet),
		)
	}

	columns, err := lp.mapColumns(rows[0], filePath)
	if err != nil {
		return nil, err
	}

	records := make([]models.LookupRow, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if isEmptyRow(row) {
			continue
		}
		records = append(records, models.LookupRow{
			BankID:       cell(row, columns.bankID),
			OrgNumber:    models.NormalizeOrgNumber(cell(row, columns.orgNumber)),
			PersonNumber: cell(row, columns.personNumber),
			AgreementID:  cell(row, columns.agreement),
			UserType:     cell(row, columns.userType),
		})
	}

	lookup := models.NewLookupTable(records)
	lp.logger.WithFields(logger.Fields{
		"file_path": filePath,
		"rows":      lookup.Len(),
	}).Info("Loaded lookup workbook")

	return lookup, nil
}

// lookupColumns holds resolved column positions on the lookup sheet.
type lookupColumns struct {
	bankID       int
	orgNumber    int
	personNumber int
	agreement    int
	userType     int
}

// mapColumns resolves the configured header names against the sheet's first
// row. Matching is exact after trimming whitespace.
func (lp *LookupParser) mapColumns(header []string, filePath string) (*lookupColumns, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}

	var missing []string
	for _, name := range lp.config.RequiredColumns() {
		if _, ok := index[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		lp.logger.WithFields(logger.Fields{
			"missing_columns":   missing,
			"available_columns": header,
		}).Error("Lookup workbook is missing required columns")

		return nil, errors.EnrichError(
			errors.CodeLookupFormat,
			filePath,
			fmt.Errorf("missing columns: %s", strings.Join(missing, ", ")),
		).WithContext("missing_columns", missing)
	}

	return &lookupColumns{
		bankID:       index[lp.config.BankIDColumn],
		orgNumber:    index[lp.config.OrgNumberColumn],
		personNumber: index[lp.config.PersonNumberColumn],
		agreement:    index[lp.config.AgreementColumn],
		userType:     index[lp.config.UserTypeColumn],
	}, nil
}

// cell returns row[i], tolerating the short rows excelize produces when
// trailing cells are empty.
func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func isEmptyRow(row []string) bool {
	for _, value := range row {
		if strings.TrimSpace(value) != "" {
			return false
		}
	}
	return true
}
