package parsers

import (
	"fmt"
	"strings"
)

// ExtractParserConfig holds configuration for reading bank extract files.
type ExtractParserConfig struct {
	Delimiter  rune `json:"delimiter"`
	MinColumns int  `json:"min_columns"`
	LazyQuotes bool `json:"lazy_quotes"`
}

// Validate checks if the extract parser configuration is valid
func (epc *ExtractParserConfig) Validate() error {
	if epc.Delimiter == 0 {
		return fmt.Errorf("delimiter cannot be empty")
	}

	if epc.MinColumns < 1 {
		return fmt.Errorf("minimum column count must be positive, got %d", epc.MinColumns)
	}

	return nil
}

// DefaultExtractParserConfig returns the configuration matching the upstream
// extraction job: semicolon-delimited Latin-1 files whose third column carries
// the category label.
func DefaultExtractParserConfig() *ExtractParserConfig {
	return &ExtractParserConfig{
		Delimiter:  ';',
		MinColumns: 3,
		LazyQuotes: true,
	}
}

// LookupParserConfig holds configuration for reading the PAC agreement
// workbook. Column names refer to headers on the first sheet.
type LookupParserConfig struct {
	Sheet              int    `json:"sheet"`
	BankIDColumn       string `json:"bank_id_column"`
	OrgNumberColumn    string `json:"org_number_column"`
	PersonNumberColumn string `json:"person_number_column"`
	AgreementColumn    string `json:"agreement_column"`
	UserTypeColumn     string `json:"user_type_column"`
}

// Validate checks if the lookup parser configuration is valid
func (lpc *LookupParserConfig) Validate() error {
	if lpc.Sheet < 0 {
		return fmt.Errorf("sheet index cannot be negative, got %d", lpc.Sheet)
	}

	if strings.TrimSpace(lpc.BankIDColumn) == "" {
		return fmt.Errorf("bank id column cannot be empty")
	}

	if strings.TrimSpace(lpc.OrgNumberColumn) == "" {
		return fmt.Errorf("org number column cannot be empty")
	}

	if strings.TrimSpace(lpc.PersonNumberColumn) == "" {
		return fmt.Errorf("person number column cannot be empty")
	}

	if strings.TrimSpace(lpc.AgreementColumn) == "" {
		return fmt.Errorf("agreement column cannot be empty")
	}

	if strings.TrimSpace(lpc.UserTypeColumn) == "" {
		return fmt.Errorf("user type column cannot be empty")
	}

	return nil
}

// RequiredColumns returns the headers the lookup workbook must carry.
func (lpc *LookupParserConfig) RequiredColumns() []string {
	return []string{
		lpc.BankIDColumn,
		lpc.OrgNumberColumn,
		lpc.PersonNumberColumn,
		lpc.AgreementColumn,
		lpc.UserTypeColumn,
	}
}

// DefaultLookupParserConfig returns the configuration matching the standard
// PAC export layout.
func DefaultLookupParserConfig() *LookupParserConfig {
	return &LookupParserConfig{
		Sheet:              0,
		BankIDColumn:       "BANK_ID",
		OrgNumberColumn:    "FORETAKSNR",
		PersonNumberColumn: "PERSONNR",
		AgreementColumn:    "AVTALE_ID",
		UserTypeColumn:     "BRUKERTYPE",
	}
}
