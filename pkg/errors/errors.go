package errors

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	CategoryScan          ErrorCategory = "scan"
	CategoryConsistency   ErrorCategory = "consistency"
	CategoryParse         ErrorCategory = "parse"
	CategoryMerge         ErrorCategory = "merge"
	CategoryEnrich        ErrorCategory = "enrich"
	CategoryReport        ErrorCategory = "report"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryInternal      ErrorCategory = "internal"
)

// ErrorCode represents specific error codes within categories
type ErrorCode string

const (
	// Scan errors
	CodeDirectoryUnreadable ErrorCode = "directory_unreadable"
	CodeNoBanksFound        ErrorCode = "no_banks_found"

	// Consistency errors
	CodeShapeMismatch ErrorCode = "shape_mismatch"

	// Parse errors
	CodeNoData         ErrorCode = "no_data"
	CodeInvalidFormat  ErrorCode = "invalid_format"
	CodeFileUnreadable ErrorCode = "file_unreadable"

	// Merge errors
	CodeMissingKeyColumn ErrorCode = "missing_key_column"

	// Enrichment errors
	CodeLookupUnavailable ErrorCode = "lookup_unavailable"
	CodeLookupFormat      ErrorCode = "lookup_format"

	// Report errors
	CodeWorkbookWrite ErrorCode = "workbook_write"

	// Configuration errors
	CodeInvalidConfig   ErrorCode = "invalid_config"
	CodeMissingArgument ErrorCode = "missing_argument"

	// Internal errors
	CodeUnexpectedError ErrorCode = "unexpected_error"
)

// ReconError is the base error type for all application errors
type ReconError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional information about the error
type Context map[string]interface{}

// Error implements the error interface
func (e *ReconError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", e.Message, e.Suggestion)
	}
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *ReconError) Unwrap() error {
	return e.Cause
}

// IsFatal reports whether the error must abort the whole run. Only scan,
// consistency and configuration problems qualify; everything else is
// recoverable at flow or file granularity.
func (e *ReconError) IsFatal() bool {
	switch e.Category {
	case CategoryScan, CategoryConsistency, CategoryConfiguration:
		return true
	default:
		return false
	}
}

// GetExitCode returns an appropriate exit code for the error
func (e *ReconError) GetExitCode() int {
	switch e.Category {
	case CategoryScan:
		return 2
	case CategoryConsistency:
		return 3
	case CategoryConfiguration:
		return 4
	case CategoryParse, CategoryMerge, CategoryEnrich, CategoryReport:
		return 5
	case CategoryInternal:
		return 6
	default:
		return 1
	}
}

// WithContext adds context information to the error
func (e *ReconError) WithContext(key string, value interface{}) *ReconError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion for fixing the error
func (e *ReconError) WithSuggestion(suggestion string) *ReconError {
	e.Suggestion = suggestion
	return e
}

// New creates a new ReconError
func New(category ErrorCategory, code ErrorCode, message string) *ReconError {
	return &ReconError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with ReconError context
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *ReconError {
	if err == nil {
		return nil
	}

	return &ReconError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

// stackTracer interface for extracting stack traces
type stackTracer interface {
	StackTrace() errors.StackTrace
}

// Specific error constructors

// ScanError creates a directory-scan error
func ScanError(code ErrorCode, dir string, err error) *ReconError {
	var message string
	var suggestion string

	switch code {
	case CodeDirectoryUnreadable:
		message = fmt.Sprintf("cannot read extract directory: %s", dir)
		suggestion = "check that the directory exists and you have read access"
	case CodeNoBanksFound:
		message = fmt.Sprintf("no bank extract files found in %s", dir)
		suggestion = "verify the directory contains files named with a .B<nnnn>. bank code"
	default:
		message = fmt.Sprintf("scan error in directory %s", dir)
		suggestion = "check the extract directory and try again"
	}

	var result *ReconError
	if err != nil {
		result = Wrap(err, CategoryScan, code, message)
	} else {
		result = New(CategoryScan, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("directory", dir)
}

// ShapeMismatchError creates the consistency error raised when a bank's
// file-set shape diverges from the reference bank's
func ShapeMismatchError(bank, reference string, missing, unexpected []string) *ReconError {
	message := fmt.Sprintf("bank %s file set does not match reference bank %s", bank, reference)

	return New(CategoryConsistency, CodeShapeMismatch, message).
		WithSuggestion("the upstream extraction job must deliver the same file types for every bank").
		WithContext("bank", bank).
		WithContext("reference_bank", reference).
		WithContext("missing_files", missing).
		WithContext("unexpected_files", unexpected)
}

// ParseError creates a per-file parsing error
func ParseError(code ErrorCode, file string, err error) *ReconError {
	var message string
	var suggestion string

	switch code {
	case CodeNoData:
		message = fmt.Sprintf("file contains no data rows: %s", file)
		suggestion = "an empty extract is expected when the bank has no records for this category"
	case CodeInvalidFormat:
		message = fmt.Sprintf("invalid format in file %s", file)
		suggestion = "check that the file is semicolon-delimited Latin-1 text"
	case CodeFileUnreadable:
		message = fmt.Sprintf("cannot read file: %s", file)
		suggestion = "check that the file still exists and you have read access"
	default:
		message = fmt.Sprintf("parse error in file %s", file)
		suggestion = "check the file format and data integrity"
	}

	var result *ReconError
	if err != nil {
		result = Wrap(err, CategoryParse, code, message)
	} else {
		result = New(CategoryParse, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("file", file)
}

// MergeError creates a merge/deduplication error for one bank's flow
func MergeError(code ErrorCode, bank string, err error) *ReconError {
	var message string
	var suggestion string

	switch code {
	case CodeMissingKeyColumn:
		message = fmt.Sprintf("merged table for bank %s has no customer key column", bank)
		suggestion = "check that the extract files carry the configured key column header"
	default:
		message = fmt.Sprintf("merge error for bank %s", bank)
		suggestion = "review the bank's extract files"
	}

	var result *ReconError
	if err != nil {
		result = Wrap(err, CategoryMerge, code, message)
	} else {
		result = New(CategoryMerge, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("bank", bank)
}

// EnrichError creates a lookup/enrichment error
func EnrichError(code ErrorCode, source string, err error) *ReconError {
	var message string
	var suggestion string

	switch code {
	case CodeLookupUnavailable:
		message = fmt.Sprintf("cannot read lookup workbook: %s", source)
		suggestion = "check that the PAC export exists and is a readable xlsx file"
	case CodeLookupFormat:
		message = fmt.Sprintf("lookup workbook has unexpected layout: %s", source)
		suggestion = "the PAC export must carry BANK_ID, FORETAKSNR, PERSONNR, AVTALE_ID and BRUKERTYPE columns"
	default:
		message = fmt.Sprintf("enrichment error using %s", source)
		suggestion = "check the lookup export and try again"
	}

	var result *ReconError
	if err != nil {
		result = Wrap(err, CategoryEnrich, code, message)
	} else {
		result = New(CategoryEnrich, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("source", source)
}

// ReportError creates an output-artifact error
func ReportError(code ErrorCode, path string, err error) *ReconError {
	var message string
	var suggestion string

	switch code {
	case CodeWorkbookWrite:
		message = fmt.Sprintf("cannot write output workbook: %s", path)
		suggestion = "check disk space and write permissions on the output directory"
	default:
		message = fmt.Sprintf("report error for %s", path)
		suggestion = "check the output location and try again"
	}

	var result *ReconError
	if err != nil {
		result = Wrap(err, CategoryReport, code, message)
	} else {
		result = New(CategoryReport, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("path", path)
}

// ConfigurationError creates a configuration-related error
func ConfigurationError(code ErrorCode, setting string, value interface{}, err error) *ReconError {
	var message string
	var suggestion string

	switch code {
	case CodeInvalidConfig:
		message = fmt.Sprintf("invalid configuration for '%s': %v", setting, value)
		suggestion = "check the flag documentation for valid values"
	case CodeMissingArgument:
		message = fmt.Sprintf("missing required argument: %s", setting)
		suggestion = "provide this flag on the command line or in the config file"
	default:
		message = fmt.Sprintf("configuration error: %s", setting)
		suggestion = "check your configuration and try again"
	}

	var result *ReconError
	if err != nil {
		result = Wrap(err, CategoryConfiguration, code, message)
	} else {
		result = New(CategoryConfiguration, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("setting", setting).
		WithContext("value", value)
}

// InternalError creates an internal error
func InternalError(code ErrorCode, operation string, err error) *ReconError {
	var message string
	var suggestion string

	switch code {
	case CodeUnexpectedError:
		message = fmt.Sprintf("unexpected error during %s", operation)
		suggestion = "this is likely a bug - please report it with the error details"
	default:
		message = fmt.Sprintf("internal error during %s", operation)
		suggestion = "try again or contact support if the problem persists"
	}

	var result *ReconError
	if err != nil {
		result = Wrap(err, CategoryInternal, code, message)
	} else {
		result = New(CategoryInternal, code, message)
	}

	return result.
		WithSuggestion(suggestion).
		WithContext("operation", operation)
}

// ErrorSummary provides a summary of multiple recoverable errors
type ErrorSummary struct {
	Total        int                   `json:"total"`
	ByCategory   map[ErrorCategory]int `json:"by_category"`
	ByCode       map[ErrorCode]int     `json:"by_code"`
	Errors       []*ReconError         `json:"errors"`
	SampleErrors []*ReconError         `json:"sample_errors,omitempty"`
}

// NewErrorSummary creates a new error summary
func NewErrorSummary(errors []*ReconError) *ErrorSummary {
	if len(errors) == 0 {
		return &ErrorSummary{
			Total:      0,
			ByCategory: make(map[ErrorCategory]int),
			ByCode:     make(map[ErrorCode]int),
			Errors:     []*ReconError{},
		}
	}

	summary := &ErrorSummary{
		Total:      len(errors),
		ByCategory: make(map[ErrorCategory]int),
		ByCode:     make(map[ErrorCode]int),
		Errors:     errors,
	}

	for _, err := range errors {
		summary.ByCategory[err.Category]++
		summary.ByCode[err.Code]++
	}

	// Include sample errors (max 5)
	maxSamples := 5
	if len(errors) > maxSamples {
		summary.SampleErrors = errors[:maxSamples]
	} else {
		summary.SampleErrors = errors
	}

	return summary
}

// Error returns a formatted error message for the summary
func (es *ErrorSummary) Error() string {
	if es.Total == 0 {
		return "no errors"
	}

	if es.Total == 1 {
		return es.Errors[0].Error()
	}

	var categories []string
	for category, count := range es.ByCategory {
		categories = append(categories, fmt.Sprintf("%s: %d", category, count))
	}

	return fmt.Sprintf("%d errors occurred (%s)", es.Total, strings.Join(categories, ", "))
}

// HasCategory checks if the summary contains errors of the given category
func (es *ErrorSummary) HasCategory(category ErrorCategory) bool {
	count, exists := es.ByCategory[category]
	return exists && count > 0
}

// HasCode checks if the summary contains errors with the given code
func (es *ErrorSummary) HasCode(code ErrorCode) bool {
	count, exists := es.ByCode[code]
	return exists && count > 0
}

// GetExitCode returns the highest priority exit code from all errors
func (es *ErrorSummary) GetExitCode() int {
	if es.Total == 0 {
		return 0
	}

	maxCode := 1
	for _, err := range es.Errors {
		if code := err.GetExitCode(); code > maxCode {
			maxCode = code
		}
	}

	return maxCode
}

// Utility functions

// IsReconError checks if an error is a ReconError
func IsReconError(err error) bool {
	_, ok := err.(*ReconError)
	return ok
}

// AsReconError extracts a ReconError from an error chain
func AsReconError(err error) (*ReconError, bool) {
	var reconErr *ReconError
	if errors.As(err, &reconErr) {
		return reconErr, true
	}
	return nil, false
}

// WrapIfNeeded wraps an error if it's not already a ReconError
func WrapIfNeeded(err error, category ErrorCategory, code ErrorCode, message string) *ReconError {
	if err == nil {
		return nil
	}

	if reconErr, ok := AsReconError(err); ok {
		return reconErr
	}

	return Wrap(err, category, code, message)
}
