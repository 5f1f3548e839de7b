package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"syscall"

	"bank-extract-reconciler/pkg/errors"
	"bank-extract-reconciler/pkg/logger"

	"github.com/spf13/viper"
)

// CLIErrorHandler turns run failures into operator-readable output and an
// exit code.
type CLIErrorHandler struct {
	logger  logger.Logger
	verbose bool
}

// NewCLIErrorHandler creates a new CLI error handler
func NewCLIErrorHandler() *CLIErrorHandler {
	return &CLIErrorHandler{
		logger:  logger.GetGlobalLogger().WithComponent("cli"),
		verbose: viper.GetBool("verbose"),
	}
}

// HandleError handles errors and provides user-friendly messages
func (h *CLIErrorHandler) HandleError(err error) int {
	if err == nil {
		return 0
	}

	// Log the error
	h.logger.WithError(err).Error("Command failed")

	// Handle ReconError with detailed information
	if reconErr, ok := errors.AsReconError(err); ok {
		return h.handleReconError(reconErr)
	}

	// Handle other error types
	return h.handleGenericError(err)
}

// handleReconError handles ReconError with detailed context
func (h *CLIErrorHandler) handleReconError(err *errors.ReconError) int {
	// Print the main error message
	fmt.Fprintf(os.Stderr, "Error: %s\n", err.Message)

	// Add context information if available, in stable order
	if len(err.Context) > 0 {
		keys := make([]string, 0, len(err.Context))
		for key := range err.Context {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		fmt.Fprintf(os.Stderr, "\nContext:\n")
		for _, key := range keys {
			fmt.Fprintf(os.Stderr, "  %s: %v\n", key, err.Context[key])
		}
	}

	// Add suggestion if available
	if err.Suggestion != "" {
		fmt.Fprintf(os.Stderr, "\nSuggestion: %s\n", err.Suggestion)
	}

	// Add category-specific help
	fmt.Fprintf(os.Stderr, "\n%s\n", h.getCategoryHelp(err.Category))

	// Show underlying error in verbose mode
	if h.verbose && err.Cause != nil {
		fmt.Fprintf(os.Stderr, "\nUnderlying error: %v\n", err.Cause)
	}

	return err.GetExitCode()
}

// handleGenericError handles non-ReconError types
func (h *CLIErrorHandler) handleGenericError(err error) int {
	// Check for common system errors and provide better messages
	if h.isFileNotFoundError(err) {
		fmt.Fprintf(os.Stderr, "Error: File not found\n")
		fmt.Fprintf(os.Stderr, "Suggestion: Check if the file path is correct and the file exists\n")
		return 2
	}

	if h.isPermissionError(err) {
		fmt.Fprintf(os.Stderr, "Error: Permission denied\n")
		fmt.Fprintf(os.Stderr, "Suggestion: Check file permissions and ensure you have read access\n")
		return 2
	}

	if h.isDiskFullError(err) {
		fmt.Fprintf(os.Stderr, "Error: Insufficient disk space\n")
		fmt.Fprintf(os.Stderr, "Suggestion: Free up disk space and try again\n")
		return 2
	}

	// Generic error handling
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)

	if !h.verbose {
		fmt.Fprintf(os.Stderr, "\nRun with --verbose for more detailed error information\n")
	}

	return 1
}

// getCategoryHelp returns category-specific help text
func (h *CLIErrorHandler) getCategoryHelp(category errors.ErrorCategory) string {
	switch category {
	case errors.CategoryScan:
		return `Scan error help:
• Check that the base directory exists and is readable
• Extract files must carry a .B<nnnn>. bank tag in their name
• Use --only-bank with a bank id that actually appears in the directory
• Use --base-dir to point at the directory holding the extracts`

	case errors.CategoryConsistency:
		return `Consistency error help:
• Every bank in the directory must expose the same set of category files
• Compare the listed banks' files against the reference bank
• Remove stray extract files or add the missing ones, then rerun`

	case errors.CategoryParse:
		return `Parse error help:
• Extract files are semicolon separated and Latin-1 encoded
• The category label sits in the third column of the first data row
• Check the named file for truncation or a missing header row`

	case errors.CategoryMerge:
		return `Merge error help:
• Every extract file must carry the key column (default Kundenummer)
• Use --key-column if your extracts key customers differently
• Check that the files of the named bank share a common layout`

	case errors.CategoryEnrich:
		return `Enrichment error help:
• The PAC workbook must be a readable xlsx file
• Required columns: BANK_ID, FORETAKSNR, PERSONNR, AVTALE_ID, BRUKERTYPE
• Rows are read from the first sheet only
• Use --skip-bm to run the person flow without PAC enrichment`

	case errors.CategoryReport:
		return `Report error help:
• Check that the output directory is writable
• Close the artifact if it is open in a spreadsheet application
• Check available disk space`

	case errors.CategoryConfiguration:
		return `Configuration error help:
• Check your command-line flags and arguments
• Verify configuration file syntax if using --config
• Use 'extrecon reconcile --help' to see all available options
• Try running with default settings first`

	default:
		return `For more help:
• Use 'extrecon --help' for general help
• Use 'extrecon reconcile --help' for command-specific help
• Run with --verbose to echo the full log to the console
• The run log file holds one timestamped line per event`
	}
}

// Error detection helpers

func (h *CLIErrorHandler) isFileNotFoundError(err error) bool {
	return os.IsNotExist(err) || strings.Contains(err.Error(), "no such file or directory")
}

func (h *CLIErrorHandler) isPermissionError(err error) bool {
	return os.IsPermission(err) ||
		strings.Contains(err.Error(), "permission denied") ||
		strings.Contains(err.Error(), "access denied")
}

func (h *CLIErrorHandler) isDiskFullError(err error) bool {
	if err == syscall.ENOSPC {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "no space left") ||
		strings.Contains(errStr, "disk full") ||
		strings.Contains(errStr, "device full")
}
