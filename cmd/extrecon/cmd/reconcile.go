package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"bank-extract-reconciler/cmd/extrecon/config"
	"bank-extract-reconciler/internal/models"
	"bank-extract-reconciler/internal/reconciler"
	"bank-extract-reconciler/internal/reporter"
	"bank-extract-reconciler/pkg/errors"
	"bank-extract-reconciler/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the reconcile command
var (
	baseDir   string
	pacFile   string
	outputDir string
	logFile   string
	onlyBank  string
	skipPM    bool
	skipBM    bool
	keyColumn string
)

// Bank ids are the four digits between ".B" and "." in extract file names.
var bankIDPattern = regexp.MustCompile(`^\d{4}$`)

// reconcileCmd represents the reconcile command
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Merge bank extracts and enrich them from the PAC workbook",
	Long: `Reconcile scans a directory of bank extract files, merges each bank's
per-category files into one wide table with J/N presence flags, reconciles
duplicate customer rows, and writes one xlsx artifact per bank and flow.

The person flow (PM) covers plain .CSV extracts. The business flow (BM)
covers .CSV.BM extracts and is enriched with agreement and user data from
the PAC workbook before it is written.

This command requires:
- A base directory holding the extract files (named *.B<nnnn>.*)
- A PAC workbook (xlsx) with bank, agreement and user columns

Examples:
  # Process every bank found in the extract directory
  extrecon reconcile --base-dir ./extracts --pac-file ./pac.xlsx

  # One bank only, custom output directory
  extrecon reconcile -b ./extracts -p ./pac.xlsx -o ./exports --only-bank 1234

  # Person flow only, with the full log echoed to the console
  extrecon reconcile -b ./extracts -p ./pac.xlsx --skip-bm --verbose

  # Append the run log somewhere specific
  extrecon reconcile -b ./extracts -p ./pac.xlsx --log-file /var/log/extrecon.log`,

	PreRunE: validateReconcileFlags,
	RunE:    runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	// Required flags
	reconcileCmd.Flags().StringVarP(&baseDir, "base-dir", "b", "", "directory holding the bank extract files (required)")
	reconcileCmd.Flags().StringVarP(&pacFile, "pac-file", "p", "", "path to the PAC workbook, xlsx (required)")

	// Output flags
	reconcileCmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "directory for the xlsx artifacts (default: excel_exports_{date})")
	reconcileCmd.Flags().StringVar(&logFile, "log-file", "", "run log file (default: reconcile_{date}.log)")

	// Run scope flags
	reconcileCmd.Flags().StringVar(&onlyBank, "only-bank", "", "process a single bank id (four digits)")
	reconcileCmd.Flags().BoolVar(&skipPM, "skip-pm", false, "skip the person flow (.CSV extracts)")
	reconcileCmd.Flags().BoolVar(&skipBM, "skip-bm", false, "skip the business flow (.CSV.BM extracts)")
	reconcileCmd.Flags().StringVar(&keyColumn, "key-column", "Kundenummer", "customer key column used for merge and dedup")

	// Mark required flags
	reconcileCmd.MarkFlagRequired("base-dir")
	reconcileCmd.MarkFlagRequired("pac-file")

	// Bind flags to viper
	viper.BindPFlag("base-dir", reconcileCmd.Flags().Lookup("base-dir"))
	viper.BindPFlag("pac-file", reconcileCmd.Flags().Lookup("pac-file"))
	viper.BindPFlag("output-dir", reconcileCmd.Flags().Lookup("output-dir"))
	viper.BindPFlag("log-file", reconcileCmd.Flags().Lookup("log-file"))
	viper.BindPFlag("only-bank", reconcileCmd.Flags().Lookup("only-bank"))
	viper.BindPFlag("skip-pm", reconcileCmd.Flags().Lookup("skip-pm"))
	viper.BindPFlag("skip-bm", reconcileCmd.Flags().Lookup("skip-bm"))
	viper.BindPFlag("key-column", reconcileCmd.Flags().Lookup("key-column"))
}

func validateReconcileFlags(cmd *cobra.Command, args []string) error {
	// Get values from viper (allows override from config file and env)
	baseDir = viper.GetString("base-dir")
	pacFile = viper.GetString("pac-file")
	outputDir = viper.GetString("output-dir")
	logFile = viper.GetString("log-file")
	onlyBank = viper.GetString("only-bank")
	skipPM = viper.GetBool("skip-pm")
	skipBM = viper.GetBool("skip-bm")
	keyColumn = viper.GetString("key-column")

	// Validate required flags
	if baseDir == "" {
		return fmt.Errorf("base-dir is required")
	}
	if pacFile == "" {
		return fmt.Errorf("pac-file is required")
	}

	if err := validateDirExists(baseDir, "extract directory"); err != nil {
		return err
	}
	if err := validateFileExists(pacFile, "PAC workbook"); err != nil {
		return err
	}

	if skipPM && skipBM {
		return fmt.Errorf("cannot skip both flows, nothing would be processed")
	}

	if onlyBank != "" && !bankIDPattern.MatchString(onlyBank) {
		return fmt.Errorf("invalid bank id '%s': expected four digits", onlyBank)
	}

	if strings.TrimSpace(keyColumn) == "" {
		return fmt.Errorf("key-column cannot be blank")
	}

	// The output directory is created on demand, but it must not collide
	// with an existing file.
	if outputDir != "" {
		if info, err := os.Stat(outputDir); err == nil && !info.IsDir() {
			return fmt.Errorf("output-dir exists and is not a directory: %s", outputDir)
		}
	}

	// Validate log file directory exists if specified
	if logFile != "" {
		dir := filepath.Dir(logFile)
		if dir != "." {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				return fmt.Errorf("log directory does not exist: %s", dir)
			}
		}
	}

	return nil
}

func validateDirExists(dirPath, description string) error {
	if dirPath == "" {
		return fmt.Errorf("%s path cannot be empty", description)
	}

	info, err := os.Stat(dirPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("%s does not exist: %s", description, dirPath)
	}
	if err != nil {
		return fmt.Errorf("error accessing %s: %w", description, err)
	}

	if !info.IsDir() {
		return fmt.Errorf("%s is a file, expected a directory: %s", description, dirPath)
	}

	return nil
}

func validateFileExists(filePath, description string) error {
	if filePath == "" {
		return fmt.Errorf("%s path cannot be empty", description)
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return fmt.Errorf("%s does not exist: %s", description, filePath)
	}
	if err != nil {
		return fmt.Errorf("error accessing %s: %w", description, err)
	}

	if info.IsDir() {
		return fmt.Errorf("%s is a directory, expected a file: %s", description, filePath)
	}

	// Check if file is readable
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("%s is not readable: %w", description, err)
	}
	file.Close()

	return nil
}

func runReconcile(cmd *cobra.Command, args []string) error {
	stamp := time.Now().Format(reconciler.StampLayout)
	runLog := config.RunLogFile(stamp)

	log, err := logger.NewLogger(config.CreateLoggerConfig(runLog))
	if err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "log_file", runLog, err).
			WithSuggestion("check that the log file location is writable")
	}
	logger.SetGlobalLogger(log)

	service, err := reconciler.NewService(config.CreateRunConfig(stamp))
	if err != nil {
		return err
	}

	summary, err := service.Run(context.Background())
	if err != nil {
		return err
	}

	// The summary block goes to the console and to the end of the run log.
	reporter.WriteRunSummary(os.Stdout, summary)
	if err := appendSummaryToLog(runLog, summary); err != nil {
		log.WithComponent("cli").WithError(err).
			Warn("Could not append the run summary to the log file")
	}

	return nil
}

func appendSummaryToLog(path string, summary *models.RunSummary) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	reporter.WriteRunSummary(f, summary)
	return nil
}
