// Package reconciler drives a full reconciliation run: scan and verify the
// extract directory, load the PAC lookup, then per bank in sorted order run
// the retail (PM) and business (BM) flows, folding every outcome into one
// RunSummary.
//
// Failure policy: scan, consistency and configuration problems abort the run;
// everything below that is recovered at flow or file granularity and recorded
// in the summary instead.
package reconciler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bank-extract-reconciler/internal/enrich"
	"bank-extract-reconciler/internal/extracts"
	"bank-extract-reconciler/internal/merge"
	"bank-extract-reconciler/internal/models"
	"bank-extract-reconciler/internal/parsers"
	"bank-extract-reconciler/internal/reporter"
	"bank-extract-reconciler/pkg/errors"
	"bank-extract-reconciler/pkg/logger"
)

// StampLayout is the date stamp format embedded in artifact and default
// output directory names.
const StampLayout = "20060102"

// Config holds the settings for one reconciliation run.
type Config struct {
	BaseDir    string `json:"base_dir"`
	LookupFile string `json:"lookup_file"`
	OutputDir  string `json:"output_dir"`
	OnlyBank   string `json:"only_bank,omitempty"`
	SkipPM     bool   `json:"skip_pm,omitempty"`
	SkipBM     bool   `json:"skip_bm,omitempty"`
	KeyColumn  string `json:"key_column"`
	Stamp      string `json:"stamp"`
}

// DefaultConfig returns a run configuration with today's date stamp and the
// derived default output directory. BaseDir and LookupFile have no defaults
// and must be supplied by the caller.
func DefaultConfig() *Config {
	stamp := time.Now().Format(StampLayout)
	return &Config{
		OutputDir: "excel_exports_" + stamp,
		KeyColumn: merge.DefaultConfig().KeyColumn,
		Stamp:     stamp,
	}
}

// Validate checks if the run configuration is complete
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BaseDir) == "" {
		return fmt.Errorf("base directory cannot be empty")
	}

	if strings.TrimSpace(c.LookupFile) == "" {
		return fmt.Errorf("lookup file cannot be empty")
	}

	if strings.TrimSpace(c.OutputDir) == "" {
		return fmt.Errorf("output directory cannot be empty")
	}

	if strings.TrimSpace(c.KeyColumn) == "" {
		return fmt.Errorf("key column cannot be empty")
	}

	if strings.TrimSpace(c.Stamp) == "" {
		return fmt.Errorf("date stamp cannot be empty")
	}

	return nil
}

// Service runs the reconciliation over one extract directory.
type Service struct {
	config *Config
	merger *merge.Merger
	writer *reporter.WorkbookWriter
	logger logger.Logger
}

// NewService creates a new Service with the given configuration. Empty
// stamp, output directory and key column fall back to their defaults so a
// caller only has to supply the two input locations.
func NewService(config *Config) (*Service, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if strings.TrimSpace(config.Stamp) == "" {
		config.Stamp = time.Now().Format(StampLayout)
	}
	if strings.TrimSpace(config.OutputDir) == "" {
		config.OutputDir = "excel_exports_" + config.Stamp
	}
	if strings.TrimSpace(config.KeyColumn) == "" {
		config.KeyColumn = merge.DefaultConfig().KeyColumn
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(
			errors.CodeInvalidConfig,
			"run_config",
			config,
			err,
		).WithSuggestion("Check the reconcile command flags")
	}

	mergeConfig := merge.DefaultConfig()
	mergeConfig.BaseDir = config.BaseDir
	mergeConfig.KeyColumn = config.KeyColumn

	merger, err := merge.NewMerger(mergeConfig)
	if err != nil {
		return nil, err
	}

	return &Service{
		config: config,
		merger: merger,
		writer: reporter.NewWorkbookWriter(),
		logger: logger.GetGlobalLogger().WithComponent("reconciler"),
	}, nil
}

// Run executes the whole reconciliation. The returned error is non-nil only
// for conditions that invalidate the run; flow and file failures are logged,
// recorded in the returned summary and do not stop other banks.
func (s *Service) Run(ctx context.Context) (*models.RunSummary, error) {
	s.logger.WithFields(logger.Fields{
		"base_dir":    s.config.BaseDir,
		"lookup_file": s.config.LookupFile,
		"output_dir":  s.config.OutputDir,
		"stamp":       s.config.Stamp,
	}).Info("Starting reconciliation run")

	idx, err := extracts.ScanDir(s.config.BaseDir)
	if err != nil {
		return nil, err
	}

	if err := extracts.CheckConsistency(idx); err != nil {
		return nil, err
	}
	s.logger.WithFields(logger.Fields{
		"banks":     idx.Len(),
		"directory": idx.Dir(),
	}).Info("All banks expose a consistent file set")

	banks := s.selectBanks(idx)
	if len(banks) == 0 {
		return nil, errors.ScanError(errors.CodeNoBanksFound, s.config.BaseDir, nil).
			WithContext("only_bank", s.config.OnlyBank)
	}

	if err := os.MkdirAll(s.config.OutputDir, 0755); err != nil {
		return nil, errors.ConfigurationError(
			errors.CodeInvalidConfig,
			"output_dir",
			s.config.OutputDir,
			err,
		).WithSuggestion("check that the output directory can be created")
	}

	enricher := enrich.NewEnricher(s.loadLookup())

	summary := models.NewRunSummary()
	tracker := logger.NewProgressTracker("reconcile_banks", int64(len(banks)), s.logger)
	var flowFailures []*errors.ReconError

	for _, bank := range banks {
		select {
		case <-ctx.Done():
			return nil, errors.InternalError(errors.CodeUnexpectedError, "bank loop", ctx.Err())
		default:
		}

		report := summary.Bank(bank)

		for _, flow := range []models.Flow{models.FlowPM, models.FlowBM} {
			if s.skips(flow) {
				continue
			}
			if err := s.runFlow(ctx, flow, bank, idx, enricher, report); err != nil {
				flowErr := errors.NewFlowError(bank, flow.String(), err)
				s.logger.WithError(flowErr).WithFields(logger.Fields{
					"bank": bank,
					"flow": flow.String(),
				}).Error("Flow failed")
				report.AddNote(fmt.Sprintf("Error during %s flow for bank %s: %v", flow, bank, err))
				flowFailures = append(flowFailures, flowErr.ReconError)
			}
		}

		tracker.Increment(bank)
	}
	tracker.Complete()

	if len(flowFailures) > 0 {
		failureSummary := errors.NewErrorSummary(flowFailures)
		s.logger.WithField("failures", failureSummary.Error()).
			Warn("Run finished with recoverable flow failures")
	}
	s.logger.WithField("banks", summary.NumBanks()).Info("Reconciliation run completed")

	return summary, nil
}

// runFlow merges, reconciles and writes one bank's flow. BM flows are
// enriched from the lookup between deduplication and summarizing. Every
// returned error is recoverable at this level; the caller records it.
func (s *Service) runFlow(
	ctx context.Context,
	flow models.Flow,
	bank string,
	idx *extracts.Index,
	enricher *enrich.Enricher,
	report *models.BankReport,
) error {
	flowLog := s.logger.WithFields(logger.Fields{"bank": bank, "flow": flow.String()})

	files := idx.Select(bank, flow.Suffix(), true)
	if len(files) == 0 {
		flowLog.Warnf("No %s (%s) files found", flow, flow.Suffix())
		report.AddNote(fmt.Sprintf("No %s (%s) files found for bank %s", flow, flow.Suffix(), bank))
		return nil
	}

	flowLog.WithField("files", len(files)).Info("Starting flow")

	merged, outcome, err := s.merger.MergeFiles(ctx, bank, files)
	if err != nil {
		return err
	}
	for _, category := range outcome.MergedCategories {
		report.AddMerged(category)
	}
	for _, name := range outcome.Missing {
		report.AddMissing(name)
	}
	for _, name := range outcome.Errors {
		report.AddError(name)
	}

	if merged == nil {
		flowLog.Warn("No extract file carried data, nothing to write")
		report.AddNote(fmt.Sprintf("No usable %s data for bank %s", flow, bank))
		return nil
	}

	reconciled, err := s.merger.ReconcileDuplicates(merged, bank)
	if err != nil {
		return err
	}

	if flow == models.FlowBM {
		enriched, err := enricher.Enrich(reconciled, bank, s.config.KeyColumn)
		if err != nil {
			return err
		}
		if !enriched {
			report.AddNote(fmt.Sprintf("No PAC data found for bank %s", bank))
		}
	}

	stats, err := s.merger.Summarize(reconciled, outcome.FlagColumns())
	if err != nil {
		return err
	}
	report.Columns = append(append([]string{}, stats.FlagColumns...), stats.StaticColumns...)
	report.Stats = stats
	flowLog.WithField("stats", stats.String()).Info("Dataset summarized")

	path := filepath.Join(s.config.OutputDir, flow.ArtifactName(bank, s.config.Stamp))
	err = logger.TimedOperation("write_workbook", flowLog.WithField("path", path), func() error {
		return s.writer.WriteTable(reconciled, path)
	})
	if err != nil {
		return err
	}
	report.AddNote(fmt.Sprintf("Saved %s workbook: %s", flow, path))

	return nil
}

// selectBanks returns the banks to process in sorted order, restricted to
// OnlyBank when set.
func (s *Service) selectBanks(idx *extracts.Index) []string {
	banks := idx.Banks()
	if s.config.OnlyBank == "" {
		return banks
	}
	for _, bank := range banks {
		if bank == s.config.OnlyBank {
			return []string{bank}
		}
	}
	return nil
}

func (s *Service) skips(flow models.Flow) bool {
	if flow == models.FlowPM {
		return s.config.SkipPM
	}
	return s.config.SkipBM
}

// loadLookup reads the PAC export once for the whole run. A load failure is
// not fatal: the enricher is handed a nil table and each BM flow fails
// recoverably while PM flows proceed untouched.
func (s *Service) loadLookup() *models.LookupTable {
	op := logger.NewOperationLogger("load_lookup", s.logger).
		WithField("lookup_file", s.config.LookupFile)

	parser, err := parsers.NewLookupParser(nil)
	if err != nil {
		op.Error(err, "Cannot construct lookup parser")
		return nil
	}

	lookup, err := parser.ParseLookup(s.config.LookupFile)
	if err != nil {
		op.Error(err, "Lookup workbook unavailable, business flows will fail")
		return nil
	}

	op.WithField("rows", lookup.Len()).Success("Lookup workbook loaded")
	return lookup
}
