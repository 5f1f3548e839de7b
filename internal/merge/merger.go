// Package merge turns one bank's per-category extract files into a single
// wide customer table. Each file contributes a presence-flag column named
// after its category label; customers appearing in several files are
// collapsed to one row afterwards by ReconcileDuplicates.
package merge

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"bank-extract-reconciler/internal/parsers"
	"bank-extract-reconciler/internal/table"
	"bank-extract-reconciler/pkg/errors"
	"bank-extract-reconciler/pkg/logger"
)

// categoryColumnIndex is the position of the category label inside every
// extract file: the third column of the first data row names the category.
const categoryColumnIndex = 2

// Config controls merging, deduplication and summarizing for one run.
type Config struct {
	BaseDir     string `json:"base_dir"`
	KeyColumn   string `json:"key_column"`
	PresentFlag string `json:"present_flag"`
	AbsentFlag  string `json:"absent_flag"`
	SampleSize  int    `json:"sample_size"`
}

// DefaultConfig returns the configuration matching the upstream extracts:
// customers keyed by Kundenummer, J/N presence flags.
func DefaultConfig() *Config {
	return &Config{
		KeyColumn:   "Kundenummer",
		PresentFlag: "J",
		AbsentFlag:  "N",
		SampleSize:  100,
	}
}

// Validate checks if the merge configuration is valid
func (c *Config) Validate() error {
	if strings.TrimSpace(c.KeyColumn) == "" {
		return fmt.Errorf("key column cannot be empty")
	}

	if c.PresentFlag == "" || c.AbsentFlag == "" {
		return fmt.Errorf("flag values cannot be empty")
	}

	if c.PresentFlag == c.AbsentFlag {
		return fmt.Errorf("present and absent flags must differ, both are %q", c.PresentFlag)
	}

	if c.SampleSize < 1 {
		return fmt.Errorf("sample size must be positive, got %d", c.SampleSize)
	}

	return nil
}

// Merger builds one bank's category table from its extract files.
type Merger struct {
	config *Config
	parser *parsers.ExtractParser
	logger logger.Logger
}

// NewMerger creates a new Merger with the given configuration
func NewMerger(config *Config) (*Merger, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(
			errors.CodeInvalidConfig,
			"merge_config",
			config,
			err,
		).WithSuggestion("Check the merge configuration values")
	}

	parser, err := parsers.NewExtractParser(nil)
	if err != nil {
		return nil, err
	}

	return &Merger{
		config: config,
		parser: parser,
		logger: logger.GetGlobalLogger().WithComponent("merger"),
	}, nil
}

// Outcome records the per-file results of one merge pass. MergedCategories
// keeps one label per merged file in merge order; Missing and Errors list the
// file names that contributed nothing.
type Outcome struct {
	MergedCategories []string
	Missing          []string
	Errors           []string
}

// FlagColumns returns the distinct category labels that became flag columns,
// sorted. This is the declared schema the summarizer classifies against.
func (o *Outcome) FlagColumns() []string {
	seen := make(map[string]bool, len(o.MergedCategories))
	var flags []string
	for _, label := range o.MergedCategories {
		if !seen[label] {
			seen[label] = true
			flags = append(flags, label)
		}
	}
	sort.Strings(flags)
	return flags
}

// MergeFiles merges the named extract files of one bank, in order, into a
// wide table. Files are isolated from each other: a file with no data rows is
// recorded under Missing, a broken file under Errors, and the merge moves on.
// The returned table is nil when no file contributed rows.
func (m *Merger) MergeFiles(ctx context.Context, bankID string, files []string) (*table.Table, *Outcome, error) {
	log := m.logger.WithFields(logger.Fields{
		"bank":  bankID,
		"files": len(files),
	})
	log.Info("Merging extract files")

	outcome := &Outcome{}
	var merged *table.Table

	for _, name := range files {
		select {
		case <-ctx.Done():
			return nil, nil, errors.InternalError(errors.CodeUnexpectedError, "merge", ctx.Err())
		default:
		}

		categorized, category, err := m.loadCategorized(ctx, name)
		if err != nil {
			if reconErr, ok := errors.AsReconError(err); ok && reconErr.Code == errors.CodeNoData {
				log.WithField("file", name).Warn("Extract file has no data rows")
				outcome.Missing = append(outcome.Missing, name)
				continue
			}
			log.WithError(err).WithField("file", name).Error("Failed to process extract file")
			outcome.Errors = append(outcome.Errors, name)
			continue
		}

		if merged == nil {
			merged = categorized
		} else if err := alignAndAppend(merged, categorized, m.config.AbsentFlag); err != nil {
			log.WithError(err).WithField("file", name).Error("Failed to align extract file with merged table")
			outcome.Errors = append(outcome.Errors, name)
			continue
		}

		outcome.MergedCategories = append(outcome.MergedCategories, category)
		log.WithFields(logger.Fields{
			"file":     name,
			"category": category,
		}).Debug("Merged extract file")
	}

	if merged == nil {
		log.Warn("No extract file contributed any rows")
	} else {
		log.WithFields(logger.Fields{
			"rows":    merged.NumRows(),
			"columns": merged.NumCols(),
		}).Info("Merged extract files")
	}

	return merged, outcome, nil
}

// loadCategorized parses one extract file and rewrites it into category
// shape: the category column is dropped and a flag column named after the
// file's label is added, set for every row of this file.
func (m *Merger) loadCategorized(ctx context.Context, name string) (*table.Table, string, error) {
	path := filepath.Join(m.config.BaseDir, name)

	tbl, stats, err := m.parser.ParseFileWithContext(ctx, path)
	if err != nil {
		return nil, "", err
	}
	m.logger.WithFields(logger.Fields{
		"file":  name,
		"stats": stats.String(),
	}).Debug("Parsed extract file")

	categoryHeader := tbl.Columns()[categoryColumnIndex]
	category := strings.TrimSpace(tbl.Value(0, categoryHeader))

	if err := tbl.DropColumn(categoryHeader); err != nil {
		return nil, "", errors.ParseError(errors.CodeInvalidFormat, path, err)
	}

	if tbl.HasColumn(category) {
		// The label collides with an existing header; the flag takes the
		// column over, matching the single-assignment shape downstream.
		for i := 0; i < tbl.NumRows(); i++ {
			tbl.SetValue(i, category, m.config.PresentFlag)
		}
	} else if err := tbl.AddColumn(category, m.config.PresentFlag); err != nil {
		return nil, "", errors.ParseError(errors.CodeInvalidFormat, path, err)
	}

	return tbl, category, nil
}

// alignAndAppend reconciles the column sets of the running table and the
// incoming file both ways, then appends the incoming rows. A column absent on
// one side is a category the other side's customers do not hold, so the fill
// is the absent flag rather than an empty cell.
func alignAndAppend(merged, incoming *table.Table, absentFlag string) error {
	for _, column := range incoming.Columns() {
		if !merged.HasColumn(column) {
			if err := merged.AddColumn(column, absentFlag); err != nil {
				return err
			}
		}
	}
	for _, column := range merged.Columns() {
		if !incoming.HasColumn(column) {
			if err := incoming.AddColumn(column, absentFlag); err != nil {
				return err
			}
		}
	}
	return merged.AppendTable(incoming)
}
