// Package config converts CLI and viper values into the typed configurations
// the run components expect.
package config

import (
	"fmt"

	"bank-extract-reconciler/internal/reconciler"
	"bank-extract-reconciler/pkg/logger"

	"github.com/spf13/viper"
)

// RunLogFile returns the run log path: the --log-file value when given,
// otherwise a stamped default next to the invocation.
func RunLogFile(stamp string) string {
	if path := viper.GetString("log-file"); path != "" {
		return path
	}
	return fmt.Sprintf("reconcile_%s.log", stamp)
}

// CreateLoggerConfig creates the logger configuration for a run: everything
// to the log file, warnings and errors echoed to the console, the full log
// echoed when --verbose is set.
func CreateLoggerConfig(logFile string) *logger.Config {
	return logger.RunConfig(logFile, viper.GetBool("verbose"))
}

// CreateRunConfig creates the reconciliation run configuration from the
// bound flag values. Blank optional values keep the stamped defaults.
func CreateRunConfig(stamp string) *reconciler.Config {
	config := reconciler.DefaultConfig()

	// Apply CLI overrides
	config.BaseDir = viper.GetString("base-dir")
	config.LookupFile = viper.GetString("pac-file")
	config.OnlyBank = viper.GetString("only-bank")
	config.SkipPM = viper.GetBool("skip-pm")
	config.SkipBM = viper.GetBool("skip-bm")
	config.Stamp = stamp

	if dir := viper.GetString("output-dir"); dir != "" {
		config.OutputDir = dir
	} else {
		config.OutputDir = "excel_exports_" + stamp
	}

	if key := viper.GetString("key-column"); key != "" {
		config.KeyColumn = key
	}

	return config
}
