package errors

import (
	"fmt"
	"strings"
)

// FlowError ties a recoverable error to the bank and flow it occurred in.
// The orchestrator records these in the run summary instead of aborting.
type FlowError struct {
	*ReconError
	Bank string `json:"bank"`
	Flow string `json:"flow"`
}

// Error implements the error interface with flow location context
func (e *FlowError) Error() string {
	var parts []string

	if e.Flow != "" && e.Bank != "" {
		parts = append(parts, fmt.Sprintf("%s flow for bank %s:", e.Flow, e.Bank))
	}
	parts = append(parts, e.ReconError.Error())

	return strings.Join(parts, " ")
}

// NewFlowError wraps a recoverable failure with the bank and flow it belongs
// to. Errors that are not already ReconErrors are classified as internal.
func NewFlowError(bank, flow string, cause error) *FlowError {
	base := WrapIfNeeded(cause, CategoryInternal, CodeUnexpectedError,
		fmt.Sprintf("unexpected failure in %s flow for bank %s", flow, bank))

	base.WithContext("bank", bank).WithContext("flow", flow)

	return &FlowError{
		ReconError: base,
		Bank:       bank,
		Flow:       flow,
	}
}
