// Package enrich joins a bank's business-flow table with the PAC agreement
// export, appending the agreement ids and registered users per customer.
package enrich

import (
	"fmt"
	"sort"
	"strings"

	"bank-extract-reconciler/internal/models"
	"bank-extract-reconciler/internal/table"
	"bank-extract-reconciler/pkg/errors"
	"bank-extract-reconciler/pkg/logger"
)

// Column names the enrichment appends. Both are part of the output artifact.
const (
	AgreementsColumn = "AVTALE_IDs"
	UsersColumn      = "Users_PERSONNR:BRUKERTYPE"
)

// Enricher joins customer tables against the loaded lookup export.
type Enricher struct {
	lookup *models.LookupTable
	logger logger.Logger
}

// NewEnricher creates an Enricher over an already-loaded lookup table.
func NewEnricher(lookup *models.LookupTable) *Enricher {
	return &Enricher{
		lookup: lookup,
		logger: logger.GetGlobalLogger().WithComponent("enricher"),
	}
}

// Enrich appends the agreement and user columns for one bank's customers,
// matching the table's key column against the export's organization numbers.
// Customers without lookup rows get empty cells. Returns false with the
// table untouched when the export carries no rows for the bank at all; that
// is a data-quality signal for the caller, not an error.
func (e *Enricher) Enrich(tbl *table.Table, bankID, keyColumn string) (bool, error) {
	if e.lookup == nil {
		return false, errors.EnrichError(
			errors.CodeLookupUnavailable,
			"lookup",
			fmt.Errorf("no lookup table loaded"),
		)
	}

	if !e.lookup.HasBank(bankID) {
		e.logger.WithField("bank", bankID).Info("Bank not present in lookup export")
		return false, nil
	}

	if !tbl.HasColumn(keyColumn) {
		return false, errors.MergeError(errors.CodeMissingKeyColumn, bankID, nil).
			WithContext("key_column", keyColumn)
	}

	byOrg := make(map[string][]models.LookupRow)
	for _, row := range e.lookup.BankRows(bankID) {
		byOrg[row.OrgNumber] = append(byOrg[row.OrgNumber], row)
	}

	agreementsByOrg := make(map[string]string, len(byOrg))
	usersByOrg := make(map[string]string, len(byOrg))
	for org, rows := range byOrg {
		agreementsByOrg[org] = joinAgreements(rows)
		usersByOrg[org] = joinUsers(rows)
	}

	if err := tbl.AddColumn(AgreementsColumn, ""); err != nil {
		return false, errors.InternalError(errors.CodeUnexpectedError, "enrich", err)
	}
	if err := tbl.AddColumn(UsersColumn, ""); err != nil {
		return false, errors.InternalError(errors.CodeUnexpectedError, "enrich", err)
	}

	matched := 0
	for r := 0; r < tbl.NumRows(); r++ {
		org := tbl.Value(r, keyColumn)
		agreements, ok := agreementsByOrg[org]
		if !ok {
			continue
		}
		tbl.SetValue(r, AgreementsColumn, agreements)
		tbl.SetValue(r, UsersColumn, usersByOrg[org])
		matched++
	}

	e.logger.WithFields(logger.Fields{
		"bank":      bankID,
		"customers": tbl.NumRows(),
		"matched":   matched,
	}).Info("Enriched table from lookup export")

	return true, nil
}

// joinAgreements renders the distinct agreement ids of one organization,
// sorted, pipe-separated.
func joinAgreements(rows []models.LookupRow) string {
	seen := make(map[string]bool, len(rows))
	var ids []string
	for _, row := range rows {
		if !seen[row.AgreementID] {
			seen[row.AgreementID] = true
			ids = append(ids, row.AgreementID)
		}
	}
	sort.Strings(ids)
	return strings.Join(ids, "|")
}

// joinUsers renders one organization's users as PERSONNR:BRUKERTYPE pairs,
// pipe-separated, in export row order.
func joinUsers(rows []models.LookupRow) string {
	parts := make([]string, len(rows))
	for i, row := range rows {
		parts[i] = row.PersonNumber + ":" + row.UserType
	}
	return strings.Join(parts, "|")
}
