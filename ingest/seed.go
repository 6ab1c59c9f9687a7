// Package ingest populates a knowledge graph from the built-in demo data or
// from a directory of delimited files.
package ingest

import (
	"github.com/shopspring/decimal"
	"github.com/teranos/finkg/kg"
)

// Seed identifiers used by the demo scenarios
const (
	SeedClientID = "A"
	SeedTxID     = "T002"
)

// Seed loads the fixed demo graph: one client, two accounts, three
// transactions and two compliance rules. Calling it twice changes nothing.
func Seed(store *kg.Store) {
	store.UpsertClient(kg.Client{ID: "A", Name: "Client A", RiskLevel: "medium"})

	store.UpsertAccount(kg.Account{ID: "A1", ClientID: "A", Type: "checking", Status: "active"})
	store.UpsertAccount(kg.Account{ID: "A2", ClientID: "A", Type: "savings", Status: "active"})

	store.UpsertTransaction(kg.Transaction{
		ID:         "T001",
		AccountID:  "A1",
		Amount:     decimal.RequireFromString("9500.00"),
		Currency:   "USD",
		Date:       "2024-05-10",
		Status:     "completed",
		Compliance: kg.Compliant,
		RuleIDs:    []string{"KYC"},
	})
	store.UpsertTransaction(kg.Transaction{
		ID:         "T002",
		AccountID:  "A1",
		Amount:     decimal.RequireFromString("15000.00"),
		Currency:   "USD",
		Date:       "2024-05-12",
		Status:     "completed",
		Compliance: kg.NonCompliant,
		RuleIDs:    []string{"KYC", "AML_THRESHOLD"},
	})
	store.UpsertTransaction(kg.Transaction{
		ID:         "T003",
		AccountID:  "A2",
		Amount:     decimal.RequireFromString("500.00"),
		Currency:   "EUR",
		Date:       "2024-05-15",
		Status:     "completed",
		Compliance: kg.Compliant,
		RuleIDs:    []string{"KYC"},
	})

	store.UpsertRule(kg.ComplianceRule{ID: "KYC", Description: "Know-your-customer identity verification"})
	store.UpsertRule(kg.ComplianceRule{ID: "AML_THRESHOLD", Description: "Anti-money-laundering reporting threshold"})
}
