// Package retriever renders knowledge-graph query results as short bullet
// lines that are handed to a model as grounding facts.
package retriever

import (
	"fmt"
	"strings"

	"github.com/teranos/finkg/kg"
)

// Unknown is rendered for any attribute the graph has no value for
const Unknown = "unknown"

// Retriever formats facts from a store. It never mutates the store.
type Retriever struct {
	store *kg.Store
}

// New creates a retriever over store
func New(store *kg.Store) *Retriever {
	return &Retriever{store: store}
}

// TransactionFact is a transaction row with every value already rendered
type TransactionFact struct {
	TxID       string `json:"tx_id"`
	AccountID  string `json:"account_id"`
	Date       string `json:"date"`
	Amount     string `json:"amount"`
	Currency   string `json:"currency"`
	Status     string `json:"status"`
	Compliance string `json:"compliance"`
}

// ClientTransactions returns the rendered transactions of a client in date order
func (r *Retriever) ClientTransactions(clientID string) []TransactionFact {
	views := r.store.ListTransactionsForClient(clientID)
	facts := make([]TransactionFact, 0, len(views))
	for _, v := range views {
		amount := Unknown
		if v.Amount.Valid {
			amount = v.Amount.Decimal.StringFixed(2)
		}
		facts = append(facts, TransactionFact{
			TxID:       kg.ShortName(v.IRI),
			AccountID:  kg.ShortName(v.AccountIRI),
			Date:       orUnknown(v.Date),
			Amount:     amount,
			Currency:   orUnknown(v.Currency),
			Status:     orUnknown(v.Status),
			Compliance: v.Compliance.String(),
		})
	}
	return facts
}

// FactOption tunes client fact rendering
type FactOption func(*factOptions)

type factOptions struct {
	compliance bool
}

// WithComplianceFlag appends the tri-state compliance flag to each line
func WithComplianceFlag() FactOption {
	return func(o *factOptions) {
		o.compliance = true
	}
}

// ClientFactsText returns one line per transaction of the client, or a single
// sentence saying there are none.
func (r *Retriever) ClientFactsText(clientID string, opts ...FactOption) string {
	var o factOptions
	for _, opt := range opts {
		opt(&o)
	}

	facts := r.ClientTransactions(clientID)
	if len(facts) == 0 {
		return fmt.Sprintf("No known transactions for client '%s'.", clientID)
	}

	lines := make([]string, 0, len(facts))
	for _, f := range facts {
		line := fmt.Sprintf("- on %s, transaction %s, of %s %s, status: %s",
			f.Date, f.TxID, f.Amount, f.Currency, f.Status)
		if o.compliance {
			line += ", compliance: " + f.Compliance
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// ComplianceFactsText returns one line per rule relation of the transaction,
// or a single sentence saying none are recorded.
func (r *Retriever) ComplianceFactsText(txID string) string {
	rels := r.store.ExplainCompliance(txID)
	if len(rels) == 0 {
		return fmt.Sprintf("No explicit compliance or violation rules are recorded for transaction %s.", txID)
	}

	lines := make([]string, 0, len(rels))
	for _, rel := range rels {
		rule := kg.ShortName(rel.RuleIRI)
		switch rel.Relation {
		case kg.RelationViolates:
			lines = append(lines, fmt.Sprintf("- Transaction %s violates rule %s.", txID, rule))
		default:
			lines = append(lines, fmt.Sprintf("- Transaction %s is compliant with rule %s.", txID, rule))
		}
	}
	return strings.Join(lines, "\n")
}

// BuildContext assembles a headed fact block for a client and, when txID is
// set, the compliance facts of that transaction.
func (r *Retriever) BuildContext(clientID, txID string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Known transactions for client '%s':\n", clientID)
	b.WriteString(r.ClientFactsText(clientID, WithComplianceFlag()))
	if txID != "" {
		fmt.Fprintf(&b, "\n\nCompliance-related facts for transaction '%s':\n", txID)
		b.WriteString(r.ComplianceFactsText(txID))
	}
	return b.String()
}

func orUnknown(p *string) string {
	if p == nil {
		return Unknown
	}
	return *p
}
