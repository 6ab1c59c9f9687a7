package kg

import (
	"cmp"
	"maps"
	"slices"
)

// ListTransactionsForClient walks client -> accounts -> transactions.
// Rows are ordered by date string ascending, then by transaction identifier.
// An unknown client yields an empty slice.
func (s *Store) ListTransactionsForClient(clientID string) []TransactionView {
	c, ok := s.clients[clientID]
	if !ok {
		return []TransactionView{}
	}

	views := []TransactionView{}
	for accountID := range c.accounts {
		acct := s.accounts[accountID]
		for txID := range acct.txs {
			t := s.txs[txID]
			views = append(views, TransactionView{
				IRI:        s.vocab.NodeIRI(KindTransaction, txID),
				AccountIRI: s.vocab.NodeIRI(KindAccount, accountID),
				Amount:     t.amount,
				Currency:   strPtr(t.currency),
				Date:       strPtr(t.date),
				Status:     strPtr(t.status),
				Compliance: t.compliance,
			})
		}
	}

	slices.SortFunc(views, func(a, b TransactionView) int {
		if c := cmp.Compare(deref(a.Date), deref(b.Date)); c != 0 {
			return c
		}
		return cmp.Compare(a.IRI, b.IRI)
	})
	return views
}

// ExplainCompliance lists the rule relations of a transaction ordered by rule IRI.
// An unknown transaction or one without relations yields an empty slice.
func (s *Store) ExplainCompliance(txID string) []RuleRelation {
	t, ok := s.txs[txID]
	if !ok {
		return []RuleRelation{}
	}

	out := make([]RuleRelation, 0, len(t.rules))
	for _, ruleID := range slices.Sorted(maps.Keys(t.rules)) {
		out = append(out, RuleRelation{
			RuleIRI:  s.vocab.NodeIRI(KindRule, ruleID),
			Relation: t.rules[ruleID],
		})
	}
	return out
}

// ComplianceLabel returns the stored compliance flag, or nil when it was never set
func (s *Store) ComplianceLabel(txID string) *bool {
	t, ok := s.txs[txID]
	if !ok {
		return nil
	}
	return t.compliance.Bool()
}

// Client looks up a client by identifier
func (s *Store) Client(id string) (Client, bool) {
	n, ok := s.clients[id]
	if !ok {
		return Client{}, false
	}
	return Client{ID: id, Name: n.name, RiskLevel: n.riskLevel}, true
}

// Account looks up an account by identifier
func (s *Store) Account(id string) (Account, bool) {
	n, ok := s.accounts[id]
	if !ok {
		return Account{}, false
	}
	return Account{ID: id, ClientID: n.clientID, Type: n.accountType, Status: n.status}, true
}

// Transaction looks up a transaction by identifier. RuleIDs lists every rule
// with a relation, sorted; an absent amount reads as zero.
func (s *Store) Transaction(id string) (Transaction, bool) {
	n, ok := s.txs[id]
	if !ok {
		return Transaction{}, false
	}
	return Transaction{
		ID:         id,
		AccountID:  n.accountID,
		Amount:     n.amount.Decimal,
		Currency:   n.currency,
		Date:       n.date,
		Status:     n.status,
		Compliance: n.compliance,
		RuleIDs:    slices.Sorted(maps.Keys(n.rules)),
	}, true
}

// Rule looks up a compliance rule by identifier
func (s *Store) Rule(id string) (ComplianceRule, bool) {
	n, ok := s.rules[id]
	if !ok {
		return ComplianceRule{}, false
	}
	return ComplianceRule{ID: id, Description: n.description, Severity: n.severity}, true
}

// ClientIDs returns every client identifier, sorted
func (s *Store) ClientIDs() []string {
	return slices.Sorted(maps.Keys(s.clients))
}

// AccountIDs returns the accounts of a client, sorted
func (s *Store) AccountIDs(clientID string) []string {
	c, ok := s.clients[clientID]
	if !ok {
		return []string{}
	}
	return slices.Sorted(maps.Keys(c.accounts))
}

// TransactionIDs returns the transactions of an account, sorted
func (s *Store) TransactionIDs(accountID string) []string {
	a, ok := s.accounts[accountID]
	if !ok {
		return []string{}
	}
	return slices.Sorted(maps.Keys(a.txs))
}

// Stats counts nodes, rule relations and the triples a dump would contain
func (s *Store) Stats() Stats {
	st := Stats{
		Clients:      len(s.clients),
		Accounts:     len(s.accounts),
		Transactions: len(s.txs),
		Rules:        len(s.rules),
	}
	for _, t := range s.txs {
		st.RuleRelations += len(t.rules)
	}
	st.Triples = len(s.Triples())
	return st
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
