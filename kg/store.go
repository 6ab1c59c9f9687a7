// Package kg is the in-memory financial knowledge graph: clients, accounts,
// transactions and compliance rules connected by typed edges.
//
// The store is append-biased. Upserts merge into existing nodes and never
// clear a value with an empty one; there is no delete. A Store is not safe
// for concurrent mutation.
package kg

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/teranos/finkg/logger"
	"go.uber.org/zap"
)

type clientNode struct {
	name      string
	riskLevel string
	accounts  map[string]struct{}
}

type accountNode struct {
	clientID    string
	accountType string
	status      string
	txs         map[string]struct{}
}

type txNode struct {
	accountID  string
	amount     decimal.NullDecimal
	currency   string
	date       string
	status     string
	compliance Compliance
	// at most one relation per rule
	rules map[string]Relation
	// rules whose relation was derived from the compliance flag
	flagRules map[string]struct{}
}

type ruleNode struct {
	description string
	severity    string
}

// Store holds the graph as typed adjacency maps keyed by identifier
type Store struct {
	vocab    Vocabulary
	logger   *zap.SugaredLogger
	clients  map[string]*clientNode
	accounts map[string]*accountNode
	txs      map[string]*txNode
	rules    map[string]*ruleNode
}

// Option configures a Store
type Option func(*Store)

// WithBaseIRI sets the namespace used for node, class and predicate IRIs
func WithBaseIRI(base string) Option {
	return func(s *Store) {
		s.vocab = NewVocabulary(base)
	}
}

// WithLogger sets the logger used for debug output
func WithLogger(l *zap.SugaredLogger) Option {
	return func(s *Store) {
		s.logger = logger.OrNop(l)
	}
}

// NewStore creates an empty store
func NewStore(opts ...Option) *Store {
	s := &Store{
		vocab:    NewVocabulary(DefaultBaseIRI),
		logger:   zap.NewNop().Sugar(),
		clients:  make(map[string]*clientNode),
		accounts: make(map[string]*accountNode),
		txs:      make(map[string]*txNode),
		rules:    make(map[string]*ruleNode),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Vocabulary returns the IRI scheme of this store
func (s *Store) Vocabulary() Vocabulary {
	return s.vocab
}

// UpsertClient creates or merges a client
func (s *Store) UpsertClient(c Client) {
	if c.ID == "" {
		return
	}
	n := s.client(c.ID)
	setIfPresent(&n.name, c.Name)
	setIfPresent(&n.riskLevel, c.RiskLevel)
}

// UpsertAccount creates or merges an account and links it to its client.
// The client node is created if it does not exist yet. Linking to a
// different client moves the account.
func (s *Store) UpsertAccount(a Account) {
	if a.ID == "" {
		return
	}
	n := s.account(a.ID)
	setIfPresent(&n.accountType, a.Type)
	setIfPresent(&n.status, a.Status)
	if a.ClientID != "" {
		s.linkAccount(a.ClientID, a.ID)
	}
}

// UpsertTransaction creates or merges a transaction and links it to its account.
//
// A known compliance flag sets the flag and writes one relation per rule id,
// overwriting any previous relation for that rule. Relations a previous flag
// wrote for rules missing from the new list are removed; relations set with
// LinkRule are kept. An unknown flag leaves the stored flag and relations
// untouched.
func (s *Store) UpsertTransaction(t Transaction) {
	if t.ID == "" {
		return
	}
	n := s.tx(t.ID)
	n.amount = decimal.NullDecimal{Decimal: t.Amount, Valid: true}
	setIfPresent(&n.currency, strings.TrimSpace(t.Currency))
	setIfPresent(&n.status, t.Status)

	switch {
	case strings.TrimSpace(t.Date) != "":
		date, ok := NormalizeDate(t.Date)
		if !ok {
			s.logger.Debugw("Malformed transaction date replaced", logger.FieldTxID, t.ID, "date", t.Date)
		}
		n.date = date
	case n.date == "":
		n.date = EpochDate
	}

	if t.AccountID != "" {
		s.linkTransaction(t.AccountID, t.ID)
	}

	rel, known := RelationFor(t.Compliance)
	derived := make(map[string]struct{}, len(t.RuleIDs))
	for _, ruleID := range t.RuleIDs {
		ruleID = strings.TrimSpace(ruleID)
		if ruleID == "" {
			continue
		}
		s.rule(ruleID)
		if known {
			n.rules[ruleID] = rel
			derived[ruleID] = struct{}{}
		}
	}
	if !known {
		return
	}

	n.compliance = t.Compliance
	for ruleID := range n.flagRules {
		if _, ok := derived[ruleID]; !ok {
			delete(n.rules, ruleID)
			s.logger.Debugw("Stale flag relation removed", logger.FieldTxID, t.ID, "rule_id", ruleID)
		}
	}
	n.flagRules = derived
}

// UpsertRule creates or merges a compliance rule
func (s *Store) UpsertRule(r ComplianceRule) {
	if r.ID == "" {
		return
	}
	n := s.rule(r.ID)
	setIfPresent(&n.description, r.Description)
	setIfPresent(&n.severity, r.Severity)
}

// LinkRule sets the relation between a transaction and a rule, replacing any
// previous relation for the pair. Missing nodes are created.
func (s *Store) LinkRule(txID, ruleID string, rel Relation) {
	if txID == "" || ruleID == "" {
		return
	}
	s.rule(ruleID)
	n := s.tx(txID)
	n.rules[ruleID] = rel
	delete(n.flagRules, ruleID)
}

func (s *Store) client(id string) *clientNode {
	n, ok := s.clients[id]
	if !ok {
		n = &clientNode{accounts: make(map[string]struct{})}
		s.clients[id] = n
	}
	return n
}

func (s *Store) account(id string) *accountNode {
	n, ok := s.accounts[id]
	if !ok {
		n = &accountNode{txs: make(map[string]struct{})}
		s.accounts[id] = n
	}
	return n
}

func (s *Store) tx(id string) *txNode {
	n, ok := s.txs[id]
	if !ok {
		n = &txNode{
			rules:     make(map[string]Relation),
			flagRules: make(map[string]struct{}),
		}
		s.txs[id] = n
	}
	return n
}

func (s *Store) rule(id string) *ruleNode {
	n, ok := s.rules[id]
	if !ok {
		n = &ruleNode{}
		s.rules[id] = n
	}
	return n
}

func (s *Store) linkAccount(clientID, accountID string) {
	acct := s.account(accountID)
	if acct.clientID == clientID {
		return
	}
	if prev, ok := s.clients[acct.clientID]; ok {
		delete(prev.accounts, accountID)
		s.logger.Debugw("Account moved between clients", "account_id", accountID, "from", acct.clientID, "to", clientID)
	}
	if _, ok := s.clients[clientID]; !ok {
		s.logger.Debugw("Client referenced before upsert", logger.FieldClientID, clientID)
	}
	acct.clientID = clientID
	s.client(clientID).accounts[accountID] = struct{}{}
}

func (s *Store) linkTransaction(accountID, txID string) {
	t := s.tx(txID)
	if t.accountID == accountID {
		return
	}
	if prev, ok := s.accounts[t.accountID]; ok {
		delete(prev.txs, txID)
	}
	if _, ok := s.accounts[accountID]; !ok {
		s.logger.Debugw("Account referenced before upsert", "account_id", accountID)
	}
	t.accountID = accountID
	s.account(accountID).txs[txID] = struct{}{}
}

func setIfPresent(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
