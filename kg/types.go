package kg

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// EpochDate stands in for a transaction date that was missing or could not be parsed
const EpochDate = "1970-01-01"

// Compliance is the tri-state compliance flag of a transaction
type Compliance int8

const (
	ComplianceUnknown Compliance = iota
	Compliant
	NonCompliant
)

// ComplianceOf converts a definite boolean label
func ComplianceOf(compliant bool) Compliance {
	if compliant {
		return Compliant
	}
	return NonCompliant
}

// Known reports whether the flag was set
func (c Compliance) Known() bool {
	return c != ComplianceUnknown
}

// Bool returns the label, or nil when unknown
func (c Compliance) Bool() *bool {
	switch c {
	case Compliant:
		b := true
		return &b
	case NonCompliant:
		b := false
		return &b
	default:
		return nil
	}
}

func (c Compliance) String() string {
	switch c {
	case Compliant:
		return "true"
	case NonCompliant:
		return "false"
	default:
		return "unknown"
	}
}

// ParseCompliance reads a boolean-ish cell. Empty input is unknown; ok is
// false only for non-empty text that is not a recognised boolean.
func ParseCompliance(s string) (c Compliance, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return ComplianceUnknown, true
	case "true", "t", "1", "yes", "y":
		return Compliant, true
	case "false", "f", "0", "no", "n":
		return NonCompliant, true
	default:
		return ComplianceUnknown, false
	}
}

// Relation is the edge kind between a transaction and a rule
type Relation string

const (
	RelationCompliantWith Relation = PredCompliantWith
	RelationViolates      Relation = PredViolatesRule
)

// RelationFor returns the edge implied by a compliance flag
func RelationFor(c Compliance) (Relation, bool) {
	switch c {
	case Compliant:
		return RelationCompliantWith, true
	case NonCompliant:
		return RelationViolates, true
	default:
		return "", false
	}
}

// ParseRelation accepts the short forms used in tx_rules files and the predicate names
func ParseRelation(s string) (Relation, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "compliant", "compliant_with", "iscompliantwith":
		return RelationCompliantWith, true
	case "violates", "violation", "violatesrule":
		return RelationViolates, true
	default:
		return "", false
	}
}

// Client is a customer entity
type Client struct {
	ID        string
	Name      string
	RiskLevel string
}

// Account is owned by a client
type Account struct {
	ID       string
	ClientID string
	Type     string
	Status   string
}

// Transaction belongs to an account. Amount is required; the remaining
// attributes are optional and never clear stored values when empty.
type Transaction struct {
	ID         string
	AccountID  string
	Amount     decimal.Decimal
	Currency   string
	Date       string
	Status     string
	Compliance Compliance
	RuleIDs    []string
}

// ComplianceRule is a named regulatory rule
type ComplianceRule struct {
	ID          string
	Description string
	Severity    string
}

// TransactionView is one row of a client traversal. Nil pointers and an
// invalid Amount mark attributes the store has no value for.
type TransactionView struct {
	IRI        string
	AccountIRI string
	Amount     decimal.NullDecimal
	Currency   *string
	Date       *string
	Status     *string
	Compliance Compliance
}

// RuleRelation is one transaction-rule edge
type RuleRelation struct {
	RuleIRI  string
	Relation Relation
}

// Stats counts nodes and edges in the store
type Stats struct {
	Clients       int `json:"clients" yaml:"clients"`
	Accounts      int `json:"accounts" yaml:"accounts"`
	Transactions  int `json:"transactions" yaml:"transactions"`
	Rules         int `json:"rules" yaml:"rules"`
	RuleRelations int `json:"rule_relations" yaml:"rule_relations"`
	Triples       int `json:"triples" yaml:"triples"`
}

// ParseAmount reads a decimal amount, falling back to zero on empty or malformed input
func ParseAmount(s string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// NormalizeDate returns s when it is an ISO-8601 date or timestamp, EpochDate otherwise
func NormalizeDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if _, err := time.Parse(time.DateOnly, s); err == nil {
		return s, true
	}
	if _, err := time.Parse(time.RFC3339, s); err == nil {
		return s, true
	}
	return EpochDate, false
}

// FormatAmount renders d keeping its scale, so 9500.00 stays 9500.00
func FormatAmount(d decimal.Decimal) string {
	if exp := d.Exponent(); exp < 0 {
		return d.StringFixed(-exp)
	}
	return d.String()
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
