package kg

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func amount(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func fixtureStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	s.UpsertClient(Client{ID: "A", Name: "Client A", RiskLevel: "medium"})
	s.UpsertAccount(Account{ID: "A1", ClientID: "A", Type: "checking", Status: "active"})
	s.UpsertAccount(Account{ID: "A2", ClientID: "A", Type: "savings", Status: "active"})
	s.UpsertTransaction(Transaction{ID: "T002", AccountID: "A1", Amount: amount(t, "15000.00"), Currency: "USD",
		Date: "2024-05-12", Status: "completed", Compliance: NonCompliant, RuleIDs: []string{"KYC", "AML_THRESHOLD"}})
	s.UpsertTransaction(Transaction{ID: "T001", AccountID: "A1", Amount: amount(t, "9500.00"), Currency: "USD",
		Date: "2024-05-10", Status: "completed", Compliance: Compliant, RuleIDs: []string{"KYC"}})
	s.UpsertTransaction(Transaction{ID: "T003", AccountID: "A2", Amount: amount(t, "500.00"), Currency: "EUR",
		Date: "2024-05-15", Status: "completed", Compliance: Compliant, RuleIDs: []string{"KYC"}})
	return s
}

func TestListTransactionsForClient(t *testing.T) {
	s := fixtureStore(t)

	views := s.ListTransactionsForClient("A")
	require.Len(t, views, 3)

	var ids []string
	for _, v := range views {
		ids = append(ids, ShortName(v.IRI))
	}
	assert.Equal(t, []string{"T001", "T002", "T003"}, ids, "ordered by date ascending")

	first := views[0]
	require.True(t, first.Amount.Valid)
	assert.True(t, first.Amount.Decimal.Equal(amount(t, "9500")))
	assert.Equal(t, "USD", *first.Currency)
	assert.Equal(t, "2024-05-10", *first.Date)
	assert.Equal(t, "completed", *first.Status)
	assert.Equal(t, Compliant, first.Compliance)
	assert.Equal(t, "A1", ShortName(first.AccountIRI))

	assert.Equal(t, NonCompliant, views[1].Compliance)
}

func TestUnknownIdentifiersYieldEmptyResults(t *testing.T) {
	s := fixtureStore(t)

	assert.Empty(t, s.ListTransactionsForClient("ZZZ"))
	assert.NotNil(t, s.ListTransactionsForClient("ZZZ"))
	assert.Empty(t, s.ExplainCompliance("T999"))
	assert.Nil(t, s.ComplianceLabel("T999"))
	_, ok := s.Client("ZZZ")
	assert.False(t, ok)
}

func TestExplainCompliance(t *testing.T) {
	s := fixtureStore(t)

	rels := s.ExplainCompliance("T002")
	require.Len(t, rels, 2)
	assert.Equal(t, "AML_THRESHOLD", ShortName(rels[0].RuleIRI))
	assert.Equal(t, RelationViolates, rels[0].Relation)
	assert.Equal(t, "KYC", ShortName(rels[1].RuleIRI))
	assert.Equal(t, RelationViolates, rels[1].Relation)

	rels = s.ExplainCompliance("T001")
	require.Len(t, rels, 1)
	assert.Equal(t, RelationCompliantWith, rels[0].Relation)
}

func TestComplianceLabel(t *testing.T) {
	s := fixtureStore(t)

	require.NotNil(t, s.ComplianceLabel("T002"))
	assert.False(t, *s.ComplianceLabel("T002"))
	require.NotNil(t, s.ComplianceLabel("T001"))
	assert.True(t, *s.ComplianceLabel("T001"))

	s.UpsertTransaction(Transaction{ID: "T010", AccountID: "A1", Amount: decimal.Zero, Date: "2024-06-01"})
	assert.Nil(t, s.ComplianceLabel("T010"), "omitted flag stays unknown")
}

func TestUpsertIsIdempotent(t *testing.T) {
	s := fixtureStore(t)
	before := s.Stats()

	s.UpsertClient(Client{ID: "A", Name: "Client A", RiskLevel: "medium"})
	s.UpsertAccount(Account{ID: "A1", ClientID: "A", Type: "checking", Status: "active"})
	s.UpsertTransaction(Transaction{ID: "T001", AccountID: "A1", Amount: amount(t, "9500.00"), Currency: "USD",
		Date: "2024-05-10", Status: "completed", Compliance: Compliant, RuleIDs: []string{"KYC"}})

	assert.Equal(t, before, s.Stats())
	assert.Len(t, s.ListTransactionsForClient("A"), 3)
}

func TestUpsertNeverClearsAttributes(t *testing.T) {
	s := fixtureStore(t)

	s.UpsertClient(Client{ID: "A"})
	c, ok := s.Client("A")
	require.True(t, ok)
	assert.Equal(t, "Client A", c.Name)
	assert.Equal(t, "medium", c.RiskLevel)

	s.UpsertTransaction(Transaction{ID: "T001", Amount: amount(t, "9500.00")})
	tx, ok := s.Transaction("T001")
	require.True(t, ok)
	assert.Equal(t, "USD", tx.Currency)
	assert.Equal(t, "2024-05-10", tx.Date)
	assert.Equal(t, "A1", tx.AccountID)
	assert.Equal(t, Compliant, tx.Compliance)
	assert.Equal(t, []string{"KYC"}, tx.RuleIDs)
}

func TestRuleRelationIsReplacedNotAccumulated(t *testing.T) {
	s := fixtureStore(t)

	// T001 re-ingested as non-compliant with KYC
	s.UpsertTransaction(Transaction{ID: "T001", AccountID: "A1", Amount: amount(t, "9500.00"),
		Compliance: NonCompliant, RuleIDs: []string{"KYC"}})

	rels := s.ExplainCompliance("T001")
	require.Len(t, rels, 1)
	assert.Equal(t, RelationViolates, rels[0].Relation)
	assert.False(t, *s.ComplianceLabel("T001"))

	s.LinkRule("T001", "KYC", RelationCompliantWith)
	rels = s.ExplainCompliance("T001")
	require.Len(t, rels, 1)
	assert.Equal(t, RelationCompliantWith, rels[0].Relation)
}

func TestFlippedFlagDropsRulesMissingFromNewList(t *testing.T) {
	s := NewStore()
	s.UpsertTransaction(Transaction{ID: "T", AccountID: "X1", Amount: decimal.Zero, Date: "2024-01-01",
		Compliance: Compliant, RuleIDs: []string{"KYC", "AML"}})
	s.LinkRule("T", "SANCTIONS", RelationCompliantWith)

	s.UpsertTransaction(Transaction{ID: "T", AccountID: "X1", Amount: decimal.Zero,
		Compliance: NonCompliant, RuleIDs: []string{"KYC"}})

	label := s.ComplianceLabel("T")
	require.NotNil(t, label)
	assert.False(t, *label)

	rels := s.ExplainCompliance("T")
	require.Len(t, rels, 2)
	assert.Equal(t, "KYC", ShortName(rels[0].RuleIRI))
	assert.Equal(t, RelationViolates, rels[0].Relation)
	assert.Equal(t, "SANCTIONS", ShortName(rels[1].RuleIRI), "linked relation kept")
	assert.Equal(t, RelationCompliantWith, rels[1].Relation)

	// unknown flag leaves everything in place
	s.UpsertTransaction(Transaction{ID: "T", AccountID: "X1", Amount: decimal.Zero, RuleIDs: []string{"OTHER"}})
	assert.Len(t, s.ExplainCompliance("T"), 2)
}

func TestUnknownComplianceCreatesNoEdges(t *testing.T) {
	s := NewStore()
	s.UpsertTransaction(Transaction{ID: "T1", AccountID: "X1", Amount: decimal.Zero, Date: "2024-01-01",
		RuleIDs: []string{"KYC"}})

	assert.Empty(t, s.ExplainCompliance("T1"))
	_, ok := s.Rule("KYC")
	assert.True(t, ok, "rule node exists")
}

func TestChildBeforeParent(t *testing.T) {
	s := NewStore()
	s.UpsertTransaction(Transaction{ID: "T1", AccountID: "X1", Amount: amount(t, "10"), Currency: "GBP", Date: "2024-01-01"})
	s.UpsertAccount(Account{ID: "X1", ClientID: "C9"})

	views := s.ListTransactionsForClient("C9")
	require.Len(t, views, 1)
	assert.Equal(t, "T1", ShortName(views[0].IRI))

	s.UpsertClient(Client{ID: "C9", Name: "Late Client"})
	c, _ := s.Client("C9")
	assert.Equal(t, "Late Client", c.Name)
	assert.Len(t, s.ListTransactionsForClient("C9"), 1)
}

func TestAccountMovesBetweenClients(t *testing.T) {
	s := fixtureStore(t)
	s.UpsertAccount(Account{ID: "A2", ClientID: "B"})

	assert.Equal(t, []string{"A1"}, s.AccountIDs("A"))
	assert.Equal(t, []string{"A2"}, s.AccountIDs("B"))
	assert.Len(t, s.ListTransactionsForClient("A"), 2)
	assert.Len(t, s.ListTransactionsForClient("B"), 1)
}

func TestMalformedDateFallsBackToEpoch(t *testing.T) {
	s := NewStore()
	s.UpsertTransaction(Transaction{ID: "T1", AccountID: "X1", Amount: decimal.Zero, Date: "10/05/2024"})
	s.UpsertTransaction(Transaction{ID: "T2", AccountID: "X1", Amount: decimal.Zero})

	t1, _ := s.Transaction("T1")
	t2, _ := s.Transaction("T2")
	assert.Equal(t, EpochDate, t1.Date)
	assert.Equal(t, EpochDate, t2.Date)
}

func TestAbsentAttributesAreMarked(t *testing.T) {
	s := NewStore()
	s.UpsertAccount(Account{ID: "X1", ClientID: "C1"})
	s.LinkRule("T1", "KYC", RelationViolates)
	s.linkTransaction("X1", "T1")

	views := s.ListTransactionsForClient("C1")
	require.Len(t, views, 1)
	v := views[0]
	assert.False(t, v.Amount.Valid)
	assert.Nil(t, v.Currency)
	assert.Nil(t, v.Date)
	assert.Nil(t, v.Status)
	assert.Equal(t, ComplianceUnknown, v.Compliance)
}

func TestAmountPrecisionPreserved(t *testing.T) {
	s := NewStore()
	s.UpsertTransaction(Transaction{ID: "T1", AccountID: "X1", Amount: amount(t, "0.10000000000000000555"), Date: "2024-01-01"})

	tx, _ := s.Transaction("T1")
	assert.Equal(t, "0.10000000000000000555", FormatAmount(tx.Amount))
}

func TestStats(t *testing.T) {
	s := fixtureStore(t)
	st := s.Stats()

	assert.Equal(t, 1, st.Clients)
	assert.Equal(t, 2, st.Accounts)
	assert.Equal(t, 3, st.Transactions)
	assert.Equal(t, 2, st.Rules)
	assert.Equal(t, 4, st.RuleRelations)
	assert.Equal(t, len(s.Triples()), st.Triples)
}

func TestParseCompliance(t *testing.T) {
	tests := []struct {
		in   string
		want Compliance
		ok   bool
	}{
		{"true", Compliant, true},
		{"TRUE", Compliant, true},
		{"1", Compliant, true},
		{"yes", Compliant, true},
		{"false", NonCompliant, true},
		{"0", NonCompliant, true},
		{"n", NonCompliant, true},
		{"", ComplianceUnknown, true},
		{"  ", ComplianceUnknown, true},
		{"maybe", ComplianceUnknown, false},
	}
	for _, tt := range tests {
		got, ok := ParseCompliance(tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
		assert.Equal(t, tt.ok, ok, "input %q", tt.in)
	}
}

func TestComplianceString(t *testing.T) {
	assert.Equal(t, "true", Compliant.String())
	assert.Equal(t, "false", NonCompliant.String())
	assert.Equal(t, "unknown", ComplianceUnknown.String())
}
