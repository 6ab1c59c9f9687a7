package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teranos/finkg/kg"
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func TestSeed(t *testing.T) {
	store := kg.NewStore()
	Seed(store)

	views := store.ListTransactionsForClient("A")
	require.Len(t, views, 3)
	assert.Equal(t, "T001", kg.ShortName(views[0].IRI))
	assert.Equal(t, "T002", kg.ShortName(views[1].IRI))
	assert.Equal(t, "T003", kg.ShortName(views[2].IRI))

	label := store.ComplianceLabel("T002")
	require.NotNil(t, label)
	assert.False(t, *label)

	rels := store.ExplainCompliance("T002")
	require.Len(t, rels, 2)
	for _, r := range rels {
		assert.Equal(t, kg.RelationViolates, r.Relation)
	}

	before := store.Stats()
	Seed(store)
	assert.Equal(t, before, store.Stats(), "seeding is idempotent")
	assert.Equal(t, views, store.ListTransactionsForClient("A"), "seeding twice lists the same transactions")
}

func TestLoadDir(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		ClientsFile: "client_id,name,risk_level\nB,Client B,high\n",
		AccountsFile: "account_id,client_id,account_type,status\n" +
			"B1,B,checking,active\n",
		TransactionsFile: "tx_id,account_id,amount,currency,date,status,is_compliant,rule_ids\n" +
			"T100,B1,1234.567,GBP,2024-02-01,completed,false,\"KYC,AML_THRESHOLD\"\n" +
			"T101,B1,20.00,GBP,2024-01-15,pending,,\n",
		RulesFile: "rule_id,description,severity\nKYC,Know your customer,high\n",
		TxRulesFile: "tx_id,rule_id,relation\n" +
			"T101,KYC,compliant\n",
	})

	store := kg.NewStore()
	res, err := NewLoader(store).LoadDir(context.Background(), dir)
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, 6, res.Applied())
	require.Len(t, res.Files, 5)
	assert.Equal(t, ClientsFile, res.Files[0].File)
	assert.Equal(t, TxRulesFile, res.Files[4].File)

	views := store.ListTransactionsForClient("B")
	require.Len(t, views, 2)
	assert.Equal(t, "T101", kg.ShortName(views[0].IRI))
	assert.Equal(t, kg.ComplianceUnknown, views[0].Compliance)

	tx, ok := store.Transaction("T100")
	require.True(t, ok)
	assert.Equal(t, "1234.567", kg.FormatAmount(tx.Amount))
	assert.Equal(t, []string{"AML_THRESHOLD", "KYC"}, tx.RuleIDs)

	rels := store.ExplainCompliance("T101")
	require.Len(t, rels, 1)
	assert.Equal(t, kg.RelationCompliantWith, rels[0].Relation)

	rule, ok := store.Rule("KYC")
	require.True(t, ok)
	assert.Equal(t, "high", rule.Severity)
}

func TestLoadDirRecoversBadRows(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		TransactionsFile: "tx_id,account_id,amount,currency,date,status,is_compliant,rule_ids\n" +
			",A1,1,USD,2024-01-01,completed,true,KYC\n" +
			"T200,A1,lots,USD,2024-01-01,completed,true,KYC\n" +
			"T201,A1,5,USD,01/02/2024,completed,perhaps,KYC\n" +
			"T202,A1,7,USD,2024-01-03\n",
		TxRulesFile: "tx_id,rule_id,relation\n" +
			"T202,KYC,maybe\n" +
			"T202,AML_THRESHOLD,violates\n",
	})

	store := kg.NewStore()
	res, err := NewLoader(store).LoadDir(context.Background(), dir)
	require.NoError(t, err)

	codes := map[string]int{}
	for _, w := range res.Warnings {
		codes[w.Code]++
	}
	assert.Equal(t, map[string]int{
		IssueMissingID:   1,
		IssueBadAmount:   1,
		IssueBadDate:     1,
		IssueBadBoolean:  1,
		IssueBadRelation: 1,
	}, codes)

	tx, ok := store.Transaction("T200")
	require.True(t, ok)
	assert.True(t, tx.Amount.IsZero())

	tx, ok = store.Transaction("T201")
	require.True(t, ok)
	assert.Equal(t, kg.EpochDate, tx.Date)
	assert.Equal(t, kg.ComplianceUnknown, tx.Compliance)

	tx, ok = store.Transaction("T202")
	require.True(t, ok, "short row still ingested")
	assert.Equal(t, "2024-01-03", tx.Date)

	rels := store.ExplainCompliance("T202")
	require.Len(t, rels, 1)
	assert.Equal(t, kg.RelationViolates, rels[0].Relation)

	assert.Equal(t, 1, res.Files[2].Skipped)
	assert.Equal(t, 3, res.Files[2].Applied)
}

func TestLoadDirEmptyAmountIsZero(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		TransactionsFile: "tx_id,account_id,amount,currency,date,status,is_compliant,rule_ids\n" +
			"T1,A1,,USD,2024-01-01,completed,true,KYC\n" +
			"T2,A1,12.345,USD,2024-01-02,completed,true,KYC\n",
	})

	store := kg.NewStore()
	res, err := NewLoader(store).LoadDir(context.Background(), dir)
	require.NoError(t, err)
	for _, w := range res.Warnings {
		assert.NotEqual(t, IssueBadAmount, w.Code, "empty amount is not malformed")
	}

	tx, ok := store.Transaction("T1")
	require.True(t, ok)
	assert.True(t, tx.Amount.IsZero())

	tx, ok = store.Transaction("T2")
	require.True(t, ok, "later rows still load")
	assert.Equal(t, "12.345", kg.FormatAmount(tx.Amount))
}

func TestLoadDirWarnsOnRowNumbers(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		ClientsFile: "client_id,name\nA,Client A\n,Nobody\n",
	})

	res, err := NewLoader(kg.NewStore()).LoadDir(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, 3, res.Warnings[0].Row)
	assert.Equal(t, ClientsFile, res.Warnings[0].File)
}

func TestLoadDirMissingColumnSkipsFile(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		AccountsFile: "id,client_id\nA1,A\n",
	})

	store := kg.NewStore()
	res, err := NewLoader(store).LoadDir(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, IssueMissingColumn, res.Warnings[0].Code)
	assert.Zero(t, store.Stats().Accounts)
}

func TestLoadDirColumnOrderAndDelimiter(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		ClientsFile: "\ufeffRisk_Level;Name;Client_ID\nlow;Client C;C\n",
	})

	store := kg.NewStore()
	_, err := NewLoader(store, WithDelimiter(';')).LoadDir(context.Background(), dir)
	require.NoError(t, err)

	c, ok := store.Client("C")
	require.True(t, ok)
	assert.Equal(t, "Client C", c.Name)
	assert.Equal(t, "low", c.RiskLevel)
}

func TestLoadDirEmptyAndMissing(t *testing.T) {
	dir := writeFiles(t, map[string]string{RulesFile: ""})

	res, err := NewLoader(kg.NewStore()).LoadDir(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, IssueEmptyFile, res.Warnings[0].Code)
	assert.False(t, res.Files[0].Present)
	assert.True(t, res.Files[3].Present)

	_, err = NewLoader(kg.NewStore()).LoadDir(context.Background(), filepath.Join(dir, "nope"))
	assert.Error(t, err)
}

func TestLoadDirHonoursCancellation(t *testing.T) {
	dir := writeFiles(t, map[string]string{ClientsFile: "client_id\nA\n"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLoader(kg.NewStore()).LoadDir(ctx, dir)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"KYC", "AML"}, splitList(" KYC , AML "))
	assert.Equal(t, []string{"KYC", "AML"}, splitList("KYC;AML;"))
	assert.Nil(t, splitList(""))
}
