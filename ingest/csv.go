package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/teranos/finkg/errors"
	"github.com/teranos/finkg/kg"
	"github.com/teranos/finkg/logger"
	"go.uber.org/zap"
)

// Ingestion file names, in processing order. Parents come first so that
// most rows find their parent already present.
const (
	ClientsFile      = "clients.csv"
	AccountsFile     = "accounts.csv"
	TransactionsFile = "transactions.csv"
	RulesFile        = "rules.csv"
	TxRulesFile      = "tx_rules.csv"
)

// Files lists every ingestion file in processing order
var Files = []string{ClientsFile, AccountsFile, TransactionsFile, RulesFile, TxRulesFile}

// Issue codes
const (
	IssueMissingID     = "missing_id"
	IssueBadAmount     = "bad_amount"
	IssueBadDate       = "bad_date"
	IssueBadBoolean    = "bad_boolean"
	IssueBadRelation   = "bad_relation"
	IssueParse         = "parse_error"
	IssueMissingColumn = "missing_column"
	IssueEmptyFile     = "empty_file"
)

// Issue is a recoverable problem found while reading a file
type Issue struct {
	File    string `json:"file"`
	Row     int    `json:"row"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// FileStats captures per-file counts
type FileStats struct {
	File    string `json:"file"`
	Present bool   `json:"present"`
	Read    int    `json:"read"`
	Applied int    `json:"applied"`
	Skipped int    `json:"skipped"`
}

// Result is the outcome of one LoadDir call
type Result struct {
	Dir        string      `json:"dir"`
	Files      []FileStats `json:"files"`
	Warnings   []Issue     `json:"warnings,omitempty"`
	DurationMs int64       `json:"duration_ms"`
}

// Applied returns the number of rows written to the store across all files
func (r *Result) Applied() int {
	n := 0
	for _, f := range r.Files {
		n += f.Applied
	}
	return n
}

// Loader reads ingestion files into a store
type Loader struct {
	store     *kg.Store
	delimiter rune
	logger    *zap.SugaredLogger
}

// LoaderOption configures a Loader
type LoaderOption func(*Loader)

// WithDelimiter sets the field separator; the default is ','
func WithDelimiter(d rune) LoaderOption {
	return func(l *Loader) {
		l.delimiter = d
	}
}

// WithLogger sets the logger for per-row warnings
func WithLogger(log *zap.SugaredLogger) LoaderOption {
	return func(l *Loader) {
		l.logger = logger.OrNop(log)
	}
}

// NewLoader creates a loader writing into store
func NewLoader(store *kg.Store, opts ...LoaderOption) *Loader {
	l := &Loader{
		store:     store,
		delimiter: ',',
		logger:    zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadDir ingests every known file present in dir. Missing files are skipped.
// Row-level problems are recovered with defaults or by skipping the row and
// reported in Result.Warnings; only I/O failures and cancellation return an error.
func (l *Loader) LoadDir(ctx context.Context, dir string) (*Result, error) {
	start := time.Now()

	info, err := os.Stat(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read data directory %s", dir)
	}
	if !info.IsDir() {
		return nil, errors.NewInvalidRequestError("%s is not a directory", dir)
	}

	res := &Result{Dir: dir}
	for _, name := range Files {
		stats, err := l.loadFile(ctx, filepath.Join(dir, name), name, res)
		if err != nil {
			return res, err
		}
		res.Files = append(res.Files, stats)
	}
	res.DurationMs = time.Since(start).Milliseconds()

	l.logger.Infow("Ingestion complete",
		"dir", dir,
		logger.FieldRows, res.Applied(),
		"warnings", len(res.Warnings),
		logger.FieldDurationMS, res.DurationMs)
	return res, nil
}

func (l *Loader) loadFile(ctx context.Context, path, name string, res *Result) (FileStats, error) {
	stats := FileStats{File: name}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		l.logger.Debugw("Ingestion file absent", logger.FieldFile, name)
		return stats, nil
	}
	if err != nil {
		return stats, errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()
	stats.Present = true

	r := csv.NewReader(f)
	r.Comma = l.delimiter
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.LazyQuotes = true

	warn := func(row int, code, format string, args ...interface{}) {
		issue := Issue{File: name, Row: row, Code: code, Message: fmt.Sprintf(format, args...)}
		res.Warnings = append(res.Warnings, issue)
		l.logger.Warnw("Ingestion row issue", logger.FieldFile, name, logger.FieldRow, row, "code", code, "message", issue.Message)
	}

	header, err := r.Read()
	if err == io.EOF {
		warn(0, IssueEmptyFile, "file has no header row")
		return stats, nil
	}
	if err != nil {
		return stats, errors.Wrapf(err, "failed to read header of %s", path)
	}
	cols := indexHeader(header)

	apply, required := l.rowHandler(name)
	for _, col := range required {
		if _, ok := cols[col]; !ok {
			warn(1, IssueMissingColumn, "required column %q not found", col)
			return stats, nil
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return stats, errors.Wrap(err, "ingestion cancelled")
		}
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				stats.Skipped++
				warn(parseErr.Line, IssueParse, "%v", parseErr.Err)
				continue
			}
			return stats, errors.Wrapf(err, "failed to read %s", path)
		}
		stats.Read++
		line, _ := r.FieldPos(0)

		row := csvRow{cols: cols, record: record}
		if apply(row, func(code, format string, args ...interface{}) { warn(line, code, format, args...) }) {
			stats.Applied++
		} else {
			stats.Skipped++
		}
	}

	l.logger.Debugw("Ingested file", logger.FieldFile, name, logger.FieldRows, stats.Applied, logger.FieldSkipped, stats.Skipped)
	return stats, nil
}

type warnFunc func(code, format string, args ...interface{})

// rowHandler returns the row applier for a file and the columns it cannot do without.
// The applier reports whether the row reached the store.
func (l *Loader) rowHandler(name string) (func(csvRow, warnFunc) bool, []string) {
	switch name {
	case ClientsFile:
		return l.applyClient, []string{"client_id"}
	case AccountsFile:
		return l.applyAccount, []string{"account_id"}
	case TransactionsFile:
		return l.applyTransaction, []string{"tx_id"}
	case RulesFile:
		return l.applyRule, []string{"rule_id"}
	default:
		return l.applyTxRule, []string{"tx_id", "rule_id", "relation"}
	}
}

func (l *Loader) applyClient(row csvRow, warn warnFunc) bool {
	id := row.get("client_id")
	if id == "" {
		warn(IssueMissingID, "client_id is empty")
		return false
	}
	l.store.UpsertClient(kg.Client{ID: id, Name: row.get("name"), RiskLevel: row.get("risk_level")})
	return true
}

func (l *Loader) applyAccount(row csvRow, warn warnFunc) bool {
	id := row.get("account_id")
	if id == "" {
		warn(IssueMissingID, "account_id is empty")
		return false
	}
	l.store.UpsertAccount(kg.Account{
		ID:       id,
		ClientID: row.get("client_id"),
		Type:     row.get("account_type"),
		Status:   row.get("status"),
	})
	return true
}

func (l *Loader) applyTransaction(row csvRow, warn warnFunc) bool {
	id := row.get("tx_id")
	if id == "" {
		warn(IssueMissingID, "tx_id is empty")
		return false
	}

	rawAmount := row.get("amount")
	amount, ok := kg.ParseAmount(rawAmount)
	if !ok && rawAmount != "" {
		warn(IssueBadAmount, "amount %q for %s is not a number, using 0", rawAmount, id)
	}

	rawDate := row.get("date")
	if _, ok := kg.NormalizeDate(rawDate); !ok && rawDate != "" {
		warn(IssueBadDate, "date %q for %s is not ISO-8601, using %s", rawDate, id, kg.EpochDate)
	}

	rawFlag := row.get("is_compliant")
	compliance, ok := kg.ParseCompliance(rawFlag)
	if !ok {
		warn(IssueBadBoolean, "is_compliant %q for %s is not a boolean, treating as unknown", rawFlag, id)
	}

	l.store.UpsertTransaction(kg.Transaction{
		ID:         id,
		AccountID:  row.get("account_id"),
		Amount:     amount,
		Currency:   row.get("currency"),
		Date:       rawDate,
		Status:     row.get("status"),
		Compliance: compliance,
		RuleIDs:    splitList(row.get("rule_ids")),
	})
	return true
}

func (l *Loader) applyRule(row csvRow, warn warnFunc) bool {
	id := row.get("rule_id")
	if id == "" {
		warn(IssueMissingID, "rule_id is empty")
		return false
	}
	l.store.UpsertRule(kg.ComplianceRule{ID: id, Description: row.get("description"), Severity: row.get("severity")})
	return true
}

func (l *Loader) applyTxRule(row csvRow, warn warnFunc) bool {
	txID, ruleID := row.get("tx_id"), row.get("rule_id")
	if txID == "" || ruleID == "" {
		warn(IssueMissingID, "tx_id and rule_id are both required")
		return false
	}
	rel, ok := kg.ParseRelation(row.get("relation"))
	if !ok {
		warn(IssueBadRelation, "relation %q for %s/%s must be compliant or violates", row.get("relation"), txID, ruleID)
		return false
	}
	l.store.LinkRule(txID, ruleID, rel)
	return true
}

// csvRow reads cells by header name; short rows read as empty
type csvRow struct {
	cols   map[string]int
	record []string
}

func (r csvRow) get(col string) string {
	i, ok := r.cols[col]
	if !ok || i >= len(r.record) {
		return ""
	}
	return strings.TrimSpace(r.record[i])
}

func indexHeader(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimPrefix(h, "\ufeff")
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return cols
}

// splitList splits a joined identifier list on ',' or ';'
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' })
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
