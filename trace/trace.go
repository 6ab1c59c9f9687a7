// Package trace keeps the append-only JSONL record of workflow runs.
//
// Each run appends exactly one line. Lines are never rewritten. Appends take
// an advisory lock on a sibling .lock file so processes sharing a log never
// interleave partial lines.
package trace

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/finkg/errors"
	"github.com/teranos/finkg/logger"
)

// lockRetry is how often a blocked Append polls for the lock
const lockRetry = 10 * time.Millisecond

// Record is one workflow run
type Record struct {
	ID        string                 `json:"id" yaml:"id"`
	Timestamp time.Time              `json:"timestamp" yaml:"timestamp"`
	Scenario  string                 `json:"scenario,omitempty" yaml:"scenario,omitempty"`
	ClientID  string                 `json:"client_id,omitempty" yaml:"client_id,omitempty"`
	TxID      string                 `json:"tx_id,omitempty" yaml:"tx_id,omitempty"`
	Question  string                 `json:"question,omitempty" yaml:"question,omitempty"`
	Facts     string                 `json:"facts" yaml:"facts"`
	Response  string                 `json:"response,omitempty" yaml:"response,omitempty"`
	Error     string                 `json:"error,omitempty" yaml:"error,omitempty"`
	Extra     map[string]interface{} `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// Log appends records to a JSONL file
type Log struct {
	path   string
	lock   *flock.Flock
	now    func() time.Time
	logger *zap.SugaredLogger
}

// Option configures a Log
type Option func(*Log)

// WithLogger sets the trace logger
func WithLogger(l *zap.SugaredLogger) Option {
	return func(t *Log) {
		t.logger = l
	}
}

// WithClock overrides time.Now for record timestamps
func WithClock(now func() time.Time) Option {
	return func(t *Log) {
		t.now = now
	}
}

// Open prepares a log at path, creating its directory. The file itself is
// created by the first Append.
func Open(path string, opts ...Option) (*Log, error) {
	if path == "" {
		return nil, errors.NewInvalidRequestError("trace log path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create trace log directory for %s", path)
	}

	t := &Log{
		path: path,
		lock: flock.New(path + ".lock"),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = logger.OrNop(t.logger).Named("trace")
	return t, nil
}

// Path returns the log file path
func (t *Log) Path() string {
	return t.path
}

// Append writes rec as one line. Missing ID and Timestamp are filled in and
// written back to rec.
func (t *Log) Append(ctx context.Context, rec *Record) error {
	if rec == nil {
		return errors.NewInvalidRequestError("nil trace record")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = t.now()
	}
	rec.Timestamp = rec.Timestamp.UTC()

	locked, err := t.lock.TryLockContext(ctx, lockRetry)
	if err != nil {
		return errors.Wrapf(err, "failed to lock trace log %s", t.path)
	}
	if !locked {
		return errors.Newf("trace log %s is locked", t.path)
	}
	defer func() { _ = t.lock.Unlock() }()

	f, err := os.OpenFile(t.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errors.Wrapf(err, "failed to open trace log %s", t.path)
	}
	defer func() { _ = f.Close() }()

	bw := bufio.NewWriter(f)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rec); err != nil {
		return errors.Wrap(err, "failed to encode trace record")
	}
	if err := bw.Flush(); err != nil {
		return errors.Wrapf(err, "failed to write trace log %s", t.path)
	}

	logger.FromContext(ctx, t.logger).Debugw("Trace record appended",
		"id", rec.ID, logger.FieldScenario, rec.Scenario, logger.FieldFile, t.path)
	return nil
}

// Records reads the whole log. See Read for the tolerance rules.
func (t *Log) Records() ([]Record, int, error) {
	return Load(t.path)
}
