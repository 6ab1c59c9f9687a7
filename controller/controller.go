// Package controller sequences fact retrieval and model reasoning for the
// named finkg workflows, optionally tracing each run to a JSONL log.
package controller

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/finkg/errors"
	"github.com/teranos/finkg/kg"
	"github.com/teranos/finkg/logger"
	"github.com/teranos/finkg/reasoning"
	"github.com/teranos/finkg/retriever"
	"github.com/teranos/finkg/trace"
)

// Workflow names, recorded as the trace scenario
const (
	ScenarioSummary    = "summary"
	ScenarioCompliance = "compliance"
	ScenarioRawFacts   = "raw-facts"
	ScenarioEvaluate   = "evaluate"
	ScenarioAsk        = "ask"
)

// traceTimeout bounds a trace append after the workflow's own ctx is done
const traceTimeout = 5 * time.Second

// Reasoner is the model side of a workflow; *reasoning.Reasoner implements it
type Reasoner interface {
	Ask(ctx context.Context, question, facts string) (string, error)
	DecideCompliance(ctx context.Context, txID, facts string) (*reasoning.ComplianceDecision, string, error)
	AnswerStructured(ctx context.Context, question, facts string) (*reasoning.StructuredAnswer, string, error)
}

// Controller runs workflows over one store. Workflows only read the store.
type Controller struct {
	store     *kg.Store
	retriever *retriever.Retriever
	reasoner  Reasoner
	trace     *trace.Log
	logger    *zap.SugaredLogger
}

// Option configures a Controller
type Option func(*Controller)

// WithTrace appends one record per workflow run to log
func WithTrace(log *trace.Log) Option {
	return func(c *Controller) {
		c.trace = log
	}
}

// WithLogger sets the controller logger
func WithLogger(l *zap.SugaredLogger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// New creates a controller. reasoner may be nil when only RawFacts is used.
func New(store *kg.Store, reasoner Reasoner, opts ...Option) *Controller {
	c := &Controller{
		store:     store,
		retriever: retriever.New(store),
		reasoner:  reasoner,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logger.OrNop(c.logger).Named("controller")
	return c
}

// Retriever exposes the fact formatter the workflows use
func (c *Controller) Retriever() *retriever.Retriever {
	return c.retriever
}

// Result is the outcome of a free-text workflow
type Result struct {
	TraceID  string `json:"trace_id" yaml:"trace_id"`
	Scenario string `json:"scenario" yaml:"scenario"`
	ClientID string `json:"client_id,omitempty" yaml:"client_id,omitempty"`
	TxID     string `json:"tx_id,omitempty" yaml:"tx_id,omitempty"`
	Question string `json:"question,omitempty" yaml:"question,omitempty"`
	Facts    string `json:"facts" yaml:"facts"`
	Response string `json:"response,omitempty" yaml:"response,omitempty"`
}

// Evaluation compares the model's compliance decision with the graph label.
// Correct is nil unless both labels are known.
type Evaluation struct {
	TraceID       string `json:"trace_id" yaml:"trace_id"`
	TxID          string `json:"tx_id" yaml:"tx_id"`
	Facts         string `json:"facts" yaml:"facts"`
	GroundTruth   *bool  `json:"ground_truth" yaml:"ground_truth"`
	ModelLabel    *bool  `json:"model_label" yaml:"model_label"`
	Correct       *bool  `json:"correct" yaml:"correct"`
	Explanation   string `json:"explanation" yaml:"explanation"`
	LowConfidence bool   `json:"low_confidence" yaml:"low_confidence"`
	RawResponse   string `json:"raw_response" yaml:"raw_response"`
}

// Answer is the outcome of a structured question
type Answer struct {
	Result `yaml:",inline"`

	Answer      *reasoning.StructuredAnswer `json:"answer" yaml:"answer"`
	RawResponse string                      `json:"raw_response" yaml:"raw_response"`
}

// run is the shared shape of every workflow: tag ctx, do the work, trace the
// outcome whether or not it failed.
type run struct {
	id       string
	scenario string
	ctx      context.Context
	log      *zap.SugaredLogger
	started  time.Time
}

func (c *Controller) begin(ctx context.Context, scenario string) *run {
	id := uuid.NewString()
	ctx = logger.WithScenario(logger.WithTraceID(ctx, id), scenario)
	return &run{
		id:       id,
		scenario: scenario,
		ctx:      ctx,
		log:      logger.FromContext(ctx, c.logger),
		started:  time.Now(),
	}
}

// finish logs the run and appends rec to the trace log when one is attached.
// A trace failure is logged but never replaces the workflow's own outcome.
func (c *Controller) finish(r *run, rec trace.Record, err error) {
	elapsed := time.Since(r.started).Milliseconds()
	if err != nil {
		rec.Error = err.Error()
		r.log.Warnw("Workflow failed", logger.FieldDurationMS, elapsed, logger.FieldError, err)
	} else {
		r.log.Infow("Workflow finished", logger.FieldDurationMS, elapsed)
	}

	if c.trace == nil {
		return
	}
	rec.ID = r.id
	rec.Scenario = r.scenario

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.ctx), traceTimeout)
	defer cancel()
	if terr := c.trace.Append(ctx, &rec); terr != nil {
		r.log.Errorw("Failed to append trace record", logger.FieldFile, c.trace.Path(), logger.FieldError, terr)
	}
}

func (c *Controller) requireReasoner() error {
	if c.reasoner == nil {
		return errors.WithHint(errors.Wrap(errors.ErrMissingCredential, "no reasoning client configured"),
			"set OPENROUTER_API_KEY, OPENAI_API_KEY or ANTHROPIC_API_KEY")
	}
	return nil
}

var _ Reasoner = (*reasoning.Reasoner)(nil)
