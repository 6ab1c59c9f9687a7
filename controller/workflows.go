package controller

import (
	"context"
	"fmt"
	"strings"

	"github.com/teranos/finkg/errors"
	"github.com/teranos/finkg/logger"
	"github.com/teranos/finkg/retriever"
	"github.com/teranos/finkg/trace"
)

// SummaryQuestion is asked when SummarizeClient gets no question
func SummaryQuestion(clientID string) string {
	return fmt.Sprintf("Summarize client %s's recent transactions and highlight any that might be risky or unusual.", clientID)
}

// ExplainQuestion is asked when ExplainCompliance gets no question
func ExplainQuestion(txID string) string {
	return fmt.Sprintf("Based on the facts, explain whether transaction %s is compliant or non-compliant, and why.", txID)
}

// SummarizeClient asks the model about a client's transactions
func (c *Controller) SummarizeClient(ctx context.Context, clientID, question string) (*Result, error) {
	if strings.TrimSpace(question) == "" {
		question = SummaryQuestion(clientID)
	}
	r := c.begin(ctx, ScenarioSummary)
	r.log.Infow("Summarizing client", logger.FieldClientID, clientID)

	res := &Result{
		TraceID:  r.id,
		Scenario: ScenarioSummary,
		ClientID: clientID,
		Question: question,
		Facts:    c.retriever.ClientFactsText(clientID),
	}
	err := c.ask(r, res)
	return done(res, err)
}

// ExplainCompliance asks the model to explain a transaction's compliance
func (c *Controller) ExplainCompliance(ctx context.Context, txID, question string) (*Result, error) {
	if strings.TrimSpace(question) == "" {
		question = ExplainQuestion(txID)
	}
	r := c.begin(ctx, ScenarioCompliance)
	r.log.Infow("Explaining compliance", logger.FieldTxID, txID)

	res := &Result{
		TraceID:  r.id,
		Scenario: ScenarioCompliance,
		TxID:     txID,
		Question: question,
		Facts:    c.retriever.ComplianceFactsText(txID),
	}
	err := c.ask(r, res)
	return done(res, err)
}

func (c *Controller) ask(r *run, res *Result) error {
	err := c.requireReasoner()
	if err == nil {
		res.Response, err = c.reasoner.Ask(r.ctx, res.Question, res.Facts)
	}
	c.finish(r, trace.Record{
		ClientID: res.ClientID,
		TxID:     res.TxID,
		Question: res.Question,
		Facts:    res.Facts,
		Response: res.Response,
	}, err)
	return err
}

// EvaluateCompliance asks for a JSON decision and scores it against the
// graph's own label
func (c *Controller) EvaluateCompliance(ctx context.Context, txID string) (*Evaluation, error) {
	r := c.begin(ctx, ScenarioEvaluate)
	r.log.Infow("Evaluating compliance", logger.FieldTxID, txID)

	eval := &Evaluation{
		TraceID:     r.id,
		TxID:        txID,
		Facts:       c.retriever.ComplianceFactsText(txID),
		GroundTruth: c.store.ComplianceLabel(txID),
	}

	err := c.requireReasoner()
	if err == nil {
		decision, raw, derr := c.reasoner.DecideCompliance(r.ctx, txID, eval.Facts)
		err = derr
		if derr == nil {
			eval.ModelLabel = decision.IsCompliant
			eval.Explanation = decision.Explanation
			eval.LowConfidence = decision.LowConfidence
			eval.RawResponse = raw
			if eval.GroundTruth != nil && eval.ModelLabel != nil {
				correct := *eval.GroundTruth == *eval.ModelLabel
				eval.Correct = &correct
			}
		}
	}

	c.finish(r, trace.Record{
		TxID:     txID,
		Facts:    eval.Facts,
		Response: eval.RawResponse,
		Extra: map[string]interface{}{
			"ground_truth":   eval.GroundTruth,
			"model_label":    eval.ModelLabel,
			"correct":        eval.Correct,
			"low_confidence": eval.LowConfidence,
		},
	}, err)

	if err != nil {
		return nil, err
	}
	return eval, nil
}

// AnswerQuestion answers a free question over the client's facts and, when
// txID is set, that transaction's compliance facts
func (c *Controller) AnswerQuestion(ctx context.Context, clientID, txID, question string) (*Answer, error) {
	r := c.begin(ctx, ScenarioAsk)
	r.log.Infow("Answering question", logger.FieldClientID, clientID, logger.FieldTxID, txID)

	ans := &Answer{Result: Result{
		TraceID:  r.id,
		Scenario: ScenarioAsk,
		ClientID: clientID,
		TxID:     txID,
		Question: question,
		Facts:    c.retriever.BuildContext(clientID, txID),
	}}

	err := c.requireReasoner()
	if err == nil && strings.TrimSpace(question) == "" {
		err = errors.NewInvalidRequestError("question is required")
	}
	if err == nil {
		ans.Answer, ans.RawResponse, err = c.reasoner.AnswerStructured(r.ctx, question, ans.Facts)
		if ans.Answer != nil {
			ans.Response = ans.Answer.Answer
		}
	}

	rec := trace.Record{
		ClientID: clientID,
		TxID:     txID,
		Question: question,
		Facts:    ans.Facts,
		Response: ans.RawResponse,
	}
	if ans.Answer != nil {
		rec.Extra = map[string]interface{}{
			"uncertainty":        ans.Answer.Uncertainty,
			"insufficient_facts": ans.Answer.InsufficientFacts,
			"low_confidence":     ans.Answer.LowConfidence,
		}
	}
	c.finish(r, rec, err)

	if err != nil {
		return nil, err
	}
	return ans, nil
}

// RawFacts returns a client's facts without calling the model
func (c *Controller) RawFacts(ctx context.Context, clientID string, includeCompliance bool) *Result {
	r := c.begin(ctx, ScenarioRawFacts)

	var opts []retriever.FactOption
	if includeCompliance {
		opts = append(opts, retriever.WithComplianceFlag())
	}
	res := &Result{
		TraceID:  r.id,
		Scenario: ScenarioRawFacts,
		ClientID: clientID,
		Facts:    c.retriever.ClientFactsText(clientID, opts...),
	}
	c.finish(r, trace.Record{ClientID: clientID, Facts: res.Facts}, nil)
	return res
}

func done(res *Result, err error) (*Result, error) {
	if err != nil {
		return nil, err
	}
	return res, nil
}
