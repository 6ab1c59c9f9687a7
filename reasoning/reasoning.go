// Package reasoning asks a chat model questions grounded in graph facts.
//
// Every call sends the same message layout: the system prompt, then a system
// message carrying the facts (when there are any), then the user question.
// Structured variants request a JSON object and fall back to a low-confidence
// placeholder when the reply cannot be decoded, so a chatty model never turns
// into an error for the caller. Transport failures still propagate.
package reasoning

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/teranos/finkg/ai/openrouter"
	"github.com/teranos/finkg/ai/provider"
	"github.com/teranos/finkg/am"
	"github.com/teranos/finkg/errors"
	"github.com/teranos/finkg/logger"
)

// FactsPreamble introduces the grounding block
const FactsPreamble = "Here are verified facts you MUST use:\n"

const (
	complianceInstruction = "Respond ONLY with a JSON object of the form " +
		`{"is_compliant": true or false, "explanation": "<one or two sentences citing the facts>"}. ` +
		`Use null for is_compliant if the facts do not decide it.`

	structuredInstruction = "Respond ONLY with a JSON object of the form " +
		`{"answer": "<string>", "reasoning": "<string>", "used_facts": ["<fact line>", ...], ` +
		`"insufficient_facts": true or false, "uncertainty": "low" | "medium" | "high"}. ` +
		"Quote used_facts verbatim from the facts block."
)

// Reasoner wraps a chat client with the finkg prompt layout
type Reasoner struct {
	client       provider.AIClient
	systemPrompt string
	logger       *zap.SugaredLogger
}

// Option configures a Reasoner
type Option func(*Reasoner)

// WithSystemPrompt replaces am.DefaultSystemPrompt
func WithSystemPrompt(prompt string) Option {
	return func(r *Reasoner) {
		if prompt != "" {
			r.systemPrompt = prompt
		}
	}
}

// WithLogger sets the reasoner logger
func WithLogger(l *zap.SugaredLogger) Option {
	return func(r *Reasoner) {
		r.logger = l
	}
}

// New creates a Reasoner over client
func New(client provider.AIClient, opts ...Option) *Reasoner {
	r := &Reasoner{
		client:       client,
		systemPrompt: am.DefaultSystemPrompt,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logger.OrNop(r.logger).Named("reasoning")
	return r
}

// SystemPrompt returns the prompt sent ahead of every question
func (r *Reasoner) SystemPrompt() string {
	return r.systemPrompt
}

// Request builds the chat request for question and facts. Empty facts send
// no facts message at all.
func (r *Reasoner) Request(question, facts string, jsonMode bool) openrouter.ChatRequest {
	req := openrouter.ChatRequest{
		SystemPrompt: r.systemPrompt,
		UserPrompt:   question,
		JSONMode:     jsonMode,
	}
	if strings.TrimSpace(facts) != "" {
		req.Context = []string{FactsPreamble + facts}
	}
	return req
}

// Ask returns the model's free-text answer to question
func (r *Reasoner) Ask(ctx context.Context, question, facts string) (string, error) {
	resp, err := r.chat(ctx, r.Request(question, facts, false))
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// DecideCompliance asks for a JSON compliance decision on txID. The raw reply
// is returned alongside the decision for tracing.
func (r *Reasoner) DecideCompliance(ctx context.Context, txID, facts string) (*ComplianceDecision, string, error) {
	question := fmt.Sprintf("Decide whether transaction %s is compliant based on the facts. "+
		"Remember: respond ONLY with the requested JSON fields.\n\n%s", txID, complianceInstruction)

	resp, err := r.chat(ctx, r.Request(question, facts, true))
	if err != nil {
		return nil, "", err
	}

	decision, err := ParseComplianceDecision(resp.Content)
	if err != nil {
		logger.FromContext(ctx, r.logger).Warnw("Compliance reply was not valid JSON, using placeholder",
			logger.FieldTxID, txID, logger.FieldError, err)
	}
	return decision, resp.Content, nil
}

// AnswerStructured asks question and decodes the reply into a StructuredAnswer
func (r *Reasoner) AnswerStructured(ctx context.Context, question, facts string) (*StructuredAnswer, string, error) {
	resp, err := r.chat(ctx, r.Request(question+"\n\n"+structuredInstruction, facts, true))
	if err != nil {
		return nil, "", err
	}

	answer, err := ParseStructuredAnswer(resp.Content)
	if err != nil {
		logger.FromContext(ctx, r.logger).Warnw("Structured reply was not valid JSON, using placeholder",
			logger.FieldError, err)
	}
	return answer, resp.Content, nil
}

func (r *Reasoner) chat(ctx context.Context, req openrouter.ChatRequest) (*openrouter.ChatResponse, error) {
	if r.client == nil {
		return nil, errors.WithHint(errors.Wrap(errors.ErrMissingCredential, "no reasoning client configured"),
			"set OPENROUTER_API_KEY, OPENAI_API_KEY or ANTHROPIC_API_KEY")
	}

	log := logger.FromContext(ctx, r.logger)
	log.Debugw("Asking model", "json_mode", req.JSONMode, "facts", len(req.Context) > 0)

	resp, err := r.client.Chat(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "reasoning request")
	}
	log.Debugw("Model replied", logger.FieldModel, resp.Model, logger.FieldTokens, resp.Usage.TotalTokens)
	if logger.ShouldLogAll(logger.Verbosity()) {
		log.Debugw("Model exchange",
			"system", req.SystemPrompt,
			"context", req.Context,
			"question", req.UserPrompt,
			"response", resp.Content,
		)
	}
	return resp, nil
}
