package tracker

import "github.com/shopspring/decimal"

// Pricing is USD per million tokens
type Pricing struct {
	Prompt     decimal.Decimal
	Completion decimal.Decimal
}

func usd(prompt, completion string) Pricing {
	return Pricing{
		Prompt:     decimal.RequireFromString(prompt),
		Completion: decimal.RequireFromString(completion),
	}
}

// Keyed by the model id each provider expects. OpenRouter ids carry a
// vendor prefix; direct OpenAI and Anthropic ids do not.
var modelPricing = map[string]Pricing{
	"openai/gpt-4o":        usd("2.50", "10.00"),
	"openai/gpt-4o-mini":   usd("0.15", "0.60"),
	"openai/gpt-4.1-mini":  usd("0.40", "1.60"),
	"openai/gpt-3.5-turbo": usd("0.50", "1.50"),
	"gpt-4o":               usd("2.50", "10.00"),
	"gpt-4o-mini":          usd("0.15", "0.60"),
	"gpt-4.1-mini":         usd("0.40", "1.60"),

	"anthropic/claude-3.5-sonnet": usd("3.00", "15.00"),
	"anthropic/claude-3.5-haiku":  usd("0.80", "4.00"),
	"claude-3-5-haiku-latest":     usd("0.80", "4.00"),
	"claude-3-5-haiku-20241022":   usd("0.80", "4.00"),
	"claude-3-5-sonnet-latest":    usd("3.00", "15.00"),
	"claude-sonnet-4-20250514":    usd("3.00", "15.00"),

	"meta-llama/llama-3.1-70b-instruct": usd("0.52", "0.75"),
	"meta-llama/llama-3.1-8b-instruct":  usd("0.055", "0.055"),
	"google/gemini-flash-1.5":           usd("0.075", "0.30"),
}

var perMillion = decimal.NewFromInt(1_000_000)

// GetPricing returns the price table entry for model
func GetPricing(model string) (Pricing, bool) {
	p, ok := modelPricing[model]
	return p, ok
}

// CalculateCost prices a call in USD. Unknown models yield nil rather than a
// guess, so aggregate cost only ever sums known prices.
func CalculateCost(model string, promptTokens, completionTokens int) *float64 {
	p, ok := modelPricing[model]
	if !ok {
		return nil
	}
	cost := p.Prompt.Mul(decimal.NewFromInt(int64(promptTokens))).
		Add(p.Completion.Mul(decimal.NewFromInt(int64(completionTokens)))).
		Div(perMillion)
	f := cost.InexactFloat64()
	return &f
}
