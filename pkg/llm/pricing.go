package llm

import (
	"strings"

	"github.com/shopspring/decimal"
)

// CostScale matches the decimal(10,6) columns cost is persisted in.
const CostScale = 6

// Rate is the price per 1K tokens.
type Rate struct {
	Input  decimal.Decimal
	Output decimal.Decimal
}

type PricingTable struct {
	rates    map[string]Rate
	fallback Rate
}

func mustRate(input, output string) Rate {
	return Rate{
		Input:  decimal.RequireFromString(input),
		Output: decimal.RequireFromString(output),
	}
}

// DefaultPricing covers the hosted models the pipeline is configured with.
// Unknown models are billed at gpt-4o-mini rates.
func DefaultPricing() *PricingTable {
	mini := mustRate("0.00015", "0.0006")
	return &PricingTable{
		rates: map[string]Rate{
			"gpt-4o":        mustRate("0.005", "0.015"),
			"gpt-4o-mini":   mini,
			"gpt-3.5-turbo": mustRate("0.0005", "0.0015"),
		},
		fallback: mini,
	}
}

// NewPricingTable builds a table with explicit rates.
func NewPricingTable(rates map[string]Rate, fallback Rate) *PricingTable {
	return &PricingTable{rates: rates, fallback: fallback}
}

// RateFor resolves exact names first, then the longest known prefix
// (so dated snapshots like "gpt-4o-mini-2024-07-18" bill as their family).
func (p *PricingTable) RateFor(model string) Rate {
	model = strings.ToLower(strings.TrimSpace(model))
	if r, ok := p.rates[model]; ok {
		return r
	}

	best := ""
	for name := range p.rates {
		if strings.HasPrefix(model, name) && len(name) > len(best) {
			best = name
		}
	}
	if best != "" {
		return p.rates[best]
	}
	return p.fallback
}

// Cost prices one call, rounded to CostScale.
func (p *PricingTable) Cost(model string, usage Usage) decimal.Decimal {
	rate := p.RateFor(model)
	thousand := decimal.NewFromInt(1000)

	prompt := decimal.NewFromInt(int64(usage.PromptTokens)).Div(thousand).Mul(rate.Input)
	completion := decimal.NewFromInt(int64(usage.CompletionTokens)).Div(thousand).Mul(rate.Output)

	return prompt.Add(completion).Round(CostScale)
}
