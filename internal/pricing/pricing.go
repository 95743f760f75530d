// Package pricing maps (provider, model, token usage) to USD cost from a
// static price table. Lookups never fail: unknown models cost zero and log
// a warning so pricing-table gaps cannot block the response path.
package pricing

import (
	"log"
	"math"
	"regexp"
	"strings"
)

// Usage is the provider-reported token counts for one turn.
type Usage struct {
	InputTokens  int
	OutputTokens int
	CachedTokens int
}

// Cost is the derived USD cost for one turn. Transient, never persisted as
// its own entity; recomputed from Message fields whenever needed.
type Cost struct {
	InputCost  float64
	OutputCost float64
	TotalCost  float64
	Provider   string
	Model      string
}

// price holds USD per 1,000,000 tokens.
type price struct {
	Input  float64
	Output float64
}

// table is keyed by provider, then model family. Family keys must be prefixes
// of the model ids they cover so the fuzzy fallback can match them.
var table = map[string]map[string]price{
	"openai": {
		"gpt-5":         {Input: 1.25, Output: 10.00},
		"gpt-5-mini":    {Input: 0.25, Output: 2.00},
		"gpt-5-nano":    {Input: 0.05, Output: 0.40},
		"gpt-4o":        {Input: 2.50, Output: 10.00},
		"gpt-4o-mini":   {Input: 0.15, Output: 0.60},
		"gpt-4.1":       {Input: 2.00, Output: 8.00},
		"gpt-4.1-mini":  {Input: 0.40, Output: 1.60},
		"gpt-4.1-nano":  {Input: 0.10, Output: 0.40},
		"o1":            {Input: 15.00, Output: 60.00},
		"o3":            {Input: 2.00, Output: 8.00},
		"o4-mini":       {Input: 1.10, Output: 4.40},
		"gpt-3.5-turbo": {Input: 0.50, Output: 1.50},
	},
	"anthropic": {
		"claude-opus-4":     {Input: 15.00, Output: 75.00},
		"claude-sonnet-4":   {Input: 3.00, Output: 15.00},
		"claude-3-7-sonnet": {Input: 3.00, Output: 15.00},
		"claude-3-5-sonnet": {Input: 3.00, Output: 15.00},
		"claude-3-5-haiku":  {Input: 0.80, Output: 4.00},
		"claude-3-haiku":    {Input: 0.25, Output: 1.25},
	},
	"google": {
		"gemini-2.5-pro":   {Input: 1.25, Output: 10.00},
		"gemini-2.5-flash": {Input: 0.30, Output: 2.50},
		"gemini-2.0-flash": {Input: 0.10, Output: 0.40},
		"gemini-1.5-pro":   {Input: 1.25, Output: 5.00},
		"gemini-1.5-flash": {Input: 0.075, Output: 0.30},
	},
	"mistral": {
		"mistral-large":   {Input: 2.00, Output: 6.00},
		"mistral-small":   {Input: 0.10, Output: 0.30},
		"open-mistral-7b": {Input: 0.25, Output: 0.25},
	},
}

// versionSuffix strips trailing date stamps and version markers, e.g.
// "gpt-4o-2024-08-06" → "gpt-4o", "claude-sonnet-4-20250514" → "claude-sonnet-4",
// "gemini-1.5-pro-latest" → "gemini-1.5-pro".
var versionSuffix = regexp.MustCompile(`-(\d{4}-\d{2}-\d{2}|\d{8}|latest|preview|\d{4})$`)

// Calculate returns the USD cost for a turn. Lookup order: exact model match,
// then family match after stripping version suffixes, then zero cost with a
// logged warning. It never returns an error.
func Calculate(provider, model string, u Usage) Cost {
	c := Cost{Provider: provider, Model: model}

	p, ok := lookup(provider, model)
	if !ok {
		log.Printf("pricing: no price for %s/%s, charging zero", provider, model)
		return c
	}

	c.InputCost = float64(u.InputTokens) / 1_000_000 * p.Input
	c.OutputCost = float64(u.OutputTokens) / 1_000_000 * p.Output
	c.TotalCost = c.InputCost + c.OutputCost
	return c
}

func lookup(provider, model string) (price, bool) {
	family, ok := table[strings.ToLower(provider)]
	if !ok {
		return price{}, false
	}

	m := strings.ToLower(model)
	if p, ok := family[m]; ok {
		return p, true
	}

	// Strip version/date suffixes repeatedly, then fall back to the longest
	// family key that prefixes the model id.
	stripped := m
	for {
		next := versionSuffix.ReplaceAllString(stripped, "")
		if next == stripped {
			break
		}
		stripped = next
		if p, ok := family[stripped]; ok {
			return p, true
		}
	}

	var best string
	for key := range family {
		if strings.HasPrefix(stripped, key) && len(key) > len(best) {
			best = key
		}
	}
	if best == "" {
		return price{}, false
	}
	return family[best], true
}

// RoundDisplay rounds a cost for display to 6 decimals. Stored costs keep
// full float precision.
func RoundDisplay(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
