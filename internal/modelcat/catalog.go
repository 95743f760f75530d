// Package modelcat resolves caller-facing model ids to the canonical
// (provider, model) pair actually invoked, plus any temperature override.
// The catalog is static: pricing lookups are always done against the model
// that was invoked, never against a caller-editable string.
package modelcat

import "strings"

// Info describes a resolved model.
type Info struct {
	Provider  string
	Canonical string
	// Temperature, when non-nil, must be pinned on every request because the
	// model rejects or misbehaves with other values.
	Temperature *float64
}

// DefaultModel is used when an agent has no model configured.
const DefaultModel = "gpt-4o-mini"

func pin(v float64) *float64 { return &v }

// catalog maps known model ids to their canonical identity.
var catalog = map[string]Info{
	"gpt-5":             {Provider: "openai", Canonical: "gpt-5", Temperature: pin(1.0)},
	"gpt-5-mini":        {Provider: "openai", Canonical: "gpt-5-mini", Temperature: pin(1.0)},
	"gpt-5-nano":        {Provider: "openai", Canonical: "gpt-5-nano", Temperature: pin(1.0)},
	"o1":                {Provider: "openai", Canonical: "o1", Temperature: pin(1.0)},
	"o3":                {Provider: "openai", Canonical: "o3", Temperature: pin(1.0)},
	"o4-mini":           {Provider: "openai", Canonical: "o4-mini", Temperature: pin(1.0)},
	"gpt-4o":            {Provider: "openai", Canonical: "gpt-4o"},
	"gpt-4o-mini":       {Provider: "openai", Canonical: "gpt-4o-mini"},
	"gpt-4.1":           {Provider: "openai", Canonical: "gpt-4.1"},
	"gpt-4.1-mini":      {Provider: "openai", Canonical: "gpt-4.1-mini"},
	"gpt-4.1-nano":      {Provider: "openai", Canonical: "gpt-4.1-nano"},
	"gpt-3.5-turbo":     {Provider: "openai", Canonical: "gpt-3.5-turbo"},
	"claude-opus-4":     {Provider: "anthropic", Canonical: "claude-opus-4"},
	"claude-sonnet-4":   {Provider: "anthropic", Canonical: "claude-sonnet-4"},
	"claude-3-5-sonnet": {Provider: "anthropic", Canonical: "claude-3-5-sonnet"},
	"claude-3-5-haiku":  {Provider: "anthropic", Canonical: "claude-3-5-haiku"},
	"gemini-2.5-pro":    {Provider: "google", Canonical: "gemini-2.5-pro"},
	"gemini-2.5-flash":  {Provider: "google", Canonical: "gemini-2.5-flash"},
	"gemini-2.0-flash":  {Provider: "google", Canonical: "gemini-2.0-flash"},
	"gemini-1.5-pro":    {Provider: "google", Canonical: "gemini-1.5-pro"},
	"gemini-1.5-flash":  {Provider: "google", Canonical: "gemini-1.5-flash"},
	"mistral-large":     {Provider: "mistral", Canonical: "mistral-large"},
	"mistral-small":     {Provider: "mistral", Canonical: "mistral-small"},
}

// Resolve returns the catalog entry for a model id. Ids may carry a
// "provider/" prefix, which is stripped before lookup. Unknown or empty ids
// resolve to the default model.
func Resolve(model string) Info {
	m := strings.ToLower(strings.TrimSpace(model))
	if i := strings.IndexByte(m, '/'); i >= 0 {
		m = m[i+1:]
	}
	if info, ok := catalog[m]; ok {
		return info
	}
	return catalog[DefaultModel]
}

// Known reports whether a model id resolves to a catalog entry without
// falling back to the default.
func Known(model string) bool {
	m := strings.ToLower(strings.TrimSpace(model))
	if i := strings.IndexByte(m, '/'); i >= 0 {
		m = m[i+1:]
	}
	_, ok := catalog[m]
	return ok
}
