package resolver

import (
	"context"
	"testing"

	"github.com/af-corp/pricewatch/internal/search"
)

// fakeSearcher returns canned results for every query.
type fakeSearcher struct {
	results []search.Result
	err     error
	queries []string
}

func (f *fakeSearcher) Search(ctx context.Context, query string, count int) ([]search.Result, error) {
	f.queries = append(f.queries, query)
	return f.results, f.err
}

func TestRegistryFallback(t *testing.T) {
	r := NewRegistry(nil)

	if got := r.Get("openai").Slug(); got != "openai" {
		t.Errorf("Get(openai) = %s, want openai", got)
	}
	if got := r.Get("anthropic").Slug(); got != "anthropic" {
		t.Errorf("Get(anthropic) = %s, want anthropic", got)
	}
	if got := r.Get("no-such-provider").Slug(); got != "_generic" {
		t.Errorf("Get(no-such-provider) = %s, want _generic", got)
	}

	if !r.Specific("openai") {
		t.Error("openai should have a specific resolver")
	}
	if r.Specific("no-such-provider") {
		t.Error("unknown provider should not be specific")
	}
}

func TestProviderResolverKnownPricingExactBeforeContainment(t *testing.T) {
	// "gpt-4o" must hit the exact gpt-4o row, not gpt-4 by containment.
	p := &ProviderResolver{
		slug:       "openai",
		pricingURL: "https://example.com/pricing",
		table: []KnownPrice{
			{Model: "gpt-4", Input: 30, Output: 60},
			{Model: "gpt-4o", Input: 2.5, Output: 10},
		},
	}

	obs, err := p.Resolve(context.Background(), "GPT-4o", "openai/gpt-4o")
	if err != nil {
		t.Fatal(err)
	}
	if obs == nil {
		t.Fatal("expected pricing for gpt-4o")
	}
	if obs.Prompt.InexactFloat64() != 2.5 || obs.Completion.InexactFloat64() != 10 {
		t.Errorf("got (%s, %s), want (2.5, 10)", obs.Prompt, obs.Completion)
	}
	if obs.SourceURL != "https://example.com/pricing" {
		t.Errorf("source = %q", obs.SourceURL)
	}
}

func TestProviderResolverContainmentOrder(t *testing.T) {
	// No exact row matches; the first containment hit in table order wins.
	p := &ProviderResolver{
		slug: "openai",
		table: []KnownPrice{
			{Model: "gpt-4", Input: 30, Output: 60},
			{Model: "gpt-4-turbo", Input: 10, Output: 30},
		},
	}

	obs, err := p.Resolve(context.Background(), "", "openai/gpt-4-turbo-preview")
	if err != nil {
		t.Fatal(err)
	}
	if obs == nil {
		t.Fatal("expected a containment match")
	}
	if obs.Prompt.InexactFloat64() != 30 {
		t.Errorf("first containment row should win, got input %s", obs.Prompt)
	}
}

func TestProviderResolverNoMatch(t *testing.T) {
	p := &ProviderResolver{slug: "google", pricingURL: "https://ai.google.dev/pricing"}
	obs, err := p.Resolve(context.Background(), "Gemini", "google/gemini-pro")
	if err != nil {
		t.Fatal(err)
	}
	if obs != nil {
		t.Errorf("resolver without table or vendor should find nothing, got %+v", obs)
	}
}

func TestProviderResolverSearchExtraction(t *testing.T) {
	fs := &fakeSearcher{results: []search.Result{
		{
			Title:       "Claude pricing",
			URL:         "https://www.anthropic.com/pricing",
			Description: "$15 per million input tokens and $75 per million output tokens",
		},
	}}
	p := &ProviderResolver{slug: "anthropic", vendor: "Anthropic", searcher: fs}

	obs, err := p.Resolve(context.Background(), "Claude 3 Opus", "anthropic/claude-3-opus")
	if err != nil {
		t.Fatal(err)
	}
	if obs == nil {
		t.Fatal("expected pricing from search snippet")
	}
	if obs.Prompt.InexactFloat64() != 15 || obs.Completion.InexactFloat64() != 75 {
		t.Errorf("got (%s, %s), want (15, 75)", obs.Prompt, obs.Completion)
	}
	if obs.SourceURL != "https://www.anthropic.com/pricing" {
		t.Errorf("source = %q", obs.SourceURL)
	}
}

func TestNormalizeModelName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"GPT-4o", "gpt-4o"},
		{"llama_3_70b", "llama-3-70b"},
		{"Claude 3 Haiku", "claude-3-haiku"},
	}
	for _, tt := range tests {
		if got := normalizeModelName(tt.in); got != tt.want {
			t.Errorf("normalizeModelName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
