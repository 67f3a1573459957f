package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/net/html"
)

// ExtractProviders scrapes a model's public page for the providers serving
// it. The page structure is not a stable API; this looks for elements whose
// class mentions "provider" and treats their text as provider names. Results
// are lowercased, deduplicated and sorted.
func (d *Discovery) ExtractProviders(ctx context.Context, modelSlug string) ([]string, error) {
	page, err := d.api.ModelPageHTML(ctx, modelSlug)
	if err != nil {
		return nil, fmt.Errorf("fetch model page %s: %w", modelSlug, err)
	}

	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse model page %s: %w", modelSlug, err)
	}

	seen := make(map[string]struct{})
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && hasProviderClass(n) {
			if text := strings.ToLower(strings.TrimSpace(nodeText(n))); text != "" {
				seen[text] = struct{}{}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	providers := make([]string, 0, len(seen))
	for p := range seen {
		providers = append(providers, p)
	}
	sort.Strings(providers)

	slog.Info("providers extracted from model page",
		"model", modelSlug, "count", len(providers))
	return providers, nil
}

func hasProviderClass(n *html.Node) bool {
	for _, attr := range n.Attr {
		if attr.Key == "class" && strings.Contains(strings.ToLower(attr.Val), "provider") {
			return true
		}
	}
	return false
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
