package backend

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Tier buckets a model by its prompt price per 1M tokens.
type Tier string

const (
	TierPremium      Tier = "premium"      // >= $1000 / 1M
	TierStandard     Tier = "standard"     // >= $200 / 1M
	TierBudget       Tier = "budget"       // everything cheaper
	TierExperimental Tier = "experimental" // price unknown
)

var (
	premiumThreshold  = decimal.NewFromInt(1000)
	standardThreshold = decimal.NewFromInt(200)
)

// ClassifyTier buckets a prompt price into a tier.
func ClassifyTier(costPerMillionInput *decimal.Decimal) Tier {
	if costPerMillionInput == nil {
		return TierExperimental
	}
	if costPerMillionInput.GreaterThanOrEqual(premiumThreshold) {
		return TierPremium
	}
	if costPerMillionInput.GreaterThanOrEqual(standardThreshold) {
		return TierStandard
	}
	return TierBudget
}

// Categories in the downstream catalog. Exactly two exist today.
const (
	CategoryChat      = "chat"
	CategoryEmbedding = "embedding"
)

var embeddingTokens = []string{"embedding", "embed", "vector"}

// ClassifyCategory decides chat vs embedding from the slug and display name.
func ClassifyCategory(slug, displayName string) string {
	slugLower := strings.ToLower(slug)
	for _, tok := range embeddingTokens {
		if strings.Contains(slugLower, tok) {
			return CategoryEmbedding
		}
	}
	if strings.Contains(strings.ToLower(displayName), "embedding") {
		return CategoryEmbedding
	}
	return CategoryChat
}

var versionSegment = regexp.MustCompile(`^[0-9.]+$`)

// DeriveSeries derives a model-family tag from the slug's path segment:
// "anthropic/claude-3.5-sonnet" -> "claude-3.5"; "openai/gpt-4o" -> "gpt".
func DeriveSeries(slug string) string {
	_, path, ok := strings.Cut(slug, "/")
	if !ok {
		return ""
	}
	base, _, _ := strings.Cut(path, ":")
	segments := strings.Split(base, "-")
	if len(segments) >= 2 && versionSegment.MatchString(segments[1]) {
		return segments[0] + "-" + segments[1]
	}
	if len(segments) > 0 && segments[0] != "" {
		return segments[0]
	}
	return base
}

var (
	urlPattern        = regexp.MustCompile(`https?://\S+`)
	whitespacePattern = regexp.MustCompile(`\s+`)
	sentenceBoundary  = regexp.MustCompile(`(?:[.!?])\s+`)
)

const summaryMaxLen = 240

// SummarizeDescription reduces a model description to at most two sentences
// and 240 characters, with URLs stripped and whitespace collapsed.
func SummarizeDescription(description string) string {
	noLinks := urlPattern.ReplaceAllString(description, "")
	normalized := strings.TrimSpace(whitespacePattern.ReplaceAllString(noLinks, " "))
	if normalized == "" {
		return ""
	}

	var lines []string
	rest := normalized
	for len(lines) < 2 {
		loc := sentenceBoundary.FindStringIndex(rest)
		if loc == nil {
			if s := strings.TrimSpace(rest); s != "" {
				lines = append(lines, s)
			}
			break
		}
		if s := strings.TrimSpace(rest[:loc[0]+1]); s != "" {
			lines = append(lines, s)
		}
		rest = rest[loc[1]:]
	}

	summary := strings.Join(lines, "\n")
	// Truncate on rune boundaries so multibyte descriptions stay valid UTF-8.
	if runes := []rune(summary); len(runes) > summaryMaxLen {
		summary = strings.TrimRight(string(runes[:summaryMaxLen-3]), " ") + "..."
	}
	return summary
}
