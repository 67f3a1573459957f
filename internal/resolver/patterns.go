package resolver

import "regexp"

// pricePatterns match an (input, output) per-million price pair in search
// snippets. Order matters: more specific phrasings first, so they win over
// the loose slash/dash form.
var pricePatterns = []*regexp.Regexp{
	// "$15 per million input tokens and $75 per million output tokens"
	regexp.MustCompile(`(?i)\$(\d+(?:\.\d+)?)\s*per\s+million\s+input\s+tokens?\s+and\s+\$(\d+(?:\.\d+)?)\s*per\s+million\s+output`),
	// "$15/MTok (input), $75/MTok (output)"
	regexp.MustCompile(`(?i)\$(\d+(?:\.\d+)?)/MTok\s*\(input\)[,\s]+\$(\d+(?:\.\d+)?)/MTok\s*\(output\)`),
	// "$15 (input), $75 (output) per million"
	regexp.MustCompile(`(?i)\$(\d+(?:\.\d+)?)\s*\(input\)[,\s]+\$(\d+(?:\.\d+)?)\s*\(output\)`),
	// "costs $15 per million input, $75 per million output"
	regexp.MustCompile(`(?i)costs?\s+\$(\d+(?:\.\d+)?)\s*per\s+million\s+input[,\s]+\$(\d+(?:\.\d+)?)\s*per\s+million\s+output`),
	// "$15-$75 per million tokens" or "$15/$75"
	regexp.MustCompile(`(?i)\$(\d+(?:\.\d+)?)[/-]\$(\d+(?:\.\d+)?)\s*(?:per\s+million|/million)?`),
	// "input: $15, output: $75"
	regexp.MustCompile(`(?i)input:\s*\$(\d+(?:\.\d+)?)[,\s]+output:\s*\$(\d+(?:\.\d+)?)`),
	// "starts at $15 per million input and $75 per million output"
	regexp.MustCompile(`(?i)starts?\s+at\s+\$(\d+(?:\.\d+)?)\s*per\s+million\s+input.*?\$(\d+(?:\.\d+)?)\s*per\s+million\s+output`),
}
