// Package extract recovers structured JSON from raw model text. Upstream
// models intermittently wrap well-formed JSON in prose or code fences, so the
// strategies run in order and the first one that parses wins.
package extract

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Strategy attempts to pull one JSON object out of raw model text.
// It returns nil when the text does not yield a parseable object.
type Strategy func(text string) map[string]any

// Strategies returns the ordered extraction chain: direct parse, then the
// first {...} span by regex, then a brace-counting scan from the first '{'.
func Strategies() []Strategy {
	return []Strategy{DirectParse, RegexSpan, BraceScan}
}

// TryExtractStructured applies each strategy in order and returns the first
// object that parses, or nil when no strategy succeeds.
func TryExtractStructured(text string) map[string]any {
	for _, strategy := range Strategies() {
		if parsed := strategy(text); parsed != nil {
			return parsed
		}
	}
	return nil
}

// DirectParse accepts text that is already a bare JSON object.
func DirectParse(text string) map[string]any {
	return parseObject(strings.TrimSpace(text))
}

var jsonSpanPattern = regexp.MustCompile(`(?s)\{.*\}`)

// RegexSpan extracts the widest {...} span, covering JSON embedded in prose.
func RegexSpan(text string) map[string]any {
	span := jsonSpanPattern.FindString(text)
	if span == "" {
		return nil
	}
	return parseObject(span)
}

// BraceScan walks from the first '{' counting brace depth until the matching
// close, covering responses with trailing prose after a balanced object.
// String literals are skipped so braces inside values do not break the count.
func BraceScan(text string) map[string]any {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return nil
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return parseObject(text[start : i+1])
			}
		}
	}
	return nil
}

func parseObject(candidate string) map[string]any {
	if candidate == "" {
		return nil
	}
	var parsed map[string]any
	if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
		return nil
	}
	return parsed
}
