// Package narrative pulls the JSON narrative out of a completion and
// normalizes it into models.Narrative.
package narrative

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	apperrors "crypto-analyst/internal/errors"
	"crypto-analyst/internal/models"
)

// Strategy finds candidate JSON substrings in a completion. Candidates are
// returned best first.
type Strategy struct {
	Name string
	Find func(text string) []string
}

var (
	labeledFenceRe = regexp.MustCompile("(?is)```\\s*json[c5]?\\s*\\n?(.*?)```")
	anyFenceRe     = regexp.MustCompile("(?s)```[A-Za-z0-9_-]*\\s*\\n?(.*?)```")
	trendKeyRe     = regexp.MustCompile(`"trend"\s*:`)
	danglingKeyRe  = regexp.MustCompile(`([,{])\s*"[^"]*"\s*:?\s*$`)
)

// LabeledFence takes the body of ```json blocks.
var LabeledFence = Strategy{Name: "labeled_fence", Find: func(text string) []string {
	return fenceBodies(labeledFenceRe, text)
}}

// AnyFence takes the body of any fenced block.
var AnyFence = Strategy{Name: "any_fence", Find: func(text string) []string {
	return fenceBodies(anyFenceRe, text)
}}

// BalancedBraces takes top level {...} spans, largest first. Braces inside
// string literals are ignored.
var BalancedBraces = Strategy{Name: "balanced_braces", Find: balancedObjects}

// TrendAnchor rebuilds an object starting at the "trend" key. It closes an
// unterminated string and any braces left open by a truncated response.
var TrendAnchor = Strategy{Name: "trend_anchor", Find: trendAnchored}

// Strategies is the fixed priority order.
var Strategies = []Strategy{LabeledFence, AnyFence, BalancedBraces, TrendAnchor}

// Extraction is a parsed candidate and how it was found.
type Extraction struct {
	Object   map[string]any
	Strategy string
	Passes   []string
}

// Extract returns the first schema-valid object any strategy yields, or
// apperrors.ErrNoNarrative.
func Extract(text string) (*Extraction, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.ErrNoNarrative
	}
	for _, s := range Strategies {
		for _, candidate := range s.Find(text) {
			obj, passes, ok := parseCandidate(candidate)
			if ok {
				return &Extraction{Object: obj, Strategy: s.Name, Passes: passes}, nil
			}
		}
	}
	return nil, apperrors.ErrNoNarrative
}

// Parse extracts and normalizes a completion.
func Parse(text string) (*models.Narrative, string, error) {
	ext, err := Extract(text)
	if err != nil {
		return nil, "", err
	}
	return Normalize(ext.Object), ext.Strategy, nil
}

// Validate is the chain acceptance hook: it reports whether text holds a
// usable narrative.
func Validate(text string) error {
	_, err := Extract(text)
	return err
}

// parseCandidate tries the raw candidate, then again after each
// sanitation pass. Passes are cumulative.
func parseCandidate(candidate string) (map[string]any, []string, bool) {
	s := strings.TrimSpace(candidate)
	if s == "" {
		return nil, nil, false
	}
	if obj, ok := decode(s); ok {
		return obj, nil, true
	}

	var applied []string
	for _, pass := range sanitizers {
		next := pass.apply(s)
		if next == s {
			continue
		}
		s = next
		applied = append(applied, pass.name)
		if obj, ok := decode(s); ok {
			return obj, applied, true
		}
	}
	return nil, applied, false
}

// decode accepts only objects carrying a "trend" object.
func decode(s string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil, false
	}
	if _, ok := obj["trend"].(map[string]any); !ok {
		return nil, false
	}
	return obj, true
}

func fenceBodies(re *regexp.Regexp, text string) []string {
	matches := re.FindAllStringSubmatch(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}

func balancedObjects(text string) []string {
	var (
		out      []string
		depth    int
		start    = -1
		inString bool
		escaped  bool
	)
	for i := 0; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				out = append(out, text[start:i+1])
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	return out
}

func trendAnchored(text string) []string {
	loc := trendKeyRe.FindStringIndex(text)
	if loc == nil {
		return nil
	}
	rest := text[loc[0]:]

	var (
		sb       strings.Builder
		depth    = 1
		inString bool
		escaped  bool
	)
	sb.WriteByte('{')
	for i := 0; i < len(rest) && depth > 0; i++ {
		ch := rest[i]
		sb.WriteByte(ch)
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
		}
	}
	if depth == 0 {
		return []string{sb.String()}
	}

	// Truncated: close the open string, drop a dangling key and close up.
	body := sb.String()
	if inString {
		body += `"`
	}
	body = strings.TrimRight(body, " \t\r\n,")
	body = danglingKeyRe.ReplaceAllString(body, "$1")
	body = strings.TrimRight(body, " \t\r\n,")
	return []string{body + closers(body)}
}

// closers returns the brackets needed to balance s, innermost first.
func closers(s string) string {
	var stack []byte
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	out := make([]byte, 0, len(stack))
	for i := len(stack) - 1; i >= 0; i-- {
		out = append(out, stack[i])
	}
	return string(out)
}
