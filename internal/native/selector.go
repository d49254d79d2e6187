// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package native

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// SelectorSegment is one level of a selector chain. The pseudo-class
// filters are stripped out of CSS because the underlying matcher does not
// know :contains, :has or :not with arbitrary arguments.
type SelectorSegment struct {
	CSS      string
	Contains string
	Has      string
	Not      string
}

var reCSSEscape = regexp.MustCompile(`\\([0-9a-fA-F]{1,6}) ?`)

// decodeCSSEscapes resolves \XXXXXX hex escapes (optionally terminated by a
// space) to their code points, so selectors like :contains("\00a0GB") match
// the non-breaking space the page actually contains.
func decodeCSSEscapes(s string) string {
	return reCSSEscape.ReplaceAllStringFunc(s, func(match string) string {
		hex := strings.TrimSuffix(reCSSEscape.FindStringSubmatch(match)[1], " ")
		code, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return match
		}
		return string(rune(code))
	})
}

// ParseSelectorChain splits a selector like
// "table:contains('X') > tr:has(a)" into segments, treating both whitespace
// and > as descendant combinators. Quotes and parentheses protect their
// contents from splitting.
func ParseSelectorChain(fullSelector string) []SelectorSegment {
	var segments []SelectorSegment
	var current strings.Builder
	depth := 0
	var quote rune

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			segments = append(segments, parseSegment(s))
		}
		current.Reset()
	}

	for _, c := range fullSelector {
		switch {
		case c == '\'' || c == '"':
			if quote == c {
				quote = 0
			} else if quote == 0 {
				quote = c
			}
			current.WriteRune(c)
		case c == '(':
			if quote == 0 {
				depth++
			}
			current.WriteRune(c)
		case c == ')':
			if quote == 0 && depth > 0 {
				depth--
			}
			current.WriteRune(c)
		case c == ' ' || c == '>':
			if depth == 0 && quote == 0 {
				flush()
			} else {
				current.WriteRune(c)
			}
		default:
			current.WriteRune(c)
		}
	}
	flush()

	return segments
}

// parseSegment pulls :contains(), :has() and :not() out of a segment,
// leaving plain CSS behind.
func parseSegment(segment string) SelectorSegment {
	css := strings.TrimSpace(segment)
	var contains, has, not string

	css, contains = extractPseudo(css, ":contains(")
	contains = decodeCSSEscapes(strings.Trim(contains, `'"`))

	css, has = extractPseudo(css, ":has(")
	css, not = extractPseudo(css, ":not(")

	return SelectorSegment{
		CSS:      strings.TrimSpace(css),
		Contains: contains,
		Has:      has,
		Not:      not,
	}
}

// extractPseudo removes the first occurrence of a pseudo-class call from
// css, returning the remaining css and the call's argument.
func extractPseudo(css, prefix string) (string, string) {
	idx := strings.Index(css, prefix)
	if idx < 0 {
		return css, ""
	}
	remainder := css[idx+len(prefix):]
	end := findMatchingParen(remainder)
	if end < 0 {
		return css, ""
	}
	return css[:idx] + remainder[end+1:], remainder[:end]
}

// findMatchingParen returns the index of the paren closing an already-open
// group, or -1 when unbalanced.
func findMatchingParen(s string) int {
	depth := 1
	for i, ch := range s {
		switch ch {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// ApplySelectorChain walks a chain segment by segment: CSS narrows to
// descendants, then the pseudo-class filters thin the set. An invalid CSS
// segment matches nothing.
func ApplySelectorChain(sel *goquery.Selection, chain []SelectorSegment) *goquery.Selection {
	current := sel

	for _, segment := range chain {
		if segment.CSS == "" && segment.Contains == "" && segment.Has == "" && segment.Not == "" {
			continue
		}

		next := current
		if segment.CSS != "" {
			next = current.Find(segment.CSS)
		}

		if segment.Contains != "" {
			contains := segment.Contains
			next = next.FilterFunction(func(_ int, s *goquery.Selection) bool {
				return strings.Contains(s.Text(), contains)
			})
		}

		if segment.Has != "" {
			has := segment.Has
			next = next.FilterFunction(func(_ int, s *goquery.Selection) bool {
				return s.Find(has).Length() > 0
			})
		}

		if segment.Not != "" {
			next = next.Not(segment.Not)
		}

		current = next
	}

	return current
}

// SelectWithChain runs a full selector string, unioning comma-separated
// alternatives in the order they are written.
func SelectWithChain(sel *goquery.Selection, selector string) *goquery.Selection {
	alternatives := splitTopLevel(selector, ',')

	if len(alternatives) == 1 {
		return ApplySelectorChain(sel, ParseSelectorChain(alternatives[0]))
	}

	result := sel.Slice(0, 0)
	for _, alt := range alternatives {
		result = result.AddSelection(ApplySelectorChain(sel, ParseSelectorChain(alt)))
	}
	return result
}

// splitTopLevel splits on a separator outside quotes and parentheses.
func splitTopLevel(s string, sep rune) []string {
	var parts []string
	var current strings.Builder
	depth := 0
	var quote rune

	for _, c := range s {
		switch {
		case c == '\'' || c == '"':
			if quote == c {
				quote = 0
			} else if quote == 0 {
				quote = c
			}
			current.WriteRune(c)
		case c == '(' && quote == 0:
			depth++
			current.WriteRune(c)
		case c == ')' && quote == 0:
			depth--
			current.WriteRune(c)
		case c == sep && depth == 0 && quote == 0:
			if p := strings.TrimSpace(current.String()); p != "" {
				parts = append(parts, p)
			}
			current.Reset()
		default:
			current.WriteRune(c)
		}
	}
	if p := strings.TrimSpace(current.String()); p != "" {
		parts = append(parts, p)
	}

	return parts
}
