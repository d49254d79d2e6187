// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package native

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/autobrr/searchbrr/internal/domain"
)

var (
	reRangeBlock = regexp.MustCompile(`\{\{\s*range\s+\.Categories\s*\}\}(.*?)\{\{\s*end\s*\}\}`)
	reIfTag      = regexp.MustCompile(`^\{\{\s*if\s+(.+?)\s*\}\}`)
	reEndTag     = regexp.MustCompile(`^\{\{\s*end\s*\}\}`)
	reVarTag     = regexp.MustCompile(`\{\{\s*([^}]+?)\s*\}\}`)
)

// TemplateContext carries the variables available to definition templates:
// the .Query namespace built from the search request, .Config from the
// indexer settings, and .Result from first-pass field extraction.
type TemplateContext struct {
	Query  QueryVars
	Config map[string]string
	Result map[string]string

	// UTC switches the .Query.Today family to UTC instead of local time.
	UTC bool
}

// QueryVars is the .Query namespace. Pointer fields render as empty when nil
// so templates can gate on them with {{ if .Query.Season }}.
type QueryVars struct {
	Keywords string
	// Query is the URL-encoded form of Keywords, exposed as .Query.Q.
	Query string

	IMDBID      string
	IMDBIDShort string
	TMDBID      *int
	TVDBID      *int
	TVMazeID    *int
	TraktID     *int
	DoubanID    *int

	Season  *int
	Episode *int
	Year    *int

	Artist string
	Album  string
	Author string
	Title  string

	Categories []string

	Limit  *int
	Offset *int
	Page   *int
}

// NewTemplateContext builds a context from a search query. Categories here
// are the tracker-local values after category mapping, rendered by
// {{ range .Categories }} and join.
func NewTemplateContext(query domain.SearchQuery, trackerCategories []string) *TemplateContext {
	page := query.Page()

	return &TemplateContext{
		Query: QueryVars{
			Keywords:    query.Keywords(),
			Query:       url.QueryEscape(query.Keywords()),
			IMDBID:      query.IMDBID,
			IMDBIDShort: query.IMDBIDShort(),
			TMDBID:      query.TMDBID,
			TVDBID:      query.TVDBID,
			TVMazeID:    query.TVMaze,
			TraktID:     query.TraktID,
			DoubanID:    query.Douban,
			Season:      query.Season,
			Episode:     query.Episode,
			Year:        query.Year,
			Artist:      query.Artist,
			Album:       query.Album,
			Author:      query.Author,
			Title:       query.Title,
			Categories:  trackerCategories,
			Limit:       query.Limit,
			Offset:      query.Offset,
			Page:        &page,
		},
		Config: make(map[string]string),
		Result: make(map[string]string),
	}
}

// WithConfig attaches indexer setting values to the context.
func (c *TemplateContext) WithConfig(config map[string]string) *TemplateContext {
	c.Config = config
	return c
}

// SetResult stores a first-pass extraction value under .Result.<key>.
func (c *TemplateContext) SetResult(key, value string) {
	if c.Result == nil {
		c.Result = make(map[string]string)
	}
	c.Result[key] = value
}

// RenderTemplate substitutes template expressions in order: range blocks,
// then if/else/end blocks to a fixpoint, then plain variables, and finally
// the legacy {query}/{keywords}/{page} placeholders.
func RenderTemplate(template string, ctx *TemplateContext) string {
	result := reRangeBlock.ReplaceAllStringFunc(template, func(match string) string {
		inner := reRangeBlock.FindStringSubmatch(match)[1]
		var sb strings.Builder
		for _, cat := range ctx.Query.Categories {
			sb.WriteString(strings.ReplaceAll(inner, "{{.}}", cat))
		}
		return sb.String()
	})

	for {
		before := result
		result = processIfBlocks(result, ctx)
		if result == before {
			break
		}
	}

	result = substituteVariables(result, ctx)

	result = strings.ReplaceAll(result, "{query}", ctx.Query.Keywords)
	result = strings.ReplaceAll(result, "{keywords}", ctx.Query.Keywords)
	result = strings.ReplaceAll(result, "{page}", "1")

	return result
}

// processIfBlocks resolves if/else/end blocks innermost-first. A stack of if
// positions pairs each end tag with its nearest open if, so by the time a
// block is rewritten its body holds no nested conditionals and any
// {{ else }} inside belongs to it.
func processIfBlocks(template string, ctx *TemplateContext) string {
	result := template

	for {
		changed := false

		var ifStarts []int
		scanPos := 0

		for {
			rel := strings.Index(result[scanPos:], "{{")
			if rel < 0 {
				break
			}
			absStart := scanPos + rel
			remainder := result[absStart:]

			if m := reIfTag.FindString(remainder); m != "" {
				ifStarts = append(ifStarts, absStart)
				scanPos = absStart + len(m)
				continue
			}

			if m := reEndTag.FindString(remainder); m != "" {
				if len(ifStarts) == 0 {
					scanPos = absStart + len(m)
					continue
				}
				ifStart := ifStarts[len(ifStarts)-1]
				ifStarts = ifStarts[:len(ifStarts)-1]

				blockEnd := absStart + len(m)
				fullBlock := result[ifStart:blockEnd]

				ifMatch := reIfTag.FindStringSubmatch(fullBlock)
				condition := ifMatch[1]
				inner := fullBlock[len(ifMatch[0]) : len(fullBlock)-len(m)]

				thenPart, elsePart, _ := strings.Cut(inner, "{{ else }}")

				replacement := elsePart
				if evaluateCondition(condition, ctx) {
					replacement = thenPart
				}

				result = result[:ifStart] + replacement + result[blockEnd:]
				changed = true
				break
			}

			scanPos = absStart + 2
		}

		if !changed {
			break
		}
	}

	return result
}

func evaluateCondition(condition string, ctx *TemplateContext) bool {
	condition = strings.TrimSpace(condition)

	switch {
	case strings.HasPrefix(condition, "and "):
		return evaluateAnd(condition[4:], ctx)
	case strings.HasPrefix(condition, "or "):
		return evaluateOr(condition[3:], ctx)
	case strings.HasPrefix(condition, "eq "):
		return evaluateEq(condition[3:], ctx)
	case strings.HasPrefix(condition, "ne "):
		return !evaluateEq(condition[3:], ctx)
	case strings.HasPrefix(condition, "gt "):
		return evaluateBinary(condition[3:], ctx, func(a, b string) bool { return compareValues(a, b) > 0 })
	case strings.HasPrefix(condition, "lt "):
		return evaluateBinary(condition[3:], ctx, func(a, b string) bool { return compareValues(a, b) < 0 })
	case strings.HasPrefix(condition, "ge "):
		return evaluateBinary(condition[3:], ctx, func(a, b string) bool { return compareValues(a, b) >= 0 })
	case strings.HasPrefix(condition, "le "):
		return evaluateBinary(condition[3:], ctx, func(a, b string) bool { return compareValues(a, b) <= 0 })
	}

	if strings.HasPrefix(condition, "(") && strings.HasSuffix(condition, ")") {
		return evaluateCondition(condition[1:len(condition)-1], ctx)
	}

	return isTruthy(templateValue(condition, ctx))
}

// evaluateAnd requires every parenthesized sub-expression to hold:
// and (EXPR1) (EXPR2) ...
func evaluateAnd(expr string, ctx *TemplateContext) bool {
	depth := 0
	var parts []string
	var current strings.Builder

	for _, ch := range expr {
		switch {
		case ch == '(':
			if depth > 0 {
				current.WriteRune(ch)
			}
			depth++
		case ch == ')':
			depth--
			if depth == 0 {
				parts = append(parts, current.String())
				current.Reset()
			} else {
				current.WriteRune(ch)
			}
		case depth > 0:
			current.WriteRune(ch)
		}
	}

	for _, p := range parts {
		if !evaluateCondition(strings.TrimSpace(p), ctx) {
			return false
		}
	}
	return true
}

func evaluateOr(expr string, ctx *TemplateContext) bool {
	for _, part := range splitTemplateArgs(expr) {
		if isTruthy(templateValue(strings.TrimSpace(part), ctx)) {
			return true
		}
	}
	return false
}

// splitTemplateArgs splits on whitespace at depth zero, keeping
// parenthesized expressions together.
func splitTemplateArgs(expr string) []string {
	var parts []string
	start := 0
	depth := 0

	for i, ch := range expr {
		switch {
		case ch == '(':
			if depth == 0 && start < i {
				if seg := strings.TrimSpace(expr[start:i]); seg != "" {
					parts = append(parts, seg)
				}
				start = i
			}
			depth++
		case ch == ')':
			depth--
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(expr[start:i+1]))
				start = i + 1
			}
		case ch == ' ' && depth == 0:
			if seg := strings.TrimSpace(expr[start:i]); seg != "" {
				parts = append(parts, seg)
			}
			start = i + 1
		}
	}
	if start < len(expr) {
		if seg := strings.TrimSpace(expr[start:]); seg != "" {
			parts = append(parts, seg)
		}
	}
	return parts
}

func evaluateEq(expr string, ctx *TemplateContext) bool {
	parts := splitTemplateArgs(expr)
	if len(parts) < 2 {
		return false
	}
	return templateValue(stripParens(parts[0]), ctx) == templateValue(stripParens(parts[1]), ctx)
}

func evaluateBinary(expr string, ctx *TemplateContext, op func(a, b string) bool) bool {
	parts := splitTemplateArgs(expr)
	if len(parts) < 2 {
		return false
	}
	return op(templateValue(stripParens(parts[0]), ctx), templateValue(stripParens(parts[1]), ctx))
}

// compareValues compares numerically when both sides parse as floats,
// otherwise lexicographically.
func compareValues(a, b string) int {
	na, errA := strconv.ParseFloat(a, 64)
	nb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil {
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a, b)
}

func stripParens(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		return s[1 : len(s)-1]
	}
	return s
}

func stripQuotes(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// isTruthy mirrors the definition language's notion of truth: empty,
// "false" and "0" are false, everything else is true.
func isTruthy(value string) bool {
	return value != "" && value != "false" && value != "0"
}

// substituteVariables replaces remaining {{ ... }} expressions, including
// "or" used as a value selector that yields the first truthy operand.
func substituteVariables(template string, ctx *TemplateContext) string {
	return reVarTag.ReplaceAllStringFunc(template, func(match string) string {
		expr := strings.TrimSpace(reVarTag.FindStringSubmatch(match)[1])

		if stripped, ok := strings.CutPrefix(expr, "or "); ok {
			for _, part := range splitTemplateArgs(stripped) {
				if value := templateValue(stripParens(part), ctx); isTruthy(value) {
					return value
				}
			}
			return ""
		}

		return templateValue(expr, ctx)
	})
}

func (c *TemplateContext) now() time.Time {
	if c.UTC {
		return time.Now().UTC()
	}
	return time.Now()
}

func formatDatePart(t time.Time, part string) string {
	switch part {
	case "":
		return t.Format("2006-01-02")
	case ".Year":
		return strconv.Itoa(t.Year())
	case ".Month":
		return fmt.Sprintf("%02d", int(t.Month()))
	case ".Day":
		return fmt.Sprintf("%02d", t.Day())
	default:
		return ""
	}
}

func intValue(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

// templateValue resolves a dotted variable path to its string value.
// Unknown dotted paths render empty; bare words fall through as literals.
func templateValue(path string, ctx *TemplateContext) string {
	path = strings.TrimPrefix(strings.TrimSpace(path), ".")

	if stripped, ok := strings.CutPrefix(path, "join "); ok {
		parts := splitTemplateArgs(stripped)
		if len(parts) < 2 {
			return ""
		}
		name := strings.TrimPrefix(parts[0], ".")
		if name != "Categories" {
			return ""
		}
		return strings.Join(ctx.Query.Categories, stripQuotes(parts[1]))
	}

	switch path {
	case "False":
		return "false"
	case "True":
		return "true"

	case "Keywords", "Query.Keywords":
		return ctx.Query.Keywords
	case "Query.Q":
		return ctx.Query.Query
	case "Query.Limit":
		return intValue(ctx.Query.Limit)
	case "Query.Offset":
		return intValue(ctx.Query.Offset)
	case "Query.Page":
		return intValue(ctx.Query.Page)

	case "Query.IMDBID", "Query.IMDBId", "Query.ImdbId":
		return ctx.Query.IMDBID
	case "Query.IMDBIDShort":
		return ctx.Query.IMDBIDShort
	case "Query.TMDBID":
		return intValue(ctx.Query.TMDBID)
	case "Query.TVDBID":
		return intValue(ctx.Query.TVDBID)
	case "Query.TVMazeID":
		return intValue(ctx.Query.TVMazeID)
	case "Query.TraktID":
		return intValue(ctx.Query.TraktID)
	case "Query.DoubanID":
		return intValue(ctx.Query.DoubanID)

	case "Query.Season":
		return intValue(ctx.Query.Season)
	case "Query.Episode":
		return intValue(ctx.Query.Episode)
	case "Query.Year":
		return intValue(ctx.Query.Year)

	case "Query.Artist":
		return ctx.Query.Artist
	case "Query.Album":
		return ctx.Query.Album
	case "Query.Author":
		return ctx.Query.Author
	case "Query.Title":
		return ctx.Query.Title
	}

	switch {
	case strings.HasPrefix(path, "Query.Today"):
		return formatDatePart(ctx.now(), path[len("Query.Today"):])
	case strings.HasPrefix(path, "Query.Yesterday"):
		return formatDatePart(ctx.now().AddDate(0, 0, -1), path[len("Query.Yesterday"):])
	case strings.HasPrefix(path, "Query.Tomorrow"):
		return formatDatePart(ctx.now().AddDate(0, 0, 1), path[len("Query.Tomorrow"):])
	case strings.HasPrefix(path, "Config."):
		return ctx.Config[path[len("Config."):]]
	case strings.HasPrefix(path, "Result."):
		return ctx.Result[path[len("Result."):]]
	}

	if len(path) >= 2 {
		if (path[0] == '"' && path[len(path)-1] == '"') || (path[0] == '\'' && path[len(path)-1] == '\'') {
			return path[1 : len(path)-1]
		}
	}

	isNumeric := path != ""
	for _, ch := range path {
		if !strings.ContainsRune("0123456789.", ch) {
			isNumeric = false
			break
		}
	}
	if isNumeric {
		return path
	}

	if !strings.Contains(path, ".") {
		return path
	}

	return ""
}
