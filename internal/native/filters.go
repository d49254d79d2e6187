// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package native

import (
	"html"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	reStripTags       = regexp.MustCompile(`<[^>]*>`)
	reTimeAgo         = regexp.MustCompile(`(\d+)\s*(second|minute|hour|day|week|month|year)s?\s*ago`)
	reTimeAgoImplicit = regexp.MustCompile(`^(\d+)\s*(second|minute|hour|day|week|month|year)s?$`)
	reTodayYesterday  = regexp.MustCompile(`(?i)^(today|yesterday)[,\s]+(\d{1,2}:\d{2}(?::\d{2})?)\s*(am|pm)?`)
	reParseSize       = regexp.MustCompile(`([\d.]+)\s*(b|kb|mb|gb|tb|kib|mib|gib|tib)?`)
)

// regexCache holds compiled filter patterns for the whole process. The same
// handful of patterns run against every row of every response, so
// recompilation would dominate extraction time.
var regexCache = struct {
	sync.Mutex
	m map[string]*regexp.Regexp
}{m: make(map[string]*regexp.Regexp)}

func cachedRegex(pattern string) (*regexp.Regexp, error) {
	regexCache.Lock()
	defer regexCache.Unlock()

	if re, ok := regexCache.m[pattern]; ok {
		return re, nil
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	regexCache.m[pattern] = re
	return re, nil
}

// ApplyFilters runs a value through a filter pipeline. Filter arguments are
// themselves templates and get rendered against ctx before each step.
func ApplyFilters(value string, filters []Filter, ctx *TemplateContext) string {
	result := value
	for _, f := range filters {
		args := make(FilterArgs, len(f.Args))
		for i, arg := range f.Args {
			args[i] = RenderTemplate(arg, ctx)
		}
		result = applyFilter(result, Filter{Name: f.Name, Args: args})
	}
	return result
}

// applyFilter applies one named filter. Unknown filters pass the value
// through unchanged.
func applyFilter(value string, filter Filter) string {
	switch filter.Name {
	case "querystring":
		return filterQuerystring(value, filter.Args)
	case "regexp":
		return filterRegexp(value, filter.Args)
	case "re_replace":
		return filterReReplace(value, filter.Args)
	case "replace":
		return filterReplace(value, filter.Args)
	case "split":
		return filterSplit(value, filter.Args)
	case "trim":
		return strings.TrimSpace(value)
	case "prepend":
		return filter.Args.First() + value
	case "append":
		return value + filter.Args.First()
	case "urldecode":
		if decoded, err := url.PathUnescape(value); err == nil {
			return decoded
		}
		return value
	case "urlencode":
		return urlEncode(value)
	case "htmldecode":
		return html.UnescapeString(value)
	case "dateparse":
		return filterDateparse(value, filter.Args)
	case "timeago":
		return filterTimeago(value)
	case "fuzzytime":
		return filterFuzzytime(value)
	case "validfilename":
		return filterValidFilename(value)
	case "tolower", "lowercase":
		return strings.ToLower(value)
	case "toupper", "uppercase":
		return strings.ToUpper(value)
	case "substring":
		return filterSubstring(value, filter.Args)
	case "striptags", "strip_tags":
		return reStripTags.ReplaceAllString(value, "")
	case "num_add", "add":
		return filterMath(value, filter.Args, func(a, b float64) float64 { return a + b })
	case "num_sub", "sub":
		return filterMath(value, filter.Args, func(a, b float64) float64 { return a - b })
	case "num_mul", "mul", "mult":
		return filterMath(value, filter.Args, func(a, b float64) float64 { return a * b })
	case "num_div", "div":
		return filterMath(value, filter.Args, func(a, b float64) float64 {
			if b == 0 {
				return a
			}
			return a / b
		})
	default:
		log.Warn().Str("filter", filter.Name).Msg("unknown filter")
		return value
	}
}

// urlEncode percent-encodes a value, using %20 for spaces so the result is
// usable in both query strings and magnet URIs.
func urlEncode(value string) string {
	return strings.ReplaceAll(url.QueryEscape(value), "+", "%20")
}

// filterQuerystring pulls a single query parameter out of a URL, falling
// back to a plain param=value scan for non-URL inputs.
func filterQuerystring(input string, args FilterArgs) string {
	param := args.First()
	if param == "" {
		return input
	}

	if u, err := url.Parse(input); err == nil {
		if v := u.Query().Get(param); v != "" {
			return v
		}
	}

	re, err := cachedRegex(`(?:^|[?&])` + regexp.QuoteMeta(param) + `=([^&]+)`)
	if err == nil {
		if m := re.FindStringSubmatch(input); m != nil {
			return m[1]
		}
	}

	return input
}

// filterRegexp returns capture group 1 when the pattern has one, the full
// match otherwise, and empty on no match. A pattern that fails to compile
// leaves the value untouched.
func filterRegexp(input string, args FilterArgs) string {
	pattern := args.First()
	if pattern == "" {
		return input
	}

	re, err := cachedRegex(pattern)
	if err != nil {
		return input
	}

	m := re.FindStringSubmatch(input)
	if m == nil {
		return ""
	}
	if len(m) > 1 {
		return m[1]
	}
	return m[0]
}

func filterReReplace(input string, args FilterArgs) string {
	if len(args) < 2 {
		return input
	}
	re, err := cachedRegex(args[0])
	if err != nil {
		return input
	}
	return re.ReplaceAllString(input, args[1])
}

func filterReplace(input string, args FilterArgs) string {
	if len(args) < 2 {
		return input
	}
	return strings.ReplaceAll(input, args[0], args[1])
}

// filterSplit splits on a separator and picks the element at the given
// index, defaulting to the first.
func filterSplit(input string, args FilterArgs) string {
	if len(args) == 0 {
		return input
	}

	index := 0
	if len(args) > 1 {
		index, _ = strconv.Atoi(args[1])
	}

	parts := strings.Split(input, args[0])
	if index >= 0 && index < len(parts) {
		return parts[index]
	}
	return input
}

func filterSubstring(input string, args FilterArgs) string {
	if len(args) == 0 {
		return input
	}

	start, _ := strconv.Atoi(args.First())
	length := len(input)
	if len(args) > 1 {
		if n, err := strconv.Atoi(args[1]); err == nil {
			length = n
		}
	}

	if start < 0 || start >= len(input) {
		return ""
	}
	end := start + length
	if end > len(input) {
		end = len(input)
	}
	return input[start:end]
}

// dotnetFormatReplacer maps .NET date format tokens to Go layout fragments.
// Ordered longest-first so yyyy wins over yy and MMMM over MM.
var dotnetFormatReplacer = strings.NewReplacer(
	"yyyy", "2006",
	"yy", "06",
	"MMMM", "January",
	"MMM", "Jan",
	"MM", "01",
	"dd", "02",
	"HH", "15",
	"hh", "03",
	"mm", "04",
	"ss", "05",
	"tt", "PM",
	"zzz", "-07:00",
)

// filterDateparse parses a date with a .NET-style format string and renders
// it as RFC 3339 UTC. Without a format it falls back to fuzzy parsing; an
// unparseable value passes through unchanged.
func filterDateparse(input string, args FilterArgs) string {
	format := args.First()
	if format == "" {
		return filterFuzzytime(input)
	}

	layout := dotnetFormatReplacer.Replace(format)

	if t, err := time.Parse(layout, strings.TrimSpace(input)); err == nil {
		return t.UTC().Format(time.RFC3339)
	}
	if t, err := time.Parse(layout, input); err == nil {
		return t.UTC().Format(time.RFC3339)
	}

	return input
}

func timeAgoDuration(amount int64, unit string) (time.Duration, bool) {
	switch unit {
	case "second":
		return time.Duration(amount) * time.Second, true
	case "minute":
		return time.Duration(amount) * time.Minute, true
	case "hour":
		return time.Duration(amount) * time.Hour, true
	case "day":
		return time.Duration(amount) * 24 * time.Hour, true
	case "week":
		return time.Duration(amount) * 7 * 24 * time.Hour, true
	case "month":
		return time.Duration(amount) * 30 * 24 * time.Hour, true
	case "year":
		return time.Duration(amount) * 365 * 24 * time.Hour, true
	default:
		return 0, false
	}
}

// filterTimeago resolves relative expressions like "2 hours ago", "3 weeks"
// or "yesterday" against the current time.
func filterTimeago(value string) string {
	now := time.Now().UTC()
	lower := strings.TrimSpace(strings.ToLower(value))

	if m := reTimeAgo.FindStringSubmatch(lower); m != nil {
		amount, _ := strconv.ParseInt(m[1], 10, 64)
		if d, ok := timeAgoDuration(amount, m[2]); ok {
			return now.Add(-d).Format(time.RFC3339)
		}
		return value
	}

	if strings.Contains(lower, "yesterday") {
		return now.Add(-24 * time.Hour).Format(time.RFC3339)
	}
	if strings.Contains(lower, "today") || strings.Contains(lower, "just now") {
		return now.Format(time.RFC3339)
	}

	if m := reTimeAgoImplicit.FindStringSubmatch(lower); m != nil {
		amount, _ := strconv.ParseInt(m[1], 10, 64)
		if d, ok := timeAgoDuration(amount, m[2]); ok {
			return now.Add(-d).Format(time.RFC3339)
		}
	}

	return value
}

// fuzzyTimeLayouts are the absolute formats trackers commonly emit, tried in
// order after relative expressions.
var fuzzyTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02.01.2006 15:04",
	"02-01-2006 15:04:05",
	"02/01/2006 15:04:05",
	"Jan 2 2006",
	"Jan 2, 2006",
	"January 2 2006",
	"2 Jan 2006",
	time.RFC1123Z,
}

// filterFuzzytime tries relative expressions, a list of absolute layouts,
// and "Today, 10:30 PM" style stamps, returning the input when nothing
// matches.
func filterFuzzytime(value string) string {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return value
	}

	if relative := filterTimeago(cleaned); relative != cleaned {
		return relative
	}

	for _, layout := range fuzzyTimeLayouts {
		if t, err := time.Parse(layout, cleaned); err == nil {
			return t.UTC().Format(time.RFC3339)
		}
	}

	if m := reTodayYesterday.FindStringSubmatch(cleaned); m != nil {
		day := strings.ToLower(m[1])
		clock := m[2]
		meridiem := strings.ToLower(m[3])

		target := time.Now().UTC()
		if day == "yesterday" {
			target = target.Add(-24 * time.Hour)
		}

		timeLayout := "15:04"
		if strings.Contains(clock, ":") && strings.Count(clock, ":") == 2 {
			timeLayout = "15:04:05"
		}
		full := target.Format("2006-01-02") + " " + clock
		layout := "2006-01-02 " + timeLayout
		if meridiem != "" {
			full += " " + meridiem
			layout = "2006-01-02 3:04 pm"
			if strings.Count(clock, ":") == 2 {
				layout = "2006-01-02 3:04:05 pm"
			}
		}

		if t, err := time.Parse(layout, full); err == nil {
			return t.UTC().Format(time.RFC3339)
		}
	}

	return value
}

var validFilenameReplacer = strings.NewReplacer(
	"<", "_", ">", "_", ":", "_", `"`, "_", "/", "_", `\`, "_", "|", "_", "?", "_", "*", "_",
)

func filterValidFilename(value string) string {
	return validFilenameReplacer.Replace(value)
}

// ParseSize converts a human size like "1.5 GB" or "282.88 MiB" to bytes,
// treating kb/mb/gb/tb as decimal and kib/mib/gib/tib as binary units.
// Unparseable input yields 0.
func ParseSize(value string) int64 {
	lower := strings.ToLower(value)
	lower = strings.ReplaceAll(lower, ",", "")
	lower = strings.ReplaceAll(lower, " ", "")

	m := reParseSize.FindStringSubmatch(lower)
	if m == nil {
		return 0
	}

	num, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}

	var multiplier float64
	switch m[2] {
	case "", "b":
		multiplier = 1
	case "kb":
		multiplier = 1e3
	case "mb":
		multiplier = 1e6
	case "gb":
		multiplier = 1e9
	case "tb":
		multiplier = 1e12
	case "kib":
		multiplier = 1 << 10
	case "mib":
		multiplier = 1 << 20
	case "gib":
		multiplier = 1 << 30
	case "tib":
		multiplier = 1 << 40
	default:
		multiplier = 1
	}

	return int64(num * multiplier)
}

// filterMath applies an arithmetic op between the value and the first
// argument, rendering whole results without a decimal point.
func filterMath(input string, args FilterArgs, op func(a, b float64) float64) string {
	val, _ := strconv.ParseFloat(input, 64)
	operand, _ := strconv.ParseFloat(args.First(), 64)

	result := op(val, operand)
	if result == float64(int64(result)) {
		return strconv.FormatInt(int64(result), 10)
	}
	return strconv.FormatFloat(result, 'f', -1, 64)
}
