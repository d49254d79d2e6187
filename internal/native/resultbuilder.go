// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package native

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/autobrr/searchbrr/internal/domain"
)

// BuildTorrentResult assembles a TorrentResult from a row's extracted
// fields. A row without a title is not a result; everything else degrades
// field by field.
func BuildTorrentResult(definition *IndexerDefinition, ctx *TemplateContext, baseURL string) *domain.TorrentResult {
	title := ctx.Result["title"]
	if title == "" {
		return nil
	}

	result := &domain.TorrentResult{
		Title:   title,
		GUID:    title,
		Indexer: definition.ID,
	}

	if details := ctx.Result["details"]; details != "" {
		abs := MakeAbsoluteURL(details, baseURL)
		result.Details = abs
		result.GUID = abs
	}

	if cat := ctx.Result["category"]; cat != "" {
		for _, part := range strings.Split(cat, ",") {
			if id, ok := definition.ResolveCategory(strings.TrimSpace(part)); ok && !containsInt(result.Categories, id) {
				result.Categories = append(result.Categories, id)
			}
		}
	}

	if link := ctx.Result["download"]; link != "" {
		result.Link = MakeAbsoluteURL(link, baseURL)
	}
	if magnet := ctx.Result["magnet"]; magnet != "" {
		result.Magnet = magnet
	}
	if result.Link == "" && result.Magnet != "" {
		result.Link = result.Magnet
	}

	if size := ctx.Result["size"]; size != "" {
		n := ParseSize(size)
		result.Size = &n
	}

	result.Seeders = parseNumericField(ctx.Result["seeders"])
	result.Leechers = parseNumericField(ctx.Result["leechers"])
	result.Grabs = parseNumericField(ctx.Result["grabs"])
	result.Files = parseNumericField(ctx.Result["files"])

	if hash := ctx.Result["infohash"]; hash != "" {
		result.InfoHash = hash
		if result.Magnet == "" {
			result.Magnet = "magnet:?xt=urn:btih:" + strings.ToLower(hash) + "&dn=" + urlEncode(result.Title)
			if result.Link == "" {
				result.Link = result.Magnet
			}
		}
	}

	if imdb := ctx.Result["imdbid"]; imdb != "" {
		result.IMDBID = imdb
	} else if imdb := ctx.Result["imdb"]; imdb != "" {
		result.IMDBID = imdb
	}
	result.TMDBID = parseNumericField(ctx.Result["tmdbid"])
	result.TVDBID = parseNumericField(ctx.Result["tvdbid"])

	if date := ctx.Result["date"]; date != "" {
		if t, ok := parseDateField(date); ok {
			result.PublishDate = &t
		}
	}

	result.Description = ctx.Result["description"]
	result.Genre = ctx.Result["genre"]
	if poster := ctx.Result["poster"]; poster != "" {
		result.Poster = MakeAbsoluteURL(poster, baseURL)
	}
	result.Uploader = ctx.Result["uploader"]

	result.DownloadVolumeFactor = parseFloatField(ctx.Result["downloadvolumefactor"])
	result.UploadVolumeFactor = parseFloatField(ctx.Result["uploadvolumefactor"])
	result.MinimumRatio = parseFloatField(ctx.Result["minimumratio"])
	if v := parseNumericField(ctx.Result["minimumseedtime"]); v != nil {
		seconds := int64(*v)
		result.MinimumSeedTime = &seconds
	}

	return result
}

func containsInt(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// parseNumericField reads a lenient integer: commas stripped, leading
// digits taken, everything after ignored. Nothing numeric yields nil.
func parseNumericField(value string) *int {
	cleaned := strings.TrimSpace(strings.ReplaceAll(value, ",", ""))
	end := 0
	for end < len(cleaned) && cleaned[end] >= '0' && cleaned[end] <= '9' {
		end++
	}
	if end == 0 {
		return nil
	}
	n, err := strconv.Atoi(cleaned[:end])
	if err != nil {
		return nil
	}
	return &n
}

func parseFloatField(value string) *float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return nil
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return &f
}

// parseDateField accepts RFC 3339 (the filters' output format), RFC 1123,
// Unix timestamps and relative expressions like "2 hours ago".
func parseDateField(value string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse(time.RFC1123Z, value); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse(time.RFC1123, value); err == nil {
		return t.UTC(), true
	}
	if ts, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Unix(ts, 0).UTC(), true
	}
	// Definitions without a timeago filter still emit raw relative dates.
	if relative := filterTimeago(value); relative != value {
		if t, err := time.Parse(time.RFC3339, relative); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// MakeAbsoluteURL resolves a possibly relative URL against a base. Magnet
// and absolute URLs pass through.
func MakeAbsoluteURL(raw, baseURL string) string {
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") || strings.HasPrefix(raw, "magnet:") {
		return raw
	}

	if base, err := url.Parse(baseURL); err == nil {
		if resolved, err := base.Parse(raw); err == nil {
			return resolved.String()
		}
	}

	if strings.HasPrefix(raw, "/") {
		return strings.TrimSuffix(baseURL, "/") + raw
	}
	return strings.TrimSuffix(baseURL, "/") + "/" + raw
}
