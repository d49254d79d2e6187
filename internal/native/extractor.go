// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package native

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"
)

// extractHTMLField resolves one selector block against a row element.
// Evaluation order: text template, selector, default. Filters apply to
// whichever produced the value; an empty end result reports no value.
func extractHTMLField(row *goquery.Selection, block *SelectorBlock, ctx *TemplateContext) (string, bool) {
	return processField(block, ctx, func(selector string) (string, bool) {
		found := SelectWithChain(row, selector).First()
		if found.Length() == 0 {
			return "", false
		}

		if len(block.Case) > 0 {
			for _, clause := range block.Case {
				if found.Is(clause.Selector) || found.Find(clause.Selector).Length() > 0 {
					return clause.Value, true
				}
			}
			return "", false
		}

		if block.Remove != "" {
			found = found.Clone()
			found.Find(block.Remove).Remove()
		}

		if block.Attribute != "" {
			attr, ok := found.Attr(block.Attribute)
			return attr, ok
		}

		return strings.TrimSpace(collapseText(found)), true
	})
}

// collapseText joins an element's text nodes with single spaces, the way
// tracker layouts expect "1.5" + "GB" cells to read.
func collapseText(sel *goquery.Selection) string {
	return strings.Join(strings.Fields(sel.Text()), " ")
}

// extractJSONField resolves a selector block against a JSON row. A ".."
// prefix reads from the parent row when one exists.
func extractJSONField(item gjson.Result, parent *gjson.Result, block *SelectorBlock, ctx *TemplateContext) (string, bool) {
	return processField(block, ctx, func(selector string) (string, bool) {
		source := item
		path := selector
		if stripped, ok := strings.CutPrefix(selector, ".."); ok {
			path = stripped
			if parent != nil {
				source = *parent
			}
		}

		value := source.Get(path)
		switch value.Type {
		case gjson.String:
			return value.Str, true
		case gjson.Number, gjson.True, gjson.False:
			return value.String(), true
		default:
			return "", false
		}
	})
}

// processField runs the text/selector/default ladder shared by the HTML and
// JSON extractors.
func processField(block *SelectorBlock, ctx *TemplateContext, extractRaw func(string) (string, bool)) (string, bool) {
	if block == nil {
		return "", false
	}

	if block.Text != "" {
		if !strings.Contains(block.Text, "{{") {
			return block.Text, true
		}
		rendered := ApplyFilters(RenderTemplate(block.Text, ctx), block.Filters, ctx)
		return rendered, rendered != ""
	}

	if block.Selector != "" {
		if raw, ok := extractRaw(block.Selector); ok && raw != "" {
			filtered := ApplyFilters(raw, block.Filters, ctx)
			return filtered, filtered != ""
		}
	}

	if block.Default != "" {
		rendered := ApplyFilters(RenderTemplate(block.Default, ctx), block.Filters, ctx)
		return rendered, rendered != ""
	}

	return "", false
}

// namedBlock pairs a result key with its selector block for the pass loops.
type namedBlock struct {
	name  string
	block *SelectorBlock
}

// selectorPassFields lists every standard field evaluated in the selector
// pass, in a stable order. Category lands under "section" first; the
// duplicate "category" key is written afterwards so templates can reach the
// raw tracker value under either name.
func (f *Fields) selectorPassFields() []namedBlock {
	return []namedBlock{
		{"details", f.Details},
		{"download", f.Download},
		{"magnet", f.Magnet},
		{"section", f.Category},
		{"categorydesc", f.CategoryDesc},
		{"size", f.Size},
		{"date", f.Date},
		{"seeders", f.Seeders},
		{"leechers", f.Leechers},
		{"grabs", f.Grabs},
		{"files", f.Files},
		{"infohash", f.InfoHash},
		{"imdbid", f.IMDBID},
		{"imdb", f.IMDB},
		{"tmdbid", f.TMDBID},
		{"tvdbid", f.TVDBID},
		{"poster", f.Poster},
		{"genre", f.Genre},
		{"description", f.Description},
		{"downloadvolumefactor", f.DownloadVolumeFactor},
		{"uploadvolumefactor", f.UploadVolumeFactor},
		{"minimumratio", f.MinimumRatio},
		{"minimumseedtime", f.MinimumSeedTime},
	}
}

// templatePassFields lists the standard fields that may be text-only
// templates computed from other results.
func (f *Fields) templatePassFields() []namedBlock {
	return []namedBlock{
		{"title", f.Title},
		{"details", f.Details},
		{"download", f.Download},
		{"magnet", f.Magnet},
		{"date", f.Date},
		{"category", f.Category},
	}
}

// ExtractHTMLFields runs the multi-pass extraction for one row: the
// selector pass first, then up to five template passes that stop as soon as
// a pass adds nothing new.
func ExtractHTMLFields(row *goquery.Selection, fields *Fields, ctx *TemplateContext) {
	extractFields(fields, ctx, func(block *SelectorBlock) (string, bool) {
		return extractHTMLField(row, block, ctx)
	})
}

// ExtractJSONFields is the JSON-mode counterpart of ExtractHTMLFields.
func ExtractJSONFields(item gjson.Result, parent *gjson.Result, fields *Fields, ctx *TemplateContext) {
	extractFields(fields, ctx, func(block *SelectorBlock) (string, bool) {
		return extractJSONField(item, parent, block, ctx)
	})
}

func extractFields(fields *Fields, ctx *TemplateContext, extract func(*SelectorBlock) (string, bool)) {
	// Selector pass. Text-only templates wait for the later passes because
	// they may reference fields not extracted yet.
	if fields.Title != nil && fields.Title.Selector != "" {
		if val, ok := extract(fields.Title); ok {
			ctx.SetResult("title", val)
		}
	}

	for _, nb := range fields.selectorPassFields() {
		if nb.block == nil || nb.block.TextOnly() {
			continue
		}
		if val, ok := extract(nb.block); ok {
			ctx.SetResult(nb.name, val)
		}
	}

	for _, extra := range fields.Extra {
		if extra.Selector == nil || extra.Selector.TextOnly() {
			continue
		}
		if val, ok := extract(extra.Selector); ok {
			ctx.SetResult(extra.Name, val)
		}
	}

	if fields.Category != nil && !fields.Category.TextOnly() {
		if val, ok := extract(fields.Category); ok {
			ctx.SetResult("category", val)
		}
	}

	// Template passes: compute text-only fields until a fixpoint, capped so
	// cyclic references cannot loop forever.
	for pass := 0; pass < 5; pass++ {
		anyNew := false

		for _, extra := range fields.Extra {
			if extra.Selector == nil || !extra.Selector.TextOnly() {
				continue
			}
			if _, done := ctx.Result[extra.Name]; done {
				continue
			}
			if val, ok := extract(extra.Selector); ok && val != "" {
				ctx.SetResult(extra.Name, val)
				anyNew = true
			}
		}

		for _, nb := range fields.templatePassFields() {
			if nb.block == nil || !nb.block.TextOnly() {
				continue
			}
			if _, done := ctx.Result[nb.name]; done {
				continue
			}
			if val, ok := extract(nb.block); ok {
				ctx.SetResult(nb.name, val)
				anyNew = true
			}
		}

		if !anyNew {
			break
		}
	}
}
