// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package native

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const extractorRowHTML = `
<table>
	<tr class="release">
		<td class="name"><a href="/details/42" title="Ubuntu 24.04 ISO">Ubuntu 24.04 ISO</a></td>
		<td class="size">1.5 GB</td>
		<td class="seeds">50</td>
		<td class="cat"><span class="movies"></span></td>
		<td class="dl"><a href="/download/42">get</a> <span class="junk">ads</span></td>
	</tr>
</table>`

func TestExtractHTMLField_SelectorAndAttribute(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, extractorRowHTML)
	row := doc.Find("tr.release")
	ctx := newTestContext()

	val, ok := extractHTMLField(row, &SelectorBlock{Selector: "td.name a"}, ctx)
	require.True(t, ok)
	assert.Equal(t, "Ubuntu 24.04 ISO", val)

	val, ok = extractHTMLField(row, &SelectorBlock{Selector: "td.name a", Attribute: "href"}, ctx)
	require.True(t, ok)
	assert.Equal(t, "/details/42", val)
}

func TestExtractHTMLField_MissingFallsBackToDefault(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, extractorRowHTML)
	row := doc.Find("tr.release")
	ctx := newTestContext()

	val, ok := extractHTMLField(row, &SelectorBlock{Selector: "td.nope", Default: "fallback"}, ctx)
	require.True(t, ok)
	assert.Equal(t, "fallback", val)

	_, ok = extractHTMLField(row, &SelectorBlock{Selector: "td.nope"}, ctx)
	assert.False(t, ok)
}

func TestExtractHTMLField_Filters(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, extractorRowHTML)
	row := doc.Find("tr.release")
	ctx := newTestContext()

	block := &SelectorBlock{
		Selector: "td.name a",
		Filters:  []Filter{{Name: "tolower"}, {Name: "re_replace", Args: FilterArgs{`\s+`, "."}}},
	}
	val, ok := extractHTMLField(row, block, ctx)
	require.True(t, ok)
	assert.Equal(t, "ubuntu.24.04.iso", val)
}

func TestExtractHTMLField_Case(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, extractorRowHTML)
	row := doc.Find("tr.release")
	ctx := newTestContext()

	block := &SelectorBlock{
		Selector: "td.cat",
		Case: []CaseClause{
			{Selector: "span.tv", Value: "5000"},
			{Selector: "span.movies", Value: "2000"},
		},
	}
	val, ok := extractHTMLField(row, block, ctx)
	require.True(t, ok)
	assert.Equal(t, "2000", val)
}

func TestExtractHTMLField_Remove(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, extractorRowHTML)
	row := doc.Find("tr.release")
	ctx := newTestContext()

	val, ok := extractHTMLField(row, &SelectorBlock{Selector: "td.dl", Remove: "span.junk"}, ctx)
	require.True(t, ok)
	assert.Equal(t, "get", val)
}

func TestExtractHTMLFields_MultiPassTemplates(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, extractorRowHTML)
	row := doc.Find("tr.release")
	ctx := newTestContext()

	fields := &Fields{
		Title: &SelectorBlock{Selector: "td.name a"},
		Size:  &SelectorBlock{Selector: "td.size"},
		// Text-only template chain resolved over later passes.
		Extra: []ExtraField{
			{Name: "label", Selector: &SelectorBlock{Text: "{{ if .Result.title }}[iso] {{ .Result.title }}{{ else }}{{ end }}"}},
			{Name: "double", Selector: &SelectorBlock{Text: "{{ .Result.label }}!"}},
		},
	}

	ExtractHTMLFields(row, fields, ctx)

	assert.Equal(t, "Ubuntu 24.04 ISO", ctx.Result["title"])
	assert.Equal(t, "1.5 GB", ctx.Result["size"])
	assert.Equal(t, "[iso] Ubuntu 24.04 ISO", ctx.Result["label"])
	assert.Equal(t, "[iso] Ubuntu 24.04 ISO!", ctx.Result["double"])
}

func TestExtractHTMLFields_CategoryStoredUnderBothKeys(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, extractorRowHTML)
	row := doc.Find("tr.release")
	ctx := newTestContext()

	fields := &Fields{
		Title:    &SelectorBlock{Selector: "td.name a"},
		Category: &SelectorBlock{Selector: "td.name a", Attribute: "href", Filters: []Filter{{Name: "regexp", Args: FilterArgs{`/details/(\d+)`}}}},
	}

	ExtractHTMLFields(row, fields, ctx)

	assert.Equal(t, "42", ctx.Result["section"])
	assert.Equal(t, "42", ctx.Result["category"])
}

func TestExtractJSONField(t *testing.T) {
	t.Parallel()

	item := gjson.Parse(`{"name": "Ubuntu ISO", "stats": {"seeders": 50}, "ok": true}`)
	parent := gjson.Parse(`{"year": 2024}`)
	ctx := newTestContext()

	val, ok := extractJSONField(item, nil, &SelectorBlock{Selector: "name"}, ctx)
	require.True(t, ok)
	assert.Equal(t, "Ubuntu ISO", val)

	// Nested dot path and non-string scalars.
	val, ok = extractJSONField(item, nil, &SelectorBlock{Selector: "stats.seeders"}, ctx)
	require.True(t, ok)
	assert.Equal(t, "50", val)

	val, ok = extractJSONField(item, nil, &SelectorBlock{Selector: "ok"}, ctx)
	require.True(t, ok)
	assert.Equal(t, "true", val)

	// Parent reference.
	val, ok = extractJSONField(item, &parent, &SelectorBlock{Selector: "..year"}, ctx)
	require.True(t, ok)
	assert.Equal(t, "2024", val)

	// Missing key falls through.
	_, ok = extractJSONField(item, nil, &SelectorBlock{Selector: "missing"}, ctx)
	assert.False(t, ok)
}

func TestExtractJSONFields(t *testing.T) {
	t.Parallel()

	item := gjson.Parse(`{"title": "Debian 12", "size_bytes": 700000000, "seeds": 10}`)
	ctx := newTestContext()

	fields := &Fields{
		Title:   &SelectorBlock{Selector: "title"},
		Size:    &SelectorBlock{Selector: "size_bytes"},
		Seeders: &SelectorBlock{Selector: "seeds"},
	}

	ExtractJSONFields(item, nil, fields, ctx)

	assert.Equal(t, "Debian 12", ctx.Result["title"])
	assert.Equal(t, "700000000", ctx.Result["size"])
	assert.Equal(t, "10", ctx.Result["seeders"])
}
