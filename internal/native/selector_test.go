// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package native

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestParseSelectorChain(t *testing.T) {
	t.Parallel()

	chain := ParseSelectorChain("table.forum_header_border tr.forum_header_border:has(td.forum_thread_post)")
	require.Len(t, chain, 2)
	assert.Equal(t, "table.forum_header_border", chain[0].CSS)
	assert.Equal(t, "tr.forum_header_border", chain[1].CSS)
	assert.Equal(t, "td.forum_thread_post", chain[1].Has)
}

func TestParseSelectorChain_ContainsWithSpaces(t *testing.T) {
	t.Parallel()

	// The quoted argument holds a space; the chain must not split inside it.
	chain := ParseSelectorChain(`div.panel:contains('Latest Torrents') table tr`)
	require.Len(t, chain, 3)
	assert.Equal(t, "div.panel", chain[0].CSS)
	assert.Equal(t, "Latest Torrents", chain[0].Contains)
	assert.Equal(t, "table", chain[1].CSS)
	assert.Equal(t, "tr", chain[2].CSS)
}

func TestParseSelectorChain_ChildCombinator(t *testing.T) {
	t.Parallel()

	chain := ParseSelectorChain("table > tbody > tr")
	require.Len(t, chain, 3)
	assert.Equal(t, "table", chain[0].CSS)
	assert.Equal(t, "tbody", chain[1].CSS)
	assert.Equal(t, "tr", chain[2].CSS)
}

func TestParseSelectorChain_Not(t *testing.T) {
	t.Parallel()

	chain := ParseSelectorChain("tr:not(.header)")
	require.Len(t, chain, 1)
	assert.Equal(t, "tr", chain[0].CSS)
	assert.Equal(t, ".header", chain[0].Not)
}

func TestDecodeCSSEscapes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, " GB", decodeCSSEscapes(`\00a0GB`))
	assert.Equal(t, "AB", decodeCSSEscapes(`\41 B`))
	assert.Equal(t, "plain", decodeCSSEscapes("plain"))
}

func TestParseSelectorChain_ContainsCSSEscape(t *testing.T) {
	t.Parallel()

	chain := ParseSelectorChain(`td:contains("\00a0GB")`)
	require.Len(t, chain, 1)
	assert.Equal(t, "td", chain[0].CSS)
	assert.Equal(t, " GB", chain[0].Contains)
}

func TestApplySelectorChain(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, `
		<table class="list">
			<tr class="header"><th>Name</th></tr>
			<tr><td class="name">Ubuntu ISO</td><td>1.5 GB</td></tr>
			<tr><td class="name">Debian ISO</td><td>700 MB</td></tr>
		</table>`)

	rows := ApplySelectorChain(doc.Selection, ParseSelectorChain("table.list tr:has(td.name)"))
	assert.Equal(t, 2, rows.Length())

	rows = ApplySelectorChain(doc.Selection, ParseSelectorChain("table.list tr:not(.header)"))
	assert.Equal(t, 2, rows.Length())

	rows = ApplySelectorChain(doc.Selection, ParseSelectorChain(`table.list tr:contains('Ubuntu')`))
	assert.Equal(t, 1, rows.Length())
	assert.Contains(t, rows.Text(), "Ubuntu ISO")

	// Invalid CSS matches nothing instead of failing.
	rows = ApplySelectorChain(doc.Selection, ParseSelectorChain("table.list ["))
	assert.Equal(t, 0, rows.Length())
}

func TestApplySelectorChain_NBSPContains(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, `<table><tr><td>1.5&nbsp;GB</td></tr><tr><td>700 MB</td></tr></table>`)

	rows := ApplySelectorChain(doc.Selection, ParseSelectorChain(`td:contains("\00a0GB")`))
	assert.Equal(t, 1, rows.Length())
}

func TestSelectWithChain_CommaAlternatives(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, `
		<div class="a"><span>one</span></div>
		<div class="b"><span>two</span></div>
		<div class="c"><span>three</span></div>`)

	rows := SelectWithChain(doc.Selection, "div.a span, div.c span")
	assert.Equal(t, 2, rows.Length())

	texts := rows.Map(func(_ int, s *goquery.Selection) string { return s.Text() })
	assert.Equal(t, []string{"one", "three"}, texts)
}
