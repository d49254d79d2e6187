// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package torznab

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/searchbrr/internal/domain"
)

func TestNewCaps(t *testing.T) {
	t.Parallel()

	caps := NewCaps("Example Tracker", []int{2000, 5000})
	body, err := Marshal(caps)
	require.NoError(t, err)
	xml := string(body)

	assert.Contains(t, xml, `<server title="searchbrr - Example Tracker">`)
	assert.Contains(t, xml, `<limits default="100" max="100">`)
	assert.Contains(t, xml, `<search available="yes" supportedParams="q">`)
	assert.Contains(t, xml, `<tv-search available="yes" supportedParams="q,season,ep">`)
	assert.Contains(t, xml, `<movie-search available="yes" supportedParams="q,imdbid">`)
	assert.Contains(t, xml, `<category id="2000" name="Movies">`)
	assert.Contains(t, xml, `<category id="5000" name="TV">`)
}

func TestNewCaps_AllIndexers(t *testing.T) {
	t.Parallel()

	caps := NewCaps("All Indexers", nil)
	body, err := Marshal(caps)
	require.NoError(t, err)
	assert.Contains(t, string(body), `<server title="searchbrr - All Indexers">`)
}

func TestNewResults(t *testing.T) {
	t.Parallel()

	published := time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC)
	size := int64(1_500_000_000)
	seeders := 50
	peers := 4

	results := []*domain.TorrentResult{
		{
			Title:       "Ubuntu 24.04 ISO",
			GUID:        "https://tracker.example/details/1",
			Link:        "https://tracker.example/dl/1",
			Details:     "https://tracker.example/details/1",
			Categories:  []int{4020, 4000},
			Size:        &size,
			Seeders:     &seeders,
			Leechers:    &peers,
			InfoHash:    "abcdef0123456789abcdef0123456789abcdef01",
			PublishDate: &published,
			Indexer:     "exampletracker",
		},
	}

	rss := NewResults("Example Tracker", "http://localhost:3420", "exampletracker", results)
	body, err := Marshal(rss)
	require.NoError(t, err)
	xml := string(body)

	assert.Contains(t, xml, `xmlns:torznab="http://torznab.com/schemas/2015/feed"`)
	assert.Contains(t, xml, `<title>searchbrr - Example Tracker</title>`)
	assert.Contains(t, xml, `<title>Ubuntu 24.04 ISO</title>`)
	assert.Contains(t, xml, `<guid>https://tracker.example/details/1</guid>`)
	assert.Contains(t, xml, `<pubDate>Tue, 05 Mar 2024 14:30:00 +0000</pubDate>`)
	assert.Contains(t, xml, `<category>4020</category>`)
	assert.Contains(t, xml, `type="application/x-bittorrent"`)
	assert.Contains(t, xml, `<torznab:attr name="category" value="4020">`)
	assert.Contains(t, xml, `<torznab:attr name="category" value="4000">`)
	assert.Contains(t, xml, `<torznab:attr name="size" value="1500000000">`)
	assert.Contains(t, xml, `<torznab:attr name="seeders" value="50">`)
	assert.Contains(t, xml, `<torznab:attr name="peers" value="4">`)
	assert.Contains(t, xml, `<torznab:attr name="infohash" value="abcdef0123456789abcdef0123456789abcdef01">`)

	// Non-magnet links get wrapped through the /dl proxy route.
	assert.Contains(t, xml, `/api/v2.0/indexers/exampletracker/dl?link=`)
	assert.NotContains(t, xml, `<link>https://tracker.example/dl/1</link>`)
}

func TestNewResults_MagnetPassthrough(t *testing.T) {
	t.Parallel()

	magnet := "magnet:?xt=urn:btih:abcdef0123456789abcdef0123456789abcdef01"
	results := []*domain.TorrentResult{{Title: "X", Magnet: magnet}}

	rss := NewResults("All Indexers", "http://localhost:3420", "all", results)
	body, err := Marshal(rss)
	require.NoError(t, err)
	xml := string(body)

	assert.Contains(t, xml, "<link>"+magnet+"</link>")
	assert.Contains(t, xml, `<torznab:attr name="magneturl" value="`+magnet+`">`)
	assert.NotContains(t, xml, "/dl?link=")

	// No categories defaults to 5000, GUID falls back to the magnet.
	assert.Contains(t, xml, `<category>5000</category>`)
	assert.Contains(t, xml, "<guid>"+magnet+"</guid>")
}

func TestNewResults_DetailsOnlyLinkFallback(t *testing.T) {
	t.Parallel()

	details := "https://tracker.example/details/9"
	results := []*domain.TorrentResult{{Title: "X", Details: details}}

	rss := NewResults("All Indexers", "http://localhost:3420", "all", results)
	body, err := Marshal(rss)
	require.NoError(t, err)
	xml := string(body)

	// No magnet and no download link: the details page stands in so the
	// item never ships an empty link or enclosure.
	assert.Contains(t, xml, "<link>"+details+"</link>")
	assert.Contains(t, xml, `url="`+details+`"`)
	assert.NotContains(t, xml, "<link></link>")

	// Nothing but a title falls back to the guid.
	rss = NewResults("All Indexers", "http://localhost:3420", "all", []*domain.TorrentResult{{Title: "bare"}})
	require.Len(t, rss.Channel.Items, 1)
	assert.Equal(t, "bare", rss.Channel.Items[0].Link)
}

func TestNewResults_PubDateDefaultsToNow(t *testing.T) {
	t.Parallel()

	rss := NewResults("X", "http://localhost:3420", "x", []*domain.TorrentResult{{Title: "undated"}})
	require.Len(t, rss.Channel.Items, 1)

	parsed, err := time.Parse(time.RFC1123Z, rss.Channel.Items[0].PubDate)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), parsed, time.Minute)
}

func TestWrapUnwrapDownloadLink(t *testing.T) {
	t.Parallel()

	link := "https://tracker.example/dl/1?passkey=abc&x=1"
	wrapped := WrapDownloadLink("http://localhost:3420", "exampletracker", link)
	assert.Contains(t, wrapped, "http://localhost:3420/api/v2.0/indexers/exampletracker/dl?link=")
	// Token stays URL-safe.
	assert.NotContains(t, wrapped, "=&")
	assert.NotContains(t, wrapped[len("http://localhost:3420/api/v2.0/indexers/exampletracker/dl?link="):], "+")

	token := wrapped[len("http://localhost:3420/api/v2.0/indexers/exampletracker/dl?link="):]
	assert.Equal(t, link, UnwrapDownloadLink(token))

	// Plain URLs (anything with a colon) pass through undecoded.
	assert.Equal(t, "magnet:?xt=urn:btih:ff", UnwrapDownloadLink("magnet:?xt=urn:btih:ff"))
	assert.Equal(t, "https://x/y", UnwrapDownloadLink("https://x/y"))
}

func TestNewError(t *testing.T) {
	t.Parallel()

	body, err := Marshal(NewError(CodeIndexerNotFound, "Incorrect user credentials or indexer not found"))
	require.NoError(t, err)
	assert.Contains(t, string(body), `<error code="201" description="Incorrect user credentials or indexer not found">`)

	body, err = Marshal(NewError(CodeUnknownAction, "Unknown action"))
	require.NoError(t, err)
	assert.Contains(t, string(body), `code="202"`)
}
