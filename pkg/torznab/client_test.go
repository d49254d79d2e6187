// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package torznab

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const capsXML = `<?xml version="1.0" encoding="UTF-8"?>
<caps>
  <server title="Jackett"/>
  <limits default="100" max="100"/>
  <searching>
    <search available="yes" supportedParams="q"/>
    <tv-search available="yes" supportedParams="q,season,ep"/>
    <movie-search available="no" supportedParams="q,imdbid"/>
  </searching>
  <categories>
    <category id="2000" name="Movies"/>
    <category id="5000" name="TV"/>
  </categories>
</caps>`

const searchXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:torznab="http://torznab.com/schemas/2015/feed">
 <channel>
  <item>
   <title>Ubuntu 24.04 ISO</title>
   <guid>https://tracker.example/details/1</guid>
   <link>https://tracker.example/dl/1</link>
   <comments>https://tracker.example/details/1</comments>
   <pubDate>Tue, 05 Mar 2024 14:30:00 +0000</pubDate>
   <enclosure url="https://tracker.example/dl/1" length="1500000000" type="application/x-bittorrent"/>
   <torznab:attr name="category" value="4020"/>
   <torznab:attr name="category" value="100041"/>
   <torznab:attr name="seeders" value="50"/>
   <torznab:attr name="peers" value="4"/>
   <torznab:attr name="infohash" value="abcdef0123456789abcdef0123456789abcdef01"/>
  </item>
  <item>
   <title></title>
  </item>
  <item>
   <title>Debian 12</title>
   <guid>deb-12</guid>
   <size>700000000</size>
  </item>
 </channel>
</rss>`

func TestClientCaps(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "caps", r.URL.Query().Get("t"))
		assert.Equal(t, "secret", r.URL.Query().Get("apikey"))
		_, _ = w.Write([]byte(capsXML))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, APIKey: "secret"})
	caps, err := client.Caps(context.Background())
	require.NoError(t, err)

	assert.True(t, caps.SupportsMode("search"))
	assert.True(t, caps.SupportsMode("tv-search"))
	assert.False(t, caps.SupportsMode("movie-search"))
	require.Len(t, caps.Categories, 2)
	assert.Equal(t, 2000, caps.Categories[0].ID)
	assert.Equal(t, "Movies", caps.Categories[0].Name)

	var tv SearchMode
	for _, m := range caps.Searching {
		if m.Name == "tv-search" {
			tv = m
		}
	}
	assert.Equal(t, []string{"q", "season", "ep"}, tv.SupportedParams)
}

func TestClientSearch(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "search", q.Get("t"))
		assert.Equal(t, "ubuntu", q.Get("q"))
		assert.Equal(t, "2000,5000", q.Get("cat"))
		// Empty params stay out of the request.
		assert.False(t, q.Has("imdbid"))
		_, _ = w.Write([]byte(searchXML))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})
	items, err := client.Search(context.Background(), SearchParams{Query: "ubuntu", Cat: "2000,5000"})
	require.NoError(t, err)
	require.Len(t, items, 2)

	first := items[0]
	assert.Equal(t, "Ubuntu 24.04 ISO", first.Title)
	assert.Equal(t, "https://tracker.example/dl/1", first.Link)
	assert.Equal(t, []int{4020, 100041}, first.Categories)
	require.NotNil(t, first.Seeders)
	assert.Equal(t, 50, *first.Seeders)
	require.NotNil(t, first.Peers)
	assert.Equal(t, 4, *first.Peers)
	assert.Equal(t, "abcdef0123456789abcdef0123456789abcdef01", first.InfoHash)
	// No size attr: enclosure length fills in.
	require.NotNil(t, first.Size)
	assert.Equal(t, int64(1_500_000_000), *first.Size)

	// Second item gets its size from the <size> tag.
	require.NotNil(t, items[1].Size)
	assert.Equal(t, int64(700_000_000), *items[1].Size)
}

func TestClientSearch_ErrorDocument(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<error code="100" description="Invalid API Key"/>`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})
	_, err := client.Search(context.Background(), SearchParams{Query: "x"})
	require.Error(t, err)

	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "100", terr.Code)
	assert.Equal(t, "Invalid API Key", terr.Description)
}

func TestClientDownload(t *testing.T) {
	t.Parallel()

	payload := []byte("d8:announce0:e")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})
	data, err := client.Download(context.Background(), server.URL+"/dl/1")
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}
