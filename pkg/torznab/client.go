// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package torznab is a minimal client for Torznab/Newznab HTTP APIs as
// exposed by Jackett, Prowlarr and NZBHydra endpoints.
package torznab

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Config holds the options for constructing a Client.
type Config struct {
	// BaseURL is the full Torznab endpoint including any /api suffix the
	// upstream expects.
	BaseURL    string
	APIKey     string
	Timeout    int
	HTTPClient *http.Client
	UserAgent  string
}

// Client provides Torznab-style access to a single upstream endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	userAgent  string
}

// NewClient constructs a new Client using the provided configuration.
func NewClient(cfg Config) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	ua := strings.TrimSpace(cfg.UserAgent)
	if ua == "" {
		ua = "searchbrr"
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: client,
		userAgent:  ua,
	}
}

// Error is a Torznab <error> document.
type Error struct {
	XMLName     xml.Name `xml:"error"`
	Code        string   `xml:"code,attr"`
	Description string   `xml:"description,attr"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("torznab error %s: %s", e.Code, e.Description)
}

// SearchMode is one entry of the caps <searching> block.
type SearchMode struct {
	Name            string
	Available       bool
	SupportedParams []string
}

// Category is one caps category.
type Category struct {
	ID   int    `xml:"id,attr"`
	Name string `xml:"name,attr"`
}

// Capabilities is the parsed t=caps response.
type Capabilities struct {
	Searching  []SearchMode
	Categories []Category
}

// SupportsMode reports whether a search mode (e.g. "tv-search") is
// advertised as available.
func (c *Capabilities) SupportsMode(name string) bool {
	for _, m := range c.Searching {
		if m.Name == name {
			return m.Available
		}
	}
	return false
}

type capsDoc struct {
	XMLName   xml.Name `xml:"caps"`
	Searching struct {
		Modes []capsMode `xml:",any"`
	} `xml:"searching"`
	Categories struct {
		Categories []Category `xml:"category"`
	} `xml:"categories"`
}

type capsMode struct {
	XMLName         xml.Name
	Available       string `xml:"available,attr"`
	SupportedParams string `xml:"supportedParams,attr"`
}

// Item is one RSS result item with its torznab attributes flattened.
type Item struct {
	Title       string
	GUID        string
	Link        string
	Comments    string
	PublishDate string
	Size        *int64
	Seeders     *int
	Peers       *int
	Grabs       *int
	Categories  []int
	InfoHash    string
	MagnetURL   string
}

type rssDoc struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title     string `xml:"title"`
	GUID      string `xml:"guid"`
	Link      string `xml:"link"`
	Comments  string `xml:"comments"`
	PubDate   string `xml:"pubDate"`
	Size      string `xml:"size"`
	Enclosure struct {
		URL    string `xml:"url,attr"`
		Length string `xml:"length,attr"`
	} `xml:"enclosure"`
	Attrs []rssAttr `xml:"attr"`
}

type rssAttr struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// SearchParams carries the Torznab query parameters for a search call.
// Empty values are omitted from the request.
type SearchParams struct {
	Type    string
	Query   string
	Cat     string
	Season  string
	Episode string
	IMDBID  string
	TMDBID  string
	TVDBID  string
	Year    string
	Limit   int
	Offset  int
}

func (p SearchParams) values() url.Values {
	v := url.Values{}
	t := p.Type
	if t == "" {
		t = "search"
	}
	v.Set("t", t)

	set := func(key, value string) {
		if strings.TrimSpace(value) != "" {
			v.Set(key, value)
		}
	}
	set("q", p.Query)
	set("cat", p.Cat)
	set("season", p.Season)
	set("ep", p.Episode)
	set("imdbid", p.IMDBID)
	set("tmdbid", p.TMDBID)
	set("tvdbid", p.TVDBID)
	set("year", p.Year)
	if p.Limit > 0 {
		v.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Offset > 0 {
		v.Set("offset", strconv.Itoa(p.Offset))
	}
	return v
}

func (c *Client) get(ctx context.Context, query url.Values) ([]byte, error) {
	if c.httpClient == nil {
		return nil, fmt.Errorf("torznab HTTP client is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if c.apiKey != "" {
		query.Set("apikey", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build torznab request: %w", err)
	}
	req.URL.RawQuery = query.Encode()
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("torznab request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("torznab returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read torznab response: %w", err)
	}

	if strings.HasPrefix(strings.TrimSpace(string(body)), "<error") {
		var terr Error
		if err := xml.Unmarshal(body, &terr); err != nil {
			return nil, fmt.Errorf("failed to decode torznab error response: %w", err)
		}
		return nil, &terr
	}

	return body, nil
}

// Caps fetches and parses the t=caps capabilities document.
func (c *Client) Caps(ctx context.Context) (*Capabilities, error) {
	body, err := c.get(ctx, url.Values{"t": []string{"caps"}})
	if err != nil {
		return nil, err
	}

	var doc capsDoc
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode caps response: %w", err)
	}

	caps := &Capabilities{Categories: doc.Categories.Categories}
	for _, m := range doc.Searching.Modes {
		mode := SearchMode{
			Name:      m.XMLName.Local,
			Available: strings.EqualFold(m.Available, "yes"),
		}
		if m.SupportedParams != "" {
			mode.SupportedParams = strings.Split(m.SupportedParams, ",")
		}
		caps.Searching = append(caps.Searching, mode)
	}
	return caps, nil
}

// Search runs a search and returns the parsed items. Items without a title
// are dropped.
func (c *Client) Search(ctx context.Context, params SearchParams) ([]Item, error) {
	body, err := c.get(ctx, params.values())
	if err != nil {
		return nil, err
	}

	var doc rssDoc
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	items := make([]Item, 0, len(doc.Channel.Items))
	for _, raw := range doc.Channel.Items {
		if strings.TrimSpace(raw.Title) == "" {
			continue
		}
		items = append(items, parseItem(raw))
	}
	return items, nil
}

func parseItem(raw rssItem) Item {
	item := Item{
		Title:       strings.TrimSpace(raw.Title),
		GUID:        strings.TrimSpace(raw.GUID),
		Link:        strings.TrimSpace(raw.Link),
		Comments:    strings.TrimSpace(raw.Comments),
		PublishDate: strings.TrimSpace(raw.PubDate),
	}

	attrs := make(map[string]string, len(raw.Attrs))
	for _, a := range raw.Attrs {
		if _, seen := attrs[a.Name]; !seen {
			attrs[a.Name] = a.Value
		}
		if a.Name == "category" {
			if id, err := strconv.Atoi(a.Value); err == nil {
				item.Categories = append(item.Categories, id)
			}
		}
	}

	// Size precedence: torznab attr, <size> tag, enclosure length.
	for _, candidate := range []string{attrs["size"], raw.Size, raw.Enclosure.Length} {
		if n, err := strconv.ParseInt(strings.TrimSpace(candidate), 10, 64); err == nil && n > 0 {
			item.Size = &n
			break
		}
	}

	item.Seeders = intAttr(attrs, "seeders")
	item.Peers = intAttr(attrs, "peers")
	item.Grabs = intAttr(attrs, "grabs")
	item.InfoHash = attrs["infohash"]
	item.MagnetURL = attrs["magneturl"]

	if item.Link == "" && raw.Enclosure.URL != "" {
		item.Link = raw.Enclosure.URL
	}

	return item
}

func intAttr(attrs map[string]string, name string) *int {
	v, ok := attrs[name]
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return nil
	}
	return &n
}

// Download fetches a torrent payload from the upstream.
func (c *Client) Download(ctx context.Context, rawURL string) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build download request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
