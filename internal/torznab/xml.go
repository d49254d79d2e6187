// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package torznab renders the Torznab XML documents this server emits:
// capabilities, result feeds and error responses.
package torznab

import (
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"strconv"
	"time"

	"github.com/autobrr/searchbrr/internal/domain"
)

const (
	appTitle     = "searchbrr"
	limitDefault = 100
	limitMax     = 100
)

// Torznab error codes used by this server.
const (
	CodeIndexerNotFound = 201
	CodeUnknownAction   = 202
)

// RSS is the root element of a results feed.
type RSS struct {
	XMLName xml.Name `xml:"rss"`
	Version string   `xml:"version,attr"`
	Atom    string   `xml:"xmlns:atom,attr"`
	Torznab string   `xml:"xmlns:torznab,attr"`
	Channel Channel  `xml:"channel"`
}

// Channel carries the feed metadata and items.
type Channel struct {
	Title       string `xml:"title"`
	Description string `xml:"description"`
	Language    string `xml:"language"`
	Items       []Item `xml:"item"`
}

// Item is one result row.
type Item struct {
	Title     string     `xml:"title"`
	GUID      string     `xml:"guid"`
	Link      string     `xml:"link"`
	Comments  string     `xml:"comments,omitempty"`
	PubDate   string     `xml:"pubDate"`
	Category  string     `xml:"category"`
	Enclosure *Enclosure `xml:"enclosure,omitempty"`
	Attrs     []Attr     `xml:"torznab:attr"`
}

// Enclosure points download-capable clients at the payload.
type Enclosure struct {
	URL    string `xml:"url,attr"`
	Length int64  `xml:"length,attr"`
	Type   string `xml:"type,attr"`
}

// Attr is one torznab:attr name/value pair.
type Attr struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// Caps is the t=caps document.
type Caps struct {
	XMLName    xml.Name       `xml:"caps"`
	Server     CapsServer     `xml:"server"`
	Limits     CapsLimits     `xml:"limits"`
	Searching  CapsSearching  `xml:"searching"`
	Categories CapsCategories `xml:"categories"`
}

type CapsServer struct {
	Title string `xml:"title,attr"`
}

type CapsLimits struct {
	Default int `xml:"default,attr"`
	Max     int `xml:"max,attr"`
}

type CapsSearching struct {
	Search      CapsSearch `xml:"search"`
	TVSearch    CapsSearch `xml:"tv-search"`
	MovieSearch CapsSearch `xml:"movie-search"`
}

type CapsSearch struct {
	Available       string `xml:"available,attr"`
	SupportedParams string `xml:"supportedParams,attr"`
}

type CapsCategories struct {
	Categories []CapsCategory `xml:"category"`
}

type CapsCategory struct {
	ID   int    `xml:"id,attr"`
	Name string `xml:"name,attr"`
}

// ErrorDoc is a Torznab <error> document.
type ErrorDoc struct {
	XMLName     xml.Name `xml:"error"`
	Code        int      `xml:"code,attr"`
	Description string   `xml:"description,attr"`
}

// NewError builds an error document.
func NewError(code int, description string) *ErrorDoc {
	return &ErrorDoc{Code: code, Description: description}
}

// NewCaps builds the capabilities document for one indexer (or the "all"
// pseudo-indexer). categories must already be sorted.
func NewCaps(indexerName string, categories []int) *Caps {
	caps := &Caps{
		Server: CapsServer{Title: fmt.Sprintf("%s - %s", appTitle, indexerName)},
		Limits: CapsLimits{Default: limitDefault, Max: limitMax},
		Searching: CapsSearching{
			Search:      CapsSearch{Available: "yes", SupportedParams: "q"},
			TVSearch:    CapsSearch{Available: "yes", SupportedParams: "q,season,ep"},
			MovieSearch: CapsSearch{Available: "yes", SupportedParams: "q,imdbid"},
		},
	}

	for _, id := range categories {
		name := strconv.Itoa(id)
		if cat, ok := domain.CategoryByID(id); ok {
			name = cat.Name
		}
		caps.Categories.Categories = append(caps.Categories.Categories, CapsCategory{ID: id, Name: name})
	}
	return caps
}

// WrapDownloadLink builds the /dl proxy URL for a non-magnet link. The
// link rides inside URL-safe unpadded base64 so query characters survive.
func WrapDownloadLink(baseURL, indexerID, link string) string {
	token := base64.RawURLEncoding.EncodeToString([]byte(link))
	return fmt.Sprintf("%s/api/v2.0/indexers/%s/dl?link=%s", baseURL, indexerID, token)
}

// UnwrapDownloadLink reverses WrapDownloadLink. Tokens containing ":" are
// already plain URLs and pass through.
func UnwrapDownloadLink(token string) string {
	for _, ch := range token {
		if ch == ':' {
			return token
		}
	}
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return token
	}
	return string(decoded)
}

// NewResults builds the RSS document for a result list. baseURL is the
// externally visible server URL used for /dl wrapping; indexerID names the
// /dl route to wrap through ("all" for aggregates).
func NewResults(indexerName, baseURL, indexerID string, results []*domain.TorrentResult) *RSS {
	items := make([]Item, 0, len(results))
	for _, r := range results {
		items = append(items, resultToItem(r, baseURL, indexerID))
	}

	return &RSS{
		Version: "2.0",
		Atom:    "http://www.w3.org/2005/Atom",
		Torznab: "http://torznab.com/schemas/2015/feed",
		Channel: Channel{
			Title:       fmt.Sprintf("%s - %s", appTitle, indexerName),
			Description: "Torznab aggregate feed",
			Language:    "en-us",
			Items:       items,
		},
	}
}

func resultToItem(r *domain.TorrentResult, baseURL, indexerID string) Item {
	// GUID preference: magnet, details page, link, title.
	guid := r.GUID
	if guid == "" {
		switch {
		case r.Magnet != "":
			guid = r.Magnet
		case r.Details != "":
			guid = r.Details
		case r.Link != "":
			guid = r.Link
		default:
			guid = r.Title
		}
	}

	// Magnets pass through; download links are wrapped so the client
	// downloads through this server (cookies, multi-step resolution).
	// Details-only results point at the details page rather than
	// emitting an empty link.
	link := r.Magnet
	switch {
	case link != "":
	case r.Link != "":
		link = WrapDownloadLink(baseURL, indexerID, r.Link)
	case r.Details != "":
		link = r.Details
	default:
		link = guid
	}

	pubDate := time.Now()
	if r.PublishDate != nil {
		pubDate = *r.PublishDate
	}

	category := 5000
	if len(r.Categories) > 0 {
		category = r.Categories[0]
	}

	size := int64(0)
	if r.Size != nil {
		size = *r.Size
	}

	item := Item{
		Title:    r.Title,
		GUID:     guid,
		Link:     link,
		Comments: r.Details,
		PubDate:  pubDate.Format(time.RFC1123Z),
		Category: strconv.Itoa(category),
		Enclosure: &Enclosure{
			URL:    link,
			Length: size,
			Type:   "application/x-bittorrent",
		},
	}

	for _, cat := range r.Categories {
		item.Attrs = append(item.Attrs, Attr{Name: "category", Value: strconv.Itoa(cat)})
	}
	if r.Size != nil {
		item.Attrs = append(item.Attrs, Attr{Name: "size", Value: strconv.FormatInt(*r.Size, 10)})
	}
	if r.Seeders != nil {
		item.Attrs = append(item.Attrs, Attr{Name: "seeders", Value: strconv.Itoa(*r.Seeders)})
	}
	if r.Leechers != nil {
		item.Attrs = append(item.Attrs, Attr{Name: "peers", Value: strconv.Itoa(*r.Leechers)})
	}
	if r.Grabs != nil {
		item.Attrs = append(item.Attrs, Attr{Name: "grabs", Value: strconv.Itoa(*r.Grabs)})
	}
	if r.InfoHash != "" {
		item.Attrs = append(item.Attrs, Attr{Name: "infohash", Value: r.InfoHash})
	}
	if r.Magnet != "" {
		item.Attrs = append(item.Attrs, Attr{Name: "magneturl", Value: r.Magnet})
	}

	return item
}

// Marshal renders a document with the XML header.
func Marshal(doc any) ([]byte, error) {
	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal torznab document: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}
