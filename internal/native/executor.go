// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package native

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"golang.org/x/net/html/charset"

	"github.com/autobrr/searchbrr/internal/domain"
)

const (
	searchTimeout  = 30 * time.Second
	desktopUA      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"
	htmlAccept     = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	jsonAccept     = "application/json"
	acceptLanguage = "en-US,en;q=0.5"
)

// Executor performs searches and downloads for native definitions. Each
// executor owns one cookie jar, so session cookies acquired by the
// preflight visit stick around for the searches that follow.
type Executor struct {
	client   *http.Client
	utcDates bool
	log      zerolog.Logger
}

// SetUTCDates switches the {{ .Query.Today }} template family to UTC
// instead of local time.
func (e *Executor) SetUTCDates(utc bool) {
	e.utcDates = utc
}

// NewExecutor builds an executor, optionally routing through a proxy.
func NewExecutor(proxyURL string, logger zerolog.Logger) (*Executor, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxyURL != "" {
		parsed, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
		transport.Proxy = http.ProxyURL(parsed)
		logger.Info().Str("proxy", proxyURL).Msg("routing indexer traffic through proxy")
	}

	return &Executor{
		client: &http.Client{
			Jar:       jar,
			Timeout:   searchTimeout,
			Transport: transport,
		},
		log: logger.With().Str("component", "executor").Logger(),
	}, nil
}

// VisitBaseURL fetches the site root to pick up session cookies. Failures
// are the indexer's problem, not ours, so the error is advisory.
func (e *Executor) VisitBaseURL(ctx context.Context, definition *IndexerDefinition) error {
	baseURL := definition.SiteLink()
	if baseURL == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", desktopUA)
	req.Header.Set("Accept", "text/html")

	resp, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	return nil
}

// Search runs the query against every matching search path and merges the
// extracted results. User settings override the definition's defaults in
// the .Config namespace.
func (e *Executor) Search(ctx context.Context, definition *IndexerDefinition, query domain.SearchQuery, userSettings map[string]string) ([]*domain.TorrentResult, error) {
	baseURL := definition.SiteLink()
	if baseURL == "" {
		return nil, fmt.Errorf("definition %q has no site link", definition.ID)
	}

	config := definition.DefaultConfig()
	for k, v := range userSettings {
		config[k] = v
	}

	tctx := NewTemplateContext(query, nil).WithConfig(config)
	tctx.UTC = e.utcDates

	// Keyword preprocessing happens before anything is rendered, so path
	// templates and inputs see the rewritten keywords.
	keywords := tctx.Query.Keywords
	if len(definition.Search.PreprocessingFilters) > 0 {
		keywords = ApplyFilters(keywords, definition.Search.PreprocessingFilters, tctx)
	}
	if len(definition.Search.KeywordsFilters) > 0 {
		keywords = ApplyFilters(keywords, definition.Search.KeywordsFilters, tctx)
	}
	if keywords != tctx.Query.Keywords {
		e.log.Debug().Str("indexer", definition.ID).Str("keywords", keywords).Msg("keywords after filters")
		tctx.Query.Keywords = keywords
		tctx.Query.Query = url.QueryEscape(keywords)
	}

	tctx.Query.Categories = definition.mapQueryCategories(query.Categories)

	paths := matchingPaths(definition, tctx.Query.Categories)
	if len(paths) == 0 {
		return nil, fmt.Errorf("definition %q has no search path", definition.ID)
	}

	var all []*domain.TorrentResult
	for i, searchPath := range paths {
		results, err := e.executeSearchPath(ctx, definition, searchPath, tctx, baseURL)
		if err != nil {
			e.log.Warn().Err(err).Str("indexer", definition.ID).Int("path", i+1).Msg("search path failed")
			continue
		}
		all = append(all, results...)
	}

	e.log.Debug().Str("indexer", definition.ID).Int("results", len(all)).Int("paths", len(paths)).Msg("search finished")
	return all, nil
}

// mapQueryCategories translates Torznab category ids into tracker-side
// values. Unmapped ids pass through only when the definition allows raw
// searches.
func (d *IndexerDefinition) mapQueryCategories(categories []int) []string {
	var mapped, unmapped []string
	for _, cat := range categories {
		if tc, ok := d.TrackerCategory(cat); ok {
			mapped = append(mapped, tc)
		} else {
			unmapped = append(unmapped, strconv.Itoa(cat))
		}
	}
	if d.Caps.AllowRawSearch {
		mapped = append(mapped, unmapped...)
	}
	return mapped
}

// matchingPaths selects search paths whose category filter intersects the
// query. No intersection anywhere keeps every path in play.
func matchingPaths(definition *IndexerDefinition, queryCategories []string) []SearchPath {
	paths := definition.Search.AllPaths()
	if len(paths) == 0 || len(queryCategories) == 0 {
		return paths
	}

	var matching []SearchPath
	for _, p := range paths {
		if len(p.Categories) == 0 {
			matching = append(matching, p)
			continue
		}
		for _, pc := range p.Categories {
			if containsString(queryCategories, string(pc)) {
				matching = append(matching, p)
				break
			}
		}
	}

	if len(matching) == 0 {
		return paths
	}
	return matching
}

func containsString(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func (e *Executor) executeSearchPath(ctx context.Context, definition *IndexerDefinition, searchPath SearchPath, tctx *TemplateContext, baseURL string) ([]*domain.TorrentResult, error) {
	isJSON := searchPath.Response != nil && searchPath.Response.Type == "json"

	searchURL, form, err := buildSearchRequest(definition, searchPath, tctx, baseURL)
	if err != nil {
		return nil, err
	}

	method := searchPath.Method
	if method == "" {
		method = definition.Search.Method
	}
	isPost := strings.EqualFold(method, "post")

	var req *http.Request
	if isPost {
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, searchURL, strings.NewReader(form.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	} else {
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("User-Agent", desktopUA)
	req.Header.Set("Accept-Language", acceptLanguage)
	if isJSON {
		req.Header.Set("Accept", jsonAccept)
	} else {
		req.Header.Set("Accept", htmlAccept)
	}
	for key, values := range definition.Search.Headers {
		for _, value := range values {
			if rendered := RenderTemplate(value, tctx); rendered != "" {
				req.Header.Set(key, rendered)
			}
		}
	}

	e.log.Debug().Str("indexer", definition.ID).Str("method", req.Method).Str("url", searchURL).Msg("searching")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, searchURL)
	}

	body, err := e.decodeBody(resp.Body, definition.Encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if !isJSON {
		if msg := matchErrorSelectors(definition, body); msg != "" {
			return nil, fmt.Errorf("indexer error: %s", msg)
		}
	}

	// Relative links resolve against the final request URL rather than the
	// site root, so download.php under /forum/ stays under /forum/.
	pageURL := searchURL
	if resp.Request != nil && resp.Request.URL != nil {
		pageURL = resp.Request.URL.String()
	}

	if isJSON {
		return e.parseJSONResults(definition, body, baseURL, tctx)
	}
	return e.parseHTMLResults(definition, body, pageURL, tctx)
}

// decodeBody reads the response, converting from the definition's declared
// encoding to UTF-8 when needed.
func (e *Executor) decodeBody(r io.Reader, encoding string) (string, error) {
	enc := strings.ToLower(strings.TrimSpace(encoding))
	if enc != "" && enc != "utf-8" && enc != "utf8" {
		decoded, err := charset.NewReaderLabel(enc, r)
		if err == nil {
			r = decoded
		}
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// buildSearchRequest renders the path and inputs for one search path. GET
// requests carry the inputs in the query string; POST requests return them
// as form values.
func buildSearchRequest(definition *IndexerDefinition, searchPath SearchPath, tctx *TemplateContext, baseURL string) (string, url.Values, error) {
	method := searchPath.Method
	if method == "" {
		method = definition.Search.Method
	}
	isPost := strings.EqualFold(method, "post")

	renderedPath := RenderTemplate(searchPath.Path, tctx)

	var searchURL string
	switch {
	case strings.HasPrefix(renderedPath, "http://") || strings.HasPrefix(renderedPath, "https://"):
		searchURL = renderedPath
	default:
		searchURL = strings.TrimSuffix(baseURL, "/")
		// A "?"-led path is a bare query string on the site root and must
		// not get a slash spliced in.
		if !strings.HasPrefix(renderedPath, "/") && !strings.HasPrefix(renderedPath, "?") {
			searchURL += "/"
		}
		searchURL += renderedPath
	}

	inputs := make(map[string]string)
	if searchPath.InheritInputs {
		for k, v := range definition.Search.Inputs {
			inputs[k] = v
		}
	}
	for k, v := range searchPath.Inputs {
		inputs[k] = v
	}

	rendered := url.Values{}
	for k, v := range inputs {
		if value := RenderTemplate(v, tctx); value != "" {
			rendered.Set(k, value)
		}
	}

	if isPost {
		return searchURL, rendered, nil
	}

	if len(rendered) > 0 {
		keys := make([]string, 0, len(rendered))
		for k := range rendered {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		params := make([]string, 0, len(keys))
		for _, k := range keys {
			params = append(params, k+"="+urlEncode(rendered.Get(k)))
		}

		sep := "?"
		if strings.Contains(searchURL, "?") {
			sep = "&"
		}
		searchURL += sep + strings.Join(params, "&")
	}

	return searchURL, url.Values{}, nil
}

// matchErrorSelectors checks the page against the definition's error
// selectors and returns the extracted message on a hit.
func matchErrorSelectors(definition *IndexerDefinition, body string) string {
	if len(definition.Search.Error) == 0 {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return ""
	}

	for _, errSel := range definition.Search.Error {
		found := SelectWithChain(doc.Selection, errSel.Selector).First()
		if found.Length() == 0 {
			continue
		}

		message := strings.TrimSpace(found.Text())
		if errSel.Message != nil {
			ctx := &TemplateContext{Config: map[string]string{}, Result: map[string]string{}}
			if val, ok := extractHTMLField(found, errSel.Message, ctx); ok {
				message = val
			}
		}
		if message != "" {
			return message
		}
	}

	return ""
}

func (e *Executor) parseHTMLResults(definition *IndexerDefinition, body, pageURL string, baseCtx *TemplateContext) ([]*domain.TorrentResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	rowSelector := RenderTemplate(definition.Search.Rows.Selector, baseCtx)
	rows := SelectWithChain(doc.Selection, rowSelector)

	after := definition.Search.Rows.After

	var results []*domain.TorrentResult
	rows.Each(func(i int, row *goquery.Selection) {
		if after > 0 && i < after {
			return
		}

		rowCtx := baseCtx.clone()
		ExtractHTMLFields(row, &definition.Search.Fields, rowCtx)

		if result := BuildTorrentResult(definition, rowCtx, pageURL); result != nil {
			results = append(results, result)
		}
	})

	e.log.Debug().Str("indexer", definition.ID).Int("rows", rows.Length()).Int("results", len(results)).Msg("parsed HTML response")
	return results, nil
}

func (e *Executor) parseJSONResults(definition *IndexerDefinition, body, baseURL string, baseCtx *TemplateContext) ([]*domain.TorrentResult, error) {
	if !gjson.Valid(body) {
		return nil, fmt.Errorf("invalid JSON response")
	}
	root := gjson.Parse(body)

	items := jsonRows(root, definition.Search.Rows.Selector)
	if items == nil {
		e.log.Warn().Str("indexer", definition.ID).Str("selector", definition.Search.Rows.Selector).Msg("JSON rows selector found no array")
		return nil, nil
	}

	rows := items.Array()

	// Some APIs signal an empty result set with a single placeholder row.
	if len(rows) == 1 && rows[0].Get("id").String() == "0" {
		return nil, nil
	}

	attribute := definition.Search.Rows.Attribute

	var results []*domain.TorrentResult
	for _, item := range rows {
		if attribute != "" {
			parent := item
			for _, sub := range item.Get(attribute).Array() {
				if result := e.parseJSONItem(definition, sub, &parent, baseURL, baseCtx); result != nil {
					results = append(results, result)
				}
			}
			continue
		}
		if result := e.parseJSONItem(definition, item, nil, baseURL, baseCtx); result != nil {
			results = append(results, result)
		}
	}

	return results, nil
}

// jsonRows navigates a dot path to the row array. "$" or an empty selector
// means the document root.
func jsonRows(root gjson.Result, selector string) *gjson.Result {
	path := strings.TrimSpace(selector)
	path = strings.TrimPrefix(path, "$")
	path = strings.TrimPrefix(path, ".")

	current := root
	if path != "" {
		current = root.Get(path)
	}
	if !current.IsArray() {
		return nil
	}
	return &current
}

func (e *Executor) parseJSONItem(definition *IndexerDefinition, item gjson.Result, parent *gjson.Result, baseURL string, baseCtx *TemplateContext) *domain.TorrentResult {
	rowCtx := baseCtx.clone()
	ExtractJSONFields(item, parent, &definition.Search.Fields, rowCtx)
	return BuildTorrentResult(definition, rowCtx, baseURL)
}

// clone copies the context so per-row .Result values never leak between
// rows.
func (c *TemplateContext) clone() *TemplateContext {
	result := make(map[string]string, len(c.Result))
	for k, v := range c.Result {
		result[k] = v
	}
	config := make(map[string]string, len(c.Config))
	for k, v := range c.Config {
		config[k] = v
	}
	clone := *c
	clone.Result = result
	clone.Config = config
	return &clone
}

// Download fetches a torrent payload, following the definition's
// multi-step selectors when the link points at a details page instead of
// the file.
func (e *Executor) Download(ctx context.Context, definition *IndexerDefinition, rawURL string) ([]byte, error) {
	downloadURL := rawURL

	if definition.Download != nil && len(definition.Download.Selectors) > 0 {
		resolved, err := e.resolveDownloadLink(ctx, definition, rawURL)
		if err != nil {
			return nil, err
		}
		downloadURL = resolved
	}

	if domain.IsMagnet(downloadURL) {
		return []byte(downloadURL), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", desktopUA)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// resolveDownloadLink fetches the details page and walks the download
// selectors until one yields a link.
func (e *Executor) resolveDownloadLink(ctx context.Context, definition *IndexerDefinition, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", desktopUA)
	req.Header.Set("Accept", htmlAccept)

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch details page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("failed to fetch details page: HTTP %d", resp.StatusCode)
	}

	body, err := e.decodeBody(resp.Body, definition.Encoding)
	if err != nil {
		return "", err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to parse details page: %w", err)
	}

	tctx := &TemplateContext{Config: map[string]string{}, Result: map[string]string{}}

	if before := definition.Download.Before; before != nil && before.PathSelector != nil {
		if path, ok := extractHTMLField(doc.Selection, before.PathSelector, tctx); ok && path != "" {
			e.visitBeforeDownload(ctx, MakeAbsoluteURL(path, definition.SiteLink()))
		}
	}

	for _, selector := range definition.Download.Selectors {
		found := SelectWithChain(doc.Selection, selector.Selector).First()
		if found.Length() == 0 {
			continue
		}

		var value string
		if selector.Attribute != "" {
			value, _ = found.Attr(selector.Attribute)
		} else {
			value = strings.TrimSpace(found.Text())
		}

		if len(selector.Filters) > 0 {
			value = ApplyFilters(value, selector.Filters, tctx)
		}

		if value != "" {
			link := MakeAbsoluteURL(value, definition.SiteLink())
			e.log.Debug().Str("indexer", definition.ID).Str("link", link).Msg("resolved download link")
			return link, nil
		}
	}

	return "", fmt.Errorf("could not extract download link from details page")
}

func (e *Executor) visitBeforeDownload(ctx context.Context, beforeURL string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, beforeURL, nil)
	if err != nil {
		return
	}
	req.Header.Set("User-Agent", desktopUA)

	resp, err := e.client.Do(req)
	if err != nil {
		e.log.Debug().Err(err).Str("url", beforeURL).Msg("before-download request failed")
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
}
