// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package native implements the declarative indexer engine: Cardigann-style
// YAML definitions describing how to search a tracker site, and the
// machinery that renders requests, scrapes responses, and builds results
// from them.
package native

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// IndexerDefinition is one parsed definition file.
type IndexerDefinition struct {
	ID           string   `yaml:"id"`
	Name         string   `yaml:"name"`
	Description  string   `yaml:"description"`
	Language     string   `yaml:"language"`
	Type         string   `yaml:"type"`
	Encoding     string   `yaml:"encoding"`
	Follow       bool     `yaml:"followredirect"`
	RequestDelay float64  `yaml:"requestDelay"`
	Links        []string `yaml:"links"`
	LegacyLinks  []string `yaml:"legacylinks"`

	Caps     Caps      `yaml:"caps"`
	Login    *Login    `yaml:"login"`
	Settings []Setting `yaml:"settings"`
	Search   Search    `yaml:"search"`
	Download *Download `yaml:"download"`
}

// SiteLink returns the primary base URL for the tracker.
func (d *IndexerDefinition) SiteLink() string {
	if len(d.Links) == 0 {
		return ""
	}
	link := d.Links[0]
	if !strings.HasSuffix(link, "/") {
		link += "/"
	}
	return link
}

// Validate reports the first structural problem a definition has.
func (d *IndexerDefinition) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("definition has no id")
	}
	if d.Name == "" {
		return fmt.Errorf("definition %q has no name", d.ID)
	}
	if len(d.Links) == 0 {
		return fmt.Errorf("definition %q has no links", d.ID)
	}
	if d.Search.Rows.Selector == "" && !d.Search.IsJSON() {
		return fmt.Errorf("definition %q has no rows selector", d.ID)
	}
	return nil
}

// Setting is a user-configurable input declared by the definition.
type Setting struct {
	Name    string            `yaml:"name"`
	Type    string            `yaml:"type"`
	Label   string            `yaml:"label"`
	Default FlexString        `yaml:"default"`
	Options map[string]string `yaml:"options"`
}

// DefaultValue resolves the effective default for a setting, falling back to
// type-appropriate zero values.
func (s Setting) DefaultValue() string {
	if s.Default != "" {
		return string(s.Default)
	}
	switch s.Type {
	case "checkbox":
		return "false"
	default:
		return ""
	}
}

// Caps describes what the tracker can serve.
type Caps struct {
	CategoryMappings []CategoryMapping   `yaml:"categorymappings"`
	Modes            map[string][]string `yaml:"modes"`
	AllowRawSearch   bool                `yaml:"allowrawsearch"`
}

// CategoryMapping maps one tracker-side category to a Torznab category.
type CategoryMapping struct {
	ID      FlexString `yaml:"id"`
	Cat     string     `yaml:"cat"`
	Desc    FlexString `yaml:"desc"`
	Default bool       `yaml:"default"`
}

// Login is parsed for completeness; definitions that require authenticated
// sessions are surfaced to the operator but the flow itself is not driven
// by this engine.
type Login struct {
	Path         string            `yaml:"path"`
	Method       string            `yaml:"method"`
	Inputs       map[string]string `yaml:"inputs"`
	Form         string            `yaml:"form"`
	SubmitButton string            `yaml:"submitbutton"`
	Cookies      []string          `yaml:"cookies"`
	Test         *LoginTest        `yaml:"test"`
}

// LoginTest probes whether a session is still valid.
type LoginTest struct {
	Path     string `yaml:"path"`
	Selector string `yaml:"selector"`
}

// Search is the definition's search block.
type Search struct {
	Paths                []SearchPath        `yaml:"paths"`
	Path                 string              `yaml:"path"`
	Method               string              `yaml:"method"`
	Headers              map[string][]string `yaml:"headers"`
	Inputs               map[string]string   `yaml:"inputs"`
	KeywordsFilters      []Filter            `yaml:"keywordsfilters"`
	Error                []ErrorSelector     `yaml:"error"`
	PreprocessingFilters []Filter            `yaml:"preprocessingfilters"`
	Rows                 RowSelector         `yaml:"rows"`
	Fields               Fields              `yaml:"fields"`
}

// AllPaths normalizes the single-path shorthand into the paths list.
func (s *Search) AllPaths() []SearchPath {
	if len(s.Paths) > 0 {
		return s.Paths
	}
	if s.Path != "" {
		return []SearchPath{{Path: s.Path, InheritInputs: true}}
	}
	return nil
}

// IsJSON reports whether any search path expects a JSON response.
func (s *Search) IsJSON() bool {
	for _, p := range s.AllPaths() {
		if p.Response != nil && p.Response.Type == "json" {
			return true
		}
	}
	return false
}

// SearchPath is one request template within the search block.
type SearchPath struct {
	Path           string            `yaml:"path"`
	Method         string            `yaml:"method"`
	FollowRedirect *bool             `yaml:"followredirect"`
	Response       *ResponseConfig   `yaml:"response"`
	Categories     []FlexString      `yaml:"categories"`
	Inputs         map[string]string `yaml:"inputs"`
	InheritInputs  bool              `yaml:"inheritinputs"`
}

// UnmarshalYAML applies the inheritinputs=true default before decoding.
func (p *SearchPath) UnmarshalYAML(node *yaml.Node) error {
	type plain SearchPath
	raw := plain{InheritInputs: true}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*p = SearchPath(raw)
	return nil
}

// ResponseConfig selects the response parser for a path.
type ResponseConfig struct {
	Type string `yaml:"type"`
}

// ErrorSelector matches tracker-reported error blocks in a response.
type ErrorSelector struct {
	Selector string         `yaml:"selector"`
	Message  *SelectorBlock `yaml:"message"`
}

// RowSelector locates result rows in a response.
type RowSelector struct {
	Selector    string         `yaml:"selector"`
	Attribute   string         `yaml:"attribute"`
	Remove      string         `yaml:"remove"`
	Filters     []Filter       `yaml:"filters"`
	After       int            `yaml:"after"`
	Multiple    bool           `yaml:"multiple"`
	MissingIsNo bool           `yaml:"missingAttributeEqualsNoResults"`
	Count       *CountSelector `yaml:"count"`
	DateHeaders *SelectorBlock `yaml:"dateheaders"`
}

// CountSelector reads a result count from the page.
type CountSelector struct {
	Selector string `yaml:"selector"`
}

// Download configures multi-step torrent file resolution.
type Download struct {
	Selectors []DownloadSelector `yaml:"selectors"`
	InfoHash  *SelectorBlock     `yaml:"infohash"`
	Method    string             `yaml:"method"`
	Before    *BeforeDownload    `yaml:"before"`
}

// DownloadSelector is one candidate extraction step on the download page.
type DownloadSelector struct {
	Selector  string   `yaml:"selector"`
	Attribute string   `yaml:"attribute"`
	Filters   []Filter `yaml:"filters"`
}

// BeforeDownload is a request issued before fetching the torrent payload.
type BeforeDownload struct {
	PathSelector *SelectorBlock `yaml:"pathselector"`
}

// Fields declares how each result field is extracted from a row. Unknown
// keys land in Extra and participate in multi-pass template resolution.
type Fields struct {
	Category     *SelectorBlock
	CategoryDesc *SelectorBlock
	Title        *SelectorBlock
	Details      *SelectorBlock
	Download     *SelectorBlock
	Magnet       *SelectorBlock
	InfoHash     *SelectorBlock
	Size         *SelectorBlock
	Date         *SelectorBlock
	Seeders      *SelectorBlock
	Leechers     *SelectorBlock
	Grabs        *SelectorBlock
	Files        *SelectorBlock
	Poster       *SelectorBlock
	IMDBID       *SelectorBlock
	IMDB         *SelectorBlock
	TMDBID       *SelectorBlock
	TVDBID       *SelectorBlock
	TVMazeID     *SelectorBlock
	TraktID      *SelectorBlock
	DoubanID     *SelectorBlock
	RageID       *SelectorBlock
	Genre        *SelectorBlock
	Description  *SelectorBlock
	DownloadVolumeFactor *SelectorBlock
	UploadVolumeFactor   *SelectorBlock
	MinimumRatio         *SelectorBlock
	MinimumSeedTime      *SelectorBlock

	// Extra holds non-standard fields in declaration order.
	Extra []ExtraField
}

// ExtraField is a non-standard field declaration.
type ExtraField struct {
	Name     string
	Selector *SelectorBlock
}

var standardFieldNames = map[string]bool{
	"category": true, "categorydesc": true, "title": true, "details": true,
	"download": true, "magnet": true, "infohash": true, "size": true,
	"date": true, "seeders": true, "leechers": true, "grabs": true,
	"files": true, "poster": true, "imdbid": true, "imdb": true,
	"tmdbid": true, "tvdbid": true, "tvmazeid": true, "traktid": true,
	"doubanid": true, "rageid": true, "genre": true, "description": true,
	"downloadvolumefactor": true, "uploadvolumefactor": true,
	"minimumratio": true, "minimumseedtime": true,
}

// UnmarshalYAML splits standard fields from extras while keeping extra
// declaration order, which regular struct decoding cannot do.
func (f *Fields) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("fields: expected mapping, got %v", node.Kind)
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valNode := node.Content[i], node.Content[i+1]
		name := keyNode.Value

		block := &SelectorBlock{}
		if err := valNode.Decode(block); err != nil {
			return fmt.Errorf("fields: field %q: %w", name, err)
		}

		switch name {
		case "category":
			f.Category = block
		case "categorydesc":
			f.CategoryDesc = block
		case "title":
			f.Title = block
		case "details":
			f.Details = block
		case "download":
			f.Download = block
		case "magnet":
			f.Magnet = block
		case "infohash":
			f.InfoHash = block
		case "size":
			f.Size = block
		case "date":
			f.Date = block
		case "seeders":
			f.Seeders = block
		case "leechers":
			f.Leechers = block
		case "grabs":
			f.Grabs = block
		case "files":
			f.Files = block
		case "poster":
			f.Poster = block
		case "imdbid":
			f.IMDBID = block
		case "imdb":
			f.IMDB = block
		case "tmdbid":
			f.TMDBID = block
		case "tvdbid":
			f.TVDBID = block
		case "tvmazeid":
			f.TVMazeID = block
		case "traktid":
			f.TraktID = block
		case "doubanid":
			f.DoubanID = block
		case "rageid":
			f.RageID = block
		case "genre":
			f.Genre = block
		case "description":
			f.Description = block
		case "downloadvolumefactor":
			f.DownloadVolumeFactor = block
		case "uploadvolumefactor":
			f.UploadVolumeFactor = block
		case "minimumratio":
			f.MinimumRatio = block
		case "minimumseedtime":
			f.MinimumSeedTime = block
		default:
			f.Extra = append(f.Extra, ExtraField{Name: name, Selector: block})
		}
	}

	return nil
}

// SelectorBlock is the permissive selector form. A YAML scalar decodes as a
// bare selector (string), a constant (int), or an empty block (bool/null);
// a mapping decodes field by field. Validation happens at use time, not at
// parse time.
type SelectorBlock struct {
	Selector  string
	Attribute string
	Case      []CaseClause
	Text      string
	Filters   []Filter
	Remove    string
	Optional  bool
	Default   string
}

// CaseClause is one entry of a case map, in declaration order.
type CaseClause struct {
	Selector string
	Value    string
}

// IsZero reports whether the block carries nothing usable.
func (s *SelectorBlock) IsZero() bool {
	return s == nil || (s.Selector == "" && s.Text == "" && s.Default == "")
}

// TextOnly reports whether the block is a computed template with no
// selector, which defers it to the later extraction passes.
func (s *SelectorBlock) TextOnly() bool {
	return s != nil && s.Selector == "" && s.Text != ""
}

func (s *SelectorBlock) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		switch node.Tag {
		case "!!str":
			s.Selector = node.Value
		case "!!int", "!!float":
			s.Text = node.Value
		case "!!bool", "!!null":
			// nothing usable; rejected at use time if required
		default:
			s.Selector = node.Value
		}
		return nil

	case yaml.MappingNode:
		var raw struct {
			Selector  FlexString `yaml:"selector"`
			Attribute FlexString `yaml:"attribute"`
			Case      *yaml.Node `yaml:"case"`
			Text      FlexString `yaml:"text"`
			Filters   []Filter   `yaml:"filters"`
			Remove    FlexString `yaml:"remove"`
			Optional  bool       `yaml:"optional"`
			Default   FlexString `yaml:"default"`
		}
		if err := node.Decode(&raw); err != nil {
			return err
		}

		s.Selector = string(raw.Selector)
		s.Attribute = string(raw.Attribute)
		s.Text = string(raw.Text)
		s.Filters = raw.Filters
		s.Remove = string(raw.Remove)
		s.Optional = raw.Optional
		s.Default = string(raw.Default)

		if raw.Case != nil && raw.Case.Kind == yaml.MappingNode {
			for i := 0; i+1 < len(raw.Case.Content); i += 2 {
				s.Case = append(s.Case, CaseClause{
					Selector: raw.Case.Content[i].Value,
					Value:    raw.Case.Content[i+1].Value,
				})
			}
		}
		return nil

	default:
		return fmt.Errorf("selector: expected scalar or mapping, got kind %v", node.Kind)
	}
}

// Filter is one step of a value pipeline.
type Filter struct {
	Name string     `yaml:"name"`
	Args FilterArgs `yaml:"args"`
}

// FilterArgs normalizes scalar, sequence, and absent argument forms into a
// string list.
type FilterArgs []string

func (a *FilterArgs) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			*a = nil
			return nil
		}
		*a = FilterArgs{node.Value}
		return nil
	case yaml.SequenceNode:
		args := make(FilterArgs, 0, len(node.Content))
		for _, item := range node.Content {
			args = append(args, item.Value)
		}
		*a = args
		return nil
	default:
		return fmt.Errorf("filter args: expected scalar or sequence, got kind %v", node.Kind)
	}
}

// First returns the first argument or empty.
func (a FilterArgs) First() string {
	if len(a) == 0 {
		return ""
	}
	return a[0]
}

// Second returns the second argument or empty.
func (a FilterArgs) Second() string {
	if len(a) < 2 {
		return ""
	}
	return a[1]
}

// FlexString decodes any YAML scalar as a string. Booleans and explicit
// nulls decode as empty; zero decodes as empty to match how definitions use
// 0 as "unset".
type FlexString string

func (f *FlexString) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("expected scalar, got kind %v", node.Kind)
	}
	switch node.Tag {
	case "!!bool", "!!null":
		*f = ""
	case "!!int":
		if node.Value == "0" {
			*f = ""
		} else {
			*f = FlexString(node.Value)
		}
	default:
		*f = FlexString(node.Value)
	}
	return nil
}
