// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package native

import (
	"sort"
	"strconv"
	"strings"
)

// torznabCategoryNames is the category vocabulary definitions use in their
// categorymappings cat: values.
var torznabCategoryNames = map[string]int{
	"Console":              1000,
	"Console/NDS":          1010,
	"Console/PSP":          1020,
	"Console/Wii":          1030,
	"Console/XBox":         1040,
	"Console/XBox 360":     1050,
	"Console/Wiiware":      1060,
	"Console/XBox 360 DLC": 1070,
	"Console/PS3":          1080,
	"Console/Other":        1090,
	"Console/3DS":          1110,
	"Console/PS Vita":      1120,
	"Console/WiiU":         1130,
	"Console/XBox One":     1140,
	"Console/PS4":          1180,

	"Movies":         2000,
	"Movies/Foreign": 2010,
	"Movies/Other":   2020,
	"Movies/SD":      2030,
	"Movies/HD":      2040,
	"Movies/UHD":     2045,
	"Movies/BluRay":  2050,
	"Movies/3D":      2060,
	"Movies/DVD":     2070,
	"Movies/WEB-DL":  2080,

	"Audio":           3000,
	"Audio/MP3":       3010,
	"Audio/Video":     3020,
	"Audio/Audiobook": 3030,
	"Audio/Lossless":  3040,
	"Audio/Other":     3050,
	"Audio/Foreign":   3060,

	"PC":                4000,
	"PC/0day":           4010,
	"PC/ISO":            4020,
	"PC/Mac":            4030,
	"PC/Mobile-Other":   4040,
	"PC/Games":          4050,
	"PC/Mobile-iOS":     4060,
	"PC/Mobile-Android": 4070,

	"TV":             5000,
	"TV/WEB-DL":      5010,
	"TV/Foreign":     5020,
	"TV/SD":          5030,
	"TV/HD":          5040,
	"TV/UHD":         5045,
	"TV/Other":       5050,
	"TV/Sport":       5060,
	"TV/Anime":       5070,
	"TV/Documentary": 5080,

	"XXX":          6000,
	"XXX/DVD":      6010,
	"XXX/WMV":      6020,
	"XXX/XviD":     6030,
	"XXX/x264":     6040,
	"XXX/UHD":      6045,
	"XXX/Pack":     6050,
	"XXX/ImageSet": 6060,
	"XXX/Other":    6070,
	"XXX/SD":       6080,
	"XXX/WEB-DL":   6090,

	"Books":           7000,
	"Books/Mags":      7010,
	"Books/EBook":     7020,
	"Books/Comics":    7030,
	"Books/Technical": 7040,
	"Books/Other":     7050,
	"Books/Foreign":   7060,

	"Other":        8000,
	"Other/Misc":   8010,
	"Other/Hashed": 8020,
}

// TorznabCategoryID resolves a category name like "Movies/HD" to its id.
// A bare numeric string resolves to itself when it names a known id.
func TorznabCategoryID(name string) (int, bool) {
	if id, ok := torznabCategoryNames[name]; ok {
		return id, true
	}
	if id, err := strconv.Atoi(name); err == nil {
		for _, known := range torznabCategoryNames {
			if known == id {
				return id, true
			}
		}
	}
	return 0, false
}

// TrackerCategory maps a Torznab category id to the tracker-side value,
// trying an exact match first and then the parent category floor
// (5030 -> 5000).
func (d *IndexerDefinition) TrackerCategory(torznabCat int) (string, bool) {
	for _, m := range d.Caps.CategoryMappings {
		if id, ok := TorznabCategoryID(m.Cat); ok && id == torznabCat {
			return string(m.ID), true
		}
	}

	parent := (torznabCat / 1000) * 1000
	if parent != torznabCat {
		for _, m := range d.Caps.CategoryMappings {
			if id, ok := TorznabCategoryID(m.Cat); ok && id == parent {
				return string(m.ID), true
			}
		}
	}

	return "", false
}

// ResolveCategory maps a tracker-side category value back to a Torznab id:
// mapping id match, then mapping description match, then a literal
// name-or-id lookup.
func (d *IndexerDefinition) ResolveCategory(trackerCat string) (int, bool) {
	for _, m := range d.Caps.CategoryMappings {
		if string(m.ID) == trackerCat {
			return TorznabCategoryID(m.Cat)
		}
	}

	for _, m := range d.Caps.CategoryMappings {
		if string(m.Desc) != "" && strings.EqualFold(string(m.Desc), trackerCat) {
			return TorznabCategoryID(m.Cat)
		}
	}

	return TorznabCategoryID(trackerCat)
}

// ExtractCategories returns the distinct Torznab ids this definition maps
// to, sorted for deterministic caps output.
func (d *IndexerDefinition) ExtractCategories() []int {
	seen := make(map[int]bool)
	var categories []int

	for _, m := range d.Caps.CategoryMappings {
		if id, ok := TorznabCategoryID(m.Cat); ok && !seen[id] {
			seen[id] = true
			categories = append(categories, id)
		}
	}

	sort.Ints(categories)
	return categories
}

// DefaultConfig builds the .Config namespace from setting defaults, plus
// the implicit sitelink key.
func (d *IndexerDefinition) DefaultConfig() map[string]string {
	config := make(map[string]string, len(d.Settings)+1)
	for _, setting := range d.Settings {
		if v := setting.DefaultValue(); v != "" {
			config[setting.Name] = v
		}
	}
	config["sitelink"] = d.SiteLink()
	return config
}
