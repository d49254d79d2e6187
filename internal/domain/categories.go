// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

// Category is a standard Newznab/Torznab category.
type Category struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Categories is the standard Torznab category table, in caps-document order.
var Categories = []Category{
	{1000, "Console", "Console games"},
	{1010, "Console/NDS", "Nintendo DS"},
	{1020, "Console/PSP", "PlayStation Portable"},
	{1030, "Console/Wii", "Nintendo Wii"},
	{1040, "Console/Xbox", "Xbox"},
	{1050, "Console/Xbox360", "Xbox 360"},
	{1060, "Console/Wiiware", "WiiWare"},
	{1070, "Console/Xbox360DLC", "Xbox 360 DLC"},
	{1080, "Console/PS3", "PlayStation 3"},
	{1090, "Console/Other", "Other consoles"},
	{1110, "Console/3DS", "Nintendo 3DS"},
	{1120, "Console/PSVita", "PlayStation Vita"},
	{1130, "Console/WiiU", "Nintendo Wii U"},
	{1140, "Console/XboxOne", "Xbox One"},
	{1180, "Console/PS4", "PlayStation 4"},
	{2000, "Movies", "Movies"},
	{2010, "Movies/Foreign", "Foreign movies"},
	{2020, "Movies/Other", "Other movies"},
	{2030, "Movies/SD", "SD movies"},
	{2040, "Movies/HD", "HD movies"},
	{2045, "Movies/UHD", "4K/UHD movies"},
	{2050, "Movies/BluRay", "BluRay movies"},
	{2060, "Movies/3D", "3D movies"},
	{2070, "Movies/DVD", "DVD movies"},
	{2080, "Movies/WEBDL", "WEB-DL movies"},
	{2090, "Movies/x265", "x265/HEVC movies"},
	{3000, "Audio", "Audio"},
	{3010, "Audio/MP3", "MP3"},
	{3020, "Audio/Video", "Music videos"},
	{3030, "Audio/Audiobook", "Audiobooks"},
	{3040, "Audio/Lossless", "Lossless audio"},
	{3050, "Audio/Other", "Other audio"},
	{3060, "Audio/Foreign", "Foreign audio"},
	{4000, "PC", "PC software and games"},
	{4010, "PC/0day", "0day releases"},
	{4020, "PC/ISO", "ISO images"},
	{4030, "PC/Mac", "Mac software"},
	{4040, "PC/Mobile-Other", "Mobile other"},
	{4050, "PC/Games", "PC games"},
	{4060, "PC/Mobile-iOS", "iOS apps"},
	{4070, "PC/Mobile-Android", "Android apps"},
	{5000, "TV", "TV shows"},
	{5010, "TV/WEB-DL", "WEB-DL TV"},
	{5020, "TV/Foreign", "Foreign TV"},
	{5030, "TV/SD", "SD TV"},
	{5040, "TV/HD", "HD TV"},
	{5045, "TV/UHD", "4K/UHD TV"},
	{5050, "TV/Other", "Other TV"},
	{5060, "TV/Sport", "Sports TV"},
	{5070, "TV/Anime", "Anime"},
	{5080, "TV/Documentary", "Documentaries"},
	{5090, "TV/x265", "x265/HEVC TV"},
	{6000, "XXX", "Adult content"},
	{6010, "XXX/DVD", "Adult DVD"},
	{6020, "XXX/WMV", "Adult WMV"},
	{6030, "XXX/XviD", "Adult XviD"},
	{6040, "XXX/x264", "Adult x264"},
	{6045, "XXX/UHD", "Adult 4K/UHD"},
	{6050, "XXX/Other", "Adult other"},
	{6060, "XXX/ImageSet", "Adult image sets"},
	{6070, "XXX/Packs", "Adult packs"},
	{6080, "XXX/SD", "Adult SD"},
	{6090, "XXX/WEB-DL", "Adult WEB-DL"},
	{7000, "Books", "Books"},
	{7010, "Books/Mags", "Magazines"},
	{7020, "Books/EBook", "E-books"},
	{7030, "Books/Comics", "Comics"},
	{7040, "Books/Technical", "Technical books"},
	{7050, "Books/Other", "Other books"},
	{7060, "Books/Foreign", "Foreign books"},
	{8000, "Other", "Other"},
	{8010, "Other/Misc", "Miscellaneous"},
	{8020, "Other/Hashed", "Hashed releases"},
}

// CategoryByID looks up a standard category.
func CategoryByID(id int) (Category, bool) {
	for _, c := range Categories {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}

// ParentCategory returns the top-level category for an id, e.g. 2045 -> 2000.
func ParentCategory(id int) int {
	return (id / 1000) * 1000
}
