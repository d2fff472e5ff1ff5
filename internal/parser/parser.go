// Package parser extracts title, date and quality hints from release names.
package parser

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"ferry/internal/textutil"
)

// Info is what a release name reveals about its payload.
type Info struct {
	Title        string
	Date         string
	Year         int
	Resolution   string
	Source       string
	ReleaseGroup string
	OriginalName string
}

var (
	datePattern       = regexp.MustCompile(`\b((?:19|20)\d{2})[.\-_ ](\d{2})[.\-_ ](\d{2})\b`)
	yearPattern       = regexp.MustCompile(`\b((?:19|20)\d{2})\b`)
	resolutionPattern = regexp.MustCompile(`(?i)\b(2160p|1080p|720p|576p|480p|4k|uhd)\b`)
	sourcePattern     = regexp.MustCompile(`(?i)\b(web[.\-_ ]?dl|webrip|web|blu[.\-_ ]?ray|bdrip|remux|hdtv|dvdrip|dvd)\b`)
	groupPattern      = regexp.MustCompile(`-([A-Za-z0-9]+)$`)
	bracketPattern    = regexp.MustCompile(`^\[[^\]]*\]\s*`)
)

var knownExtensions = map[string]struct{}{
	".mkv": {}, ".mp4": {}, ".avi": {}, ".m4v": {}, ".ts": {}, ".mov": {}, ".wmv": {},
	".mpg": {}, ".mpeg": {}, ".webm": {}, ".iso": {}, ".nzb": {}, ".torrent": {},
}

var sourceNames = map[string]string{
	"webdl":  "WEB-DL",
	"web":    "WEB-DL",
	"webrip": "WEBRip",
	"bluray": "BluRay",
	"bdrip":  "BluRay",
	"remux":  "Remux",
	"hdtv":   "HDTV",
	"dvdrip": "DVD",
	"dvd":    "DVD",
}

// Parse reads a file or folder name. It never fails; fields it cannot find
// stay empty.
func Parse(name string) Info {
	info := Info{OriginalName: name}
	base := StripExtension(strings.TrimSpace(filepath.Base(name)))
	base = bracketPattern.ReplaceAllString(base, "")

	// Dots and underscores become spaces so word boundaries work; indexes
	// into normalized and base line up.
	normalized := strings.NewReplacer(".", " ", "_", " ").Replace(base)
	cut := len(normalized)
	mark := func(idx []int) {
		if idx != nil && idx[0] < cut {
			cut = idx[0]
		}
	}

	if m := datePattern.FindStringSubmatchIndex(normalized); m != nil {
		y, mo, d := normalized[m[2]:m[3]], normalized[m[4]:m[5]], normalized[m[6]:m[7]]
		if validDate(mo, d) {
			info.Date = fmt.Sprintf("%s-%s-%s", y, mo, d)
			info.Year, _ = strconv.Atoi(y)
			mark(m)
		}
	}
	if info.Year == 0 {
		if m := yearPattern.FindStringSubmatchIndex(normalized); m != nil && m[0] > 0 {
			info.Year, _ = strconv.Atoi(normalized[m[2]:m[3]])
			mark(m)
		}
	}
	if m := resolutionPattern.FindStringSubmatchIndex(normalized); m != nil {
		info.Resolution = canonicalResolution(normalized[m[2]:m[3]])
		mark(m)
	}

	// Sources are only trusted after the first date or quality marker so
	// words like "Web" inside a title survive.
	from := 0
	if cut < len(normalized) {
		from = cut
	}
	var sourceSpan []int
	if m := sourcePattern.FindStringSubmatchIndex(normalized[from:]); m != nil {
		sourceSpan = []int{m[2] + from, m[3] + from}
		info.Source = canonicalSource(normalized[sourceSpan[0]:sourceSpan[1]])
		mark(sourceSpan)
	}

	if m := groupPattern.FindStringSubmatchIndex(base); m != nil {
		insideSource := sourceSpan != nil && m[2] < sourceSpan[1] && m[3] > sourceSpan[0]
		if !insideSource && !resolutionPattern.MatchString(base[m[2]:m[3]]) {
			info.ReleaseGroup = base[m[2]:m[3]]
			if m[0] < cut {
				cut = m[0]
			}
		}
	}

	title := strings.Trim(textutil.CollapseSpaces(normalized[:cut]), " -([")
	if title != "" {
		info.Title = cases.Title(language.English).String(title)
	}
	return info
}

// QualityLabel renders resolution and source as one label, e.g. "1080p WEB-DL".
func QualityLabel(info Info) string {
	parts := make([]string, 0, 2)
	if info.Resolution != "" {
		parts = append(parts, info.Resolution)
	}
	if info.Source != "" {
		parts = append(parts, info.Source)
	}
	return strings.Join(parts, " ")
}

// StripExtension removes a trailing media or container extension. Other
// dotted suffixes such as ".720p" or ".2024" are part of the name.
func StripExtension(name string) string {
	ext := filepath.Ext(name)
	if _, ok := knownExtensions[strings.ToLower(ext)]; ok {
		return strings.TrimSuffix(name, ext)
	}
	return name
}

func validDate(month, day string) bool {
	m, err := strconv.Atoi(month)
	if err != nil || m < 1 || m > 12 {
		return false
	}
	d, err := strconv.Atoi(day)
	return err == nil && d >= 1 && d <= 31
}

func canonicalResolution(raw string) string {
	switch strings.ToLower(raw) {
	case "4k", "uhd":
		return "2160p"
	default:
		return strings.ToLower(raw)
	}
}

func canonicalSource(raw string) string {
	key := strings.NewReplacer(".", "", "-", "", "_", "", " ", "").Replace(strings.ToLower(raw))
	if name, ok := sourceNames[key]; ok {
		return name
	}
	return raw
}
