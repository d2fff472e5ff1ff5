// Package naming renders library destinations from folder and file templates.
package naming

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"ferry/internal/parser"
	"ferry/internal/textutil"
)

// Values are the token values available to templates.
type Values struct {
	Title        string
	Date         string
	Year         string
	Quality      string
	ReleaseGroup string
	OriginalName string
}

var (
	tokenPattern     = regexp.MustCompile(`\{([A-Za-z]+)\}`)
	doubleSeparator  = regexp.MustCompile(`\s+-(\s+-)+\s+`)
	leadingSeparator = regexp.MustCompile(`^\s*-\s+`)
	trailingSep      = regexp.MustCompile(`\s+-\s*$`)
	emptyBrackets    = regexp.MustCompile(`\(\s*\)|\[\s*\]`)
)

// Resolve picks token values. The library item's title and date win over
// what the release name says.
func Resolve(libraryTitle, libraryDate string, info parser.Info) Values {
	v := Values{
		Title:        strings.TrimSpace(libraryTitle),
		Date:         strings.TrimSpace(libraryDate),
		Quality:      parser.QualityLabel(info),
		ReleaseGroup: info.ReleaseGroup,
		OriginalName: parser.StripExtension(filepath.Base(info.OriginalName)),
	}
	if v.Title == "" {
		v.Title = info.Title
	}
	if v.Date == "" {
		v.Date = info.Date
	}
	switch {
	case len(v.Date) >= 4 && isDigits(v.Date[:4]):
		v.Year = v.Date[:4]
	case info.Year > 0:
		v.Year = strconv.Itoa(info.Year)
	}
	return v
}

func (v Values) lookup(token string) string {
	switch strings.ToLower(token) {
	case "title":
		return v.Title
	case "date":
		return v.Date
	case "year":
		return v.Year
	case "quality":
		return v.Quality
	case "releasegroup":
		return v.ReleaseGroup
	case "originalname":
		return v.OriginalName
	default:
		return ""
	}
}

// Render substitutes tokens in template and returns one sanitized path
// segment. Unknown or empty tokens render as nothing and the separators
// around them are dropped.
func Render(template string, values Values) string {
	out := tokenPattern.ReplaceAllStringFunc(template, func(match string) string {
		return values.lookup(match[1 : len(match)-1])
	})
	out = emptyBrackets.ReplaceAllString(out, "")
	out = doubleSeparator.ReplaceAllString(out, " - ")
	out = leadingSeparator.ReplaceAllString(out, "")
	out = trailingSep.ReplaceAllString(out, "")
	return textutil.SanitizeFileName(out)
}

// Destination renders the folder and file templates under root and appends
// ext. An empty file name falls back to the original payload name.
func Destination(root, folderTemplate, fileTemplate string, values Values, ext string) (string, error) {
	if strings.TrimSpace(root) == "" {
		return "", errors.New("destination root is empty")
	}
	file := Render(fileTemplate, values)
	if file == "" {
		file = textutil.SanitizeFileName(values.OriginalName)
	}
	if file == "" {
		return "", errors.New("destination file name is empty")
	}
	dir := root
	if folder := Render(folderTemplate, values); folder != "" {
		dir = filepath.Join(root, folder)
	}
	return filepath.Join(dir, file+ext), nil
}

// Unique returns path when nothing exists there, otherwise the first free
// "name (n).ext" sibling counting from 1.
func Unique(path string) (string, error) {
	return UniqueFunc(path, nil)
}

// UniqueFunc is Unique that also skips any candidate reserved reports as held
// by another writer that has not created its file yet.
func UniqueFunc(path string, reserved func(string) bool) (string, error) {
	free := func(candidate string) (bool, error) {
		if reserved != nil && reserved(candidate) {
			return false, nil
		}
		return available(candidate)
	}
	ok, err := free(path)
	if err != nil || ok {
		return path, err
	}
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s (%d)%s", stem, n, ext)
		ok, err := free(candidate)
		if err != nil {
			return "", err
		}
		if ok {
			return candidate, nil
		}
	}
}

func available(path string) (bool, error) {
	_, err := os.Lstat(path)
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, fs.ErrNotExist):
		return true, nil
	default:
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
