// Package selector picks the payload file to import from a finished download.
package selector

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"ferry/internal/services"
)

// Candidate is the file chosen for import.
type Candidate struct {
	Path string
	Size int64
}

// Select walks path in lexical order and returns the largest regular file
// whose extension is in the allow-list. Ties keep the first file found. A path
// that is itself an allowed file is the only candidate.
func Select(path string, extensions []string) (Candidate, error) {
	allowed := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed[ext] = struct{}{}
	}
	matches := func(name string) bool {
		_, ok := allowed[strings.ToLower(filepath.Ext(name))]
		return ok
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Candidate{}, services.Wrap(services.ErrNoMediaFound, "select", "stat payload", path, err)
		}
		return Candidate{}, fmt.Errorf("stat payload %s: %w", path, err)
	}
	if !info.IsDir() {
		if info.Mode().IsRegular() && matches(path) {
			return Candidate{Path: path, Size: info.Size()}, nil
		}
		return Candidate{}, services.Wrap(services.ErrNoMediaFound, "select", "match payload", path, nil)
	}

	var best Candidate
	found := false
	// WalkDir visits entries in lexical order.
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !d.Type().IsRegular() || !matches(d.Name()) {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		if !found || fi.Size() > best.Size {
			best = Candidate{Path: p, Size: fi.Size()}
			found = true
		}
		return nil
	})
	if err != nil {
		return Candidate{}, fmt.Errorf("walk payload %s: %w", path, err)
	}
	if !found {
		return Candidate{}, services.Wrap(services.ErrNoMediaFound, "select", "walk payload", path, nil)
	}
	return best, nil
}
