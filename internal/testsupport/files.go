package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteFile creates path with exactly size bytes (at least one). The file
// is sparse beyond a short marker so large media fixtures stay cheap.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	size = max(size, 1)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	marker := []byte(filepath.Base(path))
	if int64(len(marker)) > size {
		marker = marker[:size]
	}
	if err := os.WriteFile(path, marker, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	if err := os.Truncate(path, size); err != nil {
		t.Fatalf("size %s: %v", path, err)
	}
}
