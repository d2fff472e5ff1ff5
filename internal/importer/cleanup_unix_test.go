//go:build unix

package importer_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/sys/unix"

	"ferry/internal/importer"
	"ferry/internal/logging"
	"ferry/internal/testsupport"
)

func TestCleanupKeepsDirectoryWithFIFO(t *testing.T) {
	root := filepath.Join(t.TempDir(), "payload")
	source := filepath.Join(root, "feature.mkv")
	testsupport.WriteFile(t, source, 100)
	fifo := filepath.Join(root, "pipe")
	if err := unix.Mkfifo(fifo, 0o644); err != nil {
		t.Skipf("mkfifo unavailable: %v", err)
	}

	res := importer.Cleanup(context.Background(), logging.NewNop(), source, root)
	if res.RemovedRoot {
		t.Fatalf("unexpected result %#v", res)
	}
	if _, err := os.Lstat(fifo); err != nil {
		t.Fatalf("fifo must survive: %v", err)
	}
}
