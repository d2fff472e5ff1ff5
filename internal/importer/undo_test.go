package importer_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ferry/internal/config"
	"ferry/internal/importer"
	"ferry/internal/logging"
	"ferry/internal/queue"
	"ferry/internal/testsupport"
	"ferry/internal/transfer"
)

func TestRunRevertsMoveWhenCommitFails(t *testing.T) {
	f := newFixture(t)
	payload := downloadDir(f.cfg, "Harbor.Lights.2024.03.15.1080p.WEB-DL")
	source := filepath.Join(payload, "feature.mkv")
	testsupport.WriteFile(t, source, 2048)
	item := f.claimed(t, payload)

	// An operator failing the item mid-transfer makes the ledger commit lose
	// its importing -> imported edge.
	interfere := transfer.WithFreeSpace(func(string) (uint64, error) {
		if _, err := f.store.MarkFailed(context.Background(), item.ID, "cancelled by operator"); err != nil {
			t.Errorf("MarkFailed: %v", err)
		}
		return 1 << 40, nil
	})
	imp := importer.New(config.NewHolder("", f.cfg), f.store, logging.NewNop(),
		importer.WithNotifier(f.notifier),
		importer.WithMediaServer(f.media),
		importer.WithTransferOptions(interfere),
	)

	if _, err := imp.Run(context.Background(), item); err == nil {
		t.Fatal("expected commit failure")
	}
	if info, err := os.Stat(source); err != nil || info.Size() != 2048 {
		t.Fatalf("expected source restored, got %v", err)
	}
	dest := filepath.Join(f.cfg.Media.Roots[0], "Harbor Lights", "Harbor Lights - 2024-03-15 - 1080p WEB-DL.mkv")
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Fatalf("expected destination removed, got %v", err)
	}
	if got := f.status(t, item.ID); got.Status != queue.StatusFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
	if rec, err := f.store.ImportRecordForItem(context.Background(), item.ID); err != nil || rec != nil {
		t.Fatalf("expected no import record, got %#v %v", rec, err)
	}
	if f.media.calls.Load() != 0 {
		t.Fatalf("media server must not refresh after a failed commit, got %d calls", f.media.calls.Load())
	}
}

func TestRunWarnsOnTitleMismatch(t *testing.T) {
	f := newFixture(t)
	logPath := filepath.Join(t.TempDir(), "ferry.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}
	imp := importer.New(config.NewHolder("", f.cfg), f.store, logger,
		importer.WithNotifier(f.notifier),
		importer.WithMediaServer(f.media),
	)

	payload := downloadDir(f.cfg, "Midnight.Garden.Party.2024.03.15.720p.HDTV.mkv")
	testsupport.WriteFile(t, payload, 512)
	item := f.claimed(t, payload)

	rec, err := imp.Run(context.Background(), item)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(rec.DestinationPath, filepath.Join("Harbor Lights", "Harbor Lights - 2024-03-15")) {
		t.Fatalf("expected library title in destination, got %q", rec.DestinationPath)
	}
	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(content), `"event_type":"title_mismatch"`) {
		t.Fatalf("expected title_mismatch warning, got %s", content)
	}
}
