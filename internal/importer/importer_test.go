package importer_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"ferry/internal/config"
	"ferry/internal/importer"
	"ferry/internal/logging"
	"ferry/internal/notifications"
	"ferry/internal/queue"
	"ferry/internal/services"
	"ferry/internal/testsupport"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingNotifier) has(event notifications.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e == event {
			return true
		}
	}
	return false
}

type countingRefresher struct{ calls atomic.Int32 }

func (c *countingRefresher) Refresh(context.Context) error {
	c.calls.Add(1)
	return nil
}

type fixture struct {
	cfg      *config.Config
	store    *queue.Store
	lib      *queue.LibraryItem
	notifier *recordingNotifier
	media    *countingRefresher
	imp      *importer.Importer
}

func newFixture(t *testing.T, opts ...testsupport.ConfigOption) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t, cfg)
	f := &fixture{
		cfg:      cfg,
		store:    store,
		lib:      testsupport.NewLibraryItem(t, store, "Harbor Lights", "2024-03-15"),
		notifier: &recordingNotifier{},
		media:    &countingRefresher{},
	}
	f.imp = importer.New(config.NewHolder("", cfg), store, logging.NewNop(),
		importer.WithNotifier(f.notifier),
		importer.WithMediaServer(f.media),
	)
	return f
}

// claimed creates an importing item whose agent reported contentPath.
func (f *fixture) claimed(t *testing.T, contentPath string) *queue.Item {
	t.Helper()
	ctx := context.Background()
	item := testsupport.NewQueueItem(t, f.store, f.lib, "qbit", "hash-"+filepath.Base(contentPath), queue.StatusCompleted)
	if err := f.store.SetContentPath(ctx, item.ID, contentPath); err != nil {
		t.Fatalf("SetContentPath: %v", err)
	}
	if ok, err := f.store.ClaimForImport(ctx, item.ID); err != nil || !ok {
		t.Fatalf("ClaimForImport: %v %v", ok, err)
	}
	fetched, err := f.store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	return fetched
}

func (f *fixture) status(t *testing.T, id int64) *queue.Item {
	t.Helper()
	item, err := f.store.GetByID(context.Background(), id)
	if err != nil || item == nil {
		t.Fatalf("GetByID: %v", err)
	}
	return item
}

func downloadDir(cfg *config.Config, name string) string {
	return filepath.Join(testsupport.BaseDir(cfg), "downloads", name)
}

func TestRunImportsFeatureAndCommitsLedger(t *testing.T) {
	f := newFixture(t)
	payload := downloadDir(f.cfg, "Harbor.Lights.2024.03.15.1080p.WEB-DL-GRP")
	testsupport.WriteFile(t, filepath.Join(payload, "Sample", "sample.mkv"), 50)
	testsupport.WriteFile(t, filepath.Join(payload, "feature.mkv"), 4096)
	testsupport.WriteFile(t, filepath.Join(payload, "release.nfo"), 10)
	item := f.claimed(t, payload)

	rec, err := f.imp.Run(context.Background(), item)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := filepath.Join(f.cfg.Media.Roots[0], "Harbor Lights", "Harbor Lights - 2024-03-15 - 1080p WEB-DL.mkv")
	if rec.DestinationPath != want {
		t.Fatalf("destination = %q, want %q", rec.DestinationPath, want)
	}
	info, err := os.Stat(want)
	if err != nil || info.Size() != 4096 {
		t.Fatalf("expected imported feature at %s: %v", want, err)
	}
	if rec.Quality != "1080p WEB-DL" || rec.SizeBytes != 4096 || rec.TransferMode != config.TransferMove {
		t.Fatalf("unexpected record %#v", rec)
	}

	got := f.status(t, item.ID)
	if got.Status != queue.StatusImported || got.ImportedAt == nil {
		t.Fatalf("expected imported item, got %#v", got)
	}
	lib, err := f.store.LibraryItem(context.Background(), f.lib.ID)
	if err != nil || lib.Status != queue.LibraryDownloaded {
		t.Fatalf("expected library item downloaded, got %#v %v", lib, err)
	}
	if _, err := os.Stat(filepath.Join(payload, "Sample", "sample.mkv")); err != nil {
		t.Fatalf("sample should remain in payload: %v", err)
	}
	if !f.notifier.has(notifications.EventImportCompleted) {
		t.Fatal("expected import completed notification")
	}
	if f.media.calls.Load() != 1 {
		t.Fatalf("expected one media server refresh, got %d", f.media.calls.Load())
	}
}

func TestRunCleansEmptyPayloadDirectory(t *testing.T) {
	f := newFixture(t)
	payload := downloadDir(f.cfg, "Harbor.Lights.2024.03.15.720p.HDTV")
	testsupport.WriteFile(t, filepath.Join(payload, "Harbor.Lights.2024.03.15.720p.HDTV.mkv"), 1000)
	if err := os.MkdirAll(filepath.Join(payload, "Subs"), 0o755); err != nil {
		t.Fatal(err)
	}
	item := f.claimed(t, payload)

	if _, err := f.imp.Run(context.Background(), item); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := os.Stat(payload); !os.IsNotExist(err) {
		t.Fatalf("expected payload directory removed, got %v", err)
	}
}

func TestRunAppendsCounterOnCollision(t *testing.T) {
	f := newFixture(t, testsupport.WithTransferMode(config.TransferCopy))
	existing := filepath.Join(f.cfg.Media.Roots[0], "Harbor Lights", "Harbor Lights - 2024-03-15 - 720p.mkv")
	testsupport.WriteFile(t, existing, 5)

	payload := downloadDir(f.cfg, "Harbor.Lights.720p.mkv")
	testsupport.WriteFile(t, payload, 300)
	item := f.claimed(t, payload)

	rec, err := f.imp.Run(context.Background(), item)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := filepath.Join(f.cfg.Media.Roots[0], "Harbor Lights", "Harbor Lights - 2024-03-15 - 720p (1).mkv")
	if rec.DestinationPath != want {
		t.Fatalf("destination = %q, want %q", rec.DestinationPath, want)
	}
	if info, err := os.Stat(existing); err != nil || info.Size() != 5 {
		t.Fatalf("existing file must be untouched: %v", err)
	}
}

func TestRunFailsWhenNoMedia(t *testing.T) {
	f := newFixture(t)
	payload := downloadDir(f.cfg, "Harbor.Lights.Extras")
	testsupport.WriteFile(t, filepath.Join(payload, "info.nfo"), 10)
	item := f.claimed(t, payload)

	_, err := f.imp.Run(context.Background(), item)
	if !errors.Is(err, services.ErrNoMediaFound) {
		t.Fatalf("expected ErrNoMediaFound, got %v", err)
	}
	got := f.status(t, item.ID)
	if got.Status != queue.StatusFailed || got.ErrorMessage == "" {
		t.Fatalf("expected failed item with message, got %#v", got)
	}
	if rec, err := f.store.ImportRecordForItem(context.Background(), item.ID); err != nil || rec != nil {
		t.Fatalf("expected no import record, got %#v %v", rec, err)
	}
	if !f.notifier.has(notifications.EventImportFailed) {
		t.Fatal("expected import failed notification")
	}
}

func TestRunInsufficientSpaceFailsWithoutRecord(t *testing.T) {
	f := newFixture(t)
	f.cfg.Media.MinFreeSpaceMB = 1 << 40
	payload := downloadDir(f.cfg, "Harbor.Lights.1080p.mkv")
	testsupport.WriteFile(t, payload, 100)
	item := f.claimed(t, payload)

	_, err := f.imp.Run(context.Background(), item)
	if !errors.Is(err, services.ErrInsufficientSpace) {
		t.Fatalf("expected ErrInsufficientSpace, got %v", err)
	}
	if _, statErr := os.Stat(payload); statErr != nil {
		t.Fatalf("source must survive a failed import: %v", statErr)
	}
	if !f.notifier.has(notifications.EventRootFallback) {
		t.Fatal("expected root fallback notification")
	}
	if got := f.status(t, item.ID); got.Status != queue.StatusFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
}
