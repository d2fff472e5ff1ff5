package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"ferry/internal/config"
	"ferry/internal/fileutil"
	"ferry/internal/logging"
	"ferry/internal/naming"
	"ferry/internal/notifications"
	"ferry/internal/parser"
	"ferry/internal/queue"
	"ferry/internal/rootfolder"
	"ferry/internal/selector"
	"ferry/internal/services"
	"ferry/internal/services/jellyfin"
	"ferry/internal/textutil"
	"ferry/internal/transfer"
)

// titleMismatchThreshold is the similarity below which a parsed release title
// is reported as not matching the library title.
const titleMismatchThreshold = 0.5

// Settings supplies the configuration snapshot for each run.
type Settings interface {
	Current() *config.Config
}

// Importer runs imports against the queue store.
type Importer struct {
	settings        Settings
	store           *queue.Store
	logger          *slog.Logger
	notifier        notifications.Service
	mediaServer     jellyfin.Service
	rootOptions     []rootfolder.Option
	transferOptions []transfer.Option
	destinations    *reservations
	remove          func(path string) error
}

// Option customizes an Importer.
type Option func(*Importer)

// WithNotifier replaces the notifier built from configuration.
func WithNotifier(n notifications.Service) Option {
	return func(im *Importer) { im.notifier = n }
}

// WithMediaServer replaces the Jellyfin refresher built from configuration.
func WithMediaServer(s jellyfin.Service) Option {
	return func(im *Importer) { im.mediaServer = s }
}

// WithRootOptions passes options to the root selector of every run.
func WithRootOptions(opts ...rootfolder.Option) Option {
	return func(im *Importer) { im.rootOptions = append(im.rootOptions, opts...) }
}

// WithTransferOptions passes options to the transfer engine of every run.
func WithTransferOptions(opts ...transfer.Option) Option {
	return func(im *Importer) { im.transferOptions = append(im.transferOptions, opts...) }
}

// New constructs an importer.
func New(settings Settings, store *queue.Store, logger *slog.Logger, opts ...Option) *Importer {
	im := &Importer{
		settings:     settings,
		store:        store,
		logger:       logging.NewComponentLogger(logger, "importer"),
		destinations: newReservations(),
		remove:       os.Remove,
	}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// run holds the per-import snapshot of settings and collaborators.
type run struct {
	cfg         *config.Config
	logger      *slog.Logger
	notifier    notifications.Service
	mediaServer jellyfin.Service
}

func (im *Importer) newRun(ctx context.Context) *run {
	cfg := im.settings.Current()
	r := &run{
		cfg:         cfg,
		logger:      logging.WithContext(ctx, im.logger),
		notifier:    im.notifier,
		mediaServer: im.mediaServer,
	}
	if r.notifier == nil {
		r.notifier = notifications.NewService(cfg.Notifications)
	}
	if r.mediaServer == nil {
		r.mediaServer = jellyfin.NewConfiguredService(cfg.Jellyfin)
	}
	return r
}

// Run imports an item that the caller has already claimed (status importing).
// On failure the item is marked failed and the error returned.
func (im *Importer) Run(ctx context.Context, item *queue.Item) (*queue.ImportRecord, error) {
	if item == nil {
		return nil, errors.New("import item is nil")
	}
	ctx = services.WithStage(services.WithItemID(ctx, item.ID), "import")
	r := im.newRun(ctx)

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go im.heartbeatLoop(hbCtx, &hbWG, item.ID, time.Duration(r.cfg.Workflow.HeartbeatInterval)*time.Second)

	rec, err := im.execute(ctx, r, item)
	stopHeartbeat()
	hbWG.Wait()

	if err != nil {
		im.fail(ctx, r, item, err)
		return nil, err
	}
	return rec, nil
}

func (im *Importer) execute(ctx context.Context, r *run, item *queue.Item) (*queue.ImportRecord, error) {
	lib, err := im.store.LibraryItem(ctx, item.LibraryItemID)
	if err != nil {
		return nil, fmt.Errorf("load library item: %w", err)
	}
	if lib == nil {
		return nil, services.Wrap(services.ErrNotFound, "import", "load library item", fmt.Sprintf("library item %d", item.LibraryItemID), nil)
	}

	payloadRoot := strings.TrimSpace(item.ContentPath)
	if payloadRoot == "" {
		return nil, services.Wrap(services.ErrNoMediaFound, "import", "locate payload", "agent reported no content path", nil)
	}
	candidate, err := selector.Select(payloadRoot, r.cfg.Media.Extensions)
	if err != nil {
		return nil, err
	}
	r.logger.Info("payload selected",
		logging.String("source", candidate.Path),
		logging.Int64("size_bytes", candidate.Size),
		logging.String(logging.FieldEventType, "payload_selected"),
	)

	info := parseCandidate(candidate.Path, payloadRoot)
	im.checkTitle(r, lib.Title, info.Title)

	values := naming.Resolve(lib.Title, lib.EventDate, info)
	roots := rootfolder.NewSelector(im.store, im.logger, im.rootOptions...)
	choice, err := roots.Select(ctx, r.cfg.Media.Roots, uint64(candidate.Size), r.cfg.Media.MinFreeSpaceBytes())
	if err != nil {
		return nil, err
	}
	if choice.Fallback {
		im.publish(ctx, r, notifications.EventRootFallback, notifications.Payload{"title": values.Title, "root": choice.Path})
	}

	planned, err := naming.Destination(choice.Path, r.cfg.Media.FolderTemplate, r.cfg.Media.FileTemplate, values, strings.ToLower(filepath.Ext(candidate.Path)))
	if err != nil {
		return nil, services.Wrap(services.ErrTransferFailure, "import", "build destination", "", err)
	}

	engine := transfer.NewEngine(r.cfg.Media, r.cfg.Permissions, im.logger, im.transferOptions...)
	var (
		dest   string
		result transfer.Result
	)
	for attempt := 1; ; attempt++ {
		dest, err = im.destinations.reserve(planned)
		if err != nil {
			return nil, services.Wrap(services.ErrTransferFailure, "import", "resolve collision", planned, err)
		}
		result, err = im.transferTo(ctx, engine, r, item.ID, candidate, values.Quality, dest)
		im.destinations.release(dest)
		if err == nil {
			break
		}
		if !errors.Is(err, transfer.ErrDestinationTaken) || attempt == destinationAttempts {
			return nil, err
		}
		r.logger.Info("destination taken, choosing next name",
			logging.String("destination", dest),
			logging.Int("attempt", attempt),
			logging.String(logging.FieldEventType, "destination_retry"),
		)
	}

	rec := &queue.ImportRecord{
		QueueItemID:     item.ID,
		LibraryItemID:   lib.ID,
		SourcePath:      candidate.Path,
		DestinationPath: dest,
		Quality:         values.Quality,
		SizeBytes:       candidate.Size,
		Decision:        queue.DecisionApproved,
		TransferMode:    result.Mode,
	}
	if err := im.store.CommitImport(ctx, rec); err != nil {
		im.undoTransfer(r, result.Mode, candidate.Path, dest)
		return nil, fmt.Errorf("commit import: %w", err)
	}

	r.logger.Info("import committed",
		logging.String("destination", dest),
		logging.String("quality", values.Quality),
		logging.String("mode", result.Mode),
		logging.Int64("record_id", rec.ID),
		logging.String(logging.FieldEventType, "import_committed"),
	)

	if r.cfg.Media.CleanupSource {
		Cleanup(ctx, r.logger, candidate.Path, payloadRoot, im.protectedPaths(r.cfg)...)
	}
	if err := r.mediaServer.Refresh(ctx); err != nil {
		logging.WarnWithContext(r.logger, "media server refresh failed", "jellyfin_refresh_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check jellyfin.url and jellyfin.api_key"),
			logging.String(logging.FieldImpact, "new file appears after the next scheduled scan"),
		)
	}
	im.publish(ctx, r, notifications.EventImportCompleted, notifications.Payload{
		"title":       values.Title,
		"quality":     values.Quality,
		"destination": dest,
	})
	return rec, nil
}

// transferTo records dest as the item's import target and places the payload
// there.
func (im *Importer) transferTo(ctx context.Context, engine *transfer.Engine, r *run, itemID int64, candidate selector.Candidate, quality, dest string) (transfer.Result, error) {
	target := queue.ImportTarget{Source: candidate.Path, Destination: dest, Size: candidate.Size, Quality: quality}
	if err := im.store.RecordImportTarget(ctx, itemID, target); err != nil {
		return transfer.Result{}, err
	}
	return engine.Transfer(ctx, transfer.Request{
		Source:      candidate.Path,
		Destination: dest,
		Mode:        r.cfg.Media.TransferMode,
		Size:        candidate.Size,
	})
}

// parseCandidate parses the selected file name and fills gaps from the
// payload folder name, which often carries the full release name.
func parseCandidate(candidatePath, payloadRoot string) parser.Info {
	info := parser.Parse(filepath.Base(candidatePath))
	if payloadRoot == candidatePath {
		return info
	}
	folder := parser.Parse(filepath.Base(payloadRoot))
	if info.Title == "" {
		info.Title = folder.Title
	}
	if info.Date == "" {
		info.Date = folder.Date
	}
	if info.Year == 0 {
		info.Year = folder.Year
	}
	if info.Resolution == "" {
		info.Resolution = folder.Resolution
	}
	if info.Source == "" {
		info.Source = folder.Source
	}
	if info.ReleaseGroup == "" {
		info.ReleaseGroup = folder.ReleaseGroup
	}
	return info
}

func (im *Importer) checkTitle(r *run, libraryTitle, parsedTitle string) {
	if strings.TrimSpace(libraryTitle) == "" || strings.TrimSpace(parsedTitle) == "" {
		return
	}
	score := textutil.TitleSimilarity(libraryTitle, parsedTitle)
	if score >= titleMismatchThreshold {
		return
	}
	logging.WarnWithContext(r.logger, "release title does not match library title", "title_mismatch",
		logging.String("library_title", libraryTitle),
		logging.String("parsed_title", parsedTitle),
		logging.String("similarity", fmt.Sprintf("%.2f", score)),
		logging.String(logging.FieldErrorHint, "confirm the grab was for the right library item"),
		logging.String(logging.FieldImpact, "file is imported under the library title"),
	)
}

// undoTransfer reverses a transfer whose ledger commit failed so no library
// file exists without a record.
func (im *Importer) undoTransfer(r *run, mode, source, dest string) {
	var err error
	switch mode {
	case config.TransferMove:
		if _, statErr := os.Stat(source); !errors.Is(statErr, os.ErrNotExist) {
			err = os.Remove(dest)
			break
		}
		if err = os.Rename(dest, source); err != nil {
			if _, err = fileutil.CopyFile(dest, source, r.cfg.Media.CopyBufferBytes()); err == nil {
				err = os.Remove(dest)
			}
		}
	default:
		err = os.Remove(dest)
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.WarnWithContext(r.logger, "transfer not reverted after failed commit", "import_revert_failed",
			logging.String("source", source),
			logging.String("destination", dest),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove or move the destination file manually"),
			logging.String(logging.FieldImpact, "library holds a file with no import record"),
		)
	}
}

func (im *Importer) fail(ctx context.Context, r *run, item *queue.Item, err error) {
	message := strings.TrimSpace(err.Error())
	logging.ErrorWithContext(r.logger, "import failed", "import_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorKind, services.Kind(err)),
		logging.String(logging.FieldImpact, "item marked failed"),
	)
	if _, markErr := im.store.MarkFailed(context.WithoutCancel(ctx), item.ID, message); markErr != nil {
		r.logger.Error("failed to persist import failure", logging.Error(markErr))
	}
	im.publish(ctx, r, notifications.EventImportFailed, notifications.Payload{"title": item.Title, "error": message})
}

func (im *Importer) publish(ctx context.Context, r *run, event notifications.Event, payload notifications.Payload) {
	if err := r.notifier.Publish(ctx, event, payload); err != nil {
		logging.WarnWithContext(r.logger, "notification failed", "notification_failed",
			logging.String("event", string(event)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
			logging.String(logging.FieldImpact, "no push notification delivered"),
		)
	}
}

// protectedPaths are directories cleanup must never remove.
func (im *Importer) protectedPaths(cfg *config.Config) []string {
	paths := make([]string, 0, len(cfg.Agents)+len(cfg.Media.Roots))
	for _, agent := range cfg.Agents {
		if agent.CompletedDir != "" {
			paths = append(paths, agent.CompletedDir)
		}
	}
	return append(paths, cfg.Media.Roots...)
}
