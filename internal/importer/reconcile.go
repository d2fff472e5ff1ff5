package importer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"ferry/internal/logging"
	"ferry/internal/queue"
	"ferry/internal/services"
)

// Outcome is what Reconcile did with one interrupted item.
type Outcome string

const (
	OutcomeCommitted  Outcome = "committed"
	OutcomeRolledBack Outcome = "rolled_back"
	OutcomeFailed     Outcome = "failed"
)

// Reconcile visits every item left importing by an earlier process and
// settles it: a complete destination is committed, a partial one is removed
// while the source survives, a surviving source rolls the item back to
// completed, and anything else fails.
func (im *Importer) Reconcile(ctx context.Context) (map[int64]Outcome, error) {
	items, err := im.store.List(ctx, queue.StatusImporting)
	if err != nil {
		return nil, fmt.Errorf("list importing items: %w", err)
	}
	outcomes := make(map[int64]Outcome, len(items))
	var errs []error
	for _, item := range items {
		outcome, err := im.reconcileItem(ctx, item)
		if err != nil {
			logging.ErrorWithContext(logging.WithContext(services.WithItemID(ctx, item.ID), im.logger),
				"interrupted import not settled", "reconcile_error",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "inspect the item with ferry queue show"),
				logging.String(logging.FieldImpact, "item stays importing until the next start"),
			)
			errs = append(errs, fmt.Errorf("item %d: %w", item.ID, err))
			continue
		}
		outcomes[item.ID] = outcome
	}
	return outcomes, errors.Join(errs...)
}

func (im *Importer) reconcileItem(ctx context.Context, item *queue.Item) (Outcome, error) {
	ctx = services.WithStage(services.WithItemID(ctx, item.ID), "reconcile")
	r := im.newRun(ctx)
	target := item.Import

	source := strings.TrimSpace(target.Source)
	if source == "" {
		source = strings.TrimSpace(item.ContentPath)
	}
	sourceExists := pathExists(source)

	if dest := strings.TrimSpace(target.Destination); dest != "" {
		if info, err := os.Stat(dest); err == nil && info.Mode().IsRegular() {
			if target.Size > 0 && info.Size() == target.Size {
				return im.completeInterrupted(ctx, r, item)
			}
			if sourceExists {
				if err := im.remove(dest); err != nil && !errors.Is(err, os.ErrNotExist) {
					return "", fmt.Errorf("remove partial destination %s: %w", dest, err)
				}
				r.logger.Info("removed partial destination",
					logging.String("destination", dest),
					logging.Int64("partial_bytes", info.Size()),
					logging.Int64("expected_bytes", target.Size),
					logging.String(logging.FieldEventType, "reconcile_partial_removed"),
				)
			}
		}
	}

	if sourceExists {
		ok, err := im.store.RollbackImport(ctx, item.ID)
		if err != nil {
			return "", err
		}
		if ok {
			r.logger.Info("interrupted import rolled back",
				logging.String("source", source),
				logging.String(logging.FieldEventType, "reconcile_rolled_back"),
			)
		}
		return OutcomeRolledBack, nil
	}

	reason := "import interrupted and payload no longer present"
	if _, err := im.store.MarkFailed(ctx, item.ID, reason); err != nil {
		return "", err
	}
	logging.WarnWithContext(r.logger, "interrupted import could not be recovered", "reconcile_failed",
		logging.String("source", source),
		logging.String("destination", target.Destination),
		logging.String(logging.FieldErrorHint, "re-grab the item from the agent"),
		logging.String(logging.FieldImpact, "item marked failed"),
	)
	return OutcomeFailed, nil
}

func (im *Importer) completeInterrupted(ctx context.Context, r *run, item *queue.Item) (Outcome, error) {
	target := item.Import
	rec := &queue.ImportRecord{
		QueueItemID:     item.ID,
		LibraryItemID:   item.LibraryItemID,
		SourcePath:      target.Source,
		DestinationPath: target.Destination,
		Quality:         target.Quality,
		SizeBytes:       target.Size,
		Decision:        queue.DecisionApproved,
		TransferMode:    r.cfg.Media.TransferMode,
	}
	if err := im.store.CommitImport(ctx, rec); err != nil {
		if _, markErr := im.store.MarkFailed(ctx, item.ID, err.Error()); markErr != nil {
			return "", markErr
		}
		return OutcomeFailed, nil
	}
	r.logger.Info("interrupted import committed",
		logging.String("destination", target.Destination),
		logging.String(logging.FieldEventType, "reconcile_committed"),
	)
	if r.cfg.Media.CleanupSource {
		Cleanup(ctx, r.logger, target.Source, item.ContentPath, im.protectedPaths(r.cfg)...)
	}
	return OutcomeCommitted, nil
}

func pathExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
