package testsupport

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"ferry/internal/config"
	"ferry/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewLibraryItem creates a wanted library entry.
func NewLibraryItem(t testing.TB, store *queue.Store, title, eventDate string) *queue.LibraryItem {
	t.Helper()

	item, err := store.NewLibraryItem(context.Background(), title, eventDate)
	if err != nil {
		t.Fatalf("store.NewLibraryItem: %v", err)
	}
	return item
}

// NewQueueItem creates a queue item for lib on agentName and walks it to
// status. Importing is reached through ClaimForImport.
func NewQueueItem(t testing.TB, store *queue.Store, lib *queue.LibraryItem, agentName, handle string, status queue.Status) *queue.Item {
	t.Helper()

	ctx := context.Background()
	item, err := store.NewItem(ctx, queue.NewItemParams{
		LibraryItemID: lib.ID,
		Title:         lib.Title,
		AgentName:     agentName,
		AgentHandle:   handle,
	})
	if err != nil {
		t.Fatalf("store.NewItem: %v", err)
	}
	if err := advance(ctx, store, item.ID, status); err != nil {
		t.Fatalf("advance item to %s: %v", status, err)
	}
	fetched, err := store.GetByID(ctx, item.ID)
	if err != nil || fetched == nil {
		t.Fatalf("store.GetByID: %v", err)
	}
	return fetched
}

func advance(ctx context.Context, store *queue.Store, id int64, target queue.Status) error {
	switch target {
	case queue.StatusQueued:
		return nil
	case queue.StatusFailed:
		_, err := store.MarkFailed(ctx, id, "test failure")
		return err
	case queue.StatusImporting:
		if err := advance(ctx, store, id, queue.StatusCompleted); err != nil {
			return err
		}
		ok, err := store.ClaimForImport(ctx, id)
		if err == nil && !ok {
			err = errors.New("claim for import lost")
		}
		return err
	}
	from := queue.StatusQueued
	for _, step := range queue.TransitionPath(from, target) {
		ok, err := store.Transition(ctx, id, from, step, "")
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("transition %s -> %s lost", from, step)
		}
		from = step
	}
	if from != target {
		return fmt.Errorf("no path to %s", target)
	}
	return nil
}
