package importer

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"ferry/internal/logging"
)

// CleanupResult reports what Cleanup removed.
type CleanupResult struct {
	RemovedSource bool
	RemovedRoot   bool
	Errors        []error
}

var errEntryFound = errors.New("non-directory entry found")

// Cleanup removes the imported source file and then the payload root when it
// is a directory holding nothing but empty directories. A symlink, FIFO or
// socket anywhere beneath it keeps the root. Paths listed
// in protected are never removed. Errors are logged and returned on the
// result, never propagated.
func Cleanup(ctx context.Context, logger *slog.Logger, sourceFile, payloadRoot string, protected ...string) CleanupResult {
	logger = logging.WithContext(ctx, logging.NewComponentLogger(logger, "cleanup"))
	var result CleanupResult

	if sourceFile != "" {
		switch err := os.Remove(sourceFile); {
		case err == nil:
			result.RemovedSource = true
		case errors.Is(err, fs.ErrNotExist):
		default:
			result.Errors = append(result.Errors, err)
			warnCleanup(logger, sourceFile, err)
		}
	}

	if payloadRoot == "" || isProtected(payloadRoot, protected) {
		return result
	}
	info, err := os.Stat(payloadRoot)
	if err != nil || !info.IsDir() {
		return result
	}
	hasFiles, err := containsNonDirectory(payloadRoot)
	if err != nil {
		result.Errors = append(result.Errors, err)
		warnCleanup(logger, payloadRoot, err)
		return result
	}
	if hasFiles {
		logger.Debug("payload directory retained", logging.String("path", payloadRoot))
		return result
	}
	if err := os.RemoveAll(payloadRoot); err != nil {
		result.Errors = append(result.Errors, err)
		warnCleanup(logger, payloadRoot, err)
		return result
	}
	result.RemovedRoot = true
	logger.Info("removed payload directory",
		logging.String("path", payloadRoot),
		logging.String(logging.FieldEventType, "payload_cleanup"),
	)
	return result
}

func containsNonDirectory(root string) (bool, error) {
	err := filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return errEntryFound
		}
		return nil
	})
	if errors.Is(err, errEntryFound) {
		return true, nil
	}
	return false, err
}

func isProtected(path string, protected []string) bool {
	clean := filepath.Clean(path)
	for _, p := range protected {
		if p != "" && filepath.Clean(p) == clean {
			return true
		}
	}
	return false
}

func warnCleanup(logger *slog.Logger, path string, err error) {
	logging.WarnWithContext(logger, "payload cleanup failed", "payload_cleanup_failed",
		logging.String("path", path),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check download directory permissions"),
		logging.String(logging.FieldImpact, "disk space not reclaimed"),
	)
}
