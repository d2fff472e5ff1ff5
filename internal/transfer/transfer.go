package transfer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"ferry/internal/config"
	"ferry/internal/fileutil"
	"ferry/internal/logging"
	"ferry/internal/rootfolder"
	"ferry/internal/services"
)

// ErrHardlinkUnsupported reports that the platform cannot hardlink. It is
// returned before any filesystem mutation.
var ErrHardlinkUnsupported = fmt.Errorf("%w: hardlinks are not supported on this platform", services.ErrTransferFailure)

// ErrDestinationTaken reports that something already occupies the destination.
// The engine never replaces an existing file, so a caller that picked the name
// should pick the next free one and try again.
var ErrDestinationTaken = fmt.Errorf("%w: destination already exists", services.ErrTransferFailure)

// Request describes one transfer.
type Request struct {
	Source      string
	Destination string
	Mode        string
	Size        int64
}

// Result reports what the engine did.
type Result struct {
	Destination   string
	Mode          string
	Bytes         int64
	CrossDevice   bool
	PermissionErr error
}

// FreeSpaceFunc returns the bytes available on the filesystem holding path.
type FreeSpaceFunc func(path string) (uint64, error)

// Engine performs transfers using a snapshot of the media settings.
type Engine struct {
	media       config.Media
	permissions PermissionPolicy
	logger      *slog.Logger
	freeSpace   FreeSpaceFunc
	rename      func(oldpath, newpath string) error
}

// Option customizes an Engine.
type Option func(*Engine)

// WithFreeSpace replaces the free space probe.
func WithFreeSpace(fn FreeSpaceFunc) Option {
	return func(e *Engine) {
		if fn != nil {
			e.freeSpace = fn
		}
	}
}

// WithPermissionPolicy replaces the platform permission policy.
func WithPermissionPolicy(policy PermissionPolicy) Option {
	return func(e *Engine) {
		if policy != nil {
			e.permissions = policy
		}
	}
}

// NewEngine builds an engine for the given settings snapshot.
func NewEngine(media config.Media, perms config.Permissions, logger *slog.Logger, opts ...Option) *Engine {
	logger = logging.NewComponentLogger(logger, "transfer")
	e := &Engine{
		media:     media,
		logger:    logger,
		freeSpace: rootfolder.FreeBytes,
		rename:    renameNoReplace,
	}
	if perms.Enabled {
		e.permissions = NewPermissionPolicy(perms, logger)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Transfer places req.Source at req.Destination according to req.Mode.
func (e *Engine) Transfer(ctx context.Context, req Request) (Result, error) {
	mode := strings.ToLower(strings.TrimSpace(req.Mode))
	if mode == "" {
		mode = config.TransferMove
	}
	result := Result{Destination: req.Destination, Mode: mode}
	logger := logging.WithContext(ctx, e.logger)

	switch mode {
	case config.TransferMove, config.TransferCopy:
	case config.TransferHardlink:
		if !hardlinkSupported {
			return result, ErrHardlinkUnsupported
		}
	default:
		return result, services.Wrap(services.ErrConfiguration, "transfer", "validate mode", fmt.Sprintf("unknown transfer mode %q", req.Mode), nil)
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	if _, err := os.Stat(req.Source); err != nil {
		return result, services.Wrap(services.ErrTransferFailure, "transfer", "stat source", req.Source, err)
	}
	if _, err := os.Lstat(req.Destination); err == nil {
		return result, services.Wrap(ErrDestinationTaken, "transfer", "check destination", req.Destination, nil)
	}

	destDir := filepath.Dir(req.Destination)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return result, services.Wrap(services.ErrTransferFailure, "transfer", "create destination directory", destDir, err)
	}

	if mode != config.TransferHardlink && !e.media.SkipFreeSpaceCheck {
		if err := e.checkFreeSpace(logger, destDir, req.Size); err != nil {
			return result, err
		}
	}

	var err error
	switch mode {
	case config.TransferMove:
		result.Bytes, result.CrossDevice, err = e.move(req)
	case config.TransferCopy:
		result.Bytes, err = fileutil.CopyFile(req.Source, req.Destination, e.media.CopyBufferBytes())
		if err != nil {
			err = services.Wrap(failureMarker(err), "transfer", "copy", req.Source, err)
		}
	case config.TransferHardlink:
		err = e.link(req)
		result.Bytes = req.Size
	}
	if err != nil {
		return result, err
	}

	logger.Info("payload transferred",
		logging.String("source", req.Source),
		logging.String("destination", req.Destination),
		logging.String("mode", mode),
		logging.Int64("bytes", result.Bytes),
		logging.Bool("cross_device", result.CrossDevice),
		logging.String(logging.FieldEventType, "transfer_complete"),
	)

	if e.permissions != nil {
		if permErr := e.permissions.Apply(req.Destination, destDir); permErr != nil {
			result.PermissionErr = services.Wrap(services.ErrPermissionApplication, "transfer", "apply permissions", req.Destination, permErr)
			logging.WarnWithContext(logger, "permission policy not applied", "permissions_failed",
				logging.String("destination", req.Destination),
				logging.Error(result.PermissionErr),
				logging.String(logging.FieldErrorKind, services.Kind(result.PermissionErr)),
				logging.String(logging.FieldErrorHint, "check permissions.owner, permissions.group and that ferry may chown"),
				logging.String(logging.FieldImpact, "imported file keeps default ownership and mode"),
			)
		}
	}
	return result, nil
}

func (e *Engine) checkFreeSpace(logger *slog.Logger, dir string, size int64) error {
	free, err := e.freeSpace(dir)
	if err != nil {
		logging.WarnWithContext(logger, "free space check unavailable", "free_space_unknown",
			logging.String("directory", dir),
			logging.Error(err),
			logging.String(logging.FieldImpact, "transfer proceeds without a space check"),
		)
		return nil
	}
	var need uint64
	if size > 0 {
		need = uint64(size)
	}
	need += e.media.MinFreeSpaceBytes()
	if free <= need {
		return services.Wrap(
			services.ErrInsufficientSpace,
			"transfer",
			"check free space",
			fmt.Sprintf("%s has %d bytes free, need more than %d", dir, free, need),
			nil,
		)
	}
	return nil
}

func (e *Engine) move(req Request) (int64, bool, error) {
	err := e.rename(req.Source, req.Destination)
	if err == nil {
		return req.Size, false, nil
	}
	if !isCrossDevice(err) {
		return 0, false, services.Wrap(failureMarker(err), "transfer", "rename", req.Source, err)
	}

	written, err := fileutil.CopyFileVerified(req.Source, req.Destination, e.media.CopyBufferBytes())
	if err != nil {
		return written, true, services.Wrap(failureMarker(err), "transfer", "cross-device copy", req.Source, err)
	}
	if err := os.Remove(req.Source); err != nil && !errors.Is(err, os.ErrNotExist) {
		// The library copy is complete; a lingering source is left for cleanup.
		logging.WarnWithContext(e.logger, "source not removed after cross-device move", "move_source_retained",
			logging.String("source", req.Source),
			logging.Error(err),
			logging.String(logging.FieldImpact, "payload occupies space in the download directory"),
		)
	}
	return written, true, nil
}

func (e *Engine) link(req Request) error {
	if err := os.Link(req.Source, req.Destination); err != nil {
		return services.Wrap(failureMarker(err), "transfer", "hardlink", req.Source, err)
	}
	return nil
}

func failureMarker(err error) error {
	if errors.Is(err, fs.ErrExist) {
		return ErrDestinationTaken
	}
	return services.ErrTransferFailure
}
