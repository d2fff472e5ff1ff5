package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound              = errors.New("not found")
	ErrNoMediaFound          = errors.New("no media found")
	ErrInsufficientSpace     = errors.New("insufficient space")
	ErrTransferFailure       = errors.New("transfer failure")
	ErrPermissionApplication = errors.New("permission application failure")
	ErrAgentUnreachable      = errors.New("agent unreachable")
	ErrStorageUnavailable    = errors.New("storage unavailable")
	ErrConfiguration         = errors.New("configuration error")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransferFailure
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsFatal reports whether err must end an import run. Permission and agent
// reachability problems are soft; everything else fails the item.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrPermissionApplication), errors.Is(err, ErrAgentUnreachable):
		return false
	default:
		return true
	}
}

// Kind returns a short label for the marker carried by err, suitable for the
// error_kind log field.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrNoMediaFound):
		return "no_media_found"
	case errors.Is(err, ErrInsufficientSpace):
		return "insufficient_space"
	case errors.Is(err, ErrTransferFailure):
		return "transfer_failure"
	case errors.Is(err, ErrPermissionApplication):
		return "permission_application_failure"
	case errors.Is(err, ErrAgentUnreachable):
		return "agent_unreachable"
	case errors.Is(err, ErrStorageUnavailable):
		return "storage_unavailable"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	default:
		return "unknown"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
