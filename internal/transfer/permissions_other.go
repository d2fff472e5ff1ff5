//go:build !unix

package transfer

import (
	"log/slog"

	"ferry/internal/config"
	"ferry/internal/logging"
)

type unsupportedPermissions struct {
	logger *slog.Logger
}

// NewPermissionPolicy returns the policy for this platform.
func NewPermissionPolicy(_ config.Permissions, logger *slog.Logger) PermissionPolicy {
	return &unsupportedPermissions{logger: logger}
}

func (p *unsupportedPermissions) Apply(filePath, _ string) error {
	logging.WarnWithContext(p.logger, "permission policy not supported on this platform", "permissions_unsupported",
		logging.String("destination", filePath),
		logging.String(logging.FieldErrorHint, "disable permissions.enabled on this platform"),
		logging.String(logging.FieldImpact, "imported file keeps default ownership and mode"),
	)
	return nil
}
