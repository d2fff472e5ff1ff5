//go:build unix

package transfer

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"strconv"
	"strings"

	"ferry/internal/config"
)

type posixPermissions struct {
	cfg    config.Permissions
	logger *slog.Logger
}

// NewPermissionPolicy returns the policy for this platform.
func NewPermissionPolicy(cfg config.Permissions, logger *slog.Logger) PermissionPolicy {
	return &posixPermissions{cfg: cfg, logger: logger}
}

func (p *posixPermissions) Apply(filePath, folderPath string) error {
	var errs []error
	if mode, err := p.cfg.FileModeBits(); err == nil {
		if err := os.Chmod(filePath, mode); err != nil {
			errs = append(errs, fmt.Errorf("chmod file: %w", err))
		}
	} else {
		errs = append(errs, fmt.Errorf("file mode: %w", err))
	}
	if mode, err := p.cfg.FolderModeBits(); err == nil {
		if err := os.Chmod(folderPath, mode); err != nil {
			errs = append(errs, fmt.Errorf("chmod folder: %w", err))
		}
	} else {
		errs = append(errs, fmt.Errorf("folder mode: %w", err))
	}

	uid, gid, err := p.ids()
	if err != nil {
		errs = append(errs, err)
	} else if uid >= 0 || gid >= 0 {
		for _, path := range []string{filePath, folderPath} {
			if err := os.Chown(path, uid, gid); err != nil {
				errs = append(errs, fmt.Errorf("chown %s: %w", path, err))
			}
		}
	}
	return errors.Join(errs...)
}

// ids resolves the configured owner and group; -1 leaves a value unchanged.
func (p *posixPermissions) ids() (int, int, error) {
	uid, gid := -1, -1
	if owner := strings.TrimSpace(p.cfg.Owner); owner != "" {
		u, err := user.Lookup(owner)
		if err != nil {
			return -1, -1, fmt.Errorf("lookup owner %q: %w", owner, err)
		}
		if uid, err = strconv.Atoi(u.Uid); err != nil {
			return -1, -1, fmt.Errorf("parse uid %q: %w", u.Uid, err)
		}
	}
	if group := strings.TrimSpace(p.cfg.Group); group != "" {
		g, err := user.LookupGroup(group)
		if err != nil {
			return -1, -1, fmt.Errorf("lookup group %q: %w", group, err)
		}
		if gid, err = strconv.Atoi(g.Gid); err != nil {
			return -1, -1, fmt.Errorf("parse gid %q: %w", g.Gid, err)
		}
	}
	return uid, gid, nil
}
