//go:build unix

package transfer

import (
	"errors"

	"golang.org/x/sys/unix"
)

var hardlinkSupported = true

func isCrossDevice(err error) bool {
	return errors.Is(err, unix.EXDEV)
}
