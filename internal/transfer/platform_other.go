//go:build !unix

package transfer

import (
	"errors"
	"io/fs"
	"os"
)

var hardlinkSupported = false

// Rename failures here are treated as cross-volume; the copy path is safe for
// either case.
func isCrossDevice(err error) bool {
	var linkErr *os.LinkError
	return errors.As(err, &linkErr) && !errors.Is(err, fs.ErrExist)
}
