//go:build !unix

package rootfolder

import (
	"errors"
	"os"
)

var errFreeSpaceUnsupported = errors.New("free space probe unsupported on this platform")

// Probe reports directories as reachable with unknown (zero) free space.
func Probe(path string) (bool, uint64) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return false, 0
	}
	return true, 0
}

// FreeBytes is unavailable off unix.
func FreeBytes(string) (uint64, error) {
	return 0, errFreeSpaceUnsupported
}
