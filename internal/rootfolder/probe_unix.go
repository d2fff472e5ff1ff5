//go:build unix

package rootfolder

import (
	"os"

	"golang.org/x/sys/unix"
)

// Probe reports writability via access(2) and free space via statfs(2).
func Probe(path string) (bool, uint64) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return false, 0
	}
	if err := unix.Access(path, unix.W_OK); err != nil {
		return false, 0
	}
	free, err := FreeBytes(path)
	if err != nil {
		return false, 0
	}
	return true, free
}

// FreeBytes returns the space available to unprivileged users on the
// filesystem holding path.
func FreeBytes(path string) (uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, err
	}
	return uint64(st.Bavail) * uint64(st.Bsize), nil
}
