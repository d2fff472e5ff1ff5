package transfer

import (
	"io/fs"
	"os"
)

// checkedRename refuses to replace an existing newpath. The window between the
// check and the rename is left to the caller's reservation of newpath.
func checkedRename(oldpath, newpath string) error {
	if _, err := os.Lstat(newpath); err == nil {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: fs.ErrExist}
	}
	return os.Rename(oldpath, newpath)
}
