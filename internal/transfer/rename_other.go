//go:build !linux

package transfer

func renameNoReplace(oldpath, newpath string) error {
	return checkedRename(oldpath, newpath)
}
