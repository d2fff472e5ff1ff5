package transfer

// PermissionPolicy applies ownership and mode to a transferred file and its
// containing folder.
type PermissionPolicy interface {
	Apply(filePath, folderPath string) error
}
