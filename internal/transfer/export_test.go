package transfer

// SetHardlinkSupported overrides platform hardlink support for a test.
func SetHardlinkSupported(v bool) func() {
	prev := hardlinkSupported
	hardlinkSupported = v
	return func() { hardlinkSupported = prev }
}

// WithRename replaces os.Rename for a test.
func WithRename(fn func(oldpath, newpath string) error) Option {
	return func(e *Engine) { e.rename = fn }
}

// RenameNoReplace exposes the engine's default rename.
var RenameNoReplace = renameNoReplace
