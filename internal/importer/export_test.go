package importer

// WithRemove replaces os.Remove for partial destinations during Reconcile.
func WithRemove(fn func(path string) error) Option {
	return func(im *Importer) { im.remove = fn }
}
