// Package transfer moves, copies, or hardlinks a selected payload into the
// library and applies the configured permission policy to the result.
//
// The engine creates the destination directory, checks free space on the
// destination filesystem (skipped for hardlinks and when disabled), and then
// performs the transfer. Cross-device moves fall back to a verified copy that
// is fsynced before the source is removed. A failed copy removes the partial
// destination and never touches the source.
//
// Permission failures are logged and reported on Result; they never fail a
// transfer.
package transfer
