// Package importer turns a completed, claimed queue item into a library file.
//
// Run is sequential: select the payload file, parse its name, build the
// destination, choose a root, record the planned target, transfer, commit
// the ledger, and clean up the download. Any fatal error marks the item
// failed and leaves no ledger row. Reconcile repairs items left importing by
// a crash.
package importer
