// Package textutil provides filename sanitization and title similarity
// helpers shared by the naming and import packages.
//
// Sanitized segments are NFC-normalized so the same title typed on different
// platforms produces the same on-disk name.
package textutil
