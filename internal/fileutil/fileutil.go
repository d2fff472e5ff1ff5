// Package fileutil holds the byte-level copy helpers used by the transfer engine.
package fileutil

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
)

const defaultBufferSize = 1024 * 1024

// CopyFile streams src into a new file at dst through a fixed buffer and
// fsyncs it. dst must not exist. A failed or short copy removes dst and leaves
// src untouched.
func CopyFile(src, dst string, bufSize int) (int64, error) {
	return copyFile(src, dst, bufSize, false)
}

// CopyFileVerified is CopyFile plus a SHA256 comparison of the bytes read from
// src against dst as re-read from disk after fsync.
func CopyFileVerified(src, dst string, bufSize int) (int64, error) {
	return copyFile(src, dst, bufSize, true)
}

func copyFile(src, dst string, bufSize int, verify bool) (written int64, err error) {
	if bufSize <= 0 {
		bufSize = defaultBufferSize
	}
	srcInfo, err := os.Stat(src)
	if err != nil {
		return 0, fmt.Errorf("stat source: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("create destination: %w", err)
	}
	defer func() {
		if err != nil {
			_ = out.Close()
			_ = os.Remove(dst)
		}
	}()

	var reader io.Reader = in
	var srcHasher hash.Hash
	if verify {
		srcHasher = sha256.New()
		reader = io.TeeReader(in, srcHasher)
	}

	// Wrap to hide ReaderFrom/WriterTo so the fixed buffer is always used.
	written, err = io.CopyBuffer(struct{ io.Writer }{out}, struct{ io.Reader }{reader}, make([]byte, bufSize))
	if err != nil {
		return written, fmt.Errorf("copy bytes: %w", err)
	}
	if err = out.Sync(); err != nil {
		return written, fmt.Errorf("sync destination: %w", err)
	}
	if err = out.Close(); err != nil {
		return written, fmt.Errorf("close destination: %w", err)
	}
	if written != srcInfo.Size() {
		err = fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", srcInfo.Size(), written)
		return written, err
	}
	if verify {
		err = matchDigest(dst, srcHasher.Sum(nil), bufSize)
		return written, err
	}
	return written, nil
}

// matchDigest hashes the file at path and compares it with want.
func matchDigest(path string, want []byte, bufSize int) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("reopen destination: %w", err)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.CopyBuffer(h, struct{ io.Reader }{f}, make([]byte, bufSize)); err != nil {
		return fmt.Errorf("read back destination: %w", err)
	}
	if !bytes.Equal(h.Sum(nil), want) {
		return errors.New("copy hash mismatch: destination differs from source")
	}
	return nil
}
