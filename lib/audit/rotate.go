// Copyright 2026 The Saferclaw Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

// rotateLocked archives the current audit file as a zstd-compressed
// sibling named after the rotation instant, then truncates the live
// file. Caller holds r.mu.
func (r *Recorder) rotateLocked() error {
	stamp := r.clock.Now().UTC().Format("20060102T150405Z")

	source, err := os.Open(r.path)
	if err != nil {
		return fmt.Errorf("audit: rotate open: %w", err)
	}
	defer source.Close()

	// Several rotations can land in the same second; suffix until the
	// name is free.
	var archive *os.File
	var archivePath string
	for sequence := 0; ; sequence++ {
		archivePath = fmt.Sprintf("%s.%s.zst", r.path, stamp)
		if sequence > 0 {
			archivePath = fmt.Sprintf("%s.%s-%d.zst", r.path, stamp, sequence)
		}
		archive, err = os.OpenFile(archivePath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			break
		}
		if !os.IsExist(err) {
			return fmt.Errorf("audit: rotate create archive: %w", err)
		}
	}

	encoder, err := zstd.NewWriter(archive)
	if err != nil {
		archive.Close()
		return fmt.Errorf("audit: rotate encoder: %w", err)
	}
	if _, err := io.Copy(encoder, source); err != nil {
		encoder.Close()
		archive.Close()
		os.Remove(archivePath)
		return fmt.Errorf("audit: rotate compress: %w", err)
	}
	if err := encoder.Close(); err != nil {
		archive.Close()
		os.Remove(archivePath)
		return fmt.Errorf("audit: rotate flush: %w", err)
	}
	if err := archive.Close(); err != nil {
		return fmt.Errorf("audit: rotate close archive: %w", err)
	}

	// Truncate the live file only after the archive is durable. A
	// crash between the two leaves duplicate events, never lost ones.
	if err := r.file.Truncate(0); err != nil {
		return fmt.Errorf("audit: rotate truncate: %w", err)
	}
	if _, err := r.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("audit: rotate seek: %w", err)
	}
	r.size = 0
	return nil
}
