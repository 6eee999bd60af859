// Copyright 2026 The Saferclaw Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/saferclaw/saferclaw/lib/config"
)

// evaluatePath validates that the canonical form of path is contained
// in at least one allowed root. Canonical means absolute,
// lexically-cleaned, and symlink-resolved — `..` segments, absolute
// overrides, and symlinks pointing outside the roots all collapse
// before the containment check, so none of them can escape it.
func evaluatePath(path string, cfg *config.Config, baseDirectory string) Result {
	if strings.TrimSpace(path) == "" {
		return deny(ReasonMalformed, "empty path")
	}
	if strings.ContainsRune(path, 0) {
		return deny(ReasonMalformed, "path contains NUL byte")
	}

	canonical, err := Canonicalize(path, baseDirectory)
	if err != nil {
		return deny(ReasonPathOutsideRoots, fmt.Sprintf("cannot resolve path: %v", err))
	}

	for _, root := range cfg.AllowedRoots {
		canonicalRoot, err := Canonicalize(root, "")
		if err != nil {
			continue
		}
		if contained(canonicalRoot, canonical) {
			return Result{Decision: Allow, CanonicalPath: canonical}
		}
	}

	return deny(ReasonPathOutsideRoots,
		fmt.Sprintf("path is outside allowed roots: %s", canonical))
}

// Canonicalize resolves path to its absolute, symlink-free form. A
// relative path resolves against baseDirectory, or the process working
// directory when baseDirectory is empty.
//
// The deepest existing ancestor is resolved through the filesystem;
// the non-existent remainder (a file about to be written, directories
// about to be created) is appended lexically. A symlink anywhere in
// the existing portion is therefore followed before the containment
// check, not after.
func Canonicalize(path, baseDirectory string) (string, error) {
	if !filepath.IsAbs(path) && baseDirectory != "" {
		path = filepath.Join(baseDirectory, path)
	}
	absolute, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	absolute = filepath.Clean(absolute)

	current := absolute
	remainder := ""
	for {
		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			if remainder == "" {
				return resolved, nil
			}
			return filepath.Join(resolved, remainder), nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(current)
		if parent == current {
			// Walked all the way to the filesystem root without
			// finding an existing ancestor.
			return absolute, nil
		}
		remainder = filepath.Join(filepath.Base(current), remainder)
		current = parent
	}
}

// contained reports whether path equals root or is a descendant of it.
func contained(root, path string) bool {
	if path == root {
		return true
	}
	relative, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return relative != ".." && !strings.HasPrefix(relative, ".."+string(filepath.Separator))
}
