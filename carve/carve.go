// Copyright 2025 The fwcarve Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package carve provides the low-level byte-range and filesystem primitives
// the extraction cascade builds on: range copies, content hashing, rootfs
// directory recognition and recursive cleanup.
package carve

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	fwcarvelog "github.com/fwcarve/fwcarve/log"
)

// ErrOutOfRange is returned by CopyRange when the requested byte range falls
// outside the source file.
var ErrOutOfRange = errors.New("carve: requested range is out of bounds")

// unixDirs are the canonical top-level directories of a UNIX root filesystem.
var unixDirs = map[string]bool{
	"bin": true, "etc": true, "dev": true, "home": true, "lib": true,
	"mnt": true, "opt": true, "root": true, "run": true, "sbin": true,
	"tmp": true, "usr": true, "var": true,
}

// unixThreshold is the minimum number of canonical directories that must be
// present for a directory to be recognized as a UNIX root filesystem.
const unixThreshold = 4

// CopyRange writes size bytes read from src starting at offset into a newly
// created file at dst. A size of zero is a no-op and dst is not created.
func CopyRange(src string, offset, size int64, dst string) error {
	if size == 0 {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("carve.CopyRange: open %s: %w", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("carve.CopyRange: stat %s: %w", src, err)
	}
	if offset < 0 || size < 0 || offset+size > info.Size() {
		return fmt.Errorf("carve.CopyRange: %s[%d:%d] of %d bytes: %w", src, offset, offset+size, info.Size(), ErrOutOfRange)
	}

	if _, err := in.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("carve.CopyRange: seek: %w", err)
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("carve.CopyRange: create %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.CopyN(out, in, size); err != nil {
		return fmt.Errorf("carve.CopyRange: copy: %w", err)
	}
	return nil
}

// MD5 computes the MD5 checksum of path. For regular files it streams the
// file contents in 64KiB blocks; for any non-regular entry (directories,
// device nodes, pipes) it hashes the path string itself, so such entries
// remain usable as dedup keys without being read.
func MD5(path string) (string, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return "", fmt.Errorf("carve.MD5: stat %s: %w", path, err)
	}

	h := md5.New()
	if !info.Mode().IsRegular() {
		h.Write([]byte(path))
		return hex.EncodeToString(h.Sum(nil)), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("carve.MD5: open %s: %w", path, err)
	}
	defer f.Close()

	buf := make([]byte, 64*1024)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("carve.MD5: read %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// FindRootfs walks into single-child directory chains starting at dir, then
// counts how many canonical UNIX directories (bin, etc, dev, ...) are
// immediate children of the resulting directory. If at least unixThreshold
// of them are present, it reports (true, path-to-that-directory). Otherwise,
// when recurse is true, it retries on every immediate subdirectory (without
// further recursion) and returns the first hit; absent a hit it reports
// (false, dir).
func FindRootfs(dir string, recurse bool) (bool, string) {
	path := dir
	for {
		entries, err := os.ReadDir(path)
		if err != nil || len(entries) != 1 || !entries[0].IsDir() {
			break
		}
		path = filepath.Join(path, entries[0].Name())
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return false, dir
	}

	count := 0
	for _, e := range entries {
		if e.IsDir() && unixDirs[e.Name()] {
			count++
		}
	}
	if count >= unixThreshold {
		return true, path
	}

	if recurse {
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			if ok, found := FindRootfs(filepath.Join(path, e.Name()), false); ok {
				return true, found
			}
		}
	}
	return false, dir
}

// RemoveTree attempts to recursively delete target, logging (but not
// aborting on) per-entry failures.
func RemoveTree(target string) error {
	err := os.RemoveAll(target)
	if err != nil {
		fwcarvelog.Warnf("carve.RemoveTree: cannot fully delete %s: %v", target, err)
	}
	return err
}
