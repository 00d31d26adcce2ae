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

package item

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fwcarve/fwcarve/carve"
	"github.com/fwcarve/fwcarve/log"
	"github.com/fwcarve/fwcarve/scanner"
	"github.com/fwcarve/fwcarve/signature"
	"github.com/fwcarve/fwcarve/sink"
)

// checkArchive unpacks multi-file archive signatures and recurses into
// whatever they contain.
func (it *ExtractionItem) checkArchive(ctx context.Context) bool {
	return it.checkRecursive(ctx, signature.Archive)
}

// checkCompressed unpacks single-stream compression signatures and recurses
// into whatever they contain. Archive and compressed signatures share one
// implementation because a file that looks like, say, "xz compressed data"
// may still unpack straight into a root filesystem tree.
func (it *ExtractionItem) checkCompressed(ctx context.Context) bool {
	return it.checkRecursive(ctx, signature.Compressed)
}

// checkRecursive is the unified archive/compressed implementation: extract,
// check for a rootfs tree, and otherwise spawn a child ExtractionItem per
// sibling file up to RecursionBreadth.
func (it *ExtractionItem) checkRecursive(ctx context.Context, family signature.Family) bool {
	artifacts, err := it.scanFamily(ctx, signature.Names(family), true)
	if err != nil {
		return false
	}

	var lastDesc string
	for _, artifact := range artifacts {
		lastDesc = artifact.Description
		if artifact.Extraction == nil || !artifact.Extraction.Success {
			if out, ok := it.localDecompress(family, artifact); ok {
				it.logf(">> locally decompressed %s", out)
				child, err := New(it.ctx, out, it.Depth+1, it.Tag)
				if err != nil {
					log.Warnf("item: local-decompress child for %s: %v", it.Path, err)
					continue
				}
				if child.Extract(ctx).Status {
					it.refreshStatus()
					return true
				}
			}
			continue
		}

		if ok, rootfsDir := carve.FindRootfs(artifact.Extraction.OutputDir, true); ok {
			it.packageRootfs(rootfsDir)
			return true
		}

		it.logf(">> recursing into %s", artifact.Extraction.OutputDir)
		if it.recurseIntoDir(ctx, artifact.Extraction.OutputDir, lastDesc) {
			return true
		}
	}
	return false
}

// localDecompress falls back to carve.Decompress for a Compressed-family
// artifact the scanner detected but did not itself unpack, reading the
// artifact's declared byte range out of it.Path and writing the decoded
// stream to a fresh file under it.TempDir. Archive-family artifacts have no
// local unpacker, so this only ever fires for the Compressed cascade stage.
func (it *ExtractionItem) localDecompress(family signature.Family, artifact scanner.DetectedArtifact) (string, bool) {
	if family != signature.Compressed {
		return "", false
	}

	r, err := rangeReader(it.Path, int64(artifact.Offset), int64(artifact.Size))
	if err != nil {
		return "", false
	}
	defer r.Close()

	out := filepath.Join(it.TempDir, fmt.Sprintf("decompressed_%d", artifact.Offset))
	f, err := os.Create(out)
	if err != nil {
		return "", false
	}
	defer f.Close()

	if err := carve.Decompress(family, artifact.Description, r, f); err != nil {
		log.Warnf("item: local decompress %s@%d: %v", it.Path, artifact.Offset, err)
		os.Remove(out)
		return "", false
	}
	return out, true
}

// rangeReader opens path and returns a ReadCloser scoped to [offset,
// offset+size). A size of 0 means "read to EOF", matching artifacts whose
// declared size is unknown.
func rangeReader(path string, offset, size int64) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			f.Close()
			return nil, err
		}
	}
	if size <= 0 {
		return f, nil
	}
	return struct {
		io.Reader
		io.Closer
	}{io.LimitReader(f, size), f}, nil
}

// recurseIntoDir walks outputDir top-down, depth-first (each directory's
// files are handled before the walk descends into its subdirectories, as
// with the reference tool's os.walk-driven traversal; every directory
// encountered gets its own breadth budget), ordering
// siblings the same way the reference tool does and spawning a child item
// per file up to RecursionBreadth.
func (it *ExtractionItem) recurseIntoDir(ctx context.Context, dir, desc string) bool {
	var stop bool
	filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || stop {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil
		}
		files := make([]string, 0, len(entries))
		for _, e := range entries {
			if !e.IsDir() {
				files = append(files, e.Name())
			}
		}
		orderSiblings(files, desc)

		for i, name := range files {
			if i >= RecursionBreadth {
				it.logf(">> skipping: recursion breadth %d", RecursionBreadth)
				it.Terminate = true
				stop = true
				return filepath.SkipAll
			}
			child, err := New(it.ctx, filepath.Join(path, name), it.Depth+1, it.Tag)
			if err != nil {
				log.Warnf("item: child for %s: %v", name, err)
				continue
			}
			childResult := child.Extract(ctx)
			if childResult.Status {
				it.refreshStatus()
				if it.complete() {
					stop = true
					return filepath.SkipAll
				}
			}
		}
		return nil
	})
	return stop
}

// orderSiblings sorts names the way the reference tool does (lexicographic,
// then stably by length so shorter names sort first) and, if desc carries an
// `original file name: "..."` fragment naming one of them, moves that name
// to the front.
func orderSiblings(names []string, desc string) {
	sort.Strings(names)
	sort.SliceStable(names, func(i, j int) bool { return len(names[i]) < len(names[j]) })

	if !strings.Contains(desc, "original file name:") {
		return
	}
	var orig string
	for _, stmt := range strings.Split(desc, ",") {
		if !strings.Contains(stmt, "original file name:") {
			continue
		}
		parts := strings.Split(stmt, "\"")
		if len(parts) >= 2 {
			orig = parts[1]
		}
	}
	if orig == "" {
		return
	}
	for i, n := range names {
		if n == orig {
			copy(names[1:i+1], names[0:i])
			names[0] = orig
			return
		}
	}
}

// checkEncryption handles the single hard-coded D-Link SHRS decryption case.
// The decrypted output is written to TempDir but, matching the reference
// tool, is never automatically recursed into.
func (it *ExtractionItem) checkEncryption(ctx context.Context) bool {
	isSHRS, err := carve.IsDlinkSHRS(it.Path)
	if err != nil || !isSHRS {
		return false
	}
	it.logf(">> found D-Link encrypted firmware")

	out := filepath.Join(it.TempDir, "dlink_decrypt")
	if err := carve.DecryptDlinkSHRS(it.Path, out); err != nil {
		log.Warnf("item: SHRS decrypt %s: %v", it.Path, err)
		return false
	}
	lastDlinkDecryptPath = out
	return true
}

// checkFirmware recognizes uImage and TP-Link/TRX combined headers and
// carves their declared kernel/rootfs ranges out as child items.
func (it *ExtractionItem) checkFirmware(ctx context.Context) bool {
	artifacts, err := it.scanFamily(ctx, signature.Names(signature.Header), false)
	if err != nil {
		return false
	}

	info, err := os.Stat(it.Path)
	if err != nil {
		return false
	}
	fileSize := info.Size()

	for _, artifact := range artifacts {
		desc := artifact.Description

		if strings.Contains(desc, "uImage header") {
			if it.kernelDone || !strings.Contains(desc, "OS Kernel Image") {
				continue
			}
			kernelOffset := int64(artifact.Offset) + 64
			kernelSize, ok := decimalDigitsField(desc, "image size:")
			if !ok || kernelSize == 0 || kernelOffset+kernelSize > fileSize {
				continue
			}
			it.logf(">> %s", desc)

			tmp := filepath.Join(it.TempDir, "uimage_kernel")
			if err := carve.CopyRange(it.Path, kernelOffset, kernelSize, tmp); err != nil {
				log.Warnf("item: carve uImage kernel: %v", err)
				continue
			}
			child, err := New(it.ctx, tmp, it.Depth, it.Tag)
			if err != nil {
				log.Warnf("item: uImage child: %v", err)
				continue
			}
			return child.Extract(ctx).Status
		}

		if !it.kernelDone && !it.rootfsDone &&
			strings.Contains(desc, "rootfs offset:") && strings.Contains(desc, "kernel offset:") {
			kernelOffset, _ := hexField(desc, "kernel offset:")
			kernelSize, _ := hexField(desc, "kernel length:")
			rootfsOffset, _ := hexField(desc, "rootfs offset:")
			rootfsSize, _ := hexField(desc, "rootfs length:")

			if kernelOffset != rootfsSize && kernelSize == 0 && rootfsSize == 0 {
				kernelSize = rootfsOffset - kernelOffset
				rootfsSize = fileSize - rootfsOffset
			}

			if kernelSize > 0 && kernelOffset+kernelSize <= fileSize &&
				rootfsSize != 0 && rootfsOffset+rootfsSize <= fileSize {
				it.logf(">> %s", desc)

				kernelTmp := filepath.Join(it.TempDir, "trx_kernel")
				if err := carve.CopyRange(it.Path, kernelOffset, kernelSize, kernelTmp); err == nil {
					if child, err := New(it.ctx, kernelTmp, it.Depth, it.Tag); err == nil {
						child.Extract(ctx)
					}
				}

				rootfsTmp := filepath.Join(it.TempDir, "trx_rootfs")
				if err := carve.CopyRange(it.Path, rootfsOffset, rootfsSize, rootfsTmp); err == nil {
					if child, err := New(it.ctx, rootfsTmp, it.Depth, it.Tag); err == nil {
						child.Extract(ctx)
					}
				}

				it.refreshStatus()
				return true
			}
		}
	}
	return false
}

// checkKernel looks only at the first artifact matching a kernel signature,
// matching the reference tool's (intentional) behavior of never examining
// further candidates even if the first one turns out not to be a Linux
// kernel.
func (it *ExtractionItem) checkKernel(ctx context.Context) bool {
	if it.kernelDone {
		return false
	}
	artifacts, err := it.scanFamily(ctx, signature.Names(signature.Kernel), false)
	if err != nil || len(artifacts) == 0 {
		return false
	}

	entry := artifacts[0]
	desc := entry.Description
	if !strings.Contains(desc, "kernel version") && !strings.Contains(desc, "Linux version") {
		return false
	}

	if it.ctx.Sink != nil {
		if err := it.ctx.Sink.SetImageFlag(ctx, it.Tag, sink.FieldKernelVersion, desc); err != nil {
			log.Warnf("item: record kernel version: %v", err)
		}
	}

	if !strings.Contains(desc, "Linux") {
		it.logf(">> ignoring non-Linux kernel: %s", desc)
		return false
	}

	it.logf(">> %s", desc)
	if p := it.kernelPath(); p != "" {
		if err := copyFile(it.Path, p); err != nil {
			log.Warnf("item: copy kernel to %s: %v", p, err)
		}
	} else {
		it.ctx.DoKernel.Store(false)
	}
	return true
}

// checkRootfs extracts UBI/rootfs signatures and checks each
// successfully-extracted artifact's output directory in turn for a UNIX root
// filesystem, packaging the first one found.
func (it *ExtractionItem) checkRootfs(ctx context.Context) bool {
	if it.rootfsDone {
		return false
	}
	artifacts, err := it.scanFamily(ctx, signature.Union(signature.UBI, signature.Rootfs), true)
	if err != nil {
		return false
	}

	for _, artifact := range artifacts {
		if artifact.Extraction == nil || !artifact.Extraction.Success {
			continue
		}
		ok, rootfsDir := carve.FindRootfs(artifact.Extraction.OutputDir, true)
		if !ok {
			continue
		}
		it.packageRootfs(rootfsDir)
		return true
	}
	return false
}

// packageRootfs archives rootfsDir as a gzip-compressed tar at this item's
// rootfs output path, or disables further rootfs attempts globally if no
// output directory is configured.
func (it *ExtractionItem) packageRootfs(rootfsDir string) {
	it.logf(">> found Linux filesystem in %s", rootfsDir)
	p := it.rootfsPath()
	if p == "" {
		it.ctx.DoRootfs.Store(false)
		return
	}
	if err := tarGzDir(rootfsDir, p); err != nil {
		log.Warnf("item: package rootfs %s: %v", rootfsDir, err)
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}

// tarGzDir writes a gzip-compressed tar of root's contents to dst.
func tarGzDir(root, dst string) error {
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("tarGzDir: create %s: %w", dst, err)
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	defer gz.Close()
	tw := tar.NewWriter(gz)
	defer tw.Close()

	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = rel
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
}
