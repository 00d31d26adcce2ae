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
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/fwcarve/fwcarve/carve"
	"github.com/fwcarve/fwcarve/log"
	"github.com/fwcarve/fwcarve/scanner"
)

// lastDlinkDecryptPath records the most recent D-Link decryption output path
// produced by the encryption stage, purely so tests can observe that the
// stage ran without wiring the decrypted file into the cascade. Production
// code never reads it.
var lastDlinkDecryptPath string

// ExtractionItem is one node in the recursive extraction tree: a single file
// under consideration for kernel/rootfs extraction.
type ExtractionItem struct {
	Path      string
	Depth     int
	Tag       string
	Checksum  string
	TempDir   string
	Terminate bool

	ctx *Context

	kernelDone bool
	rootfsDone bool
}

// New creates an ExtractionItem for path at depth, inheriting tag from its
// parent (or, for a root item, computed fresh via New's caller).
func New(ctx *Context, path string, depth int, tag string) (*ExtractionItem, error) {
	checksum, err := carve.MD5(path)
	if err != nil {
		return nil, fmt.Errorf("item.New: %w", err)
	}
	it := &ExtractionItem{
		Path:     path,
		Depth:    depth,
		Tag:      tag,
		Checksum: checksum,
		ctx:      ctx,
	}
	it.refreshStatus()
	return it, nil
}

// NewRoot creates a top-level ExtractionItem, computing its own tag.
func NewRoot(ctx *Context, path string) (*ExtractionItem, error) {
	checksum, err := carve.MD5(path)
	if err != nil {
		return nil, fmt.Errorf("item.NewRoot: %w", err)
	}
	tag := generateTag(ctx, path, checksum)
	it := &ExtractionItem{
		Path:     path,
		Depth:    0,
		Tag:      tag,
		Checksum: checksum,
		ctx:      ctx,
	}
	it.refreshStatus()
	return it, nil
}

func generateTag(ctx *Context, path, checksum string) string {
	fallback := filepath.Base(path) + "_" + checksum
	if ctx.Sink == nil {
		return fallback
	}
	id, err := ctx.Sink.UpsertImage(context.Background(), ctx.Brand, filepath.Base(path), checksum)
	if err != nil {
		log.Warnf("item: falling back to hash-based tag for %s: %v", path, err)
		return fallback
	}
	return id
}

// kernelPath returns the path this item's kernel artifact would be written
// to, or "" if no output directory is configured.
func (it *ExtractionItem) kernelPath() string {
	if it.ctx.OutputDir == "" {
		return ""
	}
	return filepath.Join(it.ctx.OutputDir, it.Tag+".kernel")
}

// rootfsPath returns the path this item's rootfs archive would be written
// to, or "" if no output directory is configured.
func (it *ExtractionItem) rootfsPath() string {
	if it.ctx.OutputDir == "" {
		return ""
	}
	return filepath.Join(it.ctx.OutputDir, it.Tag+".tar.gz")
}

// refreshStatus recomputes kernelDone/rootfsDone from whatever output files
// already exist, or from whether that stage is disabled entirely.
func (it *ExtractionItem) refreshStatus() {
	if !it.ctx.DoKernel.Load() {
		it.kernelDone = true
	} else if p := it.kernelPath(); p != "" {
		if _, err := os.Stat(p); err == nil {
			it.kernelDone = true
		}
	}
	if !it.ctx.DoRootfs.Load() {
		it.rootfsDone = true
	} else if p := it.rootfsPath(); p != "" {
		if _, err := os.Stat(p); err == nil {
			it.rootfsDone = true
		}
	}
}

func (it *ExtractionItem) complete() bool {
	return it.Terminate || (it.kernelDone && it.rootfsDone)
}

func (it *ExtractionItem) result(status bool) ExtractionResult {
	return ExtractionResult{
		Status:     status,
		Tag:        it.Tag,
		KernelDone: it.kernelDone,
		RootfsDone: it.rootfsDone,
		KernelPath: it.kernelPath(),
		RootfsPath: it.rootfsPath(),
	}
}

func (it *ExtractionItem) logf(format string, args ...any) {
	if it.ctx.Quiet {
		return
	}
	log.Infof("%s"+format, append([]any{strings.Repeat("  ", it.Depth)}, args...)...)
}

// Extract runs the classification cascade for this item, recursing into
// children as needed, and returns the resulting status.
func (it *ExtractionItem) Extract(ctx context.Context) (result ExtractionResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("item: panic processing %s: %v\n%s", it.Path, r, debug.Stack())
			result = it.result(false)
		}
	}()

	it.logf("%s", it.Path)

	if it.complete() {
		it.logf(">> skipping: completed")
		return it.result(true)
	}

	if it.Depth > RecursionDepth {
		it.logf(">> skipping: recursion depth %d", it.Depth)
		return it.result(it.complete())
	}

	if !it.ctx.markVisited(it.Checksum) {
		it.logf(">> skipping: already visited %s", it.Checksum)
		return it.result(it.complete())
	}

	if carve.Blacklisted(it.Path) {
		it.logf(">> skipping: blacklisted file type")
		return it.result(it.complete())
	}

	tempDir, err := os.MkdirTemp("", "fwcarve-item-*")
	if err != nil {
		log.Errorf("item: mkdtemp for %s: %v", it.Path, err)
		return it.result(false)
	}
	it.TempDir = tempDir
	defer carve.RemoveTree(it.TempDir)

	stages := []func(context.Context) bool{
		it.checkArchive,
		it.checkEncryption,
		it.checkFirmware,
		it.checkKernel,
		it.checkRootfs,
		it.checkCompressed,
	}
	for _, stage := range stages {
		if stage(ctx) {
			it.refreshStatus()
			if it.complete() {
				it.logf(">> skipping: completed")
				return it.result(true)
			}
		}
	}
	return it.result(false)
}

// scanFamily is a small helper shared by every cascade stage that needs to
// invoke the scanner scoped to one signature family.
func (it *ExtractionItem) scanFamily(ctx context.Context, families []string, extract bool) ([]scanner.DetectedArtifact, error) {
	opts := scanner.Options{
		Include: families,
		Extract: extract,
	}
	if extract {
		opts.OutputDir = it.TempDir
	}
	artifacts, err := it.ctx.Scanner.Scan(ctx, it.Path, opts)
	if err != nil {
		log.Warnf("item: scan %s: %v", it.Path, err)
		return nil, err
	}
	return artifacts, nil
}

func hexField(desc, key string) (int64, bool) {
	for _, stmt := range strings.Split(desc, ",") {
		stmt = strings.TrimSpace(stmt)
		if !strings.HasPrefix(stmt, key) {
			continue
		}
		v := strings.TrimSpace(strings.TrimPrefix(stmt, key))
		v = strings.TrimPrefix(v, "0x")
		n, err := strconv.ParseInt(v, 16, 64)
		if err != nil {
			continue
		}
		return n, true
	}
	return 0, false
}

func decimalDigitsField(desc, key string) (int64, bool) {
	for _, stmt := range strings.Split(desc, ",") {
		stmt = strings.TrimSpace(stmt)
		if !strings.Contains(stmt, key) {
			continue
		}
		var digits strings.Builder
		for _, r := range stmt {
			if r >= '0' && r <= '9' {
				digits.WriteRune(r)
			}
		}
		if digits.Len() == 0 {
			continue
		}
		n, err := strconv.ParseInt(digits.String(), 10, 64)
		if err != nil {
			continue
		}
		return n, true
	}
	return 0, false
}
