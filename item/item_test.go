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
	"os"
	"path/filepath"
	"testing"

	"github.com/fwcarve/fwcarve/scanner"
)

func newTestContext(t *testing.T, outputDir string, doKernel, doRootfs bool) *Context {
	t.Helper()
	sc := scanner.New(scanner.Config{Image: "binwalkv3"})
	return NewContext(sc, nil, outputDir, "", doKernel, doRootfs, true)
}

func TestGenerateTagFallsBackToHashWithoutSink(t *testing.T) {
	ctx := newTestContext(t, "", true, true)
	tag := generateTag(ctx, "/firmware/router.bin", "deadbeef")
	want := "router.bin_deadbeef"
	if tag != want {
		t.Errorf("generateTag = %q, want %q", tag, want)
	}
}

func TestRefreshStatusDetectsExistingOutputs(t *testing.T) {
	dir := t.TempDir()
	ctx := newTestContext(t, dir, true, true)

	path := filepath.Join(dir, "input.bin")
	os.WriteFile(path, []byte("hello"), 0o644)

	it, err := New(ctx, path, 0, "mytag")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if it.kernelDone || it.rootfsDone {
		t.Fatalf("freshly created item reports done before any output exists: kernelDone=%v rootfsDone=%v", it.kernelDone, it.rootfsDone)
	}

	os.WriteFile(filepath.Join(dir, "mytag.kernel"), []byte("k"), 0o644)
	os.WriteFile(filepath.Join(dir, "mytag.tar.gz"), []byte("r"), 0o644)
	it.refreshStatus()

	if !it.kernelDone || !it.rootfsDone {
		t.Errorf("refreshStatus did not detect pre-existing outputs: kernelDone=%v rootfsDone=%v", it.kernelDone, it.rootfsDone)
	}
	if !it.complete() {
		t.Error("complete() = false, want true once both outputs exist")
	}
}

func TestRefreshStatusDisabledStagesAreTriviallyDone(t *testing.T) {
	dir := t.TempDir()
	ctx := newTestContext(t, dir, false, false)

	path := filepath.Join(dir, "input.bin")
	os.WriteFile(path, []byte("hello"), 0o644)

	it, err := New(ctx, path, 0, "mytag")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !it.kernelDone || !it.rootfsDone {
		t.Errorf("kernelDone=%v rootfsDone=%v, want both true when stages disabled", it.kernelDone, it.rootfsDone)
	}
}

func TestExtractSkipsAlreadyCompleteItem(t *testing.T) {
	dir := t.TempDir()
	ctx := newTestContext(t, dir, false, false)

	path := filepath.Join(dir, "input.bin")
	os.WriteFile(path, []byte("hello"), 0o644)

	it, err := NewRoot(ctx, path)
	if err != nil {
		t.Fatalf("NewRoot: %v", err)
	}

	result := it.Extract(t.Context())
	if !result.Status {
		t.Error("Extract on an already-complete item returned Status=false, want true")
	}
}

func TestExtractSkipsBeyondRecursionDepth(t *testing.T) {
	dir := t.TempDir()
	ctx := newTestContext(t, dir, true, true)

	path := filepath.Join(dir, "input.bin")
	os.WriteFile(path, []byte("hello"), 0o644)

	it, err := New(ctx, path, RecursionDepth+1, "tag")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result := it.Extract(t.Context())
	if result.Status {
		t.Error("Extract beyond RecursionDepth returned Status=true, want false (kernel/rootfs still pending)")
	}
}

func TestExtractSkipsAlreadyVisitedChecksum(t *testing.T) {
	dir := t.TempDir()
	ctx := newTestContext(t, dir, true, true)

	path := filepath.Join(dir, "input.bin")
	os.WriteFile(path, []byte("hello"), 0o644)

	first, err := NewRoot(ctx, path)
	if err != nil {
		t.Fatalf("NewRoot: %v", err)
	}
	if !ctx.markVisited(first.Checksum) {
		t.Fatal("first markVisited call reported false, want true (checksum unseen)")
	}

	second, err := New(ctx, path, 0, first.Tag)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	result := second.Extract(t.Context())
	if result.Status {
		t.Error("Extract on an already-visited checksum returned Status=true, want false (outputs still pending)")
	}
}

func TestExtractSkipsBlacklistedFile(t *testing.T) {
	dir := t.TempDir()
	ctx := newTestContext(t, dir, true, true)

	path := filepath.Join(dir, "notes.txt")
	os.WriteFile(path, []byte("just some plain ASCII text, nothing binary here"), 0o644)

	it, err := NewRoot(ctx, path)
	if err != nil {
		t.Fatalf("NewRoot: %v", err)
	}
	result := it.Extract(t.Context())
	if result.Status {
		t.Error("Extract on a blacklisted text file returned Status=true, want false")
	}
	if it.TempDir != "" {
		t.Error("blacklisted item allocated a TempDir, want none (guard fires before allocation)")
	}
}

func TestHexField(t *testing.T) {
	desc := "kernel offset: 0x40, kernel length: 0x100, rootfs offset: 0x140"
	tests := []struct {
		key    string
		want   int64
		wantOK bool
	}{
		{"kernel offset:", 0x40, true},
		{"kernel length:", 0x100, true},
		{"rootfs offset:", 0x140, true},
		{"rootfs length:", 0, false},
	}
	for _, tc := range tests {
		got, ok := hexField(desc, tc.key)
		if got != tc.want || ok != tc.wantOK {
			t.Errorf("hexField(%q, %q) = (%d, %v), want (%d, %v)", desc, tc.key, got, ok, tc.want, tc.wantOK)
		}
	}
}

func TestDecimalDigitsField(t *testing.T) {
	desc := "uImage header, kernel offset: 0x100, image size: 4194304 bytes"
	got, ok := decimalDigitsField(desc, "image size:")
	if !ok || got != 4194304 {
		t.Errorf("decimalDigitsField = (%d, %v), want (4194304, true)", got, ok)
	}
	if _, ok := decimalDigitsField(desc, "missing field:"); ok {
		t.Error("decimalDigitsField found a field that isn't present")
	}
}
