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

package engine

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func TestEnumerateSingleFile(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "firmware.bin")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := enumerate(f)
	if err != nil {
		t.Fatalf("enumerate: %v", err)
	}
	if len(got) != 1 || got[0] != f {
		t.Errorf("enumerate(%s) = %v, want [%s]", f, got, f)
	}
}

func TestEnumerateDirectory(t *testing.T) {
	dir := t.TempDir()
	want := []string{
		filepath.Join(dir, "a.bin"),
		filepath.Join(dir, "sub", "b.bin"),
	}
	if err := os.MkdirAll(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	for _, f := range want {
		if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
			t.Fatalf("WriteFile(%s): %v", f, err)
		}
	}

	got, err := enumerate(dir)
	if err != nil {
		t.Fatalf("enumerate: %v", err)
	}
	sort.Strings(got)
	sort.Strings(want)
	if len(got) != len(want) {
		t.Fatalf("enumerate(%s) = %v, want %v", dir, got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("enumerate(%s)[%d] = %s, want %s", dir, i, got[i], want[i])
		}
	}
}

func TestEnumerateMissingPath(t *testing.T) {
	if _, err := enumerate(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("enumerate on missing path succeeded, want error")
	}
}

func TestExtractBlacklistedFileSkipsWithoutScanner(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(input, []byte("plain text content"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	outDir := filepath.Join(dir, "out")

	e, err := New(Config{
		Input:     input,
		OutputDir: outDir,
		DoKernel:  true,
		DoRootfs:  true,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer e.Close()

	results, err := e.Extract(t.Context())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	if results[0].Status {
		t.Errorf("results[0].Status = true, want false for blacklisted text input")
	}
}

func TestExtractNoInputs(t *testing.T) {
	e, err := New(Config{Input: filepath.Join(t.TempDir(), "missing")})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer e.Close()

	if _, err := e.Extract(t.Context()); err == nil {
		t.Error("Extract on missing input succeeded, want error")
	}
}
