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

package carve_test

import (
	"crypto/md5"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/fwcarve/fwcarve/carve"
)

func TestCopyRange(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	if err := os.WriteFile(src, []byte("0123456789"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	dst := filepath.Join(dir, "out.bin")
	if err := carve.CopyRange(src, 2, 5, dst); err != nil {
		t.Fatalf("CopyRange: %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if want := "23456"; string(got) != want {
		t.Errorf("CopyRange contents = %q, want %q", got, want)
	}
}

func TestCopyRangeOutOfBounds(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	if err := os.WriteFile(src, []byte("short"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := carve.CopyRange(src, 0, 100, filepath.Join(dir, "out.bin")); err == nil {
		t.Error("CopyRange with out-of-range size succeeded, want error")
	}
}

func TestCopyRangeZeroSizeIsNoop(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	if err := os.WriteFile(src, []byte("hello"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	dst := filepath.Join(dir, "out.bin")
	if err := carve.CopyRange(src, 0, 0, dst); err != nil {
		t.Fatalf("CopyRange: %v", err)
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Errorf("CopyRange with size 0 created %s, want no file", dst)
	}
}

func TestMD5RegularFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	content := []byte("the quick brown fox")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	want := md5.Sum(content)
	got, err := carve.MD5(path)
	if err != nil {
		t.Fatalf("MD5: %v", err)
	}
	if got != hex.EncodeToString(want[:]) {
		t.Errorf("MD5(%s) = %s, want %s", path, got, hex.EncodeToString(want[:]))
	}
}

func TestMD5NonRegularUsesPath(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "adir")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	want := md5.Sum([]byte(sub))
	got, err := carve.MD5(sub)
	if err != nil {
		t.Fatalf("MD5: %v", err)
	}
	if got != hex.EncodeToString(want[:]) {
		t.Errorf("MD5(%s) = %s, want hash of path %s", sub, got, hex.EncodeToString(want[:]))
	}
}

func TestFindRootfs(t *testing.T) {
	tests := []struct {
		name    string
		build   func(root string) string // returns the start path to search from
		want    bool
		wantEnd string // "" means don't check
	}{
		{
			name: "direct hit",
			build: func(root string) string {
				for _, d := range []string{"bin", "etc", "dev", "lib", "home"} {
					os.MkdirAll(filepath.Join(root, d), 0o755)
				}
				return root
			},
			want: true,
		},
		{
			name: "single child chain collapses",
			build: func(root string) string {
				nested := filepath.Join(root, "squashfs-root", "fs_1")
				for _, d := range []string{"bin", "etc", "dev", "lib"} {
					os.MkdirAll(filepath.Join(nested, d), 0o755)
				}
				return root
			},
			want: true,
		},
		{
			name: "too few unix dirs",
			build: func(root string) string {
				os.MkdirAll(filepath.Join(root, "bin"), 0o755)
				os.MkdirAll(filepath.Join(root, "random"), 0o755)
				return root
			},
			want: false,
		},
		{
			name: "recursive fallback finds sibling",
			build: func(root string) string {
				os.MkdirAll(filepath.Join(root, "unrelated"), 0o755)
				rootfs := filepath.Join(root, "extracted")
				for _, d := range []string{"bin", "etc", "dev", "lib"} {
					os.MkdirAll(filepath.Join(rootfs, d), 0o755)
				}
				os.MkdirAll(filepath.Join(root, "other"), 0o755)
				return root
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			start := tt.build(root)
			got, _ := carve.FindRootfs(start, true)
			if got != tt.want {
				t.Errorf("FindRootfs(%s) = %v, want %v", start, got, tt.want)
			}
		})
	}
}
