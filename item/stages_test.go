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
	"reflect"
	"testing"
)

func TestOrderSiblingsSortsLexicographicThenByLength(t *testing.T) {
	names := []string{"banana.bin", "a.bin", "kiwi.bin", "fig.bin"}
	orderSiblings(names, "")

	want := []string{"a.bin", "fig.bin", "kiwi.bin", "banana.bin"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("orderSiblings = %v, want %v", names, want)
	}
}

func TestOrderSiblingsPrefersOriginalFileName(t *testing.T) {
	names := []string{"a.bin", "b.bin", "rootfs.squashfs"}
	desc := `gzip compressed data, original file name: "rootfs.squashfs", os: unix`
	orderSiblings(names, desc)

	if names[0] != "rootfs.squashfs" {
		t.Errorf("orderSiblings(%v) front = %q, want rootfs.squashfs", names, names[0])
	}
}

func TestOrderSiblingsIgnoresUnmatchedOriginalFileName(t *testing.T) {
	names := []string{"a.bin", "b.bin"}
	want := append([]string(nil), names...)
	orderSiblings(names, `original file name: "not_here.bin"`)

	if !reflect.DeepEqual(names, want) {
		t.Errorf("orderSiblings = %v, want unchanged %v", names, want)
	}
}
