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

// Package signature partitions binary-signature-scanner signature names into
// the closed families the extraction cascade dispatches on.
package signature

// Family identifies one of the disjoint signature groupings used to scope a
// scanner invocation to a single cascade stage.
type Family string

// The six signature families. Membership is fixed; see the per-family slices
// below for the exact signature names each one contains.
const (
	Header     Family = "header"
	Kernel     Family = "kernel"
	Rootfs     Family = "rootfs"
	UBI        Family = "ubi"
	Compressed Family = "compressed"
	Archive    Family = "archive"
)

// HeaderSignatures are vendor/firmware container headers that wrap a kernel
// and/or rootfs payload with offset/length metadata.
var HeaderSignatures = []string{
	"binhdr", "chk", "dlob", "jboot_arm", "jboot_sch2", "jboot_stag",
	"luks", "packimg", "rtk", "seama", "tplink",
}

// KernelSignatures identify a raw or wrapped Linux (or other OS) kernel image.
var KernelSignatures = []string{
	"linux_arm64_boot_image", "linux_boot_image", "linux_kernel", "wind_kernel",
}

// RootfsSignatures identify filesystem images that can hold a root directory
// tree once unpacked.
var RootfsSignatures = []string{
	"cramfs", "ext", "fat", "jffs2", "romfs", "yaffs", "apfs", "squashfs", "btrfs",
}

// UBISignatures identify UBI/UBIFS flash filesystem containers, handled
// alongside RootfsSignatures but scanned separately because they require the
// extra UBI volume layer.
var UBISignatures = []string{
	"ubi", "ubifs",
}

// CompressedSignatures identify single-stream compression formats.
var CompressedSignatures = []string{
	"zstd", "zlib", "xz", "gzip", "bzip2", "lzop", "lzma", "lzfse", "lz4", "compressd",
}

// ArchiveSignatures identify multi-file archive container formats.
var ArchiveSignatures = []string{
	"zip", "rar", "tarball", "cab", "cpio", "7zip",
}

var byFamily = map[Family][]string{
	Header:     HeaderSignatures,
	Kernel:     KernelSignatures,
	Rootfs:     RootfsSignatures,
	UBI:        UBISignatures,
	Compressed: CompressedSignatures,
	Archive:    ArchiveSignatures,
}

// Names returns the signature names belonging to family.
func Names(family Family) []string {
	return byFamily[family]
}

// Union concatenates the signature names of the given families, preserving
// the order the families are passed in.
func Union(families ...Family) []string {
	var out []string
	for _, f := range families {
		out = append(out, byFamily[f]...)
	}
	return out
}

// Contains reports whether name belongs to family.
func Contains(family Family, name string) bool {
	for _, n := range byFamily[family] {
		if n == name {
			return true
		}
	}
	return false
}
