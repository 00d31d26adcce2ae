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

package carve

import (
	"bufio"
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"strings"

	"github.com/anchore/go-lzo"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"

	"github.com/fwcarve/fwcarve/signature"
)

// ErrUnsupportedFormat is returned by Decompress when the magic description
// does not match any single-stream format this package knows how to unpack
// on its own. The caller is expected to rely on the scanner's own extraction
// for that artifact instead.
var ErrUnsupportedFormat = fmt.Errorf("carve: no local decompressor for this format")

// Decompress unpacks a single-stream compressed artifact read from r into w,
// choosing the codec by inspecting magicDescription. It exists as a fallback
// for the Compressed signature family: the containerized scanner sometimes
// detects but does not itself unpack a bare compression stream (as opposed
// to an archive), so this package carries its own decoders for the formats
// the wider Go ecosystem has mature libraries for.
func Decompress(family signature.Family, magicDescription string, r io.Reader, w io.Writer) error {
	if family != signature.Compressed {
		return fmt.Errorf("carve.Decompress: %w", ErrUnsupportedFormat)
	}

	desc := strings.ToLower(magicDescription)
	br := bufio.NewReader(r)

	switch {
	case strings.Contains(desc, "gzip"):
		zr, err := gzip.NewReader(br)
		if err != nil {
			return fmt.Errorf("carve.Decompress: gzip: %w", err)
		}
		defer zr.Close()
		_, err = io.Copy(w, zr)
		return err

	case strings.Contains(desc, "bzip2"):
		_, err := io.Copy(w, bzip2.NewReader(br))
		return err

	case strings.Contains(desc, "zstandard"), strings.Contains(desc, "zstd"):
		zr, err := zstd.NewReader(br)
		if err != nil {
			return fmt.Errorf("carve.Decompress: zstd: %w", err)
		}
		defer zr.Close()
		_, err = io.Copy(w, zr)
		return err

	case strings.Contains(desc, "xz"):
		zr, err := xz.NewReader(br)
		if err != nil {
			return fmt.Errorf("carve.Decompress: xz: %w", err)
		}
		_, err = io.Copy(w, zr)
		return err

	case strings.Contains(desc, "lzma"):
		zr, err := lzma.NewReader(br)
		if err != nil {
			return fmt.Errorf("carve.Decompress: lzma: %w", err)
		}
		_, err = io.Copy(w, zr)
		return err

	case strings.Contains(desc, "lz4"):
		_, err := io.Copy(w, lz4.NewReader(br))
		return err

	case strings.Contains(desc, "lzop"):
		zr, err := lzo.NewReader(br)
		if err != nil {
			return fmt.Errorf("carve.Decompress: lzop: %w", err)
		}
		_, err = io.Copy(w, zr)
		return err

	default:
		// zlib, lzfse and compressd have no decoder here; they rely
		// entirely on the scanner's own extraction.
		return fmt.Errorf("carve.Decompress(%q): %w", magicDescription, ErrUnsupportedFormat)
	}
}
