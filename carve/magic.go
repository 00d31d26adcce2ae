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
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/deitch/magic/pkg/magic"
)

// MagicDescription returns the libmagic-style free-form description of the
// file contents at path, e.g. "ELF 32-bit LSB executable".
func MagicDescription(path string) (string, error) {
	r, err := newReaderAt(path)
	if err != nil {
		return "", err
	}
	types, err := magic.GetType(r)
	if err != nil {
		return "", fmt.Errorf("carve.MagicDescription(%s): %w", path, err)
	}
	if len(types) == 0 {
		return "", nil
	}
	return types[0], nil
}

// MagicMimeType returns the MIME type libmagic would assign to the file
// contents at path, e.g. "application/x-executable".
func MagicMimeType(path string) (string, error) {
	r, err := newReaderAt(path)
	if err != nil {
		return "", err
	}
	types, err := magic.GetMimeType(r)
	if err != nil {
		return "", fmt.Errorf("carve.MagicMimeType(%s): %w", path, err)
	}
	if len(types) == 0 {
		return "", nil
	}
	return types[0], nil
}

// blacklistedMimePrefixes and blacklistedDescriptionTerms mirror the classes
// of file that the cascade never bothers analyzing further: ordinary
// executables and user-facing documents never unpack into a kernel or a
// rootfs tree.
var blacklistedMimePrefixes = []string{
	"application/x-executable", "application/x-sharedlib",
	"application/x-dosexec", "application/x-object",
	"application/pdf", "application/msword", "application/vnd.openxmlformats",
	"image/", "text/", "video/", "audio/",
}

var blacklistedDescriptionTerms = []string{
	"executable", "universal binary", "relocatable", "bytecode", "applet",
}

// Blacklisted reports whether path should be skipped entirely by the
// extraction cascade based on its MIME type and magic description.
func Blacklisted(path string) bool {
	if strings.HasSuffix(strings.ToLower(path), ".dmg") {
		return true
	}
	mime, err := MagicMimeType(path)
	if err == nil {
		for _, prefix := range blacklistedMimePrefixes {
			if strings.HasPrefix(mime, prefix) {
				return true
			}
		}
	}
	desc, err := MagicDescription(path)
	if err == nil {
		lower := strings.ToLower(desc)
		for _, term := range blacklistedDescriptionTerms {
			if strings.Contains(lower, term) {
				return true
			}
		}
	}
	return false
}

// newReaderAt opens path and returns an io.ReaderAt over its contents,
// buffering into memory so the caller doesn't need to manage a file handle.
func newReaderAt(path string) (io.ReaderAt, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("carve: open %s: %w", path, err)
	}
	defer f.Close()
	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, f); err != nil {
		return nil, fmt.Errorf("carve: read %s: %w", path, err)
	}
	return bytes.NewReader(buf.Bytes()), nil
}
