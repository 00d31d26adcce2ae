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
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// dlinkSHRSMagic is the 4-byte marker that opens a D-Link SHRS-wrapped
// firmware image.
var dlinkSHRSMagic = []byte("SHRS")

// dlinkKeyHex and dlinkIVHex are the fixed AES-128-CBC key and IV D-Link used
// to wrap firmware for a single family of devices. There is no salt and no
// per-image key derivation; every SHRS image uses the same pair.
const (
	dlinkKeyHex = "c05fbf1936c99429ce2a0781f08d6ad8"
	dlinkIVHex  = "67c6697351ff4aec29cdbaabf2fbe346"

	// dlinkSkipBytes is the size of the SHRS wrapper header that precedes the
	// AES-encrypted payload.
	dlinkSkipBytes = 1756
)

// IsDlinkSHRS reports whether path begins with the D-Link SHRS marker.
func IsDlinkSHRS(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("carve.IsDlinkSHRS: open %s: %w", path, err)
	}
	defer f.Close()

	header := make([]byte, len(dlinkSHRSMagic))
	n, err := io.ReadFull(f, header)
	if err != nil && n < len(dlinkSHRSMagic) {
		return false, nil
	}
	return string(header) == string(dlinkSHRSMagic), nil
}

// DecryptDlinkSHRS decrypts the AES-128-CBC payload of a D-Link SHRS image at
// src (skipping the fixed-size wrapper header) and writes the plaintext to
// dst. The cipher has no padding and no salt, so the input length after the
// skipped header must be a multiple of the AES block size; any remainder is
// dropped, matching the reference tool's use of `dd | openssl ... -nopad`.
func DecryptDlinkSHRS(src, dst string) error {
	key, err := hex.DecodeString(dlinkKeyHex)
	if err != nil {
		return fmt.Errorf("carve.DecryptDlinkSHRS: decode key: %w", err)
	}
	iv, err := hex.DecodeString(dlinkIVHex)
	if err != nil {
		return fmt.Errorf("carve.DecryptDlinkSHRS: decode iv: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("carve.DecryptDlinkSHRS: open %s: %w", src, err)
	}
	defer in.Close()

	if _, err := in.Seek(dlinkSkipBytes, io.SeekStart); err != nil {
		return fmt.Errorf("carve.DecryptDlinkSHRS: skip header: %w", err)
	}

	payload, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("carve.DecryptDlinkSHRS: read payload: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return fmt.Errorf("carve.DecryptDlinkSHRS: new cipher: %w", err)
	}

	usable := len(payload) - len(payload)%block.BlockSize()
	plaintext := make([]byte, usable)
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, payload[:usable])

	if err := os.WriteFile(dst, plaintext, 0o644); err != nil {
		return fmt.Errorf("carve.DecryptDlinkSHRS: write %s: %w", dst, err)
	}
	return nil
}
