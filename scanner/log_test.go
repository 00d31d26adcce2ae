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

package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseLog(t *testing.T) {
	const raw = `[
		{
			"Analysis": {
				"file_map": [
					{"offset": 0, "id": "sig1", "size": 128, "confidence": 0.9, "description": "gzip compressed data"},
					{"offset": 128, "id": "sig2", "size": 64, "confidence": 0.5, "description": "some other format"}
				],
				"extractions": {
					"sig1": {"size": 256, "success": true, "extractor": "gzip", "output_directory": "/output/sig1.extracted"}
				}
			}
		}
	]`

	dir := t.TempDir()
	logPath := filepath.Join(dir, "log.json")
	if err := os.WriteFile(logPath, []byte(raw), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := parseLog(logPath, "/host/out", "/output")
	if err != nil {
		t.Fatalf("parseLog: %v", err)
	}

	want := []DetectedArtifact{
		{
			Offset: 0, ID: "sig1", Size: 128, Confidence: 0.9, Description: "gzip compressed data",
			Extraction: &Extraction{Size: 256, Success: true, Extractor: "gzip", OutputDir: "/host/out/sig1.extracted"},
		},
		{
			Offset: 128, ID: "sig2", Size: 64, Confidence: 0.5, Description: "some other format",
		},
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("parseLog(): (-want +got):\n%s", diff)
	}
}

func TestParseLogMissingFile(t *testing.T) {
	if _, err := parseLog(filepath.Join(t.TempDir(), "missing.json"), "", ""); err == nil {
		t.Error("parseLog with missing file succeeded, want error")
	}
}
