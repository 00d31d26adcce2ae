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
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fwcarve/fwcarve/log"
)

// scanLog mirrors the structured log the scanner writes:
// [ { "Analysis": { "file_map": [...], "extractions": { id: {...} } } } ]
type scanLog []struct {
	Analysis struct {
		FileMap []struct {
			Offset      uint64  `json:"offset"`
			ID          string  `json:"id"`
			Size        uint64  `json:"size"`
			Confidence  float32 `json:"confidence"`
			Description string  `json:"description"`
		} `json:"file_map"`
		Extractions map[string]struct {
			Size      uint64 `json:"size"`
			Success   bool   `json:"success"`
			Extractor string `json:"extractor"`
			OutputDir string `json:"output_directory"`
		} `json:"extractions"`
	} `json:"Analysis"`
}

// parseLog reads the scanner's structured log at path and translates every
// extraction's guest-visible output directory to its host-visible
// equivalent by replacing the guest prefix with the host prefix once.
func parseLog(path, hostOut, guestOut string) ([]DetectedArtifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("parseLog: read %s: %w", path, err)
	}

	var parsed scanLog
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parseLog: unmarshal %s: %w", path, err)
	}
	if len(parsed) == 0 {
		return nil, fmt.Errorf("parseLog: %s has no analysis entries", path)
	}

	analysis := parsed[0].Analysis
	artifacts := make([]DetectedArtifact, 0, len(analysis.FileMap))
	for _, f := range analysis.FileMap {
		artifact := DetectedArtifact{
			Offset:      f.Offset,
			ID:          f.ID,
			Size:        f.Size,
			Confidence:  f.Confidence,
			Description: f.Description,
		}
		if ext, ok := analysis.Extractions[f.ID]; ok {
			dir := ext.OutputDir
			if guestOut != "" {
				dir = strings.Replace(dir, guestOut, hostOut, 1)
			}
			artifact.Extraction = &Extraction{
				Size:      ext.Size,
				Success:   ext.Success,
				Extractor: ext.Extractor,
				OutputDir: dir,
			}
		} else {
			log.Debugf("parseLog: artifact %s has no extraction entry", f.ID)
		}
		artifacts = append(artifacts, artifact)
	}
	return artifacts, nil
}
