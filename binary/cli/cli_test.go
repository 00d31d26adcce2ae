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

package cli

import "testing"

func TestValidateFlagsRequiresInput(t *testing.T) {
	if err := ValidateFlags(&Flags{}); err == nil {
		t.Error("ValidateFlags with empty Input succeeded, want error")
	}
}

func TestValidateFlagsRejectsBadPort(t *testing.T) {
	if err := ValidateFlags(&Flags{Input: "fw.bin", SQLPort: 99999}); err == nil {
		t.Error("ValidateFlags with out-of-range port succeeded, want error")
	}
}

func TestGetEngineConfigDefaults(t *testing.T) {
	f := &Flags{Input: "fw.bin"}
	cfg := f.GetEngineConfig()

	if cfg.OutputDir != defaultOutput {
		t.Errorf("OutputDir = %q, want %q", cfg.OutputDir, defaultOutput)
	}
	if !cfg.DoKernel || !cfg.DoRootfs || !cfg.Parallel {
		t.Errorf("cfg = %+v, want all of DoKernel/DoRootfs/Parallel true by default", cfg)
	}
	if cfg.SinkConfig != nil {
		t.Errorf("SinkConfig = %+v, want nil without -sql", cfg.SinkConfig)
	}
}

func TestGetEngineConfigDisablesStages(t *testing.T) {
	f := &Flags{Input: "fw.bin", NoKernel: true, NoRootfs: true, NoParallel: true}
	cfg := f.GetEngineConfig()

	if cfg.DoKernel || cfg.DoRootfs || cfg.Parallel {
		t.Errorf("cfg = %+v, want all of DoKernel/DoRootfs/Parallel false", cfg)
	}
}

func TestGetEngineConfigSinkDefaultsPort(t *testing.T) {
	f := &Flags{Input: "fw.bin", SQLHost: "db.internal"}
	cfg := f.GetEngineConfig()

	if cfg.SinkConfig == nil {
		t.Fatal("SinkConfig = nil, want non-nil with -sql set")
	}
	if cfg.SinkConfig.Port != defaultSQLPort {
		t.Errorf("SinkConfig.Port = %d, want %d", cfg.SinkConfig.Port, defaultSQLPort)
	}
}
