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

// Package cli defines the structures to store the CLI flags used by the
// fwcarve binary and converts them into an engine.Config.
package cli

import (
	"errors"
	"fmt"

	"github.com/fwcarve/fwcarve/engine"
	"github.com/fwcarve/fwcarve/sink"
)

// Flags contains a field for every fwcarve CLI flag.
type Flags struct {
	Input        string
	Output       string
	SQLHost      string
	SQLPort      int
	NoRootfs     bool
	NoKernel     bool
	NoParallel   bool
	Brand        string
	Quiet        bool
	Verbose      bool
	ScannerImage string
}

// defaultOutput is used when the CLI is invoked without an explicit output
// directory.
const defaultOutput = "images"

// defaultSQLPort is the default PostgreSQL port used when -sql is given
// without an explicit -port.
const defaultSQLPort = 5432

// ValidateFlags validates the parsed command line flags.
func ValidateFlags(flags *Flags) error {
	if flags.Input == "" {
		return errors.New("input path is required")
	}
	if flags.SQLPort < 0 || flags.SQLPort > 65535 {
		return fmt.Errorf("-port %d out of range", flags.SQLPort)
	}
	return nil
}

// GetEngineConfig constructs an engine.Config from the provided CLI flags.
func (f *Flags) GetEngineConfig() *engine.Config {
	output := f.Output
	if output == "" {
		output = defaultOutput
	}

	cfg := &engine.Config{
		Input:        f.Input,
		OutputDir:    output,
		ScannerImage: f.ScannerImage,
		Brand:        f.Brand,
		DoKernel:     !f.NoKernel,
		DoRootfs:     !f.NoRootfs,
		Parallel:     !f.NoParallel,
		Quiet:        f.Quiet,
	}
	if f.SQLHost != "" {
		port := f.SQLPort
		if port == 0 {
			port = defaultSQLPort
		}
		cfg.SinkConfig = &sink.Config{Host: f.SQLHost, Port: port}
	}
	return cfg
}
