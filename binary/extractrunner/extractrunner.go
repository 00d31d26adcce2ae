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

// Package extractrunner provides the main function for running a firmware
// extraction with the fwcarve binary.
package extractrunner

import (
	"context"

	"github.com/fwcarve/fwcarve/binary/cli"
	"github.com/fwcarve/fwcarve/engine"
	"github.com/fwcarve/fwcarve/log"
)

// Run executes one extraction with the given CLI flags and returns the exit
// code the main binary should pass to os.Exit().
func Run(flags *cli.Flags) int {
	if flags.Verbose {
		log.SetLogger(&log.DefaultLogger{Verbose: true})
	}

	cfg := flags.GetEngineConfig()
	e, err := engine.New(*cfg)
	if err != nil {
		log.Errorf("fwcarve: %v", err)
		return 1
	}
	defer e.Close()

	log.Infof("Extracting from %s into %s", cfg.Input, cfg.OutputDir)
	results, err := e.Extract(context.Background())
	if err != nil {
		log.Errorf("fwcarve: %v", err)
		return 1
	}

	succeeded := 0
	for _, r := range results {
		if r.Status {
			succeeded++
		}
		if !flags.Quiet {
			log.Infof("tag=%s status=%v kernel=%v rootfs=%v", r.Tag, r.Status, r.KernelDone, r.RootfsDone)
		}
	}
	log.Infof("%d/%d inputs extracted successfully", succeeded, len(results))

	return 0
}
