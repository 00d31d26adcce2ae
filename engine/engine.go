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

// Package engine ties the scanner, item and sink packages together into the
// top-level driver: it enumerates the inputs given to one run, spins up a
// bounded worker pool, and returns one ExtractionResult per top-level input.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/fwcarve/fwcarve/item"
	"github.com/fwcarve/fwcarve/log"
	"github.com/fwcarve/fwcarve/plugin"
	"github.com/fwcarve/fwcarve/scanner"
	"github.com/fwcarve/fwcarve/sink"
)

// ErrNoInputs is returned when the configured input cannot be stat'ed or
// walked. A directory with no regular files is not an error: Extract
// returns no results for it.
var ErrNoInputs = errors.New("engine: input is neither a file nor a directory of files")

// Config configures one Extractor run.
type Config struct {
	// Input is a file or a directory of files to extract from.
	Input string
	// OutputDir is where completed kernel/rootfs artifacts are written. It is
	// created if missing.
	OutputDir string
	// ScannerImage is the Docker image providing the signature scanner.
	ScannerImage string
	// SinkConfig, if non-nil, enables the optional metadata database.
	SinkConfig *sink.Config
	// Brand is recorded alongside any image upserted into the sink.
	Brand string
	// DoKernel and DoRootfs gate the corresponding cascade stages.
	DoKernel bool
	DoRootfs bool
	// Parallel enables the bounded worker pool; otherwise inputs are
	// processed one at a time.
	Parallel bool
	// Quiet suppresses per-item progress logging.
	Quiet bool
}

// workerCount bounds the worker pool size when Config.Parallel is set,
// mirroring the reference tool's multiprocessing.Pool() default of one
// worker per CPU.
func workerCount() int {
	return runtime.NumCPU()
}

// Extractor drives one extraction run over Config.Input.
type Extractor struct {
	cfg Config
	ctx *item.Context
	sk  *sink.Sink
}

// New builds an Extractor from cfg, opening the metadata sink (if
// configured) and building the scanner, whose Docker client connects on
// first use. A sink that fails to connect is logged
// and ignored, matching the reference tool's tolerance for a missing
// database: the run proceeds with hash-based tags.
func New(cfg Config) (*Extractor, error) {
	var sk *sink.Sink
	if cfg.SinkConfig != nil {
		s, err := sink.Open(*cfg.SinkConfig)
		if err != nil {
			log.Warnf("engine: metadata sink unavailable, falling back to hash-based tags: %v", err)
		} else {
			sk = s
		}
	}

	sc := scanner.New(scanner.Config{Image: cfg.ScannerImage})
	warnIfEnvironmentUnsuitable(sc)

	ictx := item.NewContext(sc, sk, cfg.OutputDir, cfg.Brand, cfg.DoKernel, cfg.DoRootfs, cfg.Quiet)

	return &Extractor{cfg: cfg, ctx: ictx, sk: sk}, nil
}

// warnIfEnvironmentUnsuitable logs, but does not block on, a mismatch
// between what req declares it needs and what DetectEnvironment finds
// locally: the scanner may still be reachable over a remote Docker host even
// when no local socket is present, so this is advisory only.
func warnIfEnvironmentUnsuitable(req plugin.Requirer) {
	need := req.Requirements()
	have := plugin.DetectEnvironment()
	if !need.Satisfies(have) {
		log.Warnf("engine: scanner requires a container runtime but none was detected locally; relying on DOCKER_HOST or a remote daemon")
	}
}

// Close releases resources held by the Extractor, such as the metadata sink
// connection.
func (e *Extractor) Close() error {
	if e.sk != nil {
		return e.sk.Close()
	}
	return nil
}

// Extract enumerates e.cfg.Input, runs one ExtractionItem per top-level
// entry (in parallel if configured), and returns one ExtractionResult per
// entry. The result slice is positionally stable: result[i] always
// corresponds to the i-th enumerated input, regardless of parallelism.
func (e *Extractor) Extract(ctx context.Context) ([]item.ExtractionResult, error) {
	inputs, err := enumerate(e.cfg.Input)
	if err != nil {
		log.Errorf("engine: enumerate %s: %s", e.cfg.Input, plugin.FromErr(err))
		return nil, err
	}
	if len(inputs) == 0 {
		log.Warnf("engine: %s yielded no extractable inputs", e.cfg.Input)
		return nil, nil
	}

	if e.cfg.OutputDir != "" {
		if err := os.MkdirAll(e.cfg.OutputDir, 0o755); err != nil {
			return nil, fmt.Errorf("engine: create output dir %s: %w", e.cfg.OutputDir, err)
		}
	}

	results := make([]item.ExtractionResult, len(inputs))

	if !e.cfg.Parallel {
		for i, path := range inputs {
			results[i] = e.runOne(ctx, path)
		}
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workerCount())
	for i, path := range inputs {
		i, path := i, path
		g.Go(func() error {
			results[i] = e.runOne(gctx, path)
			return nil
		})
	}
	// Worker errors are carried in each ExtractionResult rather than
	// returned; every worker returns nil, so g.Wait never reports an error.
	_ = g.Wait()
	return results, nil
}

// runOne builds and runs the root ExtractionItem for one top-level input.
func (e *Extractor) runOne(ctx context.Context, path string) item.ExtractionResult {
	it, err := item.NewRoot(e.ctx, path)
	if err != nil {
		status := plugin.Status{Name: path, Status: plugin.FromErr(err)}
		log.Errorf("engine: %s", status.Status)
		return item.ExtractionResult{Status: false}
	}
	result := it.Extract(ctx)
	if !e.cfg.Quiet {
		status := plugin.Status{Name: path, Status: resultStageStatus(result)}
		log.Infof("engine: %s: %s", status.Name, status.Status)
	}
	return result
}

// resultStageStatus reports an ExtractionResult as a plugin.StageStatus so
// it can be logged and, eventually, aggregated the same way a plugin run's
// outcome would be.
func resultStageStatus(result item.ExtractionResult) *plugin.StageStatus {
	if result.Status {
		return &plugin.StageStatus{Status: plugin.StatusSucceeded}
	}
	return &plugin.StageStatus{Status: plugin.StatusFailed, FailureReason: "no kernel or rootfs recovered"}
}

// enumerate expands cfg.Input into the list of top-level files to run
// extraction on: the file itself, or every regular file anywhere beneath a
// directory, subdirectories included. Each file found is one top-level
// input; recursion into nested firmware happens inside the cascade, not
// here.
func enumerate(input string) ([]string, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNoInputs, input, err)
	}

	if !info.IsDir() {
		return []string{input}, nil
	}

	var files []string
	err = filepath.WalkDir(input, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNoInputs, input, err)
	}
	return files, nil
}
