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

// Package item implements the per-artifact classification and recursion
// state machine at the center of the extraction cascade.
package item

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/fwcarve/fwcarve/scanner"
	"github.com/fwcarve/fwcarve/sink"
)

// Scanner is the subset of *scanner.Scanner the cascade depends on. It
// exists so tests can drive the cascade (recursion, breadth/dedup, rootfs
// packaging) against a fake without a Docker daemon; production code always
// passes a real *scanner.Scanner, which satisfies this interface.
type Scanner interface {
	Scan(ctx context.Context, path string, opts scanner.Options) ([]scanner.DetectedArtifact, error)
}

// RecursionDepth is the maximum depth (root item at 0) the cascade will
// descend to.
const RecursionDepth = 3

// RecursionBreadth is the maximum number of sibling files within a single
// directory the cascade will visit; reaching the next one sets the item's
// Terminate flag and stops its whole walk.
const RecursionBreadth = 5

// Context is the state shared by every ExtractionItem spawned during one
// engine run. It is held by a pointer passed down through recursion; the
// only field workers mutate concurrently is visited, guarded by its own
// mutex, and the two atomics, which are only ever flipped from true to
// false.
type Context struct {
	// Scanner drives the external signature scanner.
	Scanner Scanner
	// Sink is the optional metadata database; nil if not configured.
	Sink *sink.Sink
	// OutputDir is where completed kernel/rootfs artifacts are written. If
	// empty, extraction for that stage is disabled globally.
	OutputDir string
	// Brand is recorded alongside any image upserted into Sink.
	Brand string
	// DoKernel and DoRootfs gate whether the corresponding cascade stages
	// run at all; they are flipped false once the output directory for
	// that stage turns out not to be usable.
	DoKernel *atomic.Bool
	DoRootfs *atomic.Bool
	// Quiet suppresses the depth-indented progress logging Extract does
	// for each item.
	Quiet bool

	visitedMu sync.Mutex
	visited   map[string]struct{}
}

// NewContext returns a Context ready for a new run. doKernel/doRootfs set
// the initial values of the corresponding atomics.
func NewContext(sc Scanner, sk *sink.Sink, outputDir, brand string, doKernel, doRootfs, quiet bool) *Context {
	k, r := &atomic.Bool{}, &atomic.Bool{}
	k.Store(doKernel)
	r.Store(doRootfs)
	return &Context{
		Scanner:   sc,
		Sink:      sk,
		OutputDir: outputDir,
		Brand:     brand,
		DoKernel:  k,
		DoRootfs:  r,
		Quiet:     quiet,
		visited:   make(map[string]struct{}),
	}
}

// markVisited inserts checksum into the visited set if absent and reports
// whether this call was the one that inserted it (i.e. whether the caller
// should proceed to process the item).
func (c *Context) markVisited(checksum string) (inserted bool) {
	c.visitedMu.Lock()
	defer c.visitedMu.Unlock()
	if _, ok := c.visited[checksum]; ok {
		return false
	}
	c.visited[checksum] = struct{}{}
	return true
}
