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

// Package scanner drives an external binary-signature scanner, run inside a
// Docker container, over a single file and returns the artifacts it
// detected (and, where requested, extracted).
package scanner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/google/uuid"

	"github.com/fwcarve/fwcarve/log"
	"github.com/fwcarve/fwcarve/plugin"
)

// Errors returned by Scan.
var (
	// ErrScannerMissing means the scanner image or the container runtime
	// itself could not be reached.
	ErrScannerMissing = errors.New("scanner: container runtime or scanner image unavailable")
	// ErrScannerFailed means the container ran but exited non-zero or
	// produced a log the adapter could not parse.
	ErrScannerFailed = errors.New("scanner: scan failed")
	// ErrInputUnreadable means path does not exist or its parent directory
	// cannot be bind-mounted read/write.
	ErrInputUnreadable = errors.New("scanner: input file is not readable/mountable")
)

// DetectedArtifact is one entry from the scanner's signature map: a byte
// range within the scanned file identified as matching a known format.
type DetectedArtifact struct {
	Offset      uint64
	ID          string
	Size        uint64
	Confidence  float32
	Description string
	Extraction  *Extraction
}

// Extraction describes a side-effect unpacking the scanner performed for one
// DetectedArtifact, when Options.Extract was set.
type Extraction struct {
	Size      uint64
	Success   bool
	Extractor string
	OutputDir string
}

// Options configures one Scan invocation.
type Options struct {
	Verbose   bool
	Extract   bool
	Recursive bool
	SearchAll bool
	Include   []string
	Exclude   []string
	// OutputDir, if set, is a host-visible directory the scanner should
	// extract into. If empty, extraction output lands in an "extractions"
	// subdirectory next to the input file.
	OutputDir string
}

// Config configures a Scanner.
type Config struct {
	// Image is the Docker image providing the scanner binary.
	Image string
}

// DefaultConfig returns the default scanner configuration.
func DefaultConfig() Config {
	return Config{Image: "binwalkv3"}
}

// Scanner invokes the signature scanner in a container.
type Scanner struct {
	image  string
	client *client.Client
}

// New returns a Scanner using cfg. The Docker client is created lazily on
// the first Scan call.
func New(cfg Config) *Scanner {
	return &Scanner{image: cfg.Image}
}

// Requirements reports that Scan needs a container runtime.
func (s *Scanner) Requirements() *plugin.Capabilities {
	return &plugin.Capabilities{RequiresContainerRuntime: true}
}

func (s *Scanner) ensureClient() error {
	if s.client != nil {
		return nil
	}
	c, err := client.NewClientWithOpts(client.WithAPIVersionNegotiation())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrScannerMissing, err)
	}
	s.client = c
	return nil
}

// Scan runs the scanner over path with the given options and returns the
// artifacts it detected.
func (s *Scanner) Scan(ctx context.Context, path string, opts Options) ([]DetectedArtifact, error) {
	if err := checkInput(path); err != nil {
		return nil, err
	}
	if opts.OutputDir != "" {
		if err := checkOutputDir(opts.OutputDir); err != nil {
			return nil, err
		}
	}
	if err := s.ensureClient(); err != nil {
		return nil, err
	}

	args, mounts, logDir, hostOut, guestOut, err := buildInvocation(path, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScannerFailed, err)
	}
	defer os.RemoveAll(logDir)

	name := fmt.Sprintf("fwcarve-scan-%s", uuid.NewString())
	resp, err := s.client.ContainerCreate(ctx, &container.Config{
		Image:      s.image,
		Cmd:        args,
		WorkingDir: "/input",
	}, &container.HostConfig{
		Mounts:     mounts,
		AutoRemove: false,
	}, nil, nil, name)
	if err != nil {
		return nil, fmt.Errorf("%w: create container: %v", ErrScannerMissing, err)
	}
	defer func() {
		_ = s.client.ContainerRemove(context.Background(), resp.ID, container.RemoveOptions{Force: true})
	}()

	if err := s.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("%w: start container: %v", ErrScannerMissing, err)
	}

	statusCh, errCh := s.client.ContainerWait(ctx, resp.ID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if err != nil {
			return nil, fmt.Errorf("%w: wait container: %v", ErrScannerFailed, err)
		}
	case st := <-statusCh:
		if st.StatusCode != 0 {
			log.Warnf("scanner: container %s exited with status %d", name, st.StatusCode)
			return nil, fmt.Errorf("%w: exit status %d", ErrScannerFailed, st.StatusCode)
		}
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrScannerFailed, ctx.Err())
	}

	logPath := filepath.Join(logDir, "log.json")
	artifacts, err := parseLog(logPath, hostOut, guestOut)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScannerFailed, err)
	}
	return artifacts, nil
}

func checkInput(path string) error {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return fmt.Errorf("%w: %s", ErrInputUnreadable, path)
	}
	parent := filepath.Dir(path)
	if f, err := os.CreateTemp(parent, ".fwcarve-write-check-*"); err != nil {
		return fmt.Errorf("%w: parent of %s not writable: %v", ErrInputUnreadable, path, err)
	} else {
		name := f.Name()
		f.Close()
		os.Remove(name)
	}
	return nil
}

func checkOutputDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: output dir %s missing", ErrInputUnreadable, dir)
	}
	return nil
}

// buildInvocation constructs the scanner CLI arguments and bind mounts for
// path, mirroring the host<->guest path translation the reference tool
// performs for its structured log and, when requested, its extraction
// output directory.
func buildInvocation(path string, opts Options) (args []string, mounts []mount.Mount, logDir, hostOut, guestOut string, err error) {
	fullPath, err := filepath.Abs(path)
	if err != nil {
		return nil, nil, "", "", "", err
	}
	inputDir := filepath.Dir(fullPath)
	fileName := filepath.Base(fullPath)

	args = append(args, filepath.Join("/input", fileName))
	if opts.Verbose {
		args = append(args, "-v")
	}
	if opts.Extract {
		args = append(args, "-e")
	}
	if opts.Recursive {
		args = append(args, "-r")
	}
	if opts.SearchAll {
		args = append(args, "-a")
	}
	if len(opts.Exclude) > 0 {
		args = append(args, "--exclude")
		args = append(args, opts.Exclude...)
	}
	if len(opts.Include) > 0 {
		args = append(args, "--include")
		args = append(args, opts.Include...)
	}
	args = append(args, "-l", "/analysis/log.json")

	logDir, err = os.MkdirTemp("", "fwcarve-scanlog-*")
	if err != nil {
		return nil, nil, "", "", "", err
	}
	mounts = append(mounts,
		mount.Mount{Type: mount.TypeBind, Source: logDir, Target: "/analysis"},
		mount.Mount{Type: mount.TypeBind, Source: inputDir, Target: "/input"},
	)

	if opts.OutputDir != "" {
		hostOut, err = filepath.Abs(opts.OutputDir)
		if err != nil {
			return nil, nil, "", "", "", err
		}
		guestOut = "/output"
		mounts = append(mounts, mount.Mount{Type: mount.TypeBind, Source: hostOut, Target: "/output"})
		args = append(args, "-C", "/output")
	} else {
		hostOut = filepath.Join(inputDir, "extractions")
		guestOut = "/input/extractions"
		args = append(args, "-C", "/input/extractions")
	}
	return args, mounts, logDir, hostOut, guestOut, nil
}
