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

// Package plugin collects the common code shared by extraction stages that
// need to declare what their runtime environment must provide.
package plugin

import "os"

// Capabilities describes what a stage needs from the environment it runs in.
type Capabilities struct {
	// RequiresContainerRuntime is true for stages that shell out to a
	// containerized signature scanner.
	RequiresContainerRuntime bool
	// RequiresNetwork is true for stages that dial an external metadata sink.
	RequiresNetwork bool
}

// Satisfies reports whether env provides everything c requires.
func (c *Capabilities) Satisfies(env *Capabilities) bool {
	if c.RequiresContainerRuntime && !env.RequiresContainerRuntime {
		return false
	}
	if c.RequiresNetwork && !env.RequiresNetwork {
		return false
	}
	return true
}

// Requirer is implemented by anything that can declare what it needs from
// its runtime environment, such as scanner.Scanner.
type Requirer interface {
	Requirements() *Capabilities
}

// DetectEnvironment reports what the current host can actually provide,
// using the same Unix domain socket and DOCKER_HOST conventions the
// container client honors, so callers can warn up front rather than let
// every scan invocation fail one by one.
func DetectEnvironment() *Capabilities {
	caps := &Capabilities{RequiresNetwork: true}
	if os.Getenv("DOCKER_HOST") != "" {
		caps.RequiresContainerRuntime = true
		return caps
	}
	if _, err := os.Stat("/var/run/docker.sock"); err == nil {
		caps.RequiresContainerRuntime = true
	}
	return caps
}

// Status contains the outcome of running one stage.
type Status struct {
	Name   string
	Status *StageStatus
}

// StageStatus is the status of a single cascade stage run.
type StageStatus struct {
	Status        StatusEnum
	FailureReason string
}

// StatusEnum is the enum for stage run status.
type StatusEnum int

// StatusEnum values.
const (
	StatusUnspecified StatusEnum = iota
	StatusSucceeded
	StatusSkipped
	StatusFailed
)

// FromErr returns a StageStatus for a given error, nil meaning success.
func FromErr(err error) *StageStatus {
	if err == nil {
		return &StageStatus{Status: StatusSucceeded}
	}
	return &StageStatus{Status: StatusFailed, FailureReason: err.Error()}
}

// String returns a string representation of the status.
func (s *StageStatus) String() string {
	switch s.Status {
	case StatusSucceeded:
		return "SUCCEEDED"
	case StatusSkipped:
		return "SKIPPED"
	case StatusFailed:
		return "FAILED: " + s.FailureReason
	}
	return "UNSPECIFIED"
}
