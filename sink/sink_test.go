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

package sink_test

import (
	"context"
	"testing"

	"github.com/fwcarve/fwcarve/sink"
)

func TestSetImageFlagRejectsUnknownField(t *testing.T) {
	s := &sink.Sink{}
	err := s.SetImageFlag(context.Background(), "1", sink.Field(99), "x")
	if err == nil {
		t.Error("SetImageFlag with unknown field succeeded, want error")
	}
}
