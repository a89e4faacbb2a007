// Copyright 2020-2021 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package graph_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vrouter/fibpath/graph"
)

func TestBackWalkReasonHasAndString(t *testing.T) {
	r := graph.ReasonAdjUpdate | graph.ReasonEvaluate
	require.True(t, r.Has(graph.ReasonAdjUpdate))
	require.True(t, r.Has(graph.ReasonEvaluate))
	require.False(t, r.Has(graph.ReasonAdjDown))
	require.Equal(t, "adj-update|evaluate", r.String())

	require.Equal(t, "none", graph.BackWalkReason(0).String())
}

func TestResultString(t *testing.T) {
	require.Equal(t, "continue", graph.Continue.String())
	require.Equal(t, "unknown", graph.Result(99).String())
}

func TestAssertfPanicsOnFalse(t *testing.T) {
	require.NotPanics(t, func() { graph.Assertf(true, "unreachable") })
	require.PanicsWithValue(t, "bad: 1", func() { graph.Assertf(false, "bad: %d", 1) })
}

func TestUnreachablePanics(t *testing.T) {
	require.Panics(t, func() { graph.Unreachable("path") })
}
