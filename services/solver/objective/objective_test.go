// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package objective

import (
	"testing"

	"github.com/soniakeys/bits"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianSolver/services/solver/graph"
	"github.com/AleutianAI/AleutianSolver/services/solver/numeric"
	"github.com/AleutianAI/AleutianSolver/services/solver/strategy"
)

func twoNodes(t *testing.T) *graph.Explicit {
	t.Helper()
	b := graph.NewBuilder()
	b.AddNode(graph.PlayerMax)
	b.AddNode(graph.PlayerStochastic)
	_, err := b.AddChoice(0, graph.Edge{To: 1, Weight: 1})
	require.NoError(t, err)
	_, err = b.AddChoice(0, graph.Edge{To: 0, Weight: 1})
	require.NoError(t, err)
	_, err = b.AddChoice(1, graph.Edge{To: 1, Weight: 1})
	require.NoError(t, err)
	g, err := b.Build()
	require.NoError(t, err)
	return g
}

func TestReachability_PopulatedOnce(t *testing.T) {
	g := twoNodes(t)
	target := bits.New(2)
	target.SetBit(1, 1)
	o := NewUnboundedReachabilityGame(g, target, true)

	assert.Equal(t, KindReachability, o.Kind())
	assert.False(t, o.Solved())
	assert.Nil(t, o.Result())
	assert.True(t, o.ComputeScheduler())

	values := numeric.NewVector[float64](numeric.Float64{}, []float64{1, 1})
	sched := strategy.NewScheduler(2)
	require.NoError(t, o.SetOutcome(values, sched))

	assert.True(t, o.Solved())
	assert.Equal(t, []float64{1, 1}, numeric.Floats(o.Result()))
	assert.Same(t, sched, o.Scheduler())
	assert.ErrorIs(t, o.SetOutcome(values, sched), ErrAlreadySolved)
}

func TestScheduled_KeepsFixedScheduler(t *testing.T) {
	g := twoNodes(t)
	fixed := strategy.NewSchedulerFrom([]strategy.Decision{strategy.Stop(), strategy.Unset})
	o := NewMultiObjectiveScheduled(g, fixed, []float64{0, 0, 0}, []float64{3, 0})

	require.NoError(t, o.SetResult(numeric.NewVector[float64](numeric.Float64{}, []float64{3, 0})))
	assert.Same(t, fixed, o.Scheduler())
	assert.Equal(t, KindScheduled, o.Kind())
}

func TestCheckRewards(t *testing.T) {
	g := twoNodes(t)

	assert.NoError(t, CheckRewards(g, []float64{1, 2, 3}, []float64{0, 0}))
	assert.Error(t, CheckRewards(g, []float64{1, 2}, []float64{0, 0}))
	assert.Error(t, CheckRewards(g, []float64{1, 2, 3}, []float64{0}))
}

func TestDeadlockFree(t *testing.T) {
	assert.True(t, DeadlockFree(twoNodes(t)))
}
