// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package solver

import (
	"context"
	"errors"
	"testing"

	"github.com/soniakeys/bits"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianSolver/services/solver/graph"
	"github.com/AleutianAI/AleutianSolver/services/solver/iterate"
	"github.com/AleutianAI/AleutianSolver/services/solver/numeric"
	"github.com/AleutianAI/AleutianSolver/services/solver/objective"
	"github.com/AleutianAI/AleutianSolver/services/solver/sparse"
	"github.com/AleutianAI/AleutianSolver/services/solver/strategy"
)

// =============================================================================
// Fixtures
// =============================================================================

func e(to int, w float64) graph.Edge { return graph.Edge{To: to, Weight: w} }

func build(t *testing.T, players []graph.Player, choices map[int][][]graph.Edge) *graph.Explicit {
	t.Helper()
	b := graph.NewBuilder()
	for _, p := range players {
		b.AddNode(p)
	}
	for n := range players {
		for _, edges := range choices[n] {
			_, err := b.AddChoice(n, edges...)
			require.NoError(t, err)
		}
	}
	g, err := b.Build()
	require.NoError(t, err)
	return g
}

func targetOf(n int, nodes ...int) bits.Bits {
	b := bits.New(n)
	for _, v := range nodes {
		b.SetBit(v, 1)
	}
	return b
}

// scenarioA: 0 max chooses A -> 1 or B -> 2; 1 is the target, 2 absorbing.
func scenarioA(t *testing.T) *graph.Explicit {
	return build(t,
		[]graph.Player{graph.PlayerMax, graph.PlayerStochastic, graph.PlayerStochastic},
		map[int][][]graph.Edge{
			0: {{e(1, 1)}, {e(2, 1)}},
			1: {{e(1, 1)}},
			2: {{e(2, 1)}},
		})
}

// scenarioB: 0 loops with 0.5 and reaches the target 1 with 0.5.
func scenarioB(t *testing.T) *graph.Explicit {
	return build(t,
		[]graph.Player{graph.PlayerStochastic, graph.PlayerStochastic},
		map[int][][]graph.Edge{
			0: {{e(0, 0.5), e(1, 0.5)}},
			1: {{e(1, 1)}},
		})
}

// game: 0 max and 1 min choose between 2 (0.7 to target 4) and 3 (0.4).
func game(t *testing.T) *graph.Explicit {
	return build(t,
		[]graph.Player{
			graph.PlayerMax, graph.PlayerMin,
			graph.PlayerStochastic, graph.PlayerStochastic,
			graph.PlayerStochastic, graph.PlayerStochastic,
		},
		map[int][][]graph.Edge{
			0: {{e(2, 1)}, {e(3, 1)}},
			1: {{e(2, 1)}, {e(3, 1)}},
			2: {{e(4, 0.7), e(5, 0.3)}},
			3: {{e(4, 0.4), e(5, 0.6)}},
			4: {{e(4, 1)}},
			5: {{e(5, 1)}},
		})
}

// rewardMDP: 0 max takes choice 0 (reward 1) to 1 or choice 1 (reward 3)
// to 2; 1 moves to the absorbing 2 and pays 4 for stopping.
func rewardMDP(t *testing.T) (*graph.Explicit, []float64, []float64) {
	g := build(t,
		[]graph.Player{graph.PlayerMax, graph.PlayerStochastic, graph.PlayerStochastic},
		map[int][][]graph.Edge{
			0: {{e(1, 1)}, {e(2, 1)}},
			1: {{e(2, 1)}},
			2: {{e(2, 1)}},
		})
	return g, []float64{1, 3, 0, 0}, []float64{0, 4, 0}
}

func newReach(t *testing.T, mutate func(*Options)) *ReachabilityGameSolver {
	t.Helper()
	opts := DefaultOptions()
	if mutate != nil {
		mutate(&opts)
	}
	s, err := NewReachabilityGameSolver(opts)
	require.NoError(t, err)
	return s
}

// =============================================================================
// Reachability
// =============================================================================

func TestReachability_ScenarioA(t *testing.T) {
	g := scenarioA(t)
	obj := objective.NewUnboundedReachabilityGame(g, targetOf(3, 1), true)
	s := newReach(t, func(o *Options) { o.VerifyScheduler = true })

	require.True(t, s.CanHandle(obj))
	report, err := s.Run(context.Background(), obj)
	require.NoError(t, err)

	assert.InDeltaSlice(t, []float64{1, 1, 0}, numeric.Floats(obj.Result()), 1e-9)
	assert.Equal(t, strategy.Choice(0), obj.Scheduler().Decision(0))
	assert.Equal(t, IdentifierReachability, report.Solver)
	assert.NotEmpty(t, report.ID)
	assert.True(t, report.Converged)
	assert.Equal(t, 2, report.States, "the absorbing non-target node is dropped")
}

func TestReachability_ScenarioB(t *testing.T) {
	for _, method := range []iterate.Method{iterate.Jacobi, iterate.GaussSeidel} {
		t.Run(method.String(), func(t *testing.T) {
			obj := objective.NewUnboundedReachabilityGame(scenarioB(t), targetOf(2, 1), false)
			s := newReach(t, func(o *Options) { o.Iterate.Method = method })

			require.NoError(t, s.Solve(context.Background(), obj))
			assert.InDeltaSlice(t, []float64{1, 1}, numeric.Floats(obj.Result()), 1e-5)
			assert.Nil(t, obj.Scheduler())
		})
	}
}

func TestReachability_Game(t *testing.T) {
	obj := objective.NewUnboundedReachabilityGame(game(t), targetOf(6, 4), true)
	s := newReach(t, func(o *Options) { o.VerifyScheduler = true })

	require.NoError(t, s.Solve(context.Background(), obj))
	assert.InDeltaSlice(t, []float64{0.7, 0.4, 0.7, 0.4, 1, 0}, numeric.Floats(obj.Result()), 1e-9)
	assert.Equal(t, strategy.Choice(0), obj.Scheduler().Decision(0))
	assert.Equal(t, strategy.Choice(1), obj.Scheduler().Decision(1))
}

func TestReachability_NumericKindsAgree(t *testing.T) {
	for _, kind := range []numeric.Kind{numeric.KindDouble, numeric.KindRational, numeric.KindInterval} {
		t.Run(kind.String(), func(t *testing.T) {
			obj := objective.NewUnboundedReachabilityGame(game(t), targetOf(6, 4), true)
			s := newReach(t, func(o *Options) { o.Numeric = kind })

			report, err := s.Run(context.Background(), obj)
			require.NoError(t, err)
			assert.Equal(t, kind, report.Numeric)
			assert.InDeltaSlice(t, []float64{0.7, 0.4, 0.7, 0.4, 1, 0}, numeric.Floats(obj.Result()), 1e-9)
			assert.Equal(t, strategy.Choice(1), obj.Scheduler().Decision(1))
		})
	}
}

func TestReachability_DidNotConverge(t *testing.T) {
	obj := objective.NewUnboundedReachabilityGame(scenarioB(t), targetOf(2, 1), false)
	s := newReach(t, func(o *Options) { o.Iterate.MaxIterations = 3 })

	report, err := s.Run(context.Background(), obj)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDidNotConverge))

	var nce *iterate.NotConvergedError
	require.True(t, errors.As(err, &nce))
	assert.Equal(t, 3, nce.Iterations)
	assert.InDelta(t, 0.125, nce.Distance, 1e-12)

	require.NotNil(t, report)
	assert.Equal(t, 3, report.Iterations)
	assert.False(t, report.Converged)
	assert.False(t, obj.Solved())
}

func TestReachability_InsufficientCapacity(t *testing.T) {
	obj := objective.NewUnboundedReachabilityGame(scenarioA(t), targetOf(3, 1), true)
	s := newReach(t, func(o *Options) { o.MaxEdges = 1 })

	err := s.Solve(context.Background(), obj)
	assert.ErrorIs(t, err, ErrInsufficientCapacity)

	var ce *sparse.CapacityError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "edges", ce.What)
}

func TestReachability_CanHandle(t *testing.T) {
	s := newReach(t, nil)
	g := scenarioA(t)

	assert.False(t, s.CanHandle(objective.NewUnboundedReachabilityGame(g, targetOf(2, 1), false)), "target size")
	assert.False(t, s.CanHandle(objective.NewMultiObjectiveWeighted(g, []float64{0, 0, 0, 0}, []float64{0, 0, 0})))

	obj := objective.NewUnboundedReachabilityGame(g, targetOf(3, 1), false)
	require.NoError(t, s.Solve(context.Background(), obj))
	assert.False(t, s.CanHandle(obj), "already solved")
	assert.ErrorIs(t, s.Solve(context.Background(), obj), ErrUnsupportedObjective)
}

func TestReachability_ProgressAndSolveID(t *testing.T) {
	var seen []Progress
	ctx := WithSolveID(context.Background(), "solve-1")
	ctx = WithProgressSink(ctx, ProgressFunc(func(_ context.Context, p Progress) {
		seen = append(seen, p)
	}))

	obj := objective.NewUnboundedReachabilityGame(scenarioB(t), targetOf(2, 1), false)
	report, err := newReach(t, nil).Run(ctx, obj)
	require.NoError(t, err)

	assert.Equal(t, "solve-1", report.ID)
	require.Len(t, seen, report.Iterations)
	assert.Equal(t, "solve-1", seen[0].SolveID)
	assert.Equal(t, 1, seen[0].Iteration)
	assert.Equal(t, IdentifierReachability, seen[0].Solver)
}

// =============================================================================
// Weighted and scheduled
// =============================================================================

func TestWeighted_ScenarioC(t *testing.T) {
	g := build(t,
		[]graph.Player{graph.PlayerMax, graph.PlayerStochastic},
		map[int][][]graph.Edge{
			0: {{e(1, 1)}},
			1: {{e(1, 1)}},
		})
	obj := objective.NewMultiObjectiveWeighted(g, []float64{2, 0}, []float64{5, 0})
	s, err := NewWeightedSolver(DefaultOptions())
	require.NoError(t, err)

	require.True(t, s.CanHandle(obj))
	require.NoError(t, s.Solve(context.Background(), obj))
	assert.InDeltaSlice(t, []float64{5, 0}, numeric.Floats(obj.Result()), 1e-12)
	assert.Equal(t, strategy.Stop(), obj.Scheduler().Decision(0))
}

func TestWeighted_TieKeepsChoice(t *testing.T) {
	// Choice 0 pays 2 into the absorbing 1, exactly the stop reward of 0.
	g := build(t,
		[]graph.Player{graph.PlayerMax, graph.PlayerStochastic},
		map[int][][]graph.Edge{
			0: {{e(1, 1)}},
			1: {{e(1, 1)}},
		})
	for _, kind := range []numeric.Kind{numeric.KindDouble, numeric.KindRational} {
		t.Run(kind.String(), func(t *testing.T) {
			opts := DefaultOptions()
			opts.Numeric = kind
			s, err := NewWeightedSolver(opts)
			require.NoError(t, err)

			obj := objective.NewMultiObjectiveWeighted(g, []float64{2, 0}, []float64{2, 0})
			require.NoError(t, s.Solve(context.Background(), obj))
			assert.InDeltaSlice(t, []float64{2, 0}, numeric.Floats(obj.Result()), 1e-12)
			assert.Equal(t, strategy.Choice(0), obj.Scheduler().Decision(0))
		})
	}
}

func TestWeighted_DistributionNodesNeverStop(t *testing.T) {
	// 0 stops for 1 or moves to the fair coin 1, which lands on 2 (stop
	// for 4) or 3 (nothing).
	g := build(t,
		[]graph.Player{graph.PlayerMax, graph.PlayerStochastic, graph.PlayerMax, graph.PlayerMax},
		map[int][][]graph.Edge{
			0: {{e(1, 1)}},
			1: {{e(2, 0.5), e(3, 0.5)}},
			2: {{e(2, 1)}},
			3: {{e(3, 1)}},
		})
	obj := objective.NewMultiObjectiveWeighted(g, []float64{0, 0, 0, 0}, []float64{1, 0, 4, 0})
	s, err := NewWeightedSolver(DefaultOptions())
	require.NoError(t, err)

	require.NoError(t, s.Solve(context.Background(), obj))
	assert.InDeltaSlice(t, []float64{2, 2, 4, 0}, numeric.Floats(obj.Result()), 1e-12)
	assert.Equal(t, strategy.Choice(0), obj.Scheduler().Decision(0))
	assert.Equal(t, strategy.Choice(0), obj.Scheduler().Decision(1))
	assert.Equal(t, strategy.Stop(), obj.Scheduler().Decision(2))
}

func TestWeighted_PrefersImprovingChoice(t *testing.T) {
	g, tr, stop := rewardMDP(t)
	obj := objective.NewMultiObjectiveWeighted(g, tr, stop)
	s, err := NewWeightedSolver(DefaultOptions())
	require.NoError(t, err)

	require.NoError(t, s.Solve(context.Background(), obj))
	assert.InDeltaSlice(t, []float64{5, 4, 0}, numeric.Floats(obj.Result()), 1e-12)
	assert.Equal(t, strategy.Choice(0), obj.Scheduler().Decision(0))
	assert.Equal(t, strategy.Stop(), obj.Scheduler().Decision(1))
}

func TestWeighted_RejectsGames(t *testing.T) {
	g := game(t)
	obj := objective.NewMultiObjectiveWeighted(g, make([]float64, g.NumChoicesTotal()), make([]float64, g.NumNodes()))
	s, err := NewWeightedSolver(DefaultOptions())
	require.NoError(t, err)
	assert.False(t, s.CanHandle(obj))
}

func TestScheduled_EvaluatesWeightedScheduler(t *testing.T) {
	g, tr, stop := rewardMDP(t)
	weighted := objective.NewMultiObjectiveWeighted(g, tr, stop)
	ws, err := NewWeightedSolver(DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, ws.Solve(context.Background(), weighted))

	for _, method := range []iterate.Method{iterate.Jacobi, iterate.GaussSeidel} {
		t.Run(method.String(), func(t *testing.T) {
			opts := DefaultOptions()
			opts.Iterate.Method = method
			ss, err := NewScheduledSolver(opts)
			require.NoError(t, err)

			obj := objective.NewMultiObjectiveScheduled(g, weighted.Scheduler(), tr, stop)
			require.True(t, ss.CanHandle(obj))
			require.NoError(t, ss.Solve(context.Background(), obj))
			assert.InDeltaSlice(t, numeric.Floats(weighted.Result()), numeric.Floats(obj.Result()), 1e-12)
		})
	}
}

func TestScheduled_FollowsGivenChoice(t *testing.T) {
	g, tr, stop := rewardMDP(t)
	sched := strategy.NewSchedulerFrom([]strategy.Decision{strategy.Choice(1), strategy.Unset, strategy.Unset})
	obj := objective.NewMultiObjectiveScheduled(g, sched, tr, stop)
	s, err := NewScheduledSolver(DefaultOptions())
	require.NoError(t, err)

	require.NoError(t, s.Solve(context.Background(), obj))
	// Unset stochastic nodes take their only choice: 1 moves on to 2.
	assert.InDeltaSlice(t, []float64{3, 0, 0}, numeric.Floats(obj.Result()), 1e-12)
}

func TestScheduled_RejectsIncompleteScheduler(t *testing.T) {
	g, tr, stop := rewardMDP(t)
	s, err := NewScheduledSolver(DefaultOptions())
	require.NoError(t, err)

	obj := objective.NewMultiObjectiveScheduled(g, strategy.NewScheduler(3), tr, stop)
	assert.False(t, s.CanHandle(obj))
	assert.ErrorIs(t, s.Solve(context.Background(), obj), ErrUnsupportedObjective)
}

// =============================================================================
// Registry
// =============================================================================

func TestRegistry_Select(t *testing.T) {
	reg, err := NewDefaultRegistry(DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{IdentifierReachability, IdentifierWeighted, IdentifierScheduled}, reg.Identifiers())

	g, tr, stop := rewardMDP(t)
	s, err := reg.Select(objective.NewMultiObjectiveWeighted(g, tr, stop))
	require.NoError(t, err)
	assert.Equal(t, IdentifierWeighted, s.Identifier())

	s, err = reg.Select(objective.NewUnboundedReachabilityGame(g, targetOf(3, 2), false))
	require.NoError(t, err)
	assert.Equal(t, IdentifierReachability, s.Identifier())

	gm := game(t)
	_, err = reg.Select(objective.NewMultiObjectiveWeighted(gm, make([]float64, gm.NumChoicesTotal()), make([]float64, gm.NumNodes())))
	assert.ErrorIs(t, err, ErrNoSolver)

	found, ok := reg.Lookup(IdentifierScheduled)
	require.True(t, ok)
	assert.Equal(t, IdentifierScheduled, found.Identifier())
}

func TestRun_ReportsThroughRunner(t *testing.T) {
	obj := objective.NewUnboundedReachabilityGame(scenarioA(t), targetOf(3, 1), false)
	report, err := Run(context.Background(), newReach(t, nil), obj)
	require.NoError(t, err)
	assert.Positive(t, report.Iterations)
}

func TestOptions_Validate(t *testing.T) {
	opts := DefaultOptions()
	opts.Numeric = numeric.Kind(9)
	_, err := NewReachabilityGameSolver(opts)
	assert.ErrorIs(t, err, numeric.ErrUnknownKind)

	opts = DefaultOptions()
	opts.Iterate.Tolerance = -1
	_, err = NewWeightedSolver(opts)
	assert.ErrorIs(t, err, iterate.ErrInvalidOptions)
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, "success", statusOf(nil))
	assert.Equal(t, "not_converged", statusOf(&iterate.NotConvergedError{}))
	assert.Equal(t, "capacity", statusOf(&sparse.CapacityError{}))
	assert.Equal(t, "invariant", statusOf(&strategy.InvariantViolationError{}))
	assert.Equal(t, "error", statusOf(errors.New("boom")))
}
