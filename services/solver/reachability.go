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

	"github.com/soniakeys/bits"

	"github.com/AleutianAI/AleutianSolver/services/solver/iterate"
	"github.com/AleutianAI/AleutianSolver/services/solver/numeric"
	"github.com/AleutianAI/AleutianSolver/services/solver/objective"
	"github.com/AleutianAI/AleutianSolver/services/solver/sparse"
	"github.com/AleutianAI/AleutianSolver/services/solver/strategy"
)

// ReachabilityGameSolver solves *objective.UnboundedReachabilityGame.
type ReachabilityGameSolver struct {
	opts Options
}

// NewReachabilityGameSolver validates opts and returns the solver.
func NewReachabilityGameSolver(opts Options) (*ReachabilityGameSolver, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &ReachabilityGameSolver{opts: opts}, nil
}

func (s *ReachabilityGameSolver) Identifier() string { return IdentifierReachability }

// CanHandle accepts unsolved reachability objectives over deadlock-free
// graphs whose target set covers every node.
func (s *ReachabilityGameSolver) CanHandle(obj objective.Objective) bool {
	o, ok := obj.(*objective.UnboundedReachabilityGame)
	if !ok || o.Solved() || o.Graph() == nil {
		return false
	}
	return o.Target().Num == o.Graph().NumNodes() && objective.DeadlockFree(o.Graph())
}

// Solve implements Solver.
func (s *ReachabilityGameSolver) Solve(ctx context.Context, obj objective.Objective) error {
	_, err := s.Run(ctx, obj)
	return err
}

// Run computes the reachability values and, when requested, a scheduler.
//
// Description:
//
//	Nodes that cannot reach a target are dropped and get value 0; targets
//	become absorbing with value 1. The remaining states are iterated from
//	the 0/1 seed to the least fixed point, with Max states maximizing and
//	Min states minimizing over their choices. The scheduler is then
//	reconstructed backwards from the targets.
//
// Outputs:
//
//	*Report - Solve summary, nil only for ErrUnsupportedObjective.
//	error - ErrUnsupportedObjective, *sparse.CapacityError,
//	        *iterate.NotConvergedError, *strategy.InvariantViolationError,
//	        or the context error.
func (s *ReachabilityGameSolver) Run(ctx context.Context, obj objective.Objective) (*Report, error) {
	if !s.CanHandle(obj) {
		return nil, ErrUnsupportedObjective
	}
	o := obj.(*objective.UnboundedReachabilityGame)

	return track(ctx, s.Identifier(), s.opts, obj, func(ctx context.Context, r *Report) error {
		switch s.opts.Numeric {
		case numeric.KindRational:
			return solveReachability(ctx, numeric.Rational{}, s.opts, o, r)
		case numeric.KindInterval:
			return solveReachability(ctx, numeric.Interval{}, s.opts, o, r)
		default:
			return solveReachability(ctx, numeric.Float64{}, s.opts, o, r)
		}
	})
}

func solveReachability[T any](ctx context.Context, ar numeric.Arithmetic[T], opts Options, o *objective.UnboundedReachabilityGame, r *Report) error {
	g := o.Graph()
	target := o.Target()

	p, err := sparse.Compile(ctx, g,
		sparse.WithTargets(target),
		sparse.WithLimits(opts.MaxStates, opts.MaxEdges),
	)
	if err != nil {
		return err
	}
	r.States = p.NumStates()

	rule, err := iterate.NewGameRule(ar, p)
	if err != nil {
		return err
	}
	values := seedReachability(ar, p, target)
	if err := iterateRule(ctx, ar, opts, rule, values, r); err != nil {
		return err
	}

	result := toOriginal(ar, p, values)
	var sched *strategy.Scheduler
	if o.ComputeScheduler() {
		sched, err = strategy.Extract(ctx, ar, g, target, result, opts.Iterate.Tolerance)
		if err != nil {
			return err
		}
		if opts.VerifyScheduler {
			if err := strategy.Verify(ar, g, target, result, sched, opts.Iterate.Tolerance); err != nil {
				return err
			}
		}
	}
	return o.SetOutcome(numeric.NewVector(ar, result), sched)
}

// seedReachability returns One for target states and Zero elsewhere.
func seedReachability[T any](ar numeric.Arithmetic[T], p *sparse.Partition, target bits.Bits) []T {
	values := make([]T, p.NumStates())
	for s := range values {
		if target.Bit(int(p.OutputToInput[s])) == 1 {
			values[s] = ar.One()
		} else {
			values[s] = ar.Zero()
		}
	}
	return values
}

// toOriginal maps compact values back to original nodes. Dropped nodes get
// Zero.
func toOriginal[T any](ar numeric.Arithmetic[T], p *sparse.Partition, values []T) []T {
	out := make([]T, p.NumInputNodes())
	for n := range out {
		if s, ok := p.Lookup(n); ok {
			out[n] = values[s]
		} else {
			out[n] = ar.Zero()
		}
	}
	return out
}

var _ Runner = (*ReachabilityGameSolver)(nil)
