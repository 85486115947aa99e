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

	"github.com/AleutianAI/AleutianSolver/services/solver/numeric"
	"github.com/AleutianAI/AleutianSolver/services/solver/objective"
	"github.com/AleutianAI/AleutianSolver/services/solver/sparse"
	"github.com/AleutianAI/AleutianSolver/services/solver/strategy"
)

// ScheduledSolver solves *objective.MultiObjectiveScheduled.
type ScheduledSolver struct {
	opts Options
}

// NewScheduledSolver validates opts and returns the solver.
func NewScheduledSolver(opts Options) (*ScheduledSolver, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &ScheduledSolver{opts: opts}, nil
}

func (s *ScheduledSolver) Identifier() string { return IdentifierScheduled }

// CanHandle accepts unsolved scheduled objectives whose scheduler fits the
// graph and decides every controlled node.
func (s *ScheduledSolver) CanHandle(obj objective.Objective) bool {
	o, ok := obj.(*objective.MultiObjectiveScheduled)
	if !ok || o.Solved() || o.Graph() == nil || o.Scheduler() == nil {
		return false
	}
	g := o.Graph()
	return objective.DeadlockFree(g) &&
		objective.CheckRewards(g, o.TransitionRewards(), o.StopStateRewards()) == nil &&
		o.Scheduler().CheckAgainst(g) == nil &&
		o.Scheduler().Complete(g) < 0
}

// Solve implements Solver.
func (s *ScheduledSolver) Solve(ctx context.Context, obj objective.Objective) error {
	_, err := s.Run(ctx, obj)
	return err
}

// Run evaluates the fixed scheduler.
func (s *ScheduledSolver) Run(ctx context.Context, obj objective.Objective) (*Report, error) {
	if !s.CanHandle(obj) {
		return nil, ErrUnsupportedObjective
	}
	o := obj.(*objective.MultiObjectiveScheduled)

	return track(ctx, s.Identifier(), s.opts, obj, func(ctx context.Context, r *Report) error {
		switch s.opts.Numeric {
		case numeric.KindRational:
			return solveScheduled(ctx, numeric.Rational{}, s.opts, o, r)
		case numeric.KindInterval:
			return solveScheduled(ctx, numeric.Interval{}, s.opts, o, r)
		default:
			return solveScheduled(ctx, numeric.Float64{}, s.opts, o, r)
		}
	})
}

func solveScheduled[T any](ctx context.Context, ar numeric.Arithmetic[T], opts Options, o *objective.MultiObjectiveScheduled, r *Report) error {
	p, err := rewardPartition(ctx, o.Graph(), opts)
	if err != nil {
		return err
	}
	r.States = p.NumStates()

	rule := newScheduledRule(ar, p, o.Scheduler(), o.TransitionRewards(), o.StopStateRewards())
	values := zeros(ar, p.NumStates())
	if err := iterateRule(ctx, ar, opts, rule, values, r); err != nil {
		return err
	}
	return o.SetResult(numeric.NewVector(ar, toOriginal(ar, p, values)))
}

// scheduledRule follows one fixed decision per state: the stop reward, or
// the chosen choice's reward plus its expected successor value.
type scheduledRule[T any] struct {
	rewardLayout[T]

	// chosen is the compact choice per state, or -1 for Stop.
	chosen []int32
}

func newScheduledRule[T any](ar numeric.Arithmetic[T], p *sparse.Partition, sched *strategy.Scheduler, transitionRewards, stopStateRewards []float64) *scheduledRule[T] {
	r := &scheduledRule[T]{
		rewardLayout: newRewardLayout(ar, p, transitionRewards, stopStateRewards),
		chosen:       make([]int32, p.NumStates()),
	}
	for s := range r.chosen {
		d := sched.Decision(int(p.OutputToInput[s]))
		if d.IsStop() {
			r.chosen[s] = -1
			continue
		}
		// Unset only reaches here on stochastic states, which have one choice.
		offset, _ := d.Choice()
		r.chosen[s] = p.StateBounds[s] + int32(offset)
	}
	return r
}

func (r *scheduledRule[T]) Update(s int, cur []T) T {
	c := r.chosen[s]
	if c < 0 {
		return r.stopReward[s]
	}
	return r.choiceValue(c, cur)
}

var _ Runner = (*ScheduledSolver)(nil)
