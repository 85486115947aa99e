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

	"github.com/AleutianAI/AleutianSolver/services/solver/graph"
	"github.com/AleutianAI/AleutianSolver/services/solver/iterate"
	"github.com/AleutianAI/AleutianSolver/services/solver/numeric"
	"github.com/AleutianAI/AleutianSolver/services/solver/objective"
	"github.com/AleutianAI/AleutianSolver/services/solver/sparse"
	"github.com/AleutianAI/AleutianSolver/services/solver/strategy"
)

// WeightedSolver solves *objective.MultiObjectiveWeighted.
type WeightedSolver struct {
	opts Options
}

// NewWeightedSolver validates opts and returns the solver.
func NewWeightedSolver(opts Options) (*WeightedSolver, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &WeightedSolver{opts: opts}, nil
}

func (s *WeightedSolver) Identifier() string { return IdentifierWeighted }

// CanHandle accepts unsolved weighted objectives over deadlock-free MDPs
// (no Min nodes) with reward vectors of matching length.
func (s *WeightedSolver) CanHandle(obj objective.Objective) bool {
	o, ok := obj.(*objective.MultiObjectiveWeighted)
	if !ok || o.Solved() || o.Graph() == nil {
		return false
	}
	g := o.Graph()
	return !graph.HasPlayer(g, graph.PlayerMin) &&
		objective.DeadlockFree(g) &&
		objective.CheckRewards(g, o.TransitionRewards(), o.StopStateRewards()) == nil
}

// Solve implements Solver.
func (s *WeightedSolver) Solve(ctx context.Context, obj objective.Objective) error {
	_, err := s.Run(ctx, obj)
	return err
}

// Run computes the maximal expected reward and the scheduler achieving it.
func (s *WeightedSolver) Run(ctx context.Context, obj objective.Objective) (*Report, error) {
	if !s.CanHandle(obj) {
		return nil, ErrUnsupportedObjective
	}
	o := obj.(*objective.MultiObjectiveWeighted)

	return track(ctx, s.Identifier(), s.opts, obj, func(ctx context.Context, r *Report) error {
		switch s.opts.Numeric {
		case numeric.KindRational:
			return solveWeighted(ctx, numeric.Rational{}, s.opts, o, r)
		case numeric.KindInterval:
			return solveWeighted(ctx, numeric.Interval{}, s.opts, o, r)
		default:
			return solveWeighted(ctx, numeric.Float64{}, s.opts, o, r)
		}
	})
}

func solveWeighted[T any](ctx context.Context, ar numeric.Arithmetic[T], opts Options, o *objective.MultiObjectiveWeighted, r *Report) error {
	g := o.Graph()
	p, err := rewardPartition(ctx, g, opts)
	if err != nil {
		return err
	}
	r.States = p.NumStates()

	rule := newWeightedRule(ar, p, o.TransitionRewards(), o.StopStateRewards())
	values := zeros(ar, p.NumStates())
	if err := iterateRule(ctx, ar, opts, rule, values, r); err != nil {
		return err
	}

	sched := strategy.NewScheduler(g.NumNodes())
	for st, d := range rule.decisions {
		sched.Set(int(p.OutputToInput[st]), d)
	}
	return o.SetOutcome(numeric.NewVector(ar, toOriginal(ar, p, values)), sched)
}

// rewardPartition lays out g without pruning or reordering, so compact
// choices keep their original order within each node.
func rewardPartition(ctx context.Context, g graph.Graph, opts Options) (*sparse.Partition, error) {
	return sparse.Compile(ctx, g,
		sparse.WithPlayerOrder(false),
		sparse.WithLimits(opts.MaxStates, opts.MaxEdges),
	)
}

func zeros[T any](ar numeric.Arithmetic[T], n int) []T {
	out := make([]T, n)
	for i := range out {
		out[i] = ar.Zero()
	}
	return out
}

// rewardLayout is the compact graph plus per-choice and per-state rewards,
// shared by the weighted and scheduled rules.
type rewardLayout[T any] struct {
	arith        numeric.Arithmetic[T]
	stateBounds  []int32
	nondetBounds []int32
	targets      []int32
	weights      []T
	choiceReward []T
	stopReward   []T
}

func newRewardLayout[T any](ar numeric.Arithmetic[T], p *sparse.Partition, transitionRewards, stopStateRewards []float64) rewardLayout[T] {
	l := rewardLayout[T]{
		arith:        ar,
		stateBounds:  p.StateBounds,
		nondetBounds: p.NondetBounds,
		targets:      p.Targets,
		weights:      iterate.ConvertWeights(ar, p.Weights),
		choiceReward: make([]T, p.NumChoices()),
		stopReward:   make([]T, p.NumStates()),
	}
	for c, orig := range p.ChoiceOrigin {
		if orig < 0 {
			l.choiceReward[c] = ar.Zero()
			continue
		}
		l.choiceReward[c] = ar.FromFloat(transitionRewards[orig])
	}
	for s, orig := range p.OutputToInput {
		l.stopReward[s] = ar.FromFloat(stopStateRewards[orig])
	}
	return l
}

func (l *rewardLayout[T]) NumStates() int {
	return len(l.stateBounds) - 1
}

// choiceValue returns reward[c] + sum of weight * cur[target] over c's edges.
func (l *rewardLayout[T]) choiceValue(c int32, cur []T) T {
	acc := l.choiceReward[c]
	for e := l.nondetBounds[c]; e < l.nondetBounds[c+1]; e++ {
		acc = l.arith.Add(acc, l.arith.Mul(l.weights[e], cur[l.targets[e]]))
	}
	return acc
}

// weightedRule maximizes over choices and stopping, recording the decision
// whenever the new value strictly exceeds the previous one.
type weightedRule[T any] struct {
	rewardLayout[T]

	// decisions is indexed by compact state. Update writes only its own
	// state's slot.
	decisions []strategy.Decision
}

func newWeightedRule[T any](ar numeric.Arithmetic[T], p *sparse.Partition, transitionRewards, stopStateRewards []float64) *weightedRule[T] {
	r := &weightedRule[T]{
		rewardLayout: newRewardLayout(ar, p, transitionRewards, stopStateRewards),
		decisions:    make([]strategy.Decision, p.NumStates()),
	}
	for s := range r.decisions {
		r.decisions[s] = strategy.Stop()
	}
	return r
}

func (r *weightedRule[T]) Update(s int, cur []T) T {
	first, last := r.stateBounds[s], r.stateBounds[s+1]

	best := r.arith.NegInf()
	bestOffset := -1
	for c := first; c < last; c++ {
		if v := r.choiceValue(c, cur); r.arith.Gt(v, best) {
			best = v
			bestOffset = int(c - first)
		}
	}

	// Stopping wins only when strictly better; a tie keeps the choice.
	decision := strategy.Choice(bestOffset)
	if bestOffset < 0 || r.arith.Gt(r.stopReward[s], best) {
		best = r.stopReward[s]
		decision = strategy.Stop()
	}
	if r.arith.Gt(best, cur[s]) {
		r.decisions[s] = decision
	}
	return best
}

var _ Runner = (*WeightedSolver)(nil)
