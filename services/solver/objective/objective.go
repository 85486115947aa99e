// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package objective describes what a solver computes.
//
// A descriptor carries its inputs (graph, targets, rewards) and receives its
// outputs (values, scheduler) from the solver that handles it. Descriptors
// are created by the caller, populated once, and not reused.
package objective

import (
	"errors"
	"fmt"

	"github.com/soniakeys/bits"

	"github.com/AleutianAI/AleutianSolver/services/solver/graph"
	"github.com/AleutianAI/AleutianSolver/services/solver/numeric"
	"github.com/AleutianAI/AleutianSolver/services/solver/strategy"
)

// ErrAlreadySolved is returned when a populated descriptor is populated again.
var ErrAlreadySolved = errors.New("objective already solved")

// Kind names a descriptor type.
type Kind string

const (
	KindReachability Kind = "reachability"
	KindWeighted     Kind = "weighted"
	KindScheduled    Kind = "scheduled"
)

// Objective is implemented by every descriptor.
type Objective interface {
	// Kind returns the descriptor type.
	Kind() Kind

	// Graph returns the original graph.
	Graph() graph.Graph

	// Solved reports whether a solver has populated the descriptor.
	Solved() bool
}

// outcome holds what a solver writes back.
type outcome struct {
	result    numeric.Values
	scheduler *strategy.Scheduler
	solved    bool
}

func (o *outcome) set(result numeric.Values, sched *strategy.Scheduler) error {
	if o.solved {
		return ErrAlreadySolved
	}
	o.result = result
	o.scheduler = sched
	o.solved = true
	return nil
}

// =============================================================================
// Unbounded reachability
// =============================================================================

// UnboundedReachabilityGame asks for the optimal probability of eventually
// reaching Target, with Max nodes maximizing and Min nodes minimizing.
type UnboundedReachabilityGame struct {
	g                graph.Graph
	target           bits.Bits
	computeScheduler bool
	outcome
}

// NewUnboundedReachabilityGame returns a reachability descriptor.
func NewUnboundedReachabilityGame(g graph.Graph, target bits.Bits, computeScheduler bool) *UnboundedReachabilityGame {
	return &UnboundedReachabilityGame{g: g, target: target, computeScheduler: computeScheduler}
}

func (o *UnboundedReachabilityGame) Kind() Kind         { return KindReachability }
func (o *UnboundedReachabilityGame) Graph() graph.Graph { return o.g }
func (o *UnboundedReachabilityGame) Solved() bool       { return o.solved }

// Target returns the target set.
func (o *UnboundedReachabilityGame) Target() bits.Bits { return o.target }

// ComputeScheduler reports whether a scheduler was requested.
func (o *UnboundedReachabilityGame) ComputeScheduler() bool { return o.computeScheduler }

// Result returns the per-node values, or nil before solving.
func (o *UnboundedReachabilityGame) Result() numeric.Values { return o.result }

// Scheduler returns the witnessing scheduler, or nil when none was requested.
func (o *UnboundedReachabilityGame) Scheduler() *strategy.Scheduler { return o.scheduler }

// SetOutcome records the solver's results.
func (o *UnboundedReachabilityGame) SetOutcome(result numeric.Values, sched *strategy.Scheduler) error {
	return o.set(result, sched)
}

// =============================================================================
// Weighted multi-objective
// =============================================================================

// MultiObjectiveWeighted asks for the maximal expected total reward when
// every node may either stop, collecting its stop reward, or take a choice,
// collecting that choice's transition reward.
//
// Stochastic nodes may stop too, and their scheduler entry is Stop() or
// Choice(0). A graph that models distributions as stochastic nodes between
// decisions should give those nodes a stop reward of 0; with non-negative
// rewards they then never stop and values match solving over decisions only.
type MultiObjectiveWeighted struct {
	g                 graph.Graph
	transitionRewards []float64
	stopStateRewards  []float64
	outcome
}

// NewMultiObjectiveWeighted returns a weighted descriptor. transitionRewards
// is indexed by global choice index, stopStateRewards by node.
func NewMultiObjectiveWeighted(g graph.Graph, transitionRewards, stopStateRewards []float64) *MultiObjectiveWeighted {
	return &MultiObjectiveWeighted{g: g, transitionRewards: transitionRewards, stopStateRewards: stopStateRewards}
}

func (o *MultiObjectiveWeighted) Kind() Kind         { return KindWeighted }
func (o *MultiObjectiveWeighted) Graph() graph.Graph { return o.g }
func (o *MultiObjectiveWeighted) Solved() bool       { return o.solved }

// TransitionRewards returns the per-choice rewards.
func (o *MultiObjectiveWeighted) TransitionRewards() []float64 { return o.transitionRewards }

// StopStateRewards returns the per-node stop rewards.
func (o *MultiObjectiveWeighted) StopStateRewards() []float64 { return o.stopStateRewards }

// Result returns the per-node values, or nil before solving.
func (o *MultiObjectiveWeighted) Result() numeric.Values { return o.result }

// Scheduler returns the synthesized scheduler.
func (o *MultiObjectiveWeighted) Scheduler() *strategy.Scheduler { return o.scheduler }

// SetOutcome records the solver's results.
func (o *MultiObjectiveWeighted) SetOutcome(result numeric.Values, sched *strategy.Scheduler) error {
	return o.set(result, sched)
}

// =============================================================================
// Scheduled multi-objective
// =============================================================================

// MultiObjectiveScheduled evaluates a fixed scheduler under the weighted
// reward structure.
type MultiObjectiveScheduled struct {
	g                 graph.Graph
	fixed             *strategy.Scheduler
	transitionRewards []float64
	stopStateRewards  []float64
	outcome
}

// NewMultiObjectiveScheduled returns a scheduled descriptor.
func NewMultiObjectiveScheduled(g graph.Graph, sched *strategy.Scheduler, transitionRewards, stopStateRewards []float64) *MultiObjectiveScheduled {
	return &MultiObjectiveScheduled{g: g, fixed: sched, transitionRewards: transitionRewards, stopStateRewards: stopStateRewards}
}

func (o *MultiObjectiveScheduled) Kind() Kind         { return KindScheduled }
func (o *MultiObjectiveScheduled) Graph() graph.Graph { return o.g }
func (o *MultiObjectiveScheduled) Solved() bool       { return o.solved }

// Scheduler returns the scheduler under evaluation.
func (o *MultiObjectiveScheduled) Scheduler() *strategy.Scheduler { return o.fixed }

// TransitionRewards returns the per-choice rewards.
func (o *MultiObjectiveScheduled) TransitionRewards() []float64 { return o.transitionRewards }

// StopStateRewards returns the per-node stop rewards.
func (o *MultiObjectiveScheduled) StopStateRewards() []float64 { return o.stopStateRewards }

// Result returns the per-node values, or nil before solving.
func (o *MultiObjectiveScheduled) Result() numeric.Values { return o.result }

// SetResult records the solver's values.
func (o *MultiObjectiveScheduled) SetResult(result numeric.Values) error {
	return o.set(result, nil)
}

// =============================================================================
// Shape checks
// =============================================================================

// CheckRewards verifies reward vector lengths against g.
func CheckRewards(g graph.Graph, transitionRewards, stopStateRewards []float64) error {
	if len(transitionRewards) != g.NumChoicesTotal() {
		return fmt.Errorf("transition rewards: have %d, graph has %d choices", len(transitionRewards), g.NumChoicesTotal())
	}
	if len(stopStateRewards) != g.NumNodes() {
		return fmt.Errorf("stop rewards: have %d, graph has %d nodes", len(stopStateRewards), g.NumNodes())
	}
	return nil
}

// DeadlockFree reports whether every node of g has a choice.
func DeadlockFree(g graph.Graph) bool {
	for n := 0; n < g.NumNodes(); n++ {
		if g.NumChoices(n) == 0 {
			return false
		}
	}
	return true
}
