// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package strategy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/soniakeys/bits"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/AleutianSolver/services/solver/graph"
	"github.com/AleutianAI/AleutianSolver/services/solver/numeric"
)

var tracer = otel.Tracer("solver.strategy")

// claimSlack widens the tolerance used to match a choice against its node's
// value, absorbing the error left by stopping at Tolerance/2.
const claimSlack = 4

// Extract reconstructs a reachability scheduler from converged values.
//
// Description:
//
//	Runs a backward breadth-first search from the targets over the
//	predecessor index of g. When a node n is reached, each unseen
//	predecessor p (reaching n through its choice c) is examined:
//	  - p stochastic: p is marked seen; it needs no decision.
//	  - p controlled: p takes Choice(c) and is marked seen if the value of
//	    choice c is within 4*tolerance of values[p].
//	Because the search grows outward from the targets, a claimed choice
//	always leads towards a target with positive probability.
//
//	Controlled non-target nodes left unseen must have value ~0 (within
//	tolerance). They take the first choice whose value matches theirs, or
//	choice 0 when none does. Any other unseen controlled node is an
//	*InvariantViolationError.
//
// Inputs:
//
//	ctx - Context for tracing and cancellation.
//	ar - Scalar arithmetic for values.
//	g - The original graph. ComputePredecessors is called if needed.
//	target - Target nodes.
//	values - Converged values indexed by original node.
//	tolerance - The iteration tolerance.
//
// Outputs:
//
//	*Scheduler - Decisions for every controlled non-target node; Unset
//	             elsewhere.
//	error - *InvariantViolationError, or the context error.
//
// Complexity: O(nodes + edges) plus one choice evaluation per examined
// (predecessor, choice) pair.
func Extract[T any](ctx context.Context, ar numeric.Arithmetic[T], g graph.Graph, target bits.Bits, values []T, tolerance float64) (*Scheduler, error) {
	ctx, span := tracer.Start(ctx, "strategy.Extract")
	defer span.End()

	n := g.NumNodes()
	if len(values) != n {
		return nil, fmt.Errorf("%w: %d values for %d nodes", ErrSchedulerMismatch, len(values), n)
	}
	if target.Num != n {
		return nil, fmt.Errorf("%w: target set has %d bits for %d nodes", ErrSchedulerMismatch, target.Num, n)
	}
	g.ComputePredecessors()

	sched := NewScheduler(n)
	seen := bits.New(n)
	frontier := make([]int, 0, n)
	for t := target.OneFrom(0); t >= 0; t = target.OneFrom(t + 1) {
		seen.SetBit(t, 1)
		frontier = append(frontier, t)
	}

	claimTol := claimSlack * tolerance
	var next []int
	rounds := 0
	for len(frontier) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rounds++
		next = next[:0]
		for _, node := range frontier {
			for i := 0; i < g.NumPredecessors(node); i++ {
				pred, choice := g.Predecessor(node, i)
				if seen.Bit(pred) == 1 {
					continue
				}
				if g.Player(pred).Controlled() {
					cv := ChoiceValue(ar, g, values, pred, choice)
					if ar.Distance(values[pred], cv) >= claimTol {
						continue
					}
					sched.Set(pred, Choice(choice))
				}
				seen.SetBit(pred, 1)
				next = append(next, pred)
			}
		}
		frontier, next = next, frontier
	}

	fallbacks := 0
	for node := 0; node < n; node++ {
		if !g.Player(node).Controlled() || seen.Bit(node) == 1 {
			continue
		}
		if ar.Distance(values[node], ar.Zero()) > tolerance {
			err := &InvariantViolationError{
				Node:   node,
				Value:  ar.Float(values[node]),
				Reason: "controlled node with positive value is not backward-reachable through a value-preserving choice",
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, "invariant violation")
			return nil, err
		}
		sched.Set(node, Choice(matchingChoice(ar, g, values, node, tolerance)))
		fallbacks++
	}

	span.SetAttributes(
		attribute.Int("strategy.nodes", n),
		attribute.Int("strategy.rounds", rounds),
		attribute.Int("strategy.fallbacks", fallbacks),
	)
	slog.Debug("scheduler extracted",
		slog.Int("nodes", n),
		slog.Int("rounds", rounds),
		slog.Int("zero_value_nodes", fallbacks),
	)
	return sched, nil
}

// ChoiceValue returns the expected value of choice c at node n.
func ChoiceValue[T any](ar numeric.Arithmetic[T], g graph.Graph, values []T, n, c int) T {
	acc := ar.Zero()
	for i := 0; i < g.NumSuccessors(n, c); i++ {
		t, w := g.Successor(n, c, i)
		acc = ar.Add(acc, ar.Mul(ar.FromFloat(w), values[t]))
	}
	return acc
}

// matchingChoice returns the first choice of n whose value is within
// tolerance of values[n], or 0.
func matchingChoice[T any](ar numeric.Arithmetic[T], g graph.Graph, values []T, n int, tolerance float64) int {
	for c := 0; c < g.NumChoices(n); c++ {
		if ar.Distance(values[n], ChoiceValue(ar, g, values, n, c)) <= tolerance {
			return c
		}
	}
	return 0
}

// Verify checks that sched is consistent with values.
//
// Every controlled non-target node must have a choice whose expected value
// is within tolerance of the node's value.
func Verify[T any](ar numeric.Arithmetic[T], g graph.Graph, target bits.Bits, values []T, sched *Scheduler, tolerance float64) error {
	if err := sched.CheckAgainst(g); err != nil {
		return err
	}
	if target.Num != g.NumNodes() || len(values) != g.NumNodes() {
		return fmt.Errorf("%w: %d target bits and %d values for %d nodes", ErrSchedulerMismatch, target.Num, len(values), g.NumNodes())
	}
	for n := 0; n < g.NumNodes(); n++ {
		if !g.Player(n).Controlled() || target.Bit(n) == 1 {
			continue
		}
		c, ok := sched.Decision(n).Choice()
		if !ok {
			return &InvariantViolationError{Node: n, Value: ar.Float(values[n]), Reason: "no choice assigned"}
		}
		cv := ChoiceValue(ar, g, values, n, c)
		if d := ar.Distance(values[n], cv); d > tolerance {
			return &InvariantViolationError{
				Node:   n,
				Value:  ar.Float(values[n]),
				Reason: fmt.Sprintf("choice %d has value %g", c, ar.Float(cv)),
			}
		}
	}
	return nil
}
