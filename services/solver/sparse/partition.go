// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sparse

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/soniakeys/bits"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/AleutianSolver/services/solver/graph"
)

var partitionTracer = otel.Tracer("solver.sparse")

// Partition is a compact graph plus the bookkeeping that ties it back to the
// original graph.
type Partition struct {
	Compact

	// Ordered is true when states are grouped by player. When false,
	// MaxEnd and MinEnd equal NumStates and only player-agnostic update
	// rules may run on the layout.
	Ordered bool

	// MaxEnd is one past the last maximizer state.
	MaxEnd int

	// MinEnd is one past the last minimizer state. Stochastic states
	// occupy [MinEnd, NumStates).
	MinEnd int

	// InputToOutput maps original nodes to compact states, -1 when dropped.
	InputToOutput []int32

	// OutputToInput maps compact states to original nodes.
	OutputToInput []int32

	// ChoiceOrigin maps compact choices to original global choice indices,
	// -1 for the synthetic self-loop of an absorbing target.
	ChoiceOrigin []int32
}

// Lookup returns the compact state of original node n.
func (p *Partition) Lookup(n int) (int, bool) {
	s := p.InputToOutput[n]
	return int(s), s >= 0
}

// NumInputNodes returns the size of the original graph.
func (p *Partition) NumInputNodes() int {
	return len(p.InputToOutput)
}

// Validate checks the layout and the mapping invariants.
func (p *Partition) Validate() error {
	if err := p.Compact.Validate(); err != nil {
		return err
	}
	n := p.NumStates()
	if p.MaxEnd < 0 || p.MaxEnd > p.MinEnd || p.MinEnd > n {
		return fmt.Errorf("%w: cutoffs %d,%d outside [0,%d]", ErrInvalidLayout, p.MaxEnd, p.MinEnd, n)
	}
	if len(p.OutputToInput) != n {
		return fmt.Errorf("%w: %d output mappings for %d states", ErrInvalidLayout, len(p.OutputToInput), n)
	}
	if len(p.ChoiceOrigin) != p.NumChoices() {
		return fmt.Errorf("%w: %d choice origins for %d choices", ErrInvalidLayout, len(p.ChoiceOrigin), p.NumChoices())
	}
	for s, o := range p.OutputToInput {
		if o < 0 || int(o) >= len(p.InputToOutput) || p.InputToOutput[o] != int32(s) {
			return fmt.Errorf("%w: state %d does not round trip", ErrInvalidLayout, s)
		}
	}
	return nil
}

// PartitionOptions configures Partition.
type PartitionOptions struct {
	// Targets marks reachability targets. Nil means no targets.
	Targets *bits.Bits

	// Prune drops states that cannot reach a target. Requires Targets.
	Prune bool

	// AbsorbTargets replaces the choices of target states by a single
	// self-loop of weight 1. Requires Targets.
	AbsorbTargets bool

	// OrderByPlayer groups states as max | min | stochastic.
	OrderByPlayer bool

	// MaxStates limits the number of compact states. Zero means no limit
	// beyond the int32 index space.
	MaxStates int

	// MaxEdges limits the number of compact edges. Zero means no limit
	// beyond the int32 index space.
	MaxEdges int
}

// DefaultPartitionOptions orders by player and applies no targets.
func DefaultPartitionOptions() PartitionOptions {
	return PartitionOptions{OrderByPlayer: true}
}

// PartitionOption is a functional option for Partition.
type PartitionOption func(*PartitionOptions)

// WithTargets sets reachability targets and enables pruning and absorption.
func WithTargets(targets bits.Bits) PartitionOption {
	return func(o *PartitionOptions) {
		o.Targets = &targets
		o.Prune = true
		o.AbsorbTargets = true
	}
}

// WithPruning toggles dropping states that cannot reach a target.
func WithPruning(prune bool) PartitionOption {
	return func(o *PartitionOptions) {
		o.Prune = prune
	}
}

// WithPlayerOrder toggles grouping states by player.
func WithPlayerOrder(ordered bool) PartitionOption {
	return func(o *PartitionOptions) {
		o.OrderByPlayer = ordered
	}
}

// WithLimits caps the compact layout size.
func WithLimits(maxStates, maxEdges int) PartitionOption {
	return func(o *PartitionOptions) {
		o.MaxStates = maxStates
		o.MaxEdges = maxEdges
	}
}

// Compile builds the compact graph for g.
//
// Description:
//
//	Selects the relevant nodes (all nodes, or those that can reach a target
//	with positive probability when pruning), orders them (grouped by player
//	when requested, original order within a group), and copies their
//	choices and edges into the two-level CSR layout. Edges into dropped
//	nodes are omitted; choices are kept even when all their edges are
//	dropped, so such a choice evaluates to zero.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing.
//	g - The original graph.
//	opts - Functional options.
//
// Outputs:
//
//	*Partition - The compact graph and its mappings.
//	error - *CapacityError when a limit is exceeded, or the context error.
//
// Complexity: O(nodes + choices + edges).
func Compile(ctx context.Context, g graph.Graph, opts ...PartitionOption) (*Partition, error) {
	options := DefaultPartitionOptions()
	for _, opt := range opts {
		opt(&options)
	}

	ctx, span := partitionTracer.Start(ctx, "sparse.Compile")
	defer span.End()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	numInput := g.NumNodes()
	if options.Targets != nil && options.Targets.Num != numInput {
		return nil, fmt.Errorf("%w: target set has %d bits for %d nodes", ErrInvalidLayout, options.Targets.Num, numInput)
	}
	relevant := relevantNodes(g, options)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	isTarget := func(n int) bool {
		return options.Targets != nil && options.Targets.Bit(n) == 1
	}

	p := &Partition{
		Ordered:       options.OrderByPlayer,
		InputToOutput: make([]int32, numInput),
	}
	for i := range p.InputToOutput {
		p.InputToOutput[i] = -1
	}

	order := make([]int32, 0, numInput)
	if options.OrderByPlayer {
		for _, player := range []graph.Player{graph.PlayerMax, graph.PlayerMin, graph.PlayerStochastic} {
			for n := 0; n < numInput; n++ {
				if relevant.Bit(n) == 1 && g.Player(n) == player {
					order = append(order, int32(n))
				}
			}
			switch player {
			case graph.PlayerMax:
				p.MaxEnd = len(order)
			case graph.PlayerMin:
				p.MinEnd = len(order)
			}
		}
	} else {
		for n := relevant.OneFrom(0); n >= 0; n = relevant.OneFrom(n + 1) {
			order = append(order, int32(n))
		}
		p.MaxEnd = len(order)
		p.MinEnd = len(order)
	}
	for s, n := range order {
		p.InputToOutput[n] = int32(s)
	}
	p.OutputToInput = order

	// Size the layout before allocating it.
	numChoices, numEdges := 0, 0
	for _, n32 := range order {
		n := int(n32)
		if options.AbsorbTargets && isTarget(n) {
			numChoices++
			numEdges++
			continue
		}
		for c := 0; c < g.NumChoices(n); c++ {
			numChoices++
			for i := 0; i < g.NumSuccessors(n, c); i++ {
				if t, _ := g.Successor(n, c, i); p.InputToOutput[t] >= 0 {
					numEdges++
				}
			}
		}
	}
	if err := checkCapacity(len(order), numChoices, numEdges, options); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "capacity exceeded")
		return nil, err
	}

	p.StateBounds = make([]int32, len(order)+1)
	p.NondetBounds = make([]int32, numChoices+1)
	p.ChoiceOrigin = make([]int32, numChoices)
	p.Targets = make([]int32, 0, numEdges)
	p.Weights = make([]float64, 0, numEdges)

	choice := 0
	for s, n32 := range order {
		n := int(n32)
		p.StateBounds[s] = int32(choice)
		if options.AbsorbTargets && isTarget(n) {
			p.NondetBounds[choice] = int32(len(p.Targets))
			p.ChoiceOrigin[choice] = -1
			p.Targets = append(p.Targets, int32(s))
			p.Weights = append(p.Weights, 1)
			choice++
			continue
		}
		for c := 0; c < g.NumChoices(n); c++ {
			p.NondetBounds[choice] = int32(len(p.Targets))
			p.ChoiceOrigin[choice] = int32(g.ChoiceIndex(n, c))
			for i := 0; i < g.NumSuccessors(n, c); i++ {
				t, w := g.Successor(n, c, i)
				if mapped := p.InputToOutput[t]; mapped >= 0 {
					p.Targets = append(p.Targets, mapped)
					p.Weights = append(p.Weights, w)
				}
			}
			choice++
		}
	}
	p.StateBounds[len(order)] = int32(choice)
	p.NondetBounds[numChoices] = int32(len(p.Targets))

	span.SetAttributes(
		attribute.Int("partition.input_nodes", numInput),
		attribute.Int("partition.states", len(order)),
		attribute.Int("partition.choices", numChoices),
		attribute.Int("partition.edges", numEdges),
		attribute.Int("partition.max_end", p.MaxEnd),
		attribute.Int("partition.min_end", p.MinEnd),
	)
	slog.Debug("partition built",
		slog.Int("input_nodes", numInput),
		slog.Int("states", len(order)),
		slog.Int("edges", numEdges),
	)
	return p, nil
}

// relevantNodes returns the nodes kept in the compact graph.
func relevantNodes(g graph.Graph, options PartitionOptions) bits.Bits {
	n := g.NumNodes()
	relevant := bits.New(n)
	if !options.Prune || options.Targets == nil {
		for i := 0; i < n; i++ {
			relevant.SetBit(i, 1)
		}
		return relevant
	}

	// Backward reachability from the targets.
	g.ComputePredecessors()
	queue := make([]int, 0, n)
	for t := options.Targets.OneFrom(0); t >= 0 && t < n; t = options.Targets.OneFrom(t + 1) {
		relevant.SetBit(t, 1)
		queue = append(queue, t)
	}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		for i := 0; i < g.NumPredecessors(node); i++ {
			pred, _ := g.Predecessor(node, i)
			if relevant.Bit(pred) == 0 {
				relevant.SetBit(pred, 1)
				queue = append(queue, pred)
			}
		}
	}
	return relevant
}

func checkCapacity(states, choices, edges int, options PartitionOptions) error {
	limit := func(configured int) int {
		if configured > 0 && configured < math.MaxInt32 {
			return configured
		}
		return math.MaxInt32
	}
	switch {
	case states > limit(options.MaxStates):
		return &CapacityError{What: "states", Need: states, Limit: limit(options.MaxStates)}
	case choices >= math.MaxInt32:
		return &CapacityError{What: "choices", Need: choices, Limit: math.MaxInt32 - 1}
	case edges > limit(options.MaxEdges):
		return &CapacityError{What: "edges", Need: edges, Limit: limit(options.MaxEdges)}
	}
	return nil
}
