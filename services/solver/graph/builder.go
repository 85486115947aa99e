// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"fmt"
	"math"
)

// DefaultDistributionTolerance is how far a choice's weights may sum from 1.
const DefaultDistributionTolerance = 1e-9

// BuilderOptions configures Builder behavior.
type BuilderOptions struct {
	// ExpectedNodes pre-sizes internal storage. Zero is fine.
	ExpectedNodes int

	// DistributionTolerance bounds |sum(weights) - 1| per choice.
	// Default: 1e-9
	DistributionTolerance float64
}

// DefaultBuilderOptions returns sensible defaults.
func DefaultBuilderOptions() BuilderOptions {
	return BuilderOptions{
		DistributionTolerance: DefaultDistributionTolerance,
	}
}

// BuilderOption is a functional option for configuring Builder.
type BuilderOption func(*BuilderOptions)

// WithExpectedNodes pre-sizes the builder for n nodes.
func WithExpectedNodes(n int) BuilderOption {
	return func(o *BuilderOptions) {
		o.ExpectedNodes = n
	}
}

// WithDistributionTolerance sets the tolerance for distribution sums.
func WithDistributionTolerance(tol float64) BuilderOption {
	return func(o *BuilderOptions) {
		o.DistributionTolerance = tol
	}
}

// Builder assembles an Explicit graph node by node.
//
// Nodes are numbered in the order AddNode is called. Choices of a node are
// numbered in the order AddChoice is called for that node. Edges to the same
// target within one choice are merged by summing their weights.
//
// Thread Safety: Builder is not safe for concurrent use.
type Builder struct {
	opts    BuilderOptions
	players []Player
	choices [][][]Edge
	built   bool
}

// NewBuilder creates a Builder.
func NewBuilder(opts ...BuilderOption) *Builder {
	options := DefaultBuilderOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if options.DistributionTolerance <= 0 {
		options.DistributionTolerance = DefaultDistributionTolerance
	}
	return &Builder{
		opts:    options,
		players: make([]Player, 0, options.ExpectedNodes),
		choices: make([][][]Edge, 0, options.ExpectedNodes),
	}
}

// AddNode appends a node controlled by p and returns its index.
func (b *Builder) AddNode(p Player) int {
	b.players = append(b.players, p)
	b.choices = append(b.choices, nil)
	return len(b.players) - 1
}

// AddChoice appends a choice to node n and returns the choice offset.
//
// Edge targets are checked at Build time, so forward references to nodes
// that have not been added yet are allowed.
func (b *Builder) AddChoice(n int, edges ...Edge) (int, error) {
	if b.built {
		return 0, ErrGraphFrozen
	}
	if n < 0 || n >= len(b.players) {
		return 0, fmt.Errorf("add choice to node %d: %w", n, ErrNodeOutOfRange)
	}
	merged := make([]Edge, 0, len(edges))
	index := make(map[int]int, len(edges))
	for _, e := range edges {
		if i, ok := index[e.To]; ok {
			merged[i].Weight += e.Weight
			continue
		}
		index[e.To] = len(merged)
		merged = append(merged, e)
	}
	b.choices[n] = append(b.choices[n], merged)
	return len(b.choices[n]) - 1, nil
}

// NumNodes returns the number of nodes added so far.
func (b *Builder) NumNodes() int {
	return len(b.players)
}

// Build validates the graph and lays it out in flat arrays.
//
// Outputs:
//
//	*Explicit - The immutable graph.
//	error - A *ValidationError wrapping ErrNodeOutOfRange, ErrDeadlock,
//	        ErrStochasticChoices or ErrInvalidDistribution.
func (b *Builder) Build() (*Explicit, error) {
	if b.built {
		return nil, ErrGraphFrozen
	}
	numNodes := len(b.players)
	numChoices, numEdges := 0, 0
	for n, cs := range b.choices {
		if err := b.validateNode(n, cs); err != nil {
			return nil, err
		}
		numChoices += len(cs)
		for _, es := range cs {
			numEdges += len(es)
		}
	}
	if numEdges > math.MaxInt32 || numChoices > math.MaxInt32 {
		return nil, fmt.Errorf("graph has %d choices and %d edges: too large for int32 layout", numChoices, numEdges)
	}

	g := &Explicit{
		players:     append([]Player(nil), b.players...),
		nodeChoices: make([]int32, numNodes+1),
		choiceEdges: make([]int32, numChoices+1),
		targets:     make([]int32, 0, numEdges),
		weights:     make([]float64, 0, numEdges),
	}
	choice := 0
	for n, cs := range b.choices {
		g.nodeChoices[n] = int32(choice)
		for _, es := range cs {
			g.choiceEdges[choice] = int32(len(g.targets))
			for _, e := range es {
				g.targets = append(g.targets, int32(e.To))
				g.weights = append(g.weights, e.Weight)
			}
			choice++
		}
	}
	g.nodeChoices[numNodes] = int32(choice)
	g.choiceEdges[numChoices] = int32(len(g.targets))

	b.built = true
	return g, nil
}

func (b *Builder) validateNode(n int, cs [][]Edge) error {
	p := b.players[n]
	switch {
	case p == PlayerStochastic && len(cs) != 1:
		return &ValidationError{Node: n, Choice: -1, Err: ErrStochasticChoices}
	case p.Controlled() && len(cs) == 0:
		return &ValidationError{Node: n, Choice: -1, Err: ErrDeadlock}
	case !p.Controlled() && p != PlayerStochastic:
		return &ValidationError{Node: n, Choice: -1, Err: ErrUnknownPlayer}
	}
	for c, es := range cs {
		sum := 0.0
		for _, e := range es {
			if e.To < 0 || e.To >= len(b.players) {
				return &ValidationError{Node: n, Choice: c, Err: fmt.Errorf("%w: edge to %d", ErrNodeOutOfRange, e.To)}
			}
			if !(e.Weight > 0) || math.IsInf(e.Weight, 0) {
				return &ValidationError{Node: n, Choice: c, Err: fmt.Errorf("%w: weight %v", ErrInvalidDistribution, e.Weight)}
			}
			sum += e.Weight
		}
		if math.Abs(sum-1) > b.opts.DistributionTolerance {
			return &ValidationError{Node: n, Choice: c, Err: fmt.Errorf("%w: weights sum to %v", ErrInvalidDistribution, sum)}
		}
	}
	return nil
}
