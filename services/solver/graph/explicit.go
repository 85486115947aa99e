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

import "sync"

// Explicit is an immutable explicit-state graph in three-level CSR form.
//
// Choices of node n are [nodeChoices[n], nodeChoices[n+1]) in the global
// choice array; edges of global choice c are [choiceEdges[c], choiceEdges[c+1]).
type Explicit struct {
	players     []Player
	nodeChoices []int32
	choiceEdges []int32
	targets     []int32
	weights     []float64

	predOnce    sync.Once
	predBounds  []int32
	predNodes   []int32
	predChoices []int32
}

var _ Graph = (*Explicit)(nil)

func (g *Explicit) NumNodes() int { return len(g.players) }

func (g *Explicit) NumChoicesTotal() int { return len(g.choiceEdges) - 1 }

// NumEdges returns the number of edges across all choices.
func (g *Explicit) NumEdges() int { return len(g.targets) }

func (g *Explicit) Player(n int) Player { return g.players[n] }

func (g *Explicit) NumChoices(n int) int {
	return int(g.nodeChoices[n+1] - g.nodeChoices[n])
}

func (g *Explicit) ChoiceIndex(n, c int) int {
	return int(g.nodeChoices[n]) + c
}

func (g *Explicit) NumSuccessors(n, c int) int {
	gc := g.nodeChoices[n] + int32(c)
	return int(g.choiceEdges[gc+1] - g.choiceEdges[gc])
}

func (g *Explicit) Successor(n, c, i int) (int, float64) {
	e := int(g.choiceEdges[int(g.nodeChoices[n])+c]) + i
	return int(g.targets[e]), g.weights[e]
}

// ComputePredecessors builds the reverse edge index with a counting sort.
// Predecessors of a node are ordered by (node, choice).
func (g *Explicit) ComputePredecessors() {
	g.predOnce.Do(func() {
		n := len(g.players)
		bounds := make([]int32, n+1)
		for _, t := range g.targets {
			bounds[t+1]++
		}
		for i := 1; i <= n; i++ {
			bounds[i] += bounds[i-1]
		}
		fill := make([]int32, n)
		copy(fill, bounds[:n])
		nodes := make([]int32, len(g.targets))
		choices := make([]int32, len(g.targets))
		for src := 0; src < n; src++ {
			for gc := g.nodeChoices[src]; gc < g.nodeChoices[src+1]; gc++ {
				for e := g.choiceEdges[gc]; e < g.choiceEdges[gc+1]; e++ {
					t := g.targets[e]
					pos := fill[t]
					nodes[pos] = int32(src)
					choices[pos] = gc - g.nodeChoices[src]
					fill[t]++
				}
			}
		}
		g.predBounds = bounds
		g.predNodes = nodes
		g.predChoices = choices
	})
}

func (g *Explicit) NumPredecessors(n int) int {
	return int(g.predBounds[n+1] - g.predBounds[n])
}

func (g *Explicit) Predecessor(n, i int) (int, int) {
	pos := g.predBounds[n] + int32(i)
	return int(g.predNodes[pos]), int(g.predChoices[pos])
}
