// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package iterate

import (
	"errors"

	"github.com/AleutianAI/AleutianSolver/services/solver/numeric"
	"github.com/AleutianAI/AleutianSolver/services/solver/sparse"
)

// ErrUnorderedLayout indicates a game rule was built over a partition that
// does not group states by player.
var ErrUnorderedLayout = errors.New("game rule requires a player-ordered partition")

// Rule computes the next value of one state.
//
// Update is called once per state per sweep. cur holds the values to read:
// under Jacobi the previous sweep's vector, under Gauss-Seidel the vector
// being updated in place (states below s already hold this sweep's value).
// In both disciplines cur[s] is the state's value before this update.
//
// Update may be called concurrently for distinct states and must not
// modify cur.
type Rule[T any] interface {
	// NumStates returns the number of states the rule updates.
	NumStates() int

	// Update returns the next value of state s.
	Update(s int, cur []T) T
}

// ConvertWeights converts float64 layout weights into T once, so sweeps do
// not repeat the conversion.
func ConvertWeights[T any](ar numeric.Arithmetic[T], weights []float64) []T {
	out := make([]T, len(weights))
	for i, w := range weights {
		out[i] = ar.FromFloat(w)
	}
	return out
}

// GameRule is the unbounded-reachability update for turn-based stochastic
// games: maximize over choices in [0, MaxEnd), minimize in [MaxEnd, MinEnd),
// take the weighted sum of the single choice in [MinEnd, NumStates).
type GameRule[T any] struct {
	arith        numeric.Arithmetic[T]
	stateBounds  []int32
	nondetBounds []int32
	targets      []int32
	weights      []T
	maxEnd       int
	minEnd       int
}

// NewGameRule builds the rule over a player-ordered partition.
func NewGameRule[T any](ar numeric.Arithmetic[T], p *sparse.Partition) (*GameRule[T], error) {
	if !p.Ordered {
		return nil, ErrUnorderedLayout
	}
	return &GameRule[T]{
		arith:        ar,
		stateBounds:  p.StateBounds,
		nondetBounds: p.NondetBounds,
		targets:      p.Targets,
		weights:      ConvertWeights(ar, p.Weights),
		maxEnd:       p.MaxEnd,
		minEnd:       p.MinEnd,
	}, nil
}

func (r *GameRule[T]) NumStates() int {
	return len(r.stateBounds) - 1
}

func (r *GameRule[T]) Update(s int, cur []T) T {
	first, last := r.stateBounds[s], r.stateBounds[s+1]
	switch {
	case s < r.maxEnd:
		acc := r.arith.NegInf()
		for c := first; c < last; c++ {
			acc = r.arith.Max(acc, r.sum(r.nondetBounds[c], r.nondetBounds[c+1], cur))
		}
		return acc
	case s < r.minEnd:
		acc := r.arith.PosInf()
		for c := first; c < last; c++ {
			acc = r.arith.Min(acc, r.sum(r.nondetBounds[c], r.nondetBounds[c+1], cur))
		}
		return acc
	default:
		return r.sum(r.nondetBounds[first], r.nondetBounds[last], cur)
	}
}

// sum returns the weighted sum over edges [from, to).
func (r *GameRule[T]) sum(from, to int32, cur []T) T {
	acc := r.arith.Zero()
	for e := from; e < to; e++ {
		acc = r.arith.Add(acc, r.arith.Mul(r.weights[e], cur[r.targets[e]]))
	}
	return acc
}
