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
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/cpu"

	"github.com/AleutianAI/AleutianSolver/services/solver/numeric"
)

// paddedDistance keeps each worker's running maximum on its own cache line.
type paddedDistance struct {
	d float64
	_ cpu.CacheLinePad
}

// sweepPool splits a Jacobi sweep into contiguous state ranges.
//
// Jacobi reads only the previous vector and writes each state exactly once,
// so ranges are independent.
type sweepPool[T any] struct {
	arith     numeric.Arithmetic[T]
	criterion numeric.StopCriterion
	bounds    []int
	distances []paddedDistance
}

func newSweepPool[T any](ar numeric.Arithmetic[T], criterion numeric.StopCriterion, workers, n int) *sweepPool[T] {
	workers = max(1, min(workers, n))
	bounds := make([]int, workers+1)
	for w := 0; w <= workers; w++ {
		bounds[w] = w * n / workers
	}
	return &sweepPool[T]{
		arith:     ar,
		criterion: criterion,
		bounds:    bounds,
		distances: make([]paddedDistance, workers),
	}
}

// sweep updates next from cur and returns the largest per-state change.
func (p *sweepPool[T]) sweep(ctx context.Context, rule Rule[T], cur, next []T) (float64, error) {
	g, gCtx := errgroup.WithContext(ctx)
	for w := range p.distances {
		from, to := p.bounds[w], p.bounds[w+1]
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			var local float64
			for s := from; s < to; s++ {
				nv := rule.Update(s, cur)
				if d := numeric.Diff(p.arith, p.criterion, cur[s], nv); d > local {
					local = d
				}
				next[s] = nv
			}
			p.distances[w].d = local
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	var distance float64
	for i := range p.distances {
		if p.distances[i].d > distance {
			distance = p.distances[i].d
		}
	}
	return distance, nil
}
