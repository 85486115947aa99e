// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package iterate runs fixed-point value iteration to convergence.
//
// One generic Engine covers every objective: it is parameterized by the
// scalar kind (numeric.Arithmetic) and by the per-state update (Rule). The
// engine owns the sweep loop, the Jacobi/Gauss-Seidel disciplines, the
// convergence test and the iteration budget; rules own the arithmetic of a
// single state.
package iterate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianSolver/services/solver/numeric"
)

// Engine runs value iteration over scalars of type T.
//
// Thread Safety: an Engine holds no per-run state and may be shared.
type Engine[T any] struct {
	arith     numeric.Arithmetic[T]
	opts      Options
	observers []Observer[T]
}

// New creates an Engine. Options are validated and defaulted.
func New[T any](ar numeric.Arithmetic[T], opts Options, observers ...Observer[T]) (*Engine[T], error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Engine[T]{arith: ar, opts: opts, observers: observers}, nil
}

// Options returns the validated options.
func (e *Engine[T]) Options() Options {
	return e.opts
}

// Run iterates rule to convergence starting from values.
//
// Description:
//
//	Each sweep updates every state once. After the sweep the largest
//	per-state change (absolute, or relative to the previous value) is
//	compared against Tolerance/2; iteration stops when it is not larger.
//	values holds the initial vector on entry and the final vector on
//	return, including when a *NotConvergedError is returned.
//
// Inputs:
//
//	ctx - Checked once per sweep for cancellation.
//	rule - The per-state update.
//	values - Initial values, len(values) == rule.NumStates().
//
// Outputs:
//
//	*Stats - Run summary. Non-nil whenever at least one sweep ran.
//	error - *NotConvergedError after MaxIterations sweeps,
//	        ErrSizeMismatch, or the context error.
//
// Complexity: O(iterations * (states + choices + edges)).
func (e *Engine[T]) Run(ctx context.Context, rule Rule[T], values []T) (*Stats, error) {
	n := rule.NumStates()
	if len(values) != n {
		return nil, fmt.Errorf("%w: %d values for %d states", ErrSizeMismatch, len(values), n)
	}

	workers := e.opts.Workers
	if e.opts.Method == GaussSeidel || workers < 2 || n < e.opts.ParallelThreshold {
		workers = 1
	}

	ctx, span := startRunSpan(ctx, e.opts, e.arith.Kind(), n, workers)
	defer span.End()

	stats := &Stats{Method: e.opts.Method, Workers: workers}
	start := time.Now()

	var err error
	switch e.opts.Method {
	case GaussSeidel:
		err = e.runGaussSeidel(ctx, rule, values, stats)
	default:
		err = e.runJacobi(ctx, rule, values, workers, stats)
	}
	stats.Duration = time.Since(start)

	recordRun(ctx, e.opts.Method, e.arith.Kind(), stats, err)
	setRunSpanResult(span, stats)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Debug("value iteration stopped",
			slog.String("method", e.opts.Method.String()),
			slog.Int("iterations", stats.Iterations),
			slog.Float64("distance", stats.Distance),
			slog.String("error", err.Error()),
		)
		return stats, err
	}

	slog.Debug("value iteration completed",
		slog.String("method", e.opts.Method.String()),
		slog.Int("iterations", stats.Iterations),
		slog.Float64("distance", stats.Distance),
		slog.Int("states", n),
		slog.Int("workers", workers),
	)
	return stats, nil
}

func (e *Engine[T]) runJacobi(ctx context.Context, rule Rule[T], values []T, workers int, stats *Stats) error {
	cur := values
	next := make([]T, len(values))
	defer func() {
		// After an odd number of swaps the latest values live in the
		// scratch vector.
		if len(cur) > 0 && &cur[0] != &values[0] {
			copy(values, cur)
		}
	}()

	var pool *sweepPool[T]
	if workers > 1 {
		pool = newSweepPool[T](e.arith, e.opts.StopCriterion, workers, len(values))
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var distance float64
		if pool != nil {
			d, err := pool.sweep(ctx, rule, cur, next)
			if err != nil {
				return err
			}
			distance = d
		} else {
			for s := range cur {
				nv := rule.Update(s, cur)
				if d := numeric.Diff(e.arith, e.opts.StopCriterion, cur[s], nv); d > distance {
					distance = d
				}
				next[s] = nv
			}
		}
		cur, next = next, cur

		if done, err := e.finishSweep(ctx, stats, distance, cur); done {
			return err
		}
	}
}

func (e *Engine[T]) runGaussSeidel(ctx context.Context, rule Rule[T], values []T, stats *Stats) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var distance float64
		for s := range values {
			prev := values[s]
			nv := rule.Update(s, values)
			if d := numeric.Diff(e.arith, e.opts.StopCriterion, prev, nv); d > distance {
				distance = d
			}
			values[s] = nv
		}

		if done, err := e.finishSweep(ctx, stats, distance, values); done {
			return err
		}
	}
}

// finishSweep records a sweep, notifies observers and decides whether the
// loop ends. It returns done=true with a nil error on convergence.
func (e *Engine[T]) finishSweep(ctx context.Context, stats *Stats, distance float64, values []T) (bool, error) {
	stats.Iterations++
	stats.Distance = distance
	for _, obs := range e.observers {
		obs.ObserveSweep(ctx, Sweep[T]{Iteration: stats.Iterations, Distance: distance, Values: values})
	}
	if distance <= e.opts.Tolerance/2 {
		stats.Converged = true
		return true, nil
	}
	if stats.Iterations >= e.opts.MaxIterations {
		return true, &NotConvergedError{
			Iterations: stats.Iterations,
			Distance:   distance,
			Tolerance:  e.opts.Tolerance,
		}
	}
	return false, nil
}

func startRunSpan(ctx context.Context, opts Options, kind numeric.Kind, states, workers int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "iterate.Engine.Run",
		trace.WithAttributes(
			attribute.String("iterate.method", opts.Method.String()),
			attribute.String("iterate.stop_criterion", opts.StopCriterion.String()),
			attribute.String("iterate.numeric", kind.String()),
			attribute.Float64("iterate.tolerance", opts.Tolerance),
			attribute.Int("iterate.states", states),
			attribute.Int("iterate.workers", workers),
		),
	)
}

func setRunSpanResult(span trace.Span, stats *Stats) {
	span.SetAttributes(
		attribute.Int("iterate.iterations", stats.Iterations),
		attribute.Float64("iterate.distance", stats.Distance),
		attribute.Bool("iterate.converged", stats.Converged),
	)
}
