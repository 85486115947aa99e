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

	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianSolver/services/solver/iterate"
)

// Progress is one sweep of a running solve.
type Progress struct {
	SolveID   string  `json:"solve_id"`
	Solver    string  `json:"solver"`
	Iteration int     `json:"iteration"`
	Distance  float64 `json:"distance"`
}

// ProgressSink receives progress on the solving goroutine. Implementations
// should return quickly.
type ProgressSink interface {
	OnProgress(ctx context.Context, p Progress)
}

// ProgressFunc adapts a function to ProgressSink.
type ProgressFunc func(ctx context.Context, p Progress)

// OnProgress calls f.
func (f ProgressFunc) OnProgress(ctx context.Context, p Progress) {
	f(ctx, p)
}

type ctxKey int

const (
	solveIDKey ctxKey = iota
	sinksKey
)

// WithSolveID makes the next solve under ctx use id instead of a fresh UUID.
func WithSolveID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, solveIDKey, id)
}

// WithProgressSink adds a sink for solves under ctx, in addition to the
// solver's configured sinks.
func WithProgressSink(ctx context.Context, sink ProgressSink) context.Context {
	prev := sinksFrom(ctx)
	sinks := make([]ProgressSink, 0, len(prev)+1)
	sinks = append(append(sinks, prev...), sink)
	return context.WithValue(ctx, sinksKey, sinks)
}

func solveIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(solveIDKey).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}

func sinksFrom(ctx context.Context) []ProgressSink {
	sinks, _ := ctx.Value(sinksKey).([]ProgressSink)
	return sinks
}

// progressObserver forwards engine sweeps to progress sinks.
type progressObserver[T any] struct {
	solveID string
	solver  string
	every   int
	sinks   []ProgressSink
}

func newProgressObserver[T any](ctx context.Context, r *Report, opts Options) *progressObserver[T] {
	sinks := append(append([]ProgressSink(nil), opts.Sinks...), sinksFrom(ctx)...)
	if len(sinks) == 0 {
		return nil
	}
	return &progressObserver[T]{solveID: r.ID, solver: r.Solver, every: opts.ProgressEvery, sinks: sinks}
}

func (o *progressObserver[T]) ObserveSweep(ctx context.Context, s iterate.Sweep[T]) {
	if s.Iteration%o.every != 0 {
		return
	}
	p := Progress{SolveID: o.solveID, Solver: o.solver, Iteration: s.Iteration, Distance: s.Distance}
	for _, sink := range o.sinks {
		sink.OnProgress(ctx, p)
	}
}
