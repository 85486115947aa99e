// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package solver computes optimal values and schedulers over explicit
// stochastic graphs.
//
// Three solvers are provided, each handling one objective descriptor:
//
//   - ReachabilityGameSolver: unbounded reachability in turn-based
//     stochastic games and MDPs, optionally with a witnessing scheduler.
//   - WeightedSolver: maximal expected reward with optional stopping,
//     synthesizing a scheduler.
//   - ScheduledSolver: evaluation of a fixed scheduler under the same
//     reward structure.
//
// A Registry picks the first solver whose CanHandle accepts an objective.
// Every solve partitions the graph into the compact layout, runs the generic
// value-iteration engine in the configured numeric kind, and writes results
// back into the descriptor in original node order.
package solver

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianSolver/services/solver/iterate"
	"github.com/AleutianAI/AleutianSolver/services/solver/numeric"
	"github.com/AleutianAI/AleutianSolver/services/solver/objective"
)

// Solver identifiers.
const (
	IdentifierReachability = "graph-solver-iterative-coalition"
	IdentifierWeighted     = "graph-solver-iterative-multiobjective-weighted"
	IdentifierScheduled    = "graph-solver-iterative-multiobjective-scheduled"
)

// Solver computes one kind of objective.
//
// Thread Safety: solvers hold only their options and may be used
// concurrently on independent objectives.
type Solver interface {
	// Identifier returns the stable solver name.
	Identifier() string

	// CanHandle reports whether Solve would accept obj.
	CanHandle(obj objective.Objective) bool

	// Solve computes obj and writes the results into it.
	Solve(ctx context.Context, obj objective.Objective) error
}

// Runner is a Solver that also reports how the solve went.
type Runner interface {
	Solver

	// Run is Solve returning a report. The report is non-nil whenever
	// the objective was accepted, including on failure.
	Run(ctx context.Context, obj objective.Objective) (*Report, error)
}

// Report summarizes one solve.
type Report struct {
	ID         string         `json:"id"`
	Solver     string         `json:"solver"`
	Numeric    numeric.Kind   `json:"numeric"`
	Method     iterate.Method `json:"method"`
	Nodes      int            `json:"nodes"`
	States     int            `json:"states"`
	Iterations int            `json:"iterations"`
	Distance   float64        `json:"distance"`
	Converged  bool           `json:"converged"`

	// Duration covers the whole solve; IterationTime only the engine run.
	Duration      time.Duration `json:"duration_ns"`
	IterationTime time.Duration `json:"iteration_time_ns"`
}

// Run solves obj with s and returns a report. Solvers that do not implement
// Runner get a report carrying only identity and duration.
func Run(ctx context.Context, s Solver, obj objective.Objective) (*Report, error) {
	if r, ok := s.(Runner); ok {
		return r.Run(ctx, obj)
	}
	start := time.Now()
	err := s.Solve(ctx, obj)
	return &Report{ID: solveIDFrom(ctx), Solver: s.Identifier(), Duration: time.Since(start)}, err
}

// =============================================================================
// Registry
// =============================================================================

// Registry selects a solver for an objective.
type Registry struct {
	mu      sync.RWMutex
	solvers []Solver
}

// NewRegistry returns a registry trying solvers in order.
func NewRegistry(solvers ...Solver) *Registry {
	return &Registry{solvers: append([]Solver(nil), solvers...)}
}

// NewDefaultRegistry returns a registry with the three built-in solvers
// sharing opts.
func NewDefaultRegistry(opts Options) (*Registry, error) {
	reach, err := NewReachabilityGameSolver(opts)
	if err != nil {
		return nil, err
	}
	weighted, err := NewWeightedSolver(opts)
	if err != nil {
		return nil, err
	}
	scheduled, err := NewScheduledSolver(opts)
	if err != nil {
		return nil, err
	}
	return NewRegistry(reach, weighted, scheduled), nil
}

// Register appends a solver.
func (r *Registry) Register(s Solver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.solvers = append(r.solvers, s)
}

// Select returns the first solver that can handle obj.
func (r *Registry) Select(obj objective.Objective) (Solver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.solvers {
		if s.CanHandle(obj) {
			return s, nil
		}
	}
	return nil, ErrNoSolver
}

// Lookup returns the solver with the given identifier.
func (r *Registry) Lookup(identifier string) (Solver, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.solvers {
		if s.Identifier() == identifier {
			return s, true
		}
	}
	return nil, false
}

// Identifiers lists the registered solvers in selection order.
func (r *Registry) Identifiers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.solvers))
	for i, s := range r.solvers {
		out[i] = s.Identifier()
	}
	return out
}

// =============================================================================
// Shared solve scaffolding
// =============================================================================

// solveFunc does the kind-specific work of a solve, filling r as it goes.
type solveFunc func(ctx context.Context, r *Report) error

// track wraps a solve with its ID, span, metrics and summary log line.
func track(ctx context.Context, identifier string, opts Options, obj objective.Objective, body solveFunc) (*Report, error) {
	r := &Report{
		ID:      solveIDFrom(ctx),
		Solver:  identifier,
		Numeric: opts.Numeric,
		Method:  opts.Iterate.Method,
		Nodes:   obj.Graph().NumNodes(),
	}

	ctx, span := tracer.Start(ctx, "solver.Solve", trace.WithAttributes(
		attribute.String("solve.id", r.ID),
		attribute.String("solve.solver", identifier),
		attribute.String("solve.numeric", opts.Numeric.String()),
		attribute.String("solve.method", opts.Iterate.Method.String()),
		attribute.Int("solve.nodes", r.Nodes),
	))
	defer span.End()

	slog.Debug("iterating",
		slog.String("solve_id", r.ID),
		slog.String("solver", identifier),
		slog.Int("nodes", r.Nodes),
	)

	start := time.Now()
	err := body(ctx, r)
	r.Duration = time.Since(start)
	recordSolve(r, err)

	span.SetAttributes(
		attribute.Int("solve.states", r.States),
		attribute.Int("solve.iterations", r.Iterations),
		attribute.Float64("solve.distance", r.Distance),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Warn("solve failed",
			slog.String("solve_id", r.ID),
			slog.String("solver", identifier),
			slog.Int("iterations", r.Iterations),
			slog.String("error", err.Error()),
		)
		return r, err
	}

	slog.Info("iteration done",
		slog.String("solve_id", r.ID),
		slog.String("solver", identifier),
		slog.Int("iterations", r.Iterations),
		slog.Float64("seconds", r.IterationTime.Seconds()),
	)
	return r, nil
}

// iterateRule runs the engine over rule, recording stats into r.
func iterateRule[T any](ctx context.Context, ar numeric.Arithmetic[T], opts Options, rule iterate.Rule[T], values []T, r *Report) error {
	var observers []iterate.Observer[T]
	if po := newProgressObserver[T](ctx, r, opts); po != nil {
		observers = append(observers, po)
	}
	engine, err := iterate.New(ar, opts.Iterate, observers...)
	if err != nil {
		return err
	}
	stats, err := engine.Run(ctx, rule, values)
	if stats != nil {
		r.Iterations = stats.Iterations
		r.Distance = stats.Distance
		r.Converged = stats.Converged
		r.IterationTime = stats.Duration
	}
	if err != nil {
		return fmt.Errorf("%s: %w", r.Solver, err)
	}
	return nil
}
