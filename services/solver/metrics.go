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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("solver")

// =============================================================================
// Prometheus Metrics for Solves
// =============================================================================

var (
	// solvesTotal counts solves.
	// Labels: solver (identifier), status (success, not_converged, capacity,
	// invariant, unsupported, error)
	solvesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aleutian_solver",
		Subsystem: "solve",
		Name:      "total",
		Help:      "Total solves by solver and status",
	}, []string{"solver", "status"})

	// solveDuration measures end-to-end solve time.
	// Labels: solver, numeric (double, rational, interval)
	solveDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "aleutian_solver",
		Subsystem: "solve",
		Name:      "duration_seconds",
		Help:      "Solve duration in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	}, []string{"solver", "numeric"})

	// solveIterations tracks sweeps per solve.
	// Labels: solver
	solveIterations = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "aleutian_solver",
		Subsystem: "solve",
		Name:      "iterations",
		Help:      "Value-iteration sweeps per solve",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
	}, []string{"solver"})

	// solveStates tracks compact state counts.
	// Labels: solver
	solveStates = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "aleutian_solver",
		Subsystem: "solve",
		Name:      "states",
		Help:      "Compact states per solve",
		Buckets:   prometheus.ExponentialBuckets(1, 8, 9),
	}, []string{"solver"})

	// lastDistance is the final convergence distance of the latest solve.
	// Labels: solver
	lastDistance = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "aleutian_solver",
		Subsystem: "solve",
		Name:      "last_distance",
		Help:      "Final convergence distance of the most recent solve",
	}, []string{"solver"})
)

// recordSolve records the metrics of one finished solve.
//
// Inputs:
//
//	r - The report. Never nil.
//	err - The solve error, or nil.
func recordSolve(r *Report, err error) {
	solvesTotal.WithLabelValues(r.Solver, statusOf(err)).Inc()
	solveDuration.WithLabelValues(r.Solver, r.Numeric.String()).Observe(r.Duration.Seconds())
	if r.Iterations > 0 {
		solveIterations.WithLabelValues(r.Solver).Observe(float64(r.Iterations))
		lastDistance.WithLabelValues(r.Solver).Set(r.Distance)
	}
	if r.States > 0 {
		solveStates.WithLabelValues(r.Solver).Observe(float64(r.States))
	}
}
