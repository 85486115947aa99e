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
	"errors"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/AleutianAI/AleutianSolver/services/solver/numeric"
)

// Package-level tracer and meter for iteration.
var (
	tracer = otel.Tracer("solver.iterate")
	meter  = otel.Meter("solver.iterate")
)

var (
	runLatency  metric.Float64Histogram
	runTotal    metric.Int64Counter
	sweepsTotal metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		runLatency, err = meter.Float64Histogram(
			"solver_iterate_duration_seconds",
			metric.WithDescription("Duration of value iteration runs"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		runTotal, err = meter.Int64Counter(
			"solver_iterate_runs_total",
			metric.WithDescription("Total number of value iteration runs"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		sweepsTotal, err = meter.Int64Counter(
			"solver_iterate_sweeps_total",
			metric.WithDescription("Total number of sweeps across all runs"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordRun records metrics for one engine run.
func recordRun(ctx context.Context, method Method, kind numeric.Kind, stats *Stats, err error) {
	if initMetrics() != nil {
		return
	}

	outcome := "converged"
	switch {
	case errors.Is(err, ErrDidNotConverge):
		outcome = "not_converged"
	case err != nil:
		outcome = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method.String()),
		attribute.String("numeric", kind.String()),
		attribute.String("outcome", outcome),
	)

	runLatency.Record(ctx, stats.Duration.Seconds(), attrs)
	runTotal.Add(ctx, 1, attrs)
	sweepsTotal.Add(ctx, int64(stats.Iterations), attrs)
}
