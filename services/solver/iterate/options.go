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
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianSolver/services/solver/numeric"
)

// Default engine configuration values.
const (
	// DefaultTolerance is the default convergence tolerance.
	DefaultTolerance = 1e-6

	// DefaultMaxIterations caps the number of sweeps.
	DefaultMaxIterations = 1_000_000

	// DefaultParallelThreshold is the state count below which Jacobi
	// sweeps stay on one goroutine even when workers are configured.
	DefaultParallelThreshold = 4096
)

// Method selects the update discipline.
type Method int

const (
	// Jacobi reads the previous sweep's vector and writes a fresh one.
	Jacobi Method = iota

	// GaussSeidel updates one vector in place in ascending state order.
	GaussSeidel
)

func (m Method) String() string {
	switch m {
	case Jacobi:
		return "jacobi"
	case GaussSeidel:
		return "gauss-seidel"
	default:
		return fmt.Sprintf("Method(%d)", int(m))
	}
}

// ParseMethod parses "jacobi" or "gauss-seidel" (also "gs", "gaussseidel").
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "jacobi":
		return Jacobi, nil
	case "gauss-seidel", "gaussseidel", "gauss_seidel", "gs":
		return GaussSeidel, nil
	default:
		return 0, fmt.Errorf("%w: unknown method %q", ErrInvalidOptions, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Method) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Method) UnmarshalText(text []byte) error {
	parsed, err := ParseMethod(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Options configures an Engine.
type Options struct {
	// Method is the update discipline.
	// Default: Jacobi
	Method Method

	// StopCriterion selects absolute or relative distance.
	// Default: numeric.Absolute
	StopCriterion numeric.StopCriterion

	// Tolerance is the convergence tolerance. Iteration stops once the
	// largest per-state change is at most Tolerance/2.
	// Default: 1e-6
	Tolerance float64

	// MaxIterations caps the number of sweeps. Exceeding it yields a
	// *NotConvergedError.
	// Default: 1,000,000
	MaxIterations int

	// Workers is the number of goroutines for Jacobi sweeps. Values
	// below 2 keep sweeps sequential. Gauss-Seidel is always sequential.
	// Default: 1
	Workers int

	// ParallelThreshold is the minimum state count for parallel sweeps.
	// Default: 4096
	ParallelThreshold int
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		Method:            Jacobi,
		StopCriterion:     numeric.Absolute,
		Tolerance:         DefaultTolerance,
		MaxIterations:     DefaultMaxIterations,
		Workers:           1,
		ParallelThreshold: DefaultParallelThreshold,
	}
}

// Validate fills unset fields with defaults and rejects unusable values.
func (o *Options) Validate() error {
	if o.Tolerance == 0 {
		o.Tolerance = DefaultTolerance
	}
	if o.MaxIterations == 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	if o.Workers == 0 {
		o.Workers = 1
	}
	if o.ParallelThreshold == 0 {
		o.ParallelThreshold = DefaultParallelThreshold
	}
	switch {
	case !(o.Tolerance > 0) || math.IsInf(o.Tolerance, 0):
		return fmt.Errorf("%w: tolerance %v", ErrInvalidOptions, o.Tolerance)
	case o.MaxIterations < 0:
		return fmt.Errorf("%w: max iterations %d", ErrInvalidOptions, o.MaxIterations)
	case o.Workers < 0:
		return fmt.Errorf("%w: workers %d", ErrInvalidOptions, o.Workers)
	case o.Method != Jacobi && o.Method != GaussSeidel:
		return fmt.Errorf("%w: method %v", ErrInvalidOptions, o.Method)
	case o.StopCriterion != numeric.Absolute && o.StopCriterion != numeric.Relative:
		return fmt.Errorf("%w: stop criterion %v", ErrInvalidOptions, o.StopCriterion)
	}
	return nil
}

// Stats summarizes one engine run.
type Stats struct {
	// Method is the discipline that ran.
	Method Method

	// Iterations is the number of completed sweeps.
	Iterations int

	// Distance is the largest per-state change in the last sweep.
	Distance float64

	// Converged is true when Distance <= Tolerance/2.
	Converged bool

	// Workers is the number of goroutines per sweep.
	Workers int

	// Duration is the wall time of the run.
	Duration time.Duration
}
