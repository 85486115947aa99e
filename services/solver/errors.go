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
	"errors"

	"github.com/AleutianAI/AleutianSolver/services/solver/iterate"
	"github.com/AleutianAI/AleutianSolver/services/solver/sparse"
	"github.com/AleutianAI/AleutianSolver/services/solver/strategy"
)

var (
	// ErrNoSolver is returned by Registry.Select when no solver can handle
	// the objective.
	ErrNoSolver = errors.New("no solver can handle objective")

	// ErrUnsupportedObjective is returned by Solve for an objective the
	// solver cannot handle. Check CanHandle first.
	ErrUnsupportedObjective = errors.New("unsupported objective")
)

// Re-exported failure sentinels so callers need only this package to
// classify solve errors.
var (
	ErrDidNotConverge           = iterate.ErrDidNotConverge
	ErrInsufficientCapacity     = sparse.ErrInsufficientCapacity
	ErrSolverInvariantViolation = strategy.ErrSolverInvariantViolation
)

// statusOf maps a solve error to a metrics label.
func statusOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrDidNotConverge):
		return "not_converged"
	case errors.Is(err, ErrInsufficientCapacity):
		return "capacity"
	case errors.Is(err, ErrSolverInvariantViolation):
		return "invariant"
	case errors.Is(err, ErrUnsupportedObjective):
		return "unsupported"
	default:
		return "error"
	}
}
