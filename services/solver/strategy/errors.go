// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package strategy

import (
	"errors"
	"fmt"
)

var (
	// ErrSolverInvariantViolation indicates that converged values and the
	// graph disagree in a way that sound iteration cannot produce.
	ErrSolverInvariantViolation = errors.New("solver invariant violation")

	// ErrSchedulerMismatch indicates a scheduler that does not fit its graph.
	ErrSchedulerMismatch = errors.New("scheduler does not match graph")
)

// InvariantViolationError names the node at which extraction or
// verification failed.
type InvariantViolationError struct {
	// Node is the original node index.
	Node int

	// Value is the node's value as a float64.
	Value float64

	// Reason describes the violated condition.
	Reason string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("%s: node %d (value %g): %s", ErrSolverInvariantViolation, e.Node, e.Value, e.Reason)
}

func (e *InvariantViolationError) Unwrap() error {
	return ErrSolverInvariantViolation
}
