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
	"fmt"
)

var (
	// ErrDidNotConverge indicates the sweep budget ran out before the
	// values settled.
	ErrDidNotConverge = errors.New("value iteration did not converge")

	// ErrInvalidOptions indicates unusable engine options.
	ErrInvalidOptions = errors.New("invalid iteration options")

	// ErrSizeMismatch indicates a value vector whose length differs from
	// the rule's state count.
	ErrSizeMismatch = errors.New("value vector size mismatch")
)

// NotConvergedError carries the state of a run that hit MaxIterations.
type NotConvergedError struct {
	// Iterations is the number of sweeps performed.
	Iterations int

	// Distance is the largest per-state change in the last sweep.
	Distance float64

	// Tolerance is the tolerance that was not met.
	Tolerance float64
}

func (e *NotConvergedError) Error() string {
	return fmt.Sprintf("%s after %d iterations: distance %g > %g",
		ErrDidNotConverge, e.Iterations, e.Distance, e.Tolerance/2)
}

func (e *NotConvergedError) Unwrap() error {
	return ErrDidNotConverge
}
