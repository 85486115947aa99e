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
	"fmt"

	"github.com/AleutianAI/AleutianSolver/services/solver/iterate"
	"github.com/AleutianAI/AleutianSolver/services/solver/numeric"
)

// Options configures a solver.
type Options struct {
	// Iterate configures the value-iteration engine.
	Iterate iterate.Options

	// Numeric selects the scalar kind the solve runs in.
	// Default: numeric.KindDouble
	Numeric numeric.Kind

	// MaxStates caps compact states. Zero means the int32 limit.
	MaxStates int

	// MaxEdges caps compact edges. Zero means the int32 limit.
	MaxEdges int

	// VerifyScheduler re-checks extracted schedulers against the values
	// and fails the solve on a mismatch.
	// Default: false
	VerifyScheduler bool

	// ProgressEvery reports every n-th sweep to progress sinks.
	// Default: 1
	ProgressEvery int

	// Sinks receive progress from every solve.
	Sinks []ProgressSink
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		Iterate:       iterate.DefaultOptions(),
		Numeric:       numeric.KindDouble,
		ProgressEvery: 1,
	}
}

// Validate fills unset fields with defaults and rejects unusable values.
func (o *Options) Validate() error {
	if err := o.Iterate.Validate(); err != nil {
		return err
	}
	if o.ProgressEvery <= 0 {
		o.ProgressEvery = 1
	}
	switch o.Numeric {
	case numeric.KindDouble, numeric.KindRational, numeric.KindInterval:
	default:
		return fmt.Errorf("%w: %v", numeric.ErrUnknownKind, o.Numeric)
	}
	if o.MaxStates < 0 || o.MaxEdges < 0 {
		return fmt.Errorf("%w: negative capacity limit", iterate.ErrInvalidOptions)
	}
	return nil
}
