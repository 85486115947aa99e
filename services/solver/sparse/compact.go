// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sparse builds the compact graph the iteration engine runs on.
//
// The compact graph is a two-level CSR layout:
//
//	StateBounds[s] .. StateBounds[s+1]    choices of state s
//	NondetBounds[c] .. NondetBounds[c+1]  edges of choice c
//	Targets[e], Weights[e]                successor state and probability
//
// Compile derives it from an original graph. States are grouped by player
// so the engine can branch on two cutoffs instead of looking up each
// state's controller. States that cannot reach a target are dropped.
//
// The arrays are also the on-disk layout: WriteBinary and ReadBinary move
// them as contiguous little-endian blocks.
package sparse

import "fmt"

// Compact is the two-level CSR layout.
type Compact struct {
	// StateBounds has NumStates+1 entries.
	StateBounds []int32

	// NondetBounds has NumChoices+1 entries.
	NondetBounds []int32

	// Targets holds the successor state of each edge.
	Targets []int32

	// Weights holds the probability of each edge.
	Weights []float64
}

// NumStates returns the number of states.
func (c *Compact) NumStates() int {
	if len(c.StateBounds) == 0 {
		return 0
	}
	return len(c.StateBounds) - 1
}

// NumChoices returns the number of choices.
func (c *Compact) NumChoices() int {
	if len(c.NondetBounds) == 0 {
		return 0
	}
	return len(c.NondetBounds) - 1
}

// NumEdges returns the number of edges.
func (c *Compact) NumEdges() int {
	return len(c.Targets)
}

// Validate checks the CSR invariants.
//
// Complexity: O(states + choices + edges).
func (c *Compact) Validate() error {
	numStates := c.NumStates()
	if len(c.StateBounds) == 0 || len(c.NondetBounds) == 0 {
		return fmt.Errorf("%w: empty bounds", ErrInvalidLayout)
	}
	if err := validateBounds("StateBounds", c.StateBounds, c.NumChoices()); err != nil {
		return err
	}
	if err := validateBounds("NondetBounds", c.NondetBounds, len(c.Targets)); err != nil {
		return err
	}
	if len(c.Weights) != len(c.Targets) {
		return fmt.Errorf("%w: %d weights for %d targets", ErrInvalidLayout, len(c.Weights), len(c.Targets))
	}
	for i, t := range c.Targets {
		if t < 0 || int(t) >= numStates {
			return fmt.Errorf("%w: Targets[%d]=%d outside [0,%d)", ErrInvalidLayout, i, t, numStates)
		}
	}
	return nil
}

func validateBounds(name string, bounds []int32, last int) error {
	if bounds[0] != 0 {
		return fmt.Errorf("%w: %s[0]=%d", ErrInvalidLayout, name, bounds[0])
	}
	for i := 1; i < len(bounds); i++ {
		if bounds[i] < bounds[i-1] {
			return fmt.Errorf("%w: %s not monotonic at %d", ErrInvalidLayout, name, i)
		}
	}
	if int(bounds[len(bounds)-1]) != last {
		return fmt.Errorf("%w: %s ends at %d, want %d", ErrInvalidLayout, name, bounds[len(bounds)-1], last)
	}
	return nil
}
