// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package numeric

import (
	"fmt"
	"strings"
)

// StopCriterion selects how the per-state change between sweeps is measured.
type StopCriterion int

const (
	// Absolute measures |prev - next|.
	Absolute StopCriterion = iota

	// Relative measures |prev - next| / |prev|, falling back to the
	// absolute distance when prev is zero.
	Relative
)

func (c StopCriterion) String() string {
	switch c {
	case Absolute:
		return "absolute"
	case Relative:
		return "relative"
	default:
		return fmt.Sprintf("StopCriterion(%d)", int(c))
	}
}

// ParseStopCriterion parses "absolute" or "relative" (case-insensitive).
func ParseStopCriterion(s string) (StopCriterion, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "absolute":
		return Absolute, nil
	case "relative":
		return Relative, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownCriterion, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c StopCriterion) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *StopCriterion) UnmarshalText(text []byte) error {
	parsed, err := ParseStopCriterion(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Diff measures the change from prev to next under criterion c.
func Diff[T any](ar Arithmetic[T], c StopCriterion, prev, next T) float64 {
	d := ar.Distance(prev, next)
	if c == Relative && d != 0 {
		if n := ar.Norm(prev); n != 0 {
			d /= n
		}
	}
	return d
}
