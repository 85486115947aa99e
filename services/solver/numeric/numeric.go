// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package numeric provides the scalar arithmetic used by the value-iteration
// engine.
//
// The engine is generic over the scalar type T. An Arithmetic[T] supplies the
// handful of operations the update rules need (add, multiply, max, min,
// comparison, distance) together with the extremal constants used to seed
// max/min accumulators. Three kinds are provided:
//
//   - Float64: IEEE double precision, the fast path.
//   - Rational: exact rationals extended with positive and negative infinity.
//   - Interval: closed float64 intervals, for bounding rounding error.
//
// The kind is resolved once per solve by the solver package,
// so hot loops never dispatch on a kind value.
package numeric

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownKind is returned when a kind or criterion name cannot be parsed.
var ErrUnknownKind = errors.New("unknown numeric kind")

// ErrUnknownCriterion is returned when a stop criterion name cannot be parsed.
var ErrUnknownCriterion = errors.New("unknown stop criterion")

// Arithmetic is the scalar interface consumed by the iteration engine.
//
// Implementations must be stateless and safe for concurrent use. Values of T
// are treated as immutable: every operation returns a fresh value and never
// mutates its arguments, so assignment is the "set" operation.
type Arithmetic[T any] interface {
	// Kind reports which scalar kind this is.
	Kind() Kind

	Zero() T
	One() T

	// NegInf is the identity of Max, used to seed maximizing accumulators.
	NegInf() T

	// PosInf is the identity of Min, used to seed minimizing accumulators.
	PosInf() T

	// FromFloat converts an edge weight or reward into T.
	FromFloat(f float64) T

	// Float returns a float64 view of v, used for reporting.
	Float(v T) float64

	Add(a, b T) T
	Mul(a, b T) T
	Max(a, b T) T
	Min(a, b T) T

	// Gt reports a > b under the kind's total order.
	Gt(a, b T) bool

	// Distance is the absolute distance |a-b| as a float64.
	Distance(a, b T) float64

	// Norm is |v| as a float64, used by the relative stop criterion.
	Norm(v T) float64

	IsZero(v T) bool

	// Format renders v exactly (rationals print as p/q).
	Format(v T) string
}

// Kind enumerates the supported scalar kinds.
type Kind int

const (
	// KindDouble is float64 arithmetic.
	KindDouble Kind = iota

	// KindRational is exact rational arithmetic.
	KindRational

	// KindInterval is closed-interval arithmetic over float64 bounds.
	KindInterval
)

// String returns the configuration name of the kind.
func (k Kind) String() string {
	switch k {
	case KindDouble:
		return "double"
	case KindRational:
		return "rational"
	case KindInterval:
		return "interval"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind parses "double", "rational" or "interval" (case-insensitive).
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "double", "float", "float64":
		return KindDouble, nil
	case "rational", "exact":
		return KindRational, nil
	case "interval":
		return KindInterval, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
