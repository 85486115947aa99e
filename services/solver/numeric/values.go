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

// Values is a read-only, kind-erased view of a result vector.
//
// Solvers publish results through Values so callers do not need to know
// which scalar kind the solve ran in.
type Values interface {
	// Len returns the number of entries.
	Len() int

	// Float returns entry i as a float64.
	Float(i int) float64

	// String returns entry i rendered exactly.
	String(i int) string
}

// Vector adapts a []T to Values.
type Vector[T any] struct {
	arith Arithmetic[T]
	data  []T
}

// NewVector wraps data. The slice is not copied; the caller hands it over.
func NewVector[T any](arith Arithmetic[T], data []T) *Vector[T] {
	return &Vector[T]{arith: arith, data: data}
}

func (v *Vector[T]) Len() int { return len(v.data) }
func (v *Vector[T]) Float(i int) float64 { return v.arith.Float(v.data[i]) }
func (v *Vector[T]) String(i int) string { return v.arith.Format(v.data[i]) }

// At returns entry i in its native kind.
func (v *Vector[T]) At(i int) T { return v.data[i] }

// Floats copies any Values into a []float64.
func Floats(v Values) []float64 {
	if v == nil {
		return nil
	}
	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.Float(i)
	}
	return out
}

// Strings copies any Values into a []string of exact renderings.
func Strings(v Values) []string {
	if v == nil {
		return nil
	}
	out := make([]string, v.Len())
	for i := range out {
		out[i] = v.String(i)
	}
	return out
}
