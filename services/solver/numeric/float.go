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
	"math"
	"strconv"
)

// Float64 is Arithmetic over IEEE doubles.
type Float64 struct{}

var _ Arithmetic[float64] = Float64{}

func (Float64) Kind() Kind { return KindDouble }
func (Float64) Zero() float64 { return 0 }
func (Float64) One() float64 { return 1 }
func (Float64) NegInf() float64 { return math.Inf(-1) }
func (Float64) PosInf() float64 { return math.Inf(1) }
func (Float64) FromFloat(f float64) float64 { return f }
func (Float64) Float(v float64) float64 { return v }
func (Float64) Add(a, b float64) float64 { return a + b }
func (Float64) Max(a, b float64) float64 { return math.Max(a, b) }
func (Float64) Min(a, b float64) float64 { return math.Min(a, b) }
func (Float64) Gt(a, b float64) bool { return a > b }
func (Float64) Norm(v float64) float64 { return math.Abs(v) }
func (Float64) IsZero(v float64) bool { return v == 0 }

// Mul treats 0 * ±Inf as 0.
func (Float64) Mul(a, b float64) float64 {
	if a == 0 || b == 0 {
		return 0
	}
	return a * b
}

// Distance returns |a-b|; equal infinities are at distance 0.
func (Float64) Distance(a, b float64) float64 {
	if a == b {
		return 0
	}
	return math.Abs(a - b)
}

func (Float64) Format(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
