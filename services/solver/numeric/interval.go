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
	"math"
	"strconv"
)

// Bounds is a closed interval [Lo, Hi].
type Bounds struct {
	Lo float64
	Hi float64
}

// Point returns the degenerate interval [f, f].
func Point(f float64) Bounds { return Bounds{Lo: f, Hi: f} }

// Width returns Hi - Lo.
func (b Bounds) Width() float64 { return b.Hi - b.Lo }

// Contains reports whether f lies in [Lo, Hi].
func (b Bounds) Contains(f float64) bool { return b.Lo <= f && f <= b.Hi }

func (b Bounds) String() string {
	return fmt.Sprintf("[%s, %s]",
		strconv.FormatFloat(b.Lo, 'g', -1, 64),
		strconv.FormatFloat(b.Hi, 'g', -1, 64))
}

// Interval is Arithmetic over Bounds.
//
// Max and Min act componentwise, which is the image of the monotone
// max/min over the interval's endpoints. Gt orders lexicographically on
// (Lo, Hi) so that accumulators have a total order to compare against.
type Interval struct{}

var _ Arithmetic[Bounds] = Interval{}

func (Interval) Kind() Kind { return KindInterval }
func (Interval) Zero() Bounds { return Bounds{} }
func (Interval) One() Bounds { return Point(1) }
func (Interval) NegInf() Bounds { return Point(math.Inf(-1)) }
func (Interval) PosInf() Bounds { return Point(math.Inf(1)) }
func (Interval) FromFloat(f float64) Bounds { return Point(f) }
func (Interval) IsZero(v Bounds) bool { return v.Lo == 0 && v.Hi == 0 }

// Float returns the interval midpoint.
func (Interval) Float(v Bounds) float64 {
	if v.Lo == v.Hi {
		return v.Lo
	}
	return v.Lo + (v.Hi-v.Lo)/2
}

// Add rounds the lower bound down and the upper bound up whenever the
// float sum is inexact.
func (Interval) Add(a, b Bounds) Bounds {
	lo, _ := addRounded(a.Lo, b.Lo)
	_, hi := addRounded(a.Hi, b.Hi)
	return Bounds{Lo: lo, Hi: hi}
}

// Mul takes the hull of the four endpoint products, with 0 * ±Inf = 0,
// rounded outward.
func (Interval) Mul(a, b Bounds) Bounds {
	lo1, hi1 := mulRounded(a.Lo, b.Lo)
	lo2, hi2 := mulRounded(a.Lo, b.Hi)
	lo3, hi3 := mulRounded(a.Hi, b.Lo)
	lo4, hi4 := mulRounded(a.Hi, b.Hi)
	return Bounds{
		Lo: math.Min(math.Min(lo1, lo2), math.Min(lo3, lo4)),
		Hi: math.Max(math.Max(hi1, hi2), math.Max(hi3, hi4)),
	}
}

func (Interval) Max(a, b Bounds) Bounds {
	return Bounds{Lo: math.Max(a.Lo, b.Lo), Hi: math.Max(a.Hi, b.Hi)}
}

func (Interval) Min(a, b Bounds) Bounds {
	return Bounds{Lo: math.Min(a.Lo, b.Lo), Hi: math.Min(a.Hi, b.Hi)}
}

func (Interval) Gt(a, b Bounds) bool {
	if a.Lo != b.Lo {
		return a.Lo > b.Lo
	}
	return a.Hi > b.Hi
}

// Distance is the larger of the two endpoint distances.
func (Interval) Distance(a, b Bounds) float64 {
	f := Float64{}
	return math.Max(f.Distance(a.Lo, b.Lo), f.Distance(a.Hi, b.Hi))
}

func (Interval) Norm(v Bounds) float64 {
	return math.Max(math.Abs(v.Lo), math.Abs(v.Hi))
}

func (Interval) Format(v Bounds) string { return v.String() }

func mulf(a, b float64) float64 {
	if a == 0 || b == 0 {
		return 0
	}
	return a * b
}

// addRounded returns floats bracketing the exact sum a + b. The rounding
// error of the float sum is recovered exactly (TwoSum), so an exact sum
// comes back as a point.
func addRounded(a, b float64) (lo, hi float64) {
	s := a + b
	if math.IsInf(s, 0) || math.IsNaN(s) {
		return s, s
	}
	bv := s - a
	err := (a - (s - bv)) + (b - bv)
	return bracket(s, err)
}

// mulRounded returns floats bracketing the exact product a * b, using a
// fused multiply-add to recover the rounding error.
func mulRounded(a, b float64) (lo, hi float64) {
	p := mulf(a, b)
	if p == 0 || math.IsInf(p, 0) || math.IsNaN(p) {
		if p == 0 && a != 0 && b != 0 {
			// underflow
			return -math.SmallestNonzeroFloat64, math.SmallestNonzeroFloat64
		}
		return p, p
	}
	return bracket(p, math.FMA(a, b, -p))
}

// bracket widens the rounded result r by one ulp on the side where the
// exact value r + err lies.
func bracket(r, err float64) (lo, hi float64) {
	switch {
	case err > 0:
		return r, math.Nextafter(r, math.Inf(1))
	case err < 0:
		return math.Nextafter(r, math.Inf(-1)), r
	default:
		return r, r
	}
}
