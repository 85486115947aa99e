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
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"double", KindDouble, false},
		{"", KindDouble, false},
		{"Rational", KindRational, false},
		{" interval ", KindInterval, false},
		{"quaternion", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnknownKind)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKind_TextRoundTrip(t *testing.T) {
	for _, k := range []Kind{KindDouble, KindRational, KindInterval} {
		text, err := k.MarshalText()
		require.NoError(t, err)
		var back Kind
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, k, back)
	}
}

func TestFloat64_Extremes(t *testing.T) {
	ar := Float64{}
	assert.True(t, math.IsInf(ar.NegInf(), -1))
	assert.True(t, math.IsInf(ar.PosInf(), 1))
	assert.Equal(t, 0.3, ar.Max(ar.NegInf(), 0.3))
	assert.Equal(t, 0.3, ar.Min(ar.PosInf(), 0.3))
	assert.Equal(t, 0.0, ar.Mul(0, ar.PosInf()))
	assert.Equal(t, 0.0, ar.Distance(ar.PosInf(), ar.PosInf()))
	assert.InDelta(t, 0.25, ar.Distance(0.5, 0.25), 1e-15)
}

func TestRational_Arithmetic(t *testing.T) {
	ar := Rational{}
	half := NewRat(1, 2)
	third := NewRat(1, 3)

	sum := ar.Add(half, third)
	assert.Equal(t, "5/6", ar.Format(sum))

	prod := ar.Mul(half, third)
	assert.Equal(t, "1/6", ar.Format(prod))

	assert.True(t, ar.Gt(half, third))
	assert.False(t, ar.Gt(third, half))
	assert.Equal(t, "1/2", ar.Format(ar.Max(half, third)))
	assert.Equal(t, "1/3", ar.Format(ar.Min(half, third)))
	assert.InDelta(t, 1.0/6, ar.Distance(half, third), 1e-15)
	assert.True(t, ar.IsZero(ar.Zero()))
	assert.False(t, ar.IsZero(half))

	// Operands are never mutated.
	assert.Equal(t, "1/2", half.String())
	assert.Equal(t, "1/3", third.String())
}

func TestRational_Infinity(t *testing.T) {
	ar := Rational{}
	half := NewRat(1, 2)

	assert.Equal(t, "1/2", ar.Format(ar.Max(ar.NegInf(), half)))
	assert.Equal(t, "1/2", ar.Format(ar.Min(ar.PosInf(), half)))
	assert.True(t, ar.Gt(half, ar.NegInf()))
	assert.True(t, ar.Gt(ar.PosInf(), half))
	assert.True(t, ar.IsZero(ar.Mul(ar.Zero(), ar.PosInf())))
	assert.True(t, ar.Mul(half, ar.NegInf()).IsInf(-1))
	assert.Equal(t, 0.0, ar.Distance(ar.PosInf(), ar.PosInf()))
	assert.True(t, math.IsInf(ar.Distance(ar.PosInf(), half), 1))
	assert.True(t, ar.FromFloat(math.Inf(1)).IsInf(1))
}

func TestRational_FromFloatIsExact(t *testing.T) {
	ar := Rational{}
	assert.Equal(t, "1/4", ar.Format(ar.FromFloat(0.25)))
	assert.Equal(t, 0.1, ar.Float(ar.FromFloat(0.1)))
}

func TestParseRat(t *testing.T) {
	v, err := ParseRat("3/4")
	require.NoError(t, err)
	assert.Equal(t, "3/4", v.String())

	v, err = ParseRat("-inf")
	require.NoError(t, err)
	assert.True(t, v.IsInf(-1))

	_, err = ParseRat("three quarters")
	assert.Error(t, err)
}

func TestInterval_Arithmetic(t *testing.T) {
	ar := Interval{}
	a := Bounds{Lo: 0.2, Hi: 0.4}
	b := Bounds{Lo: 0.5, Hi: 0.5}

	sum := ar.Add(a, b)
	assert.InDelta(t, 0.7, sum.Lo, 1e-15)
	assert.InDelta(t, 0.9, sum.Hi, 1e-15)

	prod := ar.Mul(a, b)
	assert.InDelta(t, 0.1, prod.Lo, 1e-15)
	assert.InDelta(t, 0.2, prod.Hi, 1e-15)

	neg := ar.Mul(Bounds{Lo: -1, Hi: 2}, Bounds{Lo: 3, Hi: 4})
	assert.Equal(t, Bounds{Lo: -4, Hi: 8}, neg)

	assert.Equal(t, Bounds{Lo: 0.5, Hi: 0.5}, ar.Max(a, b))
	assert.Equal(t, Bounds{Lo: 0.2, Hi: 0.4}, ar.Min(a, b))
	assert.True(t, ar.Gt(b, a))
	assert.True(t, ar.Gt(Bounds{Lo: 0.2, Hi: 0.5}, a))
	assert.InDelta(t, 0.3, ar.Distance(a, b), 1e-15)
	assert.Equal(t, Bounds{}, ar.Mul(Bounds{}, ar.PosInf()))
	assert.InDelta(t, 0.3, ar.Float(a), 1e-15)
}

func TestInterval_RoundsOutward(t *testing.T) {
	ar := Interval{}
	contains := func(t *testing.T, b Bounds, exact *big.Rat) {
		t.Helper()
		lo, hi := new(big.Rat).SetFloat64(b.Lo), new(big.Rat).SetFloat64(b.Hi)
		assert.LessOrEqual(t, lo.Cmp(exact), 0, "lower bound %v above exact %s", b.Lo, exact.FloatString(30))
		assert.GreaterOrEqual(t, hi.Cmp(exact), 0, "upper bound %v below exact %s", b.Hi, exact.FloatString(30))
	}
	rat := func(f float64) *big.Rat { return new(big.Rat).SetFloat64(f) }

	t.Run("inexact sum", func(t *testing.T) {
		sum := ar.Add(Point(0.1), Point(0.2))
		assert.Less(t, sum.Lo, sum.Hi)
		assert.Equal(t, math.Nextafter(sum.Lo, math.Inf(1)), sum.Hi)
		contains(t, sum, new(big.Rat).Add(rat(0.1), rat(0.2)))
	})

	t.Run("inexact product", func(t *testing.T) {
		prod := ar.Mul(Point(0.1), Point(0.7))
		assert.Less(t, prod.Lo, prod.Hi)
		contains(t, prod, new(big.Rat).Mul(rat(0.1), rat(0.7)))
	})

	t.Run("exact results stay points", func(t *testing.T) {
		assert.Equal(t, Point(0.75), ar.Add(Point(0.5), Point(0.25)))
		assert.Equal(t, Point(0.125), ar.Mul(Point(0.5), Point(0.25)))
		assert.Equal(t, ar.PosInf(), ar.Add(ar.PosInf(), Point(1)))
	})

	t.Run("sweep keeps the exact value inside", func(t *testing.T) {
		// 0.3 * x + 0.1 * y summed over a few steps.
		x, y := Point(0.3), Point(0.1)
		exactX, exactY := rat(0.3), rat(0.1)
		acc, exact := ar.Zero(), new(big.Rat)
		for i := 0; i < 10; i++ {
			acc = ar.Add(ar.Mul(x, acc), y)
			exact = new(big.Rat).Add(new(big.Rat).Mul(exactX, exact), exactY)
			contains(t, acc, exact)
		}
	})
}

func TestDiff(t *testing.T) {
	ar := Float64{}
	tests := []struct {
		name      string
		criterion StopCriterion
		prev      float64
		next      float64
		want      float64
	}{
		{"absolute", Absolute, 0.5, 0.75, 0.25},
		{"relative", Relative, 0.5, 0.75, 0.5},
		{"relative from zero falls back to absolute", Relative, 0, 0.25, 0.25},
		{"no change", Relative, 0.5, 0.5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Diff[float64](ar, tt.criterion, tt.prev, tt.next), 1e-15)
		})
	}
}

func TestParseStopCriterion(t *testing.T) {
	c, err := ParseStopCriterion("RELATIVE")
	require.NoError(t, err)
	assert.Equal(t, Relative, c)

	_, err = ParseStopCriterion("euclidean")
	assert.ErrorIs(t, err, ErrUnknownCriterion)
}

func TestVector(t *testing.T) {
	v := NewVector[Rat](Rational{}, []Rat{NewRat(1, 2), NewRat(2, 1)})
	assert.Equal(t, 2, v.Len())
	assert.Equal(t, []float64{0.5, 2}, Floats(v))
	assert.Equal(t, []string{"1/2", "2"}, Strings(v))
	assert.Nil(t, Floats(nil))
}
