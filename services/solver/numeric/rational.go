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
	"math/big"
)

// Rat is an exact rational extended with ±infinity.
//
// The zero value is 0. A Rat never aliases the big.Rat of another Rat: all
// operations allocate, so Rats can be copied freely.
type Rat struct {
	r   *big.Rat
	inf int8 // -1, 0 or +1
}

// NewRat returns the rational a/b. b must be nonzero.
func NewRat(a, b int64) Rat {
	return Rat{r: big.NewRat(a, b)}
}

// ParseRat parses "p/q", a decimal, "inf" or "-inf".
func ParseRat(s string) (Rat, error) {
	switch s {
	case "inf", "+inf", "Infinity":
		return Rat{inf: 1}, nil
	case "-inf", "-Infinity":
		return Rat{inf: -1}, nil
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return Rat{}, fmt.Errorf("parse rational %q", s)
	}
	return Rat{r: r}, nil
}

// IsInf reports whether v is +inf (sign > 0), -inf (sign < 0) or either (sign == 0).
func (v Rat) IsInf(sign int) bool {
	switch {
	case sign > 0:
		return v.inf > 0
	case sign < 0:
		return v.inf < 0
	default:
		return v.inf != 0
	}
}

func (v Rat) rat() *big.Rat {
	if v.r == nil {
		return new(big.Rat)
	}
	return v.r
}

// Cmp compares v and w, returning -1, 0 or +1.
func (v Rat) Cmp(w Rat) int {
	if v.inf != 0 || w.inf != 0 {
		switch {
		case v.inf == w.inf:
			return 0
		case v.inf > w.inf:
			return 1
		default:
			return -1
		}
	}
	return v.rat().Cmp(w.rat())
}

// String renders the value as p/q, or an integer when q is 1.
func (v Rat) String() string {
	switch {
	case v.inf > 0:
		return "inf"
	case v.inf < 0:
		return "-inf"
	default:
		return v.rat().RatString()
	}
}

// Rational is Arithmetic over Rat.
type Rational struct{}

var _ Arithmetic[Rat] = Rational{}

func (Rational) Kind() Kind { return KindRational }
func (Rational) Zero() Rat { return Rat{} }
func (Rational) One() Rat { return Rat{r: big.NewRat(1, 1)} }
func (Rational) NegInf() Rat { return Rat{inf: -1} }
func (Rational) PosInf() Rat { return Rat{inf: 1} }
func (Rational) IsZero(v Rat) bool {
	return v.inf == 0 && v.rat().Sign() == 0
}

// FromFloat converts f exactly; the binary expansion of f is preserved.
func (Rational) FromFloat(f float64) Rat {
	switch {
	case math.IsInf(f, 1):
		return Rat{inf: 1}
	case math.IsInf(f, -1):
		return Rat{inf: -1}
	case math.IsNaN(f):
		return Rat{}
	}
	return Rat{r: new(big.Rat).SetFloat64(f)}
}

func (Rational) Float(v Rat) float64 {
	if v.inf != 0 {
		return math.Inf(int(v.inf))
	}
	f, _ := v.rat().Float64()
	return f
}

// Add sums a and b. inf + (-inf) yields the left operand's infinity.
func (Rational) Add(a, b Rat) Rat {
	if a.inf != 0 {
		return Rat{inf: a.inf}
	}
	if b.inf != 0 {
		return Rat{inf: b.inf}
	}
	return Rat{r: new(big.Rat).Add(a.rat(), b.rat())}
}

// Mul multiplies a and b, with 0 * ±inf = 0.
func (ar Rational) Mul(a, b Rat) Rat {
	if ar.IsZero(a) || ar.IsZero(b) {
		return Rat{}
	}
	if a.inf != 0 || b.inf != 0 {
		return Rat{inf: int8(ar.sign(a) * ar.sign(b))}
	}
	return Rat{r: new(big.Rat).Mul(a.rat(), b.rat())}
}

func (Rational) sign(v Rat) int {
	if v.inf != 0 {
		return int(v.inf)
	}
	return v.rat().Sign()
}

func (Rational) Max(a, b Rat) Rat {
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}

func (Rational) Min(a, b Rat) Rat {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}

func (Rational) Gt(a, b Rat) bool { return a.Cmp(b) > 0 }

func (ar Rational) Distance(a, b Rat) float64 {
	if a.inf != 0 || b.inf != 0 {
		if a.inf == b.inf {
			return 0
		}
		return math.Inf(1)
	}
	d := new(big.Rat).Sub(a.rat(), b.rat())
	f, _ := d.Abs(d).Float64()
	return f
}

func (ar Rational) Norm(v Rat) float64 {
	return math.Abs(ar.Float(v))
}

func (Rational) Format(v Rat) string { return v.String() }
