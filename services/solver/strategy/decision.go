// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package strategy holds schedulers and reconstructs them from converged
// values.
//
// A scheduler assigns each controlled node a Decision: either a choice
// (by offset within the node) or, for stopping objectives, Stop. Nodes that
// need no decision (stochastic nodes, targets) are Unset.
package strategy

import (
	"fmt"
	"strconv"
)

type decisionKind uint8

const (
	kindUnset decisionKind = iota
	kindStop
	kindChoice
)

// Decision is what a scheduler does at one node.
//
// The zero value is Unset.
type Decision struct {
	kind   decisionKind
	choice int32
}

// Unset is the decision of a node that needs none.
var Unset = Decision{}

// Stop returns the decision to stop and collect the stop reward.
func Stop() Decision {
	return Decision{kind: kindStop}
}

// Choice returns the decision to take choice offset c.
func Choice(c int) Decision {
	return Decision{kind: kindChoice, choice: int32(c)}
}

// IsSet reports whether d is Stop or a choice.
func (d Decision) IsSet() bool { return d.kind != kindUnset }

// IsStop reports whether d is Stop.
func (d Decision) IsStop() bool { return d.kind == kindStop }

// Choice returns the choice offset and true when d is a choice.
func (d Decision) Choice() (int, bool) {
	if d.kind != kindChoice {
		return 0, false
	}
	return int(d.choice), true
}

// String returns "unset", "stop" or the choice offset.
func (d Decision) String() string {
	switch d.kind {
	case kindStop:
		return "stop"
	case kindChoice:
		return strconv.Itoa(int(d.choice))
	default:
		return "unset"
	}
}

// ParseDecision parses the output of String.
func ParseDecision(s string) (Decision, error) {
	switch s {
	case "", "unset":
		return Unset, nil
	case "stop":
		return Stop(), nil
	}
	c, err := strconv.Atoi(s)
	if err != nil || c < 0 {
		return Unset, fmt.Errorf("parse decision %q: want \"stop\", \"unset\" or a choice offset", s)
	}
	return Choice(c), nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Decision) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Decision) UnmarshalText(text []byte) error {
	parsed, err := ParseDecision(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Raw encodings used by Scheduler storage.
const (
	rawStop  int32 = -1
	rawUnset int32 = -2
)

func (d Decision) raw() int32 {
	switch d.kind {
	case kindStop:
		return rawStop
	case kindChoice:
		return d.choice
	default:
		return rawUnset
	}
}

func fromRaw(v int32) (Decision, error) {
	switch {
	case v >= 0:
		return Decision{kind: kindChoice, choice: v}, nil
	case v == rawStop:
		return Stop(), nil
	case v == rawUnset:
		return Unset, nil
	default:
		return Unset, fmt.Errorf("invalid raw decision %d", v)
	}
}
