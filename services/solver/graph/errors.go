// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"errors"
	"fmt"
)

// Sentinel errors for graph construction and validation.
var (
	// ErrNodeOutOfRange indicates an edge or lookup referenced a node that
	// does not exist.
	ErrNodeOutOfRange = errors.New("node out of range")

	// ErrDeadlock indicates a controlled node has no choices.
	ErrDeadlock = errors.New("controlled node has no choices")

	// ErrInvalidDistribution indicates a choice whose weights are not a
	// probability distribution.
	ErrInvalidDistribution = errors.New("choice weights do not form a distribution")

	// ErrStochasticChoices indicates a stochastic node with other than one choice.
	ErrStochasticChoices = errors.New("stochastic node must have exactly one choice")

	// ErrUnknownPlayer indicates a player name that could not be parsed.
	ErrUnknownPlayer = errors.New("unknown player")

	// ErrGraphFrozen indicates a mutation after Build.
	ErrGraphFrozen = errors.New("builder already built")
)

// ValidationError locates a validation failure within the graph.
type ValidationError struct {
	// Node is the offending node.
	Node int

	// Choice is the offending choice offset, or -1 when the node itself is at fault.
	Choice int

	// Err is the underlying sentinel.
	Err error
}

func (e *ValidationError) Error() string {
	if e.Choice < 0 {
		return fmt.Sprintf("node %d: %v", e.Node, e.Err)
	}
	return fmt.Sprintf("node %d choice %d: %v", e.Node, e.Choice, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
