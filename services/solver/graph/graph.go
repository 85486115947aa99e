// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph defines the explicit-state game graph that solvers consume.
//
// A graph is a set of nodes. Each node belongs to one player (maximizer,
// minimizer, or the stochastic environment) and offers one or more choices.
// Each choice is a probability distribution over successor nodes. Stochastic
// nodes offer exactly one choice. An MDP is a graph without minimizer nodes; a
// DTMC is a graph of stochastic nodes only.
//
// Nodes, choices and edges are laid out in flat arrays (compressed sparse
// rows, three levels deep). Every choice also has a global index, its
// position in the flat choice array, which is how per-choice data such as
// transition rewards is addressed.
//
// # Thread Safety
//
// An Explicit graph is immutable after Build and safe for concurrent reads.
// ComputePredecessors is idempotent and may be called concurrently.
package graph

import (
	"fmt"
	"strings"
)

// Player identifies the controller of a node.
type Player uint8

const (
	// PlayerMax maximizes the objective value.
	PlayerMax Player = iota

	// PlayerMin minimizes the objective value.
	PlayerMin

	// PlayerStochastic resolves its single choice by probability.
	PlayerStochastic
)

// String returns "max", "min" or "stochastic".
func (p Player) String() string {
	switch p {
	case PlayerMax:
		return "max"
	case PlayerMin:
		return "min"
	case PlayerStochastic:
		return "stochastic"
	default:
		return fmt.Sprintf("Player(%d)", uint8(p))
	}
}

// Controlled reports whether the node's choice is made by a player rather
// than by chance.
func (p Player) Controlled() bool {
	return p == PlayerMax || p == PlayerMin
}

// ParsePlayer parses a player name.
func ParsePlayer(s string) (Player, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "max", "maximizer", "player1":
		return PlayerMax, nil
	case "min", "minimizer", "player2":
		return PlayerMin, nil
	case "stochastic", "random", "distribution":
		return PlayerStochastic, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownPlayer, s)
	}
}

// Graph is the read interface solvers use over an original graph.
type Graph interface {
	// NumNodes returns the number of nodes.
	NumNodes() int

	// NumChoicesTotal returns the number of choices across all nodes.
	NumChoicesTotal() int

	// Player returns the controller of node n.
	Player(n int) Player

	// NumChoices returns the number of choices of node n.
	NumChoices(n int) int

	// ChoiceIndex returns the global index of choice c of node n.
	ChoiceIndex(n, c int) int

	// NumSuccessors returns the number of edges of choice c of node n.
	NumSuccessors(n, c int) int

	// Successor returns the target and weight of edge i of choice c of node n.
	Successor(n, c, i int) (target int, weight float64)

	// ComputePredecessors builds the reverse index. It is idempotent.
	ComputePredecessors()

	// NumPredecessors returns the number of (node, choice) pairs with an
	// edge into n. ComputePredecessors must have been called.
	NumPredecessors(n int) int

	// Predecessor returns the i-th (node, choice) pair with an edge into n.
	Predecessor(n, i int) (node, choice int)
}

// HasPlayer reports whether any node of g is controlled by p.
func HasPlayer(g Graph, p Player) bool {
	for n := 0; n < g.NumNodes(); n++ {
		if g.Player(n) == p {
			return true
		}
	}
	return false
}

// Edge is a weighted edge to a successor node.
type Edge struct {
	To     int     `json:"to" yaml:"to"`
	Weight float64 `json:"weight" yaml:"weight"`
}
