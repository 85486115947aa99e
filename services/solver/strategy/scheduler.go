// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package strategy

import (
	"fmt"

	"github.com/AleutianAI/AleutianSolver/services/solver/graph"
)

// Scheduler maps original nodes to decisions.
//
// Schedulers produced by solvers are not modified after they are returned;
// callers that want to edit one should Clone it first.
type Scheduler struct {
	decisions []int32
}

// NewScheduler returns a scheduler for n nodes with every decision Unset.
func NewScheduler(n int) *Scheduler {
	s := &Scheduler{decisions: make([]int32, n)}
	for i := range s.decisions {
		s.decisions[i] = rawUnset
	}
	return s
}

// NewSchedulerFrom builds a scheduler from explicit decisions.
func NewSchedulerFrom(decisions []Decision) *Scheduler {
	s := &Scheduler{decisions: make([]int32, len(decisions))}
	for i, d := range decisions {
		s.decisions[i] = d.raw()
	}
	return s
}

// SchedulerFromRaw decodes the output of Raw.
func SchedulerFromRaw(raw []int32) (*Scheduler, error) {
	for i, v := range raw {
		if _, err := fromRaw(v); err != nil {
			return nil, fmt.Errorf("node %d: %w", i, err)
		}
	}
	return &Scheduler{decisions: append([]int32(nil), raw...)}, nil
}

// Len returns the number of nodes.
func (s *Scheduler) Len() int { return len(s.decisions) }

// Decision returns the decision at node n.
func (s *Scheduler) Decision(n int) Decision {
	d, _ := fromRaw(s.decisions[n])
	return d
}

// Set assigns the decision at node n.
func (s *Scheduler) Set(n int, d Decision) {
	s.decisions[n] = d.raw()
}

// Decisions returns a copy of all decisions.
func (s *Scheduler) Decisions() []Decision {
	out := make([]Decision, len(s.decisions))
	for i := range s.decisions {
		out[i] = s.Decision(i)
	}
	return out
}

// Raw returns a copy of the compact encoding: choice offsets as themselves,
// -1 for Stop and -2 for Unset.
func (s *Scheduler) Raw() []int32 {
	return append([]int32(nil), s.decisions...)
}

// Clone returns an independent copy.
func (s *Scheduler) Clone() *Scheduler {
	return &Scheduler{decisions: s.Raw()}
}

// Complete reports the first node of g that has choices but no decision,
// or -1 when every such node has one. Stochastic nodes are ignored.
func (s *Scheduler) Complete(g graph.Graph) int {
	for n := 0; n < g.NumNodes() && n < len(s.decisions); n++ {
		if g.Player(n).Controlled() && s.decisions[n] == rawUnset {
			return n
		}
	}
	return -1
}

// CheckAgainst verifies that s covers g and that every choice offset exists.
func (s *Scheduler) CheckAgainst(g graph.Graph) error {
	if len(s.decisions) != g.NumNodes() {
		return fmt.Errorf("%w: scheduler has %d nodes, graph has %d", ErrSchedulerMismatch, len(s.decisions), g.NumNodes())
	}
	for n, v := range s.decisions {
		if v >= 0 && int(v) >= g.NumChoices(n) {
			return fmt.Errorf("%w: node %d choice %d of %d", ErrSchedulerMismatch, n, v, g.NumChoices(n))
		}
	}
	return nil
}
