// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package modelspec reads model documents: a graph, its targets, rewards
// and an optional fixed scheduler, written as YAML or JSON.
//
//	version: v1
//	name: dice
//	targets: [2]
//	nodes:
//	  - player: max
//	    stop_reward: 0
//	    choices:
//	      - reward: 1
//	        edges: [{to: 1, weight: 0.5}, {to: 2, weight: 0.5}]
//	  - player: stochastic
//	    choices:
//	      - edges: [{to: 0, weight: 1}]
//	  - player: max
//	    choices:
//	      - edges: [{to: 2, weight: 1}]
//
// Transition rewards are numbered in node order, then choice order, which
// matches graph.Graph.ChoiceIndex on the built graph.
package modelspec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/soniakeys/bits"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianSolver/services/solver/graph"
	"github.com/AleutianAI/AleutianSolver/services/solver/objective"
	"github.com/AleutianAI/AleutianSolver/services/solver/strategy"
)

// SupportedMajor is the document major version this package reads.
const SupportedMajor = "v1"

// ErrInvalidModel wraps every document error.
var ErrInvalidModel = errors.New("invalid model")

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("modelversion", func(fl validator.FieldLevel) bool {
		v := fl.Field().String()
		return semver.IsValid(v) && semver.Major(v) == SupportedMajor
	})
	_ = validate.RegisterValidation("player", func(fl validator.FieldLevel) bool {
		_, err := graph.ParsePlayer(fl.Field().String())
		return err == nil
	})
	_ = validate.RegisterValidation("decision", func(fl validator.FieldLevel) bool {
		_, err := strategy.ParseDecision(fl.Field().String())
		return err == nil
	})
}

// Document is a parsed model.
type Document struct {
	Version string `json:"version" yaml:"version" validate:"required,modelversion"`
	Name    string `json:"name,omitempty" yaml:"name,omitempty" validate:"max=128"`
	Targets []int  `json:"targets,omitempty" yaml:"targets,omitempty" validate:"dive,gte=0"`
	Nodes   []Node `json:"nodes" yaml:"nodes" validate:"required,min=1,dive"`
}

// Node is one graph node.
type Node struct {
	Label      string   `json:"label,omitempty" yaml:"label,omitempty"`
	Player     string   `json:"player" yaml:"player" validate:"required,player"`
	StopReward float64  `json:"stop_reward,omitempty" yaml:"stop_reward,omitempty"`
	Decision   string   `json:"decision,omitempty" yaml:"decision,omitempty" validate:"omitempty,decision"`
	Choices    []Choice `json:"choices" yaml:"choices" validate:"required,min=1,dive"`
}

// Choice is one action of a node.
type Choice struct {
	Reward float64      `json:"reward,omitempty" yaml:"reward,omitempty"`
	Edges  []graph.Edge `json:"edges" yaml:"edges" validate:"required,min=1"`
}

// Parse decodes a YAML or JSON document and validates it. Unknown fields
// are rejected.
func Parse(data []byte) (*Document, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidModel)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidModel, err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ReadFile parses the document at path.
func ReadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Validate checks struct tags and node references. Distribution and
// deadlock checks happen in Graph.
func (d *Document) Validate() error {
	if err := validate.Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidModel, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidModel, err)
	}

	n := len(d.Nodes)
	for _, t := range d.Targets {
		if t >= n {
			return fmt.Errorf("%w: target %d out of range [0, %d)", ErrInvalidModel, t, n)
		}
	}
	for i, node := range d.Nodes {
		for c, choice := range node.Choices {
			for _, e := range choice.Edges {
				if e.To < 0 || e.To >= n {
					return fmt.Errorf("%w: node %d choice %d: edge to %d out of range", ErrInvalidModel, i, c, e.To)
				}
			}
		}
		if dec, _ := strategy.ParseDecision(node.Decision); dec.IsSet() {
			if c, ok := dec.Choice(); ok && c >= len(node.Choices) {
				return fmt.Errorf("%w: node %d: decision %d but %d choices", ErrInvalidModel, i, c, len(node.Choices))
			}
		}
	}
	return nil
}

// Graph builds the explicit graph.
func (d *Document) Graph() (*graph.Explicit, error) {
	b := graph.NewBuilder(graph.WithExpectedNodes(len(d.Nodes)))
	for _, node := range d.Nodes {
		p, err := graph.ParsePlayer(node.Player)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidModel, err)
		}
		b.AddNode(p)
	}
	for i, node := range d.Nodes {
		for _, choice := range node.Choices {
			if _, err := b.AddChoice(i, choice.Edges...); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidModel, err)
			}
		}
	}
	g, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidModel, err)
	}
	return g, nil
}

// TargetSet returns the targets as a bitset over the document's nodes.
func (d *Document) TargetSet() bits.Bits {
	target := bits.New(len(d.Nodes))
	for _, t := range d.Targets {
		target.SetBit(t, 1)
	}
	return target
}

// Rewards returns per-choice transition rewards and per-node stop rewards.
func (d *Document) Rewards() (transition, stop []float64) {
	stop = make([]float64, len(d.Nodes))
	for i, node := range d.Nodes {
		stop[i] = node.StopReward
		for _, choice := range node.Choices {
			transition = append(transition, choice.Reward)
		}
	}
	return transition, stop
}

// Scheduler returns the fixed scheduler, or nil when no node sets a
// decision.
func (d *Document) Scheduler() *strategy.Scheduler {
	decisions := make([]strategy.Decision, len(d.Nodes))
	set := false
	for i, node := range d.Nodes {
		dec, err := strategy.ParseDecision(node.Decision)
		if err != nil {
			continue
		}
		decisions[i] = dec
		set = set || dec.IsSet()
	}
	if !set {
		return nil
	}
	return strategy.NewSchedulerFrom(decisions)
}

// Objective builds the objective of the given kind over a freshly built
// graph.
func (d *Document) Objective(kind objective.Kind, computeScheduler bool) (objective.Objective, error) {
	g, err := d.Graph()
	if err != nil {
		return nil, err
	}
	transition, stop := d.Rewards()

	switch kind {
	case objective.KindReachability:
		if len(d.Targets) == 0 {
			return nil, fmt.Errorf("%w: reachability needs at least one target", ErrInvalidModel)
		}
		return objective.NewUnboundedReachabilityGame(g, d.TargetSet(), computeScheduler), nil
	case objective.KindWeighted:
		return objective.NewMultiObjectiveWeighted(g, transition, stop), nil
	case objective.KindScheduled:
		sched := d.Scheduler()
		if sched == nil {
			return nil, fmt.Errorf("%w: scheduled objective needs node decisions", ErrInvalidModel)
		}
		return objective.NewMultiObjectiveScheduled(g, sched, transition, stop), nil
	default:
		return nil, fmt.Errorf("%w: unknown objective %q", ErrInvalidModel, kind)
	}
}
