// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianSolver/services/solver/artifact"
	"github.com/AleutianAI/AleutianSolver/services/solver/modelspec"
	"github.com/AleutianAI/AleutianSolver/services/solver/sparse"
)

// newCompileCmd writes the compact layout of a model to the artifact store.
//
// # Examples
//
//	solver compile game.yaml                         # ./artifacts/game.spg
//	solver compile game.yaml --dest gs://bucket/spg  # upload to Cloud Storage
//	solver compile game.yaml --no-targets            # full graph, model order
func newCompileCmd(a *app) *cobra.Command {
	var (
		name      string
		dest      string
		noTargets bool
	)
	cmd := &cobra.Command{
		Use:   "compile MODEL",
		Short: "Compile a model to a binary compact graph artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			doc, err := modelspec.ReadFile(args[0])
			if err != nil {
				return err
			}
			g, err := doc.Graph()
			if err != nil {
				return err
			}

			opts := []sparse.PartitionOption{sparse.WithLimits(a.cfg.Solver.MaxStates, a.cfg.Solver.MaxEdges)}
			if len(doc.Targets) > 0 && !noTargets {
				opts = append(opts, sparse.WithTargets(doc.TargetSet()))
			}
			p, err := sparse.Compile(ctx, g, opts...)
			if err != nil {
				return err
			}

			if name == "" {
				name = artifactName(args[0])
			}
			artifacts, err := artifact.Open(ctx, a.artifactLocation(dest), a.cfg.Export.CredentialsFile)
			if err != nil {
				return err
			}
			defer artifacts.Close()

			location, err := artifacts.Put(ctx, name, p)
			if err != nil {
				return err
			}
			return a.renderPartition(location, p)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Artifact name (default: the model file's base name)")
	cmd.Flags().StringVar(&dest, "dest", "", "Local directory or gs://bucket/prefix (default: export.dir)")
	cmd.Flags().BoolVar(&noTargets, "no-targets", false, "Keep every node and skip target absorption")
	return cmd
}

func newInspectCmd(a *app) *cobra.Command {
	var dest string
	cmd := &cobra.Command{
		Use:   "inspect NAME",
		Short: "Load a compiled artifact and print its layout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			artifacts, err := artifact.Open(ctx, a.artifactLocation(dest), a.cfg.Export.CredentialsFile)
			if err != nil {
				return err
			}
			defer artifacts.Close()

			p, err := artifacts.Get(ctx, args[0])
			if errors.Is(err, artifact.ErrNotFound) {
				return fmt.Errorf("no artifact named %q: %w", args[0], err)
			}
			if err != nil {
				return err
			}
			if err := p.Validate(); err != nil {
				return err
			}
			return a.renderPartition(args[0], p)
		},
	}
	cmd.Flags().StringVar(&dest, "dest", "", "Local directory or gs://bucket/prefix (default: export.dir)")
	return cmd
}

func (a *app) artifactLocation(flag string) string {
	switch {
	case flag != "":
		return flag
	case a.cfg.Export.Dir != "":
		return expandHome(a.cfg.Export.Dir)
	default:
		return "artifacts"
	}
}

func artifactName(modelPath string) string {
	base := filepath.Base(modelPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

type partitionSummary struct {
	Location   string `json:"location"`
	InputNodes int    `json:"input_nodes"`
	States     int    `json:"states"`
	Choices    int    `json:"choices"`
	Edges      int    `json:"edges"`
	MaxEnd     int    `json:"max_end"`
	MinEnd     int    `json:"min_end"`
	Ordered    bool   `json:"ordered"`
}

func (a *app) renderPartition(location string, p *sparse.Partition) error {
	s := partitionSummary{
		Location:   location,
		InputNodes: p.NumInputNodes(),
		States:     p.NumStates(),
		Choices:    p.NumChoices(),
		Edges:      p.NumEdges(),
		MaxEnd:     p.MaxEnd,
		MinEnd:     p.MinEnd,
		Ordered:    p.Ordered,
	}
	if a.jsonOutput {
		return json.NewEncoder(a.stdout).Encode(s)
	}
	a.printer.Title("compact graph")
	a.printer.KeyValue(
		[2]string{"location", s.Location},
		[2]string{"input nodes", strconv.Itoa(s.InputNodes)},
		[2]string{"states", strconv.Itoa(s.States)},
		[2]string{"choices", strconv.Itoa(s.Choices)},
		[2]string{"edges", strconv.Itoa(s.Edges)},
		[2]string{"max | min | stochastic", fmt.Sprintf("[0,%d) [%d,%d) [%d,%d)", s.MaxEnd, s.MaxEnd, s.MinEnd, s.MinEnd, s.States)},
	)
	return nil
}
