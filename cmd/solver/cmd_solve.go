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
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianSolver/pkg/ux"
	"github.com/AleutianAI/AleutianSolver/services/solver"
	"github.com/AleutianAI/AleutianSolver/services/solver/iterate"
	"github.com/AleutianAI/AleutianSolver/services/solver/modelspec"
	"github.com/AleutianAI/AleutianSolver/services/solver/numeric"
	"github.com/AleutianAI/AleutianSolver/services/solver/objective"
	"github.com/AleutianAI/AleutianSolver/services/solver/store"
	"github.com/AleutianAI/AleutianSolver/services/solver/strategy"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

// solveFlags override the configured solver options for one command.
type solveFlags struct {
	method        string
	criterion     string
	numeric       string
	tolerance     float64
	maxIterations int
	workers       int
	scheduler     bool
	save          bool
	progress      bool
}

func (f *solveFlags) register(cmd *cobra.Command, withScheduler bool) {
	flags := cmd.Flags()
	flags.StringVarP(&f.method, "method", "m", "", "Iteration method (jacobi, gauss-seidel)")
	flags.StringVar(&f.criterion, "stop-criterion", "", "Convergence criterion (absolute, relative)")
	flags.StringVarP(&f.numeric, "numeric", "n", "", "Scalar kind (double, rational, interval)")
	flags.Float64VarP(&f.tolerance, "tolerance", "t", 0, "Convergence tolerance")
	flags.IntVar(&f.maxIterations, "max-iterations", 0, "Iteration budget")
	flags.IntVarP(&f.workers, "workers", "w", 0, "Parallel Jacobi workers")
	flags.BoolVar(&f.save, "save", false, "Store the result in the result store")
	flags.BoolVar(&f.progress, "progress", false, "Show per-sweep progress on stderr")
	if withScheduler {
		flags.BoolVarP(&f.scheduler, "scheduler", "s", false, "Also compute an optimal scheduler")
	}
}

func (f *solveFlags) apply(opts *solver.Options) error {
	if f.method != "" {
		m, err := iterate.ParseMethod(f.method)
		if err != nil {
			return err
		}
		opts.Iterate.Method = m
	}
	if f.criterion != "" {
		c, err := numeric.ParseStopCriterion(f.criterion)
		if err != nil {
			return err
		}
		opts.Iterate.StopCriterion = c
	}
	if f.numeric != "" {
		k, err := numeric.ParseKind(f.numeric)
		if err != nil {
			return err
		}
		opts.Numeric = k
	}
	if f.tolerance > 0 {
		opts.Iterate.Tolerance = f.tolerance
	}
	if f.maxIterations > 0 {
		opts.Iterate.MaxIterations = f.maxIterations
	}
	if f.workers > 0 {
		opts.Iterate.Workers = f.workers
	}
	return opts.Validate()
}

// =============================================================================
// COMMAND DEFINITIONS
// =============================================================================

func newReachCmd(a *app) *cobra.Command {
	return newSolveCmd(a, objective.KindReachability, &cobra.Command{
		Use:   "reach MODEL",
		Short: "Maximal probability of reaching the model's targets",
		Example: `  solver reach game.yaml
  solver reach game.yaml --scheduler --numeric rational
  solver reach game.yaml --json | jq .floats`,
	}, true)
}

func newWeightedCmd(a *app) *cobra.Command {
	return newSolveCmd(a, objective.KindWeighted, &cobra.Command{
		Use:   "weighted MODEL",
		Short: "Optimal stop-or-continue reward values",
	}, false)
}

func newScheduledCmd(a *app) *cobra.Command {
	return newSolveCmd(a, objective.KindScheduled, &cobra.Command{
		Use:   "scheduled MODEL",
		Short: "Reward values under the model's fixed decisions",
	}, false)
}

func newSolveCmd(a *app, kind objective.Kind, cmd *cobra.Command, withScheduler bool) *cobra.Command {
	var flags solveFlags
	cmd.Args = cobra.ExactArgs(1)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		doc, rec, err := a.solveModel(cmd.Context(), kind, args[0], &flags)
		if doc == nil {
			return err
		}
		if renderErr := a.render(doc, rec); renderErr != nil {
			return renderErr
		}
		return err
	}
	flags.register(cmd, withScheduler)
	return cmd
}

// =============================================================================
// SOLVING
// =============================================================================

type resultHolder interface {
	Result() numeric.Values
}

type schedulerHolder interface {
	Scheduler() *strategy.Scheduler
}

// solveModel reads and solves one model file. The document is nil only when
// the file could not be read or parsed; otherwise the record describes the
// solve, including a failed one.
func (a *app) solveModel(ctx context.Context, kind objective.Kind, path string, flags *solveFlags) (*modelspec.Document, store.Record, error) {
	doc, err := modelspec.ReadFile(path)
	if err != nil {
		return nil, store.Record{}, err
	}
	opts, err := a.solverOptions()
	if err != nil {
		return nil, store.Record{}, err
	}
	if err := flags.apply(&opts); err != nil {
		return nil, store.Record{}, err
	}
	obj, err := doc.Objective(kind, flags.scheduler)
	if err != nil {
		return nil, store.Record{}, err
	}
	registry, err := solver.NewDefaultRegistry(opts)
	if err != nil {
		return nil, store.Record{}, err
	}
	selected, err := registry.Select(obj)
	if err != nil {
		return nil, store.Record{}, fmt.Errorf("%w for %s objective", err, kind)
	}

	if flags.progress && a.printer.Mode() != ux.ModeMachine {
		ctx = solver.WithProgressSink(ctx, a.progressSink(opts.Iterate.MaxIterations))
	}

	slog.Info("solving model",
		slog.String("path", path),
		slog.String("objective", string(kind)),
		slog.String("solver", selected.Identifier()))
	report, solveErr := solver.Run(ctx, selected, obj)
	if flags.progress && a.printer.Mode() != ux.ModeMachine {
		fmt.Fprintln(a.stderr)
	}

	var values numeric.Values
	var sched *strategy.Scheduler
	if solveErr == nil {
		if h, ok := obj.(resultHolder); ok {
			values = h.Result()
		}
		if h, ok := obj.(schedulerHolder); ok {
			sched = h.Scheduler()
		}
	}
	rec := store.NewRecord(string(kind), doc.Name, report, values, sched, solveErr)

	if flags.save && rec.ID != "" {
		if err := a.save(ctx, rec); err != nil {
			slog.Warn("failed to store solve result",
				slog.String("solve_id", rec.ID),
				slog.String("error", err.Error()))
		}
	}
	return doc, rec, solveErr
}

func (a *app) save(ctx context.Context, rec store.Record) error {
	st, err := a.openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	return st.Put(context.WithoutCancel(ctx), rec)
}

func (a *app) progressSink(maxIterations int) solver.ProgressSink {
	return solver.ProgressFunc(func(_ context.Context, p solver.Progress) {
		fmt.Fprintf(a.stderr, "\r%s distance %.3g", a.printer.ProgressBar(p.Iteration, maxIterations, 30), p.Distance)
	})
}

// =============================================================================
// RENDERING
// =============================================================================

// render prints a solve. JSON output is the stored record, one per line.
func (a *app) render(doc *modelspec.Document, rec store.Record) error {
	if a.jsonOutput {
		return json.NewEncoder(a.stdout).Encode(rec)
	}

	p := a.printer
	title := rec.Objective
	if doc.Name != "" {
		title += ": " + doc.Name
	}
	p.Title(title)

	r := rec.Report
	p.KeyValue(
		[2]string{"id", rec.ID},
		[2]string{"solver", r.Solver},
		[2]string{"numeric", r.Numeric.String()},
		[2]string{"method", r.Method.String()},
		[2]string{"states", fmt.Sprintf("%d of %d nodes", r.States, r.Nodes)},
		[2]string{"iterations", strconv.Itoa(r.Iterations)},
		[2]string{"distance", strconv.FormatFloat(r.Distance, 'g', 4, 64)},
		[2]string{"duration", r.Duration.String()},
	)
	if rec.Error != "" {
		return nil
	}

	headers := []string{"node", "label", "player", "value"}
	if len(rec.Scheduler) > 0 {
		headers = append(headers, "decision")
	}
	rows := make([][]string, len(rec.Values))
	for i, v := range rec.Values {
		row := []string{strconv.Itoa(i), "", "", v}
		if i < len(doc.Nodes) {
			row[1] = doc.Nodes[i].Label
			row[2] = doc.Nodes[i].Player
		}
		if i < len(rec.Scheduler) {
			row = append(row, rec.Scheduler[i].String())
		}
		rows[i] = row
	}
	p.Table(headers, rows)
	p.Success(fmt.Sprintf("converged after %d iterations", r.Iterations))
	return nil
}
