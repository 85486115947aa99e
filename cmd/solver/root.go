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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianSolver/pkg/logging"
	"github.com/AleutianAI/AleutianSolver/pkg/ux"
	"github.com/AleutianAI/AleutianSolver/services/solver"
	"github.com/AleutianAI/AleutianSolver/services/solver/config"
	"github.com/AleutianAI/AleutianSolver/services/solver/store"
	"github.com/AleutianAI/AleutianSolver/services/solver/telemetry"
)

const version = "0.1.0"

// app holds what every command shares once the root pre-run has loaded the
// configuration.
type app struct {
	configPath string
	logLevel   string
	jsonOutput bool

	stdout io.Writer
	stderr io.Writer

	cfg       config.Config
	logger    *logging.Logger
	printer   *ux.Printer
	influx    *telemetry.InfluxSink
	meter     *telemetry.MeterSink
	telemetry func(context.Context) error
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "solver",
		Short: "Iterative value solver for stochastic games and MDPs",
		Long: `solver computes optimal reachability probabilities and reward values
for turn-based stochastic games and Markov decision processes described
by YAML or JSON model documents.`,
		Version:            version,
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE:  func(cmd *cobra.Command, _ []string) error { return a.setup(cmd.Context()) },
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error { return a.teardown(cmd.Context()) },
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", defaultConfigPath(), "Path to the configuration file")
	flags.StringVar(&a.logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")
	flags.BoolVar(&a.jsonOutput, "json", false, "Write machine-readable JSON to stdout")

	root.AddCommand(
		newReachCmd(a),
		newWeightedCmd(a),
		newScheduledCmd(a),
		newCompileCmd(a),
		newInspectCmd(a),
		newServeCmd(a),
		newWatchCmd(a),
	)
	return root
}

func defaultConfigPath() string {
	if p := os.Getenv("SOLVER_CONFIG"); p != "" {
		return p
	}
	return "solver.yaml"
}

// setup loads configuration, then installs logging and telemetry.
func (a *app) setup(ctx context.Context) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		if _, err := logging.ParseLevel(a.logLevel); err != nil {
			return err
		}
		cfg.Logging.Level = a.logLevel
	}
	a.cfg = cfg

	lc := cfg.LoggerConfig()
	lc.Output = a.stderr
	logger, err := logging.New(lc)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	logger.Install()
	a.logger = logger

	mode := ux.ModePlain
	if f, ok := a.stdout.(*os.File); ok {
		mode = ux.DetectMode(f)
	}
	if a.jsonOutput {
		mode = ux.ModeMachine
	}
	a.printer = ux.NewPrinter(a.stdout, a.stderr, mode)

	if ctx == nil {
		ctx = context.Background()
	}
	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		Exporter:       cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       true,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	a.telemetry = shutdown

	if a.meter, err = telemetry.NewMeterSink(); err != nil {
		return err
	}
	if cfg.Influx.URL != "" {
		a.influx, err = telemetry.NewInfluxSink(telemetry.InfluxConfig{
			URL:    cfg.Influx.URL,
			Token:  cfg.Influx.Token,
			Org:    cfg.Influx.Org,
			Bucket: cfg.Influx.Bucket,
		})
		if err != nil {
			return err
		}
	}

	slog.Debug("configuration loaded",
		slog.String("config", a.configPath),
		slog.String("method", cfg.Solver.Method),
		slog.String("numeric", cfg.Solver.Numeric))
	return nil
}

func (a *app) teardown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var errs []error
	if a.influx != nil {
		a.influx.Close()
	}
	if a.telemetry != nil {
		errs = append(errs, a.telemetry(ctx))
	}
	if a.logger != nil {
		errs = append(errs, a.logger.Close())
	}
	return errors.Join(errs...)
}

// solverOptions converts the solver section and attaches the configured
// progress sinks.
func (a *app) solverOptions() (solver.Options, error) {
	opts, err := a.cfg.SolverOptions()
	if err != nil {
		return opts, err
	}
	if a.meter != nil {
		opts.Sinks = append(opts.Sinks, a.meter)
	}
	if a.influx != nil {
		opts.Sinks = append(opts.Sinks, a.influx)
	}
	return opts, nil
}

// openStore opens the configured result store.
func (a *app) openStore() (*store.Store, error) {
	sc := store.DefaultConfig()
	sc.Path = expandHome(a.cfg.Store.Path)
	sc.InMemory = a.cfg.Store.InMemory
	sc.TTL = a.cfg.Store.TTL
	return store.Open(sc)
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
