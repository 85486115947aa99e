// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianSolver/pkg/logging"
	"github.com/AleutianAI/AleutianSolver/services/solver/iterate"
	"github.com/AleutianAI/AleutianSolver/services/solver/numeric"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_Precedence(t *testing.T) {
	path := writeFile(t, "solver.yaml", `
solver:
  method: gauss-seidel
  tolerance: 1e-8
  numeric: rational
server:
  solve_timeout: 30s
`)
	t.Setenv("SOLVER_TOLERANCE", "1e-9")
	t.Setenv("SOLVER_WORKERS", "4")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "gauss-seidel", cfg.Solver.Method, "file overrides default")
	assert.Equal(t, 1e-9, cfg.Solver.Tolerance, "env overrides file")
	assert.Equal(t, 4, cfg.Solver.Workers)
	assert.Equal(t, 30*time.Second, cfg.Server.SolveTimeout)
	assert.Equal(t, "absolute", cfg.Solver.StopCriterion, "default kept")
}

func TestLoad_JSONFile(t *testing.T) {
	path := writeFile(t, "solver.json", `{"solver": {"stop_criterion": "relative", "max_iterations": 50}}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "relative", cfg.Solver.StopCriterion)
	assert.Equal(t, 50, cfg.Solver.MaxIterations)
}

func TestLoad_BadEnv(t *testing.T) {
	t.Setenv("SOLVER_MAX_ITERATIONS", "lots")
	_, err := Load("")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"method", func(c *Config) { c.Solver.Method = "newton" }},
		{"numeric", func(c *Config) { c.Solver.Numeric = "complex" }},
		{"criterion", func(c *Config) { c.Solver.StopCriterion = "sometimes" }},
		{"tolerance", func(c *Config) { c.Solver.Tolerance = 0 }},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"exporter", func(c *Config) { c.Telemetry.Exporter = "carrier-pigeon" }},
		{"otlp needs endpoint", func(c *Config) { c.Telemetry.Exporter = "otlp" }},
		{"store path", func(c *Config) { c.Store.Path = "" }},
		{"influx needs org", func(c *Config) { c.Influx.URL = "http://localhost:8086"; c.Influx.Bucket = "b" }},
		{"sample rate", func(c *Config) { c.Telemetry.SampleRate = 2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}

	cfg := Default()
	cfg.Store.Path = ""
	cfg.Store.InMemory = true
	assert.NoError(t, cfg.Validate(), "in-memory store needs no path")
}

func TestSolverOptions(t *testing.T) {
	cfg := Default()
	cfg.Solver.Method = "gs"
	cfg.Solver.Numeric = "interval"
	cfg.Solver.StopCriterion = "relative"
	cfg.Solver.VerifyScheduler = true

	opts, err := cfg.SolverOptions()
	require.NoError(t, err)
	assert.Equal(t, iterate.GaussSeidel, opts.Iterate.Method)
	assert.Equal(t, numeric.KindInterval, opts.Numeric)
	assert.Equal(t, numeric.Relative, opts.Iterate.StopCriterion)
	assert.True(t, opts.VerifyScheduler)
	assert.NoError(t, opts.Validate())
}

func TestLoggerConfig(t *testing.T) {
	cfg := Default()
	cfg.Logging.Level = "debug"
	cfg.Logging.Format = "json"

	lc := cfg.LoggerConfig()
	assert.Equal(t, logging.LevelDebug, lc.Level)
	assert.Equal(t, logging.FormatJSON, lc.Format)
	assert.Equal(t, "solver", lc.Service)
}
