// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads solver configuration.
//
// Precedence, lowest first: built-in defaults, a YAML (or JSON) file, then
// SOLVER_* environment variables. The result is validated with struct tags.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianSolver/pkg/logging"
	"github.com/AleutianAI/AleutianSolver/services/solver"
	"github.com/AleutianAI/AleutianSolver/services/solver/iterate"
	"github.com/AleutianAI/AleutianSolver/services/solver/numeric"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("method", parses(iterate.ParseMethod))
	_ = validate.RegisterValidation("numeric", parses(numeric.ParseKind))
	_ = validate.RegisterValidation("criterion", parses(numeric.ParseStopCriterion))
	_ = validate.RegisterValidation("loglevel", parses(logging.ParseLevel))
}

// parses turns a parser into a string field validator.
func parses[T any](parse func(string) (T, error)) validator.Func {
	return func(fl validator.FieldLevel) bool {
		_, err := parse(fl.Field().String())
		return err == nil
	}
}

// =============================================================================
// Sections
// =============================================================================

// Config is the full solver configuration.
type Config struct {
	Solver    SolverConfig    `json:"solver" yaml:"solver"`
	Logging   LoggingConfig   `json:"logging" yaml:"logging"`
	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry"`
	Store     StoreConfig     `json:"store" yaml:"store"`
	Server    ServerConfig    `json:"server" yaml:"server"`
	Export    ExportConfig    `json:"export" yaml:"export"`
	Influx    InfluxConfig    `json:"influx" yaml:"influx"`
}

// SolverConfig configures the solvers and the iteration engine.
type SolverConfig struct {
	Method            string  `json:"method" yaml:"method" validate:"method"`
	StopCriterion     string  `json:"stop_criterion" yaml:"stop_criterion" validate:"criterion"`
	Tolerance         float64 `json:"tolerance" yaml:"tolerance" validate:"gt=0,lt=1"`
	MaxIterations     int     `json:"max_iterations" yaml:"max_iterations" validate:"gte=1"`
	Numeric           string  `json:"numeric" yaml:"numeric" validate:"numeric"`
	Workers           int     `json:"workers" yaml:"workers" validate:"gte=1,lte=1024"`
	ParallelThreshold int     `json:"parallel_threshold" yaml:"parallel_threshold" validate:"gte=1"`
	MaxStates         int     `json:"max_states" yaml:"max_states" validate:"gte=0"`
	MaxEdges          int     `json:"max_edges" yaml:"max_edges" validate:"gte=0"`
	VerifyScheduler   bool    `json:"verify_scheduler" yaml:"verify_scheduler"`
	ProgressEvery     int     `json:"progress_every" yaml:"progress_every" validate:"gte=1"`
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level   string `json:"level" yaml:"level" validate:"loglevel"`
	Format  string `json:"format" yaml:"format" validate:"oneof=auto text json"`
	Dir     string `json:"dir" yaml:"dir"`
	Service string `json:"service" yaml:"service" validate:"required"`
}

// TelemetryConfig selects the otel exporters.
type TelemetryConfig struct {
	Exporter    string  `json:"exporter" yaml:"exporter" validate:"oneof=none stdout otlp prometheus"`
	Endpoint    string  `json:"endpoint" yaml:"endpoint" validate:"required_if=Exporter otlp"`
	ServiceName string  `json:"service_name" yaml:"service_name" validate:"required"`
	SampleRate  float64 `json:"sample_rate" yaml:"sample_rate" validate:"gte=0,lte=1"`
}

// StoreConfig configures the badger result store.
type StoreConfig struct {
	Path     string        `json:"path" yaml:"path" validate:"required_without=InMemory"`
	InMemory bool          `json:"in_memory" yaml:"in_memory"`
	TTL      time.Duration `json:"ttl" yaml:"ttl" validate:"gte=0"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr         string        `json:"addr" yaml:"addr" validate:"required"`
	RateLimit    float64       `json:"rate_limit" yaml:"rate_limit" validate:"gte=0"`
	Burst        int           `json:"burst" yaml:"burst" validate:"gte=0"`
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout" validate:"gte=0"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout" validate:"gte=0"`
	SolveTimeout time.Duration `json:"solve_timeout" yaml:"solve_timeout" validate:"gt=0"`
	MaxBodyBytes int64         `json:"max_body_bytes" yaml:"max_body_bytes" validate:"gt=0"`
}

// ExportConfig configures compiled-graph artifacts. Dir is a local
// directory or a gs://bucket/prefix URL.
type ExportConfig struct {
	Dir             string `json:"dir" yaml:"dir"`
	CredentialsFile string `json:"credentials_file" yaml:"credentials_file" validate:"omitempty,file"`
}

// InfluxConfig configures the convergence time-series sink. An empty URL
// disables it.
type InfluxConfig struct {
	URL    string `json:"url" yaml:"url" validate:"omitempty,url"`
	Token  string `json:"token" yaml:"token"`
	Org    string `json:"org" yaml:"org" validate:"required_with=URL"`
	Bucket string `json:"bucket" yaml:"bucket" validate:"required_with=URL"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Solver: SolverConfig{
			Method:            "jacobi",
			StopCriterion:     "absolute",
			Tolerance:         iterate.DefaultTolerance,
			MaxIterations:     iterate.DefaultMaxIterations,
			Numeric:           "double",
			Workers:           1,
			ParallelThreshold: iterate.DefaultParallelThreshold,
			ProgressEvery:     1,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Format:  "auto",
			Service: "solver",
		},
		Telemetry: TelemetryConfig{
			Exporter:    "prometheus",
			ServiceName: "aleutian-solver",
			SampleRate:  1.0,
		},
		Store: StoreConfig{
			Path: "~/.aleutian/solver/results",
			TTL:  7 * 24 * time.Hour,
		},
		Server: ServerConfig{
			Addr:         ":8088",
			RateLimit:    20,
			Burst:        40,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 5 * time.Minute,
			SolveTimeout: 5 * time.Minute,
			MaxBodyBytes: 64 << 20,
		},
	}
}

// =============================================================================
// Loading
// =============================================================================

// Load reads configuration from defaults, then path (if non-empty and
// present), then the environment, and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}
	if err := loadEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return fmt.Errorf("parse config (tried YAML and JSON): YAML error: %v, JSON error: %w", err, jsonErr)
		}
	}
	return nil
}

// envBinding applies one environment variable.
type envBinding struct {
	name  string
	apply func(v string) error
}

func loadEnv(cfg *Config) error {
	bindings := []envBinding{
		{"SOLVER_METHOD", setString(&cfg.Solver.Method)},
		{"SOLVER_STOP_CRITERION", setString(&cfg.Solver.StopCriterion)},
		{"SOLVER_TOLERANCE", setFloat(&cfg.Solver.Tolerance)},
		{"SOLVER_MAX_ITERATIONS", setInt(&cfg.Solver.MaxIterations)},
		{"SOLVER_NUMERIC", setString(&cfg.Solver.Numeric)},
		{"SOLVER_WORKERS", setInt(&cfg.Solver.Workers)},
		{"SOLVER_MAX_STATES", setInt(&cfg.Solver.MaxStates)},
		{"SOLVER_MAX_EDGES", setInt(&cfg.Solver.MaxEdges)},
		{"SOLVER_VERIFY_SCHEDULER", setBool(&cfg.Solver.VerifyScheduler)},
		{"SOLVER_LOG_LEVEL", setString(&cfg.Logging.Level)},
		{"SOLVER_LOG_FORMAT", setString(&cfg.Logging.Format)},
		{"SOLVER_LOG_DIR", setString(&cfg.Logging.Dir)},
		{"SOLVER_TELEMETRY_EXPORTER", setString(&cfg.Telemetry.Exporter)},
		{"SOLVER_OTLP_ENDPOINT", setString(&cfg.Telemetry.Endpoint)},
		{"SOLVER_TRACE_SAMPLE_RATE", setFloat(&cfg.Telemetry.SampleRate)},
		{"SOLVER_STORE_PATH", setString(&cfg.Store.Path)},
		{"SOLVER_STORE_IN_MEMORY", setBool(&cfg.Store.InMemory)},
		{"SOLVER_SERVER_ADDR", setString(&cfg.Server.Addr)},
		{"SOLVER_RATE_LIMIT", setFloat(&cfg.Server.RateLimit)},
		{"SOLVER_SOLVE_TIMEOUT", setDuration(&cfg.Server.SolveTimeout)},
		{"SOLVER_EXPORT_DIR", setString(&cfg.Export.Dir)},
		{"SOLVER_GCS_CREDENTIALS", setString(&cfg.Export.CredentialsFile)},
		{"SOLVER_INFLUX_URL", setString(&cfg.Influx.URL)},
		{"SOLVER_INFLUX_TOKEN", setString(&cfg.Influx.Token)},
		{"SOLVER_INFLUX_ORG", setString(&cfg.Influx.Org)},
		{"SOLVER_INFLUX_BUCKET", setString(&cfg.Influx.Bucket)},
	}
	for _, b := range bindings {
		v, ok := os.LookupEnv(b.name)
		if !ok || v == "" {
			continue
		}
		if err := b.apply(v); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, b.name, err)
		}
	}
	return nil
}

func setString(dst *string) func(string) error {
	return func(v string) error { *dst = v; return nil }
}

func setInt(dst *int) func(string) error {
	return func(v string) error {
		i, err := strconv.Atoi(v)
		if err == nil {
			*dst = i
		}
		return err
	}
}

func setFloat(dst *float64) func(string) error {
	return func(v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			*dst = f
		}
		return err
	}
}

func setBool(dst *bool) func(string) error {
	return func(v string) error {
		b, err := strconv.ParseBool(v)
		if err == nil {
			*dst = b
		}
		return err
	}
}

func setDuration(dst *time.Duration) func(string) error {
	return func(v string) error {
		d, err := time.ParseDuration(v)
		if err == nil {
			*dst = d
		}
		return err
	}
}

// =============================================================================
// Validation and conversion
// =============================================================================

// Validate checks every section.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, len(fieldErrs))
			for i, fe := range fieldErrs {
				msgs[i] = fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag())
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// SolverOptions converts the solver section. Sinks are left empty.
func (c Config) SolverOptions() (solver.Options, error) {
	method, err := iterate.ParseMethod(c.Solver.Method)
	if err != nil {
		return solver.Options{}, err
	}
	criterion, err := numeric.ParseStopCriterion(c.Solver.StopCriterion)
	if err != nil {
		return solver.Options{}, err
	}
	kind, err := numeric.ParseKind(c.Solver.Numeric)
	if err != nil {
		return solver.Options{}, err
	}
	return solver.Options{
		Iterate: iterate.Options{
			Method:            method,
			StopCriterion:     criterion,
			Tolerance:         c.Solver.Tolerance,
			MaxIterations:     c.Solver.MaxIterations,
			Workers:           c.Solver.Workers,
			ParallelThreshold: c.Solver.ParallelThreshold,
		},
		Numeric:         kind,
		MaxStates:       c.Solver.MaxStates,
		MaxEdges:        c.Solver.MaxEdges,
		VerifyScheduler: c.Solver.VerifyScheduler,
		ProgressEvery:   c.Solver.ProgressEvery,
	}, nil
}

// LoggerConfig converts the logging section.
func (c Config) LoggerConfig() logging.Config {
	level, _ := logging.ParseLevel(c.Logging.Level)
	return logging.Config{
		Level:   level,
		Format:  logging.Format(c.Logging.Format),
		Service: c.Logging.Service,
		LogDir:  c.Logging.Dir,
	}
}
