// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/AleutianAI/AleutianSolver/services/solver"
)

// MeterSink records sweeps as otel instruments.
type MeterSink struct {
	sweeps   otelmetric.Int64Counter
	distance otelmetric.Float64Histogram
}

// NewMeterSink creates the instruments on the global meter provider.
func NewMeterSink() (*MeterSink, error) {
	meter := otel.Meter("solver.progress")
	sweeps, err := meter.Int64Counter("solver.sweeps",
		otelmetric.WithDescription("Sweeps performed across all solves"))
	if err != nil {
		return nil, err
	}
	distance, err := meter.Float64Histogram("solver.sweep.distance",
		otelmetric.WithDescription("Distance between consecutive iterates"))
	if err != nil {
		return nil, err
	}
	return &MeterSink{sweeps: sweeps, distance: distance}, nil
}

// OnProgress implements solver.ProgressSink.
func (m *MeterSink) OnProgress(ctx context.Context, p solver.Progress) {
	attrs := otelmetric.WithAttributes(attribute.String("solver", p.Solver))
	m.sweeps.Add(ctx, 1, attrs)
	m.distance.Record(ctx, p.Distance, attrs)
}

// InfluxConfig addresses an InfluxDB v2 bucket.
type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// pointWriter is the non-blocking subset of api.WriteAPI.
type pointWriter interface {
	WritePoint(point *write.Point)
	Flush()
}

// InfluxSink writes one point per sweep into the "solver_progress"
// measurement. Writes are batched in the background.
type InfluxSink struct {
	client influxdb2.Client
	writer pointWriter
	now    func() time.Time
}

// NewInfluxSink connects to InfluxDB. Write errors are logged, never
// surfaced to the solve.
func NewInfluxSink(cfg InfluxConfig) (*InfluxSink, error) {
	if cfg.URL == "" || cfg.Org == "" || cfg.Bucket == "" {
		return nil, errors.New("influx sink needs url, org and bucket")
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)

	go func() {
		for err := range writeAPI.Errors() {
			slog.Warn("influx write failed", slog.String("error", err.Error()))
		}
	}()

	return &InfluxSink{client: client, writer: writeAPI, now: time.Now}, nil
}

// OnProgress implements solver.ProgressSink.
func (s *InfluxSink) OnProgress(_ context.Context, p solver.Progress) {
	s.writer.WritePoint(progressPoint(p, s.now()))
}

// Close flushes pending points and closes the client.
func (s *InfluxSink) Close() {
	s.writer.Flush()
	if s.client != nil {
		s.client.Close()
	}
}

func progressPoint(p solver.Progress, at time.Time) *write.Point {
	return influxdb2.NewPointWithMeasurement("solver_progress").
		AddTag("solve_id", p.SolveID).
		AddTag("solver", p.Solver).
		AddField("iteration", p.Iteration).
		AddField("distance", p.Distance).
		SetTime(at)
}
