// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package api

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianSolver/pkg/validation"
	"github.com/AleutianAI/AleutianSolver/services/solver"
	"github.com/AleutianAI/AleutianSolver/services/solver/iterate"
	"github.com/AleutianAI/AleutianSolver/services/solver/modelspec"
	"github.com/AleutianAI/AleutianSolver/services/solver/numeric"
	"github.com/AleutianAI/AleutianSolver/services/solver/objective"
	"github.com/AleutianAI/AleutianSolver/services/solver/store"
	"github.com/AleutianAI/AleutianSolver/services/solver/strategy"
)

// SolveRequest is the body of the solve endpoints.
type SolveRequest struct {
	Model   *modelspec.Document `json:"model"`
	Options *RequestOptions     `json:"options,omitempty"`

	// Scheduler asks reachability solves for an optimal scheduler.
	Scheduler bool `json:"scheduler,omitempty"`
}

// RequestOptions overrides the server's solver options for one request.
type RequestOptions struct {
	Method        *iterate.Method        `json:"method,omitempty"`
	StopCriterion *numeric.StopCriterion `json:"stop_criterion,omitempty"`
	Tolerance     *float64               `json:"tolerance,omitempty"`
	MaxIterations *int                   `json:"max_iterations,omitempty"`
	Numeric       *numeric.Kind          `json:"numeric,omitempty"`
}

func (o *RequestOptions) apply(base solver.Options) solver.Options {
	if o == nil {
		return base
	}
	if o.Method != nil {
		base.Iterate.Method = *o.Method
	}
	if o.StopCriterion != nil {
		base.Iterate.StopCriterion = *o.StopCriterion
	}
	if o.Tolerance != nil {
		base.Iterate.Tolerance = *o.Tolerance
	}
	if o.MaxIterations != nil {
		base.Iterate.MaxIterations = *o.MaxIterations
	}
	if o.Numeric != nil {
		base.Numeric = *o.Numeric
	}
	return base
}

// SolveResponse is a finished solve.
type SolveResponse struct {
	ID        string              `json:"id"`
	Objective objective.Kind      `json:"objective"`
	Values    []string            `json:"values"`
	Floats    []float64           `json:"floats"`
	Scheduler []strategy.Decision `json:"scheduler,omitempty"`
	Report    *solver.Report      `json:"report"`
}

// solveError carries the HTTP status for a failed solve.
type solveError struct {
	status int
	err    error
	report *solver.Report
}

func (e *solveError) Error() string { return e.err.Error() }
func (e *solveError) Unwrap() error { return e.err }

func badRequest(err error) error {
	return &solveError{status: http.StatusBadRequest, err: err}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, solver.ErrDidNotConverge):
		return http.StatusUnprocessableEntity
	case errors.Is(err, solver.ErrInsufficientCapacity):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type resultHolder interface {
	Result() numeric.Values
}

type schedulerHolder interface {
	Scheduler() *strategy.Scheduler
}

// solve runs one request end to end and stores the outcome.
func (s *Server) solve(ctx context.Context, kind objective.Kind, req *SolveRequest) (*SolveResponse, error) {
	if req.Model == nil {
		return nil, badRequest(errors.New("model is required"))
	}
	if err := req.Model.Validate(); err != nil {
		return nil, badRequest(err)
	}
	opts := req.Options.apply(s.opts)
	if err := opts.Validate(); err != nil {
		return nil, badRequest(err)
	}
	obj, err := req.Model.Objective(kind, req.Scheduler)
	if err != nil {
		return nil, badRequest(err)
	}
	registry, err := solver.NewDefaultRegistry(opts)
	if err != nil {
		return nil, badRequest(err)
	}
	selected, err := registry.Select(obj)
	if err != nil {
		return nil, &solveError{status: http.StatusUnprocessableEntity, err: fmt.Errorf("%w for %s objective", err, kind)}
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.SolveTimeout)
	defer cancel()

	report, solveErr := solver.Run(ctx, selected, obj)

	var values numeric.Values
	if h, ok := obj.(resultHolder); ok && solveErr == nil {
		values = h.Result()
	}
	var sched *strategy.Scheduler
	if h, ok := obj.(schedulerHolder); ok && solveErr == nil {
		sched = h.Scheduler()
	}
	s.record(ctx, store.NewRecord(string(kind), req.Model.Name, report, values, sched, solveErr))

	if solveErr != nil {
		return nil, &solveError{status: statusFor(solveErr), err: solveErr, report: report}
	}

	resp := &SolveResponse{
		ID:        report.ID,
		Objective: kind,
		Values:    numeric.Strings(values),
		Floats:    numeric.Floats(values),
		Report:    report,
	}
	if sched != nil {
		resp.Scheduler = sched.Decisions()
	}
	return resp, nil
}

func (s *Server) record(ctx context.Context, rec store.Record) {
	if s.results == nil || rec.ID == "" {
		return
	}
	if err := s.results.Put(context.WithoutCancel(ctx), rec); err != nil {
		slog.Warn("failed to store solve result",
			slog.String("solve_id", rec.ID),
			slog.String("error", err.Error()))
	}
}

func flightKey(kind objective.Kind, req *SolveRequest) (string, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(append([]byte(kind+"\x00"), data...))
	return hex.EncodeToString(sum[:]), nil
}

func writeError(c *gin.Context, err error) {
	var se *solveError
	if errors.As(err, &se) {
		body := gin.H{"error": se.err.Error()}
		if se.report != nil {
			body["report"] = se.report
		}
		c.JSON(se.status, body)
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func (s *Server) handleSolve(kind objective.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SolveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		key, err := flightKey(kind, &req)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		// Shared by every waiter, so detached from this request's lifetime.
		ctx := context.WithoutCancel(c.Request.Context())
		v, err, shared := s.flight.Do(key, func() (any, error) {
			return s.solve(ctx, kind, &req)
		})
		if shared {
			c.Header("X-Solve-Shared", "true")
		}
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, v)
	}
}

func (s *Server) handleGet(c *gin.Context) {
	if s.results == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "result store disabled"})
		return
	}
	id := c.Param("id")
	if err := validation.ValidateSolveID(id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rec, err := s.results.Get(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rec)
}
