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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianSolver/services/solver"
	"github.com/AleutianAI/AleutianSolver/services/solver/objective"
	"github.com/AleutianAI/AleutianSolver/services/solver/store"
	"github.com/AleutianAI/AleutianSolver/services/solver/strategy"
)

// Max node 0 picks between the target 1 and the sink 2.
const scenarioA = `{"version": "v1", "name": "a", "targets": [1], "nodes": [
	{"player": "max", "choices": [{"edges": [{"to": 1, "weight": 1}]}, {"edges": [{"to": 2, "weight": 1}]}]},
	{"player": "stochastic", "choices": [{"edges": [{"to": 1, "weight": 1}]}]},
	{"player": "stochastic", "choices": [{"edges": [{"to": 2, "weight": 1}]}]}
]}`

// Node 0 loops with 0.5 and reaches the target 1 with 0.5.
const scenarioB = `{"version": "v1", "targets": [1], "nodes": [
	{"player": "stochastic", "choices": [{"edges": [{"to": 0, "weight": 0.5}, {"to": 1, "weight": 0.5}]}]},
	{"player": "stochastic", "choices": [{"edges": [{"to": 1, "weight": 1}]}]}
]}`

// Rewards: choice rewards 1 and 3 at node 0, stop reward 4 at node 1.
const rewardModel = `{"version": "v1", "nodes": [
	{"player": "max", "decision": "1", "choices": [{"reward": 1, "edges": [{"to": 1, "weight": 1}]}, {"reward": 3, "edges": [{"to": 2, "weight": 1}]}]},
	{"player": "stochastic", "stop_reward": 4, "choices": [{"edges": [{"to": 2, "weight": 1}]}]},
	{"player": "stochastic", "choices": [{"edges": [{"to": 2, "weight": 1}]}]}
]}`

const minModel = `{"version": "v1", "nodes": [
	{"player": "min", "choices": [{"edges": [{"to": 0, "weight": 1}]}]}
]}`

type memoryStore struct {
	mu      sync.Mutex
	records map[string]store.Record
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: map[string]store.Record{}}
}

func (m *memoryStore) Put(_ context.Context, rec store.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.ID] = rec
	return nil
}

func (m *memoryStore) Get(_ context.Context, id string) (*store.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	return &rec, nil
}

func newServer(t *testing.T, cfg Config, results ResultStore) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s, err := New(cfg, solver.DefaultOptions(), results)
	require.NoError(t, err)
	return s
}

func do(s *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func request(model, extra string) string {
	if extra == "" {
		return fmt.Sprintf(`{"model": %s}`, model)
	}
	return fmt.Sprintf(`{"model": %s, %s}`, model, extra)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) SolveResponse {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp SolveResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHealth(t *testing.T) {
	w := do(newServer(t, DefaultConfig(), nil), http.MethodGet, "/v1/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Status  string   `json:"status"`
		Solvers []string `json:"solvers"`
		Store   bool     `json:"store"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, []string{solver.IdentifierReachability, solver.IdentifierWeighted, solver.IdentifierScheduled}, body.Solvers)
	assert.False(t, body.Store)
}

func TestSolveReachability_StoresResult(t *testing.T) {
	results := newMemoryStore()
	s := newServer(t, DefaultConfig(), results)

	resp := decode(t, do(s, http.MethodPost, "/v1/solve/reachability", request(scenarioA, `"scheduler": true`)))
	assert.Equal(t, objective.KindReachability, resp.Objective)
	require.Len(t, resp.Floats, 3)
	assert.InDelta(t, 1, resp.Floats[0], 1e-9)
	assert.InDelta(t, 1, resp.Floats[1], 1e-9)
	assert.InDelta(t, 0, resp.Floats[2], 1e-9)
	require.Len(t, resp.Scheduler, 3)
	assert.Equal(t, strategy.Choice(0), resp.Scheduler[0])
	assert.Equal(t, solver.IdentifierReachability, resp.Report.Solver)
	assert.True(t, resp.Report.Converged)

	w := do(s, http.MethodGet, "/v1/solve/"+resp.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	var rec store.Record
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, "reachability", rec.Objective)
	assert.Equal(t, "a", rec.Model)
	assert.Equal(t, resp.Values, rec.Values)
}

func TestSolveReachability_Rational(t *testing.T) {
	s := newServer(t, DefaultConfig(), nil)

	resp := decode(t, do(s, http.MethodPost, "/v1/solve/reachability", request(scenarioA, `"options": {"numeric": "rational"}`)))
	assert.Equal(t, []string{"1", "1", "0"}, resp.Values)
	assert.Empty(t, resp.Scheduler)
}

func TestSolveWeighted(t *testing.T) {
	s := newServer(t, DefaultConfig(), nil)

	resp := decode(t, do(s, http.MethodPost, "/v1/solve/weighted", request(rewardModel, "")))
	require.Len(t, resp.Floats, 3)
	assert.InDelta(t, 5, resp.Floats[0], 1e-9)
	assert.InDelta(t, 4, resp.Floats[1], 1e-9)
	assert.InDelta(t, 0, resp.Floats[2], 1e-9)
	assert.Equal(t, strategy.Choice(0), resp.Scheduler[0])
}

func TestSolveScheduled(t *testing.T) {
	s := newServer(t, DefaultConfig(), nil)

	resp := decode(t, do(s, http.MethodPost, "/v1/solve/scheduled", request(rewardModel, "")))
	require.Len(t, resp.Floats, 3)
	assert.InDelta(t, 3, resp.Floats[0], 1e-9)
	assert.InDelta(t, 0, resp.Floats[1], 1e-9)
	assert.Equal(t, strategy.Choice(1), resp.Scheduler[0])
}

func TestSolve_Errors(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"malformed json", "/v1/solve/reachability", `{"model":`, http.StatusBadRequest},
		{"missing model", "/v1/solve/reachability", `{}`, http.StatusBadRequest},
		{"invalid model", "/v1/solve/reachability", request(`{"version": "v9", "nodes": []}`, ""), http.StatusBadRequest},
		{"no targets", "/v1/solve/reachability", request(rewardModel, ""), http.StatusBadRequest},
		{"bad options", "/v1/solve/reachability", request(scenarioA, `"options": {"tolerance": -1}`), http.StatusBadRequest},
		{"no solver", "/v1/solve/weighted", request(minModel, ""), http.StatusUnprocessableEntity},
	}
	s := newServer(t, DefaultConfig(), nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(s, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

func TestSolve_DidNotConvergeReturnsReport(t *testing.T) {
	s := newServer(t, DefaultConfig(), nil)

	w := do(s, http.MethodPost, "/v1/solve/reachability", request(scenarioB, `"options": {"max_iterations": 3}`))
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var body struct {
		Error  string         `json:"error"`
		Report *solver.Report `json:"report"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body.Error, "converge")
	require.NotNil(t, body.Report)
	assert.Equal(t, 3, body.Report.Iterations)
	assert.False(t, body.Report.Converged)
}

func TestGet(t *testing.T) {
	w := do(newServer(t, DefaultConfig(), newMemoryStore()), http.MethodGet, "/v1/solve/unknown", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(newServer(t, DefaultConfig(), newMemoryStore()), http.MethodGet, "/v1/solve/bad%20id", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(newServer(t, DefaultConfig(), nil), http.MethodGet, "/v1/solve/unknown", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRateLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimit = 0.001
	cfg.Burst = 1
	s := newServer(t, cfg, nil)

	assert.Equal(t, http.StatusOK, do(s, http.MethodPost, "/v1/solve/reachability", request(scenarioA, "")).Code)
	w := do(s, http.MethodPost, "/v1/solve/reachability", request(scenarioA, ""))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, do(s, http.MethodGet, "/v1/health", "").Code, "health is not limited")
}

func TestBodyLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxBodyBytes = 16
	s := newServer(t, cfg, nil)

	w := do(s, http.MethodPost, "/v1/solve/reachability", request(scenarioA, ""))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestMetrics(t *testing.T) {
	w := do(newServer(t, DefaultConfig(), nil), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestFlightKey(t *testing.T) {
	var a, b SolveRequest
	require.NoError(t, json.Unmarshal([]byte(request(scenarioA, "")), &a))
	require.NoError(t, json.Unmarshal([]byte(request(scenarioA, "")), &b))

	ka, err := flightKey(objective.KindReachability, &a)
	require.NoError(t, err)
	kb, err := flightKey(objective.KindReachability, &b)
	require.NoError(t, err)
	assert.Equal(t, ka, kb)

	kw, err := flightKey(objective.KindWeighted, &a)
	require.NoError(t, err)
	assert.NotEqual(t, ka, kw)
}

func TestStream(t *testing.T) {
	s := newServer(t, DefaultConfig(), nil)
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/solve/stream"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	var msg bytes.Buffer
	fmt.Fprintf(&msg, `{"objective": "reachability", "model": %s, "options": {"tolerance": 1e-6}}`, scenarioB)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, msg.Bytes()))

	progress := 0
	for {
		var ev StreamEvent
		require.NoError(t, ws.ReadJSON(&ev))
		if ev.Type == "progress" {
			require.NotNil(t, ev.Progress)
			progress++
			continue
		}
		require.Equal(t, "result", ev.Type, ev.Error)
		require.NotNil(t, ev.Result)
		assert.InDelta(t, 1, ev.Result.Floats[0], 1e-5)
		assert.Equal(t, ev.Result.Report.Iterations, progress)
		break
	}
	assert.Greater(t, progress, 1)
}

func TestStream_UnknownObjective(t *testing.T) {
	s := newServer(t, DefaultConfig(), nil)
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/v1/solve/stream", nil)
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, ws.WriteJSON(map[string]any{"objective": "discounted"}))
	var ev StreamEvent
	require.NoError(t, ws.ReadJSON(&ev))
	assert.Equal(t, "error", ev.Type)
	assert.Contains(t, ev.Error, "discounted")
}
