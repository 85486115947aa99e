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
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/AleutianAI/AleutianSolver/services/solver"
	"github.com/AleutianAI/AleutianSolver/services/solver/objective"
)

const streamHandshakeTimeout = 30 * time.Second

// StreamRequest is the single message a stream client sends.
type StreamRequest struct {
	Objective objective.Kind `json:"objective"`
	SolveRequest
}

// StreamEvent is one message sent to a stream client. Type is "progress",
// "result" or "error".
type StreamEvent struct {
	Type     string           `json:"type"`
	Progress *solver.Progress `json:"progress,omitempty"`
	Result   *SolveResponse   `json:"result,omitempty"`
	Error    string           `json:"error,omitempty"`
	Report   *solver.Report   `json:"report,omitempty"`
}

// wsSink forwards progress to the socket and cancels the solve once the
// client is gone.
type wsSink struct {
	mu     sync.Mutex
	ws     *websocket.Conn
	cancel context.CancelFunc
	failed bool
}

func (w *wsSink) send(ev StreamEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failed {
		return errors.New("stream closed")
	}
	if err := w.ws.WriteJSON(ev); err != nil {
		w.failed = true
		w.cancel()
		slog.Warn("failed to write stream event", slog.String("error", err.Error()))
		return err
	}
	return nil
}

func (w *wsSink) OnProgress(_ context.Context, p solver.Progress) {
	_ = w.send(StreamEvent{Type: "progress", Progress: &p})
}

func (s *Server) handleStream(c *gin.Context) {
	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("failed to upgrade the websocket", slog.String("error", err.Error()))
		return
	}
	defer ws.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	sink := &wsSink{ws: ws, cancel: cancel}

	_ = ws.SetReadDeadline(time.Now().Add(streamHandshakeTimeout))
	var req StreamRequest
	if err := ws.ReadJSON(&req); err != nil {
		_ = sink.send(StreamEvent{Type: "error", Error: fmt.Sprintf("read request: %v", err)})
		return
	}
	_ = ws.SetReadDeadline(time.Time{})

	switch req.Objective {
	case objective.KindReachability, objective.KindWeighted, objective.KindScheduled:
	default:
		_ = sink.send(StreamEvent{Type: "error", Error: fmt.Sprintf("unknown objective %q", req.Objective)})
		return
	}

	resp, err := s.solve(solver.WithProgressSink(ctx, sink), req.Objective, &req.SolveRequest)
	if err != nil {
		ev := StreamEvent{Type: "error", Error: err.Error()}
		var se *solveError
		if errors.As(err, &se) {
			ev.Error = se.err.Error()
			ev.Report = se.report
		}
		_ = sink.send(ev)
		return
	}
	if err := sink.send(StreamEvent{Type: "result", Result: resp}); err != nil {
		return
	}
	_ = ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
}
