// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianSolver/services/solver"
	"github.com/AleutianAI/AleutianSolver/services/solver/numeric"
	"github.com/AleutianAI/AleutianSolver/services/solver/strategy"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_RoundTrip(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	report := &solver.Report{ID: "abc", Solver: solver.IdentifierReachability, Iterations: 12, Converged: true}
	values := numeric.NewVector(numeric.Rational{}, []numeric.Rat{numeric.NewRat(1, 3), numeric.NewRat(1, 1)})
	sched := strategy.NewSchedulerFrom([]strategy.Decision{strategy.Choice(1), strategy.Unset})

	require.NoError(t, s.Put(ctx, NewRecord("reachability", "dice", report, values, sched, nil)))

	got, err := s.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "reachability", got.Objective)
	assert.Equal(t, "dice", got.Model)
	assert.Equal(t, []string{"1/3", "1"}, got.Values)
	assert.InDelta(t, 1.0/3, got.Floats[0], 1e-12)
	assert.Equal(t, []strategy.Decision{strategy.Choice(1), strategy.Unset}, got.Scheduler)
	assert.Equal(t, 12, got.Report.Iterations)
	assert.True(t, got.Report.Converged)
	assert.Empty(t, got.Error)
}

func TestStore_GetMissing(t *testing.T) {
	_, err := openMemory(t).Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_RecordsFailure(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()

	rec := NewRecord("weighted", "", &solver.Report{ID: "f1"}, nil, nil, errors.New("did not converge"))
	require.NoError(t, s.Put(ctx, rec))

	got, err := s.Get(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, "did not converge", got.Error)
	assert.Nil(t, got.Values)
}

func TestStore_ListNewestFirst(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		rec := NewRecord("reachability", "", &solver.Report{ID: id}, nil, nil, nil)
		rec.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, s.Put(ctx, rec))
	}

	all, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].ID)
	assert.Equal(t, "a", all[2].ID)

	two, err := s.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, two, 2)
}

func TestStore_Delete(t *testing.T) {
	s := openMemory(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, NewRecord("reachability", "", &solver.Report{ID: "x"}, nil, nil, nil)))

	require.NoError(t, s.Delete(ctx, "x"))
	_, err := s.Get(ctx, "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_PutRequiresID(t *testing.T) {
	assert.Error(t, openMemory(t).Put(context.Background(), Record{}))
}

func TestStore_OnDisk(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Path = t.TempDir()
	cfg.GCInterval = time.Hour

	s, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, s.Put(context.Background(), NewRecord("reachability", "", &solver.Report{ID: "disk"}, nil, nil, nil)))
	require.NoError(t, s.Close())

	s, err = Open(cfg)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Get(context.Background(), "disk")
	require.NoError(t, err)
	assert.Equal(t, "disk", got.ID)
}
