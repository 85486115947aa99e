// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{" error ", LevelError, false},
		{"loud", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLevel_Text(t *testing.T) {
	text, err := LevelWarn.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "warn", string(text))

	var l Level
	require.NoError(t, l.UnmarshalText([]byte("debug")))
	assert.Equal(t, LevelDebug, l)
	assert.Equal(t, "UNKNOWN", Level(42).String())
}

func TestNew_JSONOutputFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: LevelWarn, Format: FormatJSON, Service: "test", Output: &buf})
	require.NoError(t, err)
	defer logger.Close()

	logger.Slog().Info("hidden")
	logger.Slog().Warn("shown", "iterations", 7)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &record))
	assert.Equal(t, "shown", record["msg"])
	assert.Equal(t, "test", record["service"])
	assert.Equal(t, float64(7), record["iterations"])
}

func TestNew_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Format: FormatText, Output: &buf})
	require.NoError(t, err)

	logger.Slog().Info("iteration done", "seconds", 0.5)
	assert.Contains(t, buf.String(), "msg=\"iteration done\"")
	assert.Contains(t, buf.String(), "seconds=0.5")
}

func TestNew_AutoFormatIsJSONForNonTerminal(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Format: FormatAuto, Output: &buf})
	require.NoError(t, err)

	logger.Slog().Info("hello")
	assert.True(t, strings.HasPrefix(buf.String(), "{"))
}

func TestNew_FileLogging(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(Config{Quiet: true, Service: "solver", LogDir: dir})
	require.NoError(t, err)

	logger.Slog().Info("to file")
	require.NoError(t, logger.Close())

	matches, err := filepath.Glob(filepath.Join(dir, "solver_*.log"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "\"msg\":\"to file\"")
}

func TestNew_Exporter(t *testing.T) {
	exp := NewBufferedExporter()
	logger, err := New(Config{Quiet: true, Service: "api", Level: LevelInfo, Exporter: exp})
	require.NoError(t, err)

	logger.With("solve_id", "abc").Slog().WithGroup("stats").Info("solved", "iterations", 3)
	logger.Slog().Debug("filtered")

	entries := exp.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "solved", entries[0].Message)
	assert.Equal(t, "api", entries[0].Service)
	assert.Equal(t, LevelInfo, entries[0].Level)
	assert.Equal(t, "abc", entries[0].Attrs["solve_id"])
	assert.Equal(t, int64(3), entries[0].Attrs["stats.iterations"])
	require.NoError(t, logger.Close())
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "logs"), expandPath("~/logs"))
	assert.Equal(t, "/var/log", expandPath("/var/log"))
}
