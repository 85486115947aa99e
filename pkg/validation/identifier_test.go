// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validation

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateArtifactName(t *testing.T) {
	tests := []struct {
		name     string
		artifact string
		wantErr  bool
	}{
		// Valid names
		{"simple", "dice", false},
		{"with version", "dice.v2", false},
		{"mixed", "Robot_Grid-10x10", false},
		{"max length", strings.Repeat("a", 128), false},

		// Invalid names
		{"empty", "", true},
		{"parent dir", "..", true},
		{"current dir", ".", true},
		{"slash", "a/b", true},
		{"backslash", `a\b`, true},
		{"traversal", "../etc/passwd", true},
		{"hidden", ".secret", true},
		{"spaces", "my model", true},
		{"newline", "dice\n", true},
		{"too long", strings.Repeat("a", 129), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateArtifactName(tt.artifact)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateArtifactName(%q) error = %v, wantErr %v", tt.artifact, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidIdentifier) {
				t.Errorf("ValidateArtifactName(%q) error = %v, want ErrInvalidIdentifier", tt.artifact, err)
			}
		})
	}
}

func TestValidateSolveID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"uuid", "0b4d3f4e-6f1c-4c4e-9a53-2f2f0a9c3b11", false},
		{"word", "unknown", false},
		{"caller chosen", "nightly:2025-01-01", false},

		{"empty", "", true},
		{"prefix escape", "../result", true},
		{"slash", "result/x", true},
		{"too long", strings.Repeat("a", 65), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSolveID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSolveID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
		})
	}
}
