// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation checks user-provided identifiers before they reach
// file paths, object keys or database keys.
//
// Artifact names become file names and Cloud Storage object keys, and
// solve IDs become badger keys. Both are restricted to a small character
// set so neither can traverse directories or collide with other key
// prefixes.
package validation

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrInvalidIdentifier is wrapped by every validation failure.
var ErrInvalidIdentifier = errors.New("invalid identifier")

// artifactPattern allows letters, digits, dots, underscores and hyphens,
// starting with a letter or digit. Max length: 128.
var artifactPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// solveIDPattern also allows colons for caller-chosen IDs such as
// "nightly:2025-01-01". Max length: 64.
var solveIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:-]{0,63}$`)

// ValidateArtifactName validates the name of a compiled graph artifact.
//
// Example:
//
//	if err := validation.ValidateArtifactName(name); err != nil {
//	    return "", err
//	}
//	// Safe to join onto the artifact directory
func ValidateArtifactName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: artifact name cannot be empty", ErrInvalidIdentifier)
	}
	if !artifactPattern.MatchString(name) {
		return fmt.Errorf("%w: artifact name %q (must be 1-128 letters, digits, dots, underscores or hyphens)", ErrInvalidIdentifier, name)
	}
	return nil
}

// ValidateSolveID validates a solve ID taken from a request.
func ValidateSolveID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: solve id cannot be empty", ErrInvalidIdentifier)
	}
	if !solveIDPattern.MatchString(id) {
		return fmt.Errorf("%w: solve id %q", ErrInvalidIdentifier, id)
	}
	return nil
}
