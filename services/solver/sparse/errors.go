// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sparse

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientCapacity indicates the compact layout would exceed a
	// configured limit or the int32 index space. Callers may retry with
	// larger limits.
	ErrInsufficientCapacity = errors.New("insufficient capacity")

	// ErrInvalidLayout indicates the CSR arrays violate their invariants.
	ErrInvalidLayout = errors.New("invalid compact layout")

	// ErrBadMagic indicates a binary stream that is not a compiled graph.
	ErrBadMagic = errors.New("invalid magic bytes")

	// ErrUnsupportedVersion indicates a binary stream from another format version.
	ErrUnsupportedVersion = errors.New("unsupported layout version")

	// ErrChecksum indicates a CRC32 mismatch in a binary stream.
	ErrChecksum = errors.New("checksum mismatch")
)

// CapacityError reports which limit was exceeded.
type CapacityError struct {
	// What is "states", "choices" or "edges".
	What string

	// Need is the size the layout requires.
	Need int

	// Limit is the limit that was exceeded.
	Limit int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("%s: need %d %s, limit %d", ErrInsufficientCapacity, e.Need, e.What, e.Limit)
}

func (e *CapacityError) Unwrap() error {
	return ErrInsufficientCapacity
}
