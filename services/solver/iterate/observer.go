// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package iterate

import "context"

// Sweep describes one completed sweep.
type Sweep[T any] struct {
	// Iteration is 1-based.
	Iteration int

	// Distance is the largest per-state change in this sweep.
	Distance float64

	// Values is the vector after this sweep. It is owned by the engine:
	// observers must not retain or modify it.
	Values []T
}

// Observer is notified after every sweep, on the engine's goroutine.
type Observer[T any] interface {
	ObserveSweep(ctx context.Context, s Sweep[T])
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc[T any] func(ctx context.Context, s Sweep[T])

// ObserveSweep calls f.
func (f ObserverFunc[T]) ObserveSweep(ctx context.Context, s Sweep[T]) {
	f(ctx, s)
}
