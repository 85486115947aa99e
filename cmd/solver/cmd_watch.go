// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianSolver/services/solver/objective"
)

const defaultWatchDebounce = 200 * time.Millisecond

// newWatchCmd re-solves a model every time its file changes.
//
// # Examples
//
//	solver watch game.yaml
//	solver watch rewards.yaml --objective weighted --json
func newWatchCmd(a *app) *cobra.Command {
	var (
		flags     solveFlags
		kindName  string
		debounce  time.Duration
		solves    int
	)
	cmd := &cobra.Command{
		Use:   "watch MODEL",
		Short: "Solve a model and solve it again whenever the file changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := objective.Kind(kindName)
			switch kind {
			case objective.KindReachability, objective.KindWeighted, objective.KindScheduled:
			default:
				return fmt.Errorf("unknown objective %q", kindName)
			}

			ctx := cmd.Context()
			solveOnce := func() {
				solves++
				doc, rec, err := a.solveModel(ctx, kind, args[0], &flags)
				if doc == nil {
					a.printer.Error(err.Error())
					return
				}
				if renderErr := a.render(doc, rec); renderErr != nil {
					a.printer.Error(renderErr.Error())
				}
				if err != nil {
					a.printer.Warning(err.Error())
				}
			}

			solveOnce()
			return watchFile(ctx, args[0], debounce, func() {
				slog.Info("model changed", slog.String("path", args[0]), slog.Int("solve", solves+1))
				solveOnce()
			})
		},
	}
	flags.register(cmd, true)
	cmd.Flags().StringVarP(&kindName, "objective", "o", string(objective.KindReachability), "Objective (reachability, weighted, scheduled)")
	cmd.Flags().DurationVar(&debounce, "debounce", defaultWatchDebounce, "Quiet period before re-solving")
	return cmd
}

// watchFile calls onChange after path is written or replaced and no further
// change arrived for the debounce period. It watches the parent directory
// so editors that save by rename are seen. It returns nil when ctx ends.
func watchFile(ctx context.Context, path string, debounce time.Duration, onChange func()) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	var timer *time.Timer
	var timerC <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
				timerC = timer.C
			} else {
				timer.Reset(debounce)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			onChange()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("file watcher error", slog.String("error", err.Error()))
		}
	}
}
