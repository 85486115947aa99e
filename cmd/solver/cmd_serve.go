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
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianSolver/services/solver/api"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		addr    string
		noStore bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the solver HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := a.solverOptions()
			if err != nil {
				return err
			}

			var results api.ResultStore
			if !noStore {
				st, err := a.openStore()
				if err != nil {
					return err
				}
				defer st.Close()
				results = st
			}

			if a.cfg.Logging.Level != "debug" {
				gin.SetMode(gin.ReleaseMode)
			}
			srv, err := api.New(api.Config{
				ServiceName:  a.cfg.Telemetry.ServiceName,
				RateLimit:    a.cfg.Server.RateLimit,
				Burst:        a.cfg.Server.Burst,
				SolveTimeout: a.cfg.Server.SolveTimeout,
				MaxBodyBytes: a.cfg.Server.MaxBodyBytes,
				ReadTimeout:  a.cfg.Server.ReadTimeout,
				WriteTimeout: a.cfg.Server.WriteTimeout,
			}, opts, results)
			if err != nil {
				return err
			}

			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			slog.Info("starting solver API",
				slog.String("addr", addr),
				slog.Bool("store", results != nil))
			return srv.ListenAndServe(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default: server.addr)")
	cmd.Flags().BoolVar(&noStore, "no-store", false, "Do not persist results")
	return cmd
}
