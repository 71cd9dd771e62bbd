// Copyright 2026 Harald Albrecht.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not
// use this file except in compliance with the License. You may obtain a copy
// of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
// WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
// License for the specific language governing permissions and limitations
// under the License.

package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/thediveo/spassr/internal/config"
	"github.com/thediveo/spassr/internal/server"
)

func serveCmd() *cobra.Command {
	var (
		cfg      config.Config
		envErr   error
		logLevel string
	)
	cfg, envErr = config.FromEnv()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the application",
		Long: `Serve the application, together with its people API and metrics.

In development mode the document template and static assets are read from the
web directory on each request, so edits show up without restarting. In
production mode the embedded assets are used and the document template is
loaded only once.

Examples:
  spassr serve
  spassr serve --dev --web-dir=./web
  SPASSR_ENV=development spassr serve --addr=:8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if envErr != nil {
				return envErr
			}
			if cmd.Flags().Changed("log-level") {
				if err := cfg.LogLevel.UnmarshalText([]byte(logLevel)); err != nil {
					return err
				}
			}
			logger := cfg.Logger()
			srv, err := server.New(cfg, logger)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.Run(ctx)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&cfg.Addr, "addr", "a", cfg.Addr, "address to listen on")
	flags.BoolVarP(&cfg.Development, "dev", "d", cfg.Development, "development mode, reading the web sources on each request")
	flags.StringVar(&cfg.WebDir, "web-dir", cfg.WebDir, "web sources directory in development mode")
	flags.DurationVar(&cfg.TickInterval, "tick", cfg.TickInterval, "interval at which the people age")
	flags.DurationVar(&cfg.StaleAfter, "stale-after", cfg.StaleAfter, "staleness window of the server-seeded data")
	flags.StringVar(&logLevel, "log-level", cfg.LogLevel.String(), "minimum log level (debug, info, warn, error)")
	return cmd
}

