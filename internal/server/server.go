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

// Package server wires the people demo application together: the people data
// source, its API, the server-side rendering handler, and metrics, all behind
// a chi router.
package server

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/thediveo/spassr"
	"github.com/thediveo/spassr/app"
	"github.com/thediveo/spassr/internal/config"
	"github.com/thediveo/spassr/people"
	"github.com/thediveo/spassr/querycache"
	"github.com/thediveo/spassr/render"
	"github.com/thediveo/spassr/web"
)

// ShutdownTimeout limits how long a graceful shutdown waits for in-flight
// requests.
const ShutdownTimeout = 5 * time.Second

// Server is the people demo server.
type Server struct {
	cfg     config.Config
	logger  *slog.Logger
	store   *people.Store
	metrics *spassr.Metrics
	handler http.Handler
}

// Option configures a Server.
type Option func(*options)

type options struct {
	webFS    fs.FS
	registry *prometheus.Registry
	records  []people.Record
}

// WithWebFS serves the document template and static assets from the
// specified fs in production mode, instead of the embedded ones.
func WithWebFS(fsys fs.FS) Option {
	return func(o *options) {
		o.webFS = fsys
	}
}

// WithRegistry registers the metrics with the specified registry and serves
// it on /metrics, instead of a new registry with Go and process collectors.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) {
		o.registry = reg
	}
}

// WithRecords sets the initial people.
func WithRecords(records ...people.Record) Option {
	return func(o *options) {
		o.records = records
	}
}

// New returns a new Server for the specified configuration. In production
// mode it fails when the document template cannot be loaded.
func New(cfg config.Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	o := options{webFS: web.FS()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = prometheus.NewRegistry()
		o.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	var (
		provider spassr.Provider
		assets   fs.FS
	)
	if cfg.Development {
		assets = os.DirFS(cfg.WebDir)
		provider = spassr.NewDevelopmentProvider(assets, cfg.Index)
	} else {
		p, err := spassr.NewProductionProvider(o.webFS, cfg.Index)
		if err != nil {
			return nil, err
		}
		assets, provider = o.webFS, p
	}

	metrics := spassr.NewMetrics(spassr.WithRegistry(o.registry))
	storeOpts := []people.StoreOption{people.WithTickObserver(metrics.ObserveTick)}
	if o.records != nil {
		storeOpts = append(storeOpts, people.WithRecords(o.records...))
	}
	store := people.NewStore(storeOpts...)

	var appOpts []app.Option
	for from, to := range cfg.Redirects {
		appOpts = append(appOpts, app.WithRedirect(from, to))
	}
	ssr := spassr.NewSSRHandler(provider, render.New(app.Root(appOpts...)),
		spassr.WithStaticAssets(assets, cfg.Index),
		spassr.WithSeeders(PeopleSeeder(store, cfg.StaleAfter)),
		spassr.WithLogger(logger),
		spassr.WithMetrics(metrics))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.GetHead)
	r.Method(http.MethodGet, "/api/people", people.Handler(store, logger))
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(o.registry, promhttp.HandlerOpts{}))
	r.Method(http.MethodGet, "/*", ssr)

	return &Server{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		metrics: metrics,
		handler: r,
	}, nil
}

// PeopleSeeder returns a seeder placing the current people into the query
// cache under the key the application and browser client use.
func PeopleSeeder(store *people.Store, staleAfter time.Duration) spassr.Seeder {
	return func(_ context.Context, cache *querycache.Snapshot) error {
		return cache.Set(app.PeopleQueryKey, store.List(), querycache.WithStaleAfter(staleAfter))
	}
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Store returns the people data source.
func (s *Server) Store() *people.Store { return s.store }

// Run listens on the configured address and serves until the context gets
// cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve ticks the people and serves HTTP requests on the specified listener
// until the context gets cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.store.Run(ctx, s.cfg.TickInterval)

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errch := make(chan error, 1)
	go func() {
		errch <- srv.Serve(ln)
	}()
	s.logger.Info("serving",
		slog.String("addr", ln.Addr().String()),
		slog.Bool("development", s.cfg.Development))

	select {
	case err := <-errch:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errch; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("stopped serving")
	return nil
}
