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

package spassr

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/thediveo/spassr/querycache"
	"github.com/thediveo/spassr/render"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ForwardedPrefixHeader, if present, specifies the prefix that need to be
// preprended to the request's URI path in order to learn the original path
// when hitting the path rewriting proxy.
const ForwardedPrefixHeader = "X-Forwarded-Prefix"

// ForwardedUriHeader, if present, specifies the original URI (or sometimes only
// the original URI path) of a request when hitting the first path rewriting
// proxy.
const ForwardedUriHeader = "X-Forwarded-Uri"

// TracerName is the name of the OpenTelemetry tracer used for render spans.
const TracerName = "github.com/thediveo/spassr"

// baseRe matches the base element in the document template in order to
// dynamically rewrite the base the SPA is served from. The template must stay
// usable as a plain index.html at any time, so Go's templating is out.
//
// Please note: "*?" instead of "*" ensures that our irregular expression
// doesn't get too greedy, gobbling much more than it should until the last(!)
// empty element.
var baseRe = regexp.MustCompile(`(<base href=").*?("\s*/?>)`)

// Seeder fetches data and places it into the per-request query cache before
// rendering. Rendering itself never fetches.
type Seeder func(ctx context.Context, cache *querycache.Snapshot) error

// IndexRewriter rewrites (parts) of the document template for a specific
// request, after the base element has been updated and before the rendered
// markup and query state are spliced in.
type IndexRewriter func(r *http.Request, template string) string

// SSRHandler implements an http.Handler that serves static assets when they
// exist and otherwise renders the application on the server for the request
// path. Every render gets its own, freshly seeded query cache, whose
// dehydrated state is embedded into the served document for the browser to
// pick up.
type SSRHandler struct {
	provider          Provider      // document template provider.
	render            render.Func   // renders the application's markup.
	seeders           []Seeder      // seed each request's query cache.
	fs                fs.FS         // optional FS to serve static assets from.
	index             string        // (unrooted) template path inside fs, never served as is.
	staticfileHandler http.Handler  // FS adapted to http's file serving handler needs.
	indexRewriter     IndexRewriter // optional application-specific template rewriting.
	logger            *slog.Logger
	metrics           *Metrics
	tracer            trace.Tracer
	clock             func() time.Time
}

// SSRHandlerOption sets optional properties at the time of creating an
// SSRHandler.
type SSRHandlerOption func(*SSRHandler)

// NewSSRHandler returns a new HTTP handler rendering documents using the
// template from the specified provider and the specified render function.
func NewSSRHandler(provider Provider, fn render.Func, opts ...SSRHandlerOption) *SSRHandler {
	h := &SSRHandler{
		provider: provider,
		render:   fn,
		logger:   slog.Default(),
		tracer:   otel.Tracer(TracerName),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// WithStaticAssets serves static assets from the specified fs. The document
// template named index is never served as a static asset, as it contains the
// unprocessed placeholders.
//
// In order to serve the static resources from a directory on the OS file
// system, use os.DirFS:
//
//	h := NewSSRHandler(p, fn, WithStaticAssets(os.DirFS("/opt/data/myspa"), "index.html"))
func WithStaticAssets(fsys fs.FS, index string) SSRHandlerOption {
	return func(h *SSRHandler) {
		h.fs = fsys
		h.index = cleanIndex(index)
		h.staticfileHandler = http.FileServer(http.FS(fsys))
	}
}

// WithSeeders adds seeders filling the query cache of each request before
// rendering.
func WithSeeders(seeders ...Seeder) SSRHandlerOption {
	return func(h *SSRHandler) {
		h.seeders = append(h.seeders, seeders...)
	}
}

// WithIndexRewriter sets the specified IndexRewriter.
func WithIndexRewriter(rewriter IndexRewriter) SSRHandlerOption {
	return func(h *SSRHandler) {
		h.indexRewriter = rewriter
	}
}

// WithLogger sets the logger, defaulting to slog.Default.
func WithLogger(logger *slog.Logger) SSRHandlerOption {
	return func(h *SSRHandler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithMetrics records render and static asset metrics.
func WithMetrics(m *Metrics) SSRHandlerOption {
	return func(h *SSRHandler) {
		h.metrics = m
	}
}

// WithTracerProvider sets the tracer provider for render spans, defaulting
// to the global one.
func WithTracerProvider(tp trace.TracerProvider) SSRHandlerOption {
	return func(h *SSRHandler) {
		if tp != nil {
			h.tracer = tp.Tracer(TracerName)
		}
	}
}

// WithClock sets the clock used to timestamp query cache entries.
func WithClock(now func() time.Time) SSRHandlerOption {
	return func(h *SSRHandler) {
		if now != nil {
			h.clock = now
		}
	}
}

// ServeHTTP either serves a static asset when available or otherwise renders
// the application for the request path. This behavior is required for SPAs
// with client-side DOM routers, as otherwise bookmarking (router) links or
// reloading an SPA with the current route other than "/" would fail.
func (h *SSRHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Slapping "/" ensures that path.Clean resolves any parent directory
	// references relative to the root, so they cannot escape the static
	// assets.
	r.URL.Path = path.Clean("/" + r.URL.Path)
	if h.fs != nil && h.serveStaticAsset(w, r) {
		h.metrics.ObserveStatic()
		return
	}
	h.serveRendered(w, r)
}

// serveRendered renders the application and serves either the composed
// document, a redirect, or the failure.
func (h *SSRHandler) serveRendered(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := h.tracer.Start(r.Context(), "spassr.render",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("spassr.path", r.URL.Path),
			attribute.String("spassr.mode", h.provider.Mode().String())))
	defer span.End()

	outcome := OutcomeFailed
	defer func() {
		span.SetAttributes(attribute.String("spassr.outcome", outcome))
		h.metrics.ObserveRender(outcome, time.Since(start))
	}()

	doc, redirect, err := h.renderDocument(ctx, r)
	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.logger.ErrorContext(ctx, "server-side rendering failed",
			slog.String("path", r.URL.Path),
			slog.String("err", err.Error()))
		RenderFailure(w, err, h.provider.Mode())
	case redirect != "":
		outcome = OutcomeRedirected
		h.logger.DebugContext(ctx, "redirecting",
			slog.String("path", r.URL.Path),
			slog.String("location", redirect))
		http.Redirect(w, r, redirect, http.StatusMovedPermanently)
	default:
		outcome = OutcomeRendered
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if h.provider.Mode() == Development {
			w.Header().Set("Cache-Control", "no-store")
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(doc)))
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			_, _ = io.WriteString(w, doc)
		}
	}
}

// renderDocument seeds a new query cache, renders the application, and
// composes the final document. If the application signals a redirect, only
// the redirect target is returned.
func (h *SSRHandler) renderDocument(ctx context.Context, r *http.Request) (doc string, redirect string, err error) {
	template, err := h.provider.Template(r)
	if err != nil {
		return "", "", fmt.Errorf("cannot load document template: %w", err)
	}
	cache := querycache.New(querycache.WithClock(h.clock))
	for _, seed := range h.seeders {
		if err := seed(ctx, cache); err != nil {
			return "", "", fmt.Errorf("cannot seed query cache: %w", err)
		}
	}
	res, err := h.render(r.URL.Path, cache)
	if err != nil {
		return "", "", err
	}
	var markup string
	switch res := res.(type) {
	case render.Redirected:
		return "", res.URL, nil
	case render.Rendered:
		markup = res.Markup
	default:
		return "", "", fmt.Errorf("unexpected render result %T", res)
	}
	dehydrated, err := cache.Dehydrate()
	if err != nil {
		return "", "", err
	}
	state, err := dehydrated.JSON()
	if err != nil {
		return "", "", fmt.Errorf("cannot serialize query state: %w", err)
	}
	// Sanitize the base path so it cannot interfere with our regexp replacement
	// operations where we need to use "$1" and "$2" back references. As this
	// ain't VMS (shudder), we don't need "$" in SPA paths anyway.
	base := strings.ReplaceAll(h.basename(r), "$", "")
	template = baseRe.ReplaceAllString(template, "${1}"+base+"${2}")
	if h.indexRewriter != nil {
		template = h.indexRewriter(r, template)
	}
	return Compose(template, markup, state), "", nil
}

// serveStaticAsset tries to serve a static asset specified in uripath from the
// SSRHandler's fs and returning true if successful. If no such static asset
// exists, nothing is served and false is returned instead.
//
// IMPORTANT: the passed r.URL.Path must have already been sanitized.
func (h *SSRHandler) serveStaticAsset(w http.ResponseWriter, r *http.Request) bool {
	name := r.URL.Path[1:] // ...fs.FS uses unrooted paths.
	if name == "" || name == h.index {
		return false // the root and the template itself always get rendered.
	}
	// fs.Stat works around fs.FS implementations that don't support
	// fs.StatFS, so we can rely on it for telling plain files apart.
	info, err := fs.Stat(h.fs, name)
	if err == nil && info.Mode()&os.ModeType == 0 {
		h.staticfileHandler.ServeHTTP(w, r)
		return true
	}
	// If we got an error and it isn't a missing static asset, then normalize
	// (or rather, sanitize) the error and send that back to the client.
	if err != nil && !os.IsNotExist(err) {
		NormalizedHttpError(w, err)
		return true
	}
	return false
}

// originalReqPath returns the (hopefully) original path when hitting the first
// proxy in a chain, based on what has been passed down to us. If no suitable
// forwarding information is present, the original -- and already sanitized --
// request URL path.
func (h *SSRHandler) originalReqPath(r *http.Request) string {
	// Was the request path rewritten? Then the original request path was the
	// forwarded prefix, followed by the remaining part we now see in the
	// request.
	if fwprefix := r.Header.Get(ForwardedPrefixHeader); fwprefix != "" {
		fwprefix = path.Clean("/" + fwprefix)
		return path.Join(fwprefix, r.URL.Path)
	}
	// Some proxies pass only the request path, others the full original URI.
	if fwurl := r.Header.Get(ForwardedUriHeader); fwurl != "" {
		if strings.HasPrefix(fwurl, "/") {
			return path.Clean(fwurl)
		}
		if u, err := url.Parse(fwurl); err == nil {
			return path.Clean("/" + u.Path)
		}
	}
	return r.URL.Path
}

// basename returns the URI request path base based on the given request, by
// consulting proxy headers when available. Rewriting forwarding proxies need to
// preserve the original client-side request URI path for this to work; if
// deriving the base name is impossible, the base is taken to be "/" from the
// clients' perspective.
func (h *SSRHandler) basename(r *http.Request) string {
	reqPath := r.URL.Path
	originalReqPath := h.originalReqPath(r)
	var base string
	if strings.HasSuffix(reqPath, "/") && !strings.HasSuffix(originalReqPath, "/") {
		// take care of the situation where the reverse proxy redirects from
		// /foo to /foo/ and then rewrites the path to /.
		originalReqPath += "/"
	}
	// If the request path we see is a proper suffix of the original request
	// path, take only the common base part (~prefix).
	if strings.HasSuffix(originalReqPath, reqPath) {
		base = originalReqPath[:len(originalReqPath)-len(reqPath)]
	}
	// The base must always end in "/", as browsers otherwise clip off the
	// final path element.
	if strings.HasSuffix(base, "/") {
		return base
	}
	return base + "/"
}
