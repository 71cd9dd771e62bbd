// Copyright 2022 Harald Albrecht.
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
	"embed"
	"errors"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/thediveo/spassr/app"
	"github.com/thediveo/spassr/bootstrap"
	"github.com/thediveo/spassr/people"
	"github.com/thediveo/spassr/querycache"
	"github.com/thediveo/spassr/render"
	"github.com/thediveo/spassr/test/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/thediveo/success"
)

//go:embed test/*
var embeddedFiles embed.FS
var embStaticFs, _ = fs.Sub(embeddedFiles, "test")

func peopleSeeder(store *people.Store) Seeder {
	return func(_ context.Context, cache *querycache.Snapshot) error {
		return cache.Set(app.PeopleQueryKey, store.List(),
			querycache.WithStaleAfter(querycache.DefaultStaleAfter))
	}
}

func newHandler(opts ...SSRHandlerOption) *SSRHandler {
	GinkgoHelper()
	p := Successful(NewProductionProvider(embStaticFs, "index.html"))
	return NewSSRHandler(p, render.New(app.Root(app.WithRedirect("/old", "/target"))),
		append([]SSRHandlerOption{
			WithStaticAssets(embStaticFs, "index.html"),
			WithSeeders(peopleSeeder(people.NewStore())),
		}, opts...)...)
}

func request(path string, header http.Header) *http.Request {
	GinkgoHelper()
	url := Successful(url.Parse("http://foo.bar:12345" + path))
	return &http.Request{
		Method: "GET",
		URL:    url,
		Header: header,
	}
}

var _ = Describe("SSR handler", func() {

	DescribeTable("test has embedded files correctly set up",
		func(name string) {
			f := Successful(embStaticFs.Open(name))
			f.Close()
		},
		Entry("index.html", "index.html"),
		Entry("static/js/some.js", "static/js/some.js"),
	)

	DescribeTable("determines original request path",
		func(path string, header http.Header, expected string) {
			Expect(newHandler().originalReqPath(request(path, header))).To(Equal(expected))
		},
		Entry("/ without proxy headers", "/", nil, "/"),

		Entry("a request path without proxy headers", "/some/path", nil, "/some/path"),
		Entry("/ with X-Forwarded-Prefix header", "/", http.Header{
			ForwardedPrefixHeader: []string{"/"},
		}, "/"),
		Entry("/ with X-Forwarded-Prefix header", "/", http.Header{
			ForwardedPrefixHeader: []string{"/prefix"},
		}, "/prefix"),
		Entry("/foo with X-Forwarded-Prefix header", "/foo", http.Header{
			ForwardedPrefixHeader: []string{"/prefix"},
		}, "/prefix/foo"),

		Entry("/ with X-Forwarded-Uri path-only header", "/", http.Header{
			ForwardedUriHeader: []string{"/"},
		}, "/"),
		Entry("/ with X-Forwarded-Uri path-only empty header", "/", http.Header{
			ForwardedUriHeader: []string{""},
		}, "/"),
		Entry("/ with X-Forwarded-Uri path-only /prefix header", "/", http.Header{
			ForwardedUriHeader: []string{"/prefix"},
		}, "/prefix"),
		Entry("/ with X-Forwarded-Uri schemed header", "/", http.Header{
			ForwardedUriHeader: []string{"http://foo.bar:12345/prefix"},
		}, "/prefix"),
		Entry("/ with X-Forwarded-Uri schemed header and trailing slash", "/", http.Header{
			ForwardedUriHeader: []string{"http://foo.bar:12345/prefix/"},
		}, "/prefix"),
	)

	DescribeTable("determines basename path",
		func(path string, header http.Header, expected string) {
			Expect(newHandler().basename(request(path, header))).To(Equal(expected))
		},
		Entry("/ without proxy headers", "/", nil, "/"),
		Entry("/foo/bar without proxy headers", "/foo/bar", nil, "/"),
		Entry("/ rewritten with prefix /foo", "/", http.Header{
			ForwardedPrefixHeader: []string{"/foo"},
		}, "/foo/"),
		Entry("/foo/bar rewritten with prefix /", "/foo/bar", http.Header{
			ForwardedPrefixHeader: []string{"/"},
		}, "/"),
		Entry("/foo/bar rewritten with empty prefix", "/foo/bar", http.Header{
			ForwardedPrefixHeader: []string{""},
		}, "/"),
		Entry("/foo/bar rewritten with prefix /foo", "/foo/bar", http.Header{
			ForwardedPrefixHeader: []string{"/foo"},
		}, "/foo/"),
		Entry("/foo/bar rewritten with prefix /foo/", "/foo/bar", http.Header{
			ForwardedPrefixHeader: []string{"/foo/"},
		}, "/foo/"),
		Entry("/foo/bar rewritten with prefix /bar", "/foo/bar", http.Header{
			ForwardedPrefixHeader: []string{"/bar"},
		}, "/bar/"), // sic!
		Entry("/foo/bar rewritten with prefix /foo/bar/", "/foo/bar", http.Header{
			ForwardedPrefixHeader: []string{"/foo/bar/"},
		}, "/foo/bar/"), // request outside, so clamp to prefix
	)

	DescribeTable("serves static content with correct status code",
		func(path string, expectedServed bool, expectedCanary string) {
			w := httptest.NewRecorder()
			Expect(newHandler().serveStaticAsset(w, request(path, http.Header{}))).To(Equal(expectedServed))
			if expectedCanary != "" {
				Expect(w.Code).To(Equal(http.StatusOK))
				Expect(w.Body.String()).To(ContainSubstring(expectedCanary))
			}
		},
		Entry("/static/js/some.js", "/static/js/some.js", true, "CANARY JS"),
		Entry("/icon.svg", "/icon.svg", true, "<svg"),
		Entry("/static/foo/bar", "/static/foo/bar", false, ""),
		Entry("/static", "/static", false, ""),
		Entry("/", "/", false, ""),
		Entry("never the template itself", "/index.html", false, ""),
	)

	DescribeTable("serves a static asset using varying fs.FS implementations",
		func(fsys fs.FS) {
			p := Successful(NewProductionProvider(fsys, "index.html"))
			h := NewSSRHandler(p, render.New(app.Root()), WithStaticAssets(fsys, "index.html"))
			w := httptest.NewRecorder()
			h.ServeHTTP(w, request("/icon.svg", nil))
			Expect(w.Code).To(Equal(http.StatusOK))
		},
		Entry("from embedded fs", embStaticFs),
		Entry("from test dir fs", os.DirFS("./test")),
	)

	When("rendering", func() {

		It("serves the composed document", func() {
			w := httptest.NewRecorder()
			newHandler().ServeHTTP(w, request("/", nil))
			doc := w.Document()
			Expect(doc.Find("title").Text()).To(Equal("CANARY INDEX"))
			items := doc.Find("#root > ul > li")
			Expect(items.Length()).To(Equal(4))
			Expect(items.First().Text()).To(Equal("Hank is 20 years old"))
			Expect(w.Body.String()).NotTo(ContainSubstring(AppHTMLPlaceholder))
			Expect(w.Body.String()).NotTo(ContainSubstring(QueryStatePlaceholder))
			Expect(w.Header().Get("Cache-Control")).To(BeEmpty())
		})

		It("renders unknown paths as the single page application", func() {
			w := httptest.NewRecorder()
			newHandler().ServeHTTP(w, request("/some/client/route", nil))
			Expect(w.Document().Find("#root li").Length()).To(Equal(4))
		})

		DescribeTable("rewrites the base element",
			func(path, prefix string, expected string) {
				w := httptest.NewRecorder()
				newHandler().ServeHTTP(w, request(path, http.Header{
					ForwardedPrefixHeader: []string{prefix},
				}))
				base := w.Document().Find("base")
				Expect(base.Length()).To(Equal(1), "<base> element lost")
				href, _ := base.First().Attr("href")
				Expect(href).To(Equal(expected))
			},
			Entry("prefix /foo", "/bar/baz", "/foo", "/foo/"),
			Entry("/", "/", "/", "/"),
		)

		It("supports application-specific rewriting", func() {
			const canary = "<!-- SOMETHING DIFFERENT -->"
			h := newHandler(WithIndexRewriter(func(r *http.Request, index string) string {
				return index + canary
			}))
			w := httptest.NewRecorder()
			h.ServeHTTP(w, request("/", nil))
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).To(HaveSuffix(canary))
		})

		It("redirects instead of rendering", func() {
			w := httptest.NewRecorder()
			newHandler().ServeHTTP(w, request("/old", nil))
			Expect(w.Location()).To(Equal("/target"))
			Expect(w.Body.String()).NotTo(ContainSubstring("CANARY INDEX"))
		})

		It("gives each request its own query cache", func() {
			var caches []*querycache.Snapshot
			count := 0
			h := NewSSRHandler(
				Successful(NewProductionProvider(embStaticFs, "index.html")),
				render.New(app.Root()),
				WithSeeders(func(_ context.Context, cache *querycache.Snapshot) error {
					count++
					caches = append(caches, cache)
					Expect(cache.Len()).To(BeZero())
					return cache.Set("count", count)
				}))
			for range [2]struct{}{} {
				w := httptest.NewRecorder()
				h.ServeHTTP(w, request("/", nil))
				Expect(w.Code).To(Equal(http.StatusOK))
			}
			Expect(caches).To(HaveLen(2))
			Expect(caches[0]).NotTo(BeIdenticalTo(caches[1]))
		})

		It("fails on seeding errors", func() {
			h := newHandler(WithSeeders(func(context.Context, *querycache.Snapshot) error {
				return errors.New("no data for you")
			}))
			w := httptest.NewRecorder()
			h.ServeHTTP(w, request("/", nil))
			Expect(w.Code).To(Equal(http.StatusInternalServerError))
			Expect(w.Body.String()).To(ContainSubstring("no data for you"))
		})

		DescribeTable("fails on render errors",
			func(mode Mode, expectStack bool) {
				var p Provider = Successful(NewProductionProvider(embStaticFs, "index.html"))
				if mode == Development {
					p = NewDevelopmentProvider(embStaticFs, "index.html")
				}
				h := NewSSRHandler(p, render.New(func(render.Scope) render.Output {
					panic("D'oh!")
				}))
				w := httptest.NewRecorder()
				h.ServeHTTP(w, request("/crash", nil))
				Expect(w.Code).To(Equal(http.StatusInternalServerError))
				Expect(w.Header().Get("Content-Type")).To(HavePrefix("text/plain"))
				Expect(w.Body.String()).To(HavePrefix(`rendering "/crash" failed: D'oh!`))
				if expectStack {
					Expect(w.Body.String()).To(ContainSubstring("goroutine"))
				} else {
					Expect(w.Body.String()).NotTo(ContainSubstring("goroutine"))
				}
			},
			Entry("production mode hides the stack", Production, false),
			Entry("development mode shows the stack", Development, true),
		)

		It("surfaces a missing template on request in development mode", func() {
			h := NewSSRHandler(NewDevelopmentProvider(embStaticFs, "bonkers.html"), render.New(app.Root()))
			w := httptest.NewRecorder()
			h.ServeHTTP(w, request("/", nil))
			Expect(w.Code).To(Equal(http.StatusInternalServerError))
			Expect(w.Body.String()).To(ContainSubstring("cannot load document template"))
		})

		It("disables caching in development mode", func() {
			h := NewSSRHandler(NewDevelopmentProvider(embStaticFs, "index.html"), render.New(app.Root()))
			w := httptest.NewRecorder()
			h.ServeHTTP(w, request("/", nil))
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Header().Get("Cache-Control")).To(Equal("no-store"))
		})

		It("records metrics", func() {
			m := NewMetrics(WithRegistry(prometheus.NewRegistry()))
			h := newHandler(WithMetrics(m))
			for _, path := range []string{"/", "/old", "/static/js/some.js", "/"} {
				h.ServeHTTP(httptest.NewRecorder(), request(path, nil))
			}
			Expect(testutil.ToFloat64(m.rendersTotal.WithLabelValues(OutcomeRendered))).To(Equal(2.0))
			Expect(testutil.ToFloat64(m.rendersTotal.WithLabelValues(OutcomeRedirected))).To(Equal(1.0))
			Expect(testutil.ToFloat64(m.staticTotal)).To(Equal(1.0))
		})

	})

	When("hydrating the served document", func() {

		It("renders identical markup from the hydrated state", func() {
			store := people.NewStore()
			store.Tick()
			fn := render.New(app.Root())
			h := NewSSRHandler(
				Successful(NewProductionProvider(embStaticFs, "index.html")),
				fn, WithSeeders(peopleSeeder(store)))
			w := httptest.NewRecorder()
			h.ServeHTTP(w, request("/", nil))

			cache := Successful(bootstrap.Hydrate(w.Document(), "/", fn))
			records, ok, err := querycache.Lookup[[]people.Record](cache, app.PeopleQueryKey)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(records).To(Equal(store.List()))
		})

		It("keeps the server's data fresh when the client evaluates it", func() {
			t0 := time.UnixMilli(1_700_000_000_000)
			h := newHandler(WithClock(func() time.Time { return t0 }))
			w := httptest.NewRecorder()
			h.ServeHTTP(w, request("/", nil))

			clientNow := t0.Add(250 * time.Millisecond)
			cache := Successful(bootstrap.Hydrate(w.Document(), "/", render.New(app.Root()),
				querycache.WithClock(func() time.Time { return clientNow })))
			Expect(cache.IsStale(app.PeopleQueryKey)).To(BeFalse())
			clientNow = t0.Add(querycache.DefaultStaleAfter + time.Second)
			Expect(cache.IsStale(app.PeopleQueryKey)).To(BeTrue())
		})

		It("embeds the state as a script assignment", func() {
			w := httptest.NewRecorder()
			newHandler().ServeHTTP(w, request("/", nil))
			var script string
			w.Document().Find("script").Each(func(_ int, s *goquery.Selection) {
				if strings.Contains(s.Text(), bootstrap.StateGlobal) {
					script = s.Text()
				}
			})
			Expect(script).To(HavePrefix("window." + bootstrap.StateGlobal + ` = {"queries":[`))
		})

	})

})
