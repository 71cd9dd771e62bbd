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

package app

import (
	"github.com/thediveo/spassr/people"
	"github.com/thediveo/spassr/querycache"
	"github.com/thediveo/spassr/render"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/thediveo/success"
)

var _ = Describe("people application", func() {

	seeded := func(value any) *querycache.Snapshot {
		GinkgoHelper()
		cache := querycache.New()
		Expect(cache.Set(PeopleQueryKey, value)).To(Succeed())
		return cache
	}

	It("renders the people list from the cache", func() {
		fn := render.New(Root())
		res := Successful(fn("/", seeded([]people.Record{
			{Name: "Hank", Age: 20},
			{Name: "Will", Age: 35},
		})))
		Expect(res).To(Equal(render.Rendered{
			Markup: "<ul><li>Hank is 20 years old</li><li>Will is 35 years old</li></ul>",
		}))
	})

	It("renders hydrated generic JSON data the same as native data", func() {
		fn := render.New(Root())
		native := Successful(fn("/", seeded([]people.Record{{Name: "Peter", Age: 27}})))
		generic := Successful(fn("/", seeded([]any{
			map[string]any{"name": "Peter", "age": float64(27)},
		})))
		Expect(generic).To(Equal(native))
	})

	It("renders a loading state without data", func() {
		Expect(Successful(render.New(Root())("/", querycache.New()))).To(Equal(render.Rendered{
			Markup: "<ul><li>Loading...</li></ul>",
		}))
	})

	It("renders an error state for undecodable data", func() {
		Expect(Successful(render.New(Root())("/", seeded(42)))).To(Equal(render.Rendered{
			Markup: "<ul><li>Error</li></ul>",
		}))
	})

	It("escapes names", func() {
		res := Successful(render.New(Root())("/", seeded([]people.Record{{Name: "<script>", Age: 1}})))
		Expect(res).To(Equal(render.Rendered{
			Markup: "<ul><li>&lt;script&gt; is 1 years old</li></ul>",
		}))
	})

	It("redirects moved paths", func() {
		fn := render.New(Root(WithRedirect("/old", "/target")))
		cache := seeded(people.DefaultRecords())
		Expect(Successful(fn("/old", cache))).To(Equal(render.Redirected{URL: "/target"}))
		Expect(Successful(fn("/other", cache))).To(BeAssignableToTypeOf(render.Rendered{}))
	})

})
