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

/*
Package app contains the component tree of the people demo application,
shared by the server-side renderer and mirrored by the browser client in
web/static/js/client.js.
*/
package app

import (
	"fmt"

	"github.com/thediveo/spassr/people"
	"github.com/thediveo/spassr/querycache"
	"github.com/thediveo/spassr/render"
)

// PeopleQueryKey is the query cache key of the people list. The browser client
// uses the very same key, otherwise it would ignore the hydrated data and
// immediately refetch.
const PeopleQueryKey = "people"

// Option configures the application's root component.
type Option func(*config)

type config struct {
	redirects map[string]string
}

// WithRedirect declares that the path from has permanently moved to the
// location to.
func WithRedirect(from, to string) Option {
	return func(c *config) {
		c.redirects[from] = to
	}
}

// Root returns the root component of the application.
func Root(opts ...Option) render.Component {
	c := &config{redirects: map[string]string{}}
	for _, opt := range opts {
		opt(c)
	}
	return func(s render.Scope) render.Output {
		return render.Fragment(
			moved(s, c.redirects),
			PeopleList(s),
		)
	}
}

// moved redirects away from paths that have moved elsewhere, and renders
// nothing otherwise.
func moved(s render.Scope, redirects map[string]string) render.Output {
	if to, ok := redirects[s.Path]; ok {
		return render.Redirect(to)
	}
	return render.Fragment()
}

// PeopleList renders the list of people found in the query cache under
// PeopleQueryKey.
func PeopleList(s render.Scope) render.Output {
	records, ok, err := querycache.Lookup[[]people.Record](s.Cache, PeopleQueryKey)
	switch {
	case err != nil:
		return statusList("Error")
	case !ok:
		return statusList("Loading...")
	}
	return render.Element("ul", nil,
		render.Map(records, func(r people.Record) render.Output {
			return render.Element("li", nil, Person(r))
		}))
}

// Person renders a single person.
func Person(r people.Record) render.Output {
	return render.Text(fmt.Sprintf("%s is %d years old", r.Name, r.Age))
}

func statusList(status string) render.Output {
	return render.Element("ul", nil, render.Element("li", nil, render.Text(status)))
}
