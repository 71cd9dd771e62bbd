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
Package bootstrap implements the client side of the hydration contract in Go:
it picks up the query cache state embedded into a server-rendered document,
hydrates a query cache from it, renders the application again for the same
location, and checks that the result is identical to the server-rendered
markup.

The browser client in web/static/js/client.js follows the very same steps;
this package allows checking documents for hydration mismatches in tests and
tooling, in a stricter way than browsers, which only warn about them.
*/
package bootstrap

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/thediveo/spassr/querycache"
	"github.com/thediveo/spassr/render"
)

// StateGlobal is the name of the browser global variable the query state
// gets assigned to.
const StateGlobal = "__QUERY_STATE__"

// RootSelector selects the element the application gets rendered into.
const RootSelector = "#root"

// ErrNoState is returned when a document doesn't contain any embedded query
// state assignment.
var ErrNoState = errors.New("document contains no query state")

// ErrNoRoot is returned when a document lacks the application root element.
var ErrNoRoot = errors.New("document contains no application root element")

// MismatchError is returned when the markup rendered from the hydrated query
// cache differs from the server-rendered markup.
type MismatchError struct {
	Path   string
	Server string
	Client string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("hydration mismatch for %q: server rendered %q, client rendered %q",
		e.Path, e.Server, e.Client)
}

// ExtractState returns the dehydrated query state assigned to StateGlobal in
// one of the document's script elements.
func ExtractState(doc *goquery.Document) (querycache.DehydratedState, error) {
	var (
		text  string
		found bool
	)
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text, found = assignedValue(s.Text())
		return !found
	})
	if !found {
		return querycache.DehydratedState{}, ErrNoState
	}
	return querycache.ParseDehydrated(text)
}

// assignedValue returns the right-hand side of an assignment to StateGlobal
// within the specified script text.
func assignedValue(script string) (string, bool) {
	idx := strings.Index(script, StateGlobal)
	if idx < 0 {
		return "", false
	}
	rhs := strings.TrimLeft(script[idx+len(StateGlobal):], " \t\r\n")
	if !strings.HasPrefix(rhs, "=") {
		return "", false
	}
	rhs = strings.TrimSpace(rhs[1:])
	if end := strings.Index(rhs, "\n"); end >= 0 {
		rhs = rhs[:end]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(rhs), ";")), true
}

// Hydrate reconstructs the query cache from the document's embedded state,
// renders the application for path, and checks the result against the
// markup found inside the document's root element. It returns the hydrated
// query cache on success, and a *MismatchError if the markups differ.
func Hydrate(doc *goquery.Document, path string, fn render.Func, opts ...querycache.Option) (*querycache.Snapshot, error) {
	state, err := ExtractState(doc)
	if err != nil {
		return nil, err
	}
	cache, err := querycache.Hydrate(state, opts...)
	if err != nil {
		return nil, err
	}
	root := doc.Find(RootSelector).First()
	if root.Length() == 0 {
		return nil, ErrNoRoot
	}
	server, err := root.Html()
	if err != nil {
		return nil, err
	}
	res, err := fn(path, cache)
	if err != nil {
		return nil, err
	}
	var client string
	switch res := res.(type) {
	case render.Rendered:
		client = res.Markup
	case render.Redirected:
		client = ""
	}
	if client != server {
		return nil, &MismatchError{Path: path, Server: server, Client: client}
	}
	return cache, nil
}
