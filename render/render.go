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

package render

import (
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/thediveo/spassr/querycache"
	"golang.org/x/net/html"
)

// Result is the outcome of rendering: either Rendered or Redirected.
type Result interface {
	result()
}

// Rendered carries the markup of a successfully rendered tree.
type Rendered struct {
	Markup string
}

// Redirected carries the target URL when the tree signalled that the
// requested path has moved.
type Redirected struct {
	URL string
}

func (Rendered) result()   {}
func (Redirected) result() {}

// Func renders the application for the given path, using only the data
// already present in the cache. Given the same path and cache contents it
// always returns the same markup.
type Func func(path string, cache *querycache.Snapshot) (Result, error)

// Error is returned when a component fails while rendering.
type Error struct {
	Path  string
	Cause any
	Stack []byte
}

func (e *Error) Error() string {
	return fmt.Sprintf("rendering %q failed: %v", e.Path, e.Cause)
}

// Unwrap returns the underlying error, if the component failed with an
// error value.
func (e *Error) Unwrap() error {
	if err, ok := e.Cause.(error); ok {
		return err
	}
	return nil
}

// New returns a Func rendering the tree of the specified root component.
func New(root Component) Func {
	return func(path string, cache *querycache.Snapshot) (res Result, err error) {
		defer func() {
			if cause := recover(); cause != nil {
				res = nil
				err = &Error{Path: path, Cause: cause, Stack: debug.Stack()}
			}
		}()
		if cache == nil {
			cache = querycache.New()
		}
		out := root(Scope{Path: path, Cache: cache})
		if url := out.RedirectTo(); url != "" {
			return Redirected{URL: url}, nil
		}
		markup, err := Markup(out.Nodes())
		if err != nil {
			return nil, &Error{Path: path, Cause: err}
		}
		return Rendered{Markup: markup}, nil
	}
}

// Markup serializes the specified nodes into HTML text.
func Markup(nodes []*html.Node) (string, error) {
	var b strings.Builder
	for _, n := range nodes {
		if err := html.Render(&b, n); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}
