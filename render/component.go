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
	"sort"
	"strings"

	"github.com/thediveo/spassr/querycache"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Scope is what a Component gets to see while rendering: the request path
// and the pre-seeded query cache. Components must only read from the cache;
// they never fetch data themselves.
type Scope struct {
	Path  string
	Cache *querycache.Snapshot
}

// Component renders a part of the application's tree.
type Component func(Scope) Output

// Output is what a Component produces: either markup nodes or a redirect
// target. Redirects travel upwards through Element and Fragment, so the
// outermost caller learns about a redirect deep down in the tree without any
// shared mutable state.
type Output struct {
	nodes    []*html.Node
	redirect string
}

// Nodes returns the rendered nodes.
func (o Output) Nodes() []*html.Node { return o.nodes }

// RedirectTo returns the redirect target, if any, otherwise "".
func (o Output) RedirectTo() string { return o.redirect }

// Redirect returns an Output signalling that the current location has moved
// to the specified url.
func Redirect(url string) Output {
	return Output{redirect: url}
}

// Text returns an Output consisting of a single text node. The text gets
// escaped when serialized. Each invalid UTF-8 byte is replaced by U+FFFD and
// NUL characters are dropped, as HTML parsers and JSON encoders would do
// otherwise on their own.
func Text(text string) Output {
	return Output{nodes: []*html.Node{{Type: html.TextNode, Data: cleanText(text)}}}
}

// cleanText returns the text as valid UTF-8 without any NUL characters.
func cleanText(text string) string {
	return strings.Map(func(r rune) rune {
		if r == 0 {
			return -1
		}
		return r
	}, text)
}

// Attr is an element attribute.
type Attr struct {
	Name, Value string
}

// Attrs builds a list of element attributes from a map, ordering the
// attributes by name in order to render deterministically.
func Attrs(m map[string]string) []Attr {
	attrs := make([]Attr, 0, len(m))
	for name, value := range m {
		attrs = append(attrs, Attr{Name: name, Value: value})
	}
	sort.Slice(attrs, func(i, j int) bool { return attrs[i].Name < attrs[j].Name })
	return attrs
}

// Element returns an Output with a single element node of the given tag,
// attributes, and children. If any child signals a redirect, the element is
// dropped and the first redirect is passed on instead.
func Element(tag string, attrs []Attr, children ...Output) Output {
	if url := firstRedirect(children); url != "" {
		return Redirect(url)
	}
	el := &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}
	for _, attr := range attrs {
		el.Attr = append(el.Attr, html.Attribute{Key: attr.Name, Val: attr.Value})
	}
	for _, child := range children {
		for _, n := range child.nodes {
			el.AppendChild(n)
		}
	}
	return Output{nodes: []*html.Node{el}}
}

// Fragment groups several outputs without a wrapping element.
func Fragment(children ...Output) Output {
	if url := firstRedirect(children); url != "" {
		return Redirect(url)
	}
	var nodes []*html.Node
	for _, child := range children {
		nodes = append(nodes, child.nodes...)
	}
	return Output{nodes: nodes}
}

// Map renders a Component for each item.
func Map[T any](items []T, fn func(T) Output) Output {
	outputs := make([]Output, 0, len(items))
	for _, item := range items {
		outputs = append(outputs, fn(item))
	}
	return Fragment(outputs...)
}

func firstRedirect(outputs []Output) string {
	for _, o := range outputs {
		if o.redirect != "" {
			return o.redirect
		}
	}
	return ""
}
