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

import "strings"

// AppHTMLPlaceholder marks where the rendered application markup goes into
// the document template.
const AppHTMLPlaceholder = "<!--app-html-->"

// QueryStatePlaceholder marks where the dehydrated query cache state goes
// into the document template. It needs to be placed on the right-hand side
// of a script assignment, such as:
//
//	<script>window.__QUERY_STATE__ = <!--query-state-->;</script>
const QueryStatePlaceholder = "<!--query-state-->"

// Compose splices the rendered markup and the dehydrated query state into
// the document template, each replacing the first occurrence of its
// placeholder. Missing placeholders silently drop the corresponding content.
// The spliced-in contents are never searched for placeholders themselves.
func Compose(template, markup, state string) string {
	type splice struct {
		at          int
		placeholder string
		content     string
	}
	var splices []splice
	for _, s := range []splice{
		{placeholder: AppHTMLPlaceholder, content: markup},
		{placeholder: QueryStatePlaceholder, content: state},
	} {
		if s.at = strings.Index(template, s.placeholder); s.at >= 0 {
			splices = append(splices, s)
		}
	}
	if len(splices) == 2 && splices[1].at < splices[0].at {
		splices[0], splices[1] = splices[1], splices[0]
	}
	var b strings.Builder
	b.Grow(len(template) + len(markup) + len(state))
	pos := 0
	for _, s := range splices {
		b.WriteString(template[pos:s.at])
		b.WriteString(s.content)
		pos = s.at + len(s.placeholder)
	}
	b.WriteString(template[pos:])
	return b.String()
}
