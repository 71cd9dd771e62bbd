/*
Package render turns a tree of components into HTML markup on the server.

Components are plain functions from a Scope to an Output. They read their data
only from the query cache that has been seeded before rendering, so that the
browser, after hydrating the very same cache, renders identical markup.

A component signals that the requested location has moved by returning
Redirect; such a redirect bubbles up through all enclosing elements and ends
up as a Redirected result instead of markup:

	fn := render.New(root)
	switch res := must(fn("/old", cache)).(type) {
	case render.Redirected:
		http.Redirect(w, r, res.URL, http.StatusMovedPermanently)
	case render.Rendered:
		// splice res.Markup into the document template...
	}
*/
package render
