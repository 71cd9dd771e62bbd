/*
Package spassr renders "Single Page Applications" (SPAs) on the server and
hands the data used for rendering over to the browser, so that the client-side
application hydrates the server-rendered markup instead of painting it anew.

The SSRHandler type implements http.Handler to serve static assets and to
render all other paths. For each rendering request it seeds a fresh query
cache, renders the application's component tree, and splices both the markup
and the dehydrated query cache state into the document template at the
AppHTMLPlaceholder and QueryStatePlaceholder, respectively.

The document template comes from a Provider: a DevelopmentProvider rereads the
template on every request, while a ProductionProvider loads it exactly once
and refuses to be created if there is no template.

The base element of the document template gets adjusted to the original
request path, based on forwarding proxy headers. This allows serving the SPA
from varying base paths without rebuilding it.
*/
package spassr
