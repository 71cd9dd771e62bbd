/*
Package querycache implements the query cache snapshot shared between the
server-side renderer and the browser: a key-value store of fetched data with
per-entry staleness windows.

On the server, a Snapshot is seeded with data before rendering, then
dehydrated into JSON text that gets embedded into the served document. The
browser hydrates the same state again, so its first render sees exactly the
data the server rendered with.

	s := querycache.New()
	_ = s.Set("people", records, querycache.WithStaleAfter(5*time.Second))
	state, _ := s.Dehydrate()
	text, _ := state.JSON()
*/
package querycache
