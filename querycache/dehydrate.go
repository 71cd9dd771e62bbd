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

package querycache

import (
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// ErrInvalidState is returned when dehydrated state text cannot be parsed.
var ErrInvalidState = errors.New("dehydrated query state is not valid")

// json escapes "<", ">", and "&" so that the resulting text can be safely
// placed inside a <script> element without prematurely ending it.
var json = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
}.Froze()

// DehydratedState is the serializable form of a Snapshot. Its JSON
// representation is what the browser client reads at page load.
type DehydratedState struct {
	Queries []DehydratedQuery `json:"queries"`
}

// DehydratedQuery is the serializable form of a single Entry. Times are in
// milliseconds, as expected by the browser client.
type DehydratedQuery struct {
	QueryKey  string     `json:"queryKey"`
	State     QueryState `json:"state"`
	StaleTime int64      `json:"staleTime"`
}

// QueryState carries the fetched data together with the time it was fetched
// at, in milliseconds since the Unix epoch.
type QueryState struct {
	Data          jsoniter.RawMessage `json:"data"`
	DataUpdatedAt int64               `json:"dataUpdatedAt"`
}

// Dehydrate returns a serializable snapshot of all entries, ordered by key.
func (s *Snapshot) Dehydrate() (DehydratedState, error) {
	state := DehydratedState{Queries: []DehydratedQuery{}}
	for _, key := range s.Keys() {
		e, ok := s.Entry(key)
		if !ok {
			continue
		}
		data, err := json.Marshal(e.Value)
		if err != nil {
			return DehydratedState{}, fmt.Errorf("dehydrating query %q: %w", key, err)
		}
		state.Queries = append(state.Queries, DehydratedQuery{
			QueryKey: key,
			State: QueryState{
				Data:          data,
				DataUpdatedAt: e.FetchedAt.UnixMilli(),
			},
			StaleTime: e.StaleAfter.Milliseconds(),
		})
	}
	return state, nil
}

// JSON returns the dehydrated state as JSON text suitable for embedding into
// a script element.
func (d DehydratedState) JSON() (string, error) {
	text, err := json.MarshalToString(d)
	if err != nil {
		return "", err
	}
	return text, nil
}

// ParseDehydrated parses the JSON text of a dehydrated state, as produced by
// DehydratedState.JSON.
func ParseDehydrated(text string) (DehydratedState, error) {
	var d DehydratedState
	if err := json.UnmarshalFromString(text, &d); err != nil {
		return DehydratedState{}, fmt.Errorf("%w: %s", ErrInvalidState, err.Error())
	}
	return d, nil
}

// Hydrate returns a new Snapshot with entries equivalent to the ones in the
// dehydrated state. The fetch times of the entries are kept, so staleness
// is evaluated relative to when the data was originally fetched.
func Hydrate(d DehydratedState, opts ...Option) (*Snapshot, error) {
	s := New(opts...)
	for _, q := range d.Queries {
		if q.QueryKey == "" {
			return nil, fmt.Errorf("%w: %s", ErrInvalidState, ErrEmptyKey.Error())
		}
		var value any
		if len(q.State.Data) > 0 {
			if err := json.Unmarshal(q.State.Data, &value); err != nil {
				return nil, fmt.Errorf("%w: query %q: %s", ErrInvalidState, q.QueryKey, err.Error())
			}
		}
		s.entries[q.QueryKey] = Entry{
			Key:        q.QueryKey,
			Value:      value,
			FetchedAt:  time.UnixMilli(q.State.DataUpdatedAt),
			StaleAfter: time.Duration(q.StaleTime) * time.Millisecond,
		}
	}
	return s, nil
}
