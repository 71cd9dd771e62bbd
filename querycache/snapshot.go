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
	"sort"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// DefaultStaleAfter is the staleness window used when setting an entry
// without an explicit WithStaleAfter option. It must comfortably exceed the
// time between rendering a document on the server and the browser evaluating
// the hydrated cache, otherwise the client throws away the server's data and
// flashes its loading state.
const DefaultStaleAfter = 5 * time.Second

// ErrEmptyKey is returned when trying to set an entry without a key.
var ErrEmptyKey = errors.New("query key must not be empty")

// Entry is a single fetched-data item together with its freshness metadata.
type Entry struct {
	Key        string
	Value      any
	FetchedAt  time.Time
	StaleAfter time.Duration
}

// IsStale returns true if the entry's staleness window has passed at the
// specified point in time.
func (e Entry) IsStale(now time.Time) bool {
	return now.Sub(e.FetchedAt) > e.StaleAfter
}

// Snapshot is a key-value store of fetched-data entries. On the server a
// fresh Snapshot is allocated per request; it must never be shared between
// requests.
type Snapshot struct {
	mu      sync.RWMutex
	entries map[string]Entry
	now     func() time.Time
}

// Option configures a Snapshot when creating or hydrating it.
type Option func(*Snapshot)

// WithClock sets the clock the Snapshot uses to timestamp new entries and to
// evaluate staleness. It defaults to time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Snapshot) {
		if now != nil {
			s.now = now
		}
	}
}

// New returns a new and empty Snapshot.
func New(opts ...Option) *Snapshot {
	s := &Snapshot{
		entries: map[string]Entry{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetOption configures an individual entry when setting it.
type SetOption func(*Entry)

// WithStaleAfter sets the staleness window of an entry.
func WithStaleAfter(d time.Duration) SetOption {
	return func(e *Entry) {
		e.StaleAfter = d
	}
}

// Set inserts or overwrites the entry for key, recording the current time as
// its fetch time.
func (s *Snapshot) Set(key string, value any, opts ...SetOption) error {
	if key == "" {
		return ErrEmptyKey
	}
	e := Entry{
		Key:        key,
		Value:      value,
		FetchedAt:  s.now(),
		StaleAfter: DefaultStaleAfter,
	}
	for _, opt := range opts {
		opt(&e)
	}
	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()
	return nil
}

// Get returns the value stored for key and true, or nil and false if there
// is no such entry.
func (s *Snapshot) Get(key string) (any, bool) {
	e, ok := s.Entry(key)
	if !ok {
		return nil, false
	}
	return e.Value, true
}

// Entry returns the complete entry for key, including its freshness
// metadata.
func (s *Snapshot) Entry(key string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	return e, ok
}

// IsStale returns true if the entry for key is stale at this very moment.
// Missing entries are always stale, as they need to be fetched.
func (s *Snapshot) IsStale(key string) bool {
	e, ok := s.Entry(key)
	if !ok {
		return true
	}
	return e.IsStale(s.now())
}

// Keys returns the keys of all entries in lexical order.
func (s *Snapshot) Keys() []string {
	s.mu.RLock()
	keys := make([]string, 0, len(s.entries))
	for key := range s.entries {
		keys = append(keys, key)
	}
	s.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// Len returns the number of entries.
func (s *Snapshot) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Lookup returns the value for key converted into the type T. Values set
// directly in their native type are returned as is; values originating from
// a hydrated snapshot are generic JSON values and thus get converted.
func Lookup[T any](s *Snapshot, key string) (T, bool, error) {
	var zero T
	v, ok := s.Get(key)
	if !ok {
		return zero, false, nil
	}
	if t, ok := v.(T); ok {
		return t, true, nil
	}
	raw, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(v)
	if err != nil {
		return zero, true, fmt.Errorf("query %q: %w", key, err)
	}
	var t T
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(raw, &t); err != nil {
		return zero, true, fmt.Errorf("query %q: %w", key, err)
	}
	return t, true, nil
}
