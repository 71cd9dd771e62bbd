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
Package people is the data source of the demo application: a list of people
whose ages keep growing on a timer, and the HTTP handler serving that list as
JSON.
*/
package people

import (
	"context"
	"sync"
	"time"
)

// DefaultTickInterval is the interval at which Run ages all people.
const DefaultTickInterval = 2 * time.Second

// Record describes a single person.
type Record struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
}

// DefaultRecords returns the initial people of the demo.
func DefaultRecords() []Record {
	return []Record{
		{Name: "Hank", Age: 20},
		{Name: "Will", Age: 35},
		{Name: "Peter", Age: 27},
		{Name: "David", Age: 18},
	}
}

// Store owns the list of people. Reads and the periodic updates may happen
// concurrently on different goroutines.
type Store struct {
	mu      sync.RWMutex
	records []Record
	onTick  func()
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithRecords sets the initial records, replacing the default ones.
func WithRecords(records ...Record) StoreOption {
	return func(s *Store) {
		s.records = append([]Record(nil), records...)
	}
}

// WithTickObserver sets a function called after each Tick.
func WithTickObserver(fn func()) StoreOption {
	return func(s *Store) {
		s.onTick = fn
	}
}

// NewStore returns a new Store with the default records, unless specified
// otherwise.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{records: DefaultRecords()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns a copy of the current records, in their original order.
func (s *Store) List() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Record{}, s.records...)
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Tick makes everyone a year older.
func (s *Store) Tick() {
	s.mu.Lock()
	for idx := range s.records {
		s.records[idx].Age++
	}
	s.mu.Unlock()
	if s.onTick != nil {
		s.onTick()
	}
}

// Run ticks the store at the specified interval until the context gets
// cancelled. A non-positive interval means DefaultTickInterval.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}
