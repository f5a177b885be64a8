// Copyright 2025 EarthFocus Labs
//
// Licensed under the Business Source License 1.1 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://mariadb.com/bsl11
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package catalog persists per-collection holdings snapshots: for every
// product and baseline, the resolved time range, boundary ordinals and
// total count. A snapshot makes range queries answerable locally
// without remote round-trips; staleness is an accepted, bounded risk.
package catalog

import (
	"time"
)

// SchemaVersion is written into every snapshot and checked on load.
// An unknown version on disk is a hard error, never silently coerced.
const SchemaVersion = "1.0"

// ClientInfo records which client produced a snapshot.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// BaselineEntry summarizes the holdings of one product baseline.
// TimeStart and TimeEnd are the reference timestamps of the first and
// last known item; FrameStart and FrameEnd are the matching boundary
// ordinals and are omitted when the archive's naming convention does
// not expose one.
type BaselineEntry struct {
	TimeStart  time.Time `json:"time_start"`
	TimeEnd    time.Time `json:"time_end"`
	FrameStart string    `json:"frame_start,omitempty"`
	FrameEnd   string    `json:"frame_end,omitempty"`
	Count      int       `json:"count"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ProductEntry maps baseline version names to their entries.
type ProductEntry struct {
	Baselines map[string]BaselineEntry `json:"baselines"`
}

// Snapshot is the root catalog document for one collection. It is the
// sole persisted representation; product and baseline entries have no
// lifetime outside it.
type Snapshot struct {
	Schema      string                   `json:"schema"`
	GeneratedAt time.Time                `json:"generated_at"`
	Collection  string                   `json:"collection"`
	Client      ClientInfo               `json:"client"`
	Products    map[string]*ProductEntry `json:"products"`
}

// NewSnapshot creates an empty snapshot for a collection.
func NewSnapshot(collection string, client ClientInfo) *Snapshot {
	return &Snapshot{
		Schema:     SchemaVersion,
		Collection: collection,
		Client:     client,
		Products:   map[string]*ProductEntry{},
	}
}

// Clone deep-copies the snapshot so an incremental build can splice new
// entries without mutating the loaded document.
func (s *Snapshot) Clone() *Snapshot {
	out := *s
	out.Products = make(map[string]*ProductEntry, len(s.Products))
	for name, product := range s.Products {
		cp := &ProductEntry{Baselines: make(map[string]BaselineEntry, len(product.Baselines))}
		for baseline, entry := range product.Baselines {
			cp.Baselines[baseline] = entry
		}
		out.Products[name] = cp
	}
	return &out
}

// Product returns the named product entry, creating it when absent.
func (s *Snapshot) Product(name string) *ProductEntry {
	p, ok := s.Products[name]
	if !ok {
		p = &ProductEntry{Baselines: map[string]BaselineEntry{}}
		s.Products[name] = p
	}
	return p
}

// LatestBaseline returns the baseline whose entry has the most recent
// TimeEnd, breaking ties lexicographically so version naming schemes
// that sort by recency degrade to alphabetical order. False when the
// product has no entries.
func (p *ProductEntry) LatestBaseline() (string, bool) {
	best := ""
	found := false
	for name, entry := range p.Baselines {
		if !found {
			best, found = name, true
			continue
		}
		current := p.Baselines[best]
		if entry.TimeEnd.After(current.TimeEnd) ||
			(entry.TimeEnd.Equal(current.TimeEnd) && name > best) {
			best = name
		}
	}
	return best, found
}
