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

// Package resolver finds the temporal boundaries of a product's remote
// holdings with a bounded number of catalogue probes.
//
// Enumeration is never an option: a mission archive spans years and
// holds millions of granules. Instead a feasibility binary search over
// the day axis asks "does anything exist in this half of the interval?"
// per step, so a boundary day inside an N-day outer bound costs
// O(log N) existence probes. Existence within the archive is sparse
// rather than monotonic (missions have gaps), which is why the split
// predicate is half-interval existence and not a threshold test.
package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/earthfocus/maap-client/internal/scope"
	"github.com/earthfocus/maap-client/internal/stac"
)

// Edge selects which end of the holdings a search targets.
type Edge int

const (
	// EdgeFirst finds the earliest day with data.
	EdgeFirst Edge = iota
	// EdgeLast finds the latest day with data.
	EdgeLast
)

// String implements fmt.Stringer.
func (e Edge) String() string {
	if e == EdgeFirst {
		return "first"
	}
	return "last"
}

// Resolver performs boundary searches against one catalogue client.
type Resolver struct {
	client stac.Client
	log    zerolog.Logger
}

// New creates a resolver.
func New(client stac.Client, log zerolog.Logger) *Resolver {
	return &Resolver{client: client, log: log}
}

// FindBoundaryDay locates the first or last day within the inclusive
// outer bound that holds at least one item. It returns nil when the
// whole outer bound is empty; callers treat that as "not yet known",
// not as an error. A probe failure aborts the search and propagates.
func (r *Resolver) FindBoundaryDay(ctx context.Context, key scope.Key, edge Edge, outer scope.DayRange) (*scope.Day, error) {
	if outer.Start.IsZero() || outer.End.IsZero() {
		return nil, fmt.Errorf("boundary search requires a finite outer bound")
	}
	if outer.End.Before(outer.Start) {
		return nil, fmt.Errorf("outer bound %s..%s is inverted", outer.Start, outer.End)
	}

	span := outer.End.Sub(outer.Start)
	exists := func(lo, hi int) (bool, error) {
		return r.client.ExistsAny(ctx, key,
			outer.Start.AddDays(lo).Start(),
			outer.Start.AddDays(hi).End())
	}

	any, err := exists(0, span)
	if err != nil {
		return nil, err
	}
	if !any {
		r.log.Debug().Stringer("edge", edge).Str("scope", key.String()).Msg("outer bound empty")
		return nil, nil
	}

	// Invariant: [lo, hi] is known to contain at least one day with
	// data. Each step halves the interval with one existence probe.
	lo, hi := 0, span
	for lo < hi {
		if edge == EdgeFirst {
			mid := (lo + hi) / 2
			ok, err := exists(lo, mid)
			if err != nil {
				return nil, err
			}
			if ok {
				hi = mid
			} else {
				lo = mid + 1
			}
		} else {
			mid := (lo + hi + 1) / 2
			ok, err := exists(mid, hi)
			if err != nil {
				return nil, err
			}
			if ok {
				lo = mid
			} else {
				hi = mid - 1
			}
		}
	}

	day := outer.Start.AddDays(lo)
	r.log.Debug().Stringer("edge", edge).Stringer("day", day).Str("scope", key.String()).Msg("boundary day resolved")
	return &day, nil
}

// RefineBoundaryItem retrieves the boundary day's items and picks the
// earliest or latest by reference time. The query spans the whole day
// rather than a narrow window: the day was located by existence probes
// that cannot pin an exact time, and a narrow window could miss the
// day's only item. Returns nil when the day turns out empty.
func (r *Resolver) RefineBoundaryItem(ctx context.Context, key scope.Key, day scope.Day, edge Edge) (*stac.Item, error) {
	items, err := r.client.QueryItems(ctx, key, day.Start(), day.End(), 0)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	item := items[0]
	if edge == EdgeLast {
		item = items[len(items)-1]
	}
	return &item, nil
}

// Range is a fully resolved holdings interval: boundary items at both
// edges plus their sensing timestamps.
type Range struct {
	First stac.Item
	Last  stac.Item
}

// Start returns the reference time of the first item.
func (r *Range) Start() time.Time { return r.First.ReferenceTime }

// End returns the reference time of the last item.
func (r *Range) End() time.Time { return r.Last.ReferenceTime }

// ResolveRange runs both edge searches and refines each to its exact
// boundary item. Returns nil when the outer bound holds no data.
func (r *Resolver) ResolveRange(ctx context.Context, key scope.Key, outer scope.DayRange) (*Range, error) {
	firstDay, err := r.FindBoundaryDay(ctx, key, EdgeFirst, outer)
	if err != nil {
		return nil, err
	}
	if firstDay == nil {
		return nil, nil
	}
	lastDay, err := r.FindBoundaryDay(ctx, key, EdgeLast, outer)
	if err != nil {
		return nil, err
	}
	if lastDay == nil {
		return nil, nil
	}

	first, err := r.RefineBoundaryItem(ctx, key, *firstDay, EdgeFirst)
	if err != nil {
		return nil, err
	}
	last, err := r.RefineBoundaryItem(ctx, key, *lastDay, EdgeLast)
	if err != nil {
		return nil, err
	}
	if first == nil || last == nil {
		// The day-level probes said data exists; an empty item query
		// for the same day means the remote changed underneath us.
		return nil, fmt.Errorf("boundary day %s/%s resolved but item query came back empty", firstDay, lastDay)
	}
	return &Range{First: *first, Last: *last}, nil
}
