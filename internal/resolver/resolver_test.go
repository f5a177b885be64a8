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

package resolver

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/earthfocus/maap-client/internal/scope"
	"github.com/earthfocus/maap-client/internal/stac"
)

var testKey = scope.Key{
	Mission:    "EarthCARE",
	Collection: "EarthCAREL2Validated",
	Product:    "BM__RAD_2B",
	Baseline:   "AE",
}

// outer is a 365-day bound starting 2025-01-01.
var outer = scope.DayRange{
	Start: scope.Day{Year: 2025, Month: 1, Dom: 1},
	End:   scope.Day{Year: 2025, Month: 12, Dom: 31},
}

// itemsOnDays builds one mock item per day offset from outer.Start.
func itemsOnDays(offsets ...int) []stac.Item {
	var items []stac.Item
	for _, off := range offsets {
		day := outer.Start.AddDays(off)
		items = append(items, stac.Item{
			Locator:       fmt.Sprintf("https://archive.example/item-%d.h5", off),
			ReferenceTime: day.Start().Add(12 * time.Hour),
		})
	}
	return items
}

func findDay(t *testing.T, mock *stac.MockClient, edge Edge) *scope.Day {
	t.Helper()
	day, err := New(mock, zerolog.Nop()).FindBoundaryDay(context.Background(), testKey, edge, outer)
	if err != nil {
		t.Fatalf("FindBoundaryDay(%s) failed: %v", edge, err)
	}
	return day
}

func TestFindBoundaryDayContiguousInterval(t *testing.T) {
	// Data on the contiguous interval day 40 through day 80.
	var offsets []int
	for d := 40; d <= 80; d++ {
		offsets = append(offsets, d)
	}
	mock := &stac.MockClient{Items: itemsOnDays(offsets...)}

	first := findDay(t, mock, EdgeFirst)
	if first == nil || outer.Start.Sub(*first) != -40 {
		t.Errorf("first = %v, want day 40", first)
	}
	last := findDay(t, mock, EdgeLast)
	if last == nil || outer.Start.Sub(*last) != -80 {
		t.Errorf("last = %v, want day 80", last)
	}
}

func TestFindBoundaryDaySparseData(t *testing.T) {
	// Existence only on days 5, 47 and 200 of a 365-day bound. The
	// search must not assume contiguity between them.
	mock := &stac.MockClient{Items: itemsOnDays(5, 47, 200)}

	first := findDay(t, mock, EdgeFirst)
	if first == nil || outer.Start.Sub(*first) != -5 {
		t.Errorf("first = %v, want day 5", first)
	}
	last := findDay(t, mock, EdgeLast)
	if last == nil || outer.Start.Sub(*last) != -200 {
		t.Errorf("last = %v, want day 200", last)
	}
}

func TestFindBoundaryDayProbeCount(t *testing.T) {
	mock := &stac.MockClient{Items: itemsOnDays(5, 47, 200)}
	findDay(t, mock, EdgeFirst)

	// One initial full-bound probe plus ceil(log2(365)) = 9 halvings.
	if mock.ExistsCalls > 11 {
		t.Errorf("used %d probes for a 365-day bound, want O(log n)", mock.ExistsCalls)
	}
}

func TestFindBoundaryDayEmptyBound(t *testing.T) {
	mock := &stac.MockClient{}
	day := findDay(t, mock, EdgeFirst)
	if day != nil {
		t.Errorf("day = %v, want nil for empty bound", day)
	}
	if mock.ExistsCalls != 1 {
		t.Errorf("used %d probes, want 1 for empty bound", mock.ExistsCalls)
	}
}

func TestFindBoundaryDaySingleDayBound(t *testing.T) {
	day5 := outer.Start.AddDays(5)
	mock := &stac.MockClient{Items: itemsOnDays(5)}
	bound := scope.DayRange{Start: day5, End: day5}

	day, err := New(mock, zerolog.Nop()).FindBoundaryDay(context.Background(), testKey, EdgeLast, bound)
	if err != nil {
		t.Fatalf("FindBoundaryDay failed: %v", err)
	}
	if day == nil || *day != day5 {
		t.Errorf("day = %v, want %v", day, day5)
	}
}

func TestFindBoundaryDayRequiresFiniteBound(t *testing.T) {
	mock := &stac.MockClient{}
	_, err := New(mock, zerolog.Nop()).FindBoundaryDay(context.Background(), testKey, EdgeFirst, scope.AllDays)
	if err == nil {
		t.Error("expected error for unbounded search")
	}
}

func TestFindBoundaryDayProbeErrorPropagates(t *testing.T) {
	probeErr := errors.New("catalogue down")
	mock := &stac.MockClient{Err: probeErr}
	_, err := New(mock, zerolog.Nop()).FindBoundaryDay(context.Background(), testKey, EdgeFirst, outer)
	if !errors.Is(err, probeErr) {
		t.Errorf("error = %v, want probe error propagated", err)
	}
}

func TestRefineBoundaryItem(t *testing.T) {
	day := outer.Start.AddDays(47)
	early := stac.Item{Locator: "early", ReferenceTime: day.Start().Add(2 * time.Hour), OrbitFrame: "07100A"}
	late := stac.Item{Locator: "late", ReferenceTime: day.Start().Add(20 * time.Hour), OrbitFrame: "07105C"}
	mock := &stac.MockClient{Items: []stac.Item{late, early}}
	r := New(mock, zerolog.Nop())

	first, err := r.RefineBoundaryItem(context.Background(), testKey, day, EdgeFirst)
	if err != nil {
		t.Fatalf("RefineBoundaryItem failed: %v", err)
	}
	if first == nil || first.Locator != "early" {
		t.Errorf("first = %+v, want the earliest item", first)
	}

	last, err := r.RefineBoundaryItem(context.Background(), testKey, day, EdgeLast)
	if err != nil {
		t.Fatalf("RefineBoundaryItem failed: %v", err)
	}
	if last == nil || last.Locator != "late" {
		t.Errorf("last = %+v, want the latest item", last)
	}
}

func TestRefineBoundaryItemEmptyDay(t *testing.T) {
	mock := &stac.MockClient{}
	item, err := New(mock, zerolog.Nop()).RefineBoundaryItem(context.Background(), testKey, outer.Start, EdgeFirst)
	if err != nil {
		t.Fatalf("RefineBoundaryItem failed: %v", err)
	}
	if item != nil {
		t.Errorf("item = %+v, want nil for empty day", item)
	}
}

func TestResolveRange(t *testing.T) {
	mock := &stac.MockClient{Items: itemsOnDays(5, 47, 200)}
	rng, err := New(mock, zerolog.Nop()).ResolveRange(context.Background(), testKey, outer)
	if err != nil {
		t.Fatalf("ResolveRange failed: %v", err)
	}
	if rng == nil {
		t.Fatal("range = nil, want resolved range")
	}
	if scope.DayOf(rng.Start()) != outer.Start.AddDays(5) {
		t.Errorf("start = %v, want day 5", rng.Start())
	}
	if scope.DayOf(rng.End()) != outer.Start.AddDays(200) {
		t.Errorf("end = %v, want day 200", rng.End())
	}
}

func TestResolveRangeEmpty(t *testing.T) {
	mock := &stac.MockClient{}
	rng, err := New(mock, zerolog.Nop()).ResolveRange(context.Background(), testKey, outer)
	if err != nil {
		t.Fatalf("ResolveRange failed: %v", err)
	}
	if rng != nil {
		t.Errorf("range = %+v, want nil", rng)
	}
}
