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

// Package stac talks to the remote STAC catalogue: existence probes,
// match counts and bounded item queries scoped to one product and
// baseline. The remote is the single source of truth for what exists;
// this package never caches results.
package stac

import (
	"context"
	"time"

	"github.com/earthfocus/maap-client/internal/scope"
)

// Item is one catalogued granule as returned by the remote.
type Item struct {
	// Locator is the download URL of the granule's data asset.
	Locator string
	// ReferenceTime is the sensing timestamp, re-derived from the
	// granule filename where possible and falling back to the item's
	// datetime property. Partitioning and ordering key throughout.
	ReferenceTime time.Time
	// OrbitFrame is the orbit+frame ordinal embedded in the filename,
	// or "" when the naming convention does not carry one.
	OrbitFrame string
}

// Client defines the interface for querying the remote catalogue.
// This interface allows for easy mocking in tests.
type Client interface {
	// CountMatches returns the remote's total match count for the
	// scope key over the inclusive [start, end] window without
	// retrieving the items themselves.
	CountMatches(ctx context.Context, key scope.Key, start, end time.Time) (int, error)

	// ExistsAny reports whether at least one item matches the scope
	// key over the window. Implementations keep this as cheap as the
	// remote allows; it is the probe primitive for boundary searches.
	ExistsAny(ctx context.Context, key scope.Key, start, end time.Time) (bool, error)

	// QueryItems retrieves up to maxItems matching items, sorted
	// ascending by reference time. maxItems <= 0 means no bound.
	QueryItems(ctx context.Context, key scope.Key, start, end time.Time, maxItems int) ([]Item, error)

	// Baselines returns the distinct baseline versions the remote
	// holds for the key's product, ignoring key.Baseline.
	Baselines(ctx context.Context, key scope.Key) ([]string, error)

	// Products returns the product types a collection advertises.
	Products(ctx context.Context, collection string) ([]string, error)
}
