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

package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/earthfocus/maap-client/internal/resolver"
	"github.com/earthfocus/maap-client/internal/scope"
	"github.com/earthfocus/maap-client/internal/stac"
)

// Filters narrows a build to a subset of products or baselines. Nil
// slices mean no restriction. Baseline names are matched
// case-insensitively.
type Filters struct {
	Products  []string
	Baselines []string
}

func (f Filters) allowsProduct(name string) bool {
	if len(f.Products) == 0 {
		return true
	}
	for _, p := range f.Products {
		if p == name {
			return true
		}
	}
	return false
}

func (f Filters) allowsBaseline(name string) bool {
	if len(f.Baselines) == 0 {
		return true
	}
	for _, b := range f.Baselines {
		if strings.EqualFold(b, name) {
			return true
		}
	}
	return false
}

// Failure records one baseline whose build failed. The rest of the run
// continues; failed entries keep their previous snapshot content.
type Failure struct {
	Product  string
	Baseline string
	Err      error
}

// Report summarizes one build run.
type Report struct {
	Built    int
	Skipped  int
	Failures []Failure
}

// Builder produces and refreshes snapshots from remote boundary
// searches and count queries.
type Builder struct {
	client   stac.Client
	resolver *resolver.Resolver
	store    *Store
	info     ClientInfo
	mission  string
	outer    scope.DayRange
	log      zerolog.Logger

	// now is stubbed in tests.
	now func() time.Time
}

// NewBuilder creates a builder. outer is the mission lifetime bound for
// boundary searches.
func NewBuilder(client stac.Client, store *Store, mission string, outer scope.DayRange, info ClientInfo, log zerolog.Logger) *Builder {
	return &Builder{
		client:   client,
		resolver: resolver.New(client, log),
		store:    store,
		info:     info,
		mission:  mission,
		outer:    outer,
		log:      log,
		now:      time.Now,
	}
}

// buildBaseline resolves one baseline's boundary items and count. A nil
// entry with nil error means the baseline holds no data in the outer
// bound.
func (b *Builder) buildBaseline(ctx context.Context, key scope.Key) (*BaselineEntry, error) {
	rng, err := b.resolver.ResolveRange(ctx, key, b.outer)
	if err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, nil
	}

	// Count comes from the remote's match counter over the resolved
	// range, never from materializing the items.
	count, err := b.client.CountMatches(ctx, key, rng.Start(), rng.End())
	if err != nil {
		return nil, err
	}

	return &BaselineEntry{
		TimeStart:  rng.Start(),
		TimeEnd:    rng.End(),
		FrameStart: rng.First.OrbitFrame,
		FrameEnd:   rng.Last.OrbitFrame,
		Count:      count,
		UpdatedAt:  b.now().UTC(),
	}, nil
}

// buildProduct rebuilds the named baselines of one product into snap.
// Failures abort only the affected baseline entry.
func (b *Builder) buildProduct(ctx context.Context, snap *Snapshot, product string, baselines []string, report *Report) {
	key := scope.Key{
		Mission:    b.mission,
		Collection: snap.Collection,
		Product:    product,
	}
	for _, baseline := range baselines {
		key.Baseline = baseline
		entry, err := b.buildBaseline(ctx, key)
		if err != nil {
			b.log.Error().Err(err).Str("product", product).Str("baseline", baseline).Msg("baseline build failed")
			report.Failures = append(report.Failures, Failure{Product: product, Baseline: baseline, Err: err})
			continue
		}
		if entry == nil {
			b.log.Debug().Str("product", product).Str("baseline", baseline).Msg("no data, skipping")
			report.Skipped++
			continue
		}
		// Replace the named baseline entry wholesale; no field merge.
		snap.Product(product).Baselines[baseline] = *entry
		report.Built++
	}
}

// baselineCandidates returns the baselines to build for a product:
// the filter list verbatim when given, otherwise the remote's verified
// versions.
func (b *Builder) baselineCandidates(ctx context.Context, collection, product string, f Filters) ([]string, error) {
	if len(f.Baselines) > 0 {
		out := make([]string, len(f.Baselines))
		for i, baseline := range f.Baselines {
			out[i] = strings.ToUpper(baseline)
		}
		return out, nil
	}
	return b.client.Baselines(ctx, scope.Key{Mission: b.mission, Collection: collection, Product: product})
}

func (b *Builder) products(ctx context.Context, collection string, f Filters) ([]string, error) {
	all, err := b.client.Products(ctx, collection)
	if err != nil {
		return nil, err
	}
	out := all[:0:0]
	for _, p := range all {
		if f.allowsProduct(p) {
			out = append(out, p)
		}
	}
	return out, nil
}

// buildAll rebuilds entries for every product and baseline the filters
// allow into snap, then persists it. Per-baseline failures are
// reported, not fatal.
func (b *Builder) buildAll(ctx context.Context, snap *Snapshot, f Filters) (*Report, error) {
	products, err := b.products(ctx, snap.Collection, f)
	if err != nil {
		return nil, err
	}

	report := &Report{}
	for _, product := range products {
		baselines, err := b.baselineCandidates(ctx, snap.Collection, product, f)
		if err != nil {
			report.Failures = append(report.Failures, Failure{Product: product, Err: err})
			continue
		}
		b.buildProduct(ctx, snap, product, baselines, report)
	}

	if err := b.store.Save(snap); err != nil {
		return nil, err
	}
	return report, nil
}

// BuildFull rebuilds entries for every product and baseline the filters
// allow, merging into any existing snapshot on disk so products outside
// the filter keep their entries.
func (b *Builder) BuildFull(ctx context.Context, collection string, f Filters) (*Snapshot, *Report, error) {
	existing, err := b.store.Load(collection)
	if err != nil {
		return nil, nil, err
	}
	snap := NewSnapshot(collection, b.info)
	if existing != nil {
		snap = existing.Clone()
		snap.Client = b.info
	}
	snap.GeneratedAt = b.now().UTC()

	report, err := b.buildAll(ctx, snap, f)
	if err != nil {
		return nil, nil, err
	}
	return snap, report, nil
}

// BuildFresh is BuildFull starting from an empty snapshot: entries for
// products or baselines that no longer exist remotely are dropped
// instead of carried over from the previous build.
func (b *Builder) BuildFresh(ctx context.Context, collection string, f Filters) (*Snapshot, *Report, error) {
	snap := NewSnapshot(collection, b.info)
	snap.GeneratedAt = b.now().UTC()

	report, err := b.buildAll(ctx, snap, f)
	if err != nil {
		return nil, nil, err
	}
	return snap, report, nil
}

// BuildIncremental refreshes, per product, only the baseline whose
// existing entry has the most recent time range end; every other entry
// is carried over untouched. A product with no existing entry falls
// back to a full per-product build. Without an existing snapshot the
// whole call degrades to BuildFull.
func (b *Builder) BuildIncremental(ctx context.Context, collection string, f Filters) (*Snapshot, *Report, error) {
	existing, err := b.store.Load(collection)
	if err != nil {
		return nil, nil, err
	}
	if existing == nil {
		return b.BuildFull(ctx, collection, f)
	}

	snap := existing.Clone()
	snap.Client = b.info
	snap.GeneratedAt = b.now().UTC()

	products, err := b.products(ctx, collection, f)
	if err != nil {
		return nil, nil, err
	}

	report := &Report{}
	for _, product := range products {
		existingProduct, ok := existing.Products[product]
		if ok {
			if latest, found := existingProduct.LatestBaseline(); found {
				if f.allowsBaseline(latest) {
					b.buildProduct(ctx, snap, product, []string{latest}, report)
				}
				continue
			}
		}
		// New product since the last build: full build for it.
		baselines, err := b.baselineCandidates(ctx, collection, product, f)
		if err != nil {
			report.Failures = append(report.Failures, Failure{Product: product, Err: err})
			continue
		}
		b.buildProduct(ctx, snap, product, baselines, report)
	}

	if err := b.store.Save(snap); err != nil {
		return nil, nil, err
	}
	return snap, report, nil
}
