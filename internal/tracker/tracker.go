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

// Package tracker implements the three-phase lifecycle state machine over
// the ledger store: discovered, fetched, consumed.
//
// The logical per-locator state machine is
//
//	Unknown -> Discovered -> Fetched -> Consumed -> (external deletion)
//
// Transitions are monotonic; there is no un-discover. A locator may reach
// Fetched without ever being Discovered: an ad-hoc retrieval that bypassed
// discovery must still be recordable. Pending sets are derived, never
// stored: pendingFetch = Discovered - Fetched, pendingConsume = Fetched -
// Consumed, deletable = Consumed ∩ exists-on-disk.
package tracker

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/earthfocus/maap-client/internal/granule"
	"github.com/earthfocus/maap-client/internal/ledger"
	"github.com/earthfocus/maap-client/internal/scope"
)

// Tracker drives lifecycle recording and pending-set queries for one
// scope key. It never calls the network; callers push discovered
// locators in and fetched/consumed confirmations after the fact.
type Tracker struct {
	store   *ledger.Store
	key     scope.Key
	dataDir string
	log     zerolog.Logger
}

// New creates a tracker for one scope key. dataDir is used to derive
// local target paths from locators; pass "" to store locators without a
// path column.
func New(store *ledger.Store, key scope.Key, dataDir string, log zerolog.Logger) *Tracker {
	return &Tracker{store: store, key: key, dataDir: dataDir, log: log}
}

// Key returns the scope key the tracker operates on.
func (t *Tracker) Key() scope.Key { return t.key }

// localFor derives the expected local path for a locator, or "".
func (t *Tracker) localFor(locator string) string {
	if t.dataDir == "" {
		return ""
	}
	return granule.LocalPath(locator, t.dataDir, t.key.Mission, t.key.Collection)
}

// dayFor re-derives the partition day from a locator or path's embedded
// reference timestamp. Partitioning is never inferred from the remote
// query window: a range query may return items whose overlap touches the
// window without their reference timestamp falling inside it.
func dayFor(uri string) (scope.Day, bool) {
	ts, ok := granule.SensingTime(uri)
	if !ok {
		return scope.Day{}, false
	}
	return scope.DayOf(ts), true
}

// RecordDiscovered unions locators into their day partitions and returns
// the number of genuinely new records. Re-submitting the same locators
// is a no-op for content; an unchanged partition is touched instead of
// rewritten so its mtime still records "verified fresh".
func (t *Tracker) RecordDiscovered(locators []string) (int, error) {
	byDay := make(map[scope.Day][]string)
	var order []scope.Day
	for _, locator := range locators {
		day, ok := dayFor(locator)
		if !ok {
			t.log.Warn().Str("locator", locator).Msg("no reference timestamp, skipping")
			continue
		}
		if _, seen := byDay[day]; !seen {
			order = append(order, day)
		}
		byDay[day] = append(byDay[day], locator)
	}

	newCount := 0
	for _, day := range order {
		existing, err := t.store.ReadSet(t.key, ledger.PhaseDiscovered, day)
		if err != nil {
			return newCount, err
		}

		known := make(map[string]struct{}, len(existing))
		for _, r := range existing {
			known[r.Remote] = struct{}{}
		}

		merged := existing
		added := 0
		for _, locator := range byDay[day] {
			if _, ok := known[locator]; ok {
				continue
			}
			known[locator] = struct{}{}
			merged = append(merged, ledger.Record{Remote: locator, Local: t.localFor(locator)})
			added++
		}

		if added == 0 {
			if err := t.store.Touch(t.key, ledger.PhaseDiscovered, day); err != nil {
				return newCount, err
			}
			continue
		}
		if err := t.store.WriteSet(t.key, ledger.PhaseDiscovered, day, merged); err != nil {
			return newCount, err
		}
		newCount += added
	}
	return newCount, nil
}

// RecordFetched unions one retrieval confirmation into the fetched
// partition for the locator's day. The corresponding discovered record
// is not required to exist. An empty localPath is derived from the
// locator when possible.
func (t *Tracker) RecordFetched(locator, localPath string) error {
	day, ok := dayFor(locator)
	if !ok {
		return fmt.Errorf("no reference timestamp in locator %q", locator)
	}
	if localPath == "" {
		localPath = t.localFor(locator)
	}
	return t.union(ledger.PhaseFetched, day, ledger.Record{Remote: locator, Local: localPath})
}

// RecordConsumed unions one downstream-processing confirmation into the
// consumed partition for the path's day.
func (t *Tracker) RecordConsumed(localPath string) error {
	day, ok := dayFor(localPath)
	if !ok {
		return fmt.Errorf("no reference timestamp in path %q", localPath)
	}
	return t.union(ledger.PhaseConsumed, day, ledger.Record{Local: localPath})
}

// RecordFailure appends a download failure to the scope's failure
// record so failed locators stay inspectable and re-triable across
// runs. The failed locator never enters the fetched set, so it remains
// in the pending-fetch difference for the next sync. The message is
// flattened to a single sanitized line.
func (t *Tracker) RecordFailure(locator string, cause error) error {
	msg := cause.Error()
	msg = strings.ReplaceAll(msg, "\n", " ")
	msg = strings.ReplaceAll(msg, "|", ";")
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return t.store.AppendError(t.key, locator, msg)
}

// Failures returns the distinct recorded download failures, first
// message per locator.
func (t *Tracker) Failures() ([]ledger.ErrorRecord, error) {
	return t.store.ReadErrors(t.key)
}

func (t *Tracker) union(phase ledger.Phase, day scope.Day, rec ledger.Record) error {
	existing, err := t.store.ReadSet(t.key, phase, day)
	if err != nil {
		return err
	}
	merged := append(existing, rec)
	if ledger.SameSet(existing, merged) {
		return t.store.Touch(t.key, phase, day)
	}
	return t.store.WriteSet(t.key, phase, day, merged)
}

// pendingFetchDay computes Discovered(day) - Fetched(day) by locator.
func (t *Tracker) pendingFetchDay(day scope.Day) ([]ledger.Record, error) {
	discovered, err := t.store.ReadSet(t.key, ledger.PhaseDiscovered, day)
	if err != nil {
		return nil, err
	}
	fetched, err := t.store.ReadSet(t.key, ledger.PhaseFetched, day)
	if err != nil {
		return nil, err
	}
	done := make(map[string]struct{}, len(fetched))
	for _, r := range fetched {
		done[r.Remote] = struct{}{}
	}
	var pending []ledger.Record
	for _, r := range discovered {
		if _, ok := done[r.Remote]; !ok {
			pending = append(pending, r)
		}
	}
	return pending, nil
}

// pendingConsumeDay computes Fetched(day) - Consumed(day) by local path.
func (t *Tracker) pendingConsumeDay(day scope.Day) ([]ledger.Record, error) {
	fetched, err := t.store.ReadSet(t.key, ledger.PhaseFetched, day)
	if err != nil {
		return nil, err
	}
	consumed, err := t.store.ReadSet(t.key, ledger.PhaseConsumed, day)
	if err != nil {
		return nil, err
	}
	done := make(map[string]struct{}, len(consumed))
	for _, r := range consumed {
		done[r.Local] = struct{}{}
	}
	var pending []ledger.Record
	for _, r := range fetched {
		local := r.Local
		if local == "" {
			local = t.localFor(r.Remote)
		}
		if local == "" {
			continue
		}
		if _, ok := done[local]; !ok {
			pending = append(pending, ledger.Record{Remote: r.Remote, Local: local})
		}
	}
	return pending, nil
}

// PendingFetch returns a lazy iterator over per-day sets of discovered
// but not yet fetched records, ascending by day and optionally bounded
// to an inclusive range. History may span years, so partitions are read
// one day at a time rather than materialized.
func (t *Tracker) PendingFetch(r scope.DayRange) (*DayIter, error) {
	days, err := t.daysIn(ledger.PhaseDiscovered, r)
	if err != nil {
		return nil, err
	}
	return &DayIter{days: days, load: t.pendingFetchDay}, nil
}

// PendingConsume returns a lazy iterator over per-day sets of fetched
// but not yet consumed records.
func (t *Tracker) PendingConsume(r scope.DayRange) (*DayIter, error) {
	days, err := t.daysIn(ledger.PhaseFetched, r)
	if err != nil {
		return nil, err
	}
	return &DayIter{days: days, load: t.pendingConsumeDay}, nil
}

// PendingFetchDay returns the pending-fetch set for a single day.
func (t *Tracker) PendingFetchDay(day scope.Day) ([]ledger.Record, error) {
	return t.pendingFetchDay(day)
}

// PendingConsumeDay returns the pending-consume set for a single day.
func (t *Tracker) PendingConsumeDay(day scope.Day) ([]ledger.Record, error) {
	return t.pendingConsumeDay(day)
}

func (t *Tracker) daysIn(phase ledger.Phase, r scope.DayRange) ([]scope.Day, error) {
	all, err := t.store.ListDays(t.key, phase)
	if err != nil {
		return nil, err
	}
	days := all[:0:0]
	for _, d := range all {
		if r.Contains(d) {
			days = append(days, d)
		}
	}
	return days, nil
}

// Deletable returns local paths of consumed artifacts that still exist
// on disk. The existence check runs at query time and is never cached;
// deletion itself is the caller's responsibility.
func (t *Tracker) Deletable(r scope.DayRange) ([]string, error) {
	days, err := t.daysIn(ledger.PhaseConsumed, r)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, day := range days {
		consumed, err := t.store.ReadSet(t.key, ledger.PhaseConsumed, day)
		if err != nil {
			return nil, err
		}
		for _, rec := range consumed {
			if _, statErr := os.Stat(rec.Local); statErr == nil {
				paths = append(paths, rec.Local)
			}
		}
	}
	return paths, nil
}

// Stats aggregates lifecycle counts over the day range in a single pass
// per partition.
type Stats struct {
	Discovered     int
	Fetched        int
	Consumed       int
	PendingFetch   int
	PendingConsume int
}

// Stats computes aggregate counts for the optionally bounded day range.
func (t *Tracker) Stats(r scope.DayRange) (Stats, error) {
	var stats Stats

	daySet := make(map[scope.Day]struct{})
	for _, phase := range []ledger.Phase{ledger.PhaseDiscovered, ledger.PhaseFetched, ledger.PhaseConsumed} {
		days, err := t.daysIn(phase, r)
		if err != nil {
			return Stats{}, err
		}
		for _, d := range days {
			daySet[d] = struct{}{}
		}
	}

	for day := range daySet {
		discovered, err := t.store.ReadSet(t.key, ledger.PhaseDiscovered, day)
		if err != nil {
			return Stats{}, err
		}
		fetched, err := t.store.ReadSet(t.key, ledger.PhaseFetched, day)
		if err != nil {
			return Stats{}, err
		}
		consumed, err := t.store.ReadSet(t.key, ledger.PhaseConsumed, day)
		if err != nil {
			return Stats{}, err
		}

		stats.Discovered += len(discovered)
		stats.Fetched += len(fetched)
		stats.Consumed += len(consumed)

		fetchedBy := make(map[string]struct{}, len(fetched))
		for _, rec := range fetched {
			fetchedBy[rec.Remote] = struct{}{}
		}
		for _, rec := range discovered {
			if _, ok := fetchedBy[rec.Remote]; !ok {
				stats.PendingFetch++
			}
		}

		consumedBy := make(map[string]struct{}, len(consumed))
		for _, rec := range consumed {
			consumedBy[rec.Local] = struct{}{}
		}
		for _, rec := range fetched {
			local := rec.Local
			if local == "" {
				local = t.localFor(rec.Remote)
			}
			if local == "" {
				continue
			}
			if _, ok := consumedBy[local]; !ok {
				stats.PendingConsume++
			}
		}
	}
	return stats, nil
}

// DayIter walks per-day derived record sets lazily: each Next call reads
// only that day's partitions, so an unbounded walk over years of history
// stays flat in memory. The iterator is restartable by constructing a
// new one.
type DayIter struct {
	days    []scope.Day
	load    func(scope.Day) ([]ledger.Record, error)
	idx     int
	day     scope.Day
	records []ledger.Record
	err     error
}

// Next advances to the next day, returning false at the end of the
// sequence or on error. Check Err after the loop.
func (it *DayIter) Next() bool {
	if it.err != nil {
		return false
	}
	for it.idx < len(it.days) {
		day := it.days[it.idx]
		it.idx++
		records, err := it.load(day)
		if err != nil {
			it.err = err
			return false
		}
		if len(records) == 0 {
			continue
		}
		it.day = day
		it.records = records
		return true
	}
	return false
}

// Day returns the current day after a successful Next.
func (it *DayIter) Day() scope.Day { return it.day }

// Records returns the current day's derived set after a successful Next.
func (it *DayIter) Records() []ledger.Record { return it.records }

// Err returns the first error encountered while iterating.
func (it *DayIter) Err() error { return it.err }
