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

// Package scope defines the key identifying one partition of the remote
// archive (mission, collection, product type, baseline version) together
// with the UTC calendar-day arithmetic used to partition ledger records.
package scope

import (
	"fmt"
	"time"
)

// Key identifies one archive partition. All ledger and catalog entities
// are keyed by a Key plus, where relevant, a UTC calendar day derived
// from an item's reference timestamp.
type Key struct {
	Mission    string
	Collection string
	Product    string
	Baseline   string
}

// String returns the key as a slash-separated slug, for logs and errors.
func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s/%s", k.Mission, k.Collection, k.Product, k.Baseline)
}

// Day is a UTC calendar day. The zero value is not a valid day.
type Day struct {
	Year  int
	Month time.Month
	Dom   int
}

// DayOf returns the UTC calendar day containing t.
func DayOf(t time.Time) Day {
	t = t.UTC()
	return Day{Year: t.Year(), Month: t.Month(), Dom: t.Day()}
}

// ParseDay parses a compact YYYYMMDD day as used in partition filenames.
func ParseDay(s string) (Day, error) {
	t, err := time.ParseInLocation("20060102", s, time.UTC)
	if err != nil {
		return Day{}, fmt.Errorf("invalid day %q: %w", s, err)
	}
	return DayOf(t), nil
}

// Start returns midnight UTC at the start of the day.
func (d Day) Start() time.Time {
	return time.Date(d.Year, d.Month, d.Dom, 0, 0, 0, 0, time.UTC)
}

// End returns the last whole second of the day (23:59:59 UTC), the
// convention the remote archive uses for inclusive day windows.
func (d Day) End() time.Time {
	return time.Date(d.Year, d.Month, d.Dom, 23, 59, 59, 0, time.UTC)
}

// AddDays returns the day n days after d (n may be negative).
func (d Day) AddDays(n int) Day {
	return DayOf(d.Start().AddDate(0, 0, n))
}

// Next returns the following day.
func (d Day) Next() Day { return d.AddDays(1) }

// Prev returns the preceding day.
func (d Day) Prev() Day { return d.AddDays(-1) }

// Sub returns the number of days from other to d (d - other).
func (d Day) Sub(other Day) int {
	return int(d.Start().Sub(other.Start()).Hours() / 24)
}

// Before reports whether d is strictly earlier than other.
func (d Day) Before(other Day) bool { return d.Start().Before(other.Start()) }

// After reports whether d is strictly later than other.
func (d Day) After(other Day) bool { return d.Start().After(other.Start()) }

// IsZero reports whether d is the zero value.
func (d Day) IsZero() bool { return d == Day{} }

// String formats the day as YYYY-MM-DD.
func (d Day) String() string { return d.Start().Format("2006-01-02") }

// Compact formats the day as YYYYMMDD, the partition filename form.
func (d Day) Compact() string { return d.Start().Format("20060102") }

// DayRange bounds an inclusive range of days. A zero Start or End leaves
// that side unbounded.
type DayRange struct {
	Start Day
	End   Day
}

// AllDays is the unbounded range.
var AllDays = DayRange{}

// Contains reports whether day falls inside the range.
func (r DayRange) Contains(d Day) bool {
	if !r.Start.IsZero() && d.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && d.After(r.End) {
		return false
	}
	return true
}
