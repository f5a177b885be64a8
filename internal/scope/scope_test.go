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

package scope

import (
	"testing"
	"time"
)

func TestDayOf(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want string
	}{
		{
			name: "utc midnight",
			in:   time.Date(2024, 5, 28, 0, 0, 0, 0, time.UTC),
			want: "20240528",
		},
		{
			name: "end of day",
			in:   time.Date(2024, 5, 28, 23, 59, 59, 0, time.UTC),
			want: "20240528",
		},
		{
			name: "non-utc input normalized",
			in:   time.Date(2024, 5, 28, 1, 0, 0, 0, time.FixedZone("CEST", 2*3600)),
			want: "20240527",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DayOf(tt.in).Compact(); got != tt.want {
				t.Errorf("DayOf(%v) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestDayArithmetic(t *testing.T) {
	d := Day{Year: 2024, Month: time.December, Dom: 31}

	if got := d.Next().Compact(); got != "20250101" {
		t.Errorf("Next() across year = %s, want 20250101", got)
	}
	if got := d.Prev().Compact(); got != "20241230" {
		t.Errorf("Prev() = %s, want 20241230", got)
	}

	other := Day{Year: 2024, Month: time.December, Dom: 1}
	if got := d.Sub(other); got != 30 {
		t.Errorf("Sub() = %d, want 30", got)
	}
	if !other.Before(d) || d.Before(other) {
		t.Error("Before() ordering wrong")
	}
}

func TestParseDay(t *testing.T) {
	d, err := ParseDay("20240528")
	if err != nil {
		t.Fatalf("ParseDay failed: %v", err)
	}
	if d.String() != "2024-05-28" {
		t.Errorf("ParseDay = %s, want 2024-05-28", d)
	}

	if _, err := ParseDay("2024-05-28"); err == nil {
		t.Error("ParseDay should reject dashed format")
	}
}

func TestDayRangeContains(t *testing.T) {
	mid := Day{Year: 2024, Month: time.June, Dom: 15}
	lo := Day{Year: 2024, Month: time.June, Dom: 1}
	hi := Day{Year: 2024, Month: time.June, Dom: 30}

	tests := []struct {
		name string
		r    DayRange
		d    Day
		want bool
	}{
		{"unbounded", AllDays, mid, true},
		{"inside", DayRange{Start: lo, End: hi}, mid, true},
		{"at start", DayRange{Start: lo, End: hi}, lo, true},
		{"at end", DayRange{Start: lo, End: hi}, hi, true},
		{"before", DayRange{Start: mid}, lo, false},
		{"after", DayRange{End: mid}, hi, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.r.Contains(tt.d); got != tt.want {
				t.Errorf("Contains(%v) = %v, want %v", tt.d, got, tt.want)
			}
		})
	}
}
