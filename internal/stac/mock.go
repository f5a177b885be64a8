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

package stac

import (
	"context"
	"sort"
	"time"

	"github.com/earthfocus/maap-client/internal/scope"
)

// MockClient is an in-memory Client backed by a fixed item list. Probe
// counters let tests assert complexity bounds on search strategies.
type MockClient struct {
	// Items is the full holdings list, in any order.
	Items []Item
	// BaselineList is returned by Baselines verbatim.
	BaselineList []string
	// ProductList is returned by Products verbatim.
	ProductList []string
	// Err, when set, is returned by every method.
	Err error

	// Probe counters, incremented per call.
	CountCalls  int
	ExistsCalls int
	QueryCalls  int
}

var _ Client = (*MockClient)(nil)

func (m *MockClient) inWindow(start, end time.Time) []Item {
	var out []Item
	for _, item := range m.Items {
		if !start.IsZero() && item.ReferenceTime.Before(start) {
			continue
		}
		if !end.IsZero() && item.ReferenceTime.After(end) {
			continue
		}
		out = append(out, item)
	}
	return out
}

// CountMatches implements Client.
func (m *MockClient) CountMatches(_ context.Context, _ scope.Key, start, end time.Time) (int, error) {
	m.CountCalls++
	if m.Err != nil {
		return 0, m.Err
	}
	return len(m.inWindow(start, end)), nil
}

// ExistsAny implements Client.
func (m *MockClient) ExistsAny(_ context.Context, _ scope.Key, start, end time.Time) (bool, error) {
	m.ExistsCalls++
	if m.Err != nil {
		return false, m.Err
	}
	return len(m.inWindow(start, end)) > 0, nil
}

// QueryItems implements Client.
func (m *MockClient) QueryItems(_ context.Context, _ scope.Key, start, end time.Time, maxItems int) ([]Item, error) {
	m.QueryCalls++
	if m.Err != nil {
		return nil, m.Err
	}
	items := m.inWindow(start, end)
	sort.Slice(items, func(i, j int) bool {
		if !items[i].ReferenceTime.Equal(items[j].ReferenceTime) {
			return items[i].ReferenceTime.Before(items[j].ReferenceTime)
		}
		return items[i].Locator < items[j].Locator
	})
	if maxItems > 0 && len(items) > maxItems {
		items = items[:maxItems]
	}
	return items, nil
}

// Baselines implements Client.
func (m *MockClient) Baselines(_ context.Context, _ scope.Key) ([]string, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.BaselineList, nil
}

// Products implements Client.
func (m *MockClient) Products(_ context.Context, _ string) ([]string, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.ProductList, nil
}

// ResetCounters zeroes the probe counters.
func (m *MockClient) ResetCounters() {
	m.CountCalls = 0
	m.ExistsCalls = 0
	m.QueryCalls = 0
}
