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
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	maaperrors "github.com/earthfocus/maap-client/internal/errors"
	"github.com/earthfocus/maap-client/internal/scope"
)

var testKey = scope.Key{
	Mission:    "EarthCARE",
	Collection: "EarthCAREL2Validated",
	Product:    "BM__RAD_2B",
	Baseline:   "AE",
}

func ecaHref(sensing, orbit string) string {
	return fmt.Sprintf(
		"https://download.example/ECA_EXAE_BM__RAD_2B_%sZ_20250910T010458Z_%s.h5",
		sensing, orbit,
	)
}

func featureJSON(href string) string {
	return fmt.Sprintf(`{"id":"x","properties":{"datetime":"2025-09-08T23:25:05Z"},"assets":{"enclosure":{"href":"%s"}}}`, href)
}

func TestCountMatchesUsesRemoteCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("limit") != "1" {
			t.Errorf("limit = %q, want 1", q.Get("limit"))
		}
		if !strings.Contains(q.Get("filter"), "productType = 'BM__RAD_2B'") {
			t.Errorf("filter missing product type: %q", q.Get("filter"))
		}
		if !strings.Contains(q.Get("filter"), "productVersion = 'AE'") {
			t.Errorf("filter missing baseline: %q", q.Get("filter"))
		}
		fmt.Fprint(w, `{"numberMatched":42,"features":[]}`)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, Options{})
	n, err := client.CountMatches(context.Background(), testKey, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("CountMatches failed: %v", err)
	}
	if n != 42 {
		t.Errorf("count = %d, want 42", n)
	}
}

func TestExistsAnyContextExtension(t *testing.T) {
	// Older deployments report the match count via the context extension.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"context":{"matched":3},"features":[]}`)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, Options{})
	ok, err := client.ExistsAny(context.Background(), testKey, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("ExistsAny failed: %v", err)
	}
	if !ok {
		t.Error("ExistsAny = false, want true")
	}
}

func TestExistsAnySendsDatetimeInterval(t *testing.T) {
	var gotDatetime string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotDatetime = r.URL.Query().Get("datetime")
		fmt.Fprint(w, `{"numberMatched":0,"features":[]}`)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, Options{})
	start := time.Date(2025, 9, 8, 0, 0, 0, 0, time.UTC)
	if _, err := client.ExistsAny(context.Background(), testKey, start, time.Time{}); err != nil {
		t.Fatalf("ExistsAny failed: %v", err)
	}
	if gotDatetime != "2025-09-08T00:00:00Z/.." {
		t.Errorf("datetime = %q, want open-ended interval", gotDatetime)
	}
}

func TestQueryItemsPaginatesAndSorts(t *testing.T) {
	later := ecaHref("20250908T235900", "07282B")
	earlier := ecaHref("20250908T232505", "07282A")
	outside := ecaHref("20250910T120000", "07299A")

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprintf(w, `{"features":[%s,%s]}`, featureJSON(earlier), featureJSON(outside))
			return
		}
		fmt.Fprintf(w, `{"features":[%s],"links":[{"rel":"next","href":"%s/search?page=2"}]}`,
			featureJSON(later), srv.URL)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, Options{})
	start := time.Date(2025, 9, 8, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 9, 8, 23, 59, 59, 0, time.UTC)
	items, err := client.QueryItems(context.Background(), testKey, start, end, 0)
	if err != nil {
		t.Fatalf("QueryItems failed: %v", err)
	}

	// Sorted ascending by the filename-derived reference time, and the
	// item whose sensing time falls outside the window is dropped even
	// though the remote returned it.
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2: %+v", len(items), items)
	}
	if items[0].Locator != earlier || items[1].Locator != later {
		t.Errorf("order = [%s, %s], want earlier first", items[0].Locator, items[1].Locator)
	}
	if items[0].OrbitFrame != "07282A" {
		t.Errorf("orbit frame = %q, want 07282A", items[0].OrbitFrame)
	}
	want := time.Date(2025, 9, 8, 23, 25, 5, 0, time.UTC)
	if !items[0].ReferenceTime.Equal(want) {
		t.Errorf("reference time = %v, want %v", items[0].ReferenceTime, want)
	}
}

func TestQueryItemsMaxItemsTruncatesAfterSort(t *testing.T) {
	first := ecaHref("20250908T232505", "07282A")
	second := ecaHref("20250908T235900", "07282B")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// Remote order is descending; the cap must keep the earliest.
		fmt.Fprintf(w, `{"features":[%s,%s]}`, featureJSON(second), featureJSON(first))
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, Options{})
	items, err := client.QueryItems(context.Background(), testKey, time.Time{}, time.Time{}, 1)
	if err != nil {
		t.Fatalf("QueryItems failed: %v", err)
	}
	if len(items) != 1 || items[0].Locator != first {
		t.Errorf("items = %+v, want only the earliest", items)
	}
}

func TestQueryItemsDedupsReprocessedProduct(t *testing.T) {
	// AUX_MET_1D is reprocessed in place: the same sensing time and
	// baseline can appear under several creation timestamps, of which
	// only the earliest belongs in the result.
	auxHref := func(sensing, creation, orbit string) string {
		return fmt.Sprintf(
			"https://download.example/ECA_EXAE_AUX_MET_1D_%sZ_%sZ_%s.h5",
			sensing, creation, orbit,
		)
	}
	earliest := auxHref("20250908T000000", "20250908T060000", "00001A")
	reprocessed := auxHref("20250908T000000", "20250909T120000", "00001A")
	other := auxHref("20250909T000000", "20250909T060000", "00002A")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{"features":[%s,%s,%s]}`,
			featureJSON(reprocessed), featureJSON(earliest), featureJSON(other))
	}))
	defer srv.Close()

	key := testKey
	key.Product = "AUX_MET_1D"
	client := NewHTTPClient(srv.URL, Options{})
	items, err := client.QueryItems(context.Background(), key, time.Time{}, time.Time{}, 0)
	if err != nil {
		t.Fatalf("QueryItems failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2: %+v", len(items), items)
	}
	if items[0].Locator != earliest {
		t.Errorf("items[0] = %s, want earliest creation %s", items[0].Locator, earliest)
	}
	if items[1].Locator != other {
		t.Errorf("items[1] = %s, want %s", items[1].Locator, other)
	}
}

func TestQueryItemsNoDedupForStandardProduct(t *testing.T) {
	// Two creations of the same sensing time survive for a product the
	// archive never reprocesses.
	first := "https://download.example/ECA_EXAE_BM__RAD_2B_20250908T232505Z_20250910T010458Z_07282A.h5"
	second := "https://download.example/ECA_EXAE_BM__RAD_2B_20250908T232505Z_20250911T010458Z_07282A.h5"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{"features":[%s,%s]}`, featureJSON(first), featureJSON(second))
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, Options{})
	items, err := client.QueryItems(context.Background(), testKey, time.Time{}, time.Time{}, 0)
	if err != nil {
		t.Fatalf("QueryItems failed: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("got %d items, want both creations kept: %+v", len(items), items)
	}
}

func TestStatusClassification(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, maaperrors.ErrInvalidCredentials},
		{http.StatusForbidden, maaperrors.ErrInvalidCredentials},
		{http.StatusBadRequest, maaperrors.ErrRemoteQuery},
		{http.StatusNotFound, maaperrors.ErrRemoteQuery},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tt.status)
		}))
		client := NewHTTPClient(srv.URL, Options{})
		_, err := client.CountMatches(context.Background(), testKey, time.Time{}, time.Time{})
		if !errors.Is(err, tt.want) {
			t.Errorf("status %d: error %v, want %v", tt.status, err, tt.want)
		}
		srv.Close()
	}
}

type staticTokens string

func (s staticTokens) Token(context.Context) (string, error) { return string(s), nil }

func TestAuthTransportSetsBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, `{"numberMatched":0,"features":[]}`)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, Options{TokenSource: staticTokens("tok-123")})
	if _, err := client.CountMatches(context.Background(), testKey, time.Time{}, time.Time{}); err != nil {
		t.Fatalf("CountMatches failed: %v", err)
	}
	if gotAuth != "Bearer tok-123" {
		t.Errorf("Authorization = %q, want bearer token", gotAuth)
	}
}

func TestRetryTransportRecoversFromServerErrors(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"numberMatched":7,"features":[]}`)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, Options{MaxRetries: 3})
	n, err := client.CountMatches(context.Background(), testKey, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("CountMatches failed after retries: %v", err)
	}
	if n != 7 {
		t.Errorf("count = %d, want 7", n)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRetryTransportHonorsRetryAfterHint(t *testing.T) {
	// A 429 with an explicit zero hint must retry immediately instead
	// of sleeping the default backoff.
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		if attempts == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"numberMatched":1,"features":[]}`)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, Options{MaxRetries: 3})
	began := time.Now()
	ok, err := client.ExistsAny(context.Background(), testKey, time.Time{}, time.Time{})
	elapsed := time.Since(began)
	if err != nil {
		t.Fatalf("ExistsAny failed: %v", err)
	}
	if !ok {
		t.Error("ExistsAny = false, want true")
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
	if elapsed >= 500*time.Millisecond {
		t.Errorf("elapsed = %v, want immediate retry on Retry-After: 0", elapsed)
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		value  string
		want   time.Duration
		wantOK bool
	}{
		{"0", 0, true},
		{"7", 7 * time.Second, true},
		{"-3", 0, false},
		{"", 0, false},
		{"soon", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseRetryAfter(tt.value)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("parseRetryAfter(%q) = (%v, %v), want (%v, %v)",
				tt.value, got, ok, tt.want, tt.wantOK)
		}
	}

	// An HTTP-date in the past clamps to zero rather than going negative.
	past := time.Now().Add(-time.Minute).UTC().Format(http.TimeFormat)
	if got, ok := parseRetryAfter(past); !ok || got != 0 {
		t.Errorf("parseRetryAfter(past date) = (%v, %v), want (0, true)", got, ok)
	}
}

func TestRetryTransportGivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, Options{MaxRetries: 1})
	_, err := client.CountMatches(context.Background(), testKey, time.Time{}, time.Time{})
	if !errors.Is(err, maaperrors.ErrNetworkFailure) {
		t.Errorf("error = %v, want ErrNetworkFailure", err)
	}
}

func TestBaselinesProbesCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/queryables") {
			fmt.Fprint(w, `{"properties":{"productVersion":{"enum":["AC","AD","AE"]}}}`)
			return
		}
		// Only AC and AE hold data.
		if strings.Contains(r.URL.Query().Get("filter"), "'AD'") {
			fmt.Fprint(w, `{"numberMatched":0,"features":[]}`)
			return
		}
		fmt.Fprint(w, `{"numberMatched":5,"features":[]}`)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, Options{})
	got, err := client.Baselines(context.Background(), testKey)
	if err != nil {
		t.Fatalf("Baselines failed: %v", err)
	}
	want := []string{"AC", "AE"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("baselines = %v, want %v", got, want)
	}
}

func TestMockClientWindowAndCounters(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2025, 9, d, 12, 0, 0, 0, time.UTC) }
	mock := &MockClient{Items: []Item{
		{Locator: "a", ReferenceTime: day(1)},
		{Locator: "b", ReferenceTime: day(5)},
		{Locator: "c", ReferenceTime: day(9)},
	}}

	n, err := mock.CountMatches(context.Background(), testKey, day(2), day(9))
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}
	if mock.CountCalls != 1 {
		t.Errorf("CountCalls = %d, want 1", mock.CountCalls)
	}
}
