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
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"

	maaperrors "github.com/earthfocus/maap-client/internal/errors"
	"github.com/earthfocus/maap-client/internal/granule"
	"github.com/earthfocus/maap-client/internal/scope"
	"github.com/earthfocus/maap-client/pkg/version"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// TokenSource supplies a bearer token for catalogue requests. A nil
// source means anonymous access.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Options configures the HTTP catalogue client.
type Options struct {
	// TokenSource authenticates requests; nil for anonymous access.
	TokenSource TokenSource
	// Timeout bounds each HTTP request. Zero means 60s.
	Timeout time.Duration
	// PageSize is the items-per-page limit for paginated queries.
	// Zero means 150.
	PageSize int
	// MaxRetries bounds retry attempts for transient failures.
	// Zero means 3.
	MaxRetries int
	// Logger receives per-request debug output.
	Logger zerolog.Logger
}

// HTTPClient implements Client against a STAC API over HTTPS.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	pageSize   int
	log        zerolog.Logger
}

// NewHTTPClient creates a catalogue client for the given STAC API root,
// e.g. "https://catalog.maap.eo.esa.int/catalogue".
func NewHTTPClient(baseURL string, opts Options) *HTTPClient {
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.PageSize == 0 {
		opts.PageSize = 150
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}

	transport := http.RoundTripper(&authTransport{
		tokens: opts.TokenSource,
		base:   http.DefaultTransport,
	})
	transport = &retryTransport{base: transport, maxRetries: opts.MaxRetries}

	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
		},
		pageSize: opts.PageSize,
		log:      opts.Logger,
	}
}

// searchParams is one page request against the search endpoint.
type searchParams struct {
	collection string
	filter     string
	start, end time.Time
	limit      int
}

func cqlFilter(key scope.Key) string {
	parts := []string{fmt.Sprintf("productType = '%s'", key.Product)}
	if key.Baseline != "" {
		parts = append(parts, fmt.Sprintf("productVersion = '%s'", key.Baseline))
	}
	return strings.Join(parts, " AND ")
}

// stacInterval renders an inclusive window as a STAC datetime interval,
// leaving open ends as "..".
func stacInterval(start, end time.Time) string {
	s, e := "..", ".."
	if !start.IsZero() {
		s = start.UTC().Format(time.RFC3339)
	}
	if !end.IsZero() {
		e = end.UTC().Format(time.RFC3339)
	}
	return s + "/" + e
}

func (c *HTTPClient) searchURL(p searchParams) string {
	q := url.Values{}
	q.Set("collections", p.collection)
	q.Set("filter", p.filter)
	q.Set("filter-lang", "cql2-text")
	q.Set("limit", strconv.Itoa(p.limit))
	if !p.start.IsZero() || !p.end.IsZero() {
		q.Set("datetime", stacInterval(p.start, p.end))
	}
	return c.baseURL + "/search?" + q.Encode()
}

func (c *HTTPClient) getJSON(ctx context.Context, rawURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/geo+json, application/json")

	c.log.Debug().Str("url", rawURL).Msg("catalogue request")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("catalogue request: %v: %w", err, maaperrors.ErrNetworkFailure)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return classifyStatus(resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding catalogue response: %v: %w", err, maaperrors.ErrRemoteQuery)
	}
	return nil
}

// classifyStatus maps an HTTP status to a sentinel error.
func classifyStatus(status int, body string) error {
	msg := strings.TrimSpace(body)
	if len(msg) > 200 {
		msg = msg[:200]
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("catalogue returned %d: %s: %w", status, msg, maaperrors.ErrInvalidCredentials)
	default:
		return fmt.Errorf("catalogue returned %d: %s: %w", status, msg, maaperrors.ErrRemoteQuery)
	}
}

// Wire types for STAC FeatureCollection responses. Both the OGC
// numberMatched field and the older context extension are accepted.
type featureCollection struct {
	Features      []feature      `json:"features"`
	NumberMatched *int           `json:"numberMatched"`
	Context       *searchContext `json:"context"`
	Links         []apiLink      `json:"links"`
}

type searchContext struct {
	Matched *int `json:"matched"`
}

type feature struct {
	ID         string           `json:"id"`
	Properties itemProperties   `json:"properties"`
	Assets     map[string]asset `json:"assets"`
}

type itemProperties struct {
	Datetime      string `json:"datetime"`
	StartDatetime string `json:"start_datetime"`
}

type asset struct {
	Href string `json:"href"`
}

type apiLink struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

func (fc *featureCollection) matched() (int, bool) {
	if fc.NumberMatched != nil {
		return *fc.NumberMatched, true
	}
	if fc.Context != nil && fc.Context.Matched != nil {
		return *fc.Context.Matched, true
	}
	return 0, false
}

func (fc *featureCollection) nextLink() string {
	for _, l := range fc.Links {
		if l.Rel == "next" {
			return l.Href
		}
	}
	return ""
}

// enclosure picks the download asset from a feature. Every archive item
// carries at least one asset keyed "enclosure" or a suffixed variant
// ("enclosure_h5", "enclosure_hdr").
func (f *feature) enclosure() string {
	if a, ok := f.Assets["enclosure"]; ok && a.Href != "" {
		return a.Href
	}
	var keys []string
	for k := range f.Assets {
		if strings.HasPrefix(k, "enclosure") {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		if href := f.Assets[k].Href; href != "" {
			return href
		}
	}
	return ""
}

// CountMatches implements Client using the remote's match count so no
// item bodies are transferred.
func (c *HTTPClient) CountMatches(ctx context.Context, key scope.Key, start, end time.Time) (int, error) {
	var fc featureCollection
	u := c.searchURL(searchParams{
		collection: key.Collection,
		filter:     cqlFilter(key),
		start:      start,
		end:        end,
		limit:      1,
	})
	if err := c.getJSON(ctx, u, &fc); err != nil {
		return 0, err
	}
	if n, ok := fc.matched(); ok {
		return n, nil
	}
	return len(fc.Features), nil
}

// ExistsAny implements Client with a single limit-1 page request.
func (c *HTTPClient) ExistsAny(ctx context.Context, key scope.Key, start, end time.Time) (bool, error) {
	var fc featureCollection
	u := c.searchURL(searchParams{
		collection: key.Collection,
		filter:     cqlFilter(key),
		start:      start,
		end:        end,
		limit:      1,
	})
	if err := c.getJSON(ctx, u, &fc); err != nil {
		return false, err
	}
	if n, ok := fc.matched(); ok {
		return n > 0, nil
	}
	return len(fc.Features) > 0, nil
}

// QueryItems implements Client. The remote filters by its own item
// datetime, which may disagree with the filename sensing time near
// window edges, so items are re-filtered and sorted by the re-derived
// reference time before returning.
func (c *HTTPClient) QueryItems(ctx context.Context, key scope.Key, start, end time.Time, maxItems int) ([]Item, error) {
	var items []Item
	next := c.searchURL(searchParams{
		collection: key.Collection,
		filter:     cqlFilter(key),
		start:      start,
		end:        end,
		limit:      c.pageSize,
	})

	for next != "" {
		var fc featureCollection
		if err := c.getJSON(ctx, next, &fc); err != nil {
			return nil, err
		}
		for i := range fc.Features {
			item, ok := toItem(&fc.Features[i])
			if !ok {
				c.log.Warn().Str("id", fc.Features[i].ID).Msg("feature without usable asset, skipping")
				continue
			}
			items = append(items, item)
		}
		if len(fc.Features) == 0 {
			break
		}
		// Over-collect past maxItems so the cut happens after sorting.
		if maxItems > 0 && len(items) >= maxItems*2 {
			break
		}
		next = fc.nextLink()
	}

	filtered := items[:0]
	for _, item := range items {
		if !start.IsZero() && item.ReferenceTime.Before(start) {
			continue
		}
		if !end.IsZero() && item.ReferenceTime.After(end) {
			continue
		}
		filtered = append(filtered, item)
	}
	if dedupProducts[key.Product] {
		filtered = c.dedupEarliestCreation(filtered)
	}
	sort.Slice(filtered, func(i, j int) bool {
		if !filtered[i].ReferenceTime.Equal(filtered[j].ReferenceTime) {
			return filtered[i].ReferenceTime.Before(filtered[j].ReferenceTime)
		}
		return filtered[i].Locator < filtered[j].Locator
	})
	if maxItems > 0 && len(filtered) > maxItems {
		filtered = filtered[:maxItems]
	}
	return filtered, nil
}

// dedupProducts is the set of product types the archive reprocesses in
// place: several creations of the same sensing time and baseline can
// coexist, of which only the earliest is wanted.
var dedupProducts = map[string]bool{
	"AUX_MET_1D": true,
}

// dedupEarliestCreation collapses items sharing a baseline and sensing
// time to the one with the earliest creation timestamp. Items whose
// filenames lack the needed metadata are dropped with a warning.
func (c *HTTPClient) dedupEarliestCreation(items []Item) []Item {
	type dedupKey struct {
		baseline string
		sensing  int64
	}
	type candidate struct {
		item    Item
		created time.Time
	}

	best := make(map[dedupKey]candidate, len(items))
	for _, item := range items {
		baseline, okB := granule.Baseline(item.Locator)
		created, okC := granule.CreationTime(item.Locator)
		if !okB || !okC {
			c.log.Warn().Str("locator", item.Locator).Msg("missing baseline or creation time, dropping from dedup")
			continue
		}
		k := dedupKey{baseline: baseline, sensing: item.ReferenceTime.Unix()}
		if prev, ok := best[k]; ok && !created.Before(prev.created) {
			continue
		}
		best[k] = candidate{item: item, created: created}
	}

	out := make([]Item, 0, len(best))
	for _, cand := range best {
		out = append(out, cand.item)
	}
	return out
}

// toItem converts a STAC feature, re-deriving the reference time from
// the asset filename and falling back to the datetime property.
func toItem(f *feature) (Item, bool) {
	href := f.enclosure()
	if href == "" {
		return Item{}, false
	}
	item := Item{Locator: href}
	if ts, ok := granule.SensingTime(href); ok {
		item.ReferenceTime = ts
	} else if ts, err := parseAnyTime(f.Properties.StartDatetime, f.Properties.Datetime); err == nil {
		item.ReferenceTime = ts
	} else {
		return Item{}, false
	}
	item.OrbitFrame, _ = granule.OrbitFrame(href)
	return item, true
}

func parseAnyTime(candidates ...string) (time.Time, error) {
	for _, s := range candidates {
		if s == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("no parseable timestamp")
}

// queryablesDoc is the JSON-schema response of the queryables endpoint.
type queryablesDoc struct {
	Properties map[string]struct {
		Enum []string `json:"enum"`
	} `json:"properties"`
}

// Baselines implements Client: candidate versions come from the
// collection's queryables schema, then each is existence-probed because
// the schema advertises versions that hold no data for some products.
func (c *HTTPClient) Baselines(ctx context.Context, key scope.Key) ([]string, error) {
	var doc queryablesDoc
	u := c.baseURL + "/collections/" + url.PathEscape(key.Collection) + "/queryables"
	if err := c.getJSON(ctx, u, &doc); err != nil {
		return nil, err
	}
	candidates := doc.Properties["productVersion"].Enum

	var existing []string
	for _, candidate := range candidates {
		probe := key
		probe.Baseline = strings.ToUpper(candidate)
		ok, err := c.ExistsAny(ctx, probe, time.Time{}, time.Time{})
		if err != nil {
			return nil, err
		}
		if ok {
			existing = append(existing, probe.Baseline)
		}
	}
	sort.Strings(existing)
	return existing, nil
}

// Products implements Client from the queryables schema. Unlike
// baselines, product names are not probed: an advertised product with
// no data simply yields an empty range later.
func (c *HTTPClient) Products(ctx context.Context, collection string) ([]string, error) {
	var doc queryablesDoc
	u := c.baseURL + "/collections/" + url.PathEscape(collection) + "/queryables"
	if err := c.getJSON(ctx, u, &doc); err != nil {
		return nil, err
	}
	products := append([]string(nil), doc.Properties["productType"].Enum...)
	sort.Strings(products)
	return products, nil
}

// authTransport injects the bearer token and client identification into
// every catalogue request.
type authTransport struct {
	tokens TokenSource
	base   http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", fmt.Sprintf("maap-client/%s", version.Version))
	if t.tokens != nil {
		token, err := t.tokens.Token(req.Context())
		if err != nil {
			return nil, fmt.Errorf("acquiring token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return t.base.RoundTrip(req)
}

// retryTransport adds exponential backoff retry for transient failures:
// network errors, 429 and 5xx responses. A 429 carrying a Retry-After
// header waits the server's hint instead of the backoff. Auth and other
// client errors return immediately.
type retryTransport struct {
	base       http.RoundTripper
	maxRetries int
}

// RoundTrip implements http.RoundTripper with retry logic.
func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var lastErr error
	backoff := time.Second

	for attempt := 0; ; attempt++ {
		hinted := time.Duration(-1)

		resp, err := t.base.RoundTrip(req)
		switch {
		case err != nil:
			if req.Context().Err() != nil {
				return nil, err
			}
			lastErr = err
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = fmt.Errorf("catalogue returned %d", resp.StatusCode)
			if resp.StatusCode == http.StatusTooManyRequests {
				if d, ok := parseRetryAfter(resp.Header.Get("Retry-After")); ok {
					hinted = d
				}
			}
			resp.Body.Close()
		default:
			return resp, nil
		}

		if attempt >= t.maxRetries {
			return nil, fmt.Errorf("giving up after %d attempts: %v: %w", attempt+1, lastErr, maaperrors.ErrNetworkFailure)
		}

		wait := hinted
		if wait < 0 {
			wait = backoff
			backoff *= 2
			if backoff > 30*time.Second {
				backoff = 30 * time.Second
			}
		}
		if wait > 0 {
			select {
			case <-time.After(wait):
			case <-req.Context().Done():
				return nil, req.Context().Err()
			}
		}
	}
}

// parseRetryAfter interprets a Retry-After value as either delay
// seconds or an HTTP-date.
func parseRetryAfter(v string) (time.Duration, bool) {
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, true
	}
	if when, err := http.ParseTime(v); err == nil {
		d := time.Until(when)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}
