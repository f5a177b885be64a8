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

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/earthfocus/maap-client/internal/auth"
	"github.com/earthfocus/maap-client/internal/catalog"
	"github.com/earthfocus/maap-client/internal/config"
	"github.com/earthfocus/maap-client/internal/fetch"
	"github.com/earthfocus/maap-client/internal/ledger"
	"github.com/earthfocus/maap-client/internal/scope"
	"github.com/earthfocus/maap-client/internal/stac"
	"github.com/earthfocus/maap-client/internal/tracker"
	"github.com/earthfocus/maap-client/pkg/version"
)

// app bundles the wired collaborators every command needs.
type app struct {
	cfg    *config.Config
	log    zerolog.Logger
	tokens stac.TokenSource
	client stac.Client
}

func newApp(configPath string, log zerolog.Logger) (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log}

	// Credentials are optional for catalogue queries; downloads of
	// restricted products will fail with an auth error instead.
	if _, statErr := os.Stat(cfg.Storage.CredentialsFile); statErr == nil {
		creds, err := auth.LoadCredentials(cfg.Storage.CredentialsFile)
		if err != nil {
			return nil, err
		}
		a.tokens = auth.NewTokenManager(creds, cfg.Archive.TokenURL)
	} else {
		log.Debug().Str("path", cfg.Storage.CredentialsFile).Msg("no credentials file, proceeding anonymously")
	}

	a.client = stac.NewHTTPClient(cfg.Archive.CatalogURL, stac.Options{
		TokenSource: a.tokens,
		Logger:      log,
	})
	return a, nil
}

func (a *app) ledgerStore() *ledger.Store {
	return ledger.NewStore(a.cfg.Storage.RegistryDir)
}

func (a *app) catalogStore() *catalog.Store {
	return catalog.NewStore(a.cfg.Storage.CatalogDir)
}

func (a *app) tracker(key scope.Key) *tracker.Tracker {
	return tracker.New(a.ledgerStore(), key, a.cfg.Storage.DataDir, a.log)
}

func (a *app) fetcher() *fetch.Fetcher {
	return fetch.New(fetch.Options{
		TokenSource: a.tokens,
		Concurrency: a.cfg.Download.Concurrency,
		Timeout:     time.Duration(a.cfg.Download.TimeoutSeconds) * time.Second,
		Logger:      a.log,
	})
}

func (a *app) clientInfo() catalog.ClientInfo {
	return catalog.ClientInfo{Name: "maap-client", Version: version.Version}
}

// missionBound returns the configured mission lifetime as a day range.
func (a *app) missionBound() (scope.DayRange, error) {
	start, end, err := a.cfg.MissionWindow()
	if err != nil {
		return scope.DayRange{}, err
	}
	return scope.DayRange{Start: scope.DayOf(start), End: scope.DayOf(end)}, nil
}

// scopeFlags is the product addressing triple shared by most commands.
type scopeFlags struct {
	collection string
	product    string
	baseline   string
}

func (s *scopeFlags) register(cmd *cobra.Command, baselineRequired bool) {
	cmd.Flags().StringVarP(&s.collection, "collection", "c", "", "archive collection name")
	cmd.Flags().StringVarP(&s.product, "product", "p", "", "product type, e.g. BM__RAD_2B")
	cmd.Flags().StringVarP(&s.baseline, "baseline", "b", "", "baseline version, e.g. AE")
	_ = cmd.MarkFlagRequired("collection")
	_ = cmd.MarkFlagRequired("product")
	if baselineRequired {
		_ = cmd.MarkFlagRequired("baseline")
	}
}

func (s *scopeFlags) key(cfg *config.Config) (scope.Key, error) {
	if !cfg.HasCollection(s.collection) {
		return scope.Key{}, fmt.Errorf("unknown collection %q, configured: %v", s.collection, cfg.Collections)
	}
	return scope.Key{
		Mission:    cfg.Archive.Mission,
		Collection: s.collection,
		Product:    s.product,
		Baseline:   s.baseline,
	}, nil
}

// timeFlags is the optional --start/--end window accepted as RFC 3339
// or as a bare day.
type timeFlags struct {
	start string
	end   string
}

func (t *timeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&t.start, "start", "", "window start (RFC 3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&t.end, "end", "", "window end (RFC 3339 or YYYY-MM-DD)")
}

func parseTimeFlag(s string, endOfDay bool) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if d, err := time.Parse("2006-01-02", s); err == nil {
		day := scope.DayOf(d)
		if endOfDay {
			return day.End(), nil
		}
		return day.Start(), nil
	}
	return time.Time{}, fmt.Errorf("invalid time %q, want RFC 3339 or YYYY-MM-DD", s)
}

func (t *timeFlags) window() (start, end time.Time, err error) {
	start, err = parseTimeFlag(t.start, false)
	if err != nil {
		return
	}
	end, err = parseTimeFlag(t.end, true)
	if err != nil {
		return
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		err = fmt.Errorf("window %s..%s is inverted", t.start, t.end)
	}
	return
}

// dayRange converts the window to an inclusive day range for ledger
// scans; zero bounds stay open.
func (t *timeFlags) dayRange() (scope.DayRange, error) {
	start, end, err := t.window()
	if err != nil {
		return scope.DayRange{}, err
	}
	var r scope.DayRange
	if !start.IsZero() {
		r.Start = scope.DayOf(start)
	}
	if !end.IsZero() {
		r.End = scope.DayOf(end)
	}
	return r, nil
}
