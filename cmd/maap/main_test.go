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
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/earthfocus/maap-client/internal/config"
	maaperrors "github.com/earthfocus/maap-client/internal/errors"
	"github.com/earthfocus/maap-client/internal/stac"
)

func TestParseTimeFlag(t *testing.T) {
	tests := []struct {
		input    string
		endOfDay bool
		wantErr  bool
		check    func(time.Time) bool
	}{
		{
			input: "2025-09-08T10:30:00Z",
			check: func(tm time.Time) bool {
				return tm.Year() == 2025 && tm.Hour() == 10 && tm.Minute() == 30
			},
		},
		{
			input: "2025-09-08",
			check: func(tm time.Time) bool {
				return tm.Year() == 2025 && tm.Month() == 9 && tm.Day() == 8 &&
					tm.Hour() == 0 && tm.Minute() == 0 && tm.Second() == 0
			},
		},
		{
			input:    "2025-09-08",
			endOfDay: true,
			check: func(tm time.Time) bool {
				return tm.Day() == 8 && tm.Hour() == 23 && tm.Minute() == 59
			},
		},
		{
			input: "",
			check: func(tm time.Time) bool { return tm.IsZero() },
		},
		{
			input:   "09/08/2025",
			wantErr: true,
		},
		{
			input:   "2025-13-40",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		got, err := parseTimeFlag(tt.input, tt.endOfDay)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseTimeFlag(%q, %v) error = %v, wantErr %v", tt.input, tt.endOfDay, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && !tt.check(got) {
			t.Errorf("parseTimeFlag(%q, %v) = %v, failed check", tt.input, tt.endOfDay, got)
		}
	}
}

func TestTimeFlagsRejectInvertedWindow(t *testing.T) {
	tf := timeFlags{start: "2025-09-10", end: "2025-09-01"}
	if _, _, err := tf.window(); err == nil {
		t.Fatal("expected error for inverted window")
	}
}

func TestTimeFlagsDayRangeOpenBounds(t *testing.T) {
	tf := timeFlags{end: "2025-09-08"}
	r, err := tf.dayRange()
	if err != nil {
		t.Fatalf("dayRange failed: %v", err)
	}
	if !r.Start.IsZero() {
		t.Errorf("expected open start, got %v", r.Start)
	}
	if r.End.IsZero() {
		t.Error("expected bounded end")
	}
}

func TestScopeFlagsKey(t *testing.T) {
	cfg := config.DefaultConfig()

	sf := scopeFlags{collection: "EarthCAREL2Validated_MAAP", product: "BM__RAD_2B", baseline: "AE"}
	key, err := sf.key(cfg)
	if err != nil {
		t.Fatalf("key failed: %v", err)
	}
	if key.Mission != cfg.Archive.Mission {
		t.Errorf("Mission = %q, want %q", key.Mission, cfg.Archive.Mission)
	}
	if key.Product != "BM__RAD_2B" || key.Baseline != "AE" {
		t.Errorf("unexpected key %+v", key)
	}

	sf.collection = "NotAConfiguredCollection"
	if _, err := sf.key(cfg); err == nil {
		t.Error("expected error for unknown collection")
	}
}

func TestMapErrorToExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"generic", errors.New("boom"), 1},
		{"auth", maaperrors.ErrInvalidCredentials, 2},
		{"wrapped auth", fmt.Errorf("token refresh: %w", maaperrors.ErrInvalidCredentials), 2},
		{"remote", maaperrors.ErrRemoteQuery, 3},
		{"network", fmt.Errorf("search: %w", maaperrors.ErrNetworkFailure), 3},
		{"storage", maaperrors.ErrStorage, 4},
		{"schema", fmt.Errorf("load snapshot: %w", maaperrors.ErrSchemaVersion), 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mapErrorToExitCode(tt.err); got != tt.want {
				t.Errorf("mapErrorToExitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestListCommandWalksHierarchy(t *testing.T) {
	cfg := config.DefaultConfig()
	mock := &stac.MockClient{
		ProductList:  []string{"ATL_NOM_1B", "BM__RAD_2B"},
		BaselineList: []string{"AC", "AE"},
	}
	buildApp := func() (*app, error) {
		return &app{cfg: cfg, log: zerolog.Nop(), client: mock}, nil
	}
	run := func(args ...string) (string, error) {
		cmd := newListCommand(buildApp)
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetErr(&out)
		cmd.SetArgs(args)
		err := cmd.Execute()
		return out.String(), err
	}

	// No arguments: configured collections.
	got, err := run()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	for _, collection := range cfg.Collections {
		if !strings.Contains(got, collection) {
			t.Errorf("collections output missing %q:\n%s", collection, got)
		}
	}

	// One argument: the collection's product types.
	got, err = run(cfg.Collections[0])
	if err != nil {
		t.Fatalf("list collection failed: %v", err)
	}
	if got != "ATL_NOM_1B\nBM__RAD_2B\n" {
		t.Errorf("products output = %q", got)
	}

	// Two arguments: baselines holding data.
	got, err = run(cfg.Collections[0], "BM__RAD_2B")
	if err != nil {
		t.Fatalf("list product failed: %v", err)
	}
	if got != "AC\nAE\n" {
		t.Errorf("baselines output = %q", got)
	}

	// An unconfigured collection is rejected before any remote call.
	if _, err = run("NotAConfiguredCollection"); err == nil {
		t.Error("expected error for unknown collection")
	}
}

func TestListCommandLatestBaseline(t *testing.T) {
	cfg := config.DefaultConfig()
	mock := &stac.MockClient{BaselineList: []string{"AC", "AD", "AE"}}
	buildApp := func() (*app, error) {
		return &app{cfg: cfg, log: zerolog.Nop(), client: mock}, nil
	}

	cmd := newListCommand(buildApp)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--latest", cfg.Collections[0], "BM__RAD_2B"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("list --latest failed: %v", err)
	}
	if out.String() != "AE\n" {
		t.Errorf("output = %q, want only the last baseline", out.String())
	}
}
