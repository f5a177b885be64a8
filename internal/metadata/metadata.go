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

// Package metadata records per-run audit documents for sync operations.
// Each sync writes one JSON record next to the ledger capturing what was
// requested, what happened and how long it took, so operators can
// reconstruct the history of a scope without parsing logs.
package metadata

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	maaperrors "github.com/earthfocus/maap-client/internal/errors"
	"github.com/earthfocus/maap-client/internal/scope"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// SyncParams captures the inputs of one sync run. Preserved verbatim so
// a run can be reproduced.
type SyncParams struct {
	Mission    string     `json:"mission"`
	Collection string     `json:"collection"`
	Product    string     `json:"product"`
	Baseline   string     `json:"baseline"`
	Since      *time.Time `json:"since,omitempty"`
	Until      *time.Time `json:"until,omitempty"`
	DryRun     bool       `json:"dry_run"`
}

// SyncResults holds the outcome counters of one sync run.
type SyncResults struct {
	Discovered  int       `json:"discovered"`
	NewRecords  int       `json:"new_records"`
	Fetched     int       `json:"fetched"`
	Skipped     int       `json:"skipped"`
	Failed      int       `json:"failed"`
	Duration    string    `json:"duration"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// SyncRecord is the complete audit document for one run.
type SyncRecord struct {
	ClientVersion string      `json:"client_version"`
	RunID         string      `json:"run_id"`
	Parameters    SyncParams  `json:"parameters"`
	Results       SyncResults `json:"results"`
}

// Recorder accumulates counters during a sync and produces the final
// record.
type Recorder struct {
	startedAt time.Time
	params    SyncParams
	results   SyncResults
}

// NewRecorder starts tracking a sync run.
func NewRecorder(params SyncParams) *Recorder {
	return &Recorder{startedAt: time.Now(), params: params}
}

// AddDiscovered accumulates discovery counters.
func (r *Recorder) AddDiscovered(total, newRecords int) {
	r.results.Discovered += total
	r.results.NewRecords += newRecords
}

// AddFetch accumulates download counters.
func (r *Recorder) AddFetch(fetched, skipped, failed int) {
	r.results.Fetched += fetched
	r.results.Skipped += skipped
	r.results.Failed += failed
}

// Finish closes the run and returns the audit record.
func (r *Recorder) Finish(clientVersion string) *SyncRecord {
	completedAt := time.Now()
	r.results.StartedAt = r.startedAt.UTC()
	r.results.CompletedAt = completedAt.UTC()
	r.results.Duration = completedAt.Sub(r.startedAt).Round(time.Millisecond).String()

	return &SyncRecord{
		ClientVersion: clientVersion,
		RunID:         uuid.NewString(),
		Parameters:    r.params,
		Results:       r.results,
	}
}

// Save writes the record under dir as runs/<scope>/<runID>.json,
// atomically.
func Save(dir string, key scope.Key, record *SyncRecord) error {
	runDir := filepath.Join(dir, "runs", key.Mission, key.Collection, key.Product, key.Baseline)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return fmt.Errorf("creating run directory: %v: %w", err, maaperrors.ErrStorage)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding run record: %v: %w", err, maaperrors.ErrStorage)
	}
	data = append(data, '\n')

	path := filepath.Join(runDir, record.RunID+".json")
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("writing run record: %v: %w", err, maaperrors.ErrStorage)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("finalizing run record: %v: %w", err, maaperrors.ErrStorage)
	}
	return nil
}
