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
	"fmt"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"

	maaperrors "github.com/earthfocus/maap-client/internal/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Store reads and writes snapshot documents under one directory, one
// file per collection.
type Store struct {
	dir string
}

// NewStore creates a snapshot store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Path returns the snapshot location for a collection. Pure function of
// its inputs so independent runs agree on placement.
func (s *Store) Path(collection string) string {
	return filepath.Join(s.dir, collection+"_collection.json")
}

// Load reads a collection's snapshot. A missing file returns (nil, nil)
// so callers can distinguish "never built" from a read failure. An
// unknown schema version is a hard error.
func (s *Store) Load(collection string) (*Snapshot, error) {
	path := s.Path(collection)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot %s: %v: %w", path, err, maaperrors.ErrStorage)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parsing snapshot %s: %v: %w", path, err, maaperrors.ErrStorage)
	}
	if snap.Schema != SchemaVersion {
		return nil, fmt.Errorf("snapshot %s has schema %q, this client understands %q: %w",
			path, snap.Schema, SchemaVersion, maaperrors.ErrSchemaVersion)
	}
	if snap.Products == nil {
		snap.Products = map[string]*ProductEntry{}
	}
	return &snap, nil
}

// Save writes a snapshot atomically. Query-time consumers may read the
// document while a build is writing it, so the temp-then-rename
// discipline is mandatory.
func (s *Store) Save(snap *Snapshot) error {
	path := s.Path(snap.Collection)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating catalog directory: %v: %w", err, maaperrors.ErrStorage)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %v: %w", err, maaperrors.ErrStorage)
	}
	data = append(data, '\n')

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("writing snapshot: %v: %w", err, maaperrors.ErrStorage)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing snapshot: %v: %w", err, maaperrors.ErrStorage)
	}
	return nil
}
