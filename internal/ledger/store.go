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

// Package ledger provides durable, idempotent persistence of day-partitioned
// record sets. It knows nothing about what the three phases mean; the
// lifecycle semantics live in the tracker package.
//
// Partition layout:
//
//	root/{phase}/{mission}/{collection}/{product}/{baseline}/{year}/{pfx}YYYYMMDD.txt
//
// One record per line, pipe-separated. Partition files are overwritten
// wholesale through a temp-file-and-rename sequence so that concurrent
// readers (status and pending listings running beside a sync job) never
// observe a half-written partition.
package ledger

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	maaperrors "github.com/earthfocus/maap-client/internal/errors"
	"github.com/earthfocus/maap-client/internal/scope"
)

// Store performs low-level partition file operations beneath a root
// directory. The zero value is not usable; construct with NewStore.
type Store struct {
	root string
}

// NewStore creates a Store rooted at dir. The directory tree is created
// lazily on first write.
func NewStore(dir string) *Store {
	return &Store{root: dir}
}

// Root returns the store's root directory.
func (s *Store) Root() string { return s.root }

// Path returns the partition file location for a scope key, phase and
// day. It is a pure function of its inputs: two independent runs
// targeting the same scope always agree on placement.
func (s *Store) Path(key scope.Key, phase Phase, day scope.Day) string {
	return filepath.Join(
		s.scopeDir(key, phase),
		fmt.Sprintf("%04d", day.Year),
		phase.prefix()+day.Compact()+".txt",
	)
}

func (s *Store) scopeDir(key scope.Key, phase Phase) string {
	return filepath.Join(s.root, phase.String(), key.Mission, key.Collection, key.Product, key.Baseline)
}

// ReadSet loads the record set for one partition. A missing partition
// file is an empty set, not an error; a present but unreadable file is
// surfaced as ErrStorage. Blank lines and #-comments are skipped.
func (s *Store) ReadSet(key scope.Key, phase Phase, day scope.Day) ([]Record, error) {
	return s.readFile(s.Path(key, phase, day), phase)
}

func (s *Store) readFile(path string, phase Phase) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open partition %s: %v: %w", path, err, maaperrors.ErrStorage)
	}
	defer f.Close()

	var records []Record
	seen := make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rec := decodeRecord(line, phase)
		if _, dup := seen[rec.key()]; dup {
			continue
		}
		seen[rec.key()] = struct{}{}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read partition %s: %v: %w", path, err, maaperrors.ErrStorage)
	}
	return records, nil
}

// WriteSet overwrites the partition with exactly the given records,
// deduplicated and sorted by set key so that re-runs produce diffable
// files. The write goes to a temp file in the same directory and is
// renamed into place.
func (s *Store) WriteSet(key scope.Key, phase Phase, day scope.Day, records []Record) error {
	path := s.Path(key, phase, day)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create partition directory: %v: %w", err, maaperrors.ErrStorage)
	}

	deduped := make(map[string]Record, len(records))
	for _, r := range records {
		deduped[r.key()] = r
	}
	keys := make([]string, 0, len(deduped))
	for k := range deduped {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create temp partition: %v: %w", err, maaperrors.ErrStorage)
	}

	w := bufio.NewWriter(f)
	for _, k := range keys {
		if _, err := w.WriteString(deduped[k].encode() + "\n"); err != nil {
			f.Close()
			os.Remove(tmp)
			return fmt.Errorf("write temp partition: %v: %w", err, maaperrors.ErrStorage)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("flush temp partition: %v: %w", err, maaperrors.ErrStorage)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("sync temp partition: %v: %w", err, maaperrors.ErrStorage)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close temp partition: %v: %w", err, maaperrors.ErrStorage)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename partition into place: %v: %w", err, maaperrors.ErrStorage)
	}
	return nil
}

// Touch updates the partition's modification time without rewriting its
// content, recording "verified fresh as of now" when a caller finds the
// set unchanged. Touching a missing partition is a no-op.
func (s *Store) Touch(key scope.Key, phase Phase, day scope.Day) error {
	path := s.Path(key, phase, day)
	now := time.Now()
	if err := os.Chtimes(path, now, now); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("touch partition %s: %v: %w", path, err, maaperrors.ErrStorage)
	}
	return nil
}

// ErrorRecord is one line of the append-only failure file: a locator
// and a flattened one-line message.
type ErrorRecord struct {
	Locator string
	Message string
}

// ErrorsPath returns the scope's failure record file. Failures are not
// day-partitioned; the file lives beside the fetched partitions.
func (s *Store) ErrorsPath(key scope.Key) string {
	return filepath.Join(s.scopeDir(key, PhaseFetched), "errors.txt")
}

// AppendError appends one failure line. Unlike partitions the failure
// file is append-only and never rewritten; duplicates are collapsed on
// read.
func (s *Store) AppendError(key scope.Key, locator, message string) error {
	path := s.ErrorsPath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create failure record directory: %v: %w", err, maaperrors.ErrStorage)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open failure record %s: %v: %w", path, err, maaperrors.ErrStorage)
	}
	_, err = f.WriteString(locator + "|" + message + "\n")
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("append failure record: %v: %w", err, maaperrors.ErrStorage)
	}
	return nil
}

// ReadErrors returns the scope's recorded failures, keeping the first
// message per locator. A missing file is an empty set.
func (s *Store) ReadErrors(key scope.Key) ([]ErrorRecord, error) {
	f, err := os.Open(s.ErrorsPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open failure record: %v: %w", err, maaperrors.ErrStorage)
	}
	defer f.Close()

	var records []ErrorRecord
	seen := make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		locator, message, _ := strings.Cut(line, "|")
		if _, dup := seen[locator]; dup {
			continue
		}
		seen[locator] = struct{}{}
		records = append(records, ErrorRecord{Locator: locator, Message: message})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read failure record: %v: %w", err, maaperrors.ErrStorage)
	}
	return records, nil
}

// Exists reports whether a partition file is present on disk.
func (s *Store) Exists(key scope.Key, phase Phase, day scope.Day) bool {
	_, err := os.Stat(s.Path(key, phase, day))
	return err == nil
}

// ListDays returns the days that have a partition file for the scope and
// phase, ascending. Callers stream partition contents one day at a time;
// only the day index is materialized here.
func (s *Store) ListDays(key scope.Key, phase Phase) ([]scope.Day, error) {
	base := s.scopeDir(key, phase)
	if _, err := os.Stat(base); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat %s: %v: %w", base, err, maaperrors.ErrStorage)
	}

	pattern := filepath.Join(base, "*", phase.prefix()+"*.txt")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("list partitions under %s: %v: %w", base, err, maaperrors.ErrStorage)
	}

	days := make([]scope.Day, 0, len(matches))
	for _, m := range matches {
		name := filepath.Base(m)
		compact := strings.TrimSuffix(strings.TrimPrefix(name, phase.prefix()), ".txt")
		day, perr := scope.ParseDay(compact)
		if perr != nil {
			continue
		}
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days, nil
}
