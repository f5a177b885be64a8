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

// Package output streams query results as NDJSON to stdout or a file,
// one record per line, flushed immediately so large result sets never
// accumulate in memory and partial output survives an interrupted run.
package output

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// RecordWriter is the interface command handlers write results through,
// so alternative formats can slot in without touching command logic.
type RecordWriter interface {
	// Write emits one record, immediately flushed.
	Write(record interface{}) error

	// Close releases the underlying sink.
	Close() error
}

// GranuleRecord is the NDJSON shape for one discovered or pending
// granule.
type GranuleRecord struct {
	Day        string    `json:"day"`
	Locator    string    `json:"locator,omitempty"`
	Local      string    `json:"local,omitempty"`
	Reference  time.Time `json:"reference_time,omitempty"`
	OrbitFrame string    `json:"orbit_frame,omitempty"`
}

// Writer is an NDJSON RecordWriter. Safe for concurrent use.
type Writer struct {
	mu        sync.Mutex
	encoder   *jsoniter.Encoder
	count     int
	closeFunc func() error
}

// NewWriter creates a writer over an arbitrary sink.
func NewWriter(w io.Writer) *Writer {
	return &Writer{encoder: json.NewEncoder(w)}
}

// NewFileWriter creates a writer backed by a freshly created file. The
// caller must Close it.
func NewFileWriter(filename string) (*Writer, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("creating output file: %w", err)
	}
	return &Writer{
		encoder:   json.NewEncoder(file),
		closeFunc: file.Close,
	}, nil
}

// Write implements RecordWriter.
func (w *Writer) Write(record interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.encoder.Encode(record); err != nil {
		return fmt.Errorf("writing record: %w", err)
	}
	w.count++
	return nil
}

// Count returns the number of records written so far.
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Close implements RecordWriter.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closeFunc != nil {
		return w.closeFunc()
	}
	return nil
}
