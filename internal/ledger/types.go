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

package ledger

import "strings"

// Phase identifies one of the three lifecycle record sets.
type Phase int

const (
	// PhaseDiscovered holds locator/path pairs produced by discovery runs.
	PhaseDiscovered Phase = iota
	// PhaseFetched holds locator/path pairs confirmed after retrieval.
	PhaseFetched
	// PhaseConsumed holds local paths reported back by downstream
	// processing; consumed artifacts are eligible for deletion.
	PhaseConsumed
)

// String returns the phase directory name.
func (p Phase) String() string {
	switch p {
	case PhaseDiscovered:
		return "discovered"
	case PhaseFetched:
		return "fetched"
	case PhaseConsumed:
		return "consumed"
	}
	return "unknown"
}

// prefix returns the partition filename prefix for the phase.
func (p Phase) prefix() string {
	switch p {
	case PhaseDiscovered:
		return "dsc_"
	case PhaseFetched:
		return "ftc_"
	case PhaseConsumed:
		return "cns_"
	}
	return "unk_"
}

// Record is one ledger line. Discovered and fetched partitions store a
// remote locator paired with its local target path; consumed partitions
// store the local path alone, with Remote left empty.
type Record struct {
	Remote string
	Local  string
}

// key returns the set-identity of the record within its partition:
// the locator for discovered/fetched records, the path for consumed.
func (r Record) key() string {
	if r.Remote != "" {
		return r.Remote
	}
	return r.Local
}

// encode renders the record as a partition file line.
func (r Record) encode() string {
	if r.Remote == "" {
		return r.Local
	}
	if r.Local == "" {
		return r.Remote
	}
	return r.Remote + "|" + r.Local
}

// decodeRecord parses a partition file line. Consumed lines carry a
// single column holding the local path.
func decodeRecord(line string, phase Phase) Record {
	if phase == PhaseConsumed {
		return Record{Local: line}
	}
	remote, local, _ := strings.Cut(line, "|")
	return Record{Remote: remote, Local: local}
}

// SameSet reports whether two record slices describe the same set,
// regardless of order or duplicates.
func SameSet(a, b []Record) bool {
	am := make(map[string]Record, len(a))
	for _, r := range a {
		am[r.key()] = r
	}
	bm := make(map[string]Record, len(b))
	for _, r := range b {
		bm[r.key()] = r
	}
	if len(am) != len(bm) {
		return false
	}
	for k, r := range am {
		if other, ok := bm[k]; !ok || other != r {
			return false
		}
	}
	return true
}
