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

// Package granule extracts structured metadata from archive product
// filenames and URLs.
//
// Two naming conventions are recognized:
//
//	EarthCARE: ECA_EXBC_BM__RAD_2B_20250908T232505Z_20250909T010458Z_07282E.h5
//	Aeolus:    AE_OPER_ALD_U_N_1B_20230422T165721033_005543989_027018_0001.DBL
//
// The first embedded timestamp is the sensing (reference) time, the
// authoritative partitioning key for the ledger and catalog. EarthCARE
// names carry a second creation timestamp and an orbit+frame ordinal;
// Aeolus names carry a bare orbit number and no frame letter.
package granule

import (
	"path"
	"regexp"
	"strings"
	"time"
)

var (
	sensingMillisRe = regexp.MustCompile(`_(\d{8}T\d{9})_`)
	sensingRe       = regexp.MustCompile(`_(\d{8}T\d{6})Z?_`)
	creationRe      = regexp.MustCompile(`_\d{8}T\d{6}Z_(\d{8}T\d{6})Z_`)
	orbitFrameRe    = regexp.MustCompile(`(?i)_(\d{5})([A-Za-z])\.[a-zA-Z0-9]+$`)
	orbitAeolusRe   = regexp.MustCompile(`(?i)_(\d{6})_\d{4}\.[A-Za-z]{3}$`)
	agencyRe        = regexp.MustCompile(`^ECA_([A-Z]{2})[A-Z]{2}_`)
	baselineEcaRe   = regexp.MustCompile(`^ECA_[A-Z]{2}([A-Z]{2})_`)
	baselineAeURLRe = regexp.MustCompile(`(?i)/ALD_[UC]_N_\d[AB]/([A-Za-z0-9]{4})/\d{4}/`)
	productEcaRe    = regexp.MustCompile(`^ECA_[A-Z]{4}_(.+?)_\d{8}T\d{6}Z_`)
	productAeRe     = regexp.MustCompile(`^AE_[A-Z]{4}_(ALD_[UC]_N_\d[AB])_\d{8}T\d{9}_`)
)

// basename strips any directory and URL query component from a locator.
func basename(uri string) string {
	name := path.Base(strings.ReplaceAll(uri, "\\", "/"))
	if i := strings.IndexByte(name, '?'); i >= 0 {
		name = name[:i]
	}
	return name
}

// SensingTime extracts the sensing (reference) timestamp from a product
// filename, URL or local path. The millisecond Aeolus form is tried
// first because the six-digit pattern would also match its prefix.
func SensingTime(uri string) (time.Time, bool) {
	name := basename(uri)

	if m := sensingMillisRe.FindStringSubmatch(name); m != nil {
		if t, err := time.ParseInLocation("20060102T150405.000", m[1][:15]+"."+m[1][15:], time.UTC); err == nil {
			return t, true
		}
	}
	if m := sensingRe.FindStringSubmatch(name); m != nil {
		if t, err := time.ParseInLocation("20060102T150405", m[1], time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// CreationTime extracts the second (processing) timestamp from an
// EarthCARE filename. It is never used for partitioning.
func CreationTime(uri string) (time.Time, bool) {
	m := creationRe.FindStringSubmatch(basename(uri))
	if m == nil {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation("20060102T150405", m[1], time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// OrbitFrame extracts the ordinal identifier from a product filename:
// five digits plus a frame letter for EarthCARE ("07282E"), a six-digit
// orbit number for Aeolus ("027018"). Not every archive exposes one.
func OrbitFrame(uri string) (string, bool) {
	name := basename(uri)

	if m := orbitFrameRe.FindStringSubmatch(name); m != nil {
		return m[1] + strings.ToUpper(m[2]), true
	}
	if m := orbitAeolusRe.FindStringSubmatch(name); m != nil {
		return m[1], true
	}
	return "", false
}

// Mission returns the mission prefix ("ECA" or "AE") of a filename.
func Mission(uri string) (string, bool) {
	name := basename(uri)
	switch {
	case strings.HasPrefix(name, "ECA_"):
		return "ECA", true
	case strings.HasPrefix(name, "AE_"):
		return "AE", true
	}
	return "", false
}

// Agency returns the producing-agency code ("EX" for ESA, "JX" for
// JAXA). Aeolus products are always ESA.
func Agency(uri string) (string, bool) {
	name := basename(uri)
	if m := agencyRe.FindStringSubmatch(name); m != nil {
		return m[1], true
	}
	if strings.HasPrefix(name, "AE_") {
		return "EX", true
	}
	return "", false
}

// Baseline extracts the baseline version. EarthCARE encodes it in the
// filename; Aeolus only in the URL path segment after the product type,
// so the full URI must be passed for Aeolus locators.
func Baseline(uri string) (string, bool) {
	name := basename(uri)
	if m := baselineEcaRe.FindStringSubmatch(name); m != nil {
		return m[1], true
	}
	if strings.HasPrefix(name, "AE_") {
		if m := baselineAeURLRe.FindStringSubmatch(uri); m != nil {
			return strings.ToUpper(m[1]), true
		}
	}
	return "", false
}

// ProductType extracts the product type name, e.g. "BM__RAD_2B" or
// "ALD_U_N_1B".
func ProductType(uri string) (string, bool) {
	name := basename(uri)
	if m := productEcaRe.FindStringSubmatch(name); m != nil {
		return m[1], true
	}
	if m := productAeRe.FindStringSubmatch(name); m != nil {
		return m[1], true
	}
	return "", false
}

// Info is the complete set of metadata parseable from one locator.
// Fields that could not be extracted are zero values.
type Info struct {
	Filename     string
	Mission      string
	Agency       string
	Baseline     string
	ProductType  string
	SensingTime  time.Time
	CreationTime time.Time
	OrbitFrame   string
}

// Parse extracts all metadata from a product URL, filename or path.
func Parse(uri string) Info {
	info := Info{Filename: basename(uri)}
	info.Mission, _ = Mission(uri)
	info.Agency, _ = Agency(uri)
	info.Baseline, _ = Baseline(uri)
	info.ProductType, _ = ProductType(uri)
	info.SensingTime, _ = SensingTime(uri)
	info.CreationTime, _ = CreationTime(uri)
	info.OrbitFrame, _ = OrbitFrame(uri)
	return info
}

// FilterBySensingTime keeps items whose sensing time falls inside the
// inclusive [start, end] window. A zero bound leaves that side open.
// Items without a parseable sensing time are dropped.
func FilterBySensingTime(items []string, start, end time.Time) []string {
	if start.IsZero() && end.IsZero() {
		return items
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		st, ok := SensingTime(item)
		if !ok {
			continue
		}
		if !start.IsZero() && st.Before(start) {
			continue
		}
		if !end.IsZero() && st.After(end) {
			continue
		}
		out = append(out, item)
	}
	return out
}
