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

package granule

import (
	"fmt"
	"path/filepath"
	"time"
)

// DataPath returns the canonical local location for a downloaded product:
//
//	dataDir/mission/collection/productType/baseline/yyyy/mm/dd/filename
//
// It is a pure function of its inputs so independent runs agree on
// placement.
func DataPath(dataDir, mission, collection, productType, baseline string, sensing time.Time, filename string) string {
	sensing = sensing.UTC()
	return filepath.Join(
		dataDir, mission, collection, productType, baseline,
		fmt.Sprintf("%04d", sensing.Year()),
		fmt.Sprintf("%02d", int(sensing.Month())),
		fmt.Sprintf("%02d", sensing.Day()),
		filename,
	)
}

// LocalPath derives the expected local path for a product URL, or ""
// when the URL does not carry enough metadata to place it.
func LocalPath(url, dataDir, mission, collection string) string {
	info := Parse(url)
	if info.SensingTime.IsZero() || info.ProductType == "" || info.Baseline == "" {
		return ""
	}
	return DataPath(dataDir, mission, collection, info.ProductType, info.Baseline, info.SensingTime, info.Filename)
}
