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

// Package main implements the maap command-line interface.
// The tool accelerates work against the ESA MAAP data archive: it
// resolves the temporal extent of product holdings, mirrors granules
// locally, and keeps a lifecycle ledger so interrupted runs resume
// where they stopped.
//
// The CLI supports:
//   - Listing collections, products and baselines level by level
//   - Searching the remote catalogue and streaming results as NDJSON
//   - Syncing a product/baseline window to local storage
//   - Listing granules pending fetch or pending consumption
//   - Marking granules consumed and cleaning up consumed files
//   - Building and inspecting per-collection holdings snapshots
//
// Usage:
//
//	maap sync -c EarthCAREL2Validated_MAAP -p BM__RAD_2B -b AE --start 2025-09-01 --end 2025-09-07
//
// Exit codes:
//   - 0: Success
//   - 1: General error
//   - 2: Authentication/authorization error
//   - 3: Remote query or network error
//   - 4: Local storage or schema error
package main
