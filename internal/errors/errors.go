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

// Package errors defines sentinel errors for consistent error handling across
// the application. These errors map to specific exit codes in the CLI for
// proper scripting support.
//
// Two conditions deliberately have no sentinel: an empty time range during
// boundary resolution is a nil result, and a missing orbit/frame ordinal
// degrades to an absent catalog field. Neither is an error.
package errors

import "errors"

// Sentinel errors for consistent error handling and exit code mapping
var (
	// ErrInvalidCredentials indicates authentication with the archive
	// identity provider failed. Maps to exit code 2.
	ErrInvalidCredentials = errors.New("invalid archive credentials")

	// ErrRemoteQuery indicates the remote search API rejected or failed a
	// query. Not retried by the core; the transport layer owns retry policy.
	// Maps to exit code 3.
	ErrRemoteQuery = errors.New("remote query failed")

	// ErrNetworkFailure indicates a network connection problem.
	// Maps to exit code 3.
	ErrNetworkFailure = errors.New("network connection failed")

	// ErrStorage indicates a ledger partition or catalog snapshot is present
	// but unreadable or unwritable. Fatal for the current operation.
	// Maps to exit code 4.
	ErrStorage = errors.New("local storage error")

	// ErrSchemaVersion indicates a persisted document carries an unknown
	// schema version. Never silently ignored. Maps to exit code 4.
	ErrSchemaVersion = errors.New("unknown snapshot schema version")
)
