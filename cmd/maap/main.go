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
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	maaperrors "github.com/earthfocus/maap-client/internal/errors"
	"github.com/earthfocus/maap-client/pkg/version"
)

func main() {
	var (
		configPath string
		verbose    bool
	)

	rootCmd := &cobra.Command{
		Use:   "maap",
		Short: "Discover, catalog and download products from the ESA MAAP archive",
		Long: `maap is a client-side accelerator for the ESA MAAP data archive.
It discovers the temporal boundaries of product holdings without exhaustive
enumeration, persists them as local catalog snapshots, and tracks every
granule through a discovered/fetched/consumed lifecycle ledger so sync runs
are resumable and idempotent.`,
		Version:       version.Version,
		SilenceUsage:  true, // Don't show usage on error
		SilenceErrors: true, // We'll handle error printing ourselves
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	buildApp := func() (*app, error) {
		return newApp(configPath, newLogger(verbose))
	}

	rootCmd.AddCommand(
		newListCommand(buildApp),
		newSearchCommand(buildApp),
		newSyncCommand(buildApp),
		newPendingCommand(buildApp),
		newStatusCommand(buildApp),
		newMarkCommand(buildApp),
		newCleanupCommand(buildApp),
		newCatalogCommand(buildApp),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(mapErrorToExitCode(err))
	}
}

func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}

// mapErrorToExitCode maps internal errors to appropriate exit codes so
// shell callers can tell auth, remote and storage failures apart.
func mapErrorToExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, maaperrors.ErrInvalidCredentials):
		return 2
	case errors.Is(err, maaperrors.ErrRemoteQuery),
		errors.Is(err, maaperrors.ErrNetworkFailure):
		return 3
	case errors.Is(err, maaperrors.ErrStorage),
		errors.Is(err, maaperrors.ErrSchemaVersion):
		return 4
	default:
		return 1
	}
}
