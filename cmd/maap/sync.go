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
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/earthfocus/maap-client/internal/fetch"
	"github.com/earthfocus/maap-client/internal/granule"
	"github.com/earthfocus/maap-client/internal/metadata"
	"github.com/earthfocus/maap-client/pkg/version"
)

func newSyncCommand(buildApp func() (*app, error)) *cobra.Command {
	var (
		scopeF scopeFlags
		timeF  timeFlags
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Discover new granules and download everything pending",
		Long: `Sync runs discovery for one product and baseline, records the results
in the ledger, then downloads every discovered-but-not-fetched granule.
Already-present files are skipped and recorded, so an interrupted sync
resumes where it stopped. Each run writes an audit record under the
registry directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			key, err := scopeF.key(a.cfg)
			if err != nil {
				return err
			}
			start, end, err := timeF.window()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			tr := a.tracker(key)

			params := metadata.SyncParams{
				Mission:    key.Mission,
				Collection: key.Collection,
				Product:    key.Product,
				Baseline:   key.Baseline,
				DryRun:     dryRun,
			}
			if !start.IsZero() {
				params.Since = &start
			}
			if !end.IsZero() {
				params.Until = &end
			}
			recorder := metadata.NewRecorder(params)

			items, err := a.client.QueryItems(ctx, key, start, end, 0)
			if err != nil {
				return err
			}
			locators := make([]string, len(items))
			for i, item := range items {
				locators[i] = item.Locator
			}

			if dryRun {
				wouldFetch := 0
				for _, locator := range locators {
					local := granule.LocalPath(locator, a.cfg.Storage.DataDir, key.Mission, key.Collection)
					if local == "" {
						continue
					}
					if _, statErr := os.Stat(local); os.IsNotExist(statErr) {
						wouldFetch++
					}
				}
				a.log.Info().Int("discovered", len(locators)).Int("would_fetch", wouldFetch).Msg("dry run, nothing written")
				return nil
			}

			added, err := tr.RecordDiscovered(locators)
			if err != nil {
				return err
			}
			recorder.AddDiscovered(len(locators), added)
			a.log.Info().Int("total", len(locators)).Int("new", added).Msg("discovery recorded")

			r, err := timeF.dayRange()
			if err != nil {
				return err
			}
			iter, err := tr.PendingFetch(r)
			if err != nil {
				return err
			}

			var targets []fetch.Target
			for iter.Next() {
				for _, rec := range iter.Records() {
					if rec.Local == "" {
						a.log.Warn().Str("locator", rec.Remote).Msg("no derivable local path, skipping")
						continue
					}
					targets = append(targets, fetch.Target{Locator: rec.Remote, Local: rec.Local})
				}
			}
			if err := iter.Err(); err != nil {
				return err
			}

			result, err := a.fetcher().Batch(ctx, targets, func(tg fetch.Target) error {
				return tr.RecordFetched(tg.Locator, tg.Local)
			})
			recorder.AddFetch(result.Fetched, result.Skipped, result.Failed)
			if err != nil {
				return err
			}
			for _, failure := range result.Failures {
				if recErr := tr.RecordFailure(failure.Target.Locator, failure.Err); recErr != nil {
					return recErr
				}
			}

			record := recorder.Finish(version.Version)
			if err := metadata.Save(a.cfg.Storage.RegistryDir, key, record); err != nil {
				return err
			}

			a.log.Info().
				Int("fetched", result.Fetched).
				Int("skipped", result.Skipped).
				Int("failed", result.Failed).
				Str("run_id", record.RunID).
				Msg("sync complete")
			if result.Failed > 0 {
				return fmt.Errorf("%d of %d downloads failed", result.Failed, len(targets))
			}
			return nil
		},
	}

	scopeF.register(cmd, true)
	timeF.register(cmd)
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would happen without writing anything")
	return cmd
}
