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
	"sort"

	"github.com/spf13/cobra"

	"github.com/earthfocus/maap-client/internal/catalog"
)

func newCatalogCommand(buildApp func() (*app, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Build and inspect local holdings snapshots",
	}
	cmd.AddCommand(newCatalogBuildCommand(buildApp), newCatalogShowCommand(buildApp))
	return cmd
}

func newCatalogBuildCommand(buildApp func() (*app, error)) *cobra.Command {
	var (
		collection string
		products   []string
		baselines  []string
		latest     bool
		force      bool
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Resolve remote holdings into a snapshot",
		Long: `Build resolves, per product and baseline, the first and last day of
remote holdings via boundary binary search, fetches the total match
count, and persists the result as a snapshot document. With --latest
only the baseline with the most recent known end is refreshed and every
other entry is carried over untouched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			if !a.cfg.HasCollection(collection) {
				return fmt.Errorf("unknown collection %q, configured: %v", collection, a.cfg.Collections)
			}
			outer, err := a.missionBound()
			if err != nil {
				return err
			}

			builder := catalog.NewBuilder(a.client, a.catalogStore(), a.cfg.Archive.Mission, outer, a.clientInfo(), a.log)
			filters := catalog.Filters{Products: products, Baselines: baselines}

			var (
				snap   *catalog.Snapshot
				report *catalog.Report
			)
			switch {
			case force && latest:
				return fmt.Errorf("--force and --latest are mutually exclusive")
			case force:
				snap, report, err = builder.BuildFresh(cmd.Context(), collection, filters)
			case latest:
				snap, report, err = builder.BuildIncremental(cmd.Context(), collection, filters)
			default:
				snap, report, err = builder.BuildFull(cmd.Context(), collection, filters)
			}
			if err != nil {
				return err
			}

			a.log.Info().
				Int("built", report.Built).
				Int("skipped", report.Skipped).
				Int("failed", len(report.Failures)).
				Str("path", a.catalogStore().Path(snap.Collection)).
				Msg("catalog build complete")
			for _, failure := range report.Failures {
				a.log.Error().Err(failure.Err).
					Str("product", failure.Product).
					Str("baseline", failure.Baseline).
					Msg("baseline entry not refreshed")
			}
			if len(report.Failures) > 0 {
				return fmt.Errorf("%d baseline entries failed to build", len(report.Failures))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&collection, "collection", "c", "", "archive collection name")
	cmd.Flags().StringSliceVarP(&products, "product", "p", nil, "restrict to these product types")
	cmd.Flags().StringSliceVarP(&baselines, "baseline", "b", nil, "restrict to these baselines")
	cmd.Flags().BoolVar(&latest, "latest", false, "refresh only the most recent baseline per product")
	cmd.Flags().BoolVar(&force, "force", false, "rebuild from scratch, dropping entries absent remotely")
	_ = cmd.MarkFlagRequired("collection")
	return cmd
}

func newCatalogShowCommand(buildApp func() (*app, error)) *cobra.Command {
	var collection string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print a snapshot's entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			snap, err := a.catalogStore().Load(collection)
			if err != nil {
				return err
			}
			if snap == nil {
				return fmt.Errorf("no snapshot for %s, run: maap catalog build -c %s", collection, collection)
			}

			cmd.Printf("collection: %s\n", snap.Collection)
			cmd.Printf("generated:  %s (%s %s)\n",
				snap.GeneratedAt.Format("2006-01-02 15:04:05Z"), snap.Client.Name, snap.Client.Version)

			products := make([]string, 0, len(snap.Products))
			for name := range snap.Products {
				products = append(products, name)
			}
			sort.Strings(products)

			for _, product := range products {
				cmd.Printf("\n%s\n", product)
				entry := snap.Products[product]
				baselines := make([]string, 0, len(entry.Baselines))
				for name := range entry.Baselines {
					baselines = append(baselines, name)
				}
				sort.Strings(baselines)
				for _, baseline := range baselines {
					b := entry.Baselines[baseline]
					cmd.Printf("  %s  %s .. %s  count=%d", baseline,
						b.TimeStart.Format("2006-01-02"), b.TimeEnd.Format("2006-01-02"), b.Count)
					if b.FrameStart != "" {
						cmd.Printf("  frames=%s..%s", b.FrameStart, b.FrameEnd)
					}
					cmd.Println()
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&collection, "collection", "c", "", "archive collection name")
	_ = cmd.MarkFlagRequired("collection")
	return cmd
}
