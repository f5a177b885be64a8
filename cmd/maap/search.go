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
	"os"

	"github.com/spf13/cobra"

	"github.com/earthfocus/maap-client/internal/output"
	"github.com/earthfocus/maap-client/internal/scope"
)

func newSearchCommand(buildApp func() (*app, error)) *cobra.Command {
	var (
		scopeF     scopeFlags
		timeF      timeFlags
		maxItems   int
		outputFile string
		record     bool
		countOnly  bool
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Query the remote catalogue for matching granules",
		Long: `Search queries the remote catalogue for granules of one product and
baseline, optionally bounded to a time window, and emits one NDJSON record
per granule. With --record the results are also unioned into the local
discovered ledger so a later sync can fetch them.`,
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

			if countOnly {
				n, err := a.client.CountMatches(ctx, key, start, end)
				if err != nil {
					return err
				}
				cmd.Printf("%d\n", n)
				return nil
			}

			items, err := a.client.QueryItems(ctx, key, start, end, maxItems)
			if err != nil {
				return err
			}

			writer := output.RecordWriter(output.NewWriter(os.Stdout))
			if outputFile != "" {
				w, err := output.NewFileWriter(outputFile)
				if err != nil {
					return err
				}
				writer = w
			}
			defer writer.Close()

			locators := make([]string, 0, len(items))
			for _, item := range items {
				locators = append(locators, item.Locator)
				rec := output.GranuleRecord{
					Day:        scope.DayOf(item.ReferenceTime).String(),
					Locator:    item.Locator,
					Reference:  item.ReferenceTime,
					OrbitFrame: item.OrbitFrame,
				}
				if err := writer.Write(rec); err != nil {
					return err
				}
			}

			if record {
				added, err := a.tracker(key).RecordDiscovered(locators)
				if err != nil {
					return err
				}
				a.log.Info().Int("total", len(locators)).Int("new", added).Msg("recorded discovered granules")
			}
			return nil
		},
	}

	scopeF.register(cmd, true)
	timeF.register(cmd)
	cmd.Flags().IntVar(&maxItems, "max-items", 0, "cap on returned items (0 = no cap)")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "write NDJSON to file instead of stdout")
	cmd.Flags().BoolVar(&record, "record", false, "record results in the discovered ledger")
	cmd.Flags().BoolVar(&countOnly, "count", false, "print only the remote match count")
	return cmd
}
