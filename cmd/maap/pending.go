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

	"github.com/earthfocus/maap-client/internal/output"
	"github.com/earthfocus/maap-client/internal/tracker"
)

func newPendingCommand(buildApp func() (*app, error)) *cobra.Command {
	var (
		scopeF scopeFlags
		timeF  timeFlags
		phase  string
	)

	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List granules awaiting fetch or consumption",
		Long: `Pending streams the derived difference sets from the ledger: with
--phase fetch, granules discovered but not yet downloaded; with --phase
consume, granules downloaded but not yet marked consumed. Partitions are
read one day at a time, so listing years of history stays flat in memory.`,
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
			r, err := timeF.dayRange()
			if err != nil {
				return err
			}
			tr := a.tracker(key)

			var iter *tracker.DayIter
			switch phase {
			case "fetch":
				iter, err = tr.PendingFetch(r)
			case "consume":
				iter, err = tr.PendingConsume(r)
			default:
				return fmt.Errorf("invalid --phase %q, want fetch or consume", phase)
			}
			if err != nil {
				return err
			}

			writer := output.NewWriter(os.Stdout)
			defer writer.Close()
			for iter.Next() {
				day := iter.Day().String()
				for _, rec := range iter.Records() {
					if err := writer.Write(output.GranuleRecord{
						Day:     day,
						Locator: rec.Remote,
						Local:   rec.Local,
					}); err != nil {
						return err
					}
				}
			}
			if err := iter.Err(); err != nil {
				return err
			}
			a.log.Info().Int("records", writer.Count()).Str("phase", phase).Msg("pending listed")
			return nil
		},
	}

	scopeF.register(cmd, true)
	timeF.register(cmd)
	cmd.Flags().StringVar(&phase, "phase", "fetch", "which pending set to list: fetch or consume")
	return cmd
}
