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
	"github.com/spf13/cobra"
)

func newStatusCommand(buildApp func() (*app, error)) *cobra.Command {
	var (
		scopeF       scopeFlags
		timeF        timeFlags
		listFailures bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show lifecycle counts for one product and baseline",
		Args:  cobra.NoArgs,
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
			stats, err := tr.Stats(r)
			if err != nil {
				return err
			}
			failures, err := tr.Failures()
			if err != nil {
				return err
			}

			cmd.Printf("scope:            %s\n", key)
			cmd.Printf("discovered:       %d\n", stats.Discovered)
			cmd.Printf("fetched:          %d\n", stats.Fetched)
			cmd.Printf("consumed:         %d\n", stats.Consumed)
			cmd.Printf("pending fetch:    %d\n", stats.PendingFetch)
			cmd.Printf("pending consume:  %d\n", stats.PendingConsume)
			cmd.Printf("failed locators:  %d\n", len(failures))
			if listFailures {
				for _, f := range failures {
					cmd.Printf("%s  %s\n", f.Locator, f.Message)
				}
			}
			return nil
		},
	}

	scopeF.register(cmd, true)
	timeF.register(cmd)
	cmd.Flags().BoolVar(&listFailures, "failures", false, "list recorded download failures")
	return cmd
}
