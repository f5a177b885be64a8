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
)

func newCleanupCommand(buildApp func() (*app, error)) *cobra.Command {
	var (
		scopeF scopeFlags
		timeF  timeFlags
		remove bool
	)

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "List or delete consumed granule files still on disk",
		Long: `Cleanup lists every consumed granule whose file still exists under the
data directory. Nothing is deleted unless --delete is given; only files
the ledger records as consumed are ever eligible.`,
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

			paths, err := a.tracker(key).Deletable(r)
			if err != nil {
				return err
			}

			deleted := 0
			for _, path := range paths {
				if !remove {
					cmd.Println(path)
					continue
				}
				if err := os.Remove(path); err != nil {
					a.log.Error().Err(err).Str("path", path).Msg("delete failed")
					continue
				}
				deleted++
				a.log.Debug().Str("path", path).Msg("deleted")
			}

			if remove {
				a.log.Info().Int("deleted", deleted).Int("eligible", len(paths)).Msg("cleanup complete")
			} else {
				a.log.Info().Int("eligible", len(paths)).Msg("cleanup dry run, use --delete to remove")
			}
			return nil
		},
	}

	scopeF.register(cmd, true)
	timeF.register(cmd)
	cmd.Flags().BoolVar(&remove, "delete", false, "actually delete the files")
	return cmd
}
