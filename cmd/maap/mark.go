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
	"bufio"
	"os"

	"github.com/spf13/cobra"
)

func newMarkCommand(buildApp func() (*app, error)) *cobra.Command {
	var scopeF scopeFlags

	cmd := &cobra.Command{
		Use:   "mark [paths...]",
		Short: "Mark downloaded granules as consumed",
		Long: `Mark records that downstream processing has finished with the given
local files, making them eligible for cleanup. Paths are taken from the
arguments, or from stdin (one per line) when no arguments are given, so
processing pipelines can stream confirmations in.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			key, err := scopeF.key(a.cfg)
			if err != nil {
				return err
			}
			tr := a.tracker(key)

			paths := args
			if len(paths) == 0 {
				scanner := bufio.NewScanner(os.Stdin)
				for scanner.Scan() {
					if line := scanner.Text(); line != "" {
						paths = append(paths, line)
					}
				}
				if err := scanner.Err(); err != nil {
					return err
				}
			}

			marked := 0
			for _, path := range paths {
				if err := tr.RecordConsumed(path); err != nil {
					return err
				}
				marked++
			}
			a.log.Info().Int("marked", marked).Msg("consumption recorded")
			return nil
		},
	}

	scopeF.register(cmd, true)
	return cmd
}
