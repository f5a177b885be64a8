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

	"github.com/spf13/cobra"

	"github.com/earthfocus/maap-client/internal/scope"
)

func newListCommand(buildApp func() (*app, error)) *cobra.Command {
	var latest bool

	cmd := &cobra.Command{
		Use:   "list [collection] [product]",
		Short: "List collections, products or baselines",
		Long: `List walks the archive hierarchy one level at a time. With no
arguments it prints the configured collections; with a collection it
prints that collection's product types; with a collection and product
it prints the baselines the remote holds data for.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}

			if len(args) == 0 {
				for _, collection := range a.cfg.Collections {
					cmd.Println(collection)
				}
				return nil
			}

			collection := args[0]
			if !a.cfg.HasCollection(collection) {
				return fmt.Errorf("unknown collection %q, configured: %v", collection, a.cfg.Collections)
			}

			if len(args) == 1 {
				products, err := a.client.Products(cmd.Context(), collection)
				if err != nil {
					return err
				}
				for _, product := range products {
					cmd.Println(product)
				}
				return nil
			}

			key := scope.Key{
				Mission:    a.cfg.Archive.Mission,
				Collection: collection,
				Product:    args[1],
			}
			baselines, err := a.client.Baselines(cmd.Context(), key)
			if err != nil {
				return err
			}
			if latest {
				if len(baselines) > 0 {
					cmd.Println(baselines[len(baselines)-1])
				}
				return nil
			}
			for _, baseline := range baselines {
				cmd.Println(baseline)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&latest, "latest", false, "print only the alphabetically last baseline")
	return cmd
}
