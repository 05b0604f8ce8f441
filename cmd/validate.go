// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/cardinalhq/docrunner/config"
	"github.com/cardinalhq/docrunner/internal/cloudstorage"
	"github.com/cardinalhq/docrunner/internal/ingest"
	"github.com/cardinalhq/docrunner/internal/schema"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "validate [document...]",
		Short: "check configuration and the schema contract, then validate local documents",
		RunE: func(c *cobra.Command, args []string) error {
			ctx, cancel := handleSignals(context.Background())
			defer cancel()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return validateDocuments(ctx, cfg, args, c.OutOrStdout())
		},
	})
}

// validateDocuments checks cfg, loads the contract it names and validates
// every file in paths against it. Every failing file is reported.
func validateDocuments(ctx context.Context, cfg *config.Config, paths []string, out io.Writer) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	source := cloudstorage.NewSource(newCloudManagers(ctx, cfg), cfg.Source.Provider, cfg.Source.Bucket)
	contract, err := schema.LoadContract(ctx, cfg.Schema.Location, source.ReadURI)
	if err != nil {
		return fmt.Errorf("failed to load schema contract: %w", err)
	}
	fmt.Fprintf(out, "contract %s: %v\n", cfg.Schema.Location, contract.Fields())

	v := schema.NewValidator(contract, schema.WithAccumulate(cfg.Schema.Accumulate))

	var result *multierror.Error
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", path, err))
			continue
		}
		n, err := ingest.CheckDocument(v, data)
		if err != nil {
			fmt.Fprintf(out, "%s: invalid: %v\n", path, err)
			result = multierror.Append(result, fmt.Errorf("%s: %w", path, err))
			continue
		}
		fmt.Fprintf(out, "%s: ok (%d records)\n", path, n)
	}
	return result.ErrorOrNil()
}
