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
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/cardinalhq/docrunner/config"
	"github.com/cardinalhq/docrunner/internal/recordstore"
	"github.com/cardinalhq/docrunner/internal/recordstore/migrations"
)

var migrateDownSteps int

func init() {
	MigrateCmd.AddCommand(migrateDownCmd)
	migrateDownCmd.Flags().IntVar(&migrateDownSteps, "steps", 1, "Number of migrations to roll back")
	rootCmd.AddCommand(MigrateCmd)
}

var MigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run record store migrations",
	Long:  "Create or upgrade the Postgres record store schema (store.kind=postgres)",
	RunE: func(_ *cobra.Command, _ []string) error {
		return runMigrations(func(ctx context.Context, pool *pgxpool.Pool) error {
			return migrations.RunMigrationsUp(ctx, pool)
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back record store migrations",
	RunE: func(_ *cobra.Command, _ []string) error {
		if migrateDownSteps < 1 {
			return errors.New("--steps must be at least 1")
		}
		return runMigrations(func(ctx context.Context, pool *pgxpool.Pool) error {
			return migrations.RunMigrationsDown(ctx, pool, migrateDownSteps)
		})
	},
}

func runMigrations(fn func(ctx context.Context, pool *pgxpool.Pool) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Store.Kind != recordstore.KindPostgres {
		slog.Info("Record store is not Postgres, nothing to migrate", slog.String("kind", cfg.Store.Kind))
		return nil
	}
	if cfg.Store.URL == "" {
		return errors.New("store.url is required to run migrations")
	}

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(5*time.Minute))
	defer cancel()

	pool, err := recordstore.NewConnectionPool(ctx, cfg.Store.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	slog.Info("Running record store migrations")
	if err := fn(context.Background(), pool); err != nil {
		return fmt.Errorf("failed to migrate record store: %w", err)
	}
	slog.Info("Record store migrations completed successfully")
	return nil
}
