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

package migrations

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CheckMode defines how migration version checking should behave
type CheckMode int

const (
	// CheckModeWait waits for migrations to complete, failing if they don't complete within timeout
	CheckModeWait CheckMode = iota
	// CheckModeWarn logs warnings about version mismatches but continues
	CheckModeWarn
	// CheckModeSkip skips migration checking entirely
	CheckModeSkip
)

// ParseCheckMode maps "wait", "warn" or "skip" to a CheckMode.
func ParseCheckMode(s string) (CheckMode, error) {
	switch strings.ToLower(s) {
	case "wait", "":
		return CheckModeWait, nil
	case "warn":
		return CheckModeWarn, nil
	case "skip":
		return CheckModeSkip, nil
	default:
		return CheckModeWait, fmt.Errorf("unknown migration check mode %q", s)
	}
}

type CheckOptions struct {
	Mode          CheckMode
	Timeout       time.Duration
	RetryInterval time.Duration
	AllowDirty    bool
}

type CheckOption func(*CheckOptions)

func WithCheckMode(mode CheckMode) CheckOption {
	return func(opts *CheckOptions) {
		opts.Mode = mode
	}
}

func WithTimeout(timeout time.Duration) CheckOption {
	return func(opts *CheckOptions) {
		opts.Timeout = timeout
	}
}

func WithRetryInterval(interval time.Duration) CheckOption {
	return func(opts *CheckOptions) {
		opts.RetryInterval = interval
	}
}

func WithAllowDirty(allow bool) CheckOption {
	return func(opts *CheckOptions) {
		opts.AllowDirty = allow
	}
}

func DefaultCheckOptions() CheckOptions {
	return CheckOptions{
		Mode:          CheckModeWait,
		Timeout:       60 * time.Second,
		RetryInterval: 5 * time.Second,
	}
}

// versionReader reports the applied migration version.
type versionReader func(ctx context.Context) (version uint, dirty bool, err error)

// CheckVersion verifies the record store schema is at the version embedded
// in this binary, waiting for a concurrent migrate run when asked to.
func CheckVersion(ctx context.Context, pool *pgxpool.Pool, opts ...CheckOption) error {
	return checkVersion(ctx, func(ctx context.Context) (uint, bool, error) {
		return currentVersion(pool)
	}, opts...)
}

func checkVersion(ctx context.Context, read versionReader, opts ...CheckOption) error {
	options := DefaultCheckOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if options.Mode == CheckModeSkip {
		slog.Debug("Record store migration version check skipped")
		return nil
	}

	expected, err := latestVersion(migrationFiles)
	if err != nil {
		return fmt.Errorf("failed to extract expected migration version: %w", err)
	}

	deadline := time.Now().Add(options.Timeout)
	ticker := time.NewTicker(options.RetryInterval)
	defer ticker.Stop()

	for {
		current, dirty, err := read(ctx)
		if err != nil {
			return fmt.Errorf("failed to get current migration version: %w", err)
		}

		var mismatch error
		switch {
		case dirty && !options.AllowDirty:
			mismatch = errors.New("record store migration is in dirty state, please fix before proceeding")
		case current > expected:
			mismatch = fmt.Errorf("record store version %d is newer than expected version %d - you may need to update the application",
				current, expected)
		case current == expected:
			slog.Info("Migration version check passed", slog.Uint64("version", uint64(current)))
			return nil
		}

		if mismatch == nil && options.Mode == CheckModeWait && time.Now().Before(deadline) {
			slog.Info("Waiting for migrations to complete",
				slog.Uint64("current_version", uint64(current)),
				slog.Uint64("expected_version", uint64(expected)),
				slog.Duration("remaining_timeout", time.Until(deadline)))
			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled while waiting for migrations: %w", ctx.Err())
			case <-ticker.C:
				continue
			}
		}
		if mismatch == nil {
			mismatch = fmt.Errorf("record store is at migration version %d, expected %d", current, expected)
		}

		if options.Mode == CheckModeWarn {
			slog.Warn("Record store migration mismatch, continuing", slog.Any("error", mismatch))
			return nil
		}
		return mismatch
	}
}

func currentVersion(pool *pgxpool.Pool) (uint, bool, error) {
	m, done, err := newMigrate(pool)
	if err != nil {
		return 0, false, err
	}
	defer done()

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return version, dirty, nil
}

// latestVersion extracts the highest migration version from the embedded files.
func latestVersion(files fs.ReadDirFS) (uint, error) {
	entries, err := files.ReadDir(".")
	if err != nil {
		return 0, fmt.Errorf("failed to read migration directory: %w", err)
	}

	var maxVersion uint
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		prefix, _, _ := strings.Cut(name, "_")
		version, err := strconv.ParseUint(prefix, 10, 64)
		if err != nil {
			continue
		}
		maxVersion = max(maxVersion, uint(version))
	}

	if maxVersion == 0 {
		return 0, errors.New("no valid migration files found")
	}
	return maxVersion, nil
}
