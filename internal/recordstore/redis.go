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

package recordstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cardinalhq/docrunner/internal/normalize"
)

// RedisStore writes each record as a JSON string at <prefix>:<record_id>.
type RedisStore struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisStore returns a store writing under prefix. A zero ttl keeps keys
// forever.
func NewRedisStore(client redis.Cmdable, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

// Key returns the key a record id is stored under.
func (s *RedisStore) Key(recordID string) string {
	if s.prefix == "" {
		return recordID
	}
	return s.prefix + ":" + recordID
}

func (s *RedisStore) Put(ctx context.Context, rec normalize.Record) error {
	data, err := json.Marshal(rec.Item())
	if err != nil {
		return fmt.Errorf("failed to marshal record %s: %w", rec.ID, err)
	}
	if err := s.client.Set(ctx, s.Key(rec.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", s.Key(rec.ID), err)
	}
	return nil
}

// NewRedisClient parses url, connects and pings.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return client, nil
}
