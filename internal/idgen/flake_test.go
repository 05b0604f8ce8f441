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

package idgen

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSonyFlakeGenerator_NextID(t *testing.T) {
	gen, err := NewFlakeGeneratorWithMachineID(42)
	require.NoError(t, err, "failed to create SonyFlakeGenerator")

	id := gen.NextID()
	id2 := gen.NextID()
	assert.Greater(t, id2, id, "NextID() did not return increasing id")
}

func TestInstanceFlakeGenerator(t *testing.T) {
	// Works whether or not the host has a private IPv4 address.
	gen := InstanceFlakeGenerator()
	require.NotNil(t, gen)
	assert.Positive(t, gen.NextID())
}

func TestSonyFlakeGeneratorNil(t *testing.T) {
	var gen *SonyFlakeGenerator
	assert.NotPanics(t, func() { gen.NextID() })
}

func TestNew(t *testing.T) {
	g, err := New("")
	require.NoError(t, err)
	assert.IsType(t, UUIDGenerator{}, g)

	g, err = New(KindULID)
	require.NoError(t, err)
	assert.IsType(t, &ULIDGenerator{}, g)

	_, err = New("snowflake")
	assert.Error(t, err)
}

func TestUUIDGeneratorUnique(t *testing.T) {
	g := UUIDGenerator{}
	a := g.Make(time.Now())
	b := g.Make(time.Now())
	assert.NotEqual(t, a, b)
	_, err := uuid.Parse(a)
	assert.NoError(t, err)
}

func TestULIDGeneratorConcurrent(t *testing.T) {
	g := NewULIDGenerator()
	now := time.Now()

	var (
		mu   sync.Mutex
		seen = map[string]struct{}{}
		wg   sync.WaitGroup
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				id := g.Make(now)
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 800)

	for id := range seen {
		parsed, err := ulid.Parse(id)
		require.NoError(t, err)
		assert.Equal(t, ulid.Timestamp(now), parsed.Time())
		break
	}
}
