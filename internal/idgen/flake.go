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
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/sony/sonyflake"
)

var flakeEpoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

type SonyFlakeGenerator struct {
	sf *sonyflake.Sonyflake
}

// NewFlakeGenerator derives the machine id from the host's private IPv4
// address and fails when there is none.
func NewFlakeGenerator() (*SonyFlakeGenerator, error) {
	return newFlakeGenerator(sonyflake.Settings{StartTime: flakeEpoch})
}

// NewFlakeGeneratorWithMachineID uses a fixed machine id instead of the host
// address.
func NewFlakeGeneratorWithMachineID(id uint16) (*SonyFlakeGenerator, error) {
	return newFlakeGenerator(sonyflake.Settings{
		StartTime: flakeEpoch,
		MachineID: func() (uint16, error) { return id, nil },
	})
}

func newFlakeGenerator(settings sonyflake.Settings) (*SonyFlakeGenerator, error) {
	sf, err := sonyflake.New(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to create sonyflake generator: %w", err)
	}
	if sf == nil {
		return nil, errors.New("failed to create Sonyflake instance")
	}
	return &SonyFlakeGenerator{sf: sf}, nil
}

// InstanceFlakeGenerator returns a host-derived generator, falling back to a
// random machine id on hosts without a private IPv4 address.
func InstanceFlakeGenerator() *SonyFlakeGenerator {
	if g, err := NewFlakeGenerator(); err == nil {
		return g
	}
	g, err := NewFlakeGeneratorWithMachineID(rand.N[uint16](^uint16(0)))
	if err != nil {
		return nil
	}
	return g
}

// NextID returns a positive int64 that'll increase roughly in time order.
// A nil generator returns a random id.
func (sf *SonyFlakeGenerator) NextID() int64 {
	if sf == nil {
		return rand.Int64()
	}
	v, err := sf.sf.NextID()
	if err != nil {
		return rand.Int64()
	}
	return int64(v)
}
