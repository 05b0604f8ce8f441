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
	"fmt"
	"time"
)

// IDGenerator makes globally unique string identifiers. Implementations
// must be safe for concurrent use.
type IDGenerator interface {
	Make(t time.Time) string
}

const (
	KindUUID = "uuid"
	KindULID = "ulid"
)

// New returns the generator for kind; an empty kind selects UUIDs.
func New(kind string) (IDGenerator, error) {
	switch kind {
	case "", KindUUID:
		return UUIDGenerator{}, nil
	case KindULID:
		return NewULIDGenerator(), nil
	default:
		return nil, fmt.Errorf("unsupported id generator %q", kind)
	}
}
