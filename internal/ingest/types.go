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

package ingest

import (
	"context"
	"errors"

	"github.com/cardinalhq/docrunner/internal/normalize"
	"github.com/cardinalhq/docrunner/internal/trigger"
)

// ErrObjectNotFound is returned by content sources when the referenced
// object does not exist.
var ErrObjectNotFound = errors.New("object not found")

// RawDocument is the fetched document, owned by a single run.
type RawDocument struct {
	Data        []byte
	ContentType string
	Size        int64
}

// ContentSource fetches the document a trigger references.
type ContentSource interface {
	Fetch(ctx context.Context, loc trigger.Location) (RawDocument, error)
}

// RecordStore persists records keyed by record id. Put must overwrite an
// existing record with the same id.
type RecordStore interface {
	Put(ctx context.Context, rec normalize.Record) error
}

type State int

const (
	StateFetching State = iota
	StateValidating
	StateNormalizing
	StatePersisting
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateFetching:
		return "FETCHING"
	case StateValidating:
		return "VALIDATING"
	case StateNormalizing:
		return "NORMALIZING"
	case StatePersisting:
		return "PERSISTING"
	case StateDone:
		return "DONE"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Outcome summarises one run. Exactly one is produced per descriptor.
type Outcome struct {
	Succeeded       bool
	RecordsWritten  int
	SourceReference string
	CorrelationID   string
	// State is DONE or FAILED; FailedIn is the stage that failed.
	State    State
	FailedIn State
	Err      error
}

// ErrorDetail is the human-readable failure, empty on success.
func (o Outcome) ErrorDetail() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}
