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

// Package normalize expands decoded documents into records stamped with
// provenance.
package normalize

import (
	"maps"
	"time"

	"github.com/cardinalhq/docrunner/internal/idgen"
)

// Provenance field names. They override document fields of the same name.
const (
	FieldRecordID        = "record_id"
	FieldIngestedAt      = "ingested_at"
	FieldSourceReference = "source_reference"
)

// Record is one document element plus provenance.
type Record struct {
	ID              string
	IngestedAt      int64
	SourceReference string
	Fields          map[string]any
}

// Item returns the flat representation written to stores.
func (r Record) Item() map[string]any {
	out := make(map[string]any, len(r.Fields)+3)
	maps.Copy(out, r.Fields)
	out[FieldRecordID] = r.ID
	out[FieldIngestedAt] = r.IngestedAt
	out[FieldSourceReference] = r.SourceReference
	return out
}

type Normalizer struct {
	ids idgen.IDGenerator
	now func() time.Time
}

type Option func(*Normalizer)

func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) {
		n.now = now
	}
}

func WithIDGenerator(g idgen.IDGenerator) Option {
	return func(n *Normalizer) {
		n.ids = g
	}
}

func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		ids: idgen.UUIDGenerator{},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize turns an array into one record per element and anything else
// into exactly one record. doc is not modified.
func (n *Normalizer) Normalize(doc any, sourceRef string) []Record {
	elems, ok := doc.([]any)
	if !ok {
		elems = []any{doc}
	}

	out := make([]Record, 0, len(elems))
	for _, elem := range elems {
		now := n.now()
		out = append(out, Record{
			ID:              n.ids.Make(now),
			IngestedAt:      now.Unix(),
			SourceReference: sourceRef,
			Fields:          copyFields(elem),
		})
	}
	return out
}

func copyFields(elem any) map[string]any {
	obj, ok := elem.(map[string]any)
	if !ok {
		// Validation rejects non-objects; keep the value reachable anyway.
		return map[string]any{"value": elem}
	}
	return maps.Clone(obj)
}
