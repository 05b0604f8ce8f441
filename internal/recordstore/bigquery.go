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
	"strings"

	"cloud.google.com/go/bigquery"

	"github.com/cardinalhq/docrunner/internal/normalize"
)

// BigQueryInserter is satisfied by *bigquery.Inserter.
type BigQueryInserter interface {
	Put(ctx context.Context, src any) error
}

// BigQueryStore streams records into a table with columns record_id,
// ingested_at, source_reference and fields (JSON). Each row's insert id is its
// record_id, so BigQuery drops retried inserts on a best-effort basis.
type BigQueryStore struct {
	inserter BigQueryInserter
	table    string
}

func NewBigQueryStore(inserter BigQueryInserter, table string) *BigQueryStore {
	return &BigQueryStore{inserter: inserter, table: table}
}

func (s *BigQueryStore) Put(ctx context.Context, rec normalize.Record) error {
	if err := s.inserter.Put(ctx, bigQueryRow(rec)); err != nil {
		return fmt.Errorf("failed to insert record %s into %s: %w", rec.ID, s.table, err)
	}
	return nil
}

type bigQueryRow normalize.Record

var _ bigquery.ValueSaver = bigQueryRow{}

func (r bigQueryRow) Save() (map[string]bigquery.Value, string, error) {
	fields, err := json.Marshal(r.Fields)
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal fields for record %s: %w", r.ID, err)
	}
	return map[string]bigquery.Value{
		normalize.FieldRecordID:        r.ID,
		normalize.FieldIngestedAt:      r.IngestedAt,
		normalize.FieldSourceReference: r.SourceReference,
		"fields":                       string(fields),
	}, r.ID, nil
}

// BigQueryTable names a table as project.dataset.table.
type BigQueryTable struct {
	Project string
	Dataset string
	Table   string
}

func (t BigQueryTable) String() string {
	return t.Project + "." + t.Dataset + "." + t.Table
}

// ParseBigQueryTable accepts "dataset.table" or "project.dataset.table". The
// two-part form takes defaultProject.
func ParseBigQueryTable(identifier, defaultProject string) (BigQueryTable, error) {
	parts := strings.Split(identifier, ".")
	for _, p := range parts {
		if p == "" {
			return BigQueryTable{}, fmt.Errorf("invalid BigQuery table %q", identifier)
		}
	}
	switch len(parts) {
	case 2:
		if defaultProject == "" {
			return BigQueryTable{}, fmt.Errorf("BigQuery table %q needs a project", identifier)
		}
		return BigQueryTable{Project: defaultProject, Dataset: parts[0], Table: parts[1]}, nil
	case 3:
		return BigQueryTable{Project: parts[0], Dataset: parts[1], Table: parts[2]}, nil
	}
	return BigQueryTable{}, fmt.Errorf("invalid BigQuery table %q (want dataset.table or project.dataset.table)", identifier)
}
