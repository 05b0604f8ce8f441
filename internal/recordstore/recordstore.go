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

// Package recordstore holds the durable RecordStore backends. Every backend
// writes one record per call, keyed by record_id, overwriting any existing
// record with the same id.
package recordstore

import (
	"github.com/cardinalhq/docrunner/internal/ingest"
)

const (
	KindDynamoDB = "dynamodb"
	KindPostgres = "postgres"
	KindRedis    = "redis"
	KindBigQuery = "bigquery"
)

// Kinds lists the supported store backends.
var Kinds = []string{KindDynamoDB, KindPostgres, KindRedis, KindBigQuery}

var (
	_ ingest.RecordStore = (*DynamoStore)(nil)
	_ ingest.RecordStore = (*PostgresStore)(nil)
	_ ingest.RecordStore = (*RedisStore)(nil)
	_ ingest.RecordStore = (*BigQueryStore)(nil)
)
