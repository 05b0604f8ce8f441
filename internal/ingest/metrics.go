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
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	runsCounter    metric.Int64Counter
	recordsWritten metric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/docrunner/internal/ingest")

	var err error
	runsCounter, err = meter.Int64Counter(
		"docrunner.ingest.runs",
		metric.WithDescription("Number of ingest runs by terminal state and failed stage"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create ingest.runs counter: %w", err))
	}

	recordsWritten, err = meter.Int64Counter(
		"docrunner.ingest.records.written",
		metric.WithDescription("Number of records persisted to the record store"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create ingest.records.written counter: %w", err))
	}
}

func recordRun(ctx context.Context, out Outcome) {
	attrs := []attribute.KeyValue{attribute.String("state", out.State.String())}
	if out.State == StateFailed {
		attrs = append(attrs, attribute.String("failed_in", out.FailedIn.String()))
	}
	runsCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	if out.RecordsWritten > 0 {
		recordsWritten.Add(ctx, int64(out.RecordsWritten))
	}
}
