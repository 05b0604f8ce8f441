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

package notify

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var publishCounter metric.Int64Counter

func init() {
	meter := otel.Meter("github.com/cardinalhq/docrunner/internal/notify")

	var err error
	publishCounter, err = meter.Int64Counter(
		"docrunner.notify.published",
		metric.WithDescription("Number of notifications published, by status and publish result"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create notify.published counter: %w", err))
	}
}

func recordPublish(ctx context.Context, status string, ok bool) {
	publishCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", status),
		attribute.Bool("published", ok),
	))
}
