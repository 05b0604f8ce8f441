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

package listener

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var messagesCounter metric.Int64Counter

func init() {
	meter := otel.Meter("github.com/cardinalhq/docrunner/internal/listener")

	var err error
	messagesCounter, err = meter.Int64Counter(
		"docrunner.listener.messages",
		metric.WithDescription("Number of inbound messages handled, by backend and result"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create listener.messages counter: %w", err))
	}
}

func recordMessage(ctx context.Context, backend BackendType, ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}
	messagesCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("backend", string(backend)),
		attribute.String("result", result),
	))
}
