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
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/pubsub"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cardinalhq/docrunner/internal/logctx"
)

// GCPListener receives Cloud Storage notifications from a Pub/Sub
// subscription. Failed events are nacked so Pub/Sub redelivers them or
// routes them to the subscription's dead letter topic.
type GCPListener struct {
	tracer  trace.Tracer
	sub     *pubsub.Subscription
	handler Handler
	opts    options
}

var _ Listener = (*GCPListener)(nil)

func NewGCPListener(client *pubsub.Client, subscriptionID string, handler Handler, opts ...Option) (*GCPListener, error) {
	if client == nil {
		return nil, errors.New("pubsub client is required")
	}
	if subscriptionID == "" {
		return nil, errors.New("GCP subscription ID is required")
	}

	o := applyOptions(opts)
	sub := client.Subscription(subscriptionID)
	sub.ReceiveSettings.MaxOutstandingMessages = o.maxConcurrent

	return &GCPListener{
		tracer:  otel.Tracer("github.com/cardinalhq/docrunner/internal/listener/gcp"),
		sub:     sub,
		handler: handler,
		opts:    o,
	}, nil
}

func (l *GCPListener) GetName() string {
	return string(BackendTypeGCPPubSub)
}

func (l *GCPListener) Run(doneCtx context.Context) error {
	slog.Info("Starting GCP Pub/Sub receiver", slog.String("subscription", l.sub.ID()))

	err := l.sub.Receive(doneCtx, l.messageHandler)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("GCP Pub/Sub receive error: %w", err)
	}
	slog.Info("GCP Pub/Sub receiver stopped")
	return nil
}

func (l *GCPListener) messageHandler(ctx context.Context, msg *pubsub.Message) {
	ctx, span := l.tracer.Start(ctx, "gcp_pubsub.message_handler",
		trace.WithAttributes(
			attribute.String("message_id", msg.ID),
			attribute.String("publish_time", msg.PublishTime.String()),
		))
	defer span.End()

	ctx = logctx.With(ctx, slog.String("message_id", msg.ID))
	msgCtx, cancel := context.WithTimeout(ctx, l.opts.messageTimeout)
	defer cancel()

	resp, err := l.handler.Handle(msgCtx, msg.Data)
	recordMessage(ctx, BackendTypeGCPPubSub, err == nil)
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Int("status_code", resp.StatusCode))
		slog.Error("Failed to handle Cloud Storage event",
			slog.Any("error", err),
			slog.String("message_id", msg.ID))
		msg.Nack()
		return
	}

	msg.Ack()
	span.SetAttributes(attribute.String("status", "success"))
}
