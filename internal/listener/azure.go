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
	"encoding/base64"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cardinalhq/docrunner/internal/logctx"
)

const (
	azureDequeueBatch       = int32(32)
	azureVisibilityTimeoutS = int32(300)
)

type queueMessage struct {
	ID         string
	PopReceipt string
	Text       string
}

// messageQueue is the dequeue/delete pair the Azure poller relies on.
type messageQueue interface {
	Dequeue(ctx context.Context) ([]queueMessage, error)
	Delete(ctx context.Context, id, popReceipt string) error
}

type azqueueAdapter struct {
	client *azqueue.QueueClient
}

func (a azqueueAdapter) Dequeue(ctx context.Context) ([]queueMessage, error) {
	n, vis := azureDequeueBatch, azureVisibilityTimeoutS
	result, err := a.client.DequeueMessages(ctx, &azqueue.DequeueMessagesOptions{
		NumberOfMessages:  &n,
		VisibilityTimeout: &vis,
	})
	if err != nil {
		return nil, err
	}
	out := make([]queueMessage, 0, len(result.Messages))
	for _, m := range result.Messages {
		if m == nil || m.MessageID == nil || m.PopReceipt == nil {
			continue
		}
		qm := queueMessage{ID: *m.MessageID, PopReceipt: *m.PopReceipt}
		if m.MessageText != nil {
			qm.Text = *m.MessageText
		}
		out = append(out, qm)
	}
	return out, nil
}

func (a azqueueAdapter) Delete(ctx context.Context, id, popReceipt string) error {
	_, err := a.client.DeleteMessage(ctx, id, popReceipt, nil)
	return err
}

// AzureQueueListener polls an Azure Storage queue fed by Event Grid.
// Messages whose event failed stay invisible until the visibility timeout
// lapses and are then redelivered.
type AzureQueueListener struct {
	tracer    trace.Tracer
	queue     messageQueue
	queueName string
	handler   Handler
	opts      options
}

var _ Listener = (*AzureQueueListener)(nil)

func NewAzureQueueListener(client *azqueue.QueueClient, queueName string, handler Handler, opts ...Option) (*AzureQueueListener, error) {
	if client == nil {
		return nil, errors.New("azure queue client is required")
	}
	return newAzureQueueListener(azqueueAdapter{client: client}, queueName, handler, opts...), nil
}

func newAzureQueueListener(q messageQueue, queueName string, handler Handler, opts ...Option) *AzureQueueListener {
	return &AzureQueueListener{
		tracer:    otel.Tracer("github.com/cardinalhq/docrunner/internal/listener/azure"),
		queue:     q,
		queueName: queueName,
		handler:   handler,
		opts:      applyOptions(opts),
	}
}

func (l *AzureQueueListener) GetName() string {
	return string(BackendTypeAzure)
}

func (l *AzureQueueListener) Run(doneCtx context.Context) error {
	slog.Info("Starting Azure Queue polling loop", slog.String("queue", l.queueName))

	for {
		select {
		case <-doneCtx.Done():
			slog.Info("Azure Queue polling loop stopped")
			return nil
		default:
		}

		messages, err := l.queue.Dequeue(doneCtx)
		if err != nil {
			if doneCtx.Err() != nil {
				slog.Info("Azure Queue polling loop stopped")
				return nil
			}
			slog.Error("Failed to receive messages from Azure Queue", slog.Any("error", err))
			if !sleepCtx(doneCtx, l.opts.errorBackoff) {
				return nil
			}
			continue
		}

		if len(messages) == 0 {
			if !sleepCtx(doneCtx, l.opts.idleBackoff) {
				return nil
			}
			continue
		}

		l.processMessages(doneCtx, messages)
	}
}

func (l *AzureQueueListener) processMessages(doneCtx context.Context, messages []queueMessage) {
	sem := make(chan struct{}, l.opts.maxConcurrent)
	var wg sync.WaitGroup
	for _, m := range messages {
		wg.Add(1)
		sem <- struct{}{}
		go func(msg queueMessage) {
			defer wg.Done()
			defer func() { <-sem }()
			l.handleMessage(doneCtx, msg)
		}(m)
	}
	wg.Wait()
}

func (l *AzureQueueListener) handleMessage(doneCtx context.Context, msg queueMessage) bool {
	ctx, span := l.tracer.Start(doneCtx, "azure_queue.handle_message",
		trace.WithAttributes(attribute.String("message_id", msg.ID)))
	defer span.End()

	ctx = logctx.With(ctx, slog.String("message_id", msg.ID))
	msgCtx, cancel := context.WithTimeout(ctx, l.opts.messageTimeout)
	defer cancel()

	_, err := l.handler.Handle(msgCtx, decodeIfBase64(msg.Text))
	recordMessage(ctx, BackendTypeAzure, err == nil)
	if err != nil {
		span.RecordError(err)
		slog.Error("Failed to handle Azure Queue message, leaving it for redelivery",
			slog.Any("error", err),
			slog.String("messageId", msg.ID))
		return false
	}

	deleteCtx, deleteCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer deleteCancel()
	if err := l.queue.Delete(deleteCtx, msg.ID, msg.PopReceipt); err != nil {
		slog.Error("Failed to delete Azure Queue message", slog.Any("error", err), slog.String("messageId", msg.ID))
	}
	return true
}

// Event Grid wraps queue messages in base64 for some event sources.
func decodeIfBase64(s string) []byte {
	if len(s) == 0 || len(s)%4 != 0 {
		return []byte(s)
	}

	for _, c := range s {
		if !(('A' <= c && c <= 'Z') ||
			('a' <= c && c <= 'z') ||
			('0' <= c && c <= '9') ||
			c == '+' || c == '/' || c == '=') {
			return []byte(s)
		}
	}

	decoded, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return []byte(s)
	}
	return decoded
}
