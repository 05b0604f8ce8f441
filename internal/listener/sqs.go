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
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cardinalhq/docrunner/internal/logctx"
	"github.com/cardinalhq/docrunner/internal/trigger"
)

// SQSAPI is the subset of the SQS client the poller uses.
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// SQSListener long-polls an SQS queue. A message is deleted only after its
// event was handled successfully; anything else is left for redelivery.
type SQSListener struct {
	tracer   trace.Tracer
	client   SQSAPI
	queueURL string
	handler  Handler
	opts     options
}

var _ Listener = (*SQSListener)(nil)

func NewSQSListener(client SQSAPI, queueURL string, handler Handler, opts ...Option) (*SQSListener, error) {
	if queueURL == "" {
		return nil, errors.New("SQS queue URL is required")
	}
	return &SQSListener{
		tracer:   otel.Tracer("github.com/cardinalhq/docrunner/internal/listener/sqs"),
		client:   client,
		queueURL: queueURL,
		handler:  handler,
		opts:     applyOptions(opts),
	}, nil
}

func (l *SQSListener) GetName() string {
	return string(BackendTypeSQS)
}

func (l *SQSListener) Run(doneCtx context.Context) error {
	slog.Info("Starting SQS polling loop", slog.String("queueURL", l.queueURL))

	for {
		select {
		case <-doneCtx.Done():
			slog.Info("SQS polling loop stopped")
			return nil
		default:
		}

		result, err := l.client.ReceiveMessage(doneCtx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(l.queueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20,
		})
		if err != nil {
			if doneCtx.Err() != nil {
				slog.Info("SQS polling loop stopped")
				return nil
			}
			slog.Error("Failed to receive messages from SQS", slog.Any("error", err))
			if !sleepCtx(doneCtx, l.opts.errorBackoff) {
				return nil
			}
			continue
		}

		if len(result.Messages) == 0 {
			continue
		}

		l.processMessages(doneCtx, result.Messages)
	}
}

// processMessages handles one received batch with bounded concurrency.
func (l *SQSListener) processMessages(doneCtx context.Context, messages []types.Message) {
	sem := make(chan struct{}, l.opts.maxConcurrent)
	var wg sync.WaitGroup

	var succeeded int
	var mu sync.Mutex

	for _, message := range messages {
		select {
		case <-doneCtx.Done():
			slog.Info("Context cancelled, stopping message processing")
			wg.Wait()
			return
		default:
		}

		wg.Add(1)
		sem <- struct{}{}

		go func(msg types.Message) {
			defer wg.Done()
			defer func() { <-sem }()

			if l.handleMessage(doneCtx, msg) {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}(message)
	}

	wg.Wait()

	slog.Info("Batch processing completed",
		slog.Int("total_messages", len(messages)),
		slog.Int("successful_messages", succeeded))
}

func (l *SQSListener) handleMessage(doneCtx context.Context, msg types.Message) bool {
	messageID := aws.ToString(msg.MessageId)
	if msg.Body == nil {
		slog.Warn("Received SQS message with nil body", slog.String("messageId", messageID))
		return false
	}

	ctx, span := l.tracer.Start(doneCtx, "sqs.handle_message",
		trace.WithAttributes(attribute.String("message_id", messageID)))
	defer span.End()

	ctx = logctx.With(ctx, slog.String("message_id", messageID))
	msgCtx, cancel := context.WithTimeout(ctx, l.opts.messageTimeout)
	defer cancel()

	resp, err := l.handler.Handle(msgCtx, trigger.SQSEnvelope(messageID, *msg.Body))
	recordMessage(ctx, BackendTypeSQS, err == nil)
	if err != nil {
		span.RecordError(err)
		slog.Error("Failed to handle SQS message, leaving it for redelivery",
			slog.Any("error", err),
			slog.Int("statusCode", resp.StatusCode),
			slog.String("messageId", messageID))
		return false
	}

	// The delete outlives a cancelled poll context so finished work is not redone.
	deleteCtx, deleteCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer deleteCancel()

	_, err = l.client.DeleteMessage(deleteCtx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(l.queueURL),
		ReceiptHandle: msg.ReceiptHandle,
	})
	if err != nil {
		slog.Error("Failed to delete SQS message after successful handling",
			slog.Any("error", err),
			slog.String("messageId", messageID))
		return true
	}
	slog.Debug("Successfully processed and deleted SQS message", slog.String("messageId", messageID))
	return true
}
