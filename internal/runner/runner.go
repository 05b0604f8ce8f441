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

package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/cardinalhq/docrunner/internal/ingest"
	"github.com/cardinalhq/docrunner/internal/logctx"
	"github.com/cardinalhq/docrunner/internal/trigger"
)

const (
	BodySuccess   = "Success"
	BodyNoRecords = "No records"
)

// maxLoggedEvent caps how much of an inbound event is written to the log.
const maxLoggedEvent = 4096

// Response is the result reported to the invoking platform.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

// Ingestor runs one descriptor to a terminal outcome.
type Ingestor interface {
	Run(ctx context.Context, d trigger.Descriptor) (ingest.Outcome, error)
}

// Dispatcher publishes one notification per outcome.
type Dispatcher interface {
	Dispatch(ctx context.Context, out ingest.Outcome) error
}

// Runner turns one inbound event into ingest runs and notifications.
type Runner struct {
	ingestor   Ingestor
	dispatcher Dispatcher
}

func New(ingestor Ingestor, dispatcher Dispatcher) *Runner {
	return &Runner{ingestor: ingestor, dispatcher: dispatcher}
}

// Handle decodes raw, runs every descriptor independently and publishes one
// notification per run. Any failed run or publish makes Handle return an
// error so the platform redelivers the event.
func (r *Runner) Handle(ctx context.Context, raw []byte) (Response, error) {
	ll := logctx.FromContext(ctx)
	ll.Info("Received event",
		slog.Int("bytes", len(raw)),
		slog.String("event", truncate(raw, maxLoggedEvent)))

	descriptors, err := trigger.Decode(raw)
	if err != nil {
		ll.Error("Rejected event", slog.Any("error", err))
		return Response{StatusCode: http.StatusBadRequest, Body: err.Error()}, err
	}
	if len(descriptors) == 0 {
		ll.Info("Event carried no records")
		return Response{StatusCode: http.StatusOK, Body: BodyNoRecords}, nil
	}

	var errs []error
	for _, d := range descriptors {
		if err := r.runOne(ctx, d); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return Response{StatusCode: http.StatusInternalServerError, Body: err.Error()}, err
	}
	return Response{StatusCode: http.StatusOK, Body: BodySuccess}, nil
}

func (r *Runner) runOne(ctx context.Context, d trigger.Descriptor) error {
	ctx = logctx.With(ctx, slog.String("correlation_id", d.CorrelationID))
	ll := logctx.FromContext(ctx)

	out, runErr := r.ingestor.Run(ctx, d)

	attrs := []any{
		slog.String("source_kind", string(d.Kind)),
		slog.String("source_reference", out.SourceReference),
		slog.Bool("succeeded", out.Succeeded),
		slog.Int("records", out.RecordsWritten),
		slog.String("state", out.State.String()),
	}
	if runErr != nil {
		attrs = append(attrs,
			slog.String("failed_in", out.FailedIn.String()),
			slog.Any("error", runErr))
		ll.Error("Ingest run failed", attrs...)
	} else {
		ll.Info("Ingest run complete", attrs...)
	}

	pubErr := r.dispatcher.Dispatch(ctx, out)
	if pubErr != nil && runErr == nil {
		ll.Warn("Records persisted but notification failed; redelivery will rewrite them",
			slog.String("source_reference", out.SourceReference),
			slog.Any("error", pubErr))
	}

	if runErr != nil || pubErr != nil {
		return fmt.Errorf("%s: %w", d.Location, errors.Join(runErr, pubErr))
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "...(truncated)"
}
