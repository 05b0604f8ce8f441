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
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/cardinalhq/docrunner/internal/ingest"
	"github.com/cardinalhq/docrunner/internal/logctx"
	"github.com/cardinalhq/docrunner/internal/stageerr"
)

const (
	SubjectSucceeded = "Data Processing Complete"
	SubjectFailed    = "Data Processing Failed"

	StatusSuccess = "success"
	StatusFailure = "failure"

	AttrFilename = "filename"
	AttrStatus   = "status"
)

// Publisher delivers a single message to a topic, subject or stream.
// Implementations return only after the broker accepted the message.
type Publisher interface {
	Publish(ctx context.Context, topic, subject string, body []byte, attrs map[string]string) error
}

// Body is the JSON notification payload.
type Body struct {
	Message       string `json:"message"`
	File          string `json:"file"`
	Records       int    `json:"records"`
	Succeeded     bool   `json:"succeeded"`
	CorrelationID string `json:"correlation_id,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Message is a rendered notification ready to publish.
type Message struct {
	Subject    string
	Body       Body
	Attributes map[string]string
}

// Render builds the notification for an outcome.
func Render(out ingest.Outcome) Message {
	msg := Message{
		Body: Body{
			File:          out.SourceReference,
			Records:       out.RecordsWritten,
			Succeeded:     out.Succeeded,
			CorrelationID: out.CorrelationID,
		},
		Attributes: map[string]string{AttrFilename: out.SourceReference},
	}
	if out.Succeeded {
		msg.Subject = SubjectSucceeded
		msg.Body.Message = "Data processed"
		msg.Attributes[AttrStatus] = StatusSuccess
	} else {
		msg.Subject = SubjectFailed
		msg.Body.Message = "Data processing failed"
		msg.Body.Error = out.ErrorDetail()
		msg.Attributes[AttrStatus] = StatusFailure
	}
	return msg
}

// Dispatcher publishes one notification per outcome to a fixed target.
type Dispatcher struct {
	publisher Publisher
	target    string
}

func NewDispatcher(publisher Publisher, target string) *Dispatcher {
	return &Dispatcher{publisher: publisher, target: target}
}

// Dispatch publishes the outcome. A failure is returned as a PublishError;
// persisted records are never touched.
func (d *Dispatcher) Dispatch(ctx context.Context, out ingest.Outcome) error {
	ll := logctx.FromContext(ctx)
	msg := Render(out)
	body, err := json.Marshal(msg.Body)
	if err != nil {
		return stageerr.Publish(fmt.Errorf("failed to marshal notification: %w", err))
	}

	if err := d.publisher.Publish(ctx, d.target, msg.Subject, body, msg.Attributes); err != nil {
		recordPublish(ctx, msg.Attributes[AttrStatus], false)
		ll.Error("Failed to publish notification",
			slog.String("target", d.target),
			slog.String("file", out.SourceReference),
			slog.Any("error", err))
		return stageerr.Publish(fmt.Errorf("publish to %s: %w", d.target, err))
	}

	recordPublish(ctx, msg.Attributes[AttrStatus], true)
	ll.Info("Published notification",
		slog.String("target", d.target),
		slog.String("subject", msg.Subject),
		slog.String("file", out.SourceReference),
		slog.Int("records", out.RecordsWritten))
	return nil
}
