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

package trigger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/cardinalhq/docrunner/internal/stageerr"
)

// EventParser turns one recognised envelope shape into descriptors.
type EventParser interface {
	Parse(raw []byte) ([]Descriptor, error)
	GetEventType() string
}

// Decode unwraps an inbound event envelope into zero or more descriptors.
// Every failure is a MalformedEnvelope stage error.
func Decode(raw []byte) ([]Descriptor, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, stageerr.MalformedEnvelope("empty envelope")
	}

	parser, err := newParser(raw)
	if err != nil {
		return nil, err
	}

	out, err := parser.Parse(raw)
	if err != nil {
		if stageerr.KindOf(err) == stageerr.KindMalformedEnvelope {
			return nil, err
		}
		return nil, stageerr.MalformedEnvelope("failed to parse %s event: %w", parser.GetEventType(), err)
	}
	return out, nil
}

func newParser(raw []byte) (EventParser, error) {
	if raw[0] == '[' {
		return &EventGridParser{}, nil
	}
	if raw[0] != '{' {
		return nil, stageerr.MalformedEnvelope("envelope is not a JSON object")
	}

	var probe struct {
		Records json.RawMessage `json:"Records"`
		Event   string          `json:"Event"`
		Message json.RawMessage `json:"message"`
		Kind    string          `json:"kind"`
		Bucket  string          `json:"bucket"`
		Name    string          `json:"name"`
		ID      string          `json:"id"`
		Subject string          `json:"subject"`
		Type    string          `json:"eventType"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, stageerr.MalformedEnvelope("invalid envelope JSON: %w", err)
	}

	switch {
	case probe.Records != nil:
		return &RecordsParser{}, nil
	case probe.Event == "s3:TestEvent":
		return testEventParser{}, nil
	case probe.Message != nil:
		return &PubSubPushParser{}, nil
	case probe.Kind == "storage#object" || (probe.Bucket != "" && probe.Name != ""):
		return &GCSEventParser{}, nil
	case probe.Type != "" && probe.Subject != "":
		return &EventGridParser{}, nil
	}
	return nil, stageerr.MalformedEnvelope("unable to determine event type from content")
}

// RecordsParser handles the {"Records": [...]} shape shared by S3 event
// notifications and SQS batches. Each record is classified on its own.
type RecordsParser struct{}

func (p *RecordsParser) GetEventType() string {
	return "Records"
}

func (p *RecordsParser) Parse(raw []byte) ([]Descriptor, error) {
	var evt struct {
		Records []json.RawMessage `json:"Records"`
	}
	if err := json.Unmarshal(raw, &evt); err != nil {
		return nil, stageerr.MalformedEnvelope("invalid Records array: %w", err)
	}

	out := make([]Descriptor, 0, len(evt.Records))
	for i, rec := range evt.Records {
		var probe struct {
			S3          json.RawMessage `json:"s3"`
			Body        *string         `json:"body"`
			EventSource string          `json:"eventSource"`
		}
		if err := json.Unmarshal(rec, &probe); err != nil {
			return nil, stageerr.MalformedEnvelope("record %d: %w", i, err)
		}

		switch {
		case probe.S3 != nil:
			d, err := parseS3Record(rec)
			if errors.Is(err, errDirectoryMarker) {
				continue
			}
			if err != nil {
				return nil, stageerr.MalformedEnvelope("record %d: %w", i, err)
			}
			out = append(out, d)
		case probe.Body != nil || probe.EventSource == "aws:sqs":
			ds, err := parseQueueRecord(rec)
			if err != nil {
				return nil, stageerr.MalformedEnvelope("record %d: %w", i, err)
			}
			out = append(out, ds...)
		default:
			return nil, stageerr.MalformedEnvelope("record %d: neither an s3 nor a queue record", i)
		}
	}
	return out, nil
}

type testEventParser struct{}

func (testEventParser) GetEventType() string {
	return "S3TestEvent"
}

func (testEventParser) Parse([]byte) ([]Descriptor, error) {
	return []Descriptor{}, nil
}

func newCorrelationID(candidates ...string) string {
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return uuid.NewString()
}

func missing(field string) error {
	return fmt.Errorf("missing required field %s", field)
}
