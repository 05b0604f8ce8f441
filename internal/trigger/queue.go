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
	"encoding/json"
	"fmt"
	"strings"
)

type queueRecord struct {
	MessageID   string  `json:"messageId"`
	Body        *string `json:"body"`
	EventSource string  `json:"eventSource"`
}

// notificationWrapper is the SNS-style envelope carried in a queue body.
type notificationWrapper struct {
	Type      string  `json:"Type"`
	MessageID string  `json:"MessageId"`
	TopicArn  string  `json:"TopicArn"`
	Message   *string `json:"Message"`
}

// parseQueueRecord unwraps queue record -> notification wrapper -> payload.
func parseQueueRecord(raw []byte) ([]Descriptor, error) {
	var rec queueRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse queue record: %w", err)
	}
	if rec.Body == nil || strings.TrimSpace(*rec.Body) == "" {
		return nil, missing("body")
	}

	if isS3TestEvent([]byte(*rec.Body)) {
		return []Descriptor{}, nil
	}

	var wrapper notificationWrapper
	if err := json.Unmarshal([]byte(*rec.Body), &wrapper); err != nil {
		return nil, fmt.Errorf("queue body is not a notification wrapper: %w", err)
	}
	if wrapper.Message == nil {
		// Buckets can notify a queue directly, without the wrapper.
		if isS3Event([]byte(*rec.Body)) {
			return parseS3Event([]byte(*rec.Body))
		}
		return nil, missing("body.Message")
	}

	inner := []byte(*wrapper.Message)
	if isS3TestEvent(inner) {
		return []Descriptor{}, nil
	}
	if isS3Event(inner) {
		return parseS3Event(inner)
	}

	var payload QueuePayload
	if err := json.Unmarshal(inner, &payload); err != nil {
		return nil, fmt.Errorf("notification Message is not a payload object: %w", err)
	}
	if payload.Filename == "" {
		return nil, missing("Message.filename")
	}

	return []Descriptor{{
		Kind:          SourceQueueMessage,
		Location:      payloadLocation(payload),
		CorrelationID: newCorrelationID(rec.MessageID, wrapper.MessageID),
		Payload:       &payload,
	}}, nil
}

// isS3TestEvent reports the message S3 sends when a bucket notification is
// first configured.
func isS3TestEvent(raw []byte) bool {
	var evt struct {
		Event string `json:"Event"`
	}
	if err := json.Unmarshal(raw, &evt); err != nil {
		return false
	}
	return evt.Event == "s3:TestEvent"
}

func isS3Event(raw []byte) bool {
	var probe struct {
		Records []struct {
			S3 json.RawMessage `json:"s3"`
		} `json:"Records"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return false
	}
	return len(probe.Records) > 0 && probe.Records[0].S3 != nil
}

// payloadLocation resolves a payload's filename against its source. A source
// given as s3://, gs:// or az:// selects provider and bucket; anything else
// leaves the bucket to the content source default.
func payloadLocation(p QueuePayload) Location {
	key := strings.TrimPrefix(p.Filename, "/")
	src, ok := ParseObjectURI(p.Source)
	if !ok {
		return Location{Key: key}
	}
	if prefix := strings.Trim(src.Key, "/"); prefix != "" {
		key = prefix + "/" + key
	}
	src.Key = key
	return src
}

// SQSEnvelope builds the queue envelope for a single message so messages
// pulled by a poller decode through the same path as pushed batches.
func SQSEnvelope(messageID, body string) []byte {
	env := struct {
		Records []queueRecord `json:"Records"`
	}{
		Records: []queueRecord{{MessageID: messageID, Body: &body, EventSource: "aws:sqs"}},
	}
	b, _ := json.Marshal(env)
	return b
}
