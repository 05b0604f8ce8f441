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

const blobCreatedEvent = "Microsoft.Storage.BlobCreated"

// EventGridParser handles Azure Event Grid blob events, either a single
// event or the array Event Grid delivers to queues and webhooks.
type EventGridParser struct{}

func (p *EventGridParser) GetEventType() string {
	return "EventGrid"
}

type eventGridEvent struct {
	ID        string `json:"id"`
	Subject   string `json:"subject"`
	EventType string `json:"eventType"`
}

func (p *EventGridParser) Parse(raw []byte) ([]Descriptor, error) {
	var events []eventGridEvent
	if len(raw) > 0 && raw[0] == '[' {
		if err := json.Unmarshal(raw, &events); err != nil {
			return nil, fmt.Errorf("failed to parse event grid batch: %w", err)
		}
	} else {
		var evt eventGridEvent
		if err := json.Unmarshal(raw, &evt); err != nil {
			return nil, fmt.Errorf("failed to parse event grid event: %w", err)
		}
		events = append(events, evt)
	}

	out := make([]Descriptor, 0, len(events))
	for i, evt := range events {
		if evt.EventType != blobCreatedEvent {
			continue
		}
		container, blob, err := parseBlobSubject(evt.Subject)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		out = append(out, Descriptor{
			Kind:          SourceObjectStorage,
			Location:      Location{Provider: ProviderAzure, Bucket: container, Key: blob},
			CorrelationID: newCorrelationID(evt.ID),
		})
	}
	return out, nil
}

// parseBlobSubject splits "/blobServices/default/containers/<c>/blobs/<path>".
func parseBlobSubject(subject string) (string, string, error) {
	_, rest, ok := strings.Cut(subject, "/containers/")
	if !ok {
		return "", "", missing("subject container")
	}
	container, blob, ok := strings.Cut(rest, "/blobs/")
	if !ok || container == "" || blob == "" {
		return "", "", missing("subject blob")
	}
	return container, blob, nil
}
