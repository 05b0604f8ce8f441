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
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// GCSEventParser handles Cloud Storage object notifications.
type GCSEventParser struct{}

func (p *GCSEventParser) GetEventType() string {
	return "GCS"
}

func (p *GCSEventParser) Parse(raw []byte) ([]Descriptor, error) {
	var evt struct {
		Kind       string `json:"kind"`
		ID         string `json:"id"`
		Bucket     string `json:"bucket"`
		Name       string `json:"name"`
		Generation string `json:"generation"`
	}
	if err := json.Unmarshal(raw, &evt); err != nil {
		return nil, fmt.Errorf("failed to parse GCP storage event: %w", err)
	}

	bucket := evt.Bucket
	if bucket == "" && evt.ID != "" {
		bucket, _, _ = strings.Cut(evt.ID, "/")
	}
	if bucket == "" {
		return nil, missing("bucket")
	}
	if evt.Name == "" {
		return nil, missing("name")
	}

	return []Descriptor{{
		Kind: SourceObjectStorage,
		Location: Location{
			Provider: ProviderGCP,
			Bucket:   bucket,
			Key:      evt.Name,
		},
		CorrelationID: newCorrelationID(evt.ID, evt.Generation),
	}}, nil
}

// PubSubPushParser handles the wrapper Pub/Sub uses for push subscriptions.
type PubSubPushParser struct{}

func (p *PubSubPushParser) GetEventType() string {
	return "PubSubPush"
}

func (p *PubSubPushParser) Parse(raw []byte) ([]Descriptor, error) {
	var push struct {
		Message *struct {
			Data       string            `json:"data"`
			MessageID  string            `json:"messageId"`
			Attributes map[string]string `json:"attributes"`
		} `json:"message"`
	}
	if err := json.Unmarshal(raw, &push); err != nil {
		return nil, fmt.Errorf("failed to parse push envelope: %w", err)
	}
	if push.Message == nil {
		return nil, missing("message")
	}

	if push.Message.Data == "" {
		bucket := push.Message.Attributes["bucketId"]
		name := push.Message.Attributes["objectId"]
		if bucket == "" || name == "" {
			return nil, missing("message.data")
		}
		return []Descriptor{{
			Kind:          SourceObjectStorage,
			Location:      Location{Provider: ProviderGCP, Bucket: bucket, Key: name},
			CorrelationID: newCorrelationID(push.Message.MessageID),
		}}, nil
	}

	data, err := base64.StdEncoding.DecodeString(push.Message.Data)
	if err != nil {
		return nil, fmt.Errorf("message.data is not base64: %w", err)
	}
	ds, err := (&GCSEventParser{}).Parse(data)
	if err != nil {
		return nil, err
	}
	for i := range ds {
		if push.Message.MessageID != "" {
			ds[i].CorrelationID = push.Message.MessageID
		}
	}
	return ds, nil
}
