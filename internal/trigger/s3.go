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
	"errors"
	"fmt"
	"net/url"
	"strings"
)

type s3Record struct {
	EventName string `json:"eventName"`
	S3        *struct {
		Bucket *struct {
			Name string `json:"name"`
		} `json:"bucket"`
		Object *struct {
			Key       *string `json:"key"`
			Size      int64   `json:"size"`
			Sequencer string  `json:"sequencer"`
		} `json:"object"`
	} `json:"s3"`
	ResponseElements struct {
		RequestID string `json:"x-amz-request-id"`
	} `json:"responseElements"`
}

// errDirectoryMarker flags a zero-byte "folder/" object. Callers skip these
// records rather than fail the envelope.
var errDirectoryMarker = errors.New("directory marker")

func parseS3Record(raw []byte) (Descriptor, error) {
	var rec s3Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Descriptor{}, fmt.Errorf("failed to parse S3 record: %w", err)
	}
	if rec.S3 == nil {
		return Descriptor{}, missing("s3")
	}
	if rec.S3.Bucket == nil || rec.S3.Bucket.Name == "" {
		return Descriptor{}, missing("s3.bucket.name")
	}
	if rec.S3.Object == nil || rec.S3.Object.Key == nil || *rec.S3.Object.Key == "" {
		return Descriptor{}, missing("s3.object.key")
	}

	// S3 encodes keys form-style: %XX escapes and '+' for space.
	key, err := url.QueryUnescape(*rec.S3.Object.Key)
	if err != nil {
		return Descriptor{}, fmt.Errorf("failed to unescape key: %w", err)
	}
	if strings.HasSuffix(key, "/") {
		return Descriptor{}, errDirectoryMarker
	}

	return Descriptor{
		Kind: SourceObjectStorage,
		Location: Location{
			Provider: ProviderAWS,
			Bucket:   rec.S3.Bucket.Name,
			Key:      key,
		},
		CorrelationID: newCorrelationID(rec.ResponseElements.RequestID, rec.S3.Object.Sequencer),
	}, nil
}

// parseS3Event parses a full S3 notification document, used when one arrives
// nested inside a queue message.
func parseS3Event(raw []byte) ([]Descriptor, error) {
	var evt struct {
		Records []json.RawMessage `json:"Records"`
	}
	if err := json.Unmarshal(raw, &evt); err != nil {
		return nil, fmt.Errorf("failed to parse S3 event: %w", err)
	}
	out := make([]Descriptor, 0, len(evt.Records))
	for _, rec := range evt.Records {
		d, err := parseS3Record(rec)
		if errors.Is(err, errDirectoryMarker) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}
