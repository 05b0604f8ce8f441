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
	"strconv"
	"strings"
)

// SourceKind identifies where a trigger originated.
type SourceKind string

const (
	SourceObjectStorage SourceKind = "object-storage-event"
	SourceQueueMessage  SourceKind = "queue-message"
)

// Providers understood by the content source router.
const (
	ProviderAWS   = "aws"
	ProviderGCP   = "gcp"
	ProviderAzure = "azure"
	ProviderFile  = "file"
)

// Location references the document a trigger points at. An empty Bucket
// means the content source's default bucket.
type Location struct {
	Provider string `json:"provider,omitempty"`
	Bucket   string `json:"bucket,omitempty"`
	Key      string `json:"key"`
}

func (l Location) String() string {
	if l.Bucket == "" {
		return l.Key
	}
	return l.Bucket + "/" + l.Key
}

// ParseObjectURI splits an s3://, gs:// or az:// URI into a Location. The
// key is everything after the bucket and may be empty.
func ParseObjectURI(uri string) (Location, bool) {
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok {
		return Location{}, false
	}
	var loc Location
	switch scheme {
	case "s3":
		loc.Provider = ProviderAWS
	case "gs":
		loc.Provider = ProviderGCP
	case "az":
		loc.Provider = ProviderAzure
	default:
		return Location{}, false
	}
	loc.Bucket, loc.Key, _ = strings.Cut(rest, "/")
	if loc.Bucket == "" {
		return Location{}, false
	}
	return loc, true
}

// QueuePayload is the innermost object of a queue-delivered notification.
type QueuePayload struct {
	Filename      string        `json:"filename"`
	SchemaVersion SchemaVersion `json:"schema_version"`
	Source        string        `json:"source"`
}

// SchemaVersion accepts either a JSON number or a numeric string.
type SchemaVersion int

func (v *SchemaVersion) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == "" {
		*v = 0
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		s = strings.TrimSpace(str)
		if s == "" {
			*v = 0
			return nil
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid schema_version %s: %w", string(b), err)
	}
	*v = SchemaVersion(n)
	return nil
}

// Descriptor is the uniform, immutable trigger handed to the ingestor.
type Descriptor struct {
	Kind          SourceKind
	Location      Location
	CorrelationID string
	// Payload is only set for queue-message triggers.
	Payload *QueuePayload
}

// SourceReference identifies the originating document in records and notifications.
func (d Descriptor) SourceReference() string {
	return d.Location.Key
}
