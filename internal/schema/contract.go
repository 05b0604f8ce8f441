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

package schema

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

// Contract is the ordered set of field names a document must contain.
// It is read-only once loaded and safe for concurrent use.
type Contract struct {
	fields []string
}

// FieldDescriptor is one entry of a contract file. Only Name is used.
type FieldDescriptor struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type,omitempty" yaml:"type,omitempty"`
}

// NewContract builds a contract from field names, dropping duplicates.
func NewContract(fields ...string) (*Contract, error) {
	if len(fields) == 0 {
		return nil, errors.New("schema contract has no fields")
	}
	seen := make(map[string]struct{}, len(fields))
	c := &Contract{fields: make([]string, 0, len(fields))}
	for i, f := range fields {
		if f == "" {
			return nil, fmt.Errorf("schema contract field %d has an empty name", i)
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		c.fields = append(c.fields, f)
	}
	return c, nil
}

// Fields returns a copy of the required field names in contract order.
func (c *Contract) Fields() []string {
	return append([]string(nil), c.fields...)
}

func (c *Contract) Len() int {
	return len(c.fields)
}

// ParseContract decodes a contract document. format is "json" or "yaml".
func ParseContract(data []byte, format string) (*Contract, error) {
	var descs []FieldDescriptor
	switch format {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &descs); err != nil {
			return nil, fmt.Errorf("failed to parse YAML schema contract: %w", err)
		}
	case "json", "":
		if err := json.Unmarshal(data, &descs); err != nil {
			return nil, fmt.Errorf("failed to parse JSON schema contract: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported schema contract format %q", format)
	}

	names := make([]string, 0, len(descs))
	for _, d := range descs {
		names = append(names, d.Name)
	}
	return NewContract(names...)
}

// RemoteReader reads the bytes behind a storage URI such as s3://bucket/key.
type RemoteReader func(ctx context.Context, uri string) ([]byte, error)

// LoadContract reads a contract from a local path or, when remote is non-nil,
// from an s3://, gs:// or az:// URI.
func LoadContract(ctx context.Context, location string, remote RemoteReader) (*Contract, error) {
	if location == "" {
		return nil, errors.New("schema contract location is empty")
	}

	var (
		data []byte
		err  error
	)
	if IsRemoteLocation(location) {
		if remote == nil {
			return nil, fmt.Errorf("no reader available for remote schema contract %s", location)
		}
		data, err = remote(ctx, location)
	} else {
		data, err = os.ReadFile(location)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read schema contract %s: %w", location, err)
	}

	c, err := ParseContract(data, formatOf(location))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", location, err)
	}
	return c, nil
}

func IsRemoteLocation(location string) bool {
	for _, prefix := range []string{"s3://", "gs://", "az://"} {
		if strings.HasPrefix(location, prefix) {
			return true
		}
	}
	return false
}

func formatOf(location string) string {
	switch strings.ToLower(path.Ext(location)) {
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "json"
	}
}
