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
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseContractJSON(t *testing.T) {
	c, err := ParseContract([]byte(`[{"name":"id","type":"INTEGER"},{"name":"name"},{"name":"id"}]`), "json")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, c.Fields())
	assert.Equal(t, 2, c.Len())
}

func TestParseContractYAML(t *testing.T) {
	c, err := ParseContract([]byte("- name: id\n- name: email\n  type: STRING\n"), "yaml")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "email"}, c.Fields())
}

func TestParseContractErrors(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		format string
	}{
		{"not an array", `{"name":"id"}`, "json"},
		{"empty", `[]`, "json"},
		{"empty name", `[{"name":""}]`, "json"},
		{"missing name", `[{"type":"STRING"}]`, "json"},
		{"bad format", `[]`, "toml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseContract([]byte(tt.data), tt.format)
			assert.Error(t, err)
		})
	}
}

func TestLoadContractLocal(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "schema.json")
	require.NoError(t, os.WriteFile(p, []byte(`[{"name":"id"},{"name":"name"}]`), 0o644))

	c, err := LoadContract(context.Background(), p, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, c.Fields())
}

func TestLoadContractRemote(t *testing.T) {
	var gotURI string
	reader := func(_ context.Context, uri string) ([]byte, error) {
		gotURI = uri
		return []byte("- name: id\n"), nil
	}

	c, err := LoadContract(context.Background(), "s3://cfg/schema.yaml", reader)
	require.NoError(t, err)
	assert.Equal(t, "s3://cfg/schema.yaml", gotURI)
	assert.Equal(t, []string{"id"}, c.Fields())
}

func TestLoadContractRemoteWithoutReader(t *testing.T) {
	_, err := LoadContract(context.Background(), "gs://cfg/schema.json", nil)
	assert.Error(t, err)
}

func TestLoadContractReadError(t *testing.T) {
	reader := func(context.Context, string) ([]byte, error) {
		return nil, errors.New("access denied")
	}
	_, err := LoadContract(context.Background(), "az://cfg/schema.json", reader)
	assert.ErrorContains(t, err, "access denied")

	_, err = LoadContract(context.Background(), filepath.Join(t.TempDir(), "missing.json"), nil)
	assert.Error(t, err)

	_, err = LoadContract(context.Background(), "", nil)
	assert.Error(t, err)
}

func TestIsRemoteLocation(t *testing.T) {
	assert.True(t, IsRemoteLocation("s3://b/k"))
	assert.True(t, IsRemoteLocation("gs://b/k"))
	assert.True(t, IsRemoteLocation("az://c/k"))
	assert.False(t, IsRemoteLocation("/etc/docrunner/schema.json"))
	assert.False(t, IsRemoteLocation("schema.json"))
}
