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

package cloudstorage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/docrunner/internal/ingest"
	"github.com/cardinalhq/docrunner/internal/trigger"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestFileClient_GetObject(t *testing.T) {
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "bucket", "data", "1.json"), `{"id":1}`)

	c := NewFileClient(base)
	doc, err := c.GetObject(context.Background(), "bucket", "data/1.json")
	require.NoError(t, err)
	assert.Equal(t, `{"id":1}`, string(doc.Data))
	assert.Equal(t, int64(8), doc.Size)

	_, err = c.GetObject(context.Background(), "bucket", "data/2.json")
	assert.ErrorIs(t, err, ingest.ErrObjectNotFound)
}

func TestFileClient_RejectsEscapingKeys(t *testing.T) {
	c := NewFileClient(t.TempDir())
	_, err := c.GetObject(context.Background(), "", "../../etc/passwd")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ingest.ErrObjectNotFound)
	assert.Contains(t, err.Error(), "escapes the storage root")
}

func TestFileClient_EmptyBaseStaysInWorkingDir(t *testing.T) {
	t.Chdir(t.TempDir())
	writeFile(t, filepath.Join("landing", "a.json"), `{}`)

	c := NewFileClient("")
	doc, err := c.GetObject(context.Background(), "", "landing/a.json")
	require.NoError(t, err)
	assert.Equal(t, "{}", string(doc.Data))

	for _, key := range []string{"../../../../etc/hostname", "landing/../../x.json", ".."} {
		_, err := c.GetObject(context.Background(), "", key)
		require.Error(t, err, key)
		assert.Contains(t, err.Error(), "escapes the storage root", key)
	}

	_, err = c.GetObject(context.Background(), "..", "x.json")
	assert.ErrorContains(t, err, "escapes the storage root")
}

type recordingProvider struct {
	calls   []string
	clients map[string]Client
}

func (p *recordingProvider) NewClient(_ context.Context, provider string) (Client, error) {
	p.calls = append(p.calls, provider)
	c, ok := p.clients[provider]
	if !ok {
		return nil, errors.New("unsupported cloud provider: " + provider)
	}
	return c, nil
}

type stubClient struct {
	got []trigger.Location
}

func (s *stubClient) GetObject(_ context.Context, bucket, key string) (ingest.RawDocument, error) {
	s.got = append(s.got, trigger.Location{Bucket: bucket, Key: key})
	return ingest.RawDocument{Data: []byte(`{}`)}, nil
}

func TestSource_AppliesDefaultsAndCachesClients(t *testing.T) {
	aws := &stubClient{}
	gcs := &stubClient{}
	p := &recordingProvider{clients: map[string]Client{trigger.ProviderAWS: aws, trigger.ProviderGCP: gcs}}
	src := NewSource(p, trigger.ProviderAWS, "landing")

	_, err := src.Fetch(context.Background(), trigger.Location{Key: "a.json"})
	require.NoError(t, err)
	_, err = src.Fetch(context.Background(), trigger.Location{Provider: trigger.ProviderAWS, Bucket: "other", Key: "b.json"})
	require.NoError(t, err)
	_, err = src.Fetch(context.Background(), trigger.Location{Provider: trigger.ProviderGCP, Bucket: "g", Key: "c.json"})
	require.NoError(t, err)

	assert.Equal(t, []trigger.Location{{Bucket: "landing", Key: "a.json"}, {Bucket: "other", Key: "b.json"}}, aws.got)
	assert.Equal(t, []trigger.Location{{Bucket: "g", Key: "c.json"}}, gcs.got)
	assert.Equal(t, []string{trigger.ProviderAWS, trigger.ProviderGCP}, p.calls)
}

func TestSource_Errors(t *testing.T) {
	p := &recordingProvider{clients: map[string]Client{}}
	src := NewSource(p, trigger.ProviderAWS, "")

	_, err := src.Fetch(context.Background(), trigger.Location{Key: "a.json"})
	assert.ErrorContains(t, err, "no default bucket")

	_, err = src.Fetch(context.Background(), trigger.Location{Bucket: "b"})
	assert.ErrorContains(t, err, "key is empty")

	_, err = src.Fetch(context.Background(), trigger.Location{Provider: "ftp", Bucket: "b", Key: "k"})
	assert.ErrorContains(t, err, "unsupported cloud provider")
	_, err = src.Fetch(context.Background(), trigger.Location{Provider: "ftp", Bucket: "b", Key: "k"})
	assert.ErrorContains(t, err, "unsupported cloud provider")
	assert.Equal(t, []string{"ftp"}, p.calls, "client errors are cached briefly")
}

func TestSource_FileProviderAllowsEmptyBucket(t *testing.T) {
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "in.json"), `[1]`)

	src := NewSource(NewFileClientProvider(base), trigger.ProviderFile, "")
	doc, err := src.Fetch(context.Background(), trigger.Location{Key: "in.json"})
	require.NoError(t, err)
	assert.Equal(t, `[1]`, string(doc.Data))
}

func TestSource_ReadURI(t *testing.T) {
	s3c := &stubClient{}
	p := &recordingProvider{clients: map[string]Client{trigger.ProviderAWS: s3c}}
	src := NewSource(p, "", "")

	data, err := src.ReadURI(context.Background(), "s3://schemas/contracts/users.json")
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(data))
	assert.Equal(t, []trigger.Location{{Bucket: "schemas", Key: "contracts/users.json"}}, s3c.got)

	_, err = src.ReadURI(context.Background(), "/etc/schema.json")
	assert.ErrorContains(t, err, "not an object URI")
	_, err = src.ReadURI(context.Background(), "s3://schemas")
	assert.ErrorContains(t, err, "not an object URI")
}

func TestCloudManagers_UnconfiguredProviders(t *testing.T) {
	m := &CloudManagers{FileBase: t.TempDir()}
	for _, provider := range []string{trigger.ProviderAWS, trigger.ProviderGCP, trigger.ProviderAzure} {
		_, err := m.NewClient(context.Background(), provider)
		assert.ErrorContains(t, err, "is not configured", provider)
	}
	_, err := m.NewClient(context.Background(), "ftp")
	assert.ErrorContains(t, err, "unsupported cloud provider")

	c, err := m.NewClient(context.Background(), trigger.ProviderFile)
	require.NoError(t, err)
	assert.IsType(t, &fileClient{}, c)
}

func TestS3ErrorIs404(t *testing.T) {
	assert.True(t, s3ErrorIs404(&types.NoSuchKey{}))
	assert.True(t, s3ErrorIs404(&smithy.GenericAPIError{Code: "NotFound"}))
	assert.False(t, s3ErrorIs404(&smithy.GenericAPIError{Code: "AccessDenied"}))
	assert.False(t, s3ErrorIs404(errors.New("timeout")))
}
