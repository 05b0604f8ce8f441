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
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cardinalhq/docrunner/internal/ingest"
	"github.com/cardinalhq/docrunner/internal/trigger"
)

// fileClient reads objects from the local filesystem. Bucket names become
// subdirectories under the base path; an empty bucket reads base/key.
type fileClient struct {
	base string
}

// NewFileClient returns a Client rooted at base, for local runs and tests.
func NewFileClient(base string) Client {
	return &fileClient{base: base}
}

func (c *fileClient) path(bucket, key string) (string, error) {
	// An empty base roots reads at the working directory.
	root := filepath.Clean(c.base)
	p := filepath.Join(root, bucket, filepath.FromSlash(key))
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("key %q escapes the storage root", key)
	}
	return p, nil
}

func (c *fileClient) GetObject(ctx context.Context, bucket, key string) (ingest.RawDocument, error) {
	p, err := c.path(bucket, key)
	if err != nil {
		return ingest.RawDocument{}, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			recordDownloadError(ctx, trigger.ProviderFile, bucket, "not_found")
			return ingest.RawDocument{}, fmt.Errorf("%s: %w", p, ingest.ErrObjectNotFound)
		}
		recordDownloadError(ctx, trigger.ProviderFile, bucket, "unknown")
		return ingest.RawDocument{}, fmt.Errorf("read %s: %w", p, err)
	}
	recordDownload(ctx, trigger.ProviderFile, bucket, int64(len(data)))
	return ingest.RawDocument{Data: data, Size: int64(len(data))}, nil
}

// FileClientProvider serves every provider from the local filesystem.
type FileClientProvider struct {
	base string
}

var _ ClientProvider = (*FileClientProvider)(nil)

// NewFileClientProvider returns a new provider rooted at base.
func NewFileClientProvider(base string) ClientProvider {
	return &FileClientProvider{base: base}
}

func (p *FileClientProvider) NewClient(ctx context.Context, provider string) (Client, error) {
	return &fileClient{base: p.base}, nil
}
