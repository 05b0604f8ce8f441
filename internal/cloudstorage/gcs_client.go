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
	"io"

	"cloud.google.com/go/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cardinalhq/docrunner/internal/gcpclient"
	"github.com/cardinalhq/docrunner/internal/ingest"
	"github.com/cardinalhq/docrunner/internal/trigger"
)

type gcsClient struct {
	storageClient *gcpclient.StorageClient
}

func (c *gcsClient) GetObject(ctx context.Context, bucket, key string) (ingest.RawDocument, error) {
	ctx, span := c.storageClient.Tracer.Start(ctx, "cloudstorage.gcsGetObject",
		trace.WithAttributes(
			attribute.String("bucket", bucket),
			attribute.String("key", key),
		),
	)
	defer span.End()

	// ReadCompressed(true) disables automatic decompression of gzip-encoded objects
	obj := c.storageClient.Client.Bucket(bucket).Object(key).ReadCompressed(true)
	reader, err := obj.NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
			recordDownloadError(ctx, trigger.ProviderGCP, bucket, "not_found")
			return ingest.RawDocument{}, fmt.Errorf("gs://%s/%s: %w", bucket, key, ingest.ErrObjectNotFound)
		}
		recordDownloadError(ctx, trigger.ProviderGCP, bucket, "unknown")
		return ingest.RawDocument{}, fmt.Errorf("download gs://%s/%s: %w", bucket, key, err)
	}
	defer func() { _ = reader.Close() }()

	data, err := io.ReadAll(reader)
	if err != nil {
		recordDownloadError(ctx, trigger.ProviderGCP, bucket, "read_failed")
		return ingest.RawDocument{}, fmt.Errorf("read gs://%s/%s: %w", bucket, key, err)
	}

	recordDownload(ctx, trigger.ProviderGCP, bucket, int64(len(data)))
	return ingest.RawDocument{
		Data:        data,
		ContentType: reader.Attrs.ContentType,
		Size:        int64(len(data)),
	}, nil
}
