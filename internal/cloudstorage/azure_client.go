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
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cardinalhq/docrunner/internal/azureclient"
	"github.com/cardinalhq/docrunner/internal/ingest"
	"github.com/cardinalhq/docrunner/internal/trigger"
)

// azureClient reads blobs; the bucket is the container name.
type azureClient struct {
	blobClient *azureclient.BlobClient
}

func (c *azureClient) GetObject(ctx context.Context, container, blobName string) (ingest.RawDocument, error) {
	ctx, span := c.blobClient.Tracer.Start(ctx, "cloudstorage.azureGetObject",
		trace.WithAttributes(
			attribute.String("bucket", container),
			attribute.String("key", blobName),
		),
	)
	defer span.End()

	resp, err := c.blobClient.Client.DownloadStream(ctx, container, blobName, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			recordDownloadError(ctx, trigger.ProviderAzure, container, "not_found")
			return ingest.RawDocument{}, fmt.Errorf("az://%s/%s: %w", container, blobName, ingest.ErrObjectNotFound)
		}
		recordDownloadError(ctx, trigger.ProviderAzure, container, "unknown")
		return ingest.RawDocument{}, fmt.Errorf("download blob %s/%s: %w", container, blobName, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		recordDownloadError(ctx, trigger.ProviderAzure, container, "read_failed")
		return ingest.RawDocument{}, fmt.Errorf("read blob %s/%s: %w", container, blobName, err)
	}

	var contentType string
	if resp.ContentType != nil {
		contentType = *resp.ContentType
	}

	recordDownload(ctx, trigger.ProviderAzure, container, int64(len(data)))
	return ingest.RawDocument{
		Data:        data,
		ContentType: contentType,
		Size:        int64(len(data)),
	}, nil
}
