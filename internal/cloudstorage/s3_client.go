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

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cardinalhq/docrunner/internal/awsclient"
	"github.com/cardinalhq/docrunner/internal/ingest"
	"github.com/cardinalhq/docrunner/internal/trigger"
)

type s3Client struct {
	s3 *awsclient.S3Client
}

func s3ErrorIs404(err error) bool {
	var noKeyErr *types.NoSuchKey
	if errors.As(err, &noKeyErr) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey", "NoSuchBucket":
			return true
		}
	}
	return false
}

func (c *s3Client) GetObject(ctx context.Context, bucket, key string) (ingest.RawDocument, error) {
	ctx, span := c.s3.Tracer.Start(ctx, "cloudstorage.s3GetObject",
		trace.WithAttributes(
			attribute.String("bucket", bucket),
			attribute.String("key", key),
		),
	)
	defer span.End()

	downloader := manager.NewDownloader(c.s3.Client)
	buf := manager.NewWriteAtBuffer(nil)
	size, err := downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if s3ErrorIs404(err) {
			recordDownloadError(ctx, trigger.ProviderAWS, bucket, "not_found")
			return ingest.RawDocument{}, fmt.Errorf("s3://%s/%s: %w", bucket, key, ingest.ErrObjectNotFound)
		}
		recordDownloadError(ctx, trigger.ProviderAWS, bucket, "unknown")
		return ingest.RawDocument{}, fmt.Errorf("download s3://%s/%s: %w", bucket, key, err)
	}

	recordDownload(ctx, trigger.ProviderAWS, bucket, size)
	return ingest.RawDocument{Data: buf.Bytes(), Size: size}, nil
}
