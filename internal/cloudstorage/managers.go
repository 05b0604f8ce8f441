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

	"github.com/cardinalhq/docrunner/internal/awsclient"
	"github.com/cardinalhq/docrunner/internal/azureclient"
	"github.com/cardinalhq/docrunner/internal/gcpclient"
	"github.com/cardinalhq/docrunner/internal/trigger"
)

// CloudManagers holds the cloud provider managers used to build storage
// clients. A nil manager means that provider is not configured.
type CloudManagers struct {
	AWS   *awsclient.Manager
	GCP   *gcpclient.Manager
	Azure *azureclient.Manager

	S3Options     []awsclient.Option
	AzureAccount  string
	AzureEndpoint string
	FileBase      string
}

var _ ClientProvider = (*CloudManagers)(nil)

// NewClient creates a storage Client for the given provider.
func (m *CloudManagers) NewClient(ctx context.Context, provider string) (Client, error) {
	switch provider {
	case trigger.ProviderAWS, "":
		if m.AWS == nil {
			return nil, errNotConfigured(trigger.ProviderAWS)
		}
		s3c, err := m.AWS.GetS3(ctx, m.S3Options...)
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		return &s3Client{s3: s3c}, nil
	case trigger.ProviderGCP:
		if m.GCP == nil {
			return nil, errNotConfigured(trigger.ProviderGCP)
		}
		sc, err := m.GCP.GetStorage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create GCS client: %w", err)
		}
		return &gcsClient{storageClient: sc}, nil
	case trigger.ProviderAzure:
		if m.Azure == nil {
			return nil, errNotConfigured(trigger.ProviderAzure)
		}
		opts := []azureclient.BlobOption{azureclient.WithBlobStorageAccount(m.AzureAccount)}
		if m.AzureEndpoint != "" {
			opts = append(opts, azureclient.WithBlobEndpoint(m.AzureEndpoint))
		}
		bc, err := m.Azure.GetBlob(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure blob client: %w", err)
		}
		return &azureClient{blobClient: bc}, nil
	case trigger.ProviderFile:
		return &fileClient{base: m.FileBase}, nil
	default:
		return nil, fmt.Errorf("unsupported cloud provider: %s", provider)
	}
}

func errNotConfigured(provider string) error {
	return fmt.Errorf("storage provider %s is not configured", provider)
}
