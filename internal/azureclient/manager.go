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

package azureclient

import (
	"context"
	"fmt"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Manager caches blob and queue clients. Clients authenticate either with a
// storage connection string or with DefaultAzureCredential.
type Manager struct {
	cred             azcore.TokenCredential
	connectionString string

	sync.RWMutex
	blobClients  map[blobClientKey]*BlobClient
	queueClients map[queueClientKey]*QueueClient
	tracer       trace.Tracer
}

// ManagerOption is a functional option for configuring the Manager.
type ManagerOption func(*Manager)

// WithConnectionString authenticates with a storage account connection
// string instead of Entra ID credentials (eg Azurite).
func WithConnectionString(cs string) ManagerOption {
	return func(mgr *Manager) {
		mgr.connectionString = cs
	}
}

// NewManager initializes Azure credential management.
func NewManager(ctx context.Context, opts ...ManagerOption) (*Manager, error) {
	mgr := &Manager{
		blobClients:  make(map[blobClientKey]*BlobClient),
		queueClients: make(map[queueClientKey]*QueueClient),
		tracer:       otel.Tracer("github.com/cardinalhq/docrunner/internal/azureclient"),
	}
	for _, opt := range opts {
		opt(mgr)
	}

	if mgr.cred == nil && mgr.connectionString == "" {
		cred, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, fmt.Errorf("loading Azure credentials: %w", err)
		}
		mgr.cred = cred
	}

	return mgr, nil
}

func blobEndpoint(account string) string {
	return fmt.Sprintf("https://%s.blob.core.windows.net/", account)
}

func queueEndpoint(account string) string {
	return fmt.Sprintf("https://%s.queue.core.windows.net/", account)
}
