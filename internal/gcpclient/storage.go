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

package gcpclient

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"go.opentelemetry.io/otel/trace"
)

// StorageClient wraps a GCP storage client with OpenTelemetry tracing.
type StorageClient struct {
	Client *storage.Client
	Tracer trace.Tracer
}

// storageKey is the single cache slot; storage clients are not per-project.
const storageKey = "default"

// GetStorage returns the shared storage client, creating it on first use.
func (m *Manager) GetStorage(ctx context.Context) (*StorageClient, error) {
	m.RLock()
	client, ok := m.storageClients[storageKey]
	m.RUnlock()
	if ok {
		return client, nil
	}

	m.Lock()
	defer m.Unlock()
	if client, ok = m.storageClients[storageKey]; ok {
		return client, nil
	}

	opts, err := m.clientOptions(ctx, storage.ScopeReadOnly)
	if err != nil {
		return nil, err
	}
	storageClient, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating GCP storage client: %w", err)
	}

	client = &StorageClient{Client: storageClient, Tracer: m.tracer}
	m.storageClients[storageKey] = client
	return client, nil
}
