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
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"
	"go.opentelemetry.io/otel/trace"
)

// PubSubClient wraps a Pub/Sub client bound to one project.
type PubSubClient struct {
	Client    *pubsub.Client
	ProjectID string
	Tracer    trace.Tracer
}

// GetPubSub returns the cached Pub/Sub client for projectID.
func (m *Manager) GetPubSub(ctx context.Context, projectID string) (*PubSubClient, error) {
	if projectID == "" {
		return nil, errors.New("GCP project id is required")
	}

	m.RLock()
	client, ok := m.pubsubClients[projectID]
	m.RUnlock()
	if ok {
		return client, nil
	}

	m.Lock()
	defer m.Unlock()
	if client, ok = m.pubsubClients[projectID]; ok {
		return client, nil
	}

	opts, err := m.clientOptions(ctx, pubsub.ScopePubSub)
	if err != nil {
		return nil, err
	}
	c, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating GCP pubsub client: %w", err)
	}

	client = &PubSubClient{Client: c, ProjectID: projectID, Tracer: m.tracer}
	m.pubsubClients[projectID] = client
	return client, nil
}

// Close releases every cached client.
func (m *Manager) Close() error {
	m.Lock()
	defer m.Unlock()

	var errs []error
	for k, c := range m.pubsubClients {
		errs = append(errs, c.Client.Close())
		delete(m.pubsubClients, k)
	}
	for k, c := range m.storageClients {
		errs = append(errs, c.Client.Close())
		delete(m.storageClients, k)
	}
	for k, c := range m.bigqueryClients {
		errs = append(errs, c.Client.Close())
		delete(m.bigqueryClients, k)
	}
	return errors.Join(errs...)
}
