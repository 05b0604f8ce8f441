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

	"cloud.google.com/go/bigquery"
	"go.opentelemetry.io/otel/trace"
)

// BigQueryClient wraps a BigQuery client bound to one project.
type BigQueryClient struct {
	Client    *bigquery.Client
	ProjectID string
	Tracer    trace.Tracer
}

// GetBigQuery returns the cached BigQuery client for projectID.
func (m *Manager) GetBigQuery(ctx context.Context, projectID string) (*BigQueryClient, error) {
	if projectID == "" {
		return nil, errors.New("GCP project id is required")
	}

	m.RLock()
	client, ok := m.bigqueryClients[projectID]
	m.RUnlock()
	if ok {
		return client, nil
	}

	m.Lock()
	defer m.Unlock()
	if client, ok = m.bigqueryClients[projectID]; ok {
		return client, nil
	}

	opts, err := m.clientOptions(ctx, bigquery.Scope)
	if err != nil {
		return nil, err
	}
	c, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating GCP bigquery client: %w", err)
	}

	client = &BigQueryClient{Client: c, ProjectID: projectID, Tracer: m.tracer}
	m.bigqueryClients[projectID] = client
	return client, nil
}
