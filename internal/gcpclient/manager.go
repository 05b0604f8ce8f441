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
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/impersonate"
	"google.golang.org/api/option"
)

// Manager handles GCP client creation and caching using Application Default
// Credentials, optionally impersonating a service account.
type Manager struct {
	serviceAccount string

	sync.RWMutex
	storageClients  map[string]*StorageClient
	pubsubClients   map[string]*PubSubClient
	bigqueryClients map[string]*BigQueryClient
	tracer          trace.Tracer
}

// ManagerOption is a functional option for configuring the Manager.
type ManagerOption func(*Manager)

// WithImpersonateServiceAccount sets the service account email to impersonate.
func WithImpersonateServiceAccount(email string) ManagerOption {
	return func(m *Manager) {
		m.serviceAccount = email
	}
}

// NewManager creates a new GCP client manager.
func NewManager(ctx context.Context, opts ...ManagerOption) (*Manager, error) {
	m := &Manager{
		storageClients:  make(map[string]*StorageClient),
		pubsubClients:   make(map[string]*PubSubClient),
		bigqueryClients: make(map[string]*BigQueryClient),
		tracer:          otel.Tracer("github.com/cardinalhq/docrunner/internal/gcpclient"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// clientOptions returns the credentials options for a client needing scopes.
func (m *Manager) clientOptions(ctx context.Context, scopes ...string) ([]option.ClientOption, error) {
	if m.serviceAccount == "" {
		return nil, nil
	}
	ts, err := impersonate.CredentialsTokenSource(ctx, impersonate.CredentialsConfig{
		TargetPrincipal: m.serviceAccount,
		Scopes:          scopes,
	})
	if err != nil {
		return nil, fmt.Errorf("creating impersonated token source: %w", err)
	}
	return []option.ClientOption{option.WithTokenSource(ts)}, nil
}
