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

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"go.opentelemetry.io/otel/trace"
)

type QueueClient struct {
	QueueClient *azqueue.QueueClient
	QueueName   string
	Tracer      trace.Tracer
}

type queueConfig struct {
	StorageAccount string
	QueueName      string
}

type QueueOption func(*queueConfig)

func WithQueueStorageAccount(storageAccount string) QueueOption {
	return func(c *queueConfig) {
		c.StorageAccount = storageAccount
	}
}

func WithQueueName(name string) QueueOption {
	return func(c *queueConfig) {
		c.QueueName = name
	}
}

type queueClientKey queueConfig

func (m *Manager) GetQueue(ctx context.Context, opts ...QueueOption) (*QueueClient, error) {
	qc := queueConfig{}
	for _, o := range opts {
		o(&qc)
	}
	if qc.QueueName == "" {
		return nil, fmt.Errorf("queue name is required")
	}
	if qc.StorageAccount == "" && m.connectionString == "" {
		return nil, fmt.Errorf("storage account is required")
	}

	key := queueClientKey(qc)
	m.RLock()
	client, ok := m.queueClients[key]
	m.RUnlock()
	if ok {
		return client, nil
	}

	m.Lock()
	defer m.Unlock()
	if client, ok = m.queueClients[key]; ok {
		return client, nil
	}

	var (
		q   *azqueue.QueueClient
		err error
	)
	if m.connectionString != "" {
		q, err = azqueue.NewQueueClientFromConnectionString(m.connectionString, qc.QueueName, nil)
	} else {
		var svc *azqueue.ServiceClient
		svc, err = azqueue.NewServiceClient(queueEndpoint(qc.StorageAccount), m.cred, nil)
		if err == nil {
			q = svc.NewQueueClient(qc.QueueName)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create queue client: %w", err)
	}

	client = &QueueClient{QueueClient: q, QueueName: qc.QueueName, Tracer: m.tracer}
	m.queueClients[key] = client
	return client, nil
}
