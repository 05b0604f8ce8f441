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

package awsclient

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.opentelemetry.io/otel/trace"
)

type DynamoDBClient struct {
	Client *dynamodb.Client
	Tracer trace.Tracer
}

func (m *Manager) GetDynamoDB(ctx context.Context, opts ...Option) (*DynamoDBClient, error) {
	cfg, _ := m.resolve(opts)
	return &DynamoDBClient{Client: dynamodb.NewFromConfig(cfg), Tracer: m.tracer}, nil
}
