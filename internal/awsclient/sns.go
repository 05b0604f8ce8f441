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

	"github.com/aws/aws-sdk-go-v2/service/sns"
	"go.opentelemetry.io/otel/trace"
)

type SNSClient struct {
	Client *sns.Client
	Tracer trace.Tracer
}

func (m *Manager) GetSNS(ctx context.Context, opts ...Option) (*SNSClient, error) {
	cfg, _ := m.resolve(opts)
	return &SNSClient{Client: sns.NewFromConfig(cfg), Tracer: m.tracer}, nil
}
