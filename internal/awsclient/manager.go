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
	"crypto/tls"
	"fmt"
	"net/http"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Manager hands out service clients sharing one base config, one STS client
// and a cache of credential providers keyed by region and role.
type Manager struct {
	baseCfg     aws.Config
	stsClient   *sts.Client
	sessionName string

	sync.RWMutex
	providers map[roleKey]aws.CredentialsProvider
	tracer    trace.Tracer
}

// ManagerOption is a functional option for configuring the Manager.
type ManagerOption func(*Manager)

func WithAssumeRoleSessionName(name string) ManagerOption {
	return func(mgr *Manager) {
		mgr.sessionName = name
	}
}

// NewManager initializes AWS config + a single STS client.
func NewManager(ctx context.Context, opts ...ManagerOption) (*Manager, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	otelaws.AppendMiddlewares(&cfg.APIOptions)

	mgr := &Manager{
		baseCfg:     cfg,
		stsClient:   sts.NewFromConfig(cfg),
		sessionName: "docrunner",
		providers:   make(map[roleKey]aws.CredentialsProvider),
		tracer:      otel.Tracer("github.com/cardinalhq/docrunner/internal/awsclient"),
	}
	for _, opt := range opts {
		opt(mgr)
	}

	return mgr, nil
}

type roleKey struct {
	Region  string
	RoleARN string
}

// clientConfig collects per-call options shared by every service getter.
type clientConfig struct {
	RoleARN      string
	Region       string
	Endpoint     string
	PathStyle    bool
	applyConfigs []func(*aws.Config)
}

// Option is a functional option accepted by every Get* call.
type Option func(*clientConfig)

// WithRole sets the IAM Role ARN to assume (empty = no assume).
func WithRole(roleARN string) Option {
	return func(c *clientConfig) {
		c.RoleARN = roleARN
	}
}

// WithRegion overrides the AWS region for this call.
func WithRegion(region string) Option {
	return func(c *clientConfig) {
		if region != "" {
			c.Region = region
		}
	}
}

// WithEndpoint forces a custom service endpoint (eg MinIO, LocalStack).
func WithEndpoint(url string) Option {
	return func(c *clientConfig) {
		c.Endpoint = url
	}
}

// WithPathStyle uses path-style addressing instead of virtual-host. S3 only.
func WithPathStyle() Option {
	return func(c *clientConfig) {
		c.PathStyle = true
	}
}

// WithInsecureTLS turns off cert verification (for self-signed or insecure).
func WithInsecureTLS() Option {
	return func(c *clientConfig) {
		c.applyConfigs = append(c.applyConfigs, func(cfg *aws.Config) {
			tr := http.DefaultTransport.(*http.Transport).Clone()
			tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
			cfg.HTTPClient = &http.Client{Transport: tr}
		})
	}
}

// resolve builds the aws.Config for one call, creating and caching the
// credentials provider for its region/role pair on first use.
func (m *Manager) resolve(opts []Option) (aws.Config, clientConfig) {
	cc := clientConfig{Region: m.baseCfg.Region}
	for _, o := range opts {
		o(&cc)
	}

	key := roleKey{Region: cc.Region, RoleARN: cc.RoleARN}
	m.RLock()
	provider, ok := m.providers[key]
	m.RUnlock()
	if !ok {
		m.Lock()
		if provider, ok = m.providers[key]; !ok {
			if cc.RoleARN == "" {
				provider = m.baseCfg.Credentials
			} else {
				p := stscreds.NewAssumeRoleProvider(m.stsClient, cc.RoleARN, func(o *stscreds.AssumeRoleOptions) {
					o.RoleSessionName = m.sessionName
				})
				provider = aws.NewCredentialsCache(p)
			}
			m.providers[key] = provider
		}
		m.Unlock()
	}

	cfg := m.baseCfg.Copy()
	cfg.Region = cc.Region
	cfg.Credentials = provider
	if cc.Endpoint != "" {
		cfg.BaseEndpoint = aws.String(cc.Endpoint)
	}
	for _, fn := range cc.applyConfigs {
		fn(&cfg)
	}
	return cfg, cc
}
