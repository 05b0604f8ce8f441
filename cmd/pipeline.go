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

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/cardinalhq/docrunner/config"
	"github.com/cardinalhq/docrunner/internal/awsclient"
	"github.com/cardinalhq/docrunner/internal/azureclient"
	"github.com/cardinalhq/docrunner/internal/cloudstorage"
	"github.com/cardinalhq/docrunner/internal/gcpclient"
	"github.com/cardinalhq/docrunner/internal/healthcheck"
	"github.com/cardinalhq/docrunner/internal/idgen"
	"github.com/cardinalhq/docrunner/internal/ingest"
	"github.com/cardinalhq/docrunner/internal/normalize"
	"github.com/cardinalhq/docrunner/internal/notify"
	"github.com/cardinalhq/docrunner/internal/recordstore"
	"github.com/cardinalhq/docrunner/internal/recordstore/migrations"
	"github.com/cardinalhq/docrunner/internal/runner"
	"github.com/cardinalhq/docrunner/internal/schema"
)

// pipeline is everything needed to handle events, built once per process
// from validated configuration.
type pipeline struct {
	cfg     *config.Config
	clouds  *cloudstorage.CloudManagers
	runner  *runner.Runner
	probes  map[string]healthcheck.Probe
	closers []func() error
}

func buildPipeline(ctx context.Context, cfg *config.Config) (p *pipeline, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	p = &pipeline{cfg: cfg, probes: map[string]healthcheck.Probe{}}
	defer func() {
		if err != nil {
			if cerr := p.Close(); cerr != nil {
				slog.Error("Failed to release partially built pipeline", slog.Any("error", cerr))
			}
		}
	}()

	p.clouds = newCloudManagers(ctx, cfg)
	if p.clouds.GCP != nil {
		p.closers = append(p.closers, p.clouds.GCP.Close)
	}
	source := cloudstorage.NewSource(p.clouds, cfg.Source.Provider, cfg.Source.Bucket)

	contract, err := schema.LoadContract(ctx, cfg.Schema.Location, source.ReadURI)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema contract: %w", err)
	}
	slog.Info("Loaded schema contract",
		slog.String("location", cfg.Schema.Location),
		slog.Any("fields", contract.Fields()))

	gen, err := idgen.New(cfg.Store.RecordIDs)
	if err != nil {
		return nil, err
	}

	store, err := p.newRecordStore(ctx)
	if err != nil {
		return nil, err
	}

	publisher, err := p.newPublisher(ctx)
	if err != nil {
		return nil, err
	}

	ing := ingest.New(source, store,
		schema.NewValidator(contract, schema.WithAccumulate(cfg.Schema.Accumulate)),
		normalize.New(normalize.WithIDGenerator(gen)),
		ingest.WithWriteConcurrency(cfg.Store.WriteConcurrency),
	)
	p.runner = runner.New(ing, notify.NewDispatcher(publisher, cfg.Notify.Target))
	return p, nil
}

// Close releases clients in reverse order of creation.
func (p *pipeline) Close() error {
	var result *multierror.Error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil {
			result = multierror.Append(result, err)
		}
	}
	p.closers = nil
	return result.ErrorOrNil()
}

// Handle runs one event through the pipeline and records how long it took.
func (p *pipeline) Handle(ctx context.Context, raw []byte) (runner.Response, error) {
	start := time.Now()
	resp, err := p.runner.Handle(ctx, raw)
	if eventDuration != nil {
		eventDuration.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributeSet(commonAttributes),
			metric.WithAttributes(attribute.Int("status_code", resp.StatusCode)))
	}
	return resp, err
}

// newCloudManagers builds a manager per provider. A provider whose
// credentials cannot be loaded is left nil and reported when first used.
func newCloudManagers(ctx context.Context, cfg *config.Config) *cloudstorage.CloudManagers {
	m := &cloudstorage.CloudManagers{
		S3Options:     s3Options(cfg),
		AzureAccount:  cfg.Source.AzureAccount,
		AzureEndpoint: cfg.Source.AzureEndpoint,
		FileBase:      cfg.Source.FileBase,
	}

	awsMgr, err := awsclient.NewManager(ctx, awsclient.WithAssumeRoleSessionName(cfg.AWS.SessionName))
	if err != nil {
		slog.Warn("AWS is not configured", slog.Any("error", err))
	} else {
		m.AWS = awsMgr
	}

	var gcpOpts []gcpclient.ManagerOption
	if cfg.GCP.ImpersonateServiceAccount != "" {
		gcpOpts = append(gcpOpts, gcpclient.WithImpersonateServiceAccount(cfg.GCP.ImpersonateServiceAccount))
	}
	gcpMgr, err := gcpclient.NewManager(ctx, gcpOpts...)
	if err != nil {
		slog.Warn("GCP is not configured", slog.Any("error", err))
	} else {
		m.GCP = gcpMgr
	}

	var azureOpts []azureclient.ManagerOption
	if cfg.Azure.ConnectionString != "" {
		azureOpts = append(azureOpts, azureclient.WithConnectionString(cfg.Azure.ConnectionString))
	}
	azureMgr, err := azureclient.NewManager(ctx, azureOpts...)
	if err != nil {
		slog.Warn("Azure is not configured", slog.Any("error", err))
	} else {
		m.Azure = azureMgr
	}

	return m
}

// awsOptions are the per-call options shared by every AWS service client.
func awsOptions(cfg *config.Config, endpoint string) []awsclient.Option {
	opts := []awsclient.Option{
		awsclient.WithRegion(cfg.AWS.Region),
		awsclient.WithRole(cfg.AWS.Role),
	}
	if endpoint != "" {
		opts = append(opts, awsclient.WithEndpoint(endpoint))
	}
	return opts
}

func s3Options(cfg *config.Config) []awsclient.Option {
	opts := awsOptions(cfg, cfg.Source.S3Endpoint)
	if cfg.Source.S3Role != "" {
		opts = append(opts, awsclient.WithRole(cfg.Source.S3Role))
	}
	if cfg.Source.S3PathStyle {
		opts = append(opts, awsclient.WithPathStyle())
	}
	if cfg.Source.S3InsecureTLS {
		opts = append(opts, awsclient.WithInsecureTLS())
	}
	return opts
}

func (p *pipeline) requireAWS() (*awsclient.Manager, error) {
	if p.clouds.AWS == nil {
		return nil, fmt.Errorf("AWS credentials are required but could not be loaded")
	}
	return p.clouds.AWS, nil
}

func (p *pipeline) requireGCP() (*gcpclient.Manager, error) {
	if p.clouds.GCP == nil {
		return nil, fmt.Errorf("GCP credentials are required but could not be loaded")
	}
	return p.clouds.GCP, nil
}

func (p *pipeline) requireAzure() (*azureclient.Manager, error) {
	if p.clouds.Azure == nil {
		return nil, fmt.Errorf("Azure credentials are required but could not be loaded")
	}
	return p.clouds.Azure, nil
}

func (p *pipeline) newRecordStore(ctx context.Context) (ingest.RecordStore, error) {
	cfg := p.cfg.Store
	switch cfg.Kind {
	case recordstore.KindDynamoDB:
		mgr, err := p.requireAWS()
		if err != nil {
			return nil, err
		}
		client, err := mgr.GetDynamoDB(ctx, awsOptions(p.cfg, cfg.Endpoint)...)
		if err != nil {
			return nil, fmt.Errorf("failed to create DynamoDB client: %w", err)
		}
		slog.Info("Using DynamoDB record store", slog.String("table", cfg.Identifier))
		return recordstore.NewDynamoStore(client.Client, cfg.Identifier), nil

	case recordstore.KindPostgres:
		pool, err := recordstore.NewConnectionPool(ctx, cfg.URL)
		if err != nil {
			return nil, err
		}
		p.closers = append(p.closers, func() error { pool.Close(); return nil })
		if err := migrations.CheckVersion(ctx, pool, migrationCheckOptions(p.cfg)...); err != nil {
			return nil, fmt.Errorf("record store schema is not ready: %w", err)
		}
		p.probes["store"] = pool.Ping
		slog.Info("Using Postgres record store", slog.String("table", cfg.Identifier))
		return recordstore.NewPostgresStore(pool, cfg.Identifier), nil

	case recordstore.KindRedis:
		client, err := recordstore.NewRedisClient(ctx, cfg.URL)
		if err != nil {
			return nil, err
		}
		p.closers = append(p.closers, client.Close)
		p.probes["store"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		slog.Info("Using Redis record store", slog.String("prefix", cfg.Identifier), slog.Duration("ttl", cfg.TTL))
		return recordstore.NewRedisStore(client, cfg.Identifier, cfg.TTL), nil

	case recordstore.KindBigQuery:
		ref, err := recordstore.ParseBigQueryTable(cfg.Identifier, p.cfg.GCP.ProjectID)
		if err != nil {
			return nil, err
		}
		mgr, err := p.requireGCP()
		if err != nil {
			return nil, err
		}
		client, err := mgr.GetBigQuery(ctx, ref.Project)
		if err != nil {
			return nil, fmt.Errorf("failed to create BigQuery client: %w", err)
		}
		table := client.Client.Dataset(ref.Dataset).Table(ref.Table)
		p.probes["store"] = func(ctx context.Context) error {
			_, err := table.Metadata(ctx)
			return err
		}
		slog.Info("Using BigQuery record store", slog.String("table", ref.String()))
		return recordstore.NewBigQueryStore(table.Inserter(), ref.String()), nil
	}
	return nil, fmt.Errorf("unsupported store kind: %s", cfg.Kind)
}

func (p *pipeline) newPublisher(ctx context.Context) (notify.Publisher, error) {
	cfg := p.cfg.Notify
	switch cfg.Kind {
	case notify.KindSNS:
		mgr, err := p.requireAWS()
		if err != nil {
			return nil, err
		}
		client, err := mgr.GetSNS(ctx, awsOptions(p.cfg, cfg.Endpoint)...)
		if err != nil {
			return nil, fmt.Errorf("failed to create SNS client: %w", err)
		}
		return notify.NewSNSPublisher(client.Client), nil

	case notify.KindPubSub:
		mgr, err := p.requireGCP()
		if err != nil {
			return nil, err
		}
		client, err := mgr.GetPubSub(ctx, p.cfg.GCP.ProjectID)
		if err != nil {
			return nil, err
		}
		pub := notify.NewPubSubPublisher(client.Client)
		p.closers = append(p.closers, pub.Close)
		return pub, nil

	case notify.KindKafka:
		pub, err := notify.NewKafkaPublisher(cfg.Kafka)
		if err != nil {
			return nil, err
		}
		p.closers = append(p.closers, pub.Close)
		return pub, nil

	case notify.KindNATS:
		pub, err := notify.NewNATSPublisher(cfg.NATS)
		if err != nil {
			return nil, err
		}
		p.closers = append(p.closers, pub.Close)
		return pub, nil

	case notify.KindLog:
		return notify.LogPublisher{}, nil
	}
	return nil, fmt.Errorf("unsupported notify kind: %s", cfg.Kind)
}

func migrationCheckOptions(cfg *config.Config) []migrations.CheckOption {
	mode, _ := migrations.ParseCheckMode(cfg.Migrations.CheckMode)
	return []migrations.CheckOption{
		migrations.WithCheckMode(mode),
		migrations.WithTimeout(cfg.Migrations.Timeout),
		migrations.WithRetryInterval(cfg.Migrations.RetryInterval),
		migrations.WithAllowDirty(cfg.Migrations.AllowDirty),
	}
}
