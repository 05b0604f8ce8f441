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

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/docrunner/internal/listener"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Store.Identifier = "records"
	cfg.Notify.Target = "arn:aws:sns:us-east-1:123456789012:done"
	cfg.Schema.Location = "schema.json"
	return cfg
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "dynamodb", cfg.Store.Kind)
	require.Equal(t, 1, cfg.Store.WriteConcurrency)
	require.Equal(t, "sns", cfg.Notify.Kind)
	require.Equal(t, "aws", cfg.Source.Provider)
	require.Equal(t, ":8080", cfg.Listener.HTTP.Addr)
	require.Equal(t, 5*time.Minute, cfg.Listener.MessageTimeout)
	require.Equal(t, 8090, cfg.Health.Port)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("DOCRUNNER_STORE_KIND", "postgres")
	t.Setenv("DOCRUNNER_STORE_IDENTIFIER", "ingested_records")
	t.Setenv("DOCRUNNER_STORE_URL", "postgres://localhost/docs")
	t.Setenv("DOCRUNNER_STORE_WRITE_CONCURRENCY", "8")
	t.Setenv("DOCRUNNER_NOTIFY_KIND", "kafka")
	t.Setenv("DOCRUNNER_NOTIFY_TARGET", "ingest-results")
	t.Setenv("DOCRUNNER_NOTIFY_KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("DOCRUNNER_NOTIFY_KAFKA_SASL_ENABLED", "true")
	t.Setenv("DOCRUNNER_SCHEMA_LOCATION", "s3://contracts/orders.json")
	t.Setenv("DOCRUNNER_LISTENER_SQS_QUEUE_URL", "https://sqs.us-east-1.amazonaws.com/1/q")
	t.Setenv("DOCRUNNER_LISTENER_MESSAGE_TIMEOUT", "90s")
	t.Setenv("DOCRUNNER_DEBUG_PPROF_PORT", "6060")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "postgres", cfg.Store.Kind)
	require.Equal(t, "ingested_records", cfg.Store.Identifier)
	require.Equal(t, 8, cfg.Store.WriteConcurrency)
	require.Equal(t, "kafka", cfg.Notify.Kind)
	require.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.Notify.Kafka.Brokers)
	require.True(t, cfg.Notify.Kafka.SASLEnabled)
	require.Equal(t, "s3://contracts/orders.json", cfg.Schema.Location)
	require.Equal(t, "https://sqs.us-east-1.amazonaws.com/1/q", cfg.Listener.SQS.QueueURL)
	require.Equal(t, 90*time.Second, cfg.Listener.MessageTimeout)
	require.Equal(t, 6060, cfg.Debug.PprofPort)
	require.NoError(t, cfg.Validate())
}

func TestValidate_ListsEveryMissingOption(t *testing.T) {
	err := DefaultConfig().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.identifier")
	assert.Contains(t, err.Error(), "notify.target")
	assert.Contains(t, err.Error(), "schema.location")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"log publisher still needs a target", func(c *Config) { c.Notify.Kind = "log"; c.Notify.Target = "" }, "notify.target"},
		{"unknown store", func(c *Config) { c.Store.Kind = "mongo" }, "store.kind"},
		{"postgres needs url", func(c *Config) { c.Store.Kind = "postgres" }, "store.url"},
		{"redis needs url", func(c *Config) { c.Store.Kind = "redis" }, "store.url"},
		{"bigquery needs a project", func(c *Config) { c.Store.Kind = "bigquery"; c.Store.Identifier = "landing.records" }, "needs a project"},
		{"bigquery table", func(c *Config) { c.Store.Kind = "bigquery"; c.Store.Identifier = "records" }, "store.identifier"},
		{"bigquery with project", func(c *Config) {
			c.Store.Kind = "bigquery"
			c.Store.Identifier = "landing.records"
			c.GCP.ProjectID = "proj"
		}, ""},
		{"write concurrency", func(c *Config) { c.Store.WriteConcurrency = 0 }, "write_concurrency"},
		{"record ids", func(c *Config) { c.Store.RecordIDs = "snowflake" }, "store.record_ids"},
		{"unknown notify", func(c *Config) { c.Notify.Kind = "email" }, "notify.kind"},
		{"kafka needs brokers", func(c *Config) { c.Notify.Kind = "kafka" }, "notify.kafka.brokers"},
		{"pubsub needs project", func(c *Config) { c.Notify.Kind = "pubsub" }, "gcp.project_id"},
		{"unknown provider", func(c *Config) { c.Source.Provider = "ftp" }, "source.provider"},
		{"check mode", func(c *Config) { c.Migrations.CheckMode = "sometimes" }, "migrations.check_mode"},
		{"pprof port", func(c *Config) { c.Debug.PprofPort = 70000 }, "debug.pprof_port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateListener(t *testing.T) {
	cfg := validConfig()

	assert.NoError(t, cfg.ValidateListener(listener.BackendTypeHTTP))
	assert.ErrorContains(t, cfg.ValidateListener(listener.BackendTypeSQS), "listener.sqs.queue_url")
	assert.ErrorContains(t, cfg.ValidateListener(listener.BackendTypeGCPPubSub), "listener.gcp.subscription")
	assert.ErrorContains(t, cfg.ValidateListener(listener.BackendTypeAzure), "listener.azure.account")
	assert.Error(t, cfg.ValidateListener("kinesis"))

	cfg.Listener.SQS.QueueURL = "https://sqs/q"
	cfg.GCP.ProjectID = "p"
	cfg.Listener.GCP.Subscription = "s"
	cfg.Listener.Azure.Queue = "events"
	cfg.Azure.ConnectionString = "UseDevelopmentStorage=true"
	assert.NoError(t, cfg.ValidateListener(listener.BackendTypeSQS))
	assert.NoError(t, cfg.ValidateListener(listener.BackendTypeGCPPubSub))
	assert.NoError(t, cfg.ValidateListener(listener.BackendTypeAzure))
}
