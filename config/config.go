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
	"fmt"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"

	"github.com/cardinalhq/docrunner/internal/healthcheck"
	"github.com/cardinalhq/docrunner/internal/idgen"
	"github.com/cardinalhq/docrunner/internal/listener"
	"github.com/cardinalhq/docrunner/internal/notify"
	"github.com/cardinalhq/docrunner/internal/recordstore"
	"github.com/cardinalhq/docrunner/internal/recordstore/migrations"
	"github.com/cardinalhq/docrunner/internal/trigger"
)

// Config aggregates configuration for the application.
// Nested sections owned by other packages keep their own types.
type Config struct {
	Store      StoreConfig        `mapstructure:"store"`
	Notify     NotifyConfig       `mapstructure:"notify"`
	Schema     SchemaConfig       `mapstructure:"schema"`
	Source     SourceConfig       `mapstructure:"source"`
	Listener   ListenerConfig     `mapstructure:"listener"`
	AWS        AWSConfig          `mapstructure:"aws"`
	GCP        GCPConfig          `mapstructure:"gcp"`
	Azure      AzureConfig        `mapstructure:"azure"`
	Health     healthcheck.Config `mapstructure:"health"`
	Migrations MigrationsConfig   `mapstructure:"migrations"`
	Debug      DebugConfig        `mapstructure:"debug"`
}

// StoreConfig selects the durable record store.
type StoreConfig struct {
	Kind string `mapstructure:"kind"`
	// Identifier is the DynamoDB table, Postgres table, Redis key prefix or
	// BigQuery dataset.table.
	Identifier       string        `mapstructure:"identifier"`
	URL              string        `mapstructure:"url"`
	Endpoint         string        `mapstructure:"endpoint"`
	TTL              time.Duration `mapstructure:"ttl"`
	WriteConcurrency int           `mapstructure:"write_concurrency"`
	RecordIDs        string        `mapstructure:"record_ids"`
}

// NotifyConfig selects where completion notifications go.
type NotifyConfig struct {
	Kind     string             `mapstructure:"kind"`
	Target   string             `mapstructure:"target"`
	Endpoint string             `mapstructure:"endpoint"`
	Kafka    notify.KafkaConfig `mapstructure:"kafka"`
	NATS     notify.NATSConfig  `mapstructure:"nats"`
}

type SchemaConfig struct {
	// Location is a local path or an s3://, gs:// or az:// URI.
	Location   string `mapstructure:"location"`
	Accumulate bool   `mapstructure:"accumulate"`
}

// SourceConfig controls where documents are fetched from when a trigger does
// not name the provider or bucket itself.
type SourceConfig struct {
	Provider      string `mapstructure:"provider"`
	Bucket        string `mapstructure:"bucket"`
	FileBase      string `mapstructure:"file_base"`
	S3Endpoint    string `mapstructure:"s3_endpoint"`
	S3PathStyle   bool   `mapstructure:"s3_path_style"`
	S3Role        string `mapstructure:"s3_role"`
	S3InsecureTLS bool   `mapstructure:"s3_insecure_tls"`
	AzureAccount  string `mapstructure:"azure_account"`
	// AzureEndpoint overrides the blob endpoint derived from AzureAccount, e.g. for Azurite.
	AzureEndpoint string `mapstructure:"azure_endpoint"`
}

type ListenerConfig struct {
	MaxConcurrent  int                 `mapstructure:"max_concurrent"`
	MessageTimeout time.Duration       `mapstructure:"message_timeout"`
	SQS            SQSListenerConfig   `mapstructure:"sqs"`
	GCP            GCPListenerConfig   `mapstructure:"gcp"`
	Azure          AzureListenerConfig `mapstructure:"azure"`
	HTTP           HTTPListenerConfig  `mapstructure:"http"`
}

type SQSListenerConfig struct {
	QueueURL string `mapstructure:"queue_url"`
	Region   string `mapstructure:"region"`
	Role     string `mapstructure:"role"`
}

type GCPListenerConfig struct {
	Subscription string `mapstructure:"subscription"`
}

type AzureListenerConfig struct {
	Account string `mapstructure:"account"`
	Queue   string `mapstructure:"queue"`
}

type HTTPListenerConfig struct {
	Addr string `mapstructure:"addr"`
}

type AWSConfig struct {
	Region      string `mapstructure:"region"`
	Role        string `mapstructure:"role"`
	SessionName string `mapstructure:"session_name"`
}

type GCPConfig struct {
	ProjectID                 string `mapstructure:"project_id"`
	ImpersonateServiceAccount string `mapstructure:"impersonate_service_account"`
}

type AzureConfig struct {
	ConnectionString string `mapstructure:"connection_string"`
}

type DebugConfig struct {
	// PprofPort serves net/http/pprof when positive.
	PprofPort int `mapstructure:"pprof_port"`
}

type MigrationsConfig struct {
	CheckMode     string        `mapstructure:"check_mode"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
	AllowDirty    bool          `mapstructure:"allow_dirty"`
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() *Config {
	checks := migrations.DefaultCheckOptions()
	return &Config{
		Store: StoreConfig{
			Kind:             recordstore.KindDynamoDB,
			WriteConcurrency: 1,
			RecordIDs:        idgen.KindUUID,
		},
		Notify: NotifyConfig{
			Kind: notify.KindSNS,
			NATS: notify.NATSConfig{
				Name:          "docrunner",
				MaxReconnects: 60,
				ReconnectWait: 2 * time.Second,
				Timeout:       5 * time.Second,
			},
			Kafka: notify.KafkaConfig{
				SASLMechanism: "SCRAM-SHA-512",
			},
		},
		Source: SourceConfig{
			Provider: trigger.ProviderAWS,
		},
		Listener: ListenerConfig{
			MaxConcurrent:  10,
			MessageTimeout: 5 * time.Minute,
			HTTP:           HTTPListenerConfig{Addr: listener.DefaultHTTPAddr},
		},
		AWS: AWSConfig{
			SessionName: "docrunner",
		},
		Health: healthcheck.Config{
			Port:          healthcheck.DefaultPort,
			ProbeInterval: healthcheck.DefaultProbeInterval,
		},
		Migrations: MigrationsConfig{
			CheckMode:     "wait",
			Timeout:       checks.Timeout,
			RetryInterval: checks.RetryInterval,
		},
	}
}

// Load reads configuration from files and environment variables.
// Environment variables use the prefix "DOCRUNNER" and the dot character
// in keys is replaced by an underscore. For example, "store.identifier"
// becomes "DOCRUNNER_STORE_IDENTIFIER".
func Load() (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.SetEnvPrefix("DOCRUNNER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)
	_ = v.ReadInConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if b := v.GetString("notify.kafka.brokers"); b != "" {
		cfg.Notify.Kafka.Brokers = strings.Split(b, ",")
	}
	return cfg, nil
}

// bindEnvs registers all keys within cfg so that viper will look up
// corresponding environment variables when unmarshalling.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(slices.Clone(parts), tag)
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}

// Validate checks everything the pipeline needs before any event is handled.
// All missing required options are reported together.
func (c *Config) Validate() error {
	var missing []string
	if c.Store.Identifier == "" {
		missing = append(missing, "store.identifier")
	}
	if c.Notify.Target == "" {
		missing = append(missing, "notify.target")
	}
	if c.Schema.Location == "" {
		missing = append(missing, "schema.location")
	}

	var result *multierror.Error
	if len(missing) > 0 {
		result = multierror.Append(result, fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", ")))
	}

	if !slices.Contains(recordstore.Kinds, c.Store.Kind) {
		result = multierror.Append(result, fmt.Errorf("unsupported store.kind %q (want one of %s)", c.Store.Kind, strings.Join(recordstore.Kinds, ", ")))
	}
	if (c.Store.Kind == recordstore.KindPostgres || c.Store.Kind == recordstore.KindRedis) && c.Store.URL == "" {
		result = multierror.Append(result, fmt.Errorf("store.url is required for store.kind %s", c.Store.Kind))
	}
	if c.Store.Kind == recordstore.KindBigQuery && c.Store.Identifier != "" {
		if _, err := recordstore.ParseBigQueryTable(c.Store.Identifier, c.GCP.ProjectID); err != nil {
			result = multierror.Append(result, fmt.Errorf("store.identifier: %w", err))
		}
	}
	if c.Store.WriteConcurrency < 1 {
		result = multierror.Append(result, fmt.Errorf("store.write_concurrency must be at least 1, got %d", c.Store.WriteConcurrency))
	}
	if _, err := idgen.New(c.Store.RecordIDs); err != nil {
		result = multierror.Append(result, fmt.Errorf("store.record_ids: %w", err))
	}

	if !slices.Contains(notify.Kinds, c.Notify.Kind) {
		result = multierror.Append(result, fmt.Errorf("unsupported notify.kind %q (want one of %s)", c.Notify.Kind, strings.Join(notify.Kinds, ", ")))
	}
	if c.Notify.Kind == notify.KindKafka && len(c.Notify.Kafka.Brokers) == 0 {
		result = multierror.Append(result, fmt.Errorf("notify.kafka.brokers is required for notify.kind kafka"))
	}
	if c.Notify.Kind == notify.KindPubSub && c.GCP.ProjectID == "" {
		result = multierror.Append(result, fmt.Errorf("gcp.project_id is required for notify.kind pubsub"))
	}

	switch c.Source.Provider {
	case trigger.ProviderAWS, trigger.ProviderGCP, trigger.ProviderAzure, trigger.ProviderFile:
	default:
		result = multierror.Append(result, fmt.Errorf("unsupported source.provider %q", c.Source.Provider))
	}

	if _, err := migrations.ParseCheckMode(c.Migrations.CheckMode); err != nil {
		result = multierror.Append(result, fmt.Errorf("migrations.check_mode: %w", err))
	}

	if c.Debug.PprofPort < 0 || c.Debug.PprofPort > 65535 {
		result = multierror.Append(result, fmt.Errorf("debug.pprof_port %d out of range", c.Debug.PprofPort))
	}

	return result.ErrorOrNil()
}

// ValidateListener checks the settings a long-running listener of type bt needs.
func (c *Config) ValidateListener(bt listener.BackendType) error {
	var missing []string
	switch bt {
	case listener.BackendTypeSQS:
		if c.Listener.SQS.QueueURL == "" {
			missing = append(missing, "listener.sqs.queue_url")
		}
	case listener.BackendTypeGCPPubSub:
		if c.GCP.ProjectID == "" {
			missing = append(missing, "gcp.project_id")
		}
		if c.Listener.GCP.Subscription == "" {
			missing = append(missing, "listener.gcp.subscription")
		}
	case listener.BackendTypeAzure:
		if c.Listener.Azure.Queue == "" {
			missing = append(missing, "listener.azure.queue")
		}
		if c.Listener.Azure.Account == "" && c.Azure.ConnectionString == "" {
			missing = append(missing, "listener.azure.account")
		}
	case listener.BackendTypeHTTP:
	default:
		return fmt.Errorf("unsupported listener type: %q", bt)
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration for %s listener: %s", bt, strings.Join(missing, ", "))
	}
	return nil
}
