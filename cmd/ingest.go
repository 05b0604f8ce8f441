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
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"

	"github.com/cardinalhq/docrunner/config"
	"github.com/cardinalhq/docrunner/internal/awsclient"
	"github.com/cardinalhq/docrunner/internal/azureclient"
	"github.com/cardinalhq/docrunner/internal/debugging"
	"github.com/cardinalhq/docrunner/internal/healthcheck"
	"github.com/cardinalhq/docrunner/internal/heartbeat"
	"github.com/cardinalhq/docrunner/internal/listener"
)

func init() {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "handle storage events",
	}
	rootCmd.AddCommand(cmd)

	eventCmd := &cobra.Command{
		Use:   "event [file]",
		Short: "handle one event read from a file or stdin",
		Long: `Handle one inbound event envelope (S3 notification, SQS batch, Pub/Sub push,
Event Grid delivery or GCS notification) and print the response. The command
exits non-zero when any document in the event failed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			addlAttrs := attribute.NewSet(
				attribute.String("action", "ingest-event"),
			)
			doneCtx, doneFx, err := setupTelemetry("docrunner-event", &addlAttrs)
			if err != nil {
				return fmt.Errorf("failed to setup telemetry: %w", err)
			}
			defer func() {
				if err := doneFx(); err != nil {
					slog.Error("Error shutting down telemetry", slog.Any("error", err))
				}
			}()

			raw, err := readEvent(c.InOrStdin(), args)
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return handleEvent(doneCtx, cfg, raw, c.OutOrStdout())
		},
	}
	cmd.AddCommand(eventCmd)

	cmd.AddCommand(
		newListenCmd(listener.BackendTypeSQS, "poll an SQS queue for storage events"),
		newListenCmd(listener.BackendTypeGCPPubSub, "receive Cloud Storage notifications from a Pub/Sub subscription"),
		newListenCmd(listener.BackendTypeAzure, "poll an Azure Storage queue fed by Event Grid"),
		newListenCmd(listener.BackendTypeHTTP, "accept pushed events over HTTP"),
	)
}

func readEvent(stdin io.Reader, args []string) ([]byte, error) {
	if len(args) == 1 && args[0] != "-" {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return nil, fmt.Errorf("failed to read event file: %w", err)
		}
		return raw, nil
	}
	raw, err := io.ReadAll(stdin)
	if err != nil {
		return nil, fmt.Errorf("failed to read event from stdin: %w", err)
	}
	return raw, nil
}

// handleEvent builds the pipeline, handles raw once and writes the response
// as JSON to out. The returned error is the run error, if any.
func handleEvent(ctx context.Context, cfg *config.Config, raw []byte, out io.Writer) error {
	p, err := buildPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := p.Close(); err != nil {
			slog.Error("Failed to close pipeline", slog.Any("error", err))
		}
	}()

	resp, runErr := p.Handle(ctx, raw)
	if err := json.NewEncoder(out).Encode(resp); err != nil {
		return fmt.Errorf("failed to write response: %w", err)
	}
	return runErr
}

func newListenCmd(bt listener.BackendType, short string) *cobra.Command {
	return &cobra.Command{
		Use:   string(bt),
		Short: short,
		RunE: func(_ *cobra.Command, _ []string) error {
			servicename := "docrunner-" + string(bt)
			addlAttrs := attribute.NewSet(
				attribute.String("action", "listen-"+string(bt)),
			)
			doneCtx, doneFx, err := setupTelemetry(servicename, &addlAttrs)
			if err != nil {
				return fmt.Errorf("failed to setup telemetry: %w", err)
			}
			defer func() {
				if err := doneFx(); err != nil {
					slog.Error("Error shutting down telemetry", slog.Any("error", err))
				}
			}()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return runListener(doneCtx, cfg, bt)
		},
	}
}

func runListener(ctx context.Context, cfg *config.Config, bt listener.BackendType) error {
	if err := cfg.ValidateListener(bt); err != nil {
		return err
	}

	p, err := buildPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := p.Close(); err != nil {
			slog.Error("Failed to close pipeline", slog.Any("error", err))
		}
	}()

	l, err := newListener(ctx, p, bt)
	if err != nil {
		return fmt.Errorf("failed to create %s listener: %w", bt, err)
	}

	debugging.RunPprof(ctx, cfg.Debug.PprofPort)

	health := healthcheck.NewServer(cfg.Health)
	for name, probe := range p.probes {
		health.AddProbe(name, probe)
	}
	go func() {
		if err := health.Start(ctx); err != nil {
			slog.Error("Health check server stopped with error", slog.Any("error", err))
		}
	}()
	health.SetStatus(healthcheck.StatusHealthy)
	health.SetReady(true)

	if len(p.probes) > 0 && cfg.Health.ProbeInterval > 0 {
		stopHeartbeat := heartbeat.New(func(ctx context.Context) error {
			if ok, failing := health.CheckReady(ctx); !ok {
				return fmt.Errorf("probes failing: %v", failing)
			}
			return nil
		}, cfg.Health.ProbeInterval, heartbeat.WithOnChange(func(passing bool, _ error) {
			if passing {
				health.SetStatus(healthcheck.StatusHealthy)
			} else {
				health.SetStatus(healthcheck.StatusDegraded)
			}
		})).Start(ctx)
		defer stopHeartbeat()
	}

	slog.Info("Listener started", slog.String("listener", l.GetName()))
	err = l.Run(ctx)
	health.SetReady(false)
	if err != nil {
		health.SetStatus(healthcheck.StatusUnhealthy)
		return err
	}
	return nil
}

func newListener(ctx context.Context, p *pipeline, bt listener.BackendType) (listener.Listener, error) {
	cfg := p.cfg
	opts := []listener.Option{
		listener.WithMaxConcurrent(cfg.Listener.MaxConcurrent),
		listener.WithMessageTimeout(cfg.Listener.MessageTimeout),
	}

	switch bt {
	case listener.BackendTypeSQS:
		mgr, err := p.requireAWS()
		if err != nil {
			return nil, err
		}
		region := cfg.Listener.SQS.Region
		if region == "" {
			region = cfg.AWS.Region
		}
		role := cfg.Listener.SQS.Role
		if role == "" {
			role = cfg.AWS.Role
		}
		client, err := mgr.GetSQS(ctx, awsclient.WithRegion(region), awsclient.WithRole(role))
		if err != nil {
			return nil, err
		}
		return listener.NewSQSListener(client.Client, cfg.Listener.SQS.QueueURL, p, opts...)

	case listener.BackendTypeGCPPubSub:
		mgr, err := p.requireGCP()
		if err != nil {
			return nil, err
		}
		client, err := mgr.GetPubSub(ctx, cfg.GCP.ProjectID)
		if err != nil {
			return nil, err
		}
		return listener.NewGCPListener(client.Client, cfg.Listener.GCP.Subscription, p, opts...)

	case listener.BackendTypeAzure:
		mgr, err := p.requireAzure()
		if err != nil {
			return nil, err
		}
		client, err := mgr.GetQueue(ctx,
			azureclient.WithQueueStorageAccount(cfg.Listener.Azure.Account),
			azureclient.WithQueueName(cfg.Listener.Azure.Queue),
		)
		if err != nil {
			return nil, err
		}
		return listener.NewAzureQueueListener(client.QueueClient, cfg.Listener.Azure.Queue, p, opts...)

	case listener.BackendTypeHTTP:
		return listener.NewHTTPListener(cfg.Listener.HTTP.Addr, p, opts...), nil
	}
	return nil, fmt.Errorf("unsupported listener type: %s", bt)
}
