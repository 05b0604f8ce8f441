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

package listener

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	// HTTPBodyLimitBytes caps an inbound event body.
	HTTPBodyLimitBytes = int64(1024 * 1024)

	DefaultHTTPAddr = ":8080"

	eventGridValidationEvent = "Microsoft.EventGrid.SubscriptionValidationEvent"
)

// HTTPListener accepts pushed events (Pub/Sub push, Event Grid webhooks,
// invocation proxies) and answers with the run's status code and body.
type HTTPListener struct {
	addr    string
	tracer  trace.Tracer
	handler Handler
	opts    options
}

var _ Listener = (*HTTPListener)(nil)

func NewHTTPListener(addr string, handler Handler, opts ...Option) *HTTPListener {
	if addr == "" {
		addr = DefaultHTTPAddr
	}
	return &HTTPListener{
		addr:    addr,
		tracer:  otel.Tracer("github.com/cardinalhq/docrunner/internal/listener/http"),
		handler: handler,
		opts:    applyOptions(opts),
	}
}

func (l *HTTPListener) GetName() string {
	return string(BackendTypeHTTP)
}

func (l *HTTPListener) Run(doneCtx context.Context) error {
	slog.Info("Starting HTTP event listener", slog.String("addr", l.addr))

	srv := &http.Server{
		Addr:              l.addr,
		Handler:           l,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	case <-doneCtx.Done():
	}

	slog.Info("Shutting down HTTP event listener")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Failed to shutdown HTTP server", slog.Any("error", err))
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}

func (l *HTTPListener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, HTTPBodyLimitBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesError *http.MaxBytesError
		if errors.As(err, &maxBytesError) {
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Error reading request body", http.StatusInternalServerError)
		return
	}

	if code, ok := eventGridValidationCode(body); ok {
		slog.Info("Answering Event Grid subscription validation")
		writeJSON(w, http.StatusOK, map[string]string{"validationResponse": code})
		return
	}

	ctx, span := l.tracer.Start(r.Context(), "http.handle_event")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, l.opts.messageTimeout)
	defer cancel()

	resp, err := l.handler.Handle(ctx, body)
	recordMessage(ctx, BackendTypeHTTP, err == nil)
	if err != nil {
		span.RecordError(err)
	}
	writeJSON(w, resp.StatusCode, resp)
}

// eventGridValidationCode recognises the handshake Event Grid sends when a
// webhook subscription is created.
func eventGridValidationCode(body []byte) (string, bool) {
	if len(body) == 0 || body[0] != '[' {
		return "", false
	}
	var events []struct {
		EventType string `json:"eventType"`
		Data      struct {
			ValidationCode string `json:"validationCode"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &events); err != nil || len(events) == 0 {
		return "", false
	}
	if events[0].EventType != eventGridValidationEvent || events[0].Data.ValidationCode == "" {
		return "", false
	}
	return events[0].Data.ValidationCode, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode HTTP response", slog.Any("error", err))
	}
}
