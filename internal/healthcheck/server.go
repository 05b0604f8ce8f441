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

package healthcheck

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

const (
	DefaultPort          = 8090
	DefaultProbeInterval = 30 * time.Second

	probeTimeout = 2 * time.Second
)

type Status int32

const (
	StatusStarting Status = iota
	StatusHealthy
	StatusUnhealthy
	// StatusDegraded means a dependency probe is failing but the process is alive.
	StatusDegraded
)

func (s Status) String() string {
	switch s {
	case StatusStarting:
		return "starting"
	case StatusHealthy:
		return "healthy"
	case StatusUnhealthy:
		return "unhealthy"
	case StatusDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// Probe reports whether a dependency such as the record store is reachable.
type Probe func(ctx context.Context) error

type Response struct {
	Healthy bool              `json:"healthy"`
	Status  string            `json:"status"`
	Failing map[string]string `json:"failing,omitempty"`
}

// Server exposes /healthz, /readyz and /livez for a long-running listener.
// Readiness requires SetReady(true) and every registered probe to pass.
type Server struct {
	port   int
	status atomic.Int32
	ready  atomic.Bool

	mu     sync.RWMutex
	probes map[string]Probe

	server *http.Server
}

type Config struct {
	Port int `mapstructure:"port"`
	// ProbeInterval is how often probes run in the background to drive /healthz.
	ProbeInterval time.Duration `mapstructure:"probe_interval"`
}

func NewServer(config Config) *Server {
	if config.Port <= 0 || config.Port > 65535 {
		config.Port = DefaultPort
	}
	return &Server{
		port:   config.Port,
		probes: map[string]Probe{},
	}
}

func (s *Server) SetStatus(status Status) {
	s.status.Store(int32(status))
	slog.Debug("Health check status updated", slog.String("status", status.String()))
}

func (s *Server) GetStatus() Status {
	return Status(s.status.Load())
}

func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
	slog.Debug("Ready status updated", slog.Bool("ready", ready))
}

// AddProbe registers a named dependency check consulted by /readyz.
func (s *Server) AddProbe(name string, p Probe) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probes[name] = p
}

// CheckReady runs every probe and returns the failing ones by name.
func (s *Server) CheckReady(ctx context.Context) (bool, map[string]string) {
	if !s.ready.Load() {
		return false, map[string]string{"startup": "not ready"}
	}

	s.mu.RLock()
	names := make([]string, 0, len(s.probes))
	for name := range s.probes {
		names = append(names, name)
	}
	s.mu.RUnlock()
	sort.Strings(names)

	failing := map[string]string{}
	for _, name := range names {
		s.mu.RLock()
		p := s.probes[name]
		s.mu.RUnlock()

		pctx, cancel := context.WithTimeout(ctx, probeTimeout)
		err := p(pctx)
		cancel()
		if err != nil {
			failing[name] = err.Error()
		}
	}
	if len(failing) > 0 {
		return false, failing
	}
	return true, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.healthzHandler)
	mux.HandleFunc("/readyz", s.readyzHandler)
	mux.HandleFunc("/livez", s.livezHandler)
	return mux
}

// Start serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.SetStatus(StatusStarting)
	slog.Info("Starting health check server", slog.Int("port", s.port))

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Health check server error", slog.Any("error", err))
		}
	}()

	<-ctx.Done()
	return s.Stop()
}

func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}

	slog.Info("Stopping health check server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

func (s *Server) healthzHandler(w http.ResponseWriter, r *http.Request) {
	status := s.GetStatus()
	writeResponse(w, Response{Healthy: status == StatusHealthy, Status: status.String()})
}

func (s *Server) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ok, failing := s.CheckReady(r.Context())
	writeResponse(w, Response{Healthy: ok, Status: s.GetStatus().String(), Failing: failing})
}

func (s *Server) livezHandler(w http.ResponseWriter, r *http.Request) {
	status := s.GetStatus()
	writeResponse(w, Response{Healthy: status != StatusUnhealthy, Status: status.String()})
}

func writeResponse(w http.ResponseWriter, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	if resp.Healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Failed to encode health check response", slog.Any("error", err))
	}
}
