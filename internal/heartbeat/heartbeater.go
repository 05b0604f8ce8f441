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

package heartbeat

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Beat is called once per interval. A non-nil error marks the beat failed.
type Beat func(ctx context.Context) error

// Heartbeater runs a Beat immediately and then on a fixed interval, and
// reports each transition between passing and failing.
type Heartbeater struct {
	beat     Beat
	interval time.Duration
	ll       *slog.Logger
	onChange func(passing bool, err error)

	mu       sync.Mutex
	known    bool
	passing  bool
	failures atomic.Int64
}

type Option func(*Heartbeater)

func WithLogger(ll *slog.Logger) Option {
	return func(h *Heartbeater) {
		if ll != nil {
			h.ll = ll
		}
	}
}

// WithOnChange registers fn to be called on the first beat and whenever the
// beat result flips.
func WithOnChange(fn func(passing bool, err error)) Option {
	return func(h *Heartbeater) { h.onChange = fn }
}

func New(beat Beat, interval time.Duration, opts ...Option) *Heartbeater {
	h := &Heartbeater{
		beat:     beat,
		interval: interval,
		ll:       slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.ll = h.ll.With(slog.String("component", "heartbeater"))
	return h
}

// Start begins the heartbeat loop in a goroutine and returns a cancel function.
func (h *Heartbeater) Start(ctx context.Context) context.CancelFunc {
	heartbeatCtx, cancel := context.WithCancel(ctx)
	go h.run(heartbeatCtx)
	return cancel
}

// Failures returns how many beats have failed since Start.
func (h *Heartbeater) Failures() int64 {
	return h.failures.Load()
}

func (h *Heartbeater) run(ctx context.Context) {
	h.ll.Debug("Starting heartbeat loop", slog.Duration("interval", h.interval))
	h.tick(ctx)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.ll.Debug("Context cancelled, stopping heartbeat loop")
			return
		case <-ticker.C:
			h.tick(ctx)
		}
	}
}

func (h *Heartbeater) tick(ctx context.Context) {
	err := h.beat(ctx)
	if err != nil && ctx.Err() != nil {
		return
	}
	if err != nil {
		h.failures.Add(1)
	}
	passing := err == nil

	h.mu.Lock()
	changed := !h.known || h.passing != passing
	h.known = true
	h.passing = passing
	h.mu.Unlock()

	if !changed {
		return
	}
	if passing {
		h.ll.Info("Heartbeat passing")
	} else {
		h.ll.Warn("Heartbeat failing", slog.Any("error", err))
	}
	if h.onChange != nil {
		h.onChange(passing, err)
	}
}
