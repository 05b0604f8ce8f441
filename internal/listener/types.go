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
	"fmt"
	"time"

	"github.com/cardinalhq/docrunner/internal/runner"
)

// Handler runs one raw inbound event to completion.
type Handler interface {
	Handle(ctx context.Context, raw []byte) (runner.Response, error)
}

// Listener receives events from one platform and hands each to a Handler.
type Listener interface {
	Run(ctx context.Context) error
	GetName() string
}

// BackendType names a supported event source.
type BackendType string

const (
	BackendTypeSQS       BackendType = "sqs"
	BackendTypeGCPPubSub BackendType = "gcp"
	BackendTypeAzure     BackendType = "azure"
	BackendTypeHTTP      BackendType = "http"
)

// ParseBackendType validates a configured backend name.
func ParseBackendType(s string) (BackendType, error) {
	switch bt := BackendType(s); bt {
	case BackendTypeSQS, BackendTypeGCPPubSub, BackendTypeAzure, BackendTypeHTTP:
		return bt, nil
	default:
		return "", fmt.Errorf("unsupported listener type: %q", s)
	}
}

const (
	defaultMaxConcurrent  = 10
	defaultMessageTimeout = 5 * time.Minute
)

type options struct {
	maxConcurrent  int
	messageTimeout time.Duration
	errorBackoff   time.Duration
	idleBackoff    time.Duration
}

func defaultOptions() options {
	return options{
		maxConcurrent:  defaultMaxConcurrent,
		messageTimeout: defaultMessageTimeout,
		errorBackoff:   5 * time.Second,
		idleBackoff:    time.Second,
	}
}

// Option tunes a polling listener.
type Option func(*options)

// WithMaxConcurrent bounds how many messages are handled at once.
func WithMaxConcurrent(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxConcurrent = n
		}
	}
}

// WithMessageTimeout bounds the time spent handling a single message.
func WithMessageTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.messageTimeout = d
		}
	}
}

// WithBackoff sets the sleep after a receive error and after an empty poll.
func WithBackoff(onError, onIdle time.Duration) Option {
	return func(o *options) {
		if onError >= 0 {
			o.errorBackoff = onError
		}
		if onIdle >= 0 {
			o.idleBackoff = onIdle
		}
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// sleepCtx waits for d or until ctx is done, reporting whether ctx is still live.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
