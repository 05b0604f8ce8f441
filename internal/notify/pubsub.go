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

package notify

import (
	"context"
	"fmt"
	"sync"

	"cloud.google.com/go/pubsub"
)

// PubSubPublisher publishes to GCP Pub/Sub topics in one project.
type PubSubPublisher struct {
	client *pubsub.Client

	mu     sync.Mutex
	topics map[string]*pubsub.Topic
}

var _ Publisher = (*PubSubPublisher)(nil)

func NewPubSubPublisher(client *pubsub.Client) *PubSubPublisher {
	return &PubSubPublisher{
		client: client,
		topics: make(map[string]*pubsub.Topic),
	}
}

func (p *PubSubPublisher) topic(id string) *pubsub.Topic {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.topics[id]
	if !ok {
		t = p.client.Topic(id)
		p.topics[id] = t
	}
	return t
}

// Publish blocks until the server acknowledges the message. The subject is
// carried as the "subject" attribute.
func (p *PubSubPublisher) Publish(ctx context.Context, topic, subject string, body []byte, attrs map[string]string) error {
	attributes := make(map[string]string, len(attrs)+1)
	for k, v := range attrs {
		attributes[k] = v
	}
	attributes["subject"] = subject

	result := p.topic(topic).Publish(ctx, &pubsub.Message{
		Data:       body,
		Attributes: attributes,
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("failed to publish to Pub/Sub topic %s: %w", topic, err)
	}
	return nil
}

// Close flushes and stops all topics.
func (p *PubSubPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, t := range p.topics {
		t.Stop()
		delete(p.topics, id)
	}
	return nil
}
