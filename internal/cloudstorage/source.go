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

package cloudstorage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/cardinalhq/docrunner/internal/ingest"
	"github.com/cardinalhq/docrunner/internal/trigger"
)

// Client reads whole objects from one storage provider. A missing object is
// reported as ingest.ErrObjectNotFound.
type Client interface {
	GetObject(ctx context.Context, bucket, key string) (ingest.RawDocument, error)
}

// ClientProvider creates the Client for a provider name.
type ClientProvider interface {
	NewClient(ctx context.Context, provider string) (Client, error)
}

const (
	// ClientTTL bounds how long a provider client is reused before it is
	// rebuilt with fresh credentials.
	ClientTTL = time.Hour

	clientErrorTTL = 30 * time.Second
)

// Source routes fetches to per-provider clients, filling in the default
// provider and bucket for locations that carry neither.
type Source struct {
	provider        ClientProvider
	defaultProvider string
	defaultBucket   string

	clients *ttlcache.Cache[string, clientCacheValue]
}

type clientCacheValue struct {
	Client
	error
}

var _ ingest.ContentSource = (*Source)(nil)

func NewSource(provider ClientProvider, defaultProvider, defaultBucket string) *Source {
	return &Source{
		provider:        provider,
		defaultProvider: defaultProvider,
		defaultBucket:   defaultBucket,
		clients: ttlcache.New(
			ttlcache.WithTTL[string, clientCacheValue](ClientTTL),
			ttlcache.WithDisableTouchOnHit[string, clientCacheValue](),
		),
	}
}

func (s *Source) client(ctx context.Context, provider string) (Client, error) {
	loader := ttlcache.LoaderFunc[string, clientCacheValue](
		func(cache *ttlcache.Cache[string, clientCacheValue], key string) *ttlcache.Item[string, clientCacheValue] {
			c, err := s.provider.NewClient(ctx, key)
			ttl := ttlcache.DefaultTTL
			if err != nil {
				ttl = clientErrorTTL
			}
			return cache.Set(key, clientCacheValue{Client: c, error: err}, ttl)
		},
	)
	v := s.clients.Get(provider, ttlcache.WithLoader(loader))
	if v == nil {
		return nil, fmt.Errorf("failed to get %s client from cache", provider)
	}
	return v.Value().Client, v.Value().error
}

// Fetch reads the object at loc into memory.
func (s *Source) Fetch(ctx context.Context, loc trigger.Location) (ingest.RawDocument, error) {
	if loc.Provider == "" {
		loc.Provider = s.defaultProvider
	}
	if loc.Bucket == "" {
		loc.Bucket = s.defaultBucket
	}
	if loc.Key == "" {
		return ingest.RawDocument{}, errors.New("object key is empty")
	}
	if loc.Bucket == "" && loc.Provider != trigger.ProviderFile {
		return ingest.RawDocument{}, fmt.Errorf("no bucket for %s and no default bucket configured", loc.Key)
	}

	c, err := s.client(ctx, loc.Provider)
	if err != nil {
		return ingest.RawDocument{}, err
	}
	return c.GetObject(ctx, loc.Bucket, loc.Key)
}

// ReadURI reads an s3://, gs:// or az:// object; it satisfies
// schema.RemoteReader.
func (s *Source) ReadURI(ctx context.Context, uri string) ([]byte, error) {
	loc, ok := trigger.ParseObjectURI(uri)
	if !ok || loc.Key == "" {
		return nil, fmt.Errorf("not an object URI: %q", uri)
	}
	doc, err := s.Fetch(ctx, loc)
	if err != nil {
		return nil, err
	}
	return doc.Data, nil
}
