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

package ingest

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/cardinalhq/docrunner/internal/logctx"
	"github.com/cardinalhq/docrunner/internal/normalize"
	"github.com/cardinalhq/docrunner/internal/schema"
	"github.com/cardinalhq/docrunner/internal/stageerr"
	"github.com/cardinalhq/docrunner/internal/trigger"
)

// Ingestor runs fetch -> decode -> validate -> normalize -> persist for one
// trigger at a time. It holds no per-run state and is safe for concurrent use.
type Ingestor struct {
	source           ContentSource
	store            RecordStore
	validator        *schema.Validator
	normalizer       *normalize.Normalizer
	writeConcurrency int
	tracer           trace.Tracer
}

type Option func(*Ingestor)

// WithWriteConcurrency bounds parallel record writes. Values below 2 keep
// writes sequential.
func WithWriteConcurrency(n int) Option {
	return func(i *Ingestor) {
		i.writeConcurrency = n
	}
}

func New(source ContentSource, store RecordStore, validator *schema.Validator, normalizer *normalize.Normalizer, opts ...Option) *Ingestor {
	i := &Ingestor{
		source:           source,
		store:            store,
		validator:        validator,
		normalizer:       normalizer,
		writeConcurrency: 1,
		tracer:           otel.Tracer("github.com/cardinalhq/docrunner/internal/ingest"),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Run processes one descriptor. The outcome is always populated; the error
// is the stage error that moved the run to FAILED, if any.
func (i *Ingestor) Run(ctx context.Context, d trigger.Descriptor) (Outcome, error) {
	ctx, span := i.tracer.Start(ctx, "ingest.Run", trace.WithAttributes(
		attribute.String("source_kind", string(d.Kind)),
		attribute.String("bucket", d.Location.Bucket),
		attribute.String("key", d.Location.Key),
		attribute.String("correlation_id", d.CorrelationID),
	))
	defer span.End()

	out := Outcome{
		SourceReference: d.SourceReference(),
		CorrelationID:   d.CorrelationID,
	}
	ll := logctx.FromContext(ctx).With(slog.String("source_reference", out.SourceReference))

	fail := func(state State, err error) (Outcome, error) {
		out.State = StateFailed
		out.FailedIn = state
		out.Err = err
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		recordRun(ctx, out)
		ll.Debug("Ingest state transition",
			slog.String("from", state.String()),
			slog.String("to", StateFailed.String()),
			slog.Any("error", err))
		return out, err
	}
	enter := func(state State) {
		ll.Debug("Ingest state transition", slog.String("state", state.String()))
	}

	enter(StateFetching)
	raw, err := i.source.Fetch(ctx, d.Location)
	if err != nil {
		return fail(StateFetching, asStage(stageerr.KindFetch, fmt.Errorf("fetch %s: %w", d.Location, err)))
	}

	enter(StateValidating)
	doc, err := decodeDocument(raw)
	if err != nil {
		return fail(StateValidating, err)
	}
	if err := validateDocument(i.validator, doc); err != nil {
		return fail(StateValidating, err)
	}

	enter(StateNormalizing)
	records := i.normalizer.Normalize(doc, out.SourceReference)

	enter(StatePersisting)
	written, err := i.persist(ctx, records)
	out.RecordsWritten = written
	if err != nil {
		return fail(StatePersisting, err)
	}

	out.State = StateDone
	out.Succeeded = true
	span.SetAttributes(attribute.Int("records_written", written))
	recordRun(ctx, out)
	enter(StateDone)
	return out, nil
}

func (i *Ingestor) persist(ctx context.Context, records []normalize.Record) (int, error) {
	if i.writeConcurrency < 2 || len(records) < 2 {
		for n, rec := range records {
			if err := i.store.Put(ctx, rec); err != nil {
				return n, stageerr.Persist(n, fmt.Errorf("record %s: %w", rec.ID, err))
			}
		}
		return len(records), nil
	}

	var written atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.writeConcurrency)
	for _, rec := range records {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := i.store.Put(gctx, rec); err != nil {
				return fmt.Errorf("record %s: %w", rec.ID, err)
			}
			written.Add(1)
			return nil
		})
	}
	err := g.Wait()
	n := int(written.Load())
	if err == nil && n != len(records) {
		err = fmt.Errorf("persisting interrupted: %w", context.Cause(gctx))
	}
	if err != nil {
		return n, stageerr.Persist(n, err)
	}
	return n, nil
}

var gzipMagic = []byte{0x1f, 0x8b}

var utf8BOM = []byte{0xef, 0xbb, 0xbf}

// decodeDocument parses exactly one JSON value. Numbers stay json.Number so
// they are stored without float rounding.
func decodeDocument(raw RawDocument) (any, error) {
	data := raw.Data
	if bytes.HasPrefix(data, gzipMagic) {
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, stageerr.Decode(fmt.Errorf("gzip header: %w", err))
		}
		data, err = io.ReadAll(zr)
		if err != nil {
			return nil, stageerr.Decode(fmt.Errorf("gzip body: %w", err))
		}
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, stageerr.Decode(fmt.Errorf("invalid JSON: %w", err))
	}
	var extra any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, stageerr.Decode(errors.New("invalid JSON: trailing data after document"))
	}
	return doc, nil
}

func validateDocument(v *schema.Validator, doc any) error {
	if elems, ok := doc.([]any); ok {
		return v.ValidateBatch(elems)
	}
	return v.Validate(doc)
}

// CheckDocument decodes and validates data the way Run does without
// fetching or persisting anything. It returns how many records data holds.
func CheckDocument(v *schema.Validator, data []byte) (int, error) {
	doc, err := decodeDocument(RawDocument{Data: data})
	if err != nil {
		return 0, err
	}
	if err := validateDocument(v, doc); err != nil {
		return 0, err
	}
	if elems, ok := doc.([]any); ok {
		return len(elems), nil
	}
	return 1, nil
}

// asStage tags err with kind unless it already carries a stage.
func asStage(kind stageerr.Kind, err error) error {
	if stageerr.KindOf(err) != stageerr.KindUnknown {
		return err
	}
	return stageerr.New(kind, err)
}
