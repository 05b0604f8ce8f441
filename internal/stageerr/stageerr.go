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

// Package stageerr holds the tagged error type shared by every pipeline stage.
// Callers branch on Kind instead of matching error strings.
package stageerr

import (
	"errors"
	"fmt"
	"strings"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindMalformedEnvelope
	KindFetch
	KindDecode
	KindSchemaViolation
	KindPersist
	KindPublish
)

func (k Kind) String() string {
	switch k {
	case KindMalformedEnvelope:
		return "MalformedEnvelope"
	case KindFetch:
		return "FetchError"
	case KindDecode:
		return "DecodeError"
	case KindSchemaViolation:
		return "SchemaViolation"
	case KindPersist:
		return "PersistError"
	case KindPublish:
		return "PublishError"
	default:
		return "Unknown"
	}
}

// Sentinels so callers can use errors.Is(err, stageerr.ErrFetch).
var (
	ErrMalformedEnvelope = &Error{Kind: KindMalformedEnvelope}
	ErrFetch             = &Error{Kind: KindFetch}
	ErrDecode            = &Error{Kind: KindDecode}
	ErrSchemaViolation   = &Error{Kind: KindSchemaViolation}
	ErrPersist           = &Error{Kind: KindPersist}
	ErrPublish           = &Error{Kind: KindPublish}
)

// Error is returned by every stage of a run.
type Error struct {
	Kind Kind
	// Field is the first missing contract field for SchemaViolation.
	Field string
	// Index is the offending batch element for SchemaViolation, -1 when the
	// document is a single object or the batch itself is invalid.
	Index int
	// Written is the number of records persisted before a PersistError.
	Written int
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	switch e.Kind {
	case KindSchemaViolation:
		if e.Field != "" {
			fmt.Fprintf(&b, "(missing_field=%q)", e.Field)
		}
		if e.Index >= 0 {
			fmt.Fprintf(&b, " at element %d", e.Index)
		}
	case KindPersist:
		fmt.Fprintf(&b, "(written=%d)", e.Written)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Kind so sentinels compare equal to any error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func New(kind Kind, err error) *Error {
	return &Error{Kind: kind, Index: -1, Err: err}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return New(kind, fmt.Errorf(format, args...))
}

func MalformedEnvelope(format string, args ...any) *Error {
	return Newf(KindMalformedEnvelope, format, args...)
}

func Fetch(err error) *Error {
	return New(KindFetch, err)
}

func Decode(err error) *Error {
	return New(KindDecode, err)
}

// SchemaViolation reports a missing contract field. index is -1 for single documents.
func SchemaViolation(field string, index int, err error) *Error {
	return &Error{Kind: KindSchemaViolation, Field: field, Index: index, Err: err}
}

func Persist(written int, err error) *Error {
	return &Error{Kind: KindPersist, Index: -1, Written: written, Err: err}
}

func Publish(err error) *Error {
	return New(KindPublish, err)
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}
