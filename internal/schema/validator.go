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

package schema

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/cardinalhq/docrunner/internal/stageerr"
)

// Validator checks documents for the presence of every contract field.
// Types are not checked.
type Validator struct {
	contract   *Contract
	accumulate bool
}

type Option func(*Validator)

// WithAccumulate collects every missing field instead of stopping at the
// first. The reported Field is still the first one in contract order.
func WithAccumulate(accumulate bool) Option {
	return func(v *Validator) {
		v.accumulate = accumulate
	}
}

func NewValidator(contract *Contract, opts ...Option) *Validator {
	v := &Validator{contract: contract}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate checks a single document.
func (v *Validator) Validate(doc any) error {
	return v.check(doc, -1)
}

// ValidateBatch checks every element and stops at the first failing one.
// An empty batch is itself a violation.
func (v *Validator) ValidateBatch(docs []any) error {
	if len(docs) == 0 {
		return stageerr.SchemaViolation("", -1, fmt.Errorf("empty batch"))
	}
	for i, doc := range docs {
		if err := v.check(doc, i); err != nil {
			return err
		}
	}
	return nil
}

func (v *Validator) check(doc any, index int) error {
	obj, _ := doc.(map[string]any)

	var (
		first  string
		merr   *multierror.Error
		reason error
	)
	for _, field := range v.contract.fields {
		if _, ok := obj[field]; ok {
			continue
		}
		if first == "" {
			first = field
			if obj == nil {
				reason = fmt.Errorf("document is %s, not an object", describe(doc))
			} else {
				reason = fmt.Errorf("missing field: %s", field)
			}
		}
		if !v.accumulate {
			break
		}
		merr = multierror.Append(merr, fmt.Errorf("missing field: %s", field))
	}

	if first == "" {
		return nil
	}
	if merr != nil {
		reason = merr.ErrorOrNil()
	}
	return stageerr.SchemaViolation(first, index, reason)
}

// Validate checks doc against contract with first-violation-wins semantics.
func Validate(doc any, contract *Contract) error {
	return NewValidator(contract).Validate(doc)
}

func describe(doc any) string {
	switch doc.(type) {
	case nil:
		return "null"
	case []any:
		return "an array"
	case string:
		return "a string"
	case bool:
		return "a boolean"
	default:
		return fmt.Sprintf("%T", doc)
	}
}
