// Copyright 2025 V Kontakte LLC
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package histogrammar

import (
	"fmt"

	"github.com/mailru/easyjson/jlexer"
	"github.com/mailru/easyjson/jwriter"
)

// Branch is a fixed-arity tuple of sub-aggregators of any mix of
// types, addressed by position; every fill is broadcast to all of
// them. It is the way to compute several different summaries of the
// same data in one pass.
type Branch struct {
	entries float64
	values  []Aggregator
}

// NewBranch returns an empty, fillable Branch over the given
// sub-aggregators (at least one).
func NewBranch(values ...Aggregator) (*Branch, error) {
	if len(values) < 1 {
		return nil, validationErrorf("at least one Branch value required")
	}
	return &Branch{values: append([]Aggregator(nil), values...)}, nil
}

func (b *Branch) FactoryTag() string { return "Branch" }
func (b *Branch) Entries() float64   { return b.entries }

// Size is the number of sub-aggregators.
func (b *Branch) Size() int { return len(b.values) }

// Get returns the sub-aggregator at position i, or false when out of
// range.
func (b *Branch) Get(i int) (Aggregator, bool) {
	if i < 0 || i >= len(b.values) {
		return nil, false
	}
	return b.values[i], true
}

func (b *Branch) Children() []Aggregator { return b.values }

func (b *Branch) Zero() Aggregator {
	values := make([]Aggregator, len(b.values))
	for i, v := range b.values {
		values[i] = v.Zero()
	}
	return &Branch{values: values}
}

func (b *Branch) Merge(other Aggregator) (Aggregator, error) {
	o, ok := other.(*Branch)
	if !ok {
		return nil, structureMismatchf("cannot merge Branch with %s", other.FactoryTag())
	}
	if len(b.values) != len(o.values) {
		return nil, structureMismatchf("cannot merge Branches because they have different sizes (%d vs %d)", len(b.values), len(o.values))
	}
	values := make([]Aggregator, len(b.values))
	for i := range values {
		m, err := b.values[i].Merge(o.values[i])
		if err != nil {
			return nil, wrapStructureMismatch(err, fmt.Sprintf("Branch.data[%d]", i))
		}
		values[i] = m
	}
	return &Branch{entries: b.entries + o.entries, values: values}, nil
}

func (b *Branch) Fill(datum any, weight float64) error {
	if weight <= 0.0 {
		return nil
	}
	for _, v := range b.values {
		if err := v.Fill(datum, weight); err != nil {
			return err
		}
	}
	b.entries += weight
	return nil
}

func (b *Branch) writeFragment(w *jwriter.Writer, suppressName bool) {
	w.RawByte('{')
	w.RawString(`"entries":`)
	writeFloat(w, b.entries)
	w.RawString(`,"data":[`)
	for i, v := range b.values {
		if i > 0 {
			w.RawByte(',')
		}
		w.RawByte('{')
		w.String(v.FactoryTag())
		w.RawByte(':')
		v.writeFragment(w, false)
		w.RawByte('}')
	}
	w.RawString(`]}`)
}

func init() {
	register("Branch", parseBranchFragment)
}

func parseBranchFragment(data []byte, nameFromParent string) (Aggregator, error) {
	fields, err := readFields(data)
	if err != nil {
		return nil, err
	}
	if err := requireFields(fields, "Branch", []string{"entries", "data"}); err != nil {
		return nil, err
	}
	entries, err := readFloat(fields["entries"], "Branch.entries")
	if err != nil {
		return nil, err
	}
	if entries < 0.0 {
		return nil, validationErrorf("Branch entries (%v) cannot be negative", entries)
	}
	var values []Aggregator
	l := &jlexer.Lexer{Data: fields["data"]}
	l.Delim('[')
	for !l.IsDelim(']') {
		raw := l.Raw()
		if err := l.Error(); err != nil {
			return nil, jsonFormatErrorf("Branch.data: %v", err)
		}
		elem, err := readFields(raw)
		if err != nil {
			return nil, wrapJSONFormat(err, "Branch.data")
		}
		if len(elem) != 1 {
			return nil, jsonFormatErrorf("each Branch.data element must be a single {type: fragment} pair, got %d keys", len(elem))
		}
		for tag, sub := range elem {
			v, err := fromJSONFragment(tag, sub, "")
			if err != nil {
				return nil, err
			}
			values = append(values, v)
		}
		l.WantComma()
	}
	l.Delim(']')
	if err := l.Error(); err != nil {
		return nil, jsonFormatErrorf("Branch.data: %v", err)
	}
	if len(values) < 1 {
		return nil, jsonFormatErrorf("Branch.data must have at least one element")
	}
	return &Branch{entries: entries, values: values}, nil
}
