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

// Index is a position-addressed Label: an ordered sequence of
// same-typed sub-aggregators, each of which sees every filled datum.
type Index struct {
	entries float64
	values  []Aggregator
}

// NewIndex returns an empty, fillable Index over the given
// sub-aggregators (at least one, all the same primitive type).
func NewIndex(values ...Aggregator) (*Index, error) {
	if len(values) < 1 {
		return nil, validationErrorf("at least one Index value required")
	}
	contentType := values[0].FactoryTag()
	for _, v := range values {
		if v.FactoryTag() != contentType {
			return nil, validationErrorf("all Index values must have the same type (%s vs %s)", contentType, v.FactoryTag())
		}
	}
	return &Index{values: append([]Aggregator(nil), values...)}, nil
}

func (x *Index) FactoryTag() string { return "Index" }
func (x *Index) Entries() float64   { return x.entries }

// Size is the number of sub-aggregators.
func (x *Index) Size() int { return len(x.values) }

// Get returns the sub-aggregator at position i, or false when out of
// range.
func (x *Index) Get(i int) (Aggregator, bool) {
	if i < 0 || i >= len(x.values) {
		return nil, false
	}
	return x.values[i], true
}

func (x *Index) Children() []Aggregator { return x.values }

func (x *Index) Zero() Aggregator {
	values := make([]Aggregator, len(x.values))
	for i, v := range x.values {
		values[i] = v.Zero()
	}
	return &Index{values: values}
}

func (x *Index) Merge(other Aggregator) (Aggregator, error) {
	o, ok := other.(*Index)
	if !ok {
		return nil, structureMismatchf("cannot merge Index with %s", other.FactoryTag())
	}
	if len(x.values) != len(o.values) {
		return nil, structureMismatchf("cannot merge Indexes because they have different sizes (%d vs %d)", len(x.values), len(o.values))
	}
	values := make([]Aggregator, len(x.values))
	for i := range values {
		m, err := x.values[i].Merge(o.values[i])
		if err != nil {
			return nil, wrapStructureMismatch(err, fmt.Sprintf("Index.data[%d]", i))
		}
		values[i] = m
	}
	return &Index{entries: x.entries + o.entries, values: values}, nil
}

func (x *Index) Fill(datum any, weight float64) error {
	if weight <= 0.0 {
		return nil
	}
	for _, v := range x.values {
		if err := v.Fill(datum, weight); err != nil {
			return err
		}
	}
	x.entries += weight
	return nil
}

func (x *Index) writeFragment(w *jwriter.Writer, suppressName bool) {
	w.RawByte('{')
	w.RawString(`"entries":`)
	writeFloat(w, x.entries)
	w.RawString(`,"type":`)
	w.String(x.values[0].FactoryTag())
	w.RawString(`,"data":[`)
	for i, v := range x.values {
		if i > 0 {
			w.RawByte(',')
		}
		v.writeFragment(w, false)
	}
	w.RawString(`]}`)
}

func init() {
	register("Index", parseIndexFragment)
}

func parseIndexFragment(data []byte, nameFromParent string) (Aggregator, error) {
	fields, err := readFields(data)
	if err != nil {
		return nil, err
	}
	if err := requireFields(fields, "Index", []string{"entries", "type", "data"}); err != nil {
		return nil, err
	}
	entries, err := readFloat(fields["entries"], "Index.entries")
	if err != nil {
		return nil, err
	}
	if entries < 0.0 {
		return nil, validationErrorf("Index entries (%v) cannot be negative", entries)
	}
	contentType, err := readString(fields["type"], "Index.type")
	if err != nil {
		return nil, err
	}
	var values []Aggregator
	l := &jlexer.Lexer{Data: fields["data"]}
	l.Delim('[')
	for !l.IsDelim(']') {
		raw := l.Raw()
		if err := l.Error(); err != nil {
			return nil, jsonFormatErrorf("Index.data: %v", err)
		}
		v, err := fromJSONFragment(contentType, raw, "")
		if err != nil {
			return nil, err
		}
		values = append(values, v)
		l.WantComma()
	}
	l.Delim(']')
	if err := l.Error(); err != nil {
		return nil, jsonFormatErrorf("Index.data: %v", err)
	}
	if len(values) < 1 {
		return nil, jsonFormatErrorf("Index.data must have at least one element")
	}
	return &Index{entries: entries, values: values}, nil
}
