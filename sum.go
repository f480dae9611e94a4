// Copyright 2025 V Kontakte LLC
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package histogrammar

import "github.com/mailru/easyjson/jwriter"

// Sum accumulates weight*quantity(datum) over every fill.
type Sum struct {
	quantity *Quantity
	entries  float64
	sum      float64
}

// NewSum returns an empty, fillable Sum over quantity.
func NewSum(quantity *Quantity) *Sum {
	return &Sum{quantity: quantity}
}

func (s *Sum) FactoryTag() string     { return "Sum" }
func (s *Sum) Entries() float64       { return s.entries }
func (s *Sum) Children() []Aggregator { return nil }

func (s *Sum) Zero() Aggregator { return NewSum(s.quantity.clone()) }

func (s *Sum) Merge(other Aggregator) (Aggregator, error) {
	o, ok := other.(*Sum)
	if !ok {
		return nil, structureMismatchf("cannot merge Sum with %s", other.FactoryTag())
	}
	return &Sum{quantity: s.quantity.clone(), entries: s.entries + o.entries, sum: s.sum + o.sum}, nil
}

func (s *Sum) Fill(datum any, weight float64) error {
	if weight <= 0.0 {
		return nil
	}
	q, err := s.quantity.Eval(datum)
	if err != nil {
		return err
	}
	s.entries += weight
	s.sum += q * weight
	return nil
}

func (s *Sum) writeFragment(w *jwriter.Writer, suppressName bool) {
	w.RawByte('{')
	w.RawString(`"entries":`)
	writeFloat(w, s.entries)
	w.RawString(`,"sum":`)
	writeFloat(w, s.sum)
	if !suppressName {
		writeName(w, s.quantity.Name())
	}
	w.RawByte('}')
}

func init() {
	register("Sum", parseSumFragment)
}

func parseSumFragment(data []byte, nameFromParent string) (Aggregator, error) {
	fields, err := readFields(data)
	if err != nil {
		return nil, err
	}
	if err := requireFields(fields, "Sum", []string{"entries", "sum"}, "name"); err != nil {
		return nil, err
	}
	entries, err := readFloat(fields["entries"], "Sum.entries")
	if err != nil {
		return nil, err
	}
	if entries < 0.0 {
		return nil, validationErrorf("Sum entries (%v) cannot be negative", entries)
	}
	sum, err := readSpecialFloat(fields["sum"], "Sum.sum")
	if err != nil {
		return nil, err
	}
	name, err := readOptionalName(fields, "Sum.name")
	if err != nil {
		return nil, err
	}
	return &Sum{quantity: namedQuantity(resolveName(name, nameFromParent)), entries: entries, sum: sum}, nil
}
