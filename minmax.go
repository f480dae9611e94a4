// Copyright 2025 V Kontakte LLC
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package histogrammar

import (
	"math"

	"github.com/mailru/easyjson/jwriter"
)

// minplus and maxplus treat NaN as "no observation yet" rather than
// propagating it, so merging an empty aggregator's NaN min/max with a
// filled one's real value keeps the real value.
func minplus(x, y float64) float64 {
	switch {
	case math.IsNaN(x) && math.IsNaN(y):
		return math.NaN()
	case math.IsNaN(x):
		return y
	case math.IsNaN(y):
		return x
	case x < y:
		return x
	default:
		return y
	}
}

func maxplus(x, y float64) float64 {
	switch {
	case math.IsNaN(x) && math.IsNaN(y):
		return math.NaN()
	case math.IsNaN(x):
		return y
	case math.IsNaN(y):
		return x
	case x > y:
		return x
	default:
		return y
	}
}

// Minimize tracks the smallest observed quantity(datum).
type Minimize struct {
	quantity *Quantity
	entries  float64
	min      float64
}

// NewMinimize returns an empty, fillable Minimize over quantity.
func NewMinimize(quantity *Quantity) *Minimize {
	return &Minimize{quantity: quantity, min: math.NaN()}
}

func (m *Minimize) FactoryTag() string     { return "Minimize" }
func (m *Minimize) Entries() float64       { return m.entries }
func (m *Minimize) Children() []Aggregator { return nil }
func (m *Minimize) Min() float64           { return m.min }

func (m *Minimize) Zero() Aggregator { return NewMinimize(m.quantity.clone()) }

func (m *Minimize) Merge(other Aggregator) (Aggregator, error) {
	o, ok := other.(*Minimize)
	if !ok {
		return nil, structureMismatchf("cannot merge Minimize with %s", other.FactoryTag())
	}
	return &Minimize{quantity: m.quantity.clone(), entries: m.entries + o.entries, min: minplus(m.min, o.min)}, nil
}

func (m *Minimize) Fill(datum any, weight float64) error {
	if weight <= 0.0 {
		return nil
	}
	q, err := m.quantity.Eval(datum)
	if err != nil {
		return err
	}
	m.entries += weight
	if math.IsNaN(m.min) || q < m.min {
		m.min = q
	}
	return nil
}

func (m *Minimize) writeFragment(w *jwriter.Writer, suppressName bool) {
	w.RawByte('{')
	w.RawString(`"entries":`)
	writeFloat(w, m.entries)
	w.RawString(`,"min":`)
	writeFloat(w, m.min)
	if !suppressName {
		writeName(w, m.quantity.Name())
	}
	w.RawByte('}')
}

func init() {
	register("Minimize", parseMinimizeFragment)
}

func parseMinimizeFragment(data []byte, nameFromParent string) (Aggregator, error) {
	fields, err := readFields(data)
	if err != nil {
		return nil, err
	}
	if err := requireFields(fields, "Minimize", []string{"entries", "min"}, "name"); err != nil {
		return nil, err
	}
	entries, err := readFloat(fields["entries"], "Minimize.entries")
	if err != nil {
		return nil, err
	}
	if entries < 0.0 {
		return nil, validationErrorf("Minimize entries (%v) cannot be negative", entries)
	}
	min, err := readSpecialFloat(fields["min"], "Minimize.min")
	if err != nil {
		return nil, err
	}
	name, err := readOptionalName(fields, "Minimize.name")
	if err != nil {
		return nil, err
	}
	return &Minimize{quantity: namedQuantity(resolveName(name, nameFromParent)), entries: entries, min: min}, nil
}

// Maximize tracks the largest observed quantity(datum).
type Maximize struct {
	quantity *Quantity
	entries  float64
	max      float64
}

// NewMaximize returns an empty, fillable Maximize over quantity.
func NewMaximize(quantity *Quantity) *Maximize {
	return &Maximize{quantity: quantity, max: math.NaN()}
}

func (m *Maximize) FactoryTag() string     { return "Maximize" }
func (m *Maximize) Entries() float64       { return m.entries }
func (m *Maximize) Children() []Aggregator { return nil }
func (m *Maximize) Max() float64           { return m.max }

func (m *Maximize) Zero() Aggregator { return NewMaximize(m.quantity.clone()) }

func (m *Maximize) Merge(other Aggregator) (Aggregator, error) {
	o, ok := other.(*Maximize)
	if !ok {
		return nil, structureMismatchf("cannot merge Maximize with %s", other.FactoryTag())
	}
	return &Maximize{quantity: m.quantity.clone(), entries: m.entries + o.entries, max: maxplus(m.max, o.max)}, nil
}

func (m *Maximize) Fill(datum any, weight float64) error {
	if weight <= 0.0 {
		return nil
	}
	q, err := m.quantity.Eval(datum)
	if err != nil {
		return err
	}
	m.entries += weight
	if math.IsNaN(m.max) || q > m.max {
		m.max = q
	}
	return nil
}

func (m *Maximize) writeFragment(w *jwriter.Writer, suppressName bool) {
	w.RawByte('{')
	w.RawString(`"entries":`)
	writeFloat(w, m.entries)
	w.RawString(`,"max":`)
	writeFloat(w, m.max)
	if !suppressName {
		writeName(w, m.quantity.Name())
	}
	w.RawByte('}')
}

func init() {
	register("Maximize", parseMaximizeFragment)
}

func parseMaximizeFragment(data []byte, nameFromParent string) (Aggregator, error) {
	fields, err := readFields(data)
	if err != nil {
		return nil, err
	}
	if err := requireFields(fields, "Maximize", []string{"entries", "max"}, "name"); err != nil {
		return nil, err
	}
	entries, err := readFloat(fields["entries"], "Maximize.entries")
	if err != nil {
		return nil, err
	}
	if entries < 0.0 {
		return nil, validationErrorf("Maximize entries (%v) cannot be negative", entries)
	}
	max, err := readSpecialFloat(fields["max"], "Maximize.max")
	if err != nil {
		return nil, err
	}
	name, err := readOptionalName(fields, "Maximize.name")
	if err != nil {
		return nil, err
	}
	return &Maximize{quantity: namedQuantity(resolveName(name, nameFromParent)), entries: entries, max: max}, nil
}
