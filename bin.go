// Copyright 2025 V Kontakte LLC
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package histogrammar

import (
	"fmt"
	"math"

	"github.com/mailru/easyjson/jlexer"
	"github.com/mailru/easyjson/jwriter"
)

// Bin splits a bounded numeric range into a fixed number of
// equal-width sub-aggregators, with dedicated sinks for data below the
// range (underflow), at or above it (overflow), and NaN (nanflow).
// Bin applies no selection of its own; a histogram with a cut is
// Select wrapped around a Bin of Counts (see NewHistogram).
type Bin struct {
	quantity  *Quantity
	entries   float64
	low       float64
	high      float64
	values    []Aggregator
	underflow Aggregator
	overflow  Aggregator
	nanflow   Aggregator
}

// NewBin returns an empty, fillable Bin of num equal-width bins over
// [low, high), each starting as value.Zero(), with Count sinks for
// underflow, overflow and NaN.
func NewBin(num int, low, high float64, quantity *Quantity, value Aggregator) (*Bin, error) {
	return NewBinWithFlows(num, low, high, quantity, value, NewCount(), NewCount(), NewCount())
}

// NewBinWithFlows is NewBin with explicit underflow/overflow/nanflow
// sink aggregators.
func NewBinWithFlows(num int, low, high float64, quantity *Quantity, value, underflow, overflow, nanflow Aggregator) (*Bin, error) {
	if num < 1 {
		return nil, validationErrorf("num (%d) must be at least one", num)
	}
	if low >= high {
		return nil, validationErrorf("low (%v) must be less than high (%v)", low, high)
	}
	values := make([]Aggregator, num)
	for i := range values {
		values[i] = value.Zero()
	}
	return &Bin{
		quantity:  quantity,
		low:       low,
		high:      high,
		values:    values,
		underflow: underflow.Zero(),
		overflow:  overflow.Zero(),
		nanflow:   nanflow.Zero(),
	}, nil
}

func (b *Bin) FactoryTag() string { return "Bin" }
func (b *Bin) Entries() float64   { return b.entries }

// Num is the number of bins.
func (b *Bin) Num() int     { return len(b.values) }
func (b *Bin) Low() float64 { return b.low }
func (b *Bin) High() float64 { return b.high }

// Values returns the per-bin sub-aggregators in bin order.
func (b *Bin) Values() []Aggregator  { return b.values }
func (b *Bin) Underflow() Aggregator { return b.underflow }
func (b *Bin) Overflow() Aggregator  { return b.overflow }
func (b *Bin) Nanflow() Aggregator   { return b.nanflow }

func (b *Bin) Children() []Aggregator {
	out := make([]Aggregator, 0, len(b.values)+3)
	out = append(out, b.underflow, b.overflow, b.nanflow)
	return append(out, b.values...)
}

func (b *Bin) Zero() Aggregator {
	values := make([]Aggregator, len(b.values))
	for i := range values {
		values[i] = b.values[i].Zero()
	}
	return &Bin{
		quantity:  b.quantity.clone(),
		low:       b.low,
		high:      b.high,
		values:    values,
		underflow: b.underflow.Zero(),
		overflow:  b.overflow.Zero(),
		nanflow:   b.nanflow.Zero(),
	}
}

func (b *Bin) Merge(other Aggregator) (Aggregator, error) {
	o, ok := other.(*Bin)
	if !ok {
		return nil, structureMismatchf("cannot merge Bin with %s", other.FactoryTag())
	}
	if b.low != o.low {
		return nil, structureMismatchf("cannot merge Bins because low differs (%v vs %v)", b.low, o.low)
	}
	if b.high != o.high {
		return nil, structureMismatchf("cannot merge Bins because high differs (%v vs %v)", b.high, o.high)
	}
	if len(b.values) != len(o.values) {
		return nil, structureMismatchf("cannot merge Bins because number of values differs (%d vs %d)", len(b.values), len(o.values))
	}
	values := make([]Aggregator, len(b.values))
	for i := range values {
		m, err := b.values[i].Merge(o.values[i])
		if err != nil {
			return nil, wrapStructureMismatch(err, fmt.Sprintf("Bin.values[%d]", i))
		}
		values[i] = m
	}
	underflow, err := b.underflow.Merge(o.underflow)
	if err != nil {
		return nil, wrapStructureMismatch(err, "Bin.underflow")
	}
	overflow, err := b.overflow.Merge(o.overflow)
	if err != nil {
		return nil, wrapStructureMismatch(err, "Bin.overflow")
	}
	nanflow, err := b.nanflow.Merge(o.nanflow)
	if err != nil {
		return nil, wrapStructureMismatch(err, "Bin.nanflow")
	}
	return &Bin{
		quantity:  b.quantity.clone(),
		entries:   b.entries + o.entries,
		low:       b.low,
		high:      b.high,
		values:    values,
		underflow: underflow,
		overflow:  overflow,
		nanflow:   nanflow,
	}, nil
}

// index maps an in-range q to its bin, clamping only the case where
// floating-point rounding lifts the right edge of the last bin to num.
func (b *Bin) index(q float64) int {
	i := int(math.Floor(float64(len(b.values)) * (q - b.low) / (b.high - b.low)))
	if i >= len(b.values) {
		i = len(b.values) - 1
	}
	return i
}

func (b *Bin) Fill(datum any, weight float64) error {
	if weight <= 0.0 {
		return nil
	}
	q, err := b.quantity.Eval(datum)
	if err != nil {
		return err
	}
	switch {
	case math.IsNaN(q):
		err = b.nanflow.Fill(datum, weight)
	case q < b.low:
		err = b.underflow.Fill(datum, weight)
	case q >= b.high:
		err = b.overflow.Fill(datum, weight)
	default:
		err = b.values[b.index(q)].Fill(datum, weight)
	}
	if err != nil {
		return err
	}
	b.entries += weight
	return nil
}

func (b *Bin) writeFragment(w *jwriter.Writer, suppressName bool) {
	w.RawByte('{')
	w.RawString(`"low":`)
	writeFloat(w, b.low)
	w.RawString(`,"high":`)
	writeFloat(w, b.high)
	w.RawString(`,"entries":`)
	writeFloat(w, b.entries)
	w.RawString(`,"values:type":`)
	w.String(b.values[0].FactoryTag())
	w.RawString(`,"values":[`)
	for i, v := range b.values {
		if i > 0 {
			w.RawByte(',')
		}
		v.writeFragment(w, true)
	}
	w.RawByte(']')
	w.RawString(`,"underflow:type":`)
	w.String(b.underflow.FactoryTag())
	w.RawString(`,"underflow":`)
	b.underflow.writeFragment(w, false)
	w.RawString(`,"overflow:type":`)
	w.String(b.overflow.FactoryTag())
	w.RawString(`,"overflow":`)
	b.overflow.writeFragment(w, false)
	w.RawString(`,"nanflow:type":`)
	w.String(b.nanflow.FactoryTag())
	w.RawString(`,"nanflow":`)
	b.nanflow.writeFragment(w, false)
	if !suppressName {
		writeName(w, b.quantity.Name())
	}
	if n := fragmentQuantityName(b.values[0]); n != "" {
		w.RawString(`,"values:name":`)
		w.String(n)
	}
	w.RawByte('}')
}

func init() {
	register("Bin", parseBinFragment)
}

func parseBinFragment(data []byte, nameFromParent string) (Aggregator, error) {
	fields, err := readFields(data)
	if err != nil {
		return nil, err
	}
	required := []string{"low", "high", "entries", "values:type", "values", "underflow:type", "underflow", "overflow:type", "overflow", "nanflow:type", "nanflow"}
	if err := requireFields(fields, "Bin", required, "name", "values:name"); err != nil {
		return nil, err
	}
	low, err := readFloat(fields["low"], "Bin.low")
	if err != nil {
		return nil, err
	}
	high, err := readFloat(fields["high"], "Bin.high")
	if err != nil {
		return nil, err
	}
	if low >= high {
		return nil, validationErrorf("Bin low (%v) must be less than high (%v)", low, high)
	}
	entries, err := readFloat(fields["entries"], "Bin.entries")
	if err != nil {
		return nil, err
	}
	if entries < 0.0 {
		return nil, validationErrorf("Bin entries (%v) cannot be negative", entries)
	}
	name, err := readOptionalName(fields, "Bin.name")
	if err != nil {
		return nil, err
	}
	valuesType, err := readString(fields["values:type"], "Bin.values:type")
	if err != nil {
		return nil, err
	}
	var valuesName string
	if raw, ok := fields["values:name"]; ok {
		if valuesName, err = readString(raw, "Bin.values:name"); err != nil {
			return nil, err
		}
	}

	var values []Aggregator
	l := &jlexer.Lexer{Data: fields["values"]}
	l.Delim('[')
	for !l.IsDelim(']') {
		raw := l.Raw()
		if err := l.Error(); err != nil {
			return nil, jsonFormatErrorf("Bin.values: %v", err)
		}
		v, err := fromJSONFragment(valuesType, raw, valuesName)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
		l.WantComma()
	}
	l.Delim(']')
	if err := l.Error(); err != nil {
		return nil, jsonFormatErrorf("Bin.values: %v", err)
	}
	if len(values) < 1 {
		return nil, jsonFormatErrorf("Bin.values must have at least one element")
	}

	underflow, err := parseFlow(fields, "Bin", "underflow")
	if err != nil {
		return nil, err
	}
	overflow, err := parseFlow(fields, "Bin", "overflow")
	if err != nil {
		return nil, err
	}
	nanflow, err := parseFlow(fields, "Bin", "nanflow")
	if err != nil {
		return nil, err
	}

	return &Bin{
		quantity:  namedQuantity(resolveName(name, nameFromParent)),
		entries:   entries,
		low:       low,
		high:      high,
		values:    values,
		underflow: underflow,
		overflow:  overflow,
		nanflow:   nanflow,
	}, nil
}

// parseFlow reads the "<role>:type" tag and "<role>" payload pair
// every binning container uses for its out-of-range sinks.
func parseFlow(fields map[string][]byte, context, role string) (Aggregator, error) {
	typ, err := readString(fields[role+":type"], context+"."+role+":type")
	if err != nil {
		return nil, err
	}
	return fromJSONFragment(typ, fields[role], "")
}

// fragmentQuantityName returns the "name" a child's fragment would
// carry, so containers holding homogeneous children can promote it to
// a single sibling "<role>:name" key and suppress it per child.
func fragmentQuantityName(a Aggregator) string {
	switch v := a.(type) {
	case *Sum:
		return v.quantity.Name()
	case *Average:
		return v.quantity.Name()
	case *Deviate:
		return v.quantity.Name()
	case *AbsoluteErr:
		return v.quantity.Name()
	case *Minimize:
		return v.quantity.Name()
	case *Maximize:
		return v.quantity.Name()
	case *Quantile:
		return v.quantity.Name()
	case *Bag:
		return v.quantity.name
	case *Bin:
		return v.quantity.Name()
	case *SparselyBin:
		return v.quantity.Name()
	case *Select:
		return v.selection.Name()
	case *Fraction:
		return v.selection.Name()
	case *Stack:
		return v.quantity.Name()
	case *Partition:
		return v.quantity.Name()
	}
	return ""
}
