// Copyright 2025 V Kontakte LLC
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package histogrammar

import "github.com/mailru/easyjson/jwriter"

// AbsoluteErr accumulates the mean absolute value of quantity(datum),
// useful as a robust alternative to Deviate's variance.
type AbsoluteErr struct {
	quantity    *Quantity
	entries     float64
	absoluteSum float64
}

// NewAbsoluteErr returns an empty, fillable AbsoluteErr over quantity.
func NewAbsoluteErr(quantity *Quantity) *AbsoluteErr {
	return &AbsoluteErr{quantity: quantity}
}

func (a *AbsoluteErr) FactoryTag() string     { return "AbsoluteErr" }
func (a *AbsoluteErr) Entries() float64       { return a.entries }
func (a *AbsoluteErr) Children() []Aggregator { return nil }

// MAE is the mean absolute error: absoluteSum/entries, or absoluteSum
// itself when entries is 0.
func (a *AbsoluteErr) MAE() float64 {
	if a.entries == 0.0 {
		return a.absoluteSum
	}
	return a.absoluteSum / a.entries
}

func (a *AbsoluteErr) Zero() Aggregator { return NewAbsoluteErr(a.quantity.clone()) }

func (a *AbsoluteErr) Merge(other Aggregator) (Aggregator, error) {
	o, ok := other.(*AbsoluteErr)
	if !ok {
		return nil, structureMismatchf("cannot merge AbsoluteErr with %s", other.FactoryTag())
	}
	entries := a.entries + o.entries
	absoluteSum := a.entries*a.MAE() + o.entries*o.MAE()
	return &AbsoluteErr{quantity: a.quantity.clone(), entries: entries, absoluteSum: absoluteSum}, nil
}

func (a *AbsoluteErr) Fill(datum any, weight float64) error {
	if weight <= 0.0 {
		return nil
	}
	q, err := a.quantity.Eval(datum)
	if err != nil {
		return err
	}
	a.entries += weight
	if q < 0 {
		q = -q
	}
	a.absoluteSum += weight * q
	return nil
}

func (a *AbsoluteErr) writeFragment(w *jwriter.Writer, suppressName bool) {
	w.RawByte('{')
	w.RawString(`"entries":`)
	writeFloat(w, a.entries)
	w.RawString(`,"mae":`)
	writeFloat(w, a.MAE())
	if !suppressName {
		writeName(w, a.quantity.Name())
	}
	w.RawByte('}')
}

func init() {
	register("AbsoluteErr", parseAbsoluteErrFragment)
}

func parseAbsoluteErrFragment(data []byte, nameFromParent string) (Aggregator, error) {
	fields, err := readFields(data)
	if err != nil {
		return nil, err
	}
	if err := requireFields(fields, "AbsoluteErr", []string{"entries", "mae"}, "name"); err != nil {
		return nil, err
	}
	entries, err := readFloat(fields["entries"], "AbsoluteErr.entries")
	if err != nil {
		return nil, err
	}
	if entries < 0.0 {
		return nil, validationErrorf("AbsoluteErr entries (%v) cannot be negative", entries)
	}
	mae, err := readSpecialFloat(fields["mae"], "AbsoluteErr.mae")
	if err != nil {
		return nil, err
	}
	name, err := readOptionalName(fields, "AbsoluteErr.name")
	if err != nil {
		return nil, err
	}
	return &AbsoluteErr{quantity: namedQuantity(resolveName(name, nameFromParent)), entries: entries, absoluteSum: mae * entries}, nil
}
