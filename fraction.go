// Copyright 2025 V Kontakte LLC
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package histogrammar

import "github.com/mailru/easyjson/jwriter"

// Fraction accumulates a numerator and a structurally identical
// denominator: the denominator sees every datum at full weight, the
// numerator sees it reweighted by the selection. Dividing matching
// sub-values afterward yields an efficiency or pass-rate with
// whatever substructure the value template has.
type Fraction struct {
	selection   *Quantity
	entries     float64
	numerator   Aggregator
	denominator Aggregator
}

// NewFraction returns an empty, fillable Fraction whose numerator and
// denominator both start as value.Zero().
func NewFraction(selection *Quantity, value Aggregator) *Fraction {
	return &Fraction{selection: selection, numerator: value.Zero(), denominator: value.Zero()}
}

func (f *Fraction) FactoryTag() string      { return "Fraction" }
func (f *Fraction) Entries() float64        { return f.entries }
func (f *Fraction) Numerator() Aggregator   { return f.numerator }
func (f *Fraction) Denominator() Aggregator { return f.denominator }

func (f *Fraction) Children() []Aggregator {
	return []Aggregator{f.numerator, f.denominator}
}

func (f *Fraction) Zero() Aggregator {
	return &Fraction{
		selection:   f.selection.clone(),
		numerator:   f.numerator.Zero(),
		denominator: f.denominator.Zero(),
	}
}

func (f *Fraction) Merge(other Aggregator) (Aggregator, error) {
	o, ok := other.(*Fraction)
	if !ok {
		return nil, structureMismatchf("cannot merge Fraction with %s", other.FactoryTag())
	}
	numerator, err := f.numerator.Merge(o.numerator)
	if err != nil {
		return nil, wrapStructureMismatch(err, "Fraction.numerator")
	}
	denominator, err := f.denominator.Merge(o.denominator)
	if err != nil {
		return nil, wrapStructureMismatch(err, "Fraction.denominator")
	}
	return &Fraction{
		selection:   f.selection.clone(),
		entries:     f.entries + o.entries,
		numerator:   numerator,
		denominator: denominator,
	}, nil
}

func (f *Fraction) Fill(datum any, weight float64) error {
	if weight <= 0.0 {
		return nil
	}
	sel, err := f.selection.Eval(datum)
	if err != nil {
		return err
	}
	if err := f.denominator.Fill(datum, weight); err != nil {
		return err
	}
	if w := weight * sel; w > 0.0 {
		if err := f.numerator.Fill(datum, w); err != nil {
			return err
		}
	}
	f.entries += weight
	return nil
}

func (f *Fraction) writeFragment(w *jwriter.Writer, suppressName bool) {
	w.RawByte('{')
	w.RawString(`"entries":`)
	writeFloat(w, f.entries)
	w.RawString(`,"type":`)
	w.String(f.numerator.FactoryTag())
	w.RawString(`,"numerator":`)
	f.numerator.writeFragment(w, true)
	w.RawString(`,"denominator":`)
	f.denominator.writeFragment(w, true)
	if !suppressName {
		writeName(w, f.selection.Name())
	}
	if n := fragmentQuantityName(f.numerator); n != "" {
		w.RawString(`,"sub:name":`)
		w.String(n)
	}
	w.RawByte('}')
}

func init() {
	register("Fraction", parseFractionFragment)
}

func parseFractionFragment(data []byte, nameFromParent string) (Aggregator, error) {
	fields, err := readFields(data)
	if err != nil {
		return nil, err
	}
	if err := requireFields(fields, "Fraction", []string{"entries", "type", "numerator", "denominator"}, "name", "sub:name"); err != nil {
		return nil, err
	}
	entries, err := readFloat(fields["entries"], "Fraction.entries")
	if err != nil {
		return nil, err
	}
	if entries < 0.0 {
		return nil, validationErrorf("Fraction entries (%v) cannot be negative", entries)
	}
	typ, err := readString(fields["type"], "Fraction.type")
	if err != nil {
		return nil, err
	}
	var subName string
	if raw, ok := fields["sub:name"]; ok {
		if subName, err = readString(raw, "Fraction.sub:name"); err != nil {
			return nil, err
		}
	}
	numerator, err := fromJSONFragment(typ, fields["numerator"], subName)
	if err != nil {
		return nil, err
	}
	denominator, err := fromJSONFragment(typ, fields["denominator"], subName)
	if err != nil {
		return nil, err
	}
	name, err := readOptionalName(fields, "Fraction.name")
	if err != nil {
		return nil, err
	}
	return &Fraction{
		selection:   namedQuantity(resolveName(name, nameFromParent)),
		entries:     entries,
		numerator:   numerator,
		denominator: denominator,
	}, nil
}
