// Copyright 2025 V Kontakte LLC
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package histogrammar

import "github.com/mailru/easyjson/jwriter"

// Deviate maintains mean and variance of quantity(datum) in one pass,
// using Welford's running mean combined with Chan et al.'s
// parallel-variance formula so two Deviates can be merged exactly
// without revisiting their data.
type Deviate struct {
	quantity            *Quantity
	entries             float64
	mean                float64
	varianceTimesEntries float64
}

// NewDeviate returns an empty, fillable Deviate over quantity.
func NewDeviate(quantity *Quantity) *Deviate {
	return &Deviate{quantity: quantity}
}

func (d *Deviate) FactoryTag() string     { return "Deviate" }
func (d *Deviate) Entries() float64       { return d.entries }
func (d *Deviate) Children() []Aggregator { return nil }

// Variance is varianceTimesEntries/entries, or varianceTimesEntries
// itself (i.e. 0) when entries is 0.
func (d *Deviate) Variance() float64 {
	if d.entries == 0.0 {
		return d.varianceTimesEntries
	}
	return d.varianceTimesEntries / d.entries
}

func (d *Deviate) Zero() Aggregator { return NewDeviate(d.quantity.clone()) }

func (d *Deviate) Merge(other Aggregator) (Aggregator, error) {
	o, ok := other.(*Deviate)
	if !ok {
		return nil, structureMismatchf("cannot merge Deviate with %s", other.FactoryTag())
	}
	entries := d.entries + o.entries
	var mean float64
	if entries != 0.0 {
		mean = (d.entries*d.mean + o.entries*o.mean) / entries
	}
	vte := d.varianceTimesEntries + o.varianceTimesEntries +
		d.entries*d.mean*d.mean + o.entries*o.mean*o.mean -
		2.0*mean*(d.entries*d.mean+o.entries*o.mean) + mean*mean*entries
	return &Deviate{quantity: d.quantity.clone(), entries: entries, mean: mean, varianceTimesEntries: vte}, nil
}

func (d *Deviate) Fill(datum any, weight float64) error {
	if weight <= 0.0 {
		return nil
	}
	q, err := d.quantity.Eval(datum)
	if err != nil {
		return err
	}
	d.entries += weight
	delta := q - d.mean
	shift := delta * weight / d.entries
	d.mean += shift
	d.varianceTimesEntries += weight * delta * (q - d.mean)
	return nil
}

func (d *Deviate) writeFragment(w *jwriter.Writer, suppressName bool) {
	w.RawByte('{')
	w.RawString(`"entries":`)
	writeFloat(w, d.entries)
	w.RawString(`,"mean":`)
	writeFloat(w, d.mean)
	w.RawString(`,"variance":`)
	writeFloat(w, d.Variance())
	if !suppressName {
		writeName(w, d.quantity.Name())
	}
	w.RawByte('}')
}

func init() {
	register("Deviate", parseDeviateFragment)
}

func parseDeviateFragment(data []byte, nameFromParent string) (Aggregator, error) {
	fields, err := readFields(data)
	if err != nil {
		return nil, err
	}
	if err := requireFields(fields, "Deviate", []string{"entries", "mean", "variance"}, "name"); err != nil {
		return nil, err
	}
	entries, err := readFloat(fields["entries"], "Deviate.entries")
	if err != nil {
		return nil, err
	}
	if entries < 0.0 {
		return nil, validationErrorf("Deviate entries (%v) cannot be negative", entries)
	}
	mean, err := readSpecialFloat(fields["mean"], "Deviate.mean")
	if err != nil {
		return nil, err
	}
	variance, err := readSpecialFloat(fields["variance"], "Deviate.variance")
	if err != nil {
		return nil, err
	}
	name, err := readOptionalName(fields, "Deviate.name")
	if err != nil {
		return nil, err
	}
	return &Deviate{quantity: namedQuantity(resolveName(name, nameFromParent)), entries: entries, mean: mean, varianceTimesEntries: variance * entries}, nil
}
