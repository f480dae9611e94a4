// Copyright 2025 V Kontakte LLC
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package histogrammar

import "github.com/mailru/easyjson/jwriter"

// Average maintains a numerically stable running mean of
// quantity(datum), updated by Welford's incremental formula so it
// never needs to revisit earlier data.
type Average struct {
	quantity *Quantity
	entries  float64
	mean     float64
}

// NewAverage returns an empty, fillable Average over quantity.
func NewAverage(quantity *Quantity) *Average {
	return &Average{quantity: quantity}
}

func (a *Average) FactoryTag() string     { return "Average" }
func (a *Average) Entries() float64       { return a.entries }
func (a *Average) Children() []Aggregator { return nil }

func (a *Average) Zero() Aggregator { return NewAverage(a.quantity.clone()) }

func (a *Average) Merge(other Aggregator) (Aggregator, error) {
	o, ok := other.(*Average)
	if !ok {
		return nil, structureMismatchf("cannot merge Average with %s", other.FactoryTag())
	}
	entries := a.entries + o.entries
	var mean float64
	if entries != 0.0 {
		mean = (a.entries*a.mean + o.entries*o.mean) / entries
	}
	return &Average{quantity: a.quantity.clone(), entries: entries, mean: mean}, nil
}

func (a *Average) Fill(datum any, weight float64) error {
	if weight <= 0.0 {
		return nil
	}
	q, err := a.quantity.Eval(datum)
	if err != nil {
		return err
	}
	a.entries += weight
	delta := q - a.mean
	shift := delta * weight / a.entries
	a.mean += shift
	return nil
}

func (a *Average) writeFragment(w *jwriter.Writer, suppressName bool) {
	w.RawByte('{')
	w.RawString(`"entries":`)
	writeFloat(w, a.entries)
	w.RawString(`,"mean":`)
	writeFloat(w, a.mean)
	if !suppressName {
		writeName(w, a.quantity.Name())
	}
	w.RawByte('}')
}

func init() {
	register("Average", parseAverageFragment)
}

func parseAverageFragment(data []byte, nameFromParent string) (Aggregator, error) {
	fields, err := readFields(data)
	if err != nil {
		return nil, err
	}
	if err := requireFields(fields, "Average", []string{"entries", "mean"}, "name"); err != nil {
		return nil, err
	}
	entries, err := readFloat(fields["entries"], "Average.entries")
	if err != nil {
		return nil, err
	}
	if entries < 0.0 {
		return nil, validationErrorf("Average entries (%v) cannot be negative", entries)
	}
	mean, err := readSpecialFloat(fields["mean"], "Average.mean")
	if err != nil {
		return nil, err
	}
	name, err := readOptionalName(fields, "Average.name")
	if err != nil {
		return nil, err
	}
	return &Average{quantity: namedQuantity(resolveName(name, nameFromParent)), entries: entries, mean: mean}, nil
}
