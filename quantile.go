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

// Quantile tracks an online estimate of the target-th quantile (0 for
// the minimum, 0.5 for the median, 1 for the maximum) of
// quantity(datum) in O(1) memory, nudging the running estimate toward
// each new observation by an adaptively shrinking learning rate.
type Quantile struct {
	target             float64
	quantity           *Quantity
	entries            float64
	estimate           float64
	cumulativeDeviation float64
}

// NewQuantile returns an empty, fillable Quantile over quantity,
// targeting the given quantile in [0, 1].
func NewQuantile(target float64, quantity *Quantity) (*Quantile, error) {
	if target < 0.0 || target > 1.0 {
		return nil, validationErrorf("target (%v) must be between 0 and 1, inclusive", target)
	}
	return &Quantile{target: target, quantity: quantity, estimate: math.NaN()}, nil
}

func (q *Quantile) FactoryTag() string     { return "Quantile" }
func (q *Quantile) Entries() float64       { return q.entries }
func (q *Quantile) Children() []Aggregator { return nil }
func (q *Quantile) Estimate() float64      { return q.estimate }
func (q *Quantile) Target() float64        { return q.target }

func (q *Quantile) Zero() Aggregator {
	out, _ := NewQuantile(q.target, q.quantity.clone())
	return out
}

func (q *Quantile) Merge(other Aggregator) (Aggregator, error) {
	o, ok := other.(*Quantile)
	if !ok {
		return nil, structureMismatchf("cannot merge Quantile with %s", other.FactoryTag())
	}
	if q.target != o.target {
		return nil, structureMismatchf("cannot add Quantiles because targets do not match (%v vs %v)", q.target, o.target)
	}
	entries := q.entries + o.entries
	var estimate float64
	switch {
	case math.IsNaN(q.estimate) && math.IsNaN(o.estimate):
		estimate = math.NaN()
	case math.IsNaN(q.estimate):
		estimate = o.estimate
	case math.IsNaN(o.estimate):
		estimate = q.estimate
	default:
		estimate = (q.estimate*q.entries + o.estimate*o.entries) / entries
	}
	return &Quantile{target: q.target, quantity: q.quantity.clone(), entries: entries, estimate: estimate}, nil
}

func (q *Quantile) Fill(datum any, weight float64) error {
	if weight <= 0.0 {
		return nil
	}
	v, err := q.quantity.Eval(datum)
	if err != nil {
		return err
	}
	q.entries += weight
	if math.IsNaN(q.estimate) {
		q.estimate = v
		return nil
	}
	q.cumulativeDeviation += math.Abs(v - q.estimate)
	learningRate := 1.5 * q.cumulativeDeviation / (q.entries * q.entries)
	var sgn float64
	switch {
	case v < q.estimate:
		sgn = -1
	case v > q.estimate:
		sgn = 1
	}
	q.estimate += weight * learningRate * (sgn + 2.0*q.target - 1.0)
	return nil
}

func (q *Quantile) writeFragment(w *jwriter.Writer, suppressName bool) {
	w.RawByte('{')
	w.RawString(`"entries":`)
	writeFloat(w, q.entries)
	w.RawString(`,"target":`)
	writeFloat(w, q.target)
	w.RawString(`,"estimate":`)
	writeFloat(w, q.estimate)
	if !suppressName {
		writeName(w, q.quantity.Name())
	}
	w.RawByte('}')
}

func init() {
	register("Quantile", parseQuantileFragment)
}

func parseQuantileFragment(data []byte, nameFromParent string) (Aggregator, error) {
	fields, err := readFields(data)
	if err != nil {
		return nil, err
	}
	if err := requireFields(fields, "Quantile", []string{"entries", "target", "estimate"}, "name"); err != nil {
		return nil, err
	}
	entries, err := readFloat(fields["entries"], "Quantile.entries")
	if err != nil {
		return nil, err
	}
	if entries < 0.0 {
		return nil, validationErrorf("Quantile entries (%v) cannot be negative", entries)
	}
	target, err := readFloat(fields["target"], "Quantile.target")
	if err != nil {
		return nil, err
	}
	estimate, err := readSpecialFloat(fields["estimate"], "Quantile.estimate")
	if err != nil {
		return nil, err
	}
	name, err := readOptionalName(fields, "Quantile.name")
	if err != nil {
		return nil, err
	}
	return &Quantile{target: target, quantity: namedQuantity(resolveName(name, nameFromParent)), entries: entries, estimate: estimate}, nil
}
