// Copyright 2025 V Kontakte LLC
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package histogrammar

import "github.com/mailru/easyjson/jwriter"

// Partition splits the axis into adjacent half-open intervals
// [c_k, c_{k+1}) and routes each datum to exactly the one interval
// containing its quantity. The first threshold is -inf and the last
// interval is unbounded above, so every non-NaN value lands somewhere.
type Partition struct {
	quantity *Quantity
	entries  float64
	cuts     []cutBin
}

// NewPartition returns an empty, fillable Partition over the given
// strictly increasing thresholds, plus the implicit -inf threshold.
func NewPartition(quantity *Quantity, value Aggregator, thresholds ...float64) (*Partition, error) {
	cuts, err := newCutBins("Partition", value, thresholds)
	if err != nil {
		return nil, err
	}
	return &Partition{quantity: quantity, cuts: cuts}, nil
}

func (p *Partition) FactoryTag() string { return "Partition" }
func (p *Partition) Entries() float64   { return p.entries }

// Thresholds returns the interval lower edges in ascending order,
// starting with -inf.
func (p *Partition) Thresholds() []float64 { return cutThresholds(p.cuts) }

// Values returns the per-interval sub-aggregators in threshold order.
func (p *Partition) Values() []Aggregator { return cutValues(p.cuts) }

func (p *Partition) Children() []Aggregator { return cutValues(p.cuts) }

func (p *Partition) Zero() Aggregator {
	cuts := make([]cutBin, len(p.cuts))
	for i, c := range p.cuts {
		cuts[i] = cutBin{atleast: c.atleast, value: c.value.Zero()}
	}
	return &Partition{quantity: p.quantity.clone(), cuts: cuts}
}

func (p *Partition) Merge(other Aggregator) (Aggregator, error) {
	o, ok := other.(*Partition)
	if !ok {
		return nil, structureMismatchf("cannot merge Partition with %s", other.FactoryTag())
	}
	cuts, err := mergeCutBins("Partition", p.cuts, o.cuts)
	if err != nil {
		return nil, err
	}
	return &Partition{quantity: p.quantity.clone(), entries: p.entries + o.entries, cuts: cuts}, nil
}

func (p *Partition) Fill(datum any, weight float64) error {
	if weight <= 0.0 {
		return nil
	}
	q, err := p.quantity.Eval(datum)
	if err != nil {
		return err
	}
	for i, c := range p.cuts {
		if !(q >= c.atleast) { // also skips NaN, which belongs to no interval
			continue
		}
		// the last interval has no upper edge
		if i+1 < len(p.cuts) && q >= p.cuts[i+1].atleast {
			continue
		}
		if err := c.value.Fill(datum, weight); err != nil {
			return err
		}
		break
	}
	p.entries += weight
	return nil
}

func (p *Partition) writeFragment(w *jwriter.Writer, suppressName bool) {
	w.RawByte('{')
	w.RawString(`"entries":`)
	writeFloat(w, p.entries)
	w.RawString(`,"type":`)
	w.String(p.cuts[0].value.FactoryTag())
	w.RawString(`,"data":[`)
	for i, c := range p.cuts {
		if i > 0 {
			w.RawByte(',')
		}
		w.RawString(`{"atleast":`)
		writeFloat(w, c.atleast)
		w.RawString(`,"data":`)
		c.value.writeFragment(w, false)
		w.RawByte('}')
	}
	w.RawByte(']')
	if !suppressName {
		writeName(w, p.quantity.Name())
	}
	w.RawByte('}')
}

func init() {
	register("Partition", parsePartitionFragment)
}

func parsePartitionFragment(data []byte, nameFromParent string) (Aggregator, error) {
	fields, err := readFields(data)
	if err != nil {
		return nil, err
	}
	if err := requireFields(fields, "Partition", []string{"entries", "type", "data"}, "name"); err != nil {
		return nil, err
	}
	entries, err := readFloat(fields["entries"], "Partition.entries")
	if err != nil {
		return nil, err
	}
	if entries < 0.0 {
		return nil, validationErrorf("Partition entries (%v) cannot be negative", entries)
	}
	contentType, err := readString(fields["type"], "Partition.type")
	if err != nil {
		return nil, err
	}
	cuts, err := parseCutBins(fields["data"], "Partition.data", contentType, "")
	if err != nil {
		return nil, err
	}
	name, err := readOptionalName(fields, "Partition.name")
	if err != nil {
		return nil, err
	}
	return &Partition{quantity: namedQuantity(resolveName(name, nameFromParent)), entries: entries, cuts: cuts}, nil
}
