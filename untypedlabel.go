// Copyright 2025 V Kontakte LLC
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package histogrammar

import (
	"sort"

	"github.com/mailru/easyjson/jwriter"
)

// UntypedLabel is Label without the same-type constraint: each named
// sub-aggregator may be a different primitive, so each child carries
// its own {"type", "data"} envelope in JSON.
type UntypedLabel struct {
	entries float64
	pairs   []labelPair // sorted by label
}

// NewUntypedLabel returns an empty, fillable UntypedLabel over the
// given pairs (at least one, any mix of types).
func NewUntypedLabel(pairs map[string]Aggregator) (*UntypedLabel, error) {
	sorted, err := sortedLabelPairs("UntypedLabel", pairs)
	if err != nil {
		return nil, err
	}
	return &UntypedLabel{pairs: sorted}, nil
}

func (u *UntypedLabel) FactoryTag() string { return "UntypedLabel" }
func (u *UntypedLabel) Entries() float64   { return u.entries }

// Size is the number of labeled sub-aggregators.
func (u *UntypedLabel) Size() int { return len(u.pairs) }

// Keys returns the labels in sorted order.
func (u *UntypedLabel) Keys() []string {
	out := make([]string, len(u.pairs))
	for i, p := range u.pairs {
		out[i] = p.label
	}
	return out
}

// Get returns the sub-aggregator under label, if present.
func (u *UntypedLabel) Get(label string) (Aggregator, bool) {
	i := sort.Search(len(u.pairs), func(i int) bool { return u.pairs[i].label >= label })
	if i < len(u.pairs) && u.pairs[i].label == label {
		return u.pairs[i].value, true
	}
	return nil, false
}

func (u *UntypedLabel) Children() []Aggregator {
	out := make([]Aggregator, len(u.pairs))
	for i, p := range u.pairs {
		out[i] = p.value
	}
	return out
}

func (u *UntypedLabel) Zero() Aggregator {
	pairs := make([]labelPair, len(u.pairs))
	for i, p := range u.pairs {
		pairs[i] = labelPair{label: p.label, value: p.value.Zero()}
	}
	return &UntypedLabel{pairs: pairs}
}

func (u *UntypedLabel) Merge(other Aggregator) (Aggregator, error) {
	o, ok := other.(*UntypedLabel)
	if !ok {
		return nil, structureMismatchf("cannot merge UntypedLabel with %s", other.FactoryTag())
	}
	pairs, err := mergeLabelPairs("UntypedLabel", u.pairs, o.pairs)
	if err != nil {
		return nil, err
	}
	return &UntypedLabel{entries: u.entries + o.entries, pairs: pairs}, nil
}

func (u *UntypedLabel) Fill(datum any, weight float64) error {
	if weight <= 0.0 {
		return nil
	}
	for _, p := range u.pairs {
		if err := p.value.Fill(datum, weight); err != nil {
			return err
		}
	}
	u.entries += weight
	return nil
}

func (u *UntypedLabel) writeFragment(w *jwriter.Writer, suppressName bool) {
	w.RawByte('{')
	w.RawString(`"entries":`)
	writeFloat(w, u.entries)
	w.RawString(`,"data":{`)
	for i, p := range u.pairs {
		if i > 0 {
			w.RawByte(',')
		}
		w.String(p.label)
		w.RawString(`:{"type":`)
		w.String(p.value.FactoryTag())
		w.RawString(`,"data":`)
		p.value.writeFragment(w, false)
		w.RawByte('}')
	}
	w.RawString(`}}`)
}

func init() {
	register("UntypedLabel", parseUntypedLabelFragment)
}

func parseUntypedLabelFragment(data []byte, nameFromParent string) (Aggregator, error) {
	fields, err := readFields(data)
	if err != nil {
		return nil, err
	}
	if err := requireFields(fields, "UntypedLabel", []string{"entries", "data"}); err != nil {
		return nil, err
	}
	entries, err := readFloat(fields["entries"], "UntypedLabel.entries")
	if err != nil {
		return nil, err
	}
	if entries < 0.0 {
		return nil, validationErrorf("UntypedLabel entries (%v) cannot be negative", entries)
	}
	dataFields, err := readFields(fields["data"])
	if err != nil {
		return nil, wrapJSONFormat(err, "UntypedLabel.data")
	}
	pairs := make(map[string]Aggregator, len(dataFields))
	for k, raw := range dataFields {
		sub, err := fromJSONFragmentTyped(raw, "")
		if err != nil {
			return nil, err
		}
		pairs[k] = sub
	}
	sorted, err := sortedLabelPairs("UntypedLabel", pairs)
	if err != nil {
		return nil, err
	}
	return &UntypedLabel{entries: entries, pairs: sorted}, nil
}
