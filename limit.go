// Copyright 2025 V Kontakte LLC
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package histogrammar

import "github.com/mailru/easyjson/jwriter"

// Limit wraps a sub-aggregator that is dropped once total entries
// strictly exceed the capacity, keeping memory bounded for expensive
// substructures (a Bag of raw values, say) while cheap totals keep
// accumulating. Entries exactly at the capacity keep the sub.
type Limit struct {
	entries     float64
	limit       float64
	contentType string
	value       Aggregator // nil once saturated
}

// NewLimit returns an empty, fillable Limit that keeps value until
// entries exceed limit.
func NewLimit(value Aggregator, limit float64) (*Limit, error) {
	if limit < 0.0 {
		return nil, validationErrorf("limit (%v) cannot be negative", limit)
	}
	return &Limit{limit: limit, contentType: value.FactoryTag(), value: value.Zero()}, nil
}

func (l *Limit) FactoryTag() string { return "Limit" }
func (l *Limit) Entries() float64   { return l.entries }
func (l *Limit) Limit() float64     { return l.limit }

// Saturated reports whether the sub-aggregator has been dropped.
func (l *Limit) Saturated() bool { return l.value == nil }

// Get returns the sub-aggregator, or false when saturated.
func (l *Limit) Get() (Aggregator, bool) {
	if l.value == nil {
		return nil, false
	}
	return l.value, true
}

func (l *Limit) Children() []Aggregator {
	if l.value == nil {
		return nil
	}
	return []Aggregator{l.value}
}

func (l *Limit) Zero() Aggregator {
	out := &Limit{limit: l.limit, contentType: l.contentType}
	if l.value != nil {
		out.value = l.value.Zero()
	}
	return out
}

func (l *Limit) Merge(other Aggregator) (Aggregator, error) {
	o, ok := other.(*Limit)
	if !ok {
		return nil, structureMismatchf("cannot merge Limit with %s", other.FactoryTag())
	}
	if l.limit != o.limit {
		return nil, structureMismatchf("cannot merge Limits because limits differ (%v vs %v)", l.limit, o.limit)
	}
	entries := l.entries + o.entries
	out := &Limit{entries: entries, limit: l.limit, contentType: l.contentType}
	if entries <= l.limit && l.value != nil && o.value != nil {
		value, err := l.value.Merge(o.value)
		if err != nil {
			return nil, wrapStructureMismatch(err, "Limit.data")
		}
		out.value = value
	}
	return out, nil
}

func (l *Limit) Fill(datum any, weight float64) error {
	if weight <= 0.0 {
		return nil
	}
	if l.entries+weight > l.limit {
		l.value = nil
	} else if l.value != nil {
		if err := l.value.Fill(datum, weight); err != nil {
			return err
		}
	}
	l.entries += weight
	return nil
}

func (l *Limit) writeFragment(w *jwriter.Writer, suppressName bool) {
	w.RawByte('{')
	w.RawString(`"entries":`)
	writeFloat(w, l.entries)
	w.RawString(`,"limit":`)
	writeFloat(w, l.limit)
	w.RawString(`,"type":`)
	w.String(l.contentType)
	w.RawString(`,"data":`)
	if l.value == nil {
		w.RawString("null")
	} else {
		l.value.writeFragment(w, false)
	}
	w.RawByte('}')
}

func init() {
	register("Limit", parseLimitFragment)
}

func parseLimitFragment(data []byte, nameFromParent string) (Aggregator, error) {
	fields, err := readFields(data)
	if err != nil {
		return nil, err
	}
	if err := requireFields(fields, "Limit", []string{"entries", "limit", "type", "data"}); err != nil {
		return nil, err
	}
	entries, err := readFloat(fields["entries"], "Limit.entries")
	if err != nil {
		return nil, err
	}
	if entries < 0.0 {
		return nil, validationErrorf("Limit entries (%v) cannot be negative", entries)
	}
	limit, err := readFloat(fields["limit"], "Limit.limit")
	if err != nil {
		return nil, err
	}
	contentType, err := readString(fields["type"], "Limit.type")
	if err != nil {
		return nil, err
	}
	out := &Limit{entries: entries, limit: limit, contentType: contentType}
	if raw := fields["data"]; string(raw) != "null" {
		value, err := fromJSONFragment(contentType, raw, "")
		if err != nil {
			return nil, err
		}
		out.value = value
	}
	return out, nil
}
