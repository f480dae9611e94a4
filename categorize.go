// Copyright 2025 V Kontakte LLC
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package histogrammar

import (
	"fmt"
	"sort"

	"github.com/mailru/easyjson/jwriter"
)

// CategorizeFunc extracts a category string from a datum.
type CategorizeFunc func(datum any) (string, error)

// Categorize bins by a categorical quantity: one sub-aggregator per
// distinct observed string, created on demand.
type Categorize struct {
	fn          CategorizeFunc
	value       Aggregator // template; nil after deserialization
	contentType string
	entries     float64
	pairs       map[string]Aggregator
}

// NewCategorize returns an empty, fillable Categorize over the given
// category extractor.
func NewCategorize(fn CategorizeFunc, value Aggregator) *Categorize {
	return &Categorize{
		fn:          fn,
		value:       value,
		contentType: value.FactoryTag(),
		pairs:       map[string]Aggregator{},
	}
}

func (c *Categorize) FactoryTag() string { return "Categorize" }
func (c *Categorize) Entries() float64   { return c.entries }

// Size is the number of distinct categories observed so far.
func (c *Categorize) Size() int { return len(c.pairs) }

// Keys returns the observed categories in sorted order.
func (c *Categorize) Keys() []string {
	out := make([]string, 0, len(c.pairs))
	for k := range c.pairs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Get returns the sub-aggregator for a category, if observed.
func (c *Categorize) Get(category string) (Aggregator, bool) {
	v, ok := c.pairs[category]
	return v, ok
}

func (c *Categorize) Children() []Aggregator {
	out := make([]Aggregator, 0, len(c.pairs))
	for _, k := range c.Keys() {
		out = append(out, c.pairs[k])
	}
	return out
}

func (c *Categorize) Zero() Aggregator {
	return &Categorize{
		fn:          c.fn,
		value:       c.value,
		contentType: c.contentType,
		pairs:       map[string]Aggregator{},
	}
}

func (c *Categorize) Merge(other Aggregator) (Aggregator, error) {
	o, ok := other.(*Categorize)
	if !ok {
		return nil, structureMismatchf("cannot merge Categorize with %s", other.FactoryTag())
	}
	out := &Categorize{
		fn:          c.fn,
		value:       c.value,
		contentType: c.contentType,
		entries:     c.entries + o.entries,
		pairs:       make(map[string]Aggregator, len(c.pairs)+len(o.pairs)),
	}
	for k, v := range c.pairs {
		cp, err := cloneAggregator(v)
		if err != nil {
			return nil, wrapStructureMismatch(err, fmt.Sprintf("Categorize.data[%q]", k))
		}
		out.pairs[k] = cp
	}
	for k, v := range o.pairs {
		if existing, ok := out.pairs[k]; ok {
			m, err := existing.Merge(v)
			if err != nil {
				return nil, wrapStructureMismatch(err, fmt.Sprintf("Categorize.data[%q]", k))
			}
			out.pairs[k] = m
		} else {
			cp, err := cloneAggregator(v)
			if err != nil {
				return nil, wrapStructureMismatch(err, fmt.Sprintf("Categorize.data[%q]", k))
			}
			out.pairs[k] = cp
		}
	}
	return out, nil
}

func (c *Categorize) Fill(datum any, weight float64) error {
	if weight <= 0.0 {
		return nil
	}
	if c.fn == nil {
		return errFillPastTense
	}
	q, err := c.fn(datum)
	if err != nil {
		return err
	}
	sub, ok := c.pairs[q]
	if !ok {
		sub = c.value.Zero()
		c.pairs[q] = sub
	}
	if err := sub.Fill(datum, weight); err != nil {
		return err
	}
	c.entries += weight
	return nil
}

func (c *Categorize) writeFragment(w *jwriter.Writer, suppressName bool) {
	w.RawByte('{')
	w.RawString(`"entries":`)
	writeFloat(w, c.entries)
	w.RawString(`,"type":`)
	w.String(c.contentType)
	w.RawString(`,"data":{`)
	for i, k := range c.Keys() {
		if i > 0 {
			w.RawByte(',')
		}
		w.String(k)
		w.RawByte(':')
		c.pairs[k].writeFragment(w, false)
	}
	w.RawString(`}}`)
}

func init() {
	register("Categorize", parseCategorizeFragment)
}

func parseCategorizeFragment(data []byte, nameFromParent string) (Aggregator, error) {
	fields, err := readFields(data)
	if err != nil {
		return nil, err
	}
	if err := requireFields(fields, "Categorize", []string{"entries", "type", "data"}); err != nil {
		return nil, err
	}
	entries, err := readFloat(fields["entries"], "Categorize.entries")
	if err != nil {
		return nil, err
	}
	if entries < 0.0 {
		return nil, validationErrorf("Categorize entries (%v) cannot be negative", entries)
	}
	contentType, err := readString(fields["type"], "Categorize.type")
	if err != nil {
		return nil, err
	}
	dataFields, err := readFields(fields["data"])
	if err != nil {
		return nil, wrapJSONFormat(err, "Categorize.data")
	}
	pairs := make(map[string]Aggregator, len(dataFields))
	for k, raw := range dataFields {
		sub, err := fromJSONFragment(contentType, raw, "")
		if err != nil {
			return nil, err
		}
		pairs[k] = sub
	}
	return &Categorize{contentType: contentType, entries: entries, pairs: pairs}, nil
}
