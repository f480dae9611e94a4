// Copyright 2025 V Kontakte LLC
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package histogrammar

import "github.com/mailru/easyjson/jwriter"

// Count is the simplest aggregator: it tallies total weight and
// ignores the datum entirely.
type Count struct {
	entries float64
}

// NewCount returns an empty, fillable Count.
func NewCount() *Count { return &Count{} }

func (c *Count) FactoryTag() string     { return "Count" }
func (c *Count) Entries() float64       { return c.entries }
func (c *Count) Zero() Aggregator       { return NewCount() }
func (c *Count) Children() []Aggregator { return nil }

func (c *Count) Merge(other Aggregator) (Aggregator, error) {
	o, ok := other.(*Count)
	if !ok {
		return nil, structureMismatchf("cannot merge Count with %s", other.FactoryTag())
	}
	return &Count{entries: c.entries + o.entries}, nil
}

func (c *Count) Fill(datum any, weight float64) error {
	if weight > 0.0 {
		c.entries += weight
	}
	return nil
}

func (c *Count) writeFragment(w *jwriter.Writer, suppressName bool) {
	writeFloat(w, c.entries)
}

func init() {
	register("Count", parseCountFragment)
}

func parseCountFragment(data []byte, nameFromParent string) (Aggregator, error) {
	entries, err := readSpecialFloat(data, "Count")
	if err != nil {
		return nil, err
	}
	if entries < 0.0 {
		return nil, validationErrorf("Count entries (%v) cannot be negative", entries)
	}
	return &Count{entries: entries}, nil
}
