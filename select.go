// Copyright 2025 V Kontakte LLC
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package histogrammar

import "github.com/mailru/easyjson/jwriter"

// Select gates a sub-aggregator behind a weighting quantity: the sub
// is filled with weight*selection(datum) when that product is
// positive, while Select's own entries count the unweighted input. A
// boolean predicate lifted to 1.0/0.0 makes this a plain cut; a
// fractional selection reweights instead of rejecting.
type Select struct {
	selection *Quantity
	entries   float64
	value     Aggregator
}

// NewSelect returns an empty, fillable Select gating value behind
// selection.
func NewSelect(selection *Quantity, value Aggregator) *Select {
	return &Select{selection: selection, value: value.Zero()}
}

// NewCut is NewSelect under its traditional name; "Cut" and "Select"
// build the same aggregator and serialize identically.
func NewCut(selection *Quantity, value Aggregator) *Select {
	return NewSelect(selection, value)
}

func (s *Select) FactoryTag() string     { return "Select" }
func (s *Select) Entries() float64       { return s.entries }
func (s *Select) Value() Aggregator      { return s.value }
func (s *Select) Children() []Aggregator { return []Aggregator{s.value} }

func (s *Select) Zero() Aggregator {
	return &Select{selection: s.selection.clone(), value: s.value.Zero()}
}

func (s *Select) Merge(other Aggregator) (Aggregator, error) {
	o, ok := other.(*Select)
	if !ok {
		return nil, structureMismatchf("cannot merge Select with %s", other.FactoryTag())
	}
	value, err := s.value.Merge(o.value)
	if err != nil {
		return nil, wrapStructureMismatch(err, "Select.data")
	}
	return &Select{selection: s.selection.clone(), entries: s.entries + o.entries, value: value}, nil
}

func (s *Select) Fill(datum any, weight float64) error {
	if weight <= 0.0 {
		return nil
	}
	sel, err := s.selection.Eval(datum)
	if err != nil {
		return err
	}
	if w := weight * sel; w > 0.0 {
		if err := s.value.Fill(datum, w); err != nil {
			return err
		}
	}
	s.entries += weight
	return nil
}

func (s *Select) writeFragment(w *jwriter.Writer, suppressName bool) {
	w.RawByte('{')
	w.RawString(`"entries":`)
	writeFloat(w, s.entries)
	w.RawString(`,"type":`)
	w.String(s.value.FactoryTag())
	w.RawString(`,"data":`)
	s.value.writeFragment(w, false)
	if !suppressName {
		writeName(w, s.selection.Name())
	}
	w.RawByte('}')
}

func init() {
	register("Select", parseSelectFragment)
}

func parseSelectFragment(data []byte, nameFromParent string) (Aggregator, error) {
	fields, err := readFields(data)
	if err != nil {
		return nil, err
	}
	if err := requireFields(fields, "Select", []string{"entries", "type", "data"}, "name"); err != nil {
		return nil, err
	}
	entries, err := readFloat(fields["entries"], "Select.entries")
	if err != nil {
		return nil, err
	}
	if entries < 0.0 {
		return nil, validationErrorf("Select entries (%v) cannot be negative", entries)
	}
	typ, err := readString(fields["type"], "Select.type")
	if err != nil {
		return nil, err
	}
	value, err := fromJSONFragment(typ, fields["data"], "")
	if err != nil {
		return nil, err
	}
	name, err := readOptionalName(fields, "Select.name")
	if err != nil {
		return nil, err
	}
	return &Select{selection: namedQuantity(resolveName(name, nameFromParent)), entries: entries, value: value}, nil
}
