// Copyright 2025 V Kontakte LLC
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package histogrammar

import (
	"fmt"
	"math"

	"github.com/mailru/easyjson/jlexer"
	"github.com/mailru/easyjson/jwriter"
)

type cutBin struct {
	atleast float64
	value   Aggregator
}

// Stack accumulates a cumulative family of sub-aggregators: one per
// cut threshold, each filled whenever the quantity is at least its
// threshold. The first threshold is -inf, so that sub sees all
// non-NaN data and each successive sub is a subset of the previous,
// ready to be drawn as a stacked plot.
type Stack struct {
	quantity *Quantity
	entries  float64
	cuts     []cutBin
}

// NewStack returns an empty, fillable Stack over the given strictly
// increasing thresholds, plus the implicit -inf threshold covering
// all data.
func NewStack(quantity *Quantity, value Aggregator, thresholds ...float64) (*Stack, error) {
	cuts, err := newCutBins("Stack", value, thresholds)
	if err != nil {
		return nil, err
	}
	return &Stack{quantity: quantity, cuts: cuts}, nil
}

func newCutBins(context string, value Aggregator, thresholds []float64) ([]cutBin, error) {
	for i := 1; i < len(thresholds); i++ {
		if !(thresholds[i-1] < thresholds[i]) {
			return nil, validationErrorf("%s thresholds must be strictly increasing (%v then %v)", context, thresholds[i-1], thresholds[i])
		}
	}
	cuts := make([]cutBin, 0, len(thresholds)+1)
	cuts = append(cuts, cutBin{atleast: math.Inf(-1), value: value.Zero()})
	for _, t := range thresholds {
		cuts = append(cuts, cutBin{atleast: t, value: value.Zero()})
	}
	return cuts, nil
}

func (s *Stack) FactoryTag() string { return "Stack" }
func (s *Stack) Entries() float64   { return s.entries }

// Thresholds returns the cut thresholds in ascending order, starting
// with -inf.
func (s *Stack) Thresholds() []float64 { return cutThresholds(s.cuts) }

// Values returns the sub-aggregators in threshold order.
func (s *Stack) Values() []Aggregator { return cutValues(s.cuts) }

func cutThresholds(cuts []cutBin) []float64 {
	out := make([]float64, len(cuts))
	for i, c := range cuts {
		out[i] = c.atleast
	}
	return out
}

func cutValues(cuts []cutBin) []Aggregator {
	out := make([]Aggregator, len(cuts))
	for i, c := range cuts {
		out[i] = c.value
	}
	return out
}

func (s *Stack) Children() []Aggregator { return cutValues(s.cuts) }

func (s *Stack) Zero() Aggregator {
	cuts := make([]cutBin, len(s.cuts))
	for i, c := range s.cuts {
		cuts[i] = cutBin{atleast: c.atleast, value: c.value.Zero()}
	}
	return &Stack{quantity: s.quantity.clone(), cuts: cuts}
}

func mergeCutBins(context string, a, b []cutBin) ([]cutBin, error) {
	if len(a) != len(b) {
		return nil, structureMismatchf("cannot merge %ss because numbers of thresholds differ (%d vs %d)", context, len(a), len(b))
	}
	out := make([]cutBin, len(a))
	for i := range a {
		if a[i].atleast != b[i].atleast {
			return nil, structureMismatchf("cannot merge %ss because thresholds differ (%v vs %v)", context, a[i].atleast, b[i].atleast)
		}
		m, err := a[i].value.Merge(b[i].value)
		if err != nil {
			return nil, wrapStructureMismatch(err, fmt.Sprintf("%s.data[%d]", context, i))
		}
		out[i] = cutBin{atleast: a[i].atleast, value: m}
	}
	return out, nil
}

func (s *Stack) Merge(other Aggregator) (Aggregator, error) {
	o, ok := other.(*Stack)
	if !ok {
		return nil, structureMismatchf("cannot merge Stack with %s", other.FactoryTag())
	}
	cuts, err := mergeCutBins("Stack", s.cuts, o.cuts)
	if err != nil {
		return nil, err
	}
	return &Stack{quantity: s.quantity.clone(), entries: s.entries + o.entries, cuts: cuts}, nil
}

func (s *Stack) Fill(datum any, weight float64) error {
	if weight <= 0.0 {
		return nil
	}
	q, err := s.quantity.Eval(datum)
	if err != nil {
		return err
	}
	for _, c := range s.cuts {
		if q >= c.atleast {
			if err := c.value.Fill(datum, weight); err != nil {
				return err
			}
		}
	}
	s.entries += weight
	return nil
}

func (s *Stack) writeFragment(w *jwriter.Writer, suppressName bool) {
	w.RawByte('{')
	w.RawString(`"entries":`)
	writeFloat(w, s.entries)
	w.RawString(`,"type":`)
	w.String(s.cuts[0].value.FactoryTag())
	w.RawString(`,"data":[`)
	for i, c := range s.cuts {
		if i > 0 {
			w.RawByte(',')
		}
		w.RawString(`{"atleast":`)
		writeFloat(w, c.atleast)
		w.RawString(`,"data":`)
		c.value.writeFragment(w, true)
		w.RawByte('}')
	}
	w.RawByte(']')
	if !suppressName {
		writeName(w, s.quantity.Name())
	}
	if n := fragmentQuantityName(s.cuts[0].value); n != "" {
		w.RawString(`,"data:name":`)
		w.String(n)
	}
	w.RawByte('}')
}

func init() {
	register("Stack", parseStackFragment)
}

// parseCutBins reads the [{"atleast":..., "data":...}, ...] array
// shared by Stack and Partition.
func parseCutBins(raw []byte, context, contentType, subName string) ([]cutBin, error) {
	var cuts []cutBin
	l := &jlexer.Lexer{Data: raw}
	l.Delim('[')
	for !l.IsDelim(']') {
		elem := l.Raw()
		if err := l.Error(); err != nil {
			return nil, jsonFormatErrorf("%s: %v", context, err)
		}
		pair, err := readFields(elem)
		if err != nil {
			return nil, wrapJSONFormat(err, context)
		}
		if err := requireFields(pair, context+"[]", []string{"atleast", "data"}); err != nil {
			return nil, err
		}
		atleast, err := readSpecialFloat(pair["atleast"], context+"[].atleast")
		if err != nil {
			return nil, err
		}
		value, err := fromJSONFragment(contentType, pair["data"], subName)
		if err != nil {
			return nil, err
		}
		cuts = append(cuts, cutBin{atleast: atleast, value: value})
		l.WantComma()
	}
	l.Delim(']')
	if err := l.Error(); err != nil {
		return nil, jsonFormatErrorf("%s: %v", context, err)
	}
	if len(cuts) < 1 {
		return nil, jsonFormatErrorf("%s must have at least one element", context)
	}
	return cuts, nil
}

func parseStackFragment(data []byte, nameFromParent string) (Aggregator, error) {
	fields, err := readFields(data)
	if err != nil {
		return nil, err
	}
	if err := requireFields(fields, "Stack", []string{"entries", "type", "data"}, "name", "data:name"); err != nil {
		return nil, err
	}
	entries, err := readFloat(fields["entries"], "Stack.entries")
	if err != nil {
		return nil, err
	}
	if entries < 0.0 {
		return nil, validationErrorf("Stack entries (%v) cannot be negative", entries)
	}
	contentType, err := readString(fields["type"], "Stack.type")
	if err != nil {
		return nil, err
	}
	var dataName string
	if raw, ok := fields["data:name"]; ok {
		if dataName, err = readString(raw, "Stack.data:name"); err != nil {
			return nil, err
		}
	}
	cuts, err := parseCutBins(fields["data"], "Stack.data", contentType, dataName)
	if err != nil {
		return nil, err
	}
	name, err := readOptionalName(fields, "Stack.name")
	if err != nil {
		return nil, err
	}
	return &Stack{quantity: namedQuantity(resolveName(name, nameFromParent)), entries: entries, cuts: cuts}, nil
}
