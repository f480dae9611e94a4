// Copyright 2025 V Kontakte LLC
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package histogrammar

import (
	"fmt"
	"math"
	"sort"

	"github.com/mailru/easyjson/jlexer"
	"github.com/mailru/easyjson/jwriter"
)

type centeredBin struct {
	center float64
	value  Aggregator
}

// CentrallyBin bins by a fixed set of centers instead of edges: each
// datum is routed to the nearest center, with ties broken toward the
// lower one. The extreme bins are unbounded, so there is no underflow
// or overflow; NaN goes to nanflow.
type CentrallyBin struct {
	quantity *Quantity
	entries  float64
	bins     []centeredBin
	min      float64
	max      float64
	nanflow  Aggregator
}

// NewCentrallyBin returns an empty, fillable CentrallyBin over the
// given centers (at least two, sorted internally), with a Count
// nanflow.
func NewCentrallyBin(centers []float64, quantity *Quantity, value Aggregator) (*CentrallyBin, error) {
	return NewCentrallyBinWithNanflow(centers, quantity, value, NewCount())
}

// NewCentrallyBinWithNanflow is NewCentrallyBin with an explicit NaN
// sink aggregator.
func NewCentrallyBinWithNanflow(centers []float64, quantity *Quantity, value, nanflow Aggregator) (*CentrallyBin, error) {
	if len(centers) < 2 {
		return nil, validationErrorf("number of centers (%d) must be at least two", len(centers))
	}
	sorted := append([]float64(nil), centers...)
	sort.Float64s(sorted)
	bins := make([]centeredBin, len(sorted))
	for i, c := range sorted {
		if math.IsNaN(c) {
			return nil, validationErrorf("centers cannot contain NaN")
		}
		if i > 0 && sorted[i-1] == c {
			return nil, validationErrorf("centers cannot contain duplicates (%v)", c)
		}
		bins[i] = centeredBin{center: c, value: value.Zero()}
	}
	return &CentrallyBin{
		quantity: quantity,
		bins:     bins,
		min:      math.NaN(),
		max:      math.NaN(),
		nanflow:  nanflow.Zero(),
	}, nil
}

func (c *CentrallyBin) FactoryTag() string { return "CentrallyBin" }
func (c *CentrallyBin) Entries() float64   { return c.entries }
func (c *CentrallyBin) Min() float64       { return c.min }
func (c *CentrallyBin) Max() float64       { return c.max }
func (c *CentrallyBin) Nanflow() Aggregator { return c.nanflow }

// Centers returns the bin centers in ascending order.
func (c *CentrallyBin) Centers() []float64 {
	out := make([]float64, len(c.bins))
	for i, b := range c.bins {
		out[i] = b.center
	}
	return out
}

// At returns the sub-aggregator whose center is nearest to q.
func (c *CentrallyBin) At(q float64) Aggregator { return c.bins[c.index(q)].value }

func (c *CentrallyBin) Children() []Aggregator {
	out := make([]Aggregator, 0, len(c.bins)+1)
	out = append(out, c.nanflow)
	for _, b := range c.bins {
		out = append(out, b.value)
	}
	return out
}

func (c *CentrallyBin) Zero() Aggregator {
	bins := make([]centeredBin, len(c.bins))
	for i, b := range c.bins {
		bins[i] = centeredBin{center: b.center, value: b.value.Zero()}
	}
	return &CentrallyBin{
		quantity: c.quantity.clone(),
		bins:     bins,
		min:      math.NaN(),
		max:      math.NaN(),
		nanflow:  c.nanflow.Zero(),
	}
}

func (c *CentrallyBin) Merge(other Aggregator) (Aggregator, error) {
	o, ok := other.(*CentrallyBin)
	if !ok {
		return nil, structureMismatchf("cannot merge CentrallyBin with %s", other.FactoryTag())
	}
	if len(c.bins) != len(o.bins) {
		return nil, structureMismatchf("cannot merge CentrallyBins because numbers of centers differ (%d vs %d)", len(c.bins), len(o.bins))
	}
	for i := range c.bins {
		if c.bins[i].center != o.bins[i].center {
			return nil, structureMismatchf("cannot merge CentrallyBins because centers differ (%v vs %v)", c.bins[i].center, o.bins[i].center)
		}
	}
	bins := make([]centeredBin, len(c.bins))
	for i := range bins {
		m, err := c.bins[i].value.Merge(o.bins[i].value)
		if err != nil {
			return nil, wrapStructureMismatch(err, fmt.Sprintf("CentrallyBin.bins[%d]", i))
		}
		bins[i] = centeredBin{center: c.bins[i].center, value: m}
	}
	nanflow, err := c.nanflow.Merge(o.nanflow)
	if err != nil {
		return nil, wrapStructureMismatch(err, "CentrallyBin.nanflow")
	}
	return &CentrallyBin{
		quantity: c.quantity.clone(),
		entries:  c.entries + o.entries,
		bins:     bins,
		min:      minplus(c.min, o.min),
		max:      maxplus(c.max, o.max),
		nanflow:  nanflow,
	}, nil
}

// index finds the bin with the nearest center, ties toward the lower
// center.
func (c *CentrallyBin) index(q float64) int {
	i := sort.Search(len(c.bins), func(i int) bool { return c.bins[i].center >= q })
	if i == 0 {
		return 0
	}
	if i == len(c.bins) {
		return len(c.bins) - 1
	}
	if q-c.bins[i-1].center <= c.bins[i].center-q {
		return i - 1
	}
	return i
}

func (c *CentrallyBin) Fill(datum any, weight float64) error {
	if weight <= 0.0 {
		return nil
	}
	q, err := c.quantity.Eval(datum)
	if err != nil {
		return err
	}
	if math.IsNaN(q) {
		if err := c.nanflow.Fill(datum, weight); err != nil {
			return err
		}
	} else {
		if err := c.bins[c.index(q)].value.Fill(datum, weight); err != nil {
			return err
		}
		if math.IsNaN(c.min) || q < c.min {
			c.min = q
		}
		if math.IsNaN(c.max) || q > c.max {
			c.max = q
		}
	}
	c.entries += weight
	return nil
}

func (c *CentrallyBin) writeFragment(w *jwriter.Writer, suppressName bool) {
	w.RawByte('{')
	w.RawString(`"entries":`)
	writeFloat(w, c.entries)
	w.RawString(`,"bins:type":`)
	w.String(c.bins[0].value.FactoryTag())
	w.RawString(`,"bins":[`)
	for i, b := range c.bins {
		if i > 0 {
			w.RawByte(',')
		}
		w.RawString(`{"center":`)
		writeFloat(w, b.center)
		w.RawString(`,"value":`)
		b.value.writeFragment(w, false)
		w.RawByte('}')
	}
	w.RawByte(']')
	w.RawString(`,"min":`)
	writeFloat(w, c.min)
	w.RawString(`,"max":`)
	writeFloat(w, c.max)
	w.RawString(`,"nanflow:type":`)
	w.String(c.nanflow.FactoryTag())
	w.RawString(`,"nanflow":`)
	c.nanflow.writeFragment(w, false)
	if !suppressName {
		writeName(w, c.quantity.Name())
	}
	w.RawByte('}')
}

func init() {
	register("CentrallyBin", parseCentrallyBinFragment)
}

// parseCenteredBins reads the [{"center":..., "value":...}, ...] array
// shared by CentrallyBin and AdaptivelyBin.
func parseCenteredBins(raw []byte, context, contentType string) ([]centeredBin, error) {
	var bins []centeredBin
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
		if err := requireFields(pair, context+"[]", []string{"center", "value"}); err != nil {
			return nil, err
		}
		center, err := readSpecialFloat(pair["center"], context+"[].center")
		if err != nil {
			return nil, err
		}
		value, err := fromJSONFragment(contentType, pair["value"], "")
		if err != nil {
			return nil, err
		}
		bins = append(bins, centeredBin{center: center, value: value})
		l.WantComma()
	}
	l.Delim(']')
	if err := l.Error(); err != nil {
		return nil, jsonFormatErrorf("%s: %v", context, err)
	}
	return bins, nil
}

func parseCentrallyBinFragment(data []byte, nameFromParent string) (Aggregator, error) {
	fields, err := readFields(data)
	if err != nil {
		return nil, err
	}
	required := []string{"entries", "bins:type", "bins", "min", "max", "nanflow:type", "nanflow"}
	if err := requireFields(fields, "CentrallyBin", required, "name"); err != nil {
		return nil, err
	}
	entries, err := readFloat(fields["entries"], "CentrallyBin.entries")
	if err != nil {
		return nil, err
	}
	if entries < 0.0 {
		return nil, validationErrorf("CentrallyBin entries (%v) cannot be negative", entries)
	}
	contentType, err := readString(fields["bins:type"], "CentrallyBin.bins:type")
	if err != nil {
		return nil, err
	}
	bins, err := parseCenteredBins(fields["bins"], "CentrallyBin.bins", contentType)
	if err != nil {
		return nil, err
	}
	if len(bins) < 2 {
		return nil, jsonFormatErrorf("CentrallyBin.bins must have at least two elements")
	}
	min, err := readSpecialFloat(fields["min"], "CentrallyBin.min")
	if err != nil {
		return nil, err
	}
	max, err := readSpecialFloat(fields["max"], "CentrallyBin.max")
	if err != nil {
		return nil, err
	}
	nanflow, err := parseFlow(fields, "CentrallyBin", "nanflow")
	if err != nil {
		return nil, err
	}
	name, err := readOptionalName(fields, "CentrallyBin.name")
	if err != nil {
		return nil, err
	}
	return &CentrallyBin{
		quantity: namedQuantity(resolveName(name, nameFromParent)),
		entries:  entries,
		bins:     bins,
		min:      min,
		max:      max,
		nanflow:  nanflow,
	}, nil
}
